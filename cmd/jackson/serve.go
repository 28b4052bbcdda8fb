package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/goliatone/go-jackson"
	"github.com/goliatone/go-jackson/repository"
	"github.com/goliatone/go-jackson/useragent"
	"github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-print"
	"github.com/spf13/cobra"
)

var serveOpts struct {
	addr          string
	activityDB    string
	activityRedis string
	shutdownWait  time.Duration
	csrfKey       string
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the shell over HTTP",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveOpts.addr, "addr", ":8080", "Listen address")
	serveCmd.Flags().StringVar(&serveOpts.activityDB, "activity-db", "", "SQLite DSN for auth activity; in memory ring when empty")
	serveCmd.Flags().StringVar(&serveOpts.activityRedis, "activity-redis", "", "redis:// URL for auth activity; wins over --activity-db")
	serveCmd.Flags().DurationVar(&serveOpts.shutdownWait, "shutdown-timeout", 10*time.Second, "Grace period for in flight requests")
	serveCmd.Flags().StringVar(&serveOpts.csrfKey, "csrf-key", os.Getenv("JACKSON_CSRF_KEY"), "Key signing form tokens, at least 32 bytes; random per process when empty")
	rootCmd.AddCommand(serveCmd)
}

type activityStore interface {
	jackson.ActivitySink
	jackson.ActivityReader
}

func runServe(cmd *cobra.Command, args []string) error {
	lgr := newLogger()
	logger := lgr.GetLogger("serve")
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg := jackson.DefaultConfig()
	if err := cfg.Validate(); err != nil {
		return err
	}
	if n := len(serveOpts.csrfKey); n > 0 && n < 32 {
		return fmt.Errorf("csrf key must be at least 32 bytes, got %d", n)
	}
	logger.Debug("build configuration", "config", print.MaybePrettyJSON(cfg))

	activity, closer, err := openActivity(ctx, lgr)
	if err != nil {
		return err
	}
	defer closer.Close()

	nav := jackson.NewNavbar(cfg.GetBasePath())
	alertLogger := lgr.GetLogger("alerts")
	// the page shows alerts through the trigger's flash message
	alerts := jackson.AlerterFunc(func(_ context.Context, message string) {
		alertLogger.Warn("alert", "message", message)
	})

	var (
		auth      *jackson.AuthController
		client    jackson.IdentityClient
		completer jackson.PopupCompleter
		app       *useragent.Application
	)

	if cfg.AuthEnabled() {
		opener := useragent.OpenerFunc(func(ctx context.Context, req useragent.PopupRequest) {
			if req.Action == useragent.ActionLogin {
				auth.OpenPopup(ctx, req.URL)
				return
			}
			logger.Info("end session url", "url", req.URL)
		})

		app, err = useragent.New(useragent.Config{
			ClientID:              cfg.GetClientID(),
			Authority:             cfg.GetAuthority(),
			RedirectURL:           redirectURL(cfg, serveOpts.addr),
			PostLogoutRedirectURL: publicBase(serveOpts.addr) + nav.Path("/"),
		}, useragent.WithOpener(opener), useragent.WithLogger(lgr.GetLogger("useragent")))
		if err != nil {
			// the controller alerts on every trigger instead
			logger.Error("identity client unavailable", "error", err)
		} else {
			client = app
			completer = app
		}
	}

	auth = jackson.NewAuthController(cfg, client).
		WithLogger(lgr.GetLogger("auth")).
		WithAlerter(alerts).
		WithActivitySink(activity)

	srv, err := jackson.NewServer(jackson.ServerConfig{
		Navbar:    nav,
		Auth:      auth,
		Completer: completer,
		Activity:  activity,
		Logger:    lgr.GetLogger("http"),
		Debug:     debug,
		CSRFKey:   []byte(serveOpts.csrfKey),
	})
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(serveOpts.addr)
	}()

	select {
	case err := <-errCh:
		return err
	case sig := <-waitExitSignal():
		logger.Info("shutting down", "signal", sig.String())
	}

	if app != nil {
		if n := app.Cancel(); n > 0 {
			logger.Warn("cancelled pending logins", "count", n)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), serveOpts.shutdownWait)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func openActivity(ctx context.Context, lgr *glog.BaseLogger) (activityStore, io.Closer, error) {
	logger := lgr.GetLogger("activity")

	switch {
	case serveOpts.activityRedis != "":
		store, err := repository.NewRedisActivityLog(serveOpts.activityRedis)
		if err != nil {
			return nil, nil, err
		}
		if err := store.Ping(ctx); err != nil {
			_ = store.Close()
			return nil, nil, err
		}
		logger.Info("activity stored in redis")
		return store, store, nil

	case serveOpts.activityDB != "":
		db, err := repository.OpenSQLite(serveOpts.activityDB, debug)
		if err != nil {
			return nil, nil, err
		}
		repo := repository.NewActivityRepository(db)
		if err := repo.Migrate(ctx); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		logger.Info("activity stored in sqlite", "dsn", serveOpts.activityDB)
		return repo, db, nil
	}

	return jackson.NewActivityLog(100), closerFunc(func() error { return nil }), nil
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

func publicBase(addr string) string {
	if strings.HasPrefix(addr, ":") {
		return "http://localhost" + addr
	}
	return "http://" + addr
}

func redirectURL(cfg jackson.BaseConfig, addr string) string {
	if u := cfg.GetRedirectURL(); u != "" {
		return u
	}
	return publicBase(addr) + jackson.RoutePrefix(cfg.GetBasePath()) + "/auth/callback"
}

func waitExitSignal() <-chan os.Signal {
	ch := make(chan os.Signal, 3)
	signal.Notify(ch,
		syscall.SIGINT,
		syscall.SIGQUIT,
		syscall.SIGTERM,
	)
	return ch
}
