package jackson

import (
	"context"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/template/django/v3"
	"github.com/goliatone/go-jackson/middleware/csrf"
	"github.com/goliatone/go-router"
)

// ServerConfig wires the shell HTTP server.
type ServerConfig struct {
	Navbar    Navbar
	Auth      *AuthController
	Completer PopupCompleter
	Activity  ActivityReader
	Logger    Logger
	Debug     bool
	// CSRFKey signs form tokens. A random key is used when empty.
	CSRFKey []byte
}

const csrfTokenTTL = 12 * time.Hour

// Server is the shell HTTP server: fiber underneath, go-router on top.
type Server struct {
	app    *fiber.App
	srv    router.Server[*fiber.App]
	ctrl   *ShellController
	logger Logger
}

// NewServer builds the view engine, the router and registers every route.
func NewServer(cfg ServerConfig) (*Server, error) {
	logger := normalizeLogger(cfg.Logger)

	engine := django.NewPathForwardingFileSystem(http.FS(GetViewsFS()), "/views", ".html")
	engine.Reload(cfg.Debug)

	app := router.DefaultFiberOptions(fiber.New(fiber.Config{
		Views:                 engine,
		UnescapePath:          true,
		StrictRouting:         false,
		EnablePrintRoutes:     cfg.Debug,
		DisableStartupMessage: !cfg.Debug,
	}))

	ctrl := NewShellController(cfg.Auth, cfg.Navbar, func(c *ShellController) *ShellController {
		c.Logger = logger
		c.Completer = cfg.Completer
		c.Activity = cfg.Activity
		return c
	})

	// registered on fiber directly so it precedes the router catch all
	app.Get(ctrl.Routes.Events, StreamEvents(cfg.Auth.Store(), logger))

	srv := router.NewFiberAdapter(func(_ *fiber.App) *fiber.App {
		return app
	})

	r := srv.Router()
	r.Use(AuthContextMiddleware(cfg.Auth.Context()))
	r.Use(csrf.New(csrf.Config{
		SecureKey:    cfg.CSRFKey,
		Expiration:   csrfTokenTTL,
		ErrorHandler: ctrl.ErrorHandler,
	}))
	RegisterShellRoutes(r, ctrl)

	return &Server{
		app:    app,
		srv:    srv,
		ctrl:   ctrl,
		logger: logger,
	}, nil
}

// Controller returns the page controller.
func (s *Server) Controller() *ShellController {
	return s.ctrl
}

// Serve blocks serving on addr until Shutdown.
func (s *Server) Serve(addr string) error {
	s.logger.Info("Serving Project Jackson", "addr", addr, "base_path", s.ctrl.Navbar.BasePath)
	return s.app.Listen(addr)
}

// Shutdown stops accepting connections and waits for in flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}
