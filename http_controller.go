package jackson

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goliatone/go-jackson/middleware/csrf"
	"github.com/goliatone/go-router"
	"github.com/goliatone/go-router/flash"
)

// PopupCompleter receives the identity provider redirect and wakes the
// pending interactive login.
type PopupCompleter interface {
	Complete(ctx context.Context, state, code, errCode, errDescription string) error
}

type ShellControllerRoutes struct {
	Home          string
	People        string
	Titles        string
	Auth          string
	Callback      string
	State         string
	ClearResponse string
	Events        string
	Activity      string
}

type ShellControllerViews struct {
	Home     string
	People   string
	Titles   string
	Default  string
	Callback string
}

// ShellController serves the pages and the auth endpoints of the shell.
type ShellController struct {
	Navbar       Navbar
	Routes       *ShellControllerRoutes
	Views        *ShellControllerViews
	Auth         *AuthController
	Completer    PopupCompleter
	Activity     ActivityReader
	Logger       Logger
	ErrorHandler router.ErrorHandler
	// Runner starts a trigger; it defaults to a new goroutine.
	Runner func(fn func())
	// TriggerWait is how long the trigger request waits for a fast outcome
	// before redirecting while the attempt continues in the background.
	TriggerWait time.Duration
}

type ShellControllerOption func(*ShellController) *ShellController

// NewShellController builds a controller serving under the navbar base path.
func NewShellController(auth *AuthController, nav Navbar, opts ...ShellControllerOption) *ShellController {
	prefix := RoutePrefix(nav.BasePath)

	c := &ShellController{
		Navbar: nav,
		Auth:   auth,
		Logger: defLogger{},
		Routes: &ShellControllerRoutes{
			Home:          prefix + "/",
			People:        prefix + "/people",
			Titles:        prefix + "/titles",
			Auth:          prefix + "/auth",
			Callback:      prefix + "/auth/callback",
			State:         prefix + "/auth/state",
			ClearResponse: prefix + "/auth/response/clear",
			Events:        prefix + "/auth/events",
			Activity:      prefix + "/auth/activity",
		},
		Views: &ShellControllerViews{
			Home:     "home",
			People:   "people",
			Titles:   "titles",
			Default:  "default",
			Callback: "callback",
		},
		Runner: func(fn func()) {
			go fn()
		},
		TriggerWait: 2 * time.Second,
	}
	c.ErrorHandler = c.defaultErrHandler

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Auth == nil {
		panic("Missing AuthController in shell controller...")
	}

	return c
}

// RoutePrefix turns a base path into a router prefix: backslashes become
// slashes and the trailing slash is dropped.
func RoutePrefix(basePath string) string {
	p := strings.ReplaceAll(basePath, "\\", "/")
	return strings.TrimRight(p, "/")
}

// RegisterShellRoutes mounts the pages and auth endpoints. The default
// route must stay last so it only catches unknown paths.
func RegisterShellRoutes[T any](app router.Router[T], ctrl *ShellController) {
	app.Get(ctrl.Routes.Home, ctrl.Home).SetName("home.get")
	app.Get(ctrl.Routes.People, ctrl.People).SetName("people.get")
	app.Get(ctrl.Routes.Titles, ctrl.Titles).SetName("titles.get")

	app.Post(ctrl.Routes.Auth, ctrl.Trigger).SetName("auth.trigger")
	app.Get(ctrl.Routes.Callback, ctrl.Callback).SetName("auth.callback")
	app.Get(ctrl.Routes.State, ctrl.State).SetName("auth.state")
	app.Post(ctrl.Routes.ClearResponse, ctrl.ClearResponse).SetName("auth.response.clear")
	app.Get(ctrl.Routes.Activity, ctrl.ActivityList).SetName("auth.activity")

	app.Get("/*", ctrl.Default).SetName("default.get")
}

func (s *ShellController) Home(ctx router.Context) error {
	return s.renderPage(ctx, s.Views.Home, "Home")
}

func (s *ShellController) People(ctx router.Context) error {
	return s.renderPage(ctx, s.Views.People, "People")
}

func (s *ShellController) Titles(ctx router.Context) error {
	return s.renderPage(ctx, s.Views.Titles, "Titles")
}

// Default renders the fallback page for unknown paths.
func (s *ShellController) Default(ctx router.Context) error {
	ac := s.authContext(ctx)
	return ctx.Status(http.StatusNotFound).Render(s.Views.Default, MergeTemplateData(
		s.Navbar, ac.State(), ctx.Path(), router.ViewContext{
			"title":      "Not Found",
			ViewKeyCSRF:  csrf.TokenFromContext(ctx),
			ViewKeyFlash: flash.Get(ctx),
		},
	))
}

// Trigger runs the auth handler. Fast outcomes (toggle, alert, failures
// before the popup) are visible on the redirect; a popup login keeps running
// after the response is sent. Alerts travel in a flash cookie.
func (s *ShellController) Trigger(ctx router.Context) error {
	ac := s.authContext(ctx)

	done := make(chan Outcome, 1)
	// request contexts are recycled once the handler returns
	s.Runner(func() {
		done <- ac.Trigger(context.Background())
	})

	select {
	case out := <-done:
		s.Logger.Info("Auth trigger finished", "outcome", out.Kind.String(), "status", out.State.Status.String())
		if out.Kind == OutcomeAlerted {
			return flash.WithError(ctx, router.ViewContext{
				"error_message":  ResponseMessage(out.Err),
				"system_message": "Sign in is unavailable",
			}).Redirect(s.returnTo(ctx), http.StatusSeeOther)
		}
	case <-time.After(s.TriggerWait):
		s.Logger.Info("Auth trigger still running in background")
	}

	return ctx.Redirect(s.returnTo(ctx), http.StatusSeeOther)
}

// Callback is the redirect target of the identity provider popup.
func (s *ShellController) Callback(ctx router.Context) error {
	if s.Completer == nil {
		return s.ErrorHandler(ctx, ErrClientNotInitialized)
	}

	err := s.Completer.Complete(
		ctx.Context(),
		ctx.Query("state"),
		ctx.Query("code"),
		ctx.Query("error"),
		ctx.Query("error_description"),
	)
	if err != nil {
		s.Logger.Error("Popup callback failed", "error", err)
	}

	return ctx.Render(s.Views.Callback, router.ViewContext{
		"title":   "Sign in",
		"ok":      err == nil,
		"message": ResponseMessage(err),
		"home":    s.Navbar.Path("/"),
	})
}

// State returns the current auth state as JSON.
func (s *ShellController) State(ctx router.Context) error {
	return ctx.JSON(http.StatusOK, s.authContext(ctx).State())
}

// ClearResponse dismisses the auth response banner.
func (s *ShellController) ClearResponse(ctx router.Context) error {
	s.authContext(ctx).Dismiss()
	return ctx.Redirect(s.returnTo(ctx), http.StatusSeeOther)
}

// ActivityList returns recent auth activity, newest first.
func (s *ShellController) ActivityList(ctx router.Context) error {
	if s.Activity == nil {
		return ctx.JSON(http.StatusOK, []ActivityEvent{})
	}

	limit := 20
	if raw := ctx.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}

	events, err := s.Activity.Recent(ctx.Context(), limit)
	if err != nil {
		return s.ErrorHandler(ctx, err)
	}
	return ctx.JSON(http.StatusOK, events)
}

func (s *ShellController) renderPage(ctx router.Context, view, title string) error {
	ac := s.authContext(ctx)
	return ctx.Render(view, MergeTemplateData(
		s.Navbar, ac.State(), ctx.Path(), router.ViewContext{
			"title":      title,
			ViewKeyCSRF:  csrf.TokenFromContext(ctx),
			ViewKeyFlash: flash.Get(ctx),
		},
	))
}

// authContext prefers the value published by AuthContextMiddleware and falls
// back to the controller's own.
func (s *ShellController) authContext(ctx router.Context) AuthContext {
	if ac := AuthContextFromRouter(ctx); !ac.Empty() {
		return ac
	}
	return s.Auth.Context()
}

// returnTo sends the browser back to the referring page when it is one of
// the shell pages, home otherwise.
func (s *ShellController) returnTo(ctx router.Context) string {
	home := s.Navbar.Path("/")

	ref := string(ctx.Referer())
	if ref == "" {
		return home
	}

	u, err := url.Parse(ref)
	if err != nil {
		return home
	}

	switch u.Path {
	case s.Routes.People, s.Routes.Titles:
		return u.Path
	}
	return home
}
