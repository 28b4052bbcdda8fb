package jackson

import (
	"context"

	"github.com/goliatone/go-router"
)

// AuthContextKey is the router locals key holding the AuthContext.
const AuthContextKey = "auth_context"

var authCtxKey = &contextKey{"auth"}

type contextKey struct {
	name string
}

// AuthContext is the capability set broadcast to subscribers. The zero value
// is the empty set: every method is safe to call and does nothing useful.
type AuthContext struct {
	Snapshot          func() AuthState
	HandleAuth        func(ctx context.Context) Outcome
	SetAuthResponse   func(msg string)
	ClearAuthResponse func()
}

// State returns the current auth state or the zero state.
func (a AuthContext) State() AuthState {
	if a.Snapshot == nil {
		return AuthState{}
	}
	return a.Snapshot()
}

// Trigger runs the auth handler if one was provided.
func (a AuthContext) Trigger(ctx context.Context) Outcome {
	if a.HandleAuth == nil {
		return Outcome{Kind: OutcomeFailed, State: a.State(), Err: ErrNoAuthProvider}
	}
	return a.HandleAuth(ctx)
}

// Respond sets the auth response message if a setter was provided.
func (a AuthContext) Respond(msg string) {
	if a.SetAuthResponse != nil {
		a.SetAuthResponse(msg)
	}
}

// Dismiss clears the auth response message if a setter was provided.
func (a AuthContext) Dismiss() {
	if a.ClearAuthResponse != nil {
		a.ClearAuthResponse()
	}
}

// Empty reports whether no capability was provided.
func (a AuthContext) Empty() bool {
	return a.Snapshot == nil && a.HandleAuth == nil && a.SetAuthResponse == nil && a.ClearAuthResponse == nil
}

// WithAuthContext sets the AuthContext in the given context
func WithAuthContext(ctx context.Context, ac AuthContext) context.Context {
	return context.WithValue(ctx, authCtxKey, ac)
}

// AuthContextFrom returns the AuthContext in ctx, or the empty set.
func AuthContextFrom(ctx context.Context) AuthContext {
	if ctx == nil {
		return AuthContext{}
	}
	ac, _ := ctx.Value(authCtxKey).(AuthContext)
	return ac
}

// AuthContextMiddleware publishes ac to every handler below it.
func AuthContextMiddleware(ac AuthContext) router.MiddlewareFunc {
	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(ctx router.Context) error {
			ctx.Locals(AuthContextKey, ac)
			return next(ctx)
		}
	}
}

// AuthContextFromRouter extracts the AuthContext from router locals
func AuthContextFromRouter(ctx router.Context) AuthContext {
	raw := ctx.Locals(AuthContextKey)
	if raw == nil {
		return AuthContext{}
	}
	ac, _ := raw.(AuthContext)
	return ac
}
