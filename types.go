package jackson

import (
	"context"
	"fmt"
	"strings"
	"time"
)

type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// IdentityClient is the identity provider collaborator. It owns the popup
// and token mechanics; the shell only sequences its calls.
type IdentityClient interface {
	LoginPopup(ctx context.Context, scopes []string) (*LoginResult, error)
	AcquireTokenSilent(ctx context.Context, scopes []string, authority string) (string, error)
	Logout(ctx context.Context) error
}

// LoginResult is returned by an interactive login
type LoginResult struct {
	IDToken   string
	Account   Account
	Scopes    []string
	ExpiresAt time.Time
}

// Account holds the signed in principal as reported by the provider
type Account struct {
	HomeAccountID string `json:"home_account_id,omitempty"`
	Username      string `json:"username,omitempty"`
	Name          string `json:"name,omitempty"`
	TenantID      string `json:"tenant_id,omitempty"`
}

// DisplayName returns the best label we have for the account.
func (a Account) DisplayName() string {
	if a.Name != "" {
		return a.Name
	}
	return a.Username
}

// Alerter surfaces a blocking, user visible message.
type Alerter interface {
	Alert(ctx context.Context, message string)
}

// AlerterFunc adapts a function to the Alerter interface.
type AlerterFunc func(ctx context.Context, message string)

// Alert implements Alerter.
func (f AlerterFunc) Alert(ctx context.Context, message string) {
	if f == nil {
		return
	}
	f(ctx, message)
}

// Config holds the build time options of the shell
type Config interface {
	GetClientID() string
	GetBasePath() string
	GetAuthority() string
	GetRedirectURL() string
}

type defLogger struct{}

func (d defLogger) Debug(msg string, args ...any) {
	fmt.Print(format("[DBG] JACKSON ", msg, args...))
}

func (d defLogger) Info(msg string, args ...any) {
	fmt.Print(format("[INF] JACKSON ", msg, args...))
}

func (d defLogger) Warn(msg string, args ...any) {
	fmt.Print(format("[WRN] JACKSON ", msg, args...))
}

func (d defLogger) Error(msg string, args ...any) {
	fmt.Print(format("[ERR] JACKSON ", msg, args...))
}

func format(prefix, msg string, args ...any) string {
	var b strings.Builder
	b.WriteString(prefix)
	b.WriteString(msg)
	for i := 0; i < len(args); i += 2 {
		b.WriteByte(' ')
		if i+1 < len(args) {
			fmt.Fprintf(&b, "%v=%v", args[i], args[i+1])
		} else {
			fmt.Fprintf(&b, "%v", args[i])
		}
	}
	b.WriteByte('\n')
	return b.String()
}

func normalizeLogger(l Logger) Logger {
	if l == nil {
		return defLogger{}
	}
	return l
}
