package useragent

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	jackson "github.com/goliatone/go-jackson"
)

type Logger = jackson.Logger

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

type Option func(*Application)

// WithOpener sets where popup and logout URLs are published.
func WithOpener(opener Opener) Option {
	return func(a *Application) {
		if opener != nil {
			a.opener = opener
		}
	}
}

func WithLogger(logger Logger) Option {
	return func(a *Application) {
		if logger != nil {
			a.logger = logger
		}
	}
}

func WithStateCodec(codec StateCodec) Option {
	return func(a *Application) {
		a.codec = codec
	}
}

func WithClock(now func() time.Time) Option {
	return func(a *Application) {
		if now != nil {
			a.now = now
		}
	}
}

// Application is a public OAuth2 client using the authorization code flow
// with PKCE. Interactive logins block until the redirect reaches Complete.
type Application struct {
	config   Config
	opener   Opener
	logger   Logger
	codec    StateCodec
	broker   *broker
	cache    *tokenCache
	idtokens *idTokenParser
	now      func() time.Time
}

var _ jackson.IdentityClient = (*Application)(nil)

// New validates cfg and derives the provider endpoints from its authority.
func New(cfg Config, opts ...Option) (*Application, error) {
	if strings.TrimSpace(cfg.ClientID) == "" {
		return nil, ErrClientIDRequired
	}
	cfg = cfg.withDefaults()

	a := &Application{
		config: cfg,
		opener: noopOpener{},
		logger: noopLogger{},
		broker: newBroker(),
		cache:  newTokenCache(),
		now:    time.Now,
	}

	for _, opt := range opts {
		opt(a)
	}

	if a.codec == nil {
		encKey, macKey := cfg.StateEncryptionKey, cfg.StateHMACKey
		if len(encKey) == 0 && len(macKey) == 0 {
			encKey, macKey = randomBytes(32), randomBytes(32)
		}
		codec := NewEncryptedStateCodec(encKey, macKey, cfg.StateTTL)
		codec.now = a.now
		a.codec = codec
	}

	parser, err := newIDTokenParser(cfg, a.logger)
	if err != nil {
		return nil, err
	}
	a.idtokens = parser

	return a, nil
}

// Config returns the resolved configuration.
func (a *Application) Config() Config {
	return a.config
}

// LoginPopup publishes an authorize URL and waits for the redirect.
func (a *Application) LoginPopup(ctx context.Context, scopes []string) (*jackson.LoginResult, error) {
	requested := mergeScopes(mergeScopes(scopes, a.config.Scopes), DefaultScopes())
	verifier := newCodeVerifier()

	st := &LoginState{
		Nonce:        randomToken(16),
		CodeVerifier: verifier,
		RedirectURL:  a.config.RedirectURL,
		Action:       ActionLogin,
	}

	state, err := a.codec.Encode(st)
	if err != nil {
		return nil, err
	}

	done := a.broker.register(st.Nonce)
	defer a.broker.release(st.Nonce)

	a.logger.Debug("opening login popup", "nonce", st.Nonce)
	a.opener.Open(ctx, PopupRequest{
		URL:    a.authorizeURL(state, st.Nonce, verifier, requested),
		Nonce:  st.Nonce,
		Action: ActionLogin,
	})

	timer := time.NewTimer(a.config.PopupTimeout)
	defer timer.Stop()

	var c completion
	select {
	case c = <-done:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, ErrPopupTimeout
	}

	if c.err != nil {
		return nil, c.err
	}

	tok, err := a.exchangeCode(ctx, c.code, verifier, requested)
	if err != nil {
		return nil, wrapError(ErrTokenExchangeFailed, "exchange", err)
	}

	claims, err := a.idtokens.parse(tok.IDToken, st.Nonce)
	if err != nil {
		return nil, err
	}

	account := claims.account()
	a.cache.store(requested, tok, &account)

	granted := tok.Scopes
	if len(granted) == 0 {
		granted = requested
	}

	a.logger.Info("login completed", "account", account.DisplayName())

	return &jackson.LoginResult{
		IDToken:   tok.IDToken,
		Account:   account,
		Scopes:    granted,
		ExpiresAt: tok.ExpiresAt,
	}, nil
}

// Complete delivers the provider redirect to the login waiting on state.
// The provider's own error, if any, is returned as well.
func (a *Application) Complete(_ context.Context, state, code, errCode, errDescription string) error {
	st, err := a.codec.Decode(state)
	if err != nil {
		return err
	}

	var c completion
	switch {
	case errCode != "":
		c.err = wrapError(ErrLoginFailed, "authorize", providerError("authorize", 0, errCode, errDescription, nil))
	case code == "":
		c.err = wrapError(ErrLoginFailed, "authorize", providerError("authorize", 0, "missing_code", "missing authorization code", nil))
	default:
		c.code = code
	}

	if !a.broker.resolve(st.Nonce, c) {
		return wrapError(ErrInvalidState, "authorize", errors.New("no login is waiting for this state"))
	}

	return c.err
}

// Cancel fails every waiting login with ErrPopupClosed.
func (a *Application) Cancel() int {
	return a.broker.cancelAll(ErrPopupClosed)
}

// Pending reports how many logins wait for a redirect.
func (a *Application) Pending() int {
	return a.broker.size()
}

// AcquireTokenSilent returns a cached token or redeems the refresh token.
func (a *Application) AcquireTokenSilent(ctx context.Context, scopes []string, authority string) (string, error) {
	account, refreshToken := a.cache.credentials()
	if account == nil {
		return "", ErrLoginRequired
	}

	requested := mergeScopes(mergeScopes(scopes, a.config.Scopes), DefaultScopes())
	if tok, ok := a.cache.lookup(requested, a.now()); ok {
		return tok, nil
	}

	if refreshToken == "" {
		return "", ErrLoginRequired
	}

	tok, err := a.refresh(ctx, a.config.tokenURLFor(authority), refreshToken, requested)
	if err != nil {
		var perr *ProviderError
		if errors.As(err, &perr) && (perr.Code == "invalid_grant" || perr.Code == "interaction_required") {
			return "", wrapError(ErrLoginRequired, "refresh", err)
		}
		return "", wrapError(ErrTokenExchangeFailed, "refresh", err)
	}

	a.cache.store(requested, tok, nil)
	return tok.AccessToken, nil
}

// Logout forgets the cached account and tokens and publishes the provider
// end session URL.
func (a *Application) Logout(ctx context.Context) error {
	a.cache.clear()

	params := url.Values{"client_id": {a.config.ClientID}}
	if a.config.PostLogoutRedirectURL != "" {
		params.Set("post_logout_redirect_uri", a.config.PostLogoutRedirectURL)
	}

	a.opener.Open(ctx, PopupRequest{
		URL:    a.config.LogoutURL + "?" + params.Encode(),
		Action: ActionLogout,
	})
	return nil
}

func (a *Application) authorizeURL(state, nonce, verifier string, scopes []string) string {
	params := url.Values{
		"client_id":             {a.config.ClientID},
		"response_type":         {"code"},
		"response_mode":         {"query"},
		"redirect_uri":          {a.config.RedirectURL},
		"scope":                 {strings.Join(scopes, " ")},
		"state":                 {state},
		"nonce":                 {nonce},
		"code_challenge":        {codeChallenge(verifier)},
		"code_challenge_method": {"S256"},
		"prompt":                {"select_account"},
	}
	return a.config.AuthorizeURL + "?" + params.Encode()
}

// mergeScopes appends extra to scopes, dropping blanks and duplicates.
func mergeScopes(scopes, extra []string) []string {
	seen := map[string]bool{}
	out := make([]string, 0, len(scopes)+len(extra))
	for _, list := range [][]string{scopes, extra} {
		for _, s := range list {
			s = strings.TrimSpace(s)
			if s == "" || seen[s] {
				continue
			}
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
