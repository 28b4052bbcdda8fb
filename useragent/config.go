package useragent

import (
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	DefaultAuthority    = "https://login.microsoftonline.com/common"
	DefaultPopupTimeout = 5 * time.Minute
	DefaultStateTTL     = 10 * time.Minute

	authorizePath = "/oauth2/v2.0/authorize"
	tokenPath     = "/oauth2/v2.0/token"
	logoutPath    = "/oauth2/v2.0/logout"
)

// SigningKey is a known id token signing key.
type SigningKey struct {
	Key    any
	JWTAlg string
}

// Config holds the identity provider application settings.
type Config struct {
	ClientID              string
	Authority             string
	RedirectURL           string
	PostLogoutRedirectURL string
	Scopes                []string

	// Endpoint overrides; derived from Authority when empty.
	AuthorizeURL string
	TokenURL     string
	LogoutURL    string

	// JWKSetURL or SigningKeys enable id token signature checks.
	JWKSetURL   string
	SigningKeys map[string]SigningKey

	// StateEncryptionKey must be 16, 24 or 32 bytes. Random keys are
	// generated when both are empty.
	StateEncryptionKey []byte
	StateHMACKey       []byte
	StateTTL           time.Duration

	PopupTimeout time.Duration
	HTTPClient   *http.Client
}

// DefaultScopes are requested on top of the caller's scopes so an id token
// and a refresh token come back.
func DefaultScopes() []string {
	return []string{"openid", "profile", "offline_access"}
}

func (c Config) withDefaults() Config {
	c.Authority = strings.TrimRight(c.Authority, "/")
	if c.Authority == "" {
		c.Authority = DefaultAuthority
	}
	if c.AuthorizeURL == "" {
		c.AuthorizeURL = c.Authority + authorizePath
	}
	if c.TokenURL == "" {
		c.TokenURL = c.Authority + tokenPath
	}
	if c.LogoutURL == "" {
		c.LogoutURL = c.Authority + logoutPath
	}
	if c.PopupTimeout <= 0 {
		c.PopupTimeout = DefaultPopupTimeout
	}
	if c.StateTTL == 0 {
		c.StateTTL = DefaultStateTTL
	}
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}
	return c
}

// tokenURLFor returns the token endpoint for an authority override.
func (c Config) tokenURLFor(authority string) string {
	authority = strings.TrimRight(authority, "/")
	if authority == "" || authority == c.Authority {
		return c.TokenURL
	}
	return authority + tokenPath
}

func (c Config) verifying() bool {
	return c.JWKSetURL != "" || len(c.SigningKeys) > 0
}

var defaultSigningMethod = jwt.SigningMethodRS256.Alg()
