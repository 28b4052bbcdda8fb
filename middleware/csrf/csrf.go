package csrf

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-router"
)

const (
	TextCodeTokenMissing  = "csrf_token_missing"
	TextCodeTokenMismatch = "csrf_token_mismatch"
	TextCodeTokenExpired  = "csrf_token_expired"
)

var (
	ErrTokenMissing = errors.New("CSRF token missing", errors.CategoryBadInput).
			WithTextCode(TextCodeTokenMissing).
			WithCode(errors.CodeBadRequest)
	ErrTokenMismatch = errors.New("CSRF token mismatch", errors.CategoryAuthz).
				WithTextCode(TextCodeTokenMismatch).
				WithCode(errors.CodeForbidden)
	ErrTokenExpired = errors.New("CSRF token expired", errors.CategoryAuthz).
			WithTextCode(TextCodeTokenExpired).
			WithCode(errors.CodeForbidden)
)

// DefaultTokenLength is the nonce length in bytes
const DefaultTokenLength = 16

// DefaultContextKey is the locals key holding the token of the request
const DefaultContextKey = "csrf_token"

// DefaultFormFieldName is the form field the shell forms post the token in
const DefaultFormFieldName = "_token"

// DefaultHeaderName is the header scripts send the token in
const DefaultHeaderName = "X-CSRF-Token"

// Config defines the configuration for CSRF middleware
type Config struct {
	// Skip defines a function to skip middleware
	Skip func(router.Context) bool

	TokenLength   int
	ContextKey    string
	FormFieldName string
	HeaderName    string

	// SafeMethods are not validated, they only receive a fresh token
	SafeMethods []string

	// Expiration bounds the token age. Zero disables the check.
	Expiration time.Duration

	// SecureKey signs tokens. At least 32 bytes; a random key is generated
	// when empty, which invalidates tokens across restarts.
	SecureKey []byte

	ErrorHandler router.ErrorHandler

	now func() time.Time
}

// New creates the stateless CSRF middleware. Every request gets a token
// bound to the client address; unsafe methods must echo one back.
func New(config ...Config) router.MiddlewareFunc {
	cfg := configDefault(config...)

	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(ctx router.Context) error {
			if cfg.Skip != nil && cfg.Skip(ctx) {
				return next(ctx)
			}

			if slices.Contains(cfg.SafeMethods, strings.ToUpper(ctx.Method())) {
				token, err := cfg.generate(ctx)
				if err != nil {
					return cfg.ErrorHandler(ctx, err)
				}
				ctx.Locals(cfg.ContextKey, token)
				return next(ctx)
			}

			if err := cfg.validate(ctx, extractToken(ctx, cfg)); err != nil {
				return cfg.ErrorHandler(ctx, err)
			}

			return next(ctx)
		}
	}
}

// TokenFromContext returns the token the middleware stored for the request
func TokenFromContext(ctx router.Context) string {
	if ctx == nil {
		return ""
	}
	token, _ := ctx.Locals(DefaultContextKey).(string)
	return token
}

func (cfg Config) generate(ctx router.Context) (string, error) {
	nonce := make([]byte, cfg.TokenLength)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", errors.Wrap(err, errors.CategoryInternal, "unable to generate CSRF token")
	}

	payload := fmt.Sprintf("%d:%s:%s", cfg.now().UTC().Unix(), hex.EncodeToString(nonce), sessionKey(ctx))
	token := payload + ":" + hex.EncodeToString(cfg.sign(payload))
	return base64.RawURLEncoding.EncodeToString([]byte(token)), nil
}

func (cfg Config) validate(ctx router.Context, token string) error {
	if token == "" {
		return ErrTokenMissing
	}

	decoded, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return ErrTokenMismatch
	}

	parts := strings.Split(string(decoded), ":")
	if len(parts) != 4 {
		return ErrTokenMismatch
	}

	timestamp, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return ErrTokenMismatch
	}

	signature, err := hex.DecodeString(parts[3])
	if err != nil {
		return ErrTokenMismatch
	}

	if !hmac.Equal(signature, cfg.sign(strings.Join(parts[:3], ":"))) {
		return ErrTokenMismatch
	}

	if !hmac.Equal([]byte(parts[2]), []byte(sessionKey(ctx))) {
		return ErrTokenMismatch
	}

	if cfg.Expiration > 0 && cfg.now().UTC().After(time.Unix(timestamp, 0).Add(cfg.Expiration)) {
		return ErrTokenExpired
	}

	return nil
}

func (cfg Config) sign(payload string) []byte {
	mac := hmac.New(sha256.New, cfg.SecureKey)
	mac.Write([]byte(payload))
	return mac.Sum(nil)
}

// the shell has no server side session, tokens are bound to the client IP
func sessionKey(ctx router.Context) string {
	return "ip_" + strings.ReplaceAll(ctx.IP(), ":", "_")
}

func extractToken(ctx router.Context, cfg Config) string {
	if token := ctx.FormValue(cfg.FormFieldName); token != "" {
		return token
	}
	return ctx.Header(cfg.HeaderName)
}

func configDefault(config ...Config) Config {
	var cfg Config
	if len(config) > 0 {
		cfg = config[0]
	}

	if cfg.TokenLength == 0 {
		cfg.TokenLength = DefaultTokenLength
	}

	if cfg.ContextKey == "" {
		cfg.ContextKey = DefaultContextKey
	}

	if cfg.FormFieldName == "" {
		cfg.FormFieldName = DefaultFormFieldName
	}

	if cfg.HeaderName == "" {
		cfg.HeaderName = DefaultHeaderName
	}

	if cfg.SafeMethods == nil {
		cfg.SafeMethods = []string{"GET", "HEAD", "OPTIONS", "TRACE"}
	}

	if cfg.ErrorHandler == nil {
		cfg.ErrorHandler = defaultErrorHandler
	}

	if cfg.now == nil {
		cfg.now = time.Now
	}

	cfg.SecureKey = initializeSecureKey(cfg.SecureKey)

	return cfg
}

func defaultErrorHandler(ctx router.Context, err error) error {
	var richErr *errors.Error
	if errors.As(err, &richErr) && richErr.Code != 0 {
		return ctx.Status(richErr.Code).SendString(richErr.Message)
	}
	return ctx.Status(router.StatusInternalServerError).SendString("CSRF validation error")
}

func initializeSecureKey(current []byte) []byte {
	if len(current) > 0 {
		if len(current) < 32 {
			panic(fmt.Errorf("csrf: secure key must be at least 32 bytes, got %d", len(current)))
		}
		return current
	}
	key := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		panic(fmt.Errorf("csrf: unable to initialize secure key: %w", err))
	}
	return key
}
