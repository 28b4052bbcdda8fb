package useragent

import (
	"errors"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
	jackson "github.com/goliatone/go-jackson"
)

type idTokenClaims struct {
	jwt.RegisteredClaims
	Name              string `json:"name,omitempty"`
	PreferredUsername string `json:"preferred_username,omitempty"`
	ObjectID          string `json:"oid,omitempty"`
	TenantID          string `json:"tid,omitempty"`
	Nonce             string `json:"nonce,omitempty"`
}

func (c idTokenClaims) account() jackson.Account {
	id := c.ObjectID
	if id == "" {
		id = c.Subject
	}
	return jackson.Account{
		HomeAccountID: id,
		Username:      c.PreferredUsername,
		Name:          c.Name,
		TenantID:      c.TenantID,
	}
}

// idTokenParser reads id token claims, checking signatures when keys are
// configured.
type idTokenParser struct {
	clientID string
	keyfunc  jwt.Keyfunc
}

func newIDTokenParser(cfg Config, logger Logger) (*idTokenParser, error) {
	p := &idTokenParser{clientID: cfg.ClientID}
	if !cfg.verifying() {
		return p, nil
	}

	var given map[string]keyfunc.GivenKey
	if len(cfg.SigningKeys) > 0 {
		given = make(map[string]keyfunc.GivenKey, len(cfg.SigningKeys))
		for kid, key := range cfg.SigningKeys {
			alg := key.JWTAlg
			if alg == "" {
				alg = defaultSigningMethod
			}
			given[kid] = keyfunc.NewGivenCustom(key.Key, keyfunc.GivenKeyOptions{
				Algorithm: alg,
			})
		}
	}

	if cfg.JWKSetURL == "" {
		p.keyfunc = keyfunc.NewGiven(given).Keyfunc
		return p, nil
	}

	jwks, err := keyfunc.Get(cfg.JWKSetURL, keyfunc.Options{
		GivenKeys: given,
		RefreshErrorHandler: func(err error) {
			logger.Warn("failed to refresh JWK set", "url", cfg.JWKSetURL, "error", err)
		},
		RefreshInterval:   time.Hour,
		RefreshRateLimit:  time.Minute * 5,
		RefreshTimeout:    time.Second * 10,
		RefreshUnknownKID: true,
	})
	if err != nil {
		return nil, wrapError(ErrIDTokenInvalid, "jwks", err)
	}
	p.keyfunc = jwks.Keyfunc
	return p, nil
}

func (p *idTokenParser) parse(raw, nonce string) (*idTokenClaims, error) {
	if raw == "" {
		return nil, wrapError(ErrIDTokenInvalid, "id_token", errors.New("missing id token"))
	}

	claims := &idTokenClaims{}
	if p.keyfunc == nil {
		if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
			return nil, wrapError(ErrIDTokenInvalid, "id_token", err)
		}
	} else {
		_, err := jwt.ParseWithClaims(raw, claims, p.keyfunc,
			jwt.WithAudience(p.clientID),
			jwt.WithExpirationRequired(),
		)
		if err != nil {
			return nil, wrapError(ErrIDTokenInvalid, "id_token", err)
		}
	}

	if nonce != "" && claims.Nonce != nonce {
		return nil, wrapError(ErrIDTokenInvalid, "id_token", errors.New("nonce mismatch"))
	}

	return claims, nil
}
