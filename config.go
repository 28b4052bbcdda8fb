package jackson

import (
	stderrors "errors"
	"regexp"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/goliatone/go-errors"
)

// Build time configuration. These are replaced with -ldflags, e.g.
//
//	go build -ldflags "-X github.com/goliatone/go-jackson.ClientID=<id> -X github.com/goliatone/go-jackson.BasePath=ui"
//
// An empty ClientID disables the identity provider integration.
var (
	ClientID    = ""
	BasePath    = ""
	Authority   = ""
	RedirectURL = ""
	Version     = "0.0.0-dev"
)

var (
	noWhitespace = regexp.MustCompile(`^\S*$`)
	clientIDRule = regexp.MustCompile(`^[A-Za-z0-9._-]*$`)
)

// BaseConfig is the resolved build time configuration.
type BaseConfig struct {
	ClientID    string `json:"client_id"`
	BasePath    string `json:"base_path"`
	Authority   string `json:"authority"`
	RedirectURL string `json:"redirect_url,omitempty"`
}

// DefaultConfig snapshots the build time variables.
func DefaultConfig() BaseConfig {
	return BaseConfig{
		ClientID:    strings.TrimSpace(ClientID),
		BasePath:    NormalizeBasePath(strings.TrimSpace(BasePath)),
		Authority:   strings.TrimSpace(Authority),
		RedirectURL: strings.TrimSpace(RedirectURL),
	}
}

func (c BaseConfig) GetClientID() string {
	return c.ClientID
}

func (c BaseConfig) GetBasePath() string {
	return c.BasePath
}

func (c BaseConfig) GetAuthority() string {
	if c.Authority == "" {
		return DefaultAuthority
	}
	return c.Authority
}

func (c BaseConfig) GetRedirectURL() string {
	return c.RedirectURL
}

// AuthEnabled reports whether the identity provider integration is on.
func (c BaseConfig) AuthEnabled() bool {
	return c.ClientID != ""
}

// Validate will run validation rules
func (c BaseConfig) Validate() error {
	authority := c.GetAuthority()
	if err := errors.ValidateWithOzzo(func() error {
		return validation.ValidateStruct(&c,
			validation.Field(&c.ClientID, validation.Length(0, 128), validation.Match(clientIDRule)),
			validation.Field(&c.BasePath, validation.Match(noWhitespace)),
			validation.Field(&c.RedirectURL, is.URL),
		)
	}, "Invalid build configuration"); err != nil {
		var richErr *errors.Error
		if stderrors.As(err, &richErr) && richErr != nil {
			return richErr.WithTextCode(TextCodeInvalidConfig)
		}
		return err
	}

	if err := validation.Validate(authority, validation.Required, is.URL); err != nil {
		return errors.Wrap(err, errors.CategoryValidation, "Invalid authority").
			WithTextCode(TextCodeInvalidConfig).
			WithCode(errors.CodeBadRequest)
	}

	return nil
}
