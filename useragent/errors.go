package useragent

import (
	"errors"
	"fmt"
	"net/http"

	goerrors "github.com/goliatone/go-errors"
)

const (
	TextCodeClientIDRequired  = "useragent_client_id_required"
	TextCodePopupTimeout      = "useragent_popup_timeout"
	TextCodePopupClosed       = "useragent_popup_closed"
	TextCodeLoginRequired     = "useragent_login_required"
	TextCodeInvalidState      = "useragent_invalid_state"
	TextCodeStateExpired      = "useragent_state_expired"
	TextCodeLoginFailed       = "useragent_login_failed"
	TextCodeTokenExchangeFail = "useragent_token_exchange_failed"
	TextCodeIDTokenInvalid    = "useragent_id_token_invalid"
)

// ErrClientIDRequired is returned by New without a client id.
var ErrClientIDRequired = goerrors.New("client id is required", goerrors.CategoryValidation).
	WithTextCode(TextCodeClientIDRequired).
	WithCode(goerrors.CodeBadRequest)

// ErrPopupTimeout is returned when the popup never reports back.
var ErrPopupTimeout = goerrors.New("login popup timed out", goerrors.CategoryAuth).
	WithTextCode(TextCodePopupTimeout).
	WithCode(http.StatusRequestTimeout)

// ErrPopupClosed is returned when the login was abandoned.
var ErrPopupClosed = goerrors.New("login popup was closed", goerrors.CategoryAuth).
	WithTextCode(TextCodePopupClosed).
	WithCode(goerrors.CodeUnauthorized)

// ErrLoginRequired is returned by silent acquisition when an interactive
// login is needed.
var ErrLoginRequired = goerrors.New("interaction required", goerrors.CategoryAuth).
	WithTextCode(TextCodeLoginRequired).
	WithCode(goerrors.CodeUnauthorized)

var ErrInvalidState = goerrors.New("invalid oauth state", goerrors.CategoryBadInput).
	WithTextCode(TextCodeInvalidState).
	WithCode(goerrors.CodeBadRequest)

var ErrStateExpired = goerrors.New("oauth state expired", goerrors.CategoryBadInput).
	WithTextCode(TextCodeStateExpired).
	WithCode(goerrors.CodeBadRequest)

// ErrLoginFailed is returned when the provider redirect carries an error.
var ErrLoginFailed = goerrors.New("login failed", goerrors.CategoryAuth).
	WithTextCode(TextCodeLoginFailed).
	WithCode(goerrors.CodeUnauthorized)

var ErrTokenExchangeFailed = goerrors.New("token exchange failed", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenExchangeFail).
	WithCode(goerrors.CodeUnauthorized)

var ErrIDTokenInvalid = goerrors.New("invalid id token", goerrors.CategoryAuth).
	WithTextCode(TextCodeIDTokenInvalid).
	WithCode(goerrors.CodeUnauthorized)

// ProviderError captures an error response from the identity provider.
type ProviderError struct {
	Operation   string
	Status      int
	Code        string
	Description string
	Err         error
}

func (e *ProviderError) Error() string {
	if e == nil {
		return "provider error"
	}

	scope := "provider"
	if e.Operation != "" {
		scope = e.Operation
	}

	switch {
	case e.Description != "":
		return fmt.Sprintf("%s failed: %s", scope, e.Description)
	case e.Code != "":
		return fmt.Sprintf("%s failed: %s", scope, e.Code)
	case e.Err != nil:
		return fmt.Sprintf("%s failed: %v", scope, e.Err)
	}
	return fmt.Sprintf("%s failed", scope)
}

func (e *ProviderError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func (e *ProviderError) Metadata() map[string]any {
	if e == nil {
		return nil
	}

	meta := map[string]any{}
	if e.Operation != "" {
		meta["operation"] = e.Operation
	}
	if e.Status != 0 {
		meta["status"] = e.Status
	}
	if e.Code != "" {
		meta["code"] = e.Code
	}
	if e.Description != "" {
		meta["description"] = e.Description
	}
	return meta
}

func providerError(operation string, status int, code, description string, err error) error {
	return &ProviderError{
		Operation:   operation,
		Status:      status,
		Code:        code,
		Description: description,
		Err:         err,
	}
}

// wrapError clones base and attaches err as source, lifting provider
// details into the metadata.
func wrapError(base *goerrors.Error, operation string, err error) error {
	if base == nil {
		return err
	}

	meta := map[string]any{}
	if operation != "" {
		meta["operation"] = operation
	}

	var perr *ProviderError
	if errors.As(err, &perr) && perr != nil {
		for k, v := range perr.Metadata() {
			meta[k] = v
		}
	} else if err != nil {
		meta["error"] = err.Error()
	}

	clone := base.Clone()
	if clone == nil {
		clone = base
	}
	if err != nil {
		clone.Source = err
	}
	if len(meta) > 0 {
		clone.WithMetadata(meta)
	}
	return clone
}
