package jackson

import (
	stderrors "errors"
	"strings"

	"github.com/goliatone/go-errors"
)

const (
	TextCodeClientNotInitialized = "auth_client_not_initialized"
	TextCodeAuthInProgress       = "auth_in_progress"
	TextCodeNoAuthProvider       = "auth_no_provider"
	TextCodeEmptyAccessToken     = "auth_empty_access_token"
	TextCodeInvalidConfig        = "config_invalid"
	TextCodeCollaboratorPanic    = "auth_collaborator_panic"
)

// ErrClientNotInitialized is reported when a client ID is configured but the
// identity client could not be built
var ErrClientNotInitialized = errors.New("userAgentApp not initialized", errors.CategoryInternal).
	WithTextCode(TextCodeClientNotInitialized).
	WithCode(errors.CodeInternal)

// ErrAuthInProgress rejects a trigger while another one is still running
var ErrAuthInProgress = errors.New("authentication already in progress", errors.CategoryConflict).
	WithTextCode(TextCodeAuthInProgress).
	WithCode(errors.CodeConflict)

// ErrNoAuthProvider is returned by an empty AuthContext
var ErrNoAuthProvider = errors.New("no auth provider in context", errors.CategoryInternal).
	WithTextCode(TextCodeNoAuthProvider).
	WithCode(errors.CodeInternal)

// ErrEmptyAccessToken is returned when silent acquisition yields no token
var ErrEmptyAccessToken = errors.New("identity provider returned an empty access token", errors.CategoryAuth).
	WithTextCode(TextCodeEmptyAccessToken).
	WithCode(errors.CodeUnauthorized)

// ResponseMessage converts a collaborator failure into the text shown in the
// auth response banner.
func ResponseMessage(err error) string {
	if err == nil {
		return ""
	}

	var richErr *errors.Error
	if stderrors.As(err, &richErr) && richErr != nil {
		msg := richErr.Message
		if richErr.Metadata != nil {
			if desc, ok := richErr.Metadata["description"].(string); ok && desc != "" && !strings.Contains(msg, desc) {
				msg = msg + ": " + desc
			}
		}
		if msg != "" {
			return msg
		}
	}

	return err.Error()
}

// HasTextCode reports whether err is a rich error with the given text code
func HasTextCode(err error, code string) bool {
	var richErr *errors.Error
	if !stderrors.As(err, &richErr) || richErr == nil {
		return false
	}
	return richErr.TextCode == code
}
