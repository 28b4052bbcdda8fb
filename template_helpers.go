package jackson

import (
	"github.com/goliatone/go-router"
)

// Template keys shared by every page.
const (
	ViewKeyNavbar     = "navbar"
	ViewKeyLinks      = "nav_links"
	ViewKeyAuthButton = "auth_button"
	ViewKeyAuth       = "auth"
	ViewKeyFlash      = "flash"
	ViewKeyBasePath   = "base_path"
	ViewKeyPath       = "current_path"
	ViewKeyCSRF       = "csrf_token"
)

// MergeTemplateData adds the shell globals (navbar, auth state) to data.
// Keys already present in data win.
func MergeTemplateData(nav Navbar, state AuthState, currentPath string, data router.ViewContext) router.ViewContext {
	out := router.ViewContext{
		ViewKeyNavbar:     nav,
		ViewKeyLinks:      nav.Links(currentPath),
		ViewKeyAuthButton: nav.AuthButton(state),
		ViewKeyAuth:       authView(state),
		ViewKeyBasePath:   nav.BasePath,
		ViewKeyPath:       currentPath,
	}

	for k, v := range data {
		out[k] = v
	}

	return out
}

func authView(state AuthState) map[string]any {
	return map[string]any{
		"status":        state.Status.String(),
		"authenticated": state.Authenticated(),
		"logged_in":     state.LoggedIn(),
		"account":       state.Account,
		"has_response":  state.HasResponse,
		"response":      state.AuthResponse,
		"pending":       state.Pending,
		"popup_url":     state.PopupURL,
		"version":       state.Version,
	}
}
