package jackson

import (
	"embed"
)

//go:embed views
var viewsFS embed.FS

// GetViewsFS returns the page templates of the shell
func GetViewsFS() embed.FS {
	return viewsFS
}
