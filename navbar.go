package jackson

import "strings"

// NavTitle is the brand shown on the left of the navbar.
const NavTitle = "Project Jackson"

const (
	navLinkClass       = "nav-link"
	navLinkActiveClass = "nav-link active"
)

// NormalizeBasePath prefixes a non empty base path with a separator unless
// it already starts with one. Both "/" and "\" count as separators.
func NormalizeBasePath(p string) string {
	if p == "" {
		return p
	}
	if p[0] == '/' || p[0] == '\\' {
		return p
	}
	return "/" + p
}

// NavLink is a rendered navbar entry.
type NavLink struct {
	Label  string
	Href   string
	Active bool
	Class  string
}

// AuthButton is the rendered auth trigger control.
type AuthButton struct {
	Label    string
	Action   string
	Disabled bool
}

// Navbar renders the fixed link set under a base path.
type Navbar struct {
	Title    string
	BasePath string
	links    []NavLink
}

// NewNavbar normalizes basePath once and builds the link set.
func NewNavbar(basePath string) Navbar {
	base := NormalizeBasePath(basePath)
	return Navbar{
		Title:    NavTitle,
		BasePath: base,
		links: []NavLink{
			{Label: "Home", Href: base + "/"},
			{Label: "People", Href: base + "/people"},
			{Label: "Titles", Href: base + "/titles"},
		},
	}
}

// Path joins p to the base path.
func (n Navbar) Path(p string) string {
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return n.BasePath + p
}

// Links returns the link set with the active marker set on the link whose
// target equals currentPath exactly.
func (n Navbar) Links(currentPath string) []NavLink {
	out := make([]NavLink, len(n.links))
	for i, link := range n.links {
		link.Active = link.Href == currentPath
		link.Class = navLinkClass
		if link.Active {
			link.Class = navLinkActiveClass
		}
		out[i] = link
	}
	return out
}

// AuthButton describes the auth control for state.
func (n Navbar) AuthButton(state AuthState) AuthButton {
	label := "Log in"
	if state.Authenticated() {
		label = "Log out"
	}
	return AuthButton{
		Label:    label,
		Action:   n.Path("/auth"),
		Disabled: state.Pending,
	}
}
