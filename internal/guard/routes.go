package guard

import (
	"strings"

	"github.com/agrisense-dev/agrisense/internal/session"
)

// Route is a declared route and the capabilities needed to enter it.
type Route struct {
	Path     string
	Requires Capabilities
	// RoleHome marks a route that forwards to the session's home once allowed.
	RoleHome bool
}

// Table is a set of declared routes. Paths not declared fall back to
// Default, which keeps the whole tree protected unless stated otherwise.
type Table struct {
	routes  map[string]Route
	order   []string
	Default Capabilities
}

// NewTable builds a table from routes. Later duplicates replace earlier ones.
func NewTable(fallback Capabilities, routes ...Route) *Table {
	t := &Table{
		routes:  make(map[string]Route, len(routes)),
		Default: fallback.normalize(),
	}
	for _, r := range routes {
		r.Path = NormalizePath(r.Path)
		r.Requires = r.Requires.normalize()
		if _, exists := t.routes[r.Path]; !exists {
			t.order = append(t.order, r.Path)
		}
		t.routes[r.Path] = r
	}
	return t
}

// DefaultTable is the dashboard route tree.
var DefaultTable = NewTable(Authenticated,
	Route{Path: LoginPath, Requires: Public},
	Route{Path: UnauthorizedPath, Requires: Public},

	Route{Path: "/", Requires: Authenticated, RoleHome: true},
	Route{Path: AdminDashboard, Requires: Admin},
	Route{Path: UserDashboard, Requires: Authenticated},

	Route{Path: "/users", Requires: Admin},
	Route{Path: "/device-management", Requires: Admin},
	Route{Path: "/my-devices", Requires: Authenticated},
	Route{Path: "/devices", Requires: Authenticated},
	Route{Path: "/monitoring", Requires: Authenticated},
	Route{Path: "/analytics", Requires: Authenticated},
	Route{Path: "/typography", Requires: Authenticated},
	Route{Path: "/color", Requires: Authenticated},
	Route{Path: "/sample-page", Requires: Authenticated},
	Route{Path: "/profile", Requires: Authenticated},
)

// NormalizePath strips query, fragment and trailing slash, and ensures a
// leading slash.
func NormalizePath(p string) string {
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	p = strings.TrimSpace(p)
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 {
		p = strings.TrimRight(p, "/")
		if p == "" {
			p = "/"
		}
	}
	return p
}

// Lookup returns the route declared for path. An undeclared path inherits
// the requirements of its nearest declared ancestor below the root, and
// falls back to the table's default capabilities when there is none.
func (t *Table) Lookup(path string) (Route, bool) {
	path = NormalizePath(path)
	if r, ok := t.routes[path]; ok {
		return r, true
	}

	for parent := path; ; {
		i := strings.LastIndex(parent, "/")
		if i <= 0 {
			break
		}
		parent = parent[:i]
		if r, ok := t.routes[parent]; ok {
			return Route{Path: path, Requires: r.Requires}, false
		}
	}

	return Route{Path: path, Requires: t.Default}, false
}

// Routes returns the declared routes in declaration order.
func (t *Table) Routes() []Route {
	out := make([]Route, 0, len(t.order))
	for _, p := range t.order {
		out = append(out, t.routes[p])
	}
	return out
}

// Navigate evaluates a navigation attempt to path. An allowed RoleHome
// route redirects to the session's home.
func (t *Table) Navigate(path string, s session.Session) Decision {
	route, _ := t.Lookup(path)

	d := Evaluate(route.Requires, s)
	if d.Allowed() && route.RoleHome {
		d.Redirect = HomeFor(s.EffectiveRole())
	}
	return d
}
