// Package guard decides whether a session may enter a route.
//
// Routes carry their required capabilities as data (see Table), so a single
// Evaluate function serves every route. Evaluation is synchronous and only
// inspects the session it is given: a token the server has already revoked
// is not detected here, only by the first API call that is rejected.
package guard

import (
	"fmt"

	"github.com/agrisense-dev/agrisense/internal/session"
)

const (
	LoginPath        = "/login"
	UnauthorizedPath = "/unauthorized"
	AdminDashboard   = "/dashboard/admin-dashboard"
	UserDashboard    = "/dashboard/user-dashboard"
)

// Outcome is the kind of decision the guard reached.
type Outcome uint8

const (
	Allow Outcome = iota
	// RedirectLogin means there is no session; send the client to the login page.
	RedirectLogin
	// Forbidden means the session exists but lacks a required role.
	Forbidden
)

func (o Outcome) String() string {
	switch o {
	case Allow:
		return "allow"
	case RedirectLogin:
		return "redirect_login"
	case Forbidden:
		return "forbidden"
	default:
		return fmt.Sprintf("Outcome(%d)", uint8(o))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (o *Outcome) UnmarshalText(text []byte) error {
	switch string(text) {
	case "allow":
		*o = Allow
	case "redirect_login":
		*o = RedirectLogin
	case "forbidden":
		*o = Forbidden
	default:
		return fmt.Errorf("unknown guard outcome %q", text)
	}
	return nil
}

// Decision is the result of a guard evaluation. Redirect is empty when the
// navigation may proceed to the requested route.
type Decision struct {
	Outcome  Outcome `json:"outcome"`
	Redirect string  `json:"redirect,omitempty"`
}

// Allowed reports whether the navigation may proceed.
func (d Decision) Allowed() bool {
	return d.Outcome == Allow
}

// Evaluate decides whether s satisfies required.
func Evaluate(required Capabilities, s session.Session) Decision {
	required = required.normalize()

	if required.Has(CapAuthenticated) && !s.Authenticated() {
		return Decision{Outcome: RedirectLogin, Redirect: LoginPath}
	}

	if required.Has(CapAdmin) && s.EffectiveRole() != session.RoleAdmin {
		return Decision{Outcome: Forbidden, Redirect: UnauthorizedPath}
	}

	return Decision{Outcome: Allow}
}

// HomeFor returns the landing route for a role.
func HomeFor(r session.Role) string {
	switch r {
	case session.RoleAdmin:
		return AdminDashboard
	case session.RoleUser, session.RoleNone:
		return UserDashboard
	default:
		return UserDashboard
	}
}
