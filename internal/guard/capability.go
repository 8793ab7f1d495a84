package guard

import "strings"

// Capability is a named requirement a route can declare.
type Capability uint8

const (
	CapAuthenticated Capability = 1 << iota
	CapAdmin
)

// Capabilities is a set of required capabilities.
type Capabilities uint8

// Public requires nothing.
const Public Capabilities = 0

// Require builds a capability set. Admin implies authenticated.
func Require(caps ...Capability) Capabilities {
	var set Capabilities
	for _, c := range caps {
		set |= Capabilities(c)
	}
	return set.normalize()
}

func (s Capabilities) normalize() Capabilities {
	if s.Has(CapAdmin) {
		s |= Capabilities(CapAuthenticated)
	}
	return s
}

var (
	// Authenticated requires a logged-in session.
	Authenticated = Require(CapAuthenticated)
	// Admin requires a logged-in admin session.
	Admin = Require(CapAdmin)
)

// Has reports whether c is part of the set.
func (s Capabilities) Has(c Capability) bool {
	return s&Capabilities(c) != 0
}

func (s Capabilities) String() string {
	var names []string
	if s.Has(CapAuthenticated) {
		names = append(names, "authenticated")
	}
	if s.Has(CapAdmin) {
		names = append(names, "admin")
	}
	if len(names) == 0 {
		return "public"
	}
	return strings.Join(names, ",")
}
