// Package session holds the client's authenticated identity and the durable
// stores it is persisted in.
package session

// Session is the authenticated identity of the current client.
// Role is only meaningful while Token is non-empty.
type Session struct {
	Token string
	Role  Role
}

// Anonymous is the session of a client that never logged in or logged out.
var Anonymous = Session{}

// Authenticated reports whether a token is present.
func (s Session) Authenticated() bool {
	return s.Token != ""
}

// EffectiveRole returns the role, or RoleNone if there is no token.
// A stale role left behind without a token is ignored.
func (s Session) EffectiveRole() Role {
	if !s.Authenticated() {
		return RoleNone
	}
	return s.Role
}

// Store is a durable key/value table holding the session's token and role.
type Store interface {
	Load() (Session, error)
	Save(s Session) error
	Clear() error
}

// Token returns the stored token, or "" if absent or unreadable.
func Token(st Store) string {
	s, err := st.Load()
	if err != nil {
		return ""
	}
	return s.Token
}

// CurrentRole returns the stored role, or RoleNone if absent or unreadable.
// The role is reported as stored; use Session.EffectiveRole for access decisions.
func CurrentRole(st Store) Role {
	s, err := st.Load()
	if err != nil {
		return RoleNone
	}
	return s.Role
}

// SetSession persists a login result. An empty token clears the store.
func SetSession(st Store, token string, role Role) error {
	if token == "" {
		return st.Clear()
	}
	return st.Save(Session{Token: token, Role: role})
}
