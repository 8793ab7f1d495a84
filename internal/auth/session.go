package auth

import "github.com/agrisense-dev/agrisense/internal/session"

// SessionData represents the authenticated session context for a request
type SessionData struct {
	UserID string       `json:"user_id"`
	Email  string       `json:"email"`
	Role   session.Role `json:"role"`
	Token  string       `json:"-"`
}

// Session converts request session data into the value the guard evaluates.
// A nil receiver is an anonymous session.
func (d *SessionData) Session() session.Session {
	if d == nil {
		return session.Anonymous
	}
	return session.Session{Token: d.Token, Role: d.Role}
}
