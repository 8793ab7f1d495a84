package session

import (
	"database/sql/driver"
	"fmt"
	"strings"
)

// Role is the closed set of roles a session can carry.
type Role uint8

const (
	// RoleNone is the absent role: no session, or an unrecognised role tag.
	RoleNone Role = iota
	RoleUser
	RoleAdmin
)

// ParseRole converts a stored or wire role tag into a Role.
// Matching is case-insensitive; unknown tags yield RoleNone.
func ParseRole(s string) Role {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "admin":
		return RoleAdmin
	case "user":
		return RoleUser
	default:
		return RoleNone
	}
}

// String returns the persisted tag for the role ("" for RoleNone).
func (r Role) String() string {
	switch r {
	case RoleAdmin:
		return "admin"
	case RoleUser:
		return "user"
	case RoleNone:
		return ""
	default:
		return fmt.Sprintf("Role(%d)", uint8(r))
	}
}

// Valid reports whether r is one of the assignable roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleUser:
		return true
	case RoleNone:
		return false
	default:
		return false
	}
}

// MarshalText implements encoding.TextMarshaler.
func (r Role) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. Unknown tags decode to RoleNone.
func (r *Role) UnmarshalText(text []byte) error {
	*r = ParseRole(string(text))
	return nil
}

// Value implements driver.Valuer so roles are stored as their tags.
func (r Role) Value() (driver.Value, error) {
	return r.String(), nil
}

// Scan implements sql.Scanner.
func (r *Role) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*r = RoleNone
	case string:
		*r = ParseRole(v)
	case []byte:
		*r = ParseRole(string(v))
	default:
		return fmt.Errorf("cannot scan %T into Role", src)
	}
	return nil
}
