package commands

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/agrisense-dev/agrisense/internal/cli/client"
	"github.com/agrisense-dev/agrisense/internal/session"
)

// Env is what every command operates on: one server, its session store and
// an API client bound to that store.
type Env struct {
	ServerURL string
	Store     session.Store
	Client    *client.Client
	Logger    zerolog.Logger
}

// EnvFunc resolves the environment lazily, after flags are parsed.
type EnvFunc func() (*Env, error)

// NewEnv wires a client to store for serverURL.
func NewEnv(serverURL string, store session.Store, logger zerolog.Logger) *Env {
	return &Env{
		ServerURL: serverURL,
		Store:     store,
		Client:    client.New(serverURL, store, logger),
		Logger:    logger,
	}
}

// currentSession loads the stored session; an unreadable store counts as
// anonymous so navigation still works.
func (e *Env) currentSession() session.Session {
	s, err := e.Store.Load()
	if err != nil {
		e.Logger.Warn().Err(err).Msg("Failed to read session store")
		return session.Anonymous
	}
	return s
}

func roleLabel(r session.Role) string {
	switch r {
	case session.RoleAdmin:
		return "Admin"
	case session.RoleUser:
		return "User"
	case session.RoleNone:
		return "none"
	default:
		return fmt.Sprint(r)
	}
}
