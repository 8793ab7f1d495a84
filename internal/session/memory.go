package session

import "sync"

const (
	tokenKey = "token"
	roleKey  = "role"
)

// MemoryStore keeps the session entries in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]string
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]string)}
}

func (m *MemoryStore) Load() (Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return Session{
		Token: m.entries[tokenKey],
		Role:  ParseRole(m.entries[roleKey]),
	}, nil
}

func (m *MemoryStore) Save(s Session) error {
	if s.Token == "" {
		return m.Clear()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries = map[string]string{
		tokenKey: s.Token,
		roleKey:  s.Role.String(),
	}
	return nil
}

func (m *MemoryStore) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries = make(map[string]string)
	return nil
}
