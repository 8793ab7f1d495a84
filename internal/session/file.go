package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// fileEntries is one server's session: two plain string entries.
type fileEntries struct {
	Token string `json:"token,omitempty"`
	Role  string `json:"role,omitempty"`
}

// FileStore persists sessions in a small JSON file keyed by server, the same
// scoping the keyring store uses. Several stores may share one file.
type FileStore struct {
	path   string
	server string
}

// NewFileStore returns a store for server backed by the file at path.
func NewFileStore(path, server string) *FileStore {
	return &FileStore{path: path, server: server}
}

// Path returns the backing file location.
func (f *FileStore) Path() string {
	return f.path
}

func (f *FileStore) read() (map[string]fileEntries, error) {
	servers := make(map[string]fileEntries)

	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return servers, nil
		}
		return nil, fmt.Errorf("failed to read session file: %w", err)
	}

	if err := json.Unmarshal(data, &servers); err != nil {
		return nil, fmt.Errorf("failed to parse session file: %w", err)
	}
	return servers, nil
}

func (f *FileStore) Load() (Session, error) {
	servers, err := f.read()
	if err != nil {
		return Anonymous, err
	}

	entries := servers[f.server]
	if entries.Token == "" {
		return Anonymous, nil
	}
	return Session{Token: entries.Token, Role: ParseRole(entries.Role)}, nil
}

// Save atomically replaces this server's entry.
func (f *FileStore) Save(s Session) error {
	if s.Token == "" {
		return f.Clear()
	}

	servers, err := f.read()
	if err != nil {
		return err
	}
	servers[f.server] = fileEntries{Token: s.Token, Role: s.Role.String()}
	return f.write(servers)
}

// Clear removes this server's entry, and the file once no entries remain.
func (f *FileStore) Clear() error {
	servers, err := f.read()
	if err != nil {
		return err
	}
	if _, ok := servers[f.server]; !ok {
		return nil
	}
	delete(servers, f.server)

	if len(servers) == 0 {
		if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to remove session file: %w", err)
		}
		return nil
	}
	return f.write(servers)
}

func (f *FileStore) write(servers map[string]fileEntries) error {
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create session directory: %w", err)
	}

	data, err := json.MarshalIndent(servers, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".session-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp session file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write session file: %w", err)
	}
	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to set session file mode: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close session file: %w", err)
	}

	if err := os.Rename(tmpPath, f.path); err != nil {
		return fmt.Errorf("failed to replace session file: %w", err)
	}
	return nil
}
