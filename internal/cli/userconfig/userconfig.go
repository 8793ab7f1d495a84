package userconfig

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/agrisense-dev/agrisense/internal/session"
)

const (
	configDirName   = "agrisense"
	configFileName  = "config.json"
	sessionFileName = "session.json"

	DefaultServerURL = "http://localhost:4000"

	StoreKeyring = "keyring"
	StoreFile    = "file"
)

// UserConfig represents the user's local configuration stored in ~/.config/agrisense/config.json
type UserConfig struct {
	ServerURL    string `json:"server_url"`
	SessionStore string `json:"session_store,omitempty"` // "keyring" (default) or "file"
	SessionFile  string `json:"session_file,omitempty"`  // used by the file store
}

// GetConfigDir returns the directory holding the user config and session file
func GetConfigDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	return filepath.Join(homeDir, ".config", configDirName), nil
}

// GetConfigPath returns the path to the user config file
func GetConfigPath() (string, error) {
	dir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, configFileName), nil
}

// Load reads the user configuration file, returning defaults if it doesn't exist
func Load() (*UserConfig, error) {
	configPath, err := GetConfigPath()
	if err != nil {
		return nil, err
	}

	cfg := &UserConfig{}

	data, err := os.ReadFile(configPath)
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return nil, fmt.Errorf("failed to read user config file: %w", err)
	default:
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse user config file: %w", err)
		}
	}

	if cfg.ServerURL == "" {
		cfg.ServerURL = DefaultServerURL
	}
	if cfg.SessionStore == "" {
		cfg.SessionStore = StoreKeyring
	}
	return cfg, nil
}

// Save writes the user configuration to a file
func Save(cfg *UserConfig) error {
	configPath, err := GetConfigPath()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal user config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write user config file: %w", err)
	}

	return nil
}

// NormalizeServerURL validates a server address, defaulting to http when no
// scheme is given
func NormalizeServerURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("server URL is empty")
	}
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid server URL %q: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("invalid server URL %q: scheme must be http or https", raw)
	}
	if u.Host == "" {
		return "", fmt.Errorf("invalid server URL %q: missing host", raw)
	}

	return strings.TrimRight(u.String(), "/"), nil
}

// OpenStore returns the session store configured for serverURL. Both stores
// keep one session per server host.
func (c *UserConfig) OpenStore(serverURL string) (session.Store, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return nil, fmt.Errorf("invalid server URL %q: %w", serverURL, err)
	}

	switch c.SessionStore {
	case StoreKeyring, "":
		return session.NewKeyringStore(u.Host), nil
	case StoreFile:
		path := c.SessionFile
		if path == "" {
			dir, err := GetConfigDir()
			if err != nil {
				return nil, err
			}
			path = filepath.Join(dir, sessionFileName)
		}
		return session.NewFileStore(path, u.Host), nil
	default:
		return nil, fmt.Errorf("unknown session store %q, must be one of: %s, %s", c.SessionStore, StoreKeyring, StoreFile)
	}
}
