package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	// Database Configuration
	Database DatabaseConfig

	// HTTP Configuration
	HTTP HTTPConfig

	// Auth Configuration
	Auth AuthConfig

	// Logging Configuration
	Logging LoggingConfig
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	URL string
}

// HTTPConfig holds listener and CORS configuration
type HTTPConfig struct {
	ListenAddr  string
	CORSOrigins []string
}

// AuthConfig holds session token settings
type AuthConfig struct {
	TokenTTL time.Duration // 0 issues tokens without expiry
}

// LoggingConfig holds logging-related configuration
type LoggingConfig struct {
	Level  string
	Format string // json, console
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env files (fails silently if files don't exist)
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	ttl, err := time.ParseDuration(getenv("JWT_TTL", "24h"))
	if err != nil {
		return nil, fmt.Errorf("invalid JWT_TTL: %w", err)
	}
	if ttl < 0 {
		return nil, fmt.Errorf("invalid JWT_TTL: must not be negative")
	}

	const defaultOrigin = "http://localhost:4200"
	var origins []string
	for _, o := range strings.Split(getenv("CORS_ORIGINS", defaultOrigin), ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	if len(origins) == 0 {
		origins = []string{defaultOrigin}
	}

	return &Config{
		Database: DatabaseConfig{
			URL: getenv("DATABASE_URL", "agrisense.sqlite"),
		},
		HTTP: HTTPConfig{
			ListenAddr:  getenv("LISTEN_ADDR", ":4000"),
			CORSOrigins: origins,
		},
		Auth: AuthConfig{
			TokenTTL: ttl,
		},
		Logging: LoggingConfig{
			Level:  getenv("LOG_LEVEL", "info"),
			Format: getenv("LOG_FORMAT", "json"),
		},
	}, nil
}
