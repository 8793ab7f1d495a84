// Package server
//
// @title AgriSense API
// @version 1.0
// @description Session, navigation and user management API for the AgriSense dashboard
// @host localhost:4000
// @BasePath /
package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/agrisense-dev/agrisense/internal/auth"
	"github.com/agrisense-dev/agrisense/internal/config"
	"github.com/agrisense-dev/agrisense/internal/guard"
	"github.com/agrisense-dev/agrisense/internal/models"
	"github.com/agrisense-dev/agrisense/internal/session"
)

// Server represents the HTTP server
type Server struct {
	router    *gin.Engine
	db        *gorm.DB
	config    *config.Config
	logger    zerolog.Logger
	validator *validator.Validate
	issuer    *auth.Issuer
	routes    *guard.Table
	version   string
	startedAt time.Time
}

// endpoint declares a handler together with the capabilities it requires,
// the same way dashboard routes are declared in guard.Table.
type endpoint struct {
	method   string
	path     string
	requires guard.Capabilities
	handler  gin.HandlerFunc
	// optionalAuth lets requests without a token through anonymously. A token
	// that is sent must still be valid.
	optionalAuth bool
}

// New creates a new server instance backed by the configured sqlite database
func New(cfg *config.Config, zlog zerolog.Logger, version string) (*Server, error) {
	db, err := initDatabase(cfg, zlog)
	if err != nil {
		return nil, err
	}
	return NewWithDB(cfg, db, zlog, version)
}

// NewWithDB creates a server over an already opened database
func NewWithDB(cfg *config.Config, db *gorm.DB, zlog zerolog.Logger, version string) (*Server, error) {
	// Run database migrations
	if err := models.AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	issuer := auth.NewIssuer("", cfg.Auth.TokenTTL)

	// Load JWT secret from database (generated during first setup)
	var settings models.Config
	if err := db.First(&settings).Error; err == nil {
		issuer.SetSecret(settings.JWTSecret)
		zlog.Debug().Msg("Loaded JWT secret from database")
	} else {
		zlog.Info().Msg("No config found - JWT will be initialized during first setup")
	}

	validate := validator.New()
	validate.RegisterValidation("role", func(fl validator.FieldLevel) bool {
		return session.ParseRole(fl.Field().String()).Valid()
	})

	server := &Server{
		db:        db,
		config:    cfg,
		logger:    zlog,
		validator: validate,
		issuer:    issuer,
		routes:    guard.DefaultTable,
		version:   version,
		startedAt: time.Now(),
	}

	server.setupRouter()

	return server, nil
}

// initDatabase initializes the database connection with production settings
func initDatabase(cfg *config.Config, zlog zerolog.Logger) (*gorm.DB, error) {
	const (
		maxOpenConns    = 8
		maxIdleConns    = 4
		connMaxLifetime = 5 * time.Minute
		busyTimeout     = 5000 // 5 seconds
	)

	db, err := gorm.Open(sqlite.Open(cfg.Database.URL), &gorm.Config{
		Logger: logger.New(
			log.New(os.Stdout, "\r\n", log.LstdFlags),
			logger.Config{
				LogLevel:                  logger.Error,
				IgnoreRecordNotFoundError: true,
				SlowThreshold:             200 * time.Millisecond,
			},
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(maxOpenConns)
	sqlDB.SetMaxIdleConns(maxIdleConns)
	sqlDB.SetConnMaxLifetime(connMaxLifetime)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// WAL mode must be set first
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		fmt.Sprintf("PRAGMA busy_timeout=%d", busyTimeout),
		"PRAGMA foreign_keys=1",
	}

	for _, pragma := range pragmas {
		if err := db.Exec(pragma).Error; err != nil {
			zlog.Warn().Str("pragma", pragma).Err(err).Msg("Failed to apply pragma")
		}
	}

	return db, nil
}

func (s *Server) endpoints() []endpoint {
	return []endpoint{
		// Public
		{method: http.MethodGet, path: "/health", requires: guard.Public, handler: s.healthCheck},
		{method: http.MethodPost, path: "/api/setup", requires: guard.Public, handler: s.setupFirstAdmin},
		{method: http.MethodPost, path: "/api/auth/login", requires: guard.Public, handler: s.login},

		// Anonymous callers get the public menu and guard decisions
		{method: http.MethodGet, path: "/api/menu", requires: guard.Public, handler: s.getMenu, optionalAuth: true},
		{method: http.MethodGet, path: "/api/navigate", requires: guard.Public, handler: s.navigate, optionalAuth: true},
		{method: http.MethodGet, path: "/api/routes", requires: guard.Public, handler: s.listRoutes},

		// Authenticated
		{method: http.MethodGet, path: "/api/auth/me", requires: guard.Authenticated, handler: s.getCurrentUser},
		{method: http.MethodPost, path: "/api/auth/logout", requires: guard.Authenticated, handler: s.logout},

		// Admin only
		{method: http.MethodGet, path: "/api/users", requires: guard.Admin, handler: s.listUsers},
		{method: http.MethodPost, path: "/api/users", requires: guard.Admin, handler: s.createUser},
		{method: http.MethodPut, path: "/api/users/:id", requires: guard.Admin, handler: s.updateUser},
		{method: http.MethodDelete, path: "/api/users/:id", requires: guard.Admin, handler: s.deleteUser},
		{method: http.MethodGet, path: "/api/system/info", requires: guard.Admin, handler: s.getSystemInfo},
	}
}

// setupRouter configures the Gin router with routes and middleware
func (s *Server) setupRouter() {
	gin.SetMode(gin.ReleaseMode)

	s.router = gin.New()

	s.router.Use(gin.Recovery())
	s.router.Use(s.loggingMiddleware())

	s.router.Use(cors.New(cors.Config{
		AllowOrigins:     s.config.HTTP.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Length", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	for _, ep := range s.endpoints() {
		var chain []gin.HandlerFunc
		switch {
		case ep.requires.Has(guard.CapAuthenticated):
			chain = append(chain, JWTAuthMiddleware(s.db, s.issuer, s.logger), RequireCapabilities(ep.requires, s.logger))
		case ep.optionalAuth:
			chain = append(chain, OptionalAuthMiddleware(s.db, s.issuer, s.logger))
		}
		chain = append(chain, ep.handler)

		s.router.Handle(ep.method, ep.path, chain...)
	}
}

// loggingMiddleware creates a custom logging middleware using zerolog
func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		s.logger.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", time.Since(start)).
			Str("client_ip", c.ClientIP()).
			Msg("HTTP request")
	}
}

// @Router /health [get]
// @Success 200 {object} map[string]interface{}
func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "online",
		"timestamp": time.Now().UTC(),
		"service":   "agrisense-api",
	})
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server and blocks until SIGINT/SIGTERM
func (s *Server) Start() error {
	addr := s.config.HTTP.ListenAddr

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", addr).Msg("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		return fmt.Errorf("HTTP server error: %w", err)
	case <-sigChan:
		s.logger.Info().Msg("Received shutdown signal, shutting down gracefully...")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Error().Err(err).Msg("Error shutting down HTTP server")
		return err
	}

	// Close database connection to flush WAL writes
	if err := s.Close(); err != nil {
		s.logger.Error().Err(err).Msg("Error closing database")
	}

	s.logger.Info().Msg("Server shutdown complete")
	return nil
}

// Close releases the database handle
func (s *Server) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
