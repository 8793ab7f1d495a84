package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/agrisense-dev/agrisense/internal/auth"
	"github.com/agrisense-dev/agrisense/internal/guard"
	"github.com/agrisense-dev/agrisense/internal/models"
)

const (
	bearerPrefix = "Bearer "
	sessionKey   = "session"
)

var (
	ErrMissingAuthHeader = errors.New("missing authorization header")
	ErrInvalidAuthFormat = errors.New("invalid authorization header format")
	ErrEmptyToken        = errors.New("empty token")
	ErrInvalidToken      = errors.New("invalid token")
	ErrUserNotFound      = errors.New("user not found")
)

func setSession(c *gin.Context, sessionData *auth.SessionData) {
	c.Set(sessionKey, sessionData)
}

// GetSessionData returns the session resolved by the auth middleware, if any
func GetSessionData(c *gin.Context) (*auth.SessionData, bool) {
	value, exists := c.Get(sessionKey)
	if !exists {
		return nil, false
	}

	sessionData, ok := value.(*auth.SessionData)
	return sessionData, ok && sessionData != nil
}

func extractBearerToken(authHeader string) (string, error) {
	if authHeader == "" {
		return "", ErrMissingAuthHeader
	}

	if !strings.HasPrefix(authHeader, bearerPrefix) {
		return "", ErrInvalidAuthFormat
	}

	token := strings.TrimSpace(strings.TrimPrefix(authHeader, bearerPrefix))
	if token == "" {
		return "", ErrEmptyToken
	}

	return token, nil
}

func respondWithError(c *gin.Context, log zerolog.Logger, statusCode int, err error, message string) {
	log.Warn().Err(err).Str("path", c.Request.URL.Path).Msg(message)
	c.JSON(statusCode, gin.H{"error": message})
	c.Abort()
}

// authenticate resolves the request's bearer token into session data.
// The role comes from the user row, not the token, so a role change made
// through PUT /api/users/:id applies on the user's next request.
func authenticate(c *gin.Context, db *gorm.DB, issuer *auth.Issuer, log zerolog.Logger) (*auth.SessionData, error) {
	token, err := extractBearerToken(c.GetHeader("Authorization"))
	if err != nil {
		return nil, err
	}

	claims, err := issuer.ValidateToken(token)
	if err != nil {
		log.Debug().Err(err).Msg("Failed to validate JWT token")
		return nil, ErrInvalidToken
	}

	var user models.User
	if err := models.FindByID(db.WithContext(c.Request.Context()), claims.UserID, &user); err != nil {
		log.Debug().Err(err).Str("user_id", claims.UserID).Msg("User not found")
		return nil, ErrUserNotFound
	}

	return &auth.SessionData{
		UserID: user.ID,
		Email:  user.Email,
		Role:   user.Role,
		Token:  token,
	}, nil
}

// JWTAuthMiddleware rejects requests without a valid session with 401
func JWTAuthMiddleware(db *gorm.DB, issuer *auth.Issuer, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionData, err := authenticate(c, db, issuer, log)
		if err != nil {
			respondWithError(c, log, http.StatusUnauthorized, err, authFailureMessage(err))
			return
		}

		setSession(c, sessionData)
		c.Next()
	}
}

// OptionalAuthMiddleware continues anonymously when no Authorization header
// is sent. A header that fails validation is rejected with 401 like on any
// protected endpoint, so clients learn their session is gone.
func OptionalAuthMiddleware(db *gorm.DB, issuer *auth.Issuer, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionData, err := authenticate(c, db, issuer, log)
		switch {
		case err == nil:
			setSession(c, sessionData)
		case errors.Is(err, ErrMissingAuthHeader):
		default:
			respondWithError(c, log, http.StatusUnauthorized, err, authFailureMessage(err))
			return
		}
		c.Next()
	}
}

func authFailureMessage(err error) string {
	switch {
	case errors.Is(err, ErrMissingAuthHeader):
		return "Missing authorization header"
	case errors.Is(err, ErrInvalidAuthFormat):
		return "Invalid authorization header format"
	case errors.Is(err, ErrEmptyToken):
		return "Empty token"
	case errors.Is(err, ErrUserNotFound):
		return "User not found"
	default:
		return "Invalid or expired token"
	}
}

// RequireCapabilities applies the route guard to the request's session:
// no session answers 401, a missing role answers 403.
func RequireCapabilities(required guard.Capabilities, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionData, _ := GetSessionData(c)

		decision := guard.Evaluate(required, sessionData.Session())
		switch decision.Outcome {
		case guard.Allow:
			c.Next()
		case guard.RedirectLogin:
			respondWithError(c, log, http.StatusUnauthorized, errors.New("no session"), "Unauthorized")
		case guard.Forbidden:
			respondWithError(c, log, http.StatusForbidden, errors.New("insufficient role"), "Admin access required")
		default:
			respondWithError(c, log, http.StatusForbidden, errors.New("unknown guard outcome"), "Forbidden")
		}
	}
}
