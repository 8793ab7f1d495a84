package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/agrisense-dev/agrisense/internal/session"
)

var ErrSecretNotInitialized = errors.New("JWT secret not initialized")

// JWTClaims represents the JWT token claims
type JWTClaims struct {
	UserID string       `json:"user_id"`
	Email  string       `json:"email"`
	Role   session.Role `json:"role"`
	jwt.RegisteredClaims
}

// Issuer signs and validates session tokens with an HMAC secret.
// The zero value has no secret and rejects everything until SetSecret is called.
type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewIssuer creates an issuer. A zero ttl issues tokens without expiry.
func NewIssuer(secret string, ttl time.Duration) *Issuer {
	return &Issuer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// SetSecret replaces the signing secret, e.g. after first-run setup.
func (i *Issuer) SetSecret(secret string) {
	i.secret = []byte(secret)
}

// Ready reports whether a secret is configured.
func (i *Issuer) Ready() bool {
	return len(i.secret) > 0
}

func (i *Issuer) clock() time.Time {
	if i.now == nil {
		return time.Now()
	}
	return i.now()
}

// GenerateToken creates a new JWT token for a user
func (i *Issuer) GenerateToken(userID, email string, role session.Role) (string, error) {
	if !i.Ready() {
		return "", ErrSecretNotInitialized
	}

	now := i.clock()
	claims := JWTClaims{
		UserID: userID,
		Email:  email,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}
	if i.ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(i.ttl))
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(i.secret)
}

// ValidateToken validates a JWT token and returns the claims
func (i *Issuer) ValidateToken(tokenString string) (*JWTClaims, error) {
	if !i.Ready() {
		return nil, ErrSecretNotInitialized
	}

	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		// Validate signing method
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return i.secret, nil
	}, jwt.WithTimeFunc(i.clock))

	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	if claims, ok := token.Claims.(*JWTClaims); ok && token.Valid {
		return claims, nil
	}

	return nil, fmt.Errorf("invalid token")
}
