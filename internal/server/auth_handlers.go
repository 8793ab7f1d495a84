package server

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/agrisense-dev/agrisense/internal/auth"
	"github.com/agrisense-dev/agrisense/internal/guard"
	"github.com/agrisense-dev/agrisense/internal/models"
	"github.com/agrisense-dev/agrisense/internal/session"
)

// SetupRequest represents the first-run setup request
type SetupRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
	Name     string `json:"name" binding:"required"`
}

// LoginRequest represents a login request
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse carries the two facts the client persists: token and role
type LoginResponse struct {
	Token string       `json:"token"`
	Role  session.Role `json:"role"`
	Home  string       `json:"home"`
	User  *UserDetail  `json:"user"`
}

// UserDetail represents user information returned in responses
type UserDetail struct {
	ID        string       `json:"id"`
	Email     string       `json:"email"`
	Name      string       `json:"name"`
	Role      session.Role `json:"role"`
	CreatedAt time.Time    `json:"created_at"`
}

// CreateUserRequest represents a request to create a new user
type CreateUserRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Name     string `json:"name" binding:"required"`
	Password string `json:"password" binding:"required" validate:"min=8"`
	Role     string `json:"role" binding:"required" validate:"role"`
}

// UpdateUserRequest changes an existing user. Empty fields are left unchanged.
type UpdateUserRequest struct {
	Email    string `json:"email,omitempty" binding:"omitempty,email"`
	Name     string `json:"name,omitempty"`
	Password string `json:"password,omitempty" validate:"omitempty,min=8"`
	Role     string `json:"role,omitempty" validate:"omitempty,role"`
}

// CreateUserResponse includes the created user details
type CreateUserResponse struct {
	User *UserDetail `json:"user"`
}

func newUserDetail(user *models.User) *UserDetail {
	return &UserDetail{
		ID:        user.ID,
		Email:     user.Email,
		Name:      user.Name,
		Role:      user.Role,
		CreatedAt: user.CreatedAt,
	}
}

func (s *Server) issueSession(c *gin.Context, status int, user *models.User) {
	token, err := s.issuer.GenerateToken(user.ID, user.Email, user.Role)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to generate token")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
		return
	}

	c.JSON(status, LoginResponse{
		Token: token,
		Role:  user.Role,
		Home:  guard.HomeFor(user.Role),
		User:  newUserDetail(user),
	})
}

// @Summary First-run setup
// @Description Creates the first admin user (only works if no users exist)
// @Tags auth
// @Accept json
// @Produce json
// @Param request body SetupRequest true "Setup request"
// @Success 200 {object} LoginResponse
// @Failure 400 {object} map[string]interface{}
// @Failure 409 {object} map[string]interface{}
// @Router /api/setup [post]
func (s *Server) setupFirstAdmin(c *gin.Context) {
	var req SetupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	passwordHash, err := auth.HashPassword(req.Password)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to hash password")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create user"})
		return
	}

	// Generate JWT secret (64 hex characters = 32 bytes of randomness)
	secretBytes := make([]byte, 32)
	if _, err := rand.Read(secretBytes); err != nil {
		s.logger.Error().Err(err).Msg("Failed to generate JWT secret")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to initialize system"})
		return
	}
	jwtSecret := hex.EncodeToString(secretBytes)

	user := &models.User{
		Email:        req.Email,
		PasswordHash: passwordHash,
		Name:         req.Name,
		Role:         session.RoleAdmin,
	}

	errSetupDone := errors.New("setup already completed")
	err = s.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.User{}).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return errSetupDone
		}
		if err := tx.Create(&models.Config{JWTSecret: jwtSecret}).Error; err != nil {
			return err
		}
		return tx.Create(user).Error
	})
	if errors.Is(err, errSetupDone) {
		c.JSON(http.StatusConflict, gin.H{"error": "Setup already completed"})
		return
	}
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to complete first-run setup")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to initialize system"})
		return
	}

	s.issuer.SetSecret(jwtSecret)

	s.logger.Info().Str("user_id", user.ID).Str("email", user.Email).Msg("First admin user created")

	s.issueSession(c, http.StatusOK, user)
}

// @Summary Login
// @Description Authenticate with email and password
// @Tags auth
// @Accept json
// @Produce json
// @Param request body LoginRequest true "Login request"
// @Success 200 {object} LoginResponse
// @Failure 400 {object} map[string]interface{}
// @Failure 401 {object} map[string]interface{}
// @Router /api/auth/login [post]
func (s *Server) login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var user models.User
	if err := s.db.WithContext(c.Request.Context()).Where("email = ?", req.Email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid email or password"})
			return
		}
		s.logger.Error().Err(err).Msg("Failed to find user")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	if err := auth.VerifyPassword(req.Password, user.PasswordHash); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid email or password"})
		return
	}

	if !user.Role.Valid() {
		s.logger.Warn().Str("user_id", user.ID).Msg("Login refused for user without a role")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid email or password"})
		return
	}

	s.logger.Info().Str("user_id", user.ID).Str("email", user.Email).Stringer("role", user.Role).Msg("User logged in")

	s.issueSession(c, http.StatusOK, &user)
}

// @Summary Logout
// @Description Acknowledge a logout; tokens are stateless, so the client discards its session
// @Tags auth
// @Security BearerAuth
// @Success 204
// @Router /api/auth/logout [post]
func (s *Server) logout(c *gin.Context) {
	sessionData, _ := GetSessionData(c)
	s.logger.Info().Str("user_id", sessionData.UserID).Msg("User logged out")
	c.Status(http.StatusNoContent)
}

// @Summary Get current user
// @Description Get information about the currently authenticated user
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} UserDetail
// @Failure 401 {object} map[string]interface{}
// @Router /api/auth/me [get]
func (s *Server) getCurrentUser(c *gin.Context) {
	sessionData, exists := GetSessionData(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var user models.User
	if err := models.FindByID(s.db.WithContext(c.Request.Context()), sessionData.UserID, &user); err != nil {
		s.logger.Error().Err(err).Str("user_id", sessionData.UserID).Msg("Failed to find user")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, newUserDetail(&user))
}

// @Summary List users
// @Description List all users (admin only)
// @Tags users
// @Produce json
// @Security BearerAuth
// @Success 200 {array} UserDetail
// @Failure 401 {object} map[string]interface{}
// @Failure 403 {object} map[string]interface{}
// @Router /api/users [get]
func (s *Server) listUsers(c *gin.Context) {
	var users []models.User
	if err := s.db.WithContext(c.Request.Context()).Order("created_at DESC").Find(&users).Error; err != nil {
		s.logger.Error().Err(err).Msg("Failed to list users")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	userDetails := make([]*UserDetail, len(users))
	for i := range users {
		userDetails[i] = newUserDetail(&users[i])
	}

	c.JSON(http.StatusOK, userDetails)
}

// @Summary Create user
// @Description Create a new user (admin only)
// @Tags users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CreateUserRequest true "Create user request"
// @Success 201 {object} CreateUserResponse
// @Failure 400 {object} map[string]interface{}
// @Failure 401 {object} map[string]interface{}
// @Failure 403 {object} map[string]interface{}
// @Failure 409 {object} map[string]interface{}
// @Router /api/users [post]
func (s *Server) createUser(c *gin.Context) {
	var req CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := s.validator.Struct(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()

	var existing int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("email = ?", req.Email).Count(&existing).Error; err != nil {
		s.logger.Error().Err(err).Msg("Failed to check for existing user")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	if existing > 0 {
		c.JSON(http.StatusConflict, gin.H{"error": "A user with this email already exists"})
		return
	}

	passwordHash, err := auth.HashPassword(req.Password)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to hash password")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create user"})
		return
	}

	user := &models.User{
		Email:        req.Email,
		PasswordHash: passwordHash,
		Name:         req.Name,
		Role:         session.ParseRole(req.Role),
	}

	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		s.logger.Error().Err(err).Msg("Failed to create user")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create user"})
		return
	}

	sessionData, _ := GetSessionData(c)
	s.logger.Info().
		Str("user_id", user.ID).
		Str("email", user.Email).
		Stringer("role", user.Role).
		Str("created_by", sessionData.UserID).
		Msg("User created")

	c.JSON(http.StatusCreated, CreateUserResponse{User: newUserDetail(user)})
}

// @Summary Delete user
// @Description Delete a user (admin only, cannot delete self)
// @Tags users
// @Produce json
// @Security BearerAuth
// @Param id path string true "User ID"
// @Success 204
// @Failure 400 {object} map[string]interface{}
// @Failure 401 {object} map[string]interface{}
// @Failure 403 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Router /api/users/{id} [delete]
func (s *Server) deleteUser(c *gin.Context) {
	userID := c.Param("id")

	sessionData, _ := GetSessionData(c)

	if userID == sessionData.UserID {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Cannot delete yourself"})
		return
	}

	db := s.db.WithContext(c.Request.Context())

	var user models.User
	if err := models.FindByID(db, userID, &user); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
			return
		}
		s.logger.Error().Err(err).Msg("Failed to find user")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	if err := db.Delete(&user).Error; err != nil {
		s.logger.Error().Err(err).Msg("Failed to delete user")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete user"})
		return
	}

	s.logger.Info().
		Str("user_id", userID).
		Str("deleted_by", sessionData.UserID).
		Msg("User deleted")

	c.Status(http.StatusNoContent)
}

// @Summary Update user
// @Description Update a user's email, name, password or role (admin only, cannot demote self)
// @Tags users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "User ID"
// @Param request body UpdateUserRequest true "Update user request"
// @Success 200 {object} UserDetail
// @Failure 400 {object} map[string]interface{}
// @Failure 401 {object} map[string]interface{}
// @Failure 403 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Failure 409 {object} map[string]interface{}
// @Router /api/users/{id} [put]
func (s *Server) updateUser(c *gin.Context) {
	userID := c.Param("id")

	var req UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := s.validator.Struct(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sessionData, _ := GetSessionData(c)
	db := s.db.WithContext(c.Request.Context())

	var user models.User
	if err := models.FindByID(db, userID, &user); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
			return
		}
		s.logger.Error().Err(err).Msg("Failed to find user")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	if req.Email != "" && req.Email != user.Email {
		var existing int64
		if err := db.Model(&models.User{}).Where("email = ? AND id <> ?", req.Email, user.ID).Count(&existing).Error; err != nil {
			s.logger.Error().Err(err).Msg("Failed to check for existing user")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
			return
		}
		if existing > 0 {
			c.JSON(http.StatusConflict, gin.H{"error": "A user with this email already exists"})
			return
		}
		user.Email = req.Email
	}

	if req.Name != "" {
		user.Name = req.Name
	}

	if req.Role != "" {
		user.Role = session.ParseRole(req.Role)
	}

	// Admins cannot lock themselves out of user management
	if user.ID == sessionData.UserID && !user.IsAdmin() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Cannot remove your own admin role"})
		return
	}

	if req.Password != "" {
		passwordHash, err := auth.HashPassword(req.Password)
		if err != nil {
			s.logger.Error().Err(err).Msg("Failed to hash password")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update user"})
			return
		}
		user.PasswordHash = passwordHash
	}

	if err := db.Save(&user).Error; err != nil {
		s.logger.Error().Err(err).Msg("Failed to update user")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update user"})
		return
	}

	s.logger.Info().
		Str("user_id", user.ID).
		Stringer("role", user.Role).
		Str("updated_by", sessionData.UserID).
		Msg("User updated")

	c.JSON(http.StatusOK, newUserDetail(&user))
}
