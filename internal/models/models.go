package models

import (
	"time"

	"github.com/oklog/ulid/v2"
	"gorm.io/gorm"

	"github.com/agrisense-dev/agrisense/internal/session"
)

// BaseModel provides common fields and auto-generated ULID for all models
type BaseModel struct {
	ID        string    `json:"id" gorm:"primaryKey;type:varchar(26)"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// BeforeCreate generates a ULID for the ID field if it's empty
func (b *BaseModel) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		b.ID = ulid.Make().String()
	}
	return nil
}

// Config is the deployment-wide settings row (only one row should exist)
type Config struct {
	BaseModel
	JWTSecret string `json:"-" gorm:"type:varchar(64);not null"` // Generated on first setup (64 hex chars)
}

// User is a dashboard account
type User struct {
	BaseModel
	Email        string       `json:"email" gorm:"unique;not null"`
	PasswordHash string       `json:"-" gorm:"not null"`
	Name         string       `json:"name"`
	Role         session.Role `json:"role" gorm:"type:varchar(16);not null;default:'user'"`
	UpdatedAt    time.Time    `json:"updated_at" gorm:"autoUpdateTime"`
}

// IsAdmin reports whether the user holds the admin role
func (u *User) IsAdmin() bool {
	return u.Role == session.RoleAdmin
}

// AutoMigrate runs database migrations for all models
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&User{}, &Config{})
}

// FindByID safely finds a record by string ID
func FindByID[T any](db *gorm.DB, id string, model *T) error {
	return db.Where("id = ?", id).First(model).Error
}
