package models

import (
	"time"

	"gorm.io/gorm"
)

type Role string

const (
	RoleUser   Role = "user"
	RoleLawyer Role = "lawyer"
	RoleAdmin  Role = "admin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleLawyer, RoleAdmin:
		return true
	}
	return false
}

type User struct {
	gorm.Model
	Name             string `gorm:"column:name;size:255;not null" json:"name"`
	Handle           string `gorm:"column:handle;size:64;not null;uniqueIndex" json:"handle"`
	Email            string `gorm:"column:email;size:255" json:"email,omitempty"`
	PasswordHash     string `gorm:"column:password_hash;size:255;not null" json:"-"`
	Role             Role   `gorm:"column:role;size:20;not null;default:user;index" json:"role"`
	ProfileImagePath string `gorm:"column:profile_image_path;size:255" json:"profile_image_path,omitempty"`
}

type PasswordResetToken struct {
	gorm.Model
	UserID    uint       `gorm:"column:user_id;not null;index" json:"user_id"`
	TokenHash string     `gorm:"column:token_hash;size:64;not null;uniqueIndex" json:"-"`
	ExpiresAt time.Time  `gorm:"column:expires_at;not null" json:"expires_at"`
	UsedAt    *time.Time `gorm:"column:used_at" json:"used_at,omitempty"`
}
