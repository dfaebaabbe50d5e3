package models

import (
	"time"

	"github.com/davidnjeri/carhub-backend/pkg/enums"
	"github.com/google/uuid"
)

type User struct {
	ID           uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Email        string         `gorm:"size:255;uniqueIndex;not null" json:"email"`
	PasswordHash string         `gorm:"size:512;not null" json:"-"`
	FullName     string         `gorm:"size:255;not null" json:"fullName"`
	Phone        string         `gorm:"size:32" json:"phone,omitempty"`
	Role         enums.UserRole `gorm:"size:16;not null;default:user" json:"role"`
	CreatedAt    time.Time      `json:"createdAt"`
	UpdatedAt    time.Time      `json:"updatedAt"`
}

func (User) TableName() string { return "users" }
