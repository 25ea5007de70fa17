package users

import (
	"time"

	"gorm.io/gorm"
)

// User is the identity record behind a bearer token. Local accounts
// carry a bcrypt hash; provider accounts keep the provider's subject id
// in ExternalID.
type User struct {
	ID         uint   `gorm:"primaryKey" json:"id"`
	Name       string `json:"name"`
	Email      string `json:"email" gorm:"uniqueIndex;not null"`
	Password   string `json:"-"`
	Role       string `json:"role" gorm:"not null;default:user"`
	Provider   string `json:"provider" gorm:"not null;default:local"`
	ExternalID string `json:"-" gorm:"index"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
	DeletedAt  gorm.DeletedAt `gorm:"index"`
}
