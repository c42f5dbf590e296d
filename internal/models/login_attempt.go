package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// LoginAttempt is an append-only audit row consulted by the login throttle.
type LoginAttempt struct {
	ID          string    `gorm:"size:36;primaryKey"`
	IPAddress   string    `gorm:"size:45;not null;index:idx_login_attempt_lookup,priority:1"`
	Username    string    `gorm:"size:80;not null;index:idx_login_attempt_lookup,priority:2"`
	AttemptedAt time.Time `gorm:"not null;index:idx_login_attempt_lookup,priority:3"`
	Successful  bool      `gorm:"not null;default:false"`
}

func (a *LoginAttempt) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}
