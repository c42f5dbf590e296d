package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Role is a member's permission level inside a room.
type Role string

const (
	RoleMember Role = "member"
	RoleAdmin  Role = "admin"
	RoleOwner  Role = "owner"
)

// Rank orders roles so that member < admin < owner.
func (r Role) Rank() int {
	switch r {
	case RoleOwner:
		return 2
	case RoleAdmin:
		return 1
	default:
		return 0
	}
}

// CanModerate reports whether the role may delete other members' messages.
func (r Role) CanModerate() bool {
	return r.Rank() >= RoleAdmin.Rank()
}

// Room is a chat room. Deleting a room removes its members and messages.
type Room struct {
	ID           string `gorm:"size:36;primaryKey"`
	Name         string `gorm:"size:100;not null"`
	Description  string
	IsPrivate    bool    `gorm:"not null;default:false"`
	PasswordHash *string `gorm:"size:128"`
	CreatedBy    string  `gorm:"size:36;not null;index"`
	CreatedAt    time.Time
	MaxMembers   int `gorm:"not null;default:100"`

	Creator  User         `gorm:"foreignKey:CreatedBy;constraint:OnDelete:CASCADE;"`
	Members  []RoomMember `gorm:"constraint:OnDelete:CASCADE;"`
	Messages []Message    `gorm:"constraint:OnDelete:CASCADE;"`
}

func (r *Room) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}

// HasPassword reports whether joining requires a password.
func (r *Room) HasPassword() bool {
	return r.PasswordHash != nil && *r.PasswordHash != ""
}

// RoomMember is the (user, room) membership with its role.
// The unique index keeps one membership per user and room.
type RoomMember struct {
	ID       string `gorm:"size:36;primaryKey"`
	UserID   string `gorm:"size:36;not null;uniqueIndex:unique_membership,priority:1"`
	RoomID   string `gorm:"size:36;not null;uniqueIndex:unique_membership,priority:2;index"`
	Role     Role   `gorm:"size:20;not null;default:'member'"`
	JoinedAt time.Time

	User User `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE;"`
}

func (m *RoomMember) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return nil
}
