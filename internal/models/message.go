package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type MessageType string

const (
	MessageTypeText   MessageType = "text"
	MessageTypeImage  MessageType = "image"
	MessageTypeAudio  MessageType = "audio"
	MessageTypeFile   MessageType = "file"
	MessageTypeSystem MessageType = "system"
)

// UserSendable reports whether clients may post messages of this type.
// System messages are only written by the server.
func (t MessageType) UserSendable() bool {
	switch t {
	case MessageTypeText, MessageTypeImage, MessageTypeAudio, MessageTypeFile:
		return true
	}
	return false
}

// Message represents a chat message within a room.
// Replies reference their parent through ReplyTo and are removed with it.
type Message struct {
	ID          string      `gorm:"size:36;primaryKey"`
	RoomID      string      `gorm:"size:36;not null;index"`
	UserID      string      `gorm:"size:36;not null;index"`
	Content     string      `gorm:"type:text;not null;default:''"`
	MessageType MessageType `gorm:"size:20;not null;default:'text'"`
	FileURL     string      `gorm:"size:500"`
	ReplyTo     *string     `gorm:"size:36;index"`
	IsEdited    bool        `gorm:"not null;default:false"`
	CreatedAt   time.Time   `gorm:"index"`

	User      User              `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE;"`
	Replies   []Message         `gorm:"foreignKey:ReplyTo;constraint:OnDelete:CASCADE;"`
	Reactions []MessageReaction `gorm:"constraint:OnDelete:CASCADE;"`
}

func (m *Message) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return nil
}

// MessageReaction is a (message, user, emoji) triple. A user may react with
// several emojis but only once with each.
type MessageReaction struct {
	ID        string `gorm:"size:36;primaryKey"`
	MessageID string `gorm:"size:36;not null;uniqueIndex:unique_reaction,priority:1"`
	UserID    string `gorm:"size:36;not null;uniqueIndex:unique_reaction,priority:2"`
	Emoji     string `gorm:"size:10;not null;uniqueIndex:unique_reaction,priority:3"`
	CreatedAt time.Time

	User User `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE;"`
}

func (r *MessageReaction) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}
