package service

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"roomchat/backend/internal/database"
	"roomchat/backend/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const maxEmojiLength = 10

func normalizeEmoji(emoji string) (string, error) {
	emoji = strings.TrimSpace(emoji)
	if emoji == "" {
		return "", fail(ErrValidation, "Emoji is required")
	}
	if utf8.RuneCountInString(emoji) > maxEmojiLength {
		return "", fail(ErrValidation, "Emoji must be at most 10 characters")
	}
	return emoji, nil
}

// AddReaction records the user's emoji on a message. Each (message, user,
// emoji) triple exists at most once.
func (s *MessageService) AddReaction(ctx context.Context, messageID, userID, emoji string) (*models.MessageReaction, error) {
	emoji, err := normalizeEmoji(emoji)
	if err != nil {
		return nil, err
	}
	db := s.db.WithContext(ctx)

	msg, err := findMessage(db, messageID)
	if err != nil {
		return nil, err
	}
	if err := requireMember(db, msg.RoomID, userID); err != nil {
		return nil, err
	}

	var existing int64
	if err := db.Model(&models.MessageReaction{}).
		Where("message_id = ? AND user_id = ? AND emoji = ?", messageID, userID, emoji).
		Count(&existing).Error; err != nil {
		return nil, fmt.Errorf("check reaction: %w", err)
	}
	if existing > 0 {
		return nil, fail(ErrConflict, "Reaction already exists")
	}

	reaction := models.MessageReaction{
		MessageID: messageID,
		UserID:    userID,
		Emoji:     emoji,
		CreatedAt: s.clock.Now(),
	}
	if err := insertReaction(db, &reaction); err != nil {
		return nil, err
	}
	if err := db.First(&reaction.User, "id = ?", userID).Error; err != nil {
		return nil, fmt.Errorf("load reacting user: %w", err)
	}
	return &reaction, nil
}

// insertReaction stores r. The unique index turns a reaction created since
// the existence check into a conflict.
func insertReaction(db *gorm.DB, r *models.MessageReaction) error {
	if err := db.Omit(clause.Associations).Create(r).Error; err != nil {
		if database.IsUniqueViolation(err) {
			return fail(ErrConflict, "Reaction already exists")
		}
		return fmt.Errorf("create reaction: %w", err)
	}
	return nil
}

// RemoveReaction deletes the user's emoji from a message. Membership is not
// checked, so users who left a room can still withdraw their reactions.
func (s *MessageService) RemoveReaction(ctx context.Context, messageID, userID, emoji string) error {
	emoji, err := normalizeEmoji(emoji)
	if err != nil {
		return err
	}
	res := s.db.WithContext(ctx).
		Where("message_id = ? AND user_id = ? AND emoji = ?", messageID, userID, emoji).
		Delete(&models.MessageReaction{})
	if res.Error != nil {
		return fmt.Errorf("delete reaction: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fail(ErrNotFound, "Reaction not found")
	}
	return nil
}
