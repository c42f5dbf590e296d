package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"roomchat/backend/internal/clock"
	"roomchat/backend/internal/metrics"
	"roomchat/backend/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	DefaultPerPage = 50
	MaxPerPage     = 100
)

// MessageService manages room messages and their reactions.
type MessageService struct {
	db    *gorm.DB
	clock clock.Clock
}

// NewMessageService creates a MessageService.
func NewMessageService(db *gorm.DB, clk clock.Clock) *MessageService {
	return &MessageService{db: db, clock: clk}
}

// MessageView is a message with its author and reactions grouped by emoji.
type MessageView struct {
	models.Message
	Reactions map[string][]models.User
}

// Pagination describes one page of a listing.
type Pagination struct {
	Page    int
	PerPage int
	Total   int64
	Pages   int
}

// NormalizePage applies the listing defaults: page 1, 50 per page, at most
// MaxPerPage per page.
func NormalizePage(page, perPage int) (int, int) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = DefaultPerPage
	}
	if perPage > MaxPerPage {
		perPage = MaxPerPage
	}
	return page, perPage
}

// SendInput is a message posted by a room member.
type SendInput struct {
	Content     string
	MessageType models.MessageType
	FileURL     string
	ReplyTo     string
}

// List returns one page of the room's messages, newest first. Pages past
// the end are empty.
func (s *MessageService) List(ctx context.Context, roomID, requesterID string, page, perPage int) ([]MessageView, *Pagination, error) {
	db := s.db.WithContext(ctx)
	page, perPage = NormalizePage(page, perPage)

	if err := requireMember(db, roomID, requesterID); err != nil {
		return nil, nil, err
	}

	var total int64
	if err := db.Model(&models.Message{}).Where("room_id = ?", roomID).Count(&total).Error; err != nil {
		return nil, nil, fmt.Errorf("count messages: %w", err)
	}

	pagination := &Pagination{
		Page:    page,
		PerPage: perPage,
		Total:   total,
		Pages:   int((total + int64(perPage) - 1) / int64(perPage)),
	}
	// Compare page numbers rather than offsets so huge pages cannot overflow.
	if page > pagination.Pages {
		return []MessageView{}, pagination, nil
	}

	var messages []models.Message
	if err := db.Preload("User").Where("room_id = ?", roomID).
		Order("created_at DESC").Order("id DESC").
		Offset((page - 1) * perPage).Limit(perPage).
		Find(&messages).Error; err != nil {
		return nil, nil, fmt.Errorf("list messages: %w", err)
	}

	reactions, err := reactionsByMessage(db, messages)
	if err != nil {
		return nil, nil, err
	}

	views := make([]MessageView, len(messages))
	for i, m := range messages {
		views[i] = MessageView{Message: m, Reactions: reactions[m.ID]}
		if views[i].Reactions == nil {
			views[i].Reactions = map[string][]models.User{}
		}
	}

	return views, pagination, nil
}

// Send posts a message. A reply must point at a message in the same room.
func (s *MessageService) Send(ctx context.Context, roomID, senderID string, in SendInput) (*models.Message, error) {
	db := s.db.WithContext(ctx)

	if err := requireMember(db, roomID, senderID); err != nil {
		return nil, err
	}

	content := strings.TrimSpace(in.Content)
	fileURL := strings.TrimSpace(in.FileURL)
	if content == "" && fileURL == "" {
		return nil, fail(ErrValidation, "Message content or file is required")
	}
	if len(fileURL) > 500 {
		return nil, fail(ErrValidation, "File URL must be at most 500 characters")
	}
	msgType := in.MessageType
	if msgType == "" {
		msgType = models.MessageTypeText
	}
	if !msgType.UserSendable() {
		return nil, fail(ErrValidation, "Invalid message type")
	}

	var replyTo *string
	if in.ReplyTo != "" {
		var parent models.Message
		err := db.Select("id", "room_id").First(&parent, "id = ?", in.ReplyTo).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("load reply target: %w", err)
		}
		if err != nil || parent.RoomID != roomID {
			return nil, fail(ErrValidation, "Invalid reply message")
		}
		replyTo = &parent.ID
	}

	msg := models.Message{
		RoomID:      roomID,
		UserID:      senderID,
		Content:     content,
		MessageType: msgType,
		FileURL:     fileURL,
		ReplyTo:     replyTo,
		CreatedAt:   s.clock.Now(),
	}
	if err := db.Omit(clause.Associations).Create(&msg).Error; err != nil {
		return nil, fmt.Errorf("create message: %w", err)
	}
	if err := db.First(&msg.User, "id = ?", senderID).Error; err != nil {
		return nil, fmt.Errorf("load author: %w", err)
	}

	metrics.MessagesSent.WithLabelValues(string(msgType)).Inc()
	return &msg, nil
}

// Edit replaces the content of the editor's own message.
func (s *MessageService) Edit(ctx context.Context, messageID, editorID, content string) (*models.Message, error) {
	db := s.db.WithContext(ctx)

	msg, err := findMessage(db.Preload("User"), messageID)
	if err != nil {
		return nil, err
	}
	if msg.UserID != editorID {
		return nil, fail(ErrForbidden, "Can only edit your own messages")
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fail(ErrValidation, "Message content is required")
	}

	if err := db.Model(&models.Message{}).Where("id = ?", messageID).
		Updates(map[string]any{"content": content, "is_edited": true}).Error; err != nil {
		return nil, fmt.Errorf("edit message: %w", err)
	}
	msg.Content = content
	msg.IsEdited = true
	return msg, nil
}

// Delete removes a message together with every reply chain hanging off it.
// Reactions on all removed messages go first. The author and room
// admins/owners may delete.
func (s *MessageService) Delete(ctx context.Context, messageID, requesterID string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		msg, err := findMessage(tx, messageID)
		if err != nil {
			return err
		}

		if msg.UserID != requesterID {
			membership, err := findMembership(tx, msg.RoomID, requesterID)
			if err != nil {
				return err
			}
			if membership == nil || !membership.Role.CanModerate() {
				return fail(ErrForbidden, "Insufficient permissions to delete message")
			}
		}

		ids, err := replyTree(tx, msg.ID)
		if err != nil {
			return err
		}
		if err := tx.Where("message_id IN ?", ids).Delete(&models.MessageReaction{}).Error; err != nil {
			return fmt.Errorf("delete reactions: %w", err)
		}
		if err := tx.Where("id IN ?", ids).Delete(&models.Message{}).Error; err != nil {
			return fmt.Errorf("delete messages: %w", err)
		}
		return nil
	})
}

// replyTree returns rootID and the IDs of every direct or indirect reply.
func replyTree(tx *gorm.DB, rootID string) ([]string, error) {
	ids := []string{rootID}
	frontier := []string{rootID}
	for len(frontier) > 0 {
		var next []string
		if err := tx.Model(&models.Message{}).Where("reply_to IN ?", frontier).Pluck("id", &next).Error; err != nil {
			return nil, fmt.Errorf("collect replies: %w", err)
		}
		ids = append(ids, next...)
		frontier = next
	}
	return ids, nil
}

func findMessage(db *gorm.DB, messageID string) (*models.Message, error) {
	var msg models.Message
	if err := db.First(&msg, "id = ?", messageID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fail(ErrNotFound, "Message not found")
		}
		return nil, fmt.Errorf("load message: %w", err)
	}
	return &msg, nil
}

func requireMember(db *gorm.DB, roomID, userID string) error {
	membership, err := findMembership(db, roomID, userID)
	if err != nil {
		return err
	}
	if membership == nil {
		return fail(ErrForbidden, "Not a member of this room")
	}
	return nil
}

// reactionsByMessage groups the reactions of msgs by message ID and emoji.
func reactionsByMessage(db *gorm.DB, msgs []models.Message) (map[string]map[string][]models.User, error) {
	out := make(map[string]map[string][]models.User, len(msgs))
	if len(msgs) == 0 {
		return out, nil
	}
	ids := make([]string, len(msgs))
	for i, m := range msgs {
		ids[i] = m.ID
	}

	var reactions []models.MessageReaction
	if err := db.Preload("User").Where("message_id IN ?", ids).
		Order("created_at ASC").Order("id ASC").
		Find(&reactions).Error; err != nil {
		return nil, fmt.Errorf("load reactions: %w", err)
	}
	for _, r := range reactions {
		byEmoji, ok := out[r.MessageID]
		if !ok {
			byEmoji = map[string][]models.User{}
			out[r.MessageID] = byEmoji
		}
		byEmoji[r.Emoji] = append(byEmoji[r.Emoji], r.User)
	}
	return out, nil
}
