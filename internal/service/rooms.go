package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"roomchat/backend/internal/auth"
	"roomchat/backend/internal/clock"
	"roomchat/backend/internal/metrics"
	"roomchat/backend/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Limits caps room sizes and how many rooms a user may create.
type Limits struct {
	MaxUsersPerRoom int
	MaxRoomsPerUser int
}

// RoomService manages the room directory and memberships.
type RoomService struct {
	db     *gorm.DB
	hasher auth.Hasher
	clock  clock.Clock
	limits Limits
}

// NewRoomService creates a RoomService enforcing limits.
func NewRoomService(db *gorm.DB, hasher auth.Hasher, clk clock.Clock, limits Limits) *RoomService {
	return &RoomService{db: db, hasher: hasher, clock: clk, limits: limits}
}

// CreateRoomInput describes a new room.
type CreateRoomInput struct {
	Name        string
	Description string
	IsPrivate   bool
	Password    string
}

// RoomSummary is a room together with its current member count.
type RoomSummary struct {
	models.Room
	MemberCount int64
}

// RoomView is a room with its full member list, as seen by one requester.
type RoomView struct {
	RoomSummary
	Members  []models.RoomMember
	IsMember bool
}

// CheckPassword reports whether attempt opens the room. Rooms without a
// password accept anything.
func (s *RoomService) CheckPassword(room *models.Room, attempt string) bool {
	if !room.HasPassword() {
		return true
	}
	return s.hasher.Verify(attempt, *room.PasswordHash)
}

// CreateRoom stores the room, the creator's owner membership and the
// creation notice in one transaction.
func (s *RoomService) CreateRoom(ctx context.Context, ownerID string, in CreateRoomInput) (*RoomSummary, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, fail(ErrValidation, "Room name is required")
	}
	if len([]rune(name)) > 100 {
		return nil, fail(ErrValidation, "Room name must be at most 100 characters")
	}

	var passwordHash *string
	if in.Password != "" {
		hash, err := s.hasher.Hash(in.Password)
		if err != nil {
			return nil, fmt.Errorf("hash room password: %w", err)
		}
		passwordHash = &hash
	}

	var room models.Room
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Lock the creator so concurrent creations see each other in the quota count.
		var owner models.User
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&owner, "id = ?", ownerID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fail(ErrNotFound, "User not found")
			}
			return fmt.Errorf("load owner: %w", err)
		}

		var owned int64
		if err := tx.Model(&models.Room{}).Where("created_by = ?", ownerID).Count(&owned).Error; err != nil {
			return fmt.Errorf("count owned rooms: %w", err)
		}
		if owned >= int64(s.limits.MaxRoomsPerUser) {
			return fail(ErrQuotaExceeded, "Room limit reached")
		}

		now := s.clock.Now()
		room = models.Room{
			Name:         name,
			Description:  strings.TrimSpace(in.Description),
			IsPrivate:    in.IsPrivate,
			PasswordHash: passwordHash,
			CreatedBy:    ownerID,
			CreatedAt:    now,
			MaxMembers:   s.limits.MaxUsersPerRoom,
		}
		if err := tx.Omit(clause.Associations).Create(&room).Error; err != nil {
			return fmt.Errorf("create room: %w", err)
		}

		membership := models.RoomMember{
			UserID:   ownerID,
			RoomID:   room.ID,
			Role:     models.RoleOwner,
			JoinedAt: now,
		}
		if err := tx.Omit(clause.Associations).Create(&membership).Error; err != nil {
			return fmt.Errorf("create owner membership: %w", err)
		}

		notice := fmt.Sprintf("Room '%s' was created by %s", name, owner.DisplayName)
		return appendSystemMessage(tx, room.ID, ownerID, notice, now)
	})
	if err != nil {
		return nil, err
	}

	metrics.RoomsCreated.Inc()
	return &RoomSummary{Room: room, MemberCount: 1}, nil
}

// GetRoom returns the room and its members. Private rooms are only visible
// to their members.
func (s *RoomService) GetRoom(ctx context.Context, roomID, requesterID string) (*RoomView, error) {
	db := s.db.WithContext(ctx)

	room, err := findRoom(db, roomID)
	if err != nil {
		return nil, err
	}
	membership, err := findMembership(db, roomID, requesterID)
	if err != nil {
		return nil, err
	}
	if room.IsPrivate && membership == nil {
		return nil, fail(ErrForbidden, "Access denied")
	}

	var members []models.RoomMember
	if err := db.Preload("User").Where("room_id = ?", roomID).
		Order("joined_at ASC").Order("user_id ASC").
		Find(&members).Error; err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}

	return &RoomView{
		RoomSummary: RoomSummary{Room: *room, MemberCount: int64(len(members))},
		Members:     members,
		IsMember:    membership != nil,
	}, nil
}

// ListRooms returns every public room plus the private rooms the requester
// belongs to, newest first, each room once.
func (s *RoomService) ListRooms(ctx context.Context, requesterID string) ([]RoomSummary, error) {
	db := s.db.WithContext(ctx)

	memberOf := db.Model(&models.RoomMember{}).Select("room_id").Where("user_id = ?", requesterID)
	var rooms []models.Room
	if err := db.Where("is_private = ?", false).Or("id IN (?)", memberOf).
		Order("created_at DESC").Order("id ASC").
		Find(&rooms).Error; err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	if len(rooms) == 0 {
		return []RoomSummary{}, nil
	}

	ids := make([]string, len(rooms))
	for i, r := range rooms {
		ids[i] = r.ID
	}
	var counts []struct {
		RoomID string
		Count  int64
	}
	if err := db.Model(&models.RoomMember{}).Select("room_id, COUNT(*) AS count").
		Where("room_id IN ?", ids).Group("room_id").
		Scan(&counts).Error; err != nil {
		return nil, fmt.Errorf("count members: %w", err)
	}
	byRoom := make(map[string]int64, len(counts))
	for _, c := range counts {
		byRoom[c.RoomID] = c.Count
	}

	out := make([]RoomSummary, len(rooms))
	for i, r := range rooms {
		out[i] = RoomSummary{Room: r, MemberCount: byRoom[r.ID]}
	}
	return out, nil
}

// MemberCount returns the number of members currently in the room.
func (s *RoomService) MemberCount(ctx context.Context, roomID string) (int64, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.RoomMember{}).Where("room_id = ?", roomID).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count members: %w", err)
	}
	return count, nil
}

func findRoom(db *gorm.DB, roomID string) (*models.Room, error) {
	var room models.Room
	if err := db.First(&room, "id = ?", roomID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fail(ErrNotFound, "Room not found")
		}
		return nil, fmt.Errorf("load room: %w", err)
	}
	return &room, nil
}

// lockRoom loads the room with a row lock held until the transaction ends.
func lockRoom(tx *gorm.DB, roomID string) (*models.Room, error) {
	return findRoom(tx.Clauses(clause.Locking{Strength: "UPDATE"}), roomID)
}

// findMembership returns nil when the user is not a member.
func findMembership(db *gorm.DB, roomID, userID string) (*models.RoomMember, error) {
	var m models.RoomMember
	err := db.Where("room_id = ? AND user_id = ?", roomID, userID).Limit(1).Find(&m).Error
	if err != nil {
		return nil, fmt.Errorf("load membership: %w", err)
	}
	if m.ID == "" {
		return nil, nil
	}
	return &m, nil
}

// appendSystemMessage narrates a room event. authorID is the user whose
// action produced it.
func appendSystemMessage(tx *gorm.DB, roomID, authorID, content string, at time.Time) error {
	msg := models.Message{
		RoomID:      roomID,
		UserID:      authorID,
		Content:     content,
		MessageType: models.MessageTypeSystem,
		CreatedAt:   at,
	}
	if err := tx.Omit(clause.Associations).Create(&msg).Error; err != nil {
		return fmt.Errorf("append system message: %w", err)
	}
	return nil
}
