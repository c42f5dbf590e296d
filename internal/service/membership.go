package service

import (
	"context"
	"errors"
	"fmt"

	"roomchat/backend/internal/database"
	"roomchat/backend/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// JoinResult reports the joined room and whether the user was already in it.
type JoinResult struct {
	Room          models.Room
	AlreadyMember bool
}

// Join adds the user to the room as a member. Joining a room the user
// already belongs to succeeds without re-checking the password and without
// posting another join notice.
func (s *RoomService) Join(ctx context.Context, roomID, userID, password string) (*JoinResult, error) {
	var result JoinResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		room, err := lockRoom(tx, roomID)
		if err != nil {
			return err
		}
		result.Room = *room

		existing, err := findMembership(tx, roomID, userID)
		if err != nil {
			return err
		}
		if existing != nil {
			result.AlreadyMember = true
			return nil
		}

		if room.IsPrivate || room.HasPassword() {
			if !s.CheckPassword(room, password) {
				return fail(ErrUnauthorized, "Invalid password")
			}
		}

		var count int64
		if err := tx.Model(&models.RoomMember{}).Where("room_id = ?", roomID).Count(&count).Error; err != nil {
			return fmt.Errorf("count members: %w", err)
		}
		if count >= int64(room.MaxMembers) {
			return fail(ErrCapacityExceeded, "Room is full")
		}

		user, err := findUser(tx, userID)
		if err != nil {
			return err
		}

		now := s.clock.Now()
		membership := models.RoomMember{
			UserID:   userID,
			RoomID:   roomID,
			Role:     models.RoleMember,
			JoinedAt: now,
		}
		if err := insertMembership(tx, &membership); err != nil {
			return err
		}

		return appendSystemMessage(tx, roomID, userID, fmt.Sprintf("%s joined the room", user.DisplayName), now)
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// Enter checks that the user may open the room. It changes nothing.
func (s *RoomService) Enter(ctx context.Context, roomID, userID string) (*models.Room, error) {
	db := s.db.WithContext(ctx)
	room, err := findRoom(db, roomID)
	if err != nil {
		return nil, err
	}
	membership, err := findMembership(db, roomID, userID)
	if err != nil {
		return nil, err
	}
	if membership == nil {
		return nil, fail(ErrForbidden, "Not a member of this room")
	}
	return room, nil
}

// Leave removes the user from the room. A departing owner hands ownership
// to the longest-standing remaining member (ties broken by user ID). When
// the last member leaves the room stays, empty.
func (s *RoomService) Leave(ctx context.Context, roomID, userID string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := lockRoom(tx, roomID); err != nil {
			if errors.Is(err, ErrNotFound) {
				return fail(ErrNotFound, "Not a member of this room")
			}
			return err
		}

		membership, err := findMembership(tx, roomID, userID)
		if err != nil {
			return err
		}
		if membership == nil {
			return fail(ErrNotFound, "Not a member of this room")
		}

		user, err := findUser(tx, userID)
		if err != nil {
			return err
		}
		now := s.clock.Now()

		if membership.Role == models.RoleOwner {
			var successor models.RoomMember
			err := tx.Preload("User").
				Where("room_id = ? AND user_id <> ?", roomID, userID).
				Order("joined_at ASC").Order("user_id ASC").
				First(&successor).Error
			switch {
			case err == nil:
				if err := tx.Model(&models.RoomMember{}).Where("id = ?", successor.ID).
					Update("role", models.RoleOwner).Error; err != nil {
					return fmt.Errorf("transfer ownership: %w", err)
				}
				notice := fmt.Sprintf("%s is now the room owner", successor.User.DisplayName)
				if err := appendSystemMessage(tx, roomID, userID, notice, now); err != nil {
					return err
				}
			case !errors.Is(err, gorm.ErrRecordNotFound):
				return fmt.Errorf("find successor: %w", err)
			}
		}

		if err := appendSystemMessage(tx, roomID, userID, fmt.Sprintf("%s left the room", user.DisplayName), now); err != nil {
			return err
		}
		if err := tx.Delete(&models.RoomMember{}, "id = ?", membership.ID).Error; err != nil {
			return fmt.Errorf("delete membership: %w", err)
		}
		return nil
	})
}

// CheckMembership reports whether the user belongs to the room and with
// which role.
func (s *RoomService) CheckMembership(ctx context.Context, roomID, userID string) (bool, *models.Role, error) {
	membership, err := findMembership(s.db.WithContext(ctx), roomID, userID)
	if err != nil {
		return false, nil, err
	}
	if membership == nil {
		return false, nil, nil
	}
	role := membership.Role
	return true, &role, nil
}

// insertMembership stores m. A membership that already exists, for example
// one written by a concurrent join, is reported as a conflict.
func insertMembership(tx *gorm.DB, m *models.RoomMember) error {
	if err := tx.Omit(clause.Associations).Create(m).Error; err != nil {
		if database.IsUniqueViolation(err) {
			return fail(ErrConflict, "Already a member")
		}
		return fmt.Errorf("create membership: %w", err)
	}
	return nil
}

func findUser(db *gorm.DB, userID string) (*models.User, error) {
	var user models.User
	if err := db.First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fail(ErrNotFound, "User not found")
		}
		return nil, fmt.Errorf("load user: %w", err)
	}
	return &user, nil
}
