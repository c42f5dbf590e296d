package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"roomchat/backend/internal/auth"
	"roomchat/backend/internal/clock"
	"roomchat/backend/internal/models"
	"roomchat/backend/internal/testutil"
	"roomchat/backend/pkg/jwt"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type env struct {
	db       *gorm.DB
	clock    *clock.FakeClock
	tokens   *jwt.Issuer
	users    *UserService
	rooms    *RoomService
	messages *MessageService
}

func newEnv(t *testing.T) *env {
	return newEnvWithLimits(t, Limits{MaxUsersPerRoom: 100, MaxRoomsPerUser: 50})
}

func newEnvWithLimits(t *testing.T, limits Limits) *env {
	t.Helper()
	db := testutil.NewDB(t)
	clk := clock.Fake(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
	hasher := auth.BcryptHasher{Cost: bcrypt.MinCost}
	tokens := jwt.NewIssuer("test-secret", 24*time.Hour, clk.Now)
	guard := NewGuard(db, clk, 5, 900*time.Second)
	return &env{
		db:       db,
		clock:    clk,
		tokens:   tokens,
		users:    NewUserService(db, hasher, tokens, guard, clk),
		rooms:    NewRoomService(db, hasher, clk, limits),
		messages: NewMessageService(db, clk),
	}
}

func (e *env) register(t *testing.T, username string) models.User {
	t.Helper()
	res, err := e.users.Register(context.Background(), RegisterInput{
		Username: username,
		Email:    username + "@example.com",
		Password: "secret123",
	})
	require.NoError(t, err)
	e.clock.Advance(time.Second)
	return res.User
}

func (e *env) createRoom(t *testing.T, ownerID, name string) models.Room {
	t.Helper()
	room, err := e.rooms.CreateRoom(context.Background(), ownerID, CreateRoomInput{Name: name})
	require.NoError(t, err)
	e.clock.Advance(time.Second)
	return room.Room
}

func (e *env) join(t *testing.T, roomID, userID string) {
	t.Helper()
	_, err := e.rooms.Join(context.Background(), roomID, userID, "")
	require.NoError(t, err)
	e.clock.Advance(time.Second)
}

func (e *env) send(t *testing.T, roomID, userID, content string) *models.Message {
	t.Helper()
	msg, err := e.messages.Send(context.Background(), roomID, userID, SendInput{Content: content})
	require.NoError(t, err)
	e.clock.Advance(time.Second)
	return msg
}

func (e *env) systemMessages(t *testing.T, roomID string) []string {
	t.Helper()
	var contents []string
	require.NoError(t, e.db.Model(&models.Message{}).
		Where("room_id = ? AND message_type = ?", roomID, models.MessageTypeSystem).
		Order("created_at ASC").Order("content ASC").
		Pluck("content", &contents).Error)
	return contents
}

func assertKind(t *testing.T, err error, kind error) {
	t.Helper()
	require.Error(t, err)
	assert.True(t, errors.Is(err, kind), "expected %v, got %v", kind, err)
}
