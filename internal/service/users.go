package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"roomchat/backend/internal/auth"
	"roomchat/backend/internal/clock"
	"roomchat/backend/internal/database"
	"roomchat/backend/internal/metrics"
	"roomchat/backend/internal/models"

	"gorm.io/gorm"
)

// TokenIssuer issues session tokens for authenticated users.
type TokenIssuer interface {
	GenerateToken(userID string) (string, error)
}

// UserService covers registration, login with throttling, and profiles.
type UserService struct {
	db     *gorm.DB
	hasher auth.Hasher
	tokens TokenIssuer
	guard  *Guard
	clock  clock.Clock
}

// NewUserService creates a UserService that throttles logins through guard.
func NewUserService(db *gorm.DB, hasher auth.Hasher, tokens TokenIssuer, guard *Guard, clk clock.Clock) *UserService {
	return &UserService{db: db, hasher: hasher, tokens: tokens, guard: guard, clock: clk}
}

// RegisterInput is the data needed to create an account.
type RegisterInput struct {
	Username    string
	Email       string
	Password    string
	DisplayName string
}

// AuthResult is returned by Register and Login.
type AuthResult struct {
	User  models.User
	Token string
}

// Register validates the input, creates the user and issues a token.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	username := strings.TrimSpace(in.Username)
	email := strings.ToLower(strings.TrimSpace(in.Email))
	displayName := strings.TrimSpace(in.DisplayName)
	if displayName == "" {
		displayName = username
	}

	if !auth.ValidUsername(username) {
		return nil, fail(ErrValidation, "Username must be 3-20 characters and contain only letters, numbers, and underscores")
	}
	if !auth.ValidEmail(email) {
		return nil, fail(ErrValidation, "Invalid email format")
	}
	if !auth.ValidPassword(in.Password) {
		return nil, fail(ErrValidation, "Password must be at least 6 characters long")
	}

	db := s.db.WithContext(ctx)

	var count int64
	if err := db.Model(&models.User{}).Where("username = ?", username).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("check username: %w", err)
	}
	if count > 0 {
		return nil, fail(ErrConflict, "Username already exists")
	}
	if err := db.Model(&models.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("check email: %w", err)
	}
	if count > 0 {
		return nil, fail(ErrConflict, "Email already exists")
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := s.clock.Now()
	user := models.User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		DisplayName:  displayName,
		LastSeen:     now,
		CreatedAt:    now,
	}
	if err := db.Create(&user).Error; err != nil {
		if database.IsUniqueViolation(err) {
			return nil, fail(ErrConflict, "Username or email already exists")
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	token, err := s.tokens.GenerateToken(user.ID)
	if err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}
	return &AuthResult{User: user, Token: token}, nil
}

// Login authenticates by username or email. The throttle is consulted
// first; a blocked attempt is rejected without being recorded. Every
// credential check is recorded exactly once.
func (s *UserService) Login(ctx context.Context, ip, login, password string) (*AuthResult, error) {
	login = strings.TrimSpace(login)
	if login == "" || password == "" {
		return nil, fail(ErrValidation, "Username and password are required")
	}

	allowed, err := s.guard.CheckAttemptsAllowed(ctx, ip, login)
	if err != nil {
		return nil, err
	}
	if !allowed {
		metrics.LoginAttempts.WithLabelValues("blocked").Inc()
		return nil, fail(ErrTooManyAttempts, "Too many login attempts. Please try again in 15 minutes.")
	}

	var user models.User
	err = s.db.WithContext(ctx).
		Where("username = ? OR email = ?", login, strings.ToLower(login)).
		First(&user).Error
	found := err == nil
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("find user: %w", err)
	}

	if !found || !s.hasher.Verify(password, user.PasswordHash) {
		if err := s.guard.RecordAttempt(ctx, ip, login, false); err != nil {
			return nil, err
		}
		return nil, fail(ErrUnauthorized, "Invalid username or password")
	}

	user.IsOnline = true
	user.LastSeen = s.clock.Now()
	if err := s.db.WithContext(ctx).Model(&user).
		Updates(map[string]any{"is_online": true, "last_seen": user.LastSeen}).Error; err != nil {
		return nil, fmt.Errorf("mark user online: %w", err)
	}
	if err := s.guard.RecordAttempt(ctx, ip, login, true); err != nil {
		return nil, err
	}

	token, err := s.tokens.GenerateToken(user.ID)
	if err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}
	return &AuthResult{User: user, Token: token}, nil
}

// Exists reports whether a user ID refers to a stored user.
func (s *UserService) Exists(ctx context.Context, userID string) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *UserService) Profile(ctx context.Context, userID string) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fail(ErrNotFound, "User not found")
		}
		return nil, fmt.Errorf("load user: %w", err)
	}
	return &user, nil
}

// UpdateProfile changes the display name and avatar. Blank values keep the
// current ones.
func (s *UserService) UpdateProfile(ctx context.Context, userID, displayName, avatarURL string) (*models.User, error) {
	user, err := s.Profile(ctx, userID)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if displayName = strings.TrimSpace(displayName); displayName != "" {
		if len([]rune(displayName)) > 100 {
			return nil, fail(ErrValidation, "Display name must be at most 100 characters")
		}
		updates["display_name"] = displayName
		user.DisplayName = displayName
	}
	if avatarURL = strings.TrimSpace(avatarURL); avatarURL != "" {
		if len(avatarURL) > 500 {
			return nil, fail(ErrValidation, "Avatar URL must be at most 500 characters")
		}
		updates["avatar_url"] = avatarURL
		user.AvatarURL = avatarURL
	}
	if len(updates) == 0 {
		return user, nil
	}

	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}
	return user, nil
}

// Logout marks the user offline.
func (s *UserService) Logout(ctx context.Context, userID string) error {
	res := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).
		Updates(map[string]any{"is_online": false, "last_seen": s.clock.Now()})
	if res.Error != nil {
		return fmt.Errorf("logout: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fail(ErrNotFound, "User not found")
	}
	return nil
}
