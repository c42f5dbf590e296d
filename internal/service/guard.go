package service

import (
	"context"
	"fmt"
	"time"

	"roomchat/backend/internal/clock"
	"roomchat/backend/internal/metrics"
	"roomchat/backend/internal/models"

	"gorm.io/gorm"
)

// Guard throttles repeated failed logins per (IP, username) pair over a
// sliding window ending at the current time.
type Guard struct {
	db          *gorm.DB
	clock       clock.Clock
	maxAttempts int
	window      time.Duration
}

// NewGuard allows maxAttempts failed logins per pair within window.
func NewGuard(db *gorm.DB, clk clock.Clock, maxAttempts int, window time.Duration) *Guard {
	return &Guard{db: db, clock: clk, maxAttempts: maxAttempts, window: window}
}

// CheckAttemptsAllowed reports whether the pair has fewer than maxAttempts
// failed logins within the window.
func (g *Guard) CheckAttemptsAllowed(ctx context.Context, ip, username string) (bool, error) {
	since := g.clock.Now().Add(-g.window)

	var failed int64
	err := g.db.WithContext(ctx).Model(&models.LoginAttempt{}).
		Where("ip_address = ? AND username = ? AND attempted_at >= ? AND successful = ?", ip, username, since, false).
		Count(&failed).Error
	if err != nil {
		return false, fmt.Errorf("count login attempts: %w", err)
	}
	return failed < int64(g.maxAttempts), nil
}

// RecordAttempt appends one audit row. It commits on its own so the row
// survives whatever happens to the rest of the login request.
func (g *Guard) RecordAttempt(ctx context.Context, ip, username string, success bool) error {
	attempt := models.LoginAttempt{
		IPAddress:   ip,
		Username:    username,
		AttemptedAt: g.clock.Now(),
		Successful:  success,
	}
	if err := g.db.WithContext(ctx).Create(&attempt).Error; err != nil {
		return fmt.Errorf("record login attempt: %w", err)
	}
	metrics.LoginAttempts.WithLabelValues(outcome(success)).Inc()
	return nil
}

func outcome(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}
