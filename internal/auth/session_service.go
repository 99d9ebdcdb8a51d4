package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/charlesng35/authhub/internal/models"
	"github.com/charlesng35/authhub/pkg/metrics"
)

// SessionConfig describes tunable behaviour for the SessionService.
type SessionConfig struct {
	// MaxAge bounds how long a session stays live after login. Zero disables the bound.
	MaxAge time.Duration
}

// SessionMeta captures contextual information about the client.
type SessionMeta struct {
	IPAddress string
	UserAgent string
}

// SessionOption customises the SessionService.
type SessionOption func(*SessionService)

// WithSessionClock injects a custom time source.
func WithSessionClock(clock func() time.Time) SessionOption {
	return func(s *SessionService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// SessionService records logins and answers whether a session is still live.
// Sessions are never deleted; invalidation is a one way transition.
type SessionService struct {
	db     *gorm.DB
	maxAge time.Duration
	now    func() time.Time
}

// NewSessionService constructs a session registry backed by db.
func NewSessionService(db *gorm.DB, cfg SessionConfig, opts ...SessionOption) (*SessionService, error) {
	if db == nil {
		return nil, errors.New("session service: db is required")
	}

	svc := &SessionService{
		db:     db,
		maxAge: cfg.MaxAge,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Create records a new valid session for userID.
func (s *SessionService) Create(ctx context.Context, userID string, meta SessionMeta) (*models.Session, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, errors.New("session service: user id is required")
	}

	session := &models.Session{
		UserID:    userID,
		IsValid:   true,
		LoginTime: s.now(),
		IPAddress: strings.TrimSpace(meta.IPAddress),
		UserAgent: strings.TrimSpace(meta.UserAgent),
	}
	if err := s.db.WithContext(ctx).Create(session).Error; err != nil {
		return nil, fmt.Errorf("session service: create: %w", err)
	}

	metrics.ActiveSessions.Inc()
	return session, nil
}

// Invalidate marks the session as logged out. Unknown or already invalid ids are a no-op.
func (s *SessionService) Invalidate(ctx context.Context, sessionID string) error {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil
	}

	result := s.db.WithContext(ctx).
		Model(&models.Session{}).
		Where("id = ? AND is_valid = ?", sessionID, true).
		Updates(map[string]any{
			"is_valid":    false,
			"logout_time": s.now(),
		})
	if result.Error != nil {
		return fmt.Errorf("session service: invalidate: %w", result.Error)
	}

	if result.RowsAffected > 0 {
		metrics.ActiveSessions.Sub(float64(result.RowsAffected))
	}
	return nil
}

// IsLive reports whether the session exists, belongs to userID, is valid, and
// is younger than the configured max age.
func (s *SessionService) IsLive(ctx context.Context, sessionID, userID string) (bool, error) {
	if sessionID == "" || userID == "" {
		return false, nil
	}

	var session models.Session
	err := s.db.WithContext(ctx).
		Select("id", "user_id", "is_valid", "login_time").
		Where("id = ? AND user_id = ?", sessionID, userID).
		Take(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("session service: lookup: %w", err)
	}

	if !session.IsValid {
		return false, nil
	}
	if s.maxAge > 0 && session.LoginTime.Before(s.now().Add(-s.maxAge)) {
		return false, nil
	}
	return true, nil
}

// InvalidateOlderThan marks valid sessions that logged in before cutoff as logged out.
func (s *SessionService) InvalidateOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result := s.db.WithContext(ctx).
		Model(&models.Session{}).
		Where("is_valid = ? AND login_time < ?", true, cutoff).
		Updates(map[string]any{
			"is_valid":    false,
			"logout_time": s.now(),
		})
	if result.Error != nil {
		return 0, fmt.Errorf("session service: invalidate older than: %w", result.Error)
	}

	if result.RowsAffected > 0 {
		metrics.ActiveSessions.Sub(float64(result.RowsAffected))
	}
	return result.RowsAffected, nil
}

// ListActive returns the live sessions of userID, newest first.
func (s *SessionService) ListActive(ctx context.Context, userID string) ([]models.Session, error) {
	query := s.db.WithContext(ctx).
		Where("user_id = ? AND is_valid = ?", userID, true)
	if s.maxAge > 0 {
		query = query.Where("login_time >= ?", s.now().Add(-s.maxAge))
	}

	var sessions []models.Session
	if err := query.Order("login_time DESC").Find(&sessions).Error; err != nil {
		return nil, fmt.Errorf("session service: list active: %w", err)
	}
	return sessions, nil
}
