package sqldb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/farmiq/farmiq-backend/internal/core/domain"
)

type sessionRow struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)"`
	UserID    uint64    `gorm:"not null;index"`
	Role      string    `gorm:"type:varchar(16);not null"`
	Username  string    `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null"`
	ExpiresAt time.Time `gorm:"not null;index"`
}

func (sessionRow) TableName() string { return "sessions" }

// SessionStore implements ports.SessionStore on gorm.
type SessionStore struct {
	db      *gorm.DB
	timeout time.Duration
}

func NewSessionStore(db *gorm.DB, timeout time.Duration) *SessionStore {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &SessionStore{db: db, timeout: timeout}
}

func (s *SessionStore) Create(ctx context.Context, sess *domain.Session) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	row := sessionRow{
		ID:        sess.ID,
		UserID:    sess.UserID,
		Role:      string(sess.Role),
		Username:  sess.Username,
		CreatedAt: sess.CreatedAt.UTC(),
		ExpiresAt: sess.ExpiresAt.UTC(),
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("%w: insert session: %v", domain.ErrStorage, err)
	}
	return nil
}

func (s *SessionStore) Find(ctx context.Context, id string) (*domain.Session, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var row sessionRow
	if err := s.db.WithContext(ctx).Where("id = ?", id).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: find session: %v", domain.ErrStorage, err)
	}
	return &domain.Session{
		ID:        row.ID,
		UserID:    row.UserID,
		Role:      domain.Role(row.Role),
		Username:  row.Username,
		CreatedAt: row.CreatedAt.UTC(),
		ExpiresAt: row.ExpiresAt.UTC(),
	}, nil
}

func (s *SessionStore) Delete(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.db.WithContext(ctx).Where("id = ?", id).Delete(&sessionRow{}).Error; err != nil {
		return fmt.Errorf("%w: delete session: %v", domain.ErrStorage, err)
	}
	return nil
}

// DeleteExpired removes every session whose expiry is at or before now.
func (s *SessionStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	res := s.db.WithContext(ctx).Where("expires_at <= ?", now.UTC()).Delete(&sessionRow{})
	if res.Error != nil {
		return 0, fmt.Errorf("%w: delete expired sessions: %v", domain.ErrStorage, res.Error)
	}
	return res.RowsAffected, nil
}
