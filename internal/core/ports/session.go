package ports

import (
	"context"
	"time"

	"github.com/farmiq/farmiq-backend/internal/core/domain"
)

// SessionStore persists server-side sessions. Find returns (nil, nil) when
// the id is unknown; Delete is a no-op for unknown ids.
type SessionStore interface {
	Create(ctx context.Context, s *domain.Session) error
	Find(ctx context.Context, id string) (*domain.Session, error)
	Delete(ctx context.Context, id string) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// SessionService issues and validates the session cookie token.
type SessionService interface {
	Issue(ctx context.Context, user *domain.PublicUser) (string, *domain.Session, error)
	Resolve(ctx context.Context, token string) (*domain.Session, *domain.PublicUser, error)
	Revoke(ctx context.Context, token string) error
	PurgeExpired(ctx context.Context) (int64, error)
	TTL() time.Duration
}
