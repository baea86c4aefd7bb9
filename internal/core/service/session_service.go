package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/farmiq/farmiq-backend/internal/api/metrics"
	"github.com/farmiq/farmiq-backend/internal/core/domain"
	"github.com/farmiq/farmiq-backend/internal/core/ports"
)

const DefaultSessionTTL = 24 * time.Hour

// UserFinder re-hydrates the user a session points at.
type UserFinder interface {
	GetByID(ctx context.Context, id uint64) (*domain.PublicUser, error)
}

// SessionService issues server-side sessions and validates the signed token
// handed to the browser.
type SessionService struct {
	store  ports.SessionStore
	users  UserFinder
	secret []byte
	ttl    time.Duration
	now    func() time.Time
	log    zerolog.Logger
}

func NewSessionService(store ports.SessionStore, users UserFinder, secret string, ttl time.Duration, log zerolog.Logger) *SessionService {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &SessionService{
		store:  store,
		users:  users,
		secret: []byte(secret),
		ttl:    ttl,
		now:    func() time.Time { return time.Now().UTC() },
		log:    log,
	}
}

// TTL is the lifetime of a freshly issued session.
func (s *SessionService) TTL() time.Duration { return s.ttl }

// Issue persists a new session for user and returns its cookie token.
func (s *SessionService) Issue(ctx context.Context, user *domain.PublicUser) (string, *domain.Session, error) {
	now := s.now()
	sess := &domain.Session{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		Role:      user.Role,
		Username:  user.Username,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}
	if err := s.store.Create(ctx, sess); err != nil {
		return "", nil, fmt.Errorf("issue session: %w", err)
	}

	token, err := s.sign(sess)
	if err != nil {
		return "", nil, fmt.Errorf("issue session: %w", err)
	}
	metrics.SessionsTotal.WithLabelValues("issued").Inc()
	return token, sess, nil
}

// Resolve maps a cookie token back to its session and user. A session whose
// user no longer exists is deleted on the spot.
func (s *SessionService) Resolve(ctx context.Context, token string) (*domain.Session, *domain.PublicUser, error) {
	id, err := s.parse(token)
	if err != nil {
		metrics.SessionsTotal.WithLabelValues("rejected").Inc()
		return nil, nil, err
	}

	sess, err := s.store.Find(ctx, id)
	if err != nil {
		return nil, nil, fmt.Errorf("resolve session: %w", err)
	}
	if sess == nil {
		metrics.SessionsTotal.WithLabelValues("rejected").Inc()
		return nil, nil, domain.ErrSessionInvalid
	}

	if sess.Expired(s.now()) {
		s.drop(ctx, sess.ID, "expired")
		return nil, nil, domain.ErrSessionExpired
	}

	user, err := s.users.GetByID(ctx, sess.UserID)
	if err != nil {
		return nil, nil, fmt.Errorf("resolve session: %w", err)
	}
	if user == nil {
		s.drop(ctx, sess.ID, "orphaned")
		return nil, nil, domain.ErrSessionInvalid
	}

	metrics.SessionsTotal.WithLabelValues("resolved").Inc()
	return sess, user, nil
}

// Revoke deletes the session behind token. Unknown or malformed tokens are
// ignored.
func (s *SessionService) Revoke(ctx context.Context, token string) error {
	id, err := s.parse(token)
	if err != nil {
		return nil
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	metrics.SessionsTotal.WithLabelValues("revoked").Inc()
	return nil
}

// PurgeExpired removes every session past its expiry.
func (s *SessionService) PurgeExpired(ctx context.Context) (int64, error) {
	n, err := s.store.DeleteExpired(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("purge sessions: %w", err)
	}
	return n, nil
}

func (s *SessionService) drop(ctx context.Context, id, reason string) {
	metrics.SessionsTotal.WithLabelValues(reason).Inc()
	if err := s.store.Delete(ctx, id); err != nil {
		s.log.Warn().Err(err).Str("reason", reason).Msg("failed to delete session")
	}
}

func (s *SessionService) sign(sess *domain.Session) (string, error) {
	claims := jwt.RegisteredClaims{
		ID:        sess.ID,
		Subject:   strconv.FormatUint(sess.UserID, 10),
		IssuedAt:  jwt.NewNumericDate(sess.CreatedAt),
		ExpiresAt: jwt.NewNumericDate(sess.ExpiresAt),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(s.secret)
}

// parse checks the signature and expiry and returns the session id.
func (s *SessionService) parse(token string) (string, error) {
	if token == "" {
		return "", domain.ErrSessionInvalid
	}

	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", domain.ErrSessionExpired
		}
		return "", domain.ErrSessionInvalid
	}
	if claims.ID == "" {
		return "", domain.ErrSessionInvalid
	}
	return claims.ID, nil
}
