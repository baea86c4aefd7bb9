package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/farmiq/farmiq-backend/internal/api/metrics"
	"github.com/farmiq/farmiq-backend/internal/core/domain"
	"github.com/farmiq/farmiq-backend/internal/core/ports"
)

const minPasswordLength = 6

var (
	phonePattern  = regexp.MustCompile(`^\d{10}$`)
	aadharPattern = regexp.MustCompile(`^\d{12}$`)
)

// absentUserPassword is hashed once at startup. Logins naming an unknown user
// compare against that hash so both failure paths pay for one bcrypt compare.
const absentUserPassword = "farmiq:absent-user"

// AuthService implements registration, login and session re-hydration.
type AuthService struct {
	store      ports.CredentialStore
	hasher     ports.PasswordHasher
	absentHash string
	log        zerolog.Logger
}

// NewAuthService prepares the unknown-user hash on hasher, so the hasher must
// already be running.
func NewAuthService(ctx context.Context, store ports.CredentialStore, hasher ports.PasswordHasher, log zerolog.Logger) (*AuthService, error) {
	absent, err := hasher.Hash(ctx, absentUserPassword)
	if err != nil {
		return nil, fmt.Errorf("prepare auth service: %w", err)
	}
	return &AuthService{store: store, hasher: hasher, absentHash: absent, log: log}, nil
}

// Register validates the form, hashes the password and stores the user.
func (s *AuthService) Register(ctx context.Context, in ports.RegisterInput) (uint64, error) {
	if err := validateRegistration(in); err != nil {
		metrics.RegistrationsTotal.WithLabelValues("invalid").Inc()
		return 0, err
	}

	hash, err := s.hasher.Hash(ctx, in.Password)
	if err != nil {
		metrics.RegistrationsTotal.WithLabelValues("error").Inc()
		return 0, fmt.Errorf("%w: hash password: %v", domain.ErrStorage, err)
	}

	id, err := s.store.Insert(ctx, domain.NewUser{
		Role:         domain.Role(in.Role),
		Name:         in.Name,
		Phone:        in.Phone,
		Aadhar:       in.Aadhar,
		Username:     in.Username,
		PasswordHash: hash,
	})
	if err != nil {
		if errors.Is(err, domain.ErrDuplicateCredential) {
			metrics.RegistrationsTotal.WithLabelValues("duplicate").Inc()
			return 0, domain.ErrDuplicateCredential
		}
		metrics.RegistrationsTotal.WithLabelValues("error").Inc()
		if errors.Is(err, domain.ErrStorage) {
			return 0, err
		}
		return 0, fmt.Errorf("%w: %v", domain.ErrStorage, err)
	}

	metrics.RegistrationsTotal.WithLabelValues("created").Inc()
	s.log.Info().Uint64("user_id", id).Str("role", in.Role).Str("username", in.Username).Msg("user registered")
	return id, nil
}

// validateRegistration applies the registration rules in order and stops at
// the first broken one.
func validateRegistration(in ports.RegisterInput) error {
	if in.Role == "" || in.Name == "" || in.Phone == "" || in.Aadhar == "" || in.Username == "" || in.Password == "" {
		return domain.Invalid("All fields are required")
	}
	if !domain.Role(in.Role).Valid() {
		return domain.Invalid("Invalid role")
	}
	if !phonePattern.MatchString(in.Phone) {
		return domain.Invalid("Phone number must be 10 digits")
	}
	if !aadharPattern.MatchString(in.Aadhar) {
		return domain.Invalid("Aadhar number must be 12 digits")
	}
	if utf8.RuneCountInString(in.Password) < minPasswordLength {
		return domain.Invalid(fmt.Sprintf("Password must be at least %d characters", minPasswordLength))
	}
	return nil
}

// Login verifies the credentials. An unknown user and a wrong password both
// return domain.ErrInvalidCredentials.
func (s *AuthService) Login(ctx context.Context, role, username, password string) (*domain.PublicUser, error) {
	user, err := s.store.FindByRoleAndUsername(ctx, domain.Role(role), username)
	if err != nil {
		metrics.LoginsTotal.WithLabelValues("error").Inc()
		if errors.Is(err, domain.ErrStorage) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrStorage, err)
	}

	hash := s.absentHash
	if user != nil {
		hash = user.PasswordHash
	}

	ok, err := s.hasher.Compare(ctx, hash, password)
	if err != nil {
		s.log.Warn().Err(err).Str("role", role).Msg("password comparison did not complete")
	}
	if user == nil || !ok || err != nil {
		metrics.LoginsTotal.WithLabelValues("rejected").Inc()
		return nil, domain.ErrInvalidCredentials
	}

	metrics.LoginsTotal.WithLabelValues("accepted").Inc()
	s.log.Info().Uint64("user_id", user.ID).Str("role", role).Msg("user logged in")
	return user.Public(), nil
}

// GetByID returns the public profile, or nil when the user does not exist.
func (s *AuthService) GetByID(ctx context.Context, id uint64) (*domain.PublicUser, error) {
	user, err := s.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrStorage) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrStorage, err)
	}
	return user, nil
}
