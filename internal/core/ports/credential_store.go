package ports

import (
	"context"

	"github.com/farmiq/farmiq-backend/internal/core/domain"
)

// CredentialStore owns user records and the (role, username) uniqueness rule.
//
// Find methods return (nil, nil) when no record matches.
type CredentialStore interface {
	Insert(ctx context.Context, user domain.NewUser) (uint64, error)
	FindByRoleAndUsername(ctx context.Context, role domain.Role, username string) (*domain.User, error)
	FindByID(ctx context.Context, id uint64) (*domain.PublicUser, error)
}

// PasswordHasher derives and checks salted password hashes.
type PasswordHasher interface {
	Hash(ctx context.Context, password string) (string, error)
	// Compare returns (false, nil) on mismatch and an error only when the
	// comparison could not run.
	Compare(ctx context.Context, hash, password string) (bool, error)
}
