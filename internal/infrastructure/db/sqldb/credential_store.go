package sqldb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/farmiq/farmiq-backend/internal/core/domain"
)

// userRow is the users table. The composite unique index enforces the
// (role, username) rule and serves the login lookup.
type userRow struct {
	ID           uint64    `gorm:"primaryKey;autoIncrement"`
	Role         string    `gorm:"type:varchar(16);not null;uniqueIndex:idx_users_role_username,priority:1;check:chk_users_role,role IN ('farmer','vendor','admin')"`
	Name         string    `gorm:"not null"`
	Phone        string    `gorm:"type:varchar(10);not null"`
	Aadhar       string    `gorm:"type:varchar(12);not null"`
	Username     string    `gorm:"not null;uniqueIndex:idx_users_role_username,priority:2"`
	PasswordHash string    `gorm:"not null"`
	CreatedAt    time.Time `gorm:"not null"`
}

func (userRow) TableName() string { return "users" }

// publicColumns never includes password_hash.
var publicColumns = []string{"id", "role", "name", "phone", "aadhar", "username", "created_at"}

// CredentialStore implements ports.CredentialStore on gorm.
type CredentialStore struct {
	db      *gorm.DB
	timeout time.Duration
	now     func() time.Time
}

func NewCredentialStore(db *gorm.DB, timeout time.Duration) *CredentialStore {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &CredentialStore{
		db:      db,
		timeout: timeout,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Insert persists a new user and returns its id.
func (s *CredentialStore) Insert(ctx context.Context, u domain.NewUser) (uint64, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	row := userRow{
		Role:         string(u.Role),
		Name:         u.Name,
		Phone:        u.Phone,
		Aadhar:       u.Aadhar,
		Username:     u.Username,
		PasswordHash: u.PasswordHash,
		CreatedAt:    s.now(),
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return 0, domain.ErrDuplicateCredential
		}
		return 0, fmt.Errorf("%w: insert user: %v", domain.ErrStorage, err)
	}
	return row.ID, nil
}

// FindByRoleAndUsername returns the full record, or nil when absent.
func (s *CredentialStore) FindByRoleAndUsername(ctx context.Context, role domain.Role, username string) (*domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var row userRow
	err := s.db.WithContext(ctx).
		Where("role = ? AND username = ?", string(role), username).
		Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: find user: %v", domain.ErrStorage, err)
	}
	return row.toDomain(), nil
}

// FindByID returns the public projection, or nil when absent.
func (s *CredentialStore) FindByID(ctx context.Context, id uint64) (*domain.PublicUser, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var row userRow
	err := s.db.WithContext(ctx).
		Model(&userRow{}).
		Select(publicColumns).
		Where("id = ?", id).
		Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: find user by id: %v", domain.ErrStorage, err)
	}
	return row.toDomain().Public(), nil
}

func (r userRow) toDomain() *domain.User {
	return &domain.User{
		ID:           r.ID,
		Role:         domain.Role(r.Role),
		Name:         r.Name,
		Phone:        r.Phone,
		Aadhar:       r.Aadhar,
		Username:     r.Username,
		PasswordHash: r.PasswordHash,
		CreatedAt:    r.CreatedAt.UTC(),
	}
}
