package ports

import (
	"context"

	"github.com/farmiq/farmiq-backend/internal/core/domain"
)

// RegisterInput is the raw registration form.
type RegisterInput struct {
	Role     string
	Name     string
	Phone    string
	Aadhar   string
	Username string
	Password string
}

type AuthService interface {
	Register(ctx context.Context, in RegisterInput) (uint64, error)
	Login(ctx context.Context, role, username, password string) (*domain.PublicUser, error)
	GetByID(ctx context.Context, id uint64) (*domain.PublicUser, error)
}
