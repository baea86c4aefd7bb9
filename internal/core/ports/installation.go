package ports

import (
	"context"
	"time"

	"github.com/farmiq/farmiq-backend/internal/core/domain"
)

// InstallationRepository defines persistence operations for installation requests.
type InstallationRepository interface {
	Create(ctx context.Context, r *domain.InstallationRequest) error
	// FindByID retrieves a request by id. When userID is non-zero the query is
	// additionally scoped to that farmer.
	FindByID(ctx context.Context, requestID string, userID uint64) (*domain.InstallationRequest, error)
	FindByIdempotencyKey(ctx context.Context, userID uint64, key string) (*domain.InstallationRequest, error)
	// FindLatestActive returns the newest non-terminal request of a farmer.
	FindLatestActive(ctx context.Context, userID uint64) (*domain.InstallationRequest, error)
	// UpdateStatus atomically sets the new status, appends a history entry and,
	// when appointment is non-nil, replaces the appointment.
	UpdateStatus(ctx context.Context, requestID string, status domain.InstallationStatus, ts time.Time, notes string, appointment *domain.Appointment) error
	NextSequence(ctx context.Context, name string) (int64, error)
}

// TechnicianRepository tracks technicians and their open jobs.
type TechnicianRepository interface {
	// Allocate picks the technician with the fewest active jobs and increments
	// its counter in one step. Returns (nil, nil) when none exist.
	Allocate(ctx context.Context) (*domain.Technician, error)
	Release(ctx context.Context, technicianID string) error
}

// IdempotencyGuard claims an idempotency key so concurrent retries of the
// same create do not both run.
type IdempotencyGuard interface {
	Claim(ctx context.Context, scope, key string) (bool, error)
	Release(ctx context.Context, scope, key string) error
}

// LocationInput carries the optional farm location.
type LocationInput struct {
	Lat      *float64
	Lon      *float64
	State    string
	District string
	Village  string
	Landmark string
}

// CreateInstallationInput carries all data needed to open a request.
type CreateInstallationInput struct {
	UserID          uint64
	FarmerName      string
	Phone           string
	Location        LocationInput
	PreferredDate   string
	PreferredWindow string
	Notes           string
	IdempotencyKey  string
}

// RescheduleInput moves an appointment to a new slot.
type RescheduleInput struct {
	UserID    uint64
	RequestID string
	NewDate   string
	NewWindow string
}

type InstallationService interface {
	// Create returns replayed=true when the idempotency key matched an earlier request.
	Create(ctx context.Context, in CreateInstallationInput) (req *domain.InstallationRequest, replayed bool, err error)
	Status(ctx context.Context, userID uint64) (*domain.InstallationRequest, error)
	Reschedule(ctx context.Context, in RescheduleInput) (*domain.InstallationRequest, error)
	Cancel(ctx context.Context, userID uint64, requestID string) error
	MarkInstalled(ctx context.Context, requestID string) (*domain.InstallationRequest, error)
}
