package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/farmiq/farmiq-backend/internal/api/metrics"
	"github.com/farmiq/farmiq-backend/internal/core/domain"
	"github.com/farmiq/farmiq-backend/internal/core/ports"
)

const (
	requestSequence  = "installation_request"
	idempotencyScope = "installation"
	dateLayout       = "2006-01-02"
)

var farmerPhonePattern = regexp.MustCompile(`^\d{10}$`)

// InstallationService runs the IoT sensor installation workflow.
type InstallationService struct {
	repo        ports.InstallationRepository
	technicians ports.TechnicianRepository
	guard       ports.IdempotencyGuard
	now         func() time.Time
	log         zerolog.Logger
}

func NewInstallationService(
	repo ports.InstallationRepository,
	technicians ports.TechnicianRepository,
	guard ports.IdempotencyGuard,
	log zerolog.Logger,
) *InstallationService {
	return &InstallationService{
		repo:        repo,
		technicians: technicians,
		guard:       guard,
		now:         func() time.Time { return time.Now().UTC() },
		log:         log,
	}
}

// Create opens a new installation request for a farmer. A farmer holds at
// most one active request; opening a new one cancels the previous. When an
// idempotency key is provided and already seen, the earlier request is
// returned without side effects.
func (s *InstallationService) Create(ctx context.Context, in ports.CreateInstallationInput) (*domain.InstallationRequest, bool, error) {
	if err := validateInstallation(in); err != nil {
		return nil, false, err
	}

	if in.IdempotencyKey != "" {
		if existing, err := s.replay(ctx, in.UserID, in.IdempotencyKey); err != nil || existing != nil {
			return existing, existing != nil, err
		}

		claimKey := strconv.FormatUint(in.UserID, 10) + ":" + in.IdempotencyKey
		claimed, err := s.guard.Claim(ctx, idempotencyScope, claimKey)
		if err != nil {
			s.log.Warn().Err(err).Str("idempotency_key", in.IdempotencyKey).Msg("idempotency claim failed, processing anyway")
		} else if !claimed {
			// A concurrent retry holds the key; its result may already be stored.
			if existing, err := s.replay(ctx, in.UserID, in.IdempotencyKey); err != nil || existing != nil {
				return existing, existing != nil, err
			}
			return nil, false, domain.Invalid("A request with this Idempotency-Key is already in progress")
		} else {
			defer func() {
				if err := s.guard.Release(ctx, idempotencyScope, claimKey); err != nil {
					s.log.Warn().Err(err).Msg("failed to release idempotency claim")
				}
			}()
		}
	}

	if err := s.cancelActive(ctx, in.UserID); err != nil {
		return nil, false, err
	}

	seq, err := s.repo.NextSequence(ctx, requestSequence)
	if err != nil {
		return nil, false, fmt.Errorf("create installation: %w", err)
	}

	now := s.now()
	req := &domain.InstallationRequest{
		ID:              fmt.Sprintf("IOT-%d-%06d", now.Year(), seq),
		UserID:          in.UserID,
		FarmerName:      in.FarmerName,
		Phone:           in.Phone,
		PreferredDate:   in.PreferredDate,
		PreferredWindow: domain.TimeWindow(in.PreferredWindow),
		Notes:           in.Notes,
		Status:          domain.StatusRequested,
		IdempotencyKey:  in.IdempotencyKey,
		CreatedAt:       now,
		Location: domain.FarmLocation{
			Lat:      in.Location.Lat,
			Lon:      in.Location.Lon,
			State:    in.Location.State,
			District: in.Location.District,
			Village:  in.Location.Village,
			Landmark: in.Location.Landmark,
		},
		StatusHistory: []domain.StatusHistoryEntry{{Status: domain.StatusRequested, Timestamp: now}},
	}

	tech, err := s.technicians.Allocate(ctx)
	if err != nil {
		s.log.Warn().Err(err).Str("request_id", req.ID).Msg("technician allocation failed, leaving request unallocated")
	}
	if tech != nil {
		req.Technician = tech
		req.Status = domain.StatusAllocated
		req.Appointment = &domain.Appointment{Date: in.PreferredDate, Window: req.PreferredWindow}
		req.StatusHistory = append(req.StatusHistory, domain.StatusHistoryEntry{
			Status:    domain.StatusAllocated,
			Timestamp: now,
			Notes:     "technician " + tech.ID,
		})
	}

	if err := s.repo.Create(ctx, req); err != nil {
		if tech != nil {
			s.release(ctx, tech.ID)
		}
		s.log.Error().Err(err).Msg("failed to create installation request")
		return nil, false, fmt.Errorf("create installation: %w", err)
	}

	metrics.InstallationRequestsTotal.WithLabelValues(string(req.Status)).Inc()
	s.log.Info().Str("request_id", req.ID).Uint64("user_id", in.UserID).Str("status", string(req.Status)).Msg("installation request created")
	return req, false, nil
}

// Status returns the farmer's current request, or nil when there is none.
func (s *InstallationService) Status(ctx context.Context, userID uint64) (*domain.InstallationRequest, error) {
	req, err := s.repo.FindLatestActive(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrInstallationNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("installation status: %w", err)
	}
	return req, nil
}

// Reschedule moves the appointment of an open request to a new slot.
func (s *InstallationService) Reschedule(ctx context.Context, in ports.RescheduleInput) (*domain.InstallationRequest, error) {
	if in.RequestID == "" || in.NewDate == "" || in.NewWindow == "" {
		return nil, domain.Invalid("Missing required fields")
	}
	if _, err := time.Parse(dateLayout, in.NewDate); err != nil {
		return nil, domain.Invalid("Date must be formatted as YYYY-MM-DD")
	}
	window := domain.TimeWindow(in.NewWindow)
	if !window.Valid() {
		return nil, domain.Invalid("Window must be one of Morning, Afternoon, Evening")
	}

	appt := &domain.Appointment{Date: in.NewDate, Window: window}
	return s.transition(ctx, in.RequestID, in.UserID, domain.StatusScheduled, "rescheduled", appt)
}

// Cancel closes an open request and frees its technician.
func (s *InstallationService) Cancel(ctx context.Context, userID uint64, requestID string) error {
	if requestID == "" {
		return domain.Invalid("Missing request ID")
	}
	_, err := s.transition(ctx, requestID, userID, domain.StatusCancelled, "cancelled by farmer", nil)
	return err
}

// MarkInstalled completes a request. It is not scoped to a farmer.
func (s *InstallationService) MarkInstalled(ctx context.Context, requestID string) (*domain.InstallationRequest, error) {
	if requestID == "" {
		return nil, domain.Invalid("Missing request ID")
	}
	return s.transition(ctx, requestID, 0, domain.StatusInstalled, "installation confirmed", nil)
}

func (s *InstallationService) transition(
	ctx context.Context,
	requestID string,
	userID uint64,
	next domain.InstallationStatus,
	notes string,
	appt *domain.Appointment,
) (*domain.InstallationRequest, error) {
	req, err := s.repo.FindByID(ctx, requestID, userID)
	if err != nil {
		return nil, fmt.Errorf("%s installation: %w", next, err)
	}

	if !req.Status.CanTransitionTo(next) {
		return nil, fmt.Errorf("%s installation: %w (from %s to %s)", next, domain.ErrInvalidTransition, req.Status, next)
	}

	now := s.now()
	if err := s.repo.UpdateStatus(ctx, req.ID, next, now, notes, appt); err != nil {
		return nil, fmt.Errorf("%s installation: update status: %w", next, err)
	}

	if !next.Active() && req.Technician != nil {
		s.release(ctx, req.Technician.ID)
	}

	req.Status = next
	if appt != nil {
		req.Appointment = appt
	}
	req.StatusHistory = append(req.StatusHistory, domain.StatusHistoryEntry{Status: next, Timestamp: now, Notes: notes})

	metrics.InstallationRequestsTotal.WithLabelValues(string(next)).Inc()
	s.log.Info().Str("request_id", req.ID).Str("status", string(next)).Msg("installation request updated")
	return req, nil
}

func (s *InstallationService) cancelActive(ctx context.Context, userID uint64) error {
	active, err := s.repo.FindLatestActive(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrInstallationNotFound) {
			return nil
		}
		return fmt.Errorf("create installation: %w", err)
	}
	_, err = s.transition(ctx, active.ID, userID, domain.StatusCancelled, "replaced by a new request", nil)
	return err
}

func (s *InstallationService) replay(ctx context.Context, userID uint64, key string) (*domain.InstallationRequest, error) {
	existing, err := s.repo.FindByIdempotencyKey(ctx, userID, key)
	if err != nil {
		if errors.Is(err, domain.ErrInstallationNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("create installation: %w", err)
	}
	s.log.Info().Str("idempotency_key", key).Str("request_id", existing.ID).Msg("idempotent replay")
	return existing, nil
}

func (s *InstallationService) release(ctx context.Context, technicianID string) {
	if err := s.technicians.Release(ctx, technicianID); err != nil {
		s.log.Warn().Err(err).Str("technician_id", technicianID).Msg("failed to release technician")
	}
}

func validateInstallation(in ports.CreateInstallationInput) error {
	if in.FarmerName == "" || in.Phone == "" || in.PreferredDate == "" || in.PreferredWindow == "" {
		return domain.Invalid("Missing required fields")
	}
	if !farmerPhonePattern.MatchString(in.Phone) {
		return domain.Invalid("Phone number must be 10 digits")
	}
	if _, err := time.Parse(dateLayout, in.PreferredDate); err != nil {
		return domain.Invalid("Date must be formatted as YYYY-MM-DD")
	}
	if !domain.TimeWindow(in.PreferredWindow).Valid() {
		return domain.Invalid("Window must be one of Morning, Afternoon, Evening")
	}
	return nil
}
