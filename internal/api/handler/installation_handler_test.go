package handler

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/farmiq/farmiq-backend/internal/core/domain"
	"github.com/farmiq/farmiq-backend/internal/core/ports"
)

type stubInstallationService struct {
	createFn     func(ctx context.Context, in ports.CreateInstallationInput) (*domain.InstallationRequest, bool, error)
	status       *domain.InstallationRequest
	rescheduled  []ports.RescheduleInput
	cancelled    []string
	installedErr error
}

func (s *stubInstallationService) Create(ctx context.Context, in ports.CreateInstallationInput) (*domain.InstallationRequest, bool, error) {
	return s.createFn(ctx, in)
}

func (s *stubInstallationService) Status(context.Context, uint64) (*domain.InstallationRequest, error) {
	return s.status, nil
}

func (s *stubInstallationService) Reschedule(_ context.Context, in ports.RescheduleInput) (*domain.InstallationRequest, error) {
	s.rescheduled = append(s.rescheduled, in)
	return &domain.InstallationRequest{ID: in.RequestID, Status: domain.StatusScheduled}, nil
}

func (s *stubInstallationService) Cancel(_ context.Context, _ uint64, requestID string) error {
	s.cancelled = append(s.cancelled, requestID)
	return nil
}

func (s *stubInstallationService) MarkInstalled(_ context.Context, requestID string) (*domain.InstallationRequest, error) {
	if s.installedErr != nil {
		return nil, s.installedErr
	}
	return &domain.InstallationRequest{ID: requestID, Status: domain.StatusInstalled}, nil
}

func newValidatingEcho() *echo.Echo {
	e := echo.New()
	e.Validator = NewValidator()
	return e
}

func TestInstallationHandler_Create(t *testing.T) {
	e := newValidatingEcho()
	stub := &stubInstallationService{
		createFn: func(_ context.Context, in ports.CreateInstallationInput) (*domain.InstallationRequest, bool, error) {
			if in.UserID != 7 || in.FarmerName != "Alice" || in.IdempotencyKey != "k-1" {
				t.Fatalf("unexpected input: %+v", in)
			}
			if in.Location.Lat == nil || *in.Location.Lat != 30.9 || in.Location.Village != "Doraha" {
				t.Fatalf("location not mapped: %+v", in.Location)
			}
			return &domain.InstallationRequest{ID: "IOT-2026-000001", Status: domain.StatusAllocated}, false, nil
		},
	}
	handler := NewInstallationHandler(stub)

	c, rec := newJSONContext(e, http.MethodPost, "/api/iot/request",
		`{"farmerName":"Alice","phone":"9876543210","preferredDate":"2026-05-10","preferredWindow":"Morning","location":{"lat":30.9,"lon":76.0,"village":"Doraha"}}`)
	c.Request().Header.Set("Idempotency-Key", "k-1")
	withSession(c, 7, domain.RoleFarmer)

	if err := handler.Create(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	if resp := decode(t, rec); resp["id"] != "IOT-2026-000001" || resp["status"] != "allocated" {
		t.Fatalf("unexpected response: %v", resp)
	}
}

func TestInstallationHandler_Create_Replay(t *testing.T) {
	e := newValidatingEcho()
	stub := &stubInstallationService{
		createFn: func(context.Context, ports.CreateInstallationInput) (*domain.InstallationRequest, bool, error) {
			return &domain.InstallationRequest{ID: "IOT-2026-000001"}, true, nil
		},
	}
	handler := NewInstallationHandler(stub)

	c, rec := newJSONContext(e, http.MethodPost, "/api/iot/request", `{"farmerName":"Alice"}`)
	withSession(c, 7, domain.RoleFarmer)

	if err := handler.Create(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for replay, got %d", rec.Code)
	}
	if rec.Header().Get("Idempotent-Replayed") != "true" {
		t.Fatalf("expected replay header")
	}
}

func TestInstallationHandler_Create_InvalidLatitude(t *testing.T) {
	e := newValidatingEcho()
	handler := NewInstallationHandler(&stubInstallationService{
		createFn: func(context.Context, ports.CreateInstallationInput) (*domain.InstallationRequest, bool, error) {
			t.Fatalf("service should not be called")
			return nil, false, nil
		},
	})

	c, _ := newJSONContext(e, http.MethodPost, "/api/iot/request", `{"farmerName":"Alice","location":{"lat":123.4}}`)
	withSession(c, 7, domain.RoleFarmer)

	err := handler.Create(c)
	var verr *domain.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if verr.Reason != "lat must be a valid latitude" {
		t.Fatalf("unexpected reason: %q", verr.Reason)
	}
}

func TestInstallationHandler_RequiresSession(t *testing.T) {
	e := newValidatingEcho()
	handler := NewInstallationHandler(&stubInstallationService{})

	c, _ := newJSONContext(e, http.MethodGet, "/api/iot/status", "")
	if err := handler.Status(c); !errors.Is(err, domain.ErrSessionInvalid) {
		t.Fatalf("expected ErrSessionInvalid, got %v", err)
	}
}

func TestInstallationHandler_StatusNull(t *testing.T) {
	e := newValidatingEcho()
	handler := NewInstallationHandler(&stubInstallationService{})

	c, rec := newJSONContext(e, http.MethodGet, "/api/iot/status", "")
	withSession(c, 7, domain.RoleFarmer)

	if err := handler.Status(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if body := rec.Body.String(); body != "null\n" {
		t.Fatalf("expected null body, got %q", body)
	}
}

func TestInstallationHandler_RescheduleAndCancel(t *testing.T) {
	e := newValidatingEcho()
	stub := &stubInstallationService{}
	handler := NewInstallationHandler(stub)

	c, rec := newJSONContext(e, http.MethodPost, "/api/iot/reschedule", `{"id":"IOT-2026-000001","newDate":"2026-05-12","newWindow":"Evening"}`)
	withSession(c, 7, domain.RoleFarmer)
	if err := handler.Reschedule(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK || len(stub.rescheduled) != 1 {
		t.Fatalf("reschedule not forwarded")
	}
	if got := stub.rescheduled[0]; got.UserID != 7 || got.NewWindow != "Evening" {
		t.Fatalf("unexpected input: %+v", got)
	}

	c, rec = newJSONContext(e, http.MethodPost, "/api/iot/cancel", `{"id":"IOT-2026-000001"}`)
	withSession(c, 7, domain.RoleFarmer)
	if err := handler.Cancel(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if decode(t, rec)["ok"] != true || len(stub.cancelled) != 1 {
		t.Fatalf("cancel not forwarded")
	}
}

func TestInstallationHandler_MarkInstalled(t *testing.T) {
	e := newValidatingEcho()
	stub := &stubInstallationService{}
	handler := NewInstallationHandler(stub)

	c, rec := newJSONContext(e, http.MethodPost, "/api/iot/mark-installed", `{"id":"IOT-2026-000001"}`)
	if err := handler.MarkInstalled(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if decode(t, rec)["status"] != "installed" {
		t.Fatalf("unexpected response: %s", rec.Body.String())
	}

	stub.installedErr = domain.ErrInstallationNotFound
	c, _ = newJSONContext(e, http.MethodPost, "/api/iot/mark-installed", `{"id":"missing"}`)
	if err := handler.MarkInstalled(c); !errors.Is(err, domain.ErrInstallationNotFound) {
		t.Fatalf("expected ErrInstallationNotFound, got %v", err)
	}
}
