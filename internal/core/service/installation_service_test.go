package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/farmiq/farmiq-backend/internal/core/domain"
	"github.com/farmiq/farmiq-backend/internal/core/ports"
)

type stubInstallationRepo struct {
	mu       sync.Mutex
	requests map[string]*domain.InstallationRequest
	seq      int64
}

func newStubInstallationRepo() *stubInstallationRepo {
	return &stubInstallationRepo{requests: make(map[string]*domain.InstallationRequest)}
}

func cloneRequest(r *domain.InstallationRequest) *domain.InstallationRequest {
	clone := *r
	clone.StatusHistory = append([]domain.StatusHistoryEntry(nil), r.StatusHistory...)
	return &clone
}

func (r *stubInstallationRepo) Create(_ context.Context, req *domain.InstallationRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests[req.ID] = cloneRequest(req)
	return nil
}

func (r *stubInstallationRepo) FindByID(_ context.Context, requestID string, userID uint64) (*domain.InstallationRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	req, ok := r.requests[requestID]
	if !ok || (userID != 0 && req.UserID != userID) {
		return nil, domain.ErrInstallationNotFound
	}
	return cloneRequest(req), nil
}

func (r *stubInstallationRepo) FindByIdempotencyKey(_ context.Context, userID uint64, key string) (*domain.InstallationRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, req := range r.requests {
		if req.UserID == userID && req.IdempotencyKey == key {
			return cloneRequest(req), nil
		}
	}
	return nil, domain.ErrInstallationNotFound
}

func (r *stubInstallationRepo) FindLatestActive(_ context.Context, userID uint64) (*domain.InstallationRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var latest *domain.InstallationRequest
	for _, req := range r.requests {
		if req.UserID != userID || !req.Status.Active() {
			continue
		}
		if latest == nil || req.ID > latest.ID {
			latest = req
		}
	}
	if latest == nil {
		return nil, domain.ErrInstallationNotFound
	}
	return cloneRequest(latest), nil
}

func (r *stubInstallationRepo) UpdateStatus(_ context.Context, requestID string, status domain.InstallationStatus, ts time.Time, notes string, appt *domain.Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	req, ok := r.requests[requestID]
	if !ok {
		return domain.ErrInstallationNotFound
	}
	req.Status = status
	if appt != nil {
		req.Appointment = appt
	}
	req.StatusHistory = append(req.StatusHistory, domain.StatusHistoryEntry{Status: status, Timestamp: ts, Notes: notes})
	return nil
}

func (r *stubInstallationRepo) NextSequence(_ context.Context, _ string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	return r.seq, nil
}

type stubTechnicians struct {
	mu    sync.Mutex
	techs []*domain.Technician
}

func newStubTechnicians(ids ...string) *stubTechnicians {
	s := &stubTechnicians{}
	for _, id := range ids {
		s.techs = append(s.techs, &domain.Technician{ID: id, Name: "Tech " + id})
	}
	return s
}

func (s *stubTechnicians) Allocate(_ context.Context) (*domain.Technician, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.techs) == 0 {
		return nil, nil
	}
	sort.SliceStable(s.techs, func(i, j int) bool {
		if s.techs[i].ActiveJobs != s.techs[j].ActiveJobs {
			return s.techs[i].ActiveJobs < s.techs[j].ActiveJobs
		}
		return s.techs[i].ID < s.techs[j].ID
	})
	s.techs[0].ActiveJobs++
	clone := *s.techs[0]
	return &clone, nil
}

func (s *stubTechnicians) Release(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.techs {
		if t.ID == id && t.ActiveJobs > 0 {
			t.ActiveJobs--
		}
	}
	return nil
}

func (s *stubTechnicians) jobs(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.techs {
		if t.ID == id {
			return t.ActiveJobs
		}
	}
	return -1
}

type stubGuard struct {
	mu     sync.Mutex
	held   map[string]bool
	claims int
}

func newStubGuard() *stubGuard { return &stubGuard{held: make(map[string]bool)} }

func (g *stubGuard) Claim(_ context.Context, scope, key string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.claims++
	if g.held[scope+key] {
		return false, nil
	}
	g.held[scope+key] = true
	return true, nil
}

func (g *stubGuard) Release(_ context.Context, scope, key string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.held, scope+key)
	return nil
}

func newTestInstallationService(techIDs ...string) (*InstallationService, *stubInstallationRepo, *stubTechnicians, *stubGuard) {
	repo := newStubInstallationRepo()
	techs := newStubTechnicians(techIDs...)
	guard := newStubGuard()
	svc := NewInstallationService(repo, techs, guard, zerolog.Nop())
	svc.now = func() time.Time { return time.Date(2026, 5, 4, 9, 30, 0, 0, time.UTC) }
	return svc, repo, techs, guard
}

func validInstallation(userID uint64) ports.CreateInstallationInput {
	return ports.CreateInstallationInput{
		UserID:          userID,
		FarmerName:      "Alice",
		Phone:           "9876543210",
		PreferredDate:   "2026-05-10",
		PreferredWindow: "Morning",
		Location:        ports.LocationInput{State: "Punjab", District: "Ludhiana", Village: "Doraha"},
	}
}

func TestInstallationService_Create_AllocatesTechnician(t *testing.T) {
	svc, _, techs, _ := newTestInstallationService("T1", "T2")

	req, replayed, err := svc.Create(context.Background(), validInstallation(1))
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if replayed {
		t.Fatalf("first create must not be a replay")
	}
	if req.ID != "IOT-2026-000001" {
		t.Fatalf("unexpected id: %s", req.ID)
	}
	if req.Status != domain.StatusAllocated {
		t.Fatalf("expected allocated, got %s", req.Status)
	}
	if req.Technician == nil || req.Technician.ID != "T1" {
		t.Fatalf("expected T1, got %+v", req.Technician)
	}
	if req.Appointment == nil || req.Appointment.Date != "2026-05-10" || req.Appointment.Window != domain.WindowMorning {
		t.Fatalf("unexpected appointment: %+v", req.Appointment)
	}
	if len(req.StatusHistory) != 2 {
		t.Fatalf("expected requested and allocated history, got %+v", req.StatusHistory)
	}
	if techs.jobs("T1") != 1 {
		t.Fatalf("T1 should hold one job")
	}
}

func TestInstallationService_Create_BalancesTechnicians(t *testing.T) {
	svc, _, _, _ := newTestInstallationService("T1", "T2")

	first, _, err := svc.Create(context.Background(), validInstallation(1))
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	second, _, err := svc.Create(context.Background(), validInstallation(2))
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if first.Technician.ID == second.Technician.ID {
		t.Fatalf("expected different technicians, both got %s", first.Technician.ID)
	}
}

func TestInstallationService_Create_NoTechnicians(t *testing.T) {
	svc, _, _, _ := newTestInstallationService()

	req, _, err := svc.Create(context.Background(), validInstallation(1))
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if req.Status != domain.StatusRequested || req.Technician != nil {
		t.Fatalf("expected unallocated request, got %+v", req)
	}
}

func TestInstallationService_Create_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*ports.CreateInstallationInput)
		reason string
	}{
		{"missing name", func(in *ports.CreateInstallationInput) { in.FarmerName = "" }, "Missing required fields"},
		{"missing window", func(in *ports.CreateInstallationInput) { in.PreferredWindow = "" }, "Missing required fields"},
		{"bad phone", func(in *ports.CreateInstallationInput) { in.Phone = "12345" }, "Phone number must be 10 digits"},
		{"bad date", func(in *ports.CreateInstallationInput) { in.PreferredDate = "10/05/2026" }, "Date must be formatted as YYYY-MM-DD"},
		{"bad window", func(in *ports.CreateInstallationInput) { in.PreferredWindow = "Night" }, "Window must be one of Morning, Afternoon, Evening"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, repo, _, _ := newTestInstallationService("T1")
			in := validInstallation(1)
			tt.mutate(&in)

			_, _, err := svc.Create(context.Background(), in)
			var verr *domain.ValidationError
			if !errors.As(err, &verr) || verr.Reason != tt.reason {
				t.Fatalf("expected reason %q, got %v", tt.reason, err)
			}
			if len(repo.requests) != 0 {
				t.Fatalf("invalid input must not create a request")
			}
		})
	}
}

func TestInstallationService_Create_ReplacesActiveRequest(t *testing.T) {
	svc, repo, techs, _ := newTestInstallationService("T1")

	first, _, err := svc.Create(context.Background(), validInstallation(1))
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	second, _, err := svc.Create(context.Background(), validInstallation(1))
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	if repo.requests[first.ID].Status != domain.StatusCancelled {
		t.Fatalf("previous request should be cancelled, got %s", repo.requests[first.ID].Status)
	}
	if second.Status != domain.StatusAllocated {
		t.Fatalf("new request should be allocated, got %s", second.Status)
	}
	if techs.jobs("T1") != 1 {
		t.Fatalf("cancelled request should free its technician, jobs=%d", techs.jobs("T1"))
	}
}

func TestInstallationService_Create_IdempotentReplay(t *testing.T) {
	svc, repo, techs, guard := newTestInstallationService("T1")
	in := validInstallation(1)
	in.IdempotencyKey = "abc-123"

	first, replayed, err := svc.Create(context.Background(), in)
	if err != nil || replayed {
		t.Fatalf("first create: replayed=%v err=%v", replayed, err)
	}
	again, replayed, err := svc.Create(context.Background(), in)
	if err != nil {
		t.Fatalf("replay returned error: %v", err)
	}
	if !replayed || again.ID != first.ID {
		t.Fatalf("expected replay of %s, got %s replayed=%v", first.ID, again.ID, replayed)
	}
	if len(repo.requests) != 1 || techs.jobs("T1") != 1 {
		t.Fatalf("replay must not have side effects")
	}
	if len(guard.held) != 0 {
		t.Fatalf("claim should be released after create")
	}
}

func TestInstallationService_Create_ConcurrentClaimRejected(t *testing.T) {
	svc, _, _, guard := newTestInstallationService("T1")
	in := validInstallation(1)
	in.IdempotencyKey = "abc-123"

	// Another request holds the claim and has not stored anything yet.
	guard.held[idempotencyScope+"1:abc-123"] = true

	_, _, err := svc.Create(context.Background(), in)
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestInstallationService_Status(t *testing.T) {
	svc, _, _, _ := newTestInstallationService("T1")

	none, err := svc.Status(context.Background(), 1)
	if err != nil || none != nil {
		t.Fatalf("expected no request, got %v err=%v", none, err)
	}

	created, _, err := svc.Create(context.Background(), validInstallation(1))
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	got, err := svc.Status(context.Background(), 1)
	if err != nil || got == nil || got.ID != created.ID {
		t.Fatalf("expected %s, got %v err=%v", created.ID, got, err)
	}
}

func TestInstallationService_Reschedule(t *testing.T) {
	svc, _, _, _ := newTestInstallationService("T1")
	created, _, err := svc.Create(context.Background(), validInstallation(1))
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	got, err := svc.Reschedule(context.Background(), ports.RescheduleInput{
		UserID: 1, RequestID: created.ID, NewDate: "2026-05-12", NewWindow: "Evening",
	})
	if err != nil {
		t.Fatalf("Reschedule returned error: %v", err)
	}
	if got.Status != domain.StatusScheduled || got.Appointment.Date != "2026-05-12" || got.Appointment.Window != domain.WindowEvening {
		t.Fatalf("unexpected request: %+v", got)
	}

	// Rescheduling again is allowed.
	if _, err := svc.Reschedule(context.Background(), ports.RescheduleInput{
		UserID: 1, RequestID: created.ID, NewDate: "2026-05-13", NewWindow: "Afternoon",
	}); err != nil {
		t.Fatalf("second reschedule returned error: %v", err)
	}

	_, err = svc.Reschedule(context.Background(), ports.RescheduleInput{
		UserID: 2, RequestID: created.ID, NewDate: "2026-05-12", NewWindow: "Evening",
	})
	if !errors.Is(err, domain.ErrInstallationNotFound) {
		t.Fatalf("another farmer should not see the request, got %v", err)
	}
}

func TestInstallationService_Reschedule_Unallocated(t *testing.T) {
	svc, _, _, _ := newTestInstallationService()
	created, _, err := svc.Create(context.Background(), validInstallation(1))
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if created.Status != domain.StatusRequested {
		t.Fatalf("expected requested, got %s", created.Status)
	}

	got, err := svc.Reschedule(context.Background(), ports.RescheduleInput{
		UserID: 1, RequestID: created.ID, NewDate: "2026-05-14", NewWindow: "Afternoon",
	})
	if err != nil {
		t.Fatalf("Reschedule returned error: %v", err)
	}
	if got.Status != domain.StatusScheduled || got.Technician != nil {
		t.Fatalf("unexpected request: %+v", got)
	}
	if got.Appointment.Date != "2026-05-14" || got.Appointment.Window != domain.WindowAfternoon {
		t.Fatalf("unexpected appointment: %+v", got.Appointment)
	}
}

func TestInstallationService_CancelAndMarkInstalled(t *testing.T) {
	svc, _, techs, _ := newTestInstallationService("T1")

	a, _, err := svc.Create(context.Background(), validInstallation(1))
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if err := svc.Cancel(context.Background(), 1, a.ID); err != nil {
		t.Fatalf("Cancel returned error: %v", err)
	}
	if techs.jobs("T1") != 0 {
		t.Fatalf("cancel should release the technician")
	}
	if err := svc.Cancel(context.Background(), 1, a.ID); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("cancelling twice should fail, got %v", err)
	}

	b, _, err := svc.Create(context.Background(), validInstallation(2))
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	done, err := svc.MarkInstalled(context.Background(), b.ID)
	if err != nil {
		t.Fatalf("MarkInstalled returned error: %v", err)
	}
	if done.Status != domain.StatusInstalled {
		t.Fatalf("expected installed, got %s", done.Status)
	}
	if techs.jobs("T1") != 0 {
		t.Fatalf("installed request should release the technician")
	}
	if _, err := svc.Reschedule(context.Background(), ports.RescheduleInput{
		UserID: 2, RequestID: b.ID, NewDate: "2026-05-12", NewWindow: "Evening",
	}); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("installed request cannot be rescheduled, got %v", err)
	}
}
