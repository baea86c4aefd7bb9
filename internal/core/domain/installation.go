package domain

import "time"

// InstallationStatus represents the lifecycle state of a sensor installation request.
type InstallationStatus string

const (
	StatusRequested InstallationStatus = "requested"
	StatusAllocated InstallationStatus = "allocated"
	StatusScheduled InstallationStatus = "scheduled"
	StatusInstalled InstallationStatus = "installed"
	StatusCancelled InstallationStatus = "cancelled"
)

// validTransitions defines the allowed state machine transitions.
var validTransitions = map[InstallationStatus][]InstallationStatus{
	StatusRequested: {StatusAllocated, StatusScheduled, StatusCancelled},
	StatusAllocated: {StatusScheduled, StatusInstalled, StatusCancelled},
	StatusScheduled: {StatusScheduled, StatusInstalled, StatusCancelled},
}

// CanTransitionTo reports whether a transition from current status to next is valid.
func (s InstallationStatus) CanTransitionTo(next InstallationStatus) bool {
	for _, allowed := range validTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Active reports whether the request still occupies a technician slot.
func (s InstallationStatus) Active() bool {
	return s != StatusInstalled && s != StatusCancelled
}

// TimeWindow is the part of the day an appointment is booked for.
type TimeWindow string

const (
	WindowMorning   TimeWindow = "Morning"
	WindowAfternoon TimeWindow = "Afternoon"
	WindowEvening   TimeWindow = "Evening"
)

// Valid reports whether w is a bookable window.
func (w TimeWindow) Valid() bool {
	switch w {
	case WindowMorning, WindowAfternoon, WindowEvening:
		return true
	}
	return false
}

// FarmLocation is where the sensor goes. Every field is optional.
type FarmLocation struct {
	Lat      *float64 `json:"lat,omitempty" bson:"lat,omitempty"`
	Lon      *float64 `json:"lon,omitempty" bson:"lon,omitempty"`
	State    string   `json:"state,omitempty" bson:"state,omitempty"`
	District string   `json:"district,omitempty" bson:"district,omitempty"`
	Village  string   `json:"village,omitempty" bson:"village,omitempty"`
	Landmark string   `json:"landmark,omitempty" bson:"landmark,omitempty"`
}

// Technician is a field engineer who installs sensors.
type Technician struct {
	ID         string  `json:"id" bson:"tech_id"`
	Name       string  `json:"name" bson:"name"`
	Phone      string  `json:"phone" bson:"phone"`
	Rating     float64 `json:"rating,omitempty" bson:"rating"`
	ActiveJobs int     `json:"-" bson:"active_jobs"`
}

// Appointment is the booked visit slot.
type Appointment struct {
	Date   string     `json:"date" bson:"date"`
	Window TimeWindow `json:"window" bson:"window"`
}

// StatusHistoryEntry records a single status transition on a request.
type StatusHistoryEntry struct {
	Status    InstallationStatus `json:"status" bson:"status"`
	Timestamp time.Time          `json:"timestamp" bson:"timestamp"`
	Notes     string             `json:"notes,omitempty" bson:"notes,omitempty"`
}

// InstallationRequest is the aggregate root of the IoT installation workflow.
type InstallationRequest struct {
	ID              string               `json:"id" bson:"request_id"`
	UserID          uint64               `json:"-" bson:"user_id"`
	FarmerName      string               `json:"farmerName" bson:"farmer_name"`
	Phone           string               `json:"phone" bson:"phone"`
	Location        FarmLocation         `json:"location" bson:"location"`
	PreferredDate   string               `json:"preferredDate" bson:"preferred_date"`
	PreferredWindow TimeWindow           `json:"preferredWindow" bson:"preferred_window"`
	Notes           string               `json:"notes,omitempty" bson:"notes,omitempty"`
	Status          InstallationStatus   `json:"status" bson:"status"`
	Technician      *Technician          `json:"technician,omitempty" bson:"technician,omitempty"`
	Appointment     *Appointment         `json:"appointment,omitempty" bson:"appointment,omitempty"`
	StatusHistory   []StatusHistoryEntry `json:"statusHistory" bson:"status_history"`
	IdempotencyKey  string               `json:"-" bson:"idempotency_key,omitempty"`
	CreatedAt       time.Time            `json:"createdAt" bson:"created_at"`
}
