package handler

// --- Request types ---

type locationRequest struct {
	Lat      *float64 `json:"lat"      validate:"omitempty,latitude"`
	Lon      *float64 `json:"lon"      validate:"omitempty,longitude"`
	State    string   `json:"state"    validate:"max=100"`
	District string   `json:"district" validate:"max=100"`
	Village  string   `json:"village"  validate:"max=100"`
	Landmark string   `json:"landmark" validate:"max=200"`
}

type createInstallationRequest struct {
	FarmerName      string          `json:"farmerName"      validate:"max=100"`
	Phone           string          `json:"phone"`
	Location        locationRequest `json:"location"`
	PreferredDate   string          `json:"preferredDate"`
	PreferredWindow string          `json:"preferredWindow"`
	Notes           string          `json:"notes"           validate:"max=500"`
}

type rescheduleRequest struct {
	ID        string `json:"id"`
	NewDate   string `json:"newDate"`
	NewWindow string `json:"newWindow"`
}

type requestIDRequest struct {
	ID string `json:"id"`
}
