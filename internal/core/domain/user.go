package domain

import "time"

// Role partitions the username namespace and gates role-specific routes.
type Role string

const (
	RoleFarmer Role = "farmer"
	RoleVendor Role = "vendor"
	RoleAdmin  Role = "admin"
)

// Roles lists every role accepted at registration.
var Roles = []Role{RoleFarmer, RoleVendor, RoleAdmin}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	for _, known := range Roles {
		if r == known {
			return true
		}
	}
	return false
}

// DashboardPath is the front-end route a freshly logged in user lands on.
func (r Role) DashboardPath() string {
	if !r.Valid() {
		return "/login"
	}
	return "/" + string(r) + "/dashboard"
}

// User is the full credential record. It only leaves the credential store
// towards the auth service; everything else sees PublicUser.
type User struct {
	ID           uint64
	Role         Role
	Name         string
	Phone        string
	Aadhar       string
	Username     string
	PasswordHash string
	CreatedAt    time.Time
}

// Public strips the password hash.
func (u *User) Public() *PublicUser {
	if u == nil {
		return nil
	}
	return &PublicUser{
		ID:        u.ID,
		Role:      u.Role,
		Name:      u.Name,
		Phone:     u.Phone,
		Aadhar:    u.Aadhar,
		Username:  u.Username,
		CreatedAt: u.CreatedAt,
	}
}

// PublicUser is the user projection safe to hand to clients.
type PublicUser struct {
	ID        uint64    `json:"id"`
	Role      Role      `json:"role"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone"`
	Aadhar    string    `json:"aadhar"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
}

// NewUser carries the fields persisted on registration.
type NewUser struct {
	Role         Role
	Name         string
	Phone        string
	Aadhar       string
	Username     string
	PasswordHash string
}
