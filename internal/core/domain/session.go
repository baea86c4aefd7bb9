package domain

import "time"

// Session binds an opaque identifier to the user that logged in.
type Session struct {
	ID        string
	UserID    uint64
	Role      Role
	Username  string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Expired reports whether the session is no longer valid at now.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
