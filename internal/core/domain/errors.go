package domain

import (
	"errors"
	"fmt"
)

var (
	ErrValidation          = errors.New("validation failed")
	ErrDuplicateCredential = errors.New("username already exists for this role")
	ErrInvalidCredentials  = errors.New("invalid username or password for selected role")
	ErrStorage             = errors.New("storage failure")

	ErrSessionInvalid = errors.New("session invalid")
	ErrSessionExpired = fmt.Errorf("%w: expired", ErrSessionInvalid)
	ErrForbidden      = errors.New("access forbidden")

	ErrInstallationNotFound = errors.New("installation request not found")
	ErrInvalidTransition    = errors.New("invalid status transition")
)

// ValidationError reports the first rule a request broke. Reason is safe to
// show to the client as is.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

// Is makes errors.Is(err, ErrValidation) hold for every ValidationError.
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// Invalid builds a ValidationError.
func Invalid(reason string) error {
	return &ValidationError{Reason: reason}
}
