package services

import (
	"errors"
	"fmt"
)

// Error classes. Handlers map them onto HTTP statuses with errors.Is;
// anything else is an internal error.
var (
	ErrValidation   = errors.New("validation failed")
	ErrNotFound     = errors.New("not found")
	ErrForbidden    = errors.New("forbidden")
	ErrUnauthorized = errors.New("unauthorized")
	ErrConflict     = errors.New("conflict")
	ErrUnavailable  = errors.New("unavailable")
)

var (
	ErrInvalidCredentials  = fmt.Errorf("%w: invalid email or password", ErrUnauthorized)
	ErrUserNotFound        = fmt.Errorf("%w: user not found", ErrNotFound)
	ErrServiceNotFound     = fmt.Errorf("%w: service not found", ErrNotFound)
	ErrServiceUnavailable  = fmt.Errorf("%w: service not found or disabled", ErrForbidden)
	ErrGrantMissing        = fmt.Errorf("%w: user has no access to service", ErrForbidden)
	ErrEmailTaken          = fmt.Errorf("%w: email already registered", ErrConflict)
	ErrUsernameTaken       = fmt.Errorf("%w: username already taken", ErrConflict)
	ErrNotificationFailed  = fmt.Errorf("%w: service could not be notified", ErrUnavailable)
	ErrInvalidSessionToken = fmt.Errorf("%w: invalid or expired token", ErrUnauthorized)
	ErrNotAuthenticated    = fmt.Errorf("%w: not authenticated", ErrUnauthorized)
	ErrServiceKeysMissing  = fmt.Errorf("%w: service signing keys not generated", ErrUnavailable)
)

func validationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
