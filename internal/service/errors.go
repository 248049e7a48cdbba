package service

import (
	"errors"
	"fmt"

	"finance-tracker/internal/models"
)

var (
	// ErrValidation wraps every input validation failure.
	ErrValidation = errors.New("validation error")

	// ErrInvalidCredentials is returned for a failed login. Unknown users and
	// wrong passwords are deliberately indistinguishable.
	ErrInvalidCredentials = errors.New("invalid username or password")

	// ErrUserExists is returned when registering a taken username.
	ErrUserExists = models.ErrUserExists

	// ErrNotFound is returned when a required record is absent.
	ErrNotFound = models.ErrNotFound
)

func validationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
