package errors

import (
	"errors"

	"github.com/alecthomas/kong"

	"go.hackfix.me/dbmigrate/db/types"
	"go.hackfix.me/dbmigrate/migrate"
)

// Process exit codes.
const (
	ExitOK         = 0
	ExitFailure    = 1
	ExitValidation = 2
)

// ValidationError is returned for invalid user input or configuration. It's
// reported without running anything against the database.
type ValidationError struct {
	Err error
}

// NewValidation wraps err in a ValidationError.
func NewValidation(err error) *ValidationError {
	return &ValidationError{Err: err}
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return e.Err.Error()
}

// Unwrap allows errors.Is and errors.As to work.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// ExitCode returns the process exit code for err.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}

	var (
		verr    *ValidationError
		inerr   *types.InvalidInputError
		cfgerr  *migrate.ConfigError
		nameerr *migrate.NameTooLongError
		perr    *kong.ParseError
	)
	switch {
	case errors.As(err, &verr),
		errors.As(err, &inerr),
		errors.As(err, &cfgerr),
		errors.As(err, &nameerr),
		errors.As(err, &perr):
		return ExitValidation
	}

	return ExitFailure
}
