package ports

import (
	"errors"
	"fmt"
)

// Standard application-level errors.
// Adapters should wrap underlying infrastructure errors with these standard errors.
var (
	// General Errors
	ErrUnknown            = errors.New("unknown error occurred")
	ErrInvalidRequest     = errors.New("invalid request parameters or format")
	ErrNotFound           = errors.New("resource not found")
	ErrContextCanceled    = errors.New("operation canceled via context")
	ErrConfigurationError = errors.New("invalid or missing configuration")

	// Exchange Specific Errors
	ErrTransport            = errors.New("exchange transport failure")
	ErrAuthenticationFailed = errors.New("exchange authentication failed (check API key and secret)")

	// Refinements of ErrTransport; errors.Is matches both the refinement and ErrTransport.
	ErrRateLimited = fmt.Errorf("API rate limit exceeded: %w", ErrTransport)
	ErrTimeout     = fmt.Errorf("operation timed out: %w", ErrTransport)

	// Data Errors
	ErrDataIntegrity = errors.New("exchange data failed integrity checks")

	// Database Specific Errors
	ErrDBConnection = errors.New("database connection error")
	ErrQueryFailed  = errors.New("database query failed")
	ErrInsertFailed = errors.New("database insert failed")
)

// IsFatal reports whether err must stop the process instead of being retried next cycle.
func IsFatal(err error) bool {
	return errors.Is(err, ErrAuthenticationFailed) || errors.Is(err, ErrConfigurationError)
}
