package ports

import "errors"

// Standard application-level errors.
// Adapters and the run driver wrap underlying errors with these standard
// errors so callers can branch on category instead of message text.
var (
	// General Errors
	ErrUnknown            = errors.New("unknown error occurred")
	ErrInvalidRequest     = errors.New("invalid request parameters or format")
	ErrNotFound           = errors.New("resource not found")
	ErrTimeout            = errors.New("operation timed out")
	ErrContextCanceled    = errors.New("operation canceled via context")
	ErrConfigurationError = errors.New("invalid or missing configuration")

	// Run Failures (abort the run, surfaced to the caller)
	ErrDataUnavailable = errors.New("no bar data available for the requested range")
	ErrInvalidWindow   = errors.New("invalid trading window")

	// Feed Specific Errors
	ErrFeedUnavailable    = errors.New("bar feed is unavailable")
	ErrNoCandidate        = errors.New("no candidate symbol succeeded")
	ErrNonMonotonicSeries = errors.New("bar series timestamps are not strictly increasing")

	// Database Specific Errors
	ErrDuplicateEntry = errors.New("database record already exists")
	ErrDBConnection   = errors.New("database connection error")
	ErrQueryFailed    = errors.New("database query failed")
	ErrUpdateFailed   = errors.New("database update failed")
	ErrDeleteFailed   = errors.New("database delete failed")
)
