package migration

import "errors"

// ---------------------------------------------------------------------------
// Remote source errors
// ---------------------------------------------------------------------------

var (
	ErrRemoteUnavailable     = errors.New("migration: remote source temporarily unavailable")
	ErrRemoteRateLimited     = errors.New("migration: remote source rate limited")
	ErrRemoteQueryFailed     = errors.New("migration: remote query returned errors")
	ErrRemoteRequestFailed   = errors.New("migration: remote request failed")
	ErrRemoteAuthFailed      = errors.New("migration: remote authentication failed")
	ErrRemoteNotFound        = errors.New("migration: remote resource not found")
	ErrRemoteInvalidResponse = errors.New("migration: invalid remote response")
	ErrRetriesExhausted      = errors.New("migration: retries exhausted")
	ErrNoRemoteData          = errors.New("migration: remote source returned no items")
)

// ---------------------------------------------------------------------------
// Local store and engine errors
// ---------------------------------------------------------------------------

var (
	ErrEntityNotFound       = errors.New("migration: entity not found")
	ErrEntityFailed         = errors.New("migration: entity processing failed")
	ErrUnknownField         = errors.New("migration: unknown field")
	ErrUnknownWeightUnit    = errors.New("migration: unknown weight unit")
	ErrInvalidOptions       = errors.New("migration: invalid run options")
	ErrRunLocked            = errors.New("migration: another run holds the lock")
	ErrInvalidMigrationFile = errors.New("migration: invalid migration file")
)

// IsRetryable reports whether err is a transient remote failure that may
// succeed when the same request is sent again.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrRemoteUnavailable) ||
		errors.Is(err, ErrRemoteRateLimited) ||
		errors.Is(err, ErrRemoteQueryFailed)
}
