package domain

import "errors"

// Error taxonomy shared by every layer. Wrap with fmt.Errorf("...: %w", err)
// and test with errors.Is.
var (
	ErrNotFound          = errors.New("not found")
	ErrForbidden         = errors.New("not permitted")
	ErrSlotConflict      = errors.New("slot already booked")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrValidation        = errors.New("validation failed")
	ErrDuplicateReview   = errors.New("review already exists for this booking")
	ErrUnavailable       = errors.New("store unavailable")
)

// IsRetryable reports whether the caller may retry the operation with backoff.
// Only ErrUnavailable qualifies; every other outcome is deterministic.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}
