package worker

import "errors"

// ErrUnknownJobType is returned when a job names a type no processor was
// registered for.
var ErrUnknownJobType = errors.New("worker: unknown job type")

// NonRetryableError marks a job failure as permanent. The loop fails the job
// immediately instead of scheduling another attempt.
type NonRetryableError struct {
	Err error
}

func (e *NonRetryableError) Error() string { return e.Err.Error() }

func (e *NonRetryableError) Unwrap() error { return e.Err }

// NonRetryable wraps err so the loop treats the failure as permanent.
// Returns nil when err is nil.
func NonRetryable(err error) error {
	if err == nil {
		return nil
	}
	return &NonRetryableError{Err: err}
}

// IsNonRetryable reports whether err carries the permanent failure marker
// anywhere in its chain.
func IsNonRetryable(err error) bool {
	var nr *NonRetryableError
	return errors.As(err, &nr)
}
