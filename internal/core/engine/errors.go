package engine

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrCircuitOpen reports that the breaker is protecting the provider and the
	// call must not be attempted.
	ErrCircuitOpen = errors.New("circuit open")

	// ErrDeadlineExceeded reports that the caller's wait budget ran out before a
	// throttle slot became available.
	ErrDeadlineExceeded = errors.New("admission deadline exceeded")
)

// CircuitOpenError is returned by Guard.Admit when the breaker refuses admission.
// It matches ErrCircuitOpen with errors.Is.
type CircuitOpenError struct {
	Provider string
	// Remaining is the time until the breaker will admit a probe. Zero while a
	// probe is already outstanding.
	Remaining time.Duration
	Probing   bool
}

func (e *CircuitOpenError) Error() string {
	if e.Probing {
		return fmt.Sprintf("%s for %q: probe in flight", ErrCircuitOpen, e.Provider)
	}
	return fmt.Sprintf("%s for %q: retry in %s", ErrCircuitOpen, e.Provider, e.Remaining.Round(time.Second))
}

func (e *CircuitOpenError) Is(target error) bool {
	return target == ErrCircuitOpen
}

// RetryAfter returns the remaining cooldown carried by a CircuitOpen error.
func RetryAfter(err error) (time.Duration, bool) {
	var openErr *CircuitOpenError
	if !errors.As(err, &openErr) {
		return 0, false
	}
	return openErr.Remaining, true
}

func deadlineError(cause error) error {
	return fmt.Errorf("%w: %w", ErrDeadlineExceeded, cause)
}
