package engine

import (
	"context"
	"math"
	"sync"
	"time"
)

// RateLimit represents a rate limit window.
type RateLimit struct {
	RequestsPerWindow int
	WindowDuration    time.Duration
}

// DefaultRateLimit matches the "100 requests per hour" contract most providers
// advertise.
var DefaultRateLimit = RateLimit{RequestsPerWindow: 100, WindowDuration: time.Hour}

// Throttle enforces a maximum number of calls within a fixed window that
// restarts lazily on the first access after it elapses.
type Throttle struct {
	limit  RateLimit
	margin float64
	clock  func() time.Time
	sleep  func(ctx context.Context, d time.Duration) error

	mu          sync.Mutex
	windowStart time.Time
	calls       int
}

// NewThrottle creates a throttle for the given limit. Non-positive values fall
// back to DefaultRateLimit.
func NewThrottle(limit RateLimit, opts ...Option) *Throttle {
	if limit.RequestsPerWindow <= 0 {
		limit.RequestsPerWindow = DefaultRateLimit.RequestsPerWindow
	}
	if limit.WindowDuration <= 0 {
		limit.WindowDuration = DefaultRateLimit.WindowDuration
	}

	o := collectOptions(opts)
	return &Throttle{
		limit: limit,
		clock: o.clock,
		sleep: o.sleep,
	}
}

// ApplySafetyMargin adjusts the effective request limit by a ratio (0-1].
func (t *Throttle) ApplySafetyMargin(margin float64) {
	if t == nil || margin <= 0 || margin > 1 {
		return
	}
	t.mu.Lock()
	t.margin = margin
	t.mu.Unlock()
}

// Admit blocks until a slot is available in the current window and reserves it.
// Waiting is never an error; only ctx ending the wait is, and in that case no
// slot has been reserved.
func (t *Throttle) Admit(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		wait, ok := t.tryAdmit()
		if ok {
			return nil
		}

		if err := t.sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// tryAdmit reserves a slot if one is free, otherwise reports how long until the
// current window ends.
func (t *Throttle) tryAdmit() (time.Duration, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.clock()
	if now.Sub(t.windowStart) >= t.limit.WindowDuration {
		t.windowStart = now
		t.calls = 0
	}

	if t.calls < t.effectiveLimit() {
		t.calls++
		return 0, true
	}

	return t.windowStart.Add(t.limit.WindowDuration).Sub(now), false
}

// Usage reports calls used in the current window, the effective ceiling, and
// when the window resets. It does not reset an elapsed window.
func (t *Throttle) Usage() (used int, limit int, resetsAt time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.clock()
	limit = t.effectiveLimit()
	if t.windowStart.IsZero() || now.Sub(t.windowStart) >= t.limit.WindowDuration {
		return 0, limit, now
	}
	return t.calls, limit, t.windowStart.Add(t.limit.WindowDuration)
}

func (t *Throttle) effectiveLimit() int {
	if t.margin <= 0 || t.margin > 1 {
		return t.limit.RequestsPerWindow
	}
	adjusted := int(math.Floor(float64(t.limit.RequestsPerWindow) * t.margin))
	if adjusted < 1 {
		adjusted = 1
	}
	return adjusted
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
