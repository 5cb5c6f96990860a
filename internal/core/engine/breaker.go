package engine

import (
	"sync"
	"time"

	"github.com/tickerlens/tickerlens/internal/core"
)

// BreakerConfig controls when the breaker trips and how long it stays open.
type BreakerConfig struct {
	FailureThreshold int
	BaseCooldown     time.Duration
	BackoffFactor    float64
	MaxCooldown      time.Duration
}

// DefaultBreakerConfig trips after three consecutive rate-limit signals and
// doubles a one minute cooldown up to an hour.
var DefaultBreakerConfig = BreakerConfig{
	FailureThreshold: 3,
	BaseCooldown:     time.Minute,
	BackoffFactor:    2,
	MaxCooldown:      time.Hour,
}

// Decision is the outcome of a breaker admission check.
type Decision struct {
	Allowed bool
	// Probe is set when this admission moved the breaker to HALF_OPEN.
	Probe bool
	// Ticket identifies the probe. Only its holder may Release it.
	Ticket uint64
	// Remaining is the cooldown left when admission is refused while OPEN.
	Remaining time.Duration
}

// CircuitBreaker tracks consecutive rate-limit signals and suspends admission
// once they cross the threshold.
type CircuitBreaker struct {
	cfg   BreakerConfig
	clock func() time.Time

	mu       sync.Mutex
	state    core.CircuitState
	failures int
	openedAt time.Time
	cooldown time.Duration
	probes   uint64
}

// NewCircuitBreaker creates a closed breaker. Zero config values take their
// DefaultBreakerConfig counterparts. A BackoffFactor between 0 and 1 is
// clamped to 1 so the cooldown never shrinks.
func NewCircuitBreaker(cfg BreakerConfig, opts ...Option) *CircuitBreaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = DefaultBreakerConfig.FailureThreshold
	}
	if cfg.BaseCooldown <= 0 {
		cfg.BaseCooldown = DefaultBreakerConfig.BaseCooldown
	}
	switch {
	case cfg.BackoffFactor <= 0:
		cfg.BackoffFactor = DefaultBreakerConfig.BackoffFactor
	case cfg.BackoffFactor < 1:
		cfg.BackoffFactor = 1
	}
	if cfg.MaxCooldown <= 0 {
		cfg.MaxCooldown = DefaultBreakerConfig.MaxCooldown
	}
	if cfg.MaxCooldown < cfg.BaseCooldown {
		cfg.MaxCooldown = cfg.BaseCooldown
	}

	o := collectOptions(opts)
	return &CircuitBreaker{
		cfg:      cfg,
		clock:    o.clock,
		state:    core.CircuitClosed,
		cooldown: cfg.BaseCooldown,
	}
}

// CanAdmit decides whether a call may proceed. An OPEN breaker whose cooldown
// has elapsed admits exactly one probe and moves to HALF_OPEN.
func (b *CircuitBreaker) CanAdmit() Decision {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case core.CircuitClosed:
		return Decision{Allowed: true}
	case core.CircuitOpen:
		remaining := b.remainingLocked(b.clock())
		if remaining > 0 {
			return Decision{Remaining: remaining}
		}
		b.state = core.CircuitHalfOpen
		b.failures = 0
		b.probes++
		return Decision{Allowed: true, Probe: true, Ticket: b.probes}
	default:
		return Decision{}
	}
}

// ReportFailure records a rate-limit signal.
func (b *CircuitBreaker) ReportFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures++

	switch b.state {
	case core.CircuitHalfOpen:
		next := time.Duration(float64(b.cooldown) * b.cfg.BackoffFactor)
		if next > b.cfg.MaxCooldown || next <= 0 {
			next = b.cfg.MaxCooldown
		}
		b.cooldown = next
		b.openLocked()
	case core.CircuitClosed:
		if b.failures >= b.cfg.FailureThreshold {
			b.cooldown = b.cfg.BaseCooldown
			b.openLocked()
		}
	}
}

// ReportSuccess records a successful call. A successful probe closes the
// breaker and resets the cooldown.
func (b *CircuitBreaker) ReportSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == core.CircuitHalfOpen {
		b.state = core.CircuitClosed
		b.cooldown = b.cfg.BaseCooldown
	}
	b.failures = 0
}

// Release hands back the probe identified by ticket when it ended without a
// verdict. The breaker returns to OPEN with its cooldown untouched, so the next
// CanAdmit may probe again straight away. A ticket from an earlier probe, or
// zero, is ignored and Release reports false.
func (b *CircuitBreaker) Release(ticket uint64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if ticket == 0 || ticket != b.probes || b.state != core.CircuitHalfOpen {
		return false
	}
	b.state = core.CircuitOpen
	return true
}

// Snapshot returns the state, failure streak, current cooldown and the
// cooldown remaining before a probe. It never transitions the breaker.
func (b *CircuitBreaker) Snapshot() (core.CircuitState, int, time.Duration, time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var remaining time.Duration
	if b.state == core.CircuitOpen {
		remaining = b.remainingLocked(b.clock())
	}
	return b.state, b.failures, b.cooldown, remaining
}

func (b *CircuitBreaker) openLocked() {
	b.state = core.CircuitOpen
	b.openedAt = b.clock()
	b.failures = 0
}

func (b *CircuitBreaker) remainingLocked(now time.Time) time.Duration {
	remaining := b.openedAt.Add(b.cooldown).Sub(now)
	if remaining < 0 {
		return 0
	}
	return remaining
}
