package engine

import (
	"context"
	"time"

	"github.com/tickerlens/tickerlens/internal/core"
)

// GuardConfig combines throttle and breaker settings for one provider.
type GuardConfig struct {
	MaxCallsPerWindow int
	Window            time.Duration
	SafetyMargin      float64
	FailureThreshold  int
	BaseCooldown      time.Duration
	BackoffFactor     float64
	MaxCooldown       time.Duration
}

// DefaultGuardConfig returns the stock limits: 100 calls per hour, trip after
// 3 rate-limit signals, 60s base cooldown doubling up to 1h.
func DefaultGuardConfig() GuardConfig {
	return GuardConfig{
		MaxCallsPerWindow: DefaultRateLimit.RequestsPerWindow,
		Window:            DefaultRateLimit.WindowDuration,
		SafetyMargin:      1,
		FailureThreshold:  DefaultBreakerConfig.FailureThreshold,
		BaseCooldown:      DefaultBreakerConfig.BaseCooldown,
		BackoffFactor:     DefaultBreakerConfig.BackoffFactor,
		MaxCooldown:       DefaultBreakerConfig.MaxCooldown,
	}
}

// Merge returns c with every zero field taken from base.
func (c GuardConfig) Merge(base GuardConfig) GuardConfig {
	if c.MaxCallsPerWindow <= 0 {
		c.MaxCallsPerWindow = base.MaxCallsPerWindow
	}
	if c.Window <= 0 {
		c.Window = base.Window
	}
	if c.SafetyMargin <= 0 {
		c.SafetyMargin = base.SafetyMargin
	}
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = base.FailureThreshold
	}
	if c.BaseCooldown <= 0 {
		c.BaseCooldown = base.BaseCooldown
	}
	if c.BackoffFactor <= 0 {
		c.BackoffFactor = base.BackoffFactor
	}
	if c.MaxCooldown <= 0 {
		c.MaxCooldown = base.MaxCooldown
	}
	return c
}

// Guard is the admission point for calls to one rate-limited provider. Every
// admitted call must be followed by ReportSuccess or ReportRateLimited when the
// provider answered; other failures are not reported.
type Guard struct {
	provider string
	throttle *Throttle
	breaker  *CircuitBreaker
}

// NewGuard builds a guard for provider. Zero config values use defaults.
func NewGuard(provider string, cfg GuardConfig, opts ...Option) *Guard {
	cfg = cfg.Merge(DefaultGuardConfig())

	throttle := NewThrottle(RateLimit{
		RequestsPerWindow: cfg.MaxCallsPerWindow,
		WindowDuration:    cfg.Window,
	}, opts...)
	throttle.ApplySafetyMargin(cfg.SafetyMargin)

	breaker := NewCircuitBreaker(BreakerConfig{
		FailureThreshold: cfg.FailureThreshold,
		BaseCooldown:     cfg.BaseCooldown,
		BackoffFactor:    cfg.BackoffFactor,
		MaxCooldown:      cfg.MaxCooldown,
	}, opts...)

	return &Guard{
		provider: provider,
		throttle: throttle,
		breaker:  breaker,
	}
}

// Provider returns the provider name the guard protects.
func (g *Guard) Provider() string {
	if g == nil {
		return ""
	}
	return g.provider
}

// Admission is the receipt for one admitted call. The zero value stands for a
// call admitted while the breaker was CLOSED.
type Admission struct {
	ticket uint64
}

// Probe reports whether the call was admitted as the HALF_OPEN probe.
func (a Admission) Probe() bool {
	return a.ticket != 0
}

// Admit asks the breaker first and then waits for a throttle slot. It fails
// with a *CircuitOpenError when the breaker refuses, or with
// ErrDeadlineExceeded when ctx ends during the wait. A failed Admit leaves no
// reservation behind.
func (g *Guard) Admit(ctx context.Context) error {
	_, err := g.Acquire(ctx)
	return err
}

// Acquire is Admit for callers that may later hand the admission back through
// ReportInconclusive.
func (g *Guard) Acquire(ctx context.Context) (Admission, error) {
	if g == nil {
		return Admission{}, nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return Admission{}, deadlineError(err)
	}

	decision := g.breaker.CanAdmit()
	if !decision.Allowed {
		return Admission{}, &CircuitOpenError{
			Provider:  g.provider,
			Remaining: decision.Remaining,
			Probing:   decision.Remaining == 0,
		}
	}

	if err := g.throttle.Admit(ctx); err != nil {
		g.breaker.Release(decision.Ticket)
		return Admission{}, deadlineError(err)
	}

	return Admission{ticket: decision.Ticket}, nil
}

// ReportSuccess records that the provider answered without a rate-limit signal.
func (g *Guard) ReportSuccess() {
	if g == nil {
		return
	}
	g.breaker.ReportSuccess()
}

// ReportRateLimited records a rate-limit signal (HTTP 429 or equivalent).
func (g *Guard) ReportRateLimited() {
	if g == nil {
		return
	}
	g.breaker.ReportFailure()
}

// ReportInconclusive records that the call behind a ended without telling us
// anything about rate limiting (transport error, 5xx). The failure streak is
// left alone. When a is the outstanding probe it is handed back so the breaker
// can probe again instead of staying HALF_OPEN; any other admission is a no-op.
func (g *Guard) ReportInconclusive(a Admission) {
	if g == nil {
		return
	}
	g.breaker.Release(a.ticket)
}

// Status returns a read-only snapshot. It does not touch admission bookkeeping.
func (g *Guard) Status() core.GuardStatus {
	if g == nil {
		return core.GuardStatus{}
	}

	state, failures, cooldown, remaining := g.breaker.Snapshot()
	used, limit, resetsAt := g.throttle.Usage()

	return core.GuardStatus{
		Provider:                 g.provider,
		State:                    state,
		ConsecutiveFailures:      failures,
		CallsUsedInWindow:        used,
		MaxCallsPerWindow:        limit,
		WindowResetsAt:           resetsAt,
		CooldownRemainingSeconds: remaining.Seconds(),
		CooldownSeconds:          cooldown.Seconds(),
	}
}
