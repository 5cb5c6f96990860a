package core

import "time"

// CircuitState identifies the circuit breaker state of a provider guard.
type CircuitState string

const (
	CircuitClosed   CircuitState = "CLOSED"
	CircuitOpen     CircuitState = "OPEN"
	CircuitHalfOpen CircuitState = "HALF_OPEN"
)

// GuardStatus is a point-in-time snapshot of a provider guard.
type GuardStatus struct {
	Provider                 string       `json:"provider"`
	State                    CircuitState `json:"state"`
	ConsecutiveFailures      int          `json:"consecutive_failures"`
	CallsUsedInWindow        int          `json:"calls_used_in_window"`
	MaxCallsPerWindow        int          `json:"max_calls_per_window"`
	WindowResetsAt           time.Time    `json:"window_resets_at"`
	CooldownRemainingSeconds float64      `json:"cooldown_remaining_seconds"`
	CooldownSeconds          float64      `json:"cooldown_seconds"`
}

// Admitting reports whether the guard would currently let a call through
// without waiting on the breaker.
func (s GuardStatus) Admitting() bool {
	return s.State == CircuitClosed || (s.State == CircuitOpen && s.CooldownRemainingSeconds <= 0)
}
