package metrics

import (
	"time"

	"github.com/tickerlens/tickerlens/internal/core"
	"github.com/tickerlens/tickerlens/internal/observability"
)

// Guard metrics
const (
	GuardAdmissionsTotal  = "guard_admissions_total"
	GuardState            = "guard_state"
	GuardCallsInWindow    = "guard_calls_in_window"
	GuardRateLimitedTotal = "guard_rate_limited_total"
	GuardWaitDuration     = "guard_wait_duration_ms"
)

// Admission outcomes used as the "outcome" label.
const (
	AdmissionGranted  = "granted"
	AdmissionRejected = "rejected"
	AdmissionTimeout  = "timeout"
)

// RecordGuardAdmission counts one admission decision for provider.
func RecordGuardAdmission(provider, outcome string) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			GuardAdmissionsTotal,
			1,
			map[string]string{
				"provider": provider,
				"outcome":  outcome,
			},
		)
	}
}

// RecordGuardStatus publishes breaker state (0 closed, 1 half-open, 2 open)
// and window usage for one guard.
func RecordGuardStatus(status core.GuardStatus) {
	if observability.TelemetrySystem == nil {
		return
	}

	labels := map[string]string{"provider": status.Provider}
	_ = observability.TelemetrySystem.Gauge(GuardState, stateValue(status.State), labels)
	_ = observability.TelemetrySystem.Gauge(GuardCallsInWindow, float64(status.CallsUsedInWindow), labels)
}

// RecordGuardWait records how long an admitted call waited for its slot.
func RecordGuardWait(provider string, wait time.Duration) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Histogram(
			GuardWaitDuration,
			wait,
			map[string]string{
				"provider": provider,
			},
		)
	}
}

// RecordRateLimited counts a rate-limit signal from provider.
func RecordRateLimited(provider string) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			GuardRateLimitedTotal,
			1,
			map[string]string{
				"provider": provider,
			},
		)
	}
}

func stateValue(state core.CircuitState) float64 {
	switch state {
	case core.CircuitOpen:
		return 2
	case core.CircuitHalfOpen:
		return 1
	default:
		return 0
	}
}
