package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tickerlens/tickerlens/internal/core"
)

func newTestBreaker(clock *fakeClock) *CircuitBreaker {
	return NewCircuitBreaker(BreakerConfig{
		FailureThreshold: 3,
		BaseCooldown:     time.Minute,
		BackoffFactor:    2,
		MaxCooldown:      5 * time.Minute,
	}, WithClock(clock.Now))
}

func TestBreakerTripsAtThreshold(t *testing.T) {
	clock := newFakeClock()
	breaker := newTestBreaker(clock)

	breaker.ReportFailure()
	breaker.ReportFailure()
	require.True(t, breaker.CanAdmit().Allowed)

	breaker.ReportFailure()
	decision := breaker.CanAdmit()
	assert.False(t, decision.Allowed)
	assert.Equal(t, time.Minute, decision.Remaining)

	state, failures, cooldown, remaining := breaker.Snapshot()
	assert.Equal(t, core.CircuitOpen, state)
	assert.Zero(t, failures)
	assert.Equal(t, time.Minute, cooldown)
	assert.Equal(t, time.Minute, remaining)
}

func TestBreakerSuccessResetsStreak(t *testing.T) {
	clock := newFakeClock()
	breaker := newTestBreaker(clock)

	breaker.ReportFailure()
	breaker.ReportFailure()
	breaker.ReportSuccess()
	breaker.ReportFailure()
	breaker.ReportFailure()

	state, failures, _, _ := breaker.Snapshot()
	assert.Equal(t, core.CircuitClosed, state)
	assert.Equal(t, 2, failures)
}

func TestBreakerAdmitsSingleProbeAfterCooldown(t *testing.T) {
	clock := newFakeClock()
	breaker := newTestBreaker(clock)
	tripBreaker(breaker, 3)

	clock.Advance(59 * time.Second)
	refused := breaker.CanAdmit()
	require.False(t, refused.Allowed)
	assert.Equal(t, time.Second, refused.Remaining)

	clock.Advance(time.Second)
	probe := breaker.CanAdmit()
	require.True(t, probe.Allowed)
	assert.True(t, probe.Probe)

	second := breaker.CanAdmit()
	assert.False(t, second.Allowed)
	assert.Zero(t, second.Remaining)

	state, _, _, _ := breaker.Snapshot()
	assert.Equal(t, core.CircuitHalfOpen, state)
}

func TestBreakerFailedProbeBacksOffUpToMax(t *testing.T) {
	clock := newFakeClock()
	breaker := newTestBreaker(clock)
	tripBreaker(breaker, 3)

	expected := []time.Duration{2 * time.Minute, 4 * time.Minute, 5 * time.Minute, 5 * time.Minute}
	cooldown := time.Minute
	for _, want := range expected {
		clock.Advance(cooldown)
		require.True(t, breaker.CanAdmit().Probe)
		breaker.ReportFailure()

		state, failures, got, remaining := breaker.Snapshot()
		assert.Equal(t, core.CircuitOpen, state)
		assert.Zero(t, failures)
		assert.Equal(t, want, got)
		assert.Equal(t, want, remaining)
		cooldown = got
	}
}

func TestBreakerSuccessfulProbeClosesAndResetsCooldown(t *testing.T) {
	clock := newFakeClock()
	breaker := newTestBreaker(clock)
	tripBreaker(breaker, 3)

	clock.Advance(time.Minute)
	require.True(t, breaker.CanAdmit().Probe)
	breaker.ReportFailure()

	clock.Advance(2 * time.Minute)
	require.True(t, breaker.CanAdmit().Probe)
	breaker.ReportSuccess()

	state, failures, cooldown, _ := breaker.Snapshot()
	assert.Equal(t, core.CircuitClosed, state)
	assert.Zero(t, failures)
	assert.Equal(t, time.Minute, cooldown)
}

func TestBreakerStrayFailureWhileOpen(t *testing.T) {
	clock := newFakeClock()
	breaker := newTestBreaker(clock)
	tripBreaker(breaker, 3)

	clock.Advance(30 * time.Second)
	breaker.ReportFailure()

	state, failures, cooldown, remaining := breaker.Snapshot()
	assert.Equal(t, core.CircuitOpen, state)
	assert.Equal(t, 1, failures)
	assert.Equal(t, time.Minute, cooldown)
	assert.Equal(t, 30*time.Second, remaining)

	clock.Advance(30 * time.Second)
	require.True(t, breaker.CanAdmit().Probe)
	state, failures, _, _ = breaker.Snapshot()
	assert.Equal(t, core.CircuitHalfOpen, state)
	assert.Zero(t, failures, "entering HALF_OPEN starts a fresh count")
}

func TestBreakerReleaseReturnsProbe(t *testing.T) {
	clock := newFakeClock()
	breaker := newTestBreaker(clock)
	tripBreaker(breaker, 3)

	clock.Advance(time.Minute)
	probe := breaker.CanAdmit()
	require.True(t, probe.Probe)
	require.NotZero(t, probe.Ticket)
	assert.True(t, breaker.Release(probe.Ticket))

	state, _, cooldown, _ := breaker.Snapshot()
	assert.Equal(t, core.CircuitOpen, state)
	assert.Equal(t, time.Minute, cooldown)
	assert.True(t, breaker.CanAdmit().Probe)
}

func TestBreakerReleaseIgnoresStaleTicket(t *testing.T) {
	clock := newFakeClock()
	breaker := newTestBreaker(clock)
	tripBreaker(breaker, 3)

	clock.Advance(time.Minute)
	first := breaker.CanAdmit()
	require.True(t, first.Probe)
	require.True(t, breaker.Release(first.Ticket))

	second := breaker.CanAdmit()
	require.True(t, second.Probe)
	assert.NotEqual(t, first.Ticket, second.Ticket)

	assert.False(t, breaker.Release(first.Ticket))
	assert.False(t, breaker.Release(0))

	state, _, _, _ := breaker.Snapshot()
	assert.Equal(t, core.CircuitHalfOpen, state)
	assert.False(t, breaker.CanAdmit().Allowed, "second probe still outstanding")
}

func TestBreakerDefaults(t *testing.T) {
	breaker := NewCircuitBreaker(BreakerConfig{BaseCooldown: 2 * time.Hour})
	assert.Equal(t, DefaultBreakerConfig.FailureThreshold, breaker.cfg.FailureThreshold)
	assert.Equal(t, 2.0, breaker.cfg.BackoffFactor)
	assert.Equal(t, 2*time.Hour, breaker.cfg.MaxCooldown)
}

func TestBreakerClampsShrinkingBackoff(t *testing.T) {
	clock := newFakeClock()
	breaker := NewCircuitBreaker(BreakerConfig{
		FailureThreshold: 1,
		BaseCooldown:     time.Minute,
		BackoffFactor:    0.5,
	}, WithClock(clock.Now))
	assert.Equal(t, 1.0, breaker.cfg.BackoffFactor)

	breaker.ReportFailure()
	clock.Advance(time.Minute)
	require.True(t, breaker.CanAdmit().Probe)
	breaker.ReportFailure()

	_, _, cooldown, _ := breaker.Snapshot()
	assert.Equal(t, time.Minute, cooldown)
}

func tripBreaker(b *CircuitBreaker, n int) {
	for i := 0; i < n; i++ {
		b.ReportFailure()
	}
}
