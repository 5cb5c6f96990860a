package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestThrottleAdmitsUpToLimitThenWaitsForWindow(t *testing.T) {
	clock := newFakeClock()
	throttle := NewThrottle(RateLimit{RequestsPerWindow: 2, WindowDuration: time.Second}, clock.options()...)

	require.NoError(t, throttle.Admit(context.Background()))
	require.NoError(t, throttle.Admit(context.Background()))
	assert.Zero(t, clock.Slept())

	require.NoError(t, throttle.Admit(context.Background()))
	assert.Equal(t, time.Second, clock.Slept())

	used, limit, _ := throttle.Usage()
	assert.Equal(t, 1, used)
	assert.Equal(t, 2, limit)
}

func TestThrottleRealTimeWait(t *testing.T) {
	throttle := NewThrottle(RateLimit{RequestsPerWindow: 2, WindowDuration: 150 * time.Millisecond})

	require.NoError(t, throttle.Admit(context.Background()))
	require.NoError(t, throttle.Admit(context.Background()))

	start := time.Now()
	require.NoError(t, throttle.Admit(context.Background()))
	assert.GreaterOrEqual(t, time.Since(start), 100*time.Millisecond)
}

func TestThrottleNeverExceedsLimitPerWindow(t *testing.T) {
	const (
		limit  = 5
		window = 10 * time.Second
	)

	clock := newFakeClock()
	throttle := NewThrottle(RateLimit{RequestsPerWindow: limit, WindowDuration: window}, clock.options()...)

	admitted := make([]time.Time, 0, 4*limit)
	for i := 0; i < 4*limit; i++ {
		require.NoError(t, throttle.Admit(context.Background()))
		admitted = append(admitted, clock.Now())
	}

	for i := 0; i+limit < len(admitted); i++ {
		assert.GreaterOrEqualf(t, admitted[i+limit].Sub(admitted[i]), window,
			"admissions %d and %d fall inside one window", i, i+limit)
	}
}

func TestThrottleConcurrentCallersStayUnderLimit(t *testing.T) {
	const (
		limit   = 3
		callers = 6
		each    = 2
	)

	throttle := NewThrottle(RateLimit{RequestsPerWindow: limit, WindowDuration: 50 * time.Millisecond})

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < each; j++ {
				if err := throttle.Admit(context.Background()); err != nil {
					t.Error(err)
					return
				}
				throttle.mu.Lock()
				calls := throttle.calls
				throttle.mu.Unlock()
				if calls > limit {
					t.Errorf("window holds %d calls, limit %d", calls, limit)
				}
			}
		}()
	}
	wg.Wait()
}

func TestThrottleCancelledWaitReservesNothing(t *testing.T) {
	throttle := NewThrottle(RateLimit{RequestsPerWindow: 1, WindowDuration: time.Hour})
	require.NoError(t, throttle.Admit(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := throttle.Admit(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))

	used, _, _ := throttle.Usage()
	assert.Equal(t, 1, used)
}

func TestThrottleSafetyMargin(t *testing.T) {
	clock := newFakeClock()
	throttle := NewThrottle(RateLimit{RequestsPerWindow: 10, WindowDuration: time.Minute}, clock.options()...)
	throttle.ApplySafetyMargin(0.5)

	for i := 0; i < 5; i++ {
		require.NoError(t, throttle.Admit(context.Background()))
	}
	assert.Zero(t, clock.Slept())

	require.NoError(t, throttle.Admit(context.Background()))
	assert.Equal(t, time.Minute, clock.Slept())

	tiny := NewThrottle(RateLimit{RequestsPerWindow: 1, WindowDuration: time.Minute})
	tiny.ApplySafetyMargin(0.1)
	_, limit, _ := tiny.Usage()
	assert.Equal(t, 1, limit)
}

func TestThrottleUsageDoesNotResetWindow(t *testing.T) {
	clock := newFakeClock()
	throttle := NewThrottle(RateLimit{RequestsPerWindow: 3, WindowDuration: time.Minute}, clock.options()...)

	used, _, resetsAt := throttle.Usage()
	assert.Zero(t, used)
	assert.Equal(t, clock.Now(), resetsAt)

	require.NoError(t, throttle.Admit(context.Background()))
	started := clock.Now()

	used, _, resetsAt = throttle.Usage()
	assert.Equal(t, 1, used)
	assert.Equal(t, started.Add(time.Minute), resetsAt)

	clock.Advance(2 * time.Minute)
	used, _, _ = throttle.Usage()
	assert.Zero(t, used)
	assert.Equal(t, started, throttle.windowStart)
}

func TestThrottleDefaults(t *testing.T) {
	throttle := NewThrottle(RateLimit{})
	assert.Equal(t, DefaultRateLimit, throttle.limit)
}
