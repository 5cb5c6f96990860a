package engine

import (
	"context"
	"time"
)

// Option customizes timing for throttles, breakers and guards.
type Option func(*options)

type options struct {
	clock func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// WithClock overrides the time source.
func WithClock(clock func() time.Time) Option {
	return func(o *options) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// WithSleep overrides how a throttled caller is parked. The function must
// return ctx.Err() if ctx ends first.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(o *options) {
		if sleep != nil {
			o.sleep = sleep
		}
	}
}

func collectOptions(opts []Option) options {
	o := options{
		clock: func() time.Time { return time.Now().UTC() },
		sleep: sleepContext,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}
