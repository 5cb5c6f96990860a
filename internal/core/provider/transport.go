package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/tickerlens/tickerlens/internal/core/engine"
	"github.com/tickerlens/tickerlens/internal/metrics"
)

var (
	ErrMustNotBeZero = errors.New("must be greater than zero")
	ErrPacingFailed  = errors.New("pacer waiting failed")
)

// GuardedTransport is an http.RoundTripper that passes every request through a
// provider guard and reports the response class back to it.
//
// 429 is reported as rate limited. Any other response from the provider is a
// success. Transport errors and 5xx responses are inconclusive.
//
// The attempt timeout starts once the guard has admitted the request, so a
// throttle wait is bounded only by the request context.
type GuardedTransport struct {
	guard   *engine.Guard
	pacer   *rate.Limiter
	next    http.RoundTripper
	timeout time.Duration
}

// NewGuardedTransport wraps next with guard. A positive paceRPS additionally
// spaces calls with a token bucket of burst 1.
func NewGuardedTransport(guard *engine.Guard, paceRPS float64, next http.RoundTripper) (*GuardedTransport, error) {
	if guard == nil {
		return nil, errors.New("guard is required")
	}
	if paceRPS < 0 {
		return nil, fmt.Errorf("pace rps[%v] %w", paceRPS, ErrMustNotBeZero)
	}
	if next == nil {
		next = http.DefaultTransport
	}

	t := &GuardedTransport{guard: guard, next: next}
	if paceRPS > 0 {
		t.pacer = rate.NewLimiter(rate.Limit(paceRPS), 1)
	}
	return t, nil
}

// RoundTrip implements http.RoundTripper.
func (t *GuardedTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	ctx := r.Context()
	provider := t.guard.Provider()

	if t.pacer != nil {
		if err := t.pacer.Wait(ctx); err != nil {
			metrics.RecordGuardAdmission(provider, metrics.AdmissionTimeout)
			return nil, fmt.Errorf("%w: %w: %w", engine.ErrDeadlineExceeded, ErrPacingFailed, err)
		}
	}

	start := time.Now()
	admission, err := t.guard.Acquire(ctx)
	if err != nil {
		outcome := metrics.AdmissionTimeout
		if errors.Is(err, engine.ErrCircuitOpen) {
			outcome = metrics.AdmissionRejected
		}
		metrics.RecordGuardAdmission(provider, outcome)
		metrics.RecordGuardStatus(t.guard.Status())
		return nil, err
	}
	metrics.RecordGuardAdmission(provider, metrics.AdmissionGranted)
	metrics.RecordGuardWait(provider, time.Since(start))

	cancel := context.CancelFunc(func() {})
	if t.timeout > 0 {
		var attemptCtx context.Context
		attemptCtx, cancel = context.WithTimeout(ctx, t.timeout)
		r = r.WithContext(attemptCtx)
	}

	resp, err := t.next.RoundTrip(r)
	switch {
	case err != nil:
		t.guard.ReportInconclusive(admission)
	case resp.StatusCode == http.StatusTooManyRequests:
		t.guard.ReportRateLimited()
		metrics.RecordRateLimited(provider)
	case resp.StatusCode >= http.StatusInternalServerError:
		t.guard.ReportInconclusive(admission)
	default:
		t.guard.ReportSuccess()
	}
	metrics.RecordGuardStatus(t.guard.Status())

	if err != nil {
		cancel()
		return nil, err
	}
	resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

// cancelOnClose keeps the attempt context alive until the body is closed.
type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (b *cancelOnClose) Close() error {
	err := b.ReadCloser.Close()
	b.cancel()
	return err
}

// NewGuardedClient returns an http.Client whose transport is guarded. timeout
// bounds each attempt after admission; it is not set as Client.Timeout, which
// would also cover the throttle wait.
func NewGuardedClient(guard *engine.Guard, paceRPS float64, timeout time.Duration) (*http.Client, error) {
	transport, err := NewGuardedTransport(guard, paceRPS, nil)
	if err != nil {
		return nil, err
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	transport.timeout = timeout
	return &http.Client{Transport: transport}, nil
}
