package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"

	"github.com/tickerlens/tickerlens/internal/core"
	"github.com/tickerlens/tickerlens/internal/metrics"
)

// Fetcher describes a single-kind metadata fetcher.
type Fetcher interface {
	Fetch(ctx context.Context, symbol string) (*core.FetchResult, error)
	Kind() core.DataKind
	Provider() string
}

// Orchestrator coordinates fetches across configured fetchers.
type Orchestrator struct {
	Fetchers           map[core.DataKind]Fetcher
	IncludeUnsupported bool
	Logger             *logging.Logger
	Clock              func() time.Time
}

// Fetch runs every fetcher the profile asks for against one symbol.
func (o *Orchestrator) Fetch(ctx context.Context, symbol string, profile core.Profile) ([]*core.FetchResult, error) {
	return o.fetch(ctx, symbol, profile, nil)
}

func (o *Orchestrator) fetch(ctx context.Context, symbol string, profile core.Profile, tripped *trippedSet) ([]*core.FetchResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	value := strings.ToUpper(strings.TrimSpace(symbol))
	if value == "" {
		return nil, fmt.Errorf("symbol is required")
	}

	results := make([]*core.FetchResult, 0, len(profile.Kinds))
	for _, kind := range profile.Kinds {
		fetcher := o.fetcher(kind)
		if fetcher == nil {
			if o.IncludeUnsupported {
				results = append(results, o.localResult(value, kind, core.StatusError, "", "fetcher not configured"))
			}
			continue
		}

		provider := fetcher.Provider()
		if tripped != nil {
			if reason, ok := tripped.lookup(provider); ok {
				results = append(results, o.localResult(value, kind, core.StatusSkipped, provider, reason))
				continue
			}
		}

		started := time.Now()
		result, err := fetcher.Fetch(ctx, value)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil, err
			}
			result = o.localResult(value, kind, core.StatusError, provider, err.Error())
		}
		if result == nil {
			continue
		}
		metrics.RecordFetch(provider, string(kind), string(result.Status), time.Since(started))

		if result.Status == core.StatusSkipped && tripped != nil && tripped.mark(provider, result.Message) {
			o.warn("Provider circuit open, skipping for remainder of batch",
				zap.String("provider", provider),
				zap.String("symbol", value),
				zap.String("reason", result.Message))
		}
		if result.Status == core.StatusRateLimited {
			o.debug("Provider rate limited",
				zap.String("provider", provider),
				zap.String("symbol", value))
		}

		results = append(results, result)
	}

	return results, nil
}

type batchJob struct {
	index  int
	symbol string
}

// FetchBatch fetches many symbols with at most concurrency workers. Once a
// provider refuses with an open circuit, every later symbol gets a skipped
// result for that provider instead of a call. Per-symbol failures are part of
// the results; only cancellation and invalid input are returned as errors.
func (o *Orchestrator) FetchBatch(ctx context.Context, symbols []string, profile core.Profile, concurrency int) ([]*core.BatchResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if concurrency < 1 {
		return nil, errors.New("concurrency must be at least 1")
	}
	if len(symbols) == 0 {
		return nil, nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make([]*core.BatchResult, len(symbols))
	jobs := make(chan batchJob)
	tripped := newTrippedSet()

	var (
		wg       sync.WaitGroup
		errOnce  sync.Once
		firstErr error
	)

	setErr := func(err error) {
		if err == nil {
			return
		}
		errOnce.Do(func() {
			firstErr = err
			cancel()
		})
	}

	worker := func() {
		defer wg.Done()
		for job := range jobs {
			if ctx.Err() != nil {
				return
			}
			fetched, err := o.fetch(ctx, job.symbol, profile, tripped)
			if err != nil {
				setErr(err)
				return
			}
			results[job.index] = core.Summarize(strings.ToUpper(strings.TrimSpace(job.symbol)), fetched, o.now())
		}
	}

	if concurrency > len(symbols) {
		concurrency = len(symbols)
	}
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go worker()
	}

sendLoop:
	for i, symbol := range symbols {
		select {
		case <-ctx.Done():
			break sendLoop
		case jobs <- batchJob{index: i, symbol: symbol}:
		}
	}
	close(jobs)
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return results, nil
}

// trippedSet remembers providers whose circuit opened during a batch.
type trippedSet struct {
	mu      sync.Mutex
	reasons map[string]string
}

func newTrippedSet() *trippedSet {
	return &trippedSet{reasons: make(map[string]string)}
}

func (s *trippedSet) lookup(provider string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	reason, ok := s.reasons[normalizeKey(provider)]
	return reason, ok
}

// mark records provider and reports whether it was newly tripped.
func (s *trippedSet) mark(provider, reason string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := normalizeKey(provider)
	if _, ok := s.reasons[key]; ok {
		return false
	}
	if strings.TrimSpace(reason) == "" {
		reason = "circuit open"
	}
	s.reasons[key] = reason
	return true
}

func (o *Orchestrator) fetcher(kind core.DataKind) Fetcher {
	if o == nil || o.Fetchers == nil {
		return nil
	}
	return o.Fetchers[kind]
}

func (o *Orchestrator) localResult(symbol string, kind core.DataKind, status core.FetchStatus, provider, message string) *core.FetchResult {
	now := o.now()
	if provider == "" {
		provider = "orchestrator"
	}
	return &core.FetchResult{
		Symbol:  symbol,
		Kind:    kind,
		Status:  status,
		Message: message,
		Provenance: core.Provenance{
			RequestedAt: now,
			ResolvedAt:  now,
			Provider:    provider,
		},
	}
}

func (o *Orchestrator) warn(msg string, fields ...zap.Field) {
	if o != nil && o.Logger != nil {
		o.Logger.Warn(msg, fields...)
	}
}

func (o *Orchestrator) debug(msg string, fields ...zap.Field) {
	if o != nil && o.Logger != nil {
		o.Logger.Debug(msg, fields...)
	}
}

func (o *Orchestrator) now() time.Time {
	if o != nil && o.Clock != nil {
		return o.Clock()
	}
	return time.Now().UTC()
}
