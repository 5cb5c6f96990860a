package provider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tickerlens/tickerlens/internal/core"
	"github.com/tickerlens/tickerlens/internal/core/engine"
)

type stubSnapshotStore struct {
	mu   sync.Mutex
	data map[string]*core.FetchResult
	ttls map[string]time.Duration
}

func newStubSnapshotStore() *stubSnapshotStore {
	return &stubSnapshotStore{
		data: map[string]*core.FetchResult{},
		ttls: map[string]time.Duration{},
	}
}

func (s *stubSnapshotStore) GetSnapshot(_ context.Context, symbol string, kind core.DataKind) (*core.FetchResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	result, ok := s.data[symbol+"/"+string(kind)]
	if !ok {
		return nil, nil
	}
	copied := *result
	return &copied, nil
}

func (s *stubSnapshotStore) PutSnapshot(_ context.Context, result *core.FetchResult, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := result.Symbol + "/" + string(result.Kind)
	s.data[key] = result
	s.ttls[key] = ttl
	return nil
}

func guardedEndpoint(t *testing.T, server *httptest.Server, guard *engine.Guard) Endpoint {
	t.Helper()
	transport, err := NewGuardedTransport(guard, 0, server.Client().Transport)
	require.NoError(t, err)
	transport.timeout = 2 * time.Second
	return Endpoint{
		Name:    guard.Provider(),
		BaseURL: server.URL,
		Client:  &http.Client{Transport: transport},
	}
}

func TestQuoteFetcherOK(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/quote", r.URL.Path)
		assert.Equal(t, "MSFT", r.URL.Query().Get("symbol"))
		assert.Equal(t, "secret", r.Header.Get("X-API-Key"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"symbol":"MSFT","price":415.5,"currency":"usd","change_percent":-0.8,"timestamp":1709290800}`))
	}))
	defer server.Close()

	guard := engine.NewGuard("quotes", engine.GuardConfig{})
	endpoint := guardedEndpoint(t, server, guard)
	endpoint.APIKey = "secret"
	endpoint.ToolVersion = "test"

	fetcher := &QuoteFetcher{Endpoint: endpoint}
	result, err := fetcher.Fetch(context.Background(), " msft ")
	require.NoError(t, err)
	require.Equal(t, core.StatusOK, result.Status)
	require.Equal(t, http.StatusOK, result.StatusCode)
	require.NotNil(t, result.Quote)
	assert.Equal(t, 415.5, result.Quote.Price)
	assert.Equal(t, "USD", result.Quote.Currency)
	assert.Equal(t, time.Unix(1709290800, 0).UTC(), result.Quote.AsOf)
	assert.Equal(t, "quotes", result.Provenance.Provider)
	assert.NotEmpty(t, result.Provenance.FetchID)
	assert.Equal(t, "test", result.Provenance.ToolVersion)

	status := guard.Status()
	assert.Equal(t, 1, status.CallsUsedInWindow)
	assert.Equal(t, core.CircuitClosed, status.State)
}

func TestQuoteFetcherRateLimitedTripsCircuit(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Retry-After", "30")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	guard := engine.NewGuard("quotes", engine.GuardConfig{FailureThreshold: 3})
	fetcher := &QuoteFetcher{Endpoint: guardedEndpoint(t, server, guard)}

	for i := 0; i < 3; i++ {
		result, err := fetcher.Fetch(context.Background(), "AAPL")
		require.NoError(t, err)
		require.Equal(t, core.StatusRateLimited, result.Status)
		require.Equal(t, "30", result.ExtraData["retry_after"])
	}
	require.Equal(t, core.CircuitOpen, guard.Status().State)

	result, err := fetcher.Fetch(context.Background(), "AAPL")
	require.NoError(t, err)
	require.Equal(t, core.StatusSkipped, result.Status)
	require.Contains(t, result.Message, "circuit open")
	require.Greater(t, result.ExtraData["retry_after_seconds"], 0.0)
	require.Equal(t, int32(3), hits.Load())
}

func TestServerErrorsDoNotTripCircuit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	guard := engine.NewGuard("quotes", engine.GuardConfig{FailureThreshold: 1})
	fetcher := &QuoteFetcher{Endpoint: guardedEndpoint(t, server, guard)}

	for i := 0; i < 3; i++ {
		result, err := fetcher.Fetch(context.Background(), "AAPL")
		require.NoError(t, err)
		require.Equal(t, core.StatusError, result.Status)
		require.Equal(t, http.StatusBadGateway, result.StatusCode)
	}
	require.Equal(t, core.CircuitClosed, guard.Status().State)
}

func TestNotFoundCountsAsProviderSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	guard := engine.NewGuard("quotes", engine.GuardConfig{FailureThreshold: 2})
	guard.ReportRateLimited()
	fetcher := &QuoteFetcher{Endpoint: guardedEndpoint(t, server, guard)}

	result, err := fetcher.Fetch(context.Background(), "ZZZZ")
	require.NoError(t, err)
	require.Equal(t, core.StatusError, result.Status)
	require.Equal(t, "symbol not found", result.Message)
	require.Zero(t, guard.Status().ConsecutiveFailures)
}

func TestFetchTimeoutWhileThrottled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"price":1}`))
	}))
	defer server.Close()

	guard := engine.NewGuard("quotes", engine.GuardConfig{MaxCallsPerWindow: 1, Window: time.Hour})
	fetcher := &QuoteFetcher{Endpoint: guardedEndpoint(t, server, guard)}

	first, err := fetcher.Fetch(context.Background(), "AAPL")
	require.NoError(t, err)
	require.Equal(t, core.StatusOK, first.Status)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	second, err := fetcher.Fetch(ctx, "AAPL")
	require.NoError(t, err)
	require.Equal(t, core.StatusTimeout, second.Status)
	require.Equal(t, 1, guard.Status().CallsUsedInWindow)
}

func TestThrottleWaitOutlastsAttemptTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"price":1}`))
	}))
	defer server.Close()

	const window = 400 * time.Millisecond
	guard := engine.NewGuard("quotes", engine.GuardConfig{MaxCallsPerWindow: 1, Window: window})
	client, err := NewGuardedClient(guard, 0, 100*time.Millisecond)
	require.NoError(t, err)
	assert.Zero(t, client.Timeout)

	fetcher := &QuoteFetcher{Endpoint: Endpoint{Name: "quotes", BaseURL: server.URL, Client: client}}

	first, err := fetcher.Fetch(context.Background(), "AAPL")
	require.NoError(t, err)
	require.Equal(t, core.StatusOK, first.Status)

	start := time.Now()
	second, err := fetcher.Fetch(context.Background(), "AAPL")
	require.NoError(t, err)
	require.Equal(t, core.StatusOK, second.Status, second.Message)
	assert.GreaterOrEqual(t, time.Since(start), window/2, "second call waits for the next window")
	assert.Equal(t, 1, guard.Status().CallsUsedInWindow)
}

func TestAttemptTimeoutCoversSlowProvider(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	guard := engine.NewGuard("quotes", engine.GuardConfig{FailureThreshold: 1})
	client, err := NewGuardedClient(guard, 0, 50*time.Millisecond)
	require.NoError(t, err)
	fetcher := &QuoteFetcher{Endpoint: Endpoint{Name: "quotes", BaseURL: server.URL, Client: client}}

	result, err := fetcher.Fetch(context.Background(), "AAPL")
	require.NoError(t, err)
	require.Equal(t, core.StatusTimeout, result.Status)
	assert.Equal(t, core.CircuitClosed, guard.Status().State, "timeouts are not rate-limit signals")
}

func TestEarningsFetcherNullableEstimates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/earnings", r.URL.Path)
		_, _ = w.Write([]byte(`{"next_report_date":"2024-04-25","eps_estimate":2.82,"eps_actual":null,"fiscal_period":"Q3 FY24"}`))
	}))
	defer server.Close()

	guard := engine.NewGuard("calendar", engine.GuardConfig{})
	fetcher := &EarningsFetcher{Endpoint: guardedEndpoint(t, server, guard)}

	result, err := fetcher.Fetch(context.Background(), "MSFT")
	require.NoError(t, err)
	require.Equal(t, core.StatusOK, result.Status)
	require.NotNil(t, result.Earnings)
	assert.Equal(t, "2024-04-25", result.Earnings.NextReportDate)
	require.NotNil(t, result.Earnings.EPSEstimate)
	assert.Equal(t, 2.82, *result.Earnings.EPSEstimate)
	assert.Nil(t, result.Earnings.EPSActual)
	assert.Equal(t, core.KindEarnings, fetcher.Kind())
	assert.Equal(t, "calendar", fetcher.Provider())
}

func TestSentimentFetcher(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("symbol") {
		case "BAD":
			_, _ = w.Write([]byte(`{"score":4,"articles":1}`))
		default:
			_, _ = w.Write([]byte(`{"score":-0.4,"articles":12}`))
		}
	}))
	defer server.Close()

	guard := engine.NewGuard("newswire", engine.GuardConfig{})
	fetcher := &SentimentFetcher{Endpoint: guardedEndpoint(t, server, guard)}

	result, err := fetcher.Fetch(context.Background(), "TSLA")
	require.NoError(t, err)
	require.Equal(t, core.StatusOK, result.Status)
	require.NotNil(t, result.Sentiment)
	assert.Equal(t, "bearish", result.Sentiment.Label)
	assert.Equal(t, 12, result.Sentiment.Articles)

	bad, err := fetcher.Fetch(context.Background(), "BAD")
	require.NoError(t, err)
	require.Equal(t, core.StatusError, bad.Status)
	require.Contains(t, bad.Message, "out of range")
}

func TestSentimentLabel(t *testing.T) {
	assert.Equal(t, "bullish", SentimentLabel(0.15))
	assert.Equal(t, "neutral", SentimentLabel(0.1))
	assert.Equal(t, "neutral", SentimentLabel(-0.149))
	assert.Equal(t, "bearish", SentimentLabel(-0.15))
}

func TestFetchUsesSnapshotCache(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(`{"price":10,"currency":"USD"}`))
	}))
	defer server.Close()

	store := newStubSnapshotStore()
	guard := engine.NewGuard("quotes", engine.GuardConfig{})
	endpoint := guardedEndpoint(t, server, guard)
	endpoint.Store = store
	endpoint.UseCache = true
	endpoint.CachePolicy = CachePolicy{OKTTL: time.Minute}
	fetcher := &QuoteFetcher{Endpoint: endpoint}

	first, err := fetcher.Fetch(context.Background(), "IBM")
	require.NoError(t, err)
	require.False(t, first.Provenance.FromCache)

	second, err := fetcher.Fetch(context.Background(), "IBM")
	require.NoError(t, err)
	require.True(t, second.Provenance.FromCache)
	require.Equal(t, int32(1), hits.Load())
	require.Equal(t, time.Minute, store.ttls["IBM/quote"])
	require.Equal(t, 1, guard.Status().CallsUsedInWindow)
}

func TestFetchRejectsInvalidSymbol(t *testing.T) {
	fetcher := &QuoteFetcher{Endpoint: Endpoint{Name: "quotes", BaseURL: "http://example.invalid"}}
	_, err := fetcher.Fetch(context.Background(), "not a ticker")
	require.Error(t, err)
}

func TestCacheTTL(t *testing.T) {
	policy := CachePolicy{}
	assert.Equal(t, 15*time.Minute, cacheTTL(policy, core.StatusOK))
	assert.Equal(t, 30*time.Second, cacheTTL(policy, core.StatusRateLimited))
	assert.Equal(t, 30*time.Second, cacheTTL(policy, core.StatusError))
	assert.Zero(t, cacheTTL(policy, core.StatusSkipped))
	assert.Zero(t, cacheTTL(policy, core.StatusTimeout))
}

func TestValidSymbol(t *testing.T) {
	assert.True(t, ValidSymbol("AAPL"))
	assert.True(t, ValidSymbol("brk.b"))
	assert.True(t, ValidSymbol("RDS-A"))
	assert.False(t, ValidSymbol(""))
	assert.False(t, ValidSymbol("1ABC"))
	assert.False(t, ValidSymbol("TOOLONGSYMBOL"))
}

func TestNewGuardedTransportValidation(t *testing.T) {
	_, err := NewGuardedTransport(nil, 0, nil)
	require.Error(t, err)

	_, err = NewGuardedTransport(engine.NewGuard("x", engine.GuardConfig{}), -1, nil)
	require.ErrorIs(t, err, ErrMustNotBeZero)
}

func TestNewFetcher(t *testing.T) {
	for _, kind := range core.AllKinds {
		fetcher, err := NewFetcher(kind, Endpoint{Name: "alpha"})
		require.NoError(t, err)
		assert.Equal(t, kind, fetcher.Kind())
		assert.Equal(t, "alpha", fetcher.Provider())
	}

	_, err := NewFetcher(core.DataKind("weather"), Endpoint{})
	require.Error(t, err)
}
