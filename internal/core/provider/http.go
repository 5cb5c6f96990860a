package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tickerlens/tickerlens/internal/core"
	"github.com/tickerlens/tickerlens/internal/core/engine"
)

// Endpoint holds what every JSON provider fetcher needs: where to call, the
// guarded client to call it with, and where to cache results.
type Endpoint struct {
	Name        string
	BaseURL     string
	APIKey      string
	Client      *http.Client
	Store       SnapshotStore
	CachePolicy CachePolicy
	UseCache    bool
	ToolVersion string
	Clock       func() time.Time
}

type decodeFunc func(resp *http.Response, result *core.FetchResult) error

// fetch runs one guarded GET against path for symbol and classifies the
// outcome into a FetchResult. Only programming errors are returned as errors.
func (e *Endpoint) fetch(ctx context.Context, kind core.DataKind, symbol, path string, decode decodeFunc) (*core.FetchResult, error) {
	if e == nil {
		return nil, errors.New("provider endpoint is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	value := NormalizeSymbol(symbol)
	if !ValidSymbol(value) {
		return nil, fmt.Errorf("invalid ticker symbol: %q", symbol)
	}

	requestedAt := e.now()

	if e.UseCache && e.Store != nil {
		if cached, err := e.Store.GetSnapshot(ctx, value, kind); err == nil && cached != nil {
			cached.Symbol = value
			cached.Provenance.FromCache = true
			return cached, nil
		}
	}

	base, err := url.Parse(strings.TrimSpace(e.BaseURL))
	if err != nil || base.Host == "" {
		return nil, fmt.Errorf("invalid base url for %s: %q", e.Name, e.BaseURL)
	}
	reqURL := base.ResolveReference(&url.URL{Path: path, RawQuery: url.Values{"symbol": {value}}.Encode()})

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if key := strings.TrimSpace(e.APIKey); key != "" {
		req.Header.Set("X-API-Key", key)
	}

	client := e.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	resp, err := client.Do(req)
	if err != nil {
		return e.failure(value, kind, err, requestedAt, base.String()), nil
	}
	defer resp.Body.Close() // nolint:errcheck // best-effort cleanup on HTTP response body

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		_, extra := retryAfterHeader(resp)
		result := e.result(value, kind, core.StatusRateLimited, resp.StatusCode, e.Name+" rate limited", extra, requestedAt, base.String())
		e.cacheResult(ctx, result)
		return result, nil
	case resp.StatusCode == http.StatusOK:
		result := e.result(value, kind, core.StatusOK, resp.StatusCode, "", nil, requestedAt, base.String())
		if err := decode(resp, result); err != nil {
			result.Status = core.StatusError
			result.Message = fmt.Sprintf("decode %s response: %v", kind, err)
		}
		e.cacheResult(ctx, result)
		return result, nil
	case resp.StatusCode == http.StatusNotFound:
		result := e.result(value, kind, core.StatusError, resp.StatusCode, "symbol not found", nil, requestedAt, base.String())
		e.cacheResult(ctx, result)
		return result, nil
	default:
		result := e.result(value, kind, core.StatusError, resp.StatusCode, "unexpected "+e.Name+" response", nil, requestedAt, base.String())
		e.cacheResult(ctx, result)
		return result, nil
	}
}

// failure classifies a client.Do error. Guard refusals never reached the
// provider and are not cached.
func (e *Endpoint) failure(symbol string, kind core.DataKind, err error, requestedAt time.Time, server string) *core.FetchResult {
	switch {
	case errors.Is(err, engine.ErrCircuitOpen):
		var extra map[string]any
		message := "circuit open"
		if wait, ok := engine.RetryAfter(err); ok && wait > 0 {
			message = fmt.Sprintf("circuit open, retry in %s", wait.Round(time.Second))
			extra = map[string]any{"retry_after_seconds": wait.Seconds()}
		}
		return e.result(symbol, kind, core.StatusSkipped, 0, message, extra, requestedAt, server)
	case errors.Is(err, engine.ErrDeadlineExceeded), errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return e.result(symbol, kind, core.StatusTimeout, 0, err.Error(), nil, requestedAt, server)
	default:
		return e.result(symbol, kind, core.StatusError, 0, err.Error(), nil, requestedAt, server)
	}
}

func (e *Endpoint) cacheResult(ctx context.Context, result *core.FetchResult) {
	if e == nil || e.Store == nil || !e.UseCache || result == nil {
		return
	}

	ttl := cacheTTL(e.CachePolicy, result.Status)
	if ttl <= 0 {
		return
	}

	_ = e.Store.PutSnapshot(ctx, result, ttl)
}

func (e *Endpoint) result(symbol string, kind core.DataKind, status core.FetchStatus, statusCode int, message string, extra map[string]any, requestedAt time.Time, server string) *core.FetchResult {
	return &core.FetchResult{
		Symbol:     symbol,
		Kind:       kind,
		Status:     status,
		StatusCode: statusCode,
		Message:    message,
		ExtraData:  extra,
		Provenance: core.Provenance{
			FetchID:     uuid.New().String(),
			RequestedAt: requestedAt,
			ResolvedAt:  e.now(),
			Provider:    e.Name,
			Server:      server,
			ToolVersion: e.ToolVersion,
		},
	}
}

func (e *Endpoint) now() time.Time {
	if e != nil && e.Clock != nil {
		return e.Clock()
	}
	return time.Now().UTC()
}

func retryAfterHeader(resp *http.Response) (time.Duration, map[string]any) {
	if resp == nil || resp.Header == nil {
		return 0, nil
	}

	retry := resp.Header.Get("Retry-After")
	if retry == "" {
		return 0, nil
	}

	if seconds, err := time.ParseDuration(retry + "s"); err == nil {
		return seconds, map[string]any{"retry_after": retry}
	}
	if parsed, err := http.ParseTime(retry); err == nil {
		return time.Until(parsed), map[string]any{"retry_after": retry}
	}

	return 0, map[string]any{"retry_after": retry}
}
