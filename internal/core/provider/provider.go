package provider

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/tickerlens/tickerlens/internal/core"
)

// Fetcher is the interface all stock metadata providers implement.
type Fetcher interface {
	// Fetch retrieves one kind of metadata for the given ticker symbol.
	Fetch(ctx context.Context, symbol string) (*core.FetchResult, error)

	// Kind returns the data kind this fetcher produces.
	Kind() core.DataKind

	// Provider returns the provider name, which is also the guard key.
	Provider() string
}

// SnapshotStore caches fetch results.
type SnapshotStore interface {
	GetSnapshot(ctx context.Context, symbol string, kind core.DataKind) (*core.FetchResult, error)
	PutSnapshot(ctx context.Context, result *core.FetchResult, ttl time.Duration) error
}

// CachePolicy controls cache TTLs for fetch results.
type CachePolicy struct {
	OKTTL    time.Duration
	ErrorTTL time.Duration
}

func cachePolicyWithDefaults(policy CachePolicy) CachePolicy {
	if policy.OKTTL == 0 {
		policy.OKTTL = 15 * time.Minute
	}
	if policy.ErrorTTL == 0 {
		policy.ErrorTTL = 30 * time.Second
	}
	return policy
}

func cacheTTL(policy CachePolicy, status core.FetchStatus) time.Duration {
	policy = cachePolicyWithDefaults(policy)

	switch status {
	case core.StatusOK:
		return policy.OKTTL
	case core.StatusSkipped, core.StatusTimeout:
		// nothing reached the provider
		return 0
	default:
		return policy.ErrorTTL
	}
}

var symbolPattern = regexp.MustCompile(`^[A-Z][A-Z0-9.\-]{0,9}$`)

// NormalizeSymbol upper-cases and trims a ticker symbol.
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// ValidSymbol reports whether symbol looks like an exchange ticker.
func ValidSymbol(symbol string) bool {
	return symbolPattern.MatchString(NormalizeSymbol(symbol))
}

// NewFetcher returns the fetcher for kind backed by endpoint.
func NewFetcher(kind core.DataKind, endpoint Endpoint) (Fetcher, error) {
	switch kind {
	case core.KindQuote:
		return &QuoteFetcher{Endpoint: endpoint}, nil
	case core.KindEarnings:
		return &EarningsFetcher{Endpoint: endpoint}, nil
	case core.KindSentiment:
		return &SentimentFetcher{Endpoint: endpoint}, nil
	default:
		return nil, fmt.Errorf("unknown data kind: %s", kind)
	}
}
