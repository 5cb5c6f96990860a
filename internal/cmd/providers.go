package cmd

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/tickerlens/tickerlens/internal/config"
	"github.com/tickerlens/tickerlens/internal/core"
	"github.com/tickerlens/tickerlens/internal/core/engine"
	"github.com/tickerlens/tickerlens/internal/core/provider"
	"github.com/tickerlens/tickerlens/internal/core/store"
	"github.com/tickerlens/tickerlens/internal/observability"
)

func toEngineGuardConfig(cfg config.GuardConfig) engine.GuardConfig {
	return engine.GuardConfig{
		MaxCallsPerWindow: cfg.MaxCallsPerWindow,
		Window:            cfg.Window,
		SafetyMargin:      cfg.SafetyMargin,
		FailureThreshold:  cfg.FailureThreshold,
		BaseCooldown:      cfg.BaseCooldown,
		BackoffFactor:     cfg.BackoffFactor,
		MaxCooldown:       cfg.MaxCooldown,
	}
}

// buildGuardRegistry creates the single guard registry for this process.
// Every fetcher that calls the same provider shares that provider's guard.
func buildGuardRegistry(cfg *config.Config) *engine.Registry {
	overrides := make(map[string]engine.GuardConfig, len(cfg.Providers))
	for name, p := range cfg.Providers {
		overrides[name] = toEngineGuardConfig(p.Guard)
	}
	return engine.NewRegistry(toEngineGuardConfig(cfg.Guard), overrides)
}

// buildFetchers wires one guarded fetcher per configured data kind. When two
// providers declare the same kind, the first by name wins.
func buildFetchers(cfg *config.Config, registry *engine.Registry, db *store.Store, useCache bool) (map[core.DataKind]engine.Fetcher, error) {
	names := make([]string, 0, len(cfg.Providers))
	for name, p := range cfg.Providers {
		if p.Enabled {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	policy := provider.CachePolicy{
		OKTTL:    cfg.Cache.OKTTL,
		ErrorTTL: cfg.Cache.ErrorTTL,
	}

	fetchers := make(map[core.DataKind]engine.Fetcher)
	for _, name := range names {
		p := cfg.Providers[name]
		if strings.TrimSpace(p.BaseURL) == "" {
			return nil, fmt.Errorf("provider %s: base_url is required", name)
		}

		kinds, err := core.ParseKinds(p.Kinds)
		if err != nil {
			return nil, fmt.Errorf("provider %s: %w", name, err)
		}
		if len(kinds) == 0 {
			continue
		}

		client, err := provider.NewGuardedClient(registry.Guard(name), p.PaceRPS, p.Timeout)
		if err != nil {
			return nil, fmt.Errorf("provider %s: %w", name, err)
		}

		endpoint := provider.Endpoint{
			Name:        name,
			BaseURL:     p.BaseURL,
			APIKey:      p.APIKey,
			Client:      client,
			CachePolicy: policy,
			UseCache:    useCache && cfg.Cache.Enabled && db != nil,
			ToolVersion: versionInfo.Version,
		}
		if db != nil {
			endpoint.Store = db
		}

		for _, kind := range kinds {
			if existing, ok := fetchers[kind]; ok {
				if observability.CLILogger != nil {
					observability.CLILogger.Warn("Data kind already served by another provider",
						zap.String("kind", string(kind)),
						zap.String("provider", name),
						zap.String("serving", existing.Provider()))
				}
				continue
			}
			fetcher, err := provider.NewFetcher(kind, endpoint)
			if err != nil {
				return nil, err
			}
			fetchers[kind] = fetcher
		}
	}

	return fetchers, nil
}

func buildOrchestrator(cfg *config.Config, registry *engine.Registry, db *store.Store, useCache bool) (*engine.Orchestrator, error) {
	if cfg == nil {
		return nil, errors.New("config not loaded")
	}

	fetchers, err := buildFetchers(cfg, registry, db, useCache)
	if err != nil {
		return nil, err
	}
	if len(fetchers) == 0 {
		return nil, errors.New("no providers configured; add providers.<name> with base_url and kinds")
	}

	return &engine.Orchestrator{
		Fetchers:           fetchers,
		IncludeUnsupported: true,
		Logger:             observability.CLILogger,
	}, nil
}

// wiredProviders lists the distinct providers behind the orchestrator's
// fetchers, sorted by name.
func wiredProviders(orchestrator *engine.Orchestrator) []string {
	if orchestrator == nil {
		return nil
	}
	seen := make(map[string]struct{}, len(orchestrator.Fetchers))
	names := make([]string, 0, len(orchestrator.Fetchers))
	for _, fetcher := range orchestrator.Fetchers {
		name := fetcher.Provider()
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
