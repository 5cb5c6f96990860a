package engine

import (
	"sort"
	"strings"
	"sync"

	"github.com/tickerlens/tickerlens/internal/core"
)

// Registry owns one Guard per provider. It is built once by the composition
// root and passed to every fetcher that calls a rate-limited provider.
type Registry struct {
	defaults  GuardConfig
	overrides map[string]GuardConfig
	opts      []Option

	mu     sync.RWMutex
	guards map[string]*Guard
}

// NewRegistry creates a registry. Overrides are keyed by provider name and
// merged over defaults field by field.
func NewRegistry(defaults GuardConfig, overrides map[string]GuardConfig, opts ...Option) *Registry {
	normalized := make(map[string]GuardConfig, len(overrides))
	for name, cfg := range overrides {
		key := normalizeKey(name)
		if key == "" {
			continue
		}
		normalized[key] = cfg
	}

	return &Registry{
		defaults:  defaults.Merge(DefaultGuardConfig()),
		overrides: normalized,
		opts:      opts,
		guards:    make(map[string]*Guard),
	}
}

// Guard returns the guard for provider, creating it on first use.
func (r *Registry) Guard(provider string) *Guard {
	if r == nil {
		return nil
	}
	key := normalizeKey(provider)

	r.mu.RLock()
	g, ok := r.guards[key]
	r.mu.RUnlock()
	if ok {
		return g
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if g, ok := r.guards[key]; ok {
		return g
	}
	g = NewGuard(key, r.configFor(key), r.opts...)
	r.guards[key] = g
	return g
}

// Lookup returns an existing guard without creating one.
func (r *Registry) Lookup(provider string) (*Guard, bool) {
	if r == nil {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.guards[normalizeKey(provider)]
	return g, ok
}

// Statuses returns a snapshot of every guard, ordered by provider name.
func (r *Registry) Statuses() []core.GuardStatus {
	if r == nil {
		return nil
	}

	r.mu.RLock()
	names := make([]string, 0, len(r.guards))
	for name := range r.guards {
		names = append(names, name)
	}
	r.mu.RUnlock()
	sort.Strings(names)

	statuses := make([]core.GuardStatus, 0, len(names))
	for _, name := range names {
		if g, ok := r.Lookup(name); ok {
			statuses = append(statuses, g.Status())
		}
	}
	return statuses
}

func (r *Registry) configFor(key string) GuardConfig {
	if cfg, ok := r.overrides[key]; ok {
		return cfg.Merge(r.defaults)
	}
	return r.defaults
}

func normalizeKey(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}
