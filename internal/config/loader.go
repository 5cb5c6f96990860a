// Package config loads tickerlens configuration in three layers with
// gofulmen/config:
//
//  1. defaults from config/tickerlens/v0/tickerlens-defaults.yaml
//  2. the user's config.yaml from the XDG config directory
//  3. TICKERLENS_* environment variables and runtime overrides
//
// The merged document is validated against schemas/tickerlens/v0 and decoded
// into Config.
package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fulmenhq/gofulmen/appidentity"
	gfconfig "github.com/fulmenhq/gofulmen/config"
	"github.com/fulmenhq/gofulmen/pathfinder"
	"github.com/fulmenhq/gofulmen/schema"
	"github.com/go-viper/mapstructure/v2"

	"github.com/tickerlens/tickerlens/internal/appid"
)

const (
	configCategory = "tickerlens"
	configVersion  = "v0"
	fallbackName   = "tickerlens"
)

var (
	appConfig   *Config
	configMu    sync.RWMutex
	appIdentity *appidentity.Identity
)

// EnvVarSpec maps one environment variable onto a config path.
type EnvVarSpec = gfconfig.EnvVarSpec

const (
	EnvString = gfconfig.EnvString
	EnvInt    = gfconfig.EnvInt
	EnvBool   = gfconfig.EnvBool
)

// Load builds the layered configuration and installs it as the current
// config. It is safe to call again to reload.
func Load(ctx context.Context, runtimeOverrides ...map[string]any) (*Config, error) {
	if appIdentity == nil {
		identity, err := appid.Get(ctx)
		if err != nil {
			return nil, fmt.Errorf("load app identity: %w", err)
		}
		appIdentity = identity
	}

	root, err := findProjectRoot()
	if err != nil {
		return nil, err
	}

	overrides, err := envOverrides()
	if err != nil {
		return nil, err
	}

	merged, diagnostics, err := gfconfig.LoadLayeredConfig(gfconfig.LayeredConfigOptions{
		Category:     configCategory,
		Version:      configVersion,
		DefaultsFile: configCategory + "-defaults.yaml",
		SchemaID:     configCategory + "/" + configVersion + "/config",
		UserPaths:    userConfigPaths(),
		Catalog:      schema.NewCatalog(filepath.Join(root, "schemas")),
		DefaultsRoot: filepath.Join(root, "config"),
	}, append([]map[string]any{overrides}, runtimeOverrides...)...)
	if err != nil {
		return nil, fmt.Errorf("load layered config: %w", err)
	}

	// schema problems are reported, never fatal
	for _, diag := range diagnostics {
		fmt.Fprintf(os.Stderr, "Config validation: %s: %s\n", diag.Pointer, diag.Message)
	}

	cfg, err := decode(merged)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(cfg.Store.URL) == "" && strings.TrimSpace(cfg.Store.Path) == "" {
		cfg.Store.Path = DefaultStorePath()
	}
	normalizeProviders(cfg)

	setConfig(cfg)
	return cfg, nil
}

func decode(merged map[string]any) (*Config, error) {
	cfg := &Config{}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           cfg,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
			mapstructure.StringToFloat64HookFunc(),
		),
	})
	if err != nil {
		return nil, fmt.Errorf("create config decoder: %w", err)
	}
	if err := decoder.Decode(merged); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

// GetConfig returns the config installed by the last successful Load.
func GetConfig() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return appConfig
}

func setConfig(cfg *Config) {
	configMu.Lock()
	defer configMu.Unlock()
	appConfig = cfg
}

// findProjectRoot locates the directory holding config/ and schemas/ by
// walking up to the nearest go.mod or .git. Under CI the workspace variable,
// when it contains the working directory, bounds the search.
func findProjectRoot() (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("get working directory: %w", err)
	}
	markers := []string{"go.mod", ".git"}

	if boundary := ciBoundary(cwd); boundary != "" {
		if root, err := pathfinder.FindRepositoryRoot(cwd, markers,
			pathfinder.WithBoundary(boundary),
			pathfinder.WithMaxDepth(20),
		); err == nil {
			return root, nil
		}
	}

	root, err := pathfinder.FindRepositoryRoot(cwd, markers, pathfinder.WithMaxDepth(10))
	if err != nil {
		return "", fmt.Errorf("project root not found: %w", err)
	}
	return root, nil
}

func ciBoundary(cwd string) string {
	if !envTrue("CI") && !envTrue("GITHUB_ACTIONS") {
		return ""
	}
	for _, key := range []string{"FULMEN_WORKSPACE_ROOT", "GITHUB_WORKSPACE", "CI_PROJECT_DIR", "WORKSPACE"} {
		dir := filepath.Clean(strings.TrimSpace(os.Getenv(key)))
		if dir == "." || !filepath.IsAbs(dir) {
			continue
		}
		if st, err := os.Stat(dir); err != nil || !st.IsDir() {
			continue
		}
		if rel, err := filepath.Rel(dir, cwd); err == nil && !strings.HasPrefix(rel, "..") {
			return dir
		}
	}
	return ""
}

func envTrue(key string) bool {
	return strings.EqualFold(strings.TrimSpace(os.Getenv(key)), "true")
}

func envPrefix() string {
	if appIdentity == nil {
		return ""
	}
	prefix := appIdentity.EnvPrefix
	if !strings.HasSuffix(prefix, "_") {
		prefix += "_"
	}
	return prefix
}

func envOverrides() (map[string]any, error) {
	overrides, err := gfconfig.LoadEnvOverrides(getEnvSpecs())
	if err != nil {
		return nil, fmt.Errorf("load environment overrides: %w", err)
	}
	if prefix := envPrefix(); prefix != "" {
		applyProviderDynamicEnvOverrides(prefix, overrides)
	}
	return overrides, nil
}

func userConfigPaths() []string {
	if appIdentity == nil {
		return nil
	}
	name, binary := appNamesForPaths()
	var legacy []string
	if binary != name {
		legacy = append(legacy, binary)
	}
	return gfconfig.GetAppConfigPaths(name, legacy...)
}

// envKeys lists the fixed environment variables without their prefix.
// Durations and floats travel as strings and are converted by the decode
// hooks.
var envKeys = []EnvVarSpec{
	{Name: "HOST", Path: []string{"server", "host"}, Type: EnvString},
	{Name: "PORT", Path: []string{"server", "port"}, Type: EnvInt},
	{Name: "READ_TIMEOUT", Path: []string{"server", "read_timeout"}, Type: EnvString},
	{Name: "WRITE_TIMEOUT", Path: []string{"server", "write_timeout"}, Type: EnvString},
	{Name: "IDLE_TIMEOUT", Path: []string{"server", "idle_timeout"}, Type: EnvString},
	{Name: "SHUTDOWN_TIMEOUT", Path: []string{"server", "shutdown_timeout"}, Type: EnvString},
	{Name: "DEFAULT_PROFILE", Path: []string{"server", "default_profile"}, Type: EnvString},

	{Name: "LOG_LEVEL", Path: []string{"logging", "level"}, Type: EnvString},
	{Name: "LOG_PROFILE", Path: []string{"logging", "profile"}, Type: EnvString},

	{Name: "DB_DRIVER", Path: []string{"store", "driver"}, Type: EnvString},
	{Name: "DB_PATH", Path: []string{"store", "path"}, Type: EnvString},
	{Name: "DB_URL", Path: []string{"store", "url"}, Type: EnvString},
	{Name: "DB_AUTH_TOKEN", Path: []string{"store", "auth_token"}, Type: EnvString},

	{Name: "CACHE_ENABLED", Path: []string{"cache", "enabled"}, Type: EnvBool},
	{Name: "CACHE_OK_TTL", Path: []string{"cache", "ok_ttl"}, Type: EnvString},
	{Name: "CACHE_ERROR_TTL", Path: []string{"cache", "error_ttl"}, Type: EnvString},

	{Name: "GUARD_MAX_CALLS", Path: []string{"guard", "max_calls_per_window"}, Type: EnvInt},
	{Name: "GUARD_WINDOW", Path: []string{"guard", "window"}, Type: EnvString},
	{Name: "GUARD_FAILURE_THRESHOLD", Path: []string{"guard", "failure_threshold"}, Type: EnvInt},
	{Name: "GUARD_BASE_COOLDOWN", Path: []string{"guard", "base_cooldown"}, Type: EnvString},
	{Name: "GUARD_BACKOFF_FACTOR", Path: []string{"guard", "backoff_factor"}, Type: EnvString},
	{Name: "GUARD_MAX_COOLDOWN", Path: []string{"guard", "max_cooldown"}, Type: EnvString},
	{Name: "GUARD_SAFETY_MARGIN", Path: []string{"guard", "safety_margin"}, Type: EnvString},

	{Name: "METRICS_ENABLED", Path: []string{"metrics", "enabled"}, Type: EnvBool},
	{Name: "METRICS_PORT", Path: []string{"metrics", "port"}, Type: EnvInt},
	{Name: "HEALTH_ENABLED", Path: []string{"health", "enabled"}, Type: EnvBool},
	{Name: "DEBUG_ENABLED", Path: []string{"debug", "enabled"}, Type: EnvBool},
	{Name: "DEBUG_PPROF_ENABLED", Path: []string{"debug", "pprof_enabled"}, Type: EnvBool},
	{Name: "WORKERS", Path: []string{"workers"}, Type: EnvInt},
}

// getEnvSpecs expands envKeys with the identity's env prefix.
func getEnvSpecs() []EnvVarSpec {
	prefix := envPrefix()
	if prefix == "" {
		return []EnvVarSpec{}
	}
	specs := make([]EnvVarSpec, len(envKeys))
	for i, spec := range envKeys {
		spec.Name = prefix + spec.Name
		specs[i] = spec
	}
	return specs
}

func appNamesForPaths() (configName, binaryName string) {
	configName, binaryName = fallbackName, fallbackName
	if appIdentity == nil {
		return configName, binaryName
	}
	if name := strings.TrimSpace(appIdentity.ConfigName); name != "" {
		configName = name
	}
	if name := strings.TrimSpace(appIdentity.BinaryName); name != "" {
		binaryName = name
	}
	return configName, binaryName
}

// DefaultConfigPath returns the user config.yaml path in the XDG config dir.
func DefaultConfigPath() string {
	name, _ := appNamesForPaths()
	dir := gfconfig.GetAppConfigDir(name)
	if strings.TrimSpace(dir) == "" {
		return ""
	}
	return filepath.Join(dir, "config.yaml")
}

// DefaultDataDir returns the XDG data directory that holds the snapshot store.
func DefaultDataDir() string {
	name, _ := appNamesForPaths()
	return gfconfig.GetAppDataDir(name)
}

// DefaultStorePath returns <data dir>/<binary>.db, or ./<binary>.db when no
// data directory can be resolved.
func DefaultStorePath() string {
	_, binary := appNamesForPaths()
	dir := DefaultDataDir()
	if strings.TrimSpace(dir) == "" {
		return "./" + binary + ".db"
	}
	return filepath.Join(dir, binary+".db")
}

// applyProviderDynamicEnvOverrides maps {PREFIX}PROVIDERS_<NAME>_<FIELD> onto
// providers.<name>.<field>, e.g. TICKERLENS_PROVIDERS_NEWSWIRE_API_KEY.
func applyProviderDynamicEnvOverrides(prefix string, overrides map[string]any) {
	providerPrefix := prefix + "PROVIDERS_"
	for _, item := range os.Environ() {
		key, value, ok := strings.Cut(item, "=")
		if !ok || strings.TrimSpace(value) == "" {
			continue
		}
		if rest, found := strings.CutPrefix(key, providerPrefix); found {
			applyProviderOverride(overrides, rest, value)
		}
	}
}

var providerEnvFields = map[string][]string{
	"ENABLED":                 {"enabled"},
	"BASE_URL":                {"base_url"},
	"API_KEY":                 {"api_key"},
	"KINDS":                   {"kinds"},
	"PACE_RPS":                {"pace_rps"},
	"TIMEOUT":                 {"timeout"},
	"GUARD_MAX_CALLS":         {"guard", "max_calls_per_window"},
	"GUARD_WINDOW":            {"guard", "window"},
	"GUARD_FAILURE_THRESHOLD": {"guard", "failure_threshold"},
	"GUARD_BASE_COOLDOWN":     {"guard", "base_cooldown"},
	"GUARD_BACKOFF_FACTOR":    {"guard", "backoff_factor"},
	"GUARD_MAX_COOLDOWN":      {"guard", "max_cooldown"},
	"GUARD_SAFETY_MARGIN":     {"guard", "safety_margin"},
}

func applyProviderOverride(overrides map[string]any, raw, value string) {
	parts := strings.Split(strings.TrimSpace(raw), "_")
	if len(parts) < 2 {
		return
	}

	// the longest matching field suffix wins; the rest is the provider name
	for i := 1; i < len(parts); i++ {
		path, ok := providerEnvFields[strings.Join(parts[i:], "_")]
		if !ok {
			continue
		}

		provider := toSlug(strings.Join(parts[:i], "_"))
		if provider == "" {
			return
		}

		target := ensureMap(ensureMap(overrides, "providers"), provider)
		for _, segment := range path[:len(path)-1] {
			target = ensureMap(target, segment)
		}

		field := path[len(path)-1]
		value = strings.TrimSpace(value)
		if field == "enabled" {
			target[field] = strings.EqualFold(value, "true")
		} else {
			target[field] = value
		}
		return
	}
}

// normalizeProviders lower-cases provider names so guard keys are stable.
func normalizeProviders(cfg *Config) {
	if cfg == nil || len(cfg.Providers) == 0 {
		return
	}
	normalized := make(map[string]ProviderConfig, len(cfg.Providers))
	for name, provider := range cfg.Providers {
		if key := strings.ToLower(strings.TrimSpace(name)); key != "" {
			normalized[key] = provider
		}
	}
	cfg.Providers = normalized
}

func ensureMap(parent map[string]any, key string) map[string]any {
	if parent == nil {
		return map[string]any{}
	}
	if typed, ok := parent[key].(map[string]any); ok {
		return typed
	}
	next := map[string]any{}
	parent[key] = next
	return next
}

func toSlug(raw string) string {
	var clean []string
	for _, part := range strings.Split(raw, "_") {
		if p := strings.ToLower(strings.TrimSpace(part)); p != "" {
			clean = append(clean, p)
		}
	}
	return strings.Join(clean, "-")
}
