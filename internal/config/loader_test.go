package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	gfconfig "github.com/fulmenhq/gofulmen/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func repoRoot(t *testing.T) string {
	t.Helper()
	dir, err := os.Getwd()
	require.NoError(t, err)
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		require.NotEqual(t, dir, parent, "go.mod not found above working directory")
		dir = parent
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", t.TempDir())

	cfg, err := Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "localhost", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 30*time.Second, cfg.Server.WriteTimeout)
	assert.Equal(t, 120*time.Second, cfg.Server.IdleTimeout)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "full", cfg.Server.DefaultProfile)

	assert.Equal(t, "libsql", cfg.Store.Driver)
	assert.Equal(t, filepath.Join(gfconfig.GetAppDataDir("tickerlens"), "tickerlens.db"), cfg.Store.Path)
	assert.Empty(t, cfg.Store.URL)

	assert.True(t, cfg.Cache.Enabled)
	assert.Equal(t, 15*time.Minute, cfg.Cache.OKTTL)
	assert.Equal(t, 30*time.Second, cfg.Cache.ErrorTTL)

	guard := cfg.Guard
	assert.Equal(t, 100, guard.MaxCallsPerWindow)
	assert.Equal(t, time.Hour, guard.Window)
	assert.Equal(t, 1.0, guard.SafetyMargin)
	assert.Equal(t, 3, guard.FailureThreshold)
	assert.Equal(t, 60*time.Second, guard.BaseCooldown)
	assert.Equal(t, 2.0, guard.BackoffFactor)
	assert.Equal(t, time.Hour, guard.MaxCooldown)
	assert.Empty(t, cfg.Providers)

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "SIMPLE", cfg.Logging.Profile)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, 9090, cfg.Metrics.Port)
	assert.True(t, cfg.Health.Enabled)
	assert.False(t, cfg.Debug.Enabled)
	assert.Equal(t, 4, cfg.Workers)

	assert.Same(t, cfg, GetConfig())
}

func TestLoadUnderCIBoundary(t *testing.T) {
	// a checkout outside $HOME is only found with the workspace hint
	t.Setenv("HOME", t.TempDir())
	t.Setenv("CI", "true")
	t.Setenv("FULMEN_WORKSPACE_ROOT", repoRoot(t))

	cfg, err := Load(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, cfg)
}

func TestCIBoundary(t *testing.T) {
	root := repoRoot(t)
	cwd, err := os.Getwd()
	require.NoError(t, err)

	t.Setenv("CI", "")
	t.Setenv("GITHUB_ACTIONS", "")
	assert.Empty(t, ciBoundary(cwd))

	t.Setenv("CI", "true")
	t.Setenv("FULMEN_WORKSPACE_ROOT", "relative/path")
	t.Setenv("GITHUB_WORKSPACE", t.TempDir())
	t.Setenv("CI_PROJECT_DIR", root)
	assert.Equal(t, root, ciBoundary(cwd))
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("TICKERLENS_PORT", "3000")
	t.Setenv("TICKERLENS_LOG_LEVEL", "warn")
	t.Setenv("TICKERLENS_METRICS_ENABLED", "false")
	t.Setenv("TICKERLENS_READ_TIMEOUT", "45s")
	t.Setenv("TICKERLENS_DEFAULT_PROFILE", "prices")
	t.Setenv("TICKERLENS_GUARD_MAX_CALLS", "40")
	t.Setenv("TICKERLENS_GUARD_WINDOW", "15m")
	t.Setenv("TICKERLENS_GUARD_BACKOFF_FACTOR", "3")
	t.Setenv("TICKERLENS_GUARD_SAFETY_MARGIN", "0.8")

	cfg, err := Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.False(t, cfg.Metrics.Enabled)
	assert.Equal(t, 45*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, "prices", cfg.Server.DefaultProfile)
	assert.Equal(t, 40, cfg.Guard.MaxCallsPerWindow)
	assert.Equal(t, 15*time.Minute, cfg.Guard.Window)
	assert.Equal(t, 3.0, cfg.Guard.BackoffFactor)
	assert.Equal(t, 0.8, cfg.Guard.SafetyMargin)
}

func TestLoadPrecedence(t *testing.T) {
	t.Setenv("TICKERLENS_PORT", "4000")

	cfg, err := Load(context.Background(), map[string]any{
		"server":  map[string]any{"port": 5000, "host": "0.0.0.0"},
		"logging": map[string]any{"level": "debug"},
	})
	require.NoError(t, err)

	assert.Equal(t, 5000, cfg.Server.Port, "runtime beats env")
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "SIMPLE", cfg.Logging.Profile, "untouched keys keep defaults")
}

func TestLoadReplacesCurrentConfig(t *testing.T) {
	first, err := Load(context.Background())
	require.NoError(t, err)

	second, err := Load(context.Background(), map[string]any{
		"server": map[string]any{"port": first.Server.Port + 1000},
	})
	require.NoError(t, err)

	assert.Equal(t, first.Server.Port+1000, second.Server.Port)
	assert.Same(t, second, GetConfig())
}

func TestEnvSpecs(t *testing.T) {
	_, err := Load(context.Background())
	require.NoError(t, err)

	names := map[string]bool{}
	for _, spec := range getEnvSpecs() {
		names[spec.Name] = true
	}

	for _, name := range []string{"LOG_LEVEL", "PORT", "HOST", "METRICS_PORT", "DB_PATH", "DEFAULT_PROFILE"} {
		assert.Truef(t, names["TICKERLENS_"+name], "%s not mapped", name)
	}
	for _, name := range []string{"MAX_CALLS", "WINDOW", "FAILURE_THRESHOLD", "BASE_COOLDOWN", "BACKOFF_FACTOR", "MAX_COOLDOWN", "SAFETY_MARGIN"} {
		assert.Truef(t, names["TICKERLENS_GUARD_"+name], "GUARD_%s not mapped", name)
	}
	assert.Equal(t, "HOST", envKeys[0].Name, "specs must not rewrite the shared table")
}

func TestProviderEnvOverrides(t *testing.T) {
	t.Setenv("TICKERLENS_PROVIDERS_NEWSWIRE_ENABLED", "true")
	t.Setenv("TICKERLENS_PROVIDERS_NEWSWIRE_BASE_URL", "http://localhost:9999")
	t.Setenv("TICKERLENS_PROVIDERS_NEWSWIRE_API_KEY", "secret")
	t.Setenv("TICKERLENS_PROVIDERS_NEWSWIRE_KINDS", "sentiment")
	t.Setenv("TICKERLENS_PROVIDERS_NEWSWIRE_GUARD_MAX_CALLS", "25")
	t.Setenv("TICKERLENS_PROVIDERS_NEWSWIRE_GUARD_BASE_COOLDOWN", "2m")

	cfg, err := Load(context.Background())
	require.NoError(t, err)

	provider, ok := cfg.Providers["newswire"]
	require.True(t, ok)
	assert.True(t, provider.Enabled)
	assert.Equal(t, "http://localhost:9999", provider.BaseURL)
	assert.Equal(t, "secret", provider.APIKey)
	assert.Equal(t, []string{"sentiment"}, provider.Kinds)
	assert.Equal(t, 25, provider.Guard.MaxCallsPerWindow)
	assert.Equal(t, 2*time.Minute, provider.Guard.BaseCooldown)
	assert.Zero(t, provider.Guard.FailureThreshold, "unset fields inherit guard defaults later")
}

func TestApplyProviderOverride(t *testing.T) {
	overrides := map[string]any{}
	applyProviderOverride(overrides, "MARKET_DATA_PACE_RPS", " 1.5 ")
	applyProviderOverride(overrides, "MARKET_DATA_GUARD_WINDOW", "10m")
	applyProviderOverride(overrides, "MARKET_DATA_ENABLED", "TRUE")
	applyProviderOverride(overrides, "UNKNOWN", "x")
	applyProviderOverride(overrides, "_API_KEY", "orphan")

	providers, ok := overrides["providers"].(map[string]any)
	require.True(t, ok)
	require.Len(t, providers, 1)

	provider, ok := providers["market-data"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "1.5", provider["pace_rps"])
	assert.Equal(t, true, provider["enabled"])

	guard, ok := provider["guard"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "10m", guard["window"])
}

func TestNormalizeProviders(t *testing.T) {
	cfg := &Config{Providers: map[string]ProviderConfig{
		" Quotely ": {BaseURL: "http://q"},
		"":          {BaseURL: "http://blank"},
	}}
	normalizeProviders(cfg)

	require.Len(t, cfg.Providers, 1)
	assert.Equal(t, "http://q", cfg.Providers["quotely"].BaseURL)

	normalizeProviders(nil)
}

func TestToSlug(t *testing.T) {
	assert.Equal(t, "market-data", toSlug("MARKET__DATA"))
	assert.Equal(t, "", toSlug("_"))
}
