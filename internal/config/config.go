package config

import (
	"time"
)

// Config represents the complete application configuration
// following the Fulmen Forge Workhorse Standard three-layer pattern:
// Layer 1: Crucible defaults (config/tickerlens/v0/tickerlens-defaults.yaml)
// Layer 2: User overrides (~/.config/tickerlens/config.yaml)
// Layer 3: Environment variables and runtime overrides
type Config struct {
	Server    ServerConfig              `mapstructure:"server"`
	Store     StoreConfig               `mapstructure:"store"`
	Cache     CacheConfig               `mapstructure:"cache"`
	Guard     GuardConfig               `mapstructure:"guard"`
	Providers map[string]ProviderConfig `mapstructure:"providers"`
	Logging   LoggingConfig             `mapstructure:"logging"`
	Metrics   MetricsConfig             `mapstructure:"metrics"`
	Health    HealthConfig              `mapstructure:"health"`
	Debug     DebugConfig               `mapstructure:"debug"`
	Workers   int                       `mapstructure:"workers"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	DefaultProfile  string        `mapstructure:"default_profile"`
}

// StoreConfig contains database configuration for libsql/Turso
type StoreConfig struct {
	Driver    string `mapstructure:"driver"`
	Path      string `mapstructure:"path"`
	URL       string `mapstructure:"url"`
	AuthToken string `mapstructure:"auth_token"`
}

// CacheConfig contains snapshot cache TTL configuration.
type CacheConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	OKTTL    time.Duration `mapstructure:"ok_ttl"`
	ErrorTTL time.Duration `mapstructure:"error_ttl"`
}

// GuardConfig holds the admission limits for a provider. Zero values inherit
// from the global guard section, and from built-in defaults after that.
type GuardConfig struct {
	MaxCallsPerWindow int           `mapstructure:"max_calls_per_window"`
	Window            time.Duration `mapstructure:"window"`
	SafetyMargin      float64       `mapstructure:"safety_margin"`
	FailureThreshold  int           `mapstructure:"failure_threshold"`
	BaseCooldown      time.Duration `mapstructure:"base_cooldown"`
	BackoffFactor     float64       `mapstructure:"backoff_factor"`
	MaxCooldown       time.Duration `mapstructure:"max_cooldown"`
}

// ProviderConfig describes one upstream data provider. The map key is the
// provider name and also the name of its guard.
type ProviderConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	BaseURL string        `mapstructure:"base_url"`
	APIKey  string        `mapstructure:"api_key"`
	Kinds   []string      `mapstructure:"kinds"`
	PaceRPS float64       `mapstructure:"pace_rps"`
	Timeout time.Duration `mapstructure:"timeout"`
	Guard   GuardConfig   `mapstructure:"guard"`
}

// LoggingConfig contains logging configuration
// Supports progressive logging profiles per Fulmen Forge Workhorse Standard:
// - SIMPLE: Console output only, minimal configuration (CLI tools)
// - STRUCTURED: Structured sinks, correlation IDs (API services)
type LoggingConfig struct {
	// Level controls the minimum log level
	// Valid values: trace, debug, info, warn, error
	Level string `mapstructure:"level"`

	// Profile selects the logging complexity level
	// Valid values: SIMPLE, STRUCTURED, ENTERPRISE
	Profile string `mapstructure:"profile"`
}

// MetricsConfig contains Prometheus metrics configuration
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`

	// Port is the dedicated metrics endpoint port (Prometheus format)
	Port int `mapstructure:"port"`
}

// HealthConfig contains health check configuration
type HealthConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// DebugConfig contains debug and profiling configuration
type DebugConfig struct {
	Enabled bool `mapstructure:"enabled"`

	// PprofEnabled controls whether pprof endpoints are exposed.
	// Only enable in development/staging environments.
	PprofEnabled bool `mapstructure:"pprof_enabled"`
}
