package cmd

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tickerlens/tickerlens/internal/config"
)

func sectionRows(sections []infoSection, title string) map[string]string {
	rows := map[string]string{}
	for _, s := range sections {
		if s.title != title {
			continue
		}
		for _, row := range s.rows {
			rows[row[0]] = row[1]
		}
	}
	return rows
}

func TestConfigSections(t *testing.T) {
	cfg := &config.Config{}
	cfg.Server.Host = "localhost"
	cfg.Server.Port = 8080
	cfg.Store.URL = "libsql://example.turso.io"
	cfg.Guard.MaxCallsPerWindow = 100
	cfg.Guard.Window = time.Hour
	cfg.Guard.FailureThreshold = 3
	cfg.Providers = map[string]config.ProviderConfig{
		"quotely":  {Enabled: true, Kinds: []string{"quote"}, APIKey: "secret"},
		"newswire": {Kinds: []string{"sentiment"}},
	}

	sections := configSections(cfg)

	conf := sectionRows(sections, "Configuration")
	assert.Equal(t, "localhost:8080", conf["Server"])
	assert.Equal(t, "libsql://example.turso.io", conf["DB URL"])
	assert.NotContains(t, conf, "DB Path")

	guard := sectionRows(sections, "Guard")
	assert.Equal(t, "100 per 1h0m0s", guard["Max Calls"])
	assert.Equal(t, "3 rate-limit signals", guard["Trip After"])

	providers := sectionRows(sections, "Providers")
	require.Len(t, providers, 2)
	assert.Contains(t, providers["quotely"], "api_key=(set)")
	assert.NotContains(t, providers["quotely"], "secret")
	assert.Contains(t, providers["newswire"], "enabled=false")
}

func TestConfigSectionsWithoutProviders(t *testing.T) {
	providers := sectionRows(configSections(&config.Config{}), "Providers")
	assert.Contains(t, providers, "(none)")
}

func TestBuildInfoSections(t *testing.T) {
	SetVersionInfo("2.0.0", "deadbeef", "2026-01-02")
	sections := buildInfoSections()

	app := sectionRows(sections, "Application")
	assert.Equal(t, "2.0.0", app["Version"])
	assert.Equal(t, "deadbeef", app["Commit"])
	assert.NotEmpty(t, sectionRows(sections, "Runtime")["Go Version"])
}
