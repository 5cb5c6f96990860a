package cmd

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestBuildInitConfig(t *testing.T) {
	rendered := buildInitConfig("news-wire", "https://api.newswire.test", "")

	var parsed struct {
		Guard struct {
			MaxCallsPerWindow int `yaml:"max_calls_per_window"`
		} `yaml:"guard"`
		Providers map[string]struct {
			Enabled bool     `yaml:"enabled"`
			BaseURL string   `yaml:"base_url"`
			Kinds   []string `yaml:"kinds"`
			APIKey  string   `yaml:"api_key"`
		} `yaml:"providers"`
	}
	require.NoError(t, yaml.Unmarshal([]byte(rendered), &parsed))

	assert.Equal(t, 100, parsed.Guard.MaxCallsPerWindow)
	provider := parsed.Providers["news-wire"]
	assert.True(t, provider.Enabled)
	assert.Equal(t, "https://api.newswire.test", provider.BaseURL)
	assert.Equal(t, []string{"quote", "earnings", "sentiment"}, provider.Kinds)
	assert.Empty(t, provider.APIKey)
	assert.Contains(t, rendered, "PROVIDERS_NEWS_WIRE_API_KEY")

	withKey := buildInitConfig("", "https://api.market.test", "s3cret")
	require.NoError(t, yaml.Unmarshal([]byte(withKey), &parsed))
	assert.Equal(t, "s3cret", parsed.Providers["marketdata"].APIKey)
}

func TestFormatHelpers(t *testing.T) {
	assert.Equal(t, "512 bytes", formatFileSize(512))
	assert.Equal(t, "1.5 KB", formatFileSize(1536))
	assert.Equal(t, "2.0 MB", formatFileSize(2*1024*1024))

	assert.Equal(t, "unknown", formatTimeAgo(time.Time{}))
	assert.Equal(t, "just now", formatTimeAgo(time.Now()))
	assert.Equal(t, "3 hours ago", formatTimeAgo(time.Now().Add(-3*time.Hour-time.Minute)))
}
