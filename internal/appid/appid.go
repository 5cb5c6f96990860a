package appid

import (
	"context"
	"strings"

	"github.com/fulmenhq/gofulmen/appidentity"

	appidentityassets "github.com/tickerlens/tickerlens/internal/assets/appidentity"
)

// DefaultEnvPrefix is used when no identity can be loaded.
const DefaultEnvPrefix = "TICKERLENS_"

func init() {
	// Explicit identity overrides (Options.ExplicitPath and
	// FULMEN_APP_IDENTITY_PATH) stay authoritative. The embedded copy only
	// applies when no .fulmen/app.yaml can be found.
	_ = appidentity.RegisterEmbeddedIdentityYAML(appidentityassets.YAML)
}

func Get(ctx context.Context) (*appidentity.Identity, error) {
	return appidentity.Get(ctx)
}

// EnvPrefix returns the identity's env prefix, or DefaultEnvPrefix.
func EnvPrefix(ctx context.Context) string {
	if ctx == nil {
		ctx = context.Background()
	}
	if identity, err := Get(ctx); err == nil && identity != nil && identity.EnvPrefix != "" {
		return identity.EnvPrefix
	}
	return DefaultEnvPrefix
}

// EnvName builds an environment variable name under the identity prefix.
// EnvName(ctx, "providers", "news-wire", "api_key") gives
// TICKERLENS_PROVIDERS_NEWS_WIRE_API_KEY.
func EnvName(ctx context.Context, parts ...string) string {
	cleaned := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		cleaned = append(cleaned, strings.ToUpper(strings.ReplaceAll(part, "-", "_")))
	}
	return EnvPrefix(ctx) + strings.Join(cleaned, "_")
}
