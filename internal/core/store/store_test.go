package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tickerlens/tickerlens/internal/config"
)

func TestBuildLibsqlDSN(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.StoreConfig
		want    string
		wantErr bool
	}{
		{
			name: "remote url gets auth token",
			cfg:  config.StoreConfig{URL: "libsql://snapshots.turso.io", AuthToken: "token123"},
			want: "libsql://snapshots.turso.io?authToken=token123",
		},
		{
			name: "remote url keeps existing query",
			cfg:  config.StoreConfig{URL: "libsql://snapshots.turso.io?foo=bar", AuthToken: "token123"},
			want: "libsql://snapshots.turso.io?authToken=token123&foo=bar",
		},
		{
			name: "file path",
			cfg:  config.StoreConfig{Path: "file:./tickerlens.db"},
			want: "file:./tickerlens.db",
		},
		{
			name: "memory",
			cfg:  config.StoreConfig{Path: ":memory:"},
			want: ":memory:",
		},
		{
			name:    "nothing configured",
			cfg:     config.StoreConfig{},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dsn, err := buildLibsqlDSN(tt.cfg)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, dsn)
		})
	}
}

func TestOpenUnsupportedDriver(t *testing.T) {
	_, err := Open(context.Background(), config.StoreConfig{Driver: "postgres", Path: ":memory:"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported store driver")
}

func TestNilStore(t *testing.T) {
	var s *Store
	assert.NoError(t, s.Close())
	assert.Empty(t, s.Driver())
	assert.Error(t, s.CheckHealth(context.Background()))
}
