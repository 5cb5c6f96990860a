package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestReadSymbolsFileLines(t *testing.T) {
	path := writeTemp(t, "tickers.txt", "# megacaps\naapl\n MSFT \n\nAAPL\nbrk.b\n")

	symbols, profile, err := readSymbolsFile(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"AAPL", "MSFT", "BRK.B"}, symbols)
	assert.Empty(t, profile)
}

func TestReadSymbolsFileWatchlist(t *testing.T) {
	path := writeTemp(t, "watch.yaml", "profile: prices\ntickers:\n  - nvda\n  - amd\n  - NVDA\n")

	symbols, profile, err := readSymbolsFile(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"NVDA", "AMD"}, symbols)
	assert.Equal(t, "prices", profile)
}

func TestReadSymbolsFileErrors(t *testing.T) {
	tests := map[string]string{
		"bad line":        writeTemp(t, "bad.txt", "AAPL\nnot a ticker\n"),
		"empty":           writeTemp(t, "empty.txt", "# nothing\n"),
		"bad yaml ticker": writeTemp(t, "bad.yml", "tickers: [\"$$$\"]\n"),
		"bad yaml":        writeTemp(t, "broken.yaml", "tickers: [unclosed\n"),
		"missing file":    filepath.Join(t.TempDir(), "missing.txt"),
	}

	for name, path := range tests {
		t.Run(name, func(t *testing.T) {
			_, _, err := readSymbolsFile(path)
			assert.Error(t, err)
		})
	}
}

func TestNormalizeSymbolArg(t *testing.T) {
	symbol, err := normalizeSymbolArg(" tsla ")
	require.NoError(t, err)
	assert.Equal(t, "TSLA", symbol)

	_, err = normalizeSymbolArg("1ABC")
	assert.Error(t, err)
}
