package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/tickerlens/tickerlens/internal/core/provider"
)

// watchlist is the YAML form of a batch input file.
type watchlist struct {
	Profile string   `yaml:"profile"`
	Tickers []string `yaml:"tickers"`
}

func normalizeSymbolArg(raw string) (string, error) {
	symbol := provider.NormalizeSymbol(raw)
	if !provider.ValidSymbol(symbol) {
		return "", fmt.Errorf("invalid ticker symbol: %q", raw)
	}
	return symbol, nil
}

// readSymbolsFile reads tickers from path ("-" is stdin). Files ending in
// .yaml or .yml are parsed as a watchlist; anything else is one symbol per
// line with # comments. The returned profile is empty unless the watchlist
// names one.
func readSymbolsFile(path string) ([]string, string, error) {
	var reader io.Reader
	if path == "-" {
		reader = os.Stdin
	} else {
		file, err := os.Open(path)
		if err != nil {
			return nil, "", err
		}
		defer file.Close() // nolint:errcheck // best-effort cleanup on read-only file
		reader = file
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return readWatchlist(reader)
	default:
		symbols, err := readSymbolLines(reader)
		return symbols, "", err
	}
}

func readSymbolLines(reader io.Reader) ([]string, error) {
	symbols := make([]string, 0)
	seen := map[string]bool{}
	scanner := bufio.NewScanner(reader)
	line := 0
	for scanner.Scan() {
		line++
		raw := strings.TrimSpace(scanner.Text())
		if raw == "" || strings.HasPrefix(raw, "#") {
			continue
		}
		symbol, err := normalizeSymbolArg(raw)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if seen[symbol] {
			continue
		}
		seen[symbol] = true
		symbols = append(symbols, symbol)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(symbols) == 0 {
		return nil, fmt.Errorf("no symbols found")
	}
	return symbols, nil
}

func readWatchlist(reader io.Reader) ([]string, string, error) {
	var list watchlist
	if err := yaml.NewDecoder(reader).Decode(&list); err != nil {
		return nil, "", fmt.Errorf("parse watchlist: %w", err)
	}

	symbols := make([]string, 0, len(list.Tickers))
	seen := map[string]bool{}
	for i, raw := range list.Tickers {
		symbol, err := normalizeSymbolArg(raw)
		if err != nil {
			return nil, "", fmt.Errorf("tickers[%d]: %w", i, err)
		}
		if seen[symbol] {
			continue
		}
		seen[symbol] = true
		symbols = append(symbols, symbol)
	}
	if len(symbols) == 0 {
		return nil, "", fmt.Errorf("no symbols found")
	}
	return symbols, strings.TrimSpace(list.Profile), nil
}
