package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/tickerlens/tickerlens/internal/output"
)

// outputSink is where a snapshot command writes its rendered report: stdout
// or a file the caller must close.
type outputSink struct {
	writer io.Writer
	close  func() error
	path   string
}

func stdoutSink() *outputSink {
	return &outputSink{writer: os.Stdout, close: func() error { return nil }, path: "-"}
}

var errOutFlagsExclusive = errors.New("--out and --out-dir are mutually exclusive")

// openFormattedSink resolves --format, --out and --out-dir for a table|json
// command. With --out-dir the file is named <stem>.<ext>.
func openFormattedSink(formatValue, outPath, outDir, stem string) (output.Format, *outputSink, error) {
	format, err := output.ParseFormat(formatValue)
	if err != nil {
		return "", nil, err
	}
	if format != output.FormatJSON && format != output.FormatTable {
		return "", nil, fmt.Errorf("unsupported output format: %s", format)
	}

	path, err := sinkPath(strings.TrimSpace(outPath), strings.TrimSpace(outDir), stem, format)
	if err != nil {
		return "", nil, err
	}
	if path == "" || path == "-" {
		return format, stdoutSink(), nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", nil, fmt.Errorf("create output directory: %w", err)
	}
	file, err := os.Create(path)
	if err != nil {
		return "", nil, fmt.Errorf("create output file: %w", err)
	}
	return format, &outputSink{writer: file, close: file.Close, path: path}, nil
}

func sinkPath(outPath, outDir, stem string, format output.Format) (string, error) {
	switch {
	case outPath != "" && outDir != "":
		return "", errOutFlagsExclusive
	case outDir == "":
		return outPath, nil
	}

	if abs, err := filepath.Abs(outDir); err == nil {
		outDir = abs
	}
	return filepath.Join(outDir, stem+"."+outputExtension(format)), nil
}

func outputExtension(format output.Format) string {
	switch format {
	case output.FormatJSON:
		return "json"
	case output.FormatMarkdown:
		return "md"
	default:
		return "txt"
	}
}
