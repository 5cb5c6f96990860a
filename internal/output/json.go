package output

import (
	"encoding/json"

	"github.com/tickerlens/tickerlens/internal/core"
)

// JSONFormatter renders results as JSON.
type JSONFormatter struct {
	Indent bool
}

// FormatBatch renders a batch result as JSON.
func (f *JSONFormatter) FormatBatch(result *core.BatchResult) (string, error) {
	if result == nil {
		return "", nil
	}
	return f.marshal(result)
}

// FormatGuards renders guard snapshots as a JSON array.
func (f *JSONFormatter) FormatGuards(statuses []core.GuardStatus) (string, error) {
	if statuses == nil {
		statuses = []core.GuardStatus{}
	}
	return f.marshal(statuses)
}

func (f *JSONFormatter) marshal(value any) (string, error) {
	var (
		data []byte
		err  error
	)

	if f.Indent {
		data, err = json.MarshalIndent(value, "", "  ")
	} else {
		data, err = json.Marshal(value)
	}
	if err != nil {
		return "", err
	}

	return string(data), nil
}
