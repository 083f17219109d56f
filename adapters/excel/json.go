package excel

import (
	"encoding/json"
	"fmt"
	"io"

	"loopscan/domain/run"
)

// JSONExporter writes a report as indented JSON.
type JSONExporter struct{}

// NewJSONExporter creates a JSON exporter
func NewJSONExporter() *JSONExporter {
	return &JSONExporter{}
}

// Format names the export format
func (e *JSONExporter) Format() string { return "json" }

// Export writes report to w
func (e *JSONExporter) Export(w io.Writer, report *run.Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return nil
}
