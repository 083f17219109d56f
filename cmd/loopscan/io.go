package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"loopscan/adapters/excel"
	"loopscan/app"
	"loopscan/domain/run"
	"loopscan/domain/sky"
	apperrors "loopscan/internal/errors"
	"loopscan/ports"
)

// readMap loads a JSON map of the form {"nside": n, "samples": [...],
// "valid": [...]}. A missing valid array marks every pixel valid.
func readMap(path string) (*sky.SkyMap, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, apperrors.InvalidInput(fmt.Sprintf("open map: %v", err))
	}
	defer f.Close()

	var raw struct {
		NSide   int       `json:"nside"`
		Samples []float64 `json:"samples"`
		Valid   []bool    `json:"valid"`
	}
	if err := json.NewDecoder(f).Decode(&raw); err != nil {
		return nil, apperrors.InvalidInput(fmt.Sprintf("decode map %s: %v", path, err))
	}
	return sky.NewSkyMap(raw.NSide, raw.Samples, raw.Valid)
}

func writeMap(path string, m *sky.SkyMap) error {
	data, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func exporterFor(format string) (ports.ReportExporter, error) {
	switch format {
	case "json":
		return excel.NewJSONExporter(), nil
	case "xlsx":
		return excel.NewWorkbookExporter(), nil
	default:
		return nil, apperrors.InvalidInput("format must be json, xlsx, markdown or html")
	}
}

type outputFlags struct {
	format string
	out    string
}

// writeReport renders report in the requested format to the output
// file, or stdout when none is given.
func writeReport(o outputFlags, report *run.Report, strongThreshold float64, topN int) error {
	var w io.Writer = os.Stdout
	if o.out != "" {
		f, err := os.Create(o.out)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}

	switch o.format {
	case "markdown":
		_, err := io.WriteString(w, app.ResearchSummary(report, strongThreshold, topN))
		return err
	case "html":
		_, err := w.Write(app.ResearchSummaryHTML(report, strongThreshold, topN))
		return err
	}
	exp, err := exporterFor(o.format)
	if err != nil {
		return err
	}
	return exp.Export(w, report)
}
