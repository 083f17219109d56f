package excel

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"loopscan/domain/run"
	"loopscan/domain/sky"
)

// Sheet names written by WorkbookExporter
const (
	SheetSummary = "Summary"
	SheetMatches = "Matches"
	SheetBins    = "Bins"
)

// WorkbookExporter writes a report as an xlsx workbook with summary,
// match and per-bin sheets.
type WorkbookExporter struct{}

// NewWorkbookExporter creates a workbook exporter
func NewWorkbookExporter() *WorkbookExporter {
	return &WorkbookExporter{}
}

// Format names the export format
func (e *WorkbookExporter) Format() string { return "xlsx" }

// Export writes report to w
func (e *WorkbookExporter) Export(w io.Writer, report *run.Report) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetSummary); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if err := writeSummary(f, report); err != nil {
		return err
	}
	if _, err := f.NewSheet(SheetMatches); err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}
	if err := writeMatches(f, report); err != nil {
		return err
	}
	if report.Validation != nil {
		if _, err := f.NewSheet(SheetBins); err != nil {
			return fmt.Errorf("create sheet: %w", err)
		}
		if err := writeBins(f, report); err != nil {
			return err
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeSummary(f *excelize.File, report *run.Report) error {
	m := report.Manifest
	rows := [][]interface{}{
		{"run_id", m.RunID.String()},
		{"kind", string(m.Kind)},
		{"nside", m.NSide},
		{"map_hash", m.Fingerprint.MapHash.String()},
		{"config_hash", m.Fingerprint.ConfigHash.String()},
		{"seed", m.Fingerprint.Seed},
		{"code_version", m.Fingerprint.CodeVersion},
		{"mode", m.Fingerprint.Mode},
		{"created_at", m.CreatedAt.String()},
	}
	if o := report.Outcome; o != nil {
		d := o.Diagnostics
		rows = append(rows,
			[]interface{}{"matches", len(o.Matches)},
			[]interface{}{"grid_centers", d.GridCenters},
			[]interface{}{"invalid_patches", d.InvalidPatches},
			[]interface{}{"candidate_pairs", d.CandidatePairs},
			[]interface{}{"scored_pairs", d.ScoredPairs},
			[]interface{}{"degenerate_pairs", d.DegeneratePairs},
			[]interface{}{"ambiguous_matches", d.AmbiguousMatches},
		)
	}
	if v := report.Validation; v != nil {
		rows = append(rows,
			[]interface{}{"null_provider", m.Provider},
			[]interface{}{"status", string(v.Status)},
			[]interface{}{"ensemble_size", v.EnsembleSize},
			[]interface{}{"strong_matches", v.StrongCount},
			[]interface{}{"empirical_p", v.EmpiricalP},
			[]interface{}{"welch_p", v.PValue},
			[]interface{}{"t_statistic", v.TStatistic},
			[]interface{}{"effect_size", v.EffectSize},
			[]interface{}{"null_match_mean", v.NullMatchCounts.Mean},
			[]interface{}{"null_match_p95", v.NullMatchCounts.Percentile95},
		)
		for _, w := range v.Warnings {
			rows = append(rows, []interface{}{"warning", string(w.Code) + ": " + w.Message})
		}
	}
	return writeRows(f, SheetSummary, rows)
}

func writeMatches(f *excelize.File, report *run.Report) error {
	rows := [][]interface{}{{
		"a_theta_deg", "a_phi_deg", "b_theta_deg", "b_phi_deg",
		"bin_deg", "separation_deg", "deviation_deg", "score", "ambiguous",
	}}
	if report.Outcome != nil {
		for _, m := range report.Outcome.Matches {
			rows = append(rows, []interface{}{
				sky.Degrees(m.A.Theta), sky.Degrees(m.A.Phi),
				sky.Degrees(m.B.Theta), sky.Degrees(m.B.Phi),
				m.Bin, m.Separation, m.Deviation, m.Score, m.Ambiguous,
			})
		}
	}
	return writeRows(f, SheetMatches, rows)
}

func writeBins(f *excelize.File, report *run.Report) error {
	rows := [][]interface{}{{
		"bin_deg", "match_count", "strong_count", "max_score", "mean_score", "null_mean_count", "empirical_p",
	}}
	for _, b := range report.Validation.Bins {
		rows = append(rows, []interface{}{
			b.Bin, b.MatchCount, b.StrongCount, b.MaxScore, b.MeanScore, b.NullMean, b.EmpiricalP,
		})
	}
	return writeRows(f, SheetBins, rows)
}

func writeRows(f *excelize.File, sheet string, rows [][]interface{}) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}
