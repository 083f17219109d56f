package run

import (
	"encoding/json"

	"loopscan/domain/echo"
	"loopscan/domain/verdict"
)

// Report bundles one observed run: its manifest, the configuration it
// ran under, the detection outcome and, when a null ensemble was run,
// the validation verdict.
type Report struct {
	Manifest   RunManifest               `json:"manifest"`
	Config     json.RawMessage           `json:"config"`
	Outcome    *echo.ScanOutcome         `json:"outcome"`
	Validation *verdict.ValidationResult `json:"validation,omitempty"`
}

// RunSummary is the listing view of a stored report.
type RunSummary struct {
	Manifest   RunManifest    `json:"manifest"`
	MatchCount int            `json:"match_count"`
	Status     verdict.Status `json:"status,omitempty"`
	EmpiricalP *float64       `json:"empirical_p,omitempty"`
}

// Summary returns the listing view of r.
func (r *Report) Summary() RunSummary {
	s := RunSummary{Manifest: r.Manifest}
	if r.Outcome != nil {
		s.MatchCount = len(r.Outcome.Matches)
	}
	if r.Validation != nil {
		p := r.Validation.EmpiricalP
		s.Status = r.Validation.Status
		s.EmpiricalP = &p
	}
	return s
}
