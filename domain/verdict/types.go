package verdict

import (
	"loopscan/domain/core"
	"loopscan/domain/echo"
)

// Status summarizes whether the observed match count stands out
// against the null ensemble.
type Status string

const (
	StatusSignificant   Status = "significant"
	StatusMarginal      Status = "marginal"
	StatusInsignificant Status = "insignificant"
	StatusNoData        Status = "no_data"
)

// WarningCode classifies a ValidationResult warning.
type WarningCode string

const (
	WarnPValueResolution  WarningCode = "p_value_resolution"
	WarnPValueFloor       WarningCode = "p_value_floor"
	WarnNoNullEnsemble    WarningCode = "no_null_ensemble"
	WarnInsufficientScore WarningCode = "insufficient_scores"
)

// PrecisionWarning flags a limitation of a reported p-value.
type PrecisionWarning struct {
	Code    WarningCode `json:"code"`
	Message string      `json:"message"`
}

// BinResult holds per-bin counts and scores for observed data.
type BinResult struct {
	Bin         float64 `json:"bin_deg"`
	MatchCount  int     `json:"match_count"`
	MaxScore    float64 `json:"max_score"`
	MeanScore   float64 `json:"mean_score"`
	NullMean    float64 `json:"null_mean_count"`
	EmpiricalP  float64 `json:"empirical_p"`
	StrongCount int     `json:"strong_count"`
}

// NullDistributionSummary provides key statistics about the null distribution
type NullDistributionSummary struct {
	Mean         float64 `json:"mean"`
	StdDev       float64 `json:"std_dev"`
	Min          float64 `json:"min"`
	Max          float64 `json:"max"`
	Percentile95 float64 `json:"p95"`
	Percentile99 float64 `json:"p99"`
}

// ValidationResult compares observed detections with a null ensemble.
type ValidationResult struct {
	RunID        core.RunID  `json:"run_id"`
	Status       Status      `json:"status"`
	EnsembleSize int         `json:"ensemble_size"`
	MatchCount   int         `json:"match_count"`
	StrongCount  int         `json:"strong_count"`
	MaxScore     float64     `json:"max_score"`
	MeanScore    float64     `json:"mean_score"`
	Bins         []BinResult `json:"bins"`

	// Diagnostics of the observed scan.
	Diagnostics echo.Diagnostics `json:"diagnostics"`

	// Effect size and Welch t-test of observed pair scores against
	// pooled null pair scores.
	EffectSize       float64 `json:"effect_size"`
	TStatistic       float64 `json:"t_statistic"`
	DegreesOfFreedom float64 `json:"degrees_of_freedom"`
	PValue           float64 `json:"p_value"`

	// Fraction of null runs with at least as many matches as observed.
	EmpiricalP float64 `json:"empirical_p"`

	NullMatchCounts NullDistributionSummary `json:"null_match_counts"`
	NullMaxScores   NullDistributionSummary `json:"null_max_scores"`

	Warnings []PrecisionWarning `json:"warnings,omitempty"`
}

// HasWarning reports whether a warning with code is present.
func (r ValidationResult) HasWarning(code WarningCode) bool {
	for _, w := range r.Warnings {
		if w.Code == code {
			return true
		}
	}
	return false
}

// Bin returns the result for one bin.
func (r ValidationResult) Bin(bin float64) (BinResult, bool) {
	for _, b := range r.Bins {
		if b.Bin == bin {
			return b, true
		}
	}
	return BinResult{}, false
}
