package validation

import (
	"fmt"

	"gonum.org/v1/gonum/floats"

	"loopscan/adapters/stats/significance"
	"loopscan/domain/echo"
	"loopscan/domain/verdict"
)

// Significance cut-offs on the empirical p-value.
const (
	significantP = 0.01
	marginalP    = 0.05
)

// Validator compares observed detections with a null ensemble.
type Validator struct {
	targets         []float64
	precision       float64
	strongThreshold float64
}

// NewValidator creates a validator over the given bins. precision is
// the p-value resolution the caller needs; ensembles too small to
// resolve it draw a warning.
func NewValidator(targets []float64, precision, strongThreshold float64) *Validator {
	return &Validator{
		targets:         append([]float64(nil), targets...),
		precision:       precision,
		strongThreshold: strongThreshold,
	}
}

// Validate scores observed against nulls. It never fails: missing or
// degenerate inputs are reported through warnings and neutral values.
func (v *Validator) Validate(observed *echo.ScanOutcome, nulls []*echo.ScanOutcome) verdict.ValidationResult {
	res := verdict.ValidationResult{
		RunID:        observed.RunID,
		EnsembleSize: len(nulls),
		MatchCount:   len(observed.Matches),
		PValue:       1,
		EmpiricalP:   1,
		Diagnostics:  observed.Diagnostics,
	}

	if len(observed.Matches) > 0 {
		scores := make([]float64, len(observed.Matches))
		for i, m := range observed.Matches {
			scores[i] = m.Score
		}
		res.MaxScore = floats.Max(scores)
		res.MeanScore = floats.Sum(scores) / float64(len(scores))
	}

	// per-bin observed statistics
	for _, bin := range v.targets {
		br := verdict.BinResult{Bin: bin, EmpiricalP: 1}
		var scores []float64
		for _, m := range observed.Matches {
			if m.Bin != bin {
				continue
			}
			scores = append(scores, m.Score)
			if m.Score > v.strongThreshold {
				br.StrongCount++
			}
		}
		br.MatchCount = len(scores)
		if len(scores) > 0 {
			br.MaxScore = floats.Max(scores)
			br.MeanScore = floats.Sum(scores) / float64(len(scores))
		}
		res.StrongCount += br.StrongCount
		res.Bins = append(res.Bins, br)
	}

	if len(nulls) == 0 {
		res.Status = verdict.StatusNoData
		res.Warnings = append(res.Warnings, verdict.PrecisionWarning{
			Code:    verdict.WarnNoNullEnsemble,
			Message: "no null maps were scanned; p-values are not informative",
		})
		return res
	}

	// null match counts, overall and per bin
	counts := make([]float64, len(nulls))
	maxScores := make([]float64, 0, len(nulls))
	var pooled []float64
	for i, n := range nulls {
		counts[i] = float64(len(n.Matches))
		if len(n.Scores) > 0 {
			maxScores = append(maxScores, floats.Max(n.Scores))
		}
		pooled = append(pooled, n.Scores...)
	}
	res.EmpiricalP = significance.EmpiricalPValue(float64(res.MatchCount), counts)
	res.NullMatchCounts = significance.Summarize(counts)
	res.NullMaxScores = significance.Summarize(maxScores)

	for bi := range res.Bins {
		br := &res.Bins[bi]
		binCounts := make([]float64, len(nulls))
		for i, n := range nulls {
			binCounts[i] = float64(len(n.MatchesInBin(br.Bin)))
		}
		br.EmpiricalP = significance.EmpiricalPValue(float64(br.MatchCount), binCounts)
		br.NullMean = floats.Sum(binCounts) / float64(len(binCounts))
	}

	// effect size and Welch test over all scored pairs
	welch, err := significance.WelchTTest(observed.Scores, pooled)
	if err != nil {
		res.Warnings = append(res.Warnings, verdict.PrecisionWarning{
			Code:    verdict.WarnInsufficientScore,
			Message: err.Error(),
		})
	} else {
		res.EffectSize = welch.CohensD
		res.TStatistic = welch.TStatistic
		res.DegreesOfFreedom = welch.DegreesOfFreedom
		res.PValue = welch.PValue
	}

	resolution := 1 / float64(len(nulls))
	if resolution > v.precision {
		res.Warnings = append(res.Warnings, verdict.PrecisionWarning{
			Code: verdict.WarnPValueResolution,
			Message: fmt.Sprintf("ensemble of %d resolves p-values to %.4g, coarser than the requested %.4g",
				len(nulls), resolution, v.precision),
		})
	}
	if res.EmpiricalP == 0 {
		res.Warnings = append(res.Warnings, verdict.PrecisionWarning{
			Code:    verdict.WarnPValueFloor,
			Message: fmt.Sprintf("no null run reached the observed count; true p is below %.4g", resolution),
		})
	}

	switch {
	case res.EmpiricalP <= significantP:
		res.Status = verdict.StatusSignificant
	case res.EmpiricalP <= marginalP:
		res.Status = verdict.StatusMarginal
	default:
		res.Status = verdict.StatusInsignificant
	}
	return res
}
