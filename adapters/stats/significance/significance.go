package significance

import (
	"fmt"
	"math"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"loopscan/domain/core"
	"loopscan/domain/verdict"
)

// WelchResult is the outcome of a two-sample Welch t-test.
type WelchResult struct {
	TStatistic       float64
	DegreesOfFreedom float64
	PValue           float64 // two-sided
	CohensD          float64 // pooled standard deviation
	MeanA            float64
	MeanB            float64
	NA               int
	NB               int
}

// WelchTTest compares the means of a and b without assuming equal
// variances. It fails when either sample has fewer than two values or
// both are constant.
func WelchTTest(a, b []float64) (WelchResult, error) {
	n1, n2 := float64(len(a)), float64(len(b))
	if len(a) < 2 || len(b) < 2 {
		return WelchResult{}, fmt.Errorf("%w: welch t-test needs two values per group, got %d and %d",
			core.ErrInsufficientData, len(a), len(b))
	}

	mean1, var1 := stat.MeanVariance(a, nil)
	mean2, var2 := stat.MeanVariance(b, nil)

	// t = (mean1 - mean2) / sqrt(var1/n1 + var2/n2)
	se := math.Sqrt(var1/n1 + var2/n2)
	if se == 0 || math.IsNaN(se) {
		return WelchResult{}, fmt.Errorf("%w: both groups are constant", core.ErrInsufficientData)
	}
	t := (mean1 - mean2) / se

	// Welch-Satterthwaite
	df := math.Pow(var1/n1+var2/n2, 2) / (math.Pow(var1/n1, 2)/(n1-1) + math.Pow(var2/n2, 2)/(n2-1))

	tDist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}
	p := 2 * tDist.Survival(math.Abs(t))
	p = math.Max(0, math.Min(1, p))

	return WelchResult{
		TStatistic:       t,
		DegreesOfFreedom: df,
		PValue:           p,
		CohensD:          cohensD(mean1, var1, n1, mean2, var2, n2),
		MeanA:            mean1,
		MeanB:            mean2,
		NA:               len(a),
		NB:               len(b),
	}, nil
}

// cohensD is the standardized mean difference using the pooled
// standard deviation, or 0 when it is undefined.
func cohensD(mean1, var1, n1, mean2, var2, n2 float64) float64 {
	pooledSD := math.Sqrt(((n1-1)*var1 + (n2-1)*var2) / (n1 + n2 - 2))
	if pooledSD == 0 || math.IsNaN(pooledSD) {
		return 0
	}
	return (mean1 - mean2) / pooledSD
}

// EmpiricalPValue is the fraction of null statistics at least as large
// as the observed one. An empty null yields 1.
func EmpiricalPValue(observed float64, null []float64) float64 {
	if len(null) == 0 {
		return 1.0
	}
	extreme := 0
	for _, v := range null {
		if v >= observed {
			extreme++
		}
	}
	return float64(extreme) / float64(len(null))
}

// Summarize reduces a null distribution to its key statistics. An empty
// input yields the zero summary.
func Summarize(values []float64) verdict.NullDistributionSummary {
	if len(values) == 0 {
		return verdict.NullDistributionSummary{}
	}
	data := stats.Float64Data(values)
	mean, _ := data.Mean()
	sd, _ := data.StandardDeviation()
	lo, _ := data.Min()
	hi, _ := data.Max()
	p95, err := data.Percentile(95)
	if err != nil {
		p95 = hi
	}
	p99, err := data.Percentile(99)
	if err != nil {
		p99 = hi
	}
	return verdict.NullDistributionSummary{
		Mean:         mean,
		StdDev:       sd,
		Min:          lo,
		Max:          hi,
		Percentile95: p95,
		Percentile99: p99,
	}
}

// MatchProbability is the chance that Pearson r over n independent
// gaussian samples exceeds threshold. The scan pipeline does not call
// it; it gives the expected match rate of a noise map, against which
// null ensembles and threshold choices are calibrated.
func MatchProbability(threshold float64, n int) float64 {
	if n < 3 {
		return 0
	}
	if threshold >= 1 {
		return 0
	}
	if threshold <= -1 {
		return 1
	}
	df := float64(n - 2)
	t := threshold * math.Sqrt(df/(1-threshold*threshold))
	return distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}.Survival(t)
}
