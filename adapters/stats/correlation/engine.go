package correlation

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"loopscan/domain/core"
	"loopscan/domain/sky"
)

// DefaultThreshold is the match threshold on Pearson r.
const DefaultThreshold = 0.2

// minJointPositions is the fewest jointly valid positions for which r
// is reported.
const minJointPositions = 3

// Engine scores patch pairs by Pearson correlation.
type Engine struct {
	threshold float64
	absolute  bool
}

// NewEngine creates an engine. In absolute mode a pair matches when
// |r| >= threshold, otherwise when r > threshold.
func NewEngine(threshold float64, absolute bool) (*Engine, error) {
	if math.IsNaN(threshold) || threshold < -1 || threshold > 1 {
		return nil, core.NewConfigError("threshold", "must be in [-1, 1]")
	}
	return &Engine{threshold: threshold, absolute: absolute}, nil
}

// Name returns the engine name
func (e *Engine) Name() string {
	return "pearson"
}

// Threshold returns the match threshold.
func (e *Engine) Threshold() float64 { return e.threshold }

// Score returns Pearson r over positions valid in both patches.
func (e *Engine) Score(a, b sky.Patch) (float64, error) {
	if a.Len() != b.Len() {
		return 0, fmt.Errorf("%w: %d vs %d", core.ErrPatchMismatch, a.Len(), b.Len())
	}
	x, y := joint(a, b)
	return Pearson(x, y)
}

// IsMatch applies the threshold to a score.
func (e *Engine) IsMatch(score float64) bool {
	if e.absolute {
		return math.Abs(score) >= e.threshold
	}
	return score > e.threshold
}

// Pearson computes the correlation of two equal-length samples, clamped
// to [-1, 1]. Constant input on either side is degenerate.
func Pearson(x, y []float64) (float64, error) {
	if len(x) != len(y) {
		return 0, fmt.Errorf("%w: %d vs %d", core.ErrPatchMismatch, len(x), len(y))
	}
	if len(x) < minJointPositions {
		return 0, fmt.Errorf("%w: %d jointly valid positions", core.ErrDegenerateCorrelation, len(x))
	}
	if floats.Max(x) == floats.Min(x) || floats.Max(y) == floats.Min(y) {
		return 0, core.ErrDegenerateCorrelation
	}
	r := stat.Correlation(x, y, nil)
	if math.IsNaN(r) {
		return 0, core.ErrDegenerateCorrelation
	}
	return math.Max(-1, math.Min(1, r)), nil
}

// joint returns the samples at positions valid in both patches, sharing
// the input slices when nothing is masked.
func joint(a, b sky.Patch) (x, y []float64) {
	full := true
	for i := range a.Mask {
		if !a.Mask[i] || !b.Mask[i] {
			full = false
			break
		}
	}
	if full {
		return a.Samples, b.Samples
	}
	x = make([]float64, 0, len(a.Samples))
	y = make([]float64, 0, len(b.Samples))
	for i := range a.Samples {
		if a.Mask[i] && b.Mask[i] {
			x = append(x, a.Samples[i])
			y = append(y, b.Samples[i])
		}
	}
	return x, y
}
