package echo

import (
	"math"
	"sort"
)

// CircularDiff returns the shortest distance between two angles in
// degrees, in [0, 180].
func CircularDiff(a, b float64) float64 {
	d := math.Mod(math.Abs(a-b), 360)
	if d > 180 {
		d = 360 - d
	}
	return d
}

// Assignment is the outcome of binning one separation.
type Assignment struct {
	Bin       float64
	Deviation float64
	Ambiguous bool
}

// AssignBin places a separation into the nearest target within tol.
// An exact tie between two targets resolves to the first in caller
// order and marks the assignment ambiguous. ok is false when no target
// is within tolerance.
func AssignBin(separation float64, targets []float64, tol float64) (a Assignment, ok bool) {
	best := math.Inf(1)
	for _, t := range targets {
		d := CircularDiff(separation, t)
		if d > tol {
			continue
		}
		switch {
		case d < best:
			best = d
			a = Assignment{Bin: t, Deviation: d}
			ok = true
		case d == best:
			a.Ambiguous = true
		}
	}
	return a, ok
}

// MinTargetGap returns the smallest circular gap between distinct
// targets, or 360 when fewer than two are given.
func MinTargetGap(targets []float64) float64 {
	if len(targets) < 2 {
		return 360
	}
	sorted := append([]float64(nil), targets...)
	sort.Float64s(sorted)
	gap := 360 - sorted[len(sorted)-1] + sorted[0]
	for i := 1; i < len(sorted); i++ {
		if d := sorted[i] - sorted[i-1]; d < gap {
			gap = d
		}
	}
	return gap
}

// FoldedRange returns the range of great-circle distances, in degrees,
// whose directed separation can lie within tol of target.
func FoldedRange(target, tol float64) (lo, hi float64) {
	lo, hi = math.Inf(1), 0
	fold := func(s float64) float64 {
		s = math.Mod(s, 360)
		if s < 0 {
			s += 360
		}
		return math.Min(s, 360-s)
	}
	for _, s := range []float64{target - tol, target, target + tol} {
		f := fold(s)
		lo = math.Min(lo, f)
		hi = math.Max(hi, f)
	}
	// the window may straddle 0 or 180
	if CircularDiff(target, 0) <= tol {
		lo = 0
	}
	if CircularDiff(target, 180) <= tol {
		hi = 180
	}
	return lo, hi
}
