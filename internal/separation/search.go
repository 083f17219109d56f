package separation

import (
	"loopscan/domain/echo"
	"loopscan/domain/sky"
	"loopscan/internal/grid"
)

// Find returns every grid direction whose directed separation from
// center lies within tol degrees of target. The center itself is never
// a candidate. Candidates come back in grid order with IndexA set to -1;
// use FindFrom when the center is a grid member.
func Find(g *grid.Grid, center sky.Direction, target, tol float64) []echo.CandidatePair {
	return find(g, center, -1, target, tol)
}

// FindFrom searches from the grid center at index i.
func FindFrom(g *grid.Grid, i int, target, tol float64) []echo.CandidatePair {
	return find(g, g.At(i), i, target, tol)
}

// windowSlack widens the theta band past rounding in the distance.
const windowSlack = 1e-9

func find(g *grid.Grid, center sky.Direction, centerIdx int, target, tol float64) []echo.CandidatePair {
	// |Δθ| never exceeds the great-circle distance, so only centers in
	// the theta band around the largest reachable distance qualify.
	_, maxDist := echo.FoldedRange(target, tol)
	reach := sky.Radians(maxDist) + windowSlack
	lo, hi := g.ThetaWindow(center.Theta-reach, center.Theta+reach)

	var out []echo.CandidatePair
	for j := lo; j < hi; j++ {
		if j == centerIdx {
			continue
		}
		d := g.At(j)
		if d == center {
			continue
		}
		s := sky.DirectedSeparation(center, d)
		if echo.CircularDiff(s, target) > tol {
			continue
		}
		out = append(out, echo.CandidatePair{
			A:          center,
			B:          d,
			IndexA:     centerIdx,
			IndexB:     j,
			Target:     target,
			Separation: s,
		})
	}
	return out
}

// FindAll runs FindFrom for every target, in target order.
func FindAll(g *grid.Grid, i int, targets []float64, tol float64) []echo.CandidatePair {
	var out []echo.CandidatePair
	for _, t := range targets {
		out = append(out, FindFrom(g, i, t, tol)...)
	}
	return out
}
