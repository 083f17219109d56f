package echo

import (
	"loopscan/domain/sky"
)

// CandidatePair is a grid pair whose directed separation falls within
// tolerance of one target. IndexA and IndexB address the scan grid.
type CandidatePair struct {
	A          sky.Direction
	B          sky.Direction
	IndexA     int
	IndexB     int
	Target     float64 // degrees
	Separation float64 // degrees, directed, in [0, 360)
}

// ScoredPair is a candidate with its correlation score.
type ScoredPair struct {
	CandidatePair
	Score float64
}

// PairKey identifies an unordered pair of directions.
type PairKey struct {
	Lo sky.Direction
	Hi sky.Direction
}

// KeyOf returns the canonical key for a pair, independent of order.
func KeyOf(a, b sky.Direction) PairKey {
	lo, hi := sky.Canonical(a, b)
	return PairKey{Lo: lo, Hi: hi}
}

// Less orders keys by Lo then Hi.
func (k PairKey) Less(o PairKey) bool {
	if k.Lo != o.Lo {
		return k.Lo.Less(o.Lo)
	}
	return k.Hi.Less(o.Hi)
}
