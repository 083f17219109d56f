package echo

import (
	"loopscan/domain/core"
	"loopscan/domain/sky"
)

// EchoMatch is a deduplicated, binned pair whose score cleared the
// match threshold. A and B are in canonical order.
type EchoMatch struct {
	RunID      core.RunID    `json:"run_id"`
	A          sky.Direction `json:"a"`
	B          sky.Direction `json:"b"`
	Bin        float64       `json:"bin_deg"`
	Separation float64       `json:"separation_deg"`
	Deviation  float64       `json:"deviation_deg"`
	Score      float64       `json:"score"`
	Ambiguous  bool          `json:"ambiguous,omitempty"`
}

// Key returns the canonical pair key.
func (m EchoMatch) Key() PairKey {
	return PairKey{Lo: m.A, Hi: m.B}
}

// Diagnostics counts patches and pairs excluded from scoring plus
// bookkeeping from aggregation.
type Diagnostics struct {
	GridCenters         int `json:"grid_centers"`
	InvalidPatches      int `json:"invalid_patches"`
	CandidatePairs      int `json:"candidate_pairs"`
	ScoredPairs         int `json:"scored_pairs"`
	SkippedInvalidPairs int `json:"skipped_invalid_pairs"`
	DegeneratePairs     int `json:"degenerate_pairs"`
	DuplicatePairs      int `json:"duplicate_pairs"`
	AmbiguousMatches    int `json:"ambiguous_matches"`
}

// ScanOutcome is the full result of one detection pass over one map.
type ScanOutcome struct {
	RunID       core.RunID  `json:"run_id"`
	Matches     []EchoMatch `json:"matches"`
	Diagnostics Diagnostics `json:"diagnostics"`

	// Scores holds the score of every unique scored pair in canonical
	// key order, matched or not.
	Scores []float64    `json:"-"`
	Pairs  []ScoredPair `json:"-"`
}

// MatchesInBin returns the matches assigned to bin.
func (o *ScanOutcome) MatchesInBin(bin float64) []EchoMatch {
	var out []EchoMatch
	for _, m := range o.Matches {
		if m.Bin == bin {
			out = append(out, m)
		}
	}
	return out
}
