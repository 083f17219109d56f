package aggregate

import (
	"sort"

	"loopscan/domain/core"
	"loopscan/domain/echo"
)

// Matcher decides whether a score is a match.
type Matcher interface {
	IsMatch(score float64) bool
}

// Aggregator deduplicates scored pairs, bins them by separation and
// keeps those that clear the match threshold.
type Aggregator struct {
	targets   []float64
	tolerance float64
	matcher   Matcher
}

// Result is the deduplicated, sorted outcome of one scan.
type Result struct {
	Matches    []echo.EchoMatch
	Pairs      []echo.ScoredPair // unique pairs in canonical key order
	Duplicates int
	Ambiguous  int
}

// New creates an aggregator for the given bins.
func New(targets []float64, tolerance float64, matcher Matcher) *Aggregator {
	return &Aggregator{
		targets:   append([]float64(nil), targets...),
		tolerance: tolerance,
		matcher:   matcher,
	}
}

// Collect reduces scored pairs to matches. The output is independent of
// input order: each unordered pair is kept once and everything is
// sorted by canonical key.
func (a *Aggregator) Collect(runID core.RunID, pairs []echo.ScoredPair) Result {
	var res Result

	type entry struct {
		key  echo.PairKey
		pair echo.ScoredPair
	}
	seen := make(map[echo.PairKey]int, len(pairs))
	unique := make([]entry, 0, len(pairs))
	for _, p := range pairs {
		key := echo.KeyOf(p.A, p.B)
		if _, dup := seen[key]; dup {
			res.Duplicates++
			continue
		}
		seen[key] = len(unique)
		if p.A != key.Lo {
			p.A, p.B = p.B, p.A
			p.IndexA, p.IndexB = p.IndexB, p.IndexA
		}
		unique = append(unique, entry{key: key, pair: p})
	}
	sort.Slice(unique, func(i, j int) bool { return unique[i].key.Less(unique[j].key) })

	res.Pairs = make([]echo.ScoredPair, len(unique))
	for i, e := range unique {
		res.Pairs[i] = e.pair
	}

	for _, p := range res.Pairs {
		if !a.matcher.IsMatch(p.Score) {
			continue
		}
		bin, ok := echo.AssignBin(p.Separation, a.targets, a.tolerance)
		if !ok {
			continue
		}
		if bin.Ambiguous {
			res.Ambiguous++
		}
		res.Matches = append(res.Matches, echo.EchoMatch{
			RunID:      runID,
			A:          p.A,
			B:          p.B,
			Bin:        bin.Bin,
			Separation: p.Separation,
			Deviation:  bin.Deviation,
			Score:      p.Score,
			Ambiguous:  bin.Ambiguous,
		})
	}
	return res
}

// Scores returns the score of every unique pair in canonical order.
func (r Result) Scores() []float64 {
	out := make([]float64, len(r.Pairs))
	for i, p := range r.Pairs {
		out[i] = p.Score
	}
	return out
}
