package aggregate

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loopscan/domain/core"
	"loopscan/domain/echo"
	"loopscan/domain/sky"
)

type thresholdMatcher float64

func (t thresholdMatcher) IsMatch(score float64) bool { return score > float64(t) }

func scored(a, b sky.Direction, score float64) echo.ScoredPair {
	return echo.ScoredPair{
		CandidatePair: echo.CandidatePair{
			A:          a,
			B:          b,
			Separation: sky.DirectedSeparation(a, b),
		},
		Score: score,
	}
}

func TestCollectDeduplicatesReversedPairs(t *testing.T) {
	agg := New([]float64{90, 180, 270}, 5, thresholdMatcher(0.2))
	a := sky.Direction{Theta: 1.5707963267948966, Phi: 0}
	b := sky.Direction{Theta: 1.5707963267948966, Phi: 1.5707963267948966}

	res := agg.Collect("run", []echo.ScoredPair{scored(a, b, 0.8), scored(b, a, 0.8)})
	require.Len(t, res.Matches, 1)
	assert.Equal(t, 1, res.Duplicates)
	assert.Equal(t, a, res.Matches[0].A, "matches are stored in canonical order")
	assert.Equal(t, 90.0, res.Matches[0].Bin)
	assert.Equal(t, core.RunID("run"), res.Matches[0].RunID)
}

func TestCollectOrderIndependent(t *testing.T) {
	agg := New([]float64{90, 180, 270}, 5, thresholdMatcher(0.2))

	var pairs []echo.ScoredPair
	for p := 0; p < sky.NPix(2); p++ {
		for q := p + 1; q < sky.NPix(2); q++ {
			th1, ph1 := sky.Pix2Ang(2, p)
			th2, ph2 := sky.Pix2Ang(2, q)
			a := sky.Direction{Theta: th1, Phi: ph1}
			b := sky.Direction{Theta: th2, Phi: ph2}
			if _, ok := echo.AssignBin(sky.DirectedSeparation(a, b), []float64{90, 180, 270}, 5); !ok {
				continue
			}
			pairs = append(pairs, scored(a, b, float64((p*7+q*3)%10)/10))
		}
	}
	require.NotEmpty(t, pairs)
	want := agg.Collect("run", pairs)

	rng := rand.New(rand.NewSource(7))
	for trial := 0; trial < 5; trial++ {
		shuffled := append([]echo.ScoredPair(nil), pairs...)
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
		// reversing half the pairs must not matter either
		for i := range shuffled {
			if i%2 == 0 {
				shuffled[i].A, shuffled[i].B = shuffled[i].B, shuffled[i].A
			}
		}
		got := agg.Collect("run", shuffled)
		assert.Equal(t, want.Matches, got.Matches)
		assert.Equal(t, want.Scores(), got.Scores())
	}

	for i := 1; i < len(want.Matches); i++ {
		assert.True(t, want.Matches[i-1].Key().Less(want.Matches[i].Key()))
	}
}

func TestCollectThresholdAndBins(t *testing.T) {
	agg := New([]float64{90, 180, 270}, 5, thresholdMatcher(0.2))
	a := sky.Direction{Theta: 1.5707963267948966, Phi: 0}
	b := sky.Direction{Theta: 1.5707963267948966, Phi: 1.5707963267948966}
	c := sky.Direction{Theta: 1.5707963267948966, Phi: 4.71238898038469}
	d := sky.Direction{Theta: 1.5707963267948966, Phi: 0.7853981633974483}

	res := agg.Collect("run", []echo.ScoredPair{
		scored(a, b, 0.9),  // 90
		scored(a, c, 0.5),  // 270
		scored(b, c, 0.1),  // 180, below threshold
		scored(a, d, 0.99), // 45, outside every bin
	})
	require.Len(t, res.Matches, 2)
	bins := map[float64]int{}
	for _, m := range res.Matches {
		bins[m.Bin]++
	}
	assert.Equal(t, map[float64]int{90: 1, 270: 1}, bins)
	assert.Len(t, res.Pairs, 4, "every unique scored pair is kept for the score distribution")
}

func TestCollectAmbiguous(t *testing.T) {
	// separation 135 sits exactly between bins 90 and 180
	agg := New([]float64{90, 180}, 45, thresholdMatcher(0))
	a := sky.Direction{Theta: 1.5707963267948966, Phi: 0}
	b := sky.Direction{Theta: 1.5707963267948966, Phi: 2.356194490192345}

	pair := scored(a, b, 0.7)
	pair.Separation = 135
	res := agg.Collect("run", []echo.ScoredPair{pair})
	require.Len(t, res.Matches, 1)
	assert.True(t, res.Matches[0].Ambiguous)
	assert.Equal(t, 1, res.Ambiguous)
}
