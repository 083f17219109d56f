package app

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loopscan/adapters/stats/significance"
	"loopscan/adapters/synthetic"
	"loopscan/domain/core"
	"loopscan/domain/run"
	"loopscan/domain/sky"
	"loopscan/internal/config"
	"loopscan/internal/testkit"
)

func newScan(t *testing.T, cfg config.ScanConfig) *ScanService {
	t.Helper()
	s, err := NewScanService(cfg, nil)
	require.NoError(t, err)
	return s
}

func TestScanFindsAntipodalEcho(t *testing.T) {
	s := newScan(t, testkit.PairScanConfig())
	out, err := s.Scan(context.Background(), testkit.PairMap())
	require.NoError(t, err)

	require.Len(t, out.Matches, 1)
	m := out.Matches[0]
	assert.InDelta(t, 1.0, m.Score, 1e-9)
	assert.InDelta(t, 180, m.Separation, 1e-6)
	assert.Equal(t, 180.0, m.Bin)

	th0, ph0 := sky.Pix2Ang(1, 0)
	th10, ph10 := sky.Pix2Ang(1, 10)
	lo, hi := sky.Canonical(sky.Direction{Theta: th0, Phi: ph0}, sky.Direction{Theta: th10, Phi: ph10})
	assert.Equal(t, lo, m.A)
	assert.Equal(t, hi, m.B)

	assert.Equal(t, 12, out.Diagnostics.GridCenters)
	assert.Equal(t, 6, out.Diagnostics.CandidatePairs, "each of the six antipodal pairs once")
	assert.Equal(t, s.Fingerprint(testkit.PairMap(), run.ModeScan).RunID(), out.RunID)
}

func TestScanNoiseLikeMapHasNoStrictMatches(t *testing.T) {
	cfg := testkit.PairScanConfig()
	cfg.Threshold = 0.99
	out, err := newScan(t, cfg).Scan(context.Background(), testkit.NoiseLikeMap())
	require.NoError(t, err)
	assert.Empty(t, out.Matches)
	assert.NotNil(t, out.Matches, "an empty scan encodes as []")
	assert.NotEmpty(t, out.Scores)
}

func TestNewScanServiceRejectsWideTolerance(t *testing.T) {
	cfg := config.DefaultScan()
	cfg.ToleranceDeg = 45
	_, err := NewScanService(cfg, nil)
	require.Error(t, err)
	assert.True(t, core.IsInputError(err))
}

func TestScanRejectsInvalidMap(t *testing.T) {
	s := newScan(t, testkit.PairScanConfig())
	_, err := s.Scan(context.Background(), &sky.SkyMap{NSide: 1, Samples: make([]float64, 5), Valid: make([]bool, 5)})
	assert.True(t, core.IsInputError(err))
}

func TestScanDeterministicAcrossWorkers(t *testing.T) {
	m := testkit.NoiseMap(8, 3)
	cfg := config.DefaultScan()
	cfg.GridNSide = 4
	cfg.Threshold = 0.3

	var encoded [][]byte
	for _, workers := range []int{1, 3, 8} {
		cfg.Workers = workers
		out, err := newScan(t, cfg).Scan(context.Background(), m)
		require.NoError(t, err)
		b, err := json.Marshal(out)
		require.NoError(t, err)
		encoded = append(encoded, b)
	}
	assert.Equal(t, string(encoded[0]), string(encoded[1]))
	assert.Equal(t, string(encoded[0]), string(encoded[2]))
}

func TestScanCountsMaskedPatches(t *testing.T) {
	m := testkit.MaskedNoiseMap(8, 5, 20)
	cfg := config.DefaultScan()
	cfg.GridNSide = 4
	out, err := newScan(t, cfg).Scan(context.Background(), m)
	require.NoError(t, err)

	d := out.Diagnostics
	assert.Greater(t, d.InvalidPatches, 0, "centers near the cut lose coverage")
	assert.Greater(t, d.SkippedInvalidPairs, 0)
	assert.Equal(t, d.CandidatePairs, d.ScoredPairs+d.SkippedInvalidPairs+d.DegeneratePairs)
	for _, match := range out.Matches {
		assert.True(t, m.IsValid(match.A))
		assert.True(t, m.IsValid(match.B))
	}
}

func TestScanCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newScan(t, config.DefaultScan()).Scan(ctx, testkit.NoiseMap(8, 1))
	assert.ErrorIs(t, err, context.Canceled)
}

// Noise maps match at roughly the rate Pearson r over independent
// samples exceeds the threshold. Overlapping patches share pixels, so
// the band is loose.
func TestScanNullCalibration(t *testing.T) {
	cfg := config.DefaultScan()
	cfg.PatchRadiusDeg = 14
	cfg.GridNSide = 4
	cfg.Threshold = 0.5
	s := newScan(t, cfg)

	pattern, err := s.sampler.Pattern(cfg.PatchRadius(), 8)
	require.NoError(t, err)
	want := significance.MatchProbability(cfg.Threshold, pattern.Len())

	matches, pairs := 0, 0
	for seed := int64(1); seed <= 3; seed++ {
		out, err := s.Scan(context.Background(), testkit.NoiseMap(8, seed))
		require.NoError(t, err)
		matches += len(out.Matches)
		pairs += out.Diagnostics.ScoredPairs
	}
	require.Greater(t, pairs, 0)
	rate := float64(matches) / float64(pairs)
	assert.GreaterOrEqual(t, rate, 0.5*want)
	assert.LessOrEqual(t, rate, 3*want)
}

func TestScanDetectsPlantedEchoes(t *testing.T) {
	gen, err := synthetic.NewEchoProvider(synthetic.EchoConfig{
		NSide:         16,
		GridNSide:     4,
		RadiusDeg:     10,
		Pairs:         3,
		Strength:      3,
		SeparationDeg: 180,
		ToleranceDeg:  2,
	}, testkit.NewTestKit().RNGAdapter())
	require.NoError(t, err)
	m, planted, err := gen.GenerateWithTruth(context.Background(), 42)
	require.NoError(t, err)
	require.Len(t, planted, 3)

	cfg := config.DefaultScan()
	cfg.GridNSide = 4
	cfg.Threshold = 0.3
	out, err := newScan(t, cfg).Scan(context.Background(), m)
	require.NoError(t, err)

	found := 0
	for _, p := range planted {
		lo, hi := sky.Canonical(p.A, p.B)
		for _, match := range out.Matches {
			if match.A == lo && match.B == hi {
				found++
				assert.Equal(t, 180.0, match.Bin)
				break
			}
		}
	}
	assert.Equal(t, len(planted), found)
}
