package synthetic

import (
	"context"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat"

	"loopscan/adapters/rng"
	"loopscan/adapters/stats/correlation"
	"loopscan/domain/core"
	"loopscan/domain/sky"
	"loopscan/internal/sampler"
	"loopscan/ports"
)

var (
	_ ports.MapProvider = (*NoiseProvider)(nil)
	_ ports.MapProvider = (*ShuffleProvider)(nil)
	_ ports.MapProvider = (*EchoProvider)(nil)
)

func maskedReference(t *testing.T) *sky.SkyMap {
	t.Helper()
	n := sky.NPix(4)
	samples := make([]float64, n)
	valid := make([]bool, n)
	for i := range samples {
		samples[i] = float64(i%17) - 3
		valid[i] = i%5 != 0
	}
	m, err := sky.NewSkyMap(4, samples, valid)
	require.NoError(t, err)
	return m
}

func TestNoiseProviderDeterministic(t *testing.T) {
	ctx := context.Background()
	p, err := NewNoiseProvider(maskedReference(t), rng.New())
	require.NoError(t, err)

	a, err := p.Generate(ctx, 3)
	require.NoError(t, err)
	b, err := p.Generate(ctx, 3)
	require.NoError(t, err)
	c, err := p.Generate(ctx, 4)
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a.Samples, c.Samples)
	assert.Equal(t, "noise", p.Name())
}

func TestNoiseProviderKeepsMask(t *testing.T) {
	ref := maskedReference(t)
	p, err := NewNoiseProvider(ref, rng.New())
	require.NoError(t, err)

	m, err := p.Generate(context.Background(), 1)
	require.NoError(t, err)
	require.NoError(t, m.Validate())
	assert.Equal(t, ref.Valid, m.Valid)
	assert.Equal(t, ref.NSide, m.NSide)
	for i, ok := range m.Valid {
		if !ok {
			assert.Zero(t, m.Samples[i])
		}
	}
}

func TestUnitNoiseMoments(t *testing.T) {
	p, err := NewUnitNoiseProvider(32, rng.New())
	require.NoError(t, err)
	m, err := p.Generate(context.Background(), 9)
	require.NoError(t, err)

	mean, sd := stat.MeanStdDev(m.Samples, nil)
	assert.InDelta(t, 0, mean, 0.05)
	assert.InDelta(t, 1, sd, 0.05)
}

func TestNoiseProviderRejectsFlatReference(t *testing.T) {
	m, err := sky.NewSkyMap(1, make([]float64, 12), []bool{true, false, false, false, false, false, false, false, false, false, false, false})
	require.NoError(t, err)
	_, err = NewNoiseProvider(m, rng.New())
	assert.True(t, core.IsInputError(err))
}

func TestShuffleProviderPreservesValues(t *testing.T) {
	ref := maskedReference(t)
	p, err := NewShuffleProvider(ref, rng.New())
	require.NoError(t, err)

	m, err := p.Generate(context.Background(), 11)
	require.NoError(t, err)
	assert.Equal(t, ref.Valid, m.Valid)

	want := ref.ValidSamples()
	got := m.ValidSamples()
	assert.NotEqual(t, want, got, "samples should move")
	sort.Float64s(want)
	sort.Float64s(got)
	assert.Equal(t, want, got)

	again, err := p.Generate(context.Background(), 11)
	require.NoError(t, err)
	assert.Equal(t, m, again)
}

func TestShuffleProviderCancelled(t *testing.T) {
	p, err := NewShuffleProvider(maskedReference(t), rng.New())
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = p.Generate(ctx, 1)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEchoProviderPlantsCorrelatedPairs(t *testing.T) {
	cfg := EchoConfig{
		NSide:         16,
		GridNSide:     4,
		RadiusDeg:     10,
		Pairs:         3,
		Strength:      3,
		SeparationDeg: 180,
		ToleranceDeg:  2,
	}
	p, err := NewEchoProvider(cfg, rng.New())
	require.NoError(t, err)

	m, planted, err := p.GenerateWithTruth(context.Background(), 42)
	require.NoError(t, err)
	require.Len(t, planted, 3)

	s, err := sampler.New(sampler.DefaultMinCoverage)
	require.NoError(t, err)
	engine, err := correlation.NewEngine(0.3, false)
	require.NoError(t, err)

	for _, pp := range planted {
		assert.InDelta(t, 180, pp.Separation, 2)
		a, err := s.Extract(m, pp.A, sky.Radians(cfg.RadiusDeg))
		require.NoError(t, err)
		b, err := s.Extract(m, pp.B, sky.Radians(cfg.RadiusDeg))
		require.NoError(t, err)
		r, err := engine.Score(a, b)
		require.NoError(t, err)
		assert.Greater(t, r, 0.3, "planted pair %v / %v", pp.A, pp.B)
	}

	// footprints stay apart
	for i := range planted {
		for j := i + 1; j < len(planted); j++ {
			assert.GreaterOrEqual(t, sky.AngularDistance(planted[i].A, planted[j].A), sky.Radians(20))
		}
	}
}

func TestEchoProviderZeroPairsIsNoise(t *testing.T) {
	cfg := DefaultEchoConfig()
	cfg.NSide = 8
	cfg.GridNSide = 4
	cfg.Pairs = 0
	p, err := NewEchoProvider(cfg, rng.New())
	require.NoError(t, err)
	noise, err := NewUnitNoiseProvider(8, rng.New())
	require.NoError(t, err)

	got, planted, err := p.GenerateWithTruth(context.Background(), 5)
	require.NoError(t, err)
	assert.Empty(t, planted)
	want, err := noise.Generate(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestEchoConfigValidation(t *testing.T) {
	tests := []struct {
		name  string
		apply func(*EchoConfig)
	}{
		{"negative pairs", func(c *EchoConfig) { c.Pairs = -1 }},
		{"negative strength", func(c *EchoConfig) { c.Strength = -1 }},
		{"zero tolerance", func(c *EchoConfig) { c.ToleranceDeg = 0 }},
		{"separation out of range", func(c *EchoConfig) { c.SeparationDeg = 360 }},
		{"bad grid", func(c *EchoConfig) { c.GridNSide = 0 }},
		{"bad nside", func(c *EchoConfig) { c.NSide = 0 }},
		{"bad radius", func(c *EchoConfig) { c.RadiusDeg = 95 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultEchoConfig()
			tt.apply(&cfg)
			_, err := NewEchoProvider(cfg, rng.New())
			assert.True(t, core.IsInputError(err), "got %v", err)
		})
	}
}
