package sampler

import (
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loopscan/domain/core"
	"loopscan/domain/sky"
)

func pixelCenter(nside, p int) sky.Direction {
	theta, phi := sky.Pix2Ang(nside, p)
	return sky.Direction{Theta: theta, Phi: phi}
}

func allValid(nside int, samples []float64) *sky.SkyMap {
	m, err := sky.NewSkyMap(nside, samples, nil)
	if err != nil {
		panic(err)
	}
	return m
}

func TestPatternLayout(t *testing.T) {
	tests := []struct {
		radiusDeg float64
		nside     int
		rings     int
	}{
		{58, 1, 1},
		{14, 8, 2},
		{10, 8, 2},
		{10, 32, 6},
	}
	for _, tt := range tests {
		p := buildPattern(sky.Radians(tt.radiusDeg), tt.nside)
		assert.Equal(t, tt.rings, p.Rings, "radius %v nside %d", tt.radiusDeg, tt.nside)
		assert.Equal(t, 1+3*tt.rings*(tt.rings+1), p.Len())
		assert.Equal(t, Offset{}, p.Offsets[0])
		assert.InDelta(t, sky.Radians(tt.radiusDeg), p.Offsets[p.Len()-1].Rho, 1e-12)
	}
}

func TestExtractNSide1(t *testing.T) {
	s, err := New(DefaultMinCoverage)
	require.NoError(t, err)
	radius := sky.Radians(58)

	// pixel lists for the two patches of the known-answer map
	px, err := s.Pixels(1, pixelCenter(1, 0), radius)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 5, 5, 4, 4, 3}, px)

	px, err = s.Pixels(1, pixelCenter(1, 10), radius)
	require.NoError(t, err)
	assert.Equal(t, []int{10, 7, 7, 11, 9, 6, 6}, px)

	m := allValid(1, []float64{1, 4, 2, 5, 5, 4, 5, 4, 6, 5, 1, 4})
	patch, err := s.Extract(m, pixelCenter(1, 0), radius)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 4, 4, 4, 5, 5, 5}, patch.Samples)
	assert.True(t, patch.Valid)
	assert.Equal(t, 1.0, patch.Coverage)
}

func TestExtractStableUnderJitter(t *testing.T) {
	s, err := New(DefaultMinCoverage)
	require.NoError(t, err)
	radius := sky.Radians(58)
	for p := 0; p < sky.NPix(1); p++ {
		c := pixelCenter(1, p)
		base, err := s.Pixels(1, c, radius)
		require.NoError(t, err)
		for _, eps := range []float64{-1e-9, 1e-9} {
			jittered := sky.Direction{Theta: c.Theta + eps, Phi: c.Phi + eps}
			got, err := s.Pixels(1, jittered, radius)
			require.NoError(t, err)
			assert.Equal(t, base, got, "pixel %d eps %v", p, eps)
		}
	}
}

func TestPatchesAreComparable(t *testing.T) {
	s, err := New(DefaultMinCoverage)
	require.NoError(t, err)

	nside := 8
	samples := make([]float64, sky.NPix(nside))
	valid := make([]bool, len(samples))
	for i := range samples {
		samples[i] = float64(i % 7)
		valid[i] = i%5 != 0
	}
	m, err := sky.NewSkyMap(nside, samples, valid)
	require.NoError(t, err)

	radius := sky.Radians(10)
	want := -1
	for _, p := range []int{0, 100, 383, 500, 767} {
		patch, err := s.Extract(m, pixelCenter(nside, p), radius)
		require.NoError(t, err)
		if want < 0 {
			want = patch.Len()
		}
		assert.Equal(t, want, patch.Len(), "every patch shares the layout")
		assert.Len(t, patch.Mask, want)
		for i, ok := range patch.Mask {
			if !ok {
				assert.Zero(t, patch.Samples[i])
			}
		}
	}
}

func TestCoverageThreshold(t *testing.T) {
	samples := []float64{1, 4, 2, 5, 5, 4, 5, 4, 6, 5, 1, 4}
	valid := make([]bool, 12)
	for i := range valid {
		valid[i] = i != 5
	}
	m, err := sky.NewSkyMap(1, samples, valid)
	require.NoError(t, err)

	strict, err := New(0.9)
	require.NoError(t, err)
	patch, err := strict.Extract(m, pixelCenter(1, 0), sky.Radians(58))
	require.NoError(t, err)
	assert.InDelta(t, 5.0/7.0, patch.Coverage, 1e-12)
	assert.False(t, patch.Valid)
	assert.Equal(t, 5, patch.ValidPositions())

	loose, err := New(0.5)
	require.NoError(t, err)
	patch, err = loose.Extract(m, pixelCenter(1, 0), sky.Radians(58))
	require.NoError(t, err)
	assert.True(t, patch.Valid)
}

func TestRadiusValidation(t *testing.T) {
	s, err := New(DefaultMinCoverage)
	require.NoError(t, err)
	m := allValid(1, make([]float64, 12))

	for _, r := range []float64{0, -0.1, math.Pi / 2, math.NaN()} {
		_, err := s.Extract(m, pixelCenter(1, 0), r)
		assert.True(t, core.IsInputError(err), "radius %v", r)
	}

	_, err = New(0)
	assert.True(t, core.IsInputError(err))
}

func TestPatternCacheConcurrent(t *testing.T) {
	cache := NewPatternCache()
	var wg sync.WaitGroup
	results := make([]*Pattern, 32)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = cache.Get(sky.Radians(10), 16)
		}(i)
	}
	wg.Wait()

	for _, p := range results {
		assert.Same(t, results[0], p)
	}
	assert.Equal(t, 1, cache.Len())
}
