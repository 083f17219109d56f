package sampler

import (
	"fmt"
	"math"

	"loopscan/domain/core"
	"loopscan/domain/sky"
)

// DefaultMinCoverage is the valid-position fraction below which a patch
// is excluded from scoring.
const DefaultMinCoverage = 0.9

// Sampler extracts fixed-layout patches around sky directions.
type Sampler struct {
	minCoverage float64
	cache       *PatternCache
}

// New creates a sampler sharing the process-wide pattern cache.
func New(minCoverage float64) (*Sampler, error) {
	return NewWithCache(minCoverage, sharedPatterns)
}

// NewWithCache creates a sampler over an explicit pattern cache.
func NewWithCache(minCoverage float64, cache *PatternCache) (*Sampler, error) {
	if math.IsNaN(minCoverage) || minCoverage <= 0 || minCoverage > 1 {
		return nil, core.NewConfigError("min_coverage", "must be in (0, 1]")
	}
	return &Sampler{minCoverage: minCoverage, cache: cache}, nil
}

// Pattern returns the sampling layout for radius on a map of the given
// resolution.
func (s *Sampler) Pattern(radius float64, nside int) (*Pattern, error) {
	if err := checkRadius(radius); err != nil {
		return nil, err
	}
	if !sky.ValidNSide(nside) {
		return nil, core.NewMapError(fmt.Sprintf("nside %d outside [1, %d]", nside, sky.MaxNSide))
	}
	return s.cache.Get(radius, nside), nil
}

// Extract samples the map at every pattern position around center.
// Positions landing on masked pixels carry a zero sample and a false
// mask entry; the patch is marked invalid when coverage falls below the
// minimum. Extraction of an invalid patch is not an error.
func (s *Sampler) Extract(m *sky.SkyMap, center sky.Direction, radius float64) (sky.Patch, error) {
	pattern, err := s.Pattern(radius, m.NSide)
	if err != nil {
		return sky.Patch{}, err
	}
	return s.extract(m, center, pattern), nil
}

func (s *Sampler) extract(m *sky.SkyMap, center sky.Direction, pattern *Pattern) sky.Patch {
	n := pattern.Len()
	patch := sky.Patch{
		Center:  center,
		Radius:  pattern.Radius,
		Samples: make([]float64, n),
		Mask:    make([]bool, n),
	}
	valid := 0
	for i, off := range pattern.Offsets {
		pix := m.Pixel(center.Offset(off.Rho, off.Alpha))
		if !m.Valid[pix] {
			continue
		}
		patch.Samples[i] = m.Samples[pix]
		patch.Mask[i] = true
		valid++
	}
	patch.Coverage = float64(valid) / float64(n)
	patch.Valid = patch.Coverage >= s.minCoverage
	return patch
}

// Pixels returns the pixel under each pattern position around center,
// in pattern order.
func (s *Sampler) Pixels(nside int, center sky.Direction, radius float64) ([]int, error) {
	pattern, err := s.Pattern(radius, nside)
	if err != nil {
		return nil, err
	}
	out := make([]int, pattern.Len())
	for i, off := range pattern.Offsets {
		d := center.Offset(off.Rho, off.Alpha)
		out[i] = sky.Ang2Pix(nside, d.Theta, d.Phi)
	}
	return out, nil
}

func checkRadius(radius float64) error {
	if math.IsNaN(radius) || radius <= 0 || radius >= math.Pi/2 {
		return core.NewConfigError("patch_radius", "must be in (0, 90) degrees")
	}
	return nil
}
