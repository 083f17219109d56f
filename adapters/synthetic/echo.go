package synthetic

import (
	"context"
	"fmt"

	"loopscan/domain/core"
	"loopscan/domain/sky"
	"loopscan/internal/grid"
	"loopscan/internal/sampler"
	"loopscan/internal/separation"
	"loopscan/ports"
)

// EchoConfig controls planted-echo maps.
type EchoConfig struct {
	NSide         int     `json:"nside"`
	GridNSide     int     `json:"grid_nside"`
	RadiusDeg     float64 `json:"radius_deg"`
	Pairs         int     `json:"pairs"`
	Strength      float64 `json:"strength"`
	SeparationDeg float64 `json:"separation_deg"`
	ToleranceDeg  float64 `json:"tolerance_deg"`
}

// DefaultEchoConfig returns the settings used by the synthetic command.
func DefaultEchoConfig() EchoConfig {
	return EchoConfig{
		NSide:         32,
		GridNSide:     8,
		RadiusDeg:     10,
		Pairs:         5,
		Strength:      3,
		SeparationDeg: 180,
		ToleranceDeg:  2,
	}
}

// PlantedPair records where one echo was written.
type PlantedPair struct {
	A          sky.Direction `json:"a"`
	B          sky.Direction `json:"b"`
	Separation float64       `json:"separation_deg"`
}

// EchoProvider draws unit noise maps and copies a boosted motif from one
// grid center onto a partner at the configured separation.
type EchoProvider struct {
	cfg     EchoConfig
	noise   *NoiseProvider
	sampler *sampler.Sampler
	rng     ports.RNGPort
}

const maxPlantAttempts = 1000

// NewEchoProvider validates cfg and creates the provider.
func NewEchoProvider(cfg EchoConfig, rng ports.RNGPort) (*EchoProvider, error) {
	switch {
	case cfg.Pairs < 0:
		return nil, core.NewConfigError("pairs", "must be non-negative")
	case cfg.Strength < 0:
		return nil, core.NewConfigError("strength", "must be non-negative")
	case cfg.ToleranceDeg <= 0:
		return nil, core.NewConfigError("tolerance_deg", "must be positive")
	case cfg.SeparationDeg < 0 || cfg.SeparationDeg >= 360:
		return nil, core.NewConfigError("separation_deg", "must be in [0, 360)")
	case !sky.ValidNSide(cfg.GridNSide):
		return nil, core.NewConfigError("grid_nside", "out of range")
	}
	noise, err := NewUnitNoiseProvider(cfg.NSide, rng)
	if err != nil {
		return nil, err
	}
	s, err := sampler.New(sampler.DefaultMinCoverage)
	if err != nil {
		return nil, err
	}
	if _, err := s.Pattern(sky.Radians(cfg.RadiusDeg), cfg.NSide); err != nil {
		return nil, err
	}
	return &EchoProvider{cfg: cfg, noise: noise, sampler: s, rng: rng}, nil
}

// Name identifies the provider in run manifests.
func (p *EchoProvider) Name() string { return "echo" }

// Generate draws a map with planted echoes.
func (p *EchoProvider) Generate(ctx context.Context, seed int64) (*sky.SkyMap, error) {
	m, _, err := p.GenerateWithTruth(ctx, seed)
	return m, err
}

// GenerateWithTruth draws a map and returns the planted pairs. Planted
// footprints never overlap; fewer pairs than requested are planted when
// the grid runs out of room.
func (p *EchoProvider) GenerateWithTruth(ctx context.Context, seed int64) (*sky.SkyMap, []PlantedPair, error) {
	m, err := p.noise.Generate(ctx, seed)
	if err != nil {
		return nil, nil, err
	}
	g, err := grid.Generate(m, p.cfg.GridNSide)
	if err != nil {
		return nil, nil, err
	}
	if g.Len() == 0 {
		return m, nil, nil
	}

	r := p.rng.SeededStream("echo", seed)
	radius := sky.Radians(p.cfg.RadiusDeg)
	exclusion := 2 * radius
	var planted []PlantedPair
	var used []sky.Direction

	overlaps := func(d sky.Direction) bool {
		for _, u := range used {
			if sky.AngularDistance(d, u) < exclusion {
				return true
			}
		}
		return false
	}

	for attempt := 0; attempt < maxPlantAttempts && len(planted) < p.cfg.Pairs; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		i := r.Intn(g.Len())
		partners := separation.FindFrom(g, i, p.cfg.SeparationDeg, p.cfg.ToleranceDeg)
		if len(partners) == 0 {
			continue
		}
		pair := partners[r.Intn(len(partners))]
		if overlaps(pair.A) || overlaps(pair.B) || sky.AngularDistance(pair.A, pair.B) < exclusion {
			continue
		}
		if err := p.plant(m, pair.A, pair.B, radius, r.NormFloat64); err != nil {
			return nil, nil, err
		}
		used = append(used, pair.A, pair.B)
		planted = append(planted, PlantedPair{A: pair.A, B: pair.B, Separation: pair.Separation})
	}
	return m, planted, nil
}

// plant boosts the footprint around a and writes it position by
// position onto the footprint around b.
func (p *EchoProvider) plant(m *sky.SkyMap, a, b sky.Direction, radius float64, draw func() float64) error {
	pa, err := p.sampler.Pixels(m.NSide, a, radius)
	if err != nil {
		return fmt.Errorf("source footprint: %w", err)
	}
	pb, err := p.sampler.Pixels(m.NSide, b, radius)
	if err != nil {
		return fmt.Errorf("echo footprint: %w", err)
	}
	boosted := make(map[int]bool, len(pa))
	for _, pix := range pa {
		if boosted[pix] {
			continue
		}
		m.Samples[pix] += p.cfg.Strength * draw()
		boosted[pix] = true
	}
	for k, pix := range pb {
		m.Samples[pix] = m.Samples[pa[k]]
	}
	return nil
}
