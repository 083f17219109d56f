package synthetic

import (
	"context"

	"gonum.org/v1/gonum/stat"

	"loopscan/domain/core"
	"loopscan/domain/sky"
	"loopscan/ports"
)

// NoiseProvider draws Gaussian maps matching the mean and spread of a
// reference map. Masked pixels stay masked.
type NoiseProvider struct {
	nside  int
	valid  []bool
	mean   float64
	stdDev float64
	rng    ports.RNGPort
}

// NewNoiseProvider creates a provider calibrated to ref.
func NewNoiseProvider(ref *sky.SkyMap, rng ports.RNGPort) (*NoiseProvider, error) {
	if err := ref.Validate(); err != nil {
		return nil, err
	}
	samples := ref.ValidSamples()
	if len(samples) < 2 {
		return nil, core.NewMapError("reference map needs at least two valid pixels")
	}
	mean, sd := stat.MeanStdDev(samples, nil)
	if sd == 0 {
		sd = 1
	}
	return &NoiseProvider{
		nside:  ref.NSide,
		valid:  append([]bool(nil), ref.Valid...),
		mean:   mean,
		stdDev: sd,
		rng:    rng,
	}, nil
}

// NewUnitNoiseProvider creates a provider of standard-normal maps with
// no mask.
func NewUnitNoiseProvider(nside int, rng ports.RNGPort) (*NoiseProvider, error) {
	if !sky.ValidNSide(nside) {
		return nil, core.NewMapError("nside out of range")
	}
	valid := make([]bool, sky.NPix(nside))
	for i := range valid {
		valid[i] = true
	}
	return &NoiseProvider{nside: nside, valid: valid, stdDev: 1, rng: rng}, nil
}

// Name identifies the provider in run manifests.
func (p *NoiseProvider) Name() string { return "noise" }

// Generate draws one map. Equal seeds give equal maps.
func (p *NoiseProvider) Generate(ctx context.Context, seed int64) (*sky.SkyMap, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r := p.rng.SeededStream("noise", seed)
	samples := make([]float64, len(p.valid))
	for i := range samples {
		v := r.NormFloat64()*p.stdDev + p.mean
		if p.valid[i] {
			samples[i] = v
		}
	}
	return &sky.SkyMap{
		NSide:   p.nside,
		Samples: samples,
		Valid:   append([]bool(nil), p.valid...),
	}, nil
}
