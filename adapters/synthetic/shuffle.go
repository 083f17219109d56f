package synthetic

import (
	"context"

	"loopscan/domain/core"
	"loopscan/domain/sky"
	"loopscan/ports"
)

// ShuffleProvider permutes the valid samples of a reference map. The
// value distribution is preserved exactly while spatial structure is
// destroyed.
type ShuffleProvider struct {
	ref     *sky.SkyMap
	indices []int
	rng     ports.RNGPort
}

// NewShuffleProvider creates a provider over ref.
func NewShuffleProvider(ref *sky.SkyMap, rng ports.RNGPort) (*ShuffleProvider, error) {
	if err := ref.Validate(); err != nil {
		return nil, err
	}
	var indices []int
	for i, ok := range ref.Valid {
		if ok {
			indices = append(indices, i)
		}
	}
	if len(indices) < 2 {
		return nil, core.NewMapError("reference map needs at least two valid pixels")
	}
	return &ShuffleProvider{ref: ref.Clone(), indices: indices, rng: rng}, nil
}

// Name identifies the provider in run manifests.
func (p *ShuffleProvider) Name() string { return "shuffle" }

// Generate returns one permutation of the reference map.
func (p *ShuffleProvider) Generate(ctx context.Context, seed int64) (*sky.SkyMap, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r := p.rng.SeededStream("shuffle", seed)
	values := make([]float64, len(p.indices))
	for i, idx := range p.indices {
		values[i] = p.ref.Samples[idx]
	}
	r.Shuffle(len(values), func(i, j int) { values[i], values[j] = values[j], values[i] })

	out := p.ref.Clone()
	for i, idx := range p.indices {
		out.Samples[idx] = values[i]
	}
	return out, nil
}
