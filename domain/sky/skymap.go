package sky

import (
	"fmt"
	"math"

	"loopscan/domain/core"
)

// SkyMap is a scalar field sampled on a RING-ordered pixelization.
// Valid[i] is false for masked pixels; their samples carry no meaning.
type SkyMap struct {
	NSide   int       `json:"nside"`
	Samples []float64 `json:"samples"`
	Valid   []bool    `json:"valid"`
}

// NewSkyMap builds and validates a map. A nil valid slice marks every
// pixel valid.
func NewSkyMap(nside int, samples []float64, valid []bool) (*SkyMap, error) {
	if valid == nil {
		valid = make([]bool, len(samples))
		for i := range valid {
			valid[i] = true
		}
	}
	m := &SkyMap{NSide: nside, Samples: samples, Valid: valid}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// Validate checks structural consistency of the map.
func (m *SkyMap) Validate() error {
	if m == nil {
		return core.NewMapError("map is nil")
	}
	if !ValidNSide(m.NSide) {
		return core.NewMapError(fmt.Sprintf("nside %d outside [1, %d]", m.NSide, MaxNSide))
	}
	npix := NPix(m.NSide)
	if len(m.Samples) != npix {
		return core.NewMapError(fmt.Sprintf("expected %d samples for nside %d, got %d", npix, m.NSide, len(m.Samples)))
	}
	if len(m.Valid) != npix {
		return core.NewMapError(fmt.Sprintf("mask length %d does not match %d pixels", len(m.Valid), npix))
	}
	valid := 0
	for i, v := range m.Samples {
		if !m.Valid[i] {
			continue
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return core.NewMapError(fmt.Sprintf("pixel %d holds a non-finite sample", i))
		}
		valid++
	}
	if valid == 0 {
		return core.NewMapError("mask excludes every pixel")
	}
	return nil
}

// NPix returns the number of pixels.
func (m *SkyMap) NPix() int { return len(m.Samples) }

// Pixel returns the pixel containing d.
func (m *SkyMap) Pixel(d Direction) int {
	return Ang2Pix(m.NSide, d.Theta, d.Phi)
}

// IsValid reports whether the pixel containing d is unmasked.
func (m *SkyMap) IsValid(d Direction) bool {
	return m.Valid[m.Pixel(d)]
}

// ValidCount returns the number of unmasked pixels.
func (m *SkyMap) ValidCount() int {
	n := 0
	for _, v := range m.Valid {
		if v {
			n++
		}
	}
	return n
}

// ValidSamples returns the unmasked samples in pixel order.
func (m *SkyMap) ValidSamples() []float64 {
	out := make([]float64, 0, len(m.Samples))
	for i, v := range m.Samples {
		if m.Valid[i] {
			out = append(out, v)
		}
	}
	return out
}

// Clone returns a deep copy.
func (m *SkyMap) Clone() *SkyMap {
	return &SkyMap{
		NSide:   m.NSide,
		Samples: append([]float64(nil), m.Samples...),
		Valid:   append([]bool(nil), m.Valid...),
	}
}

// Fingerprint hashes resolution, samples and mask. Masked samples are
// hashed as zero so their contents never affect run identity.
func (m *SkyMap) Fingerprint() core.Hash {
	h := core.NewHasher().String("skymap").Int(int64(m.NSide))
	h.Bools(m.Valid)
	h.Int(int64(len(m.Samples)))
	for i, v := range m.Samples {
		if !m.Valid[i] {
			v = 0
		}
		h.Float(v)
	}
	return h.Sum()
}
