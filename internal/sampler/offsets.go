package sampler

import (
	"math"
	"sync"

	"loopscan/domain/sky"
)

// Offset is one sampling position relative to a patch center: angular
// distance Rho and position angle Alpha from local north, in radians.
type Offset struct {
	Rho   float64
	Alpha float64
}

// Pattern is the fixed sampling layout for one (radius, nside). It is
// the center followed by J concentric rings at radius j·R/J, ring j
// holding 6j evenly spaced azimuths. J is chosen so ring spacing does
// not exceed the pixel size.
type Pattern struct {
	Radius  float64
	NSide   int
	Rings   int
	Offsets []Offset
}

// Len returns the number of sampling positions.
func (p *Pattern) Len() int { return len(p.Offsets) }

func buildPattern(radius float64, nside int) *Pattern {
	rings := int(math.Ceil(radius / sky.PixelResolution(nside)))
	if rings < 1 {
		rings = 1
	}
	offsets := make([]Offset, 0, 1+3*rings*(rings+1))
	offsets = append(offsets, Offset{})
	for j := 1; j <= rings; j++ {
		rho := float64(j) * radius / float64(rings)
		k := 6 * j
		for i := 0; i < k; i++ {
			offsets = append(offsets, Offset{
				Rho:   rho,
				Alpha: (float64(i) + 0.5) * 2 * math.Pi / float64(k),
			})
		}
	}
	return &Pattern{Radius: radius, NSide: nside, Rings: rings, Offsets: offsets}
}

type patternKey struct {
	radius float64
	nside  int
}

// PatternCache memoizes patterns per (radius, nside). Entries are
// written once and never mutated, so concurrent readers share them.
type PatternCache struct {
	mu       sync.RWMutex
	patterns map[patternKey]*Pattern
}

func NewPatternCache() *PatternCache {
	return &PatternCache{patterns: make(map[patternKey]*Pattern)}
}

// Get returns the cached pattern, building it on first use.
func (c *PatternCache) Get(radius float64, nside int) *Pattern {
	key := patternKey{radius: radius, nside: nside}

	c.mu.RLock()
	p, ok := c.patterns[key]
	c.mu.RUnlock()
	if ok {
		return p
	}

	built := buildPattern(radius, nside)

	c.mu.Lock()
	defer c.mu.Unlock()
	if p, ok := c.patterns[key]; ok {
		return p
	}
	c.patterns[key] = built
	return built
}

// Len returns the number of cached patterns.
func (c *PatternCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.patterns)
}

var sharedPatterns = NewPatternCache()
