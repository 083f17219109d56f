package rng

import (
	"hash/fnv"
	"math/rand"
)

// SeededRNG derives independent deterministic streams from a base seed.
type SeededRNG struct{}

// New creates a seeded RNG adapter.
func New() *SeededRNG {
	return &SeededRNG{}
}

// SeededStream creates a deterministic random number generator for a named operation
func (r *SeededRNG) SeededStream(name string, seed int64) *rand.Rand {
	return r.Stream(name, "", seed)
}

// Stream creates a deterministic RNG stream for one member of a stage
func (r *SeededRNG) Stream(stageName, key string, baseSeed int64) *rand.Rand {
	return rand.New(rand.NewSource(r.Seed(stageName, key, baseSeed)))
}

// Seed mixes stage, key and base seed into a stream seed. Distinct keys
// give unrelated streams even for adjacent base seeds.
func (r *SeededRNG) Seed(stageName, key string, baseSeed int64) int64 {
	h := fnv.New64a()
	h.Write([]byte(stageName))
	h.Write([]byte{0})
	h.Write([]byte(key))
	return int64(mix(h.Sum64() ^ uint64(baseSeed)))
}

// mix is the splitmix64 finalizer.
func mix(z uint64) uint64 {
	z += 0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}
