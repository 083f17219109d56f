package ports

import (
	"math/rand"
)

// RNGPort provides seeded random number generation for deterministic operations
type RNGPort interface {
	// SeededStream creates a deterministic random number generator for a named operation
	SeededStream(name string, seed int64) *rand.Rand

	// Stream creates a deterministic RNG stream for one member of a named stage.
	// The same (stage, key, seed) always yields the same sequence.
	Stream(stageName, key string, baseSeed int64) *rand.Rand

	// Seed derives the seed Stream would use.
	Seed(stageName, key string, baseSeed int64) int64
}
