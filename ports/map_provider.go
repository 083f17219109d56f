package ports

import (
	"context"

	"loopscan/domain/sky"
)

// MapProvider generates maps for the null ensemble or for known-answer
// tests. Generate must be deterministic in seed and safe for concurrent
// use.
type MapProvider interface {
	Name() string
	Generate(ctx context.Context, seed int64) (*sky.SkyMap, error)
}
