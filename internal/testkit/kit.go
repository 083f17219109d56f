package testkit

import (
	"context"
	"math/rand"
	"sort"
	"sync"

	"loopscan/adapters/rng"
	"loopscan/domain/core"
	"loopscan/domain/echo"
	"loopscan/domain/run"
	"loopscan/domain/sky"
	"loopscan/internal/config"
	"loopscan/ports"
)

// TestKit provides testing utilities and fixtures
type TestKit struct {
	rng  *rng.SeededRNG
	repo *InMemoryResultRepository
}

// NewTestKit creates a new test kit instance
func NewTestKit() *TestKit {
	return &TestKit{rng: rng.New(), repo: NewInMemoryResultRepository()}
}

// RNGAdapter returns the seeded RNG adapter
func (tk *TestKit) RNGAdapter() ports.RNGPort {
	return tk.rng
}

// Repository returns the shared in-memory result store
func (tk *TestKit) Repository() *InMemoryResultRepository {
	return tk.repo
}

// PairMap is a 12-pixel map whose patches around pixel 0 and its
// antipode, pixel 10, hold identical values while other antipodal
// pairs are weakly or anti-correlated.
func PairMap() *sky.SkyMap {
	return mustMap(1, []float64{1, 4, 2, 5, 5, 4, 5, 4, 6, 5, 1, 4})
}

// NoiseLikeMap is a 12-pixel map with no pair correlated above 0.99.
func NoiseLikeMap() *sky.SkyMap {
	return mustMap(1, []float64{0.37, -1.21, 0.88, 2.05, -0.46, 1.33, -0.91, 0.12, -1.74, 0.65, 1.02, -0.28})
}

// NoiseMap returns standard normal samples on every pixel.
func NoiseMap(nside int, seed int64) *sky.SkyMap {
	r := rand.New(rand.NewSource(seed))
	samples := make([]float64, sky.NPix(nside))
	for i := range samples {
		samples[i] = r.NormFloat64()
	}
	return mustMap(nside, samples)
}

// MaskedNoiseMap is NoiseMap with a band of pixels near the equator
// masked, the way a galactic-plane cut is.
func MaskedNoiseMap(nside int, seed int64, halfWidthDeg float64) *sky.SkyMap {
	m := NoiseMap(nside, seed)
	for i := range m.Valid {
		theta, _ := sky.Pix2Ang(nside, i)
		if abs(sky.Degrees(theta)-90) < halfWidthDeg {
			m.Valid[i] = false
			m.Samples[i] = 0
		}
	}
	return m
}

// PairScanConfig returns the configuration that finds the antipodal
// echo in PairMap.
func PairScanConfig() config.ScanConfig {
	cfg := config.DefaultScan()
	cfg.PatchRadiusDeg = 58
	cfg.GridNSide = 1
	cfg.TargetsDeg = []float64{180}
	cfg.ToleranceDeg = 5
	cfg.Threshold = 0.2
	cfg.Workers = 2
	cfg.EnsembleSize = 20
	return cfg
}

func mustMap(nside int, samples []float64) *sky.SkyMap {
	m, err := sky.NewSkyMap(nside, samples, nil)
	if err != nil {
		panic(err)
	}
	return m
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// InMemoryResultRepository implements ResultRepository with in-memory storage
type InMemoryResultRepository struct {
	reports map[core.RunID]*run.Report
	order   []core.RunID
	mu      sync.RWMutex
}

func NewInMemoryResultRepository() *InMemoryResultRepository {
	return &InMemoryResultRepository{reports: make(map[core.RunID]*run.Report)}
}

func (s *InMemoryResultRepository) SaveReport(ctx context.Context, report *run.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := report.Manifest.RunID
	if _, exists := s.reports[id]; !exists {
		s.order = append(s.order, id)
	}
	s.reports[id] = report
	return nil
}

func (s *InMemoryResultRepository) GetReport(ctx context.Context, runID core.RunID) (*run.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	report, ok := s.reports[runID]
	if !ok {
		return nil, core.NewNotFoundError("run", runID.String())
	}
	return report, nil
}

func (s *InMemoryResultRepository) ListRuns(ctx context.Context, limit int) ([]run.RunSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []run.RunSummary
	for i := len(s.order) - 1; i >= 0; i-- {
		if limit > 0 && len(out) >= limit {
			break
		}
		out = append(out, s.reports[s.order[i]].Summary())
	}
	return out, nil
}

func (s *InMemoryResultRepository) ListMatches(ctx context.Context, runID core.RunID, filters ports.MatchFilters) ([]echo.EchoMatch, error) {
	report, err := s.GetReport(ctx, runID)
	if err != nil {
		return nil, err
	}

	var out []echo.EchoMatch
	for _, m := range report.Outcome.Matches {
		if filters.Bin != nil && m.Bin != *filters.Bin {
			continue
		}
		if filters.MinScore != nil && m.Score < *filters.MinScore {
			continue
		}
		out = append(out, m)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Key().Less(out[j].Key()) })
	if filters.Limit > 0 && len(out) > filters.Limit {
		out = out[:filters.Limit]
	}
	return out, nil
}
