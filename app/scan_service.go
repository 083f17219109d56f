package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"loopscan/adapters/stats/correlation"
	"loopscan/domain/core"
	"loopscan/domain/echo"
	"loopscan/domain/run"
	"loopscan/domain/sky"
	"loopscan/internal/aggregate"
	"loopscan/internal/config"
	"loopscan/internal/grid"
	"loopscan/internal/logging"
	"loopscan/internal/metrics"
	"loopscan/internal/sampler"
	"loopscan/internal/separation"
)

// CodeVersion is folded into every run fingerprint.
const CodeVersion = "loopscan/1"

// ScanService runs one detection pass: grid, separation search, patch
// extraction, correlation and aggregation.
type ScanService struct {
	cfg        config.ScanConfig
	sampler    *sampler.Sampler
	engine     *correlation.Engine
	aggregator *aggregate.Aggregator
	metrics    *metrics.Recorder
}

// NewScanService validates cfg and wires the detection pipeline. A
// nil recorder disables metrics.
func NewScanService(cfg config.ScanConfig, rec *metrics.Recorder) (*ScanService, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s, err := sampler.New(cfg.MinCoverage)
	if err != nil {
		return nil, err
	}
	engine, err := correlation.NewEngine(cfg.Threshold, cfg.AbsoluteMode)
	if err != nil {
		return nil, err
	}
	return &ScanService{
		cfg:        cfg,
		sampler:    s,
		engine:     engine,
		aggregator: aggregate.New(cfg.TargetsDeg, cfg.ToleranceDeg, engine),
		metrics:    rec,
	}, nil
}

// Config returns the validated scan configuration.
func (s *ScanService) Config() config.ScanConfig {
	return s.cfg
}

// Fingerprint derives the determinism fingerprint of processing m in
// mode (run.ModeScan or run.ValidateMode).
func (s *ScanService) Fingerprint(m *sky.SkyMap, mode string) run.RunFingerprint {
	return run.NewRunFingerprint(m.Fingerprint(), s.cfg.Hash(), s.cfg.Seed, CodeVersion).WithMode(mode)
}

// Scan runs the observed detection pass over m as a detection-only run.
func (s *ScanService) Scan(ctx context.Context, m *sky.SkyMap) (*echo.ScanOutcome, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return s.scan(ctx, m, s.Fingerprint(m, run.ModeScan).RunID(), s.cfg.Workers, "observed")
}

// ScanAs runs the observed detection pass over m under runID.
func (s *ScanService) ScanAs(ctx context.Context, m *sky.SkyMap, runID core.RunID) (*echo.ScanOutcome, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return s.scan(ctx, m, runID, s.cfg.Workers, "observed")
}

// ScanNull scans one null map serially. It is the ensemble scan
// function; the ensemble pool supplies the parallelism.
func (s *ScanService) ScanNull(ctx context.Context, m *sky.SkyMap, runID core.RunID) (*echo.ScanOutcome, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return s.scan(ctx, m, runID, 1, "null")
}

// centerResult is the stage-two output of one grid center.
type centerResult struct {
	pairs      []echo.ScoredPair
	candidates int
	skipped    int
	degenerate int
}

func (s *ScanService) scan(ctx context.Context, m *sky.SkyMap, runID core.RunID, workers int, kind string) (*echo.ScanOutcome, error) {
	log := logging.FromContext(ctx).With(zap.String("run_id", runID.String()), zap.String("kind", kind))
	start := time.Now()

	g, err := grid.Generate(m, s.cfg.GridNSide)
	if err != nil {
		return nil, err
	}
	radius := s.cfg.PatchRadius()
	pattern, err := s.sampler.Pattern(radius, m.NSide)
	if err != nil {
		return nil, err
	}
	log.Debug("scan started",
		zap.Int("grid_centers", g.Len()),
		zap.Int("patch_len", pattern.Len()),
		zap.Int("workers", workers))

	// stage 1: extract every grid patch
	patches := make([]sky.Patch, g.Len())
	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(workers)
	for i := 0; i < g.Len(); i++ {
		i := i
		eg.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			p, err := s.sampler.Extract(m, g.At(i), radius)
			if err != nil {
				return fmt.Errorf("extract patch %d: %w", i, err)
			}
			patches[i] = p
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	// stage 2: score each center against later partners. Directed
	// separation is symmetric in its arguments, so every unordered pair
	// is scored exactly once.
	results := make([]centerResult, g.Len())
	eg, gctx = errgroup.WithContext(ctx)
	eg.SetLimit(workers)
	for i := 0; i < g.Len(); i++ {
		i := i
		eg.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = s.scoreCenter(g, patches, i)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	invalid := 0
	for _, p := range patches {
		if !p.Valid {
			invalid++
		}
	}
	var merged []echo.ScoredPair
	diag := echo.Diagnostics{GridCenters: g.Len(), InvalidPatches: invalid}
	for _, r := range results {
		merged = append(merged, r.pairs...)
		diag.CandidatePairs += r.candidates
		diag.SkippedInvalidPairs += r.skipped
		diag.DegeneratePairs += r.degenerate
	}

	agg := s.aggregator.Collect(runID, merged)
	diag.ScoredPairs = len(agg.Pairs)
	diag.DuplicatePairs = agg.Duplicates
	diag.AmbiguousMatches = agg.Ambiguous

	out := &echo.ScanOutcome{
		RunID:       runID,
		Matches:     agg.Matches,
		Diagnostics: diag,
		Scores:      agg.Scores(),
		Pairs:       agg.Pairs,
	}
	if out.Matches == nil {
		out.Matches = []echo.EchoMatch{}
	}

	elapsed := time.Since(start)
	s.metrics.ObserveScan(kind, elapsed, out)
	log.Debug("scan finished",
		zap.Int("candidate_pairs", diag.CandidatePairs),
		zap.Int("scored_pairs", diag.ScoredPairs),
		zap.Int("matches", len(out.Matches)),
		zap.Int("invalid_patches", diag.InvalidPatches),
		zap.Int("degenerate_pairs", diag.DegeneratePairs),
		zap.Duration("elapsed", elapsed))
	return out, nil
}

func (s *ScanService) scoreCenter(g *grid.Grid, patches []sky.Patch, i int) centerResult {
	var r centerResult
	for _, c := range separation.FindAll(g, i, s.cfg.TargetsDeg, s.cfg.ToleranceDeg) {
		if c.IndexB <= i {
			continue
		}
		r.candidates++
		a, b := patches[c.IndexA], patches[c.IndexB]
		if !a.Valid || !b.Valid {
			r.skipped++
			continue
		}
		// patches share one pattern, so the only scoring failure is a
		// degenerate correlation
		score, err := s.engine.Score(a, b)
		if err != nil {
			r.degenerate++
			continue
		}
		r.pairs = append(r.pairs, echo.ScoredPair{CandidatePair: c, Score: score})
	}
	return r
}
