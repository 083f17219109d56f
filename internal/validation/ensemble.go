package validation

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"loopscan/domain/core"
	"loopscan/domain/echo"
	"loopscan/domain/sky"
	"loopscan/internal/logging"
	"loopscan/ports"
)

// ScanFunc runs one detection pass over a map.
type ScanFunc func(ctx context.Context, m *sky.SkyMap, runID core.RunID) (*echo.ScanOutcome, error)

// SeedFunc returns the provider seed of ensemble member i.
type SeedFunc func(i int) int64

// RunIDFunc returns the run id of ensemble member i.
type RunIDFunc func(i int) core.RunID

// EnsembleRunner generates and scans null maps over a fixed-size pool.
type EnsembleRunner struct {
	provider ports.MapProvider
	scan     ScanFunc
	seed     SeedFunc
	runID    RunIDFunc
	workers  int
	progress func(done int)
}

// EnsembleResult holds the completed contiguous prefix of a range.
// Next is the first index not included, so a later Run(ctx, Next, to)
// resumes without repeating work.
type EnsembleResult struct {
	From     int
	Next     int
	Outcomes []*echo.ScanOutcome
}

// NewEnsembleRunner creates a runner. workers below one run serially.
func NewEnsembleRunner(provider ports.MapProvider, scan ScanFunc, seed SeedFunc, runID RunIDFunc, workers int) *EnsembleRunner {
	if workers < 1 {
		workers = 1
	}
	return &EnsembleRunner{
		provider: provider,
		scan:     scan,
		seed:     seed,
		runID:    runID,
		workers:  workers,
	}
}

// OnProgress registers a callback invoked after each completed member.
func (r *EnsembleRunner) OnProgress(fn func(done int)) {
	r.progress = fn
}

// Run processes members [from, to). On cancellation it returns the
// completed prefix together with the context error. Member outcomes are
// identical whatever the worker count.
func (r *EnsembleRunner) Run(ctx context.Context, from, to int) (EnsembleResult, error) {
	if from < 0 || to < from {
		return EnsembleResult{}, core.NewInputError("ensemble_range", fmt.Sprintf("[%d, %d) is not a valid range", from, to))
	}
	log := logging.FromContext(ctx).With(zap.String("provider", r.provider.Name()))
	start := time.Now()

	outcomes := make([]*echo.ScanOutcome, to-from)
	var done atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)
	for i := from; i < to; i++ {
		i := i
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return nil
			}
			m, err := r.provider.Generate(gctx, r.seed(i))
			if err != nil {
				return fmt.Errorf("generate null map %d: %w", i, err)
			}
			out, err := r.scan(gctx, m, r.runID(i))
			if err != nil {
				return fmt.Errorf("scan null map %d: %w", i, err)
			}
			outcomes[i-from] = out
			n := int(done.Add(1))
			if r.progress != nil {
				r.progress(n)
			}
			return nil
		})
	}
	err := g.Wait()

	res := EnsembleResult{From: from, Next: from}
	for _, o := range outcomes {
		if o == nil {
			break
		}
		res.Outcomes = append(res.Outcomes, o)
		res.Next++
	}

	if err == nil {
		err = ctx.Err()
	}
	if err == nil && res.Next < to {
		err = fmt.Errorf("ensemble stopped at member %d of %d", res.Next, to)
	}

	log.Debug("null ensemble range finished",
		zap.Int("from", from),
		zap.Int("next", res.Next),
		zap.Int("to", to),
		zap.Duration("elapsed", time.Since(start)),
		zap.Error(err))
	return res, err
}
