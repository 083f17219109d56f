package app

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"loopscan/adapters/synthetic"
	"loopscan/domain/core"
	"loopscan/domain/echo"
	"loopscan/domain/run"
	"loopscan/domain/sky"
	"loopscan/internal/config"
	"loopscan/internal/logging"
	"loopscan/internal/metrics"
	"loopscan/internal/validation"
	"loopscan/ports"
)

// ValidationService scans an observed map, reruns the scan over a null
// ensemble and records the comparison.
type ValidationService struct {
	scan      *ScanService
	validator *validation.Validator
	rngPort   ports.RNGPort
	repo      ports.ResultRepository
	metrics   *metrics.Recorder
	progress  func(done, total int)
}

// NewValidationService creates the service. repo may be nil, in which
// case reports are returned but not stored.
func NewValidationService(scan *ScanService, rngPort ports.RNGPort, repo ports.ResultRepository, rec *metrics.Recorder) *ValidationService {
	cfg := scan.Config()
	return &ValidationService{
		scan:      scan,
		validator: validation.NewValidator(cfg.TargetsDeg, cfg.PValuePrecision, cfg.StrongThreshold),
		rngPort:   rngPort,
		repo:      repo,
		metrics:   rec,
	}
}

// OnProgress registers a callback for ensemble progress. It may be
// called from several goroutines at once.
func (v *ValidationService) OnProgress(fn func(done, total int)) {
	v.progress = fn
}

// NullProvider builds the configured null provider for ref.
func (v *ValidationService) NullProvider(ref *sky.SkyMap) (ports.MapProvider, error) {
	switch name := v.scan.Config().NullProvider; name {
	case config.NullProviderNoise:
		return synthetic.NewNoiseProvider(ref, v.rngPort)
	case config.NullProviderShuffle:
		return synthetic.NewShuffleProvider(ref, v.rngPort)
	default:
		return nil, core.NewConfigError("null_provider", "unknown provider "+name)
	}
}

// NullSeed is the provider seed of ensemble member i.
func (v *ValidationService) NullSeed(i int) int64 {
	return v.rngPort.Seed("null", strconv.Itoa(i), v.scan.Config().Seed)
}

// ScanOnly runs the observed scan and builds a report without
// validation.
func (v *ValidationService) ScanOnly(ctx context.Context, m *sky.SkyMap) (*run.Report, error) {
	outcome, err := v.scan.Scan(ctx, m)
	if err != nil {
		return nil, err
	}
	report, err := v.newReport(v.scan.Fingerprint(m, run.ModeScan), m, outcome, "")
	if err != nil {
		return nil, err
	}
	return report, v.save(ctx, report)
}

// Validate scans m, runs the null ensemble from the configured provider
// and compares the two.
func (v *ValidationService) Validate(ctx context.Context, m *sky.SkyMap) (*run.Report, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	provider, err := v.NullProvider(m)
	if err != nil {
		return nil, err
	}
	return v.ValidateWith(ctx, m, provider)
}

// ValidateWith runs validation against an explicit null provider.
func (v *ValidationService) ValidateWith(ctx context.Context, m *sky.SkyMap, provider ports.MapProvider) (*run.Report, error) {
	cfg := v.scan.Config()
	fp := v.scan.Fingerprint(m, run.ValidateMode(provider.Name()))
	log := logging.FromContext(ctx).With(
		zap.String("run_id", fp.RunID().String()),
		zap.String("null_provider", provider.Name()),
		zap.Int("ensemble_size", cfg.EnsembleSize))
	start := time.Now()

	observed, err := v.scan.ScanAs(ctx, m, fp.RunID())
	if err != nil {
		return nil, err
	}
	log.Info("observed scan complete", zap.Int("matches", len(observed.Matches)))

	nulls, err := v.runEnsemble(ctx, provider, fp)
	if err != nil {
		return nil, err
	}

	result := v.validator.Validate(observed, nulls)
	report, err := v.newReport(fp, m, observed, provider.Name())
	if err != nil {
		return nil, err
	}
	report.Validation = &result

	log.Info("validation complete",
		zap.String("status", string(result.Status)),
		zap.Float64("empirical_p", result.EmpiricalP),
		zap.Int("warnings", len(result.Warnings)),
		zap.Duration("elapsed", time.Since(start)))
	return report, v.save(ctx, report)
}

func (v *ValidationService) runEnsemble(ctx context.Context, provider ports.MapProvider, fp run.RunFingerprint) ([]*echo.ScanOutcome, error) {
	cfg := v.scan.Config()
	runner := validation.NewEnsembleRunner(provider, v.scan.ScanNull, v.NullSeed, fp.NullRunID, cfg.Workers)
	log := logging.FromContext(ctx)
	step := cfg.EnsembleSize / 10
	if step < 1 {
		step = 1
	}
	runner.OnProgress(func(done int) {
		v.metrics.NullRunDone(provider.Name())
		if v.progress != nil {
			v.progress(done, cfg.EnsembleSize)
		}
		if done%step == 0 {
			log.Info("null ensemble progress", zap.Int("done", done), zap.Int("total", cfg.EnsembleSize))
		}
	})

	res, err := runner.Run(ctx, 0, cfg.EnsembleSize)
	if err != nil {
		return nil, fmt.Errorf("null ensemble after %d of %d runs: %w", res.Next, cfg.EnsembleSize, err)
	}
	return res.Outcomes, nil
}

func (v *ValidationService) newReport(fp run.RunFingerprint, m *sky.SkyMap, outcome *echo.ScanOutcome, provider string) (*run.Report, error) {
	cfg := v.scan.Config()
	raw, err := json.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	manifest := run.NewRunManifest(fp, m.NSide, provider)
	if err := manifest.Validate(); err != nil {
		return nil, err
	}
	return &run.Report{
		Manifest: *manifest,
		Config:   raw,
		Outcome:  outcome,
	}, nil
}

func (v *ValidationService) save(ctx context.Context, report *run.Report) error {
	if v.repo == nil {
		return nil
	}
	if err := v.repo.SaveReport(ctx, report); err != nil {
		return fmt.Errorf("save report %s: %w", report.Manifest.RunID, err)
	}
	return nil
}
