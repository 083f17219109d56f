package app

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loopscan/adapters/synthetic"
	"loopscan/domain/run"
	"loopscan/domain/verdict"
	"loopscan/internal/config"
	"loopscan/internal/testkit"
)

func newValidation(t *testing.T, cfg config.ScanConfig, tk *testkit.TestKit) *ValidationService {
	t.Helper()
	return NewValidationService(newScan(t, cfg), tk.RNGAdapter(), tk.Repository(), nil)
}

func TestValidatePairMap(t *testing.T) {
	tk := testkit.NewTestKit()
	v := newValidation(t, testkit.PairScanConfig(), tk)

	var (
		mu       sync.Mutex
		progress []int
	)
	v.OnProgress(func(done, total int) {
		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, 20, total)
		progress = append(progress, done)
	})

	report, err := v.Validate(context.Background(), testkit.PairMap())
	require.NoError(t, err)
	require.NotNil(t, report.Validation)

	res := report.Validation
	assert.Equal(t, 20, res.EnsembleSize)
	assert.Equal(t, 1, res.MatchCount)
	assert.True(t, res.HasWarning(verdict.WarnPValueResolution))
	assert.GreaterOrEqual(t, res.EmpiricalP, 0.0)
	assert.LessOrEqual(t, res.EmpiricalP, 1.0)
	assert.Len(t, progress, 20)

	assert.Equal(t, run.KindObserved, report.Manifest.Kind)
	assert.Equal(t, "noise", report.Manifest.Provider)
	assert.Equal(t, report.Outcome.RunID, report.Manifest.RunID)

	stored, err := tk.Repository().GetReport(context.Background(), report.Manifest.RunID)
	require.NoError(t, err)
	assert.Same(t, report, stored)
}

func TestValidateDeterministic(t *testing.T) {
	cfg := config.DefaultScan()
	cfg.GridNSide = 2
	cfg.EnsembleSize = 8
	m := testkit.NoiseMap(4, 11)

	encode := func(workers int) (string, string) {
		cfg.Workers = workers
		report, err := newValidation(t, cfg, testkit.NewTestKit()).Validate(context.Background(), m)
		require.NoError(t, err)
		outcome, err := json.Marshal(report.Outcome)
		require.NoError(t, err)
		validation, err := json.Marshal(report.Validation)
		require.NoError(t, err)
		return string(outcome), string(validation)
	}

	o1, v1 := encode(1)
	o2, v2 := encode(1)
	o3, v3 := encode(4)
	assert.Equal(t, o1, o2)
	assert.Equal(t, v1, v2)
	assert.Equal(t, o1, o3, "worker count must not change results")
	assert.Equal(t, v1, v3)
}

func TestValidateShuffleProvider(t *testing.T) {
	cfg := testkit.PairScanConfig()
	cfg.NullProvider = config.NullProviderShuffle
	cfg.EnsembleSize = 5
	report, err := newValidation(t, cfg, testkit.NewTestKit()).Validate(context.Background(), testkit.PairMap())
	require.NoError(t, err)
	assert.Equal(t, "shuffle", report.Manifest.Provider)
	assert.Equal(t, 5, report.Validation.EnsembleSize)
}

func TestValidateEmptyEnsemble(t *testing.T) {
	cfg := testkit.PairScanConfig()
	cfg.EnsembleSize = 0
	report, err := newValidation(t, cfg, testkit.NewTestKit()).Validate(context.Background(), testkit.PairMap())
	require.NoError(t, err)
	assert.Equal(t, verdict.StatusNoData, report.Validation.Status)
	assert.True(t, report.Validation.HasWarning(verdict.WarnNoNullEnsemble))
}

func TestValidatePlantedEchoesStandOut(t *testing.T) {
	gen, err := synthetic.NewEchoProvider(synthetic.EchoConfig{
		NSide:         16,
		GridNSide:     4,
		RadiusDeg:     10,
		Pairs:         5,
		Strength:      3,
		SeparationDeg: 180,
		ToleranceDeg:  2,
	}, testkit.NewTestKit().RNGAdapter())
	require.NoError(t, err)
	m, planted, err := gen.GenerateWithTruth(context.Background(), 7)
	require.NoError(t, err)
	require.NotEmpty(t, planted)

	cfg := config.DefaultScan()
	cfg.GridNSide = 4
	cfg.Threshold = 0.5
	cfg.EnsembleSize = 10
	report, err := newValidation(t, cfg, testkit.NewTestKit()).Validate(context.Background(), m)
	require.NoError(t, err)

	b180, ok := report.Validation.Bin(180)
	require.True(t, ok)
	assert.GreaterOrEqual(t, b180.MaxScore, 0.6)
	assert.Greater(t, report.Validation.NullMaxScores.Mean, 0.0)
}

func TestValidateCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	v := newValidation(t, testkit.PairScanConfig(), testkit.NewTestKit())
	v.OnProgress(func(done, _ int) {
		if done == 2 {
			cancel()
		}
	})
	_, err := v.Validate(ctx, testkit.PairMap())
	require.ErrorIs(t, err, context.Canceled)
	assert.True(t, strings.Contains(err.Error(), "null ensemble"))
}

func TestScanOnly(t *testing.T) {
	tk := testkit.NewTestKit()
	report, err := newValidation(t, testkit.PairScanConfig(), tk).ScanOnly(context.Background(), testkit.PairMap())
	require.NoError(t, err)
	assert.Nil(t, report.Validation)
	assert.Len(t, report.Outcome.Matches, 1)

	var cfg config.ScanConfig
	require.NoError(t, json.Unmarshal(report.Config, &cfg))
	assert.Equal(t, 58.0, cfg.PatchRadiusDeg)

	runs, err := tk.Repository().ListRuns(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, 1, runs[0].MatchCount)
}

func TestScanOnlyThenValidateKeepsBothReports(t *testing.T) {
	ctx := context.Background()
	tk := testkit.NewTestKit()
	v := newValidation(t, testkit.PairScanConfig(), tk)

	scanned, err := v.ScanOnly(ctx, testkit.PairMap())
	require.NoError(t, err)
	validated, err := v.Validate(ctx, testkit.PairMap())
	require.NoError(t, err)

	assert.NotEqual(t, scanned.Manifest.RunID, validated.Manifest.RunID)
	assert.Equal(t, run.ModeScan, scanned.Manifest.Fingerprint.Mode)
	assert.Equal(t, run.ValidateMode("noise"), validated.Manifest.Fingerprint.Mode)
	assert.Equal(t, scanned.Outcome.RunID, scanned.Manifest.RunID)
	assert.Equal(t, validated.Outcome.RunID, validated.Manifest.RunID)

	got, err := tk.Repository().GetReport(ctx, scanned.Manifest.RunID)
	require.NoError(t, err)
	assert.Nil(t, got.Validation)

	got, err = tk.Repository().GetReport(ctx, validated.Manifest.RunID)
	require.NoError(t, err)
	assert.NotNil(t, got.Validation)

	runs, err := tk.Repository().ListRuns(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, runs, 2)
}
