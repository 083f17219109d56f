package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"loopscan/adapters/synthetic"
	"loopscan/app"
	"loopscan/domain/echo"
	"loopscan/domain/sky"
	"loopscan/internal/testkit"
)

func TestReadMapDefaultsToAllValid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "map.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"nside":1,"samples":[1,2,3,4,5,6,7,8,9,10,11,12]}`), 0o644))

	m, err := readMap(path)
	require.NoError(t, err)
	assert.Equal(t, 12, m.ValidCount())
}

func TestReadMapRejectsBadInput(t *testing.T) {
	dir := t.TempDir()
	short := filepath.Join(dir, "short.json")
	require.NoError(t, os.WriteFile(short, []byte(`{"nside":1,"samples":[1,2,3]}`), 0o644))
	garbage := filepath.Join(dir, "garbage.json")
	require.NoError(t, os.WriteFile(garbage, []byte(`not json`), 0o644))

	for _, p := range []string{short, garbage, filepath.Join(dir, "missing.json")} {
		_, err := readMap(p)
		assert.Error(t, err, p)
	}
}

func TestWriteMapRoundTrip(t *testing.T) {
	m := testkit.PairMap()
	path := filepath.Join(t.TempDir(), "map.json")
	require.NoError(t, writeMap(path, m))

	got, err := readMap(path)
	require.NoError(t, err)
	assert.Equal(t, m, got)
}

func TestWriteReportFormats(t *testing.T) {
	kit := testkit.NewTestKit()
	scan, err := app.NewScanService(testkit.PairScanConfig(), nil)
	require.NoError(t, err)
	svc := app.NewValidationService(scan, kit.RNGAdapter(), nil, nil)
	report, err := svc.ScanOnly(context.Background(), testkit.PairMap())
	require.NoError(t, err)

	out := filepath.Join(t.TempDir(), "report.json")
	require.NoError(t, writeReport(outputFlags{format: "json", out: out}, report, 0.5, 5))
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, report.Manifest.RunID.String(), gjson.GetBytes(data, "manifest.run_id").String())

	md := filepath.Join(t.TempDir(), "report.md")
	require.NoError(t, writeReport(outputFlags{format: "markdown", out: md}, report, 0.5, 5))
	data, err = os.ReadFile(md)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("# Echo scan ")))

	assert.Error(t, writeReport(outputFlags{format: "csv", out: md}, report, 0.5, 5))
}

func TestRecovered(t *testing.T) {
	a, _ := sky.DirectionFromDegrees(90, 0)
	b, _ := sky.DirectionFromDegrees(90, 180)
	c, _ := sky.DirectionFromDegrees(0, 0)
	d, _ := sky.DirectionFromDegrees(180, 0)
	planted := []synthetic.PlantedPair{{A: a, B: b, Separation: 180}, {A: c, B: d, Separation: 180}}

	lo, hi := sky.Canonical(a, b)
	matches := []echo.EchoMatch{{A: lo, B: hi, Bin: 180, Score: 0.9}}
	assert.Equal(t, 1, recovered(planted, matches))
	assert.Equal(t, 0, recovered(planted, nil))
}
