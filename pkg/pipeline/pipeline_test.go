package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"petqc/internal/models"
	"petqc/pkg/cache"
	"petqc/pkg/config"
	"petqc/pkg/metric"
	"petqc/pkg/tagger"
)

func newRunner(t *testing.T) (*Runner, *config.Config) {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Output.Dir = t.TempDir()
	cfg.Output.Label = "test"
	cfg.Processing.NumCores = 2

	store, err := cache.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	r, err := NewRunner(cfg, store, nil)
	require.NoError(t, err)
	return r, cfg
}

func writeFile(t *testing.T, path, content string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func runs(r *Runner, stage, outcome string) float64 {
	return testutil.ToFloat64(r.telemetry.stageRuns.WithLabelValues(stage, outcome))
}

func TestTagResultsStatic(t *testing.T) {
	r, cfg := newRunner(t)
	raw := writeFile(t, filepath.Join(t.TempDir(), "sub-01_pet.csv"), "3,1,0,10,1,12,8,100\n3,2,0,20,2,25,15,50\n")
	req := TagRequest{Input: raw, Meta: tagger.Meta{Analysis: "results", Subject: "01"}, Dim: 3}

	res, err := r.TagResults(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(cfg.Output.Dir, "sub-01_pet_3d.csv"), res.Path3D)
	assert.Empty(t, res.Path4D)
	require.Len(t, res.Table, 2)
	assert.FileExists(t, res.Path3D)
	assert.Equal(t, 1.0, runs(r, "tag", OutcomeComputed))

	again, err := r.TagResults(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, res.Table, again.Table)
	assert.Equal(t, 1.0, runs(r, "tag", OutcomeCached))

	writeFile(t, raw, "3,1,0,11,1,12,8,100\n3,2,0,20,2,25,15,50\n")
	changed, err := r.TagResults(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 2.0, runs(r, "tag", OutcomeComputed), "changed input is recomputed")
	assert.Equal(t, 11.0, changed.Table[0].Value)
}

func TestTagResultsDynamic(t *testing.T) {
	r, cfg := newRunner(t)
	dir := t.TempDir()
	raw := writeFile(t, filepath.Join(dir, "pet.csv"), "4,1,0,1,0,0,0,0\n4,1,1,1,0,0,0,0\n4,1,2,1,0,0,0,0\n")
	header := writeFile(t, filepath.Join(dir, "pet.json"), `{"Time":{"FrameTimes":{"Values":[[0,1],[1,2],[2,3]]}}}`)

	res, err := r.TagResults(context.Background(), TagRequest{
		Input: raw, Meta: tagger.Meta{Subject: "01"}, Dim: 4, Header: header,
	})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(cfg.Output.Dir, "pet_4d.csv"), res.Path4D)
	assert.Equal(t, filepath.Join(cfg.Output.Dir, "pet_3d.csv"), res.Path3D)
	assert.FileExists(t, res.Path4D)
	require.Len(t, res.Table, 1)
	assert.Equal(t, models.IntegralMetric, res.Table[0].Metric)
	assert.InDelta(t, 2.0, res.Table[0].Value, 1e-12)

	_, err = r.TagResults(context.Background(), TagRequest{
		Input: raw, Meta: tagger.Meta{Subject: "01"}, Dim: 4, Header: filepath.Join(dir, "absent.json"),
	})
	assert.Error(t, err)
	assert.Equal(t, 1.0, runs(r, "integrate", OutcomeFailed))
}

func TestDescribe(t *testing.T) {
	r, cfg := newRunner(t)
	dir := t.TempDir()
	var inputs []string
	for i, sub := range []string{"01", "02"} {
		raw := writeFile(t, filepath.Join(dir, fmt.Sprintf("sub-%s.csv", sub)), fmt.Sprintf("3,1,0,%d,0,0,0,0\n", 10*(i+1)))
		res, err := r.TagResults(context.Background(), TagRequest{Input: raw, Meta: tagger.Meta{Analysis: "results", Subject: sub}})
		require.NoError(t, err)
		inputs = append(inputs, res.Path3D)
	}

	tables, err := r.Describe(context.Background(), inputs)
	require.NoError(t, err)
	require.Len(t, tables, 5)

	for _, name := range []string{"ses", "task", "sub", "sub_task", "sub_ses"} {
		assert.FileExists(t, filepath.Join(cfg.Output.Dir, DescriptiveName("test", name)))
	}
	assert.Equal(t, "ses", tables[0].Name)
	require.Len(t, tables[0].Rows, 1)
	assert.Equal(t, 15.0, tables[0].Rows[0].Value)
	assert.Len(t, tables[2].Rows, 2, "one row per subject")

	_, err = r.Describe(context.Background(), nil)
	assert.Error(t, err)
}

func TestRunQC(t *testing.T) {
	r, cfg := newRunner(t)
	cfg.QC.DistanceMetrics = []string{"Fixed"}
	cfg.QC.Measures = map[string]config.MeasureConfig{"MAD": {Thresholds: []float64{2.0}}}
	cfg.Output.WriteWorkbook = true
	cfg.Output.RenderPlots = true

	dir := t.TempDir()
	values := map[string]float64{}
	img := func(name string, v float64) string {
		p := writeFile(t, filepath.Join(dir, name), name)
		values[p] = v
		return p
	}
	manifest := writeFile(t, filepath.Join(dir, "qc.yaml"), fmt.Sprintf(`
subjects:
  - subject: "01"
    condition: rest
    t1: t1.npy
    misaligned: ["%s", "%s"]
  - subject: "02"
    condition: rest
    t1: t1.npy
    misaligned: ["%s", "%s"]
`,
		filepath.Base(img("p01_angle_0,0,0.npy", 0.80)), filepath.Base(img("p01_angle_0,0,4.npy", 0.40)),
		filepath.Base(img("p02_angle_0,0,0.npy", 0.82)), filepath.Base(img("p02_angle_0,0,4.npy", 0.40))))
	writeFile(t, filepath.Join(dir, "t1.npy"), "t1")

	require.NoError(t, r.Metrics().Register("Fixed", metric.Func(func(ctx context.Context, test, reference, mask string) (float64, error) {
		return values[test], nil
	})))

	res, err := r.RunQC(context.Background(), manifest)
	require.NoError(t, err)
	assert.Len(t, res.Metrics, 4)
	assert.Len(t, res.Outliers, 4)
	require.Len(t, res.ROC, 1)
	assert.Equal(t, "0,0,4", res.ROC[0].ErrorMagnitude)
	assert.Equal(t, 1.0, res.ROC[0].TruePositiveRate)
	assert.Equal(t, 0.0, res.ROC[0].FalsePositiveRate)

	for _, name := range []string{
		MetricTableName("test"), OutlierTableName("test"), ROCTableName("test"),
		WorkbookName("test"), "rotation_roc.png", OutlierPlotName,
	} {
		assert.FileExists(t, filepath.Join(cfg.Output.Dir, name))
	}

	again, err := r.RunQC(context.Background(), manifest)
	require.NoError(t, err)
	assert.Equal(t, res.ROC, again.ROC)
	assert.Equal(t, res.Warnings, again.Warnings)
	for _, stage := range []string{"distance_metrics", "outliers", "roc"} {
		assert.Equal(t, 1.0, runs(r, stage, OutcomeCached), stage)
	}

	metricsFile := filepath.Join(t.TempDir(), "petqc.prom")
	require.NoError(t, r.Telemetry().WriteTextfile(metricsFile))
	data, err := os.ReadFile(metricsFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), "petqc_stage_runs_total")
}

func TestRunQCRejectsUnconfiguredMagnitude(t *testing.T) {
	r, cfg := newRunner(t)
	cfg.QC.DistanceMetrics = []string{"Fixed"}
	cfg.QC.Rotations = []string{"0,0,2"}
	require.NoError(t, r.Metrics().Register("Fixed", metric.Func(func(ctx context.Context, test, reference, mask string) (float64, error) {
		return 1, nil
	})))

	dir := t.TempDir()
	manifest := writeFile(t, filepath.Join(dir, "qc.yaml"), `
subjects:
  - subject: "01"
    t1: t1.npy
    misaligned: ["p01_angle_0,0,4.npy"]
`)
	writeFile(t, filepath.Join(dir, "t1.npy"), "t1")
	writeFile(t, filepath.Join(dir, "p01_angle_0,0,4.npy"), "pet")
	_, err := r.RunQC(context.Background(), manifest)
	assert.ErrorContains(t, err, "magnitude 0,0,4 is not configured")
}

func TestNewRunnerRejectsDuplicateExternalMetric(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.QC.ExternalMetrics = []config.ExternalMetric{{Name: "NMI", Command: "true"}}
	_, err := NewRunner(cfg, nil, nil)
	assert.Error(t, err)
}

func TestRunnerWithoutStoreRecomputes(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Output.Dir = t.TempDir()
	r, err := NewRunner(cfg, nil, nil)
	require.NoError(t, err)
	assert.NotEmpty(t, r.RunID())

	raw := writeFile(t, filepath.Join(t.TempDir(), "a.csv"), "3,1,0,10,1,12,8,100\n")
	for i := 0; i < 2; i++ {
		_, err := r.TagResults(context.Background(), TagRequest{Input: raw})
		require.NoError(t, err)
	}
	assert.Equal(t, 2.0, runs(r, "tag", OutcomeComputed))
}
