package visualization

import (
	"image/png"
	"math"
	"os"
	"path/filepath"
	"testing"

	"petqc/internal/models"
)

// TestChartPixel verifies that data coordinates map onto the plot area
func TestChartPixel(t *testing.T) {
	c := NewChart("test", 100, 100)
	c.SetRange(0, 1, 0, 1)

	x, y := c.Pixel(Point{X: 0, Y: 0})
	if x != margin || y != 100-margin {
		t.Errorf("Expected origin at (%d, %d), got (%d, %d)", margin, 100-margin, x, y)
	}

	x, y = c.Pixel(Point{X: 1, Y: 1})
	if x != 100-margin || y != margin {
		t.Errorf("Expected (1,1) at (%d, %d), got (%d, %d)", 100-margin, margin, x, y)
	}
}

// TestChartDropsNonFinitePoints verifies that infinite scores do not break the range
func TestChartDropsNonFinitePoints(t *testing.T) {
	c := NewChart("test", 100, 100)
	c.Add(Series{Name: "s", Points: []Point{{X: 0, Y: 1}, {X: 1, Y: math.Inf(1)}, {X: 2, Y: math.NaN()}, {X: 3, Y: 2}}})

	got := c.Series()
	if len(got) != 1 || len(got[0].Points) != 2 {
		t.Fatalf("Expected one series with 2 finite points, got %+v", got)
	}
	if c.xMin != 0 || c.xMax != 3 || c.yMin != 1 || c.yMax != 2 {
		t.Errorf("Unexpected range x[%g,%g] y[%g,%g]", c.xMin, c.xMax, c.yMin, c.yMax)
	}
}

// TestRender verifies that markers are drawn in the series color
func TestRender(t *testing.T) {
	c := NewChart("test", 120, 120)
	c.SetRange(0, 1, 0, 1)
	c.Add(Series{Name: "diagonal", Points: []Point{{X: 0.5, Y: 0.5}, {X: 1, Y: 1}}})

	img := c.Render()
	if img.Bounds().Dx() != 120 || img.Bounds().Dy() != 120 {
		t.Fatalf("Unexpected image size %v", img.Bounds())
	}

	x, y := c.Pixel(Point{X: 0.5, Y: 0.5})
	r, g, b, _ := img.At(x, y).RGBA()
	want := Color(0)
	if uint8(r>>8) != want.R || uint8(g>>8) != want.G || uint8(b>>8) != want.B {
		t.Errorf("Expected series color at marker, got (%d, %d, %d)", r>>8, g>>8, b>>8)
	}

	r, g, b, _ = img.At(1, 1).RGBA()
	if r>>8 != 255 || g>>8 != 255 || b>>8 != 255 {
		t.Errorf("Expected white background, got (%d, %d, %d)", r>>8, g>>8, b>>8)
	}
}

// TestEmptyChartRenders verifies that a chart without data still renders
func TestEmptyChartRenders(t *testing.T) {
	img := NewChart("empty", 80, 60).Render()
	if img.Bounds().Dx() != 80 {
		t.Errorf("Expected width 80, got %d", img.Bounds().Dx())
	}
}

// TestROCCharts verifies curve grouping and ordering
func TestROCCharts(t *testing.T) {
	points := []models.ROCPoint{
		{ErrorType: models.Rotation, Measure: "MAD", Metric: "NMI", ErrorMagnitude: "0,0,4", Threshold: 2, TruePositiveRate: 0.5, FalsePositiveRate: 0},
		{ErrorType: models.Rotation, Measure: "MAD", Metric: "NMI", ErrorMagnitude: "0,0,4", Threshold: 0, TruePositiveRate: 1, FalsePositiveRate: 0.5},
		{ErrorType: models.Rotation, Measure: "MAD", Metric: "NMI", ErrorMagnitude: "0,0,8", Threshold: 2, TruePositiveRate: 1, FalsePositiveRate: 0},
		{ErrorType: models.Translation, Measure: "MAD", Metric: "NMI", ErrorMagnitude: "0,0,4", Threshold: 2, TruePositiveRate: 1, FalsePositiveRate: 0},
	}

	charts := ROCCharts(points)
	if len(charts) != 2 {
		t.Fatalf("Expected 2 charts, got %d", len(charts))
	}

	rot := charts[models.Rotation].Series()
	if len(rot) != 2 {
		t.Fatalf("Expected 2 rotation curves, got %d", len(rot))
	}
	if rot[0].Name != "MAD NMI 0,0,4 degrees" {
		t.Errorf("Unexpected curve name %q", rot[0].Name)
	}
	if rot[0].Points[0].X != 0 || rot[0].Points[1].X != 0.5 {
		t.Errorf("Expected curve sorted by false positive rate, got %+v", rot[0].Points)
	}
}

// TestRenderFiles verifies the published plot names and that they decode as PNG
func TestRenderFiles(t *testing.T) {
	dir := t.TempDir()
	points := []models.ROCPoint{
		{ErrorType: models.Rotation, Measure: "MAD", Metric: "NMI", ErrorMagnitude: "0,0,4", TruePositiveRate: 1},
		{ErrorType: models.Translation, Measure: "MAD", Metric: "NMI", ErrorMagnitude: "0,0,4", TruePositiveRate: 1},
	}
	paths, err := RenderROC(points, dir)
	if err != nil {
		t.Fatalf("RenderROC failed: %v", err)
	}
	want := []string{filepath.Join(dir, "rotation_roc.png"), filepath.Join(dir, "translation_roc.png")}
	if len(paths) != len(want) || paths[0] != want[0] || paths[1] != want[1] {
		t.Errorf("Expected %v, got %v", want, paths)
	}

	records := []models.OutlierRecord{
		{MisalignmentRecord: models.MisalignmentRecord{ErrorType: models.Rotation, ErrorMagnitude: "0,0,0", Metric: "NMI"}, Measure: "MAD", Score: 0.5},
		{MisalignmentRecord: models.MisalignmentRecord{ErrorType: models.Rotation, ErrorMagnitude: "0,0,4", Metric: "NMI"}, Measure: "MAD", Score: math.Inf(1)},
		{MisalignmentRecord: models.MisalignmentRecord{ErrorType: models.Rotation, ErrorMagnitude: "0,0,4", Metric: "NMI"}, Measure: "MAD", Score: 9},
	}
	out := filepath.Join(dir, "plots", "outlier_measures.png")
	if err := RenderOutliers(records, out); err != nil {
		t.Fatalf("RenderOutliers failed: %v", err)
	}

	for _, p := range append(paths, out) {
		f, err := os.Open(p)
		if err != nil {
			t.Fatalf("Failed to open %s: %v", p, err)
		}
		if _, err := png.Decode(f); err != nil {
			t.Errorf("%s is not a PNG: %v", p, err)
		}
		f.Close()
	}
}

// TestOutlierChart verifies that magnitudes become numeric x positions
func TestOutlierChart(t *testing.T) {
	records := []models.OutlierRecord{
		{MisalignmentRecord: models.MisalignmentRecord{ErrorType: models.Rotation, ErrorMagnitude: "0,0,16", Metric: "NMI"}, Measure: "MAD", Score: 6},
		{MisalignmentRecord: models.MisalignmentRecord{ErrorType: models.Rotation, ErrorMagnitude: "0,0,2", Metric: "NMI"}, Measure: "MAD", Score: 2},
		{MisalignmentRecord: models.MisalignmentRecord{ErrorType: models.Rotation, ErrorMagnitude: "0,0,2", Metric: "NMI"}, Measure: "MAD", Score: 4},
	}
	s := OutlierChart(records).Series()
	if len(s) != 1 || len(s[0].Points) != 2 {
		t.Fatalf("Expected one series with 2 points, got %+v", s)
	}
	if s[0].Points[0] != (Point{X: 2, Y: 3}) || s[0].Points[1] != (Point{X: 16, Y: 6}) {
		t.Errorf("Unexpected points %+v", s[0].Points)
	}
}
