package visualization

import (
	"fmt"
	"path/filepath"
	"sort"

	"gonum.org/v1/gonum/stat"

	"petqc/internal/models"
)

// Default plot size in pixels
const (
	DefaultWidth  = 640
	DefaultHeight = 480
)

// ROCCharts builds one chart per error type with a curve per
// (measure, metric, magnitude). Curves run in ascending false-positive rate.
func ROCCharts(points []models.ROCPoint) map[models.ErrorType]*Chart {
	type curveKey struct {
		errorType models.ErrorType
		name      string
	}
	curves := make(map[curveKey][]Point)
	var order []curveKey
	for _, p := range points {
		k := curveKey{
			errorType: p.ErrorType,
			name:      fmt.Sprintf("%s %s %s %s", p.Measure, p.Metric, p.ErrorMagnitude, p.ErrorType.Unit()),
		}
		if _, ok := curves[k]; !ok {
			order = append(order, k)
		}
		curves[k] = append(curves[k], Point{X: p.FalsePositiveRate, Y: p.TruePositiveRate})
	}

	charts := make(map[models.ErrorType]*Chart)
	for _, k := range order {
		c, ok := charts[k.errorType]
		if !ok {
			c = NewChart(fmt.Sprintf("ROC %s", k.errorType), DefaultWidth, DefaultHeight)
			c.SetRange(0, 1, 0, 1)
			charts[k.errorType] = c
		}
		pts := curves[k]
		sort.SliceStable(pts, func(i, j int) bool {
			if pts[i].X != pts[j].X {
				return pts[i].X < pts[j].X
			}
			return pts[i].Y < pts[j].Y
		})
		c.Add(Series{Name: k.name, Points: pts})
	}
	return charts
}

// OutlierChart plots the mean score against error magnitude, one series per
// (error type, measure, metric).
func OutlierChart(records []models.OutlierRecord) *Chart {
	type seriesKey struct {
		errorType models.ErrorType
		measure   string
		metric    string
	}
	scores := make(map[seriesKey]map[string][]float64)
	var order []seriesKey
	for _, r := range records {
		k := seriesKey{errorType: r.ErrorType, measure: r.Measure, metric: r.Metric}
		if _, ok := scores[k]; !ok {
			scores[k] = make(map[string][]float64)
			order = append(order, k)
		}
		scores[k][r.ErrorMagnitude] = append(scores[k][r.ErrorMagnitude], r.Score)
	}

	c := NewChart("outlier scores", DefaultWidth, DefaultHeight)
	for _, k := range order {
		mags := make([]string, 0, len(scores[k]))
		for m := range scores[k] {
			mags = append(mags, m)
		}
		sort.Slice(mags, func(i, j int) bool { return models.CompareMagnitudes(mags[i], mags[j]) < 0 })

		pts := make([]Point, 0, len(mags))
		for _, m := range mags {
			x, err := models.MagnitudeValue(m)
			if err != nil {
				continue
			}
			pts = append(pts, Point{X: x, Y: stat.Mean(finite(scores[k][m]), nil)})
		}
		c.Add(Series{Name: fmt.Sprintf("%s %s %s", k.errorType, k.measure, k.metric), Points: pts})
	}
	return c
}

func finite(values []float64) []float64 {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		if !isNonFinite(v) {
			out = append(out, v)
		}
	}
	return out
}

// RenderROC writes <errortype>_roc.png into dir and returns the paths written
func RenderROC(points []models.ROCPoint, dir string) ([]string, error) {
	charts := ROCCharts(points)
	types := make([]string, 0, len(charts))
	for et := range charts {
		types = append(types, string(et))
	}
	sort.Strings(types)

	paths := make([]string, 0, len(types))
	for _, et := range types {
		path := filepath.Join(dir, et+"_roc.png")
		if err := SavePNG(charts[models.ErrorType(et)].Render(), path); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// RenderOutliers writes the outlier score chart to path
func RenderOutliers(records []models.OutlierRecord, path string) error {
	return SavePNG(OutlierChart(records).Render(), path)
}
