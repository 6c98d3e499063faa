// Package aggregate pivots tagged measurements into grouped means.
package aggregate

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"petqc/internal/models"
)

// Pivot names a grouping of a measurement table
type Pivot struct {
	// Name is used to derive the artifact file name
	Name string

	// Dimensions are the columns rows are grouped by
	Dimensions []models.Dimension
}

func withBase(extra ...models.Dimension) []models.Dimension {
	return append([]models.Dimension{models.DimAnalysis, models.DimMetric, models.DimROI}, extra...)
}

// DescriptivePivots are the five groupings of the group-level descriptive statistics
var DescriptivePivots = []Pivot{
	{Name: "ses", Dimensions: withBase(models.DimSession)},
	{Name: "task", Dimensions: withBase(models.DimTask)},
	{Name: "sub", Dimensions: withBase(models.DimSubject)},
	{Name: "sub_task", Dimensions: withBase(models.DimSubject, models.DimTask)},
	{Name: "sub_ses", Dimensions: withBase(models.DimSubject, models.DimSession)},
}

// Mean groups t by the pivot's dimensions and averages Value within each group.
// NaN values are skipped; a group with no finite value is dropped. Rows are
// returned in natural key order.
func Mean(t models.MeasurementTable, p Pivot) models.GroupedTable {
	type group struct {
		key    models.GroupKey
		values []float64
	}

	groups := make(map[string]*group)
	for _, r := range t {
		if math.IsNaN(r.Value) {
			continue
		}
		key := models.KeyOf(r, p.Dimensions)
		id := key.String()
		g, ok := groups[id]
		if !ok {
			g = &group{key: key}
			groups[id] = g
		}
		g.values = append(g.values, r.Value)
	}

	out := models.GroupedTable{
		Name:       p.Name,
		Dimensions: p.Dimensions,
		Rows:       make([]models.GroupedRow, 0, len(groups)),
	}
	for _, g := range groups {
		out.Rows = append(out.Rows, models.GroupedRow{
			Key:   g.key,
			Value: stat.Mean(g.values, nil),
			Count: len(g.values),
		})
	}
	sort.Slice(out.Rows, func(i, j int) bool { return out.Rows[i].Key.Less(out.Rows[j].Key) })
	return out
}

// Describe computes every descriptive pivot of t
func Describe(t models.MeasurementTable) []models.GroupedTable {
	out := make([]models.GroupedTable, len(DescriptivePivots))
	for i, p := range DescriptivePivots {
		out[i] = Mean(t, p)
	}
	return out
}
