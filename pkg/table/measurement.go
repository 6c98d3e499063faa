package table

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"petqc/internal/models"
)

// Column names of a tagged results table after the optional leading hemisphere
var resultColumns = []string{"analysis", "sub", "ses", "task", "run", "acq", "rec", "roi", "metric", "value", "frame"}

// MeasurementSheet renders a measurement table. The hemisphere column is
// emitted first, and only when some row has a hemisphere.
func MeasurementSheet(name string, t models.MeasurementTable) Sheet {
	withHemi := t.HasHemisphere()
	header := resultColumns
	if withHemi {
		header = append([]string{"hemisphere"}, resultColumns...)
	}

	rows := make([][]string, len(t))
	for i, r := range t {
		rec := make([]string, 0, len(header))
		if withHemi {
			rec = append(rec, r.Hemisphere)
		}
		rec = append(rec, r.Analysis, r.Subject, r.Session, r.Task, r.Run, r.Acquisition,
			r.Reconstruction, r.ROI, r.Metric, formatFloat(r.Value), strconv.Itoa(r.Frame))
		rows[i] = rec
	}
	return Sheet{Name: name, Header: header, Rows: rows}
}

// WriteMeasurements writes t as CSV
func WriteMeasurements(w io.Writer, t models.MeasurementTable) error {
	return MeasurementSheet("results", t).WriteCSV(w)
}

// ReadMeasurements parses a tagged results table. Missing identifiers are
// resolved to NA and a missing frame to 0 once, here.
func ReadMeasurements(r io.Reader, source string) (models.MeasurementTable, error) {
	cols, rows, err := readSheet(r, source, "roi", "value")
	if err != nil {
		return nil, err
	}
	_, withHemi := cols["hemisphere"]

	dims := []models.Dimension{
		models.DimAnalysis, models.DimSubject, models.DimSession, models.DimTask, models.DimRun,
		models.DimAcquisition, models.DimReconstruction, models.DimROI, models.DimHemisphere, models.DimMetric,
	}

	out := make(models.MeasurementTable, 0, len(rows))
	for i, rec := range rows {
		line := i + 2
		var row models.MeasurementRow
		for _, d := range dims {
			if idx, ok := cols[string(d)]; ok {
				if err := d.Set(&row, strings.TrimSpace(rec[idx])); err != nil {
					return nil, fmt.Errorf("%s:%d: %w", source, line, err)
				}
			}
		}
		row.Value, err = parseFloat(source, line, "value", rec[cols["value"]])
		if err != nil {
			return nil, err
		}
		if idx, ok := cols["frame"]; ok && strings.TrimSpace(rec[idx]) != "" {
			f, err := models.ParseFrame(rec[idx])
			if err != nil {
				return nil, fmt.Errorf("%s:%d: %w", source, line, err)
			}
			row.Frame = f
		}
		out = append(out, row.WithDefaults(withHemi))
	}
	return out, nil
}

// GroupedSheet renders an aggregator pivot: one column per dimension then value
func GroupedSheet(g models.GroupedTable) Sheet {
	header := make([]string, 0, len(g.Dimensions)+1)
	for _, d := range g.Dimensions {
		header = append(header, string(d))
	}
	header = append(header, "value")

	rows := make([][]string, len(g.Rows))
	for i, r := range g.Rows {
		rec := append([]string(nil), r.Key...)
		rows[i] = append(rec, formatFloat(r.Value))
	}
	return Sheet{Name: g.Name, Header: header, Rows: rows}
}

// WriteGrouped writes an aggregator pivot as CSV
func WriteGrouped(w io.Writer, g models.GroupedTable) error {
	return GroupedSheet(g).WriteCSV(w)
}

// ReadGrouped parses a pivot written by WriteGrouped. Group sizes are not
// persisted, so Count is zero on the result.
func ReadGrouped(r io.Reader, source string, dims []models.Dimension) (models.GroupedTable, error) {
	required := make([]string, 0, len(dims)+1)
	for _, d := range dims {
		required = append(required, string(d))
	}
	required = append(required, "value")

	cols, rows, err := readSheet(r, source, required...)
	if err != nil {
		return models.GroupedTable{}, err
	}

	g := models.GroupedTable{Dimensions: dims, Rows: make([]models.GroupedRow, 0, len(rows))}
	for i, rec := range rows {
		key := make(models.GroupKey, len(dims))
		for j, d := range dims {
			key[j] = rec[cols[string(d)]]
		}
		v, err := parseFloat(source, i+2, "value", rec[cols["value"]])
		if err != nil {
			return models.GroupedTable{}, err
		}
		g.Rows = append(g.Rows, models.GroupedRow{Key: key, Value: v})
	}
	return g, nil
}
