package models

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// NA is the literal placeholder used for identifiers that were not supplied.
const NA = "NA"

// IntegratedFrame is the frame index carried by rows whose value is a time
// integral rather than a per-frame sample.
const IntegratedFrame = 0

// IntegralMetric is the metric name given to TAC-integrated rows
const IntegralMetric = "integral"

// MeanMetric is the metric name the tagger assigns to raw ROI means
const MeanMetric = "mean"

// MeasurementRow is one scalar observation for a region of interest
type MeasurementRow struct {
	// Analysis is the name of the computation that produced the value
	Analysis string

	// Subject, Session, Task, Run, Acquisition and Reconstruction identify the scan.
	// Each defaults to NA when absent.
	Subject        string
	Session        string
	Task           string
	Run            string
	Acquisition    string
	Reconstruction string

	// ROI is the region-of-interest label
	ROI string

	// Hemisphere is optional; empty when the source had no hemisphere column
	Hemisphere string

	// Metric names the statistic, e.g. "mean"
	Metric string

	// Value is the observed scalar
	Value float64

	// Frame is the time frame index, 0 for static data
	Frame int
}

// IntegratedRow is a MeasurementRow whose Value is a time integral.
// Frame is always IntegratedFrame and Metric is always IntegralMetric.
type IntegratedRow = MeasurementRow

// WithDefaults returns a copy of the row with every missing identifier set to NA.
// Hemisphere is only filled when fillHemisphere is set, because an empty
// hemisphere normally means the column does not exist.
func (r MeasurementRow) WithDefaults(fillHemisphere bool) MeasurementRow {
	for _, f := range []*string{&r.Analysis, &r.Subject, &r.Session, &r.Task, &r.Run,
		&r.Acquisition, &r.Reconstruction, &r.ROI, &r.Metric} {
		if strings.TrimSpace(*f) == "" {
			*f = NA
		}
	}
	if fillHemisphere && strings.TrimSpace(r.Hemisphere) == "" {
		r.Hemisphere = NA
	}
	return r
}

// Key returns the identity tuple of the row, frame included. Within a table
// that has not been integrated over frames, keys are unique.
func (r MeasurementRow) Key() string {
	return strings.Join([]string{
		r.Analysis, r.Subject, r.Session, r.Task, r.Run, r.Acquisition,
		r.Reconstruction, r.ROI, r.Hemisphere, r.Metric, strconv.Itoa(r.Frame),
	}, "\x1f")
}

// MeasurementTable is an ordered collection of rows
type MeasurementTable []MeasurementRow

// HasHemisphere reports whether any row carries a hemisphere label
func (t MeasurementTable) HasHemisphere() bool {
	for _, r := range t {
		if r.Hemisphere != "" {
			return true
		}
	}
	return false
}

// ParseFrame parses a frame index. Statistics tools print frames as floats,
// so "2" and "2.0" are accepted; fractional, negative and non-finite values
// are rejected rather than truncated.
func ParseFrame(s string) (int, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid frame %q: %w", s, err)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) || v != math.Trunc(v) || v < 0 || v > math.MaxInt32 {
		return 0, fmt.Errorf("invalid frame %q: not a non-negative integer", s)
	}
	return int(v), nil
}

// Concat joins several tables into a new one
func Concat(tables ...MeasurementTable) MeasurementTable {
	n := 0
	for _, t := range tables {
		n += len(t)
	}
	out := make(MeasurementTable, 0, n)
	for _, t := range tables {
		out = append(out, t...)
	}
	return out
}
