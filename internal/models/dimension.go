package models

import (
	"fmt"
	"strconv"
	"strings"
)

// Dimension names a column of a MeasurementTable that rows can be grouped by.
// The string values are the column names used in the CSV artifacts.
type Dimension string

const (
	DimAnalysis       Dimension = "analysis"
	DimSubject        Dimension = "sub"
	DimSession        Dimension = "ses"
	DimTask           Dimension = "task"
	DimRun            Dimension = "run"
	DimAcquisition    Dimension = "acq"
	DimReconstruction Dimension = "rec"
	DimROI            Dimension = "roi"
	DimHemisphere     Dimension = "hemisphere"
	DimMetric         Dimension = "metric"
	DimFrame          Dimension = "frame"
)

// Of returns the value of the dimension for row r
func (d Dimension) Of(r MeasurementRow) string {
	switch d {
	case DimAnalysis:
		return r.Analysis
	case DimSubject:
		return r.Subject
	case DimSession:
		return r.Session
	case DimTask:
		return r.Task
	case DimRun:
		return r.Run
	case DimAcquisition:
		return r.Acquisition
	case DimReconstruction:
		return r.Reconstruction
	case DimROI:
		return r.ROI
	case DimHemisphere:
		return r.Hemisphere
	case DimMetric:
		return r.Metric
	case DimFrame:
		return strconv.Itoa(r.Frame)
	}
	return ""
}

// Set assigns value to the dimension of r
func (d Dimension) Set(r *MeasurementRow, value string) error {
	switch d {
	case DimAnalysis:
		r.Analysis = value
	case DimSubject:
		r.Subject = value
	case DimSession:
		r.Session = value
	case DimTask:
		r.Task = value
	case DimRun:
		r.Run = value
	case DimAcquisition:
		r.Acquisition = value
	case DimReconstruction:
		r.Reconstruction = value
	case DimROI:
		r.ROI = value
	case DimHemisphere:
		r.Hemisphere = value
	case DimMetric:
		r.Metric = value
	case DimFrame:
		f, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid frame %q: %w", value, err)
		}
		r.Frame = f
	default:
		return fmt.Errorf("unknown dimension %q", string(d))
	}
	return nil
}

// IdentityDimensions lists every identifying column except frame, in artifact column order
var IdentityDimensions = []Dimension{
	DimAnalysis, DimSubject, DimSession, DimTask, DimRun,
	DimAcquisition, DimReconstruction, DimROI, DimHemisphere, DimMetric,
}

// GroupKey is the tuple of dimension values identifying a group
type GroupKey []string

// KeyOf extracts the values of dims from r
func KeyOf(r MeasurementRow, dims []Dimension) GroupKey {
	key := make(GroupKey, len(dims))
	for i, d := range dims {
		key[i] = d.Of(r)
	}
	return key
}

// String joins the key with a separator that cannot appear in identifiers
func (k GroupKey) String() string {
	return strings.Join(k, "\x1f")
}

// Less orders keys element-wise using natural ordering
func (k GroupKey) Less(o GroupKey) bool {
	for i := 0; i < len(k) && i < len(o); i++ {
		if c := NaturalCompare(k[i], o[i]); c != 0 {
			return c < 0
		}
	}
	return len(k) < len(o)
}
