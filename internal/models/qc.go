package models

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrorType is the kind of synthetic misalignment applied to an image
type ErrorType string

const (
	Rotation    ErrorType = "rotation"
	Translation ErrorType = "translation"
)

// ParseErrorType accepts both the canonical names and the parameter names
// used in misaligned image filenames ("angle" and "offset").
func ParseErrorType(s string) (ErrorType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "rotation", "angle":
		return Rotation, nil
	case "translation", "offset":
		return Translation, nil
	}
	return "", fmt.Errorf("unknown error type %q", s)
}

// Unit returns the physical unit of the error magnitude
func (e ErrorType) Unit() string {
	if e == Rotation {
		return "degrees"
	}
	return "mm"
}

// MagnitudeValue converts an error magnitude such as "0,0,4" to the scalar used
// for ordering and plotting: the last comma-separated component.
func MagnitudeValue(magnitude string) (float64, error) {
	parts := strings.Split(magnitude, ",")
	v, err := strconv.ParseFloat(strings.TrimSpace(parts[len(parts)-1]), 64)
	if err != nil {
		return math.NaN(), fmt.Errorf("invalid error magnitude %q: %w", magnitude, err)
	}
	return v, nil
}

// CompareMagnitudes orders magnitudes by their scalar value, falling back to
// natural string order when either is not numeric.
func CompareMagnitudes(a, b string) int {
	va, errA := MagnitudeValue(a)
	vb, errB := MagnitudeValue(b)
	if errA == nil && errB == nil && va != vb {
		if va < vb {
			return -1
		}
		return 1
	}
	return NaturalCompare(a, b)
}

// MisalignmentRecord is the distance between one perturbed image and its reference
type MisalignmentRecord struct {
	Subject        string
	Condition      string
	ErrorType      ErrorType
	ErrorMagnitude string
	Metric         string
	Value          float64
}

// OutlierRecord is a MisalignmentRecord scored by one outlier measure
type OutlierRecord struct {
	MisalignmentRecord

	// Measure names the outlier-scoring function
	Measure string

	// Score is computed against a baseline that excludes the record's own subject
	Score float64
}

// Key identifies the record within an outlier table
func (o OutlierRecord) Key() string {
	return strings.Join([]string{
		string(o.ErrorType), o.ErrorMagnitude, o.Subject, o.Condition, o.Metric, o.Measure,
	}, "\x1f")
}

// ROCPoint is one (threshold, TPR, FPR) sample of a detection curve
type ROCPoint struct {
	ErrorType         ErrorType
	Measure           string
	Metric            string
	ErrorMagnitude    string
	Threshold         float64
	TruePositiveRate  float64
	FalsePositiveRate float64
}
