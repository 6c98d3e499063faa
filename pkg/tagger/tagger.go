// Package tagger turns raw per-ROI statistics rows into tagged measurement rows.
//
// The raw statistics file is headerless and positional. Its canonical schema
// has 8 columns:
//
//	ndim, roi, frame, mean, sd, max, min, vol
//
// Surface statistics prepend a hemisphere column, giving 9. The schema is
// detected from the column count alone.
package tagger

import (
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"petqc/internal/errs"
	"petqc/internal/models"
)

// Column positions within the canonical 8-column schema
const (
	colNDim = iota
	colROI
	colFrame
	colMean
	colSD
	colMax
	colMin
	colVol

	canonicalColumns
)

// Meta carries the identifiers attached to every row of one statistics file
type Meta struct {
	// Analysis is the name of the node that produced the statistics
	Analysis string

	Subject        string
	Session        string
	Task           string
	Run            string
	Acquisition    string
	Reconstruction string

	// Source is the image filename; acq-/rec- tokens are parsed from it when
	// Acquisition or Reconstruction are not supplied
	Source string
}

// Resolve fills Acquisition and Reconstruction from Source when not supplied
// and sets every still-missing identifier to NA.
func (m Meta) Resolve() Meta {
	if isUnset(m.Acquisition) {
		m.Acquisition = filenameToken(m.Source, "acq-")
	}
	if isUnset(m.Reconstruction) {
		m.Reconstruction = filenameToken(m.Source, "rec-")
	}
	for _, f := range []*string{&m.Analysis, &m.Subject, &m.Session, &m.Task, &m.Run, &m.Acquisition, &m.Reconstruction} {
		if isUnset(*f) {
			*f = models.NA
		}
	}
	return m
}

func isUnset(s string) bool {
	s = strings.TrimSpace(s)
	return s == "" || s == models.NA
}

// filenameToken returns the value of the first "_"-separated token of the
// file's base name that starts with prefix, or "" when there is none.
func filenameToken(path, prefix string) string {
	if path == "" {
		return ""
	}
	for _, tok := range strings.Split(filepath.Base(path), "_") {
		if !strings.HasPrefix(tok, prefix) {
			continue
		}
		v := strings.TrimPrefix(tok, prefix)
		if i := strings.IndexByte(v, '.'); i >= 0 {
			v = v[:i]
		}
		if v != "" {
			return v
		}
	}
	return ""
}

// TagRow converts one raw statistics row. meta must already be resolved.
func TagRow(fields []string, meta Meta, source string, line int) (models.MeasurementRow, error) {
	var hemisphere string
	switch len(fields) {
	case canonicalColumns:
	case canonicalColumns + 1:
		hemisphere = strings.TrimSpace(fields[0])
		fields = fields[1:]
	default:
		return models.MeasurementRow{}, &errs.SchemaMismatchError{
			Source: source, Line: line, Columns: len(fields), Want: []int{canonicalColumns, canonicalColumns + 1},
		}
	}

	mean, err := strconv.ParseFloat(strings.TrimSpace(fields[colMean]), 64)
	if err != nil {
		return models.MeasurementRow{}, fmt.Errorf("%s:%d: invalid mean %q: %w", source, line, fields[colMean], err)
	}

	frame := 0
	if f := strings.TrimSpace(fields[colFrame]); f != "" {
		v, err := models.ParseFrame(f)
		if err != nil {
			return models.MeasurementRow{}, fmt.Errorf("%s:%d: %w", source, line, err)
		}
		frame = v
	}

	return models.MeasurementRow{
		Analysis:       meta.Analysis,
		Subject:        meta.Subject,
		Session:        meta.Session,
		Task:           meta.Task,
		Run:            meta.Run,
		Acquisition:    meta.Acquisition,
		Reconstruction: meta.Reconstruction,
		ROI:            strings.TrimSpace(fields[colROI]),
		Hemisphere:     hemisphere,
		Metric:         models.MeanMetric,
		Value:          mean,
		Frame:          frame,
	}, nil
}

// Tag reads a whole raw statistics file and tags every row with meta.
// All rows of one file must share a schema.
func Tag(r io.Reader, source string, meta Meta) (models.MeasurementTable, error) {
	meta = meta.Resolve()

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", source, err)
	}

	out := make(models.MeasurementTable, 0, len(records))
	seen := make(map[string]struct{}, len(records))
	for i, rec := range records {
		if i > 0 && len(rec) != len(records[0]) {
			return nil, &errs.SchemaMismatchError{
				Source: source, Line: i + 1, Columns: len(rec), Want: []int{len(records[0])},
			}
		}
		row, err := TagRow(rec, meta, source, i+1)
		if err != nil {
			return nil, err
		}
		key := row.Key()
		if _, dup := seen[key]; dup {
			return nil, &errs.DuplicateKeyError{Table: source, Key: key}
		}
		seen[key] = struct{}{}
		out = append(out, row)
	}
	return out, nil
}
