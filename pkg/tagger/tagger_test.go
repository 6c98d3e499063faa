package tagger

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"petqc/internal/errs"
	"petqc/internal/models"
	"petqc/pkg/table"
)

func TestMetaResolve(t *testing.T) {
	tests := []struct {
		name     string
		meta     Meta
		wantAcq  string
		wantRec  string
		wantTask string
	}{
		{
			name:     "parsed from filename",
			meta:     Meta{Source: "/data/sub-01_ses-1_acq-fdg_rec-OSEM_pet.mnc"},
			wantAcq:  "fdg",
			wantRec:  "OSEM",
			wantTask: models.NA,
		},
		{
			name:     "explicit wins",
			meta:     Meta{Acquisition: "rcl", Task: "rest", Source: "sub-01_acq-fdg_pet.mnc"},
			wantAcq:  "rcl",
			wantRec:  models.NA,
			wantTask: "rest",
		},
		{
			name:     "no sources",
			meta:     Meta{},
			wantAcq:  models.NA,
			wantRec:  models.NA,
			wantTask: models.NA,
		},
		{
			name:     "extension stripped from last token",
			meta:     Meta{Source: "sub-01_rec-FBP.nii.gz"},
			wantAcq:  models.NA,
			wantRec:  "FBP",
			wantTask: models.NA,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.meta.Resolve()
			assert.Equal(t, tt.wantAcq, got.Acquisition)
			assert.Equal(t, tt.wantRec, got.Reconstruction)
			assert.Equal(t, tt.wantTask, got.Task)
		})
	}
}

func TestTagRowSchemas(t *testing.T) {
	meta := Meta{Analysis: "results_pvc", Subject: "01"}.Resolve()

	row, err := TagRow([]string{"3", "12", "0", "1.25", "0.1", "2", "0.5", "900"}, meta, "raw", 1)
	require.NoError(t, err)
	assert.Equal(t, "12", row.ROI)
	assert.Equal(t, 1.25, row.Value)
	assert.Equal(t, models.MeanMetric, row.Metric)
	assert.Equal(t, "", row.Hemisphere)
	assert.Equal(t, 0, row.Frame)

	row, err = TagRow([]string{"Left", "3", "12", "4", "2.5", "0.1", "2", "0.5", "900"}, meta, "raw", 1)
	require.NoError(t, err)
	assert.Equal(t, "Left", row.Hemisphere)
	assert.Equal(t, 4, row.Frame)
	assert.Equal(t, 2.5, row.Value)

	row, err = TagRow([]string{"3", "12", "", "1", "0", "0", "0", "0"}, meta, "raw", 1)
	require.NoError(t, err)
	assert.Equal(t, 0, row.Frame, "missing frame defaults to 0")

	_, err = TagRow([]string{"3", "12", "0", "1"}, meta, "raw", 7)
	var schema *errs.SchemaMismatchError
	require.True(t, errors.As(err, &schema))
	assert.Equal(t, 7, schema.Line)
	assert.Equal(t, 4, schema.Columns)
}

func TestTagDeterministic(t *testing.T) {
	raw := "3,1,0,10,1,12,8,100\n3,2,0,20,1,22,18,100\n"
	meta := Meta{Analysis: "results", Subject: "02", Session: "b", Source: "sub-02_acq-fdg_pet.mnc"}

	render := func() []byte {
		rows, err := Tag(strings.NewReader(raw), "raw.csv", meta)
		require.NoError(t, err)
		require.Len(t, rows, 2)
		var buf bytes.Buffer
		require.NoError(t, table.WriteMeasurements(&buf, rows))
		return buf.Bytes()
	}

	first := render()
	assert.Equal(t, first, render(), "tagging must be byte-for-byte idempotent")
	assert.Contains(t, string(first), "results,02,b,NA,NA,fdg,NA,1,mean,10,0")
}

func TestTagRejectsMixedSchemas(t *testing.T) {
	raw := "3,1,0,10,1,12,8,100\nLeft,3,2,0,20,1,22,18,100\n"
	_, err := Tag(strings.NewReader(raw), "raw.csv", Meta{Subject: "01"})
	var schema *errs.SchemaMismatchError
	assert.True(t, errors.As(err, &schema))
}

func TestTagRejectsDuplicateRows(t *testing.T) {
	raw := "3,1,0,10,1,12,8,100\n3,1,0,11,1,12,8,100\n"
	_, err := Tag(strings.NewReader(raw), "raw.csv", Meta{Subject: "01"})
	var dup *errs.DuplicateKeyError
	assert.True(t, errors.As(err, &dup))
}

func TestTagRejectsFractionalFrames(t *testing.T) {
	raw := "4,1,1.7,10,1,12,8,100\n4,1,1.2,11,1,12,8,100\n"
	_, err := Tag(strings.NewReader(raw), "raw.csv", Meta{Subject: "01"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "raw.csv:1")
	assert.Contains(t, err.Error(), `invalid frame "1.7"`)
	var dup *errs.DuplicateKeyError
	assert.False(t, errors.As(err, &dup), "a bad frame must not surface as a duplicate")

	rows, err := Tag(strings.NewReader("4,1,2.0,10,1,12,8,100\n"), "raw.csv", Meta{Subject: "01"})
	require.NoError(t, err)
	assert.Equal(t, 2, rows[0].Frame)
}
