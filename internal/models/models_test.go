package models

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNaturalCompare(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"sub2", "sub10", -1},
		{"sub10", "sub2", 1},
		{"sub01", "sub1", 1},
		{"abc", "abc", 0},
		{"a", "ab", -1},
		{"roi9", "roi09", -1},
		{"0,0,8", "0,0,16", -1},
	}

	for _, tt := range tests {
		t.Run(tt.a+"_"+tt.b, func(t *testing.T) {
			assert.Equal(t, tt.want, NaturalCompare(tt.a, tt.b))
		})
	}
}

func TestGroupKeyOrdering(t *testing.T) {
	keys := []GroupKey{{"pet", "sub10"}, {"pet", "sub2"}, {"mri", "sub3"}}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })

	assert.Equal(t, []GroupKey{{"mri", "sub3"}, {"pet", "sub2"}, {"pet", "sub10"}}, keys)
}

func TestWithDefaults(t *testing.T) {
	r := MeasurementRow{Subject: "01", ROI: "2", Metric: MeanMetric}

	got := r.WithDefaults(false)
	assert.Equal(t, NA, got.Session)
	assert.Equal(t, NA, got.Acquisition)
	assert.Equal(t, "01", got.Subject)
	assert.Equal(t, "", got.Hemisphere)

	got = r.WithDefaults(true)
	assert.Equal(t, NA, got.Hemisphere)
	assert.Equal(t, "", r.Session, "original row must not change")
}

func TestDimensionSetAndOf(t *testing.T) {
	var r MeasurementRow
	for _, d := range IdentityDimensions {
		require.NoError(t, d.Set(&r, string(d)+"-v"))
		assert.Equal(t, string(d)+"-v", d.Of(r))
	}

	require.NoError(t, DimFrame.Set(&r, "3"))
	assert.Equal(t, 3, r.Frame)
	assert.Error(t, DimFrame.Set(&r, "x"))
	assert.Error(t, Dimension("bogus").Set(&r, "x"))
}

func TestParseFrame(t *testing.T) {
	for in, want := range map[string]int{"0": 0, "3": 3, "2.0": 2, " 7 ": 7} {
		got, err := ParseFrame(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	for _, in := range []string{"1.7", "-1", "NaN", "Inf", "x", ""} {
		_, err := ParseFrame(in)
		assert.Error(t, err, in)
	}
}

func TestMagnitudeValue(t *testing.T) {
	v, err := MagnitudeValue("0,0,16")
	require.NoError(t, err)
	assert.Equal(t, 16.0, v)

	_, err = MagnitudeValue("0,0,x")
	assert.Error(t, err)

	mags := []string{"0,0,16", "0,0,2", "0,0,0", "0,0,4"}
	sort.Slice(mags, func(i, j int) bool { return CompareMagnitudes(mags[i], mags[j]) < 0 })
	assert.Equal(t, []string{"0,0,0", "0,0,2", "0,0,4", "0,0,16"}, mags)
}

func TestParseErrorType(t *testing.T) {
	for in, want := range map[string]ErrorType{
		"angle": Rotation, "rotation": Rotation, "offset": Translation, "Translation": Translation,
	} {
		got, err := ParseErrorType(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseErrorType("shear")
	assert.Error(t, err)
}
