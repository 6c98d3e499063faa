package models

// GroupedRow is the mean of one group of a GroupedTable
type GroupedRow struct {
	Key   GroupKey
	Value float64
	Count int
}

// GroupedTable holds one pivot of a MeasurementTable: the mean value per
// distinct tuple of Dimensions, ordered naturally by key.
type GroupedTable struct {
	Name       string
	Dimensions []Dimension
	Rows       []GroupedRow
}
