package table

import (
	"io"

	"petqc/internal/models"
)

var (
	misalignmentColumns = []string{"Subject", "Condition", "ErrorType", "Error", "Metric", "Value"}
	outlierColumns      = append(append([]string(nil), misalignmentColumns...), "Measure", "Score")
	rocColumns          = []string{"ErrorType", "Measure", "Metric", "Error", "Threshold", "FalsePositive", "TruePositive"}
)

func misalignmentRecord(m models.MisalignmentRecord) []string {
	return []string{m.Subject, m.Condition, string(m.ErrorType), m.ErrorMagnitude, m.Metric, formatFloat(m.Value)}
}

// MisalignmentSheet renders a distance-metric table
func MisalignmentSheet(name string, recs []models.MisalignmentRecord) Sheet {
	rows := make([][]string, len(recs))
	for i, m := range recs {
		rows[i] = misalignmentRecord(m)
	}
	return Sheet{Name: name, Header: misalignmentColumns, Rows: rows}
}

// WriteMisalignment writes a distance-metric table as CSV
func WriteMisalignment(w io.Writer, recs []models.MisalignmentRecord) error {
	return MisalignmentSheet("metric", recs).WriteCSV(w)
}

func parseMisalignment(cols map[string]int, rec []string, source string, line int) (models.MisalignmentRecord, error) {
	et, err := models.ParseErrorType(rec[cols["ErrorType"]])
	if err != nil {
		return models.MisalignmentRecord{}, err
	}
	v, err := parseFloat(source, line, "Value", rec[cols["Value"]])
	if err != nil {
		return models.MisalignmentRecord{}, err
	}
	return models.MisalignmentRecord{
		Subject:        rec[cols["Subject"]],
		Condition:      rec[cols["Condition"]],
		ErrorType:      et,
		ErrorMagnitude: rec[cols["Error"]],
		Metric:         rec[cols["Metric"]],
		Value:          v,
	}, nil
}

// ReadMisalignment parses a distance-metric table
func ReadMisalignment(r io.Reader, source string) ([]models.MisalignmentRecord, error) {
	cols, rows, err := readSheet(r, source, misalignmentColumns...)
	if err != nil {
		return nil, err
	}
	out := make([]models.MisalignmentRecord, 0, len(rows))
	for i, rec := range rows {
		m, err := parseMisalignment(cols, rec, source, i+2)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

// OutlierSheet renders an outlier-score table
func OutlierSheet(name string, recs []models.OutlierRecord) Sheet {
	rows := make([][]string, len(recs))
	for i, o := range recs {
		rows[i] = append(misalignmentRecord(o.MisalignmentRecord), o.Measure, formatFloat(o.Score))
	}
	return Sheet{Name: name, Header: outlierColumns, Rows: rows}
}

// WriteOutliers writes an outlier-score table as CSV
func WriteOutliers(w io.Writer, recs []models.OutlierRecord) error {
	return OutlierSheet("outliers", recs).WriteCSV(w)
}

// ReadOutliers parses an outlier-score table
func ReadOutliers(r io.Reader, source string) ([]models.OutlierRecord, error) {
	cols, rows, err := readSheet(r, source, outlierColumns...)
	if err != nil {
		return nil, err
	}
	out := make([]models.OutlierRecord, 0, len(rows))
	for i, rec := range rows {
		m, err := parseMisalignment(cols, rec, source, i+2)
		if err != nil {
			return nil, err
		}
		score, err := parseFloat(source, i+2, "Score", rec[cols["Score"]])
		if err != nil {
			return nil, err
		}
		out = append(out, models.OutlierRecord{MisalignmentRecord: m, Measure: rec[cols["Measure"]], Score: score})
	}
	return out, nil
}

// ROCSheet renders an ROC table
func ROCSheet(name string, points []models.ROCPoint) Sheet {
	rows := make([][]string, len(points))
	for i, p := range points {
		rows[i] = []string{
			string(p.ErrorType), p.Measure, p.Metric, p.ErrorMagnitude,
			formatFloat(p.Threshold), formatFloat(p.FalsePositiveRate), formatFloat(p.TruePositiveRate),
		}
	}
	return Sheet{Name: name, Header: rocColumns, Rows: rows}
}

// WriteROC writes an ROC table as CSV
func WriteROC(w io.Writer, points []models.ROCPoint) error {
	return ROCSheet("roc", points).WriteCSV(w)
}

// ReadROC parses an ROC table
func ReadROC(r io.Reader, source string) ([]models.ROCPoint, error) {
	cols, rows, err := readSheet(r, source, rocColumns...)
	if err != nil {
		return nil, err
	}
	out := make([]models.ROCPoint, 0, len(rows))
	for i, rec := range rows {
		line := i + 2
		et, err := models.ParseErrorType(rec[cols["ErrorType"]])
		if err != nil {
			return nil, err
		}
		p := models.ROCPoint{
			ErrorType:      et,
			Measure:        rec[cols["Measure"]],
			Metric:         rec[cols["Metric"]],
			ErrorMagnitude: rec[cols["Error"]],
		}
		if p.Threshold, err = parseFloat(source, line, "Threshold", rec[cols["Threshold"]]); err != nil {
			return nil, err
		}
		if p.FalsePositiveRate, err = parseFloat(source, line, "FalsePositive", rec[cols["FalsePositive"]]); err != nil {
			return nil, err
		}
		if p.TruePositiveRate, err = parseFloat(source, line, "TruePositive", rec[cols["TruePositive"]]); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}
