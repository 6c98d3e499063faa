package outlier

import (
	"fmt"
	"log/slog"

	"petqc/internal/errs"
	"petqc/internal/models"
)

// Scorer computes one outlier score per (record, measure)
type Scorer struct {
	measures        *Registry
	normalMagnitude string
	logger          *slog.Logger
}

// NewScorer creates a scorer. normalMagnitude identifies the records that
// form the baseline population.
func NewScorer(measures *Registry, normalMagnitude string, logger *slog.Logger) *Scorer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scorer{measures: measures, normalMagnitude: normalMagnitude, logger: logger}
}

type baselineKey struct {
	errorType models.ErrorType
	metric    string
}

type observation struct {
	subject string
	value   float64
}

// Score scores every record with every named measure. Records at the normal
// magnitude are scored too, so their rate of false alarms can be measured.
//
// The baseline of a record is the normal-magnitude values of the same error
// type and metric from every other subject; the record's own subject never
// contributes. Output is ordered by measure, then by input record order.
func (s *Scorer) Score(records []models.MisalignmentRecord, measureNames []string) ([]models.OutlierRecord, error) {
	measures := make([]Measure, len(measureNames))
	for i, name := range measureNames {
		m, err := s.measures.Lookup(name)
		if err != nil {
			return nil, err
		}
		measures[i] = m
	}

	seen := make(map[string]struct{}, len(records))
	normals := make(map[baselineKey][]observation)
	for _, r := range records {
		key := models.OutlierRecord{MisalignmentRecord: r}.Key()
		if _, dup := seen[key]; dup {
			return nil, &errs.DuplicateKeyError{Table: "misalignment metrics", Key: key}
		}
		seen[key] = struct{}{}

		if r.ErrorMagnitude == s.normalMagnitude {
			bk := baselineKey{errorType: r.ErrorType, metric: r.Metric}
			normals[bk] = append(normals[bk], observation{subject: r.Subject, value: r.Value})
		}
	}

	// the series only depends on the record, not the measure
	series := make([][]float64, len(records))
	for i, r := range records {
		pool := normals[baselineKey{errorType: r.ErrorType, metric: r.Metric}]
		values := make([]float64, 0, len(pool)+1)
		for _, o := range pool {
			if o.subject != r.Subject {
				values = append(values, o.value)
			}
		}
		if len(values) == 0 {
			return nil, &errs.EmptyGroupWarning{
				Stage: "outlier score",
				Group: errs.FormatKey(string(r.ErrorType), r.ErrorMagnitude, r.Subject, r.Condition, r.Metric),
				What:  "normal baseline from other subjects",
			}
		}
		series[i] = append(values, r.Value)
	}

	out := make([]models.OutlierRecord, len(measures)*len(records))
	for mi, m := range measures {
		for ri, r := range records {
			score, err := m.Score(series[ri], len(series[ri])-1)
			if err != nil {
				return nil, fmt.Errorf("%s score for %s: %w", measureNames[mi],
					errs.FormatKey(string(r.ErrorType), r.ErrorMagnitude, r.Subject, r.Metric), err)
			}
			out[mi*len(records)+ri] = models.OutlierRecord{
				MisalignmentRecord: r,
				Measure:            measureNames[mi],
				Score:              score,
			}
		}
	}

	s.logger.Debug("scored misalignment records",
		slog.Int("records", len(records)), slog.Int("measures", len(measures)), slog.Int("scores", len(out)))
	return out, nil
}
