// Package roc sweeps outlier-score thresholds and traces detection curves.
package roc

import (
	"log/slog"
	"sort"

	"petqc/internal/errs"
	"petqc/internal/models"
)

// Positive reports whether a score is flagged at threshold. A score equal to
// the threshold is not flagged.
func Positive(score, threshold float64) bool {
	return score > threshold
}

// Rate is the fraction of scores flagged at threshold
func Rate(scores []float64, threshold float64) float64 {
	if len(scores) == 0 {
		return 0
	}
	flagged := 0
	for _, s := range scores {
		if Positive(s, threshold) {
			flagged++
		}
	}
	return float64(flagged) / float64(len(scores))
}

// Result is the outcome of an evaluation. Warnings name the groups that were
// skipped because they had no normal records.
type Result struct {
	Points   []models.ROCPoint
	Warnings []*errs.EmptyGroupWarning
}

// Evaluator builds ROC points from scored records
type Evaluator struct {
	logger *slog.Logger
}

// NewEvaluator creates an evaluator. A nil logger uses slog.Default().
func NewEvaluator(logger *slog.Logger) *Evaluator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Evaluator{logger: logger}
}

type groupKey struct {
	errorType models.ErrorType
	measure   string
	metric    string
}

type group struct {
	normal     []float64
	misaligned map[string][]float64
}

// collect groups scores by (error type, measure, metric) and returns the
// keys in output order.
func collect(records []models.OutlierRecord, normalMagnitude string) (map[groupKey]*group, []groupKey) {
	groups := make(map[groupKey]*group)
	for _, r := range records {
		k := groupKey{errorType: r.ErrorType, measure: r.Measure, metric: r.Metric}
		g, ok := groups[k]
		if !ok {
			g = &group{misaligned: make(map[string][]float64)}
			groups[k] = g
		}
		if r.ErrorMagnitude == normalMagnitude {
			g.normal = append(g.normal, r.Score)
		} else {
			g.misaligned[r.ErrorMagnitude] = append(g.misaligned[r.ErrorMagnitude], r.Score)
		}
	}

	keys := make([]groupKey, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if a.errorType != b.errorType {
			return a.errorType < b.errorType
		}
		if a.measure != b.measure {
			return a.measure < b.measure
		}
		return models.NaturalCompare(a.metric, b.metric) < 0
	})
	return groups, keys
}

func skipped(k groupKey) *errs.EmptyGroupWarning {
	return &errs.EmptyGroupWarning{
		Stage: "roc",
		Group: errs.FormatKey(string(k.errorType), k.measure, k.metric),
		What:  "normal records",
	}
}

// SkippedGroups lists the groups Evaluate skips for lack of normal records,
// in the same order as Evaluate reports them.
func SkippedGroups(records []models.OutlierRecord, normalMagnitude string) []*errs.EmptyGroupWarning {
	groups, keys := collect(records, normalMagnitude)
	var out []*errs.EmptyGroupWarning
	for _, k := range keys {
		if len(groups[k].normal) == 0 {
			out = append(out, skipped(k))
		}
	}
	return out
}

// Evaluate emits, per (error type, measure, metric) group, one point for each
// non-normal magnitude and each of the measure's thresholds, in configured
// threshold order. Groups are ordered by error type, measure and metric and
// magnitudes by their numeric value.
func (e *Evaluator) Evaluate(records []models.OutlierRecord, thresholds map[string][]float64, normalMagnitude string) (Result, error) {
	for _, r := range records {
		if _, ok := thresholds[r.Measure]; !ok {
			return Result{}, &errs.UnknownNameError{Kind: "outlier measure thresholds", Name: r.Measure}
		}
	}
	groups, keys := collect(records, normalMagnitude)

	var res Result
	for _, k := range keys {
		g := groups[k]
		if len(g.normal) == 0 {
			w := skipped(k)
			e.logger.Warn("skipping ROC group", slog.String("warning", w.Error()))
			res.Warnings = append(res.Warnings, w)
			continue
		}

		magnitudes := make([]string, 0, len(g.misaligned))
		for m := range g.misaligned {
			magnitudes = append(magnitudes, m)
		}
		sort.Slice(magnitudes, func(i, j int) bool {
			return models.CompareMagnitudes(magnitudes[i], magnitudes[j]) < 0
		})

		for _, mag := range magnitudes {
			for _, t := range thresholds[k.measure] {
				res.Points = append(res.Points, models.ROCPoint{
					ErrorType:         k.errorType,
					Measure:           k.measure,
					Metric:            k.metric,
					ErrorMagnitude:    mag,
					Threshold:         t,
					TruePositiveRate:  Rate(g.misaligned[mag], t),
					FalsePositiveRate: Rate(g.normal, t),
				})
			}
		}
	}

	e.logger.Debug("evaluated ROC curves",
		slog.Int("groups", len(groups)), slog.Int("points", len(res.Points)), slog.Int("skipped", len(res.Warnings)))
	return res, nil
}
