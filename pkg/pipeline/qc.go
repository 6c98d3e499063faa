package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"petqc/internal/errs"
	"petqc/internal/models"
	"petqc/pkg/metric"
	"petqc/pkg/outlier"
	"petqc/pkg/roc"
	"petqc/pkg/table"
	"petqc/pkg/visualization"
)

// QCResult holds the three QC tables of a run
type QCResult struct {
	Metrics  []models.MisalignmentRecord
	Outliers []models.OutlierRecord
	ROC      []models.ROCPoint

	// Warnings lists ROC groups skipped for lack of normal records, whether
	// the ROC table was computed or reused
	Warnings []*errs.EmptyGroupWarning

	// Artifacts lists every file published by the run
	Artifacts []string
}

// OutlierPlotName is the file name of the outlier score chart
const OutlierPlotName = "outlier_measures.png"

// MetricTableName is the distance-metric table of a run
func MetricTableName(label string) string {
	return fmt.Sprintf("test_group_qc_%s_metric.csv", label)
}

// OutlierTableName is the outlier-score table of a run
func OutlierTableName(label string) string {
	return fmt.Sprintf("test_group_qc_%s_outliers.csv", label)
}

// ROCTableName is the ROC table of a run
func ROCTableName(label string) string {
	return fmt.Sprintf("test_group_qc_%s_roc.csv", label)
}

// WorkbookName is the optional XLSX export of a run
func WorkbookName(label string) string {
	return fmt.Sprintf("%s_qc.xlsx", label)
}

// manifestInputs lists every file a QC manifest refers to, the manifest first
func manifestInputs(path string, m *metric.Manifest) []string {
	out := []string{path}
	for _, s := range m.Subjects {
		for _, p := range []string{s.PET, s.Reference, s.Mask} {
			if p != "" {
				out = append(out, p)
			}
		}
		out = append(out, s.Misaligned...)
	}
	return out
}

// RunQC evaluates the configured distance metrics for every image of the
// manifest, scores them for outlierness and sweeps the ROC thresholds.
func (r *Runner) RunQC(ctx context.Context, manifestPath string) (QCResult, error) {
	label := r.cfg.Output.Label
	qc := r.cfg.QC

	manifest, err := metric.LoadManifest(manifestPath)
	if err != nil {
		return QCResult{}, err
	}

	var res QCResult

	p, err := params(qc.DistanceMetrics, qc.NormalMagnitude, qc.ExternalMetrics, qc.Rotations, qc.Translations)
	if err != nil {
		return QCResult{}, err
	}
	metricsPath := r.artifact(MetricTableName(label))
	res.Metrics, err = runStage(ctx, r, stage[[]models.MisalignmentRecord]{
		name:   "distance_metrics",
		output: metricsPath,
		inputs: manifestInputs(manifestPath, manifest),
		params: p,
		compute: func(ctx context.Context) ([]models.MisalignmentRecord, error) {
			e, err := metric.NewEvaluator(r.metrics, qc.DistanceMetrics, qc.NormalMagnitude, r.cfg.Processing.NumCores, r.logger)
			if err != nil {
				return nil, err
			}
			e.ExpectMagnitudes(models.Rotation, qc.Rotations)
			e.ExpectMagnitudes(models.Translation, qc.Translations)
			return e.Evaluate(ctx, manifest)
		},
		write: table.WriteMisalignment,
		read:  table.ReadMisalignment,
		count: func(v []models.MisalignmentRecord) int { return len(v) },
	})
	if err != nil {
		return QCResult{}, err
	}
	res.Artifacts = append(res.Artifacts, metricsPath)

	measures := r.measureNames()
	p, err = params(measures, qc.NormalMagnitude, qc.MADScale, qc.RelativeFloor)
	if err != nil {
		return QCResult{}, err
	}
	outliersPath := r.artifact(OutlierTableName(label))
	res.Outliers, err = runStage(ctx, r, stage[[]models.OutlierRecord]{
		name:   "outliers",
		output: outliersPath,
		inputs: []string{metricsPath},
		params: p,
		compute: func(ctx context.Context) ([]models.OutlierRecord, error) {
			return outlier.NewScorer(r.measures, qc.NormalMagnitude, r.logger).Score(res.Metrics, measures)
		},
		write: table.WriteOutliers,
		read:  table.ReadOutliers,
		count: func(v []models.OutlierRecord) int { return len(v) },
	})
	if err != nil {
		return QCResult{}, err
	}
	res.Artifacts = append(res.Artifacts, outliersPath)

	thresholds := r.cfg.Thresholds()
	p, err = params(thresholds, qc.NormalMagnitude)
	if err != nil {
		return QCResult{}, err
	}
	rocPath := r.artifact(ROCTableName(label))
	computed := false
	res.ROC, err = runStage(ctx, r, stage[[]models.ROCPoint]{
		name:   "roc",
		output: rocPath,
		inputs: []string{outliersPath},
		params: p,
		compute: func(ctx context.Context) ([]models.ROCPoint, error) {
			out, err := roc.NewEvaluator(r.logger).Evaluate(res.Outliers, thresholds, qc.NormalMagnitude)
			if err != nil {
				return nil, err
			}
			computed = true
			return out.Points, nil
		},
		write: table.WriteROC,
		read:  table.ReadROC,
		count: func(v []models.ROCPoint) int { return len(v) },
	})
	if err != nil {
		return QCResult{}, err
	}
	res.Artifacts = append(res.Artifacts, rocPath)

	res.Warnings = roc.SkippedGroups(res.Outliers, qc.NormalMagnitude)
	if !computed {
		for _, w := range res.Warnings {
			r.logger.Warn("skipping ROC group", slog.String("warning", w.Error()))
		}
	}

	if r.cfg.Output.WriteWorkbook {
		path := r.artifact(WorkbookName(label))
		err := table.WriteWorkbook(path,
			table.MisalignmentSheet("metric", res.Metrics),
			table.OutlierSheet("outliers", res.Outliers),
			table.ROCSheet("roc", res.ROC),
		)
		if err != nil {
			return QCResult{}, err
		}
		res.Artifacts = append(res.Artifacts, path)
	}

	if r.cfg.Output.RenderPlots {
		paths, err := visualization.RenderROC(res.ROC, r.cfg.Output.Dir)
		if err != nil {
			return QCResult{}, err
		}
		res.Artifacts = append(res.Artifacts, paths...)

		path := r.artifact(OutlierPlotName)
		if err := visualization.RenderOutliers(res.Outliers, path); err != nil {
			return QCResult{}, err
		}
		res.Artifacts = append(res.Artifacts, path)
	}

	r.logger.Info("QC run complete",
		slog.Int("metrics", len(res.Metrics)),
		slog.Int("outliers", len(res.Outliers)),
		slog.Int("roc_points", len(res.ROC)),
		slog.Int("skipped_groups", len(res.Warnings)))
	return res, nil
}
