// Package pipeline wires the result, TAC and QC stages together. Each stage
// publishes one artifact and is skipped on rerun when neither its inputs nor
// its parameters changed.
package pipeline

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"petqc/pkg/cache"
	"petqc/pkg/config"
	"petqc/pkg/metric"
	"petqc/pkg/outlier"
)

// Runner executes stages for one configuration
type Runner struct {
	cfg       *config.Config
	store     *cache.Store
	logger    *slog.Logger
	telemetry *Telemetry

	metrics  *metric.Registry
	measures *outlier.Registry

	runID string
}

// NewRunner creates a runner. store may be nil, in which case every stage is
// recomputed. External metrics from the configuration are registered next to
// the built-in ones.
func NewRunner(cfg *config.Config, store *cache.Store, logger *slog.Logger) (*Runner, error) {
	if logger == nil {
		logger = slog.Default()
	}

	metrics := metric.DefaultRegistry()
	for _, m := range cfg.QC.ExternalMetrics {
		if err := metrics.Register(m.Name, metric.CommandMetric{Command: m.Command, Args: m.Args}); err != nil {
			return nil, err
		}
	}

	runID := uuid.NewString()
	return &Runner{
		cfg:       cfg,
		store:     store,
		logger:    logger.With(slog.String("run_id", runID)),
		telemetry: NewTelemetry(),
		metrics:   metrics,
		measures:  outlier.DefaultRegistry(cfg.QC.MADScale, cfg.QC.RelativeFloor),
		runID:     runID,
	}, nil
}

// RunID identifies this runner in logs
func (r *Runner) RunID() string {
	return r.runID
}

// Telemetry returns the runner's stage metrics
func (r *Runner) Telemetry() *Telemetry {
	return r.telemetry
}

// Metrics returns the distance-metric registry
func (r *Runner) Metrics() *metric.Registry {
	return r.metrics
}

// artifact returns the published path of a file name in the output directory
func (r *Runner) artifact(name string) string {
	return filepath.Join(r.cfg.Output.Dir, name)
}

// measureNames lists the configured measures in a stable order
func (r *Runner) measureNames() []string {
	names := make([]string, 0, len(r.cfg.QC.Measures))
	for name := range r.cfg.QC.Measures {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// params serializes stage parameters for fingerprinting
func params(values ...interface{}) ([][]byte, error) {
	out := make([][]byte, len(values))
	for i, v := range values {
		data, err := yaml.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("serialize stage parameters: %w", err)
		}
		out[i] = data
	}
	return out, nil
}
