package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Stage outcomes recorded by Telemetry
const (
	OutcomeComputed = "computed"
	OutcomeCached   = "cached"
	OutcomeFailed   = "failed"
)

// Telemetry collects per-stage counters for one process. Runs are batch
// jobs, so the metrics are exported as a node-exporter textfile rather than
// scraped.
type Telemetry struct {
	registry *prometheus.Registry

	stageRuns     *prometheus.CounterVec
	stageDuration *prometheus.HistogramVec
	stageRecords  *prometheus.GaugeVec
}

// NewTelemetry creates collectors on a private registry
func NewTelemetry() *Telemetry {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Telemetry{
		registry: reg,
		stageRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "petqc",
			Name:      "stage_runs_total",
			Help:      "Stage executions by outcome.",
		}, []string{"stage", "outcome"}),
		stageDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "petqc",
			Name:      "stage_duration_seconds",
			Help:      "Wall time spent producing or loading a stage artifact.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		}, []string{"stage"}),
		stageRecords: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "petqc",
			Name:      "stage_records",
			Help:      "Records in the most recent artifact of a stage.",
		}, []string{"stage"}),
	}
}

// WriteTextfile writes every collected metric in the text exposition format
func (t *Telemetry) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, t.registry)
}

func (t *Telemetry) observe(stage, outcome string, seconds float64, records int) {
	t.stageRuns.WithLabelValues(stage, outcome).Inc()
	t.stageDuration.WithLabelValues(stage).Observe(seconds)
	if outcome != OutcomeFailed {
		t.stageRecords.WithLabelValues(stage).Set(float64(records))
	}
}
