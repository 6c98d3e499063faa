// Package tac integrates time-activity curves into one value per region.
package tac

import (
	"fmt"
	"log/slog"
	"sort"

	"gonum.org/v1/gonum/integrate"

	"petqc/internal/errs"
	"petqc/internal/models"
)

// Integrator collapses per-frame measurements into time integrals
type Integrator struct {
	// TimeReference selects the frame start or midpoint as sample time
	TimeReference string

	logger *slog.Logger
}

// NewIntegrator creates an integrator. A nil logger uses slog.Default().
func NewIntegrator(timeReference string, logger *slog.Logger) *Integrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Integrator{TimeReference: timeReference, logger: logger}
}

type sample struct {
	frame int
	value float64
}

type partition struct {
	row     models.MeasurementRow
	samples []sample
}

// Integrate partitions t by every identifying column except frame and
// integrates value over the frame times of timing, one row per partition.
// Missing identifiers are filled with NA first so they form their own group.
func (in *Integrator) Integrate(t models.MeasurementTable, timing Timing) (models.MeasurementTable, error) {
	fillHemi := t.HasHemisphere()

	parts := make(map[string]*partition)
	order := make([]models.GroupKey, 0)
	for _, r := range t {
		r = r.WithDefaults(fillHemi)
		key := models.KeyOf(r, models.IdentityDimensions)
		id := key.String()
		p, ok := parts[id]
		if !ok {
			p = &partition{row: r}
			parts[id] = p
			order = append(order, key)
		}
		p.samples = append(p.samples, sample{frame: r.Frame, value: r.Value})
	}
	sort.Slice(order, func(i, j int) bool { return order[i].Less(order[j]) })

	times := timing.Times(in.TimeReference)
	out := make(models.MeasurementTable, 0, len(parts))
	// integrated row key -> metric it was integrated from
	seen := make(map[string]string, len(parts))
	for _, key := range order {
		p := parts[key.String()]
		group := errs.FormatKey(key...)

		value, err := in.integrate(group, p.samples, times, timing.Available)
		if err != nil {
			return nil, err
		}

		row := p.row
		row.Metric = models.IntegralMetric
		row.Frame = models.IntegratedFrame
		row.Value = value

		if prev, dup := seen[row.Key()]; dup {
			return nil, &errs.DuplicateKeyError{
				Table: "integrated TAC",
				Key: fmt.Sprintf("%s (metrics %s and %s both integrate to %s)",
					row.Key(), prev, p.row.Metric, models.IntegralMetric),
			}
		}
		seen[row.Key()] = p.row.Metric
		out = append(out, row)
	}

	in.logger.Debug("integrated time-activity curves",
		slog.Int("rows", len(t)), slog.Int("groups", len(out)), slog.Bool("timing", timing.Available))
	return out, nil
}

func (in *Integrator) integrate(group string, samples []sample, times []float64, available bool) (float64, error) {
	sort.Slice(samples, func(i, j int) bool { return samples[i].frame < samples[j].frame })
	for i := 1; i < len(samples); i++ {
		if samples[i].frame == samples[i-1].frame {
			return 0, &errs.DuplicateKeyError{Table: "TAC " + group, Key: fmt.Sprintf("frame %d", samples[i].frame)}
		}
	}

	if !available {
		if len(samples) > 1 {
			in.logger.Warn("frame timing unavailable, using first frame only",
				slog.String("group", group), slog.Int("frames", len(samples)))
		}
		return samples[0].value * times[0], nil
	}

	if len(times) != len(samples) {
		return 0, &errs.TimingInconsistencyError{Group: group, Samples: len(samples), Timings: len(times)}
	}
	if len(samples) == 1 {
		return samples[0].value * times[0], nil
	}
	for i := 1; i < len(times); i++ {
		if times[i] <= times[i-1] {
			return 0, &errs.TimingInconsistencyError{
				Group:  group,
				Reason: fmt.Sprintf("frame times not strictly increasing at frame %d (%g after %g)", i, times[i], times[i-1]),
			}
		}
	}

	values := make([]float64, len(samples))
	for i, s := range samples {
		values[i] = s.value
	}
	if len(values) == 2 {
		return integrate.Trapezoidal(times, values), nil
	}
	return integrate.Simpsons(times, values), nil
}
