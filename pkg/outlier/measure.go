// Package outlier scores misalignment records against a leave-one-out
// baseline of correctly aligned subjects.
package outlier

import (
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/stat"

	"petqc/internal/errs"
)

// Measure scores series[index] against the rest of series. Larger scores
// mean the element is further from the population.
type Measure interface {
	Score(series []float64, index int) (float64, error)
}

// MeasureFunc adapts a plain function to the Measure interface
type MeasureFunc func(series []float64, index int) (float64, error)

// Score calls f
func (f MeasureFunc) Score(series []float64, index int) (float64, error) {
	return f(series, index)
}

// MAD is a robust z-score: the absolute deviation from the baseline median
// divided by the scaled median absolute deviation of the baseline.
type MAD struct {
	// Scale converts the MAD into a standard deviation estimate (1.4826 for normal data)
	Scale float64

	// RelativeFloor bounds the spread from below as a fraction of |median|
	RelativeFloor float64
}

// Score implements Measure
func (m MAD) Score(series []float64, index int) (float64, error) {
	x, baseline, err := split(series, index)
	if err != nil {
		return 0, err
	}

	center, err := stats.Median(baseline)
	if err != nil {
		return 0, fmt.Errorf("baseline median: %w", err)
	}
	mad, err := stats.MedianAbsoluteDeviation(baseline)
	if err != nil {
		return 0, fmt.Errorf("baseline MAD: %w", err)
	}
	return ratio(math.Abs(x-center), math.Max(m.Scale*mad, m.RelativeFloor*math.Abs(center))), nil
}

// ZScore is the classical z-score against the baseline mean and standard
// deviation, with the same relative floor on the spread as MAD.
type ZScore struct {
	RelativeFloor float64
}

// Score implements Measure
func (z ZScore) Score(series []float64, index int) (float64, error) {
	x, baseline, err := split(series, index)
	if err != nil {
		return 0, err
	}

	mean, std := stat.MeanStdDev(baseline, nil)
	if math.IsNaN(std) {
		std = 0
	}
	return ratio(math.Abs(x-mean), math.Max(std, z.RelativeFloor*math.Abs(mean))), nil
}

// split separates the element under test from its baseline
func split(series []float64, index int) (float64, []float64, error) {
	if index < 0 || index >= len(series) {
		return 0, nil, fmt.Errorf("test index %d out of range for series of %d", index, len(series))
	}
	if len(series) < 2 {
		return 0, nil, &errs.EmptyGroupWarning{Stage: "outlier score", Group: fmt.Sprintf("index %d", index), What: "baseline"}
	}
	baseline := make([]float64, 0, len(series)-1)
	baseline = append(baseline, series[:index]...)
	baseline = append(baseline, series[index+1:]...)
	return series[index], baseline, nil
}

// ratio divides a deviation by a spread; zero spread yields 0 for zero
// deviation and +Inf otherwise.
func ratio(deviation, spread float64) float64 {
	if spread == 0 {
		if deviation == 0 {
			return 0
		}
		return math.Inf(1)
	}
	return deviation / spread
}

// Registry maps measure names to implementations
type Registry struct {
	mu       sync.RWMutex
	measures map[string]Measure
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{measures: make(map[string]Measure)}
}

// DefaultRegistry holds MAD and ZScore with the given spread parameters
func DefaultRegistry(madScale, relativeFloor float64) *Registry {
	r := NewRegistry()
	_ = r.Register("MAD", MAD{Scale: madScale, RelativeFloor: relativeFloor})
	_ = r.Register("ZScore", ZScore{RelativeFloor: relativeFloor})
	return r
}

// Register adds m under name
func (r *Registry) Register(name string, m Measure) error {
	if name == "" || m == nil {
		return fmt.Errorf("measure registration needs a name and an implementation")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.measures[name]; exists {
		return fmt.Errorf("outlier measure %q already registered", name)
	}
	r.measures[name] = m
	return nil
}

// Lookup returns the measure registered under name
func (r *Registry) Lookup(name string) (Measure, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.measures[name]
	if !ok {
		return nil, &errs.UnknownNameError{Kind: "outlier measure", Name: name}
	}
	return m, nil
}

// Names lists registered measures in sorted order
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.measures))
	for n := range r.measures {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
