// Package metric evaluates image-alignment distance metrics.
//
// Images are opaque handles (file paths) as far as the rest of the system is
// concerned. A Metric turns a (test, reference, mask) triple into one scalar;
// metrics are registered by name and looked up when a QC run is configured.
package metric

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"petqc/internal/errs"
)

// Metric computes a scalar distance between a test image and a reference
// image restricted to a mask. An empty mask means the whole image.
type Metric interface {
	Distance(ctx context.Context, test, reference, mask string) (float64, error)
}

// Func adapts a plain function to the Metric interface
type Func func(ctx context.Context, test, reference, mask string) (float64, error)

// Distance calls f
func (f Func) Distance(ctx context.Context, test, reference, mask string) (float64, error) {
	return f(ctx, test, reference, mask)
}

// Registry maps metric names to implementations
type Registry struct {
	mu      sync.RWMutex
	metrics map[string]Metric
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{metrics: make(map[string]Metric)}
}

// DefaultRegistry returns a registry holding the built-in voxel metrics
func DefaultRegistry() *Registry {
	r := NewRegistry()
	_ = r.Register("NMI", VoxelMetric(NormalizedMutualInformation))
	_ = r.Register("XCorr", VoxelMetric(CrossCorrelation))
	_ = r.Register("RMSE", VoxelMetric(RootMeanSquareError))
	return r
}

// Register adds m under name. Names are unique.
func (r *Registry) Register(name string, m Metric) error {
	if name == "" || m == nil {
		return fmt.Errorf("metric registration needs a name and an implementation")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.metrics[name]; exists {
		return fmt.Errorf("metric %q already registered", name)
	}
	r.metrics[name] = m
	return nil
}

// Lookup returns the metric registered under name
func (r *Registry) Lookup(name string) (Metric, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.metrics[name]
	if !ok {
		return nil, &errs.UnknownNameError{Kind: "distance metric", Name: name}
	}
	return m, nil
}

// Names lists registered metrics in sorted order
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.metrics))
	for n := range r.metrics {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
