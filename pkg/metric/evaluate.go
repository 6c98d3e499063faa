package metric

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"golang.org/x/sync/errgroup"

	"petqc/internal/models"
)

// Evaluator computes every configured distance metric for every image of a manifest
type Evaluator struct {
	registry        *Registry
	metrics         []string
	normalMagnitude string
	workers         int
	logger          *slog.Logger

	// expected restricts the magnitudes accepted per error type; a type
	// without an entry accepts any magnitude
	expected map[models.ErrorType]map[string]bool
}

// NewEvaluator creates an evaluator for the named metrics. Names are resolved
// against registry immediately so an unknown metric fails before any work.
func NewEvaluator(registry *Registry, metrics []string, normalMagnitude string, workers int, logger *slog.Logger) (*Evaluator, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if workers <= 0 {
		workers = 1
	}
	if len(metrics) == 0 {
		return nil, fmt.Errorf("no distance metrics configured")
	}
	for _, name := range metrics {
		if _, err := registry.Lookup(name); err != nil {
			return nil, err
		}
	}
	return &Evaluator{
		registry:        registry,
		metrics:         metrics,
		normalMagnitude: normalMagnitude,
		workers:         workers,
		logger:          logger,
	}, nil
}

// ExpectMagnitudes restricts the magnitudes accepted for et to the given
// list. Misaligned images with any other magnitude fail the evaluation.
// The normal magnitude is always accepted.
func (e *Evaluator) ExpectMagnitudes(et models.ErrorType, magnitudes []string) {
	if len(magnitudes) == 0 {
		return
	}
	if e.expected == nil {
		e.expected = make(map[models.ErrorType]map[string]bool)
	}
	set := make(map[string]bool, len(magnitudes)+1)
	for _, m := range magnitudes {
		set[m] = true
	}
	set[e.normalMagnitude] = true
	e.expected[et] = set
}

type perturbed struct {
	errorType models.ErrorType
	magnitude string
	path      string
}

type job struct {
	subject *SubjectImages
	image   perturbed
	metric  string
}

// images lists a subject's perturbed images ordered by error type then
// magnitude. An error type without an explicit normal-magnitude image gets
// the unperturbed PET image in that role.
func (e *Evaluator) images(s *SubjectImages) ([]perturbed, error) {
	out := make([]perturbed, 0, len(s.Misaligned)+2)
	hasNormal := make(map[models.ErrorType]bool)
	for _, p := range s.Misaligned {
		et, mag, err := ParseMisalignedName(p)
		if err != nil {
			return nil, err
		}
		if set, ok := e.expected[et]; ok && !set[mag] {
			return nil, fmt.Errorf("misaligned image %s: %s magnitude %s is not configured", p, et, mag)
		}
		if mag == e.normalMagnitude {
			hasNormal[et] = true
		}
		out = append(out, perturbed{errorType: et, magnitude: mag, path: p})
	}

	if s.PET != "" {
		for _, et := range []models.ErrorType{models.Rotation, models.Translation} {
			if _, seen := hasNormal[et]; !seen && containsType(out, et) {
				out = append(out, perturbed{errorType: et, magnitude: e.normalMagnitude, path: s.PET})
			}
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].errorType != out[j].errorType {
			return out[i].errorType < out[j].errorType
		}
		return models.CompareMagnitudes(out[i].magnitude, out[j].magnitude) < 0
	})
	return out, nil
}

func containsType(images []perturbed, et models.ErrorType) bool {
	for _, img := range images {
		if img.errorType == et {
			return true
		}
	}
	return false
}

// Evaluate returns one record per (subject, image, metric). Records are
// ordered by manifest subject, error type, magnitude and configured metric
// order regardless of how the computations were scheduled.
func (e *Evaluator) Evaluate(ctx context.Context, m *Manifest) ([]models.MisalignmentRecord, error) {
	var jobs []job
	for i := range m.Subjects {
		s := &m.Subjects[i]
		imgs, err := e.images(s)
		if err != nil {
			return nil, err
		}
		for _, img := range imgs {
			for _, name := range e.metrics {
				jobs = append(jobs, job{subject: s, image: img, metric: name})
			}
		}
	}

	records := make([]models.MisalignmentRecord, len(jobs))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i, j := range jobs {
		g.Go(func() error {
			metric, err := e.registry.Lookup(j.metric)
			if err != nil {
				return err
			}
			v, err := metric.Distance(ctx, j.image.path, j.subject.Reference, j.subject.Mask)
			if err != nil {
				return fmt.Errorf("%s on %s: %w", j.metric, j.image.path, err)
			}
			records[i] = models.MisalignmentRecord{
				Subject:        j.subject.Subject,
				Condition:      j.subject.Condition,
				ErrorType:      j.image.errorType,
				ErrorMagnitude: j.image.magnitude,
				Metric:         j.metric,
				Value:          v,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	e.logger.Info("evaluated distance metrics",
		slog.Int("subjects", len(m.Subjects)), slog.Int("records", len(records)))
	return records, nil
}
