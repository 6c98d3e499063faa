package pipeline

import (
	"context"
	"io"
	"log/slog"
	"time"

	"petqc/pkg/cache"
	"petqc/pkg/table"
)

// stage describes one checkpointed step: its published artifact, what the
// artifact depends on, and how to produce, store and reload it.
type stage[T any] struct {
	name   string
	output string

	// inputs are files whose content the artifact depends on
	inputs []string

	// params are the non-file parameters the artifact depends on
	params [][]byte

	compute func(ctx context.Context) (T, error)
	write   func(w io.Writer, v T) error
	read    func(r io.Reader, source string) (T, error)
	count   func(v T) int
}

func (s stage[T]) fingerprint() (string, error) {
	f := cache.NewFingerprinter(s.name).Part(s.output)
	for _, p := range s.params {
		f.Bytes(p)
	}
	for _, in := range s.inputs {
		if err := f.File(in); err != nil {
			return "", err
		}
	}
	return f.Sum(), nil
}

// runStage reuses the stage's artifact when the store holds one for the same
// inputs and parameters, and otherwise computes, publishes and records it.
func runStage[T any](ctx context.Context, r *Runner, s stage[T]) (T, error) {
	var zero T
	start := time.Now()
	logger := r.logger.With(slog.String("stage", s.name), slog.String("artifact", s.output))

	fail := func(err error) (T, error) {
		r.telemetry.observe(s.name, OutcomeFailed, time.Since(start).Seconds(), 0)
		logger.Error("stage failed", slog.String("error", err.Error()))
		return zero, err
	}

	if err := ctx.Err(); err != nil {
		return fail(err)
	}

	fp, err := s.fingerprint()
	if err != nil {
		return fail(err)
	}

	if r.store != nil {
		entry, ok, err := r.store.Lookup(fp)
		if err != nil {
			return fail(err)
		}
		if ok && entry.Path == s.output {
			var v T
			err := table.ReadFile(s.output, func(rd io.Reader) error {
				var err error
				v, err = s.read(rd, s.output)
				return err
			})
			if err == nil {
				r.telemetry.observe(s.name, OutcomeCached, time.Since(start).Seconds(), s.count(v))
				logger.Info("reusing cached artifact", slog.Int("records", s.count(v)))
				return v, nil
			}
			logger.Warn("cached artifact unreadable, recomputing", slog.String("error", err.Error()))
			if err := r.store.Invalidate(fp); err != nil {
				return fail(err)
			}
		}
	}

	v, err := s.compute(ctx)
	if err != nil {
		return fail(err)
	}
	if err := table.WriteFile(s.output, func(w io.Writer) error { return s.write(w, v) }); err != nil {
		return fail(err)
	}
	if r.store != nil {
		if err := r.store.Commit(fp, s.name, s.output); err != nil {
			return fail(err)
		}
	}

	r.telemetry.observe(s.name, OutcomeComputed, time.Since(start).Seconds(), s.count(v))
	logger.Info("stage complete", slog.Int("records", s.count(v)), slog.Duration("elapsed", time.Since(start)))
	return v, nil
}
