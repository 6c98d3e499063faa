package pipeline

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"

	"petqc/internal/models"
	"petqc/pkg/aggregate"
	"petqc/pkg/table"
	"petqc/pkg/tac"
	"petqc/pkg/tagger"
)

// TagRequest describes one raw statistics file
type TagRequest struct {
	// Input is the headerless raw statistics CSV
	Input string

	Meta tagger.Meta

	// Dim is the dimensionality of the measured image; 4 marks a dynamic scan
	Dim int

	// Header is the image's JSON header used to integrate dynamic scans
	Header string
}

// TagResult lists the artifacts produced for a raw statistics file
type TagResult struct {
	// Path4D is the per-frame table; empty for static scans
	Path4D string

	// Path3D is the table with one value per region
	Path3D string

	Table models.MeasurementTable
}

func outputName(input, suffix string) string {
	base := filepath.Base(input)
	return strings.TrimSuffix(base, filepath.Ext(base)) + suffix + ".csv"
}

// TagResults tags a raw statistics file. For dynamic scans the tagged table
// is published as <name>_4d.csv and its time integral as <name>_3d.csv;
// otherwise the tagged table is <name>_3d.csv.
func (r *Runner) TagResults(ctx context.Context, req TagRequest) (TagResult, error) {
	tagged := r.artifact(outputName(req.Input, "_3d"))
	if req.Dim == 4 {
		tagged = r.artifact(outputName(req.Input, "_4d"))
	}

	p, err := params(req.Meta, req.Dim)
	if err != nil {
		return TagResult{}, err
	}
	t, err := runStage(ctx, r, stage[models.MeasurementTable]{
		name:   "tag",
		output: tagged,
		inputs: []string{req.Input},
		params: p,
		compute: func(ctx context.Context) (models.MeasurementTable, error) {
			var out models.MeasurementTable
			err := table.ReadFile(req.Input, func(rd io.Reader) error {
				var err error
				out, err = tagger.Tag(rd, req.Input, req.Meta)
				return err
			})
			return out, err
		},
		write: table.WriteMeasurements,
		read:  table.ReadMeasurements,
		count: func(t models.MeasurementTable) int { return len(t) },
	})
	if err != nil {
		return TagResult{}, err
	}

	if req.Dim != 4 {
		return TagResult{Path3D: tagged, Table: t}, nil
	}

	integrated := r.artifact(outputName(req.Input, "_3d"))
	t3, err := r.Integrate(ctx, tagged, req.Header, integrated)
	if err != nil {
		return TagResult{}, err
	}
	return TagResult{Path4D: tagged, Path3D: integrated, Table: t3}, nil
}

// Integrate integrates the per-frame table at input over the frame timing in
// header and publishes the result at output.
func (r *Runner) Integrate(ctx context.Context, input, header, output string) (models.MeasurementTable, error) {
	p, err := params(r.cfg.TAC)
	if err != nil {
		return nil, err
	}
	inputs := []string{input}
	if header != "" {
		inputs = append(inputs, header)
	}

	return runStage(ctx, r, stage[models.MeasurementTable]{
		name:   "integrate",
		output: output,
		inputs: inputs,
		params: p,
		compute: func(ctx context.Context) (models.MeasurementTable, error) {
			var frames models.MeasurementTable
			err := table.ReadFile(input, func(rd io.Reader) error {
				var err error
				frames, err = table.ReadMeasurements(rd, input)
				return err
			})
			if err != nil {
				return nil, err
			}
			timing, err := tac.LoadTiming(header)
			if err != nil {
				return nil, err
			}
			return tac.NewIntegrator(r.cfg.TAC.TimeReference, r.logger).Integrate(frames, timing)
		},
		write: table.WriteMeasurements,
		read:  table.ReadMeasurements,
		count: func(t models.MeasurementTable) int { return len(t) },
	})
}

// DescriptiveName is the artifact name of one descriptive-statistics pivot
func DescriptiveName(label, pivot string) string {
	return fmt.Sprintf("%s_descriptive_statistics_%s.csv", label, pivot)
}

// Describe concatenates the given tagged tables and publishes one grouped
// mean table per descriptive pivot.
func (r *Runner) Describe(ctx context.Context, inputs []string) ([]models.GroupedTable, error) {
	if len(inputs) == 0 {
		return nil, fmt.Errorf("no result tables to describe")
	}

	var (
		once     sync.Once
		combined models.MeasurementTable
		loadErr  error
	)
	load := func() (models.MeasurementTable, error) {
		once.Do(func() {
			tables := make([]models.MeasurementTable, len(inputs))
			for i, in := range inputs {
				loadErr = table.ReadFile(in, func(rd io.Reader) error {
					var err error
					tables[i], err = table.ReadMeasurements(rd, in)
					return err
				})
				if loadErr != nil {
					return
				}
			}
			combined = models.Concat(tables...)
		})
		return combined, loadErr
	}

	out := make([]models.GroupedTable, 0, len(aggregate.DescriptivePivots))
	for _, pivot := range aggregate.DescriptivePivots {
		p, err := params(pivot.Dimensions)
		if err != nil {
			return nil, err
		}
		g, err := runStage(ctx, r, stage[models.GroupedTable]{
			name:   "describe_" + pivot.Name,
			output: r.artifact(DescriptiveName(r.cfg.Output.Label, pivot.Name)),
			inputs: inputs,
			params: p,
			compute: func(ctx context.Context) (models.GroupedTable, error) {
				t, err := load()
				if err != nil {
					return models.GroupedTable{}, err
				}
				return aggregate.Mean(t, pivot), nil
			},
			write: table.WriteGrouped,
			read: func(rd io.Reader, source string) (models.GroupedTable, error) {
				g, err := table.ReadGrouped(rd, source, pivot.Dimensions)
				g.Name = pivot.Name
				return g, err
			},
			count: func(g models.GroupedTable) int { return len(g.Rows) },
		})
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, nil
}
