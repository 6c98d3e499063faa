package metric

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// Placeholders substituted into external metric arguments
const (
	TestPlaceholder      = "{test}"
	ReferencePlaceholder = "{reference}"
	MaskPlaceholder      = "{mask}"
)

// CommandMetric delegates the distance computation to an external program.
// The program receives the image handles through placeholder arguments and
// must print the distance as the last token of its standard output.
type CommandMetric struct {
	Command string
	Args    []string
}

// Distance runs the command and parses its output
func (c CommandMetric) Distance(ctx context.Context, test, reference, mask string) (float64, error) {
	replacer := strings.NewReplacer(
		TestPlaceholder, test,
		ReferencePlaceholder, reference,
		MaskPlaceholder, mask,
	)
	args := make([]string, len(c.Args))
	for i, a := range c.Args {
		args[i] = replacer.Replace(a)
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, c.Command, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return 0, fmt.Errorf("%s failed: %w: %s", c.Command, err, strings.TrimSpace(stderr.String()))
	}

	fields := strings.Fields(stdout.String())
	if len(fields) == 0 {
		return 0, fmt.Errorf("%s printed no distance", c.Command)
	}
	v, err := strconv.ParseFloat(fields[len(fields)-1], 64)
	if err != nil {
		return 0, fmt.Errorf("%s printed a non-numeric distance: %w", c.Command, err)
	}
	return v, nil
}
