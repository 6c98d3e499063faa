// Package table reads and writes the CSV artifacts exchanged between stages.
package table

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"petqc/internal/errs"
)

// Sheet is a rendered table: a header and string records
type Sheet struct {
	Name   string
	Header []string
	Rows   [][]string
}

// WriteCSV writes the sheet as CSV with a header line
func (s Sheet) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(s.Header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	if err := cw.WriteAll(s.Rows); err != nil {
		return fmt.Errorf("failed to write rows: %w", err)
	}
	return nil
}

// readSheet reads a headed CSV and checks that required columns exist
func readSheet(r io.Reader, source string, required ...string) (map[string]int, [][]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	records, err := cr.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse %s: %w", source, err)
	}
	if len(records) == 0 {
		return nil, nil, fmt.Errorf("%s: empty table, no header", source)
	}

	cols := make(map[string]int, len(records[0]))
	for i, name := range records[0] {
		cols[strings.TrimSpace(name)] = i
	}
	for _, name := range required {
		if _, ok := cols[name]; !ok {
			return nil, nil, fmt.Errorf("%s: missing column %q", source, name)
		}
	}

	rows := records[1:]
	for i, row := range rows {
		if len(row) != len(records[0]) {
			return nil, nil, &errs.SchemaMismatchError{
				Source: source, Line: i + 2, Columns: len(row), Want: []int{len(records[0])},
			}
		}
	}
	return cols, rows, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func parseFloat(source string, line int, column, s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("%s:%d: invalid %s %q: %w", source, line, column, s, err)
	}
	return v, nil
}

// WriteFile writes an artifact atomically: the content goes to a temporary
// file in the same directory which is renamed into place only on success.
func WriteFile(path string, write func(io.Writer) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := write(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to publish %s: %w", path, err)
	}
	return nil
}

// ReadFile opens path and hands it to read, reporting a MissingInputError
// when the file does not exist.
func ReadFile(path string, read func(io.Reader) error) error {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return &errs.MissingInputError{Path: path, Err: err}
	}
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()
	return read(f)
}
