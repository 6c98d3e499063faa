// Package errs defines the failure taxonomy shared by every pipeline stage.
// Each error names the input or group it originated from so the offending
// record can be located and corrected.
package errs

import (
	"fmt"
	"strings"
)

// MissingInputError reports that a required file or table is absent
type MissingInputError struct {
	Path string
	Err  error
}

func (e *MissingInputError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("missing input %s: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("missing input %s", e.Path)
}

func (e *MissingInputError) Unwrap() error { return e.Err }

// SchemaMismatchError reports a raw row whose column count matches no known schema
type SchemaMismatchError struct {
	Source  string
	Line    int
	Columns int
	Want    []int
}

func (e *SchemaMismatchError) Error() string {
	want := make([]string, len(e.Want))
	for i, w := range e.Want {
		want[i] = fmt.Sprint(w)
	}
	return fmt.Sprintf("%s:%d: %d columns, want %s", e.Source, e.Line, e.Columns, strings.Join(want, " or "))
}

// TimingInconsistencyError reports frame timing that cannot be paired with a TAC
type TimingInconsistencyError struct {
	Group   string
	Samples int
	Timings int
	Reason  string
}

func (e *TimingInconsistencyError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("frame timing for group %s: %s", e.Group, e.Reason)
	}
	return fmt.Sprintf("frame timing for group %s has %d entries but %d samples", e.Group, e.Timings, e.Samples)
}

// EmptyGroupWarning reports a group whose population is empty where a
// denominator or baseline is needed.
type EmptyGroupWarning struct {
	Stage string
	Group string
	What  string
}

func (e *EmptyGroupWarning) Error() string {
	return fmt.Sprintf("%s: group %s has no %s", e.Stage, e.Group, e.What)
}

// UnknownNameError reports a registry lookup for a name nobody registered
type UnknownNameError struct {
	Kind string
	Name string
}

func (e *UnknownNameError) Error() string {
	return fmt.Sprintf("unknown %s %q", e.Kind, e.Name)
}

// DuplicateKeyError reports two records sharing an identity that must be unique
type DuplicateKeyError struct {
	Table string
	Key   string
}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("%s: duplicate key %s", e.Table, strings.ReplaceAll(e.Key, "\x1f", "/"))
}

// FormatKey renders a group key for error messages
func FormatKey(parts ...string) string {
	return strings.Join(parts, "/")
}
