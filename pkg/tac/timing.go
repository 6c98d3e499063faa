package tac

import (
	"errors"
	"fmt"
	"os"

	"github.com/tidwall/gjson"

	"petqc/internal/errs"
)

// FrameTimesPath is the location of the [start, end] pairs in an image's JSON header
const FrameTimesPath = "Time.FrameTimes.Values"

// Frame is the acquisition window of one time frame
type Frame struct {
	Start float64
	End   float64
}

// Timing is the frame timing of a dynamic acquisition.
// When Available is false the acquisition is treated as a single synthetic
// frame of weight 1.0.
type Timing struct {
	Frames    []Frame
	Available bool
}

// Unavailable is the timing used when the header has no usable frame times
func Unavailable() Timing {
	return Timing{}
}

// Times returns the sample time of every frame. reference is "start" or
// "midpoint". Unavailable timing yields the single value 1.0.
func (t Timing) Times(reference string) []float64 {
	if !t.Available || len(t.Frames) == 0 {
		return []float64{1.0}
	}
	out := make([]float64, len(t.Frames))
	for i, f := range t.Frames {
		if reference == "midpoint" {
			out[i] = (f.Start + f.End) / 2
		} else {
			out[i] = f.Start
		}
	}
	return out
}

// ParseTiming extracts frame times from a JSON header. Any structural problem
// (invalid JSON, missing path, non-numeric entries) yields Unavailable.
func ParseTiming(data []byte) Timing {
	if !gjson.ValidBytes(data) {
		return Unavailable()
	}
	values := gjson.GetBytes(data, FrameTimesPath)
	if !values.IsArray() {
		return Unavailable()
	}

	entries := values.Array()
	if len(entries) == 0 {
		return Unavailable()
	}

	frames := make([]Frame, 0, len(entries))
	for _, e := range entries {
		if !e.IsArray() {
			return Unavailable()
		}
		pair := e.Array()
		if len(pair) == 0 || pair[0].Type != gjson.Number {
			return Unavailable()
		}
		f := Frame{Start: pair[0].Float(), End: pair[0].Float()}
		if len(pair) > 1 {
			if pair[1].Type != gjson.Number {
				return Unavailable()
			}
			f.End = pair[1].Float()
		}
		frames = append(frames, f)
	}
	return Timing{Frames: frames, Available: true}
}

// LoadTiming reads frame timing from a JSON header file. An empty path means
// no header was supplied and yields Unavailable.
func LoadTiming(path string) (Timing, error) {
	if path == "" {
		return Unavailable(), nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Timing{}, &errs.MissingInputError{Path: path, Err: err}
	}
	if err != nil {
		return Timing{}, fmt.Errorf("failed to read header %s: %w", path, err)
	}
	return ParseTiming(data), nil
}
