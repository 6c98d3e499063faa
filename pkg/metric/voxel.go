package metric

import (
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// histogramBins is the per-axis bin count of the joint intensity histogram
const histogramBins = 64

// VoxelFunc compares two equally sized intensity vectors
type VoxelFunc func(x, y []float64) (float64, error)

// VoxelMetric lifts a VoxelFunc to a Metric that loads the images and
// applies the mask before comparing.
func VoxelMetric(f VoxelFunc) Metric {
	return Func(func(ctx context.Context, test, reference, mask string) (float64, error) {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		x, y, err := maskedPairs(test, reference, mask)
		if err != nil {
			return 0, err
		}
		return f(x, y)
	})
}

func checkPaired(x, y []float64) error {
	if len(x) == 0 || len(x) != len(y) {
		return fmt.Errorf("need two non-empty vectors of equal length, got %d and %d", len(x), len(y))
	}
	return nil
}

// RootMeanSquareError computes the root mean square intensity difference
func RootMeanSquareError(x, y []float64) (float64, error) {
	if err := checkPaired(x, y); err != nil {
		return 0, err
	}
	return floats.Distance(x, y, 2) / math.Sqrt(float64(len(x))), nil
}

// CrossCorrelation computes the Pearson correlation of the intensities.
// Constant inputs have no defined correlation and yield 0.
func CrossCorrelation(x, y []float64) (float64, error) {
	if err := checkPaired(x, y); err != nil {
		return 0, err
	}
	if stat.Variance(x, nil) == 0 || stat.Variance(y, nil) == 0 {
		return 0, nil
	}
	return stat.Correlation(x, y, nil), nil
}

// NormalizedMutualInformation computes (H(X) + H(Y)) / H(X, Y) over a joint
// intensity histogram. The result lies in [1, 2]; two constant images carry
// no information and yield 1.
func NormalizedMutualInformation(x, y []float64) (float64, error) {
	if err := checkPaired(x, y); err != nil {
		return 0, err
	}

	bx := binIndices(x)
	by := binIndices(y)

	n := float64(len(x))
	joint := make([]float64, histogramBins*histogramBins)
	px := make([]float64, histogramBins)
	py := make([]float64, histogramBins)
	for i := range bx {
		joint[bx[i]*histogramBins+by[i]]++
		px[bx[i]]++
		py[by[i]]++
	}
	floats.Scale(1/n, joint)
	floats.Scale(1/n, px)
	floats.Scale(1/n, py)

	hxy := stat.Entropy(joint)
	if hxy == 0 {
		return 1, nil
	}
	return (stat.Entropy(px) + stat.Entropy(py)) / hxy, nil
}

// binIndices maps every value to a histogram bin spanning [min, max]
func binIndices(data []float64) []int {
	out := make([]int, len(data))
	lo, hi := floats.Min(data), floats.Max(data)
	if hi <= lo {
		return out
	}

	width := (hi - lo) / histogramBins
	for i, v := range data {
		idx := int((v - lo) / width)
		if idx >= histogramBins {
			idx = histogramBins - 1
		} else if idx < 0 {
			idx = 0
		}
		out[i] = idx
	}
	return out
}
