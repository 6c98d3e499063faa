package metric

import (
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/kshedden/gonpy"

	"petqc/internal/errs"
)

// LoadVolume reads the voxel intensities behind an image handle.
// Supported formats are NumPy .npy arrays and 2-D PNG or JPEG slices.
func LoadVolume(path string) ([]float64, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil, &errs.MissingInputError{Path: path, Err: err}
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".npy":
		return loadNpy(path)
	case ".png", ".jpg", ".jpeg":
		return loadImage(path)
	}
	return nil, fmt.Errorf("unsupported image format: %s", path)
}

func loadNpy(path string) ([]float64, error) {
	r, err := gonpy.NewFileReader(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}

	switch strings.TrimLeft(r.Dtype, "<>|=") {
	case "f8":
		data, err := r.GetFloat64()
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		return data, nil
	case "f4":
		data, err := r.GetFloat32()
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		out := make([]float64, len(data))
		for i, v := range data {
			out[i] = float64(v)
		}
		return out, nil
	case "i2":
		data, err := r.GetInt16()
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		out := make([]float64, len(data))
		for i, v := range data {
			out[i] = float64(v)
		}
		return out, nil
	case "u1":
		data, err := r.GetUint8()
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		out := make([]float64, len(data))
		for i, v := range data {
			out[i] = float64(v)
		}
		return out, nil
	}
	return nil, fmt.Errorf("%s: unsupported dtype %q", path, r.Dtype)
}

// loadImage decodes a slice image to intensities in [0, 1]
func loadImage(path string) ([]float64, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	img, _, err := image.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}

	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()
	result := make([]float64, width*height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			r, _, _, _ := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			result[y*width+x] = float64(r) / 65535.0
		}
	}
	return result, nil
}

// maskedPairs loads the three handles and returns the paired test and
// reference intensities of voxels where the mask is non-zero.
func maskedPairs(test, reference, mask string) ([]float64, []float64, error) {
	x, err := LoadVolume(test)
	if err != nil {
		return nil, nil, err
	}
	y, err := LoadVolume(reference)
	if err != nil {
		return nil, nil, err
	}
	if len(x) != len(y) {
		return nil, nil, fmt.Errorf("%s has %d voxels but reference %s has %d", test, len(x), reference, len(y))
	}
	if mask == "" {
		return x, y, nil
	}

	m, err := LoadVolume(mask)
	if err != nil {
		return nil, nil, err
	}
	if len(m) != len(x) {
		return nil, nil, fmt.Errorf("mask %s has %d voxels, images have %d", mask, len(m), len(x))
	}

	xs := make([]float64, 0, len(x))
	ys := make([]float64, 0, len(y))
	for i, v := range m {
		if v != 0 {
			xs = append(xs, x[i])
			ys = append(ys, y[i])
		}
	}
	if len(xs) == 0 {
		return nil, nil, fmt.Errorf("mask %s selects no voxels", mask)
	}
	return xs, ys, nil
}
