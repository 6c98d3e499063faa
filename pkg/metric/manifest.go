package metric

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"petqc/internal/errs"
	"petqc/internal/models"
)

// SubjectImages lists the images of one subject and condition
type SubjectImages struct {
	Subject   string `yaml:"subject"`
	Condition string `yaml:"condition"`

	// PET is the unperturbed PET image
	PET string `yaml:"pet"`

	// Reference is the anatomical image every PET image is compared against
	Reference string `yaml:"t1"`

	// Mask restricts the comparison; empty means the whole image
	Mask string `yaml:"mask"`

	// Misaligned are perturbed copies of PET named <base>_<angle|offset>_<x,y,z>.<ext>
	Misaligned []string `yaml:"misaligned"`
}

// Manifest describes the inputs of a QC run
type Manifest struct {
	Subjects []SubjectImages `yaml:"subjects"`
}

// LoadManifest reads a YAML manifest. Relative image paths are resolved
// against the manifest's directory.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, &errs.MissingInputError{Path: path, Err: err}
	}
	if err != nil {
		return nil, fmt.Errorf("error reading manifest: %w", err)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("error parsing manifest %s: %w", path, err)
	}

	dir := filepath.Dir(path)
	resolve := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(dir, p)
	}
	for i := range m.Subjects {
		s := &m.Subjects[i]
		if s.Subject == "" {
			return nil, fmt.Errorf("manifest %s: entry %d has no subject", path, i)
		}
		if s.Condition == "" {
			s.Condition = models.NA
		}
		s.PET = resolve(s.PET)
		s.Reference = resolve(s.Reference)
		s.Mask = resolve(s.Mask)
		for j := range s.Misaligned {
			s.Misaligned[j] = resolve(s.Misaligned[j])
		}
	}
	return &m, nil
}

// ParseMisalignedName extracts the error type and magnitude from a misaligned
// image name such as "sub-01_pet_angle_0,0,4.npy".
func ParseMisalignedName(path string) (models.ErrorType, string, error) {
	name := filepath.Base(path)
	name = strings.TrimSuffix(name, ".gz")
	name = strings.TrimSuffix(name, filepath.Ext(name))

	parts := strings.Split(name, "_")
	if len(parts) < 2 {
		return "", "", fmt.Errorf("misaligned image name %q has no <type>_<magnitude> suffix", path)
	}

	et, err := models.ParseErrorType(parts[len(parts)-2])
	if err != nil {
		return "", "", fmt.Errorf("misaligned image name %q: %w", path, err)
	}
	magnitude := parts[len(parts)-1]
	if _, err := models.MagnitudeValue(magnitude); err != nil {
		return "", "", fmt.Errorf("misaligned image name %q: %w", path, err)
	}
	return et, magnitude, nil
}
