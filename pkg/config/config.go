// Package config provides configuration loading and management for petqc.
// It handles loading configuration from YAML files, environment overrides and
// provides default values.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// MeasureConfig configures one outlier measure
type MeasureConfig struct {
	// Thresholds is the ordered list of candidate thresholds swept by the ROC evaluator
	Thresholds []float64 `yaml:"thresholds"`
}

// ExternalMetric registers a distance metric implemented by an external command
type ExternalMetric struct {
	// Name is the registry key, e.g. "XCorrMinc"
	Name string `yaml:"name"`

	// Command is the executable to run
	Command string `yaml:"command"`

	// Args may contain the placeholders {test}, {reference} and {mask}
	Args []string `yaml:"args"`
}

// Config represents the application configuration loaded from YAML
type Config struct {
	// Processing parameters
	Processing struct {
		// NumCores bounds how many distance metrics are evaluated at once
		NumCores int `yaml:"numCores"`
	} `yaml:"processing"`

	// Output parameters
	Output struct {
		// Dir is where published artifacts are written
		Dir string `yaml:"dir"`

		// Label names the run; artifact names are derived from it
		Label string `yaml:"label"`

		// CacheDir holds content-addressed artifacts and their fingerprint index
		CacheDir string `yaml:"cacheDir"`

		// Verbose enables debug logging
		Verbose bool `yaml:"verbose"`

		// WriteWorkbook additionally exports QC tables to an XLSX workbook
		WriteWorkbook bool `yaml:"writeWorkbook"`

		// RenderPlots renders ROC and outlier plots as PNG images
		RenderPlots bool `yaml:"renderPlots"`
	} `yaml:"output"`

	// TAC integration parameters
	TAC struct {
		// TimeReference selects which point of each frame is used as the sample
		// time: "start" or "midpoint"
		TimeReference string `yaml:"timeReference"`
	} `yaml:"tac"`

	// QC evaluation parameters
	QC struct {
		// NormalMagnitude is the error magnitude denoting "no perturbation"
		NormalMagnitude string `yaml:"normalMagnitude"`

		// Rotations and Translations list the perturbations applied upstream.
		// Misaligned images with other magnitudes are rejected; empty accepts any.
		Rotations    []string `yaml:"rotations"`
		Translations []string `yaml:"translations"`

		// DistanceMetrics lists registered metric names to evaluate
		DistanceMetrics []string `yaml:"distanceMetrics"`

		// Measures maps outlier-measure names to their threshold sweeps
		Measures map[string]MeasureConfig `yaml:"measures"`

		// MADScale converts the median absolute deviation to a standard deviation estimate
		MADScale float64 `yaml:"madScale"`

		// RelativeFloor bounds the spread from below as a fraction of the baseline median
		RelativeFloor float64 `yaml:"relativeFloor"`

		// ExternalMetrics registers command-line distance metrics
		ExternalMetrics []ExternalMetric `yaml:"externalMetrics"`
	} `yaml:"qc"`
}

// Time references accepted by TAC.TimeReference
const (
	TimeStart    = "start"
	TimeMidpoint = "midpoint"
)

// DefaultThresholds is the MAD threshold sweep, -6 to 6 in unit steps
func DefaultThresholds() []float64 {
	out := make([]float64, 0, 13)
	for t := -6; t <= 6; t++ {
		out = append(out, float64(t))
	}
	return out
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Processing.NumCores = runtime.NumCPU()

	cfg.Output.Dir = "stats"
	cfg.Output.Label = "v2"
	cfg.Output.CacheDir = ".petqc-cache"
	cfg.Output.Verbose = false
	cfg.Output.WriteWorkbook = false
	cfg.Output.RenderPlots = false

	cfg.TAC.TimeReference = TimeStart

	cfg.QC.NormalMagnitude = "0,0,0"
	cfg.QC.Rotations = []string{"0,0,0", "0,0,2", "0,0,4", "0,0,8", "0,0,16", "0,0,32", "0,0,64"}
	cfg.QC.Translations = []string{"0,0,0", "0,0,2", "0,0,4", "0,0,8", "0,0,10", "0,0,12", "0,0,14"}
	cfg.QC.DistanceMetrics = []string{"NMI"}
	cfg.QC.Measures = map[string]MeasureConfig{
		"MAD": {Thresholds: DefaultThresholds()},
	}
	cfg.QC.MADScale = 1.4826
	cfg.QC.RelativeFloor = 0.05

	return cfg
}

// LoadConfig loads configuration from a YAML file.
// If the file doesn't exist, it returns the default configuration.
// Environment overrides are applied after the file is parsed.
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("error reading config file: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("error parsing config file: %w", err)
			}
		}
	}

	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides values from PETQC_* environment variables. A .env file in
// the working directory is loaded first when present; variables already set in
// the environment win.
func (c *Config) ApplyEnv() error {
	_ = godotenv.Load()

	if v := os.Getenv("PETQC_OUTPUT_DIR"); v != "" {
		c.Output.Dir = v
	}
	if v := os.Getenv("PETQC_CACHE_DIR"); v != "" {
		c.Output.CacheDir = v
	}
	if v := os.Getenv("PETQC_LABEL"); v != "" {
		c.Output.Label = v
	}
	if v := os.Getenv("PETQC_NUM_CORES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid PETQC_NUM_CORES %q: %w", v, err)
		}
		c.Processing.NumCores = n
	}
	return nil
}

// Validate checks the configuration for values no stage can work with
func (c *Config) Validate() error {
	if c.Processing.NumCores <= 0 {
		return fmt.Errorf("processing.numCores must be positive, got %d", c.Processing.NumCores)
	}
	if c.Output.Label == "" {
		return errors.New("output.label must not be empty")
	}
	if c.TAC.TimeReference != TimeStart && c.TAC.TimeReference != TimeMidpoint {
		return fmt.Errorf("tac.timeReference must be %q or %q, got %q", TimeStart, TimeMidpoint, c.TAC.TimeReference)
	}
	if c.QC.NormalMagnitude == "" {
		return errors.New("qc.normalMagnitude must not be empty")
	}
	for name, m := range c.QC.Measures {
		if len(m.Thresholds) == 0 {
			return fmt.Errorf("qc.measures.%s has no thresholds", name)
		}
	}
	for _, m := range c.QC.ExternalMetrics {
		if m.Name == "" || m.Command == "" {
			return fmt.Errorf("qc.externalMetrics entries need a name and a command")
		}
	}
	return nil
}

// Thresholds returns the threshold sweep per measure
func (c *Config) Thresholds() map[string][]float64 {
	out := make(map[string][]float64, len(c.QC.Measures))
	for name, m := range c.QC.Measures {
		out[name] = append([]float64(nil), m.Thresholds...)
	}
	return out
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	return SaveConfig(DefaultConfig(), configPath)
}
