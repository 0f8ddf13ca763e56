// Package config provides configuration loading and management for the cine
// MR synthesis. It handles loading the YAML parameter file and provides
// default values for every recognized option.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Amplitude modes for Video.AmplitudeType
const (
	AmplitudeRegular = "regular"
	AmplitudeRandom  = "random"
)

// Config represents the parameter file of a synthesis run
type Config struct {
	// Video parameters
	Video struct {
		// View is the camera orientation: axial, coronal or sagittal
		View string `yaml:"camera-view"`

		// Slice is the index of the plane extracted in View
		Slice int `yaml:"slice"`

		// Duration is the total simulated time in seconds
		Duration float64 `yaml:"video-time"`

		// FrameRate is the number of frames per simulated second
		FrameRate float64 `yaml:"frame-per-second"`

		// ReferencePhase is the phase all interpolation paths start from
		ReferencePhase int `yaml:"reference-phase"`

		// Phases is the number of breathing phases in the 4D acquisition
		Phases int `yaml:"phases"`

		// BreathingPeriod is the duration of one breathing cycle in seconds
		BreathingPeriod float64 `yaml:"breathing-cycle-time"`

		// Amplitude scales every displacement when AmplitudeType is regular
		Amplitude float64 `yaml:"breathing-amplitude"`

		// AmplitudeType is regular, or random to redraw the amplitude
		// uniformly in [1, 2) at each new cycle
		AmplitudeType string `yaml:"breathing-amplitude-type"`

		// Seed for random amplitudes; 0 seeds from the clock
		Seed uint64 `yaml:"random-seed"`
	} `yaml:"Video"`

	// Segmentation masks warped alongside the reference image
	Segments struct {
		// LabelsInput are the mask names looked up in the input masks folder
		LabelsInput []string `yaml:"labels-input"`

		// LabelsOutput name the output channels, one per input label
		LabelsOutput []string `yaml:"labels-output"`

		// Interpolation used when warping masks: linear or nearest
		Interpolation string `yaml:"interpolation"`
	} `yaml:"Segments"`

	// Processing parameters
	Processing struct {
		// Workers is the number of frames synthesized concurrently
		Workers int `yaml:"workers"`
	} `yaml:"Processing"`

	// Output parameters
	Output struct {
		// Format of the written frames: nii or tiff
		Format string `yaml:"format"`
	} `yaml:"Output"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Video.View = "sagittal"
	cfg.Video.Slice = 180
	cfg.Video.Duration = 20.0
	cfg.Video.FrameRate = 4
	cfg.Video.ReferencePhase = 0
	cfg.Video.Phases = 10
	cfg.Video.BreathingPeriod = 4.5
	cfg.Video.Amplitude = 1.0
	cfg.Video.AmplitudeType = AmplitudeRegular

	cfg.Segments.Interpolation = "linear"

	cfg.Processing.Workers = 1

	cfg.Output.Format = "nii"

	return cfg
}

// RandomAmplitude reports whether the amplitude is redrawn every cycle
func (c *Config) RandomAmplitude() bool {
	return c.Video.AmplitudeType == AmplitudeRandom
}

// ConfigurationError describes an invalid option. It is returned before any
// frame is produced.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration %s: %s", e.Field, e.Reason)
}

func invalid(field, format string, args ...interface{}) error {
	return &ConfigurationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// Validate checks every option and returns the first problem found
func (c *Config) Validate() error {
	v := c.Video
	switch v.View {
	case "axial", "coronal", "sagittal":
	default:
		return invalid("camera-view", "%q is not axial, coronal or sagittal", v.View)
	}
	if v.Slice < 0 {
		return invalid("slice", "must be non-negative, got %d", v.Slice)
	}
	if v.FrameRate <= 0 {
		return invalid("frame-per-second", "must be positive, got %g", v.FrameRate)
	}
	if v.Duration <= 0 {
		return invalid("video-time", "must be positive, got %g", v.Duration)
	}
	if v.Phases < 1 {
		return invalid("phases", "must be at least 1, got %d", v.Phases)
	}
	if v.BreathingPeriod <= 0 {
		return invalid("breathing-cycle-time", "must be positive, got %g", v.BreathingPeriod)
	}
	if v.ReferencePhase < 0 || v.ReferencePhase >= v.Phases {
		return invalid("reference-phase", "%d outside [0,%d)", v.ReferencePhase, v.Phases)
	}
	if v.Amplitude <= 0 {
		return invalid("breathing-amplitude", "must be positive, got %g", v.Amplitude)
	}
	if v.AmplitudeType != AmplitudeRegular && v.AmplitudeType != AmplitudeRandom {
		return invalid("breathing-amplitude-type", "%q is not regular or random", v.AmplitudeType)
	}

	s := c.Segments
	if len(s.LabelsOutput) != 0 && len(s.LabelsOutput) != len(s.LabelsInput) {
		return invalid("labels-output", "%d names for %d input labels", len(s.LabelsOutput), len(s.LabelsInput))
	}
	switch s.Interpolation {
	case "linear", "nearest":
	default:
		return invalid("interpolation", "%q is not linear or nearest", s.Interpolation)
	}

	if c.Processing.Workers < 1 {
		return invalid("workers", "must be at least 1, got %d", c.Processing.Workers)
	}

	switch c.Output.Format {
	case "nii", "tiff":
	default:
		return invalid("format", "%q is not nii or tiff", c.Output.Format)
	}
	return nil
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	// Check if config file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	// Keys missing from the file keep their defaults
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	// Create directory if it doesn't exist
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
	cfg := DefaultConfig()
	return SaveConfig(cfg, configPath)
}
