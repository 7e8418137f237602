// Package config loads the settings file read by the pageaudit command.
package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/dd0wney/cluso-perfsim/pkg/artifacts"
	"github.com/dd0wney/cluso-perfsim/pkg/audit"
	"github.com/dd0wney/cluso-perfsim/pkg/logging"
	"github.com/dd0wney/cluso-perfsim/pkg/throttling"
	"github.com/dd0wney/cluso-perfsim/pkg/validation"
)

// Output formats
const (
	OutputJSON  = "json"
	OutputTable = "table"
)

// DefaultPreset names the throttling preset used when none is configured
const DefaultPreset = "mobile"

// ErrInvalidSettings wraps every settings validation failure
var ErrInvalidSettings = errors.New("invalid settings")

// Settings holds everything needed to run one audit from the command line.
//
// Throttling is resolved in layers: the named preset, then ProfileFile, then
// the inline throttling section. Each layer only overrides the fields it sets.
type Settings struct {
	Artifacts   string `yaml:"artifacts"`
	Preset      string `yaml:"preset" validate:"omitempty,oneof=mobile desktop provided"`
	ProfileFile string `yaml:"profile_file"`
	Output      string `yaml:"output" validate:"oneof=json table"`
	LogLevel    string `yaml:"log_level" validate:"oneof=debug info warn error"`
	Workers     int    `yaml:"workers" validate:"gte=1,lte=256"`
	// MetricsFile receives the Prometheus text exposition after the run
	MetricsFile string `yaml:"metrics_file"`

	Throttling yaml.Node           `yaml:"throttling" validate:"-"`
	S3         artifacts.S3Options `yaml:"s3" validate:"-"`
}

// Default returns settings with every optional field filled.
func Default() *Settings {
	return &Settings{
		Preset:   DefaultPreset,
		Output:   OutputJSON,
		LogLevel: "info",
		Workers:  audit.DefaultWorkers,
	}
}

// Parse decodes a YAML settings document on top of Default.
func Parse(data []byte) (*Settings, error) {
	s := Default()
	if err := yaml.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("failed to parse settings: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Load reads a settings file.
func Load(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read settings: %w", err)
	}
	return Parse(data)
}

// Validate checks field constraints. The artifacts location is checked
// separately by Resolve because it is usually supplied on the command line.
func (s *Settings) Validate() error {
	cv := validation.NewConfigValidator("Settings").
		Struct(s).
		Custom("S3", func() error {
			if (s.S3.AccessKeyID == "") != (s.S3.SecretAccessKey == "") {
				return errors.New("access_key_id and secret_access_key must be set together")
			}
			return nil
		})
	if err := cv.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSettings, err)
	}
	return nil
}

// Resolve validates the complete settings, including the artifacts location.
func (s *Settings) Resolve() error {
	cv := validation.NewConfigValidator("Settings").Required("Artifacts", s.Artifacts)
	if err := cv.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSettings, err)
	}
	return s.Validate()
}

// Profile resolves the throttling profile from the configured layers.
func (s *Settings) Profile() (throttling.Profile, error) {
	p, err := throttling.Preset(validation.DefaultOr(s.Preset, DefaultPreset))
	if err != nil {
		return throttling.Profile{}, err
	}

	if s.ProfileFile != "" {
		data, err := os.ReadFile(s.ProfileFile)
		if err != nil {
			return throttling.Profile{}, fmt.Errorf("failed to read throttling profile: %w", err)
		}
		if p, err = throttling.Parse(data, p); err != nil {
			return throttling.Profile{}, err
		}
	}

	if s.Throttling.Kind != 0 {
		data, err := yaml.Marshal(&s.Throttling)
		if err != nil {
			return throttling.Profile{}, fmt.Errorf("failed to encode throttling overrides: %w", err)
		}
		if p, err = throttling.Parse(data, p); err != nil {
			return throttling.Profile{}, err
		}
	}

	return p, p.Validate()
}

// Level returns the configured log level.
func (s *Settings) Level() logging.Level {
	return logging.ParseLevel(s.LogLevel)
}
