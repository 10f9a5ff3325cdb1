package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/banshee-data/gait.report/internal/gait"
	"github.com/banshee-data/gait.report/internal/ingest"
	"github.com/banshee-data/gait.report/internal/units"
)

// DefaultConfigPath is the path to the canonical analysis defaults file.
const DefaultConfigPath = "config/analysis.defaults.json"

// AnalysisConfig is the root configuration for step analysis, capture and
// publishing. Every field is optional; the Get* methods supply defaults for
// anything left unset, so partial files are safe.
type AnalysisConfig struct {
	// Pipeline params
	ThresholdFactor *float64 `json:"threshold_factor,omitempty" yaml:"threshold_factor,omitempty"`
	ZeroState       *bool    `json:"zero_state,omitempty" yaml:"zero_state,omitempty"`
	SampleRateHz    *float64 `json:"sample_rate_hz,omitempty" yaml:"sample_rate_hz,omitempty"`

	// Recording params
	HeaderLines *int    `json:"header_lines,omitempty" yaml:"header_lines,omitempty"`
	MaxSamples  *int    `json:"max_samples,omitempty" yaml:"max_samples,omitempty"`
	Units       *string `json:"units,omitempty" yaml:"units,omitempty"`

	Serial *SerialConfig `json:"serial,omitempty" yaml:"serial,omitempty"`
	MQTT   *MQTTConfig   `json:"mqtt,omitempty" yaml:"mqtt,omitempty"`
}

// SerialConfig describes a live accelerometer attached over a serial port.
type SerialConfig struct {
	Port            string   `json:"port" yaml:"port"`
	BaudRate        int      `json:"baud_rate,omitempty" yaml:"baud_rate,omitempty"`
	DataBits        int      `json:"data_bits,omitempty" yaml:"data_bits,omitempty"`
	StopBits        int      `json:"stop_bits,omitempty" yaml:"stop_bits,omitempty"`
	Parity          string   `json:"parity,omitempty" yaml:"parity,omitempty"`
	CaptureDuration string   `json:"capture_duration,omitempty" yaml:"capture_duration,omitempty"` // duration string like "60s"
	InitCommands    []string `json:"init_commands,omitempty" yaml:"init_commands,omitempty"`
}

// MQTTConfig describes where analysis summaries are published.
type MQTTConfig struct {
	Broker   string `json:"broker" yaml:"broker"`
	Topic    string `json:"topic,omitempty" yaml:"topic,omitempty"`
	ClientID string `json:"client_id,omitempty" yaml:"client_id,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyAnalysisConfig returns an AnalysisConfig with all fields set to nil.
func EmptyAnalysisConfig() *AnalysisConfig {
	return &AnalysisConfig{}
}

// LoadAnalysisConfig loads an AnalysisConfig from a JSON or YAML file,
// chosen by extension. The file must be under 1MB.
func LoadAnalysisConfig(path string) (*AnalysisConfig, error) {
	cleanPath := filepath.Clean(path)
	ext := strings.ToLower(filepath.Ext(cleanPath))
	if ext != ".json" && ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("config file must have .json, .yaml or .yml extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyAnalysisConfig()
	if ext == ".json" {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config JSON: %w", err)
		}
	} else {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config YAML: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical defaults from DefaultConfigPath,
// searching the current directory and its parents up to the repo root.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *AnalysisConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,    // from internal/config/
		"../../../" + DefaultConfigPath, // deeper packages
	}
	for _, path := range candidates {
		if cfg, err := LoadAnalysisConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *AnalysisConfig) Validate() error {
	if c.ThresholdFactor != nil && *c.ThresholdFactor <= 0 {
		return fmt.Errorf("threshold_factor must be positive, got %f", *c.ThresholdFactor)
	}

	if c.SampleRateHz != nil && *c.SampleRateHz <= 0 {
		return fmt.Errorf("sample_rate_hz must be positive, got %f", *c.SampleRateHz)
	}

	if c.HeaderLines != nil && *c.HeaderLines < 0 {
		return fmt.Errorf("header_lines must be non-negative, got %d", *c.HeaderLines)
	}

	if c.MaxSamples != nil && *c.MaxSamples < 0 {
		return fmt.Errorf("max_samples must be non-negative, got %d", *c.MaxSamples)
	}

	if c.Units != nil && !units.IsValid(*c.Units) {
		return fmt.Errorf("invalid units %q: must be one of %s", *c.Units, units.GetValidUnitsString())
	}

	if c.Serial != nil && c.Serial.CaptureDuration != "" {
		if _, err := time.ParseDuration(c.Serial.CaptureDuration); err != nil {
			return fmt.Errorf("invalid serial.capture_duration '%s': %w", c.Serial.CaptureDuration, err)
		}
	}

	if c.MQTT != nil && c.MQTT.Broker == "" {
		return fmt.Errorf("mqtt.broker is required when mqtt is configured")
	}

	return nil
}

// GetThresholdFactor returns the threshold_factor value or the default.
func (c *AnalysisConfig) GetThresholdFactor() float64 {
	if c.ThresholdFactor == nil {
		return 0.5
	}
	return *c.ThresholdFactor
}

// GetZeroState returns the zero_state value or the default.
func (c *AnalysisConfig) GetZeroState() bool {
	if c.ZeroState == nil {
		return false // default: preset filter state
	}
	return *c.ZeroState
}

// GetSampleRateHz returns the sample_rate_hz value or the default.
func (c *AnalysisConfig) GetSampleRateHz() float64 {
	if c.SampleRateHz == nil {
		return 20
	}
	return *c.SampleRateHz
}

// GetHeaderLines returns the header_lines value or the default.
func (c *AnalysisConfig) GetHeaderLines() int {
	if c.HeaderLines == nil {
		return 1
	}
	return *c.HeaderLines
}

// GetMaxSamples returns the max_samples value or the default (0, unbounded).
func (c *AnalysisConfig) GetMaxSamples() int {
	if c.MaxSamples == nil {
		return 0
	}
	return *c.MaxSamples
}

// GetUnits returns the units value or the default.
func (c *AnalysisConfig) GetUnits() string {
	if c.Units == nil {
		return units.G
	}
	return *c.Units
}

// GetCaptureDuration parses serial.capture_duration, defaulting to one minute.
func (c *AnalysisConfig) GetCaptureDuration() time.Duration {
	if c.Serial == nil || c.Serial.CaptureDuration == "" {
		return time.Minute
	}
	d, err := time.ParseDuration(c.Serial.CaptureDuration)
	if err != nil {
		return time.Minute // default on parse error
	}
	return d
}

// GetMQTTTopic returns mqtt.topic or the default topic.
func (c *AnalysisConfig) GetMQTTTopic() string {
	if c.MQTT == nil || c.MQTT.Topic == "" {
		return "gait/summary"
	}
	return c.MQTT.Topic
}

// GaitOptions returns the pipeline options this configuration selects.
func (c *AnalysisConfig) GaitOptions() gait.Options {
	return gait.Options{
		ThresholdFactor: c.GetThresholdFactor(),
		ZeroState:       c.GetZeroState(),
		SampleRateHz:    c.GetSampleRateHz(),
	}
}

// IngestOptions returns the recording reader options.
func (c *AnalysisConfig) IngestOptions() ingest.Options {
	return ingest.Options{
		HeaderLines: c.GetHeaderLines(),
		MaxSamples:  c.GetMaxSamples(),
	}
}
