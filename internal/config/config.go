// Package config provides unified configuration loading for hexmetrics.
// It supports loading from YAML files and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/nvandessel/hexmetrics/internal/constants"
	"github.com/nvandessel/hexmetrics/internal/logging"
	"github.com/nvandessel/hexmetrics/internal/models"
	"github.com/nvandessel/hexmetrics/internal/regions"
)

// Config contains all hexmetrics configuration settings.
type Config struct {
	// Legend is the fallback name -> code mapping for runs that carry none.
	Legend Legend `json:"legend" yaml:"legend"`

	// Absorption configures the absorption detector.
	Absorption AbsorptionConfig `json:"absorption" yaml:"absorption"`

	// Regions is the board geometry used for regional counts.
	Regions regions.Geometry `json:"regions" yaml:"regions"`

	// Workers bounds concurrent source decoding.
	Workers int `json:"workers" yaml:"workers"`

	// Output contains settings for the analyze command's sinks.
	Output OutputConfig `json:"output" yaml:"output"`

	// Logging contains settings for operational and diagnostic logging.
	Logging LoggingConfig `json:"logging" yaml:"logging"`
}

// AbsorptionConfig selects the absorbing token.
type AbsorptionConfig struct {
	// Token is a legend name ("WILDS") or an integer code ("1").
	Token string `json:"token" yaml:"token"`
}

// OutputConfig configures where analysis results are written.
type OutputConfig struct {
	// Dir receives the CSV tables.
	Dir string `json:"dir" yaml:"dir"`

	// Database, when set, is a SQLite file the report is also stored in.
	Database string `json:"database,omitempty" yaml:"database,omitempty"`

	// Arrow additionally writes the tidy table as an Arrow IPC file.
	Arrow bool `json:"arrow" yaml:"arrow"`
}

// LoggingConfig configures hexmetrics' logging behavior.
type LoggingConfig struct {
	// Level sets the log verbosity: "info" (default), "debug", "trace", "warn" or "error".
	Level string `json:"level" yaml:"level"`

	// DiagnosticsFile, when set, receives JSONL diagnostics for every
	// invocation. Supports ${VAR} syntax for env vars.
	DiagnosticsFile string `json:"diagnostics_file,omitempty" yaml:"diagnostics_file,omitempty"`

	// Rotation bounds the diagnostics file.
	Rotation logging.Rotation `json:"rotation" yaml:"rotation"`
}

// Legend is an ordered name -> code mapping written as a YAML mapping:
//
//	legend:
//	  WILDS: 1
//	  WASTES: 2
type Legend models.Legend

// UnmarshalYAML keeps the mapping's declaration order.
func (l *Legend) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: legend must be a mapping of name to code", node.Line)
	}
	out := make(Legend, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, val := node.Content[i], node.Content[i+1]
		var code int
		if err := val.Decode(&code); err != nil {
			return fmt.Errorf("line %d: legend code for %q must be an integer", val.Line, key.Value)
		}
		out = append(out, models.LegendEntry{Name: key.Value, Code: code})
	}
	*l = out
	return nil
}

// MarshalYAML writes the legend back as an ordered mapping.
func (l Legend) MarshalYAML() (any, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, e := range l {
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Value: e.Name},
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!int", Value: strconv.Itoa(e.Code)},
		)
	}
	return node, nil
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Legend: Legend(models.DefaultLegend()),
		Absorption: AbsorptionConfig{
			Token: constants.DefaultAbsorptionToken,
		},
		Regions: regions.DefaultGeometry(),
		Workers: constants.DefaultWorkers,
		Output: OutputConfig{
			Dir: constants.DefaultOutputDir,
		},
		Logging: LoggingConfig{
			Level: "info",
			Rotation: logging.Rotation{
				MaxSizeMB:  constants.DefaultDiagnosticsMaxSizeMB,
				MaxBackups: constants.DefaultDiagnosticsMaxBackups,
				MaxAgeDays: constants.DefaultDiagnosticsMaxAgeDays,
			},
		},
	}
}

// Load loads configuration from the default locations and environment variables.
// Order: defaults -> ~/.hexmetrics/config.yaml -> path (or ./hexmetrics.yaml
// when path is empty) -> environment variables.
// Later layers only override the keys they set.
func Load(path string) (*Config, error) {
	config := Default()

	// Try to load from default config file
	homeDir, err := os.UserHomeDir()
	if err == nil {
		configPath := filepath.Join(homeDir, constants.ConfigDirName, constants.ConfigFileName)
		if err := mergeFile(config, configPath, false); err != nil {
			return nil, err
		}
	}

	if path != "" {
		if err := mergeFile(config, path, true); err != nil {
			return nil, err
		}
	} else if err := mergeFile(config, constants.LocalConfigFileName, false); err != nil {
		return nil, err
	}

	// Apply environment variable overrides
	applyEnvOverrides(config)
	config.Logging.DiagnosticsFile = expandEnvVars(config.Logging.DiagnosticsFile)

	return config, nil
}

// LoadFromFile loads configuration from a specific YAML file on top of the
// defaults.
func LoadFromFile(path string) (*Config, error) {
	config := Default()
	if err := mergeFile(config, path, true); err != nil {
		return nil, err
	}
	config.Logging.DiagnosticsFile = expandEnvVars(config.Logging.DiagnosticsFile)
	return config, nil
}

// mergeFile decodes path into config. A missing file is an error only when
// required is set.
func mergeFile(config *Config, path string, required bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !required {
			return nil
		}
		return fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, config); err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return nil
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.Workers < 0 || c.Workers > constants.MaxWorkers {
		return fmt.Errorf("workers must be between 0 and %d, got %d", constants.MaxWorkers, c.Workers)
	}

	if strings.TrimSpace(c.Absorption.Token) == "" {
		return fmt.Errorf("absorption token must not be empty")
	}

	names := make(map[string]bool, len(c.Legend))
	codes := make(map[int]string, len(c.Legend))
	for _, e := range c.Legend {
		if e.Name == "" {
			return fmt.Errorf("legend entry with code %d has no name", e.Code)
		}
		if names[e.Name] {
			return fmt.Errorf("legend name %s declared twice", e.Name)
		}
		if prev, ok := codes[e.Code]; ok {
			return fmt.Errorf("legend code %d used by both %s and %s", e.Code, prev, e.Name)
		}
		names[e.Name] = true
		codes[e.Code] = e.Name
	}

	if err := c.Regions.Validate(); err != nil {
		return fmt.Errorf("invalid regions: %w", err)
	}

	validLevels := map[string]bool{"info": true, "debug": true, "trace": true, "warn": true, "error": true}
	if c.Logging.Level != "" && !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (valid: info, debug, trace, warn, error, or empty for default)", c.Logging.Level)
	}

	r := c.Logging.Rotation
	if r.MaxSizeMB < 0 || r.MaxBackups < 0 || r.MaxAgeDays < 0 {
		return fmt.Errorf("rotation limits must be non-negative")
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides to the config.
func applyEnvOverrides(config *Config) {
	if v := os.Getenv(constants.EnvPrefix + "LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}

	if v := os.Getenv(constants.EnvPrefix + "WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Workers = n
		}
	}

	if v := os.Getenv(constants.EnvPrefix + "ABSORPTION_TOKEN"); v != "" {
		config.Absorption.Token = v
	}

	if v := os.Getenv(constants.EnvPrefix + "DIAGNOSTICS_FILE"); v != "" {
		config.Logging.DiagnosticsFile = v
	}

	if v := os.Getenv(constants.EnvPrefix + "OUTPUT_DIR"); v != "" {
		config.Output.Dir = v
	}
}

// expandEnvVars expands ${VAR} patterns in a string with environment variable values.
func expandEnvVars(s string) string {
	if !strings.Contains(s, "${") {
		return s
	}
	return os.Expand(s, os.Getenv)
}
