// Package constants provides named constants used throughout the hexmetrics codebase.
// This centralizes magic numbers and well-known names.
package constants

// Configuration locations
const (
	// ConfigDirName is the per-user configuration directory under $HOME.
	ConfigDirName = ".hexmetrics"

	// ConfigFileName is the YAML file inside ConfigDirName.
	ConfigFileName = "config.yaml"

	// LocalConfigFileName is picked up from the working directory when no
	// explicit --config is given.
	LocalConfigFileName = "hexmetrics.yaml"

	// EnvPrefix prefixes every environment override.
	EnvPrefix = "HEXMETRICS_"
)

// Worker pool bounds
const (
	// DefaultWorkers is the number of concurrent source decoders.
	DefaultWorkers = 4

	// MaxWorkers caps the configured worker count.
	MaxWorkers = 256
)

// Analysis defaults
const (
	// DefaultAbsorptionToken is the token whose full coverage ends a run.
	DefaultAbsorptionToken = "WILDS"

	// DefaultOutputDir is where analyze writes its tables.
	DefaultOutputDir = "analysis_out"
)

// Diagnostics file rotation defaults
const (
	DefaultDiagnosticsMaxSizeMB  = 10
	DefaultDiagnosticsMaxBackups = 3
	DefaultDiagnosticsMaxAgeDays = 28
)
