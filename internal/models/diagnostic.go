package models

import "fmt"

// DiagnosticKind classifies a non-fatal problem found while ingesting data.
type DiagnosticKind string

const (
	DiagSourceSkipped  DiagnosticKind = "source_skipped"  // whole source dropped
	DiagRoundDropped   DiagnosticKind = "round_dropped"   // one timeline entry dropped
	DiagLegendIgnored  DiagnosticKind = "legend_ignored"  // malformed legend, run loaded without it
	DiagLegendConflict DiagnosticKind = "legend_conflict" // resolver kept an earlier mapping
	DiagRegionEmpty    DiagnosticKind = "region_empty"    // geometry region has no present positions
)

// Diagnostic is one warning recorded during a pipeline invocation.
// Source names the offending input (run ID, file name or region name).
type Diagnostic struct {
	Kind    DiagnosticKind `json:"kind"`
	Source  string         `json:"source"`
	Message string         `json:"message"`
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s: %s: %s", d.Kind, d.Source, d.Message)
}
