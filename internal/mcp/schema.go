package mcp

import (
	"github.com/nvandessel/hexmetrics/internal/absorption"
	"github.com/nvandessel/hexmetrics/internal/loader"
	"github.com/nvandessel/hexmetrics/internal/metrics"
	"github.com/nvandessel/hexmetrics/internal/models"
)

// AnalyzeInput defines the input for the hexmetrics_analyze tool. Exactly
// one of Input and Table is required; every path must lie inside the
// server's data roots.
type AnalyzeInput struct {
	Input     string `json:"input,omitempty" jsonschema:"Directory, ZIP archive or JSON file of simulation run documents"`
	Table     string `json:"table,omitempty" jsonschema:"Pre-merged tidy table (.csv or .arrow) to analyse instead of run documents"`
	Token     string `json:"token,omitempty" jsonschema:"Absorbing token: a legend name such as WILDS or an integer code (default from configuration)"`
	OutputDir string `json:"output_dir,omitempty" jsonschema:"Directory to write every result table into as CSV"`
	Arrow     bool   `json:"arrow,omitempty" jsonschema:"Also write the tidy table as an Arrow IPC file (needs output_dir)"`
	Database  string `json:"database,omitempty" jsonschema:"SQLite database file to store the report in"`
}

// AnalyzeOutput defines the output for the hexmetrics_analyze tool.
type AnalyzeOutput struct {
	ID          string                `json:"id" jsonschema:"Invocation ID"`
	Status      string                `json:"status" jsonschema:"completed or aborted"`
	Runs        int                   `json:"runs" jsonschema:"Number of runs analysed"`
	Skipped     []*loader.SourceError `json:"skipped,omitempty" jsonschema:"Sources skipped as malformed"`
	Warnings    []models.Diagnostic   `json:"warnings,omitempty" jsonschema:"Non-fatal diagnostics"`
	Reason      string                `json:"reason,omitempty" jsonschema:"Why the invocation was aborted"`
	Summary     *absorption.Summary   `json:"summary,omitempty" jsonschema:"Absorption summary"`
	FinalTotals []metrics.LabelCount  `json:"final_totals,omitempty" jsonschema:"Final-state token counts summed over runs"`
	Files       []string              `json:"files,omitempty" jsonschema:"Files written"`
	Message     string                `json:"message" jsonschema:"Human-readable result message"`
}

// AbsorptionInput defines the input for the hexmetrics_absorption tool.
type AbsorptionInput struct {
	Input string `json:"input,omitempty" jsonschema:"Directory, ZIP archive or JSON file of simulation run documents"`
	Table string `json:"table,omitempty" jsonschema:"Pre-merged tidy table (.csv or .arrow) to analyse instead of run documents"`
	Token string `json:"token,omitempty" jsonschema:"Absorbing token: a legend name such as WILDS or an integer code (default from configuration)"`
}

// AbsorptionOutput defines the output for the hexmetrics_absorption tool.
type AbsorptionOutput struct {
	Token   string                `json:"token" jsonschema:"Absorbing token as requested"`
	Code    int                   `json:"code" jsonschema:"Resolved integer code of the absorbing token"`
	Summary absorption.Summary    `json:"summary" jsonschema:"Ratio, mean and median absorption round and histogram"`
	Results []absorption.Result   `json:"results" jsonschema:"First absorbing round per run; null when never absorbed"`
	Skipped []*loader.SourceError `json:"skipped,omitempty" jsonschema:"Sources skipped as malformed"`
}

// SeriesInput defines the input for the hexmetrics_series tool.
type SeriesInput struct {
	Input string `json:"input,omitempty" jsonschema:"Directory, ZIP archive or JSON file of simulation run documents"`
	Table string `json:"table,omitempty" jsonschema:"Pre-merged tidy table (.csv or .arrow) to analyse instead of run documents"`
	Token string `json:"token,omitempty" jsonschema:"Absorbing token: a legend name such as WILDS or an integer code (default from configuration)"`
	Run   string `json:"run" jsonschema:"Run ID (source file name) to report"`
}

// SeriesOutput defines the output for the hexmetrics_series tool.
type SeriesOutput struct {
	Run         string               `json:"run"`
	Labels      []string             `json:"labels" jsonschema:"Token labels, in the order of every counts array"`
	Composition string               `json:"composition" jsonschema:"Text description of the first recorded round"`
	Series      []metrics.RoundCount `json:"series" jsonschema:"Token counts per round"`
}

// CurvesInput defines the input for the hexmetrics_curves tool.
type CurvesInput struct {
	Input  string `json:"input,omitempty" jsonschema:"Directory, ZIP archive or JSON file of simulation run documents"`
	Table  string `json:"table,omitempty" jsonschema:"Pre-merged tidy table (.csv or .arrow) to analyse instead of run documents"`
	Token  string `json:"token,omitempty" jsonschema:"Absorbing token: a legend name such as WILDS or an integer code (default from configuration)"`
	Subset string `json:"subset,omitempty" jsonschema:"all, absorbed or unabsorbed (default all)"`
	Region string `json:"region,omitempty" jsonschema:"Restrict to one region; empty returns the whole board and every region"`
}

// CurvesOutput defines the output for the hexmetrics_curves tool.
type CurvesOutput struct {
	Labels []string        `json:"labels" jsonschema:"Token labels, in the order of every mean array"`
	Curves []metrics.Curve `json:"curves" jsonschema:"Mean token count per round"`
}

// HistoryInput defines the input for the hexmetrics_history tool.
type HistoryInput struct {
	Database string `json:"database" jsonschema:"SQLite database file written by hexmetrics_analyze"`
}

// HistoryOutput defines the output for the hexmetrics_history tool.
type HistoryOutput struct {
	Invocations []InvocationItem `json:"invocations"`
	Count       int              `json:"count"`
}

// InvocationItem provides a list view of a stored report.
type InvocationItem struct {
	ID        string   `json:"id"`
	CreatedAt string   `json:"created_at" jsonschema:"RFC 3339 timestamp"`
	Runs      int      `json:"runs"`
	Absorbed  int      `json:"absorbed"`
	Ratio     *float64 `json:"ratio,omitempty"`
	Labels    []string `json:"labels"`
}
