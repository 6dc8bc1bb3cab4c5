// Package pipeline wires loading, table building, region partitioning,
// absorption detection and aggregation into one invocation.
//
// Run never panics on bad input. It returns an Outcome that either carries a
// completed Report (possibly with skipped sources) or the reason the
// invocation was aborted.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/nvandessel/hexmetrics/internal/absorption"
	"github.com/nvandessel/hexmetrics/internal/constants"
	"github.com/nvandessel/hexmetrics/internal/legend"
	"github.com/nvandessel/hexmetrics/internal/loader"
	"github.com/nvandessel/hexmetrics/internal/logging"
	"github.com/nvandessel/hexmetrics/internal/metrics"
	"github.com/nvandessel/hexmetrics/internal/models"
	"github.com/nvandessel/hexmetrics/internal/regions"
	"github.com/nvandessel/hexmetrics/internal/tidy"
)

// ErrUnknownToken is returned when the absorption token names neither a
// legend entry nor an integer code.
var ErrUnknownToken = errors.New("unknown absorption token")

// Status is the terminal state of an invocation.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusAborted   Status = "aborted"
)

// Input is what one invocation analyses: raw run documents, or a pre-merged
// table when Table or ReadTable is set. Warnings raised while reading the
// input are carried into the outcome.
type Input struct {
	Sources []loader.Source
	Table   *tidy.Table

	// ReadTable loads the table when the invocation starts. Its error aborts
	// the invocation at the "read" stage; its warnings are kept either way.
	ReadTable func() (*tidy.Table, []models.Diagnostic, error)

	Warnings []models.Diagnostic
}

// Options configure an invocation.
type Options struct {
	// Fallback legend used for codes no source declares.
	Fallback models.Legend
	// AbsorptionToken is a legend name or an integer code.
	AbsorptionToken string
	Geometry        regions.Geometry
	Workers         int
}

// DefaultOptions returns the stock legend, WILDS absorption and the 11-hex
// geometry.
func DefaultOptions() Options {
	return Options{
		Fallback:        models.DefaultLegend(),
		AbsorptionToken: constants.DefaultAbsorptionToken,
		Geometry:        regions.DefaultGeometry(),
		Workers:         loader.DefaultWorkers,
	}
}

// Error is the reason an invocation was aborted. Stage names the step that
// failed; Err wraps one of the models sentinels, ErrUnknownToken, a context
// error or the table reader's error.
type Error struct {
	Stage string
	Err   error
}

func (e *Error) Error() string { return fmt.Sprintf("%s: %v", e.Stage, e.Err) }

func (e *Error) Unwrap() error { return e.Err }

// Outcome is the structured result of Run.
type Outcome struct {
	ID       string                `json:"id"`
	Status   Status                `json:"status"`
	Runs     int                   `json:"runs"`
	Skipped  []*loader.SourceError `json:"skipped"`
	Warnings []models.Diagnostic   `json:"warnings"`
	Reason   string                `json:"reason,omitempty"`
	Err      *Error                `json:"-"`
	Report   *Report               `json:"-"`
}

// Completed reports whether a Report was produced.
func (o *Outcome) Completed() bool { return o.Status == StatusCompleted }

// Pipeline runs invocations with fixed options.
type Pipeline struct {
	opts        Options
	logger      *slog.Logger
	diagnostics *logging.DiagnosticLogger
}

// New creates a pipeline. Zero Workers uses loader.DefaultWorkers.
func New(opts Options) *Pipeline {
	return &Pipeline{opts: opts}
}

// SetLogger sets the structured logger and diagnostic logger for observability.
func (p *Pipeline) SetLogger(logger *slog.Logger, diagnostics *logging.DiagnosticLogger) {
	p.logger = logger
	p.diagnostics = diagnostics
}

// Run executes one invocation.
func (p *Pipeline) Run(ctx context.Context, in Input) *Outcome {
	out := &Outcome{ID: uuid.NewString()}
	started := time.Now()

	runs, table, err := p.ingest(ctx, in, out)
	if err != nil {
		return p.abort(out, err)
	}

	resolver := legend.NewResolver(p.opts.Fallback)
	for _, r := range runs {
		resolver.Add(r.ID, r.Legend)
	}
	for _, a := range resolver.Anomalies() {
		out.Warnings = append(out.Warnings, a.Diagnostic())
	}
	lg := resolver.Resolve()

	code, ok := lg.Lookup(p.opts.AbsorptionToken)
	if !ok && len(runs) > 0 {
		return p.abort(out, &Error{Stage: "absorption", Err: fmt.Errorf("%w: %q", ErrUnknownToken, p.opts.AbsorptionToken)})
	}

	parts, warnings := regions.Partition(table.Positions(), p.opts.Geometry)
	out.Warnings = append(out.Warnings, warnings...)

	results := absorption.NewDetector(code).DetectAll(runs)
	agg := metrics.New(table, lg, parts)
	out.Report = newReport(out.ID, started, lg, code, agg, results)
	out.Status = StatusCompleted
	out.Runs = len(runs)

	p.record(out)
	if p.logger != nil {
		p.logger.Info("analysis complete",
			"invocation", out.ID,
			"runs", out.Runs,
			"skipped", len(out.Skipped),
			"warnings", len(out.Warnings),
			"absorbed", out.Report.Summary.Absorbed,
			"elapsed", time.Since(started))
	}
	return out
}

// ingest produces the runs and the table they flatten into.
func (p *Pipeline) ingest(ctx context.Context, in Input, out *Outcome) ([]*models.Run, *tidy.Table, error) {
	out.Warnings = append(out.Warnings, in.Warnings...)
	if in.ReadTable != nil {
		table, warnings, err := in.ReadTable()
		out.Warnings = append(out.Warnings, warnings...)
		if err != nil {
			return nil, nil, &Error{Stage: "read", Err: err}
		}
		in.Table = table
	}
	if in.Table != nil {
		return loader.FromTable(in.Table), in.Table, nil
	}

	batch, err := loader.LoadAll(ctx, in.Sources, p.opts.Workers)
	if err != nil {
		return nil, nil, &Error{Stage: "load", Err: err}
	}
	out.Skipped = batch.Skipped
	out.Warnings = append(out.Warnings, batch.Warnings...)
	if p.logger != nil {
		p.logger.Debug("sources loaded", "invocation", out.ID, "runs", len(batch.Runs), "skipped", len(batch.Skipped))
	}

	table, err := tidy.Build(batch.Runs)
	if err != nil {
		return nil, nil, &Error{Stage: "build", Err: err}
	}
	return batch.Runs, table, nil
}

func (p *Pipeline) abort(out *Outcome, err error) *Outcome {
	var perr *Error
	if !errors.As(err, &perr) {
		perr = &Error{Stage: "pipeline", Err: err}
	}
	out.Status = StatusAborted
	out.Err = perr
	out.Reason = perr.Error()
	out.Report = nil

	p.record(out)
	if p.logger != nil {
		p.logger.Error("analysis aborted", "invocation", out.ID, "reason", out.Reason)
	}
	return out
}

// record sends skipped sources and warnings to the diagnostic log.
func (p *Pipeline) record(out *Outcome) {
	for _, s := range out.Skipped {
		p.diagnostics.Diagnostic(out.ID, s.Diagnostic())
		if p.logger != nil {
			p.logger.Warn("source skipped", "source", s.Source, "cause", s.Cause)
		}
	}
	for _, w := range out.Warnings {
		p.diagnostics.Diagnostic(out.ID, w)
		if p.logger != nil {
			p.logger.Log(context.Background(), logging.LevelTrace, "diagnostic", "kind", w.Kind, "source", w.Source, "message", w.Message)
		}
	}
	p.diagnostics.Log(map[string]any{
		"invocation": out.ID,
		"kind":       "outcome",
		"status":     string(out.Status),
		"runs":       out.Runs,
		"skipped":    len(out.Skipped),
		"reason":     out.Reason,
	})
}

// Analyze runs a single invocation without logging.
func Analyze(ctx context.Context, in Input, opts Options) *Outcome {
	return New(opts).Run(ctx, in)
}
