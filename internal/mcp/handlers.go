package mcp

import (
	"context"
	"errors"
	"fmt"
	"time"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"gopkg.in/yaml.v3"

	"github.com/nvandessel/hexmetrics/internal/constants"
	"github.com/nvandessel/hexmetrics/internal/export"
	"github.com/nvandessel/hexmetrics/internal/metrics"
	"github.com/nvandessel/hexmetrics/internal/models"
	"github.com/nvandessel/hexmetrics/internal/pathutil"
	"github.com/nvandessel/hexmetrics/internal/pipeline"
	"github.com/nvandessel/hexmetrics/internal/ratelimit"
	"github.com/nvandessel/hexmetrics/internal/store"
)

const (
	toolAnalyze    = "hexmetrics_analyze"
	toolAbsorption = "hexmetrics_absorption"
	toolSeries     = "hexmetrics_series"
	toolCurves     = "hexmetrics_curves"
	toolHistory    = "hexmetrics_history"

	configResourceURI = "hexmetrics://config"
)

// toolRates bounds how often each tool may run. Every tool re-reads its input,
// so the limits are generous but finite.
var toolRates = map[string]ratelimit.Rate{
	toolAnalyze:    {PerMinute: 10, Burst: 3},
	toolAbsorption: {PerMinute: 30, Burst: 5},
	toolSeries:     {PerMinute: 30, Burst: 5},
	toolCurves:     {PerMinute: 30, Burst: 5},
	toolHistory:    {PerMinute: 60, Burst: 10},
}

// registerTools registers all hexmetrics MCP tools with the server.
func (s *Server) registerTools() {
	sdk.AddTool(s.server, &sdk.Tool{
		Name:        toolAnalyze,
		Description: "Run the full analysis over simulation runs; optionally write CSV/Arrow tables and store the report in SQLite",
	}, s.handleAnalyze)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        toolAbsorption,
		Description: "Report the first round each run was fully covered by the absorbing token, with ratio, mean, median and histogram",
	}, s.handleAbsorption)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        toolSeries,
		Description: "Token counts per round for one run, plus a description of its starting board",
	}, s.handleSeries)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        toolCurves,
		Description: "Mean token count per round over all, absorbed or unabsorbed runs, for the whole board and each region",
	}, s.handleCurves)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        toolHistory,
		Description: "List reports stored in a hexmetrics SQLite database",
	}, s.handleHistory)
}

// registerResources exposes the effective configuration.
func (s *Server) registerResources() {
	s.server.AddResource(&sdk.Resource{
		URI:         configResourceURI,
		Name:        "hexmetrics-config",
		Description: "Effective legend, absorbing token, region geometry and worker settings used by every tool.",
		MIMEType:    "application/yaml",
	}, s.handleConfigResource)
}

func (s *Server) handleConfigResource(ctx context.Context, req *sdk.ReadResourceRequest) (*sdk.ReadResourceResult, error) {
	data, err := yaml.Marshal(s.settings)
	if err != nil {
		return nil, fmt.Errorf("failed to render configuration: %w", err)
	}
	return &sdk.ReadResourceResult{
		Contents: []*sdk.ResourceContents{{
			URI:      configResourceURI,
			MIMEType: "application/yaml",
			Text:     string(data),
		}},
	}, nil
}

// checkPaths validates every non-empty path against the data roots.
func (s *Server) checkPaths(paths ...string) error {
	for _, p := range paths {
		if p == "" {
			continue
		}
		if err := pathutil.ValidatePath(p, s.roots); err != nil {
			return fmt.Errorf("path rejected: %w", err)
		}
	}
	return nil
}

// run executes one pipeline invocation over input or table. An aborted
// invocation is returned with a nil error; callers decide how to report it.
func (s *Server) run(ctx context.Context, input, table, token string) (*pipeline.Outcome, error) {
	if err := s.checkPaths(input, table); err != nil {
		return nil, err
	}
	in, err := export.OpenInput(input, table)
	if err != nil {
		return nil, err
	}

	opts := pipeline.Options{
		Fallback:        models.Legend(s.settings.Legend),
		AbsorptionToken: s.settings.Absorption.Token,
		Geometry:        s.settings.Regions,
		Workers:         s.settings.Workers,
	}
	if token != "" {
		opts.AbsorptionToken = token
	}
	p := pipeline.New(opts)
	p.SetLogger(s.logger, s.diagnostics)
	return p.Run(ctx, in), nil
}

// report runs the pipeline and turns an aborted outcome into an error.
func (s *Server) report(ctx context.Context, input, table, token string) (*pipeline.Outcome, error) {
	out, err := s.run(ctx, input, table, token)
	if err != nil {
		return nil, err
	}
	if !out.Completed() {
		return nil, fmt.Errorf("analysis aborted: %s", out.Reason)
	}
	return out, nil
}

func (s *Server) handleAnalyze(ctx context.Context, req *sdk.CallToolRequest, args AnalyzeInput) (_ *sdk.CallToolResult, _ AnalyzeOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool(toolAnalyze, start, retErr, map[string]string{
			"input": args.Input, "table": args.Table, "output_dir": args.OutputDir, "database": args.Database,
		})
	}()

	if err := s.limiter.Allow(toolAnalyze); err != nil {
		return nil, AnalyzeOutput{}, err
	}
	if args.Arrow && args.OutputDir == "" {
		return nil, AnalyzeOutput{}, fmt.Errorf("arrow output needs output_dir")
	}
	if err := s.checkPaths(args.OutputDir, args.Database); err != nil {
		return nil, AnalyzeOutput{}, err
	}

	out, err := s.run(ctx, args.Input, args.Table, args.Token)
	if err != nil {
		return nil, AnalyzeOutput{}, err
	}
	result := AnalyzeOutput{
		ID:       out.ID,
		Status:   string(out.Status),
		Runs:     out.Runs,
		Skipped:  out.Skipped,
		Warnings: out.Warnings,
		Reason:   out.Reason,
	}
	if !out.Completed() {
		result.Message = fmt.Sprintf("Analysis aborted: %s", out.Reason)
		return nil, result, nil
	}

	r := out.Report
	result.Summary = &r.Summary
	result.FinalTotals = r.FinalTotals

	if args.OutputDir != "" {
		w := export.NewWriter(args.OutputDir, args.Arrow)
		w.SetLogger(s.logger)
		files, err := w.WriteReport(r)
		if err != nil {
			return nil, result, fmt.Errorf("writing tables: %w", err)
		}
		result.Files = files
	}
	if args.Database != "" {
		db, err := store.Open(args.Database)
		if err != nil {
			return nil, result, err
		}
		defer db.Close()
		if err := db.SaveReport(ctx, r); err != nil {
			return nil, result, fmt.Errorf("storing report: %w", err)
		}
	}

	result.Message = fmt.Sprintf("Analysed %d runs (%d skipped): %d absorbed", out.Runs, len(out.Skipped), r.Summary.Absorbed)
	if len(result.Files) > 0 {
		result.Message += fmt.Sprintf(", %d files written", len(result.Files))
	}
	return nil, result, nil
}

func (s *Server) handleAbsorption(ctx context.Context, req *sdk.CallToolRequest, args AbsorptionInput) (_ *sdk.CallToolResult, _ AbsorptionOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool(toolAbsorption, start, retErr, map[string]string{"input": args.Input, "table": args.Table})
	}()

	if err := s.limiter.Allow(toolAbsorption); err != nil {
		return nil, AbsorptionOutput{}, err
	}
	out, err := s.report(ctx, args.Input, args.Table, args.Token)
	if err != nil {
		return nil, AbsorptionOutput{}, err
	}

	token := args.Token
	if token == "" {
		token = s.settings.Absorption.Token
	}
	return nil, AbsorptionOutput{
		Token:   token,
		Code:    out.Report.AbsorptionCode,
		Summary: out.Report.Summary,
		Results: out.Report.Absorption,
		Skipped: out.Skipped,
	}, nil
}

func (s *Server) handleSeries(ctx context.Context, req *sdk.CallToolRequest, args SeriesInput) (_ *sdk.CallToolResult, _ SeriesOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool(toolSeries, start, retErr, map[string]string{"input": args.Input, "table": args.Table, "run": args.Run})
	}()

	if err := s.limiter.Allow(toolSeries); err != nil {
		return nil, SeriesOutput{}, err
	}
	if args.Run == "" {
		return nil, SeriesOutput{}, fmt.Errorf("run is required")
	}
	out, err := s.report(ctx, args.Input, args.Table, args.Token)
	if err != nil {
		return nil, SeriesOutput{}, err
	}

	series, composition, ok := out.Report.Series(args.Run)
	if !ok {
		return nil, SeriesOutput{}, fmt.Errorf("run %q has no recorded rounds", args.Run)
	}
	return nil, SeriesOutput{
		Run:         args.Run,
		Labels:      out.Report.Labels,
		Composition: composition,
		Series:      series,
	}, nil
}

func (s *Server) handleCurves(ctx context.Context, req *sdk.CallToolRequest, args CurvesInput) (_ *sdk.CallToolResult, _ CurvesOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool(toolCurves, start, retErr, map[string]string{"input": args.Input, "table": args.Table, "subset": args.Subset})
	}()

	if err := s.limiter.Allow(toolCurves); err != nil {
		return nil, CurvesOutput{}, err
	}
	subset := constants.SubsetAll
	if args.Subset != "" {
		subset = constants.Subset(args.Subset)
	}
	if !subset.Valid() {
		return nil, CurvesOutput{}, fmt.Errorf("invalid subset %q (valid: %v)", args.Subset, constants.Subsets())
	}

	out, err := s.report(ctx, args.Input, args.Table, args.Token)
	if err != nil {
		return nil, CurvesOutput{}, err
	}

	curves := []metrics.Curve{}
	for _, c := range out.Report.CurvesFor(subset.String()) {
		if args.Region == "" || c.Region == args.Region {
			curves = append(curves, c)
		}
	}
	if args.Region != "" && len(curves) == 0 {
		return nil, CurvesOutput{}, fmt.Errorf("unknown or empty region %q", args.Region)
	}
	return nil, CurvesOutput{Labels: out.Report.Labels, Curves: curves}, nil
}

func (s *Server) handleHistory(ctx context.Context, req *sdk.CallToolRequest, args HistoryInput) (_ *sdk.CallToolResult, _ HistoryOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool(toolHistory, start, retErr, map[string]string{"database": args.Database})
	}()

	if err := s.limiter.Allow(toolHistory); err != nil {
		return nil, HistoryOutput{}, err
	}
	if args.Database == "" {
		return nil, HistoryOutput{}, errors.New("database is required")
	}
	if err := s.checkPaths(args.Database); err != nil {
		return nil, HistoryOutput{}, err
	}

	db, err := store.Open(args.Database)
	if err != nil {
		return nil, HistoryOutput{}, err
	}
	defer db.Close()

	invs, err := db.Invocations(ctx)
	if err != nil {
		return nil, HistoryOutput{}, err
	}
	items := make([]InvocationItem, 0, len(invs))
	for _, inv := range invs {
		items = append(items, InvocationItem{
			ID:        inv.ID,
			CreatedAt: inv.CreatedAt.Format(time.RFC3339),
			Runs:      inv.Runs,
			Absorbed:  inv.Summary.Absorbed,
			Ratio:     inv.Summary.Ratio,
			Labels:    inv.Labels,
		})
	}
	return nil, HistoryOutput{Invocations: items, Count: len(items)}, nil
}
