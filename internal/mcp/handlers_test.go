package mcp

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/nvandessel/hexmetrics/internal/export"
	"github.com/nvandessel/hexmetrics/internal/ratelimit"
)

func TestHandleAnalyze(t *testing.T) {
	server, root, _ := setupTestServer(t)
	ctx := context.Background()
	outDir := filepath.Join(root, "out")
	dbPath := filepath.Join(root, "hexmetrics.db")

	_, out, err := server.handleAnalyze(ctx, nil, AnalyzeInput{
		Input:     filepath.Join(root, "runs"),
		OutputDir: outDir,
		Arrow:     true,
		Database:  dbPath,
	})
	if err != nil {
		t.Fatalf("handleAnalyze failed: %v", err)
	}
	if out.Status != "completed" || out.Runs != 2 {
		t.Errorf("Status = %s, Runs = %d", out.Status, out.Runs)
	}
	if out.Summary == nil || out.Summary.Absorbed != 1 {
		t.Errorf("Summary = %+v, want one absorbed run", out.Summary)
	}
	if _, err := os.Stat(filepath.Join(outDir, export.TidyArrowFile)); err != nil {
		t.Errorf("arrow file not written: %v", err)
	}
	if len(out.Files) == 0 || !strings.Contains(out.Message, "files written") {
		t.Errorf("Files = %v, Message = %q", out.Files, out.Message)
	}

	_, hist, err := server.handleHistory(ctx, nil, HistoryInput{Database: dbPath})
	if err != nil {
		t.Fatalf("handleHistory failed: %v", err)
	}
	if hist.Count != 1 || hist.Invocations[0].ID != out.ID || hist.Invocations[0].Runs != 2 {
		t.Errorf("History = %+v", hist)
	}
}

func TestHandleAnalyze_Aborted(t *testing.T) {
	server, root, _ := setupTestServer(t)
	_, out, err := server.handleAnalyze(context.Background(), nil, AnalyzeInput{
		Input: filepath.Join(root, "runs"),
		Token: "GOLD",
	})
	if err != nil {
		t.Fatalf("an aborted analysis is a result, not a tool error: %v", err)
	}
	if out.Status != "aborted" || !strings.Contains(out.Reason, "GOLD") {
		t.Errorf("Status = %s, Reason = %q", out.Status, out.Reason)
	}
	if out.Summary != nil {
		t.Error("aborted analysis should carry no summary")
	}
}

func TestHandleAnalyze_BadTableAborts(t *testing.T) {
	server, root, _ := setupTestServer(t)
	table := filepath.Join(root, "dup.csv")
	if err := os.WriteFile(table, []byte("file,round,pos_1\nx.json,0,1\nx.json,0,2\n"), 0644); err != nil {
		t.Fatal(err)
	}

	_, out, err := server.handleAnalyze(context.Background(), nil, AnalyzeInput{Table: table})
	if err != nil {
		t.Fatalf("a malformed table should abort the analysis, not fail the tool: %v", err)
	}
	if out.Status != "aborted" || out.ID == "" {
		t.Errorf("Status = %s, ID = %q", out.Status, out.ID)
	}
	if !strings.Contains(out.Reason, "duplicate key") {
		t.Errorf("Reason = %q, want duplicate key", out.Reason)
	}
}

func TestHandleAnalyze_Validation(t *testing.T) {
	server, root, _ := setupTestServer(t)
	outside := t.TempDir()

	tests := []struct {
		name    string
		args    AnalyzeInput
		wantErr string
	}{
		{"no input", AnalyzeInput{}, "exactly one"},
		{"both inputs", AnalyzeInput{Input: filepath.Join(root, "runs"), Table: filepath.Join(root, "t.csv")}, "exactly one"},
		{"input outside roots", AnalyzeInput{Input: outside}, "outside the data roots"},
		{"output outside roots", AnalyzeInput{Input: filepath.Join(root, "runs"), OutputDir: outside}, "outside the data roots"},
		{"traversal", AnalyzeInput{Input: filepath.Join(root, "..", "..", "etc")}, "outside the data roots"},
		{"arrow without output", AnalyzeInput{Input: filepath.Join(root, "runs"), Arrow: true}, "needs output_dir"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := server.handleAnalyze(context.Background(), nil, tt.args)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("handleAnalyze() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestHandleAbsorption(t *testing.T) {
	server, root, _ := setupTestServer(t)
	_, out, err := server.handleAbsorption(context.Background(), nil, AbsorptionInput{Input: filepath.Join(root, "runs")})
	if err != nil {
		t.Fatalf("handleAbsorption failed: %v", err)
	}
	if out.Token != "WILDS" || out.Code != 1 {
		t.Errorf("Token = %s, Code = %d", out.Token, out.Code)
	}
	if len(out.Results) != 2 || out.Results[0].RunID != "absorbing.json" || *out.Results[0].Round != 1 {
		t.Errorf("Results = %+v", out.Results)
	}
	if out.Results[1].Round != nil {
		t.Errorf("stuck.json should not absorb, got round %d", *out.Results[1].Round)
	}
	if out.Summary.Ratio == nil || *out.Summary.Ratio != 0.5 {
		t.Errorf("Ratio = %v, want 0.5", out.Summary.Ratio)
	}
}

func TestHandleAbsorption_FromTable(t *testing.T) {
	server, root, _ := setupTestServer(t)
	table := filepath.Join(root, "table.csv")
	csv := "file,round,pos_1,pos_2\nx.json,0,4,4\nx.json,1,4,4\n"
	if err := os.WriteFile(table, []byte(csv), 0644); err != nil {
		t.Fatal(err)
	}
	_, out, err := server.handleAbsorption(context.Background(), nil, AbsorptionInput{Table: table, Token: "4"})
	if err != nil {
		t.Fatalf("handleAbsorption failed: %v", err)
	}
	if out.Code != 4 || len(out.Results) != 1 || *out.Results[0].Round != 0 {
		t.Errorf("output = %+v", out)
	}
}

func TestHandleSeries(t *testing.T) {
	server, root, _ := setupTestServer(t)
	ctx := context.Background()
	input := filepath.Join(root, "runs")

	_, out, err := server.handleSeries(ctx, nil, SeriesInput{Input: input, Run: "absorbing.json"})
	if err != nil {
		t.Fatalf("handleSeries failed: %v", err)
	}
	if out.Composition != "all wastes" {
		t.Errorf("Composition = %q, want %q", out.Composition, "all wastes")
	}
	if len(out.Series) != 2 {
		t.Fatalf("len(Series) = %d, want 2", len(out.Series))
	}
	if diff := cmp.Diff([]int{11, 0, 0, 0}, out.Series[1].Counts); diff != "" {
		t.Errorf("round 1 counts mismatch (-want +got):\n%s", diff)
	}

	_, out, err = server.handleSeries(ctx, nil, SeriesInput{Input: input, Run: "stuck.json"})
	if err != nil {
		t.Fatalf("handleSeries failed: %v", err)
	}
	if out.Composition != "1 wild 10 devA" {
		t.Errorf("Composition = %q, want %q", out.Composition, "1 wild 10 devA")
	}

	if _, _, err := server.handleSeries(ctx, nil, SeriesInput{Input: input, Run: "missing.json"}); err == nil {
		t.Error("expected error for unknown run")
	}
	if _, _, err := server.handleSeries(ctx, nil, SeriesInput{Input: input}); err == nil {
		t.Error("expected error without run")
	}
}

func TestHandleCurves(t *testing.T) {
	server, root, _ := setupTestServer(t)
	ctx := context.Background()
	input := filepath.Join(root, "runs")

	_, out, err := server.handleCurves(ctx, nil, CurvesInput{Input: input})
	if err != nil {
		t.Fatalf("handleCurves failed: %v", err)
	}
	// Whole board plus inner, middle and outer.
	if len(out.Curves) != 4 || out.Curves[0].Subset != "all" || out.Curves[0].Region != "" {
		t.Errorf("Curves = %+v", out.Curves)
	}

	_, out, err = server.handleCurves(ctx, nil, CurvesInput{Input: input, Subset: "absorbed", Region: "outer"})
	if err != nil {
		t.Fatalf("handleCurves failed: %v", err)
	}
	if len(out.Curves) != 1 || len(out.Curves[0].Points) != 2 {
		t.Fatalf("Curves = %+v", out.Curves)
	}
	if got := out.Curves[0].Points[1].Mean[0]; got != 4 {
		t.Errorf("absorbed outer WILDS mean at round 1 = %v, want 4", got)
	}

	if _, _, err := server.handleCurves(ctx, nil, CurvesInput{Input: input, Subset: "some"}); err == nil {
		t.Error("expected error for invalid subset")
	}
	if _, _, err := server.handleCurves(ctx, nil, CurvesInput{Input: input, Region: "rim"}); err == nil {
		t.Error("expected error for unknown region")
	}
}

func TestHandleHistory_Validation(t *testing.T) {
	server, _, _ := setupTestServer(t)
	ctx := context.Background()
	if _, _, err := server.handleHistory(ctx, nil, HistoryInput{}); err == nil {
		t.Error("expected error without database")
	}
	if _, _, err := server.handleHistory(ctx, nil, HistoryInput{Database: filepath.Join(t.TempDir(), "x.db")}); err == nil {
		t.Error("expected error for database outside the roots")
	}
}

func TestRateLimit(t *testing.T) {
	server, root, _ := setupTestServer(t)
	server.limiter = ratelimit.New(map[string]ratelimit.Rate{toolHistory: {Burst: 1}})
	db := filepath.Join(root, "h.db")

	if _, _, err := server.handleHistory(context.Background(), nil, HistoryInput{Database: db}); err != nil {
		t.Fatalf("first call failed: %v", err)
	}
	_, _, err := server.handleHistory(context.Background(), nil, HistoryInput{Database: db})
	if !errors.Is(err, ratelimit.ErrLimited) {
		t.Errorf("second call error = %v, want ErrLimited", err)
	}
}

func TestAuditTool(t *testing.T) {
	server, root, diagPath := setupTestServer(t)
	_, _, _ = server.handleAbsorption(context.Background(), nil, AbsorptionInput{Input: filepath.Join(root, "runs")})
	_, _, _ = server.handleSeries(context.Background(), nil, SeriesInput{Input: filepath.Join(root, "runs")})

	data, err := os.ReadFile(diagPath)
	if err != nil {
		t.Fatalf("reading diagnostics: %v", err)
	}
	log := string(data)
	if !strings.Contains(log, `"tool":"hexmetrics_absorption"`) || !strings.Contains(log, `"status":"success"`) {
		t.Errorf("missing successful absorption call in:\n%s", log)
	}
	if !strings.Contains(log, `"status":"error"`) || !strings.Contains(log, "run is required") {
		t.Errorf("missing failed series call in:\n%s", log)
	}
	if strings.Contains(log, root) {
		t.Error("diagnostics should not contain full paths")
	}
}
