package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/nvandessel/hexmetrics/internal/absorption"
	"github.com/nvandessel/hexmetrics/internal/loader"
	"github.com/nvandessel/hexmetrics/internal/pipeline"
)

func states(codes ...int) string {
	parts := make([]string, len(codes))
	for i, c := range codes {
		parts[i] = fmt.Sprint(c)
	}
	return "[" + strings.Join(parts, ",") + "]"
}

func runDoc(rounds ...string) []byte {
	var tl []string
	for i, r := range rounds {
		tl = append(tl, fmt.Sprintf(`{"round": %d, "states": %s}`, i, r))
	}
	return []byte(`{"legend": {"WILDS": 1, "WASTES": 2, "DEVA": 3, "DEVB": 4},
		"game_state": {"bag_total": 20, "seed": 7},
		"timeline": [` + strings.Join(tl, ",") + `]}`)
}

func analyze(t *testing.T, sources []loader.Source) *pipeline.Report {
	t.Helper()
	out := pipeline.Analyze(context.Background(), pipeline.Input{Sources: sources}, pipeline.DefaultOptions())
	if !out.Completed() {
		t.Fatalf("pipeline aborted: %s", out.Reason)
	}
	return out.Report
}

func sampleReport(t *testing.T) *pipeline.Report {
	return analyze(t, []loader.Source{
		loader.BytesSource("absorbing.json", runDoc(
			states(2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2),
			states(1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1),
		)),
		loader.BytesSource("stuck.json", runDoc(
			states(3, 3, 3, 3, 3, 3, 3, 3, 3, 3, 3),
			states(1, 2, 3, 4, 1, 2, 3, 4, 1, 2, 3),
			states(1, 1, 3, 4, 1, 2, 3, 4, 1, 2, 3),
		)),
	})
}

func openStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "nested", "hexmetrics.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpen_CreatesAndReopens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db", "hexmetrics.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("database file not created: %v", err)
	}

	var version int
	if err := s.db.QueryRow(`SELECT MAX(version) FROM schema_version`).Scan(&version); err != nil || version != SchemaVersion {
		t.Errorf("schema version = %d, %v; want %d", version, err, SchemaVersion)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	s, err = Open(path)
	if err != nil {
		t.Fatalf("reopening: %v", err)
	}
	s.Close()
}

func TestSaveReport_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	report := sampleReport(t)

	if err := s.SaveReport(ctx, report); err != nil {
		t.Fatalf("SaveReport() error = %v", err)
	}

	invs, err := s.Invocations(ctx)
	if err != nil {
		t.Fatalf("Invocations() error = %v", err)
	}
	if len(invs) != 1 {
		t.Fatalf("len(Invocations) = %d, want 1", len(invs))
	}
	inv := invs[0]
	if inv.ID != report.ID || inv.Runs != 2 || inv.AbsorptionCode != 1 {
		t.Errorf("Invocation = %+v", inv)
	}
	if !inv.CreatedAt.Equal(report.CreatedAt) {
		t.Errorf("CreatedAt = %v, want %v", inv.CreatedAt, report.CreatedAt)
	}
	if diff := cmp.Diff(report.Labels, inv.Labels); diff != "" {
		t.Errorf("Labels mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(report.Regions, inv.Regions); diff != "" {
		t.Errorf("Regions mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(report.Summary, inv.Summary); diff != "" {
		t.Errorf("Summary mismatch (-want +got):\n%s", diff)
	}

	results, err := s.Absorption(ctx, report.ID)
	if err != nil {
		t.Fatalf("Absorption() error = %v", err)
	}
	if diff := cmp.Diff(report.Absorption, results); diff != "" {
		t.Errorf("Absorption mismatch (-want +got):\n%s", diff)
	}

	finals, err := s.FinalStates(ctx, report.ID)
	if err != nil {
		t.Fatalf("FinalStates() error = %v", err)
	}
	if diff := cmp.Diff(report.FinalStates, finals); diff != "" {
		t.Errorf("FinalStates mismatch (-want +got):\n%s", diff)
	}

	for _, want := range report.Curves {
		got, err := s.Curve(ctx, report.ID, want.Subset, want.Region)
		if err != nil {
			t.Fatalf("Curve(%s, %s) error = %v", want.Subset, want.Region, err)
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("Curve(%s, %s) mismatch (-want +got):\n%s", want.Subset, want.Region, diff)
		}
	}

	var regionRows int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM region_counts WHERE invocation_id = ?`, report.ID).Scan(&regionRows); err != nil {
		t.Fatal(err)
	}
	if want := len(report.RegionCounts()) * len(report.Labels); regionRows != want {
		t.Errorf("region_counts rows = %d, want %d", regionRows, want)
	}
}

func TestSaveReport_KeepsInvocationsApart(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	first := sampleReport(t)
	second := analyze(t, []loader.Source{
		loader.BytesSource("other.json", runDoc(states(1, 1, 1))),
	})

	for _, r := range []*pipeline.Report{first, second} {
		if err := s.SaveReport(ctx, r); err != nil {
			t.Fatalf("SaveReport(%s) error = %v", r.ID, err)
		}
	}
	if err := s.SaveReport(ctx, first); err == nil {
		t.Error("saving the same invocation twice should fail")
	}

	results, err := s.Absorption(ctx, second.ID)
	if err != nil {
		t.Fatal(err)
	}
	want := []absorption.Result{{RunID: "other.json", Round: intp(0)}}
	if diff := cmp.Diff(want, results); diff != "" {
		t.Errorf("Absorption mismatch (-want +got):\n%s", diff)
	}
}

func intp(v int) *int { return &v }

func TestSaveReport_Empty(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	report := analyze(t, nil)

	if err := s.SaveReport(ctx, report); err != nil {
		t.Fatalf("SaveReport() error = %v", err)
	}
	results, err := s.Absorption(ctx, report.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 0 {
		t.Errorf("Absorption() = %v, want empty", results)
	}
	inv, err := s.Invocation(ctx, report.ID)
	if err != nil {
		t.Fatal(err)
	}
	if inv.Runs != 0 || inv.Summary.Ratio != nil {
		t.Errorf("Invocation = %+v", inv)
	}
}

func TestSaveReport_Nil(t *testing.T) {
	s := openStore(t)
	if err := s.SaveReport(context.Background(), nil); err == nil {
		t.Error("expected error for nil report")
	}
}

func TestDelete_Cascades(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	report := sampleReport(t)
	if err := s.SaveReport(ctx, report); err != nil {
		t.Fatal(err)
	}

	if err := s.Delete(ctx, report.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	for _, table := range []string{"runs", "absorption", "final_counts", "round_counts", "region_counts", "mean_curves"} {
		var n int
		if err := s.db.QueryRow(`SELECT COUNT(*) FROM ` + table).Scan(&n); err != nil {
			t.Fatal(err)
		}
		if n != 0 {
			t.Errorf("%s has %d rows after delete", table, n)
		}
	}
	if err := s.Delete(ctx, report.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Delete() error = %v, want ErrNotFound", err)
	}
}

func TestNotFound(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)

	if _, err := s.Invocation(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Invocation() error = %v, want ErrNotFound", err)
	}
	if _, err := s.Absorption(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Absorption() error = %v, want ErrNotFound", err)
	}
	if _, err := s.FinalStates(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("FinalStates() error = %v, want ErrNotFound", err)
	}
	if _, err := s.Curve(ctx, "missing", "all", ""); !errors.Is(err, ErrNotFound) {
		t.Errorf("Curve() error = %v, want ErrNotFound", err)
	}
}

func TestValidateIntegrity(t *testing.T) {
	s := openStore(t)
	if err := ValidateIntegrity(context.Background(), s.db); err != nil {
		t.Errorf("ValidateIntegrity() error = %v", err)
	}
}
