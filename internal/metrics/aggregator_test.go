package metrics

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/nvandessel/hexmetrics/internal/absorption"
	"github.com/nvandessel/hexmetrics/internal/legend"
	"github.com/nvandessel/hexmetrics/internal/models"
	"github.com/nvandessel/hexmetrics/internal/regions"
	"github.com/nvandessel/hexmetrics/internal/tidy"
)

// snap builds a snapshot; negative codes are missing.
func snap(id string, round int, codes ...int) models.RoundSnapshot {
	s := models.RoundSnapshot{RunID: id, Round: round}
	for _, c := range codes {
		if c < 0 {
			s.Codes = append(s.Codes, models.Missing)
		} else {
			s.Codes = append(s.Codes, models.Known(c))
		}
	}
	return s
}

func fill(n, code int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = code
	}
	return out
}

func bag(v int) *int { return &v }

// scenario: "absorbing" reaches all WILDS at round 2, "stuck" never does,
// "gappy" has missing positions and an unresolved code 9.
func scenario(t *testing.T) (*Aggregator, []absorption.Result) {
	t.Helper()
	runs := []*models.Run{
		{
			ID:   "absorbing.json",
			Meta: models.Metadata{BagTotal: bag(20)},
			Snapshots: []models.RoundSnapshot{
				snap("absorbing.json", 0, fill(11, 2)...),
				snap("absorbing.json", 1, 1, 2, 1, 3, 1, 1, 4, 1, 1, 2, 1),
				snap("absorbing.json", 2, fill(11, 1)...),
			},
		},
		{
			ID:   "stuck.json",
			Meta: models.Metadata{BagTotal: bag(30)},
			Snapshots: []models.RoundSnapshot{
				snap("stuck.json", 0, fill(11, 3)...),
				snap("stuck.json", 1, 1, 1, 1, 1, 1, 2, 2, 3, 3, 4, 4),
			},
		},
		{
			ID: "gappy.json",
			Snapshots: []models.RoundSnapshot{
				snap("gappy.json", 0, 1, -1, 9, 2, -1, 2, 2, 4),
			},
		},
		{ID: "empty.json"},
	}
	table, err := tidy.Build(runs)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	rs, _ := regions.Partition(table.Positions(), regions.DefaultGeometry())
	results := absorption.NewDetector(1).DetectAll(runs)
	return New(table, legend.FromEntries(models.DefaultLegend()), rs), results
}

func TestAggregator_Labels(t *testing.T) {
	a, _ := scenario(t)
	want := []string{"WILDS", "WASTES", "DEVA", "DEVB", "9"}
	if diff := cmp.Diff(want, a.Labels()); diff != "" {
		t.Errorf("Labels() mismatch (-want +got):\n%s", diff)
	}
}

func TestAggregator_LabelsAvoidNumericLegendNames(t *testing.T) {
	runs := []*models.Run{{
		ID:        "a.json",
		Snapshots: []models.RoundSnapshot{snap("a.json", 0, 9, 7, 7, 1)},
	}}
	table, err := tidy.Build(runs)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	lg := legend.FromEntries(models.Legend{{Name: "WILDS", Code: 1}, {Name: "7", Code: 9}})
	a := New(table, lg, nil)

	if diff := cmp.Diff([]string{"WILDS", "7", "code_7"}, a.Labels()); diff != "" {
		t.Errorf("Labels() mismatch (-want +got):\n%s", diff)
	}
	finals := a.FinalStates()
	if len(finals) != 1 {
		t.Fatalf("FinalStates() = %+v", finals)
	}
	if diff := cmp.Diff([]int{1, 1, 2}, finals[0].Counts); diff != "" {
		t.Errorf("final counts mismatch (-want +got):\n%s", diff)
	}
}

func TestAggregator_FinalStates(t *testing.T) {
	a, _ := scenario(t)
	want := []FinalState{
		{RunID: "absorbing.json", Round: 2, Counts: []int{11, 0, 0, 0, 0}},
		{RunID: "gappy.json", Round: 0, Counts: []int{1, 3, 0, 1, 1}},
		{RunID: "stuck.json", Round: 1, Counts: []int{5, 2, 2, 2, 0}},
	}
	if diff := cmp.Diff(want, a.FinalStates()); diff != "" {
		t.Errorf("FinalStates() mismatch (-want +got):\n%s", diff)
	}

	totals := a.FinalTotals(a.FinalStates())
	wantTotals := []LabelCount{{"WILDS", 17}, {"WASTES", 5}, {"DEVA", 2}, {"DEVB", 3}, {"9", 1}}
	if diff := cmp.Diff(wantTotals, totals); diff != "" {
		t.Errorf("FinalTotals() mismatch (-want +got):\n%s", diff)
	}
}

func TestAggregator_CountsSumToObserved(t *testing.T) {
	a, _ := scenario(t)
	check := func(rc RoundCount) {
		sum := 0
		for _, n := range rc.Counts {
			sum += n
		}
		if sum != rc.Observed {
			t.Errorf("%s round %d region %q: sum %d != observed %d", rc.RunID, rc.Round, rc.Region, sum, rc.Observed)
		}
	}

	for _, rc := range a.RoundCounts() {
		check(rc)
		row, _ := a.Table().Lookup(tidy.Key{RunID: rc.RunID, Round: rc.Round})
		if want := (models.RoundSnapshot{Codes: row.Codes}).Observed(); rc.Observed != want {
			t.Errorf("%s round %d: observed %d, want %d", rc.RunID, rc.Round, rc.Observed, want)
		}
	}
	for _, rc := range a.RegionCounts() {
		check(rc)
	}
	if got, want := len(a.RegionCounts()), len(a.RoundCounts())*3; got != want {
		t.Errorf("len(RegionCounts()) = %d, want %d", got, want)
	}
}

func TestAggregator_RegionCount(t *testing.T) {
	a, _ := scenario(t)
	rc, ok := a.RegionCount(tidy.Key{RunID: "gappy.json", Round: 0}, "middle")
	if !ok {
		t.Fatal("RegionCount() not found")
	}
	// positions 2..7 = missing, 9, 2, missing, 2, 2
	if rc.Observed != 4 {
		t.Errorf("Observed = %d, want 4", rc.Observed)
	}
	if diff := cmp.Diff([]int{0, 3, 0, 0, 1}, rc.Counts); diff != "" {
		t.Errorf("Counts mismatch (-want +got):\n%s", diff)
	}

	rc, _ = a.RegionCount(tidy.Key{RunID: "gappy.json", Round: 0}, "outer")
	if rc.Observed != 1 {
		t.Errorf("outer Observed = %d, want 1 (position 8 only)", rc.Observed)
	}

	if _, ok := a.RegionCount(tidy.Key{RunID: "nope", Round: 0}, "inner"); ok {
		t.Error("RegionCount() found unknown key")
	}
}

func TestAggregator_MeanCurves(t *testing.T) {
	a, results := scenario(t)

	curves := a.MeanCurves(AbsorbedRuns(results))
	if len(curves) != 4 {
		t.Fatalf("len(MeanCurves()) = %d, want 4", len(curves))
	}
	global := curves[0]
	if global.Region != "" || len(global.Points) != 3 {
		t.Fatalf("global curve = %+v", global)
	}
	if got := global.Points[2].Mean[0]; got != 11 {
		t.Errorf("absorbed mean WILDS at round 2 = %v, want 11", got)
	}

	all := a.MeanCurves(All())[0]
	want := CurvePoint{
		Round:  1,
		Runs:   2,
		Totals: []int{12, 4, 3, 3, 0},
		Mean:   []float64{6, 2, 1.5, 1.5, 0},
	}
	if diff := cmp.Diff(want, all.Points[1]); diff != "" {
		t.Errorf("all-runs round 1 mismatch (-want +got):\n%s", diff)
	}
	if all.Points[2].Runs != 1 {
		t.Errorf("round 2 runs = %d, want 1", all.Points[2].Runs)
	}
}

func TestAggregator_EmptySubset(t *testing.T) {
	a, _ := scenario(t)
	none := Subset{Name: "none", Match: func(string) bool { return false }}
	for _, c := range a.MeanCurves(none) {
		if len(c.Points) != 0 {
			t.Errorf("curve %q has %d points, want 0", c.Region, len(c.Points))
		}
	}
}

// Splitting runs into absorbed and unabsorbed and recombining the weighted
// points reproduces the all-runs totals.
func TestAggregator_SubsetRecombination(t *testing.T) {
	a, results := scenario(t)
	all := a.MeanCurves(All())
	abs := a.MeanCurves(AbsorbedRuns(results))
	unabs := a.MeanCurves(UnabsorbedRuns(results))

	for ci := range all {
		parts := map[int]CurvePoint{}
		for _, c := range [][]CurvePoint{abs[ci].Points, unabs[ci].Points} {
			for _, p := range c {
				acc, ok := parts[p.Round]
				if !ok {
					acc = CurvePoint{Round: p.Round, Totals: make([]int, len(p.Totals))}
				}
				acc.Runs += p.Runs
				for i := range p.Totals {
					acc.Totals[i] += p.Totals[i]
					if got := p.Mean[i] * float64(p.Runs); int(got+0.5) != p.Totals[i] {
						t.Errorf("round %d: mean*runs = %v, totals %d", p.Round, got, p.Totals[i])
					}
				}
				parts[p.Round] = acc
			}
		}

		if len(parts) != len(all[ci].Points) {
			t.Fatalf("curve %q: %d recombined rounds, want %d", all[ci].Region, len(parts), len(all[ci].Points))
		}
		for _, p := range all[ci].Points {
			got := parts[p.Round]
			if got.Runs != p.Runs {
				t.Errorf("curve %q round %d: runs %d, want %d", all[ci].Region, p.Round, got.Runs, p.Runs)
			}
			if diff := cmp.Diff(p.Totals, got.Totals); diff != "" {
				t.Errorf("curve %q round %d totals (-all +recombined):\n%s", all[ci].Region, p.Round, diff)
			}
		}
	}
}

func TestAggregator_EmptyTable(t *testing.T) {
	table, err := tidy.Build(nil)
	if err != nil {
		t.Fatalf("Build(nil) error = %v", err)
	}
	a := New(table, legend.FromEntries(models.DefaultLegend()), nil)

	if got := a.FinalStates(); len(got) != 0 {
		t.Errorf("FinalStates() = %v, want empty", got)
	}
	if got := a.MeanCurves(All()); len(got) != 1 || len(got[0].Points) != 0 {
		t.Errorf("MeanCurves() = %v, want one empty curve", got)
	}
	if got := a.MeanBagTotal(); len(got) != 0 {
		t.Errorf("MeanBagTotal() = %v, want empty", got)
	}
}

func TestAggregator_MeanBagTotal(t *testing.T) {
	a, _ := scenario(t)
	want := []BagPoint{
		{Round: 0, Runs: 2, Mean: 25},
		{Round: 1, Runs: 2, Mean: 25},
		{Round: 2, Runs: 1, Mean: 20},
	}
	if diff := cmp.Diff(want, a.MeanBagTotal()); diff != "" {
		t.Errorf("MeanBagTotal() mismatch (-want +got):\n%s", diff)
	}
}

func TestAggregator_TokenFrequency(t *testing.T) {
	a, _ := scenario(t)
	want := []LabelCount{{"WILDS", 24}, {"WASTES", 18}, {"DEVA", 14}, {"DEVB", 4}, {"9", 1}}
	if diff := cmp.Diff(want, a.TokenFrequency()); diff != "" {
		t.Errorf("TokenFrequency() mismatch (-want +got):\n%s", diff)
	}
}

func TestAggregator_Series(t *testing.T) {
	a, _ := scenario(t)
	series := a.Series("absorbing.json")
	if len(series) != 3 {
		t.Fatalf("len(Series()) = %d, want 3", len(series))
	}
	if diff := cmp.Diff([]int{0, 11, 0, 0, 0}, series[0].Counts); diff != "" {
		t.Errorf("round 0 mismatch (-want +got):\n%s", diff)
	}
	if got := a.Series("empty.json"); len(got) != 0 {
		t.Errorf("Series(empty) = %v, want empty", got)
	}
}

func TestAggregator_Composition(t *testing.T) {
	a, _ := scenario(t)
	tests := []struct {
		counts []int
		want   string
	}{
		{[]int{11, 0, 0, 0, 0}, "all wilds"},
		{[]int{0, 11, 0, 0, 0}, "all wastes"},
		{[]int{0, 0, 11, 0, 0}, "all devA"},
		{[]int{0, 0, 0, 11, 0}, "all devB"},
		{[]int{1, 0, 10, 0, 0}, "1 wild 10 devA"},
		{[]int{0, 5, 6, 0, 0}, "5 wastes 6 devA"},
		{[]int{2, 1, 0, 1, 0}, "2 wilds 1 waste 1 devB"},
		{[]int{0, 0, 0, 0, 3}, "all 9"},
		{[]int{0, 0, 0, 0, 0}, ""},
	}
	for _, tt := range tests {
		if got := a.Composition(tt.counts); got != tt.want {
			t.Errorf("Composition(%v) = %q, want %q", tt.counts, got, tt.want)
		}
	}
}
