package export

import (
	"fmt"

	"github.com/apache/arrow/go/v17/arrow"

	"github.com/nvandessel/hexmetrics/internal/absorption"
	"github.com/nvandessel/hexmetrics/internal/metrics"
)

// File names of the report tables.
const (
	TidyFile              = "sim_all_rounds.csv"
	TidyArrowFile         = "sim_all_rounds.arrow"
	AbsorptionFile        = "summary_absorption.csv"
	AbsorptionSummaryFile = "summary_absorption_stats.csv"
	HistogramFile         = "absorption_histogram.csv"
	FinalCountsFile       = "summary_final_counts.csv"
	FinalTotalsFile       = "final_state_totals.csv"
	EvolutionFile         = "evolution_per_round.csv"
	RegionEvolutionFile   = "region_evolution_long.csv"
	TokenFrequencyFile    = "token_frequency.csv"
	BagTotalFile          = "bag_total_by_round.csv"
)

var (
	str = arrow.BinaryTypes.String
	i64 = arrow.PrimitiveTypes.Int64
	f64 = arrow.PrimitiveTypes.Float64
)

func col(name string, t arrow.DataType) arrow.Field { return arrow.Field{Name: name, Type: t} }

func ncol(name string, t arrow.DataType) arrow.Field {
	return arrow.Field{Name: name, Type: t, Nullable: true}
}

// CurveFile names the CSV of one mean curve: avg_evolution_<subset>_<region>.csv,
// or avg_evolution_<subset>.csv for the whole board.
func CurveFile(c metrics.Curve) string {
	if c.Region == "" {
		return fmt.Sprintf("avg_evolution_%s.csv", c.Subset)
	}
	return fmt.Sprintf("avg_evolution_%s_%s.csv", c.Subset, c.Region)
}

// AbsorptionFrame lists each run's first absorbing round; null when the run
// never absorbed.
func AbsorptionFrame(results []absorption.Result) *Frame {
	f := &Frame{Name: AbsorptionFile, Fields: []arrow.Field{col("file", str), ncol("absorption_round", i64)}}
	for _, r := range results {
		f.Append(r.RunID, r.Round)
	}
	return f
}

// AbsorptionSummaryFrame is a single-row table of the absorption summary.
func AbsorptionSummaryFrame(s absorption.Summary) *Frame {
	f := &Frame{Name: AbsorptionSummaryFile, Fields: []arrow.Field{
		col("runs", i64), col("absorbed", i64),
		ncol("ratio", f64), ncol("mean_round", f64), ncol("median_round", f64),
	}}
	f.Append(s.Runs, s.Absorbed, s.Ratio, s.Mean, s.Median)
	return f
}

// HistogramFrame is the discrete absorption-time histogram.
func HistogramFrame(bins []absorption.Bin) *Frame {
	f := &Frame{Name: HistogramFile, Fields: []arrow.Field{col("round", i64), col("runs", i64)}}
	for _, b := range bins {
		f.Append(b.Round, b.Runs)
	}
	return f
}

// FinalCountsFrame has one row per run with a count_<label> column per label.
func FinalCountsFrame(labels []string, finals []metrics.FinalState) *Frame {
	fields := []arrow.Field{col("file", str), col("round", i64)}
	for _, l := range labels {
		fields = append(fields, col("count_"+l, i64))
	}
	f := &Frame{Name: FinalCountsFile, Fields: fields}
	for _, fs := range finals {
		row := []any{fs.RunID, fs.Round}
		for _, n := range fs.Counts {
			row = append(row, n)
		}
		f.Append(row...)
	}
	return f
}

// LabelCountFrame writes (token, count) pairs.
func LabelCountFrame(name string, counts []metrics.LabelCount) *Frame {
	f := &Frame{Name: name, Fields: []arrow.Field{col("token", str), col("count", i64)}}
	for _, c := range counts {
		f.Append(c.Label, c.Count)
	}
	return f
}

// EvolutionFrame has one row per (run, round) with a column per label.
func EvolutionFrame(labels []string, counts []metrics.RoundCount) *Frame {
	return countFrame(EvolutionFile, labels, counts, false)
}

// RegionEvolutionFrame is the long table of counts per (run, round, region).
func RegionEvolutionFrame(labels []string, counts []metrics.RoundCount) *Frame {
	return countFrame(RegionEvolutionFile, labels, counts, true)
}

func countFrame(name string, labels []string, counts []metrics.RoundCount, regional bool) *Frame {
	fields := []arrow.Field{col("file", str), col("round", i64)}
	if regional {
		fields = append(fields, col("region", str))
	}
	fields = append(fields, col("observed", i64))
	for _, l := range labels {
		fields = append(fields, col(l, i64))
	}
	f := &Frame{Name: name, Fields: fields}
	for _, rc := range counts {
		row := []any{rc.RunID, rc.Round}
		if regional {
			row = append(row, rc.Region)
		}
		row = append(row, rc.Observed)
		for _, n := range rc.Counts {
			row = append(row, n)
		}
		f.Append(row...)
	}
	return f
}

// CurveFrame writes one mean curve: round, number of runs and the mean count
// per label.
func CurveFrame(labels []string, c metrics.Curve) *Frame {
	fields := []arrow.Field{col("round", i64), col("runs", i64)}
	for _, l := range labels {
		fields = append(fields, col(l, f64))
	}
	f := &Frame{Name: CurveFile(c), Fields: fields}
	for _, p := range c.Points {
		row := []any{p.Round, p.Runs}
		for _, m := range p.Mean {
			row = append(row, m)
		}
		f.Append(row...)
	}
	return f
}

// BagTotalFrame writes the mean bag total by round.
func BagTotalFrame(points []metrics.BagPoint) *Frame {
	f := &Frame{Name: BagTotalFile, Fields: []arrow.Field{col("round", i64), col("runs", i64), col("mean_bag_total", f64)}}
	for _, p := range points {
		f.Append(p.Round, p.Runs, p.Mean)
	}
	return f
}
