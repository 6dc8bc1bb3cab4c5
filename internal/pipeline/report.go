package pipeline

import (
	"time"

	"github.com/nvandessel/hexmetrics/internal/absorption"
	"github.com/nvandessel/hexmetrics/internal/legend"
	"github.com/nvandessel/hexmetrics/internal/metrics"
	"github.com/nvandessel/hexmetrics/internal/regions"
	"github.com/nvandessel/hexmetrics/internal/tidy"
)

// Report is the read-only output of a completed invocation. Every table is
// keyed by run ID and round so any two can be re-joined.
type Report struct {
	ID             string               `json:"id"`
	CreatedAt      time.Time            `json:"created_at"`
	AbsorptionCode int                  `json:"absorption_code"`
	Labels         []string             `json:"labels"`
	Regions        []regions.Region     `json:"regions"`
	Absorption     []absorption.Result  `json:"absorption"`
	Summary        absorption.Summary   `json:"summary"`
	FinalStates    []metrics.FinalState `json:"final_states"`
	FinalTotals    []metrics.LabelCount `json:"final_totals"`
	TokenFrequency []metrics.LabelCount `json:"token_frequency"`
	BagTotals      []metrics.BagPoint   `json:"bag_totals"`
	Curves         []metrics.Curve      `json:"curves"`

	legend *legend.Legend
	agg    *metrics.Aggregator
}

func newReport(id string, created time.Time, lg *legend.Legend, code int, agg *metrics.Aggregator, results []absorption.Result) *Report {
	finals := agg.FinalStates()
	r := &Report{
		ID:             id,
		CreatedAt:      created.UTC(),
		AbsorptionCode: code,
		Labels:         agg.Labels(),
		Regions:        agg.Regions(),
		Absorption:     results,
		Summary:        absorption.Summarize(results),
		FinalStates:    finals,
		FinalTotals:    agg.FinalTotals(finals),
		TokenFrequency: agg.TokenFrequency(),
		BagTotals:      agg.MeanBagTotal(),
		legend:         lg,
		agg:            agg,
	}
	for _, s := range metrics.Partition(results) {
		r.Curves = append(r.Curves, agg.MeanCurves(s)...)
	}
	return r
}

// Table returns the tidy table the report was computed from.
func (r *Report) Table() *tidy.Table { return r.agg.Table() }

// Legend returns the resolved legend.
func (r *Report) Legend() *legend.Legend { return r.legend }

// RoundCounts returns whole-board counts per (run, round).
func (r *Report) RoundCounts() []metrics.RoundCount { return r.agg.RoundCounts() }

// RegionCounts returns counts per (run, round, region).
func (r *Report) RegionCounts() []metrics.RoundCount { return r.agg.RegionCounts() }

// Series returns one run's counts per round and the text describing its
// first recorded round. ok is false when the run has no snapshots.
func (r *Report) Series(runID string) (series []metrics.RoundCount, composition string, ok bool) {
	series = r.agg.Series(runID)
	if len(series) == 0 {
		return nil, "", false
	}
	return series, r.agg.Composition(series[0].Counts), true
}

// CurvesFor returns the curves computed for one subset.
func (r *Report) CurvesFor(subset string) []metrics.Curve {
	var out []metrics.Curve
	for _, c := range r.Curves {
		if c.Subset == subset {
			out = append(out, c)
		}
	}
	return out
}

// MeanCurves computes curves for a caller-defined subset.
func (r *Report) MeanCurves(s metrics.Subset) []metrics.Curve { return r.agg.MeanCurves(s) }
