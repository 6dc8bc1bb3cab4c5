package metrics

import (
	"sort"

	"github.com/nvandessel/hexmetrics/internal/absorption"
	"github.com/nvandessel/hexmetrics/internal/constants"
)

// Subset selects runs by ID.
type Subset struct {
	Name  string
	Match func(runID string) bool
}

// All matches every run.
func All() Subset {
	return Subset{Name: constants.SubsetAll.String(), Match: func(string) bool { return true }}
}

// AbsorbedRuns matches runs whose result reports an absorption round.
func AbsorbedRuns(results []absorption.Result) Subset {
	byRun := absorption.Lookup(results)
	return Subset{Name: constants.SubsetAbsorbed.String(), Match: func(id string) bool {
		r, ok := byRun[id]
		return ok && r.Absorbed()
	}}
}

// UnabsorbedRuns matches runs that never absorbed. Runs without a result are
// in neither AbsorbedRuns nor UnabsorbedRuns.
func UnabsorbedRuns(results []absorption.Result) Subset {
	byRun := absorption.Lookup(results)
	return Subset{Name: constants.SubsetUnabsorbed.String(), Match: func(id string) bool {
		r, ok := byRun[id]
		return ok && !r.Absorbed()
	}}
}

// Named returns the predefined subset called name.
func Named(name constants.Subset, results []absorption.Result) (Subset, bool) {
	switch name {
	case constants.SubsetAll:
		return All(), true
	case constants.SubsetAbsorbed:
		return AbsorbedRuns(results), true
	case constants.SubsetUnabsorbed:
		return UnabsorbedRuns(results), true
	}
	return Subset{}, false
}

// Partition returns the all/absorbed/unabsorbed subsets.
func Partition(results []absorption.Result) []Subset {
	out := make([]Subset, 0, 3)
	for _, name := range constants.Subsets() {
		s, _ := Named(name, results)
		out = append(out, s)
	}
	return out
}

// CurvePoint is one round of a mean curve. Runs is the number of matching runs
// present at the round; Totals are summed counts and Mean is Totals / Runs.
type CurvePoint struct {
	Round  int       `json:"round"`
	Runs   int       `json:"runs"`
	Totals []int     `json:"totals"`
	Mean   []float64 `json:"mean"`
}

// Curve is the mean token count per round over a subset, for the whole board
// (Region empty) or one region. Rounds with no matching run are omitted.
type Curve struct {
	Subset string       `json:"subset"`
	Region string       `json:"region,omitempty"`
	Points []CurvePoint `json:"points"`
}

// MeanCurves returns the whole-board curve followed by one curve per region,
// in region order. An empty subset yields curves with no points.
func (a *Aggregator) MeanCurves(s Subset) []Curve {
	out := []Curve{{Subset: s.Name, Points: a.curve(a.rounds, s)}}
	for _, r := range a.regions {
		var counts []RoundCount
		for _, rc := range a.regional {
			if rc.Region == r.Name {
				counts = append(counts, rc)
			}
		}
		out = append(out, Curve{Subset: s.Name, Region: r.Name, Points: a.curve(counts, s)})
	}
	return out
}

func (a *Aggregator) curve(counts []RoundCount, s Subset) []CurvePoint {
	acc := make(map[int]*CurvePoint)
	for _, rc := range counts {
		if !s.Match(rc.RunID) {
			continue
		}
		p, ok := acc[rc.Round]
		if !ok {
			p = &CurvePoint{Round: rc.Round, Totals: make([]int, len(a.labels))}
			acc[rc.Round] = p
		}
		p.Runs++
		for i, n := range rc.Counts {
			p.Totals[i] += n
		}
	}

	points := make([]CurvePoint, 0, len(acc))
	for _, p := range acc {
		p.Mean = make([]float64, len(p.Totals))
		for i, n := range p.Totals {
			p.Mean[i] = float64(n) / float64(p.Runs)
		}
		points = append(points, *p)
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Round < points[j].Round })
	return points
}
