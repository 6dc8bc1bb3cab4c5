package metrics

import (
	"fmt"
	"sort"
	"strings"
)

// LabelCount pairs a token label with a count.
type LabelCount struct {
	Label string `json:"token"`
	Count int    `json:"count"`
}

func (a *Aggregator) labelCounts(counts []int) []LabelCount {
	out := make([]LabelCount, len(a.labels))
	for i, l := range a.labels {
		out[i] = LabelCount{Label: l, Count: counts[i]}
	}
	return out
}

// TokenFrequency counts every non-missing position of every snapshot.
func (a *Aggregator) TokenFrequency() []LabelCount {
	totals := make([]int, len(a.labels))
	for _, rc := range a.rounds {
		for i, n := range rc.Counts {
			totals[i] += n
		}
	}
	return a.labelCounts(totals)
}

// BagPoint is the mean recorded bag total of the runs present at a round.
type BagPoint struct {
	Round int     `json:"round"`
	Runs  int     `json:"runs"`
	Mean  float64 `json:"mean_bag_total"`
}

// MeanBagTotal averages each run's bag total over the runs present at each
// round. Runs without a bag total are ignored; rounds where no run has one are
// omitted.
func (a *Aggregator) MeanBagTotal() []BagPoint {
	sums := make(map[int]int)
	runs := make(map[int]int)
	for _, row := range a.table.Rows() {
		bag := a.table.Meta(row.RunID).BagTotal
		if bag == nil {
			continue
		}
		sums[row.Round] += *bag
		runs[row.Round]++
	}

	out := make([]BagPoint, 0, len(runs))
	for round, n := range runs {
		out = append(out, BagPoint{Round: round, Runs: n, Mean: float64(sums[round]) / float64(n)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Round < out[j].Round })
	return out
}

// Series returns the whole-board counts of one run, one entry per round.
func (a *Aggregator) Series(runID string) []RoundCount {
	rows := a.table.RunRows(runID)
	out := make([]RoundCount, 0, len(rows))
	for _, row := range rows {
		rc, _ := a.Count(row.Key())
		out = append(out, rc)
	}
	return out
}

var compositionWords = map[string]string{
	"WILDS":  "wild",
	"WASTES": "waste",
	"DEVA":   "devA",
	"DEVB":   "devB",
}

// Composition renders a count vector as short text such as "all wilds",
// "1 wild 10 devA" or "5 wastes 6 devA". Wilds and wastes take a plural;
// development tiers never do. An empty board renders as "".
func (a *Aggregator) Composition(counts []int) string {
	word := func(label string) string {
		if w, ok := compositionWords[label]; ok {
			return w
		}
		return strings.ToLower(label)
	}
	plural := func(label string) bool {
		return label == "WILDS" || label == "WASTES"
	}

	var nonzero []int
	for i, n := range counts {
		if n > 0 {
			nonzero = append(nonzero, i)
		}
	}
	if len(nonzero) == 1 {
		label := a.labels[nonzero[0]]
		if plural(label) {
			return "all " + word(label) + "s"
		}
		return "all " + word(label)
	}

	parts := make([]string, 0, len(nonzero))
	for _, i := range nonzero {
		label, n := a.labels[i], counts[i]
		w := word(label)
		if n > 1 && plural(label) {
			w += "s"
		}
		parts = append(parts, fmt.Sprintf("%d %s", n, w))
	}
	return strings.Join(parts, " ")
}
