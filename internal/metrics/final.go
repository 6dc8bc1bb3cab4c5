package metrics

// FinalState is the token distribution of a run's last recorded round. Every
// label has a count, zero when the token is absent.
type FinalState struct {
	RunID  string `json:"file"`
	Round  int    `json:"round"`
	Counts []int  `json:"counts"`
}

// FinalStates returns one entry per run that has at least one snapshot,
// sorted by run ID. Runs without snapshots have no final round and are
// omitted.
func (a *Aggregator) FinalStates() []FinalState {
	var out []FinalState
	for _, id := range a.table.RunIDs() {
		rows := a.table.RunRows(id)
		if len(rows) == 0 {
			continue
		}
		last := rows[len(rows)-1]
		rc, _ := a.Count(last.Key())
		counts := make([]int, len(rc.Counts))
		copy(counts, rc.Counts)
		out = append(out, FinalState{RunID: id, Round: last.Round, Counts: counts})
	}
	return out
}

// FinalTotals sums final-state counts over runs.
func (a *Aggregator) FinalTotals(finals []FinalState) []LabelCount {
	totals := make([]int, len(a.labels))
	for _, f := range finals {
		for i, n := range f.Counts {
			totals[i] += n
		}
	}
	return a.labelCounts(totals)
}
