// Package absorption finds the first round at which a run's board is
// entirely covered by the absorbing token.
package absorption

import (
	"sort"

	"github.com/nvandessel/hexmetrics/internal/models"
)

// State is the detector's position in its scan of one run.
type State int

const (
	Scanning   State = iota // still reading snapshots
	Absorbed                // predicate held; Round is set
	Unabsorbed              // snapshots exhausted without the predicate holding
)

func (s State) String() string {
	switch s {
	case Scanning:
		return "scanning"
	case Absorbed:
		return "absorbed"
	case Unabsorbed:
		return "unabsorbed"
	default:
		return "unknown"
	}
}

// Result is the absorption outcome for one run. Round is nil when the run
// never absorbed.
type Result struct {
	RunID string `json:"file"`
	Round *int   `json:"absorption_round"`
}

// Absorbed reports whether the run reached absorption.
func (r Result) Absorbed() bool { return r.Round != nil }

// State returns the terminal detector state for the result.
func (r Result) State() State {
	if r.Round != nil {
		return Absorbed
	}
	return Unabsorbed
}

// Detector evaluates runs against one absorption code.
type Detector struct {
	code int
}

// NewDetector creates a detector for the given token code.
func NewDetector(code int) *Detector {
	return &Detector{code: code}
}

// Code returns the absorption code.
func (d *Detector) Code() int { return d.code }

// Satisfies reports whether every non-missing position equals code and at
// least one position is non-missing. An all-missing snapshot never satisfies
// it.
func Satisfies(s models.RoundSnapshot, code int) bool {
	observed := 0
	for _, c := range s.Codes {
		if !c.Valid {
			continue
		}
		if c.Value != code {
			return false
		}
		observed++
	}
	return observed > 0
}

// Detect scans the run's snapshots in ascending round order and stops at the
// first one satisfying the predicate. Later reversions are ignored. The run is
// not modified.
func (d *Detector) Detect(run *models.Run) Result {
	res := Result{RunID: run.ID}

	order := make([]int, len(run.Snapshots))
	for i := range order {
		order[i] = i
	}
	if !run.Sorted() {
		sort.SliceStable(order, func(a, b int) bool {
			return run.Snapshots[order[a]].Round < run.Snapshots[order[b]].Round
		})
	}

	for _, i := range order {
		s := run.Snapshots[i]
		if Satisfies(s, d.code) {
			round := s.Round
			res.Round = &round
			return res
		}
	}
	return res
}

// DetectAll runs Detect over every run, preserving input order.
func (d *Detector) DetectAll(runs []*models.Run) []Result {
	out := make([]Result, len(runs))
	for i, r := range runs {
		out[i] = d.Detect(r)
	}
	return out
}

// Lookup indexes results by run ID.
func Lookup(results []Result) map[string]Result {
	m := make(map[string]Result, len(results))
	for _, r := range results {
		m[r.RunID] = r
	}
	return m
}
