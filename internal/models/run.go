package models

import (
	"sort"
	"strconv"
)

// Code is the token code held by one board position.
// Valid is false when no token was recorded, which is distinct from code 0.
type Code struct {
	Value int
	Valid bool
}

// Known returns a present code with value v.
func Known(v int) Code {
	return Code{Value: v, Valid: true}
}

// Missing is the zero Code: no token recorded.
var Missing = Code{}

// String returns the decimal code, or "" when missing.
func (c Code) String() string {
	if !c.Valid {
		return ""
	}
	return strconv.Itoa(c.Value)
}

// Metadata holds the optional per-run fields written by the simulator.
// A nil field means the source did not record it.
type Metadata struct {
	Seed      *int64 `json:"seed,omitempty" yaml:"seed,omitempty"`
	BagTotal  *int   `json:"bag_total,omitempty" yaml:"bag_total,omitempty"`
	MaxRounds *int   `json:"max_rounds,omitempty" yaml:"max_rounds,omitempty"`
}

// RoundSnapshot is the board state of one run at one round.
// Codes decoded from a run document are indexed by position (Codes[0] is
// position 1). Codes split from a table follow the table's position columns.
type RoundSnapshot struct {
	RunID string
	Round int
	Codes []Code
}

// Observed returns the number of non-missing positions.
func (s RoundSnapshot) Observed() int {
	n := 0
	for _, c := range s.Codes {
		if c.Valid {
			n++
		}
	}
	return n
}

// Run is one complete simulation trace.
// Snapshots are sorted ascending by round and all have the same width.
// A Run is read-only once the loader has returned it.
type Run struct {
	ID        string
	Legend    Legend
	Meta      Metadata
	Snapshots []RoundSnapshot
}

// Width returns the number of positions in the run's snapshots.
func (r *Run) Width() int {
	if len(r.Snapshots) == 0 {
		return 0
	}
	return len(r.Snapshots[0].Codes)
}

// Final returns the snapshot with the highest round index.
func (r *Run) Final() (RoundSnapshot, bool) {
	if len(r.Snapshots) == 0 {
		return RoundSnapshot{}, false
	}
	return r.Snapshots[len(r.Snapshots)-1], true
}

// Sorted reports whether snapshots are in strictly ascending round order.
func (r *Run) Sorted() bool {
	return sort.SliceIsSorted(r.Snapshots, func(i, j int) bool {
		return r.Snapshots[i].Round < r.Snapshots[j].Round
	})
}
