// Package tidy builds the long-form table every metric is computed from.
//
// A Table has one row per (run, round) and one column per board position.
// The key is unique across the table; building fails with
// models.ErrDuplicateKey otherwise.
package tidy

import (
	"fmt"
	"sort"

	"github.com/nvandessel/hexmetrics/internal/models"
)

// Column names shared by the CSV and Arrow forms of the table.
const (
	ColRun       = "file"
	ColRound     = "round"
	ColSeed      = "seed"
	ColBagTotal  = "bag_total"
	ColMaxRounds = "max_rounds"
	PosPrefix    = "pos_"
)

// PositionColumn returns the column name for a 1-based position.
func PositionColumn(pos int) string {
	return fmt.Sprintf("%s%d", PosPrefix, pos)
}

// Key is the join key of every table the pipeline emits.
type Key struct {
	RunID string
	Round int
}

// Row is one (run, round) observation. Codes is aligned with Table.Positions.
type Row struct {
	RunID string
	Round int
	Codes []models.Code
}

// Key returns the row's join key.
func (r Row) Key() Key {
	return Key{RunID: r.RunID, Round: r.Round}
}

// Table is immutable once built.
type Table struct {
	positions []int
	rows      []Row
	meta      map[string]models.Metadata
	index     map[Key]int
	runs      []string
}

// Build flattens runs into a table. Two runs with the same ID, or two
// snapshots of one run with the same round, fail with models.ErrDuplicateKey.
// The result does not depend on the order of runs.
func Build(runs []*models.Run) (*Table, error) {
	sorted := make([]*models.Run, len(runs))
	copy(sorted, runs)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	width := 0
	for i, r := range sorted {
		if i > 0 && sorted[i-1].ID == r.ID {
			return nil, fmt.Errorf("%w: run %q supplied by more than one source", models.ErrDuplicateKey, r.ID)
		}
		for _, s := range r.Snapshots {
			if len(s.Codes) > width {
				width = len(s.Codes)
			}
		}
	}

	positions := make([]int, width)
	for i := range positions {
		positions[i] = i + 1
	}

	t := newTable(positions)
	for _, r := range sorted {
		t.meta[r.ID] = r.Meta
		t.runs = append(t.runs, r.ID)
		for _, s := range r.Snapshots {
			codes := make([]models.Code, width)
			copy(codes, s.Codes)
			if err := t.add(Row{RunID: r.ID, Round: s.Round, Codes: codes}); err != nil {
				return nil, err
			}
		}
	}
	t.finish()
	return t, nil
}

func newTable(positions []int) *Table {
	return &Table{
		positions: positions,
		meta:      make(map[string]models.Metadata),
		index:     make(map[Key]int),
	}
}

func (t *Table) add(row Row) error {
	if _, dup := t.index[row.Key()]; dup {
		return fmt.Errorf("%w: run %q round %d", models.ErrDuplicateKey, row.RunID, row.Round)
	}
	t.index[row.Key()] = len(t.rows)
	t.rows = append(t.rows, row)
	return nil
}

// finish sorts rows by key and rebuilds the index.
func (t *Table) finish() {
	sort.SliceStable(t.rows, func(i, j int) bool {
		if t.rows[i].RunID != t.rows[j].RunID {
			return t.rows[i].RunID < t.rows[j].RunID
		}
		return t.rows[i].Round < t.rows[j].Round
	})
	for i, r := range t.rows {
		t.index[r.Key()] = i
	}
	sort.Strings(t.runs)
}

// Positions returns the 1-based position indices present, ascending.
func (t *Table) Positions() []int {
	out := make([]int, len(t.positions))
	copy(out, t.positions)
	return out
}

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.rows) }

// Row returns the i-th row in key order.
func (t *Table) Row(i int) Row { return t.rows[i] }

// Rows returns all rows in key order. Callers must not modify them.
func (t *Table) Rows() []Row { return t.rows }

// Lookup finds the row for key.
func (t *Table) Lookup(k Key) (Row, bool) {
	i, ok := t.index[k]
	if !ok {
		return Row{}, false
	}
	return t.rows[i], true
}

// RunIDs returns every run in the table, sorted, including runs without rows.
func (t *Table) RunIDs() []string {
	out := make([]string, len(t.runs))
	copy(out, t.runs)
	return out
}

// Meta returns the metadata recorded for a run.
func (t *Table) Meta(runID string) models.Metadata {
	return t.meta[runID]
}

// RunRows returns the rows of one run in round order.
func (t *Table) RunRows(runID string) []Row {
	lo := sort.Search(len(t.rows), func(i int) bool { return t.rows[i].RunID >= runID })
	hi := lo
	for hi < len(t.rows) && t.rows[hi].RunID == runID {
		hi++
	}
	return t.rows[lo:hi]
}

// ColumnIndex maps a position to its index in Row.Codes.
func (t *Table) ColumnIndex(pos int) (int, bool) {
	i := sort.SearchInts(t.positions, pos)
	if i < len(t.positions) && t.positions[i] == pos {
		return i, true
	}
	return 0, false
}
