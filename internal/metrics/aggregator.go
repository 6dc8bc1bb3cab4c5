// Package metrics aggregates token counts from a tidy table.
//
// An Aggregator indexes the table once, by (run, round) and by
// (run, round, region), and answers every query from those indexes. All
// count vectors are aligned with Labels.
package metrics

import (
	"sort"
	"strconv"

	"github.com/nvandessel/hexmetrics/internal/legend"
	"github.com/nvandessel/hexmetrics/internal/regions"
	"github.com/nvandessel/hexmetrics/internal/tidy"
)

// RoundCount is the token count vector of one snapshot, or of one region of
// one snapshot. Region is empty for whole-board counts. Observed is the number
// of non-missing positions counted, which always equals the sum of Counts.
type RoundCount struct {
	RunID    string `json:"file"`
	Round    int    `json:"round"`
	Region   string `json:"region,omitempty"`
	Observed int    `json:"observed"`
	Counts   []int  `json:"counts"`
}

type regionKey struct {
	tidy.Key
	Region string
}

// Aggregator answers count queries over an immutable table.
type Aggregator struct {
	table   *tidy.Table
	legend  *legend.Legend
	regions []regions.Region

	labels []string
	column map[int]int // token code -> label index

	rounds      []RoundCount
	roundIndex  map[tidy.Key]int
	regional    []RoundCount
	regionIndex map[regionKey]int
}

// New builds an aggregator. The legend names every label; codes it does not
// resolve are counted under their decimal value, after the legend names,
// ascending by code.
func New(t *tidy.Table, l *legend.Legend, rs []regions.Region) *Aggregator {
	a := &Aggregator{
		table:       t,
		legend:      l,
		regions:     rs,
		column:      make(map[int]int),
		roundIndex:  make(map[tidy.Key]int, t.Len()),
		regionIndex: make(map[regionKey]int, t.Len()*len(rs)),
	}
	a.buildLabels()
	a.buildIndexes()
	return a
}

func (a *Aggregator) buildLabels() {
	for _, name := range a.legend.Names() {
		code, _ := a.legend.Code(name)
		a.column[code] = len(a.labels)
		a.labels = append(a.labels, name)
	}

	var unresolved []int
	seen := make(map[int]bool)
	for _, row := range a.table.Rows() {
		for _, c := range row.Codes {
			if !c.Valid || seen[c.Value] {
				continue
			}
			seen[c.Value] = true
			if _, ok := a.column[c.Value]; !ok {
				unresolved = append(unresolved, c.Value)
			}
		}
	}
	sort.Ints(unresolved)
	taken := make(map[string]bool, len(a.labels)+len(unresolved))
	for _, l := range a.labels {
		taken[l] = true
	}
	for _, code := range unresolved {
		label := unresolvedLabel(code, taken)
		taken[label] = true
		a.column[code] = len(a.labels)
		a.labels = append(a.labels, label)
	}
}

// unresolvedLabel names an unresolved code by its decimal value, prefixed
// with "code_" when a legend name already uses that text.
func unresolvedLabel(code int, taken map[string]bool) string {
	label := strconv.Itoa(code)
	for prefix := "code_"; taken[label]; prefix = "_" + prefix {
		label = prefix + strconv.Itoa(code)
	}
	return label
}

func (a *Aggregator) buildIndexes() {
	// Column offsets of each region within Row.Codes.
	cols := make([][]int, len(a.regions))
	for i, r := range a.regions {
		for _, p := range r.Positions {
			if c, ok := a.table.ColumnIndex(p); ok {
				cols[i] = append(cols[i], c)
			}
		}
	}

	for _, row := range a.table.Rows() {
		rc := RoundCount{RunID: row.RunID, Round: row.Round, Counts: make([]int, len(a.labels))}
		for _, c := range row.Codes {
			if c.Valid {
				rc.Counts[a.column[c.Value]]++
				rc.Observed++
			}
		}
		a.roundIndex[row.Key()] = len(a.rounds)
		a.rounds = append(a.rounds, rc)

		for i, r := range a.regions {
			reg := RoundCount{RunID: row.RunID, Round: row.Round, Region: r.Name, Counts: make([]int, len(a.labels))}
			for _, c := range cols[i] {
				if code := row.Codes[c]; code.Valid {
					reg.Counts[a.column[code.Value]]++
					reg.Observed++
				}
			}
			a.regionIndex[regionKey{Key: row.Key(), Region: r.Name}] = len(a.regional)
			a.regional = append(a.regional, reg)
		}
	}
}

// Labels returns the count column names.
func (a *Aggregator) Labels() []string {
	out := make([]string, len(a.labels))
	copy(out, a.labels)
	return out
}

// Regions returns the regions counted by the aggregator.
func (a *Aggregator) Regions() []regions.Region { return a.regions }

// Table returns the underlying table.
func (a *Aggregator) Table() *tidy.Table { return a.table }

// RoundCounts returns whole-board counts for every (run, round), in key order.
func (a *Aggregator) RoundCounts() []RoundCount { return a.rounds }

// RegionCounts returns counts for every (run, round, region), in key order
// and then region declaration order.
func (a *Aggregator) RegionCounts() []RoundCount { return a.regional }

// Count looks up the whole-board counts of one snapshot.
func (a *Aggregator) Count(k tidy.Key) (RoundCount, bool) {
	i, ok := a.roundIndex[k]
	if !ok {
		return RoundCount{}, false
	}
	return a.rounds[i], true
}

// RegionCount looks up the counts of one region of one snapshot.
func (a *Aggregator) RegionCount(k tidy.Key, region string) (RoundCount, bool) {
	i, ok := a.regionIndex[regionKey{Key: k, Region: region}]
	if !ok {
		return RoundCount{}, false
	}
	return a.regional[i], true
}
