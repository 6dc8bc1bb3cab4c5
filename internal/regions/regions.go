// Package regions partitions board positions into named spatial regions.
//
// A Geometry is configuration, not domain logic: any ordered list of named
// index selectors is accepted. The default describes the 11-hex board used by
// the simulator (inner hex, middle ring, outer ring).
package regions

import (
	"fmt"
	"sort"

	"github.com/nvandessel/hexmetrics/internal/models"
)

// Range is an inclusive span of 1-based positions.
type Range struct {
	From int `json:"from" yaml:"from"`
	To   int `json:"to" yaml:"to"`
}

// Spec declares one region: positions listed individually and/or as ranges.
type Spec struct {
	Name    string  `json:"name" yaml:"name"`
	Indices []int   `json:"indices,omitempty" yaml:"indices,omitempty"`
	Ranges  []Range `json:"ranges,omitempty" yaml:"ranges,omitempty"`
}

// Contains reports whether pos is selected by the spec.
func (s Spec) Contains(pos int) bool {
	for _, i := range s.Indices {
		if i == pos {
			return true
		}
	}
	for _, r := range s.Ranges {
		if pos >= r.From && pos <= r.To {
			return true
		}
	}
	return false
}

func (s Spec) spans() []Range {
	out := make([]Range, 0, len(s.Indices)+len(s.Ranges))
	for _, i := range s.Indices {
		out = append(out, Range{From: i, To: i})
	}
	return append(out, s.Ranges...)
}

// Geometry is an ordered list of region declarations.
type Geometry []Spec

// DefaultGeometry returns inner = {1}, middle = 2..7, outer = 8..11.
func DefaultGeometry() Geometry {
	return Geometry{
		{Name: "inner", Indices: []int{1}},
		{Name: "middle", Ranges: []Range{{From: 2, To: 7}}},
		{Name: "outer", Ranges: []Range{{From: 8, To: 11}}},
	}
}

// Validate rejects unnamed or duplicate regions, empty selectors, inverted
// ranges, non-positive indices and positions claimed by two regions.
func (g Geometry) Validate() error {
	names := make(map[string]bool, len(g))
	for i, s := range g {
		if s.Name == "" {
			return fmt.Errorf("region %d has no name", i)
		}
		if names[s.Name] {
			return fmt.Errorf("region %q declared twice", s.Name)
		}
		names[s.Name] = true

		spans := s.spans()
		if len(spans) == 0 {
			return fmt.Errorf("region %q selects no positions", s.Name)
		}
		for _, r := range spans {
			if r.From < 1 || r.To < r.From {
				return fmt.Errorf("region %q has invalid span %d..%d", s.Name, r.From, r.To)
			}
		}
	}

	for i := range g {
		for j := i + 1; j < len(g); j++ {
			for _, a := range g[i].spans() {
				for _, b := range g[j].spans() {
					if a.From <= b.To && b.From <= a.To {
						return fmt.Errorf("regions %q and %q overlap at %d..%d",
							g[i].Name, g[j].Name, max(a.From, b.From), min(a.To, b.To))
					}
				}
			}
		}
	}
	return nil
}

// Region is a resolved region: the positions of its spec that are actually
// present in the data, ascending.
type Region struct {
	Name      string `json:"name"`
	Positions []int  `json:"positions"`
}

// Partition resolves the geometry against the positions present in a table.
// Regions keep declaration order; a region left with no present positions is
// omitted and reported as a diagnostic.
func Partition(present []int, g Geometry) ([]Region, []models.Diagnostic) {
	sorted := make([]int, len(present))
	copy(sorted, present)
	sort.Ints(sorted)

	var out []Region
	var warnings []models.Diagnostic
	for _, s := range g {
		var positions []int
		for _, p := range sorted {
			if s.Contains(p) {
				positions = append(positions, p)
			}
		}
		if len(positions) == 0 {
			warnings = append(warnings, models.Diagnostic{
				Kind:    models.DiagRegionEmpty,
				Source:  s.Name,
				Message: "no declared position is present in the data",
			})
			continue
		}
		out = append(out, Region{Name: s.Name, Positions: positions})
	}
	return out, warnings
}
