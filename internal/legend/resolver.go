// Package legend resolves token names and codes across run sources.
//
// Each run document may carry its own legend. A Resolver merges them in
// declared order (earliest source wins) and records every conflict as an
// Anomaly instead of silently merging. A fallback legend fills in names for
// codes that no source resolves.
package legend

import (
	"fmt"
	"strconv"

	"github.com/nvandessel/hexmetrics/internal/models"
)

// AnomalyKind describes which side of a mapping conflicted.
type AnomalyKind string

const (
	// CodeConflict: a name already mapped to another code.
	CodeConflict AnomalyKind = "code_conflict"
	// NameConflict: a code already mapped to another name.
	NameConflict AnomalyKind = "name_conflict"
)

// Anomaly is one rejected mapping.
type Anomaly struct {
	Kind   AnomalyKind `json:"kind"`
	Source string      `json:"source"`
	Name   string      `json:"name"`
	Code   int         `json:"code"`
	// Kept is the mapping that won, formatted as NAME=CODE.
	Kept string `json:"kept"`
}

func (a Anomaly) String() string {
	return fmt.Sprintf("%s from %s: %s=%d rejected, keeping %s", a.Kind, a.Source, a.Name, a.Code, a.Kept)
}

// Diagnostic converts the anomaly into a pipeline diagnostic.
func (a Anomaly) Diagnostic() models.Diagnostic {
	return models.Diagnostic{
		Kind:    models.DiagLegendConflict,
		Source:  a.Source,
		Message: fmt.Sprintf("%s=%d rejected, keeping %s", a.Name, a.Code, a.Kept),
	}
}

// Resolver accumulates per-source legends. It is not safe for concurrent use;
// callers add sources in precedence order from a single goroutine.
type Resolver struct {
	fallback  models.Legend
	names     []string
	byName    map[string]int
	byCode    map[int]string
	anomalies []Anomaly
}

// NewResolver creates a resolver. fallback may be nil, in which case codes no
// source resolves are labelled by their decimal value.
func NewResolver(fallback models.Legend) *Resolver {
	return &Resolver{
		fallback: fallback,
		byName:   make(map[string]int),
		byCode:   make(map[int]string),
	}
}

// Add merges one source's legend. Mappings that conflict with an earlier
// source (or an earlier entry of the same legend) are rejected and recorded.
func (r *Resolver) Add(source string, l models.Legend) {
	for _, e := range l {
		if code, ok := r.byName[e.Name]; ok {
			if code != e.Code {
				r.anomalies = append(r.anomalies, Anomaly{
					Kind: CodeConflict, Source: source, Name: e.Name, Code: e.Code,
					Kept: fmt.Sprintf("%s=%d", e.Name, code),
				})
			}
			continue
		}
		if name, ok := r.byCode[e.Code]; ok {
			r.anomalies = append(r.anomalies, Anomaly{
				Kind: NameConflict, Source: source, Name: e.Name, Code: e.Code,
				Kept: fmt.Sprintf("%s=%d", name, e.Code),
			})
			continue
		}
		r.byName[e.Name] = e.Code
		r.byCode[e.Code] = e.Name
		r.names = append(r.names, e.Name)
	}
}

// Anomalies returns the conflicts recorded so far.
func (r *Resolver) Anomalies() []Anomaly {
	out := make([]Anomaly, len(r.anomalies))
	copy(out, r.anomalies)
	return out
}

// Resolve returns the merged, immutable legend. Fallback entries are used only
// where neither their name nor their code is already taken by a source.
func (r *Resolver) Resolve() *Legend {
	l := &Legend{
		byName: make(map[string]int, len(r.byName)+len(r.fallback)),
		byCode: make(map[int]string, len(r.byCode)+len(r.fallback)),
	}
	for _, name := range r.names {
		l.add(name, r.byName[name])
	}
	for _, e := range r.fallback {
		if _, ok := l.byName[e.Name]; ok {
			continue
		}
		if _, ok := l.byCode[e.Code]; ok {
			continue
		}
		l.add(e.Name, e.Code)
	}
	return l
}

// Legend is a resolved bidirectional name↔code mapping.
type Legend struct {
	names  []string
	byName map[string]int
	byCode map[int]string
}

// FromEntries builds a resolved legend from a single mapping.
// Conflicting entries are dropped exactly as a Resolver would drop them.
func FromEntries(l models.Legend) *Legend {
	r := NewResolver(nil)
	r.Add("legend", l)
	return r.Resolve()
}

func (l *Legend) add(name string, code int) {
	l.names = append(l.names, name)
	l.byName[name] = code
	l.byCode[code] = name
}

// Names returns token names in precedence order.
func (l *Legend) Names() []string {
	out := make([]string, len(l.names))
	copy(out, l.names)
	return out
}

// Code returns the code for name.
func (l *Legend) Code(name string) (int, bool) {
	c, ok := l.byName[name]
	return c, ok
}

// Resolves reports whether code has a name.
func (l *Legend) Resolves(code int) bool {
	_, ok := l.byCode[code]
	return ok
}

// Name returns the token name for code, or its decimal value when unresolved.
func (l *Legend) Name(code int) string {
	if name, ok := l.byCode[code]; ok {
		return name
	}
	return strconv.Itoa(code)
}

// Lookup resolves a token reference that is either a legend name or a
// literal integer code.
func (l *Legend) Lookup(ref string) (int, bool) {
	if c, ok := l.byName[ref]; ok {
		return c, true
	}
	if n, err := strconv.Atoi(ref); err == nil {
		return n, true
	}
	return 0, false
}

// Entries returns the legend as a declared-order mapping.
func (l *Legend) Entries() models.Legend {
	out := make(models.Legend, 0, len(l.names))
	for _, name := range l.names {
		out = append(out, models.LegendEntry{Name: name, Code: l.byName[name]})
	}
	return out
}
