package tidy

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/nvandessel/hexmetrics/internal/models"
)

// ReadCSV reads a pre-merged table. The header must contain "file" and
// "round" plus at least one "pos_<i>" column; otherwise the error wraps
// models.ErrSchemaViolation. Cells that are not integers become missing codes.
// Rows with an empty run ID or a non-integer round are dropped with a warning.
func ReadCSV(r io.Reader) (*Table, []models.Diagnostic, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil, fmt.Errorf("%w: empty table", models.ErrSchemaViolation)
		}
		return nil, nil, fmt.Errorf("reading header: %w", err)
	}

	cols := make(map[string]int, len(header))
	type posCol struct{ pos, col int }
	var posCols []posCol
	for i, name := range header {
		name = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
		cols[name] = i
		if rest, ok := strings.CutPrefix(name, PosPrefix); ok {
			if p, err := strconv.Atoi(rest); err == nil && p > 0 {
				posCols = append(posCols, posCol{pos: p, col: i})
			}
		}
	}

	runCol, okRun := cols[ColRun]
	roundCol, okRound := cols[ColRound]
	if !okRun || !okRound {
		return nil, nil, fmt.Errorf("%w: table needs %q and %q columns", models.ErrSchemaViolation, ColRun, ColRound)
	}
	if len(posCols) == 0 {
		return nil, nil, fmt.Errorf("%w: table has no %s* columns", models.ErrSchemaViolation, PosPrefix)
	}
	sort.Slice(posCols, func(i, j int) bool { return posCols[i].pos < posCols[j].pos })

	positions := make([]int, 0, len(posCols))
	for i, pc := range posCols {
		if i > 0 && posCols[i-1].pos == pc.pos {
			return nil, nil, fmt.Errorf("%w: column %s appears twice", models.ErrSchemaViolation, PositionColumn(pc.pos))
		}
		positions = append(positions, pc.pos)
	}

	cell := func(rec []string, i int) string {
		if i < len(rec) {
			return strings.TrimSpace(rec[i])
		}
		return ""
	}

	t := newTable(positions)
	var warnings []models.Diagnostic
	line := 1
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, warnings, fmt.Errorf("reading line %d: %w", line, err)
		}

		runID := cell(rec, runCol)
		round, ok := models.ParseInt(cell(rec, roundCol))
		if runID == "" || !ok {
			warnings = append(warnings, models.Diagnostic{
				Kind:    models.DiagRoundDropped,
				Source:  fmt.Sprintf("line %d", line),
				Message: fmt.Sprintf("run %q round %q is not a usable key", runID, cell(rec, roundCol)),
			})
			continue
		}

		codes := make([]models.Code, len(posCols))
		for i, pc := range posCols {
			if v, ok := models.ParseInt(cell(rec, pc.col)); ok {
				codes[i] = models.Known(int(v))
			}
		}

		if _, seen := t.meta[runID]; !seen {
			t.meta[runID] = readMeta(rec, cols, cell)
			t.runs = append(t.runs, runID)
		}
		if err := t.add(Row{RunID: runID, Round: int(round), Codes: codes}); err != nil {
			return nil, warnings, err
		}
	}

	t.finish()
	return t, warnings, nil
}

func readMeta(rec []string, cols map[string]int, cell func([]string, int) string) models.Metadata {
	var meta models.Metadata
	get := func(name string) (int64, bool) {
		i, ok := cols[name]
		if !ok {
			return 0, false
		}
		return models.ParseInt(cell(rec, i))
	}
	if v, ok := get(ColSeed); ok {
		meta.Seed = &v
	}
	if v, ok := get(ColBagTotal); ok {
		n := int(v)
		meta.BagTotal = &n
	}
	if v, ok := get(ColMaxRounds); ok {
		n := int(v)
		meta.MaxRounds = &n
	}
	return meta
}
