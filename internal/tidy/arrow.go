package tidy

import (
	"fmt"
	"sort"

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/array"
	"github.com/apache/arrow/go/v17/arrow/memory"

	"github.com/nvandessel/hexmetrics/internal/models"
)

// Schema returns the Arrow schema of the table: run ID, round, the three
// metadata columns and one nullable int64 column per position.
func (t *Table) Schema() *arrow.Schema {
	fields := []arrow.Field{
		{Name: ColRun, Type: arrow.BinaryTypes.String},
		{Name: ColRound, Type: arrow.PrimitiveTypes.Int64},
		{Name: ColBagTotal, Type: arrow.PrimitiveTypes.Int64, Nullable: true},
		{Name: ColMaxRounds, Type: arrow.PrimitiveTypes.Int64, Nullable: true},
		{Name: ColSeed, Type: arrow.PrimitiveTypes.Int64, Nullable: true},
	}
	for _, p := range t.positions {
		fields = append(fields, arrow.Field{Name: PositionColumn(p), Type: arrow.PrimitiveTypes.Int64, Nullable: true})
	}
	return arrow.NewSchema(fields, nil)
}

// Record converts the table to a single Arrow record. Missing codes and
// absent metadata become nulls. The caller must Release the record.
func (t *Table) Record(mem memory.Allocator) arrow.Record {
	if mem == nil {
		mem = memory.NewGoAllocator()
	}
	b := array.NewRecordBuilder(mem, t.Schema())
	defer b.Release()

	runs := b.Field(0).(*array.StringBuilder)
	rounds := b.Field(1).(*array.Int64Builder)
	bags := b.Field(2).(*array.Int64Builder)
	maxes := b.Field(3).(*array.Int64Builder)
	seeds := b.Field(4).(*array.Int64Builder)

	for _, row := range t.rows {
		meta := t.meta[row.RunID]
		runs.Append(row.RunID)
		rounds.Append(int64(row.Round))
		appendOptInt(bags, meta.BagTotal)
		appendOptInt(maxes, meta.MaxRounds)
		if meta.Seed != nil {
			seeds.Append(*meta.Seed)
		} else {
			seeds.AppendNull()
		}
		for ci, c := range row.Codes {
			pb := b.Field(5 + ci).(*array.Int64Builder)
			if c.Valid {
				pb.Append(int64(c.Value))
			} else {
				pb.AppendNull()
			}
		}
	}
	return b.NewRecord()
}

func appendOptInt(b *array.Int64Builder, v *int) {
	if v == nil {
		b.AppendNull()
		return
	}
	b.Append(int64(*v))
}

// FromRecords rebuilds a table from Arrow records laid out as Schema
// describes. Columns are matched by name, so metadata columns are optional.
func FromRecords(recs []arrow.Record) (*Table, error) {
	if len(recs) == 0 {
		return nil, fmt.Errorf("%w: no record batches", models.ErrSchemaViolation)
	}
	schema := recs[0].Schema()

	runIdx := schema.FieldIndices(ColRun)
	roundIdx := schema.FieldIndices(ColRound)
	if len(runIdx) == 0 || len(roundIdx) == 0 {
		return nil, fmt.Errorf("%w: record needs %q and %q columns", models.ErrSchemaViolation, ColRun, ColRound)
	}

	type posCol struct{ pos, col int }
	var posCols []posCol
	for i, f := range schema.Fields() {
		var p int
		if _, err := fmt.Sscanf(f.Name, PosPrefix+"%d", &p); err == nil && p > 0 && f.Name == PositionColumn(p) {
			posCols = append(posCols, posCol{pos: p, col: i})
		}
	}
	if len(posCols) == 0 {
		return nil, fmt.Errorf("%w: record has no %s* columns", models.ErrSchemaViolation, PosPrefix)
	}
	sort.Slice(posCols, func(i, j int) bool { return posCols[i].pos < posCols[j].pos })
	positions := make([]int, len(posCols))
	for i, pc := range posCols {
		if i > 0 && pc.pos == posCols[i-1].pos {
			return nil, fmt.Errorf("%w: column %s appears twice", models.ErrSchemaViolation, PositionColumn(pc.pos))
		}
		positions[i] = pc.pos
	}

	t := newTable(positions)
	for _, rec := range recs {
		runCol, ok := rec.Column(runIdx[0]).(*array.String)
		if !ok {
			return nil, fmt.Errorf("%w: %q is not a string column", models.ErrSchemaViolation, ColRun)
		}
		roundCol, ok := rec.Column(roundIdx[0]).(*array.Int64)
		if !ok {
			return nil, fmt.Errorf("%w: %q is not an int64 column", models.ErrSchemaViolation, ColRound)
		}

		for r := 0; r < int(rec.NumRows()); r++ {
			if runCol.IsNull(r) || roundCol.IsNull(r) {
				continue
			}
			id := runCol.Value(r)
			codes := make([]models.Code, len(posCols))
			for i, pc := range posCols {
				col, ok := rec.Column(pc.col).(*array.Int64)
				if ok && col.IsValid(r) {
					codes[i] = models.Known(int(col.Value(r)))
				}
			}
			if _, seen := t.meta[id]; !seen {
				t.meta[id] = metaFromRecord(rec, r)
				t.runs = append(t.runs, id)
			}
			if err := t.add(Row{RunID: id, Round: int(roundCol.Value(r)), Codes: codes}); err != nil {
				return nil, err
			}
		}
	}
	t.finish()
	return t, nil
}

func metaFromRecord(rec arrow.Record, r int) models.Metadata {
	get := func(name string) (int64, bool) {
		idx := rec.Schema().FieldIndices(name)
		if len(idx) == 0 {
			return 0, false
		}
		col, ok := rec.Column(idx[0]).(*array.Int64)
		if !ok || col.IsNull(r) {
			return 0, false
		}
		return col.Value(r), true
	}

	var meta models.Metadata
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
