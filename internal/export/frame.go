// Package export writes analysis results as CSV tables and Arrow IPC files.
// Every table is built as an Arrow record first so the CSV and IPC sinks share
// one typed representation.
package export

import (
	"fmt"

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/array"
	"github.com/apache/arrow/go/v17/arrow/memory"
)

// Frame is a small row-oriented table headed for a sink. Cell values must
// match the field type: string for String, int or *int for Int64, float64 or
// *float64 for Float64. Nil pointers become nulls.
type Frame struct {
	Name   string
	Fields []arrow.Field
	Rows   [][]any
}

// Schema returns the Arrow schema of the frame.
func (f *Frame) Schema() *arrow.Schema {
	return arrow.NewSchema(f.Fields, nil)
}

// Append adds one row.
func (f *Frame) Append(cells ...any) {
	f.Rows = append(f.Rows, cells)
}

// Record converts the frame to an Arrow record. The caller must Release it.
func (f *Frame) Record(mem memory.Allocator) (arrow.Record, error) {
	if mem == nil {
		mem = memory.NewGoAllocator()
	}
	b := array.NewRecordBuilder(mem, f.Schema())
	defer b.Release()

	for ri, row := range f.Rows {
		if len(row) != len(f.Fields) {
			return nil, fmt.Errorf("%s row %d: %d cells for %d columns", f.Name, ri, len(row), len(f.Fields))
		}
		for ci, cell := range row {
			if err := appendCell(b.Field(ci), cell); err != nil {
				return nil, fmt.Errorf("%s row %d column %s: %w", f.Name, ri, f.Fields[ci].Name, err)
			}
		}
	}
	return b.NewRecord(), nil
}

func appendCell(fb array.Builder, cell any) error {
	switch b := fb.(type) {
	case *array.StringBuilder:
		switch v := cell.(type) {
		case string:
			b.Append(v)
		case nil:
			b.AppendNull()
		default:
			return fmt.Errorf("want string, got %T", cell)
		}
	case *array.Int64Builder:
		switch v := cell.(type) {
		case int:
			b.Append(int64(v))
		case int64:
			b.Append(v)
		case *int:
			if v == nil {
				b.AppendNull()
			} else {
				b.Append(int64(*v))
			}
		case nil:
			b.AppendNull()
		default:
			return fmt.Errorf("want integer, got %T", cell)
		}
	case *array.Float64Builder:
		switch v := cell.(type) {
		case float64:
			b.Append(v)
		case *float64:
			if v == nil {
				b.AppendNull()
			} else {
				b.Append(*v)
			}
		case nil:
			b.AppendNull()
		default:
			return fmt.Errorf("want float, got %T", cell)
		}
	default:
		return fmt.Errorf("unsupported column builder %T", fb)
	}
	return nil
}
