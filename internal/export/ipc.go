package export

import (
	"fmt"
	"io"
	"os"

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/ipc"
	"github.com/apache/arrow/go/v17/arrow/memory"

	"github.com/nvandessel/hexmetrics/internal/tidy"
)

// WriteIPC writes rec as a single-batch Arrow IPC file. The file format
// patches its footer offsets, so w must be seekable.
func WriteIPC(w io.WriteSeeker, rec arrow.Record, mem memory.Allocator) error {
	if mem == nil {
		mem = memory.NewGoAllocator()
	}
	fw, err := ipc.NewFileWriter(w, ipc.WithSchema(rec.Schema()), ipc.WithAllocator(mem))
	if err != nil {
		return fmt.Errorf("creating arrow writer: %w", err)
	}
	if err := fw.Write(rec); err != nil {
		fw.Close()
		return fmt.Errorf("writing arrow record: %w", err)
	}
	if err := fw.Close(); err != nil {
		return fmt.Errorf("closing arrow writer: %w", err)
	}
	return nil
}

// WriteTableArrow writes a tidy table to path as an Arrow IPC file.
func WriteTableArrow(path string, t *tidy.Table, mem memory.Allocator) error {
	rec := t.Record(mem)
	defer rec.Release()
	return writeAtomicFile(path, func(f *os.File) error { return WriteIPC(f, rec, mem) })
}

// ReadTableArrow loads a tidy table from an Arrow IPC file written by
// WriteTableArrow. Columns are matched by name.
func ReadTableArrow(path string) (*tidy.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening arrow file: %w", err)
	}
	defer f.Close()

	fr, err := ipc.NewFileReader(f)
	if err != nil {
		return nil, fmt.Errorf("reading arrow file %s: %w", path, err)
	}
	defer fr.Close()

	recs := make([]arrow.Record, 0, fr.NumRecords())
	defer func() {
		for _, rec := range recs {
			rec.Release()
		}
	}()
	for i := 0; i < fr.NumRecords(); i++ {
		rec, err := fr.Record(i)
		if err != nil {
			return nil, fmt.Errorf("reading arrow batch %d: %w", i, err)
		}
		// The reader releases its batch on the next call.
		rec.Retain()
		recs = append(recs, rec)
	}
	return tidy.FromRecords(recs)
}
