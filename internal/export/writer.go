package export

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/apache/arrow/go/v17/arrow/memory"

	"github.com/nvandessel/hexmetrics/internal/pipeline"
	"github.com/nvandessel/hexmetrics/internal/tidy"
)

// Writer writes report tables into one output directory.
type Writer struct {
	dir    string
	arrow  bool
	mem    memory.Allocator
	logger *slog.Logger
}

// NewWriter returns a Writer for dir. When arrow is set the tidy table is
// also written as an Arrow IPC file.
func NewWriter(dir string, arrow bool) *Writer {
	return &Writer{dir: dir, arrow: arrow, mem: memory.NewGoAllocator()}
}

// SetLogger sets the logger used for per-file debug output.
func (w *Writer) SetLogger(logger *slog.Logger) {
	w.logger = logger
}

// SetAllocator replaces the Arrow allocator.
func (w *Writer) SetAllocator(mem memory.Allocator) {
	w.mem = mem
}

// WriteReport writes every table of r and returns the paths written, in
// write order.
func (w *Writer) WriteReport(r *pipeline.Report) ([]string, error) {
	if err := os.MkdirAll(w.dir, 0755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	var written []string
	path := filepath.Join(w.dir, TidyFile)
	if err := WriteTableCSV(path, r.Table(), w.mem); err != nil {
		return written, err
	}
	written = append(written, path)

	if w.arrow {
		path := filepath.Join(w.dir, TidyArrowFile)
		if err := WriteTableArrow(path, r.Table(), w.mem); err != nil {
			return written, err
		}
		written = append(written, path)
	}

	for _, f := range ReportFrames(r) {
		path, err := w.WriteFrame(f)
		if err != nil {
			return written, err
		}
		written = append(written, path)
	}
	return written, nil
}

// ReportFrames returns the derived tables of a report, excluding the tidy
// table itself.
func ReportFrames(r *pipeline.Report) []*Frame {
	frames := []*Frame{
		AbsorptionFrame(r.Absorption),
		AbsorptionSummaryFrame(r.Summary),
		HistogramFrame(r.Summary.Histogram),
		FinalCountsFrame(r.Labels, r.FinalStates),
		LabelCountFrame(FinalTotalsFile, r.FinalTotals),
		EvolutionFrame(r.Labels, r.RoundCounts()),
		RegionEvolutionFrame(r.Labels, r.RegionCounts()),
		LabelCountFrame(TokenFrequencyFile, r.TokenFrequency),
		BagTotalFrame(r.BagTotals),
	}
	for _, c := range r.Curves {
		frames = append(frames, CurveFrame(r.Labels, c))
	}
	return frames
}

// WriteFrame writes f as <dir>/<f.Name>.
func (w *Writer) WriteFrame(f *Frame) (string, error) {
	rec, err := f.Record(w.mem)
	if err != nil {
		return "", err
	}
	defer rec.Release()

	path := filepath.Join(w.dir, f.Name)
	if err := writeAtomic(path, func(out io.Writer) error { return WriteCSV(out, rec) }); err != nil {
		return "", fmt.Errorf("writing %s: %w", f.Name, err)
	}
	if w.logger != nil {
		w.logger.Debug("wrote table", "file", path, "rows", rec.NumRows())
	}
	return path, nil
}

// WriteTableCSV writes a tidy table to path.
func WriteTableCSV(path string, t *tidy.Table, mem memory.Allocator) error {
	rec := t.Record(mem)
	defer rec.Release()
	if err := writeAtomic(path, func(w io.Writer) error { return WriteCSV(w, rec) }); err != nil {
		return fmt.Errorf("writing tidy table: %w", err)
	}
	return nil
}
