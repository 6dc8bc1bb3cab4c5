package loader

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/nvandessel/hexmetrics/internal/constants"
	"github.com/nvandessel/hexmetrics/internal/models"
)

// DefaultWorkers bounds concurrent decoding when the caller passes 0.
const DefaultWorkers = constants.DefaultWorkers

// Source is one raw run document. Read is called once, from a worker goroutine.
type Source struct {
	ID   string
	Read func() ([]byte, error)
}

// BytesSource wraps an in-memory document.
func BytesSource(id string, data []byte) Source {
	return Source{ID: id, Read: func() ([]byte, error) { return data, nil }}
}

// Result is the outcome of loading one source: either a Run or the reason it
// was skipped, plus any warnings recorded along the way.
type Result struct {
	Source   string
	Run      *models.Run
	Warnings []models.Diagnostic
	Err      *SourceError
}

// Batch is the merged outcome of loading many sources.
// Runs are sorted by ID; Skipped is sorted by source.
type Batch struct {
	Runs     []*models.Run
	Skipped  []*SourceError
	Warnings []models.Diagnostic
}

// Load reads and decodes a single source.
func Load(src Source) (Result, error) {
	data, err := src.Read()
	if err != nil {
		return Result{Source: src.ID, Err: &SourceError{Source: src.ID, Cause: fmt.Sprintf("read: %v", err)}}, nil
	}

	run, warnings, err := DecodeRun(src.ID, data)
	if err != nil {
		var se *SourceError
		if errors.As(err, &se) {
			return Result{Source: src.ID, Warnings: warnings, Err: se}, nil
		}
		return Result{}, err
	}
	return Result{Source: src.ID, Run: run, Warnings: warnings}, nil
}

// LoadAll decodes sources on a bounded worker pool. Malformed sources are
// skipped and reported; a duplicate round key or a cancelled context aborts
// the batch. Each worker writes only its own result slot, so the merged batch
// does not depend on scheduling order.
func LoadAll(ctx context.Context, sources []Source, workers int) (*Batch, error) {
	if workers <= 0 {
		workers = DefaultWorkers
	}

	results := make([]Result, len(sources))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, src := range sources {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := Load(src)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return merge(results), nil
}

func merge(results []Result) *Batch {
	b := &Batch{}
	for _, r := range results {
		b.Warnings = append(b.Warnings, r.Warnings...)
		switch {
		case r.Err != nil:
			b.Skipped = append(b.Skipped, r.Err)
		case r.Run != nil:
			b.Runs = append(b.Runs, r.Run)
		}
	}
	sort.SliceStable(b.Runs, func(i, j int) bool { return b.Runs[i].ID < b.Runs[j].ID })
	sort.SliceStable(b.Skipped, func(i, j int) bool { return b.Skipped[i].Source < b.Skipped[j].Source })
	return b
}
