package export

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/nvandessel/hexmetrics/internal/loader"
	"github.com/nvandessel/hexmetrics/internal/models"
	"github.com/nvandessel/hexmetrics/internal/pipeline"
	"github.com/nvandessel/hexmetrics/internal/tidy"
)

// ErrNoInput is returned when neither run documents nor a table are named, or
// when both are.
var ErrNoInput = errors.New("exactly one of an input directory/archive or a table file is required")

// ReadTable loads a pre-merged table: Arrow IPC for *.arrow, CSV otherwise.
func ReadTable(path string) (*tidy.Table, []models.Diagnostic, error) {
	if strings.EqualFold(filepath.Ext(path), ".arrow") {
		t, err := ReadTableArrow(path)
		return t, nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("opening table: %w", err)
	}
	defer f.Close()

	t, warnings, err := tidy.ReadCSV(f)
	if err != nil {
		return nil, warnings, fmt.Errorf("reading %s: %w", filepath.Base(path), err)
	}
	return t, warnings, nil
}

// OpenInput builds a pipeline input from a directory or ZIP of run documents,
// or from a table file. A table is read when the invocation starts, so a
// malformed table aborts that invocation.
func OpenInput(input, table string) (pipeline.Input, error) {
	switch {
	case (input == "") == (table == ""):
		return pipeline.Input{}, ErrNoInput
	case table != "":
		return pipeline.Input{ReadTable: func() (*tidy.Table, []models.Diagnostic, error) {
			return ReadTable(table)
		}}, nil
	default:
		sources, err := loader.Sources(input)
		if err != nil {
			return pipeline.Input{}, err
		}
		return pipeline.Input{Sources: sources}, nil
	}
}
