package loader

import (
	"fmt"

	"github.com/nvandessel/hexmetrics/internal/models"
)

// SourceError describes why one source was skipped.
type SourceError struct {
	Source string `json:"source"`
	Cause  string `json:"cause"`
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("%s: %s", e.Source, e.Cause)
}

// Is lets errors.Is match models.ErrSourceMalformed.
func (e *SourceError) Is(target error) bool {
	return target == models.ErrSourceMalformed
}

// Diagnostic converts the skip into a pipeline diagnostic.
func (e *SourceError) Diagnostic() models.Diagnostic {
	return models.Diagnostic{Kind: models.DiagSourceSkipped, Source: e.Source, Message: e.Cause}
}
