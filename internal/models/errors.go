package models

import "errors"

// Error kinds shared by every pipeline stage. Match them with errors.Is.
var (
	// ErrSourceMalformed marks a source that could not be decoded. It is never
	// fatal to a batch.
	ErrSourceMalformed = errors.New("source malformed")

	// ErrSchemaViolation marks a table without its join-key or position columns.
	ErrSchemaViolation = errors.New("schema violation")

	// ErrDuplicateKey marks two runs, or two rows of one run, collapsing onto
	// the same (run, round) key.
	ErrDuplicateKey = errors.New("duplicate key")
)
