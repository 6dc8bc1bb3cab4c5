// Package store persists analysis reports in a SQLite database. Every table is
// keyed by the invocation ID so reports from different runs of the pipeline
// coexist in one file.
package store

import (
	"context"
	"database/sql"
	"fmt"
)

// SchemaVersion is the current schema version.
const SchemaVersion = 1

const schemaV1 = `
-- One row per stored report
CREATE TABLE IF NOT EXISTS invocations (
    id TEXT PRIMARY KEY,
    created_at TEXT NOT NULL,
    absorption_code INTEGER NOT NULL,
    labels TEXT NOT NULL,   -- JSON array, column order of every count table
    regions TEXT NOT NULL,  -- JSON array of {name, positions}
    summary TEXT NOT NULL   -- JSON absorption summary
);

CREATE TABLE IF NOT EXISTS runs (
    invocation_id TEXT NOT NULL REFERENCES invocations(id) ON DELETE CASCADE,
    file TEXT NOT NULL,
    rounds INTEGER NOT NULL,
    seed INTEGER,
    bag_total INTEGER,
    max_rounds INTEGER,
    PRIMARY KEY (invocation_id, file)
);

CREATE TABLE IF NOT EXISTS absorption (
    invocation_id TEXT NOT NULL REFERENCES invocations(id) ON DELETE CASCADE,
    file TEXT NOT NULL,
    absorption_round INTEGER,  -- NULL when the run never absorbed
    PRIMARY KEY (invocation_id, file)
);

CREATE TABLE IF NOT EXISTS final_counts (
    invocation_id TEXT NOT NULL REFERENCES invocations(id) ON DELETE CASCADE,
    file TEXT NOT NULL,
    round INTEGER NOT NULL,
    token TEXT NOT NULL,
    count INTEGER NOT NULL,
    PRIMARY KEY (invocation_id, file, token)
);

CREATE TABLE IF NOT EXISTS round_counts (
    invocation_id TEXT NOT NULL REFERENCES invocations(id) ON DELETE CASCADE,
    file TEXT NOT NULL,
    round INTEGER NOT NULL,
    token TEXT NOT NULL,
    count INTEGER NOT NULL,
    PRIMARY KEY (invocation_id, file, round, token)
);

CREATE TABLE IF NOT EXISTS region_counts (
    invocation_id TEXT NOT NULL REFERENCES invocations(id) ON DELETE CASCADE,
    file TEXT NOT NULL,
    round INTEGER NOT NULL,
    region TEXT NOT NULL,
    token TEXT NOT NULL,
    count INTEGER NOT NULL,
    PRIMARY KEY (invocation_id, file, round, region, token)
);

CREATE TABLE IF NOT EXISTS mean_curves (
    invocation_id TEXT NOT NULL REFERENCES invocations(id) ON DELETE CASCADE,
    subset TEXT NOT NULL,
    region TEXT NOT NULL,  -- '' for the whole board
    round INTEGER NOT NULL,
    runs INTEGER NOT NULL,
    token TEXT NOT NULL,
    total INTEGER NOT NULL,
    mean REAL NOT NULL,
    PRIMARY KEY (invocation_id, subset, region, round, token)
);

CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY,
    applied_at TEXT NOT NULL
);
`

// InitSchema initializes the database schema.
// Existing databases are integrity-checked and migrated as needed.
func InitSchema(ctx context.Context, db *sql.DB) error {
	currentVersion, err := getSchemaVersion(ctx, db)
	if err != nil {
		// Schema version table doesn't exist yet, create fresh schema
		if err := createSchema(ctx, db); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
		return nil
	}

	if err := ValidateIntegrity(ctx, db); err != nil {
		return fmt.Errorf("database integrity check failed: %w", err)
	}

	if currentVersion > SchemaVersion {
		return fmt.Errorf("database schema version %d is newer than supported version %d", currentVersion, SchemaVersion)
	}
	return nil
}

// getSchemaVersion returns an error if the schema_version table doesn't exist.
func getSchemaVersion(ctx context.Context, db *sql.DB) (int, error) {
	var version int
	err := db.QueryRowContext(ctx, `SELECT MAX(version) FROM schema_version`).Scan(&version)
	if err != nil {
		return 0, err
	}
	return version, nil
}

func createSchema(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, schemaV1); err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO schema_version (version, applied_at) VALUES (?, datetime('now'))`,
		SchemaVersion); err != nil {
		return fmt.Errorf("failed to record schema version: %w", err)
	}

	return tx.Commit()
}

// ValidateIntegrity runs PRAGMA integrity_check and PRAGMA foreign_key_check.
// Returns an error if any issues are found.
func ValidateIntegrity(ctx context.Context, db *sql.DB) error {
	rows, err := db.QueryContext(ctx, `PRAGMA integrity_check`)
	if err != nil {
		return fmt.Errorf("failed to run integrity_check: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var result string
		if err := rows.Scan(&result); err != nil {
			return fmt.Errorf("failed to scan integrity_check result: %w", err)
		}
		if result != "ok" {
			return fmt.Errorf("integrity_check failed: %s", result)
		}
	}

	fkRows, err := db.QueryContext(ctx, `PRAGMA foreign_key_check`)
	if err != nil {
		return fmt.Errorf("failed to run foreign_key_check: %w", err)
	}
	defer fkRows.Close()

	var fkErrors []string
	for fkRows.Next() {
		var table, rowid, parent, fkid string
		if err := fkRows.Scan(&table, &rowid, &parent, &fkid); err != nil {
			return fmt.Errorf("failed to scan foreign_key_check result: %w", err)
		}
		fkErrors = append(fkErrors, fmt.Sprintf("table=%s rowid=%s parent=%s fkid=%s", table, rowid, parent, fkid))
	}

	if len(fkErrors) > 0 {
		return fmt.Errorf("foreign_key_check failed: %v", fkErrors)
	}

	return nil
}
