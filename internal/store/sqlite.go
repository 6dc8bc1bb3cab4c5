package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nvandessel/hexmetrics/internal/absorption"
	"github.com/nvandessel/hexmetrics/internal/metrics"
	"github.com/nvandessel/hexmetrics/internal/pipeline"
	"github.com/nvandessel/hexmetrics/internal/regions"
)

// ErrNotFound is returned when an invocation ID is not in the database.
var ErrNotFound = errors.New("invocation not found")

// Invocation describes one stored report.
type Invocation struct {
	ID             string             `json:"id"`
	CreatedAt      time.Time          `json:"created_at"`
	AbsorptionCode int                `json:"absorption_code"`
	Labels         []string           `json:"labels"`
	Regions        []regions.Region   `json:"regions"`
	Summary        absorption.Summary `json:"summary"`
	Runs           int                `json:"runs"`
}

// SQLiteStore stores reports in a SQLite database file.
type SQLiteStore struct {
	mu sync.Mutex
	db *sql.DB
}

// Open opens or creates the database at path.
func Open(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite works best with single writer

	if err := InitSchema(context.Background(), db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

// SaveReport writes every table of r in one transaction.
func (s *SQLiteStore) SaveReport(ctx context.Context, r *pipeline.Report) error {
	if r == nil {
		return fmt.Errorf("no report to save")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	labels, err := json.Marshal(r.Labels)
	if err != nil {
		return fmt.Errorf("marshaling labels: %w", err)
	}
	regionJSON, err := json.Marshal(r.Regions)
	if err != nil {
		return fmt.Errorf("marshaling regions: %w", err)
	}
	summary, err := json.Marshal(r.Summary)
	if err != nil {
		return fmt.Errorf("marshaling summary: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO invocations (id, created_at, absorption_code, labels, regions, summary) VALUES (?, ?, ?, ?, ?, ?)`,
		r.ID, r.CreatedAt.UTC().Format(time.RFC3339Nano), r.AbsorptionCode, string(labels), string(regionJSON), string(summary),
	); err != nil {
		return fmt.Errorf("failed to insert invocation %s: %w", r.ID, err)
	}

	steps := []struct {
		table string
		fn    func(context.Context, *sql.Tx, *pipeline.Report) error
	}{
		{"runs", insertRuns},
		{"absorption", insertAbsorption},
		{"final_counts", insertFinalCounts},
		{"round_counts", insertRoundCounts},
		{"region_counts", insertRegionCounts},
		{"mean_curves", insertCurves},
	}
	for _, step := range steps {
		if err := step.fn(ctx, tx, r); err != nil {
			return fmt.Errorf("failed to insert %s: %w", step.table, err)
		}
	}
	return tx.Commit()
}

// insertMany prepares query once and executes it for every argument row.
func insertMany(ctx context.Context, tx *sql.Tx, query string, rows [][]any) error {
	if len(rows) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, args := range rows {
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return err
		}
	}
	return nil
}

func insertRuns(ctx context.Context, tx *sql.Tx, r *pipeline.Report) error {
	t := r.Table()
	var rows [][]any
	for _, id := range t.RunIDs() {
		meta := t.Meta(id)
		rows = append(rows, []any{r.ID, id, len(t.RunRows(id)), nullInt64(meta.Seed), nullInt(meta.BagTotal), nullInt(meta.MaxRounds)})
	}
	return insertMany(ctx, tx,
		`INSERT INTO runs (invocation_id, file, rounds, seed, bag_total, max_rounds) VALUES (?, ?, ?, ?, ?, ?)`, rows)
}

func insertAbsorption(ctx context.Context, tx *sql.Tx, r *pipeline.Report) error {
	var rows [][]any
	for _, res := range r.Absorption {
		rows = append(rows, []any{r.ID, res.RunID, nullInt(res.Round)})
	}
	return insertMany(ctx, tx,
		`INSERT INTO absorption (invocation_id, file, absorption_round) VALUES (?, ?, ?)`, rows)
}

func insertFinalCounts(ctx context.Context, tx *sql.Tx, r *pipeline.Report) error {
	var rows [][]any
	for _, fs := range r.FinalStates {
		for i, n := range fs.Counts {
			rows = append(rows, []any{r.ID, fs.RunID, fs.Round, r.Labels[i], n})
		}
	}
	return insertMany(ctx, tx,
		`INSERT INTO final_counts (invocation_id, file, round, token, count) VALUES (?, ?, ?, ?, ?)`, rows)
}

func insertRoundCounts(ctx context.Context, tx *sql.Tx, r *pipeline.Report) error {
	var rows [][]any
	for _, rc := range r.RoundCounts() {
		for i, n := range rc.Counts {
			rows = append(rows, []any{r.ID, rc.RunID, rc.Round, r.Labels[i], n})
		}
	}
	return insertMany(ctx, tx,
		`INSERT INTO round_counts (invocation_id, file, round, token, count) VALUES (?, ?, ?, ?, ?)`, rows)
}

func insertRegionCounts(ctx context.Context, tx *sql.Tx, r *pipeline.Report) error {
	var rows [][]any
	for _, rc := range r.RegionCounts() {
		for i, n := range rc.Counts {
			rows = append(rows, []any{r.ID, rc.RunID, rc.Round, rc.Region, r.Labels[i], n})
		}
	}
	return insertMany(ctx, tx,
		`INSERT INTO region_counts (invocation_id, file, round, region, token, count) VALUES (?, ?, ?, ?, ?, ?)`, rows)
}

func insertCurves(ctx context.Context, tx *sql.Tx, r *pipeline.Report) error {
	var rows [][]any
	for _, c := range r.Curves {
		for _, p := range c.Points {
			for i := range p.Totals {
				rows = append(rows, []any{r.ID, c.Subset, c.Region, p.Round, p.Runs, r.Labels[i], p.Totals[i], p.Mean[i]})
			}
		}
	}
	return insertMany(ctx, tx,
		`INSERT INTO mean_curves (invocation_id, subset, region, round, runs, token, total, mean) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`, rows)
}

// Invocations lists stored reports, oldest first.
func (s *SQLiteStore) Invocations(ctx context.Context) ([]Invocation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT i.id, i.created_at, i.absorption_code, i.labels, i.regions, i.summary,
		       (SELECT COUNT(*) FROM runs r WHERE r.invocation_id = i.id)
		FROM invocations i ORDER BY i.created_at, i.id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query invocations: %w", err)
	}
	defer rows.Close()

	var out []Invocation
	for rows.Next() {
		inv, err := scanInvocation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *inv)
	}
	return out, rows.Err()
}

// Invocation returns one stored report's header.
func (s *SQLiteStore) Invocation(ctx context.Context, id string) (*Invocation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.invocationUnlocked(ctx, id)
}

func (s *SQLiteStore) invocationUnlocked(ctx context.Context, id string) (*Invocation, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT i.id, i.created_at, i.absorption_code, i.labels, i.regions, i.summary,
		       (SELECT COUNT(*) FROM runs r WHERE r.invocation_id = i.id)
		FROM invocations i WHERE i.id = ?`, id)
	inv, err := scanInvocation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return inv, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanInvocation(sc scanner) (*Invocation, error) {
	var inv Invocation
	var created, labels, regs, summary string
	if err := sc.Scan(&inv.ID, &created, &inv.AbsorptionCode, &labels, &regs, &summary, &inv.Runs); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan invocation: %w", err)
	}
	t, err := time.Parse(time.RFC3339Nano, created)
	if err != nil {
		return nil, fmt.Errorf("invocation %s: bad created_at %q: %w", inv.ID, created, err)
	}
	inv.CreatedAt = t
	if err := json.Unmarshal([]byte(labels), &inv.Labels); err != nil {
		return nil, fmt.Errorf("invocation %s: bad labels: %w", inv.ID, err)
	}
	if err := json.Unmarshal([]byte(regs), &inv.Regions); err != nil {
		return nil, fmt.Errorf("invocation %s: bad regions: %w", inv.ID, err)
	}
	if err := json.Unmarshal([]byte(summary), &inv.Summary); err != nil {
		return nil, fmt.Errorf("invocation %s: bad summary: %w", inv.ID, err)
	}
	return &inv, nil
}

// Absorption returns the stored absorption results of an invocation, by run ID.
func (s *SQLiteStore) Absorption(ctx context.Context, id string) ([]absorption.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.invocationUnlocked(ctx, id); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT file, absorption_round FROM absorption WHERE invocation_id = ? ORDER BY file`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query absorption: %w", err)
	}
	defer rows.Close()

	out := []absorption.Result{}
	for rows.Next() {
		var (
			res   absorption.Result
			round sql.NullInt64
		)
		if err := rows.Scan(&res.RunID, &round); err != nil {
			return nil, fmt.Errorf("failed to scan absorption: %w", err)
		}
		if round.Valid {
			n := int(round.Int64)
			res.Round = &n
		}
		out = append(out, res)
	}
	return out, rows.Err()
}

// FinalStates returns the stored final states of an invocation, with counts
// in the invocation's label order.
func (s *SQLiteStore) FinalStates(ctx context.Context, id string) ([]metrics.FinalState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	inv, err := s.invocationUnlocked(ctx, id)
	if err != nil {
		return nil, err
	}
	col := labelIndex(inv.Labels)

	rows, err := s.db.QueryContext(ctx,
		`SELECT file, round, token, count FROM final_counts WHERE invocation_id = ? ORDER BY file`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query final counts: %w", err)
	}
	defer rows.Close()

	out := []metrics.FinalState{}
	for rows.Next() {
		var (
			file, token  string
			round, count int
		)
		if err := rows.Scan(&file, &round, &token, &count); err != nil {
			return nil, fmt.Errorf("failed to scan final counts: %w", err)
		}
		if len(out) == 0 || out[len(out)-1].RunID != file {
			out = append(out, metrics.FinalState{RunID: file, Round: round, Counts: make([]int, len(inv.Labels))})
		}
		if i, ok := col[token]; ok {
			out[len(out)-1].Counts[i] = count
		}
	}
	return out, rows.Err()
}

// Curve returns one stored mean curve. region is empty for the whole board.
func (s *SQLiteStore) Curve(ctx context.Context, id, subset, region string) (metrics.Curve, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	curve := metrics.Curve{Subset: subset, Region: region, Points: []metrics.CurvePoint{}}
	inv, err := s.invocationUnlocked(ctx, id)
	if err != nil {
		return curve, err
	}
	col := labelIndex(inv.Labels)

	rows, err := s.db.QueryContext(ctx, `
		SELECT round, runs, token, total, mean FROM mean_curves
		WHERE invocation_id = ? AND subset = ? AND region = ? ORDER BY round`, id, subset, region)
	if err != nil {
		return curve, fmt.Errorf("failed to query mean curves: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			round, runs, total int
			token              string
			mean               float64
		)
		if err := rows.Scan(&round, &runs, &token, &total, &mean); err != nil {
			return curve, fmt.Errorf("failed to scan mean curves: %w", err)
		}
		n := len(curve.Points)
		if n == 0 || curve.Points[n-1].Round != round {
			curve.Points = append(curve.Points, metrics.CurvePoint{
				Round: round, Runs: runs,
				Totals: make([]int, len(inv.Labels)), Mean: make([]float64, len(inv.Labels)),
			})
			n++
		}
		if i, ok := col[token]; ok {
			curve.Points[n-1].Totals[i] = total
			curve.Points[n-1].Mean[i] = mean
		}
	}
	return curve, rows.Err()
}

// Delete removes an invocation and all of its rows.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM invocations WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete invocation: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

func labelIndex(labels []string) map[string]int {
	m := make(map[string]int, len(labels))
	for i, l := range labels {
		m[l] = i
	}
	return m
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}
