package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"

	"github.com/example/ipacheck/internal/ports/secondary"
)

// RunRepository implements secondary.RunRepository using SQLite.
type RunRepository struct {
	mu   sync.Mutex
	db   *sql.DB
	open func() (*sql.DB, error)
}

// NewRunRepository creates a new RunRepository.
func NewRunRepository(db *sql.DB) *RunRepository {
	return &RunRepository{db: db}
}

// NewLazyRunRepository creates a RunRepository that calls open on first use.
// A failed open is retried on the next call.
func NewLazyRunRepository(open func() (*sql.DB, error)) *RunRepository {
	return &RunRepository{open: open}
}

// conn returns the database, opening it if needed.
func (r *RunRepository) conn() (*sql.DB, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.db != nil {
		return r.db, nil
	}
	if r.open == nil {
		return nil, fmt.Errorf("run history database is not configured")
	}
	db, err := r.open()
	if err != nil {
		return nil, fmt.Errorf("failed to open run history: %w", err)
	}
	r.db = db
	return db, nil
}

// Create persists a run and its check results in one transaction.
func (r *RunRepository) Create(ctx context.Context, run *secondary.RunRecord) error {
	db, err := r.conn()
	if err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO audit_runs (id, domain, node_count, ok, report, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.ID,
		run.Domain,
		run.NodeCount,
		run.OK,
		run.ReportJSON,
		run.StartedAt,
		run.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert run %s: %w", run.ID, err)
	}

	for _, c := range run.Checks {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO check_results (run_id, check_name, display_name, item_count_ok, missing_ok, duplicates_ok, errors)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			run.ID,
			c.CheckName,
			c.DisplayName,
			c.ItemCountOK,
			nullBool(c.MissingOK),
			nullBool(c.DuplicatesOK),
			c.Errors,
		)
		if err != nil {
			return fmt.Errorf("failed to insert result of %s: %w", c.CheckName, err)
		}
	}

	return tx.Commit()
}

// GetByID retrieves a run by its ID, including its check results.
func (r *RunRepository) GetByID(ctx context.Context, id string) (*secondary.RunRecord, error) {
	db, err := r.conn()
	if err != nil {
		return nil, err
	}

	query := `SELECT id, domain, node_count, ok, report, started_at, finished_at
		FROM audit_runs WHERE id = ?`

	var run secondary.RunRecord
	err = db.QueryRowContext(ctx, query, id).Scan(
		&run.ID,
		&run.Domain,
		&run.NodeCount,
		&run.OK,
		&run.ReportJSON,
		&run.StartedAt,
		&run.FinishedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run not found: %s", id)
	}
	if err != nil {
		return nil, err
	}

	checks, err := checksFor(ctx, db, []string{run.ID})
	if err != nil {
		return nil, err
	}
	run.Checks = checks[run.ID]

	return &run, nil
}

// List retrieves runs matching the given filters, newest first.
// The stored report body is not loaded.
func (r *RunRepository) List(ctx context.Context, filters secondary.RunFilters) ([]*secondary.RunRecord, error) {
	query := `SELECT id, domain, node_count, ok, started_at, finished_at
		FROM audit_runs WHERE 1=1`
	args := []interface{}{}

	if filters.Domain != "" {
		query += " AND domain = ?"
		args = append(args, filters.Domain)
	}
	if filters.FailedOnly {
		query += " AND ok = 0"
	}

	query += " ORDER BY started_at DESC, id DESC"

	if filters.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filters.Limit)
	}

	db, err := r.conn()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	runs, err := scanRuns(rows)
	rows.Close()
	if err != nil {
		return nil, err
	}

	ids := make([]string, len(runs))
	for i, run := range runs {
		ids[i] = run.ID
	}
	checks, err := checksFor(ctx, db, ids)
	if err != nil {
		return nil, err
	}
	for _, run := range runs {
		run.Checks = checks[run.ID]
	}

	return runs, nil
}

// GetNextID returns the next available run ID.
func (r *RunRepository) GetNextID(ctx context.Context) (string, error) {
	db, err := r.conn()
	if err != nil {
		return "", err
	}

	var maxID int
	query := `SELECT COALESCE(MAX(CAST(SUBSTR(id, 5) AS INTEGER)), 0) FROM audit_runs WHERE id LIKE 'RUN-%'`
	if err := db.QueryRowContext(ctx, query).Scan(&maxID); err != nil {
		return "", err
	}
	return fmt.Sprintf("RUN-%03d", maxID+1), nil
}

// checksFor loads the check results of the given runs, keyed by run ID.
func checksFor(ctx context.Context, db *sql.DB, runIDs []string) (map[string][]*secondary.CheckResultRecord, error) {
	out := make(map[string][]*secondary.CheckResultRecord, len(runIDs))
	if len(runIDs) == 0 {
		return out, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(runIDs)), ",")
	query := `SELECT run_id, check_name, display_name, item_count_ok, missing_ok, duplicates_ok, errors
		FROM check_results WHERE run_id IN (` + placeholders + `) ORDER BY rowid`
	args := make([]interface{}, len(runIDs))
	for i, id := range runIDs {
		args[i] = id
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var c secondary.CheckResultRecord
		var missingOK, duplicatesOK sql.NullBool

		if err := rows.Scan(
			&c.RunID,
			&c.CheckName,
			&c.DisplayName,
			&c.ItemCountOK,
			&missingOK,
			&duplicatesOK,
			&c.Errors,
		); err != nil {
			return nil, err
		}

		c.MissingOK = boolPtr(missingOK)
		c.DuplicatesOK = boolPtr(duplicatesOK)

		out[c.RunID] = append(out[c.RunID], &c)
	}

	return out, rows.Err()
}

// scanRuns scans rows into run records.
func scanRuns(rows *sql.Rows) ([]*secondary.RunRecord, error) {
	var runs []*secondary.RunRecord

	for rows.Next() {
		var run secondary.RunRecord
		if err := rows.Scan(
			&run.ID,
			&run.Domain,
			&run.NodeCount,
			&run.OK,
			&run.StartedAt,
			&run.FinishedAt,
		); err != nil {
			return nil, err
		}
		runs = append(runs, &run)
	}

	return runs, rows.Err()
}

func nullBool(b *bool) interface{} {
	if b == nil {
		return nil
	}
	return *b
}

func boolPtr(n sql.NullBool) *bool {
	if !n.Valid {
		return nil
	}
	b := n.Bool
	return &b
}

// Ensure RunRepository implements the interface.
var _ secondary.RunRepository = (*RunRepository)(nil)
