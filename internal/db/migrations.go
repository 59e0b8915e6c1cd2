package db

import (
	"database/sql"
	"fmt"
	"os"
)

// Migration represents a database migration
type Migration struct {
	Version int
	Name    string
	Up      func(*sql.Tx) error
}

// migrations is the list of all migrations in order
var migrations = []Migration{
	{
		Version: 1,
		Name:    "create_audit_runs_and_check_results",
		Up:      migrationV1,
	},
	{
		Version: 2,
		Name:    "add_errors_and_display_name_to_check_results",
		Up:      migrationV2,
	},
}

func createVersionTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create schema_version table: %w", err)
	}
	return nil
}

// RunMigrations executes all pending migrations
func RunMigrations() error {
	db, err := GetDB()
	if err != nil {
		return fmt.Errorf("failed to get database: %w", err)
	}
	return runMigrations(db)
}

func runMigrations(db *sql.DB) error {
	if err := createVersionTable(db); err != nil {
		return err
	}

	// Get current schema version
	var currentVersion int
	err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("failed to get current schema version: %w", err)
	}

	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		fmt.Fprintf(os.Stderr, "Running migration %d: %s\n", migration.Version, migration.Name)

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("failed to begin transaction for migration %d: %w", migration.Version, err)
		}

		if err := migration.Up(tx); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", migration.Version, err)
		}

		_, err = tx.Exec("INSERT INTO schema_version (version) VALUES (?)", migration.Version)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
		}
	}

	return nil
}

// migrationV1 creates the first run history tables
func migrationV1(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS audit_runs (
			id TEXT PRIMARY KEY,
			domain TEXT NOT NULL DEFAULT '',
			node_count INTEGER NOT NULL DEFAULT 0,
			ok INTEGER NOT NULL DEFAULT 0,
			report TEXT NOT NULL,
			started_at TEXT NOT NULL,
			finished_at TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_audit_runs_domain ON audit_runs(domain);
		CREATE INDEX IF NOT EXISTS idx_audit_runs_ok ON audit_runs(ok);

		CREATE TABLE IF NOT EXISTS check_results (
			run_id TEXT NOT NULL,
			check_name TEXT NOT NULL,
			item_count_ok INTEGER NOT NULL DEFAULT 0,
			missing_ok INTEGER,
			duplicates_ok INTEGER,
			PRIMARY KEY (run_id, check_name),
			FOREIGN KEY (run_id) REFERENCES audit_runs(id) ON DELETE CASCADE
		);
	`)
	if err != nil {
		return fmt.Errorf("failed to create run tables: %w", err)
	}
	return nil
}

// migrationV2 records display names and evaluator errors per check
func migrationV2(tx *sql.Tx) error {
	stmts := []string{
		`ALTER TABLE check_results ADD COLUMN display_name TEXT NOT NULL DEFAULT ''`,
		`ALTER TABLE check_results ADD COLUMN errors TEXT NOT NULL DEFAULT ''`,
		`CREATE INDEX IF NOT EXISTS idx_check_results_check ON check_results(check_name)`,
	}
	for _, stmt := range stmts {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("failed to alter check_results: %w", err)
		}
	}
	return nil
}
