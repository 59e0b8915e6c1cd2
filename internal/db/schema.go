package db

// SchemaSQL is the complete schema for fresh ipacheck installs.
// This schema reflects the current state after all migrations.
//
// This is the single source of truth for the database schema. Repository
// tests load it through GetSchemaSQL() instead of declaring their own tables,
// so a column referenced by repository code but missing here fails the tests
// with "no such column".
//
// When adding new columns or tables:
//  1. Add a migration in migrations.go
//  2. Update SchemaSQL here
//  3. Bump latestVersion
const SchemaSQL = `
-- One row per stored audit run
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

-- Per-check outcome of a run. NULL means the analysis does not apply.
CREATE TABLE IF NOT EXISTS check_results (
	run_id TEXT NOT NULL,
	check_name TEXT NOT NULL,
	display_name TEXT NOT NULL DEFAULT '',
	item_count_ok INTEGER NOT NULL DEFAULT 0,
	missing_ok INTEGER,
	duplicates_ok INTEGER,
	errors TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (run_id, check_name),
	FOREIGN KEY (run_id) REFERENCES audit_runs(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_check_results_check ON check_results(check_name);
`

// latestVersion is the schema version SchemaSQL corresponds to.
const latestVersion = 2

// InitSchema creates the database schema
func InitSchema() error {
	db, err := GetDB()
	if err != nil {
		return err
	}

	// Check if schema_version table exists to determine if this is a fresh install
	var tableCount int
	err = db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'").Scan(&tableCount)
	if err != nil {
		return err
	}

	if tableCount > 0 {
		// schema_version table exists - run any pending migrations
		return RunMigrations()
	}

	// Completely fresh install - create modern schema directly
	if _, err := db.Exec(SchemaSQL); err != nil {
		return err
	}
	if err := createVersionTable(db); err != nil {
		return err
	}
	// Mark all migrations as applied for fresh installs
	for i := 1; i <= latestVersion; i++ {
		if _, err := db.Exec("INSERT INTO schema_version (version) VALUES (?)", i); err != nil {
			return err
		}
	}
	return nil
}

// GetSchemaSQL returns the authoritative schema SQL for use by tests.
// Tests should use this instead of hardcoding their own schema to prevent drift.
func GetSchemaSQL() string {
	return SchemaSQL
}
