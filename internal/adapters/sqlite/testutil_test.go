// Package sqlite_test contains integration tests for SQLite repositories.
//
// # Schema Protection
//
// This file is the SINGLE POINT where the database schema is loaded for tests.
// All test setup functions use db.GetSchemaSQL() to ensure tests run against
// the authoritative schema, preventing drift between test and production.
//
// DO NOT hardcode CREATE TABLE statements in test files. Use setupTestDB()
// and the seed* helpers instead.
package sqlite_test

import (
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/example/ipacheck/internal/db"
)

// setupTestDB creates an in-memory database with the authoritative schema.
// This is the single shared test database setup function for all repository tests.
// Uses db.GetSchemaSQL() to prevent test schemas from drifting.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	testDB, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	// Every connection to :memory: is a separate database.
	testDB.SetMaxOpenConns(1)

	if _, err := testDB.Exec("PRAGMA foreign_keys = ON"); err != nil {
		t.Fatalf("failed to enable foreign keys: %v", err)
	}

	// Use the authoritative schema from schema.go
	_, err = testDB.Exec(db.GetSchemaSQL())
	if err != nil {
		t.Fatalf("failed to create schema: %v", err)
	}

	t.Cleanup(func() {
		testDB.Close()
	})

	return testDB
}

// seedRun inserts a bare audit run and returns its ID.
func seedRun(t *testing.T, db *sql.DB, id, domain string, ok bool, startedAt string) string {
	t.Helper()
	if id == "" {
		id = "RUN-001"
	}
	if startedAt == "" {
		startedAt = "2026-01-19T10:00:00Z"
	}
	_, err := db.Exec(`INSERT INTO audit_runs (id, domain, node_count, ok, report, started_at, finished_at)
		VALUES (?, ?, 2, ?, '{}', ?, ?)`, id, domain, ok, startedAt, startedAt)
	if err != nil {
		t.Fatalf("failed to seed run: %v", err)
	}
	return id
}
