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
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/example/conveyor/internal/db"
	"github.com/example/conveyor/internal/ports/secondary"
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

// seedWorkflow inserts a test workflow and returns its ticket ID.
func seedWorkflow(t *testing.T, db *sql.DB, ticketID, phase, state string) string {
	t.Helper()
	if ticketID == "" {
		ticketID = "PROJ-1"
	}
	if phase == "" {
		phase = "not_started"
	}
	if state == "" {
		state = "paused"
	}
	_, err := db.Exec(
		"INSERT INTO workflows (ticket_id, title, phase, state) VALUES (?, ?, ?, ?)",
		ticketID, "Test ticket", phase, state,
	)
	if err != nil {
		t.Fatalf("failed to seed workflow: %v", err)
	}
	return ticketID
}

// cacheRecord builds a cache record expiring well in the future.
func cacheRecord(ticketID, hash string) *secondary.AnalysisCacheRecord {
	now := time.Now().UTC()
	return &secondary.AnalysisCacheRecord{
		Key:            ticketID + "_" + hash,
		TicketID:       ticketID,
		ContentHash:    hash,
		PayloadJSON:    `{"ticket_id":"` + ticketID + `","summary":"test"}`,
		CachedAt:       now.Format(time.RFC3339),
		LastAccessedAt: now.Format(time.RFC3339),
		ExpiresAt:      now.Add(24 * time.Hour).Format(time.RFC3339),
	}
}
