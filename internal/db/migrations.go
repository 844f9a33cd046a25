package db

import (
	"database/sql"
	"fmt"
)

// Migration represents a database migration
type Migration struct {
	Version int
	Name    string
	Up      func(*sql.DB) error
}

// migrations is the list of all migrations in order
var migrations = []Migration{
	{
		Version: 1,
		Name:    "create_workflows_and_analysis_cache",
		Up:      migrationV1,
	},
	{
		Version: 2,
		Name:    "add_workflow_progress_log",
		Up:      migrationV2,
	},
	{
		Version: 3,
		Name:    "add_revision_feedback_columns",
		Up:      migrationV3,
	},
}

// RunMigrations executes all pending migrations
func RunMigrations() error {
	db, err := GetDB()
	if err != nil {
		return fmt.Errorf("failed to get database: %w", err)
	}

	// Create schema_version table if it doesn't exist
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create schema_version table: %w", err)
	}

	// Get current schema version
	var currentVersion int
	err = db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("failed to get current schema version: %w", err)
	}

	// Run pending migrations
	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		fmt.Printf("Running migration %d: %s\n", migration.Version, migration.Name)

		// Begin transaction
		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("failed to begin transaction for migration %d: %w", migration.Version, err)
		}

		// Run migration
		if err := migration.Up(db); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", migration.Version, err)
		}

		// Record migration
		_, err = tx.Exec("INSERT INTO schema_version (version) VALUES (?)", migration.Version)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}

		// Commit transaction
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
		}

		fmt.Printf("✓ Migration %d completed\n", migration.Version)
	}

	return nil
}

// migrationV1 creates the workflows and analysis_cache tables
func migrationV1(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE workflows (
			ticket_id TEXT PRIMARY KEY,
			title TEXT NOT NULL DEFAULT '',
			phase TEXT NOT NULL CHECK(phase IN (
				'not_started', 'fetching_ticket', 'analyzing_code', 'waiting_approval',
				'creating_branch', 'implementing', 'building', 'testing',
				'committing', 'pushing', 'creating_pull_request', 'updating_tracker',
				'completed', 'failed', 'cancelled', 'build_failed', 'tests_failed'
			)) DEFAULT 'not_started',
			state TEXT NOT NULL CHECK(state IN (
				'running', 'paused', 'waiting_input', 'completed', 'failed', 'cancelled'
			)) DEFAULT 'paused',
			analysis_json TEXT,
			implementation_json TEXT,
			pull_request_json TEXT,
			errors_json TEXT,
			started_at DATETIME,
			completed_at DATETIME,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create workflows table: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE analysis_cache (
			key TEXT PRIMARY KEY,
			ticket_id TEXT NOT NULL,
			content_hash TEXT NOT NULL,
			payload_json TEXT NOT NULL,
			cached_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			last_accessed_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			expires_at DATETIME
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create analysis_cache table: %w", err)
	}

	_, err = db.Exec(`
		CREATE INDEX idx_workflows_updated ON workflows(updated_at DESC);
		CREATE INDEX idx_workflows_phase ON workflows(phase);
		CREATE INDEX idx_analysis_cache_ticket ON analysis_cache(ticket_id);
		CREATE INDEX idx_analysis_cache_expires ON analysis_cache(expires_at);
	`)
	if err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	return nil
}

// migrationV2 adds the append-only workflow_progress log
func migrationV2(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE workflow_progress (
			id TEXT PRIMARY KEY,
			ticket_id TEXT NOT NULL,
			phase TEXT NOT NULL,
			state TEXT NOT NULL,
			percentage INTEGER NOT NULL DEFAULT 0,
			message TEXT,
			timestamp DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create workflow_progress table: %w", err)
	}

	_, err = db.Exec(`CREATE INDEX idx_progress_ticket ON workflow_progress(ticket_id, timestamp)`)
	if err != nil {
		return fmt.Errorf("failed to create progress index: %w", err)
	}

	return nil
}

// migrationV3 adds the pending-analysis and revision-feedback columns.
// Earlier versions approved analyses implicitly; the review loop needs both.
func migrationV3(db *sql.DB) error {
	_, err := db.Exec(`ALTER TABLE workflows ADD COLUMN pending_analysis_json TEXT`)
	if err != nil {
		return fmt.Errorf("failed to add pending_analysis_json column: %w", err)
	}

	_, err = db.Exec(`ALTER TABLE workflows ADD COLUMN feedback_json TEXT`)
	if err != nil {
		return fmt.Errorf("failed to add feedback_json column: %w", err)
	}

	return nil
}
