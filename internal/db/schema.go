package db

// SchemaSQL is the complete modern schema for fresh conveyor installs.
// This schema reflects the current state after all migrations.
//
// # Schema Drift Protection
//
// This is the SINGLE SOURCE OF TRUTH for the database schema. All tests use
// this schema via GetSchemaSQL(), which provides two layers of protection:
//
//  1. No hardcoded schemas: tests must use db.GetSchemaSQL() instead of
//     carrying their own CREATE TABLE statements.
//
//  2. Immediate failure on drift: if repository code references a column that
//     doesn't exist in this schema, tests fail immediately with "no such column".
//     This catches drift at development time, not production.
//
// IMPORTANT: Keep this in sync with migrations. When adding new columns or
// tables, add a migration in internal/db/migrations.go AND update SchemaSQL here.
const SchemaSQL = `
-- Workflows (one row per ticket, upserted as the pipeline advances)
CREATE TABLE IF NOT EXISTS workflows (
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
	pending_analysis_json TEXT,
	implementation_json TEXT,
	pull_request_json TEXT,
	errors_json TEXT,
	feedback_json TEXT,
	started_at DATETIME,
	completed_at DATETIME,
	updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_workflows_updated ON workflows(updated_at DESC);
CREATE INDEX IF NOT EXISTS idx_workflows_phase ON workflows(phase);

-- Analysis cache (key is ticket_id + '_' + content_hash)
CREATE TABLE IF NOT EXISTS analysis_cache (
	key TEXT PRIMARY KEY,
	ticket_id TEXT NOT NULL,
	content_hash TEXT NOT NULL,
	payload_json TEXT NOT NULL,
	cached_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	last_accessed_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	expires_at DATETIME
);

CREATE INDEX IF NOT EXISTS idx_analysis_cache_ticket ON analysis_cache(ticket_id);
CREATE INDEX IF NOT EXISTS idx_analysis_cache_expires ON analysis_cache(expires_at);

-- Progress log (append-only, one row per reported step)
CREATE TABLE IF NOT EXISTS workflow_progress (
	id TEXT PRIMARY KEY,
	ticket_id TEXT NOT NULL,
	phase TEXT NOT NULL,
	state TEXT NOT NULL,
	percentage INTEGER NOT NULL DEFAULT 0,
	message TEXT,
	timestamp DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_progress_ticket ON workflow_progress(ticket_id, timestamp);
`

// InitSchema creates the schema on fresh installs or migrates existing ones.
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

	if tableCount == 0 {
		// Completely fresh install - create modern schema directly
		// Also create schema_version at max version to prevent migrations from running
		_, err = db.Exec(SchemaSQL)
		if err != nil {
			return err
		}
		_, err = db.Exec(`
			CREATE TABLE IF NOT EXISTS schema_version (
				version INTEGER PRIMARY KEY,
				applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
			)
		`)
		if err != nil {
			return err
		}
		// Mark all migrations as applied for fresh installs
		for i := 1; i <= len(migrations); i++ {
			_, err = db.Exec("INSERT INTO schema_version (version) VALUES (?)", i)
			if err != nil {
				return err
			}
		}
		return nil
	}

	// schema_version table exists - run any pending migrations
	return RunMigrations()
}

// GetSchemaSQL returns the authoritative schema SQL for use by tests.
// Tests should use this instead of hardcoding their own schema to prevent drift.
func GetSchemaSQL() string {
	return SchemaSQL
}
