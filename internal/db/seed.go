package db

import (
	"database/sql"
	"fmt"
	"time"
)

// SeedFixtures populates the database with development fixtures.
// Uses realistic IDs and data that exercises every phase the CLI renders.
func SeedFixtures(database *sql.DB) error {
	now := time.Now().Format(time.RFC3339)
	expires := time.Now().Add(24 * time.Hour).Format(time.RFC3339)

	// Workflows in the phases the status/list commands care about
	workflows := []struct {
		ticketID, title, phase, state string
		analysisJSON                  string
		pendingJSON                   string
	}{
		{
			"DEV-101", "Add login rate limiting", "waiting_approval", "waiting_input",
			`{"ticket_id":"DEV-101","summary":"Throttle repeated login attempts","approach":"Add a sliding-window counter in the auth middleware","affected_files":["internal/auth/middleware.go"],"model":"gpt-4o","produced_at":"2025-06-01T10:00:00Z"}`,
			`{"ticket_id":"DEV-101","summary":"Throttle repeated login attempts","approach":"Add a sliding-window counter in the auth middleware","affected_files":["internal/auth/middleware.go"],"model":"gpt-4o","produced_at":"2025-06-01T10:00:00Z"}`,
		},
		{
			"DEV-102", "Fix pagination off-by-one", "completed", "completed",
			`{"ticket_id":"DEV-102","summary":"List endpoint drops the last row","approach":"Use half-open range for the page window","affected_files":["internal/api/list.go"],"model":"gpt-4o","produced_at":"2025-06-02T09:30:00Z"}`,
			"",
		},
		{
			"DEV-103", "Migrate settings to YAML", "not_started", "paused",
			"", "",
		},
	}
	for _, w := range workflows {
		var analysis, pending interface{}
		if w.analysisJSON != "" {
			analysis = w.analysisJSON
		}
		if w.pendingJSON != "" {
			pending = w.pendingJSON
		}
		if _, err := database.Exec(
			"INSERT INTO workflows (ticket_id, title, phase, state, analysis_json, pending_analysis_json, started_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
			w.ticketID, w.title, w.phase, w.state, analysis, pending, now, now,
		); err != nil {
			return fmt.Errorf("seed workflows: %w", err)
		}
	}

	// Cache entries matching the analyzed workflows
	cacheEntries := []struct{ ticketID, hash, payload string }{
		{"DEV-101", "9f2c1a7e", `{"ticket_id":"DEV-101","summary":"Throttle repeated login attempts","approach":"Add a sliding-window counter in the auth middleware","affected_files":["internal/auth/middleware.go"],"model":"gpt-4o","produced_at":"2025-06-01T10:00:00Z"}`},
		{"DEV-102", "4b8d03ce", `{"ticket_id":"DEV-102","summary":"List endpoint drops the last row","approach":"Use half-open range for the page window","affected_files":["internal/api/list.go"],"model":"gpt-4o","produced_at":"2025-06-02T09:30:00Z"}`},
	}
	for _, c := range cacheEntries {
		if _, err := database.Exec(
			"INSERT INTO analysis_cache (key, ticket_id, content_hash, payload_json, cached_at, last_accessed_at, expires_at) VALUES (?, ?, ?, ?, ?, ?, ?)",
			c.ticketID+"_"+c.hash, c.ticketID, c.hash, c.payload, now, now, expires,
		); err != nil {
			return fmt.Errorf("seed analysis_cache: %w", err)
		}
	}

	// Progress entries so `conveyor workflow status` has something to show
	progress := []struct {
		id, ticketID, phase, state string
		percentage                 int
		message                    string
	}{
		{"PROG-001", "DEV-101", "fetching_ticket", "running", 5, "Fetching ticket DEV-101"},
		{"PROG-002", "DEV-101", "analyzing_code", "running", 15, "Analyzing codebase"},
		{"PROG-003", "DEV-101", "waiting_approval", "waiting_input", 100, "Analysis ready for review"},
		{"PROG-004", "DEV-102", "completed", "completed", 100, "Workflow completed"},
	}
	for _, p := range progress {
		if _, err := database.Exec(
			"INSERT INTO workflow_progress (id, ticket_id, phase, state, percentage, message, timestamp) VALUES (?, ?, ?, ?, ?, ?, ?)",
			p.id, p.ticketID, p.phase, p.state, p.percentage, p.message, now,
		); err != nil {
			return fmt.Errorf("seed workflow_progress: %w", err)
		}
	}

	return nil
}
