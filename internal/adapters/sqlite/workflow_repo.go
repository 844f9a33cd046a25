// Package sqlite contains SQLite implementations of repository interfaces.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/example/conveyor/internal/core/workflow"
	"github.com/example/conveyor/internal/ports/secondary"
)

// WorkflowRepository implements secondary.WorkflowRepository with SQLite.
type WorkflowRepository struct {
	db *sql.DB
}

// NewWorkflowRepository creates a new SQLite workflow repository.
func NewWorkflowRepository(db *sql.DB) *WorkflowRepository {
	return &WorkflowRepository{db: db}
}

// Create persists a new workflow.
func (r *WorkflowRepository) Create(ctx context.Context, w *secondary.WorkflowRecord) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO workflows (ticket_id, title, phase, state, analysis_json, pending_analysis_json, implementation_json, pull_request_json, errors_json, feedback_json, started_at, completed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		w.TicketID, w.Title, w.Phase, w.State,
		nullable(w.AnalysisJSON), nullable(w.PendingAnalysisJSON), nullable(w.ImplementationJSON), nullable(w.PullRequestJSON),
		nullable(w.ErrorsJSON), nullable(w.FeedbackJSON),
		nullable(w.StartedAt), nullable(w.CompletedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to create workflow: %w", err)
	}

	return nil
}

// GetByTicketID retrieves a workflow by its ticket ID.
func (r *WorkflowRepository) GetByTicketID(ctx context.Context, ticketID string) (*secondary.WorkflowRecord, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT ticket_id, title, phase, state, analysis_json, pending_analysis_json, implementation_json, pull_request_json, errors_json, feedback_json, started_at, completed_at, updated_at
		 FROM workflows WHERE ticket_id = ?`,
		ticketID,
	)

	record, err := scanWorkflow(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("workflow %s: %w", ticketID, workflow.ErrWorkflowNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get workflow: %w", err)
	}

	return record, nil
}

// Update replaces the stored workflow row. The full record is written so the
// durable store always reflects the last in-memory state.
func (r *WorkflowRepository) Update(ctx context.Context, w *secondary.WorkflowRecord) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE workflows SET title = ?, phase = ?, state = ?, analysis_json = ?, pending_analysis_json = ?, implementation_json = ?, pull_request_json = ?, errors_json = ?, feedback_json = ?, started_at = ?, completed_at = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE ticket_id = ?`,
		w.Title, w.Phase, w.State,
		nullable(w.AnalysisJSON), nullable(w.PendingAnalysisJSON), nullable(w.ImplementationJSON), nullable(w.PullRequestJSON),
		nullable(w.ErrorsJSON), nullable(w.FeedbackJSON),
		nullable(w.StartedAt), nullable(w.CompletedAt),
		w.TicketID,
	)
	if err != nil {
		return fmt.Errorf("failed to update workflow: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return fmt.Errorf("workflow %s: %w", w.TicketID, workflow.ErrWorkflowNotFound)
	}

	return nil
}

// List retrieves workflows ordered by most recently updated.
func (r *WorkflowRepository) List(ctx context.Context, limit int) ([]*secondary.WorkflowRecord, error) {
	query := `SELECT ticket_id, title, phase, state, analysis_json, pending_analysis_json, implementation_json, pull_request_json, errors_json, feedback_json, started_at, completed_at, updated_at
			  FROM workflows ORDER BY updated_at DESC`
	args := []any{}

	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list workflows: %w", err)
	}
	defer rows.Close()

	var records []*secondary.WorkflowRecord
	for rows.Next() {
		record, err := scanWorkflow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan workflow: %w", err)
		}
		records = append(records, record)
	}

	return records, rows.Err()
}

// rowScanner covers both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanWorkflow(row rowScanner) (*secondary.WorkflowRecord, error) {
	var (
		analysis    sql.NullString
		pending     sql.NullString
		impl        sql.NullString
		pr          sql.NullString
		errs        sql.NullString
		feedback    sql.NullString
		startedAt   sql.NullTime
		completedAt sql.NullTime
		updatedAt   time.Time
	)

	record := &secondary.WorkflowRecord{}
	err := row.Scan(&record.TicketID, &record.Title, &record.Phase, &record.State,
		&analysis, &pending, &impl, &pr, &errs, &feedback,
		&startedAt, &completedAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	record.AnalysisJSON = analysis.String
	record.PendingAnalysisJSON = pending.String
	record.ImplementationJSON = impl.String
	record.PullRequestJSON = pr.String
	record.ErrorsJSON = errs.String
	record.FeedbackJSON = feedback.String
	if startedAt.Valid {
		record.StartedAt = startedAt.Time.Format(time.RFC3339)
	}
	if completedAt.Valid {
		record.CompletedAt = completedAt.Time.Format(time.RFC3339)
	}
	record.UpdatedAt = updatedAt.Format(time.RFC3339)

	return record, nil
}

// nullable maps empty strings to SQL NULL.
func nullable(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// Ensure WorkflowRepository implements the interface
var _ secondary.WorkflowRepository = (*WorkflowRepository)(nil)
