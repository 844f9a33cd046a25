package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/example/conveyor/internal/ports/secondary"
)

// ProgressRepository implements secondary.ProgressRepository with SQLite.
// The progress log is append-only; rows are never updated or deleted.
type ProgressRepository struct {
	db *sql.DB
}

// NewProgressRepository creates a new SQLite progress repository.
func NewProgressRepository(db *sql.DB) *ProgressRepository {
	return &ProgressRepository{db: db}
}

// Append persists a progress entry.
func (r *ProgressRepository) Append(ctx context.Context, entry *secondary.ProgressRecord) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO workflow_progress (id, ticket_id, phase, state, percentage, message, timestamp)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.TicketID, entry.Phase, entry.State, entry.Percentage, entry.Message, entry.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to append progress entry: %w", err)
	}

	return nil
}

// Latest retrieves the most recent progress entry for a ticket. Returns
// nil, nil when the ticket has no entries yet.
// rowid breaks ties between entries written within the same second.
func (r *ProgressRepository) Latest(ctx context.Context, ticketID string) (*secondary.ProgressRecord, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, ticket_id, phase, state, percentage, message, timestamp
		 FROM workflow_progress WHERE ticket_id = ?
		 ORDER BY timestamp DESC, rowid DESC LIMIT 1`,
		ticketID,
	)

	record, err := scanProgress(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest progress: %w", err)
	}

	return record, nil
}

// ListByTicket retrieves progress entries for a ticket, newest first, so a
// limit always returns the most recent window.
func (r *ProgressRepository) ListByTicket(ctx context.Context, ticketID string, limit int) ([]*secondary.ProgressRecord, error) {
	query := `SELECT id, ticket_id, phase, state, percentage, message, timestamp
			  FROM workflow_progress WHERE ticket_id = ?
			  ORDER BY timestamp DESC, rowid DESC`
	args := []any{ticketID}

	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list progress entries: %w", err)
	}
	defer rows.Close()

	var records []*secondary.ProgressRecord
	for rows.Next() {
		record, err := scanProgress(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan progress entry: %w", err)
		}
		records = append(records, record)
	}

	return records, rows.Err()
}

func scanProgress(row rowScanner) (*secondary.ProgressRecord, error) {
	var (
		message   sql.NullString
		timestamp time.Time
	)

	record := &secondary.ProgressRecord{}
	err := row.Scan(&record.ID, &record.TicketID, &record.Phase, &record.State, &record.Percentage, &message, &timestamp)
	if err != nil {
		return nil, err
	}

	record.Message = message.String
	record.Timestamp = timestamp.Format(time.RFC3339)

	return record, nil
}

// Ensure ProgressRepository implements the interface
var _ secondary.ProgressRepository = (*ProgressRepository)(nil)
