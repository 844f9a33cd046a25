package primary

import "context"

// ProgressService defines the primary port for progress reporting.
type ProgressService interface {
	// Latest returns the most recent progress entry for a ticket, or nil
	// when none has been recorded.
	Latest(ctx context.Context, ticketID string) (*ProgressView, error)

	// History lists progress entries for a ticket, oldest first.
	History(ctx context.Context, ticketID string, limit int) ([]*ProgressView, error)

	// Follow streams live progress entries for a ticket. The returned stop
	// function must be called to release the subscription.
	Follow(ctx context.Context, ticketID string) (<-chan *ProgressView, func(), error)
}

// ProgressView represents a progress entry at the port boundary.
type ProgressView struct {
	ID         string
	TicketID   string
	Phase      string
	State      string
	Percentage int
	Message    string
	Timestamp  string
}
