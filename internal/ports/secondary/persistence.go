// Package secondary defines the secondary ports (driven adapters) for the application.
// These are the interfaces through which the application drives external systems.
package secondary

import "context"

// WorkflowRepository defines the secondary port for workflow persistence.
type WorkflowRepository interface {
	// Create persists a new workflow record.
	Create(ctx context.Context, record *WorkflowRecord) error

	// GetByTicketID retrieves a workflow by its ticket id.
	GetByTicketID(ctx context.Context, ticketID string) (*WorkflowRecord, error)

	// Update updates an existing workflow record.
	Update(ctx context.Context, record *WorkflowRecord) error

	// List retrieves workflows ordered by most recent update.
	// A limit of zero or less means no limit.
	List(ctx context.Context, limit int) ([]*WorkflowRecord, error)
}

// WorkflowRecord represents a workflow as stored in persistence.
// One record per ticket id. Records are never deleted; the row is the audit
// trail. Structured payloads are serialized JSON.
type WorkflowRecord struct {
	TicketID            string
	Title               string
	Phase               string
	State               string
	AnalysisJSON        string // Empty string means null
	PendingAnalysisJSON string // Empty string means null
	ImplementationJSON  string // Empty string means null
	PullRequestJSON     string // Empty string means null
	ErrorsJSON          string // JSON array of messages, empty string means none
	FeedbackJSON        string // JSON array of revision feedback, empty string means none
	StartedAt           string
	CompletedAt         string // Empty string means null
	UpdatedAt           string
}

// AnalysisCacheRepository defines the secondary port for cached analyses.
type AnalysisCacheRepository interface {
	// Put inserts or replaces a cache entry.
	Put(ctx context.Context, record *AnalysisCacheRecord) error

	// Get retrieves a cache entry by key.
	Get(ctx context.Context, key string) (*AnalysisCacheRecord, error)

	// Touch bumps the last-accessed timestamp of an entry.
	Touch(ctx context.Context, key string, accessedAt string) error

	// Delete removes a single entry.
	Delete(ctx context.Context, key string) error

	// List retrieves entries ordered by most recent caching.
	// A limit of zero or less means no limit.
	List(ctx context.Context, limit int) ([]*AnalysisCacheRecord, error)

	// DeleteExpired removes entries whose expiry has passed, returning the
	// number removed.
	DeleteExpired(ctx context.Context, now string) (int, error)

	// Clear removes all entries, returning the number removed.
	Clear(ctx context.Context) (int, error)
}

// AnalysisCacheRecord represents a cached analysis as stored in persistence.
// Key is ticketID + "_" + contentHash.
type AnalysisCacheRecord struct {
	Key            string
	TicketID       string
	ContentHash    string
	PayloadJSON    string
	CachedAt       string
	LastAccessedAt string
	ExpiresAt      string // Empty string means no expiry
}

// ProgressRepository defines the secondary port for the append-only
// progress log.
type ProgressRepository interface {
	// Append adds an entry to the log.
	Append(ctx context.Context, record *ProgressRecord) error

	// Latest retrieves the most recent entry for a ticket.
	Latest(ctx context.Context, ticketID string) (*ProgressRecord, error)

	// ListByTicket retrieves entries for a ticket, newest first.
	// A limit of zero or less means no limit.
	ListByTicket(ctx context.Context, ticketID string, limit int) ([]*ProgressRecord, error)
}

// ProgressRecord represents one progress entry as stored in persistence.
type ProgressRecord struct {
	ID         string
	TicketID   string
	Phase      string
	State      string
	Percentage int
	Message    string
	Timestamp  string
}
