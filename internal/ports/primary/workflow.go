// Package primary defines the primary ports (driving adapters) for the application.
// These are the interfaces through which the outside world drives the application.
package primary

import "context"

// WorkflowService defines the primary port for the delivery pipeline.
// This is the public control surface: every operation loads or creates the
// ticket's workflow record, runs the requested phase steps, publishes
// progress, and persists the record before returning.
type WorkflowService interface {
	// CreateWorkflow returns the existing workflow for the ticket or creates
	// a new one after fetching the ticket from the tracker. Idempotent.
	CreateWorkflow(ctx context.Context, ticketID string) (*Workflow, error)

	// StartWorkflow analyzes the ticket and, when approval is not required,
	// chains straight into implementation.
	StartWorkflow(ctx context.Context, ticketID string) (*Workflow, error)

	// Analyze fetches the ticket, consults the analysis cache, and on a miss
	// runs the AI analysis inside an acquired workspace.
	Analyze(ctx context.Context, ticketID string) (*Workflow, error)

	// ApproveAndImplement consumes the pending analysis and drives the
	// implementation pipeline: branch, code generation, apply, build, test,
	// commit, push, pull request, tracker update.
	ApproveAndImplement(ctx context.Context, ticketID string) (*Workflow, error)

	// RequestRevision records reviewer feedback and re-analyzes. The
	// feedback is threaded into the next AI call and the content hash.
	RequestRevision(ctx context.Context, ticketID, feedback string) (*Workflow, error)

	// CancelWorkflow stops the workflow: cancels any in-flight run, discards
	// the pending analysis and uncommitted workspace changes, notifies the
	// tracker best-effort.
	CancelWorkflow(ctx context.Context, ticketID, reason string) error

	// GetWorkflowStatus reports current status, combining in-memory state
	// with the durable store and progress log. Read-only.
	GetWorkflowStatus(ctx context.Context, ticketID string) (*WorkflowStatus, error)

	// GetWorkflowHistory lists known workflows, most recently updated first.
	// Read-only.
	GetWorkflowHistory(ctx context.Context, limit int) ([]*Workflow, error)
}

// Workflow represents a workflow at the port boundary.
type Workflow struct {
	TicketID       string
	Title          string
	Phase          string
	State          string
	Analysis       *AnalysisSummary
	PendingReview  bool // a pending analysis awaits ApproveAndImplement
	Implementation *ImplementationSummary
	PullRequest    *PullRequestRef
	Errors         []string
	Feedback       []string
	StartedAt      string
	CompletedAt    string
	UpdatedAt      string
}

// AnalysisSummary is the view of an analysis result.
type AnalysisSummary struct {
	Summary       string
	Approach      string
	AffectedFiles []string
	Model         string
	ProducedAt    string
	FromCache     bool
}

// ImplementationSummary is the view of an implementation pass.
type ImplementationSummary struct {
	Branch       string
	FilesCreated int
	FilesUpdated int
	FilesDeleted int
	BuildPassed  *bool // nil when the build step was skipped
	TestsPassed  *bool // nil when the test step was skipped
	FailedTests  int
	CommitHash   string
}

// PullRequestRef is the view of an opened pull request.
type PullRequestRef struct {
	Number int
	URL    string
	Title  string
	Branch string
}

// WorkflowStatus combines the workflow record with the latest progress entry.
// Workflow may be nil when only the progress log survives (e.g. the record
// predates a schema wipe); Progress may be nil before the first publish.
type WorkflowStatus struct {
	TicketID string
	Workflow *Workflow
	Progress *ProgressView
}
