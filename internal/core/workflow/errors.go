package workflow

import "errors"

// Sentinel errors for the workflow control surface. Services wrap these with
// ticket-specific detail; callers branch with errors.Is.
var (
	// ErrTicketNotFound means the tracker has no ticket with the given id.
	ErrTicketNotFound = errors.New("ticket not found")

	// ErrWorkflowNotFound means no workflow record exists for the ticket.
	ErrWorkflowNotFound = errors.New("workflow not found")

	// ErrNoPendingAnalysis means ApproveAndImplement was called before a
	// successful Analyze produced an unconsumed analysis.
	ErrNoPendingAnalysis = errors.New("no pending analysis")

	// ErrWorkflowBusy means a mutating operation is already in flight for
	// the ticket; per-ticket execution is serialized.
	ErrWorkflowBusy = errors.New("workflow operation already in progress")

	// ErrInvalidTransition means a phase change violated the pipeline order.
	ErrInvalidTransition = errors.New("invalid phase transition")
)
