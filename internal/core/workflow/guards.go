package workflow

import "fmt"

// GuardResult represents the outcome of a guard evaluation.
type GuardResult struct {
	Allowed bool
	Reason  string // Human-readable reason (populated when not allowed)
}

// Error returns the guard result as an error if not allowed, nil otherwise.
func (r GuardResult) Error() error {
	if r.Allowed {
		return nil
	}
	return fmt.Errorf("%s", r.Reason)
}

// ApprovalContext provides context for approve-and-implement guards.
type ApprovalContext struct {
	TicketID           string
	HasPendingAnalysis bool
}

// CanApproveAndImplement evaluates whether implementation may begin.
// Rule: a pending (unconsumed) analysis must exist for the ticket.
func CanApproveAndImplement(ctx ApprovalContext) GuardResult {
	if !ctx.HasPendingAnalysis {
		return GuardResult{
			Allowed: false,
			Reason:  fmt.Sprintf("no pending analysis for %s - run 'conveyor workflow analyze %s' first", ctx.TicketID, ctx.TicketID),
		}
	}
	return GuardResult{Allowed: true}
}

// CancelContext provides context for cancellation guards.
type CancelContext struct {
	TicketID string
	Phase    Phase
}

// CanCancel evaluates whether a workflow can be cancelled.
// Rule: completed and already-cancelled workflows stay as they are.
func CanCancel(ctx CancelContext) GuardResult {
	switch ctx.Phase {
	case PhaseCompleted:
		return GuardResult{
			Allowed: false,
			Reason:  fmt.Sprintf("workflow %s already completed", ctx.TicketID),
		}
	case PhaseCancelled:
		return GuardResult{
			Allowed: false,
			Reason:  fmt.Sprintf("workflow %s already cancelled", ctx.TicketID),
		}
	}
	return GuardResult{Allowed: true}
}

// RevisionContext provides context for revision guards.
type RevisionContext struct {
	TicketID string
	Feedback string
}

// CanRequestRevision evaluates whether a revision request is acceptable.
// Rule: feedback must be non-empty; it drives the next analysis.
func CanRequestRevision(ctx RevisionContext) GuardResult {
	if ctx.Feedback == "" {
		return GuardResult{
			Allowed: false,
			Reason:  fmt.Sprintf("revision for %s requires feedback text", ctx.TicketID),
		}
	}
	return GuardResult{Allowed: true}
}
