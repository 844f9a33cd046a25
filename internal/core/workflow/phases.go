// Package workflow contains the pure business logic for the delivery pipeline.
// This is part of the Functional Core - no I/O, only pure functions.
package workflow

// Phase represents a named step in the ticket-to-PR pipeline.
type Phase string

const (
	PhaseNotStarted          Phase = "not_started"
	PhaseFetchingTicket      Phase = "fetching_ticket"
	PhaseAnalyzingCode       Phase = "analyzing_code"
	PhaseWaitingApproval     Phase = "waiting_approval"
	PhaseCreatingBranch      Phase = "creating_branch"
	PhaseImplementing        Phase = "implementing"
	PhaseBuilding            Phase = "building"
	PhaseTesting             Phase = "testing"
	PhaseCommitting          Phase = "committing"
	PhasePushing             Phase = "pushing"
	PhaseCreatingPullRequest Phase = "creating_pull_request"
	PhaseUpdatingTracker     Phase = "updating_tracker"
	PhaseCompleted           Phase = "completed"
	PhaseFailed              Phase = "failed"
	PhaseCancelled           Phase = "cancelled"
	PhaseBuildFailed         Phase = "build_failed"
	PhaseTestsFailed         Phase = "tests_failed"
)

// RunState represents the coarse execution state of a workflow.
type RunState string

const (
	StateRunning      RunState = "running"
	StatePaused       RunState = "paused"
	StateWaitingInput RunState = "waiting_input"
	StateCompleted    RunState = "completed"
	StateFailed       RunState = "failed"
	StateCancelled    RunState = "cancelled"
)

// IsTerminal reports whether a phase ends the pipeline for the current pass.
// A new analysis pass may still begin from a terminal phase (the record is an
// audit trail, never deleted), but no automatic forward progression happens.
func (p Phase) IsTerminal() bool {
	switch p {
	case PhaseCompleted, PhaseFailed, PhaseCancelled, PhaseBuildFailed, PhaseTestsFailed:
		return true
	}
	return false
}

// StateForPhase returns the run state implied by a phase.
func StateForPhase(p Phase) RunState {
	switch p {
	case PhaseNotStarted:
		return StatePaused
	case PhaseWaitingApproval:
		return StateWaitingInput
	case PhaseCompleted:
		return StateCompleted
	case PhaseFailed, PhaseBuildFailed, PhaseTestsFailed:
		return StateFailed
	case PhaseCancelled:
		return StateCancelled
	default:
		return StateRunning
	}
}

// InitialPhase returns the phase for a freshly created workflow.
func InitialPhase() Phase {
	return PhaseNotStarted
}
