package workflow

import "time"

// phaseTransitions encodes the legal forward edges of the pipeline.
// PhaseFailed and PhaseCancelled are reachable from anywhere and are handled
// in CanTransition directly rather than listed per phase. PhaseFetchingTicket
// is also reachable from any resting phase: every analysis pass (first run,
// re-analysis, revision) starts there.
var phaseTransitions = map[Phase]map[Phase]bool{
	PhaseNotStarted: {
		PhaseFetchingTicket: true,
	},
	PhaseFetchingTicket: {
		PhaseAnalyzingCode: true,
	},
	PhaseAnalyzingCode: {
		PhaseWaitingApproval: true,
	},
	PhaseWaitingApproval: {
		PhaseCreatingBranch: true,
	},
	PhaseCreatingBranch: {
		PhaseImplementing: true,
	},
	PhaseImplementing: {
		PhaseBuilding:   true,
		PhaseTesting:    true, // build step disabled
		PhaseCommitting: true, // build and test steps disabled
	},
	PhaseBuilding: {
		PhaseTesting:     true,
		PhaseCommitting:  true, // test step disabled
		PhaseBuildFailed: true,
	},
	PhaseTesting: {
		PhaseCommitting:  true,
		PhaseTestsFailed: true,
	},
	PhaseCommitting: {
		PhasePushing: true,
	},
	PhasePushing: {
		PhaseCreatingPullRequest: true,
		PhaseUpdatingTracker:     true, // PR step disabled
		PhaseCompleted:           true, // PR and tracker steps disabled
	},
	PhaseCreatingPullRequest: {
		PhaseUpdatingTracker: true,
		PhaseCompleted:       true, // tracker step disabled
	},
	PhaseUpdatingTracker: {
		PhaseCompleted: true,
	},
}

// CanTransition reports whether moving from one phase to another is legal.
// Staying in the same phase is always allowed (progress updates within a
// phase re-assert it).
func CanTransition(from, to Phase) bool {
	if from == to {
		return true
	}
	switch to {
	case PhaseFailed, PhaseCancelled:
		return true
	case PhaseFetchingTicket:
		// A new pass may start from any phase that is not mid-pipeline.
		return from.IsTerminal() || from == PhaseNotStarted || from == PhaseWaitingApproval
	}
	return phaseTransitions[from][to]
}

// TransitionResult captures a phase transition and its derived effects.
type TransitionResult struct {
	Phase       Phase
	State       RunState
	CompletedAt *time.Time // set when the transition ends the pipeline
}

// ApplyTransition computes the record changes for entering a phase.
// The caller passes the current time to keep this testable.
func ApplyTransition(to Phase, now time.Time) TransitionResult {
	result := TransitionResult{
		Phase: to,
		State: StateForPhase(to),
	}
	if to.IsTerminal() {
		result.CompletedAt = &now
	}
	return result
}
