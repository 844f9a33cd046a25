package httpapi

import "github.com/example/conveyor/internal/ports/primary"

// Wire representations of the primary port views. The port structs stay
// transport-agnostic; field names are fixed here.

type workflowJSON struct {
	TicketID       string              `json:"ticket_id"`
	Title          string              `json:"title"`
	Phase          string              `json:"phase"`
	State          string              `json:"state"`
	PendingReview  bool                `json:"pending_review"`
	Analysis       *analysisJSON       `json:"analysis,omitempty"`
	Implementation *implementationJSON `json:"implementation,omitempty"`
	PullRequest    *pullRequestJSON    `json:"pull_request,omitempty"`
	Errors         []string            `json:"errors,omitempty"`
	Feedback       []string            `json:"feedback,omitempty"`
	StartedAt      string              `json:"started_at"`
	CompletedAt    string              `json:"completed_at,omitempty"`
	UpdatedAt      string              `json:"updated_at"`
}

type analysisJSON struct {
	Summary       string   `json:"summary"`
	Approach      string   `json:"approach"`
	AffectedFiles []string `json:"affected_files"`
	Model         string   `json:"model"`
	ProducedAt    string   `json:"produced_at"`
	FromCache     bool     `json:"from_cache"`
}

type implementationJSON struct {
	Branch       string `json:"branch"`
	FilesCreated int    `json:"files_created"`
	FilesUpdated int    `json:"files_updated"`
	FilesDeleted int    `json:"files_deleted"`
	BuildPassed  *bool  `json:"build_passed"` // null when the build step was skipped
	TestsPassed  *bool  `json:"tests_passed"` // null when the test step was skipped
	FailedTests  int    `json:"failed_tests"`
	CommitHash   string `json:"commit_hash"`
}

type pullRequestJSON struct {
	Number int    `json:"number"`
	URL    string `json:"url"`
	Title  string `json:"title"`
	Branch string `json:"branch"`
}

type statusJSON struct {
	TicketID string          `json:"ticket_id"`
	Workflow *workflowJSON   `json:"workflow"`
	Progress *progressJSON   `json:"progress"`
}

type progressJSON struct {
	ID         string `json:"id"`
	TicketID   string `json:"ticket_id"`
	Phase      string `json:"phase"`
	State      string `json:"state"`
	Percentage int    `json:"percentage"`
	Message    string `json:"message"`
	Timestamp  string `json:"timestamp"`
}

type cacheStatsJSON struct {
	Entries      int    `json:"entries"`
	Expired      int    `json:"expired"`
	OldestCached string `json:"oldest_cached,omitempty"`
	NewestCached string `json:"newest_cached,omitempty"`
}

func workflowToJSON(wf *primary.Workflow) *workflowJSON {
	if wf == nil {
		return nil
	}
	out := &workflowJSON{
		TicketID:      wf.TicketID,
		Title:         wf.Title,
		Phase:         wf.Phase,
		State:         wf.State,
		PendingReview: wf.PendingReview,
		Errors:        wf.Errors,
		Feedback:      wf.Feedback,
		StartedAt:     wf.StartedAt,
		CompletedAt:   wf.CompletedAt,
		UpdatedAt:     wf.UpdatedAt,
	}
	if wf.Analysis != nil {
		out.Analysis = &analysisJSON{
			Summary:       wf.Analysis.Summary,
			Approach:      wf.Analysis.Approach,
			AffectedFiles: wf.Analysis.AffectedFiles,
			Model:         wf.Analysis.Model,
			ProducedAt:    wf.Analysis.ProducedAt,
			FromCache:     wf.Analysis.FromCache,
		}
	}
	if wf.Implementation != nil {
		out.Implementation = &implementationJSON{
			Branch:       wf.Implementation.Branch,
			FilesCreated: wf.Implementation.FilesCreated,
			FilesUpdated: wf.Implementation.FilesUpdated,
			FilesDeleted: wf.Implementation.FilesDeleted,
			BuildPassed:  wf.Implementation.BuildPassed,
			TestsPassed:  wf.Implementation.TestsPassed,
			FailedTests:  wf.Implementation.FailedTests,
			CommitHash:   wf.Implementation.CommitHash,
		}
	}
	if wf.PullRequest != nil {
		out.PullRequest = &pullRequestJSON{
			Number: wf.PullRequest.Number,
			URL:    wf.PullRequest.URL,
			Title:  wf.PullRequest.Title,
			Branch: wf.PullRequest.Branch,
		}
	}
	return out
}

func progressToJSON(view *primary.ProgressView) *progressJSON {
	if view == nil {
		return nil
	}
	return &progressJSON{
		ID:         view.ID,
		TicketID:   view.TicketID,
		Phase:      view.Phase,
		State:      view.State,
		Percentage: view.Percentage,
		Message:    view.Message,
		Timestamp:  view.Timestamp,
	}
}
