package app

import (
	"encoding/json"
	"time"

	"github.com/example/conveyor/internal/ports/primary"
	"github.com/example/conveyor/internal/ports/secondary"
)

// analysisBlob is the persisted shape of an analysis on the workflow record.
// The embedded result excludes FromCache from JSON so cached payloads never
// bake the flag in; the record blob carries its own copy because how the
// analysis was obtained is part of the workflow's history.
type analysisBlob struct {
	secondary.AnalysisResult
	FromCache bool `json:"from_cache"`
}

// implementationBlob is the persisted shape of an implementation pass.
type implementationBlob struct {
	Branch       string `json:"branch"`
	FilesCreated int    `json:"files_created"`
	FilesUpdated int    `json:"files_updated"`
	FilesDeleted int    `json:"files_deleted"`
	BuildPassed  *bool  `json:"build_passed,omitempty"`
	TestsPassed  *bool  `json:"tests_passed,omitempty"`
	FailedTests  int    `json:"failed_tests,omitempty"`
	CommitHash   string `json:"commit_hash,omitempty"`
}

// pullRequestBlob is the persisted shape of an opened pull request.
type pullRequestBlob struct {
	Number int    `json:"number"`
	URL    string `json:"url"`
	Title  string `json:"title"`
	Branch string `json:"branch"`
}

// recordToWorkflow maps a stored record to the port view. Corrupt JSON blobs
// degrade to a missing section rather than failing the whole view.
func recordToWorkflow(rec *secondary.WorkflowRecord) *primary.Workflow {
	w := &primary.Workflow{
		TicketID:      rec.TicketID,
		Title:         rec.Title,
		Phase:         rec.Phase,
		State:         rec.State,
		PendingReview: rec.PendingAnalysisJSON != "",
		Errors:        decodeStringList(rec.ErrorsJSON),
		Feedback:      decodeStringList(rec.FeedbackJSON),
		StartedAt:     rec.StartedAt,
		CompletedAt:   rec.CompletedAt,
		UpdatedAt:     rec.UpdatedAt,
	}

	if rec.AnalysisJSON != "" {
		var blob analysisBlob
		if err := json.Unmarshal([]byte(rec.AnalysisJSON), &blob); err == nil {
			w.Analysis = &primary.AnalysisSummary{
				Summary:       blob.Summary,
				Approach:      blob.Approach,
				AffectedFiles: blob.AffectedFiles,
				Model:         blob.Model,
				FromCache:     blob.FromCache,
			}
			if !blob.ProducedAt.IsZero() {
				w.Analysis.ProducedAt = blob.ProducedAt.UTC().Format(time.RFC3339)
			}
		}
	}

	if rec.ImplementationJSON != "" {
		var blob implementationBlob
		if err := json.Unmarshal([]byte(rec.ImplementationJSON), &blob); err == nil {
			w.Implementation = &primary.ImplementationSummary{
				Branch:       blob.Branch,
				FilesCreated: blob.FilesCreated,
				FilesUpdated: blob.FilesUpdated,
				FilesDeleted: blob.FilesDeleted,
				BuildPassed:  blob.BuildPassed,
				TestsPassed:  blob.TestsPassed,
				FailedTests:  blob.FailedTests,
				CommitHash:   blob.CommitHash,
			}
		}
	}

	if rec.PullRequestJSON != "" {
		var blob pullRequestBlob
		if err := json.Unmarshal([]byte(rec.PullRequestJSON), &blob); err == nil {
			w.PullRequest = &primary.PullRequestRef{
				Number: blob.Number,
				URL:    blob.URL,
				Title:  blob.Title,
				Branch: blob.Branch,
			}
		}
	}

	return w
}

// progressToView maps a stored progress entry to the port view.
func progressToView(rec *secondary.ProgressRecord) *primary.ProgressView {
	return &primary.ProgressView{
		ID:         rec.ID,
		TicketID:   rec.TicketID,
		Phase:      rec.Phase,
		State:      rec.State,
		Percentage: rec.Percentage,
		Message:    rec.Message,
		Timestamp:  rec.Timestamp,
	}
}

// cloneRecord returns a private copy safe to mutate while readers hold the
// previous snapshot.
func cloneRecord(rec *secondary.WorkflowRecord) *secondary.WorkflowRecord {
	clone := *rec
	return &clone
}

// decodeStringList parses a JSON string array; empty or unparseable input
// yields nil.
func decodeStringList(listJSON string) []string {
	if listJSON == "" {
		return nil
	}
	var items []string
	if err := json.Unmarshal([]byte(listJSON), &items); err != nil {
		return nil
	}
	return items
}

// appendToStringList appends a value to a serialized JSON string array.
func appendToStringList(listJSON, value string) string {
	items := append(decodeStringList(listJSON), value)
	return encodeJSON(items)
}

// encodeJSON serializes values whose marshaling cannot fail (plain structs
// and slices of strings).
func encodeJSON(v any) string {
	data, _ := json.Marshal(v)
	return string(data)
}
