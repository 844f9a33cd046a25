package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/example/conveyor/internal/core/analysis"
	"github.com/example/conveyor/internal/core/contextopt"
	"github.com/example/conveyor/internal/core/workflow"
	"github.com/example/conveyor/internal/ports/primary"
	"github.com/example/conveyor/internal/ports/secondary"
)

// StartWorkflow analyzes the ticket and, when approval is not required,
// chains straight into implementation.
func (s *WorkflowServiceImpl) StartWorkflow(ctx context.Context, ticketID string) (*primary.Workflow, error) {
	run, runCtx, err := s.runs.begin(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	defer run.end()

	rec, err := s.analyzeTicket(runCtx, ticketID)
	if err != nil {
		return nil, err
	}
	if s.cfg.Pipeline.RequireApproval {
		return recordToWorkflow(rec), nil
	}

	rec, err = s.implementRecord(runCtx, rec)
	if err != nil {
		return nil, err
	}
	return recordToWorkflow(rec), nil
}

// Analyze fetches the ticket, consults the analysis cache, and on a miss
// runs the AI analysis inside an acquired workspace.
func (s *WorkflowServiceImpl) Analyze(ctx context.Context, ticketID string) (*primary.Workflow, error) {
	run, runCtx, err := s.runs.begin(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	defer run.end()

	rec, err := s.analyzeTicket(runCtx, ticketID)
	if err != nil {
		return nil, err
	}
	return recordToWorkflow(rec), nil
}

// ApproveAndImplement consumes the pending analysis and drives the
// implementation pipeline.
func (s *WorkflowServiceImpl) ApproveAndImplement(ctx context.Context, ticketID string) (*primary.Workflow, error) {
	run, runCtx, err := s.runs.begin(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	defer run.end()

	rec, err := s.loadRecordCopy(runCtx, ticketID)
	if err != nil {
		// Approving a ticket that was never analyzed is the same caller
		// mistake as approving one with no pending analysis.
		if errors.Is(err, workflow.ErrWorkflowNotFound) {
			return nil, fmt.Errorf("workflow %s: %w", ticketID, workflow.ErrNoPendingAnalysis)
		}
		return nil, err
	}
	rec, err = s.implementRecord(runCtx, rec)
	if err != nil {
		return nil, err
	}
	return recordToWorkflow(rec), nil
}

// RequestRevision records reviewer feedback and re-analyzes. The feedback is
// threaded into the next AI prompt and into the content hash, so a revision
// never replays the rejected analysis from cache.
func (s *WorkflowServiceImpl) RequestRevision(ctx context.Context, ticketID, feedback string) (*primary.Workflow, error) {
	guard := workflow.CanRequestRevision(workflow.RevisionContext{TicketID: ticketID, Feedback: feedback})
	if !guard.Allowed {
		return nil, guard.Error()
	}

	run, runCtx, err := s.runs.begin(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	defer run.end()

	rec, err := s.loadRecordCopy(runCtx, ticketID)
	if err != nil {
		return nil, err
	}

	rec.FeedbackJSON = appendToStringList(rec.FeedbackJSON, feedback)
	rec.PendingAnalysisJSON = "" // the rejected analysis is gone for good
	if err := s.checkpoint(runCtx, rec, 0, "revision requested"); err != nil {
		return nil, err
	}

	if err := s.tracker.AddComment(runCtx, ticketID, "Revision requested: "+feedback); err != nil {
		s.logger.Warn("failed to post revision comment", "ticket", ticketID, "error", err)
	}

	rec, err = s.analyzeRecord(runCtx, rec)
	if err != nil {
		return nil, err
	}
	return recordToWorkflow(rec), nil
}

// CancelWorkflow stops the workflow: any in-flight run is cancelled and
// waited out, then the terminal state is written without a competing writer.
func (s *WorkflowServiceImpl) CancelWorkflow(ctx context.Context, ticketID, reason string) error {
	run, runCtx, err := s.claimForCancel(ctx, ticketID)
	if err != nil {
		return err
	}
	defer run.end()
	return s.cancelRecord(runCtx, ticketID, reason)
}

// claimForCancel interrupts any in-flight run for the ticket and claims its
// slot, retrying when another caller wins the slot in between.
func (s *WorkflowServiceImpl) claimForCancel(ctx context.Context, ticketID string) (*runHandle, context.Context, error) {
	for {
		done := s.runs.interrupt(ticketID)
		select {
		case <-done:
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		}

		run, runCtx, err := s.runs.begin(ctx, ticketID)
		if errors.Is(err, workflow.ErrWorkflowBusy) {
			continue
		}
		if err != nil {
			return nil, nil, err
		}
		return run, runCtx, nil
	}
}

// analyzeTicket runs one analysis pass, creating the workflow record first
// when the ticket has none. The caller must hold the ticket's run slot.
func (s *WorkflowServiceImpl) analyzeTicket(ctx context.Context, ticketID string) (*secondary.WorkflowRecord, error) {
	rec, err := s.loadRecordCopy(ctx, ticketID)
	if errors.Is(err, workflow.ErrWorkflowNotFound) {
		rec, err = s.createRecord(ctx, ticketID)
	}
	if err != nil {
		return nil, err
	}
	return s.analyzeRecord(ctx, rec)
}

// createRecord persists a fresh NotStarted record without consulting the
// tracker; the analysis pass that follows does the fetch.
func (s *WorkflowServiceImpl) createRecord(ctx context.Context, ticketID string) (*secondary.WorkflowRecord, error) {
	now := s.timestamp()
	rec := &secondary.WorkflowRecord{
		TicketID:  ticketID,
		Phase:     string(workflow.InitialPhase()),
		State:     string(workflow.StateForPhase(workflow.InitialPhase())),
		StartedAt: now,
		UpdatedAt: now,
	}
	if err := s.workflowRepo.Create(ctx, rec); err != nil {
		return nil, fmt.Errorf("failed to create workflow %s: %w", ticketID, err)
	}
	s.setRecord(cloneRecord(rec))
	return rec, nil
}

// analyzeRecord drives the analysis phases for a loaded record copy.
func (s *WorkflowServiceImpl) analyzeRecord(ctx context.Context, rec *secondary.WorkflowRecord) (*secondary.WorkflowRecord, error) {
	rec.CompletedAt = "" // a new pass reopens the record
	if err := s.transition(ctx, rec, workflow.PhaseFetchingTicket, 5, "fetching ticket from tracker"); err != nil {
		return nil, err
	}

	ticket, err := s.tracker.GetTicket(ctx, rec.TicketID)
	if err != nil {
		return nil, s.fail(ctx, rec, 5, fmt.Errorf("failed to fetch ticket %s: %w", rec.TicketID, err))
	}
	rec.Title = ticket.Title

	if err := s.transition(ctx, rec, workflow.PhaseAnalyzingCode, 15, "ticket fetched: "+ticket.Title); err != nil {
		return nil, err
	}

	feedback := decodeStringList(rec.FeedbackJSON)
	contentHash := analysis.ContentHash(ticket.ID, ticket.Title, ticket.Description, feedback)
	cacheKey := analysis.CacheKey(ticket.ID, contentHash)

	if cached := s.cachedAnalysis(ctx, cacheKey); cached != nil {
		blob := encodeJSON(analysisBlob{AnalysisResult: *cached, FromCache: true})
		rec.AnalysisJSON = blob
		rec.PendingAnalysisJSON = blob
		if err := s.transition(ctx, rec, workflow.PhaseWaitingApproval, 100, "analysis ready (from cache)"); err != nil {
			return nil, err
		}
		return rec, nil
	}

	result, err := s.runAnalysis(ctx, rec, ticket, feedback)
	if err != nil {
		return nil, err
	}
	s.storeAnalysis(ctx, cacheKey, ticket.ID, contentHash, result)

	blob := encodeJSON(analysisBlob{AnalysisResult: *result})
	rec.AnalysisJSON = blob
	rec.PendingAnalysisJSON = blob
	if err := s.transition(ctx, rec, workflow.PhaseWaitingApproval, 100, "analysis ready for review"); err != nil {
		return nil, err
	}
	return rec, nil
}

// cachedAnalysis looks a key up, treating expired or corrupt entries as a
// miss and removing them. Hits bump last-accessed.
func (s *WorkflowServiceImpl) cachedAnalysis(ctx context.Context, key string) *secondary.AnalysisResult {
	entry, err := s.cacheRepo.Get(ctx, key)
	if err != nil {
		s.logger.Warn("analysis cache lookup failed", "key", key, "error", err)
		return nil
	}
	if entry == nil {
		return nil
	}

	now := s.timestamp()
	if entry.ExpiresAt != "" && entry.ExpiresAt <= now {
		if err := s.cacheRepo.Delete(ctx, key); err != nil {
			s.logger.Warn("failed to remove expired cache entry", "key", key, "error", err)
		}
		return nil
	}

	var result secondary.AnalysisResult
	if err := json.Unmarshal([]byte(entry.PayloadJSON), &result); err != nil {
		if err := s.cacheRepo.Delete(ctx, key); err != nil {
			s.logger.Warn("failed to remove corrupt cache entry", "key", key, "error", err)
		}
		return nil
	}

	if err := s.cacheRepo.Touch(ctx, key, now); err != nil {
		s.logger.Warn("failed to touch cache entry", "key", key, "error", err)
	}
	result.FromCache = true
	return &result
}

// runAnalysis acquires a workspace, builds the compressed code context, and
// invokes the AI. The workspace is released on every exit path; failures are
// recorded on the workflow before returning.
func (s *WorkflowServiceImpl) runAnalysis(ctx context.Context, rec *secondary.WorkflowRecord, ticket *secondary.Ticket, feedback []string) (*secondary.AnalysisResult, error) {
	if err := s.checkpoint(ctx, rec, 25, "acquiring workspace"); err != nil {
		return nil, err
	}

	ws, err := s.workspaces.Acquire(ctx, ticket.ID)
	if err != nil {
		return nil, s.fail(ctx, rec, 25, fmt.Errorf("failed to acquire workspace: %w", err))
	}
	defer s.releaseWorkspace(ctx, ws)

	if err := s.checkpoint(ctx, rec, 35, "building code context"); err != nil {
		return nil, err
	}

	semantic, err := s.indexer.BuildSemanticContext(ctx, ticket, ws.Path)
	if err != nil {
		return nil, s.fail(ctx, rec, 35, fmt.Errorf("failed to build code context: %w", err))
	}
	codeContext := s.composeContext(semantic.StructuredText, feedback)

	if err := s.checkpoint(ctx, rec, 60, "analyzing ticket with "+s.cfg.AI.Model); err != nil {
		return nil, err
	}

	result, err := s.ai.AnalyzeTicket(ctx, ticket, codeContext)
	if err != nil {
		return nil, s.fail(ctx, rec, 60, fmt.Errorf("analysis failed: %w", err))
	}
	return result, nil
}

// composeContext compresses the semantic text to the configured budget and
// appends reviewer feedback after compression, so feedback always survives
// truncation intact.
func (s *WorkflowServiceImpl) composeContext(structuredText string, feedback []string) string {
	budget := s.cfg.AI.MaxContextBytes
	section := feedbackSection(feedback)
	if section != "" {
		budget -= len(section)
		if budget < 0 {
			budget = 0
		}
	}
	return contextopt.Optimize(structuredText, budget) + section
}

// storeAnalysis caches a fresh result. The cache is an optimization: write
// failures are logged and never fail the pass.
func (s *WorkflowServiceImpl) storeAnalysis(ctx context.Context, key, ticketID, contentHash string, result *secondary.AnalysisResult) {
	now := s.now().UTC()
	entry := &secondary.AnalysisCacheRecord{
		Key:            key,
		TicketID:       ticketID,
		ContentHash:    contentHash,
		PayloadJSON:    encodeJSON(result),
		CachedAt:       now.Format(time.RFC3339),
		LastAccessedAt: now.Format(time.RFC3339),
	}
	if s.cfg.Cache.TTLHours > 0 {
		entry.ExpiresAt = now.Add(time.Duration(s.cfg.Cache.TTLHours) * time.Hour).Format(time.RFC3339)
	}
	if err := s.cacheRepo.Put(ctx, entry); err != nil {
		s.logger.Warn("failed to cache analysis", "key", key, "error", err)
	}
}

// implementRecord consumes the pending analysis and drives the
// implementation pipeline: branch, generation, apply, build, test, commit,
// push, pull request, tracker update. Build and test failures are outcomes,
// not errors: the record lands in a terminal sub-state and is returned.
func (s *WorkflowServiceImpl) implementRecord(ctx context.Context, rec *secondary.WorkflowRecord) (*secondary.WorkflowRecord, error) {
	guard := workflow.CanApproveAndImplement(workflow.ApprovalContext{
		TicketID:           rec.TicketID,
		HasPendingAnalysis: rec.PendingAnalysisJSON != "",
	})
	if !guard.Allowed {
		return nil, fmt.Errorf("%w: %s", workflow.ErrNoPendingAnalysis, guard.Reason)
	}

	var blob analysisBlob
	if err := json.Unmarshal([]byte(rec.PendingAnalysisJSON), &blob); err != nil {
		return nil, s.fail(ctx, rec, 0, fmt.Errorf("corrupt pending analysis: %w", err))
	}
	pending := blob.AnalysisResult
	rec.PendingAnalysisJSON = "" // approval consumes the analysis

	branch := branchName(s.cfg.Repository.BranchPrefix, rec.TicketID, rec.Title)
	impl := &implementationBlob{Branch: branch}
	rec.ImplementationJSON = encodeJSON(impl)

	if err := s.transition(ctx, rec, workflow.PhaseCreatingBranch, 10, "creating branch "+branch); err != nil {
		return nil, err
	}

	ws, err := s.workspaces.Acquire(ctx, rec.TicketID)
	if err != nil {
		return nil, s.fail(ctx, rec, 10, fmt.Errorf("failed to acquire workspace: %w", err))
	}
	defer s.releaseWorkspace(ctx, ws)

	if err := s.prepareBranch(ctx, ws, branch); err != nil {
		return nil, s.fail(ctx, rec, 10, err)
	}

	if err := s.transition(ctx, rec, workflow.PhaseImplementing, 25, "generating code"); err != nil {
		return nil, err
	}

	files, err := s.generateFiles(ctx, ws.Path, rec, &pending)
	if err != nil {
		return nil, s.fail(ctx, rec, 25, err)
	}

	created, updated, deleted, applyErr := applyGeneratedFiles(ws.Path, files)
	impl.FilesCreated, impl.FilesUpdated, impl.FilesDeleted = created, updated, deleted
	rec.ImplementationJSON = encodeJSON(impl)
	if applyErr != nil {
		return nil, s.fail(ctx, rec, 30, fmt.Errorf("failed to apply generated files: %w", applyErr))
	}
	if err := s.checkpoint(ctx, rec, 40, fmt.Sprintf("applied %d file changes", len(files))); err != nil {
		return nil, err
	}

	if s.cfg.Pipeline.RunBuild {
		if err := s.transition(ctx, rec, workflow.PhaseBuilding, 50, "running build"); err != nil {
			return nil, err
		}
		build, err := s.runner.Build(ctx, ws.Path)
		if err != nil {
			return nil, s.fail(ctx, rec, 50, fmt.Errorf("build could not run: %w", err))
		}
		impl.BuildPassed = &build.Passed
		rec.ImplementationJSON = encodeJSON(impl)
		if !build.Passed {
			rec.ErrorsJSON = appendToStringList(rec.ErrorsJSON, "build failed: "+firstLines(build.Output, 20))
			if err := s.transition(ctx, rec, workflow.PhaseBuildFailed, 50, "build failed"); err != nil {
				return nil, err
			}
			return rec, nil
		}
	}

	if s.cfg.Pipeline.RunTests {
		if err := s.transition(ctx, rec, workflow.PhaseTesting, 60, "running tests"); err != nil {
			return nil, err
		}
		tests, err := s.runner.Test(ctx, ws.Path)
		if err != nil {
			return nil, s.fail(ctx, rec, 60, fmt.Errorf("tests could not run: %w", err))
		}
		impl.TestsPassed = &tests.Passed
		impl.FailedTests = tests.FailedCount
		rec.ImplementationJSON = encodeJSON(impl)
		if !tests.Passed {
			rec.ErrorsJSON = appendToStringList(rec.ErrorsJSON,
				fmt.Sprintf("%d tests failed: %s", tests.FailedCount, firstLines(tests.Output, 20)))
			if s.cfg.Pipeline.HaltOnTestFailure {
				if err := s.transition(ctx, rec, workflow.PhaseTestsFailed, 60, fmt.Sprintf("tests failed (%d)", tests.FailedCount)); err != nil {
					return nil, err
				}
				return rec, nil
			}
			if err := s.checkpoint(ctx, rec, 65, fmt.Sprintf("tests failed (%d), continuing", tests.FailedCount)); err != nil {
				return nil, err
			}
		}
	}

	if err := s.transition(ctx, rec, workflow.PhaseCommitting, 75, "committing changes"); err != nil {
		return nil, err
	}
	commit, err := s.commitAndPush(ctx, rec, ws.Path, branch)
	if err != nil {
		return nil, s.fail(ctx, rec, 75, err)
	}
	impl.CommitHash = commit.Hash
	rec.ImplementationJSON = encodeJSON(impl)

	if s.cfg.Pipeline.CreatePullRequest {
		if err := s.transition(ctx, rec, workflow.PhaseCreatingPullRequest, 90, "opening pull request"); err != nil {
			return nil, err
		}
		pr, err := s.prs.CreatePullRequest(ctx, secondary.PullRequestRequest{
			Title:        rec.TicketID + ": " + rec.Title,
			Description:  pullRequestBody(rec.TicketID, &pending),
			SourceBranch: branch,
			TargetBranch: s.cfg.PullRequests.TargetBranch,
			TicketID:     rec.TicketID,
		})
		if err != nil {
			return nil, s.fail(ctx, rec, 90, fmt.Errorf("failed to open pull request: %w", err))
		}
		rec.PullRequestJSON = encodeJSON(pullRequestBlob{
			Number: pr.Number,
			URL:    pr.URL,
			Title:  pr.Title,
			Branch: pr.SourceBranch,
		})
		if err := s.checkpoint(ctx, rec, 92, "pull request opened: "+pr.URL); err != nil {
			return nil, err
		}
	}

	if s.cfg.Pipeline.UpdateTracker {
		if err := s.transition(ctx, rec, workflow.PhaseUpdatingTracker, 95, "updating tracker"); err != nil {
			return nil, err
		}
		if err := s.updateTracker(ctx, rec, impl); err != nil {
			return nil, s.fail(ctx, rec, 95, err)
		}
	}

	if err := s.transition(ctx, rec, workflow.PhaseCompleted, 100, "workflow completed"); err != nil {
		return nil, err
	}
	return rec, nil
}

// prepareBranch creates and checks out the work branch inside one
// repository bracket. The shared local checkout may have gone stale since
// the last run and is pulled first; ephemeral clones are fresh.
func (s *WorkflowServiceImpl) prepareBranch(ctx context.Context, ws *secondary.Workspace, branch string) error {
	restore := s.vcs.SwitchRepository(ws.Path)
	defer restore()

	if !ws.Ephemeral {
		if err := s.vcs.Pull(ctx); err != nil {
			return fmt.Errorf("failed to refresh %s: %w", ws.Path, err)
		}
	}

	if err := s.vcs.CreateBranch(ctx, branch, s.cfg.PullRequests.TargetBranch); err != nil {
		return fmt.Errorf("failed to create branch %s: %w", branch, err)
	}
	if err := s.vcs.Checkout(ctx, branch); err != nil {
		return fmt.Errorf("failed to checkout %s: %w", branch, err)
	}
	return nil
}

// generateFiles builds a generation context for the workspace and asks the
// AI for file changes. The indexer is steered by the approved analysis: its
// summary, approach, and affected files carry the requirements.
func (s *WorkflowServiceImpl) generateFiles(ctx context.Context, path string, rec *secondary.WorkflowRecord, pending *secondary.AnalysisResult) ([]secondary.GeneratedFile, error) {
	seed := &secondary.Ticket{
		ID:          rec.TicketID,
		Title:       rec.Title,
		Description: pending.Summary + "\n" + pending.Approach + "\n" + strings.Join(pending.AffectedFiles, "\n"),
	}
	semantic, err := s.indexer.BuildSemanticContext(ctx, seed, path)
	if err != nil {
		return nil, fmt.Errorf("failed to build code context: %w", err)
	}
	codeContext := contextopt.Optimize(semantic.StructuredText, s.cfg.AI.MaxContextBytes)

	files, err := s.ai.GenerateCode(ctx, pending, codeContext)
	if err != nil {
		return nil, fmt.Errorf("code generation failed: %w", err)
	}
	return files, nil
}

// commitAndPush stages, commits, and pushes inside one repository bracket.
func (s *WorkflowServiceImpl) commitAndPush(ctx context.Context, rec *secondary.WorkflowRecord, path, branch string) (*secondary.CommitInfo, error) {
	restore := s.vcs.SwitchRepository(path)
	defer restore()

	if err := s.vcs.StageAll(ctx); err != nil {
		return nil, fmt.Errorf("failed to stage changes: %w", err)
	}
	commit, err := s.vcs.Commit(ctx, commitMessage(rec.TicketID, rec.Title))
	if err != nil {
		return nil, fmt.Errorf("failed to commit: %w", err)
	}
	if err := s.transition(ctx, rec, workflow.PhasePushing, 85, "pushing "+branch); err != nil {
		return nil, err
	}
	if err := s.vcs.Push(ctx, branch); err != nil {
		return nil, fmt.Errorf("failed to push %s: %w", branch, err)
	}
	return commit, nil
}

// updateTracker posts the outcome comment and the pull request link.
func (s *WorkflowServiceImpl) updateTracker(ctx context.Context, rec *secondary.WorkflowRecord, impl *implementationBlob) error {
	if err := s.tracker.AddComment(ctx, rec.TicketID, trackerComment(rec, impl)); err != nil {
		return fmt.Errorf("failed to comment on %s: %w", rec.TicketID, err)
	}
	if rec.PullRequestJSON != "" {
		var pr pullRequestBlob
		if err := json.Unmarshal([]byte(rec.PullRequestJSON), &pr); err == nil && pr.URL != "" {
			if err := s.tracker.AddRemoteLink(ctx, rec.TicketID, pr.URL, pr.Title); err != nil {
				return fmt.Errorf("failed to link pull request on %s: %w", rec.TicketID, err)
			}
		}
	}
	return nil
}

// cancelRecord writes the cancelled state. The caller must hold the
// ticket's run slot.
func (s *WorkflowServiceImpl) cancelRecord(ctx context.Context, ticketID, reason string) error {
	rec, err := s.loadRecordCopy(ctx, ticketID)
	if err != nil {
		return err
	}

	guard := workflow.CanCancel(workflow.CancelContext{TicketID: ticketID, Phase: workflow.Phase(rec.Phase)})
	if !guard.Allowed {
		return guard.Error()
	}

	rec.PendingAnalysisJSON = ""

	// Uncommitted changes in the fixed local checkout would leak into the
	// next run; ephemeral workspaces died with the run that owned them.
	if s.cfg.Repository.LocalPath != "" {
		if err := s.discardLocalChanges(ctx); err != nil {
			s.logger.Warn("failed to discard local changes", "ticket", ticketID, "error", err)
		}
	}

	message := "cancelled"
	if reason != "" {
		message = "cancelled: " + reason
	}
	if err := s.transition(ctx, rec, workflow.PhaseCancelled, 100, message); err != nil {
		return err
	}

	if err := s.tracker.AddComment(ctx, ticketID, "Workflow "+message); err != nil {
		s.logger.Warn("failed to post cancellation comment", "ticket", ticketID, "error", err)
	}
	return nil
}

// discardLocalChanges resets the configured local checkout. A clean tree is
// left untouched.
func (s *WorkflowServiceImpl) discardLocalChanges(ctx context.Context) error {
	restore := s.vcs.SwitchRepository(s.cfg.Repository.LocalPath)
	defer restore()

	status, err := s.vcs.GetStatus(ctx)
	if err != nil {
		return err
	}
	if status.Clean {
		return nil
	}
	return s.vcs.DiscardChanges(ctx)
}

// releaseWorkspace cleans a workspace up even when the run's context is
// already cancelled.
func (s *WorkflowServiceImpl) releaseWorkspace(ctx context.Context, ws *secondary.Workspace) {
	if err := s.workspaces.Release(context.WithoutCancel(ctx), ws); err != nil {
		s.logger.Warn("failed to release workspace",
			"ticket", ws.TicketID, "path", ws.Path, "error", err)
	}
}

// applyGeneratedFiles writes the AI's file changes into the workspace. All
// paths are validated before any file is touched; anything absolute or
// escaping the root is rejected.
func applyGeneratedFiles(root string, files []secondary.GeneratedFile) (created, updated, deleted int, err error) {
	paths := make([]string, len(files))
	for i, file := range files {
		abs, err := confinePath(root, file.Path)
		if err != nil {
			return 0, 0, 0, err
		}
		paths[i] = abs
	}

	for i, file := range files {
		switch file.Action {
		case secondary.FileActionCreate, secondary.FileActionUpdate:
			if err := os.MkdirAll(filepath.Dir(paths[i]), 0755); err != nil {
				return created, updated, deleted, fmt.Errorf("failed to create directory for %s: %w", file.Path, err)
			}
			if err := os.WriteFile(paths[i], []byte(file.Content), 0644); err != nil {
				return created, updated, deleted, fmt.Errorf("failed to write %s: %w", file.Path, err)
			}
			if file.Action == secondary.FileActionCreate {
				created++
			} else {
				updated++
			}
		case secondary.FileActionDelete:
			if err := os.Remove(paths[i]); err != nil && !os.IsNotExist(err) {
				return created, updated, deleted, fmt.Errorf("failed to delete %s: %w", file.Path, err)
			}
			deleted++
		default:
			return created, updated, deleted, fmt.Errorf("unknown file action %q for %s", file.Action, file.Path)
		}
	}
	return created, updated, deleted, nil
}

// confinePath resolves a generated path inside the workspace root.
func confinePath(root, path string) (string, error) {
	if path == "" {
		return "", errors.New("generated file has empty path")
	}
	if filepath.IsAbs(path) {
		return "", fmt.Errorf("generated path %q is absolute", path)
	}
	abs := filepath.Join(root, filepath.Clean(path))
	rel, err := filepath.Rel(root, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("generated path %q escapes the workspace", path)
	}
	return abs, nil
}

// feedbackSection formats accumulated reviewer feedback for the prompt.
func feedbackSection(feedback []string) string {
	if len(feedback) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("\n\nREVIEWER FEEDBACK (must be addressed):\n")
	for _, item := range feedback {
		b.WriteString("- ")
		b.WriteString(item)
		b.WriteString("\n")
	}
	return b.String()
}

// pullRequestBody renders the PR description from the approved analysis.
func pullRequestBody(ticketID string, analysis *secondary.AnalysisResult) string {
	var b strings.Builder
	b.WriteString("## Summary\n\n")
	b.WriteString(analysis.Summary)
	b.WriteString("\n\n## Approach\n\n")
	b.WriteString(analysis.Approach)
	if len(analysis.AffectedFiles) > 0 {
		b.WriteString("\n\n## Affected files\n\n")
		for _, file := range analysis.AffectedFiles {
			b.WriteString("- ")
			b.WriteString(file)
			b.WriteString("\n")
		}
	}
	b.WriteString("\nTicket: ")
	b.WriteString(ticketID)
	b.WriteString("\n")
	return b.String()
}

// trackerComment renders the outcome summary posted back to the ticket.
func trackerComment(rec *secondary.WorkflowRecord, impl *implementationBlob) string {
	var b strings.Builder
	b.WriteString("Implementation pushed by conveyor.\n")
	fmt.Fprintf(&b, "Branch: %s\n", impl.Branch)
	if impl.CommitHash != "" {
		fmt.Fprintf(&b, "Commit: %s\n", impl.CommitHash)
	}
	fmt.Fprintf(&b, "Files: %d created, %d updated, %d deleted\n",
		impl.FilesCreated, impl.FilesUpdated, impl.FilesDeleted)
	if impl.TestsPassed != nil && !*impl.TestsPassed {
		fmt.Fprintf(&b, "Warning: %d tests failed\n", impl.FailedTests)
	}
	if rec.PullRequestJSON != "" {
		var pr pullRequestBlob
		if err := json.Unmarshal([]byte(rec.PullRequestJSON), &pr); err == nil && pr.URL != "" {
			fmt.Fprintf(&b, "Pull request: %s\n", pr.URL)
		}
	}
	return b.String()
}

// commitMessage builds the commit subject for an implementation pass.
func commitMessage(ticketID, title string) string {
	if title == "" {
		return ticketID
	}
	return ticketID + ": " + title
}

var (
	slugInvalidChars = regexp.MustCompile(`[^a-z0-9-]`)
	slugHyphenRuns   = regexp.MustCompile(`-+`)
)

// branchName builds the work branch name: {prefix}{ticket-id}-{title-slug}.
func branchName(prefix, ticketID, title string) string {
	name := prefix + strings.ToLower(ticketID)
	if slug := generateSlug(title, 40); slug != "" {
		name += "-" + slug
	}
	return name
}

// generateSlug creates a branch-friendly slug from a title.
func generateSlug(title string, maxLen int) string {
	slug := strings.ToLower(title)
	slug = strings.ReplaceAll(slug, " ", "-")
	slug = slugInvalidChars.ReplaceAllString(slug, "")
	slug = slugHyphenRuns.ReplaceAllString(slug, "-")
	slug = strings.Trim(slug, "-")
	if len(slug) > maxLen {
		slug = slug[:maxLen]
		slug = strings.TrimRight(slug, "-")
	}
	return slug
}

// firstLines keeps a bounded prefix of command output for the error list.
func firstLines(output string, max int) string {
	trimmed := strings.TrimSpace(output)
	lines := strings.Split(trimmed, "\n")
	if len(lines) <= max {
		return trimmed
	}
	return strings.Join(lines[:max], "\n") + "\n..."
}
