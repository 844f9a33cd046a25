package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/example/conveyor/internal/config"
	"github.com/example/conveyor/internal/core/workflow"
	"github.com/example/conveyor/internal/ports/primary"
	"github.com/example/conveyor/internal/ports/secondary"
)

// WorkflowServiceImpl implements the WorkflowService interface. It drives a
// ticket through the pipeline phases, publishing a progress entry after every
// step and persisting the record after every mutation, in that order.
//
// Per-ticket records live in a mutex-guarded map mirrored write-through to
// the durable store. Stored snapshots are never mutated in place: mutating
// operations work on a private copy and swap it in on persist, so concurrent
// readers always see a consistent record.
type WorkflowServiceImpl struct {
	workflowRepo secondary.WorkflowRepository
	cacheRepo    secondary.AnalysisCacheRepository
	progressRepo secondary.ProgressRepository
	notifier     secondary.ProgressNotifier
	tracker      secondary.TicketTracker
	vcs          secondary.VersionControl
	prs          secondary.PullRequestService
	ai           secondary.AI
	indexer      secondary.CodeIndexer
	runner       secondary.BuildRunner
	workspaces   secondary.WorkspaceManager
	cfg          *config.Config
	logger       *slog.Logger
	now          func() time.Time

	runs *runRegistry

	mu        sync.RWMutex
	workflows map[string]*secondary.WorkflowRecord
}

// WorkflowServiceOption customizes a WorkflowServiceImpl.
type WorkflowServiceOption func(*WorkflowServiceImpl)

// WithLogger sets the structured logger used for best-effort failures.
func WithLogger(logger *slog.Logger) WorkflowServiceOption {
	return func(s *WorkflowServiceImpl) {
		s.logger = logger
	}
}

// WithClock overrides the time source. Used in tests.
func WithClock(now func() time.Time) WorkflowServiceOption {
	return func(s *WorkflowServiceImpl) {
		s.now = now
	}
}

// NewWorkflowService creates a new WorkflowService with injected dependencies.
func NewWorkflowService(
	workflowRepo secondary.WorkflowRepository,
	cacheRepo secondary.AnalysisCacheRepository,
	progressRepo secondary.ProgressRepository,
	notifier secondary.ProgressNotifier,
	tracker secondary.TicketTracker,
	vcs secondary.VersionControl,
	prs secondary.PullRequestService,
	ai secondary.AI,
	indexer secondary.CodeIndexer,
	runner secondary.BuildRunner,
	workspaces secondary.WorkspaceManager,
	cfg *config.Config,
	opts ...WorkflowServiceOption,
) *WorkflowServiceImpl {
	s := &WorkflowServiceImpl{
		workflowRepo: workflowRepo,
		cacheRepo:    cacheRepo,
		progressRepo: progressRepo,
		notifier:     notifier,
		tracker:      tracker,
		vcs:          vcs,
		prs:          prs,
		ai:           ai,
		indexer:      indexer,
		runner:       runner,
		workspaces:   workspaces,
		cfg:          cfg,
		logger:       slog.Default(),
		now:          time.Now,
		runs:         newRunRegistry(),
		workflows:    make(map[string]*secondary.WorkflowRecord),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateWorkflow returns the existing workflow for the ticket or creates a
// new one after verifying the ticket exists in the tracker. Idempotent: a
// second call returns the same record without another tracker fetch.
func (s *WorkflowServiceImpl) CreateWorkflow(ctx context.Context, ticketID string) (*primary.Workflow, error) {
	if rec := s.getRecord(ticketID); rec != nil {
		return recordToWorkflow(rec), nil
	}

	rec, err := s.workflowRepo.GetByTicketID(ctx, ticketID)
	if err == nil {
		s.setRecord(rec)
		return recordToWorkflow(rec), nil
	}
	if !errors.Is(err, workflow.ErrWorkflowNotFound) {
		return nil, fmt.Errorf("failed to load workflow %s: %w", ticketID, err)
	}

	ticket, err := s.tracker.GetTicket(ctx, ticketID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch ticket %s: %w", ticketID, err)
	}

	now := s.timestamp()
	rec = &secondary.WorkflowRecord{
		TicketID:  ticket.ID,
		Title:     ticket.Title,
		Phase:     string(workflow.InitialPhase()),
		State:     string(workflow.StateForPhase(workflow.InitialPhase())),
		StartedAt: now,
		UpdatedAt: now,
	}
	if err := s.workflowRepo.Create(ctx, rec); err != nil {
		return nil, fmt.Errorf("failed to create workflow %s: %w", ticketID, err)
	}
	s.setRecord(rec)
	return recordToWorkflow(rec), nil
}

// GetWorkflowStatus reports current status for a ticket. The in-memory
// record is preferred; the durable store and the progress log fill in after
// a restart. Read-only.
func (s *WorkflowServiceImpl) GetWorkflowStatus(ctx context.Context, ticketID string) (*primary.WorkflowStatus, error) {
	rec := s.getRecord(ticketID)
	if rec == nil {
		stored, err := s.workflowRepo.GetByTicketID(ctx, ticketID)
		if err == nil {
			s.setRecord(stored)
			rec = stored
		} else if !errors.Is(err, workflow.ErrWorkflowNotFound) {
			return nil, fmt.Errorf("failed to load workflow %s: %w", ticketID, err)
		}
	}

	latest, err := s.progressRepo.Latest(ctx, ticketID)
	if err != nil {
		return nil, fmt.Errorf("failed to load progress for %s: %w", ticketID, err)
	}

	if rec == nil && latest == nil {
		return nil, fmt.Errorf("workflow %s: %w", ticketID, workflow.ErrWorkflowNotFound)
	}

	status := &primary.WorkflowStatus{TicketID: ticketID}
	if rec != nil {
		status.Workflow = recordToWorkflow(rec)
	}
	if latest != nil {
		status.Progress = progressToView(latest)
	}
	return status, nil
}

// GetWorkflowHistory lists known workflows, most recently updated first.
// Read-only.
func (s *WorkflowServiceImpl) GetWorkflowHistory(ctx context.Context, limit int) ([]*primary.Workflow, error) {
	records, err := s.workflowRepo.List(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list workflows: %w", err)
	}

	workflows := make([]*primary.Workflow, len(records))
	for i, rec := range records {
		workflows[i] = recordToWorkflow(rec)
	}
	return workflows, nil
}

// getRecord returns the shared in-memory snapshot for a ticket, or nil.
// Snapshots are immutable by convention; mutate a clone instead.
func (s *WorkflowServiceImpl) getRecord(ticketID string) *secondary.WorkflowRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.workflows[ticketID]
}

// setRecord swaps a new snapshot into the in-memory map.
func (s *WorkflowServiceImpl) setRecord(rec *secondary.WorkflowRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.workflows[rec.TicketID] = rec
}

// loadRecordCopy fetches the record from memory or the durable store and
// returns a private copy for mutation. Fails with ErrWorkflowNotFound when
// the ticket has no workflow.
func (s *WorkflowServiceImpl) loadRecordCopy(ctx context.Context, ticketID string) (*secondary.WorkflowRecord, error) {
	if rec := s.getRecord(ticketID); rec != nil {
		return cloneRecord(rec), nil
	}
	rec, err := s.workflowRepo.GetByTicketID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, workflow.ErrWorkflowNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to load workflow %s: %w", ticketID, err)
	}
	s.setRecord(rec)
	return cloneRecord(rec), nil
}

// transition moves the workflow into a phase, publishes the progress entry,
// and persists the record.
func (s *WorkflowServiceImpl) transition(ctx context.Context, rec *secondary.WorkflowRecord, to workflow.Phase, percentage int, message string) error {
	from := workflow.Phase(rec.Phase)
	if !workflow.CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", workflow.ErrInvalidTransition, from, to)
	}

	result := workflow.ApplyTransition(to, s.now().UTC())
	rec.Phase = string(result.Phase)
	rec.State = string(result.State)
	if result.CompletedAt != nil {
		rec.CompletedAt = result.CompletedAt.Format(time.RFC3339)
	}
	rec.UpdatedAt = s.timestamp()

	s.publish(ctx, rec, percentage, message)
	return s.persist(ctx, rec)
}

// checkpoint publishes progress and persists the record without changing
// phase, for mutations that happen inside one phase.
func (s *WorkflowServiceImpl) checkpoint(ctx context.Context, rec *secondary.WorkflowRecord, percentage int, message string) error {
	rec.UpdatedAt = s.timestamp()
	s.publish(ctx, rec, percentage, message)
	return s.persist(ctx, rec)
}

// publish appends a progress entry and notifies live subscribers. Progress
// failures never abort the calling phase.
func (s *WorkflowServiceImpl) publish(ctx context.Context, rec *secondary.WorkflowRecord, percentage int, message string) {
	entry := &secondary.ProgressRecord{
		ID:         uuid.NewString(),
		TicketID:   rec.TicketID,
		Phase:      rec.Phase,
		State:      rec.State,
		Percentage: percentage,
		Message:    message,
		Timestamp:  s.timestamp(),
	}
	if err := s.progressRepo.Append(ctx, entry); err != nil {
		s.logger.Warn("failed to append progress entry",
			"ticket", rec.TicketID, "phase", rec.Phase, "error", err)
	}
	s.notifier.Publish(entry)
}

// persist writes the record through to the durable store and swaps the
// in-memory snapshot.
func (s *WorkflowServiceImpl) persist(ctx context.Context, rec *secondary.WorkflowRecord) error {
	if err := s.workflowRepo.Update(ctx, rec); err != nil {
		return fmt.Errorf("failed to persist workflow %s: %w", rec.TicketID, err)
	}
	s.setRecord(cloneRecord(rec))
	return nil
}

// fail records the cause on the workflow and transitions it to Failed,
// returning the cause for the caller to surface. When the run's context is
// already cancelled the record is left alone: the cancellation path owns the
// terminal state.
func (s *WorkflowServiceImpl) fail(ctx context.Context, rec *secondary.WorkflowRecord, percentage int, cause error) error {
	if ctx.Err() != nil || errors.Is(cause, context.Canceled) {
		return cause
	}

	rec.ErrorsJSON = appendToStringList(rec.ErrorsJSON, cause.Error())
	result := workflow.ApplyTransition(workflow.PhaseFailed, s.now().UTC())
	rec.Phase = string(result.Phase)
	rec.State = string(result.State)
	if result.CompletedAt != nil {
		rec.CompletedAt = result.CompletedAt.Format(time.RFC3339)
	}
	rec.UpdatedAt = s.timestamp()

	s.publish(ctx, rec, percentage, "failed: "+cause.Error())
	if err := s.persist(ctx, rec); err != nil {
		s.logger.Warn("failed to persist failure state",
			"ticket", rec.TicketID, "error", err)
	}
	return cause
}

// timestamp formats the current time the way records store it.
func (s *WorkflowServiceImpl) timestamp() string {
	return s.now().UTC().Format(time.RFC3339)
}

// Ensure WorkflowServiceImpl implements the interface
var _ primary.WorkflowService = (*WorkflowServiceImpl)(nil)
