package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/example/conveyor/internal/core/workflow"
	"github.com/example/conveyor/internal/ports/primary"
)

type stubWorkflowService struct {
	history   []*primary.Workflow
	status    *primary.WorkflowStatus
	statusErr error

	gotLimit  int
	gotTicket string
}

func (s *stubWorkflowService) CreateWorkflow(ctx context.Context, ticketID string) (*primary.Workflow, error) {
	return nil, nil
}

func (s *stubWorkflowService) StartWorkflow(ctx context.Context, ticketID string) (*primary.Workflow, error) {
	return nil, nil
}

func (s *stubWorkflowService) Analyze(ctx context.Context, ticketID string) (*primary.Workflow, error) {
	return nil, nil
}

func (s *stubWorkflowService) ApproveAndImplement(ctx context.Context, ticketID string) (*primary.Workflow, error) {
	return nil, nil
}

func (s *stubWorkflowService) RequestRevision(ctx context.Context, ticketID, feedback string) (*primary.Workflow, error) {
	return nil, nil
}

func (s *stubWorkflowService) CancelWorkflow(ctx context.Context, ticketID, reason string) error {
	return nil
}

func (s *stubWorkflowService) GetWorkflowStatus(ctx context.Context, ticketID string) (*primary.WorkflowStatus, error) {
	s.gotTicket = ticketID
	if s.statusErr != nil {
		return nil, s.statusErr
	}
	return s.status, nil
}

func (s *stubWorkflowService) GetWorkflowHistory(ctx context.Context, limit int) ([]*primary.Workflow, error) {
	s.gotLimit = limit
	return s.history, nil
}

type stubProgressService struct {
	entries []*primary.ProgressView

	gotTicket string
	gotLimit  int
}

func (s *stubProgressService) Latest(ctx context.Context, ticketID string) (*primary.ProgressView, error) {
	return nil, nil
}

func (s *stubProgressService) History(ctx context.Context, ticketID string, limit int) ([]*primary.ProgressView, error) {
	s.gotTicket = ticketID
	s.gotLimit = limit
	return s.entries, nil
}

func (s *stubProgressService) Follow(ctx context.Context, ticketID string) (<-chan *primary.ProgressView, func(), error) {
	return nil, nil, errors.New("not supported")
}

type stubCacheService struct {
	stats primary.CacheStats
}

func (s *stubCacheService) Stats(ctx context.Context) (*primary.CacheStats, error) {
	return &s.stats, nil
}

func (s *stubCacheService) Entries(ctx context.Context, limit int) ([]*primary.CacheEntryView, error) {
	return nil, nil
}

func (s *stubCacheService) Prune(ctx context.Context) (int, error) { return 0, nil }

func (s *stubCacheService) Clear(ctx context.Context) (int, error) { return 0, nil }

func (s *stubCacheService) FindSimilar(ctx context.Context, ticketID string, limit int) ([]*primary.SimilarEntry, error) {
	return nil, nil
}

type testAPI struct {
	handler   http.Handler
	workflows *stubWorkflowService
	progress  *stubProgressService
	cache     *stubCacheService
}

func newTestAPI() *testAPI {
	api := &testAPI{
		workflows: &stubWorkflowService{},
		progress:  &stubProgressService{},
		cache:     &stubCacheService{},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	api.handler = NewRouter(api.workflows, api.progress, api.cache, logger)
	return api
}

func (api *testAPI) get(t *testing.T, path string) *httptest.ResponseRecorder {
	t.Helper()
	request := httptest.NewRequest(http.MethodGet, path, nil)
	response := httptest.NewRecorder()
	api.handler.ServeHTTP(response, request)
	return response
}

func TestHealthz(t *testing.T) {
	api := newTestAPI()

	response := api.get(t, "/healthz")
	if response.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", response.Code, response.Body.String())
	}

	var payload map[string]string
	if err := json.Unmarshal(response.Body.Bytes(), &payload); err != nil {
		t.Fatalf("unmarshal health: %v", err)
	}
	if payload["status"] != "ok" {
		t.Errorf("expected status ok, got %q", payload["status"])
	}
}

func TestListWorkflows(t *testing.T) {
	api := newTestAPI()
	api.workflows.history = []*primary.Workflow{
		{TicketID: "PROJ-2", Phase: "completed", State: "completed"},
		{TicketID: "PROJ-1", Phase: "waiting_approval", State: "waiting_input"},
	}

	response := api.get(t, "/api/workflows?limit=5")
	if response.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", response.Code, response.Body.String())
	}
	if api.workflows.gotLimit != 5 {
		t.Errorf("expected limit 5 passed through, got %d", api.workflows.gotLimit)
	}

	var payload []struct {
		TicketID string `json:"ticket_id"`
		Phase    string `json:"phase"`
	}
	if err := json.Unmarshal(response.Body.Bytes(), &payload); err != nil {
		t.Fatalf("unmarshal workflows: %v", err)
	}
	if len(payload) != 2 {
		t.Fatalf("expected 2 workflows, got %d", len(payload))
	}
	if payload[0].TicketID != "PROJ-2" || payload[0].Phase != "completed" {
		t.Errorf("unexpected first workflow: %+v", payload[0])
	}
}

func TestGetWorkflow(t *testing.T) {
	api := newTestAPI()
	passed := true
	api.workflows.status = &primary.WorkflowStatus{
		TicketID: "PROJ-1",
		Workflow: &primary.Workflow{
			TicketID:      "PROJ-1",
			Title:         "Fix login redirect",
			Phase:         "completed",
			State:         "completed",
			PendingReview: false,
			Analysis:      &primary.AnalysisSummary{Summary: "add a null check", FromCache: true},
			Implementation: &primary.ImplementationSummary{
				Branch:      "conveyor/proj-1-fix-login-redirect",
				BuildPassed: &passed,
				CommitHash:  "abc1234",
			},
			PullRequest: &primary.PullRequestRef{Number: 42, URL: "https://example.test/pr/42"},
		},
		Progress: &primary.ProgressView{Phase: "completed", Percentage: 100},
	}

	response := api.get(t, "/api/workflows/PROJ-1")
	if response.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", response.Code, response.Body.String())
	}
	if got := response.Header().Get("Content-Type"); got != "application/json" {
		t.Errorf("expected application/json, got %q", got)
	}
	if api.workflows.gotTicket != "PROJ-1" {
		t.Errorf("expected ticket PROJ-1 passed through, got %q", api.workflows.gotTicket)
	}

	var payload struct {
		TicketID string `json:"ticket_id"`
		Workflow *struct {
			Title    string `json:"title"`
			Analysis *struct {
				Summary   string `json:"summary"`
				FromCache bool   `json:"from_cache"`
			} `json:"analysis"`
			Implementation *struct {
				Branch      string `json:"branch"`
				BuildPassed *bool  `json:"build_passed"`
				TestsPassed *bool  `json:"tests_passed"`
			} `json:"implementation"`
			PullRequest *struct {
				Number int    `json:"number"`
				URL    string `json:"url"`
			} `json:"pull_request"`
		} `json:"workflow"`
		Progress *struct {
			Percentage int `json:"percentage"`
		} `json:"progress"`
	}
	if err := json.Unmarshal(response.Body.Bytes(), &payload); err != nil {
		t.Fatalf("unmarshal status: %v", err)
	}
	if payload.TicketID != "PROJ-1" {
		t.Errorf("expected ticket_id PROJ-1, got %q", payload.TicketID)
	}
	if payload.Workflow == nil || payload.Workflow.Title != "Fix login redirect" {
		t.Fatalf("unexpected workflow payload: %+v", payload.Workflow)
	}
	if payload.Workflow.Analysis == nil || !payload.Workflow.Analysis.FromCache {
		t.Errorf("expected cached analysis in payload: %+v", payload.Workflow.Analysis)
	}
	if payload.Workflow.Implementation == nil {
		t.Fatal("expected implementation in payload")
	}
	if payload.Workflow.Implementation.BuildPassed == nil || !*payload.Workflow.Implementation.BuildPassed {
		t.Errorf("expected build_passed true, got %v", payload.Workflow.Implementation.BuildPassed)
	}
	if payload.Workflow.Implementation.TestsPassed != nil {
		t.Errorf("expected tests_passed null for skipped step, got %v", *payload.Workflow.Implementation.TestsPassed)
	}
	if payload.Workflow.PullRequest == nil || payload.Workflow.PullRequest.Number != 42 {
		t.Errorf("unexpected pull request payload: %+v", payload.Workflow.PullRequest)
	}
	if payload.Progress == nil || payload.Progress.Percentage != 100 {
		t.Errorf("unexpected progress payload: %+v", payload.Progress)
	}
}

func TestGetWorkflowNotFound(t *testing.T) {
	api := newTestAPI()
	api.workflows.statusErr = fmt.Errorf("workflow PROJ-9: %w", workflow.ErrWorkflowNotFound)

	response := api.get(t, "/api/workflows/PROJ-9")
	if response.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", response.Code, response.Body.String())
	}

	var payload map[string]string
	if err := json.Unmarshal(response.Body.Bytes(), &payload); err != nil {
		t.Fatalf("unmarshal error body: %v", err)
	}
	if !strings.Contains(payload["error"], "workflow not found") {
		t.Errorf("expected not-found message, got %q", payload["error"])
	}
}

func TestGetWorkflowInternalErrorHidden(t *testing.T) {
	api := newTestAPI()
	api.workflows.statusErr = errors.New("database is locked")

	response := api.get(t, "/api/workflows/PROJ-1")
	if response.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", response.Code)
	}

	var payload map[string]string
	if err := json.Unmarshal(response.Body.Bytes(), &payload); err != nil {
		t.Fatalf("unmarshal error body: %v", err)
	}
	if payload["error"] != "internal error" {
		t.Errorf("expected internal detail hidden, got %q", payload["error"])
	}
}

func TestProgressHistory(t *testing.T) {
	api := newTestAPI()
	api.progress.entries = []*primary.ProgressView{
		{TicketID: "PROJ-1", Phase: "fetching_ticket", Percentage: 5},
		{TicketID: "PROJ-1", Phase: "analyzing_code", Percentage: 15},
	}

	response := api.get(t, "/api/workflows/PROJ-1/progress?limit=10")
	if response.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", response.Code, response.Body.String())
	}
	if api.progress.gotTicket != "PROJ-1" || api.progress.gotLimit != 10 {
		t.Errorf("expected PROJ-1/10 passed through, got %q/%d", api.progress.gotTicket, api.progress.gotLimit)
	}

	var payload []struct {
		Phase      string `json:"phase"`
		Percentage int    `json:"percentage"`
	}
	if err := json.Unmarshal(response.Body.Bytes(), &payload); err != nil {
		t.Fatalf("unmarshal progress: %v", err)
	}
	if len(payload) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(payload))
	}
	if payload[1].Phase != "analyzing_code" || payload[1].Percentage != 15 {
		t.Errorf("unexpected last entry: %+v", payload[1])
	}
}

func TestProgressHistoryEmptyIsArray(t *testing.T) {
	api := newTestAPI()

	response := api.get(t, "/api/workflows/PROJ-1/progress")
	if response.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", response.Code)
	}
	if body := strings.TrimSpace(response.Body.String()); body != "[]" {
		t.Errorf("expected empty array body, got %q", body)
	}
}

func TestCacheStatsEndpoint(t *testing.T) {
	api := newTestAPI()
	api.cache.stats = primary.CacheStats{
		Entries:      3,
		Expired:      1,
		OldestCached: "2025-06-01T08:00:00Z",
		NewestCached: "2025-06-01T09:45:00Z",
	}

	response := api.get(t, "/api/cache/stats")
	if response.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", response.Code, response.Body.String())
	}

	var payload struct {
		Entries      int    `json:"entries"`
		Expired      int    `json:"expired"`
		OldestCached string `json:"oldest_cached"`
		NewestCached string `json:"newest_cached"`
	}
	if err := json.Unmarshal(response.Body.Bytes(), &payload); err != nil {
		t.Fatalf("unmarshal stats: %v", err)
	}
	if payload.Entries != 3 || payload.Expired != 1 {
		t.Errorf("unexpected counts: %+v", payload)
	}
	if payload.NewestCached != "2025-06-01T09:45:00Z" {
		t.Errorf("unexpected newest_cached: %q", payload.NewestCached)
	}
}
