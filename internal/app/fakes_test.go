package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/example/conveyor/internal/config"
	"github.com/example/conveyor/internal/core/workflow"
	"github.com/example/conveyor/internal/ports/secondary"
)

// testNow is the fixed clock used by app tests.
var testNow = time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

// fakeWorkflowRepo keeps records in memory, storing copies the way a real
// database would.
type fakeWorkflowRepo struct {
	mu        sync.Mutex
	records   map[string]*secondary.WorkflowRecord
	creates   int
	updates   int
	createErr error
	updateErr error
}

func newFakeWorkflowRepo() *fakeWorkflowRepo {
	return &fakeWorkflowRepo{records: make(map[string]*secondary.WorkflowRecord)}
}

func (r *fakeWorkflowRepo) Create(ctx context.Context, record *secondary.WorkflowRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	if _, ok := r.records[record.TicketID]; ok {
		return fmt.Errorf("workflow %s already exists", record.TicketID)
	}
	r.creates++
	r.records[record.TicketID] = cloneRecord(record)
	return nil
}

func (r *fakeWorkflowRepo) GetByTicketID(ctx context.Context, ticketID string) (*secondary.WorkflowRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[ticketID]
	if !ok {
		return nil, fmt.Errorf("workflow %s: %w", ticketID, workflow.ErrWorkflowNotFound)
	}
	return cloneRecord(rec), nil
}

func (r *fakeWorkflowRepo) Update(ctx context.Context, record *secondary.WorkflowRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.updateErr != nil {
		return r.updateErr
	}
	if _, ok := r.records[record.TicketID]; !ok {
		return fmt.Errorf("workflow %s: %w", record.TicketID, workflow.ErrWorkflowNotFound)
	}
	r.updates++
	r.records[record.TicketID] = cloneRecord(record)
	return nil
}

func (r *fakeWorkflowRepo) List(ctx context.Context, limit int) ([]*secondary.WorkflowRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*secondary.WorkflowRecord
	for _, rec := range r.records {
		out = append(out, cloneRecord(rec))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UpdatedAt != out[j].UpdatedAt {
			return out[i].UpdatedAt > out[j].UpdatedAt
		}
		return out[i].TicketID > out[j].TicketID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// stored returns the persisted copy of a record for assertions.
func (r *fakeWorkflowRepo) stored(ticketID string) *secondary.WorkflowRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[ticketID]
	if !ok {
		return nil
	}
	return cloneRecord(rec)
}

// fakeCacheRepo keeps cache entries in memory.
type fakeCacheRepo struct {
	mu      sync.Mutex
	entries map[string]*secondary.AnalysisCacheRecord
	puts    int
	touches int
	deletes int
	putErr  error
	getErr  error
}

func newFakeCacheRepo() *fakeCacheRepo {
	return &fakeCacheRepo{entries: make(map[string]*secondary.AnalysisCacheRecord)}
}

func (r *fakeCacheRepo) Put(ctx context.Context, record *secondary.AnalysisCacheRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.putErr != nil {
		return r.putErr
	}
	r.puts++
	copied := *record
	r.entries[record.Key] = &copied
	return nil
}

func (r *fakeCacheRepo) Get(ctx context.Context, key string) (*secondary.AnalysisCacheRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.getErr != nil {
		return nil, r.getErr
	}
	rec, ok := r.entries[key]
	if !ok {
		return nil, nil
	}
	copied := *rec
	return &copied, nil
}

func (r *fakeCacheRepo) Touch(ctx context.Context, key string, accessedAt string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec, ok := r.entries[key]; ok {
		rec.LastAccessedAt = accessedAt
		r.touches++
	}
	return nil
}

func (r *fakeCacheRepo) Delete(ctx context.Context, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[key]; ok {
		delete(r.entries, key)
		r.deletes++
	}
	return nil
}

func (r *fakeCacheRepo) List(ctx context.Context, limit int) ([]*secondary.AnalysisCacheRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*secondary.AnalysisCacheRecord
	for _, rec := range r.entries {
		copied := *rec
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CachedAt != out[j].CachedAt {
			return out[i].CachedAt > out[j].CachedAt
		}
		return out[i].Key > out[j].Key
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeCacheRepo) DeleteExpired(ctx context.Context, now string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	removed := 0
	for key, rec := range r.entries {
		if rec.ExpiresAt != "" && rec.ExpiresAt <= now {
			delete(r.entries, key)
			removed++
		}
	}
	return removed, nil
}

func (r *fakeCacheRepo) Clear(ctx context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	removed := len(r.entries)
	r.entries = make(map[string]*secondary.AnalysisCacheRecord)
	return removed, nil
}

// fakeProgressRepo is an append-only progress log in memory.
type fakeProgressRepo struct {
	mu        sync.Mutex
	entries   []*secondary.ProgressRecord
	appendErr error
}

func (r *fakeProgressRepo) Append(ctx context.Context, record *secondary.ProgressRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.appendErr != nil {
		return r.appendErr
	}
	copied := *record
	r.entries = append(r.entries, &copied)
	return nil
}

func (r *fakeProgressRepo) Latest(ctx context.Context, ticketID string) (*secondary.ProgressRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.entries) - 1; i >= 0; i-- {
		if r.entries[i].TicketID == ticketID {
			copied := *r.entries[i]
			return &copied, nil
		}
	}
	return nil, nil
}

func (r *fakeProgressRepo) ListByTicket(ctx context.Context, ticketID string, limit int) ([]*secondary.ProgressRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*secondary.ProgressRecord
	for i := len(r.entries) - 1; i >= 0; i-- {
		if r.entries[i].TicketID != ticketID {
			continue
		}
		copied := *r.entries[i]
		out = append(out, &copied)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// forTicket returns the appended entries for a ticket, oldest first.
func (r *fakeProgressRepo) forTicket(ticketID string) []*secondary.ProgressRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*secondary.ProgressRecord
	for _, entry := range r.entries {
		if entry.TicketID == ticketID {
			copied := *entry
			out = append(out, &copied)
		}
	}
	return out
}

// fakeNotifier records published entries.
type fakeNotifier struct {
	mu        sync.Mutex
	published []*secondary.ProgressRecord
}

func (n *fakeNotifier) Publish(entry *secondary.ProgressRecord) {
	n.mu.Lock()
	defer n.mu.Unlock()
	copied := *entry
	n.published = append(n.published, &copied)
}

func (n *fakeNotifier) Subscribe(ticketID string) (<-chan *secondary.ProgressRecord, func()) {
	ch := make(chan *secondary.ProgressRecord)
	close(ch)
	return ch, func() {}
}

// fakeTracker serves tickets from a map and records writes.
type fakeTracker struct {
	mu         sync.Mutex
	tickets    map[string]*secondary.Ticket
	getCalls   int
	comments   []string
	links      []string
	getErr     error
	commentErr error
}

func newFakeTracker() *fakeTracker {
	return &fakeTracker{tickets: make(map[string]*secondary.Ticket)}
}

func (t *fakeTracker) GetTicket(ctx context.Context, id string) (*secondary.Ticket, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.getCalls++
	if t.getErr != nil {
		return nil, t.getErr
	}
	ticket, ok := t.tickets[id]
	if !ok {
		return nil, fmt.Errorf("ticket %s not found", id)
	}
	copied := *ticket
	return &copied, nil
}

func (t *fakeTracker) AddComment(ctx context.Context, id, text string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.commentErr != nil {
		return t.commentErr
	}
	t.comments = append(t.comments, id+": "+text)
	return nil
}

func (t *fakeTracker) AddRemoteLink(ctx context.Context, id, url, title string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.links = append(t.links, id+": "+url)
	return nil
}

func (t *fakeTracker) TestConnection(ctx context.Context) error { return nil }

// fakeVCS records repository operations in order. The working tree reports
// dirty unless a test marks it clean.
type fakeVCS struct {
	mu        sync.Mutex
	ops       []string
	switched  []string
	restored  int
	clean     bool
	branchErr error
	commitErr error
	pushErr   error
	pullErr   error
}

func (v *fakeVCS) record(op string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.ops = append(v.ops, op)
}

func (v *fakeVCS) operations() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]string(nil), v.ops...)
}

func (v *fakeVCS) Pull(ctx context.Context) error {
	if v.pullErr != nil {
		return v.pullErr
	}
	v.record("pull")
	return nil
}

func (v *fakeVCS) Checkout(ctx context.Context, branch string) error {
	v.record("checkout " + branch)
	return nil
}

func (v *fakeVCS) CreateBranch(ctx context.Context, name, base string) error {
	if v.branchErr != nil {
		return v.branchErr
	}
	v.record("branch " + name + " from " + base)
	return nil
}

func (v *fakeVCS) StageAll(ctx context.Context) error { v.record("stage"); return nil }

func (v *fakeVCS) Commit(ctx context.Context, message string) (*secondary.CommitInfo, error) {
	if v.commitErr != nil {
		return nil, v.commitErr
	}
	v.record("commit " + message)
	return &secondary.CommitInfo{Hash: "abc1234", Message: message}, nil
}

func (v *fakeVCS) Push(ctx context.Context, branch string) error {
	if v.pushErr != nil {
		return v.pushErr
	}
	v.record("push " + branch)
	return nil
}

func (v *fakeVCS) GetStatus(ctx context.Context) (*secondary.RepoStatus, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return &secondary.RepoStatus{Clean: v.clean, Branch: "main"}, nil
}

func (v *fakeVCS) CloneRepository(ctx context.Context, url, path string) error {
	v.record("clone " + url)
	return nil
}

func (v *fakeVCS) SwitchRepository(path string) func() {
	v.mu.Lock()
	v.switched = append(v.switched, path)
	v.mu.Unlock()
	return func() {
		v.mu.Lock()
		v.restored++
		v.mu.Unlock()
	}
}

func (v *fakeVCS) DiscardChanges(ctx context.Context) error { v.record("discard"); return nil }

func (v *fakeVCS) SearchInFiles(ctx context.Context, term, filePattern string) ([]secondary.SearchHit, error) {
	return nil, nil
}

func (v *fakeVCS) ListFiles(ctx context.Context, pattern string) ([]string, error) { return nil, nil }

func (v *fakeVCS) ReadFile(ctx context.Context, path string) (string, error) { return "", nil }

// fakePRService captures the pull request it was asked to open.
type fakePRService struct {
	mu        sync.Mutex
	calls     int
	lastReq   secondary.PullRequestRequest
	createErr error
}

func (p *fakePRService) CreatePullRequest(ctx context.Context, req secondary.PullRequestRequest) (*secondary.PullRequestInfo, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.createErr != nil {
		return nil, p.createErr
	}
	p.calls++
	p.lastReq = req
	return &secondary.PullRequestInfo{
		Number:       42,
		URL:          "https://example.test/pr/42",
		Title:        req.Title,
		SourceBranch: req.SourceBranch,
	}, nil
}

func (p *fakePRService) TestConnection(ctx context.Context) error { return nil }

// fakeAI returns canned analysis and generation results.
type fakeAI struct {
	mu           sync.Mutex
	analyzeCalls int
	generates    int
	contexts     []string
	result       *secondary.AnalysisResult
	files        []secondary.GeneratedFile
	analyzeErr   error
	generateErr  error
	analyzeFn    func(ctx context.Context) (*secondary.AnalysisResult, error)
}

func (a *fakeAI) AnalyzeTicket(ctx context.Context, ticket *secondary.Ticket, codeContext string) (*secondary.AnalysisResult, error) {
	a.mu.Lock()
	a.analyzeCalls++
	a.contexts = append(a.contexts, codeContext)
	fn := a.analyzeFn
	a.mu.Unlock()
	if fn != nil {
		return fn(ctx)
	}
	if a.analyzeErr != nil {
		return nil, a.analyzeErr
	}
	if a.result != nil {
		copied := *a.result
		copied.TicketID = ticket.ID
		return &copied, nil
	}
	return &secondary.AnalysisResult{
		TicketID:      ticket.ID,
		Summary:       "summary for " + ticket.ID,
		Approach:      "approach for " + ticket.ID,
		AffectedFiles: []string{"internal/auth/login.go"},
		Model:         "gpt-4o",
		ProducedAt:    testNow,
	}, nil
}

func (a *fakeAI) GenerateCode(ctx context.Context, analysis *secondary.AnalysisResult, codeContext string) ([]secondary.GeneratedFile, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.generateErr != nil {
		return nil, a.generateErr
	}
	a.generates++
	if a.files != nil {
		return a.files, nil
	}
	return []secondary.GeneratedFile{
		{Path: "internal/auth/login.go", Action: secondary.FileActionUpdate, Content: "package auth\n"},
	}, nil
}

func (a *fakeAI) TestConnection(ctx context.Context) error { return nil }

func (a *fakeAI) analyzed() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.analyzeCalls
}

// fakeIndexer returns a canned semantic context.
type fakeIndexer struct {
	mu       sync.Mutex
	calls    int
	text     string
	buildErr error
}

func (i *fakeIndexer) BuildSemanticContext(ctx context.Context, ticket *secondary.Ticket, workspacePath string) (*secondary.SemanticContext, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.buildErr != nil {
		return nil, i.buildErr
	}
	i.calls++
	text := i.text
	if text == "" {
		text = "FILE internal/auth/login.go\nfunc Login() {}\n"
	}
	return &secondary.SemanticContext{
		RelevantFiles:  []string{"internal/auth/login.go"},
		StructuredText: text,
	}, nil
}

// fakeRunner returns canned build and test outcomes.
type fakeRunner struct {
	mu         sync.Mutex
	buildCalls int
	testCalls  int
	build      secondary.BuildResult
	test       secondary.TestResult
	buildErr   error
	testErr    error
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{
		build: secondary.BuildResult{Passed: true},
		test:  secondary.TestResult{Passed: true},
	}
}

func (r *fakeRunner) Build(ctx context.Context, dir string) (*secondary.BuildResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.buildErr != nil {
		return nil, r.buildErr
	}
	r.buildCalls++
	copied := r.build
	return &copied, nil
}

func (r *fakeRunner) Test(ctx context.Context, dir string) (*secondary.TestResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.testErr != nil {
		return nil, r.testErr
	}
	r.testCalls++
	copied := r.test
	return &copied, nil
}

// fakeWorkspaces hands out a fixed path and counts acquire/release pairs.
// Workspaces are ephemeral unless a test marks the path shared.
type fakeWorkspaces struct {
	mu         sync.Mutex
	path       string
	shared     bool
	acquires   int
	releases   int
	acquireErr error
	releaseErr error
	scratch    []secondary.ScratchWorkspace
	cleaned    []string
}

func (w *fakeWorkspaces) Acquire(ctx context.Context, ticketID string) (*secondary.Workspace, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.acquireErr != nil {
		return nil, w.acquireErr
	}
	w.acquires++
	return &secondary.Workspace{TicketID: ticketID, Path: w.path, Ephemeral: !w.shared}, nil
}

func (w *fakeWorkspaces) Release(ctx context.Context, ws *secondary.Workspace) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.releases++
	return w.releaseErr
}

func (w *fakeWorkspaces) ListScratch(ctx context.Context) ([]secondary.ScratchWorkspace, error) {
	return w.scratch, nil
}

func (w *fakeWorkspaces) CleanScratch(ctx context.Context, ticketID string) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.cleaned = append(w.cleaned, ticketID)
	if ticketID == "" {
		return len(w.scratch), nil
	}
	return 1, nil
}

func (w *fakeWorkspaces) PathFor(ticketID string) string { return w.path }

func (w *fakeWorkspaces) balance() (int, int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.acquires, w.releases
}

// fakeSessions records ensured terminal sessions.
type fakeSessions struct {
	ensured   map[string]string
	ensureErr error
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{ensured: make(map[string]string)}
}

func (s *fakeSessions) SessionExists(ctx context.Context, name string) bool {
	_, ok := s.ensured[name]
	return ok
}

func (s *fakeSessions) EnsureSession(ctx context.Context, name, workingDir string) error {
	if s.ensureErr != nil {
		return s.ensureErr
	}
	s.ensured[name] = workingDir
	return nil
}

func (s *fakeSessions) KillSession(ctx context.Context, name string) error {
	delete(s.ensured, name)
	return nil
}

// testEnv wires a WorkflowServiceImpl with fakes for every collaborator.
type testEnv struct {
	svc        *WorkflowServiceImpl
	cfg        *config.Config
	repo       *fakeWorkflowRepo
	cache      *fakeCacheRepo
	progress   *fakeProgressRepo
	notifier   *fakeNotifier
	tracker    *fakeTracker
	vcs        *fakeVCS
	prs        *fakePRService
	ai         *fakeAI
	indexer    *fakeIndexer
	runner     *fakeRunner
	workspaces *fakeWorkspaces
}

func newTestEnv(workspacePath string) *testEnv {
	cfg := config.DefaultConfig()
	cfg.Repository.URL = "https://example.test/repo.git"
	cfg.Repository.ScratchRoot = workspacePath

	env := &testEnv{
		cfg:        cfg,
		repo:       newFakeWorkflowRepo(),
		cache:      newFakeCacheRepo(),
		progress:   &fakeProgressRepo{},
		notifier:   &fakeNotifier{},
		tracker:    newFakeTracker(),
		vcs:        &fakeVCS{},
		prs:        &fakePRService{},
		ai:         &fakeAI{},
		indexer:    &fakeIndexer{},
		runner:     newFakeRunner(),
		workspaces: &fakeWorkspaces{path: workspacePath},
	}
	env.tracker.tickets["PROJ-1"] = &secondary.Ticket{
		ID:          "PROJ-1",
		Title:       "Fix login redirect",
		Description: "Users land on a 404 after login",
		Type:        "Bug",
		Priority:    "High",
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	env.svc = NewWorkflowService(
		env.repo, env.cache, env.progress, env.notifier,
		env.tracker, env.vcs, env.prs, env.ai,
		env.indexer, env.runner, env.workspaces,
		cfg,
		WithLogger(logger),
		WithClock(func() time.Time { return testNow }),
	)
	return env
}

// phaseTrail lists the distinct phases in the order they were published.
func phaseTrail(entries []*secondary.ProgressRecord) []string {
	var trail []string
	for _, entry := range entries {
		if len(trail) == 0 || trail[len(trail)-1] != entry.Phase {
			trail = append(trail, entry.Phase)
		}
	}
	return trail
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
