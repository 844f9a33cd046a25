package secondary

import (
	"context"
	"time"
)

// Ticket is an external work item driving one workflow.
type Ticket struct {
	ID          string
	Title       string
	Description string
	Type        string
	Priority    string
}

// TicketTracker defines the secondary port for the issue tracker.
type TicketTracker interface {
	// GetTicket fetches a ticket by id.
	GetTicket(ctx context.Context, id string) (*Ticket, error)

	// AddComment posts a comment on a ticket.
	AddComment(ctx context.Context, id, text string) error

	// AddRemoteLink attaches an external link (e.g. a pull request) to a ticket.
	AddRemoteLink(ctx context.Context, id, url, title string) error

	// TestConnection verifies tracker connectivity and credentials.
	TestConnection(ctx context.Context) error
}

// CommitInfo describes a created commit.
type CommitInfo struct {
	Hash    string
	Message string
}

// RepoStatus describes the working tree of the active repository.
type RepoStatus struct {
	Clean        bool
	Branch       string
	ChangedFiles []string
}

// SearchHit is one match from a repository content search.
type SearchHit struct {
	File string
	Line int
	Text string
}

// VersionControl defines the secondary port for repository operations.
// Implementations operate on one active repository path at a time;
// SwitchRepository changes the target and returns a restore closure so the
// previous target always comes back, even when the bracketed work fails.
type VersionControl interface {
	Pull(ctx context.Context) error
	Checkout(ctx context.Context, branch string) error
	CreateBranch(ctx context.Context, name, base string) error
	StageAll(ctx context.Context) error
	Commit(ctx context.Context, message string) (*CommitInfo, error)
	Push(ctx context.Context, branch string) error
	GetStatus(ctx context.Context) (*RepoStatus, error)
	CloneRepository(ctx context.Context, url, path string) error
	SwitchRepository(path string) (restore func())
	DiscardChanges(ctx context.Context) error

	// Read-side operations used by the code indexer.
	SearchInFiles(ctx context.Context, term, filePattern string) ([]SearchHit, error)
	ListFiles(ctx context.Context, pattern string) ([]string, error)
	ReadFile(ctx context.Context, path string) (string, error)
}

// PullRequestRequest describes a pull request to open.
type PullRequestRequest struct {
	Title        string
	Description  string
	SourceBranch string
	TargetBranch string
	TicketID     string
}

// PullRequestInfo describes an opened pull request.
type PullRequestInfo struct {
	Number       int
	URL          string
	Title        string
	SourceBranch string
}

// PullRequestService defines the secondary port for the PR provider.
type PullRequestService interface {
	// CreatePullRequest opens a pull request.
	CreatePullRequest(ctx context.Context, req PullRequestRequest) (*PullRequestInfo, error)

	// TestConnection verifies provider connectivity and credentials.
	TestConnection(ctx context.Context) error
}

// AnalysisResult is the AI's assessment of a ticket against the codebase.
type AnalysisResult struct {
	TicketID      string    `json:"ticket_id"`
	Summary       string    `json:"summary"`
	Approach      string    `json:"approach"`
	AffectedFiles []string  `json:"affected_files"`
	Model         string    `json:"model"`
	ProducedAt    time.Time `json:"produced_at"`
	FromCache     bool      `json:"-"`
}

// FileAction is what to do with a generated file.
type FileAction string

const (
	FileActionCreate FileAction = "create"
	FileActionUpdate FileAction = "update"
	FileActionDelete FileAction = "delete"
)

// GeneratedFile is one file change produced by the AI.
type GeneratedFile struct {
	Path    string     `json:"path"`
	Action  FileAction `json:"action"`
	Content string     `json:"content"`
}

// AI defines the secondary port for the completion service.
type AI interface {
	// AnalyzeTicket produces an analysis of the ticket given compressed
	// code context.
	AnalyzeTicket(ctx context.Context, ticket *Ticket, codeContext string) (*AnalysisResult, error)

	// GenerateCode produces file changes implementing an analysis.
	GenerateCode(ctx context.Context, analysis *AnalysisResult, codeContext string) ([]GeneratedFile, error)

	// TestConnection verifies AI service connectivity and credentials.
	TestConnection(ctx context.Context) error
}

// SemanticContext is the indexer's view of the code relevant to a ticket.
type SemanticContext struct {
	RelevantFiles   []string
	RelevantSymbols []string
	StructuredText  string
}

// CodeIndexer defines the secondary port for semantic context construction.
type CodeIndexer interface {
	// BuildSemanticContext assembles the code context for a ticket from the
	// workspace at path.
	BuildSemanticContext(ctx context.Context, ticket *Ticket, workspacePath string) (*SemanticContext, error)
}

// BuildResult is the outcome of a build command.
type BuildResult struct {
	Passed bool
	Output string
}

// TestResult is the outcome of a test command.
type TestResult struct {
	Passed      bool
	FailedCount int
	Output      string
}

// BuildRunner defines the secondary port for running the configured build
// and test commands inside a workspace. A failed command is a result, not an
// error; errors mean the command could not run at all.
type BuildRunner interface {
	Build(ctx context.Context, dir string) (*BuildResult, error)
	Test(ctx context.Context, dir string) (*TestResult, error)
}
