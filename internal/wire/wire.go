// Package wire assembles the application services with their production
// adapters. Services are singletons with lazy initialization.
package wire

import (
	"context"
	"fmt"
	"sync"

	"github.com/example/conveyor/internal/adapters/filesystem"
	"github.com/example/conveyor/internal/adapters/git"
	"github.com/example/conveyor/internal/adapters/github"
	"github.com/example/conveyor/internal/adapters/indexer"
	"github.com/example/conveyor/internal/adapters/jira"
	"github.com/example/conveyor/internal/adapters/openai"
	"github.com/example/conveyor/internal/adapters/shell"
	"github.com/example/conveyor/internal/adapters/sqlite"
	"github.com/example/conveyor/internal/adapters/tmux"
	"github.com/example/conveyor/internal/app"
	"github.com/example/conveyor/internal/config"
	"github.com/example/conveyor/internal/db"
	"github.com/example/conveyor/internal/notify"
	"github.com/example/conveyor/internal/ports/primary"
	"github.com/example/conveyor/internal/ports/secondary"
)

// Container holds the wired services plus the collaborators the CLI talks
// to directly (doctor probes, progress broker shutdown).
type Container struct {
	Config       *config.Config
	Workflows    primary.WorkflowService
	Progress     primary.ProgressService
	Cache        primary.CacheService
	Workspaces   primary.WorkspaceService
	Broker       *notify.Broker
	Tracker      secondary.TicketTracker
	PullRequests secondary.PullRequestService
	AI           secondary.AI
}

var (
	container *Container
	initErr   error
	once      sync.Once
)

// Services returns the singleton container, wiring it on first use.
func Services() (*Container, error) {
	once.Do(initServices)
	return container, initErr
}

func initServices() {
	cfg, err := config.LoadOrDefault()
	if err != nil {
		initErr = fmt.Errorf("load config: %w", err)
		return
	}

	scratchRoot, err := cfg.ScratchRoot()
	if err != nil {
		initErr = err
		return
	}

	database, err := db.GetDB()
	if err != nil {
		initErr = fmt.Errorf("open database: %w", err)
		return
	}

	workflowRepo := sqlite.NewWorkflowRepository(database)
	cacheRepo := sqlite.NewAnalysisCacheRepository(database)
	progressRepo := sqlite.NewProgressRepository(database)
	broker := notify.NewBroker(0)

	tracker := jira.NewClient(cfg.Tracker.BaseURL, cfg.Tracker.Email, cfg.Tracker.APIToken)
	vcs := git.NewClient(cfg.Repository.LocalPath)
	prs := github.NewClient(cfg.PullRequests.APIBaseURL, cfg.PullRequests.Token, cfg.PullRequests.Owner, cfg.PullRequests.Repo)
	ai := openai.NewClient(cfg.AI.APIKey, cfg.AI.Model, cfg.AI.MaxTokens)
	codeIndexer := indexer.NewIndexer(vcs)
	runner := shell.NewRunner(cfg.Pipeline.BuildCommand, cfg.Pipeline.TestCommand)
	workspaces := filesystem.NewWorkspaceManager(cfg.Repository.URL, cfg.Repository.LocalPath, scratchRoot, vcs)

	container = &Container{
		Config: cfg,
		Workflows: app.NewWorkflowService(
			workflowRepo, cacheRepo, progressRepo, broker,
			tracker, vcs, prs, ai, codeIndexer, runner, workspaces,
			cfg,
		),
		Progress:     app.NewProgressService(progressRepo, broker),
		Cache:        app.NewCacheService(cacheRepo, tracker),
		Workspaces:   app.NewWorkspaceService(workspaces, terminalSessions()),
		Broker:       broker,
		Tracker:      tracker,
		PullRequests: prs,
		AI:           ai,
	}
}

// Close releases shared resources. Safe to call when wiring never ran.
func Close() error {
	if container != nil && container.Broker != nil {
		container.Broker.Close()
	}
	return db.Close()
}

// terminalSessions returns the tmux-backed session manager, or a stub that
// surfaces the probe error on use when tmux is not installed. Only the
// workspace shell command needs tmux.
func terminalSessions() secondary.TerminalSessions {
	sessions, err := tmux.NewSessions()
	if err != nil {
		return unavailableSessions{err: err}
	}
	return sessions
}

type unavailableSessions struct {
	err error
}

func (u unavailableSessions) SessionExists(ctx context.Context, name string) bool { return false }

func (u unavailableSessions) EnsureSession(ctx context.Context, name, workingDir string) error {
	return u.err
}

func (u unavailableSessions) KillSession(ctx context.Context, name string) error { return u.err }
