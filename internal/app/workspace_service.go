package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/example/conveyor/internal/ports/primary"
	"github.com/example/conveyor/internal/ports/secondary"
)

// WorkspaceServiceImpl implements the primary WorkspaceService port for
// scratch housekeeping and debugging shells.
type WorkspaceServiceImpl struct {
	workspaces secondary.WorkspaceManager
	sessions   secondary.TerminalSessions
}

// NewWorkspaceService creates a WorkspaceService.
func NewWorkspaceService(workspaces secondary.WorkspaceManager, sessions secondary.TerminalSessions) *WorkspaceServiceImpl {
	return &WorkspaceServiceImpl{
		workspaces: workspaces,
		sessions:   sessions,
	}
}

// ListScratch enumerates leftover scratch checkouts.
func (s *WorkspaceServiceImpl) ListScratch(ctx context.Context) ([]*primary.ScratchView, error) {
	scratch, err := s.workspaces.ListScratch(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list scratch workspaces: %w", err)
	}
	views := make([]*primary.ScratchView, len(scratch))
	for i, ws := range scratch {
		views[i] = &primary.ScratchView{
			TicketID: ws.TicketID,
			Path:     ws.Path,
			SizeKB:   ws.SizeKB,
		}
	}
	return views, nil
}

// CleanScratch removes scratch checkouts; an empty ticketID removes all of
// them. Returns the number of directories removed.
func (s *WorkspaceServiceImpl) CleanScratch(ctx context.Context, ticketID string) (int, error) {
	removed, err := s.workspaces.CleanScratch(ctx, ticketID)
	if err != nil {
		return 0, fmt.Errorf("failed to clean scratch workspaces: %w", err)
	}
	return removed, nil
}

// OpenShell ensures a detached terminal session rooted at the ticket's
// workspace path and returns the session name to attach to.
func (s *WorkspaceServiceImpl) OpenShell(ctx context.Context, ticketID string) (string, error) {
	name := sessionName(ticketID)
	dir := s.workspaces.PathFor(ticketID)
	if err := s.sessions.EnsureSession(ctx, name, dir); err != nil {
		return "", fmt.Errorf("failed to open shell session %s: %w", name, err)
	}
	return name, nil
}

// CloseShell terminates the ticket's terminal session if one is running.
func (s *WorkspaceServiceImpl) CloseShell(ctx context.Context, ticketID string) error {
	name := sessionName(ticketID)
	if !s.sessions.SessionExists(ctx, name) {
		return nil
	}
	if err := s.sessions.KillSession(ctx, name); err != nil {
		return fmt.Errorf("failed to close shell session %s: %w", name, err)
	}
	return nil
}

// sessionName builds the terminal session name for a ticket.
func sessionName(ticketID string) string {
	return "conveyor-" + strings.ToLower(ticketID)
}

var _ primary.WorkspaceService = (*WorkspaceServiceImpl)(nil)
