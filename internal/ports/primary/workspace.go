package primary

import "context"

// WorkspaceService defines the primary port for workspace maintenance.
type WorkspaceService interface {
	// ListScratch lists ephemeral workspaces left on disk under the
	// scratch root.
	ListScratch(ctx context.Context) ([]*ScratchView, error)

	// CleanScratch removes the scratch workspace for a ticket, or all
	// scratch workspaces when ticketID is empty. Returns how many were
	// removed.
	CleanScratch(ctx context.Context, ticketID string) (int, error)

	// OpenShell opens an interactive terminal session rooted at the
	// ticket's workspace path, creating the session if needed, and
	// returns the session name to attach to.
	OpenShell(ctx context.Context, ticketID string) (string, error)

	// CloseShell terminates the ticket's terminal session. Closing a
	// session that is not running is not an error.
	CloseShell(ctx context.Context, ticketID string) error
}

// ScratchView represents an on-disk scratch workspace.
type ScratchView struct {
	TicketID string
	Path     string
	SizeKB   int64
}
