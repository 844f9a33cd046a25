// Package secondary defines the secondary ports (driven adapters) for the application.
package secondary

import "context"

// Workspace is a transient, exclusively-owned checkout for one analysis or
// implementation call. Not persisted.
type Workspace struct {
	TicketID  string
	Path      string
	Ephemeral bool
}

// ScratchWorkspace describes a leftover ephemeral checkout on disk.
type ScratchWorkspace struct {
	TicketID string
	Path     string
	SizeKB   int64
}

// WorkspaceManager defines the secondary port for workspace isolation.
// Acquire hands out either the fixed local checkout or a freshly cloned
// scratch directory; Release must run exactly once per Acquire, on every
// exit path, and removes ephemeral directories from disk.
type WorkspaceManager interface {
	// Acquire provisions a workspace for a ticket.
	Acquire(ctx context.Context, ticketID string) (*Workspace, error)

	// Release cleans a workspace up. Ephemeral directories are deleted with
	// bounded retry; the fixed local checkout is left alone.
	Release(ctx context.Context, ws *Workspace) error

	// ListScratch enumerates leftover ephemeral checkouts under the scratch
	// root.
	ListScratch(ctx context.Context) ([]ScratchWorkspace, error)

	// CleanScratch removes ephemeral checkouts; an empty ticketID removes
	// all of them. Returns the number of directories removed.
	CleanScratch(ctx context.Context, ticketID string) (int, error)

	// PathFor reports where a ticket's workspace lives or would live,
	// without provisioning anything.
	PathFor(ticketID string) string
}
