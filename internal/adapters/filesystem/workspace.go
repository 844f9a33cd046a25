// Package filesystem contains filesystem-based adapter implementations.
package filesystem

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/example/conveyor/internal/ports/secondary"
	"github.com/example/conveyor/internal/retry"
)

// WorkspaceManager implements secondary.WorkspaceManager.
//
// Two modes: when localPath is set every ticket shares that fixed checkout
// and Release leaves it alone; otherwise each ticket gets a clone of repoURL
// under scratchRoot/<ticketID>, reused across retries and deleted on Release.
type WorkspaceManager struct {
	repoURL     string
	localPath   string
	scratchRoot string
	vcs         secondary.VersionControl
	retryPolicy retry.Policy
}

// NewWorkspaceManager creates a workspace manager. localPath selects the
// fixed-checkout mode; scratchRoot must be set for the ephemeral mode.
func NewWorkspaceManager(repoURL, localPath, scratchRoot string, vcs secondary.VersionControl) *WorkspaceManager {
	return &WorkspaceManager{
		repoURL:     repoURL,
		localPath:   localPath,
		scratchRoot: scratchRoot,
		vcs:         vcs,
		retryPolicy: retry.DefaultPolicy(),
	}
}

// Acquire provisions a workspace for a ticket.
func (m *WorkspaceManager) Acquire(ctx context.Context, ticketID string) (*secondary.Workspace, error) {
	if m.localPath != "" {
		info, err := os.Stat(m.localPath)
		if err != nil {
			return nil, fmt.Errorf("local repository %s: %w", m.localPath, err)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("local repository %s is not a directory", m.localPath)
		}
		return &secondary.Workspace{TicketID: ticketID, Path: m.localPath}, nil
	}

	path := m.PathFor(ticketID)

	// Reuse a clone left by an earlier attempt for the same ticket
	if populated, err := dirPopulated(path); err != nil {
		return nil, err
	} else if populated {
		return &secondary.Workspace{TicketID: ticketID, Path: path, Ephemeral: true}, nil
	}

	if err := os.MkdirAll(m.scratchRoot, 0755); err != nil {
		return nil, fmt.Errorf("failed to create scratch root: %w", err)
	}

	if err := m.vcs.CloneRepository(ctx, m.repoURL, path); err != nil {
		// A half-finished clone must not be mistaken for a reusable one
		os.RemoveAll(path)
		return nil, fmt.Errorf("failed to clone repository for %s: %w", ticketID, err)
	}

	return &secondary.Workspace{TicketID: ticketID, Path: path, Ephemeral: true}, nil
}

// Release cleans a workspace up. Ephemeral directories are deleted with
// bounded retry; the fixed local checkout is left alone.
func (m *WorkspaceManager) Release(ctx context.Context, ws *secondary.Workspace) error {
	if ws == nil || !ws.Ephemeral {
		return nil
	}

	return retry.Do(ctx, m.retryPolicy, "remove workspace", func() error {
		if err := os.RemoveAll(ws.Path); err != nil {
			// Editors and indexers hold short-lived locks on checkout files
			return retry.Transient(err)
		}
		return nil
	})
}

// ListScratch enumerates leftover ephemeral checkouts under the scratch root.
func (m *WorkspaceManager) ListScratch(ctx context.Context) ([]secondary.ScratchWorkspace, error) {
	entries, err := os.ReadDir(m.scratchRoot)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read scratch root: %w", err)
	}

	var scratch []secondary.ScratchWorkspace
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		path := filepath.Join(m.scratchRoot, entry.Name())
		scratch = append(scratch, secondary.ScratchWorkspace{
			TicketID: entry.Name(),
			Path:     path,
			SizeKB:   dirSizeKB(path),
		})
	}

	return scratch, nil
}

// CleanScratch removes ephemeral checkouts; an empty ticketID removes all
// of them. Returns the number of directories removed.
func (m *WorkspaceManager) CleanScratch(ctx context.Context, ticketID string) (int, error) {
	if ticketID != "" {
		path := filepath.Join(m.scratchRoot, ticketID)
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return 0, nil
		}
		if err := os.RemoveAll(path); err != nil {
			return 0, fmt.Errorf("failed to remove scratch workspace: %w", err)
		}
		return 1, nil
	}

	scratch, err := m.ListScratch(ctx)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, ws := range scratch {
		if err := os.RemoveAll(ws.Path); err != nil {
			return removed, fmt.Errorf("failed to remove scratch workspace %s: %w", ws.TicketID, err)
		}
		removed++
	}

	return removed, nil
}

// PathFor reports where a ticket's workspace lives or would live.
func (m *WorkspaceManager) PathFor(ticketID string) string {
	if m.localPath != "" {
		return m.localPath
	}
	return filepath.Join(m.scratchRoot, ticketID)
}

// dirPopulated reports whether path is a directory with at least one entry.
func dirPopulated(path string) (bool, error) {
	entries, err := os.ReadDir(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check workspace directory: %w", err)
	}
	return len(entries) > 0, nil
}

// dirSizeKB sums file sizes under path. Best effort; unreadable files count
// as zero.
func dirSizeKB(path string) int64 {
	var bytes int64
	filepath.WalkDir(path, func(_ string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if info, err := d.Info(); err == nil {
			bytes += info.Size()
		}
		return nil
	})
	return bytes / 1024
}

// Ensure WorkspaceManager implements the interface
var _ secondary.WorkspaceManager = (*WorkspaceManager)(nil)
