// Package secondary defines the secondary ports (driven adapters) for the application.
package secondary

import "context"

// TerminalSessions defines the secondary port for debugging shells rooted at
// a workspace. Used by `conveyor workspace shell` to inspect failed runs.
type TerminalSessions interface {
	// SessionExists reports whether a named session is running.
	SessionExists(ctx context.Context, name string) bool

	// EnsureSession creates a detached session rooted at workingDir if one
	// with the name does not already exist.
	EnsureSession(ctx context.Context, name, workingDir string) error

	// KillSession terminates a session if it exists.
	KillSession(ctx context.Context, name string) error
}
