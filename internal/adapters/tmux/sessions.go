// Package tmux manages terminal sessions for workspace shells via gotmux.
package tmux

import (
	"context"
	"fmt"

	"github.com/GianlucaP106/gotmux/gotmux"

	"github.com/example/conveyor/internal/ports/secondary"
)

// Sessions implements secondary.TerminalSessions on a local tmux server.
type Sessions struct {
	tmux *gotmux.Tmux
}

// NewSessions locates the tmux binary and returns a session manager.
func NewSessions() (*Sessions, error) {
	client, err := gotmux.DefaultTmux()
	if err != nil {
		return nil, fmt.Errorf("tmux not available: %w", err)
	}
	return &Sessions{tmux: client}, nil
}

// SessionExists reports whether a session with the given name is running.
// A missing tmux server counts as no sessions.
func (s *Sessions) SessionExists(ctx context.Context, name string) bool {
	session, err := s.lookup(name)
	return err == nil && session != nil
}

// EnsureSession creates a detached session rooted at workingDir unless one
// with the same name is already running.
func (s *Sessions) EnsureSession(ctx context.Context, name, workingDir string) error {
	session, err := s.lookup(name)
	if err == nil && session != nil {
		return nil
	}

	_, err = s.tmux.NewSession(&gotmux.SessionOptions{
		Name:           name,
		StartDirectory: workingDir,
	})
	if err != nil {
		return fmt.Errorf("create session %s: %w", name, err)
	}
	return nil
}

// KillSession terminates the named session.
func (s *Sessions) KillSession(ctx context.Context, name string) error {
	session, err := s.lookup(name)
	if err != nil {
		return fmt.Errorf("list sessions: %w", err)
	}
	if session == nil {
		return fmt.Errorf("session %s not found", name)
	}
	return session.Kill()
}

// lookup returns the session by name, or nil when it is not running. An
// unreachable server is reported as an error by ListSessions.
func (s *Sessions) lookup(name string) (*gotmux.Session, error) {
	sessions, err := s.tmux.ListSessions()
	if err != nil {
		return nil, err
	}
	for _, session := range sessions {
		if session.Name == name {
			return session, nil
		}
	}
	return nil, nil
}

// AttachInstructions returns the attach hint printed after a shell session
// is created.
func AttachInstructions(name string) string {
	return fmt.Sprintf("Attach with: tmux attach -t %s (detach: Ctrl+b then d)", name)
}

var _ secondary.TerminalSessions = (*Sessions)(nil)
