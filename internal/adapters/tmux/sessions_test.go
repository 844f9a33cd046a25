package tmux

import (
	"context"
	"os/exec"
	"strings"
	"testing"
)

func requireTmux(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("tmux"); err != nil {
		t.Skip("tmux binary not installed")
	}
}

func TestNewSessions(t *testing.T) {
	requireTmux(t)

	sessions, err := NewSessions()
	if err != nil {
		t.Fatalf("NewSessions failed: %v", err)
	}
	if sessions == nil || sessions.tmux == nil {
		t.Fatal("expected a usable session manager")
	}
}

func TestSessionExistsUnknownName(t *testing.T) {
	requireTmux(t)

	sessions, err := NewSessions()
	if err != nil {
		t.Fatalf("NewSessions failed: %v", err)
	}

	if sessions.SessionExists(context.Background(), "conveyor-does-not-exist-48151") {
		t.Error("expected false for a session that was never created")
	}
}

func TestKillSessionUnknownName(t *testing.T) {
	requireTmux(t)

	sessions, err := NewSessions()
	if err != nil {
		t.Fatalf("NewSessions failed: %v", err)
	}

	err = sessions.KillSession(context.Background(), "conveyor-does-not-exist-48151")
	if err == nil {
		t.Error("expected an error killing a session that does not exist")
	}
}

func TestAttachInstructions(t *testing.T) {
	got := AttachInstructions("conveyor-proj-1")
	if !strings.Contains(got, "tmux attach -t conveyor-proj-1") {
		t.Errorf("expected attach command in instructions, got %q", got)
	}
}
