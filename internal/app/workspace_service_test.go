package app

import (
	"context"
	"errors"
	"testing"

	"github.com/example/conveyor/internal/ports/secondary"
)

func TestWorkspaceService_ListScratch(t *testing.T) {
	ctx := context.Background()
	workspaces := &fakeWorkspaces{
		path: "/scratch/PROJ-1",
		scratch: []secondary.ScratchWorkspace{
			{TicketID: "PROJ-1", Path: "/scratch/PROJ-1", SizeKB: 2048},
			{TicketID: "PROJ-2", Path: "/scratch/PROJ-2", SizeKB: 512},
		},
	}
	svc := NewWorkspaceService(workspaces, newFakeSessions())

	views, err := svc.ListScratch(ctx)
	if err != nil {
		t.Fatalf("ListScratch failed: %v", err)
	}
	if len(views) != 2 {
		t.Fatalf("expected 2 workspaces, got %d", len(views))
	}
	if views[0].TicketID != "PROJ-1" || views[0].SizeKB != 2048 {
		t.Errorf("unexpected view: %+v", views[0])
	}
}

func TestWorkspaceService_CleanScratch(t *testing.T) {
	ctx := context.Background()
	workspaces := &fakeWorkspaces{
		scratch: []secondary.ScratchWorkspace{
			{TicketID: "PROJ-1", Path: "/scratch/PROJ-1"},
			{TicketID: "PROJ-2", Path: "/scratch/PROJ-2"},
		},
	}
	svc := NewWorkspaceService(workspaces, newFakeSessions())

	removed, err := svc.CleanScratch(ctx, "")
	if err != nil {
		t.Fatalf("CleanScratch failed: %v", err)
	}
	if removed != 2 {
		t.Errorf("expected 2 removed, got %d", removed)
	}
	if len(workspaces.cleaned) != 1 || workspaces.cleaned[0] != "" {
		t.Errorf("expected clean-all delegated, got %v", workspaces.cleaned)
	}
}

func TestWorkspaceService_OpenShell(t *testing.T) {
	ctx := context.Background()
	workspaces := &fakeWorkspaces{path: "/scratch/PROJ-1"}
	sessions := newFakeSessions()
	svc := NewWorkspaceService(workspaces, sessions)

	name, err := svc.OpenShell(ctx, "PROJ-1")
	if err != nil {
		t.Fatalf("OpenShell failed: %v", err)
	}
	if name != "conveyor-proj-1" {
		t.Errorf("expected session conveyor-proj-1, got %s", name)
	}
	if dir := sessions.ensured[name]; dir != "/scratch/PROJ-1" {
		t.Errorf("expected session rooted at the workspace, got %q", dir)
	}
}

func TestWorkspaceService_CloseShell(t *testing.T) {
	ctx := context.Background()
	sessions := newFakeSessions()
	svc := NewWorkspaceService(&fakeWorkspaces{path: "/scratch/PROJ-1"}, sessions)

	if _, err := svc.OpenShell(ctx, "PROJ-1"); err != nil {
		t.Fatalf("OpenShell failed: %v", err)
	}
	if err := svc.CloseShell(ctx, "PROJ-1"); err != nil {
		t.Fatalf("CloseShell failed: %v", err)
	}
	if _, ok := sessions.ensured["conveyor-proj-1"]; ok {
		t.Error("expected session killed")
	}

	// Closing again is a no-op, not an error.
	if err := svc.CloseShell(ctx, "PROJ-1"); err != nil {
		t.Fatalf("CloseShell on stopped session failed: %v", err)
	}
}

func TestWorkspaceService_OpenShellError(t *testing.T) {
	ctx := context.Background()
	sessions := newFakeSessions()
	sessions.ensureErr = errors.New("tmux not installed")
	svc := NewWorkspaceService(&fakeWorkspaces{path: "/scratch"}, sessions)

	if _, err := svc.OpenShell(ctx, "PROJ-1"); err == nil {
		t.Fatal("expected error when the session cannot start")
	}
}
