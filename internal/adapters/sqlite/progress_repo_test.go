package sqlite_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/example/conveyor/internal/adapters/sqlite"
	"github.com/example/conveyor/internal/ports/secondary"
)

func appendEntry(t *testing.T, repo *sqlite.ProgressRepository, id, ticketID, phase string, pct int) {
	t.Helper()
	err := repo.Append(context.Background(), &secondary.ProgressRecord{
		ID:         id,
		TicketID:   ticketID,
		Phase:      phase,
		State:      "running",
		Percentage: pct,
		Message:    fmt.Sprintf("%s at %d%%", phase, pct),
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		t.Fatalf("Append failed: %v", err)
	}
}

func TestProgressRepository_AppendAndLatest(t *testing.T) {
	db := setupTestDB(t)
	repo := sqlite.NewProgressRepository(db)
	ctx := context.Background()

	t.Run("latest is nil before any entries", func(t *testing.T) {
		got, err := repo.Latest(ctx, "PROJ-1")
		if err != nil {
			t.Fatalf("Latest failed: %v", err)
		}
		if got != nil {
			t.Errorf("got = %v, want nil", got)
		}
	})

	t.Run("latest returns last appended entry", func(t *testing.T) {
		// Same-second timestamps; insertion order must win
		appendEntry(t, repo, "P-1", "PROJ-1", "fetching_ticket", 5)
		appendEntry(t, repo, "P-2", "PROJ-1", "analyzing_code", 15)
		appendEntry(t, repo, "P-3", "PROJ-1", "waiting_approval", 100)

		got, err := repo.Latest(ctx, "PROJ-1")
		if err != nil {
			t.Fatalf("Latest failed: %v", err)
		}
		if got == nil {
			t.Fatal("Latest returned nil")
		}
		if got.ID != "P-3" {
			t.Errorf("ID = %q, want P-3", got.ID)
		}
		if got.Percentage != 100 {
			t.Errorf("Percentage = %d, want 100", got.Percentage)
		}
	})

	t.Run("latest is scoped per ticket", func(t *testing.T) {
		appendEntry(t, repo, "P-4", "PROJ-2", "fetching_ticket", 5)

		got, err := repo.Latest(ctx, "PROJ-2")
		if err != nil {
			t.Fatalf("Latest failed: %v", err)
		}
		if got.ID != "P-4" {
			t.Errorf("ID = %q, want P-4", got.ID)
		}
	})
}

func TestProgressRepository_ListByTicket(t *testing.T) {
	db := setupTestDB(t)
	repo := sqlite.NewProgressRepository(db)
	ctx := context.Background()

	appendEntry(t, repo, "P-1", "PROJ-1", "fetching_ticket", 5)
	appendEntry(t, repo, "P-2", "PROJ-1", "analyzing_code", 15)
	appendEntry(t, repo, "P-3", "PROJ-1", "waiting_approval", 100)
	appendEntry(t, repo, "P-4", "PROJ-2", "fetching_ticket", 5)

	t.Run("lists entries newest first", func(t *testing.T) {
		got, err := repo.ListByTicket(ctx, "PROJ-1", 0)
		if err != nil {
			t.Fatalf("ListByTicket failed: %v", err)
		}
		if len(got) != 3 {
			t.Fatalf("len = %d, want 3", len(got))
		}
		if got[0].ID != "P-3" || got[2].ID != "P-1" {
			t.Errorf("order = [%s %s %s], want [P-3 P-2 P-1]", got[0].ID, got[1].ID, got[2].ID)
		}
	})

	t.Run("limit keeps the most recent entries", func(t *testing.T) {
		got, err := repo.ListByTicket(ctx, "PROJ-1", 2)
		if err != nil {
			t.Fatalf("ListByTicket failed: %v", err)
		}
		if len(got) != 2 {
			t.Fatalf("len = %d, want 2", len(got))
		}
		if got[0].ID != "P-3" || got[1].ID != "P-2" {
			t.Errorf("order = [%s %s], want [P-3 P-2]", got[0].ID, got[1].ID)
		}
	})

	t.Run("unknown ticket yields empty list", func(t *testing.T) {
		got, err := repo.ListByTicket(ctx, "PROJ-404", 0)
		if err != nil {
			t.Fatalf("ListByTicket failed: %v", err)
		}
		if len(got) != 0 {
			t.Errorf("len = %d, want 0", len(got))
		}
	})
}
