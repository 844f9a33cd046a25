package sqlite_test

import (
	"context"
	"testing"
	"time"

	"github.com/example/conveyor/internal/adapters/sqlite"
)

func TestAnalysisCacheRepository_PutGet(t *testing.T) {
	db := setupTestDB(t)
	repo := sqlite.NewAnalysisCacheRepository(db)
	ctx := context.Background()

	t.Run("round-trips an entry", func(t *testing.T) {
		entry := cacheRecord("PROJ-1", "abc123")
		if err := repo.Put(ctx, entry); err != nil {
			t.Fatalf("Put failed: %v", err)
		}

		got, err := repo.Get(ctx, "PROJ-1_abc123")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if got == nil {
			t.Fatal("Get returned nil for existing entry")
		}
		if got.TicketID != "PROJ-1" {
			t.Errorf("TicketID = %q, want %q", got.TicketID, "PROJ-1")
		}
		if got.PayloadJSON != entry.PayloadJSON {
			t.Errorf("PayloadJSON = %q, want %q", got.PayloadJSON, entry.PayloadJSON)
		}
	})

	t.Run("miss returns nil without error", func(t *testing.T) {
		got, err := repo.Get(ctx, "PROJ-404_nothere")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if got != nil {
			t.Errorf("got = %v, want nil", got)
		}
	})

	t.Run("entry without expiry round-trips as empty string", func(t *testing.T) {
		entry := cacheRecord("PROJ-9", "noexp")
		entry.ExpiresAt = ""
		if err := repo.Put(ctx, entry); err != nil {
			t.Fatalf("Put failed: %v", err)
		}

		got, err := repo.Get(ctx, entry.Key)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if got.ExpiresAt != "" {
			t.Errorf("ExpiresAt = %q, want empty", got.ExpiresAt)
		}
	})

	t.Run("put replaces existing entry", func(t *testing.T) {
		entry := cacheRecord("PROJ-1", "abc123")
		entry.PayloadJSON = `{"ticket_id":"PROJ-1","summary":"revised"}`
		if err := repo.Put(ctx, entry); err != nil {
			t.Fatalf("Put failed: %v", err)
		}

		got, err := repo.Get(ctx, "PROJ-1_abc123")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if got.PayloadJSON != entry.PayloadJSON {
			t.Errorf("PayloadJSON = %q, want replacement", got.PayloadJSON)
		}
	})
}

func TestAnalysisCacheRepository_Touch(t *testing.T) {
	db := setupTestDB(t)
	repo := sqlite.NewAnalysisCacheRepository(db)
	ctx := context.Background()

	entry := cacheRecord("PROJ-2", "def456")
	if err := repo.Put(ctx, entry); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	accessed := time.Now().UTC().Add(2 * time.Hour).Format(time.RFC3339)
	if err := repo.Touch(ctx, entry.Key, accessed); err != nil {
		t.Fatalf("Touch failed: %v", err)
	}

	got, err := repo.Get(ctx, entry.Key)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.LastAccessedAt != accessed {
		t.Errorf("LastAccessedAt = %q, want %q", got.LastAccessedAt, accessed)
	}
	if got.CachedAt != entry.CachedAt {
		t.Errorf("CachedAt = %q changed by Touch", got.CachedAt)
	}
}

func TestAnalysisCacheRepository_Delete(t *testing.T) {
	db := setupTestDB(t)
	repo := sqlite.NewAnalysisCacheRepository(db)
	ctx := context.Background()

	entry := cacheRecord("PROJ-3", "ghi789")
	if err := repo.Put(ctx, entry); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	if err := repo.Delete(ctx, entry.Key); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	got, err := repo.Get(ctx, entry.Key)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got != nil {
		t.Error("entry still present after Delete")
	}

	// Deleting again is not an error
	if err := repo.Delete(ctx, entry.Key); err != nil {
		t.Errorf("second Delete failed: %v", err)
	}
}

func TestAnalysisCacheRepository_DeleteExpired(t *testing.T) {
	db := setupTestDB(t)
	repo := sqlite.NewAnalysisCacheRepository(db)
	ctx := context.Background()

	now := time.Now().UTC()

	expired := cacheRecord("PROJ-4", "old")
	expired.ExpiresAt = now.Add(-time.Hour).Format(time.RFC3339)
	if err := repo.Put(ctx, expired); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	fresh := cacheRecord("PROJ-5", "new")
	if err := repo.Put(ctx, fresh); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	forever := cacheRecord("PROJ-5", "forever")
	forever.ExpiresAt = ""
	if err := repo.Put(ctx, forever); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	removed, err := repo.DeleteExpired(ctx, now.Format(time.RFC3339))
	if err != nil {
		t.Fatalf("DeleteExpired failed: %v", err)
	}
	if removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}

	for _, key := range []string{fresh.Key, forever.Key} {
		got, err := repo.Get(ctx, key)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if got == nil {
			t.Errorf("entry %s removed by DeleteExpired", key)
		}
	}
}

func TestAnalysisCacheRepository_Clear(t *testing.T) {
	db := setupTestDB(t)
	repo := sqlite.NewAnalysisCacheRepository(db)
	ctx := context.Background()

	for _, hash := range []string{"h1", "h2", "h3"} {
		if err := repo.Put(ctx, cacheRecord("PROJ-6", hash)); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
	}

	removed, err := repo.Clear(ctx)
	if err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if removed != 3 {
		t.Errorf("removed = %d, want 3", removed)
	}

	entries, err := repo.List(ctx, 0)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("len = %d, want 0 after Clear", len(entries))
	}
}

func TestAnalysisCacheRepository_List(t *testing.T) {
	db := setupTestDB(t)
	repo := sqlite.NewAnalysisCacheRepository(db)
	ctx := context.Background()

	older := cacheRecord("PROJ-7", "h1")
	older.CachedAt = time.Now().UTC().Add(-time.Hour).Format(time.RFC3339)
	if err := repo.Put(ctx, older); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	newer := cacheRecord("PROJ-8", "h2")
	if err := repo.Put(ctx, newer); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	entries, err := repo.List(ctx, 0)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("len = %d, want 2", len(entries))
	}
	if entries[0].TicketID != "PROJ-8" {
		t.Errorf("first entry = %s, want most recently cached", entries[0].TicketID)
	}

	limited, err := repo.List(ctx, 1)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(limited) != 1 {
		t.Errorf("len = %d, want 1", len(limited))
	}
}
