package primary

import "context"

// CacheService defines the primary port for analysis cache maintenance.
type CacheService interface {
	// Stats summarizes the cache contents.
	Stats(ctx context.Context) (*CacheStats, error)

	// Entries lists cache entries, most recently cached first.
	Entries(ctx context.Context, limit int) ([]*CacheEntryView, error)

	// Prune removes expired entries and returns how many were removed.
	Prune(ctx context.Context) (int, error)

	// Clear removes all entries and returns how many were removed.
	Clear(ctx context.Context) (int, error)

	// FindSimilar ranks cached analyses for other tickets by keyword
	// overlap with the given ticket's text. Best matches first.
	FindSimilar(ctx context.Context, ticketID string, limit int) ([]*SimilarEntry, error)
}

// CacheStats summarizes the analysis cache.
type CacheStats struct {
	Entries      int
	Expired      int
	OldestCached string // empty when the cache is empty
	NewestCached string
}

// CacheEntryView represents a cache entry at the port boundary.
type CacheEntryView struct {
	Key            string
	TicketID       string
	ContentHash    string
	Summary        string
	CachedAt       string
	LastAccessedAt string
	ExpiresAt      string
	Expired        bool
}

// SimilarEntry is a cache entry ranked by keyword overlap.
type SimilarEntry struct {
	Entry *CacheEntryView
	Score float64
}
