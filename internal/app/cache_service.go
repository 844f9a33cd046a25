package app

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/example/conveyor/internal/core/analysis"
	"github.com/example/conveyor/internal/ports/primary"
	"github.com/example/conveyor/internal/ports/secondary"
)

// CacheServiceImpl implements the primary CacheService port for inspection
// and maintenance of the analysis cache.
type CacheServiceImpl struct {
	cacheRepo secondary.AnalysisCacheRepository
	tracker   secondary.TicketTracker
	now       func() time.Time
}

// NewCacheService creates a CacheService.
func NewCacheService(cacheRepo secondary.AnalysisCacheRepository, tracker secondary.TicketTracker) *CacheServiceImpl {
	return &CacheServiceImpl{
		cacheRepo: cacheRepo,
		tracker:   tracker,
		now:       time.Now,
	}
}

// Stats summarizes the cache contents.
func (s *CacheServiceImpl) Stats(ctx context.Context) (*primary.CacheStats, error) {
	records, err := s.cacheRepo.List(ctx, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to list cache entries: %w", err)
	}

	stats := &primary.CacheStats{Entries: len(records)}
	now := s.timestamp()
	for _, rec := range records {
		if entryExpired(rec, now) {
			stats.Expired++
		}
	}
	if len(records) > 0 {
		stats.NewestCached = records[0].CachedAt
		stats.OldestCached = records[len(records)-1].CachedAt
	}
	return stats, nil
}

// Entries lists cache entries, most recently cached first.
func (s *CacheServiceImpl) Entries(ctx context.Context, limit int) ([]*primary.CacheEntryView, error) {
	records, err := s.cacheRepo.List(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list cache entries: %w", err)
	}
	now := s.timestamp()
	views := make([]*primary.CacheEntryView, len(records))
	for i, rec := range records {
		views[i] = cacheEntryToView(rec, now)
	}
	return views, nil
}

// Prune removes expired entries.
func (s *CacheServiceImpl) Prune(ctx context.Context) (int, error) {
	removed, err := s.cacheRepo.DeleteExpired(ctx, s.timestamp())
	if err != nil {
		return 0, fmt.Errorf("failed to prune cache: %w", err)
	}
	return removed, nil
}

// Clear removes all entries.
func (s *CacheServiceImpl) Clear(ctx context.Context) (int, error) {
	removed, err := s.cacheRepo.Clear(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to clear cache: %w", err)
	}
	return removed, nil
}

// FindSimilar ranks cached analyses for other tickets by keyword overlap
// between the given ticket's text and each entry's affected files. A
// heuristic for spotting related past work; zero-score entries are dropped.
func (s *CacheServiceImpl) FindSimilar(ctx context.Context, ticketID string, limit int) ([]*primary.SimilarEntry, error) {
	ticket, err := s.tracker.GetTicket(ctx, ticketID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch ticket %s: %w", ticketID, err)
	}
	keywords := analysis.Keywords(ticket.Title + " " + ticket.Description)

	records, err := s.cacheRepo.List(ctx, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to list cache entries: %w", err)
	}

	var candidates []*secondary.AnalysisCacheRecord
	var candidateSets [][]string
	for _, rec := range records {
		if rec.TicketID == ticketID {
			continue
		}
		var payload secondary.AnalysisResult
		if err := json.Unmarshal([]byte(rec.PayloadJSON), &payload); err != nil {
			continue
		}
		candidates = append(candidates, rec)
		candidateSets = append(candidateSets, payload.AffectedFiles)
	}

	ranked := analysis.RankByOverlap(keywords, candidateSets)
	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}

	now := s.timestamp()
	matches := make([]*primary.SimilarEntry, len(ranked))
	for i, r := range ranked {
		matches[i] = &primary.SimilarEntry{
			Entry: cacheEntryToView(candidates[r.Index], now),
			Score: r.Score,
		}
	}
	return matches, nil
}

func (s *CacheServiceImpl) timestamp() string {
	return s.now().UTC().Format(time.RFC3339)
}

// cacheEntryToView maps a stored entry to the port view, pulling the summary
// out of the payload when it parses.
func cacheEntryToView(rec *secondary.AnalysisCacheRecord, now string) *primary.CacheEntryView {
	view := &primary.CacheEntryView{
		Key:            rec.Key,
		TicketID:       rec.TicketID,
		ContentHash:    rec.ContentHash,
		CachedAt:       rec.CachedAt,
		LastAccessedAt: rec.LastAccessedAt,
		ExpiresAt:      rec.ExpiresAt,
		Expired:        entryExpired(rec, now),
	}
	var payload secondary.AnalysisResult
	if err := json.Unmarshal([]byte(rec.PayloadJSON), &payload); err == nil {
		view.Summary = payload.Summary
	}
	return view
}

// entryExpired reports whether an entry's expiry has passed. Timestamps are
// RFC 3339 UTC, so string comparison is chronological.
func entryExpired(rec *secondary.AnalysisCacheRecord, now string) bool {
	return rec.ExpiresAt != "" && rec.ExpiresAt <= now
}

var _ primary.CacheService = (*CacheServiceImpl)(nil)
