package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/example/conveyor/internal/ports/secondary"
)

// AnalysisCacheRepository implements secondary.AnalysisCacheRepository with SQLite.
type AnalysisCacheRepository struct {
	db *sql.DB
}

// NewAnalysisCacheRepository creates a new SQLite analysis cache repository.
func NewAnalysisCacheRepository(db *sql.DB) *AnalysisCacheRepository {
	return &AnalysisCacheRepository{db: db}
}

// Put stores a cache entry, replacing any previous entry under the same key.
func (r *AnalysisCacheRepository) Put(ctx context.Context, entry *secondary.AnalysisCacheRecord) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO analysis_cache (key, ticket_id, content_hash, payload_json, cached_at, last_accessed_at, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.Key, entry.TicketID, entry.ContentHash, entry.PayloadJSON,
		entry.CachedAt, entry.LastAccessedAt, nullable(entry.ExpiresAt),
	)
	if err != nil {
		return fmt.Errorf("failed to put cache entry: %w", err)
	}

	return nil
}

// Get retrieves a cache entry by key. Returns nil, nil when no entry exists;
// a miss is a normal outcome, not an error.
func (r *AnalysisCacheRepository) Get(ctx context.Context, key string) (*secondary.AnalysisCacheRecord, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT key, ticket_id, content_hash, payload_json, cached_at, last_accessed_at, expires_at
		 FROM analysis_cache WHERE key = ?`,
		key,
	)

	record, err := scanCacheEntry(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cache entry: %w", err)
	}

	return record, nil
}

// Touch updates the last-accessed timestamp of an entry.
func (r *AnalysisCacheRepository) Touch(ctx context.Context, key, accessedAt string) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE analysis_cache SET last_accessed_at = ? WHERE key = ?",
		accessedAt, key,
	)
	if err != nil {
		return fmt.Errorf("failed to touch cache entry: %w", err)
	}

	return nil
}

// Delete removes a cache entry. Deleting a missing entry is not an error;
// expiry sweeps race with reads.
func (r *AnalysisCacheRepository) Delete(ctx context.Context, key string) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM analysis_cache WHERE key = ?", key)
	if err != nil {
		return fmt.Errorf("failed to delete cache entry: %w", err)
	}

	return nil
}

// List retrieves cache entries ordered by most recently cached.
func (r *AnalysisCacheRepository) List(ctx context.Context, limit int) ([]*secondary.AnalysisCacheRecord, error) {
	query := `SELECT key, ticket_id, content_hash, payload_json, cached_at, last_accessed_at, expires_at
			  FROM analysis_cache ORDER BY cached_at DESC`
	args := []any{}

	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list cache entries: %w", err)
	}
	defer rows.Close()

	var records []*secondary.AnalysisCacheRecord
	for rows.Next() {
		record, err := scanCacheEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan cache entry: %w", err)
		}
		records = append(records, record)
	}

	return records, rows.Err()
}

// DeleteExpired removes every entry whose expiry is at or before now and
// returns how many were removed. Entries without an expiry are never swept.
func (r *AnalysisCacheRepository) DeleteExpired(ctx context.Context, now string) (int, error) {
	result, err := r.db.ExecContext(ctx, "DELETE FROM analysis_cache WHERE expires_at IS NOT NULL AND expires_at <= ?", now)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired cache entries: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	return int(rowsAffected), nil
}

// Clear removes all entries and returns how many were removed.
func (r *AnalysisCacheRepository) Clear(ctx context.Context) (int, error) {
	result, err := r.db.ExecContext(ctx, "DELETE FROM analysis_cache")
	if err != nil {
		return 0, fmt.Errorf("failed to clear cache: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	return int(rowsAffected), nil
}

func scanCacheEntry(row rowScanner) (*secondary.AnalysisCacheRecord, error) {
	var (
		cachedAt, lastAccessedAt time.Time
		expiresAt                sql.NullTime
	)

	record := &secondary.AnalysisCacheRecord{}
	err := row.Scan(&record.Key, &record.TicketID, &record.ContentHash, &record.PayloadJSON,
		&cachedAt, &lastAccessedAt, &expiresAt)
	if err != nil {
		return nil, err
	}

	record.CachedAt = cachedAt.Format(time.RFC3339)
	record.LastAccessedAt = lastAccessedAt.Format(time.RFC3339)
	if expiresAt.Valid {
		record.ExpiresAt = expiresAt.Time.Format(time.RFC3339)
	}

	return record, nil
}

// Ensure AnalysisCacheRepository implements the interface
var _ secondary.AnalysisCacheRepository = (*AnalysisCacheRepository)(nil)
