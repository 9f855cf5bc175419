package sqlite

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"
)

// GetCachedDocument looks up previously extracted text for a URL and
// bumps the hit counter on a hit.
func (s *SQLiteStorage) GetCachedDocument(ctx context.Context, url string) (string, int, bool, error) {
	hash := urlHash(url)

	var text string
	var pages int
	err := s.db.QueryRowContext(ctx, `
		SELECT text, pages FROM document_cache WHERE url_hash = ?
	`, hash).Scan(&text, &pages)
	if errors.Is(err, sql.ErrNoRows) {
		return "", 0, false, nil
	}
	if err != nil {
		return "", 0, false, fmt.Errorf("failed to read document cache: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, `
		UPDATE document_cache SET hit_count = hit_count + 1, last_accessed = ? WHERE url_hash = ?
	`, time.Now().UTC(), hash); err != nil {
		return "", 0, false, fmt.Errorf("failed to bump document cache hit: %w", err)
	}
	return text, pages, true, nil
}

// PutCachedDocument stores extracted text. Re-extraction refreshes the
// text but preserves the accumulated hit count.
func (s *SQLiteStorage) PutCachedDocument(ctx context.Context, url, text string, pages int) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO document_cache (url_hash, url, text, pages, hit_count, created_at, last_accessed)
		VALUES (?, ?, ?, ?, 0, ?, ?)
		ON CONFLICT(url_hash) DO UPDATE SET
			text = excluded.text,
			pages = excluded.pages,
			last_accessed = excluded.last_accessed
	`, urlHash(url), url, text, pages, now, now)
	if err != nil {
		return fmt.Errorf("failed to write document cache: %w", err)
	}
	return nil
}

func urlHash(url string) string {
	sum := sha256.Sum256([]byte(url))
	return hex.EncodeToString(sum[:])
}
