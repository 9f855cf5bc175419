package sqlite

import (
	"context"
	"fmt"

	"github.com/engagic/engagic/internal/storage"
)

// Stats produces the read-only corpus snapshot for operators.
func (s *SQLiteStorage) Stats(ctx context.Context) (*storage.CorpusStats, error) {
	stats := &storage.CorpusStats{}

	counts := []struct {
		query string
		dest  *int
	}{
		{`SELECT COUNT(*) FROM cities`, &stats.Cities},
		{`SELECT COUNT(*) FROM meetings`, &stats.Meetings},
		{`SELECT COUNT(*) FROM meetings WHERE processing_status = 'completed'`, &stats.MeetingsCompleted},
		{`SELECT COUNT(*) FROM items`, &stats.Items},
		{`SELECT COUNT(*) FROM items WHERE summary IS NOT NULL`, &stats.ItemsSummarized},
		{`SELECT COUNT(*) FROM city_matters`, &stats.Matters},
		{`SELECT COUNT(*) FROM matter_appearances`, &stats.Appearances},
	}
	for _, c := range counts {
		if err := s.db.QueryRowContext(ctx, c.query).Scan(c.dest); err != nil {
			return nil, fmt.Errorf("failed to gather stats: %w", err)
		}
	}

	queue, err := s.QueueStats(ctx)
	if err != nil {
		return nil, err
	}
	stats.Queue = *queue
	return stats, nil
}
