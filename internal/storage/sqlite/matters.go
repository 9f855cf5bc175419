package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/engagic/engagic/internal/storage"
	"github.com/engagic/engagic/internal/types"
)

// trackMatter canonicalizes one agenda item against the city's matters.
//
// The identity fallback is matter_file > vendor matter id > normalized
// title; items with no derivable identity track nothing. The matter upsert
// fills identity fields that were previously unknown but never overwrites
// a stored matter_file or vendor_matter_id: two rows that disagree on
// matter_file are different matters even when their vendor ids coincide,
// because matter_file dominates the identity hash.
func trackMatter(ctx context.Context, q dbtx, item *types.AgendaItem, meeting *types.Meeting) (string, bool, error) {
	identity := types.MatterIdentity(item.MatterFile, item.VendorMatterID, item.Title)
	if identity == "" {
		return "", false, nil
	}
	matterID := types.MatterID(meeting.Banana, identity)

	var exists int
	err := q.QueryRowContext(ctx, `SELECT 1 FROM city_matters WHERE id = ?`, matterID).Scan(&exists)
	created := errors.Is(err, sql.ErrNoRows)
	if err != nil && !created {
		return "", false, fmt.Errorf("failed to probe matter %s: %w", matterID, err)
	}

	sponsors, err := jsonOrNull(item.Sponsors)
	if err != nil {
		return "", false, err
	}
	attachments, err := jsonOrNull(attachmentsOrNil(item.Attachments))
	if err != nil {
		return "", false, err
	}

	seen := meeting.Date.UTC()
	_, err = q.ExecContext(ctx, `
		INSERT INTO city_matters (
			id, banana, identity, matter_file, vendor_matter_id, matter_type,
			title, sponsors, attachments, first_seen, last_seen,
			appearance_count, status
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, 'active')
		ON CONFLICT(id) DO UPDATE SET
			matter_file = COALESCE(city_matters.matter_file, excluded.matter_file),
			vendor_matter_id = COALESCE(city_matters.vendor_matter_id, excluded.vendor_matter_id),
			matter_type = CASE WHEN excluded.matter_type IS NOT NULL THEN excluded.matter_type ELSE city_matters.matter_type END,
			title = CASE WHEN excluded.title != '' THEN excluded.title ELSE city_matters.title END,
			sponsors = CASE WHEN excluded.sponsors IS NOT NULL THEN excluded.sponsors ELSE city_matters.sponsors END,
			attachments = CASE WHEN excluded.attachments IS NOT NULL THEN excluded.attachments ELSE city_matters.attachments END,
			first_seen = MIN(city_matters.first_seen, excluded.first_seen),
			last_seen = CASE
				WHEN city_matters.status IN ('passed','failed','tabled','withdrawn','vetoed','enacted')
					THEN city_matters.last_seen
				ELSE MAX(city_matters.last_seen, excluded.last_seen)
			END
	`,
		matterID, meeting.Banana, identity,
		nullString(item.MatterFile), nullString(item.VendorMatterID),
		nullString(item.MatterType), item.Title, sponsors, attachments,
		seen, seen,
	)
	if err != nil {
		return "", false, fmt.Errorf("failed to upsert matter %s: %w", matterID, err)
	}

	// Appearance rows are unique on (matter, meeting, item); re-syncs hit
	// the conflict and change nothing.
	_, err = q.ExecContext(ctx, `
		INSERT INTO matter_appearances (matter_id, meeting_id, item_id, appeared_at, sequence)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(matter_id, meeting_id, item_id) DO NOTHING
	`, matterID, meeting.ID, item.ID, seen, item.Sequence)
	if err != nil {
		return "", false, fmt.Errorf("failed to record appearance of %s: %w", matterID, err)
	}

	// appearance_count is defined as the number of distinct meetings the
	// matter has appeared in. Recomputing inside the transaction keeps the
	// invariant under concurrent meetings of the same city.
	_, err = q.ExecContext(ctx, `
		UPDATE city_matters SET appearance_count = (
			SELECT COUNT(DISTINCT meeting_id) FROM matter_appearances WHERE matter_id = ?
		) WHERE id = ?
	`, matterID, matterID)
	if err != nil {
		return "", false, fmt.Errorf("failed to refresh appearance count of %s: %w", matterID, err)
	}

	// Denormalize the canonical key back onto the item row.
	_, err = q.ExecContext(ctx, `
		UPDATE items SET matter_id = ? WHERE id = ?
	`, matterID, item.ID)
	if err != nil {
		return "", false, fmt.Errorf("failed to link item %s to matter %s: %w", item.ID, matterID, err)
	}
	item.MatterID = matterID

	return matterID, created, nil
}

func (t *sqliteTx) TrackMatter(ctx context.Context, item *types.AgendaItem, meeting *types.Meeting) (string, bool, error) {
	return trackMatter(ctx, t.tx, item, meeting)
}

// GetMatter returns one matter, or storage.ErrNotFound.
func (s *SQLiteStorage) GetMatter(ctx context.Context, id string) (*types.Matter, error) {
	m, err := scanMatter(s.db.QueryRowContext(ctx, `
		SELECT id, banana, matter_file, vendor_matter_id, matter_type, title,
		       sponsors, canonical_summary, canonical_topics, attachments,
		       first_seen, last_seen, appearance_count, status, final_vote_date
		FROM city_matters WHERE id = ?
	`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("matter %s: %w", id, storage.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get matter %s: %w", id, err)
	}
	return m, nil
}

// ListMatters returns a city's matters, most recently seen first.
func (s *SQLiteStorage) ListMatters(ctx context.Context, banana string) ([]*types.Matter, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, banana, matter_file, vendor_matter_id, matter_type, title,
		       sponsors, canonical_summary, canonical_topics, attachments,
		       first_seen, last_seen, appearance_count, status, final_vote_date
		FROM city_matters WHERE banana = ? ORDER BY last_seen DESC, id
	`, banana)
	if err != nil {
		return nil, fmt.Errorf("failed to list matters for %s: %w", banana, err)
	}
	defer rows.Close()

	var matters []*types.Matter
	for rows.Next() {
		m, err := scanMatter(rows)
		if err != nil {
			return nil, err
		}
		matters = append(matters, m)
	}
	return matters, rows.Err()
}

// ListAppearances returns a matter's appearance timeline, oldest first.
func (s *SQLiteStorage) ListAppearances(ctx context.Context, matterID string) ([]*types.MatterAppearance, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, matter_id, meeting_id, item_id, appeared_at, committee,
		       vote_outcome, vote_tally, sequence
		FROM matter_appearances WHERE matter_id = ? ORDER BY appeared_at, id
	`, matterID)
	if err != nil {
		return nil, fmt.Errorf("failed to list appearances for %s: %w", matterID, err)
	}
	defer rows.Close()

	var apps []*types.MatterAppearance
	for rows.Next() {
		var a types.MatterAppearance
		var committee, outcome, tally sql.NullString
		var appearedAt sql.NullTime
		if err := rows.Scan(&a.ID, &a.MatterID, &a.MeetingID, &a.ItemID,
			&appearedAt, &committee, &outcome, &tally, &a.Sequence); err != nil {
			return nil, fmt.Errorf("failed to scan appearance: %w", err)
		}
		a.AppearedAt = appearedAt.Time
		a.Committee = committee.String
		a.Outcome = types.VoteOutcome(outcome.String)
		if tally.Valid {
			var vt types.VoteTally
			if err := json.Unmarshal([]byte(tally.String), &vt); err == nil {
				a.Tally = &vt
			}
		}
		apps = append(apps, &a)
	}
	return apps, rows.Err()
}

// applyCanonicalSummary fans one LLM summary out: onto the matter's
// canonical fields, and onto every item of this matter that has no summary
// of its own. Items already summarized keep their text.
func applyCanonicalSummary(ctx context.Context, q dbtx, matterID, summary string, topics []string) (int, error) {
	topicsJSON, err := jsonOrNull(topics)
	if err != nil {
		return 0, err
	}

	res, err := q.ExecContext(ctx, `
		UPDATE city_matters SET
			canonical_summary = CASE WHEN ? IS NOT NULL THEN ? ELSE canonical_summary END,
			canonical_topics = CASE WHEN ? IS NOT NULL THEN ? ELSE canonical_topics END
		WHERE id = ?
	`, nullString(summary), nullString(summary), topicsJSON, topicsJSON, matterID)
	if err != nil {
		return 0, fmt.Errorf("failed to set canonical summary on %s: %w", matterID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return 0, fmt.Errorf("matter %s: %w", matterID, storage.ErrNotFound)
	}

	res, err = q.ExecContext(ctx, `
		UPDATE items SET summary = ?, topics = ?, updated_at = ?
		WHERE matter_id = ? AND summary IS NULL
	`, nullString(summary), topicsJSON, time.Now().UTC(), matterID)
	if err != nil {
		return 0, fmt.Errorf("failed to fan out canonical summary of %s: %w", matterID, err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (s *SQLiteStorage) ApplyCanonicalSummary(ctx context.Context, matterID, summary string, topics []string) (int, error) {
	return applyCanonicalSummary(ctx, s.db, matterID, summary, topics)
}

func (t *sqliteTx) ApplyCanonicalSummary(ctx context.Context, matterID, summary string, topics []string) (int, error) {
	return applyCanonicalSummary(ctx, t.tx, matterID, summary, topics)
}

// setMatterOutcome records a vote on one appearance. Terminal outcomes set
// the matter's status and final_vote_date in the same transaction; after
// that, last_seen stops advancing (see trackMatter).
func setMatterOutcome(ctx context.Context, q dbtx, matterID, meetingID, itemID string, outcome types.VoteOutcome, tally *types.VoteTally, votedAt time.Time) error {
	var tallyJSON sql.NullString
	if tally != nil {
		data, err := json.Marshal(tally)
		if err != nil {
			return fmt.Errorf("failed to marshal vote tally: %w", err)
		}
		tallyJSON = sql.NullString{String: string(data), Valid: true}
	}

	res, err := q.ExecContext(ctx, `
		UPDATE matter_appearances SET vote_outcome = ?, vote_tally = ?
		WHERE matter_id = ? AND meeting_id = ? AND item_id = ?
	`, string(outcome), tallyJSON, matterID, meetingID, itemID)
	if err != nil {
		return fmt.Errorf("failed to record outcome on %s: %w", matterID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("appearance of %s in %s: %w", matterID, meetingID, storage.ErrNotFound)
	}

	if terminal := outcome.TerminalStatus(); terminal != "" {
		_, err := q.ExecContext(ctx, `
			UPDATE city_matters SET status = ?, final_vote_date = ? WHERE id = ?
		`, string(terminal), votedAt.UTC(), matterID)
		if err != nil {
			return fmt.Errorf("failed to finalize matter %s: %w", matterID, err)
		}
	}
	return nil
}

func (s *SQLiteStorage) SetMatterOutcome(ctx context.Context, matterID, meetingID, itemID string, outcome types.VoteOutcome, tally *types.VoteTally, votedAt time.Time) error {
	return s.RunInTransaction(ctx, func(tx storage.Transaction) error {
		st := tx.(*sqliteTx)
		return setMatterOutcome(ctx, st.tx, matterID, meetingID, itemID, outcome, tally, votedAt)
	})
}

func scanMatter(row rowScanner) (*types.Matter, error) {
	var m types.Matter
	var matterFile, vendorMatterID, matterType, sponsors sql.NullString
	var canonicalSummary, canonicalTopics, attachments sql.NullString
	var status string
	var firstSeen, lastSeen, finalVote sql.NullTime

	err := row.Scan(&m.ID, &m.Banana, &matterFile, &vendorMatterID, &matterType,
		&m.Title, &sponsors, &canonicalSummary, &canonicalTopics, &attachments,
		&firstSeen, &lastSeen, &m.AppearanceCount, &status, &finalVote)
	if err != nil {
		return nil, err
	}

	m.MatterFile = matterFile.String
	m.VendorMatterID = vendorMatterID.String
	m.Type = matterType.String
	m.Sponsors = unmarshalStrings(sponsors)
	m.CanonicalSummary = canonicalSummary.String
	m.CanonicalTopics = unmarshalStrings(canonicalTopics)
	if attachments.Valid {
		_ = json.Unmarshal([]byte(attachments.String), &m.Attachments)
	}
	m.FirstSeen = firstSeen.Time
	m.LastSeen = lastSeen.Time
	m.Status = types.MatterStatus(status)
	if finalVote.Valid {
		t := finalVote.Time
		m.FinalVoteDate = &t
	}
	return &m, nil
}
