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

// upsertMeeting writes one meeting row with preservation-on-conflict
// semantics: structural fields always overwrite, while summary, topics,
// participation and the processing_* columns survive NULL re-syncs. The
// adapter writes summary=NULL on every sync and must never clobber LLM
// output.
func upsertMeeting(ctx context.Context, q dbtx, m *types.Meeting) error {
	if m.ID == "" {
		m.ID = types.MeetingID(m.Banana, m.VendorID, m.Date, m.Title)
	}
	topics, err := jsonOrNull(m.Topics)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	_, err = q.ExecContext(ctx, `
		INSERT INTO meetings (
			id, banana, vendor_id, title, date, agenda_url, packet_url,
			summary, topics, participation, status, processing_status,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 'pending', ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			banana = excluded.banana,
			vendor_id = excluded.vendor_id,
			title = excluded.title,
			date = excluded.date,
			agenda_url = excluded.agenda_url,
			packet_url = excluded.packet_url,
			status = excluded.status,
			summary = CASE WHEN excluded.summary IS NOT NULL THEN excluded.summary ELSE meetings.summary END,
			topics = CASE WHEN excluded.topics IS NOT NULL THEN excluded.topics ELSE meetings.topics END,
			participation = CASE WHEN excluded.participation IS NOT NULL THEN excluded.participation ELSE meetings.participation END,
			updated_at = excluded.updated_at
	`,
		m.ID, m.Banana, nullString(m.VendorID), m.Title, m.Date.UTC(),
		nullString(m.AgendaURL), nullString(m.PacketURL),
		nullString(m.Summary), topics, nullString(m.Participation),
		nullString(m.Status), now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert meeting %s: %w", m.ID, err)
	}
	return nil
}

func (s *SQLiteStorage) UpsertMeeting(ctx context.Context, m *types.Meeting) error {
	return upsertMeeting(ctx, s.db, m)
}

func (t *sqliteTx) UpsertMeeting(ctx context.Context, m *types.Meeting) error {
	return upsertMeeting(ctx, t.tx, m)
}

// upsertItems writes agenda items with the same preservation semantics as
// meetings: the attachment set, sequence, and titles follow the vendor;
// summary and topics follow the LLM and survive re-syncs.
func upsertItems(ctx context.Context, q dbtx, items []*types.AgendaItem) error {
	now := time.Now().UTC()
	for _, item := range items {
		if item.ID == "" {
			return fmt.Errorf("agenda item %q has no id", item.Title)
		}
		if item.AttachmentHash == "" {
			item.AttachmentHash = types.AttachmentHash(item.Attachments)
		}

		attachments, err := jsonOrNull(attachmentsOrNil(item.Attachments))
		if err != nil {
			return err
		}
		sponsors, err := jsonOrNull(item.Sponsors)
		if err != nil {
			return err
		}
		topics, err := jsonOrNull(item.Topics)
		if err != nil {
			return err
		}

		procedural := 0
		if item.Procedural {
			procedural = 1
		}

		_, err = q.ExecContext(ctx, `
			INSERT INTO items (
				id, meeting_id, title, sequence, attachments, attachment_hash,
				matter_id, matter_file, vendor_matter_id, matter_type,
				agenda_number, sponsors, summary, topics, procedural,
				created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				meeting_id = excluded.meeting_id,
				title = excluded.title,
				sequence = excluded.sequence,
				attachments = excluded.attachments,
				attachment_hash = excluded.attachment_hash,
				matter_id = CASE WHEN excluded.matter_id IS NOT NULL THEN excluded.matter_id ELSE items.matter_id END,
				matter_file = CASE WHEN excluded.matter_file IS NOT NULL THEN excluded.matter_file ELSE items.matter_file END,
				vendor_matter_id = CASE WHEN excluded.vendor_matter_id IS NOT NULL THEN excluded.vendor_matter_id ELSE items.vendor_matter_id END,
				matter_type = CASE WHEN excluded.matter_type IS NOT NULL THEN excluded.matter_type ELSE items.matter_type END,
				agenda_number = excluded.agenda_number,
				sponsors = CASE WHEN excluded.sponsors IS NOT NULL THEN excluded.sponsors ELSE items.sponsors END,
				summary = CASE WHEN excluded.summary IS NOT NULL THEN excluded.summary ELSE items.summary END,
				topics = CASE WHEN excluded.topics IS NOT NULL THEN excluded.topics ELSE items.topics END,
				procedural = excluded.procedural,
				updated_at = excluded.updated_at
		`,
			item.ID, item.MeetingID, item.Title, item.Sequence,
			attachments, nullString(item.AttachmentHash),
			nullString(item.MatterID), nullString(item.MatterFile),
			nullString(item.VendorMatterID), nullString(item.MatterType),
			nullString(item.AgendaNumber), sponsors,
			nullString(item.Summary), topics, procedural, now, now,
		)
		if err != nil {
			return fmt.Errorf("failed to upsert item %s: %w", item.ID, err)
		}
	}
	return nil
}

func attachmentsOrNil(attachments []types.Attachment) any {
	if len(attachments) == 0 {
		return nil
	}
	return attachments
}

func (t *sqliteTx) UpsertItems(ctx context.Context, items []*types.AgendaItem) error {
	return upsertItems(ctx, t.tx, items)
}

// GetMeeting returns one meeting, or storage.ErrNotFound.
func (s *SQLiteStorage) GetMeeting(ctx context.Context, id string) (*types.Meeting, error) {
	m, err := scanMeeting(s.db.QueryRowContext(ctx, `
		SELECT id, banana, vendor_id, title, date, agenda_url, packet_url,
		       summary, topics, participation, status,
		       processing_status, processing_method, processing_time,
		       created_at, updated_at
		FROM meetings WHERE id = ?
	`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("meeting %s: %w", id, storage.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get meeting %s: %w", id, err)
	}
	return m, nil
}

// ListMeetings returns a city's meetings ordered by date descending.
func (s *SQLiteStorage) ListMeetings(ctx context.Context, banana string) ([]*types.Meeting, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, banana, vendor_id, title, date, agenda_url, packet_url,
		       summary, topics, participation, status,
		       processing_status, processing_method, processing_time,
		       created_at, updated_at
		FROM meetings WHERE banana = ? ORDER BY date DESC
	`, banana)
	if err != nil {
		return nil, fmt.Errorf("failed to list meetings for %s: %w", banana, err)
	}
	defer rows.Close()

	var meetings []*types.Meeting
	for rows.Next() {
		m, err := scanMeeting(rows)
		if err != nil {
			return nil, err
		}
		meetings = append(meetings, m)
	}
	return meetings, rows.Err()
}

// SetMeetingProcessing transitions the meeting's pipeline status.
func (s *SQLiteStorage) SetMeetingProcessing(ctx context.Context, id string, status types.ProcessingStatus) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE meetings SET processing_status = ?, updated_at = ? WHERE id = ?
	`, string(status), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to set processing status on %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("meeting %s: %w", id, storage.ErrNotFound)
	}
	return nil
}

// StoreMeetingResult records pipeline output on the meeting row and marks
// it completed. An empty summary leaves any existing summary in place
// (item-level runs carry their text on the items, not the meeting).
func (s *SQLiteStorage) StoreMeetingResult(ctx context.Context, id, summary string, topics []string, method string, seconds float64) error {
	topicsJSON, err := jsonOrNull(topics)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE meetings SET
			summary = CASE WHEN ? IS NOT NULL THEN ? ELSE summary END,
			topics = CASE WHEN ? IS NOT NULL THEN ? ELSE topics END,
			processing_status = 'completed',
			processing_method = ?,
			processing_time = ?,
			updated_at = ?
		WHERE id = ?
	`, nullString(summary), nullString(summary), topicsJSON, topicsJSON,
		method, seconds, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to store result on meeting %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("meeting %s: %w", id, storage.ErrNotFound)
	}
	return nil
}

// GetItems returns a meeting's agenda items ordered by sequence.
func (s *SQLiteStorage) GetItems(ctx context.Context, meetingID string) ([]*types.AgendaItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, meeting_id, title, sequence, attachments, attachment_hash,
		       matter_id, matter_file, vendor_matter_id, matter_type,
		       agenda_number, sponsors, summary, topics, procedural
		FROM items WHERE meeting_id = ? ORDER BY sequence, id
	`, meetingID)
	if err != nil {
		return nil, fmt.Errorf("failed to get items for meeting %s: %w", meetingID, err)
	}
	defer rows.Close()

	var items []*types.AgendaItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// updateItemSummary writes LLM output on one item. Explicit writes always
// win; the preservation rule only guards against NULL overwrite on sync.
func updateItemSummary(ctx context.Context, q dbtx, itemID, summary string, topics []string) error {
	topicsJSON, err := jsonOrNull(topics)
	if err != nil {
		return err
	}
	res, err := q.ExecContext(ctx, `
		UPDATE items SET summary = ?, topics = ?, updated_at = ? WHERE id = ?
	`, nullString(summary), topicsJSON, time.Now().UTC(), itemID)
	if err != nil {
		return fmt.Errorf("failed to update summary on item %s: %w", itemID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("item %s: %w", itemID, storage.ErrNotFound)
	}
	return nil
}

func (s *SQLiteStorage) UpdateItemSummary(ctx context.Context, itemID, summary string, topics []string) error {
	return updateItemSummary(ctx, s.db, itemID, summary, topics)
}

func (t *sqliteTx) UpdateItemSummary(ctx context.Context, itemID, summary string, topics []string) error {
	return updateItemSummary(ctx, t.tx, itemID, summary, topics)
}

func scanMeeting(row rowScanner) (*types.Meeting, error) {
	var m types.Meeting
	var vendorID, agendaURL, packetURL, summary, topics, participation, status sql.NullString
	var method sql.NullString
	var procStatus string
	var procTime sql.NullFloat64
	var date, createdAt, updatedAt sql.NullTime

	err := row.Scan(&m.ID, &m.Banana, &vendorID, &m.Title, &date,
		&agendaURL, &packetURL, &summary, &topics, &participation, &status,
		&procStatus, &method, &procTime, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	m.VendorID = vendorID.String
	m.Date = date.Time
	m.AgendaURL = agendaURL.String
	m.PacketURL = packetURL.String
	m.Summary = summary.String
	m.Topics = unmarshalStrings(topics)
	m.Participation = participation.String
	m.Status = status.String
	m.ProcessingStatus = types.ProcessingStatus(procStatus)
	m.ProcessingMethod = method.String
	m.ProcessingTime = procTime.Float64
	m.CreatedAt = createdAt.Time
	m.UpdatedAt = updatedAt.Time
	return &m, nil
}

func scanItem(row rowScanner) (*types.AgendaItem, error) {
	var item types.AgendaItem
	var attachments, attachmentHash, matterID, matterFile, vendorMatterID sql.NullString
	var matterType, agendaNumber, sponsors, summary, topics sql.NullString
	var procedural int

	err := row.Scan(&item.ID, &item.MeetingID, &item.Title, &item.Sequence,
		&attachments, &attachmentHash, &matterID, &matterFile, &vendorMatterID,
		&matterType, &agendaNumber, &sponsors, &summary, &topics, &procedural)
	if err != nil {
		return nil, err
	}

	if attachments.Valid {
		if err := json.Unmarshal([]byte(attachments.String), &item.Attachments); err != nil {
			return nil, fmt.Errorf("failed to decode attachments on item %s: %w", item.ID, err)
		}
	}
	item.AttachmentHash = attachmentHash.String
	item.MatterID = matterID.String
	item.MatterFile = matterFile.String
	item.VendorMatterID = vendorMatterID.String
	item.MatterType = matterType.String
	item.AgendaNumber = agendaNumber.String
	item.Sponsors = unmarshalStrings(sponsors)
	item.Summary = summary.String
	item.Topics = unmarshalStrings(topics)
	item.Procedural = procedural != 0
	return &item, nil
}
