package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/engagic/engagic/internal/storage"
	"github.com/engagic/engagic/internal/types"
)

// meetingJobPayload is the JSON blob stored on meeting queue rows.
type meetingJobPayload struct {
	Banana    string `json:"banana"`
	MeetingID string `json:"meeting_id"`
	ItemCount int    `json:"item_count"`
}

// StoreMeetingFromSync is the single write path for vendor sync output.
// One transaction per meeting: upsert the meeting, upsert its items, track
// matters and appearances, then enqueue a processing job if any
// non-procedural item still lacks a summary (or, for item-less meetings,
// if the packet is unsummarized).
//
// The agenda_url is never enqueued: the adapter already consumed it to
// extract the items. Item-level jobs use the items:// sentinel resolved
// at processing time; packet jobs use the packet_url itself.
func (s *SQLiteStorage) StoreMeetingFromSync(ctx context.Context, meeting *types.Meeting, items []*types.AgendaItem) (*storage.SyncResult, error) {
	if meeting.Banana == "" {
		return nil, fmt.Errorf("meeting %q has no city", meeting.Title)
	}

	result := &storage.SyncResult{ItemCount: len(items)}
	err := s.RunInTransaction(ctx, func(tx storage.Transaction) error {
		st := tx.(*sqliteTx)

		if err := tx.UpsertMeeting(ctx, meeting); err != nil {
			return err
		}
		result.MeetingID = meeting.ID

		for _, item := range items {
			if item.MeetingID == "" {
				item.MeetingID = meeting.ID
			}
			if item.ID == "" {
				item.ID = types.ItemID(meeting.ID, item.VendorItemID, item.Sequence)
			}
		}
		if err := tx.UpsertItems(ctx, items); err != nil {
			return err
		}

		for _, item := range items {
			_, created, err := tx.TrackMatter(ctx, item, meeting)
			if err != nil {
				return err
			}
			if created {
				result.NewMatters++
			} else if item.MatterID != "" {
				result.SeenMatters++
			}

			// Vendor-reported actions land on the appearance in the same
			// transaction; terminal outcomes finalize the matter.
			if item.MatterID != "" && item.VoteOutcome != "" && item.VoteOutcome != types.VoteNone {
				if err := setMatterOutcome(ctx, st.tx, item.MatterID, meeting.ID, item.ID,
					item.VoteOutcome, item.VoteTally, meeting.Date); err != nil {
					return err
				}
			}
		}

		sourceURL, err := pendingWork(ctx, st.tx, meeting)
		if err != nil || sourceURL == "" {
			return err
		}

		payload, err := json.Marshal(meetingJobPayload{
			Banana:    meeting.Banana,
			MeetingID: meeting.ID,
			ItemCount: len(items),
		})
		if err != nil {
			return fmt.Errorf("failed to marshal job payload: %w", err)
		}

		jobID, err := tx.Enqueue(ctx, storage.EnqueueRequest{
			SourceURL: sourceURL,
			JobType:   types.JobMeeting,
			Payload:   string(payload),
			MeetingID: meeting.ID,
			Banana:    meeting.Banana,
			Priority:  types.JobPriority(meeting.Date, time.Now()),
		})
		if err != nil {
			return err
		}
		result.EnqueuedJobID = jobID
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// pendingWork decides what, if anything, to enqueue for a meeting. Returns
// the source URL, or "" when the meeting is fully summarized already.
func pendingWork(ctx context.Context, q dbtx, meeting *types.Meeting) (string, error) {
	var unsummarized, total int
	err := q.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(CASE WHEN procedural = 0 AND summary IS NULL THEN 1 ELSE 0 END), 0)
		FROM items WHERE meeting_id = ?
	`, meeting.ID).Scan(&total, &unsummarized)
	if err != nil {
		return "", fmt.Errorf("failed to count pending items for %s: %w", meeting.ID, err)
	}

	if total > 0 {
		if unsummarized == 0 {
			return "", nil
		}
		return types.ItemsURL(meeting.ID), nil
	}

	// Monolithic fallback: no extractable items, summarize the packet.
	if meeting.PacketURL == "" {
		return "", nil
	}
	var hasSummary int
	err = q.QueryRowContext(ctx, `
		SELECT CASE WHEN summary IS NULL THEN 0 ELSE 1 END FROM meetings WHERE id = ?
	`, meeting.ID).Scan(&hasSummary)
	if err != nil {
		return "", fmt.Errorf("failed to probe meeting summary for %s: %w", meeting.ID, err)
	}
	if hasSummary == 1 {
		return "", nil
	}
	return meeting.PacketURL, nil
}
