package sqlite

import (
	"errors"
	"testing"
	"time"

	"github.com/engagic/engagic/internal/storage"
	"github.com/engagic/engagic/internal/types"
)

func TestUpsertMeetingPreservation(t *testing.T) {
	e := newTestEnv(t)

	date := time.Date(2026, 9, 15, 18, 30, 0, 0, time.UTC)
	meeting := e.MakeMeeting("City Council", date)
	if err := e.Store.UpsertMeeting(e.Ctx, meeting); err != nil {
		t.Fatalf("UpsertMeeting failed: %v", err)
	}

	// Pipeline output lands on the row.
	if err := e.Store.StoreMeetingResult(e.Ctx, meeting.ID, "A quiet meeting.", []string{"housing"}, "item_level_3_items", 12.5); err != nil {
		t.Fatalf("StoreMeetingResult failed: %v", err)
	}

	// A later sync carries no summary and a revised packet URL.
	revised := e.MakeMeeting("City Council", date)
	revised.PacketURL = "https://docs.example.com/packet-rev2.pdf"
	revised.Status = "revised"
	if err := e.Store.UpsertMeeting(e.Ctx, revised); err != nil {
		t.Fatalf("UpsertMeeting (re-sync) failed: %v", err)
	}
	if revised.ID != meeting.ID {
		t.Fatalf("re-sync derived a different id: %s vs %s", revised.ID, meeting.ID)
	}

	got, err := e.Store.GetMeeting(e.Ctx, meeting.ID)
	if err != nil {
		t.Fatalf("GetMeeting failed: %v", err)
	}
	if got.Summary != "A quiet meeting." {
		t.Errorf("re-sync clobbered summary: %q", got.Summary)
	}
	if len(got.Topics) != 1 || got.Topics[0] != "housing" {
		t.Errorf("re-sync clobbered topics: %v", got.Topics)
	}
	if got.PacketURL != "https://docs.example.com/packet-rev2.pdf" {
		t.Errorf("structural field packet_url did not follow the vendor: %q", got.PacketURL)
	}
	if got.Status != "revised" {
		t.Errorf("vendor status did not follow: %q", got.Status)
	}
	if got.ProcessingStatus != types.ProcessingCompleted {
		t.Errorf("processing_status = %q, re-sync must not reset completion", got.ProcessingStatus)
	}
	if got.ProcessingMethod != "item_level_3_items" {
		t.Errorf("processing_method = %q", got.ProcessingMethod)
	}
}

func TestMeetingIDIgnoresTimeOfDay(t *testing.T) {
	e := newTestEnv(t)

	// Vendors commonly shift the start time without it being a new meeting.
	evening := e.MakeMeeting("Study Session", time.Date(2026, 9, 15, 18, 0, 0, 0, time.UTC))
	if err := e.Store.UpsertMeeting(e.Ctx, evening); err != nil {
		t.Fatalf("UpsertMeeting failed: %v", err)
	}
	delayed := e.MakeMeeting("Study Session", time.Date(2026, 9, 15, 19, 30, 0, 0, time.UTC))
	if err := e.Store.UpsertMeeting(e.Ctx, delayed); err != nil {
		t.Fatalf("UpsertMeeting failed: %v", err)
	}
	if delayed.ID != evening.ID {
		t.Errorf("time-of-day change produced a new meeting: %s vs %s", delayed.ID, evening.ID)
	}

	meetings, err := e.Store.ListMeetings(e.Ctx, "paloaltoCA")
	if err != nil {
		t.Fatalf("ListMeetings failed: %v", err)
	}
	if len(meetings) != 1 {
		t.Fatalf("got %d meetings, want 1", len(meetings))
	}
}

func TestSetMeetingProcessing(t *testing.T) {
	e := newTestEnv(t)

	meeting := e.MakeMeeting("City Council", time.Date(2026, 9, 15, 18, 0, 0, 0, time.UTC))
	if err := e.Store.UpsertMeeting(e.Ctx, meeting); err != nil {
		t.Fatalf("UpsertMeeting failed: %v", err)
	}

	if err := e.Store.SetMeetingProcessing(e.Ctx, meeting.ID, types.ProcessingInProgress); err != nil {
		t.Fatalf("SetMeetingProcessing failed: %v", err)
	}
	got, err := e.Store.GetMeeting(e.Ctx, meeting.ID)
	if err != nil {
		t.Fatalf("GetMeeting failed: %v", err)
	}
	if got.ProcessingStatus != types.ProcessingInProgress {
		t.Errorf("processing_status = %q, want processing", got.ProcessingStatus)
	}

	if err := e.Store.SetMeetingProcessing(e.Ctx, "paloaltoCA_deadbeef", types.ProcessingFailed); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown meeting, got %v", err)
	}
}

func TestUpdateItemSummaryExplicitWriteWins(t *testing.T) {
	e := newTestEnv(t)

	meeting := e.MakeMeeting("City Council", time.Date(2026, 9, 15, 18, 0, 0, 0, time.UTC))
	result := e.Sync(meeting, []*types.AgendaItem{e.MakeItem("Fee schedule update", 1)})

	itemID := e.Items(result.MeetingID)[0].ID
	if err := e.Store.UpdateItemSummary(e.Ctx, itemID, "First pass.", []string{"fees"}); err != nil {
		t.Fatalf("UpdateItemSummary failed: %v", err)
	}
	// A reprocessing run overwrites; only sync-time NULLs are guarded.
	if err := e.Store.UpdateItemSummary(e.Ctx, itemID, "Second pass.", []string{"fees", "budget"}); err != nil {
		t.Fatalf("UpdateItemSummary (rewrite) failed: %v", err)
	}

	items := e.Items(result.MeetingID)
	if items[0].Summary != "Second pass." {
		t.Errorf("summary = %q, explicit rewrite should win", items[0].Summary)
	}
	if len(items[0].Topics) != 2 {
		t.Errorf("topics = %v", items[0].Topics)
	}

	if err := e.Store.UpdateItemSummary(e.Ctx, "nope", "x", nil); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown item, got %v", err)
	}
}

func TestGetMeetingNotFound(t *testing.T) {
	e := newTestEnv(t)
	if _, err := e.Store.GetMeeting(e.Ctx, "nowhereXX_00000000"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestItemAttachmentsRoundTrip(t *testing.T) {
	e := newTestEnv(t)

	meeting := e.MakeMeeting("City Council", time.Date(2026, 9, 15, 18, 0, 0, 0, time.UTC))
	item := e.MakeItem("Staff report review", 1)
	item.Attachments = []types.Attachment{
		{URL: "https://docs.example.com/report.pdf", Name: "Staff Report", Type: "pdf", Pages: 42},
		{URL: "https://docs.example.com/exhibit-a.pdf", Name: "Exhibit A", Type: "pdf"},
	}
	result := e.Sync(meeting, []*types.AgendaItem{item})

	got := e.Items(result.MeetingID)[0]
	if len(got.Attachments) != 2 {
		t.Fatalf("got %d attachments, want 2", len(got.Attachments))
	}
	if got.Attachments[0].Pages != 42 {
		t.Errorf("attachment pages = %d, want 42", got.Attachments[0].Pages)
	}
	if got.AttachmentHash == "" {
		t.Error("attachment_hash should be derived on write")
	}
	if got.AttachmentHash != types.AttachmentHash(item.Attachments) {
		t.Error("stored attachment_hash does not match the derived hash")
	}
}

func TestCorpusStats(t *testing.T) {
	e := newTestEnv(t)

	meeting := e.MakeMeeting("City Council", time.Date(2026, 9, 15, 18, 0, 0, 0, time.UTC))
	item := e.MakeItem("Fee schedule update", 1)
	item.MatterFile = "FEE-1"
	result := e.Sync(meeting, []*types.AgendaItem{item})
	if err := e.Store.UpdateItemSummary(e.Ctx, e.Items(result.MeetingID)[0].ID, "Raises fees.", nil); err != nil {
		t.Fatalf("UpdateItemSummary failed: %v", err)
	}

	stats, err := e.Store.Stats(e.Ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.Cities != 1 || stats.Meetings != 1 || stats.Items != 1 {
		t.Errorf("stats = %+v", stats)
	}
	if stats.ItemsSummarized != 1 {
		t.Errorf("ItemsSummarized = %d, want 1", stats.ItemsSummarized)
	}
	if stats.Matters != 1 || stats.Appearances != 1 {
		t.Errorf("matter stats = %d/%d, want 1/1", stats.Matters, stats.Appearances)
	}
	if stats.Queue.Pending != 1 {
		t.Errorf("queue pending = %d, want the sync-enqueued job", stats.Queue.Pending)
	}
}
