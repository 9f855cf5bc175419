package sqlite

import (
	"testing"
	"time"

	"github.com/engagic/engagic/internal/types"
)

func TestMatterDedupAcrossMeetings(t *testing.T) {
	e := newTestEnv(t)

	// The same ordinance on two different agendas, first reading then second.
	first := e.MakeMeeting("Council Meeting June", time.Date(2026, 6, 2, 19, 0, 0, 0, time.UTC))
	item1 := e.MakeItem("Ordinance on first reading", 4)
	item1.MatterFile = "BL2026-1098"
	e.Sync(first, []*types.AgendaItem{item1})

	second := e.MakeMeeting("Council Meeting July", time.Date(2026, 7, 7, 19, 0, 0, 0, time.UTC))
	item2 := e.MakeItem("Ordinance on second reading", 2)
	item2.MatterFile = "BL2026-1098"
	result := e.Sync(second, []*types.AgendaItem{item2})

	if result.NewMatters != 0 || result.SeenMatters != 1 {
		t.Fatalf("second appearance: NewMatters=%d SeenMatters=%d, want 0/1", result.NewMatters, result.SeenMatters)
	}

	matters, err := e.Store.ListMatters(e.Ctx, "paloaltoCA")
	if err != nil {
		t.Fatalf("ListMatters failed: %v", err)
	}
	if len(matters) != 1 {
		t.Fatalf("got %d matters, want 1 deduplicated matter", len(matters))
	}
	m := matters[0]
	if m.AppearanceCount != 2 {
		t.Errorf("appearance_count = %d, want 2", m.AppearanceCount)
	}
	if !m.FirstSeen.Equal(first.Date) {
		t.Errorf("first_seen = %v, want the June meeting date", m.FirstSeen)
	}
	if !m.LastSeen.Equal(second.Date) {
		t.Errorf("last_seen = %v, want the July meeting date", m.LastSeen)
	}

	apps, err := e.Store.ListAppearances(e.Ctx, m.ID)
	if err != nil {
		t.Fatalf("ListAppearances failed: %v", err)
	}
	if len(apps) != 2 {
		t.Fatalf("got %d appearances, want 2", len(apps))
	}
	if apps[0].MeetingID == apps[1].MeetingID {
		t.Error("appearances should reference the two distinct meetings")
	}
}

func TestMatterIdentityFallback(t *testing.T) {
	e := newTestEnv(t)

	meeting := e.MakeMeeting("Council Meeting", time.Date(2026, 6, 2, 19, 0, 0, 0, time.UTC))

	withFile := e.MakeItem("Street repaving contract", 1)
	withFile.MatterFile = "RES-2026-001"
	withFile.VendorMatterID = "uuid-aaa"

	vendorOnly := e.MakeItem("Sidewalk repair contract", 2)
	vendorOnly.VendorMatterID = "uuid-bbb"

	titleOnly := e.MakeItem("Presentation on Water Quality!", 3)

	e.Sync(meeting, []*types.AgendaItem{withFile, vendorOnly, titleOnly})

	matters, err := e.Store.ListMatters(e.Ctx, "paloaltoCA")
	if err != nil {
		t.Fatalf("ListMatters failed: %v", err)
	}
	if len(matters) != 3 {
		t.Fatalf("got %d matters, want 3 (one per identity source)", len(matters))
	}

	// The title-identified item must match a later re-appearance whose title
	// differs only in case and punctuation.
	again := e.MakeMeeting("Council Meeting Later", time.Date(2026, 6, 16, 19, 0, 0, 0, time.UTC))
	retitled := e.MakeItem("presentation  on water quality", 1)
	result := e.Sync(again, []*types.AgendaItem{retitled})
	if result.NewMatters != 0 {
		t.Errorf("normalized title should dedup: NewMatters = %d, want 0", result.NewMatters)
	}
}

func TestMatterFileDominatesVendorID(t *testing.T) {
	e := newTestEnv(t)

	// Same vendor UUID, different file numbers: two distinct matters.
	m1 := e.MakeMeeting("Meeting A", time.Date(2026, 6, 2, 19, 0, 0, 0, time.UTC))
	a := e.MakeItem("Budget ordinance", 1)
	a.MatterFile = "BL2026-0001"
	a.VendorMatterID = "uuid-shared"
	e.Sync(m1, []*types.AgendaItem{a})

	m2 := e.MakeMeeting("Meeting B", time.Date(2026, 6, 9, 19, 0, 0, 0, time.UTC))
	b := e.MakeItem("Budget ordinance amended", 1)
	b.MatterFile = "BL2026-0002"
	b.VendorMatterID = "uuid-shared"
	e.Sync(m2, []*types.AgendaItem{b})

	matters, err := e.Store.ListMatters(e.Ctx, "paloaltoCA")
	if err != nil {
		t.Fatalf("ListMatters failed: %v", err)
	}
	if len(matters) != 2 {
		t.Fatalf("got %d matters, want 2: matter_file dominates the identity", len(matters))
	}
}

func TestMatterIdentityIsCityScoped(t *testing.T) {
	e := newTestEnv(t)
	e.SeedCity("Oakland", "CA", types.VendorLegistar)

	pa := e.MakeMeeting("Palo Alto Council", time.Date(2026, 6, 2, 19, 0, 0, 0, time.UTC))
	item1 := e.MakeItem("Annual budget", 1)
	item1.MatterFile = "BL-100"
	e.Sync(pa, []*types.AgendaItem{item1})

	oak := e.MakeMeeting("Oakland Council", time.Date(2026, 6, 2, 19, 0, 0, 0, time.UTC))
	oak.Banana = "oaklandCA"
	item2 := e.MakeItem("Annual budget", 1)
	item2.MatterFile = "BL-100"
	result := e.Sync(oak, []*types.AgendaItem{item2})

	if result.NewMatters != 1 {
		t.Errorf("same file number in another city should be a new matter, NewMatters = %d", result.NewMatters)
	}
}

func TestApplyCanonicalSummary(t *testing.T) {
	e := newTestEnv(t)

	m1 := e.MakeMeeting("Meeting A", time.Date(2026, 6, 2, 19, 0, 0, 0, time.UTC))
	a := e.MakeItem("Rezoning of parcel 42", 1)
	a.MatterFile = "PLN-42"
	e.Sync(m1, []*types.AgendaItem{a})

	m2 := e.MakeMeeting("Meeting B", time.Date(2026, 6, 9, 19, 0, 0, 0, time.UTC))
	b := e.MakeItem("Rezoning of parcel 42, second reading", 1)
	b.MatterFile = "PLN-42"
	e.Sync(m2, []*types.AgendaItem{b})

	// One of the two items already has its own text.
	items := e.Items(m2.ID)
	if err := e.Store.UpdateItemSummary(e.Ctx, items[0].ID, "Own summary.", nil); err != nil {
		t.Fatalf("UpdateItemSummary failed: %v", err)
	}

	matterID := items[0].MatterID
	n, err := e.Store.ApplyCanonicalSummary(e.Ctx, matterID, "Rezones parcel 42 to mixed use.", []string{"zoning", "housing"})
	if err != nil {
		t.Fatalf("ApplyCanonicalSummary failed: %v", err)
	}
	if n != 1 {
		t.Errorf("fanned out to %d items, want 1 (the unsummarized one)", n)
	}

	matter := e.Matter(matterID)
	if matter.CanonicalSummary != "Rezones parcel 42 to mixed use." {
		t.Errorf("canonical_summary = %q", matter.CanonicalSummary)
	}
	if len(matter.CanonicalTopics) != 2 {
		t.Errorf("canonical_topics = %v", matter.CanonicalTopics)
	}

	// The item with its own summary kept it.
	items = e.Items(m2.ID)
	if items[0].Summary != "Own summary." {
		t.Errorf("explicit item summary was clobbered: %q", items[0].Summary)
	}
	first := e.Items(m1.ID)
	if first[0].Summary != "Rezones parcel 42 to mixed use." {
		t.Errorf("unsummarized sibling did not receive the canonical text: %q", first[0].Summary)
	}
}

func TestApplyCanonicalSummaryUnknownMatter(t *testing.T) {
	e := newTestEnv(t)
	if _, err := e.Store.ApplyCanonicalSummary(e.Ctx, "paloaltoCA_ffffffffffffffff", "x", nil); err == nil {
		t.Fatal("expected ErrNotFound for unknown matter")
	}
}

func TestSetMatterOutcomeTerminal(t *testing.T) {
	e := newTestEnv(t)

	meeting := e.MakeMeeting("Final Vote Meeting", time.Date(2026, 6, 2, 19, 0, 0, 0, time.UTC))
	item := e.MakeItem("Ordinance final passage", 1)
	item.MatterFile = "BL2026-1098"
	e.Sync(meeting, []*types.AgendaItem{item})

	matterID := e.Items(meeting.ID)[0].MatterID
	votedAt := meeting.Date
	tally := &types.VoteTally{Yes: 6, No: 1}
	if err := e.Store.SetMatterOutcome(e.Ctx, matterID, meeting.ID, e.Items(meeting.ID)[0].ID, types.VotePassed, tally, votedAt); err != nil {
		t.Fatalf("SetMatterOutcome failed: %v", err)
	}

	matter := e.Matter(matterID)
	if matter.Status != types.MatterPassed {
		t.Errorf("status = %q, want passed", matter.Status)
	}
	if matter.FinalVoteDate == nil || !matter.FinalVoteDate.Equal(votedAt) {
		t.Errorf("final_vote_date = %v, want %v", matter.FinalVoteDate, votedAt)
	}

	apps, err := e.Store.ListAppearances(e.Ctx, matterID)
	if err != nil {
		t.Fatalf("ListAppearances failed: %v", err)
	}
	if apps[0].Outcome != types.VotePassed {
		t.Errorf("appearance outcome = %q, want passed", apps[0].Outcome)
	}
	if apps[0].Tally == nil || apps[0].Tally.Yes != 6 {
		t.Errorf("appearance tally = %+v", apps[0].Tally)
	}

	// A later ceremonial re-appearance must not reopen the lifecycle.
	later := e.MakeMeeting("Ceremonial Session", time.Date(2026, 8, 4, 19, 0, 0, 0, time.UTC))
	again := e.MakeItem("Ordinance final passage", 1)
	again.MatterFile = "BL2026-1098"
	e.Sync(later, []*types.AgendaItem{again})

	matter = e.Matter(matterID)
	if matter.Status != types.MatterPassed {
		t.Errorf("re-sync reopened a passed matter: status %q", matter.Status)
	}
	if !matter.LastSeen.Equal(votedAt) {
		t.Errorf("last_seen advanced past the terminal vote: %v", matter.LastSeen)
	}
	if matter.AppearanceCount != 2 {
		t.Errorf("appearance_count = %d, appearances still accrue after passage", matter.AppearanceCount)
	}
}

func TestSetMatterOutcomeNonTerminal(t *testing.T) {
	e := newTestEnv(t)

	meeting := e.MakeMeeting("Committee Meeting", time.Date(2026, 6, 2, 19, 0, 0, 0, time.UTC))
	item := e.MakeItem("Resolution referred to committee", 1)
	item.MatterFile = "RES-77"
	e.Sync(meeting, []*types.AgendaItem{item})

	matterID := e.Items(meeting.ID)[0].MatterID
	if err := e.Store.SetMatterOutcome(e.Ctx, matterID, meeting.ID, e.Items(meeting.ID)[0].ID, types.VoteReferred, nil, meeting.Date); err != nil {
		t.Fatalf("SetMatterOutcome failed: %v", err)
	}

	matter := e.Matter(matterID)
	if matter.Status != types.MatterActive {
		t.Errorf("referred outcome should leave the matter active, got %q", matter.Status)
	}
	if matter.FinalVoteDate != nil {
		t.Errorf("non-terminal outcome set final_vote_date %v", matter.FinalVoteDate)
	}
}

func TestMatterFillsMissingIdentityFields(t *testing.T) {
	e := newTestEnv(t)

	// First sighting carries only the file number; a later one adds the
	// vendor UUID. The matter row accumulates both, never losing either.
	m1 := e.MakeMeeting("Meeting A", time.Date(2026, 6, 2, 19, 0, 0, 0, time.UTC))
	a := e.MakeItem("Noise ordinance", 1)
	a.MatterFile = "BL-9"
	e.Sync(m1, []*types.AgendaItem{a})

	m2 := e.MakeMeeting("Meeting B", time.Date(2026, 6, 9, 19, 0, 0, 0, time.UTC))
	b := e.MakeItem("Noise ordinance", 1)
	b.MatterFile = "BL-9"
	b.VendorMatterID = "uuid-late"
	e.Sync(m2, []*types.AgendaItem{b})

	matters, err := e.Store.ListMatters(e.Ctx, "paloaltoCA")
	if err != nil {
		t.Fatalf("ListMatters failed: %v", err)
	}
	if len(matters) != 1 {
		t.Fatalf("got %d matters, want 1", len(matters))
	}
	if matters[0].MatterFile != "BL-9" || matters[0].VendorMatterID != "uuid-late" {
		t.Errorf("identity fields = (%q, %q), want both retained", matters[0].MatterFile, matters[0].VendorMatterID)
	}
}
