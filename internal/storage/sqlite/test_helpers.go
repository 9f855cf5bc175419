package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/engagic/engagic/internal/storage"
	"github.com/engagic/engagic/internal/types"
)

// testEnv provides a test environment with common setup and helpers.
// Use newTestEnv(t) to create a test environment with automatic cleanup.
type testEnv struct {
	t     *testing.T
	Store *SQLiteStorage
	Ctx   context.Context
}

// newTestEnv creates a test environment with a seeded city and a
// configured store. The store is cleaned up when the test completes.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	e := &testEnv{
		t:     t,
		Store: newTestStore(t, ""),
		Ctx:   context.Background(),
	}
	e.SeedCity("Palo Alto", "CA", types.VendorPrimeGov)
	return e
}

// newTestStore creates a SQLiteStorage on a temp file. File-based
// databases are more reliable than :memory: under the connection pool.
func newTestStore(t *testing.T, dbPath string) *SQLiteStorage {
	t.Helper()

	if dbPath == "" {
		dbPath = t.TempDir() + "/test.db"
	}

	store, err := New(context.Background(), dbPath)
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	t.Cleanup(func() {
		if cerr := store.Close(); cerr != nil {
			t.Fatalf("Failed to close test database: %v", cerr)
		}
	})
	return store
}

// SeedCity registers a city and returns its banana.
func (e *testEnv) SeedCity(name, state string, vendor types.Vendor) string {
	e.t.Helper()
	city := &types.City{
		Name:   name,
		State:  state,
		Vendor: vendor,
		Slug:   types.Banana(name, state),
	}
	if err := e.Store.UpsertCity(e.Ctx, city); err != nil {
		e.t.Fatalf("UpsertCity(%q) failed: %v", name, err)
	}
	return city.Banana
}

// MakeMeeting builds an unsaved meeting for paloaltoCA on the given date.
func (e *testEnv) MakeMeeting(title string, date time.Time) *types.Meeting {
	e.t.Helper()
	return &types.Meeting{
		Banana:    "paloaltoCA",
		Title:     title,
		Date:      date,
		VendorID:  "vm-" + title,
		AgendaURL: "https://agendas.example.com/" + types.NormalizeTitle(title),
	}
}

// MakeItem builds an unsaved agenda item. The ID and meeting linkage are
// filled in by StoreMeetingFromSync.
func (e *testEnv) MakeItem(title string, seq int) *types.AgendaItem {
	e.t.Helper()
	return &types.AgendaItem{
		Title:    title,
		Sequence: seq,
		Attachments: []types.Attachment{
			{URL: "https://docs.example.com/" + types.NormalizeTitle(title) + ".pdf", Name: title, Type: "pdf"},
		},
	}
}

// Sync runs StoreMeetingFromSync and fails the test on error.
func (e *testEnv) Sync(meeting *types.Meeting, items []*types.AgendaItem) *storage.SyncResult {
	e.t.Helper()
	result, err := e.Store.StoreMeetingFromSync(e.Ctx, meeting, items)
	if err != nil {
		e.t.Fatalf("StoreMeetingFromSync(%q) failed: %v", meeting.Title, err)
	}
	return result
}

// Enqueue places a job and returns its ID.
func (e *testEnv) Enqueue(req storage.EnqueueRequest) int64 {
	e.t.Helper()
	id, err := e.Store.Enqueue(e.Ctx, req)
	if err != nil {
		e.t.Fatalf("Enqueue(%q) failed: %v", req.SourceURL, err)
	}
	return id
}

// Claim dequeues up to limit jobs and fails the test on error.
func (e *testEnv) Claim(limit int) []*types.QueueJob {
	e.t.Helper()
	jobs, err := e.Store.GetNextForProcessing(e.Ctx, "", limit)
	if err != nil {
		e.t.Fatalf("GetNextForProcessing failed: %v", err)
	}
	return jobs
}

// Job fetches a queue row by ID.
func (e *testEnv) Job(id int64) *types.QueueJob {
	e.t.Helper()
	job, err := e.Store.GetJob(e.Ctx, id)
	if err != nil {
		e.t.Fatalf("GetJob(%d) failed: %v", id, err)
	}
	return job
}

// Items returns a meeting's agenda items.
func (e *testEnv) Items(meetingID string) []*types.AgendaItem {
	e.t.Helper()
	items, err := e.Store.GetItems(e.Ctx, meetingID)
	if err != nil {
		e.t.Fatalf("GetItems(%s) failed: %v", meetingID, err)
	}
	return items
}

// Matter fetches a matter by ID.
func (e *testEnv) Matter(id string) *types.Matter {
	e.t.Helper()
	matter, err := e.Store.GetMatter(e.Ctx, id)
	if err != nil {
		e.t.Fatalf("GetMatter(%s) failed: %v", id, err)
	}
	return matter
}
