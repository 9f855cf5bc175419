// Package storage defines the repository interface over the unified store.
//
// All row mutation flows through these methods; callers never touch SQL
// directly. Repositories never commit on their own: multi-step writes run
// inside RunInTransaction and the caller owns the transaction boundary.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/engagic/engagic/internal/types"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// SyncResult summarizes one StoreMeetingFromSync call, mainly for logging.
type SyncResult struct {
	MeetingID     string
	ItemCount     int
	NewMatters    int
	SeenMatters   int   // matters already known to the city
	EnqueuedJobID int64 // 0 when nothing was enqueued
}

// QueueStats is the observable state of the job queue.
type QueueStats struct {
	Pending    int
	Processing int
	Completed  int
	Failed     int
	DeadLetter int
}

// CorpusStats is the read-only analytics snapshot served to operators.
type CorpusStats struct {
	Cities            int
	Meetings          int
	MeetingsCompleted int
	Items             int
	ItemsSummarized   int
	Matters           int
	Appearances       int
	Queue             QueueStats
}

// EnqueueRequest describes a job to place on the queue.
type EnqueueRequest struct {
	SourceURL string
	JobType   types.JobType
	Payload   string
	MeetingID string
	Banana    string
	Priority  int

	// Force resets a completed/failed/dead_letter row for this URL back to
	// pending. Without it, terminal rows are treated as cached work and the
	// enqueue is a no-op.
	Force bool
}

// Transaction exposes the subset of repository methods that execute within
// a single database transaction. Operations either all commit or all roll
// back; the Transaction never commits itself.
type Transaction interface {
	UpsertCity(ctx context.Context, city *types.City) error
	UpsertMeeting(ctx context.Context, meeting *types.Meeting) error
	UpsertItems(ctx context.Context, items []*types.AgendaItem) error
	TrackMatter(ctx context.Context, item *types.AgendaItem, meeting *types.Meeting) (matterID string, created bool, err error)
	Enqueue(ctx context.Context, req EnqueueRequest) (int64, error)
	UpdateItemSummary(ctx context.Context, itemID, summary string, topics []string) error
	ApplyCanonicalSummary(ctx context.Context, matterID, summary string, topics []string) (itemsUpdated int, err error)
}

// Storage is the unified store: cities, meetings, agenda items, matters,
// matter appearances, and the job queue, all in one database.
type Storage interface {
	// Cities (seeded administratively).
	UpsertCity(ctx context.Context, city *types.City) error
	GetCity(ctx context.Context, banana string) (*types.City, error)
	ListCities(ctx context.Context) ([]*types.City, error)
	AddZipcode(ctx context.Context, banana, zipcode string, primary bool) error

	// StoreMeetingFromSync persists one meeting with its items, tracks
	// matters and appearances, and enqueues a processing job if work
	// remains, all in a single transaction per meeting. Re-running it
	// with identical adapter output is a structural no-op that preserves
	// every non-null summary/topics field.
	StoreMeetingFromSync(ctx context.Context, meeting *types.Meeting, items []*types.AgendaItem) (*SyncResult, error)

	GetMeeting(ctx context.Context, id string) (*types.Meeting, error)
	ListMeetings(ctx context.Context, banana string) ([]*types.Meeting, error)
	SetMeetingProcessing(ctx context.Context, id string, status types.ProcessingStatus) error
	// StoreMeetingResult records the pipeline output for a meeting:
	// summary (monolithic mode), aggregated topics, method tag, wall time.
	StoreMeetingResult(ctx context.Context, id, summary string, topics []string, method string, seconds float64) error

	GetItems(ctx context.Context, meetingID string) ([]*types.AgendaItem, error)
	UpdateItemSummary(ctx context.Context, itemID, summary string, topics []string) error

	GetMatter(ctx context.Context, id string) (*types.Matter, error)
	ListMatters(ctx context.Context, banana string) ([]*types.Matter, error)
	ListAppearances(ctx context.Context, matterID string) ([]*types.MatterAppearance, error)
	ApplyCanonicalSummary(ctx context.Context, matterID, summary string, topics []string) (itemsUpdated int, err error)
	// SetMatterOutcome records a vote outcome on an appearance and, for
	// terminal outcomes, atomically sets the matter's terminal status and
	// final_vote_date.
	SetMatterOutcome(ctx context.Context, matterID, meetingID, itemID string, outcome types.VoteOutcome, tally *types.VoteTally, votedAt time.Time) error

	// Queue.
	Enqueue(ctx context.Context, req EnqueueRequest) (int64, error)
	GetNextForProcessing(ctx context.Context, jobType types.JobType, limit int) ([]*types.QueueJob, error)
	MarkJobComplete(ctx context.Context, jobID int64, metadata string) error
	MarkJobFailed(ctx context.Context, jobID int64, errMsg string, retryable bool) error
	RecoverStale(ctx context.Context, threshold time.Duration) (int, error)
	RetryDeadLetter(ctx context.Context) (int, error)
	GetJob(ctx context.Context, jobID int64) (*types.QueueJob, error)
	QueueStats(ctx context.Context) (*QueueStats, error)

	// Extracted-document cache, shared across processing jobs so an
	// attachment reused by several meetings is only downloaded once.
	GetCachedDocument(ctx context.Context, url string) (text string, pages int, ok bool, err error)
	PutCachedDocument(ctx context.Context, url, text string, pages int) error

	Stats(ctx context.Context) (*CorpusStats, error)

	RunInTransaction(ctx context.Context, fn func(tx Transaction) error) error

	Close() error
}
