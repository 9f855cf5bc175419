package scheduler

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/engagic/engagic/internal/storage"
	"github.com/engagic/engagic/internal/storage/sqlite"
	"github.com/engagic/engagic/internal/types"
)

type fakeSyncer struct {
	calls atomic.Int32
}

func (f *fakeSyncer) SyncAll(ctx context.Context) error {
	f.calls.Add(1)
	return nil
}

// fakeRunner marks jobs complete and records which ids it saw.
type fakeRunner struct {
	store storage.Storage

	mu   sync.Mutex
	seen map[int64]int
}

func (f *fakeRunner) Process(ctx context.Context, job *types.QueueJob) error {
	f.mu.Lock()
	if f.seen == nil {
		f.seen = make(map[int64]int)
	}
	f.seen[job.ID]++
	f.mu.Unlock()
	return f.store.MarkJobComplete(ctx, job.ID, "")
}

func newTestStore(t *testing.T) *sqlite.SQLiteStorage {
	t.Helper()
	store, err := sqlite.New(context.Background(), t.TempDir()+"/test.db")
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSchedulerDrainsQueueExactlyOnce(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	var ids []int64
	for i := 0; i < 5; i++ {
		id, err := store.Enqueue(ctx, storage.EnqueueRequest{
			SourceURL: "items://m" + string(rune('a'+i)),
			JobType:   types.JobMeeting,
			Payload:   "{}",
			Priority:  types.BaseJobPriority,
		})
		if err != nil {
			t.Fatal(err)
		}
		ids = append(ids, id)
	}

	runner := &fakeRunner{store: store}
	s := New(Options{
		Store:        store,
		Syncer:       &fakeSyncer{},
		Runner:       runner,
		Logger:       quietLogger(),
		Workers:      4,
		PollInterval: 10 * time.Millisecond,
		DrainTimeout: time.Second,
	})

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- s.Run(runCtx) }()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		stats, err := store.QueueStats(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if stats.Completed == len(ids) && stats.Pending == 0 && stats.Processing == 0 {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	cancel()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("scheduler did not shut down")
	}

	runner.mu.Lock()
	defer runner.mu.Unlock()
	if len(runner.seen) != len(ids) {
		t.Fatalf("processed %d distinct jobs, want %d", len(runner.seen), len(ids))
	}
	for _, id := range ids {
		if runner.seen[id] != 1 {
			t.Errorf("job %d processed %d times, want exactly once", id, runner.seen[id])
		}
	}
}

func TestSchedulerRunsSyncOnStartup(t *testing.T) {
	store := newTestStore(t)
	syncer := &fakeSyncer{}
	s := New(Options{
		Store:        store,
		Syncer:       syncer,
		Runner:       &fakeRunner{store: store},
		Logger:       quietLogger(),
		Workers:      1,
		PollInterval: 10 * time.Millisecond,
		DrainTimeout: time.Second,
	})

	runCtx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(runCtx) }()

	deadline := time.Now().Add(2 * time.Second)
	for syncer.calls.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	cancel()
	<-done

	if syncer.calls.Load() == 0 {
		t.Error("scheduler never ran the initial sync pass")
	}
}

func TestSchedulerRecoversStaleOnStartup(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	id, err := store.Enqueue(ctx, storage.EnqueueRequest{
		SourceURL: "items://stuck",
		JobType:   types.JobMeeting,
		Payload:   "{}",
		Priority:  types.BaseJobPriority,
	})
	if err != nil {
		t.Fatal(err)
	}
	// Simulate a worker killed mid-job.
	if jobs, err := store.GetNextForProcessing(ctx, types.JobMeeting, 1); err != nil || len(jobs) != 1 {
		t.Fatalf("claim failed: %v (%d jobs)", err, len(jobs))
	}
	time.Sleep(20 * time.Millisecond)

	runner := &fakeRunner{store: store}
	s := New(Options{
		Store:          store,
		Syncer:         &fakeSyncer{},
		Runner:         runner,
		Logger:         quietLogger(),
		Workers:        1,
		StaleThreshold: 10 * time.Millisecond,
		PollInterval:   10 * time.Millisecond,
		DrainTimeout:   time.Second,
	})

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- s.Run(runCtx) }()

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		job, err := store.GetJob(ctx, id)
		if err != nil {
			t.Fatal(err)
		}
		if job.Status == types.JobCompleted {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	cancel()
	<-done

	job, err := store.GetJob(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if job.Status != types.JobCompleted {
		t.Errorf("stale job status = %s, want completed after recovery and re-run", job.Status)
	}
}
