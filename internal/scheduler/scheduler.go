// Package scheduler runs the two-phase pipeline: a periodic sync pass
// that refreshes every active city, and a worker pool that drains the
// job queue through the processor. The queue is the only coupling
// between the phases; either side can fall behind without blocking the
// other.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/engagic/engagic/internal/storage"
	"github.com/engagic/engagic/internal/types"
)

const (
	DefaultSyncInterval   = 72 * time.Hour
	DefaultWorkers        = 8
	DefaultStaleThreshold = 10 * time.Minute
	DefaultDrainTimeout   = 60 * time.Second
	defaultPollInterval   = 5 * time.Second
)

// Syncer is the sync phase. Implemented by *fetcher.Fetcher.
type Syncer interface {
	SyncAll(ctx context.Context) error
}

// JobRunner is the processing phase. Implemented by *processor.Processor.
type JobRunner interface {
	Process(ctx context.Context, job *types.QueueJob) error
}

// Options configures a Scheduler. Store, Syncer and Runner are required.
type Options struct {
	Store  storage.Storage
	Syncer Syncer
	Runner JobRunner
	Logger *slog.Logger

	SyncInterval   time.Duration
	Workers        int
	StaleThreshold time.Duration
	DrainTimeout   time.Duration
	PollInterval   time.Duration
}

type Scheduler struct {
	store  storage.Storage
	syncer Syncer
	runner JobRunner
	logger *slog.Logger

	syncInterval   time.Duration
	workers        int
	staleThreshold time.Duration
	drainTimeout   time.Duration
	pollInterval   time.Duration
}

func New(opts Options) *Scheduler {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.SyncInterval == 0 {
		opts.SyncInterval = DefaultSyncInterval
	}
	if opts.Workers == 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.StaleThreshold == 0 {
		opts.StaleThreshold = DefaultStaleThreshold
	}
	if opts.DrainTimeout == 0 {
		opts.DrainTimeout = DefaultDrainTimeout
	}
	if opts.PollInterval == 0 {
		opts.PollInterval = defaultPollInterval
	}
	return &Scheduler{
		store:          opts.Store,
		syncer:         opts.Syncer,
		runner:         opts.Runner,
		logger:         opts.Logger,
		syncInterval:   opts.SyncInterval,
		workers:        opts.Workers,
		staleThreshold: opts.StaleThreshold,
		drainTimeout:   opts.DrainTimeout,
		pollInterval:   opts.PollInterval,
	}
}

// Run blocks until ctx is cancelled, then stops dequeuing and waits up
// to the drain timeout for in-flight jobs. Jobs abandoned past the
// timeout are reclaimed by RecoverStale on the next startup.
func (s *Scheduler) Run(ctx context.Context) error {
	if n, err := s.store.RecoverStale(ctx, s.staleThreshold); err != nil {
		s.logger.Error("stale recovery failed", "error", err)
	} else if n > 0 {
		s.logger.Info("recovered stale jobs", "count", n)
	}

	// In-flight jobs outlive the cancellation signal; the drain wait
	// below bounds how long.
	jobCtx := context.WithoutCancel(ctx)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		s.syncLoop(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		s.recoverLoop(ctx)
	}()

	for i := 0; i < s.workers; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			s.workerLoop(ctx, jobCtx, worker)
		}(i)
	}

	<-ctx.Done()
	s.logger.Info("shutting down, draining workers", "timeout", s.drainTimeout)

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		s.logger.Info("drain complete")
	case <-time.After(s.drainTimeout):
		s.logger.Warn("drain timeout elapsed, abandoning in-flight jobs")
	}
	return ctx.Err()
}

func (s *Scheduler) syncLoop(ctx context.Context) {
	ticker := time.NewTicker(s.syncInterval)
	defer ticker.Stop()

	for {
		if err := s.syncer.SyncAll(ctx); err != nil && ctx.Err() == nil {
			s.logger.Error("sync pass failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) recoverLoop(ctx context.Context) {
	ticker := time.NewTicker(s.staleThreshold)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if n, err := s.store.RecoverStale(ctx, s.staleThreshold); err != nil && ctx.Err() == nil {
			s.logger.Error("stale recovery failed", "error", err)
		} else if n > 0 {
			s.logger.Info("recovered stale jobs", "count", n)
		}
	}
}

// workerLoop claims and runs one job at a time. Dequeues stop the moment
// ctx is cancelled; the job in hand finishes on jobCtx.
func (s *Scheduler) workerLoop(ctx, jobCtx context.Context, worker int) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		jobs, err := s.store.GetNextForProcessing(ctx, types.JobMeeting, 1)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.logger.Error("dequeue failed", "worker", worker, "error", err)
			s.sleep(ctx, s.pollInterval)
			continue
		}
		if len(jobs) == 0 {
			s.sleep(ctx, s.pollInterval)
			continue
		}

		// Process records success or failure on the queue row itself.
		_ = s.runner.Process(jobCtx, jobs[0])
	}
}

func (s *Scheduler) sleep(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
