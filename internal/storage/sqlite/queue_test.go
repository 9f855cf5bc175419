package sqlite

import (
	"testing"
	"time"

	"github.com/engagic/engagic/internal/storage"
	"github.com/engagic/engagic/internal/types"
)

func enqueueReq(url string, priority int) storage.EnqueueRequest {
	return storage.EnqueueRequest{
		SourceURL: url,
		JobType:   types.JobMeeting,
		Banana:    "paloaltoCA",
		Priority:  priority,
	}
}

func TestEnqueueOneLiveRowPerURL(t *testing.T) {
	e := newTestEnv(t)

	first := e.Enqueue(enqueueReq("https://docs.example.com/a.pdf", 50))
	second := e.Enqueue(enqueueReq("https://docs.example.com/a.pdf", 80))

	if second != first {
		t.Fatalf("second enqueue created job %d, want existing live job %d", second, first)
	}
	if job := e.Job(first); job.Priority != 80 {
		t.Errorf("priority = %d after re-enqueue, want raised to 80", job.Priority)
	}

	// Lower priority never demotes a live row.
	e.Enqueue(enqueueReq("https://docs.example.com/a.pdf", 10))
	if job := e.Job(first); job.Priority != 80 {
		t.Errorf("priority = %d, re-enqueue at 10 must not demote", job.Priority)
	}
}

func TestEnqueueTerminalRowIsCached(t *testing.T) {
	e := newTestEnv(t)

	id := e.Enqueue(enqueueReq("https://docs.example.com/b.pdf", 50))
	if err := e.Store.MarkJobComplete(e.Ctx, id, `{"items": 3}`); err != nil {
		t.Fatalf("MarkJobComplete failed: %v", err)
	}

	if again := e.Enqueue(enqueueReq("https://docs.example.com/b.pdf", 90)); again != 0 {
		t.Fatalf("enqueue over a completed row returned %d, want 0 (no-op)", again)
	}
	if job := e.Job(id); job.Status != types.JobCompleted {
		t.Errorf("completed row was disturbed: %q", job.Status)
	}

	// Force is the explicit re-run path.
	req := enqueueReq("https://docs.example.com/b.pdf", 90)
	req.Force = true
	if forced := e.Enqueue(req); forced != id {
		t.Fatalf("forced enqueue returned %d, want reset of row %d", forced, id)
	}
	job := e.Job(id)
	if job.Status != types.JobPending {
		t.Errorf("forced row status = %q, want pending", job.Status)
	}
	if job.RetryCount != 0 {
		t.Errorf("forced row retry_count = %d, want 0", job.RetryCount)
	}
	if job.CompletedAt != nil {
		t.Error("forced row should clear completed_at")
	}
}

func TestEnqueueEmptyURL(t *testing.T) {
	e := newTestEnv(t)
	if _, err := e.Store.Enqueue(e.Ctx, enqueueReq("", 10)); err == nil {
		t.Fatal("expected error for empty source_url")
	}
}

func TestClaimOrdering(t *testing.T) {
	e := newTestEnv(t)

	low := e.Enqueue(enqueueReq("https://docs.example.com/low.pdf", 10))
	high := e.Enqueue(enqueueReq("https://docs.example.com/high.pdf", 90))
	mid := e.Enqueue(enqueueReq("https://docs.example.com/mid.pdf", 50))

	jobs := e.Claim(3)
	if len(jobs) != 3 {
		t.Fatalf("claimed %d jobs, want 3", len(jobs))
	}
	want := []int64{high, mid, low}
	for i, job := range jobs {
		if job.ID != want[i] {
			t.Errorf("claim order[%d] = job %d, want %d", i, job.ID, want[i])
		}
		if job.Status != types.JobProcessing {
			t.Errorf("claimed job %d status = %q, want processing", job.ID, job.Status)
		}
		if job.StartedAt == nil {
			t.Errorf("claimed job %d has no started_at", job.ID)
		}
	}
}

func TestClaimTiesBreakOldestFirst(t *testing.T) {
	e := newTestEnv(t)

	first := e.Enqueue(enqueueReq("https://docs.example.com/t1.pdf", 50))
	second := e.Enqueue(enqueueReq("https://docs.example.com/t2.pdf", 50))

	jobs := e.Claim(2)
	if len(jobs) != 2 || jobs[0].ID != first || jobs[1].ID != second {
		t.Fatalf("tie-break order wrong: got %v, want [%d %d]", jobIDs(jobs), first, second)
	}
}

func TestClaimAtMostOnce(t *testing.T) {
	e := newTestEnv(t)

	e.Enqueue(enqueueReq("https://docs.example.com/c.pdf", 50))

	if got := e.Claim(5); len(got) != 1 {
		t.Fatalf("first claim got %d jobs, want 1", len(got))
	}
	if got := e.Claim(5); len(got) != 0 {
		t.Fatalf("second claim got %d jobs, want 0 (row is processing)", len(got))
	}
}

func TestClaimFiltersJobType(t *testing.T) {
	e := newTestEnv(t)

	req := enqueueReq("https://docs.example.com/m.pdf", 50)
	req.JobType = types.JobMatter
	matterJob := e.Enqueue(req)
	e.Enqueue(enqueueReq("https://docs.example.com/n.pdf", 90))

	jobs, err := e.Store.GetNextForProcessing(e.Ctx, types.JobMatter, 10)
	if err != nil {
		t.Fatalf("GetNextForProcessing failed: %v", err)
	}
	if len(jobs) != 1 || jobs[0].ID != matterJob {
		t.Fatalf("type-filtered claim got %v, want [%d]", jobIDs(jobs), matterJob)
	}
}

func TestRetryLadder(t *testing.T) {
	e := newTestEnv(t)

	id := e.Enqueue(enqueueReq("https://docs.example.com/flaky.pdf", 100))

	fail := func(attempt int) {
		t.Helper()
		jobs := e.Claim(1)
		if len(jobs) != 1 || jobs[0].ID != id {
			t.Fatalf("attempt %d: claim got %v, want [%d]", attempt, jobIDs(jobs), id)
		}
		if err := e.Store.MarkJobFailed(e.Ctx, id, "fetch timeout", true); err != nil {
			t.Fatalf("attempt %d: MarkJobFailed failed: %v", attempt, err)
		}
	}

	fail(1)
	job := e.Job(id)
	if job.Status != types.JobPending {
		t.Fatalf("after failure 1: status %q, want pending", job.Status)
	}
	if job.RetryCount != 1 {
		t.Errorf("after failure 1: retry_count %d, want 1", job.RetryCount)
	}
	if job.Priority != 100-20 {
		t.Errorf("after failure 1: priority %d, want 80", job.Priority)
	}
	if job.StartedAt != nil {
		t.Error("requeued job should clear started_at")
	}

	fail(2)
	job = e.Job(id)
	if job.Status != types.JobPending || job.RetryCount != 2 {
		t.Fatalf("after failure 2: status %q retry_count %d, want pending/2", job.Status, job.RetryCount)
	}
	if job.Priority != 80-40 {
		t.Errorf("after failure 2: priority %d, want 40", job.Priority)
	}

	fail(3)
	job = e.Job(id)
	if job.Status != types.JobDeadLetter {
		t.Fatalf("after failure 3: status %q, want dead_letter", job.Status)
	}
	if job.RetryCount != 3 {
		t.Errorf("dead-letter retry_count = %d, want 3", job.RetryCount)
	}
	if job.ErrorMessage != "fetch timeout" {
		t.Errorf("dead-letter error_message = %q", job.ErrorMessage)
	}

	// Dead-letter rows are never claimed again.
	if got := e.Claim(5); len(got) != 0 {
		t.Fatalf("claimed %d jobs from dead letter, want 0", len(got))
	}
}

func TestNonRetryableGoesStraightToDeadLetter(t *testing.T) {
	e := newTestEnv(t)

	id := e.Enqueue(enqueueReq("https://docs.example.com/corrupt.pdf", 50))
	e.Claim(1)
	if err := e.Store.MarkJobFailed(e.Ctx, id, "unparseable document", false); err != nil {
		t.Fatalf("MarkJobFailed failed: %v", err)
	}

	job := e.Job(id)
	if job.Status != types.JobDeadLetter {
		t.Fatalf("status = %q, want dead_letter on first non-retryable failure", job.Status)
	}
	if job.RetryCount != 0 {
		t.Errorf("retry_count = %d, non-retryable path should not consume retries", job.RetryCount)
	}
}

func TestRecoverStale(t *testing.T) {
	e := newTestEnv(t)

	stale := e.Enqueue(enqueueReq("https://docs.example.com/stale.pdf", 50))
	e.Claim(1)

	// Fresh threshold: nothing is stale yet.
	n, err := e.Store.RecoverStale(e.Ctx, time.Hour)
	if err != nil {
		t.Fatalf("RecoverStale failed: %v", err)
	}
	if n != 0 {
		t.Fatalf("recovered %d jobs against a 1h threshold, want 0", n)
	}

	// Zero threshold treats any processing row as abandoned.
	time.Sleep(10 * time.Millisecond)
	n, err = e.Store.RecoverStale(e.Ctx, 0)
	if err != nil {
		t.Fatalf("RecoverStale failed: %v", err)
	}
	if n != 1 {
		t.Fatalf("recovered %d jobs, want 1", n)
	}
	job := e.Job(stale)
	if job.Status != types.JobPending {
		t.Errorf("recovered job status = %q, want pending", job.Status)
	}
	if job.StartedAt != nil {
		t.Error("recovered job should clear started_at")
	}
}

func TestRetryDeadLetter(t *testing.T) {
	e := newTestEnv(t)

	id := e.Enqueue(enqueueReq("https://docs.example.com/dead.pdf", 50))
	e.Claim(1)
	if err := e.Store.MarkJobFailed(e.Ctx, id, "boom", false); err != nil {
		t.Fatalf("MarkJobFailed failed: %v", err)
	}

	n, err := e.Store.RetryDeadLetter(e.Ctx)
	if err != nil {
		t.Fatalf("RetryDeadLetter failed: %v", err)
	}
	if n != 1 {
		t.Fatalf("reset %d dead-letter jobs, want 1", n)
	}
	job := e.Job(id)
	if job.Status != types.JobPending {
		t.Errorf("status = %q after dead-letter retry, want pending", job.Status)
	}
	if job.RetryCount != 0 {
		t.Errorf("retry_count = %d after dead-letter retry, want fresh budget", job.RetryCount)
	}
}

func TestQueueStats(t *testing.T) {
	e := newTestEnv(t)

	done := e.Enqueue(enqueueReq("https://docs.example.com/s1.pdf", 50))
	e.Enqueue(enqueueReq("https://docs.example.com/s2.pdf", 40))
	dead := e.Enqueue(enqueueReq("https://docs.example.com/s3.pdf", 30))

	claimed := e.Claim(1)
	if claimed[0].ID != done {
		t.Fatalf("setup claimed job %d, want %d", claimed[0].ID, done)
	}
	if err := e.Store.MarkJobComplete(e.Ctx, done, ""); err != nil {
		t.Fatalf("MarkJobComplete failed: %v", err)
	}
	if err := e.Store.MarkJobFailed(e.Ctx, dead, "bad", false); err != nil {
		t.Fatalf("MarkJobFailed failed: %v", err)
	}

	stats, err := e.Store.QueueStats(e.Ctx)
	if err != nil {
		t.Fatalf("QueueStats failed: %v", err)
	}
	if stats.Pending != 1 || stats.Completed != 1 || stats.DeadLetter != 1 {
		t.Errorf("stats = %+v, want 1 pending / 1 completed / 1 dead_letter", stats)
	}
}

func TestGetJobNotFound(t *testing.T) {
	e := newTestEnv(t)
	if _, err := e.Store.GetJob(e.Ctx, 9999); err == nil {
		t.Fatal("expected ErrNotFound for missing job")
	}
}

func jobIDs(jobs []*types.QueueJob) []int64 {
	ids := make([]int64, len(jobs))
	for i, j := range jobs {
		ids[i] = j.ID
	}
	return ids
}
