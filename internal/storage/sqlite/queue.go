package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/engagic/engagic/internal/storage"
	"github.com/engagic/engagic/internal/types"
)

// retryLimit is the number of transient failures before a job moves to
// dead_letter. The third failure lands with retry_count=3.
const retryLimit = 3

// retryPriorityStep is subtracted per retry, scaled by the attempt number,
// so repeatedly failing jobs sink below fresh work.
const retryPriorityStep = 20

// enqueue places a job on the queue with UPSERT-on-source_url semantics:
//
//   - no row for the URL: insert as pending
//   - live row (pending/processing): raise priority to max(old, new), nothing else
//   - terminal row (completed/failed/dead_letter): no-op unless Force,
//     which resets the row to a fresh pending state
//
// The unique index on source_url plus this dance guarantees at most one
// live row per URL.
func enqueue(ctx context.Context, q dbtx, req storage.EnqueueRequest) (int64, error) {
	if req.SourceURL == "" {
		return 0, errors.New("enqueue: empty source_url")
	}
	if req.JobType == "" {
		req.JobType = types.JobMeeting
	}

	var id int64
	var status string
	var priority int
	err := q.QueryRowContext(ctx, `
		SELECT id, status, priority FROM queue WHERE source_url = ?
	`, req.SourceURL).Scan(&id, &status, &priority)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		res, err := q.ExecContext(ctx, `
			INSERT INTO queue (source_url, meeting_id, banana, job_type, payload, status, priority, created_at)
			VALUES (?, ?, ?, ?, ?, 'pending', ?, ?)
		`, req.SourceURL, nullString(req.MeetingID), nullString(req.Banana),
			string(req.JobType), nullString(req.Payload), req.Priority, time.Now().UTC())
		if err != nil {
			return 0, fmt.Errorf("failed to enqueue %s: %w", req.SourceURL, err)
		}
		return res.LastInsertId()

	case err != nil:
		return 0, fmt.Errorf("failed to probe queue for %s: %w", req.SourceURL, err)
	}

	if types.JobStatus(status).Live() {
		if req.Priority > priority {
			if _, err := q.ExecContext(ctx, `
				UPDATE queue SET priority = ? WHERE id = ?
			`, req.Priority, id); err != nil {
				return 0, fmt.Errorf("failed to raise priority of job %d: %w", id, err)
			}
		}
		return id, nil
	}

	// Terminal row: completed work is cached, so leave it alone unless the
	// caller forces a re-run.
	if !req.Force {
		return 0, nil
	}
	_, err = q.ExecContext(ctx, `
		UPDATE queue SET
			status = 'pending', priority = ?, retry_count = 0,
			payload = ?, meeting_id = ?, banana = ?, job_type = ?,
			started_at = NULL, completed_at = NULL, failed_at = NULL,
			error_message = NULL, created_at = ?
		WHERE id = ?
	`, req.Priority, nullString(req.Payload), nullString(req.MeetingID),
		nullString(req.Banana), string(req.JobType), time.Now().UTC(), id)
	if err != nil {
		return 0, fmt.Errorf("failed to reset job %d: %w", id, err)
	}
	return id, nil
}

func (s *SQLiteStorage) Enqueue(ctx context.Context, req storage.EnqueueRequest) (int64, error) {
	var id int64
	err := s.RunInTransaction(ctx, func(tx storage.Transaction) error {
		var err error
		id, err = tx.Enqueue(ctx, req)
		return err
	})
	return id, err
}

func (t *sqliteTx) Enqueue(ctx context.Context, req storage.EnqueueRequest) (int64, error) {
	return enqueue(ctx, t.tx, req)
}

// GetNextForProcessing atomically claims up to limit pending jobs: the
// select and the transition to processing happen in one immediate write
// transaction, so concurrent workers never claim the same row. SQLite's
// single-writer model is our FOR UPDATE SKIP LOCKED.
func (s *SQLiteStorage) GetNextForProcessing(ctx context.Context, jobType types.JobType, limit int) ([]*types.QueueJob, error) {
	if limit <= 0 {
		limit = 1
	}

	var jobs []*types.QueueJob
	err := s.RunInTransaction(ctx, func(tx storage.Transaction) error {
		st := tx.(*sqliteTx)

		query := `
			SELECT id, source_url, meeting_id, banana, job_type, payload,
			       status, priority, retry_count, created_at, started_at,
			       completed_at, failed_at, error_message, processing_metadata
			FROM queue WHERE status = 'pending'`
		args := []any{}
		if jobType != "" {
			query += ` AND job_type = ?`
			args = append(args, string(jobType))
		}
		query += ` ORDER BY priority DESC, created_at ASC, id ASC LIMIT ?`
		args = append(args, limit)

		rows, err := st.tx.QueryContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("failed to select pending jobs: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			job, err := scanJob(rows)
			if err != nil {
				return err
			}
			jobs = append(jobs, job)
		}
		if err := rows.Err(); err != nil {
			return err
		}

		now := time.Now().UTC()
		for _, job := range jobs {
			if _, err := st.tx.ExecContext(ctx, `
				UPDATE queue SET status = 'processing', started_at = ? WHERE id = ?
			`, now, job.ID); err != nil {
				return fmt.Errorf("failed to claim job %d: %w", job.ID, err)
			}
			job.Status = types.JobProcessing
			started := now
			job.StartedAt = &started
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return jobs, nil
}

// MarkJobComplete finishes a job, keeping the row as a completed-work
// cache entry for its source_url.
func (s *SQLiteStorage) MarkJobComplete(ctx context.Context, jobID int64, metadata string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE queue SET status = 'completed', completed_at = ?,
			processing_metadata = ?, error_message = NULL
		WHERE id = ?
	`, time.Now().UTC(), nullString(metadata), jobID)
	if err != nil {
		return fmt.Errorf("failed to complete job %d: %w", jobID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("job %d: %w", jobID, storage.ErrNotFound)
	}
	return nil
}

// MarkJobFailed runs the retry ladder. Transient failures re-queue the job
// with reduced priority until the limit is reached; non-retryable failures
// (parse errors on permanently malformed documents) go straight to
// dead_letter. Dead-letter rows are never auto-reprocessed.
func (s *SQLiteStorage) MarkJobFailed(ctx context.Context, jobID int64, errMsg string, retryable bool) error {
	return s.RunInTransaction(ctx, func(tx storage.Transaction) error {
		st := tx.(*sqliteTx)

		var retryCount, priority int
		err := st.tx.QueryRowContext(ctx, `
			SELECT retry_count, priority FROM queue WHERE id = ?
		`, jobID).Scan(&retryCount, &priority)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("job %d: %w", jobID, storage.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("failed to read job %d: %w", jobID, err)
		}

		now := time.Now().UTC()

		if !retryable {
			_, err := st.tx.ExecContext(ctx, `
				UPDATE queue SET status = 'dead_letter', failed_at = ?, error_message = ? WHERE id = ?
			`, now, errMsg, jobID)
			if err != nil {
				return fmt.Errorf("failed to dead-letter job %d: %w", jobID, err)
			}
			return nil
		}

		attempt := retryCount + 1
		newPriority := priority - retryPriorityStep*attempt

		if attempt >= retryLimit {
			_, err := st.tx.ExecContext(ctx, `
				UPDATE queue SET status = 'dead_letter', retry_count = ?, priority = ?,
					failed_at = ?, error_message = ?
				WHERE id = ?
			`, attempt, newPriority, now, errMsg, jobID)
			if err != nil {
				return fmt.Errorf("failed to dead-letter job %d: %w", jobID, err)
			}
			return nil
		}

		_, err = st.tx.ExecContext(ctx, `
			UPDATE queue SET status = 'pending', retry_count = ?, priority = ?,
				started_at = NULL, error_message = ?
			WHERE id = ?
		`, attempt, newPriority, errMsg, jobID)
		if err != nil {
			return fmt.Errorf("failed to requeue job %d: %w", jobID, err)
		}
		return nil
	})
}

// RecoverStale resets processing rows whose worker disappeared (crash,
// kill) back to pending. Runs periodically and at startup.
func (s *SQLiteStorage) RecoverStale(ctx context.Context, threshold time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-threshold)
	res, err := s.db.ExecContext(ctx, `
		UPDATE queue SET status = 'pending', started_at = NULL
		WHERE status = 'processing' AND started_at < ?
	`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to recover stale jobs: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// RetryDeadLetter manually resets every dead-letter row to pending with a
// fresh retry budget. This is the only path out of dead_letter.
func (s *SQLiteStorage) RetryDeadLetter(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE queue SET status = 'pending', retry_count = 0, priority = 0,
			started_at = NULL, failed_at = NULL
		WHERE status = 'dead_letter'
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to reset dead-letter jobs: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// GetJob returns one queue row, or storage.ErrNotFound.
func (s *SQLiteStorage) GetJob(ctx context.Context, jobID int64) (*types.QueueJob, error) {
	job, err := scanJob(s.db.QueryRowContext(ctx, `
		SELECT id, source_url, meeting_id, banana, job_type, payload,
		       status, priority, retry_count, created_at, started_at,
		       completed_at, failed_at, error_message, processing_metadata
		FROM queue WHERE id = ?
	`, jobID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("job %d: %w", jobID, storage.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get job %d: %w", jobID, err)
	}
	return job, nil
}

// QueueStats counts rows per status.
func (s *SQLiteStorage) QueueStats(ctx context.Context) (*storage.QueueStats, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT status, COUNT(*) FROM queue GROUP BY status
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to read queue stats: %w", err)
	}
	defer rows.Close()

	var stats storage.QueueStats
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		switch types.JobStatus(status) {
		case types.JobPending:
			stats.Pending = count
		case types.JobProcessing:
			stats.Processing = count
		case types.JobCompleted:
			stats.Completed = count
		case types.JobFailed:
			stats.Failed = count
		case types.JobDeadLetter:
			stats.DeadLetter = count
		}
	}
	return &stats, rows.Err()
}

func scanJob(row rowScanner) (*types.QueueJob, error) {
	var job types.QueueJob
	var meetingID, banana, payload, jobType, status sql.NullString
	var errMsg, metadata sql.NullString
	var createdAt sql.NullTime
	var startedAt, completedAt, failedAt sql.NullTime

	err := row.Scan(&job.ID, &job.SourceURL, &meetingID, &banana, &jobType,
		&payload, &status, &job.Priority, &job.RetryCount, &createdAt,
		&startedAt, &completedAt, &failedAt, &errMsg, &metadata)
	if err != nil {
		return nil, err
	}

	job.MeetingID = meetingID.String
	job.Banana = banana.String
	job.JobType = types.JobType(jobType.String)
	job.Payload = payload.String
	job.Status = types.JobStatus(status.String)
	job.CreatedAt = createdAt.Time
	if startedAt.Valid {
		t := startedAt.Time
		job.StartedAt = &t
	}
	if completedAt.Valid {
		t := completedAt.Time
		job.CompletedAt = &t
	}
	if failedAt.Valid {
		t := failedAt.Time
		job.FailedAt = &t
	}
	job.ErrorMessage = errMsg.String
	job.ProcessingMetadata = metadata.String
	return &job, nil
}
