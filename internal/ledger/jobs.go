// SPDX-License-Identifier: MIT

package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const jobColumns = `id, media_file_id, job_type, input_path, output_path, parameters,
	status, error_message, created_at_ms, started_at_ms, completed_at_ms,
	duration_seconds, retry_count, max_retries, worker_pid`

// validTransitions encodes the monotone job state machine. The only loop is
// failed -> pending, which the worker uses to reclaim retryable failures.
var validTransitions = map[JobStatus][]JobStatus{
	StatusPending:    {StatusProcessing},
	StatusProcessing: {StatusCompleted, StatusFailed},
	StatusFailed:     {StatusPending},
}

func transitionAllowed(from, to JobStatus) bool {
	for _, next := range validTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// CreateJob inserts a new pending job and returns it with the ID assigned.
func (l *Ledger) CreateJob(ctx context.Context, jobType JobType, inputPath, outputPath, parameters string, maxRetries int) (*Job, error) {
	now := time.Now()
	res, err := l.db.ExecContext(ctx, `
		INSERT INTO processing_jobs (job_type, input_path, output_path, parameters, status, created_at_ms, retry_count, max_retries)
		VALUES (?, ?, ?, ?, 'pending', ?, 0, ?)`,
		string(jobType), inputPath, outputPath, parameters, toMS(now), maxRetries,
	)
	if err != nil {
		return nil, mapConstraintErr(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return &Job{
		ID:         id,
		JobType:    jobType,
		InputPath:  inputPath,
		OutputPath: outputPath,
		Parameters: parameters,
		Status:     StatusPending,
		CreatedAt:  now,
		MaxRetries: maxRetries,
	}, nil
}

// JobByID returns the job row, or nil when absent.
func (l *Ledger) JobByID(ctx context.Context, id int64) (*Job, error) {
	row := l.db.QueryRowContext(ctx,
		"SELECT "+jobColumns+" FROM processing_jobs WHERE id = ?", id)
	j, err := scanJob(row)
	if err != nil {
		return nil, err
	}
	return j, nil
}

// UpdateJob applies a partial update outside the status machine.
func (l *Ledger) UpdateJob(ctx context.Context, id int64, patch JobPatch) error {
	sets := []string{}
	args := []any{}
	if patch.MediaFileID != nil {
		sets = append(sets, "media_file_id = ?")
		args = append(args, *patch.MediaFileID)
	}
	if patch.OutputPath != nil {
		sets = append(sets, "output_path = ?")
		args = append(args, *patch.OutputPath)
	}
	if len(sets) == 0 {
		return nil
	}
	query := "UPDATE processing_jobs SET "
	for i, s := range sets {
		if i > 0 {
			query += ", "
		}
		query += s
	}
	query += " WHERE id = ?"
	args = append(args, id)

	res, err := l.db.ExecContext(ctx, query, args...)
	if err != nil {
		return mapConstraintErr(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: job %d", ErrNotFound, id)
	}
	return nil
}

// UpdateJobStatus is the sole entry point for job status changes. It
// enforces the monotone state machine, stamps started_at on the
// pending->processing edge, and on any terminal edge stamps completed_at and
// derives duration_seconds from started_at.
func (l *Ledger) UpdateJobStatus(ctx context.Context, id int64, next JobStatus, errMsg string) error {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var current string
	var startedAt sql.NullInt64
	err = tx.QueryRowContext(ctx,
		"SELECT status, started_at_ms FROM processing_jobs WHERE id = ?", id).
		Scan(&current, &startedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: job %d", ErrNotFound, id)
		}
		return err
	}

	from := JobStatus(current)
	if !transitionAllowed(from, next) {
		return fmt.Errorf("%w: %s -> %s (job %d)", ErrInvalidTransition, from, next, id)
	}

	now := time.Now()
	switch next {
	case StatusProcessing:
		_, err = tx.ExecContext(ctx, `
			UPDATE processing_jobs
			SET status = 'processing', started_at_ms = ?, error_message = NULL
			WHERE id = ?`, toMS(now), id)
	case StatusCompleted, StatusFailed:
		var duration sql.NullFloat64
		if startedAt.Valid {
			duration = sql.NullFloat64{
				Float64: now.Sub(time.UnixMilli(startedAt.Int64)).Seconds(),
				Valid:   true,
			}
		}
		var msg sql.NullString
		if errMsg != "" {
			msg = sql.NullString{String: errMsg, Valid: true}
		}
		_, err = tx.ExecContext(ctx, `
			UPDATE processing_jobs
			SET status = ?, completed_at_ms = ?, duration_seconds = ?, error_message = ?
			WHERE id = ?`, string(next), toMS(now), duration, msg, id)
	case StatusPending:
		// Retry reclaim: the job re-enters the queue with its timing reset
		// so the next run gets a fresh duration.
		_, err = tx.ExecContext(ctx, `
			UPDATE processing_jobs
			SET status = 'pending', started_at_ms = NULL, completed_at_ms = NULL,
			    duration_seconds = NULL, worker_pid = NULL, error_message = NULL
			WHERE id = ?`, id)
	}
	if err != nil {
		return err
	}
	return tx.Commit()
}

// ClaimNextJob atomically claims the oldest claimable pending job for
// workerPID and transitions it to processing. Jobs whose target media file
// already has an in-flight job are skipped. Returns nil when the queue has
// nothing claimable. The conditional update keyed on the current status
// guarantees two concurrent claimers never win the same job.
func (l *Ledger) ClaimNextJob(ctx context.Context, workerPID int) (*Job, error) {
	for {
		row := l.db.QueryRowContext(ctx, `
			SELECT id FROM processing_jobs
			WHERE status = 'pending'
			  AND (media_file_id IS NULL OR media_file_id NOT IN (
			        SELECT media_file_id FROM processing_jobs
			        WHERE status = 'processing' AND media_file_id IS NOT NULL))
			ORDER BY created_at_ms, id
			LIMIT 1`)

		var id int64
		if err := row.Scan(&id); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, nil
			}
			return nil, err
		}

		res, err := l.db.ExecContext(ctx, `
			UPDATE processing_jobs
			SET status = 'processing', started_at_ms = ?, worker_pid = ?, error_message = NULL
			WHERE id = ? AND status = 'pending'`,
			toMS(time.Now()), workerPID, id)
		if err != nil {
			return nil, err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return nil, err
		}
		if n == 0 {
			// Lost the race for this row; pick the next candidate.
			continue
		}
		return l.JobByID(ctx, id)
	}
}

// IncrementRetryCount bumps retry_count, clamped to max_retries.
func (l *Ledger) IncrementRetryCount(ctx context.Context, id int64) error {
	_, err := l.db.ExecContext(ctx, `
		UPDATE processing_jobs
		SET retry_count = MIN(retry_count + 1, max_retries)
		WHERE id = ?`, id)
	return err
}

// ExhaustRetries spends the remaining retry budget, pinning retry_count to
// max_retries.
func (l *Ledger) ExhaustRetries(ctx context.Context, id int64) error {
	_, err := l.db.ExecContext(ctx, `
		UPDATE processing_jobs
		SET retry_count = max_retries
		WHERE id = ?`, id)
	return err
}

// JobsByStatus returns all jobs in the given status, oldest first.
func (l *Ledger) JobsByStatus(ctx context.Context, status JobStatus) ([]*Job, error) {
	rows, err := l.db.QueryContext(ctx,
		"SELECT "+jobColumns+" FROM processing_jobs WHERE status = ? ORDER BY created_at_ms, id",
		string(status))
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var jobs []*Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

// InFlightJobForMedia reports whether the media file has a pending or
// processing job other than excludeJobID.
func (l *Ledger) InFlightJobForMedia(ctx context.Context, mediaFileID, excludeJobID int64) (bool, error) {
	var n int
	err := l.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM processing_jobs
		WHERE media_file_id = ? AND id != ? AND status IN ('pending','processing')`,
		mediaFileID, excludeJobID).Scan(&n)
	return n > 0, err
}

// QueueStatus returns per-bucket queue depth.
func (l *Ledger) QueueStatus(ctx context.Context) (QueueStatus, error) {
	var qs QueueStatus
	rows, err := l.db.QueryContext(ctx, `
		SELECT status, COUNT(*),
		       SUM(CASE WHEN status = 'failed' AND retry_count < max_retries THEN 1 ELSE 0 END)
		FROM processing_jobs GROUP BY status`)
	if err != nil {
		return qs, err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var status string
		var count int
		var retrying sql.NullInt64
		if err := rows.Scan(&status, &count, &retrying); err != nil {
			return qs, err
		}
		switch JobStatus(status) {
		case StatusPending:
			qs.Pending = count
		case StatusProcessing:
			qs.Processing = count
		case StatusCompleted:
			qs.Completed = count
		case StatusFailed:
			qs.Failed = count
			if retrying.Valid {
				qs.Retrying = int(retrying.Int64)
			}
		}
	}
	return qs, rows.Err()
}

// JobStatisticsSnapshot aggregates job counts and average duration.
func (l *Ledger) JobStatisticsSnapshot(ctx context.Context) (JobStatistics, error) {
	stats := JobStatistics{
		ByStatus: map[JobStatus]int{},
		ByType:   map[JobType]int{},
	}

	rows, err := l.db.QueryContext(ctx,
		"SELECT status, job_type, COUNT(*) FROM processing_jobs GROUP BY status, job_type")
	if err != nil {
		return stats, err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var status, jobType string
		var count int
		if err := rows.Scan(&status, &jobType, &count); err != nil {
			return stats, err
		}
		stats.Total += count
		stats.ByStatus[JobStatus(status)] += count
		stats.ByType[JobType(jobType)] += count
	}
	if err := rows.Err(); err != nil {
		return stats, err
	}

	var avg sql.NullFloat64
	err = l.db.QueryRowContext(ctx,
		"SELECT AVG(duration_seconds) FROM processing_jobs WHERE duration_seconds IS NOT NULL").
		Scan(&avg)
	if err != nil {
		return stats, err
	}
	if avg.Valid {
		stats.AvgDurationSecs = avg.Float64
	}
	return stats, nil
}

func scanJob(scanner interface{ Scan(dest ...any) error }) (*Job, error) {
	var j Job
	var mediaFileID, startedAt, completedAt, workerPID sql.NullInt64
	var errMsg sql.NullString
	var duration sql.NullFloat64
	var jobType, status string
	var createdAt int64

	err := scanner.Scan(
		&j.ID, &mediaFileID, &jobType, &j.InputPath, &j.OutputPath, &j.Parameters,
		&status, &errMsg, &createdAt, &startedAt, &completedAt,
		&duration, &j.RetryCount, &j.MaxRetries, &workerPID,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	j.MediaFileID = intPtr(mediaFileID)
	j.JobType = JobType(jobType)
	j.Status = JobStatus(status)
	j.ErrorMessage = strPtr(errMsg)
	j.CreatedAt = fromMS(createdAt)
	j.StartedAt = msToNullTime(startedAt)
	j.CompletedAt = msToNullTime(completedAt)
	j.DurationSeconds = floatPtr(duration)
	j.WorkerPID = intPtr(workerPID)
	return &j, nil
}
