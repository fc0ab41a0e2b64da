// SPDX-License-Identifier: MIT

// Package queue is the append-only job queue over the ledger's job rows.
// Claim order is FIFO among claimable jobs, ties broken by id.
package queue

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/spatelier/spatelier/internal/ledger"
	"github.com/spatelier/spatelier/internal/log"
)

// Queue exposes enqueue/claim/transition over the ledger.
type Queue struct {
	ledger *ledger.Ledger
	logger zerolog.Logger
}

// New wraps the ledger in a queue.
func New(l *ledger.Ledger) *Queue {
	return &Queue{
		ledger: l,
		logger: log.WithComponent("queue"),
	}
}

// Enqueue appends a new pending job and returns its ID.
func (q *Queue) Enqueue(ctx context.Context, jobType ledger.JobType, inputPath, outputPath, params string, maxRetries int) (int64, error) {
	job, err := q.ledger.CreateJob(ctx, jobType, inputPath, outputPath, params, maxRetries)
	if err != nil {
		return 0, err
	}
	q.logger.Info().
		Int64("job_id", job.ID).
		Str("job_type", string(jobType)).
		Str("input", inputPath).
		Msg("job enqueued")
	return job.ID, nil
}

// ClaimNext atomically claims the oldest claimable job for workerPID, or
// returns nil when the queue is empty. Two concurrent claimers never
// receive the same job.
func (q *Queue) ClaimNext(ctx context.Context, workerPID int) (*ledger.Job, error) {
	job, err := q.ledger.ClaimNextJob(ctx, workerPID)
	if err != nil {
		return nil, err
	}
	if job != nil {
		q.logger.Debug().
			Int64("job_id", job.ID).
			Int("worker_pid", workerPID).
			Msg("job claimed")
	}
	return job, nil
}

// Complete marks the job completed, optionally linking the produced media
// file and final output path first.
func (q *Queue) Complete(ctx context.Context, jobID int64, mediaFileID *int64, outputPath *string) error {
	if mediaFileID != nil || outputPath != nil {
		patch := ledger.JobPatch{MediaFileID: mediaFileID, OutputPath: outputPath}
		if err := q.ledger.UpdateJob(ctx, jobID, patch); err != nil {
			return err
		}
	}
	return q.ledger.UpdateJobStatus(ctx, jobID, ledger.StatusCompleted, "")
}

// Fail marks the job failed. When retryable and budget remains, the retry
// count is bumped so a later sweep can reclaim the job; a non-retryable
// failure exhausts the budget so sweeps never pick it up.
func (q *Queue) Fail(ctx context.Context, jobID int64, errMsg string, retryable bool) error {
	if err := q.ledger.UpdateJobStatus(ctx, jobID, ledger.StatusFailed, errMsg); err != nil {
		return err
	}
	if !retryable {
		return q.ledger.ExhaustRetries(ctx, jobID)
	}
	job, err := q.ledger.JobByID(ctx, jobID)
	if err != nil {
		return err
	}
	if job != nil && job.RetryCount < job.MaxRetries {
		return q.ledger.IncrementRetryCount(ctx, jobID)
	}
	return nil
}

// Requeue returns a failed job to pending for another run.
func (q *Queue) Requeue(ctx context.Context, jobID int64) error {
	return q.ledger.UpdateJobStatus(ctx, jobID, ledger.StatusPending, "")
}

// RetryableFailed lists failed jobs that still have retry budget.
func (q *Queue) RetryableFailed(ctx context.Context) ([]*ledger.Job, error) {
	failed, err := q.ledger.JobsByStatus(ctx, ledger.StatusFailed)
	if err != nil {
		return nil, err
	}
	var retryable []*ledger.Job
	for _, j := range failed {
		if j.RetryCount < j.MaxRetries {
			retryable = append(retryable, j)
		}
	}
	return retryable, nil
}

// JobsByStatus lists jobs in the given status, oldest first.
func (q *Queue) JobsByStatus(ctx context.Context, status ledger.JobStatus) ([]*ledger.Job, error) {
	return q.ledger.JobsByStatus(ctx, status)
}

// Status returns per-bucket queue depth.
func (q *Queue) Status(ctx context.Context) (ledger.QueueStatus, error) {
	return q.ledger.QueueStatus(ctx)
}
