// SPDX-License-Identifier: MIT

// Package worker runs the poll loop that claims jobs, throttles between
// them, detects stuck jobs left behind by dead workers, retries transient
// failures and dispatches to per-type handlers.
package worker

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/spatelier/spatelier/internal/config"
	"github.com/spatelier/spatelier/internal/ledger"
	"github.com/spatelier/spatelier/internal/log"
	"github.com/spatelier/spatelier/internal/queue"
)

// Handler processes one claimed job. Handlers return ok or an error; they
// never update queue state themselves — the worker owns all transitions.
type Handler func(ctx context.Context, job *ledger.Job) error

// Mode selects the deployment shape. Correctness is identical across modes.
type Mode string

const (
	ModeThread Mode = "thread"
	ModeDaemon Mode = "daemon"
	ModeAuto   Mode = "auto"
)

// resolveMode maps auto to daemon when running under an init-like parent,
// thread otherwise.
func resolveMode(m Mode) Mode {
	if m != ModeAuto {
		return m
	}
	if os.Getppid() == 1 {
		return ModeDaemon
	}
	return ModeThread
}

// ActiveJob describes one job currently inside a handler.
type ActiveJob struct {
	JobID     int64          `json:"job_id"`
	JobType   ledger.JobType `json:"job_type"`
	PID       int            `json:"pid"`
	StartedAt time.Time      `json:"started_at"`
}

// Stats counts what the worker has done since start.
type Stats struct {
	Processed     int64 `json:"processed"`
	Failed        int64 `json:"failed"`
	Retried       int64 `json:"retried"`
	StuckDetected int64 `json:"stuck_detected"`
}

// StatsSnapshot is the observable worker state.
type StatsSnapshot struct {
	WorkerRunning bool   `json:"worker_running"`
	Mode          string `json:"mode"`
	Throttling    struct {
		MinTimeBetweenJobs time.Duration `json:"min_time_between_jobs"`
		AdditionalSleep    time.Duration `json:"additional_sleep"`
	} `json:"throttling"`
	WorkerStats Stats              `json:"worker_stats"`
	ActiveJobs  []ActiveJob        `json:"active_jobs"`
	QueueStatus ledger.QueueStatus `json:"queue_status"`
}

// Worker is the job scheduler runtime.
type Worker struct {
	cfg             config.WorkerConfig
	mode            Mode
	queue           *queue.Queue
	videoExtensions []string
	pid             int
	logger          zerolog.Logger
	metrics         *Metrics

	mu          sync.Mutex
	handlers    map[ledger.JobType]Handler
	activeJobs  map[int64]ActiveJob
	stats       Stats
	lastJobTime time.Time
	running     bool

	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}

	pidFile *pidFile

	// Overridable for tests.
	clock         func() time.Time
	processAlive  func(pid int) bool
	sleepInterval time.Duration
}

// New builds a worker over the queue. videoExtensions drives the
// output-artifact check during stuck detection.
func New(cfg config.WorkerConfig, q *queue.Queue, videoExtensions []string) *Worker {
	return &Worker{
		cfg:             cfg,
		mode:            resolveMode(Mode(cfg.Mode)),
		queue:           q,
		videoExtensions: videoExtensions,
		pid:             os.Getpid(),
		logger:          log.WithComponent("worker"),
		handlers:        map[ledger.JobType]Handler{},
		activeJobs:      map[int64]ActiveJob{},
		stop:            make(chan struct{}),
		done:            make(chan struct{}),
		clock:           time.Now,
		processAlive:    processAlive,
		sleepInterval:   cfg.PollInterval,
	}
}

// SetMetrics attaches Prometheus instrumentation.
func (w *Worker) SetMetrics(m *Metrics) { w.metrics = m }

// RegisterHandler installs the handler for a job type, replacing any prior
// registration.
func (w *Worker) RegisterHandler(jobType ledger.JobType, h Handler) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.handlers[jobType] = h
}

// Mode returns the resolved run mode.
func (w *Worker) Mode() Mode { return w.mode }

// Run executes the poll loop until ctx is cancelled or Stop is called.
// In daemon mode the PID and lock files are held for the duration.
func (w *Worker) Run(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("worker: already running")
	}
	w.running = true
	w.mu.Unlock()

	defer func() {
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
		close(w.done)
	}()

	if w.mode == ModeDaemon {
		pf, err := acquirePIDFile(w.cfg.PIDFile, w.cfg.LockFile, w.pid)
		if err != nil {
			return err
		}
		w.pidFile = pf
		defer pf.release()
	}

	w.logger.Info().
		Str("mode", string(w.mode)).
		Int("pid", w.pid).
		Dur("poll_interval", w.cfg.PollInterval).
		Dur("min_time_between_jobs", w.cfg.MinTimeBetweenJobs).
		Msg("worker started")

	for {
		if w.stopped(ctx) {
			w.logger.Info().Msg("worker stopping")
			return nil
		}

		// Sweeps run before throttling so recovery is never delayed by
		// job pacing.
		w.sweep(ctx)

		if wait, throttled := w.throttleDelay(); throttled {
			if !w.sleep(ctx, wait) {
				return nil
			}
			continue
		}

		job, err := w.queue.ClaimNext(ctx, w.pid)
		if err != nil {
			w.logger.Error().Err(err).Msg("claim failed, backing off")
			if !w.sleep(ctx, w.sleepInterval) {
				return nil
			}
			continue
		}
		if job == nil {
			if !w.sleep(ctx, w.sleepInterval) {
				return nil
			}
			continue
		}

		w.processJob(ctx, job)
	}
}

// Stop requests a cooperative shutdown. The current iteration finishes; an
// in-flight handler runs to completion.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() { close(w.stop) })
}

// Wait blocks until the loop has exited.
func (w *Worker) Wait() { <-w.done }

func (w *Worker) stopped(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	case <-w.stop:
		return true
	default:
		return false
	}
}

// sleep waits for d or until shutdown; it reports false on shutdown.
func (w *Worker) sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	case <-w.stop:
		return false
	}
}

// throttleDelay reports how long to wait before the next job start.
func (w *Worker) throttleDelay() (time.Duration, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.lastJobTime.IsZero() || w.cfg.MinTimeBetweenJobs <= 0 {
		return 0, false
	}
	elapsed := w.clock().Sub(w.lastJobTime)
	if elapsed >= w.cfg.MinTimeBetweenJobs {
		return 0, false
	}
	return w.cfg.MinTimeBetweenJobs - elapsed + w.cfg.AdditionalSleep, true
}

// sweep recovers stuck jobs and reclaims retryable failures.
func (w *Worker) sweep(ctx context.Context) {
	stuck, err := w.stuckJobs(ctx)
	if err != nil {
		w.logger.Error().Err(err).Msg("stuck-job scan failed")
	} else if len(stuck) > 0 {
		w.handleStuckJobs(ctx, stuck)
	}

	retryable, err := w.queue.RetryableFailed(ctx)
	if err != nil {
		w.logger.Error().Err(err).Msg("retryable scan failed")
		return
	}
	for _, job := range retryable {
		if err := w.queue.Requeue(ctx, job.ID); err != nil {
			w.logger.Error().Err(err).Int64("job_id", job.ID).Msg("requeue failed")
			continue
		}
		w.logger.Info().
			Int64("job_id", job.ID).
			Int("retry_count", job.RetryCount).
			Int("max_retries", job.MaxRetries).
			Msg("failed job reclaimed for retry")
	}
}

func (w *Worker) processJob(ctx context.Context, job *ledger.Job) {
	jobCtx := log.ContextWithJobID(ctx, job.ID)
	jobCtx = log.ContextWithCorrelationID(jobCtx, uuid.NewString())
	logger := log.WithContext(jobCtx, w.logger)

	w.mu.Lock()
	handler, ok := w.handlers[job.JobType]
	w.mu.Unlock()
	if !ok {
		logger.Error().Str("job_type", string(job.JobType)).Msg("no handler registered")
		if err := w.queue.Fail(ctx, job.ID, fmt.Sprintf("no processor for job type %q", job.JobType), false); err != nil {
			logger.Error().Err(err).Msg("failed to record missing-handler failure")
		}
		w.recordFailure()
		return
	}

	wasRetry := job.RetryCount > 0

	w.mu.Lock()
	w.activeJobs[job.ID] = ActiveJob{
		JobID:     job.ID,
		JobType:   job.JobType,
		PID:       w.pid,
		StartedAt: w.clock(),
	}
	w.mu.Unlock()

	logger.Info().Str("job_type", string(job.JobType)).Str("input", job.InputPath).Msg("processing job")

	err := handler(jobCtx, job)

	w.mu.Lock()
	delete(w.activeJobs, job.ID)
	w.lastJobTime = w.clock()
	w.mu.Unlock()

	if err == nil {
		if cErr := w.queue.Complete(ctx, job.ID, nil, nil); cErr != nil {
			logger.Error().Err(cErr).Msg("failed to mark job completed")
		}
		w.mu.Lock()
		w.stats.Processed++
		if wasRetry {
			w.stats.Retried++
		}
		w.mu.Unlock()
		if w.metrics != nil {
			w.metrics.Processed.Inc()
			if wasRetry {
				w.metrics.Retried.Inc()
			}
		}
		logger.Info().Msg("job completed")
		return
	}

	retryable := w.classifyRetryable(err, job)
	if fErr := w.queue.Fail(ctx, job.ID, err.Error(), retryable); fErr != nil {
		logger.Error().Err(fErr).Msg("failed to mark job failed")
	}
	w.recordFailure()
	logger.Warn().
		Err(err).
		Bool("retryable", retryable).
		Int("retry_count", job.RetryCount).
		Msg("job failed")
}

func (w *Worker) recordFailure() {
	w.mu.Lock()
	w.stats.Failed++
	w.mu.Unlock()
	if w.metrics != nil {
		w.metrics.Failed.Inc()
	}
}

// StatsSnapshot returns the observable worker state together with the
// queue depth.
func (w *Worker) StatsSnapshot(ctx context.Context) (StatsSnapshot, error) {
	var snap StatsSnapshot
	w.mu.Lock()
	snap.WorkerRunning = w.running
	snap.WorkerStats = w.stats
	for _, aj := range w.activeJobs {
		snap.ActiveJobs = append(snap.ActiveJobs, aj)
	}
	w.mu.Unlock()
	snap.Mode = string(w.mode)
	snap.Throttling.MinTimeBetweenJobs = w.cfg.MinTimeBetweenJobs
	snap.Throttling.AdditionalSleep = w.cfg.AdditionalSleep

	qs, err := w.queue.Status(ctx)
	if err != nil {
		return snap, err
	}
	snap.QueueStatus = qs
	if w.metrics != nil {
		w.metrics.SetQueueDepth(qs)
	}
	return snap, nil
}
