// SPDX-License-Identifier: MIT

package worker

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spatelier/spatelier/internal/ledger"
)

// stuckJobs finds processing jobs whose worker is gone and whose output
// shows no recent progress. A job is stuck only when every check agrees:
// it is older than the stuck timeout, its recorded worker PID is dead, and
// nothing under its output path has been touched within the grace window.
func (w *Worker) stuckJobs(ctx context.Context) ([]*ledger.Job, error) {
	processing, err := w.queue.JobsByStatus(ctx, ledger.StatusProcessing)
	if err != nil {
		return nil, err
	}

	now := w.clock()
	var stuck []*ledger.Job
	for _, job := range processing {
		if job.StartedAt == nil || now.Sub(*job.StartedAt) <= w.cfg.StuckJobTimeout {
			continue
		}
		if job.WorkerPID != nil && int64(w.pid) == *job.WorkerPID {
			// Our own in-flight job; the handler is still running.
			continue
		}
		if job.WorkerPID != nil && w.processAlive(int(*job.WorkerPID)) {
			continue
		}
		if w.recentProgress(job, now) {
			continue
		}
		stuck = append(stuck, job)
	}
	return stuck, nil
}

// recentProgress reports whether anything under the job's output path has
// an mtime inside the grace window. A long-running external download keeps
// touching its partial files, so this guards against killing live work
// whose worker record is merely stale.
func (w *Worker) recentProgress(job *ledger.Job, now time.Time) bool {
	if job.OutputPath == "" {
		return false
	}
	cutoff := now.Add(-w.cfg.ProgressGrace)

	info, err := os.Stat(job.OutputPath)
	if err != nil {
		return false
	}
	if !info.IsDir() {
		return info.ModTime().After(cutoff)
	}

	entries, err := os.ReadDir(job.OutputPath)
	if err != nil {
		return false
	}
	for _, entry := range entries {
		fi, err := entry.Info()
		if err != nil {
			continue
		}
		if fi.ModTime().After(cutoff) {
			return true
		}
	}
	return false
}

// handleStuckJobs rescues or fails each stuck job. A job whose output
// already holds a finished video artifact is promoted to completed: the
// work was done, only the bookkeeping was lost. Everything else is failed
// with a retry bump so the next sweep can reclaim it.
func (w *Worker) handleStuckJobs(ctx context.Context, stuck []*ledger.Job) {
	for _, job := range stuck {
		logger := w.logger.With().Int64("job_id", job.ID).Logger()

		w.mu.Lock()
		w.stats.StuckDetected++
		w.mu.Unlock()
		if w.metrics != nil {
			w.metrics.Stuck.Inc()
		}

		if out, ok := w.completedArtifact(job); ok {
			if err := w.queue.Complete(ctx, job.ID, nil, &out); err != nil {
				logger.Error().Err(err).Msg("failed to rescue stuck job")
				continue
			}
			logger.Info().Str("output", out).Msg("stuck job rescued, output already present")
			continue
		}

		if err := w.queue.Fail(ctx, job.ID, "stuck: worker no longer running and no progress on disk", true); err != nil {
			logger.Error().Err(err).Msg("failed to fail stuck job")
			continue
		}
		logger.Warn().Msg("stuck job failed for retry")
	}
}

// completedArtifact looks for a finished video container at the job's
// output path. Partial downloads keep engine-specific suffixes, so a file
// with a recognised video extension and non-zero size counts as done.
func (w *Worker) completedArtifact(job *ledger.Job) (string, bool) {
	if job.OutputPath == "" {
		return "", false
	}

	info, err := os.Stat(job.OutputPath)
	if err != nil {
		return "", false
	}
	if !info.IsDir() {
		if info.Size() > 0 && w.isVideoFile(job.OutputPath) {
			return job.OutputPath, true
		}
		return "", false
	}

	entries, err := os.ReadDir(job.OutputPath)
	if err != nil {
		return "", false
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(job.OutputPath, entry.Name())
		fi, err := entry.Info()
		if err != nil || fi.Size() == 0 {
			continue
		}
		if w.isVideoFile(path) {
			return path, true
		}
	}
	return "", false
}

func (w *Worker) isVideoFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, v := range w.videoExtensions {
		if ext == strings.ToLower(v) {
			return true
		}
	}
	return false
}
