// SPDX-License-Identifier: MIT

package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spatelier/spatelier/internal/ledger"
	"github.com/spatelier/spatelier/internal/log"
	"github.com/spatelier/spatelier/internal/media"
)

// DownloadOutcome reports what a download produced.
type DownloadOutcome struct {
	MediaFileID int64
	FilePath    string
	Skipped     bool
	Metadata    media.SourceMetadata
}

// DownloadVideo is the handler body for download_video jobs. The URL is the
// job's input path; the destination directory comes from the parameters or
// the configured download directory. On success the job row is linked to
// the tracked media file and, when requested, a transcription job is
// enqueued as a follow-up.
func (s Services) DownloadVideo(ctx context.Context, job *ledger.Job) error {
	logger := log.WithContext(ctx, log.WithComponent("usecase"))

	var params DownloadParams
	if job.Parameters != "" {
		if err := json.Unmarshal([]byte(job.Parameters), &params); err != nil {
			return media.Permanent(fmt.Errorf("download: bad parameters: %w", err))
		}
	}

	destDir := params.OutputDir
	if destDir == "" {
		destDir = job.OutputPath
	}
	if destDir == "" {
		destDir = s.Config.DownloadDir
	}

	outcome, err := s.downloadOne(ctx, job.ID, job.InputPath, destDir)
	if err != nil {
		return err
	}

	patch := ledger.JobPatch{MediaFileID: &outcome.MediaFileID, OutputPath: &outcome.FilePath}
	if err := s.Ledger.UpdateJob(ctx, job.ID, patch); err != nil {
		return err
	}

	if params.Transcribe && !outcome.Skipped {
		if err := s.enqueueTranscription(ctx, outcome, params); err != nil {
			logger.Warn().Err(err).
				Int64("media_file_id", outcome.MediaFileID).
				Msg("failed to enqueue follow-up transcription")
		}
	}
	return nil
}

// downloadOne runs the full staged download of one URL into destDir. It is
// shared by the single-video and playlist paths.
func (s Services) downloadOne(ctx context.Context, jobID int64, url, destDir string) (*DownloadOutcome, error) {
	logger := log.WithContext(ctx, log.WithComponent("usecase"))

	if s.Downloader == nil {
		return nil, media.Permanent(fmt.Errorf("download: no download engine configured"))
	}

	platform := media.PlatformFromURL(url)
	videoID := media.VideoIDFromURL(url)

	// Smart overwrite: a video already on disk is skipped only when it
	// carries our subtitle marker. A file without it still needs work, so
	// it is fetched and processed again.
	if videoID != "" {
		existing, err := s.Ledger.MediaFileBySourceID(ctx, platform, videoID)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			if _, statErr := os.Stat(existing.FilePath); statErr == nil {
				if s.hasMarkedSubtitles(ctx, existing.FilePath) {
					logger.Info().
						Str("url", url).
						Str("file", existing.FilePath).
						Msg("already downloaded with marked subtitles, skipping")
					if err := s.Ledger.TrackEvent(ctx, "download_skipped", &existing.ID, &jobID, map[string]any{
						"url": url, "file_path": existing.FilePath,
					}); err != nil {
						logger.Warn().Err(err).Msg("failed to record download_skipped event")
					}
					return &DownloadOutcome{MediaFileID: existing.ID, FilePath: existing.FilePath, Skipped: true}, nil
				}
				logger.Info().
					Str("url", url).
					Str("file", existing.FilePath).
					Msg("existing file has no marked subtitles, re-downloading")
			}
		}
	}

	if err := s.Ledger.TrackEvent(ctx, "download_start", nil, &jobID, map[string]any{"url": url}); err != nil {
		logger.Warn().Err(err).Msg("failed to record download_start event")
	}

	if !s.Storage.CanWriteTo(destDir) {
		return nil, media.Permanent(fmt.Errorf("download: destination %s is not writable", destDir))
	}

	stageDir, err := s.Storage.StageDir(jobID)
	if err != nil {
		return nil, media.Transient(err)
	}
	defer s.Storage.Cleanup(stageDir)

	result, err := s.Downloader.Download(ctx, url, stageDir)
	if err != nil {
		s.trackError(ctx, "download_error", jobID, map[string]any{"url": url, "error": err.Error()})
		return nil, err
	}

	announced := ""
	var metadata media.SourceMetadata
	if result != nil {
		announced = result.FilePath
		metadata = result.Metadata
	}
	resolved, err := media.ResolveDownloadedFile(announced, stageDir, url, s.Config.VideoExtensions)
	if err != nil {
		s.trackError(ctx, "download_error", jobID, map[string]any{"url": url, "error": err.Error()})
		return nil, media.Permanent(err)
	}

	destPath := filepath.Join(destDir, filepath.Base(resolved))
	if err := s.Storage.Publish(resolved, destPath); err != nil {
		s.trackError(ctx, "download_error", jobID, map[string]any{"url": url, "error": err.Error()})
		if s.Storage.IsRemote(destDir) {
			return nil, media.Transient(err)
		}
		return nil, err
	}

	tracked, err := s.trackFile(ctx, destPath, s.mediaTypeForPath(destPath), sourceInfo{
		URL:      url,
		Platform: platform,
		ID:       videoID,
		Metadata: metadata,
	})
	if err != nil {
		return nil, err
	}

	if err := s.Ledger.TrackEvent(ctx, "download_completed", &tracked.ID, &jobID, map[string]any{
		"url":       url,
		"file_path": destPath,
	}); err != nil {
		logger.Warn().Err(err).Msg("failed to record download_completed event")
	}

	logger.Info().
		Str("url", url).
		Str("file", destPath).
		Int64("media_file_id", tracked.ID).
		Msg("download completed")

	return &DownloadOutcome{MediaFileID: tracked.ID, FilePath: destPath, Metadata: metadata}, nil
}

func (s Services) enqueueTranscription(ctx context.Context, outcome *DownloadOutcome, params DownloadParams) error {
	tp := TranscribeParams{
		Language:       params.Language,
		ModelSize:      params.ModelSize,
		EmbedSubtitles: params.EmbedSubtitles,
	}
	payload, err := json.Marshal(tp)
	if err != nil {
		return err
	}
	_, err = s.Queue.Enqueue(ctx, ledger.JobTranscribe, outcome.FilePath, "", string(payload), s.Config.Worker.MaxRetries)
	return err
}

func (s Services) trackError(ctx context.Context, eventType string, jobID int64, data map[string]any) {
	if err := s.Ledger.TrackEvent(ctx, eventType, nil, &jobID, data); err != nil {
		logger := log.WithComponent("usecase")
		logger.Warn().Err(err).
			Str("event_type", eventType).
			Msg("failed to record error event")
	}
}
