// SPDX-License-Identifier: MIT

package usecase

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spatelier/spatelier/internal/ledger"
	"github.com/spatelier/spatelier/internal/log"
	"github.com/spatelier/spatelier/internal/media"
	"github.com/spatelier/spatelier/internal/platform/fs"
)

// TranscribeVideo is the handler body for transcribe jobs. The job's input
// path is the local media file. Untracked files are registered first so the
// transcription always has a ledger anchor. When subtitles are already
// embedded with our marker the job is a no-op; otherwise the engine runs,
// the result is stored (and indexed for search), and subtitles are embedded
// when the parameters ask for it.
func (s Services) TranscribeVideo(ctx context.Context, job *ledger.Job) error {
	logger := log.WithContext(ctx, log.WithComponent("usecase"))

	if s.Transcriber == nil {
		return media.Permanent(fmt.Errorf("transcribe: no transcription engine configured"))
	}

	var params TranscribeParams
	if job.Parameters != "" {
		if err := json.Unmarshal([]byte(job.Parameters), &params); err != nil {
			return media.Permanent(fmt.Errorf("transcribe: bad parameters: %w", err))
		}
	}

	path := job.InputPath
	if err := fs.IsRegularFile(path); err != nil {
		return media.Permanent(fmt.Errorf("transcribe: %w", err))
	}

	mediaFileID, err := s.resolveMediaFile(ctx, job, path)
	if err != nil {
		return err
	}

	if s.hasMarkedSubtitles(ctx, path) {
		logger.Info().Str("file", path).Msg("marked subtitles already present, skipping")
		if err := s.Ledger.TrackEvent(ctx, "transcription_skipped", &mediaFileID, &job.ID, map[string]any{
			"file_path": path,
		}); err != nil {
			logger.Warn().Err(err).Msg("failed to record transcription_skipped event")
		}
		return nil
	}

	if err := s.Ledger.TrackEvent(ctx, "transcription_start", &mediaFileID, &job.ID, map[string]any{
		"file_path": path,
		"language":  params.Language,
	}); err != nil {
		logger.Warn().Err(err).Msg("failed to record transcription_start event")
	}

	result, err := s.Transcriber.Transcribe(ctx, path, media.TranscribeOptions{
		Language:  params.Language,
		ModelSize: params.ModelSize,
	})
	if err != nil {
		s.trackError(ctx, "transcription_error", job.ID, map[string]any{
			"file_path": path, "error": err.Error(),
		})
		return err
	}
	if result == nil || len(result.Segments) == 0 {
		s.trackError(ctx, "transcription_error", job.ID, map[string]any{
			"file_path": path, "error": "no speech recognized",
		})
		return media.Permanent(fmt.Errorf("transcribe: no speech recognized in %s", path))
	}

	segments := make([]ledger.Segment, len(result.Segments))
	for i, seg := range result.Segments {
		segments[i] = ledger.Segment{Start: seg.Start, End: seg.End, Text: seg.Text}
	}
	stored, err := s.Ledger.StoreTranscription(ctx, mediaFileID, ledger.TranscriptionPayload{
		Language:       result.Language,
		Duration:       result.Duration,
		ProcessingTime: result.ProcessingTime,
		ModelUsed:      result.ModelUsed,
		Segments:       segments,
	})
	if err != nil {
		return err
	}

	if err := s.Ledger.TrackEvent(ctx, "transcription_completed", &mediaFileID, &job.ID, map[string]any{
		"language":        stored.Language,
		"duration":        stored.Duration,
		"processing_time": stored.ProcessingTime,
		"model_used":      stored.ModelUsed,
		"segments":        len(stored.Segments),
	}); err != nil {
		logger.Warn().Err(err).Msg("failed to record transcription_completed event")
	}

	logger.Info().
		Str("file", path).
		Str("language", stored.Language).
		Int("segments", len(stored.Segments)).
		Msg("transcription stored")

	if !params.EmbedSubtitles {
		return nil
	}
	return s.embedSubtitles(ctx, job.ID, mediaFileID, path, result)
}

// EmbedSubtitles is the handler body for embed_subtitles jobs: it loads the
// stored transcription for the job's input file and muxes it in.
func (s Services) EmbedSubtitles(ctx context.Context, job *ledger.Job) error {
	if s.Muxer == nil {
		return media.Permanent(fmt.Errorf("embed: no muxer configured"))
	}

	path := job.InputPath
	if err := fs.IsRegularFile(path); err != nil {
		return media.Permanent(fmt.Errorf("embed: %w", err))
	}

	mediaFileID, err := s.resolveMediaFile(ctx, job, path)
	if err != nil {
		return err
	}
	stored, err := s.Ledger.TranscriptionByMediaFile(ctx, mediaFileID)
	if err != nil {
		return err
	}
	if stored == nil {
		return media.Permanent(fmt.Errorf("embed: no transcription stored for %s", path))
	}

	result := &media.TranscriptionResult{Language: stored.Language}
	result.Segments = make([]media.TranscriptionSegment, len(stored.Segments))
	for i, seg := range stored.Segments {
		result.Segments[i] = media.TranscriptionSegment{Start: seg.Start, End: seg.End, Text: seg.Text}
	}
	return s.embedSubtitles(ctx, job.ID, mediaFileID, path, result)
}

func (s Services) embedSubtitles(ctx context.Context, jobID, mediaFileID int64, path string, result *media.TranscriptionResult) error {
	logger := log.WithContext(ctx, log.WithComponent("usecase"))

	if s.Muxer == nil {
		return media.Permanent(fmt.Errorf("embed: no muxer configured"))
	}

	track := media.SubtitleTrack{
		Title: media.SubtitleTitle(s.Config.SubtitleMarker, result.Language),
		SRT:   media.SegmentsToSRT(result.Segments),
	}
	if err := s.Muxer.Embed(ctx, path, track, path); err != nil {
		s.trackError(ctx, "subtitle_embedding_error", jobID, map[string]any{
			"file_path": path, "error": err.Error(),
		})
		return err
	}

	if err := s.Ledger.TrackEvent(ctx, "subtitle_embedding_completed", &mediaFileID, &jobID, map[string]any{
		"file_path": path,
		"language":  result.Language,
	}); err != nil {
		logger.Warn().Err(err).Msg("failed to record subtitle_embedding_completed event")
	}

	logger.Info().Str("file", path).Msg("subtitles embedded")
	return nil
}

// resolveMediaFile returns the ledger anchor for the job, tracking the file
// on the fly when the job arrived without one.
func (s Services) resolveMediaFile(ctx context.Context, job *ledger.Job, path string) (int64, error) {
	if job.MediaFileID != nil {
		return *job.MediaFileID, nil
	}
	tracked, err := s.trackFile(ctx, path, s.mediaTypeForPath(path), sourceInfo{})
	if err != nil {
		return 0, err
	}
	if err := s.Ledger.UpdateJob(ctx, job.ID, ledger.JobPatch{MediaFileID: &tracked.ID}); err != nil {
		return 0, err
	}
	return tracked.ID, nil
}
