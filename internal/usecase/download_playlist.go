// SPDX-License-Identifier: MIT

package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"golang.org/x/time/rate"

	"github.com/spatelier/spatelier/internal/ledger"
	"github.com/spatelier/spatelier/internal/log"
	"github.com/spatelier/spatelier/internal/media"
)

// EntryFailure records why one playlist entry could not be completed.
type EntryFailure struct {
	Position int    `json:"position"`
	URL      string `json:"url,omitempty"`
	Title    string `json:"title,omitempty"`
	Reason   string `json:"reason"`
}

// PlaylistOutcome summarizes a playlist run.
type PlaylistOutcome struct {
	PlaylistID int64          `json:"playlist_id"`
	Total      int            `json:"total"`
	Completed  int            `json:"completed"`
	Failed     int            `json:"failed"`
	Failures   []EntryFailure `json:"failures,omitempty"`
}

// Remaining is the count of entries not yet accounted for; zero after a
// full run.
func (o PlaylistOutcome) Remaining() int {
	return o.Total - o.Completed - o.Failed
}

// DownloadPlaylist is the handler body for download_playlist jobs. The
// playlist is resolved without downloading, upserted into the ledger, then
// entries are fetched one by one with pacing between starts. Entry failures
// accrue instead of aborting the run; the job fails only when resolution
// fails or no entry succeeds.
func (s Services) DownloadPlaylist(ctx context.Context, job *ledger.Job) error {
	logger := log.WithContext(ctx, log.WithComponent("usecase"))

	if s.Playlists == nil {
		return media.Permanent(fmt.Errorf("playlist: no resolver configured"))
	}

	var params DownloadParams
	if job.Parameters != "" {
		if err := json.Unmarshal([]byte(job.Parameters), &params); err != nil {
			return media.Permanent(fmt.Errorf("playlist: bad parameters: %w", err))
		}
	}
	destDir := params.OutputDir
	if destDir == "" {
		destDir = job.OutputPath
	}
	if destDir == "" {
		destDir = s.Config.DownloadDir
	}

	info, err := s.Playlists.ResolvePlaylist(ctx, job.InputPath)
	if err != nil {
		s.trackError(ctx, "playlist_error", job.ID, map[string]any{
			"url": job.InputPath, "error": err.Error(),
		})
		return err
	}
	if info == nil || len(info.Entries) == 0 {
		return media.Permanent(fmt.Errorf("playlist: %s resolved to no entries", job.InputPath))
	}

	platform := info.Platform
	if platform == "" {
		platform = media.PlatformFromURL(job.InputPath)
	}
	var uploader *string
	if info.Uploader != "" {
		uploader = &info.Uploader
	}
	playlist, err := s.Ledger.UpsertPlaylist(ctx, ledger.Playlist{
		PlaylistID:     info.ID,
		Title:          info.Title,
		Uploader:       uploader,
		SourceURL:      job.InputPath,
		SourcePlatform: platform,
		VideoCount:     len(info.Entries),
	})
	if err != nil {
		return err
	}

	logger.Info().
		Str("playlist", info.Title).
		Int("entries", len(info.Entries)).
		Msg("playlist resolved")

	outcome := PlaylistOutcome{PlaylistID: playlist.ID, Total: len(info.Entries)}

	// Pacing between entry downloads keeps the source platform happy.
	limiter := rate.NewLimiter(rate.Every(s.Config.Worker.MinTimeBetweenJobs), 1)

	for i, entry := range info.Entries {
		position := i + 1

		if params.ContinueDownload {
			if done, reason := s.entryAlreadyDone(ctx, playlist.ID, position); done {
				outcome.Completed++
				s.trackProgress(ctx, job.ID, playlist.ID, outcome)
				continue
			} else if reason != "" {
				logger.Warn().Int("position", position).Str("reason", reason).Msg("re-fetching playlist entry")
			}
		}

		if outcome.Completed+outcome.Failed > 0 {
			if err := limiter.Wait(ctx); err != nil {
				return err
			}
		}

		dl, err := s.downloadOne(ctx, job.ID, entry.URL, destDir)
		if err != nil {
			outcome.Failed++
			outcome.Failures = append(outcome.Failures, EntryFailure{
				Position: position,
				URL:      entry.URL,
				Title:    entry.Title,
				Reason:   err.Error(),
			})
			logger.Warn().Err(err).Int("position", position).Str("url", entry.URL).Msg("playlist entry failed")
			s.trackProgress(ctx, job.ID, playlist.ID, outcome)
			continue
		}

		var title *string
		if entry.Title != "" {
			title = &entry.Title
		}
		if err := s.Ledger.AddVideoToPlaylist(ctx, playlist.ID, dl.MediaFileID, position, title); err != nil &&
			!errors.Is(err, ledger.ErrConflict) {
			logger.Warn().Err(err).Int("position", position).Msg("failed to link playlist entry")
		}

		outcome.Completed++
		s.trackProgress(ctx, job.ID, playlist.ID, outcome)
	}

	if err := s.Ledger.TrackEvent(ctx, "playlist_completed", nil, &job.ID, map[string]any{
		"playlist_id": playlist.ID,
		"total":       outcome.Total,
		"completed":   outcome.Completed,
		"failed":      outcome.Failed,
	}); err != nil {
		logger.Warn().Err(err).Msg("failed to record playlist_completed event")
	}

	if outcome.Completed == 0 {
		return media.Transient(fmt.Errorf("playlist: all %d entries failed", outcome.Total))
	}
	if outcome.Failed > 0 {
		logger.Warn().
			Int("completed", outcome.Completed).
			Int("failed", outcome.Failed).
			Msg("playlist finished with failures")
	}
	return nil
}

// entryAlreadyDone decides whether a resume run can skip a linked entry.
// Skipping requires the file on disk and proof it was transcribed: the
// subtitle marker in the container, or a stored transcription. The reason
// literals match the verification report: "File missing", "No
// transcription".
func (s Services) entryAlreadyDone(ctx context.Context, playlistID int64, position int) (bool, string) {
	link, err := s.Ledger.PlaylistVideoAtPosition(ctx, playlistID, position)
	if err != nil || link == nil {
		return false, ""
	}
	mf, err := s.Ledger.MediaFileByID(ctx, link.MediaFileID)
	if err != nil || mf == nil {
		return false, "File missing"
	}
	if _, err := os.Stat(mf.FilePath); err != nil {
		return false, "File missing"
	}
	if s.hasMarkedSubtitles(ctx, mf.FilePath) {
		return true, ""
	}
	if tr, err := s.Ledger.TranscriptionByMediaFile(ctx, mf.ID); err == nil && tr != nil {
		return true, ""
	}
	return false, "No transcription"
}

func (s Services) trackProgress(ctx context.Context, jobID, playlistID int64, outcome PlaylistOutcome) {
	if err := s.Ledger.TrackEvent(ctx, "playlist_progress", nil, &jobID, map[string]any{
		"playlist_id": playlistID,
		"total":       outcome.Total,
		"completed":   outcome.Completed,
		"failed":      outcome.Failed,
		"remaining":   outcome.Remaining(),
	}); err != nil {
		logger := log.WithComponent("usecase")
		logger.Warn().Err(err).Msg("failed to record playlist_progress event")
	}
}

// VerifyPlaylist reports the health of a stored playlist: every linked
// entry is checked for presence on disk and for a stored transcription.
func (s Services) VerifyPlaylist(ctx context.Context, playlistID int64) (PlaylistOutcome, error) {
	links, err := s.Ledger.PlaylistVideos(ctx, playlistID)
	if err != nil {
		return PlaylistOutcome{}, err
	}

	outcome := PlaylistOutcome{PlaylistID: playlistID, Total: len(links)}
	for _, link := range links {
		mf, err := s.Ledger.MediaFileByID(ctx, link.MediaFileID)
		if err != nil {
			return outcome, err
		}
		title := ""
		if link.VideoTitle != nil {
			title = *link.VideoTitle
		}
		if mf == nil {
			outcome.Failed++
			outcome.Failures = append(outcome.Failures, EntryFailure{
				Position: link.Position, Title: title, Reason: "File missing",
			})
			continue
		}
		if _, err := os.Stat(mf.FilePath); err != nil {
			outcome.Failed++
			outcome.Failures = append(outcome.Failures, EntryFailure{
				Position: link.Position, Title: title, Reason: "File missing",
			})
			continue
		}
		tr, err := s.Ledger.TranscriptionByMediaFile(ctx, mf.ID)
		if err != nil {
			return outcome, err
		}
		if tr == nil {
			outcome.Failed++
			outcome.Failures = append(outcome.Failures, EntryFailure{
				Position: link.Position, Title: title, Reason: "No transcription",
			})
			continue
		}
		outcome.Completed++
	}
	return outcome, nil
}
