// SPDX-License-Identifier: MIT

// Package usecase holds the orchestrators behind each job type: download a
// video, download a playlist, transcribe and optionally embed subtitles.
// They coordinate the ledger, the storage adapter and the external engines;
// all state transitions stay in the worker and the ledger.
package usecase

import (
	"context"
	"fmt"

	"github.com/spatelier/spatelier/internal/config"
	"github.com/spatelier/spatelier/internal/ledger"
	"github.com/spatelier/spatelier/internal/media"
	"github.com/spatelier/spatelier/internal/queue"
	"github.com/spatelier/spatelier/internal/storage"
)

// Services bundles the collaborators the use cases need.
type Services struct {
	Ledger      *ledger.Ledger
	Queue       *queue.Queue
	Storage     storage.Adapter
	Downloader  media.Downloader
	Playlists   media.PlaylistResolver
	Transcriber media.Transcriber
	Muxer       media.Muxer
	Prober      media.Prober
	Config      config.Config
}

// Validate checks the bundle is complete enough to register processors.
// Engines may be nil individually; the processors that need them refuse
// registration instead of failing at job time.
func (s Services) Validate() error {
	if s.Ledger == nil {
		return fmt.Errorf("usecase: Ledger is required")
	}
	if s.Queue == nil {
		return fmt.Errorf("usecase: Queue is required")
	}
	if s.Storage == nil {
		return fmt.Errorf("usecase: Storage is required")
	}
	return nil
}

// DownloadParams is the job parameter payload for download jobs.
// ContinueDownload turns a playlist run into a resume: entries already on
// disk and already transcribed are skipped instead of re-fetched.
type DownloadParams struct {
	OutputDir        string `json:"output_dir,omitempty"`
	Transcribe       bool   `json:"transcribe,omitempty"`
	Language         string `json:"language,omitempty"`
	ModelSize        string `json:"model_size,omitempty"`
	EmbedSubtitles   bool   `json:"embed_subtitles,omitempty"`
	ContinueDownload bool   `json:"continue_download,omitempty"`
}

// hasMarkedSubtitles probes path for a subtitle track carrying the
// configured marker. Without a prober nothing can be detected, so callers
// fall through to re-processing.
func (s Services) hasMarkedSubtitles(ctx context.Context, path string) bool {
	if s.Prober == nil {
		return false
	}
	return media.HasMarkedSubtitles(ctx, s.Prober, path, s.Config.SubtitleMarker)
}

// TranscribeParams is the job parameter payload for transcription jobs.
type TranscribeParams struct {
	Language       string `json:"language,omitempty"`
	ModelSize      string `json:"model_size,omitempty"`
	EmbedSubtitles bool   `json:"embed_subtitles,omitempty"`
}
