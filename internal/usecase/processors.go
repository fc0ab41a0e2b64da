// SPDX-License-Identifier: MIT

package usecase

import (
	"github.com/spatelier/spatelier/internal/ledger"
	"github.com/spatelier/spatelier/internal/worker"
)

// RegisterProcessors wires the use-case handlers onto the worker. Handlers
// whose engines are missing are simply not registered; the worker fails
// such jobs with a clear missing-processor message instead of panicking
// mid-run.
func RegisterProcessors(w *worker.Worker, s Services) error {
	if err := s.Validate(); err != nil {
		return err
	}
	if s.Downloader != nil {
		w.RegisterHandler(ledger.JobDownloadVideo, s.DownloadVideo)
	}
	if s.Playlists != nil && s.Downloader != nil {
		w.RegisterHandler(ledger.JobDownloadPlaylist, s.DownloadPlaylist)
	}
	if s.Transcriber != nil {
		w.RegisterHandler(ledger.JobTranscribe, s.TranscribeVideo)
	}
	if s.Muxer != nil {
		w.RegisterHandler(ledger.JobEmbedSubtitles, s.EmbedSubtitles)
	}
	return nil
}
