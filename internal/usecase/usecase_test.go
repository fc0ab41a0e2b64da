// SPDX-License-Identifier: MIT

package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spatelier/spatelier/internal/config"
	"github.com/spatelier/spatelier/internal/ledger"
	"github.com/spatelier/spatelier/internal/media"
	"github.com/spatelier/spatelier/internal/persistence/sqlite"
	"github.com/spatelier/spatelier/internal/queue"
	"github.com/spatelier/spatelier/internal/storage"
)

// fakeDownloader writes a deterministic file into the stage dir.
type fakeDownloader struct {
	calls    int
	fileName string
	err      error
}

func (f *fakeDownloader) Download(_ context.Context, url, outputDir string) (*media.DownloadResult, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	name := f.fileName
	if name == "" {
		id := media.VideoIDFromURL(url)
		if id == "" {
			id = "unknown"
		}
		name = "Video [" + id + "].mkv"
	}
	path := filepath.Join(outputDir, name)
	if err := os.WriteFile(path, []byte("video payload for "+url), 0o644); err != nil {
		return nil, err
	}
	return &media.DownloadResult{
		FilePath: path,
		Metadata: media.SourceMetadata{"title": "Test Video", "uploader": "tester", "duration": 42.0},
	}, nil
}

type fakeResolver struct {
	info *media.PlaylistInfo
	err  error
}

func (f *fakeResolver) ResolvePlaylist(_ context.Context, _ string) (*media.PlaylistInfo, error) {
	return f.info, f.err
}

type fakeTranscriber struct {
	calls  int
	result *media.TranscriptionResult
	err    error
}

func (f *fakeTranscriber) Transcribe(_ context.Context, _ string, _ media.TranscribeOptions) (*media.TranscriptionResult, error) {
	f.calls++
	return f.result, f.err
}

type fakeMuxer struct {
	calls  int
	titles []string
	err    error
}

func (f *fakeMuxer) Embed(_ context.Context, _ string, track media.SubtitleTrack, _ string) error {
	f.calls++
	f.titles = append(f.titles, track.Title)
	return f.err
}

type fakeProber struct {
	titles []string
	err    error
}

func (f *fakeProber) SubtitleTitles(_ context.Context, _ string) ([]string, error) {
	return f.titles, f.err
}

func newTestServices(t *testing.T) (Services, *ledger.Ledger) {
	t.Helper()
	l, err := ledger.Open(filepath.Join(t.TempDir(), "test.db"), sqlite.DefaultConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })

	cfg := config.Default()
	cfg.DataDir = t.TempDir()
	cfg.DownloadDir = t.TempDir()
	cfg.TempRoot = t.TempDir()

	s := Services{
		Ledger:  l,
		Queue:   queue.New(l),
		Storage: storage.New(cfg.TempRoot, storage.IndicatorClassifier{Indicators: cfg.RemoteIndicators}),
		Config:  cfg,
	}
	return s, l
}

func enqueueJob(t *testing.T, s Services, jobType ledger.JobType, input, output, params string) *ledger.Job {
	t.Helper()
	ctx := context.Background()
	id, err := s.Queue.Enqueue(ctx, jobType, input, output, params, 3)
	require.NoError(t, err)
	job, err := s.Queue.ClaimNext(ctx, os.Getpid())
	require.NoError(t, err)
	require.NotNil(t, job)
	require.Equal(t, id, job.ID)
	return job
}

const testURL = "https://www.youtube.com/watch?v=dQw4w9WgXcQ"

func TestDownloadVideoHappyPath(t *testing.T) {
	s, l := newTestServices(t)
	ctx := context.Background()

	dl := &fakeDownloader{}
	s.Downloader = dl

	job := enqueueJob(t, s, ledger.JobDownloadVideo, testURL, "", "")
	require.NoError(t, s.DownloadVideo(ctx, job))
	assert.Equal(t, 1, dl.calls)

	// The job row is linked to the tracked media file.
	got, err := l.JobByID(ctx, job.ID)
	require.NoError(t, err)
	require.NotNil(t, got.MediaFileID)
	assert.FileExists(t, got.OutputPath)
	assert.Equal(t, s.Config.DownloadDir, filepath.Dir(got.OutputPath))

	mf, err := l.MediaFileByID(ctx, *got.MediaFileID)
	require.NoError(t, err)
	require.NotNil(t, mf)
	require.NotNil(t, mf.SourceID)
	assert.Equal(t, "dQw4w9WgXcQ", *mf.SourceID)
	require.NotNil(t, mf.Title)
	assert.Equal(t, "Test Video", *mf.Title)
	assert.NotEmpty(t, mf.FileHash)

	// Events: start and completion.
	starts, err := l.EventsByType(ctx, "download_start", 10)
	require.NoError(t, err)
	assert.Len(t, starts, 1)
	completions, err := l.EventsByType(ctx, "download_completed", 10)
	require.NoError(t, err)
	assert.Len(t, completions, 1)

	// Stage dirs are gone after publish.
	entries, err := os.ReadDir(s.Config.TempRoot)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestDownloadVideoSkipsExistingFileWithMarkedSubtitles(t *testing.T) {
	s, l := newTestServices(t)
	ctx := context.Background()

	dl := &fakeDownloader{}
	s.Downloader = dl
	s.Prober = &fakeProber{titles: []string{"WhisperAI (en)"}}

	// First download.
	job := enqueueJob(t, s, ledger.JobDownloadVideo, testURL, "", "")
	require.NoError(t, s.DownloadVideo(ctx, job))
	require.Equal(t, 1, dl.calls)

	// Second job for the same video: the file carries the subtitle marker,
	// so the engine is not invoked again.
	job2 := enqueueJob(t, s, ledger.JobDownloadVideo, testURL, "", "")
	require.NoError(t, s.DownloadVideo(ctx, job2))
	assert.Equal(t, 1, dl.calls)

	skips, err := l.EventsByType(ctx, "download_skipped", 10)
	require.NoError(t, err)
	assert.Len(t, skips, 1)
}

func TestDownloadVideoRedownloadsFileWithoutMarkedSubtitles(t *testing.T) {
	s, l := newTestServices(t)
	ctx := context.Background()

	dl := &fakeDownloader{}
	s.Downloader = dl
	s.Prober = &fakeProber{}

	job := enqueueJob(t, s, ledger.JobDownloadVideo, testURL, "", "")
	require.NoError(t, s.DownloadVideo(ctx, job))
	require.Equal(t, 1, dl.calls)

	// The file exists but carries no marked subtitle track, so it still
	// needs processing and is fetched again.
	job2 := enqueueJob(t, s, ledger.JobDownloadVideo, testURL, "", "")
	require.NoError(t, s.DownloadVideo(ctx, job2))
	assert.Equal(t, 2, dl.calls)

	skips, err := l.EventsByType(ctx, "download_skipped", 10)
	require.NoError(t, err)
	assert.Empty(t, skips)
}

func TestDownloadVideoRedownloadsWhenFileGone(t *testing.T) {
	s, l := newTestServices(t)
	ctx := context.Background()

	dl := &fakeDownloader{}
	s.Downloader = dl

	job := enqueueJob(t, s, ledger.JobDownloadVideo, testURL, "", "")
	require.NoError(t, s.DownloadVideo(ctx, job))

	got, err := l.JobByID(ctx, job.ID)
	require.NoError(t, err)
	require.NoError(t, os.Remove(got.OutputPath))

	job2 := enqueueJob(t, s, ledger.JobDownloadVideo, testURL, "", "")
	require.NoError(t, s.DownloadVideo(ctx, job2))
	assert.Equal(t, 2, dl.calls)
}

func TestDownloadVideoEngineFailure(t *testing.T) {
	s, l := newTestServices(t)
	ctx := context.Background()

	s.Downloader = &fakeDownloader{err: media.Transient(errors.New("timed out"))}

	job := enqueueJob(t, s, ledger.JobDownloadVideo, testURL, "", "")
	err := s.DownloadVideo(ctx, job)
	require.Error(t, err)
	assert.Equal(t, media.KindTransient, media.KindOf(err))

	failures, err := l.EventsByType(ctx, "download_error", 10)
	require.NoError(t, err)
	assert.Len(t, failures, 1)
}

func TestDownloadVideoBadParameters(t *testing.T) {
	s, _ := newTestServices(t)
	s.Downloader = &fakeDownloader{}

	job := enqueueJob(t, s, ledger.JobDownloadVideo, testURL, "", "{not json")
	err := s.DownloadVideo(context.Background(), job)
	require.Error(t, err)
	assert.Equal(t, media.KindPermanent, media.KindOf(err))
}

func TestDownloadVideoEnqueuesTranscription(t *testing.T) {
	s, l := newTestServices(t)
	ctx := context.Background()
	s.Downloader = &fakeDownloader{}

	params, _ := json.Marshal(DownloadParams{Transcribe: true, Language: "en", EmbedSubtitles: true})
	job := enqueueJob(t, s, ledger.JobDownloadVideo, testURL, "", string(params))
	require.NoError(t, s.DownloadVideo(ctx, job))

	pending, err := l.JobsByStatus(ctx, ledger.StatusPending)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, ledger.JobTranscribe, pending[0].JobType)

	var tp TranscribeParams
	require.NoError(t, json.Unmarshal([]byte(pending[0].Parameters), &tp))
	assert.Equal(t, "en", tp.Language)
	assert.True(t, tp.EmbedSubtitles)
}

func TestDownloadPlaylistPartialFailure(t *testing.T) {
	s, l := newTestServices(t)
	ctx := context.Background()
	s.Config.Worker.MinTimeBetweenJobs = 0

	s.Playlists = &fakeResolver{info: &media.PlaylistInfo{
		ID: "PL42", Title: "Course", Uploader: "prof", Platform: "youtube",
		Entries: []media.PlaylistEntry{
			{URL: "https://youtu.be/aaaaaaaaaaa", Title: "One", ID: "aaaaaaaaaaa"},
			{URL: "not a real url", Title: "Two", ID: ""},
			{URL: "https://youtu.be/ccccccccccc", Title: "Three", ID: "ccccccccccc"},
		},
	}}
	s.Downloader = &urlAwareDownloader{failFor: "not a real url"}

	job := enqueueJob(t, s, ledger.JobDownloadPlaylist, "https://www.youtube.com/playlist?list=PL42", "", "")
	require.NoError(t, s.DownloadPlaylist(ctx, job))

	pl, err := l.PlaylistByPlaylistID(ctx, "PL42", "youtube")
	require.NoError(t, err)
	require.NotNil(t, pl)
	assert.Equal(t, "Course", pl.Title)
	assert.Equal(t, 3, pl.VideoCount)

	videos, err := l.PlaylistVideos(ctx, pl.ID)
	require.NoError(t, err)
	require.Len(t, videos, 2)
	assert.Equal(t, 1, videos[0].Position)
	assert.Equal(t, 3, videos[1].Position)

	progress, err := l.EventsByType(ctx, "playlist_progress", 10)
	require.NoError(t, err)
	require.NotEmpty(t, progress)
	final := progress[0].EventData
	assert.EqualValues(t, 3, final["total"])
	assert.EqualValues(t, 2, final["completed"])
	assert.EqualValues(t, 1, final["failed"])
	assert.EqualValues(t, 0, final["remaining"])
}

type urlAwareDownloader struct {
	inner   fakeDownloader
	failFor string
}

func (d *urlAwareDownloader) Download(ctx context.Context, url, outputDir string) (*media.DownloadResult, error) {
	if url == d.failFor {
		return nil, media.Permanent(errors.New("unsupported url"))
	}
	return d.inner.Download(ctx, url, outputDir)
}

func TestDownloadPlaylistAllFail(t *testing.T) {
	s, _ := newTestServices(t)
	ctx := context.Background()
	s.Config.Worker.MinTimeBetweenJobs = 0

	s.Downloader = &fakeDownloader{err: media.Transient(errors.New("network down"))}
	s.Playlists = &fakeResolver{info: &media.PlaylistInfo{
		ID: "PL1", Title: "P", Platform: "youtube",
		Entries: []media.PlaylistEntry{
			{URL: "https://youtu.be/aaaaaaaaaaa", ID: "aaaaaaaaaaa"},
			{URL: "https://youtu.be/bbbbbbbbbbb", ID: "bbbbbbbbbbb"},
		},
	}}

	job := enqueueJob(t, s, ledger.JobDownloadPlaylist, "https://example.com/pl", "", "")
	err := s.DownloadPlaylist(ctx, job)
	require.Error(t, err)
	assert.Equal(t, media.KindTransient, media.KindOf(err))
}

func TestDownloadPlaylistResumeSkipsTranscribedEntries(t *testing.T) {
	s, l := newTestServices(t)
	ctx := context.Background()
	s.Config.Worker.MinTimeBetweenJobs = 0

	resolver := &fakeResolver{info: &media.PlaylistInfo{
		ID: "PL9", Title: "Series", Platform: "youtube",
		Entries: []media.PlaylistEntry{
			{URL: "https://youtu.be/aaaaaaaaaaa", Title: "One", ID: "aaaaaaaaaaa"},
			{URL: "https://youtu.be/bbbbbbbbbbb", Title: "Two", ID: "bbbbbbbbbbb"},
		},
	}}
	s.Playlists = resolver
	dl := &fakeDownloader{}
	s.Downloader = dl

	job := enqueueJob(t, s, ledger.JobDownloadPlaylist, "https://example.com/pl", "", "")
	require.NoError(t, s.DownloadPlaylist(ctx, job))
	require.Equal(t, 2, dl.calls)

	// Mark both entries as transcribed.
	pl, err := l.PlaylistByPlaylistID(ctx, "PL9", "youtube")
	require.NoError(t, err)
	videos, err := l.PlaylistVideos(ctx, pl.ID)
	require.NoError(t, err)
	require.Len(t, videos, 2)
	for _, v := range videos {
		_, err = l.StoreTranscription(ctx, v.MediaFileID, ledger.TranscriptionPayload{
			Language: "en", Segments: []ledger.Segment{{Start: 0, End: 1, Text: "done"}},
		})
		require.NoError(t, err)
	}

	// A resume run over the same playlist downloads nothing new.
	params, _ := json.Marshal(DownloadParams{ContinueDownload: true})
	job2 := enqueueJob(t, s, ledger.JobDownloadPlaylist, "https://example.com/pl", "", string(params))
	require.NoError(t, s.DownloadPlaylist(ctx, job2))
	assert.Equal(t, 2, dl.calls)

	videos, err = l.PlaylistVideos(ctx, pl.ID)
	require.NoError(t, err)
	assert.Len(t, videos, 2)
}

func TestDownloadPlaylistResumeReprocessesUntranscribedEntries(t *testing.T) {
	s, l := newTestServices(t)
	ctx := context.Background()
	s.Config.Worker.MinTimeBetweenJobs = 0

	s.Playlists = &fakeResolver{info: &media.PlaylistInfo{
		ID: "PL10", Title: "Half done", Platform: "youtube",
		Entries: []media.PlaylistEntry{
			{URL: "https://youtu.be/aaaaaaaaaaa", Title: "One", ID: "aaaaaaaaaaa"},
		},
	}}
	dl := &fakeDownloader{}
	s.Downloader = dl
	s.Prober = &fakeProber{}

	job := enqueueJob(t, s, ledger.JobDownloadPlaylist, "https://example.com/pl", "", "")
	require.NoError(t, s.DownloadPlaylist(ctx, job))
	require.Equal(t, 1, dl.calls)

	// The entry is on disk but was never transcribed, so a resume run
	// processes it again instead of skipping it.
	params, _ := json.Marshal(DownloadParams{ContinueDownload: true})
	job2 := enqueueJob(t, s, ledger.JobDownloadPlaylist, "https://example.com/pl", "", string(params))
	require.NoError(t, s.DownloadPlaylist(ctx, job2))
	assert.Equal(t, 2, dl.calls)

	// Re-processing never duplicates the playlist link.
	pl, err := l.PlaylistByPlaylistID(ctx, "PL10", "youtube")
	require.NoError(t, err)
	videos, err := l.PlaylistVideos(ctx, pl.ID)
	require.NoError(t, err)
	assert.Len(t, videos, 1)
}

func transcriptionFixture() *media.TranscriptionResult {
	return &media.TranscriptionResult{
		Language: "en", Duration: 9.0, ProcessingTime: 1.5, ModelUsed: "small",
		Segments: []media.TranscriptionSegment{
			{Start: 0, End: 4, Text: "hello and welcome"},
			{Start: 4, End: 9, Text: "today we bake bread"},
		},
	}
}

func localVideo(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "talk.mkv")
	require.NoError(t, os.WriteFile(path, []byte("container bytes"), 0o644))
	return path
}

func TestTranscribeStoresAndEmbeds(t *testing.T) {
	s, l := newTestServices(t)
	ctx := context.Background()

	tr := &fakeTranscriber{result: transcriptionFixture()}
	mux := &fakeMuxer{}
	s.Transcriber = tr
	s.Muxer = mux
	s.Prober = &fakeProber{}

	path := localVideo(t)
	params, _ := json.Marshal(TranscribeParams{EmbedSubtitles: true})
	job := enqueueJob(t, s, ledger.JobTranscribe, path, "", string(params))

	require.NoError(t, s.TranscribeVideo(ctx, job))
	assert.Equal(t, 1, tr.calls)
	assert.Equal(t, 1, mux.calls)
	require.Len(t, mux.titles, 1)
	assert.Equal(t, "WhisperAI (en)", mux.titles[0])

	// The file was tracked on the fly and the job linked to it.
	got, err := l.JobByID(ctx, job.ID)
	require.NoError(t, err)
	require.NotNil(t, got.MediaFileID)

	stored, err := l.TranscriptionByMediaFile(ctx, *got.MediaFileID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "hello and welcome today we bake bread", stored.FullText)

	hits, err := l.SearchTranscriptions(ctx, "bread", 5)
	require.NoError(t, err)
	assert.Len(t, hits, 1)

	for _, event := range []string{"transcription_start", "transcription_completed", "subtitle_embedding_completed"} {
		events, err := l.EventsByType(ctx, event, 10)
		require.NoError(t, err)
		assert.Len(t, events, 1, event)
	}
}

func TestTranscribeSkipsWhenMarkedSubtitlesPresent(t *testing.T) {
	s, l := newTestServices(t)
	ctx := context.Background()

	tr := &fakeTranscriber{result: transcriptionFixture()}
	s.Transcriber = tr
	s.Prober = &fakeProber{titles: []string{"WhisperAI (en)"}}

	job := enqueueJob(t, s, ledger.JobTranscribe, localVideo(t), "", "")
	require.NoError(t, s.TranscribeVideo(ctx, job))
	assert.Zero(t, tr.calls)

	skips, err := l.EventsByType(ctx, "transcription_skipped", 10)
	require.NoError(t, err)
	assert.Len(t, skips, 1)
}

func TestTranscribeMissingFile(t *testing.T) {
	s, _ := newTestServices(t)
	s.Transcriber = &fakeTranscriber{result: transcriptionFixture()}

	job := enqueueJob(t, s, ledger.JobTranscribe, filepath.Join(t.TempDir(), "absent.mkv"), "", "")
	err := s.TranscribeVideo(context.Background(), job)
	require.Error(t, err)
	assert.Equal(t, media.KindPermanent, media.KindOf(err))
}

func TestTranscribeEngineFailureTracked(t *testing.T) {
	s, l := newTestServices(t)
	s.Transcriber = &fakeTranscriber{err: media.Transient(errors.New("oom"))}
	s.Prober = &fakeProber{}

	job := enqueueJob(t, s, ledger.JobTranscribe, localVideo(t), "", "")
	err := s.TranscribeVideo(context.Background(), job)
	require.Error(t, err)

	failures, err := l.EventsByType(context.Background(), "transcription_error", 10)
	require.NoError(t, err)
	assert.Len(t, failures, 1)
}

func TestEmbedSubtitlesFromStoredTranscription(t *testing.T) {
	s, l := newTestServices(t)
	ctx := context.Background()

	mux := &fakeMuxer{}
	s.Muxer = mux
	s.Transcriber = &fakeTranscriber{result: transcriptionFixture()}
	s.Prober = &fakeProber{}

	path := localVideo(t)

	// Transcribe without embedding first.
	job := enqueueJob(t, s, ledger.JobTranscribe, path, "", "")
	require.NoError(t, s.TranscribeVideo(ctx, job))
	require.Zero(t, mux.calls)

	embedJob := enqueueJob(t, s, ledger.JobEmbedSubtitles, path, "", "")
	require.NoError(t, s.EmbedSubtitles(ctx, embedJob))
	assert.Equal(t, 1, mux.calls)

	events, err := l.EventsByType(ctx, "subtitle_embedding_completed", 10)
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestEmbedWithoutStoredTranscription(t *testing.T) {
	s, _ := newTestServices(t)
	s.Muxer = &fakeMuxer{}

	job := enqueueJob(t, s, ledger.JobEmbedSubtitles, localVideo(t), "", "")
	err := s.EmbedSubtitles(context.Background(), job)
	require.Error(t, err)
	assert.Equal(t, media.KindPermanent, media.KindOf(err))
}

func TestTrackFileMigration(t *testing.T) {
	s, l := newTestServices(t)
	ctx := context.Background()

	dir := t.TempDir()
	original := filepath.Join(dir, "a.mkv")
	require.NoError(t, os.WriteFile(original, []byte("payload"), 0o644))

	first, err := s.trackFile(ctx, original, ledger.MediaTypeVideo, sourceInfo{})
	require.NoError(t, err)

	moved := filepath.Join(dir, "renamed.mkv")
	require.NoError(t, os.Rename(original, moved))

	second, err := s.trackFile(ctx, moved, ledger.MediaTypeVideo, sourceInfo{})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID, "same inode resolves to the same row")
	assert.Equal(t, moved, second.FilePath)

	events, err := l.EventsByType(ctx, "file_moved", 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, original, events[0].EventData["original_path"])
	assert.Equal(t, moved, events[0].EventData["new_path"])
}

func TestVerifyPlaylistReasons(t *testing.T) {
	s, l := newTestServices(t)
	ctx := context.Background()

	pl, err := l.UpsertPlaylist(ctx, ledger.Playlist{
		PlaylistID: "PLV", Title: "V", SourceURL: "u", SourcePlatform: "youtube", VideoCount: 3,
	})
	require.NoError(t, err)

	// Entry 1: healthy (file on disk + transcription stored).
	okPath := localVideo(t)
	okFile, err := s.trackFile(ctx, okPath, ledger.MediaTypeVideo, sourceInfo{})
	require.NoError(t, err)
	_, err = l.StoreTranscription(ctx, okFile.ID, ledger.TranscriptionPayload{
		Language: "en", Segments: []ledger.Segment{{Start: 0, End: 1, Text: "ok"}},
	})
	require.NoError(t, err)
	require.NoError(t, l.AddVideoToPlaylist(ctx, pl.ID, okFile.ID, 1, nil))

	// Entry 2: file deleted after tracking.
	gonePath := localVideo(t)
	goneFile, err := s.trackFile(ctx, gonePath, ledger.MediaTypeVideo, sourceInfo{})
	require.NoError(t, err)
	require.NoError(t, os.Remove(gonePath))
	require.NoError(t, l.AddVideoToPlaylist(ctx, pl.ID, goneFile.ID, 2, nil))

	// Entry 3: file present, never transcribed.
	rawPath := localVideo(t)
	rawFile, err := s.trackFile(ctx, rawPath, ledger.MediaTypeVideo, sourceInfo{})
	require.NoError(t, err)
	require.NoError(t, l.AddVideoToPlaylist(ctx, pl.ID, rawFile.ID, 3, nil))

	outcome, err := s.VerifyPlaylist(ctx, pl.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, outcome.Total)
	assert.Equal(t, 1, outcome.Completed)
	assert.Equal(t, 2, outcome.Failed)
	require.Len(t, outcome.Failures, 2)
	assert.Equal(t, "File missing", outcome.Failures[0].Reason)
	assert.Equal(t, 2, outcome.Failures[0].Position)
	assert.Equal(t, "No transcription", outcome.Failures[1].Reason)
	assert.Equal(t, 3, outcome.Failures[1].Position)
}

func TestRegisterProcessorsRequiresCore(t *testing.T) {
	err := RegisterProcessors(nil, Services{})
	assert.Error(t, err)
}
