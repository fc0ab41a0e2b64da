// SPDX-License-Identifier: MIT

// Package media defines the boundary to the external engines the core
// drives (download, transcription, muxing, probing) and the helpers shared
// by the use cases: error tagging for retry classification, subtitle track
// serialization, and download output resolution.
package media

import (
	"context"
	"errors"
	"fmt"
)

// ErrorKind tags a collaborator error for the worker's retry decision.
type ErrorKind int

const (
	// KindUnknown errors are treated as transient until the retry budget
	// is nearly spent.
	KindUnknown ErrorKind = iota
	// KindTransient covers network failures, unreachable mounts and auth
	// refresh requests. The worker retries these.
	KindTransient
	// KindPermanent covers invalid URLs, unsupported formats and full
	// destinations. The worker does not retry these.
	KindPermanent
)

// TaggedError wraps a collaborator error with its retry classification.
type TaggedError struct {
	Kind ErrorKind
	Err  error
}

func (e *TaggedError) Error() string {
	switch e.Kind {
	case KindTransient:
		return fmt.Sprintf("transient: %v", e.Err)
	case KindPermanent:
		return fmt.Sprintf("permanent: %v", e.Err)
	default:
		return e.Err.Error()
	}
}

func (e *TaggedError) Unwrap() error { return e.Err }

// Transient wraps err as retryable.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &TaggedError{Kind: KindTransient, Err: err}
}

// Permanent wraps err as non-retryable.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &TaggedError{Kind: KindPermanent, Err: err}
}

// KindOf extracts the classification from err, or KindUnknown.
func KindOf(err error) ErrorKind {
	var tagged *TaggedError
	if errors.As(err, &tagged) {
		return tagged.Kind
	}
	return KindUnknown
}

// SourceMetadata is the opportunistic metadata a download engine reports
// alongside the produced file.
type SourceMetadata map[string]any

// Str returns the string value for key, or "".
func (m SourceMetadata) Str(key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

// DownloadResult is what the download engine hands back.
type DownloadResult struct {
	FilePath string
	Metadata SourceMetadata
}

// Downloader is the URL-to-local-file extraction engine.
type Downloader interface {
	// Download fetches url into outputDir using outputTemplate naming and
	// returns the produced file plus source metadata. The announced path
	// may be stale when the engine re-muxes; callers resolve the real
	// output with ResolveDownloadedFile.
	Download(ctx context.Context, url, outputDir string) (*DownloadResult, error)
}

// PlaylistEntry is one item of a resolved playlist.
type PlaylistEntry struct {
	URL   string
	Title string
	ID    string
}

// PlaylistInfo is the resolved metadata for a playlist URL.
type PlaylistInfo struct {
	ID       string
	Title    string
	Uploader string
	Platform string
	Entries  []PlaylistEntry
}

// PlaylistResolver resolves a playlist URL into its metadata and entries
// without downloading anything.
type PlaylistResolver interface {
	ResolvePlaylist(ctx context.Context, url string) (*PlaylistInfo, error)
}

// TranscribeOptions narrows the transcription run.
type TranscribeOptions struct {
	Language  string // empty means auto-detect
	ModelSize string // engine-specific, empty means default
}

// TranscriptionSegment is one timed span of recognized speech.
type TranscriptionSegment struct {
	Start float64
	End   float64
	Text  string
}

// TranscriptionResult is what the transcription engine returns.
type TranscriptionResult struct {
	Segments       []TranscriptionSegment
	Language       string
	Duration       float64
	ProcessingTime float64
	ModelUsed      string
}

// Transcriber is the audio-to-timed-segments engine.
type Transcriber interface {
	Transcribe(ctx context.Context, path string, opts TranscribeOptions) (*TranscriptionResult, error)
}

// SubtitleTrack is a serialized subtitle stream ready for muxing.
type SubtitleTrack struct {
	Title string // track title tag; carries the marker for smart overwrite
	SRT   []byte
}

// Muxer embeds a subtitle track into a container file.
type Muxer interface {
	// Embed writes a copy of videoPath with the subtitle track added to
	// outPath. videoPath and outPath may be equal; implementations must
	// replace atomically in that case.
	Embed(ctx context.Context, videoPath string, track SubtitleTrack, outPath string) error
}

// Prober inspects container files.
type Prober interface {
	// SubtitleTitles returns the title tags of all subtitle streams in
	// the container, in stream order.
	SubtitleTitles(ctx context.Context, path string) ([]string, error)
}
