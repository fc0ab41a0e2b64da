// SPDX-License-Identifier: MIT

// Package ffmpeg wraps the ffmpeg and ffprobe binaries for subtitle muxing
// and container probing.
package ffmpeg

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/spatelier/spatelier/internal/log"
	"github.com/spatelier/spatelier/internal/media"
)

// Engine shells out to ffmpeg/ffprobe.
type Engine struct {
	FFmpeg  string
	FFprobe string
	logger  zerolog.Logger
}

// New returns an engine using the given binaries, or the PATH defaults.
func New(ffmpegBin, ffprobeBin string) *Engine {
	if ffmpegBin == "" {
		ffmpegBin = "ffmpeg"
	}
	if ffprobeBin == "" {
		ffprobeBin = "ffprobe"
	}
	return &Engine{FFmpeg: ffmpegBin, FFprobe: ffprobeBin, logger: log.WithComponent("ffmpeg")}
}

// Embed muxes the subtitle track into videoPath, writing outPath. Equal in
// and out paths are handled by writing a sibling temp file and renaming
// over the original once ffmpeg has exited cleanly.
func (e *Engine) Embed(ctx context.Context, videoPath string, track media.SubtitleTrack, outPath string) error {
	srtFile, err := os.CreateTemp(filepath.Dir(videoPath), ".spatelier-sub-*.srt")
	if err != nil {
		return fmt.Errorf("ffmpeg: temp subtitle file: %w", err)
	}
	srtPath := srtFile.Name()
	defer func() { _ = os.Remove(srtPath) }()
	if _, err := srtFile.Write(track.SRT); err != nil {
		_ = srtFile.Close()
		return fmt.Errorf("ffmpeg: write subtitle file: %w", err)
	}
	if err := srtFile.Close(); err != nil {
		return err
	}

	target := outPath
	inPlace := sameFile(videoPath, outPath)
	if inPlace {
		target = filepath.Join(filepath.Dir(videoPath), ".spatelier-mux-"+filepath.Base(videoPath))
	}

	codec := "srt"
	if ext := strings.ToLower(filepath.Ext(target)); ext == ".mp4" || ext == ".m4v" || ext == ".mov" {
		codec = "mov_text"
	}

	args := []string{
		"-y", "-hide_banner", "-loglevel", "error",
		"-i", videoPath,
		"-i", srtPath,
		"-map", "0", "-map", "1",
		"-c", "copy",
		"-c:s", codec,
		"-metadata:s:s:0", "title=" + track.Title,
		target,
	}
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, e.FFmpeg, args...)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		_ = os.Remove(target)
		return media.Permanent(fmt.Errorf("ffmpeg: mux failed: %w: %s", err, strings.TrimSpace(stderr.String())))
	}

	if inPlace {
		if err := os.Rename(target, outPath); err != nil {
			_ = os.Remove(target)
			return fmt.Errorf("ffmpeg: replace original: %w", err)
		}
	}
	e.logger.Info().Str("file", outPath).Str("title", track.Title).Msg("subtitle track embedded")
	return nil
}

// SubtitleTitles returns the title tags of the subtitle streams in path.
func (e *Engine) SubtitleTitles(ctx context.Context, path string) ([]string, error) {
	args := []string{
		"-v", "error",
		"-select_streams", "s",
		"-show_entries", "stream_tags=title",
		"-of", "json",
		path,
	}
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, e.FFprobe, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffprobe: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	var raw struct {
		Streams []struct {
			Tags struct {
				Title string `json:"title"`
			} `json:"tags"`
		} `json:"streams"`
	}
	if err := json.Unmarshal(stdout.Bytes(), &raw); err != nil {
		return nil, fmt.Errorf("ffprobe: parse output: %w", err)
	}

	titles := make([]string, 0, len(raw.Streams))
	for _, s := range raw.Streams {
		titles = append(titles, s.Tags.Title)
	}
	return titles, nil
}

func sameFile(a, b string) bool {
	if a == b {
		return true
	}
	aa, err1 := filepath.Abs(a)
	bb, err2 := filepath.Abs(b)
	return err1 == nil && err2 == nil && aa == bb
}
