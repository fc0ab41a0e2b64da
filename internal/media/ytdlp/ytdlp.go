// SPDX-License-Identifier: MIT

// Package ytdlp drives the yt-dlp extractor binary.
package ytdlp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/spatelier/spatelier/internal/log"
	"github.com/spatelier/spatelier/internal/media"
)

const defaultBinary = "yt-dlp"

// Engine shells out to yt-dlp for downloads and playlist resolution.
type Engine struct {
	Binary string
	logger zerolog.Logger
}

// New returns an engine using the given binary, or "yt-dlp" from PATH.
func New(binary string) *Engine {
	if binary == "" {
		binary = defaultBinary
	}
	return &Engine{Binary: binary, logger: log.WithComponent("ytdlp")}
}

// Download fetches url into outputDir and reports the produced file with
// the extractor's metadata.
func (e *Engine) Download(ctx context.Context, url, outputDir string) (*media.DownloadResult, error) {
	args := []string{
		"--no-playlist",
		"--no-simulate",
		"--dump-json",
		"--no-progress",
		"-o", filepath.Join(outputDir, "%(title)s [%(id)s].%(ext)s"),
		url,
	}
	cmd := exec.CommandContext(ctx, e.Binary, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	e.logger.Debug().Str("url", url).Str("dir", outputDir).Msg("starting download")
	if err := cmd.Run(); err != nil {
		return nil, classify(fmt.Errorf("yt-dlp: %w: %s", err, firstLine(stderr.String())))
	}

	var info map[string]any
	scanner := bufio.NewScanner(&stdout)
	scanner.Buffer(make([]byte, 1024*1024), 16*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if strings.HasPrefix(line, "{") {
			if err := json.Unmarshal([]byte(line), &info); err == nil {
				break
			}
		}
	}
	if info == nil {
		return nil, media.Permanent(fmt.Errorf("yt-dlp: no metadata in output for %s", url))
	}

	meta := media.SourceMetadata(info)
	announced := meta.Str("filepath")
	if announced == "" {
		announced = meta.Str("_filename")
	}
	return &media.DownloadResult{FilePath: announced, Metadata: meta}, nil
}

// ResolvePlaylist lists a playlist's entries without downloading.
func (e *Engine) ResolvePlaylist(ctx context.Context, url string) (*media.PlaylistInfo, error) {
	cmd := exec.CommandContext(ctx, e.Binary, "--flat-playlist", "--dump-single-json", url)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, classify(fmt.Errorf("yt-dlp: %w: %s", err, firstLine(stderr.String())))
	}

	var raw struct {
		ID          string `json:"id"`
		Title       string `json:"title"`
		Uploader    string `json:"uploader"`
		ExtractorID string `json:"extractor_key"`
		Entries     []struct {
			ID    string `json:"id"`
			Title string `json:"title"`
			URL   string `json:"url"`
		} `json:"entries"`
	}
	if err := json.Unmarshal(stdout.Bytes(), &raw); err != nil {
		return nil, media.Permanent(fmt.Errorf("yt-dlp: parse playlist metadata: %w", err))
	}

	info := &media.PlaylistInfo{
		ID:       raw.ID,
		Title:    raw.Title,
		Uploader: raw.Uploader,
		Platform: strings.ToLower(raw.ExtractorID),
	}
	for _, entry := range raw.Entries {
		u := entry.URL
		if u == "" && entry.ID != "" {
			u = "https://www.youtube.com/watch?v=" + entry.ID
		}
		info.Entries = append(info.Entries, media.PlaylistEntry{URL: u, Title: entry.Title, ID: entry.ID})
	}
	return info, nil
}

// classify tags extractor failures for the retry machinery based on the
// error text yt-dlp emits.
func classify(err error) error {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "unsupported url"),
		strings.Contains(msg, "video unavailable"),
		strings.Contains(msg, "private video"),
		strings.Contains(msg, "is not a valid url"),
		strings.Contains(msg, "no space left"):
		return media.Permanent(err)
	case strings.Contains(msg, "timed out"),
		strings.Contains(msg, "timeout"),
		strings.Contains(msg, "connection"),
		strings.Contains(msg, "network"),
		strings.Contains(msg, "temporary failure"),
		strings.Contains(msg, "503"),
		strings.Contains(msg, "429"):
		return media.Transient(err)
	default:
		return err
	}
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
