// SPDX-License-Identifier: MIT

package media

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/spatelier/spatelier/internal/log"
)

// youtubeIDPattern matches the stable 11-character video ID in watch, short,
// embed and youtu.be URL shapes.
var youtubeIDPattern = regexp.MustCompile(
	`(?:youtube\.com/(?:shorts/|watch\?v=|v/|embed/|.*[?&]v=)|youtu\.be/)([^"&?/\s]{11})`)

// VideoIDFromURL extracts the source-native video ID from url, or "" when
// the URL shape is not recognized.
func VideoIDFromURL(url string) string {
	if m := youtubeIDPattern.FindStringSubmatch(url); m != nil {
		return m[1]
	}
	return ""
}

// PlatformFromURL names the source platform for a URL.
func PlatformFromURL(url string) string {
	lower := strings.ToLower(url)
	switch {
	case strings.Contains(lower, "youtube.com"), strings.Contains(lower, "youtu.be"):
		return "youtube"
	case strings.Contains(lower, "vimeo.com"):
		return "vimeo"
	case strings.Contains(lower, "twitch.tv"):
		return "twitch"
	default:
		return "unknown"
	}
}

// ResolveDownloadedFile locates the file a download actually produced. The
// engine's announced path can be stale when audio and video were muxed into
// a different container, so resolution falls through:
//
//  1. the announced path, when it exists and is non-empty
//  2. the newest non-empty file in workDir whose name contains the
//     source video ID and whose extension is a known video container
//  3. for URLs without an extractable ID only: the newest video file in
//     workDir, logged as a warning
//
// An empty result means the download left nothing usable behind.
func ResolveDownloadedFile(announced, workDir, url string, videoExtensions []string) (string, error) {
	if announced != "" {
		if info, err := os.Stat(announced); err == nil && info.Mode().IsRegular() && info.Size() > 0 {
			return announced, nil
		}
	}

	videoID := VideoIDFromURL(url)
	if videoID != "" {
		if match := newestMatching(workDir, videoID, videoExtensions); match != "" {
			return match, nil
		}
		return "", fmt.Errorf("media: no output matching video id %s under %s", videoID, workDir)
	}

	// Non-identifiable URL: fall back to the newest video file.
	if latest := newestMatching(workDir, "", videoExtensions); latest != "" {
		logger := log.WithComponent("media")
		logger.Warn().
			Str("file", filepath.Base(latest)).
			Str("url", url).
			Msg("could not resolve exact output path, using most recent video file")
		return latest, nil
	}
	return "", fmt.Errorf("media: no video file found under %s", workDir)
}

// newestMatching returns the newest non-empty regular file in dir whose
// name contains substr (any file when substr is empty) and whose extension
// is in exts.
func newestMatching(dir, substr string, exts []string) string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}

	extSet := make(map[string]bool, len(exts))
	for _, e := range exts {
		extSet[strings.ToLower(e)] = true
	}

	var best string
	var bestMtime int64
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		name := entry.Name()
		if substr != "" && !strings.Contains(name, substr) {
			continue
		}
		if !extSet[strings.ToLower(filepath.Ext(name))] {
			continue
		}
		info, err := entry.Info()
		if err != nil || info.Size() == 0 {
			continue
		}
		if mtime := info.ModTime().UnixNano(); best == "" || mtime > bestMtime {
			best = filepath.Join(dir, name)
			bestMtime = mtime
		}
	}
	return best
}
