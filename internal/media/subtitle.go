// SPDX-License-Identifier: MIT

package media

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"
)

// DefaultSubtitleMarker is the literal carried in the title tag of subtitle
// tracks this system produces. Smart overwrite keys on it.
const DefaultSubtitleMarker = "WhisperAI"

// SubtitleTitle builds the track title for an embedded subtitle stream.
func SubtitleTitle(marker, language string) string {
	if language == "" {
		return marker
	}
	return fmt.Sprintf("%s (%s)", marker, language)
}

// HasMarkedSubtitles probes path for a subtitle stream whose title tag
// contains marker (case-insensitive). A probe failure reads as "no marked
// subtitles" so callers fall through to re-processing rather than skipping.
func HasMarkedSubtitles(ctx context.Context, prober Prober, path, marker string) bool {
	titles, err := prober.SubtitleTitles(ctx, path)
	if err != nil {
		return false
	}
	lowerMarker := strings.ToLower(marker)
	for _, title := range titles {
		if strings.Contains(strings.ToLower(title), lowerMarker) {
			return true
		}
	}
	return false
}

// SegmentsToSRT serializes timed segments as an SRT subtitle payload.
func SegmentsToSRT(segments []TranscriptionSegment) []byte {
	var buf bytes.Buffer
	for i, s := range segments {
		fmt.Fprintf(&buf, "%d\n%s --> %s\n%s\n\n",
			i+1, srtTimestamp(s.Start), srtTimestamp(s.End), strings.TrimSpace(s.Text))
	}
	return buf.Bytes()
}

func srtTimestamp(seconds float64) string {
	d := time.Duration(seconds * float64(time.Second))
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	ms := int(d.Milliseconds()) % 1000
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, ms)
}
