// SPDX-License-Identifier: MIT

package media

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVideoIDFromURL(t *testing.T) {
	cases := []struct {
		url string
		id  string
	}{
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"https://youtu.be/dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"https://www.youtube.com/shorts/abcdefghijk", "abcdefghijk"},
		{"https://www.youtube.com/embed/dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"https://www.youtube.com/watch?list=PL1&v=dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"https://vimeo.com/12345", ""},
		{"not a url", ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.id, VideoIDFromURL(tc.url), "url %q", tc.url)
	}
}

func TestPlatformFromURL(t *testing.T) {
	assert.Equal(t, "youtube", PlatformFromURL("https://www.youtube.com/watch?v=x"))
	assert.Equal(t, "youtube", PlatformFromURL("https://youtu.be/x"))
	assert.Equal(t, "vimeo", PlatformFromURL("https://vimeo.com/1"))
	assert.Equal(t, "twitch", PlatformFromURL("https://www.twitch.tv/somechannel"))
	assert.Equal(t, "unknown", PlatformFromURL("https://example.com/v"))
}

var testExts = []string{".mp4", ".mkv", ".webm"}

func writeFileAt(t *testing.T, path string, mtime time.Time) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte("content"), 0o644))
	require.NoError(t, os.Chtimes(path, mtime, mtime))
}

func TestResolveDownloadedFileAnnounced(t *testing.T) {
	dir := t.TempDir()
	announced := filepath.Join(dir, "video.mkv")
	writeFileAt(t, announced, time.Now())

	got, err := ResolveDownloadedFile(announced, dir, "https://youtu.be/dQw4w9WgXcQ", testExts)
	require.NoError(t, err)
	assert.Equal(t, announced, got)
}

func TestResolveDownloadedFileByVideoID(t *testing.T) {
	dir := t.TempDir()
	now := time.Now()
	// The engine announced an .m4a that was re-muxed away.
	writeFileAt(t, filepath.Join(dir, "Talk [dQw4w9WgXcQ].webm"), now.Add(-time.Minute))
	writeFileAt(t, filepath.Join(dir, "Talk [dQw4w9WgXcQ].mkv"), now)
	writeFileAt(t, filepath.Join(dir, "unrelated.mkv"), now.Add(time.Minute))

	got, err := ResolveDownloadedFile(
		filepath.Join(dir, "Talk [dQw4w9WgXcQ].m4a"),
		dir, "https://youtu.be/dQw4w9WgXcQ", testExts)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "Talk [dQw4w9WgXcQ].mkv"), got)
}

func TestResolveDownloadedFileIdentifiableURLNeverGuesses(t *testing.T) {
	dir := t.TempDir()
	writeFileAt(t, filepath.Join(dir, "somethingelse.mkv"), time.Now())

	_, err := ResolveDownloadedFile("", dir, "https://youtu.be/dQw4w9WgXcQ", testExts)
	assert.Error(t, err)
}

func TestResolveDownloadedFileNonIdentifiableFallsBack(t *testing.T) {
	dir := t.TempDir()
	now := time.Now()
	writeFileAt(t, filepath.Join(dir, "older.mp4"), now.Add(-time.Hour))
	writeFileAt(t, filepath.Join(dir, "newest.mp4"), now)

	got, err := ResolveDownloadedFile("", dir, "https://example.com/some-video", testExts)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "newest.mp4"), got)
}

func TestResolveDownloadedFileEmptyDir(t *testing.T) {
	_, err := ResolveDownloadedFile("", t.TempDir(), "https://example.com/v", testExts)
	assert.Error(t, err)
}

func TestResolveSkipsEmptyFiles(t *testing.T) {
	dir := t.TempDir()
	empty := filepath.Join(dir, "empty [dQw4w9WgXcQ].mkv")
	require.NoError(t, os.WriteFile(empty, nil, 0o644))

	_, err := ResolveDownloadedFile(empty, dir, "https://youtu.be/dQw4w9WgXcQ", testExts)
	assert.Error(t, err)
}
