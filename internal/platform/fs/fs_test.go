// SPDX-License-Identifier: MIT

package fs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsRegularFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f.txt")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	assert.NoError(t, IsRegularFile(path))
	assert.Error(t, IsRegularFile(dir))
	assert.Error(t, IsRegularFile(filepath.Join(dir, "absent")))
}

func TestHashFileIsStableUnderRename(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.bin")
	require.NoError(t, os.WriteFile(path, []byte("some media payload"), 0o644))

	h1, err := HashFile(path)
	require.NoError(t, err)
	assert.Len(t, h1, 64)

	moved := filepath.Join(dir, "b.bin")
	require.NoError(t, os.Rename(path, moved))
	h2, err := HashFile(moved)
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
}

func TestMimeTypeByExtension(t *testing.T) {
	cases := map[string]string{
		"a.mkv":  "video/x-matroska",
		"a.mp4":  "video/mp4",
		"a.webm": "video/webm",
		"a.mp3":  "audio/mpeg",
		"a.xyz":  "application/octet-stream",
	}
	for path, want := range cases {
		assert.Equal(t, want, MimeTypeByExtension(path), path)
	}
}

func TestFileIdentitySurvivesRename(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.bin")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	id1, ok, err := FileIdentity(path)
	require.NoError(t, err)
	if !ok {
		t.Skip("platform does not expose file identity")
	}

	moved := filepath.Join(dir, "b.bin")
	require.NoError(t, os.Rename(path, moved))
	id2, ok, err := FileIdentity(moved)
	require.NoError(t, err)
	require.True(t, ok)

	assert.Equal(t, id1, id2)
	assert.Regexp(t, `^\d+:\d+$`, id1.String())
}
