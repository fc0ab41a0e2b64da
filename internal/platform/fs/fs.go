// SPDX-License-Identifier: MIT

// Package fs holds small file-system helpers shared across the core.
package fs

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"
)

// IsRegularFile checks if path exists and is a regular file (not directory,
// device, etc). Returns error if not.
func IsRegularFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("not a regular file: %s", path)
	}
	return nil
}

// HashFile returns the hex SHA-256 of the file contents. The digest is
// stable under rename and move.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// MimeTypeByExtension maps a file extension to a MIME type, defaulting to
// application/octet-stream.
func MimeTypeByExtension(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if mt := mime.TypeByExtension(ext); mt != "" {
		// Strip optional parameters such as charset.
		if idx := strings.Index(mt, ";"); idx >= 0 {
			mt = mt[:idx]
		}
		return mt
	}
	switch ext {
	case ".mkv":
		return "video/x-matroska"
	case ".mp4", ".m4v":
		return "video/mp4"
	case ".webm":
		return "video/webm"
	case ".mov":
		return "video/quicktime"
	case ".avi":
		return "video/x-msvideo"
	case ".mp3":
		return "audio/mpeg"
	case ".m4a":
		return "audio/mp4"
	case ".flac":
		return "audio/flac"
	case ".wav":
		return "audio/wav"
	default:
		return "application/octet-stream"
	}
}

// Identity is the OS-level identity tuple of a file. It survives renames on
// the same file system, which makes it a stable dedupe key.
type Identity struct {
	Device int64
	Inode  int64
}

// String renders the tuple as the ledger's file_identifier column value.
func (id Identity) String() string {
	return fmt.Sprintf("%d:%d", id.Device, id.Inode)
}
