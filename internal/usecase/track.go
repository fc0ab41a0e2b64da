// SPDX-License-Identifier: MIT

package usecase

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spatelier/spatelier/internal/ledger"
	"github.com/spatelier/spatelier/internal/log"
	"github.com/spatelier/spatelier/internal/media"
	"github.com/spatelier/spatelier/internal/platform/fs"
)

// sourceInfo carries the source attribution recorded on tracked files.
type sourceInfo struct {
	URL      string
	Platform string
	ID       string
	Metadata media.SourceMetadata
}

// trackFile registers path in the ledger or reconciles it with an existing
// row. Identity resolution runs path first, then the device/inode tuple: a
// file moved within the same file system is migrated in place rather than
// duplicated, and the old location is kept as an analytics event.
func (s Services) trackFile(ctx context.Context, path string, mediaType ledger.MediaType, src sourceInfo) (*ledger.MediaFile, error) {
	if err := fs.IsRegularFile(path); err != nil {
		return nil, media.Permanent(fmt.Errorf("track file: %w", err))
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	existing, err := s.Ledger.MediaFileByPath(ctx, path)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if err := s.refreshMetadata(ctx, existing.ID, info.Size(), src); err != nil {
			return nil, err
		}
		return s.Ledger.MediaFileByID(ctx, existing.ID)
	}

	identity, hasIdentity, err := fs.FileIdentity(path)
	if err != nil {
		return nil, err
	}
	if hasIdentity {
		moved, err := s.Ledger.MediaFileByIdentity(ctx, identity.Device, identity.Inode)
		if err != nil {
			return nil, err
		}
		if moved != nil {
			return s.migrateMoved(ctx, moved, path, info.Size())
		}
	}

	hash, err := fs.HashFile(path)
	if err != nil {
		return nil, err
	}

	m := ledger.MediaFile{
		FilePath:  path,
		FileName:  filepath.Base(path),
		FileSize:  info.Size(),
		FileHash:  hash,
		MediaType: mediaType,
		MimeType:  fs.MimeTypeByExtension(path),
	}
	if hasIdentity {
		m.FileDevice = &identity.Device
		m.FileInode = &identity.Inode
		idStr := identity.String()
		m.FileIdentifier = &idStr
	}
	applySource(&m, src)

	created, err := s.Ledger.CreateMediaFile(ctx, m)
	if errors.Is(err, ledger.ErrConflict) {
		// Raced with another tracker; the row is there now.
		return s.Ledger.MediaFileByPath(ctx, path)
	}
	return created, err
}

// migrateMoved points an existing row at the file's new location. The prior
// path is preserved in the event stream so the move stays auditable.
func (s Services) migrateMoved(ctx context.Context, m *ledger.MediaFile, newPath string, size int64) (*ledger.MediaFile, error) {
	originalPath := m.FilePath
	name := filepath.Base(newPath)
	patch := ledger.MediaPatch{
		FilePath: &newPath,
		FileName: &name,
		FileSize: &size,
	}
	if err := s.Ledger.UpdateMediaFile(ctx, m.ID, patch); err != nil {
		return nil, err
	}

	logger := log.WithComponent("usecase")
	if err := s.Ledger.TrackEvent(ctx, "file_moved", &m.ID, nil, map[string]any{
		"original_path": originalPath,
		"new_path":      newPath,
	}); err != nil {
		logger.Warn().Err(err).
			Int64("media_file_id", m.ID).
			Msg("failed to record file move")
	}

	logger.Info().
		Int64("media_file_id", m.ID).
		Str("from", originalPath).
		Str("to", newPath).
		Msg("media file migrated to new path")
	return s.Ledger.MediaFileByID(ctx, m.ID)
}

// refreshMetadata updates mutable fields on an already-tracked file.
func (s Services) refreshMetadata(ctx context.Context, id int64, size int64, src sourceInfo) error {
	patch := ledger.MediaPatch{FileSize: &size}
	fillSourcePatch(&patch, src)
	return s.Ledger.UpdateMediaFile(ctx, id, patch)
}

func applySource(m *ledger.MediaFile, src sourceInfo) {
	if src.URL != "" {
		m.SourceURL = &src.URL
	}
	if src.Platform != "" {
		m.SourcePlatform = &src.Platform
	}
	if src.ID != "" {
		m.SourceID = &src.ID
	}
	if src.Metadata == nil {
		return
	}
	setStr := func(dst **string, key string) {
		if v := src.Metadata.Str(key); v != "" {
			*dst = &v
		}
	}
	setStr(&m.Title, "title")
	setStr(&m.Description, "description")
	setStr(&m.Uploader, "uploader")
	setStr(&m.UploaderID, "uploader_id")
	setStr(&m.UploadDate, "upload_date")
	setStr(&m.Language, "language")
	setStr(&m.ThumbnailURL, "thumbnail")
	if v, ok := src.Metadata["view_count"].(float64); ok {
		n := int64(v)
		m.ViewCount = &n
	}
	if v, ok := src.Metadata["like_count"].(float64); ok {
		n := int64(v)
		m.LikeCount = &n
	}
	if v, ok := src.Metadata["duration"].(float64); ok {
		m.Duration = &v
	}
}

func fillSourcePatch(p *ledger.MediaPatch, src sourceInfo) {
	if src.URL != "" {
		p.SourceURL = &src.URL
	}
	if src.Platform != "" {
		p.SourcePlatform = &src.Platform
	}
	if src.ID != "" {
		p.SourceID = &src.ID
	}
	if src.Metadata == nil {
		return
	}
	if v := src.Metadata.Str("title"); v != "" {
		p.Title = &v
	}
	if v := src.Metadata.Str("uploader"); v != "" {
		p.Uploader = &v
	}
	if v, ok := src.Metadata["duration"].(float64); ok {
		p.Duration = &v
	}
}

// mediaTypeForPath classifies by extension against the configured video
// containers; anything else that looks like audio is audio, the rest video.
func (s Services) mediaTypeForPath(path string) ledger.MediaType {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".mp3", ".m4a", ".flac", ".wav", ".ogg", ".opus":
		return ledger.MediaTypeAudio
	}
	return ledger.MediaTypeVideo
}
