// SPDX-License-Identifier: MIT

package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const mediaColumns = `id, file_path, file_name, file_size, file_hash, media_type, mime_type,
	file_device, file_inode, file_identifier, source_url, source_platform, source_id,
	title, description, uploader, uploader_id, upload_date, view_count, like_count,
	duration, language, thumbnail_url, created_at_ms`

// CreateMediaFile inserts a new media file row. The ID on the returned copy
// is ledger-assigned. Colliding file_path or file_identifier yields
// ErrConflict.
func (l *Ledger) CreateMediaFile(ctx context.Context, m MediaFile) (*MediaFile, error) {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	res, err := l.db.ExecContext(ctx, `
		INSERT INTO media_files (
			file_path, file_name, file_size, file_hash, media_type, mime_type,
			file_device, file_inode, file_identifier, source_url, source_platform, source_id,
			title, description, uploader, uploader_id, upload_date, view_count, like_count,
			duration, language, thumbnail_url, created_at_ms
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.FilePath, m.FileName, m.FileSize, m.FileHash, string(m.MediaType), m.MimeType,
		nullInt(m.FileDevice), nullInt(m.FileInode), nullStr(m.FileIdentifier),
		nullStr(m.SourceURL), nullStr(m.SourcePlatform), nullStr(m.SourceID),
		nullStr(m.Title), nullStr(m.Description), nullStr(m.Uploader), nullStr(m.UploaderID),
		nullStr(m.UploadDate), nullInt(m.ViewCount), nullInt(m.LikeCount),
		nullFloat(m.Duration), nullStr(m.Language), nullStr(m.ThumbnailURL), toMS(m.CreatedAt),
	)
	if err != nil {
		return nil, mapConstraintErr(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	m.ID = id
	return &m, nil
}

// MediaFileByPath returns the row for path, or nil when absent.
func (l *Ledger) MediaFileByPath(ctx context.Context, path string) (*MediaFile, error) {
	row := l.db.QueryRowContext(ctx,
		"SELECT "+mediaColumns+" FROM media_files WHERE file_path = ?", path)
	return scanMediaFile(row)
}

// MediaFileByID returns the row for id, or nil when absent.
func (l *Ledger) MediaFileByID(ctx context.Context, id int64) (*MediaFile, error) {
	row := l.db.QueryRowContext(ctx,
		"SELECT "+mediaColumns+" FROM media_files WHERE id = ?", id)
	return scanMediaFile(row)
}

// MediaFileBySourceID returns the row for a source-native video ID on the
// given platform, or nil when absent.
func (l *Ledger) MediaFileBySourceID(ctx context.Context, platform, sourceID string) (*MediaFile, error) {
	row := l.db.QueryRowContext(ctx,
		"SELECT "+mediaColumns+" FROM media_files WHERE source_platform = ? AND source_id = ?",
		platform, sourceID)
	return scanMediaFile(row)
}

// MediaFileByIdentity returns the row matching the OS-level identity tuple,
// or nil when absent.
func (l *Ledger) MediaFileByIdentity(ctx context.Context, device, inode int64) (*MediaFile, error) {
	row := l.db.QueryRowContext(ctx,
		"SELECT "+mediaColumns+" FROM media_files WHERE file_device = ? AND file_inode = ?",
		device, inode)
	return scanMediaFile(row)
}

// UpdateMediaFile applies a partial update. Missing rows yield ErrNotFound.
func (l *Ledger) UpdateMediaFile(ctx context.Context, id int64, patch MediaPatch) error {
	sets := []string{}
	args := []any{}
	add := func(col string, v any) {
		sets = append(sets, col+" = ?")
		args = append(args, v)
	}
	if patch.FilePath != nil {
		add("file_path", *patch.FilePath)
	}
	if patch.FileName != nil {
		add("file_name", *patch.FileName)
	}
	if patch.FileSize != nil {
		add("file_size", *patch.FileSize)
	}
	if patch.FileHash != nil {
		add("file_hash", *patch.FileHash)
	}
	if patch.FileDevice != nil {
		add("file_device", *patch.FileDevice)
	}
	if patch.FileInode != nil {
		add("file_inode", *patch.FileInode)
	}
	if patch.FileIdentifier != nil {
		add("file_identifier", *patch.FileIdentifier)
	}
	if patch.SourceURL != nil {
		add("source_url", *patch.SourceURL)
	}
	if patch.SourcePlatform != nil {
		add("source_platform", *patch.SourcePlatform)
	}
	if patch.SourceID != nil {
		add("source_id", *patch.SourceID)
	}
	if patch.Title != nil {
		add("title", *patch.Title)
	}
	if patch.Description != nil {
		add("description", *patch.Description)
	}
	if patch.Uploader != nil {
		add("uploader", *patch.Uploader)
	}
	if patch.UploaderID != nil {
		add("uploader_id", *patch.UploaderID)
	}
	if patch.UploadDate != nil {
		add("upload_date", *patch.UploadDate)
	}
	if patch.ViewCount != nil {
		add("view_count", *patch.ViewCount)
	}
	if patch.LikeCount != nil {
		add("like_count", *patch.LikeCount)
	}
	if patch.Duration != nil {
		add("duration", *patch.Duration)
	}
	if patch.Language != nil {
		add("language", *patch.Language)
	}
	if patch.ThumbnailURL != nil {
		add("thumbnail_url", *patch.ThumbnailURL)
	}
	if len(sets) == 0 {
		return nil
	}

	query := "UPDATE media_files SET "
	for i, s := range sets {
		if i > 0 {
			query += ", "
		}
		query += s
	}
	query += " WHERE id = ?"
	args = append(args, id)

	res, err := l.db.ExecContext(ctx, query, args...)
	if err != nil {
		return mapConstraintErr(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: media file %d", ErrNotFound, id)
	}
	return nil
}

func scanMediaFile(row *sql.Row) (*MediaFile, error) {
	var m MediaFile
	var mediaType string
	var device, inode, viewCount, likeCount sql.NullInt64
	var identifier, sourceURL, sourcePlatform, sourceID sql.NullString
	var title, description, uploader, uploaderID, uploadDate, language, thumbnail sql.NullString
	var duration sql.NullFloat64
	var createdAt int64

	err := row.Scan(
		&m.ID, &m.FilePath, &m.FileName, &m.FileSize, &m.FileHash, &mediaType, &m.MimeType,
		&device, &inode, &identifier, &sourceURL, &sourcePlatform, &sourceID,
		&title, &description, &uploader, &uploaderID, &uploadDate, &viewCount, &likeCount,
		&duration, &language, &thumbnail, &createdAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	m.MediaType = MediaType(mediaType)
	m.FileDevice = intPtr(device)
	m.FileInode = intPtr(inode)
	m.FileIdentifier = strPtr(identifier)
	m.SourceURL = strPtr(sourceURL)
	m.SourcePlatform = strPtr(sourcePlatform)
	m.SourceID = strPtr(sourceID)
	m.Title = strPtr(title)
	m.Description = strPtr(description)
	m.Uploader = strPtr(uploader)
	m.UploaderID = strPtr(uploaderID)
	m.UploadDate = strPtr(uploadDate)
	m.ViewCount = intPtr(viewCount)
	m.LikeCount = intPtr(likeCount)
	m.Duration = floatPtr(duration)
	m.Language = strPtr(language)
	m.ThumbnailURL = strPtr(thumbnail)
	m.CreatedAt = fromMS(createdAt)
	return &m, nil
}
