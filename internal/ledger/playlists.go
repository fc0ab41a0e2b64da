// SPDX-License-Identifier: MIT

package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const playlistColumns = `id, playlist_id, title, uploader, source_url, source_platform, video_count, created_at_ms`

// PlaylistByPlaylistID returns the playlist with the source-native ID on
// the given platform, or nil when absent.
func (l *Ledger) PlaylistByPlaylistID(ctx context.Context, playlistID, platform string) (*Playlist, error) {
	row := l.db.QueryRowContext(ctx,
		"SELECT "+playlistColumns+" FROM playlists WHERE playlist_id = ? AND source_platform = ?",
		playlistID, platform)
	return scanPlaylist(row)
}

// CreatePlaylist inserts a new playlist row.
func (l *Ledger) CreatePlaylist(ctx context.Context, p Playlist) (*Playlist, error) {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	res, err := l.db.ExecContext(ctx, `
		INSERT INTO playlists (playlist_id, title, uploader, source_url, source_platform, video_count, created_at_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.PlaylistID, p.Title, nullStr(p.Uploader), p.SourceURL, p.SourcePlatform, p.VideoCount, toMS(p.CreatedAt),
	)
	if err != nil {
		return nil, mapConstraintErr(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	p.ID = id
	return &p, nil
}

// UpsertPlaylist creates the playlist or refreshes its metadata in place.
func (l *Ledger) UpsertPlaylist(ctx context.Context, p Playlist) (*Playlist, error) {
	existing, err := l.PlaylistByPlaylistID(ctx, p.PlaylistID, p.SourcePlatform)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return l.CreatePlaylist(ctx, p)
	}
	_, err = l.db.ExecContext(ctx, `
		UPDATE playlists SET title = ?, uploader = ?, source_url = ?, video_count = ?
		WHERE id = ?`,
		p.Title, nullStr(p.Uploader), p.SourceURL, p.VideoCount, existing.ID)
	if err != nil {
		return nil, err
	}
	return l.PlaylistByPlaylistID(ctx, p.PlaylistID, p.SourcePlatform)
}

// AddVideoToPlaylist links a media file into the playlist at a 1-based
// position. A duplicate (playlist, position) pair yields ErrConflict.
func (l *Ledger) AddVideoToPlaylist(ctx context.Context, playlistID, mediaFileID int64, position int, title *string) error {
	if position < 1 {
		return fmt.Errorf("ledger: playlist position must be 1-based, got %d", position)
	}
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO playlist_videos (playlist_id, media_file_id, position, video_title)
		VALUES (?, ?, ?, ?)`,
		playlistID, mediaFileID, position, nullStr(title),
	)
	return mapConstraintErr(err)
}

// PlaylistVideos returns the linked rows ordered by position.
func (l *Ledger) PlaylistVideos(ctx context.Context, playlistID int64) ([]PlaylistVideo, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT playlist_id, media_file_id, position, video_title
		FROM playlist_videos WHERE playlist_id = ? ORDER BY position`, playlistID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var result []PlaylistVideo
	for rows.Next() {
		var pv PlaylistVideo
		var title sql.NullString
		if err := rows.Scan(&pv.PlaylistID, &pv.MediaFileID, &pv.Position, &title); err != nil {
			return nil, err
		}
		pv.VideoTitle = strPtr(title)
		result = append(result, pv)
	}
	return result, rows.Err()
}

// PlaylistVideoAtPosition returns the link at the position, or nil.
func (l *Ledger) PlaylistVideoAtPosition(ctx context.Context, playlistID int64, position int) (*PlaylistVideo, error) {
	var pv PlaylistVideo
	var title sql.NullString
	err := l.db.QueryRowContext(ctx, `
		SELECT playlist_id, media_file_id, position, video_title
		FROM playlist_videos WHERE playlist_id = ? AND position = ?`,
		playlistID, position).Scan(&pv.PlaylistID, &pv.MediaFileID, &pv.Position, &title)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	pv.VideoTitle = strPtr(title)
	return &pv, nil
}

func scanPlaylist(row *sql.Row) (*Playlist, error) {
	var p Playlist
	var uploader sql.NullString
	var createdAt int64
	err := row.Scan(&p.ID, &p.PlaylistID, &p.Title, &uploader, &p.SourceURL, &p.SourcePlatform, &p.VideoCount, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	p.Uploader = strPtr(uploader)
	p.CreatedAt = fromMS(createdAt)
	return &p, nil
}
