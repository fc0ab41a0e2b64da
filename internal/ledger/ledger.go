// SPDX-License-Identifier: MIT

// Package ledger is the durable relational store for media files, jobs,
// playlists, analytics events and transcriptions. All mutations run in
// short transactions; the schema is bootstrapped via PRAGMA user_version.
package ledger

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/spatelier/spatelier/internal/persistence/sqlite"
)

const schemaVersion = 1

// Ledger wraps the SQLite database and exposes one repository per entity.
type Ledger struct {
	db *sql.DB
}

// Open opens (or creates) the ledger at dbPath and applies the schema.
func Open(dbPath string, cfg sqlite.Config) (*Ledger, error) {
	db, err := sqlite.Open(dbPath, cfg)
	if err != nil {
		return nil, err
	}

	l := &Ledger{db: db}
	if err := l.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ledger: migration failed: %w", err)
	}
	return l, nil
}

// Close releases the underlying connection pool.
func (l *Ledger) Close() error {
	return l.db.Close()
}

// DB exposes the raw handle for tests.
func (l *Ledger) DB() *sql.DB {
	return l.db
}

func (l *Ledger) migrate() error {
	var currentVersion int
	if err := l.db.QueryRow("PRAGMA user_version").Scan(&currentVersion); err != nil {
		return err
	}
	if currentVersion >= schemaVersion {
		return nil
	}

	tx, err := l.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	schema := `
	CREATE TABLE IF NOT EXISTS media_files (
		id INTEGER PRIMARY KEY,
		file_path TEXT NOT NULL UNIQUE,
		file_name TEXT NOT NULL,
		file_size INTEGER NOT NULL,
		file_hash TEXT NOT NULL,
		media_type TEXT NOT NULL CHECK (media_type IN ('video','audio')),
		mime_type TEXT NOT NULL,
		file_device INTEGER,
		file_inode INTEGER,
		file_identifier TEXT UNIQUE,
		source_url TEXT,
		source_platform TEXT,
		source_id TEXT,
		title TEXT,
		description TEXT,
		uploader TEXT,
		uploader_id TEXT,
		upload_date TEXT,
		view_count INTEGER,
		like_count INTEGER,
		duration REAL,
		language TEXT,
		thumbnail_url TEXT,
		created_at_ms INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_media_files_source ON media_files(source_platform, source_id);

	CREATE TABLE IF NOT EXISTS processing_jobs (
		id INTEGER PRIMARY KEY,
		media_file_id INTEGER REFERENCES media_files(id),
		job_type TEXT NOT NULL,
		input_path TEXT NOT NULL,
		output_path TEXT NOT NULL,
		parameters TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending','processing','completed','failed')),
		error_message TEXT,
		created_at_ms INTEGER NOT NULL,
		started_at_ms INTEGER,
		completed_at_ms INTEGER,
		duration_seconds REAL,
		retry_count INTEGER NOT NULL DEFAULT 0,
		max_retries INTEGER NOT NULL DEFAULT 3,
		worker_pid INTEGER
	);

	CREATE INDEX IF NOT EXISTS idx_jobs_status ON processing_jobs(status, created_at_ms, id);
	CREATE INDEX IF NOT EXISTS idx_jobs_media_file ON processing_jobs(media_file_id);

	CREATE TABLE IF NOT EXISTS playlists (
		id INTEGER PRIMARY KEY,
		playlist_id TEXT NOT NULL,
		title TEXT NOT NULL,
		uploader TEXT,
		source_url TEXT NOT NULL,
		source_platform TEXT NOT NULL,
		video_count INTEGER NOT NULL DEFAULT 0,
		created_at_ms INTEGER NOT NULL,
		UNIQUE(playlist_id, source_platform)
	);

	CREATE TABLE IF NOT EXISTS playlist_videos (
		playlist_id INTEGER NOT NULL REFERENCES playlists(id),
		media_file_id INTEGER NOT NULL REFERENCES media_files(id),
		position INTEGER NOT NULL,
		video_title TEXT,
		UNIQUE(playlist_id, position)
	);

	CREATE TABLE IF NOT EXISTS analytics_events (
		id INTEGER PRIMARY KEY,
		event_type TEXT NOT NULL,
		media_file_id INTEGER REFERENCES media_files(id),
		processing_job_id INTEGER REFERENCES processing_jobs(id),
		event_data TEXT NOT NULL DEFAULT '{}',
		timestamp_ms INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_analytics_type ON analytics_events(event_type, timestamp_ms);

	CREATE TABLE IF NOT EXISTS transcriptions (
		id INTEGER PRIMARY KEY,
		media_file_id INTEGER NOT NULL REFERENCES media_files(id),
		language TEXT,
		duration REAL,
		processing_time REAL,
		model_used TEXT,
		segments_json TEXT NOT NULL,
		full_text TEXT NOT NULL,
		created_at_ms INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_transcriptions_media_file ON transcriptions(media_file_id);
	`

	if _, err := tx.Exec(schema); err != nil {
		return err
	}

	// FTS5 shadow table stays synchronized with transcriptions.full_text
	// through triggers, so search visibility matches commit visibility.
	fts := `
	CREATE VIRTUAL TABLE IF NOT EXISTS transcriptions_fts USING fts5(
		full_text, content='transcriptions', content_rowid='id'
	);

	CREATE TRIGGER IF NOT EXISTS transcriptions_ai AFTER INSERT ON transcriptions BEGIN
		INSERT INTO transcriptions_fts(rowid, full_text) VALUES (new.id, new.full_text);
	END;

	CREATE TRIGGER IF NOT EXISTS transcriptions_ad AFTER DELETE ON transcriptions BEGIN
		INSERT INTO transcriptions_fts(transcriptions_fts, rowid, full_text)
		VALUES ('delete', old.id, old.full_text);
	END;

	CREATE TRIGGER IF NOT EXISTS transcriptions_au AFTER UPDATE ON transcriptions BEGIN
		INSERT INTO transcriptions_fts(transcriptions_fts, rowid, full_text)
		VALUES ('delete', old.id, old.full_text);
		INSERT INTO transcriptions_fts(rowid, full_text) VALUES (new.id, new.full_text);
	END;
	`

	if _, err := tx.Exec(fts); err != nil {
		return err
	}

	if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", schemaVersion)); err != nil {
		return err
	}

	return tx.Commit()
}

// --- time helpers ---

func toMS(t time.Time) int64 { return t.UnixMilli() }

func fromMS(ms int64) time.Time { return time.UnixMilli(ms) }

func nullTimeToMS(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixMilli(), Valid: true}
}

func msToNullTime(ms sql.NullInt64) *time.Time {
	if !ms.Valid {
		return nil
	}
	t := time.UnixMilli(ms.Int64)
	return &t
}

func nullStr(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func strPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func nullInt(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func intPtr(ni sql.NullInt64) *int64 {
	if !ni.Valid {
		return nil
	}
	v := ni.Int64
	return &v
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func floatPtr(nf sql.NullFloat64) *float64 {
	if !nf.Valid {
		return nil
	}
	v := nf.Float64
	return &v
}
