// SPDX-License-Identifier: MIT

package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// TranscriptionPayload is the input for storing a transcription result.
type TranscriptionPayload struct {
	Language       string
	Duration       float64
	ProcessingTime float64
	ModelUsed      string
	Segments       []Segment
}

// FullText returns the deterministic space-joined concatenation of the
// segment texts.
func (p TranscriptionPayload) FullText() string {
	parts := make([]string, 0, len(p.Segments))
	for _, s := range p.Segments {
		parts = append(parts, s.Text)
	}
	return strings.Join(parts, " ")
}

func validateSegments(segments []Segment) error {
	for i, s := range segments {
		if s.End < s.Start {
			return fmt.Errorf("ledger: segment %d ends before it starts (%.2f < %.2f)", i, s.End, s.Start)
		}
		if i > 0 && s.Start < segments[i-1].End {
			return fmt.Errorf("ledger: segment %d overlaps its predecessor", i)
		}
	}
	return nil
}

// StoreTranscription persists the transcription for a media file, replacing
// a prior one. The FTS shadow table is maintained by triggers inside the
// same transaction.
func (l *Ledger) StoreTranscription(ctx context.Context, mediaFileID int64, payload TranscriptionPayload) (*Transcription, error) {
	if err := validateSegments(payload.Segments); err != nil {
		return nil, err
	}

	segmentsJSON, err := json.Marshal(payload.Segments)
	if err != nil {
		return nil, fmt.Errorf("ledger: marshal segments: %w", err)
	}
	fullText := payload.FullText()
	now := time.Now()

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var existingID sql.NullInt64
	err = tx.QueryRowContext(ctx,
		"SELECT id FROM transcriptions WHERE media_file_id = ?", mediaFileID).
		Scan(&existingID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	var id int64
	if existingID.Valid {
		id = existingID.Int64
		_, err = tx.ExecContext(ctx, `
			UPDATE transcriptions
			SET language = ?, duration = ?, processing_time = ?, model_used = ?,
			    segments_json = ?, full_text = ?
			WHERE id = ?`,
			payload.Language, payload.Duration, payload.ProcessingTime, payload.ModelUsed,
			string(segmentsJSON), fullText, id)
		if err != nil {
			return nil, err
		}
	} else {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO transcriptions (media_file_id, language, duration, processing_time, model_used, segments_json, full_text, created_at_ms)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			mediaFileID, payload.Language, payload.Duration, payload.ProcessingTime,
			payload.ModelUsed, string(segmentsJSON), fullText, toMS(now))
		if err != nil {
			return nil, mapConstraintErr(err)
		}
		id, err = res.LastInsertId()
		if err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return &Transcription{
		ID:             id,
		MediaFileID:    mediaFileID,
		Language:       payload.Language,
		Duration:       payload.Duration,
		ProcessingTime: payload.ProcessingTime,
		ModelUsed:      payload.ModelUsed,
		Segments:       payload.Segments,
		FullText:       fullText,
		CreatedAt:      now,
	}, nil
}

// TranscriptionByMediaFile returns the stored transcription, or nil.
func (l *Ledger) TranscriptionByMediaFile(ctx context.Context, mediaFileID int64) (*Transcription, error) {
	row := l.db.QueryRowContext(ctx, `
		SELECT id, media_file_id, language, duration, processing_time, model_used, segments_json, full_text, created_at_ms
		FROM transcriptions WHERE media_file_id = ?`, mediaFileID)
	return scanTranscription(row)
}

// TranscriptionSearchResult is one ranked full-text hit.
type TranscriptionSearchResult struct {
	Transcription Transcription
	Rank          float64
}

// SearchTranscriptions runs a full-text query over the FTS shadow index,
// ranked by bm25. Only committed rows are visible.
func (l *Ledger) SearchTranscriptions(ctx context.Context, query string, limit int) ([]TranscriptionSearchResult, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT t.id, t.media_file_id, t.language, t.duration, t.processing_time,
		       t.model_used, t.segments_json, t.full_text, t.created_at_ms,
		       bm25(transcriptions_fts) AS rank
		FROM transcriptions_fts f
		JOIN transcriptions t ON t.id = f.rowid
		WHERE transcriptions_fts MATCH ?
		ORDER BY rank
		LIMIT ?`, query, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var results []TranscriptionSearchResult
	for rows.Next() {
		var t Transcription
		var language, modelUsed sql.NullString
		var duration, procTime sql.NullFloat64
		var segmentsJSON string
		var createdAt int64
		var rank float64
		err := rows.Scan(&t.ID, &t.MediaFileID, &language, &duration, &procTime,
			&modelUsed, &segmentsJSON, &t.FullText, &createdAt, &rank)
		if err != nil {
			return nil, err
		}
		t.Language = language.String
		t.ModelUsed = modelUsed.String
		t.Duration = duration.Float64
		t.ProcessingTime = procTime.Float64
		t.CreatedAt = fromMS(createdAt)
		_ = json.Unmarshal([]byte(segmentsJSON), &t.Segments)
		results = append(results, TranscriptionSearchResult{Transcription: t, Rank: rank})
	}
	return results, rows.Err()
}

// DeleteTranscription removes a transcription; the FTS index follows via
// trigger.
func (l *Ledger) DeleteTranscription(ctx context.Context, id int64) error {
	res, err := l.db.ExecContext(ctx, "DELETE FROM transcriptions WHERE id = ?", id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: transcription %d", ErrNotFound, id)
	}
	return nil
}

func scanTranscription(row *sql.Row) (*Transcription, error) {
	var t Transcription
	var language, modelUsed sql.NullString
	var duration, procTime sql.NullFloat64
	var segmentsJSON string
	var createdAt int64

	err := row.Scan(&t.ID, &t.MediaFileID, &language, &duration, &procTime,
		&modelUsed, &segmentsJSON, &t.FullText, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	t.Language = language.String
	t.ModelUsed = modelUsed.String
	t.Duration = duration.Float64
	t.ProcessingTime = procTime.Float64
	t.CreatedAt = fromMS(createdAt)
	_ = json.Unmarshal([]byte(segmentsJSON), &t.Segments)
	return &t, nil
}
