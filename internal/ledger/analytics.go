// SPDX-License-Identifier: MIT

package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"
)

// TrackEvent appends an analytics event. Event data that cannot be
// serialized is recorded as an empty object rather than failing the caller;
// only persistence errors surface.
func (l *Ledger) TrackEvent(ctx context.Context, eventType string, mediaFileID, jobID *int64, data map[string]any) error {
	payload := []byte("{}")
	if data != nil {
		if b, err := json.Marshal(data); err == nil {
			payload = b
		}
	}
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO analytics_events (event_type, media_file_id, processing_job_id, event_data, timestamp_ms)
		VALUES (?, ?, ?, ?, ?)`,
		eventType, nullInt(mediaFileID), nullInt(jobID), string(payload), toMS(time.Now()),
	)
	return err
}

// EventsByType returns events of the given type, newest first.
func (l *Ledger) EventsByType(ctx context.Context, eventType string, limit int) ([]AnalyticsEvent, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT id, event_type, media_file_id, processing_job_id, event_data, timestamp_ms
		FROM analytics_events WHERE event_type = ?
		ORDER BY timestamp_ms DESC, id DESC LIMIT ?`, eventType, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var events []AnalyticsEvent
	for rows.Next() {
		var e AnalyticsEvent
		var mediaFileID, jobID sql.NullInt64
		var data string
		var ts int64
		if err := rows.Scan(&e.ID, &e.EventType, &mediaFileID, &jobID, &data, &ts); err != nil {
			return nil, err
		}
		e.MediaFileID = intPtr(mediaFileID)
		e.ProcessingJobID = intPtr(jobID)
		e.Timestamp = fromMS(ts)
		_ = json.Unmarshal([]byte(data), &e.EventData)
		events = append(events, e)
	}
	return events, rows.Err()
}
