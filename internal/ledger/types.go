// SPDX-License-Identifier: MIT

package ledger

import "time"

// MediaType classifies a tracked file.
type MediaType string

const (
	MediaTypeVideo MediaType = "video"
	MediaTypeAudio MediaType = "audio"
)

// JobStatus is the lifecycle state of a processing job.
type JobStatus string

const (
	StatusPending    JobStatus = "pending"
	StatusProcessing JobStatus = "processing"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
)

// JobType identifies the handler a job is dispatched to.
type JobType string

const (
	JobDownloadVideo    JobType = "download_video"
	JobDownloadPlaylist JobType = "download_playlist"
	JobTranscribe       JobType = "transcribe"
	JobEmbedSubtitles   JobType = "embed_subtitles"
)

// MediaFile is a tracked file on disk.
type MediaFile struct {
	ID             int64
	FilePath       string
	FileName       string
	FileSize       int64
	FileHash       string
	MediaType      MediaType
	MimeType       string
	FileDevice     *int64
	FileInode      *int64
	FileIdentifier *string
	SourceURL      *string
	SourcePlatform *string
	SourceID       *string
	Title          *string
	Description    *string
	Uploader       *string
	UploaderID     *string
	UploadDate     *string
	ViewCount      *int64
	LikeCount      *int64
	Duration       *float64
	Language       *string
	ThumbnailURL   *string
	CreatedAt      time.Time
}

// MediaPatch describes a partial update of a MediaFile row. Nil fields are
// left unchanged.
type MediaPatch struct {
	FilePath       *string
	FileName       *string
	FileSize       *int64
	FileHash       *string
	FileDevice     *int64
	FileInode      *int64
	FileIdentifier *string
	SourceURL      *string
	SourcePlatform *string
	SourceID       *string
	Title          *string
	Description    *string
	Uploader       *string
	UploaderID     *string
	UploadDate     *string
	ViewCount      *int64
	LikeCount      *int64
	Duration       *float64
	Language       *string
	ThumbnailURL   *string
}

// Job is one enqueued unit of work.
type Job struct {
	ID              int64
	MediaFileID     *int64
	JobType         JobType
	InputPath       string
	OutputPath      string
	Parameters      string
	Status          JobStatus
	ErrorMessage    *string
	CreatedAt       time.Time
	StartedAt       *time.Time
	CompletedAt     *time.Time
	DurationSeconds *float64
	RetryCount      int
	MaxRetries      int
	WorkerPID       *int64
}

// JobPatch describes a partial update of a Job row outside the status
// machine. Status changes go through UpdateJobStatus only.
type JobPatch struct {
	MediaFileID *int64
	OutputPath  *string
}

// QueueStatus is a snapshot of queue depth per bucket. Retrying counts
// failed jobs that still have retry budget.
type QueueStatus struct {
	Pending    int `json:"pending"`
	Processing int `json:"processing"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
	Retrying   int `json:"retrying"`
}

// JobStatistics aggregates job history for reporting.
type JobStatistics struct {
	Total           int
	ByStatus        map[JobStatus]int
	ByType          map[JobType]int
	AvgDurationSecs float64
}

// Playlist is a named collection of videos from a remote source.
type Playlist struct {
	ID             int64
	PlaylistID     string
	Title          string
	Uploader       *string
	SourceURL      string
	SourcePlatform string
	VideoCount     int
	CreatedAt      time.Time
}

// PlaylistVideo links a MediaFile into a Playlist at a 1-based position.
type PlaylistVideo struct {
	PlaylistID  int64
	MediaFileID int64
	Position    int
	VideoTitle  *string
}

// AnalyticsEvent is one append-only event row.
type AnalyticsEvent struct {
	ID              int64
	EventType       string
	MediaFileID     *int64
	ProcessingJobID *int64
	EventData       map[string]any
	Timestamp       time.Time
}

// Segment is one timed span of transcribed speech.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Transcription is the stored result of transcribing a media file.
type Transcription struct {
	ID             int64
	MediaFileID    int64
	Language       string
	Duration       float64
	ProcessingTime float64
	ModelUsed      string
	Segments       []Segment
	FullText       string
	CreatedAt      time.Time
}
