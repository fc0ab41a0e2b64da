// SPDX-License-Identifier: MIT

// Package config defines the immutable runtime configuration for the
// spatelier core. Loading from files or the environment is the caller's
// concern; the core only validates and reads the record it is given.
package config

import (
	"fmt"
	"path/filepath"
	"time"
)

// WorkerConfig controls the job worker runtime.
type WorkerConfig struct {
	Mode               string        // "thread", "daemon" or "auto"
	PollInterval       time.Duration // sleep when the queue is empty
	MinTimeBetweenJobs time.Duration // throttle between job starts
	AdditionalSleep    time.Duration // extra sleep applied when throttled
	StuckJobTimeout    time.Duration // age before a processing job is probed for liveness
	ProgressGrace      time.Duration // mtime slack when checking file-system progress
	MaxRetries         int           // default max_retries for enqueued jobs
	PIDFile            string        // daemon mode only
	LockFile           string        // daemon mode only
}

// ServerConfig controls the read-only status/metrics HTTP listener.
type ServerConfig struct {
	ListenAddr      string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// Config is the immutable top-level configuration record.
type Config struct {
	DataDir          string   // ledger database and daemon state live here
	DownloadDir      string   // default destination for downloads
	TempRoot         string   // per-job staging directories are created here
	VideoExtensions  []string // recognised video container extensions
	RemoteIndicators []string // path markers that classify a destination as remote
	SubtitleMarker   string   // literal embedded in subtitle track titles we produce

	Worker WorkerConfig
	Server ServerConfig
}

// LedgerPath returns the location of the ledger database file.
func (c Config) LedgerPath() string {
	return filepath.Join(c.DataDir, "spatelier.db")
}

// Default returns the baseline configuration. Callers override fields
// before passing the record to the daemon.
func Default() Config {
	return Config{
		DataDir:         "data",
		DownloadDir:     "downloads",
		TempRoot:        filepath.Join("data", "tmp"),
		VideoExtensions: []string{".mp4", ".mkv", ".webm", ".mov", ".avi"},
		RemoteIndicators: []string{
			"/volumes/",
			"/mnt/",
			"nas",
			"network",
			"smb://",
			"nfs://",
		},
		SubtitleMarker: "WhisperAI",
		Worker: WorkerConfig{
			Mode:               "thread",
			PollInterval:       5 * time.Second,
			MinTimeBetweenJobs: 60 * time.Second,
			AdditionalSleep:    0,
			StuckJobTimeout:    30 * time.Minute,
			ProgressGrace:      2 * time.Minute,
			MaxRetries:         3,
		},
		Server: ServerConfig{
			ListenAddr:      "127.0.0.1:9190",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    10 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
	}
}

// Validate checks invariants the rest of the core relies on.
func (c Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("config: DataDir must be set")
	}
	if c.TempRoot == "" {
		return fmt.Errorf("config: TempRoot must be set")
	}
	if len(c.VideoExtensions) == 0 {
		return fmt.Errorf("config: VideoExtensions must not be empty")
	}
	if c.SubtitleMarker == "" {
		return fmt.Errorf("config: SubtitleMarker must be set")
	}
	switch c.Worker.Mode {
	case "thread", "daemon", "auto":
	default:
		return fmt.Errorf("config: unknown worker mode %q", c.Worker.Mode)
	}
	if c.Worker.PollInterval <= 0 {
		return fmt.Errorf("config: Worker.PollInterval must be positive")
	}
	if c.Worker.StuckJobTimeout <= 0 {
		return fmt.Errorf("config: Worker.StuckJobTimeout must be positive")
	}
	if c.Worker.MaxRetries < 0 {
		return fmt.Errorf("config: Worker.MaxRetries must not be negative")
	}
	return nil
}
