// SPDX-License-Identifier: MIT

// Package storage classifies destinations as local or remote and provides
// the stage-then-publish protocol that keeps downloads crash-safe. Remote
// destinations never see partially written files: work happens in a local
// job-scoped staging directory and is published with an atomic rename (or a
// durable copy when the devices differ).
package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spatelier/spatelier/internal/log"
)

// Probe filename used by CanWriteTo; written and removed, never left behind.
const writeProbeName = ".spatelier_write_probe"

// Adapter abstracts a storage destination.
type Adapter interface {
	// IsRemote reports whether path lives on remote storage.
	IsRemote(path string) bool

	// CanWriteTo checks that path is writable. It creates the directory
	// tree and round-trips a probe file; no other side effects.
	CanWriteTo(path string) bool

	// StageDir returns a writable, job-scoped local directory. Distinct
	// jobs always receive disjoint directories.
	StageDir(jobID int64) (string, error)

	// Publish moves src to dst as atomically as the devices allow. On
	// failure the source file is left intact.
	Publish(src, dst string) error

	// Cleanup removes a staging directory. Best effort; never fails a job.
	Cleanup(stageDir string)
}

// Classifier decides whether a destination path is remote. The default
// implementation matches a configured indicator list; deployments with
// different mount conventions plug in their own.
type Classifier interface {
	IsRemote(path string) bool
}

// IndicatorClassifier flags paths containing any of the configured markers
// (case-insensitive substring match).
type IndicatorClassifier struct {
	Indicators []string
}

func (c IndicatorClassifier) IsRemote(path string) bool {
	lower := strings.ToLower(path)
	for _, marker := range c.Indicators {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// adapter implements Adapter for both local and remote destinations; the
// classifier makes the distinction data-driven.
type adapter struct {
	tempRoot   string
	classifier Classifier
}

// New returns an Adapter staging under tempRoot and classifying remote
// paths with the given classifier.
func New(tempRoot string, classifier Classifier) Adapter {
	return &adapter{tempRoot: tempRoot, classifier: classifier}
}

func (a *adapter) IsRemote(path string) bool {
	return a.classifier.IsRemote(path)
}

func (a *adapter) CanWriteTo(path string) bool {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return false
	}
	probe := filepath.Join(path, writeProbeName)
	if err := os.WriteFile(probe, nil, 0o644); err != nil {
		return false
	}
	_ = os.Remove(probe)
	return true
}

func (a *adapter) StageDir(jobID int64) (string, error) {
	dir := filepath.Join(a.tempRoot, strconv.FormatInt(jobID, 10))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("storage: create stage dir: %w", err)
	}
	return dir, nil
}

func (a *adapter) Cleanup(stageDir string) {
	if stageDir == "" {
		return
	}
	if err := os.RemoveAll(stageDir); err != nil {
		logger := log.WithComponent("storage")
		logger.Warn().
			Err(err).
			Str("stage_dir", stageDir).
			Msg("failed to clean up stage dir")
	}
}
