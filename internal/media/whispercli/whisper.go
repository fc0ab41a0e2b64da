// SPDX-License-Identifier: MIT

// Package whispercli drives the whisper command-line transcriber.
package whispercli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/spatelier/spatelier/internal/log"
	"github.com/spatelier/spatelier/internal/media"
)

const defaultModel = "small"

// Engine shells out to the whisper CLI and reads its JSON output file.
type Engine struct {
	Binary string
	logger zerolog.Logger
}

// New returns an engine using the given binary, or "whisper" from PATH.
func New(binary string) *Engine {
	if binary == "" {
		binary = "whisper"
	}
	return &Engine{Binary: binary, logger: log.WithComponent("whisper")}
}

// Transcribe runs the model over path and returns the timed segments.
func (e *Engine) Transcribe(ctx context.Context, path string, opts media.TranscribeOptions) (*media.TranscriptionResult, error) {
	model := opts.ModelSize
	if model == "" {
		model = defaultModel
	}

	outDir, err := os.MkdirTemp("", "spatelier-whisper-*")
	if err != nil {
		return nil, fmt.Errorf("whisper: temp dir: %w", err)
	}
	defer func() { _ = os.RemoveAll(outDir) }()

	args := []string{
		path,
		"--model", model,
		"--output_format", "json",
		"--output_dir", outDir,
	}
	if opts.Language != "" {
		args = append(args, "--language", opts.Language)
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, e.Binary, args...)
	cmd.Stderr = &stderr

	e.logger.Info().Str("file", path).Str("model", model).Msg("starting transcription")
	start := time.Now()
	if err := cmd.Run(); err != nil {
		msg := strings.ToLower(stderr.String())
		wrapped := fmt.Errorf("whisper: %w: %s", err, strings.TrimSpace(stderr.String()))
		if strings.Contains(msg, "out of memory") || strings.Contains(msg, "cuda") {
			return nil, media.Transient(wrapped)
		}
		return nil, wrapped
	}
	elapsed := time.Since(start).Seconds()

	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	data, err := os.ReadFile(filepath.Join(outDir, base+".json"))
	if err != nil {
		return nil, fmt.Errorf("whisper: read result: %w", err)
	}

	var raw struct {
		Language string `json:"language"`
		Segments []struct {
			Start float64 `json:"start"`
			End   float64 `json:"end"`
			Text  string  `json:"text"`
		} `json:"segments"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("whisper: parse result: %w", err)
	}

	result := &media.TranscriptionResult{
		Language:       raw.Language,
		ProcessingTime: elapsed,
		ModelUsed:      model,
	}
	for _, s := range raw.Segments {
		result.Segments = append(result.Segments, media.TranscriptionSegment{
			Start: s.Start, End: s.End, Text: strings.TrimSpace(s.Text),
		})
		if s.End > result.Duration {
			result.Duration = s.End
		}
	}
	return result, nil
}
