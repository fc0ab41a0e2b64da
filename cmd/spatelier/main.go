// SPDX-License-Identifier: MIT

// Command spatelier enqueues work and inspects the ledger from the shell.
// The daemon (spatelierd) does the actual processing; this tool only talks
// to the shared database.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spatelier/spatelier/internal/config"
	"github.com/spatelier/spatelier/internal/ledger"
	"github.com/spatelier/spatelier/internal/log"
	"github.com/spatelier/spatelier/internal/persistence/sqlite"
	"github.com/spatelier/spatelier/internal/queue"
	"github.com/spatelier/spatelier/internal/storage"
	"github.com/spatelier/spatelier/internal/usecase"
)

const usage = `usage: spatelier [-data-dir DIR] <command> [args]

commands:
  download <url>          enqueue a video download
  playlist <url>          enqueue a playlist download
  transcribe <file>       enqueue a transcription
  search <query>          full-text search over transcriptions
  status                  show queue depth per bucket
  verify <playlist-id>    check a stored playlist's entries
`

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "spatelier:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("spatelier", flag.ExitOnError)
	dataDir := fs.String("data-dir", "data", "directory holding the ledger database")
	downloadDir := fs.String("download-dir", "", "destination directory override")
	transcribe := fs.Bool("transcribe", false, "transcribe after download")
	embed := fs.Bool("embed", false, "embed subtitles after transcription")
	resume := fs.Bool("resume", false, "skip playlist entries already downloaded and transcribed")
	language := fs.String("language", "", "transcription language hint")
	fs.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return fmt.Errorf("missing command")
	}

	log.Configure(log.Config{Service: "spatelier", Output: os.Stderr})

	cfg := config.Default()
	cfg.DataDir = *dataDir
	if *downloadDir != "" {
		cfg.DownloadDir = *downloadDir
	}
	cfg.TempRoot = filepath.Join(*dataDir, "tmp")
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return err
	}

	led, err := ledger.Open(cfg.LedgerPath(), sqlite.DefaultConfig())
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}
	defer func() { _ = led.Close() }()

	q := queue.New(led)
	ctx := context.Background()

	cmd, rest := fs.Arg(0), fs.Args()[1:]
	switch cmd {
	case "download", "playlist":
		if len(rest) != 1 {
			return fmt.Errorf("%s needs exactly one URL", cmd)
		}
		params, err := json.Marshal(usecase.DownloadParams{
			OutputDir:        *downloadDir,
			Transcribe:       *transcribe,
			Language:         *language,
			EmbedSubtitles:   *embed,
			ContinueDownload: *resume,
		})
		if err != nil {
			return err
		}
		jobType := ledger.JobDownloadVideo
		if cmd == "playlist" {
			jobType = ledger.JobDownloadPlaylist
		}
		id, err := q.Enqueue(ctx, jobType, rest[0], cfg.DownloadDir, string(params), cfg.Worker.MaxRetries)
		if err != nil {
			return err
		}
		fmt.Printf("enqueued job %d\n", id)
		return nil

	case "transcribe":
		if len(rest) != 1 {
			return fmt.Errorf("transcribe needs exactly one file path")
		}
		path, err := filepath.Abs(rest[0])
		if err != nil {
			return err
		}
		params, err := json.Marshal(usecase.TranscribeParams{
			Language:       *language,
			EmbedSubtitles: *embed,
		})
		if err != nil {
			return err
		}
		id, err := q.Enqueue(ctx, ledger.JobTranscribe, path, "", string(params), cfg.Worker.MaxRetries)
		if err != nil {
			return err
		}
		fmt.Printf("enqueued job %d\n", id)
		return nil

	case "search":
		if len(rest) != 1 {
			return fmt.Errorf("search needs exactly one query")
		}
		results, err := led.SearchTranscriptions(ctx, rest[0], 20)
		if err != nil {
			return err
		}
		if len(results) == 0 {
			fmt.Println("no matches")
			return nil
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "MEDIA\tLANG\tRANK\tTEXT")
		for _, r := range results {
			text := r.Transcription.FullText
			if len(text) > 80 {
				text = text[:77] + "..."
			}
			fmt.Fprintf(w, "%d\t%s\t%.2f\t%s\n",
				r.Transcription.MediaFileID, r.Transcription.Language, r.Rank, text)
		}
		return w.Flush()

	case "status":
		status, err := q.Status(ctx)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "PENDING\tPROCESSING\tCOMPLETED\tFAILED\tRETRYING")
		fmt.Fprintf(w, "%d\t%d\t%d\t%d\t%d\n",
			status.Pending, status.Processing, status.Completed, status.Failed, status.Retrying)
		return w.Flush()

	case "verify":
		if len(rest) != 1 {
			return fmt.Errorf("verify needs exactly one playlist row id")
		}
		var playlistID int64
		if _, err := fmt.Sscanf(rest[0], "%d", &playlistID); err != nil {
			return fmt.Errorf("bad playlist id %q", rest[0])
		}
		services := usecase.Services{
			Ledger:  led,
			Queue:   q,
			Storage: storage.New(cfg.TempRoot, storage.IndicatorClassifier{Indicators: cfg.RemoteIndicators}),
			Config:  cfg,
		}
		outcome, err := services.VerifyPlaylist(ctx, playlistID)
		if err != nil {
			return err
		}
		fmt.Printf("total %d, ok %d, failed %d\n", outcome.Total, outcome.Completed, outcome.Failed)
		for _, f := range outcome.Failures {
			fmt.Printf("  #%d %s: %s\n", f.Position, f.Title, f.Reason)
		}
		return nil

	default:
		fs.Usage()
		return fmt.Errorf("unknown command %q", cmd)
	}
}
