// SPDX-License-Identifier: MIT

// Command spatelierd runs the media ingestion daemon: the job worker, the
// ledger and the read-only status listener.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/spatelier/spatelier/internal/config"
	"github.com/spatelier/spatelier/internal/daemon"
	"github.com/spatelier/spatelier/internal/ledger"
	"github.com/spatelier/spatelier/internal/log"
	"github.com/spatelier/spatelier/internal/media/ffmpeg"
	"github.com/spatelier/spatelier/internal/media/whispercli"
	"github.com/spatelier/spatelier/internal/media/ytdlp"
	"github.com/spatelier/spatelier/internal/persistence/sqlite"
	"github.com/spatelier/spatelier/internal/queue"
	"github.com/spatelier/spatelier/internal/storage"
	"github.com/spatelier/spatelier/internal/usecase"
	"github.com/spatelier/spatelier/internal/worker"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "spatelierd:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.Default()

	dataDir := flag.String("data-dir", cfg.DataDir, "directory for the ledger database and daemon state")
	downloadDir := flag.String("download-dir", cfg.DownloadDir, "default destination for downloads")
	listen := flag.String("listen", cfg.Server.ListenAddr, "status/metrics listen address")
	mode := flag.String("mode", cfg.Worker.Mode, "worker mode: thread, daemon or auto")
	logLevel := flag.String("log-level", "", "log level (debug, info, warn, error)")
	flag.Parse()

	cfg.DataDir = *dataDir
	cfg.DownloadDir = *downloadDir
	cfg.TempRoot = filepath.Join(*dataDir, "tmp")
	cfg.Server.ListenAddr = *listen
	cfg.Worker.Mode = *mode
	if cfg.Worker.PIDFile == "" {
		cfg.Worker.PIDFile = filepath.Join(cfg.DataDir, "spatelierd.pid")
	}
	if cfg.Worker.LockFile == "" {
		cfg.Worker.LockFile = filepath.Join(cfg.DataDir, "spatelierd.lock")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	log.Configure(log.Config{Level: *logLevel, Service: "spatelierd"})
	logger := log.WithComponent("main")

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	led, err := ledger.Open(cfg.LedgerPath(), sqlite.DefaultConfig())
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}

	q := queue.New(led)
	store := storage.New(cfg.TempRoot, storage.IndicatorClassifier{Indicators: cfg.RemoteIndicators})

	w := worker.New(cfg.Worker, q, cfg.VideoExtensions)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	w.SetMetrics(worker.NewMetrics(registry))

	services := usecase.Services{
		Ledger:      led,
		Queue:       q,
		Storage:     store,
		Downloader:  ytdlp.New(os.Getenv("SPATELIER_YTDLP")),
		Playlists:   ytdlp.New(os.Getenv("SPATELIER_YTDLP")),
		Transcriber: whispercli.New(os.Getenv("SPATELIER_WHISPER")),
		Muxer:       ffmpeg.New(os.Getenv("SPATELIER_FFMPEG"), os.Getenv("SPATELIER_FFPROBE")),
		Prober:      ffmpeg.New(os.Getenv("SPATELIER_FFMPEG"), os.Getenv("SPATELIER_FFPROBE")),
		Config:      cfg,
	}
	if err := usecase.RegisterProcessors(w, services); err != nil {
		return err
	}

	mgr, err := daemon.NewManager(cfg.Server, daemon.Deps{
		Worker:         w,
		MetricsHandler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
	})
	if err != nil {
		return err
	}
	mgr.RegisterShutdownHook("ledger", func(context.Context) error {
		return led.Close()
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info().
		Str("data_dir", cfg.DataDir).
		Str("download_dir", cfg.DownloadDir).
		Str("listen", cfg.Server.ListenAddr).
		Str("mode", string(w.Mode())).
		Msg("spatelierd starting")

	if err := mgr.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
