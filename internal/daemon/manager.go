// SPDX-License-Identifier: MIT

// Package daemon owns the process lifecycle: the worker loop, the
// read-only status listener and graceful shutdown.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/spatelier/spatelier/internal/config"
	"github.com/spatelier/spatelier/internal/log"
	"github.com/spatelier/spatelier/internal/worker"
)

// ShutdownHook performs cleanup during graceful shutdown. Hooks run in
// reverse registration order (LIFO).
type ShutdownHook func(ctx context.Context) error

// Deps are the collaborators the manager drives.
type Deps struct {
	Worker         *worker.Worker
	MetricsHandler http.Handler
}

// Validate checks the dependency set.
func (d Deps) Validate() error {
	if d.Worker == nil {
		return fmt.Errorf("daemon: Worker is required")
	}
	return nil
}

// Manager runs the daemon until its context is cancelled.
type Manager struct {
	serverCfg config.ServerConfig
	deps      Deps

	statusServer *http.Server

	mu            sync.Mutex
	shutdownHooks []namedHook
	started       bool
	stopping      bool

	logger zerolog.Logger
}

type namedHook struct {
	name string
	hook ShutdownHook
}

// NewManager builds a manager over the validated dependency set.
func NewManager(serverCfg config.ServerConfig, deps Deps) (*Manager, error) {
	if err := deps.Validate(); err != nil {
		return nil, fmt.Errorf("invalid dependencies: %w", err)
	}
	return &Manager{
		serverCfg: serverCfg,
		deps:      deps,
		logger:    log.WithComponent("manager"),
	}, nil
}

// Start runs the worker loop and the status listener, blocking until ctx
// is cancelled or a component fails. Shutdown always runs to completion on
// a bounded context detached from the caller's cancellation.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return fmt.Errorf("daemon: manager already started")
	}
	m.started = true
	m.mu.Unlock()

	m.logger.Info().
		Str("listen", m.serverCfg.ListenAddr).
		Dur("shutdown_timeout", m.serverCfg.ShutdownTimeout).
		Msg("starting daemon manager")

	g, gctx := errgroup.WithContext(ctx)

	m.statusServer = &http.Server{
		Addr:              m.serverCfg.ListenAddr,
		Handler:           m.routes(),
		ReadTimeout:       m.serverCfg.ReadTimeout,
		ReadHeaderTimeout: m.serverCfg.ReadTimeout / 2,
		WriteTimeout:      m.serverCfg.WriteTimeout,
	}
	g.Go(func() error {
		m.logger.Info().Str("addr", m.serverCfg.ListenAddr).Msg("status server listening")
		if err := m.statusServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("status server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		if err := m.deps.Worker.Run(gctx); err != nil {
			return fmt.Errorf("worker: %w", err)
		}
		return nil
	})

	<-gctx.Done()
	m.logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.serverCfg.ShutdownTimeout)
	defer cancel()
	shutdownErr := m.Shutdown(shutdownCtx)

	runErr := g.Wait()
	if errors.Is(runErr, context.Canceled) {
		runErr = nil
	}
	return errors.Join(runErr, shutdownErr)
}

// Shutdown stops the components and runs the registered hooks in LIFO
// order. It is idempotent.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	if m.stopping {
		m.mu.Unlock()
		return nil
	}
	if !m.started {
		m.mu.Unlock()
		return fmt.Errorf("daemon: manager not started")
	}
	m.stopping = true
	hooks := make([]namedHook, len(m.shutdownHooks))
	copy(hooks, m.shutdownHooks)
	m.mu.Unlock()

	m.logger.Info().Msg("shutting down daemon manager")

	var errs []error

	m.deps.Worker.Stop()
	m.deps.Worker.Wait()

	if m.statusServer != nil {
		if err := m.statusServer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("status server shutdown: %w", err))
		}
	}

	for i := len(hooks) - 1; i >= 0; i-- {
		hook := hooks[i]
		start := time.Now()
		if err := hook.hook(ctx); err != nil {
			m.logger.Error().
				Err(err).
				Str("hook", hook.name).
				Dur("duration", time.Since(start)).
				Msg("shutdown hook failed")
			errs = append(errs, fmt.Errorf("hook %s: %w", hook.name, err))
			continue
		}
		m.logger.Debug().
			Str("hook", hook.name).
			Dur("duration", time.Since(start)).
			Msg("shutdown hook completed")
	}

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %w", errors.Join(errs...))
	}
	m.logger.Info().Msg("daemon manager stopped cleanly")
	return nil
}

// RegisterShutdownHook adds a cleanup step; hooks run LIFO during Shutdown.
func (m *Manager) RegisterShutdownHook(name string, hook ShutdownHook) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shutdownHooks = append(m.shutdownHooks, namedHook{name: name, hook: hook})
	m.logger.Debug().Str("hook", name).Msg("registered shutdown hook")
}
