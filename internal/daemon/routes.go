// SPDX-License-Identifier: MIT

package daemon

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// routes builds the read-only status surface. It exposes liveness, the
// worker/queue snapshot and Prometheus metrics; nothing on it mutates
// state.
func (m *Manager) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(m.serverCfg.WriteTimeout))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Get("/status", func(w http.ResponseWriter, req *http.Request) {
		snap, err := m.deps.Worker.StatsSnapshot(req.Context())
		if err != nil {
			m.logger.Error().Err(err).Msg("status snapshot failed")
			http.Error(w, `{"error":"status unavailable"}`, http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(snap); err != nil {
			m.logger.Error().Err(err).Msg("failed to encode status")
		}
	})

	if m.deps.MetricsHandler != nil {
		r.Handle("/metrics", m.deps.MetricsHandler)
	}

	return r
}
