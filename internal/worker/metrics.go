// SPDX-License-Identifier: MIT

package worker

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/spatelier/spatelier/internal/ledger"
)

// Metrics instruments the worker for Prometheus scraping.
type Metrics struct {
	Processed prometheus.Counter
	Failed    prometheus.Counter
	Retried   prometheus.Counter
	Stuck     prometheus.Counter

	queueDepth *prometheus.GaugeVec
}

// NewMetrics builds and registers the worker metric set.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Processed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "spatelier",
			Subsystem: "worker",
			Name:      "jobs_processed_total",
			Help:      "Jobs completed successfully.",
		}),
		Failed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "spatelier",
			Subsystem: "worker",
			Name:      "jobs_failed_total",
			Help:      "Jobs that ended in failure.",
		}),
		Retried: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "spatelier",
			Subsystem: "worker",
			Name:      "jobs_retried_total",
			Help:      "Jobs that completed after at least one retry.",
		}),
		Stuck: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "spatelier",
			Subsystem: "worker",
			Name:      "stuck_jobs_detected_total",
			Help:      "Processing jobs detected as stuck by the sweep.",
		}),
		queueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "spatelier",
			Subsystem: "queue",
			Name:      "jobs",
			Help:      "Queue depth by status bucket.",
		}, []string{"status"}),
	}
	reg.MustRegister(m.Processed, m.Failed, m.Retried, m.Stuck, m.queueDepth)
	return m
}

// SetQueueDepth publishes the per-bucket queue depth.
func (m *Metrics) SetQueueDepth(qs ledger.QueueStatus) {
	m.queueDepth.WithLabelValues("pending").Set(float64(qs.Pending))
	m.queueDepth.WithLabelValues("processing").Set(float64(qs.Processing))
	m.queueDepth.WithLabelValues("completed").Set(float64(qs.Completed))
	m.queueDepth.WithLabelValues("failed").Set(float64(qs.Failed))
	m.queueDepth.WithLabelValues("retrying").Set(float64(qs.Retrying))
}
