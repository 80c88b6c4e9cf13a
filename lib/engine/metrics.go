// Copyright 2026 The LittleCI Authors
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"github.com/prometheus/client_golang/prometheus"
)

// metrics are the engine's Prometheus collectors. Each Engine owns its
// own set, registered on the Registerer from Config, so tests and
// multiple engines in one process never collide.
type metrics struct {
	enqueued         *prometheus.CounterVec
	finished         *prometheus.CounterVec
	duration         *prometheus.HistogramVec
	running          prometheus.Gauge
	triggersRejected *prometheus.CounterVec
	triggersSkipped  *prometheus.CounterVec
}

func newMetrics(registerer prometheus.Registerer) *metrics {
	m := &metrics{
		enqueued: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "littleci",
				Name:      "jobs_enqueued_total",
				Help:      "Jobs created, by repository.",
			},
			[]string{"repository"},
		),
		finished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "littleci",
				Name:      "jobs_finished_total",
				Help:      "Jobs that reached a terminal state, by repository and status.",
			},
			[]string{"repository", "status"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "littleci",
				Name:      "job_duration_seconds",
				Help:      "Wall-clock time from claim to terminal state.",
				Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800, 3600},
			},
			[]string{"repository"},
		),
		running: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "littleci",
				Name:      "jobs_running",
				Help:      "Jobs currently executing in this server.",
			},
		),
		triggersRejected: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "littleci",
				Name:      "triggers_rejected_total",
				Help:      "Triggers rejected before a job was created, by reason.",
			},
			[]string{"reason"},
		),
		triggersSkipped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "littleci",
				Name:      "triggers_skipped_total",
				Help:      "Authenticated triggers that matched no trigger rule, by repository.",
			},
			[]string{"repository"},
		),
	}
	registerer.MustRegister(
		m.enqueued,
		m.finished,
		m.duration,
		m.running,
		m.triggersRejected,
		m.triggersSkipped,
	)
	return m
}
