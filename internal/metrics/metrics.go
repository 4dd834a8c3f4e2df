// Package metrics defines the Prometheus collectors exported by the rtsync
// daemon.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Pass results.
const (
	PassCompleted   = "completed"
	PassInterrupted = "interrupted"
	PassFailed      = "failed"
)

// Metrics holds the daemon's collectors. A nil *Metrics records nothing.
type Metrics struct {
	QueueItems        *prometheus.GaugeVec
	Online            prometheus.Gauge
	EnqueuedTotal     *prometheus.CounterVec
	PassesTotal       *prometheus.CounterVec
	RefusalsTotal     *prometheus.CounterVec
	AttemptsTotal     *prometheus.CounterVec
	FailuresTotal     *prometheus.CounterVec
	UploadDuration    *prometheus.HistogramVec
	PassDuration      prometheus.Histogram
	LastPassTimestamp prometheus.Gauge
}

// New builds unregistered collectors.
func New() *Metrics {
	return &Metrics{
		QueueItems: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "rtsync_queue_items",
				Help: "Queued uploads by status.",
			},
			[]string{"status"},
		),
		Online: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "rtsync_online",
				Help: "1 when the connectivity monitor reports online.",
			},
		),
		EnqueuedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rtsync_enqueued_total",
				Help: "Total number of uploads enqueued by media type.",
			},
			[]string{"media_type"},
		),
		PassesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rtsync_sync_passes_total",
				Help: "Total number of sync passes by result.",
			},
			[]string{"result"},
		),
		RefusalsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rtsync_sync_refusals_total",
				Help: "Total number of sync triggers refused by reason.",
			},
			[]string{"reason"}, // offline, busy, empty
		),
		AttemptsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rtsync_upload_attempts_total",
				Help: "Total number of upload attempts by outcome.",
			},
			[]string{"outcome"},
		),
		FailuresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rtsync_upload_failures_total",
				Help: "Total number of failed upload attempts by kind and reason.",
			},
			[]string{"kind", "reason"}, // e.g. remote/http_5xx, transport/timeout
		),
		UploadDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "rtsync_upload_duration_seconds",
				Help:    "Upload attempt duration in seconds.",
				Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
			},
			[]string{"outcome"},
		),
		PassDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "rtsync_sync_pass_duration_seconds",
				Help:    "Sync pass duration in seconds.",
				Buckets: prometheus.ExponentialBuckets(0.05, 4, 8),
			},
		),
		LastPassTimestamp: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "rtsync_last_pass_timestamp_seconds",
				Help: "Unix time the last sync pass finished.",
			},
		),
	}
}

// MustRegister registers every collector with reg.
func (m *Metrics) MustRegister(reg prometheus.Registerer) {
	reg.MustRegister(
		m.QueueItems,
		m.Online,
		m.EnqueuedTotal,
		m.PassesTotal,
		m.RefusalsTotal,
		m.AttemptsTotal,
		m.FailuresTotal,
		m.UploadDuration,
		m.PassDuration,
		m.LastPassTimestamp,
	)
}

// SetQueue records queue depth by status.
func (m *Metrics) SetQueue(pending, failed int) {
	if m == nil {
		return
	}
	m.QueueItems.WithLabelValues("pending").Set(float64(pending))
	m.QueueItems.WithLabelValues("failed").Set(float64(failed))
}

// SetOnline records the connectivity state.
func (m *Metrics) SetOnline(online bool) {
	if m == nil {
		return
	}
	if online {
		m.Online.Set(1)
		return
	}
	m.Online.Set(0)
}

// RecordEnqueue counts one accepted upload.
func (m *Metrics) RecordEnqueue(mediaType string) {
	if m == nil {
		return
	}
	m.EnqueuedTotal.WithLabelValues(label(mediaType)).Inc()
}

// RecordAttempt counts one upload attempt.
func (m *Metrics) RecordAttempt(delivered bool, kind, reason string, duration time.Duration) {
	if m == nil {
		return
	}
	outcome := "delivered"
	if !delivered {
		outcome = "failed"
		m.FailuresTotal.WithLabelValues(label(kind), label(reason)).Inc()
	}
	m.AttemptsTotal.WithLabelValues(outcome).Inc()
	m.UploadDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

// RecordPass counts one finished pass.
func (m *Metrics) RecordPass(result string, duration time.Duration, finished time.Time) {
	if m == nil {
		return
	}
	m.PassesTotal.WithLabelValues(label(result)).Inc()
	m.PassDuration.Observe(duration.Seconds())
	m.LastPassTimestamp.Set(float64(finished.Unix()))
}

// RecordRefusal counts one refused trigger.
func (m *Metrics) RecordRefusal(reason string) {
	if m == nil {
		return
	}
	m.RefusalsTotal.WithLabelValues(label(reason)).Inc()
}

func label(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
