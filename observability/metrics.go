package observability

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type moduleMetrics struct {
	requests  *prometheus.CounterVec
	errors    *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	throttles *prometheus.CounterVec
}

var (
	moduleMetricsOnce sync.Once
	moduleRegistry    *moduleMetrics

	auditMetricsOnce sync.Once
	auditRegistry    *AuditMetrics

	archiveMetricsOnce sync.Once
	archiveRegistry    *ArchiveMetrics
)

// ModuleMetrics returns the lazily-initialised module metrics registry used to
// record RPC module activity.
func ModuleMetrics() *moduleMetrics {
	moduleMetricsOnce.Do(func() {
		moduleRegistry = &moduleMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "land",
				Subsystem: "module",
				Name:      "requests_total",
				Help:      "Total JSON-RPC module requests segmented by module and method.",
			}, []string{"module", "method", "outcome"}),
			errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "land",
				Subsystem: "module",
				Name:      "errors_total",
				Help:      "Total JSON-RPC module errors segmented by module, method, and status code.",
			}, []string{"module", "method", "status"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "land",
				Subsystem: "module",
				Name:      "request_duration_seconds",
				Help:      "Latency distribution for JSON-RPC module handlers.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"module", "method"}),
			throttles: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "land",
				Subsystem: "module",
				Name:      "throttles_total",
				Help:      "Count of module requests rejected due to throttling policies.",
			}, []string{"module", "reason"}),
		}
		prometheus.MustRegister(
			moduleRegistry.requests,
			moduleRegistry.errors,
			moduleRegistry.latency,
			moduleRegistry.throttles,
		)
	})
	return moduleRegistry
}

// Observe records the outcome of a module request. The status code should be
// the HTTP status that was ultimately written to the response writer.
func (m *moduleMetrics) Observe(module, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	if module == "" {
		module = "unknown"
	}
	if method == "" {
		method = "unknown"
	}
	outcome := "success"
	if status >= 400 {
		outcome = "error"
	}
	m.requests.WithLabelValues(module, method, outcome).Inc()
	if status >= 400 {
		m.errors.WithLabelValues(module, method, fmt.Sprintf("%d", status)).Inc()
	}
	m.latency.WithLabelValues(module, method).Observe(duration.Seconds())
}

// RecordThrottle increments the throttle counter for the supplied module and
// reason. Reasons should be stable strings such as "rate_limit" or
// "quota_exceeded" so dashboards and alerts remain consistent.
func (m *moduleMetrics) RecordThrottle(module, reason string) {
	if m == nil {
		return
	}
	if module == "" {
		module = "unknown"
	}
	if reason == "" {
		reason = "unspecified"
	}
	m.throttles.WithLabelValues(module, reason).Inc()
}

// AuditMetrics tracks conservation audit runs and the anomalies they surface.
type AuditMetrics struct {
	runs        *prometheus.CounterVec
	anomalies   *prometheus.GaugeVec
	lastRunUnix prometheus.Gauge
	duration    prometheus.Histogram
}

// Audit returns the singleton metrics registry for the conservation auditor.
func Audit() *AuditMetrics {
	auditMetricsOnce.Do(func() {
		auditRegistry = &AuditMetrics{
			runs: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "land",
				Subsystem: "audit",
				Name:      "runs_total",
				Help:      "Count of conservation audit runs segmented by outcome.",
			}, []string{"outcome"}),
			anomalies: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: "land",
				Subsystem: "audit",
				Name:      "anomalies",
				Help:      "Anomalies found by the most recent audit run, segmented by kind.",
			}, []string{"kind"}),
			lastRunUnix: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "land",
				Subsystem: "audit",
				Name:      "last_run_timestamp_seconds",
				Help:      "Unix timestamp of the most recent completed audit run.",
			}),
			duration: prometheus.NewHistogram(prometheus.HistogramOpts{
				Namespace: "land",
				Subsystem: "audit",
				Name:      "run_duration_seconds",
				Help:      "Latency distribution for audit runs.",
				Buckets:   prometheus.DefBuckets,
			}),
		}
		prometheus.MustRegister(
			auditRegistry.runs,
			auditRegistry.anomalies,
			auditRegistry.lastRunUnix,
			auditRegistry.duration,
		)
	})
	return auditRegistry
}

// ObserveRun records a completed audit run and refreshes the per-kind anomaly
// gauges. Kinds absent from the supplied map are reset to zero only when they
// were reported before, so stale anomalies do not linger across runs.
func (m *AuditMetrics) ObserveRun(anomaliesByKind map[string]int, duration time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := "clean"
	switch {
	case err != nil:
		outcome = "error"
	case len(anomaliesByKind) > 0:
		outcome = "anomalous"
	}
	m.runs.WithLabelValues(outcome).Inc()
	m.anomalies.Reset()
	for kind, count := range anomaliesByKind {
		m.anomalies.WithLabelValues(labelKind(kind)).Set(float64(count))
	}
	m.lastRunUnix.SetToCurrentTime()
	m.duration.Observe(duration.Seconds())
}

// ArchiveMetrics tracks the durable event archive trailing the journal.
type ArchiveMetrics struct {
	stored *prometheus.CounterVec
	lag    prometheus.Gauge
	errors prometheus.Counter
}

// Archive returns the singleton metrics registry for the event archive.
func Archive() *ArchiveMetrics {
	archiveMetricsOnce.Do(func() {
		archiveRegistry = &ArchiveMetrics{
			stored: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "land",
				Subsystem: "archive",
				Name:      "events_stored_total",
				Help:      "Count of journal events persisted to the archive, segmented by type.",
			}, []string{"type"}),
			lag: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "land",
				Subsystem: "archive",
				Name:      "lag_events",
				Help:      "Events emitted by the journal but not yet persisted to the archive.",
			}),
			errors: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "land",
				Subsystem: "archive",
				Name:      "errors_total",
				Help:      "Count of archive persistence failures.",
			}),
		}
		prometheus.MustRegister(archiveRegistry.stored, archiveRegistry.lag, archiveRegistry.errors)
	})
	return archiveRegistry
}

// RecordStored increments the stored counter for the supplied event type.
func (m *ArchiveMetrics) RecordStored(eventType string) {
	if m == nil {
		return
	}
	m.stored.WithLabelValues(labelKind(eventType)).Inc()
}

// SetLag updates the journal-to-archive lag gauge.
func (m *ArchiveMetrics) SetLag(pending uint64) {
	if m == nil {
		return
	}
	m.lag.Set(float64(pending))
}

// RecordError counts a failed archive write.
func (m *ArchiveMetrics) RecordError() {
	if m == nil {
		return
	}
	m.errors.Inc()
}

func labelKind(kind string) string {
	trimmed := strings.TrimSpace(kind)
	if trimmed == "" {
		return "unknown"
	}
	return trimmed
}
