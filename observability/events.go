package observability

import (
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type eventMetrics struct {
	emitted     *prometheus.CounterVec
	subscribers prometheus.Gauge
}

var (
	eventMetricsOnce sync.Once
	eventRegistry    *eventMetrics
)

// Events returns the metrics registry tracking the ledger event journal.
func Events() *eventMetrics {
	eventMetricsOnce.Do(func() {
		eventRegistry = &eventMetrics{
			emitted: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "land",
				Subsystem: "events",
				Name:      "emitted_total",
				Help:      "Count of journal events segmented by event type.",
			}, []string{"type"}),
			subscribers: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "land",
				Subsystem: "events",
				Name:      "subscribers",
				Help:      "Number of live journal subscribers.",
			}),
		}
		prometheus.MustRegister(eventRegistry.emitted, eventRegistry.subscribers)
	})
	return eventRegistry
}

// RecordEmitted increments the emitted counter for the supplied event type.
func (m *eventMetrics) RecordEmitted(eventType string) {
	if m == nil {
		return
	}
	normalized := strings.TrimSpace(eventType)
	if normalized == "" {
		normalized = "unknown"
	}
	m.emitted.WithLabelValues(normalized).Inc()
}

// SubscriberDelta adjusts the live subscriber gauge.
func (m *eventMetrics) SubscriberDelta(delta int) {
	if m == nil {
		return
	}
	m.subscribers.Add(float64(delta))
}
