package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"keydrop/core/events"
)

type airdropMetrics struct {
	eventsTotal *prometheus.CounterVec
}

var (
	airdropMetricsOnce sync.Once
	airdropRegistry    *airdropMetrics
)

// AirdropMetrics returns the lazily-initialised registry counting airdrop
// state transitions by event type.
func AirdropMetrics() *airdropMetrics {
	airdropMetricsOnce.Do(func() {
		airdropRegistry = &airdropMetrics{
			eventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "keydrop",
				Subsystem: "airdrop",
				Name:      "events_total",
				Help:      "State transitions emitted by the airdrop engine, by event type.",
			}, []string{"type"}),
		}
		prometheus.MustRegister(airdropRegistry.eventsTotal)
	})
	return airdropRegistry
}

// Observe counts one emitted event.
func (m *airdropMetrics) Observe(eventType string) {
	if m == nil || eventType == "" {
		return
	}
	m.eventsTotal.WithLabelValues(eventType).Inc()
}

// MetricsEmitter adapts the event stream to prometheus counters. It can be
// chained in front of another emitter.
type MetricsEmitter struct {
	Next events.Emitter
}

// Emit implements events.Emitter.
func (m MetricsEmitter) Emit(evt events.Event) {
	if evt != nil {
		AirdropMetrics().Observe(evt.EventType())
	}
	if m.Next != nil {
		m.Next.Emit(evt)
	}
}
