package scheduler

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics метрики планировщика.
//
// Все методы безопасны для nil получателя, поэтому планировщик без
// метрик просто не передает WithMetrics.
type Metrics struct {
	transitions        *prometheus.CounterVec
	allocations        *prometheus.CounterVec
	allocationDuration prometheus.Histogram
	invitations        *prometheus.CounterVec
	staleUpdates       prometheus.Counter
}

// NewMetrics регистрирует метрики в reg. При reg == nil метрики создаются
// без регистрации.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	const namespace, subsystem = "conference", "scheduler"

	return &Metrics{
		transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "state_transitions_total",
			Help:      "Scheduler state transitions",
		}, []string{"from", "to"}),
		allocations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "allocations_total",
			Help:      "Conference server requests by kind and result",
		}, []string{"kind", "result"}),
		allocationDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "allocation_duration_seconds",
			Help:      "Conference server request latency",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		invitations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "invitations_total",
			Help:      "Invitations sent by ICS method and result",
		}, []string{"method", "result"}),
		staleUpdates: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "stale_updates_total",
			Help:      "Inbound conference updates dropped as stale",
		}),
	}
}

func (m *Metrics) recordTransition(from, to State) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(string(from), string(to)).Inc()
}

func (m *Metrics) recordAllocation(kind string, err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.allocations.WithLabelValues(kind, resultLabel(err)).Inc()
	m.allocationDuration.Observe(elapsed.Seconds())
}

func (m *Metrics) recordInvitation(cancel bool, err error) {
	if m == nil {
		return
	}
	method := "REQUEST"
	if cancel {
		method = "CANCEL"
	}
	m.invitations.WithLabelValues(method, resultLabel(err)).Inc()
}

func (m *Metrics) recordStale() {
	if m == nil {
		return
	}
	m.staleUpdates.Inc()
}

func resultLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
