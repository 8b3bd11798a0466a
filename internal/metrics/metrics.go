// internal/metrics/metrics.go
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics are the gateway and registry counters exported on /metrics.
type Metrics struct {
	OnlinePlayers    prometheus.Gauge
	ActiveRooms      prometheus.Gauge
	MessagesReceived *prometheus.CounterVec
	Rejections       *prometheus.CounterVec
	InternalErrors   prometheus.Counter
	RoomsSwept       prometheus.Counter
	SweepFailures    prometheus.Counter
	EventsDropped    prometheus.Counter
	MessageLatency   prometheus.Histogram
}

// NewMetrics builds the collectors and registers them with reg.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		OnlinePlayers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "online_players",
			Help:      "Number of connected players",
		}),
		ActiveRooms: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_rooms",
			Help:      "Number of live rooms",
		}),
		MessagesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_received_total",
			Help:      "Inbound gateway messages by type",
		}, []string{"type"}),
		Rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rejections_total",
			Help:      "Rejected actions by reason",
		}, []string{"reason"}),
		InternalErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "internal_errors_total",
			Help:      "Transitions rolled back after an invariant violation",
		}),
		RoomsSwept: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rooms_swept_total",
			Help:      "Rooms removed for inactivity",
		}),
		SweepFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sweep_failures_total",
			Help:      "Failed inactivity sweeps",
		}),
		EventsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_dropped_total",
			Help:      "Room events dropped because the publish queue was full",
		}),
		MessageLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "message_latency_seconds",
			Help:      "Gateway message processing latency",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 12),
		}),
	}

	reg.MustRegister(
		m.OnlinePlayers,
		m.ActiveRooms,
		m.MessagesReceived,
		m.Rejections,
		m.InternalErrors,
		m.RoomsSwept,
		m.SweepFailures,
		m.EventsDropped,
		m.MessageLatency,
	)
	return m
}

// ObserveSweep records one background sweep. Its signature matches the
// room store's OnSweep hook.
func (m *Metrics) ObserveSweep(removed int, err error) {
	if err != nil {
		m.SweepFailures.Inc()
		return
	}
	m.RoomsSwept.Add(float64(removed))
	m.ActiveRooms.Sub(float64(removed))
}

func (m *Metrics) ObserveMessage(msgType string, start time.Time) {
	m.MessagesReceived.WithLabelValues(msgType).Inc()
	m.MessageLatency.Observe(time.Since(start).Seconds())
}

func (m *Metrics) SetActiveRooms(n int) {
	m.ActiveRooms.Set(float64(n))
}
