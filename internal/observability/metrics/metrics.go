package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/wolfman30/booking-engine/internal/observability"
)

// BookingMetrics exposes counters/histograms for booking flows and implements
// observability.Sink.
type BookingMetrics struct {
	operationsTotal   *prometheus.CounterVec
	operationLatency  *prometheus.HistogramVec
	reservationsSwept *prometheus.CounterVec
}

var _ observability.Sink = (*BookingMetrics)(nil)

func NewBookingMetrics(reg prometheus.Registerer) *BookingMetrics {
	m := &BookingMetrics{
		operationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "booking",
			Subsystem: "core",
			Name:      "operations_total",
			Help:      "Total booking core operations by outcome",
		}, []string{"operation", "outcome", "code"}),
		operationLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "booking",
			Subsystem: "core",
			Name:      "operation_latency_seconds",
			Help:      "Latency of booking core operations",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		reservationsSwept: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "booking",
			Subsystem: "reservations",
			Name:      "swept_total",
			Help:      "Orphaned reservations resolved by the sweeper",
		}, []string{"action"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.operationsTotal, m.operationLatency, m.reservationsSwept)
	return m
}

// Record implements observability.Sink.
func (m *BookingMetrics) Record(e observability.Event) {
	if m == nil {
		return
	}
	outcome := e.Outcome
	if outcome == "" {
		outcome = observability.OutcomeSuccess
	}
	m.operationsTotal.WithLabelValues(e.Name, outcome, e.Code).Inc()
	if e.Duration > 0 {
		m.operationLatency.WithLabelValues(e.Name).Observe(e.Duration.Seconds())
	}
}

// ObserveSweep counts reservations the sweeper committed or released.
func (m *BookingMetrics) ObserveSweep(action string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.reservationsSwept.WithLabelValues(action).Add(float64(n))
}
