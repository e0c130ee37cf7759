package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/wolfman30/booking-engine/internal/observability"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		t.Fatalf("write metric: %v", err)
	}
	return m.GetCounter().GetValue()
}

func TestBookingMetricsRecord(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewBookingMetrics(reg)

	m.Record(observability.Event{Name: "appointment.create", OrgID: "org-1", Duration: 20 * time.Millisecond})
	m.Record(observability.Event{Name: "appointment.create", Outcome: observability.OutcomeError, Code: "NO_AVAILABILITY"})
	m.Record(observability.Event{Name: "appointment.create", Outcome: observability.OutcomeError, Code: "NO_AVAILABILITY"})

	if got := counterValue(t, m.operationsTotal.WithLabelValues("appointment.create", "success", "")); got != 1 {
		t.Fatalf("expected 1 success, got %v", got)
	}
	if got := counterValue(t, m.operationsTotal.WithLabelValues("appointment.create", "error", "NO_AVAILABILITY")); got != 2 {
		t.Fatalf("expected 2 errors, got %v", got)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	found := false
	for _, f := range families {
		if f.GetName() == "booking_core_operation_latency_seconds" {
			found = true
		}
	}
	if !found {
		t.Fatal("expected latency histogram to be registered and observed")
	}
}

func TestBookingMetricsSweep(t *testing.T) {
	m := NewBookingMetrics(prometheus.NewRegistry())
	m.ObserveSweep("released", 3)
	m.ObserveSweep("committed", 0)
	if got := counterValue(t, m.reservationsSwept.WithLabelValues("released")); got != 3 {
		t.Fatalf("expected 3 released, got %v", got)
	}
}

func TestBookingMetricsNilSafe(t *testing.T) {
	var m *BookingMetrics
	m.Record(observability.Event{Name: "x"})
	m.ObserveSweep("released", 1)

	var sink observability.Sink = observability.OrNop(nil)
	sink.Record(observability.Event{Name: "x"})
}
