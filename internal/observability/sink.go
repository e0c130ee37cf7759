// Package observability defines the event sink the booking core reports to.
// Implementations live outside the core so it never depends on a metrics
// backend directly.
package observability

import "time"

// Outcome labels how an operation finished.
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
)

// Event is one observed operation.
type Event struct {
	Name     string
	OrgID    string
	Outcome  string
	Code     string
	Duration time.Duration
}

// Sink receives events. Record must not block.
type Sink interface {
	Record(Event)
}

// NopSink discards every event.
type NopSink struct{}

func (NopSink) Record(Event) {}

// OrNop returns s, or a NopSink when s is nil.
func OrNop(s Sink) Sink {
	if s == nil {
		return NopSink{}
	}
	return s
}
