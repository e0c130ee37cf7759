package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// CanonicalEvent is a versioned appointment lifecycle event. EventType has
// the form "<stream>.<action>.v<N>".
type CanonicalEvent interface {
	EventType() string
}

// Subjected events name the appointment they describe, so consumers can
// route or de-duplicate without decoding the payload.
type Subjected interface {
	Subject() string
}

// Envelope is what lands in the outbox and on the queue.
type Envelope struct {
	EventID         uuid.UUID       `json:"event_id"`
	EventType       string          `json:"event_type"`
	Version         int             `json:"version"`
	OrgID           string          `json:"org_id"`
	Subject         string          `json:"subject,omitempty"`
	TimestampMicros int64           `json:"timestamp"`
	Payload         json.RawMessage `json:"payload"`
}

// EnvelopeOption adjusts a generated envelope.
type EnvelopeOption func(*Envelope)

func WithEventID(id uuid.UUID) EnvelopeOption {
	return func(e *Envelope) {
		if id != uuid.Nil {
			e.EventID = id
		}
	}
}

func WithTimestamp(ts time.Time) EnvelopeOption {
	return func(e *Envelope) {
		if !ts.IsZero() {
			e.TimestampMicros = ts.UTC().UnixMicro()
		}
	}
}

var (
	errMissingOrg = errors.New("events: org id is required")
	errNilEvent   = errors.New("events: canonical event required")
	nowFunc       = time.Now
)

// ParseEventType splits "appointments.created.v1" into its name and version.
func ParseEventType(eventType string) (string, int, error) {
	i := strings.LastIndex(eventType, ".v")
	if i <= 0 || !strings.Contains(eventType[:i], ".") {
		return "", 0, fmt.Errorf("events: event type %q is not <stream>.<action>.v<N>", eventType)
	}
	version, err := strconv.Atoi(eventType[i+2:])
	if err != nil || version < 1 {
		return "", 0, fmt.Errorf("events: event type %q has a bad version", eventType)
	}
	return eventType[:i], version, nil
}

// NewEnvelope wraps evt for orgID.
func NewEnvelope(orgID string, evt CanonicalEvent, opts ...EnvelopeOption) (Envelope, error) {
	orgID = strings.TrimSpace(orgID)
	if orgID == "" {
		return Envelope{}, errMissingOrg
	}
	if evt == nil {
		return Envelope{}, errNilEvent
	}
	eventType := strings.TrimSpace(evt.EventType())
	_, version, err := ParseEventType(eventType)
	if err != nil {
		return Envelope{}, err
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		return Envelope{}, fmt.Errorf("events: marshal %s: %w", eventType, err)
	}

	env := Envelope{
		EventID:         uuid.New(),
		EventType:       eventType,
		Version:         version,
		OrgID:           orgID,
		TimestampMicros: nowFunc().UTC().UnixMicro(),
		Payload:         payload,
	}
	if s, ok := evt.(Subjected); ok {
		env.Subject = s.Subject()
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&env)
		}
	}
	return env, nil
}

// DecodeEnvelope parses a stored envelope and checks it is addressable.
func DecodeEnvelope(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("events: decode envelope: %w", err)
	}
	if env.EventID == uuid.Nil || env.EventType == "" {
		return Envelope{}, errors.New("events: envelope missing id or type")
	}
	return env, nil
}
