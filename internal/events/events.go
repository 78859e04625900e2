// Package events carries anomaly lifecycle notifications to live consumers
// (websocket clients, other replicas, chat channels).
package events

import (
	"context"
	"time"

	"github.com/leaftrace/anomalyd/internal/database"
)

// Type identifies what happened to an anomaly
type Type string

const (
	TypeAnomalyDetected Type = "anomaly.detected"
	TypeStatusChanged   Type = "anomaly.status_changed"
	TypeAnomalyEnriched Type = "anomaly.enriched"
)

// Event is a single anomaly lifecycle notification
type Event struct {
	Type                 Type                   `json:"type"`
	AnomalyID            string                 `json:"anomaly_id"`
	AnomalyType          database.AnomalyType   `json:"anomaly_type"`
	Severity             database.Severity      `json:"severity"`
	Title                string                 `json:"title"`
	Status               database.AnomalyStatus `json:"status"`
	PreviousStatus       database.AnomalyStatus `json:"previous_status,omitempty"`
	AffectedResourceType string                 `json:"affected_resource_type,omitempty"`
	AffectedResourceID   string                 `json:"affected_resource_id,omitempty"`
	PerformedBy          string                 `json:"performed_by,omitempty"`
	Notes                string                 `json:"notes,omitempty"`
	OccurredAt           time.Time              `json:"occurred_at"`
	Origin               string                 `json:"origin,omitempty"` // replica that produced the event
}

// FromAnomaly builds an event describing the anomaly's current state
func FromAnomaly(t Type, a *database.Anomaly) Event {
	return Event{
		Type:                 t,
		AnomalyID:            a.ID,
		AnomalyType:          a.AnomalyType,
		Severity:             a.Severity,
		Title:                a.Title,
		Status:               a.Status,
		AffectedResourceType: a.AffectedResourceType,
		AffectedResourceID:   a.AffectedResourceID,
		OccurredAt:           time.Now().UTC(),
	}
}

// Publisher delivers events. Implementations log their own failures;
// publishing never fails the operation that produced the event.
type Publisher interface {
	Publish(ctx context.Context, evt Event)
}

// Multi fans an event out to every publisher in order
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, evt Event) {
	for _, p := range m {
		if p != nil {
			p.Publish(ctx, evt)
		}
	}
}

// Nop discards events
type Nop struct{}

func (Nop) Publish(context.Context, Event) {}

// PublisherFunc adapts a function to Publisher
type PublisherFunc func(ctx context.Context, evt Event)

func (f PublisherFunc) Publish(ctx context.Context, evt Event) {
	f(ctx, evt)
}
