package incident

import (
	"context"

	"github.com/linnemanlabs/beacon/internal/event"
)

// MessageType tags a notification message.
type MessageType string

const (
	MsgEventReceived   MessageType = "event_received"
	MsgIncidentUpdated MessageType = "incident_updated"
	MsgStats           MessageType = "stats"
	MsgConnection      MessageType = "connection"
)

// Message is the envelope pushed to the notification sink.
type Message struct {
	Type MessageType `json:"type"`
	Data any         `json:"data"`
}

// EventReceivedData is the payload of an event_received message.
type EventReceivedData struct {
	EventID   string `json:"event_id"`
	DedupeKey string `json:"dedupe_key"`
}

// IncidentUpdatedData is the payload of an incident_updated message.
type IncidentUpdatedData struct {
	DedupeKey string      `json:"dedupe_key"`
	Namespace string      `json:"namespace"`
	Service   string      `json:"service"`
	State     event.State `json:"state"`
}

// Sink receives update messages for downstream delivery. Publish is
// fire-and-forget: implementations must not block the caller.
type Sink interface {
	Publish(msg Message)
}

// Pager is the optional side channel for paging/SMS delivery.
type Pager interface {
	Page(ctx context.Context, inc *Incident, ev *event.Event) error
}
