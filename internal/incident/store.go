package incident

import (
	"context"

	"github.com/linnemanlabs/beacon/internal/event"
)

// Store is the persistence contract for events and incidents.
//
// InsertEvent must be idempotent on the event ID: inserting an ID that
// already exists is a no-op that reports inserted=false. UpsertIncident
// is a full overwrite keyed by the incident key.
type Store interface {
	InsertEvent(ctx context.Context, ev *event.Event) (inserted bool, err error)
	GetEvent(ctx context.Context, id string) (*event.Event, bool, error)
	ListEventsByKey(ctx context.Context, key Key) ([]*event.Event, error)
	GetIncident(ctx context.Context, key Key) (*Incident, bool, error)
	UpsertIncident(ctx context.Context, inc *Incident) error
	ListIncidents(ctx context.Context, f Filter) ([]*Incident, error)
}
