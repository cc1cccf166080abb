// Package memstore provides an in-memory implementation of incident.Store.
package memstore

import (
	"context"
	"sort"
	"sync"

	"github.com/linnemanlabs/beacon/internal/event"
	"github.com/linnemanlabs/beacon/internal/incident"
)

// Store holds events and incidents in memory. Suitable for dev/testing.
type Store struct {
	mu        sync.RWMutex
	events    map[string]*event.Event       // event ID -> event
	byKey     map[incident.Key][]string     // incident key -> event IDs in insert order
	incidents map[incident.Key]*incident.Incident
}

// New initializes a new in-memory Store.
func New() *Store {
	return &Store{
		events:    make(map[string]*event.Event),
		byKey:     make(map[incident.Key][]string),
		incidents: make(map[incident.Key]*incident.Incident),
	}
}

// InsertEvent stores a copy of the event. Idempotent on event ID:
// an already-present ID is a no-op reporting inserted=false.
func (s *Store) InsertEvent(_ context.Context, ev *event.Event) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.events[ev.ID]; exists {
		return false, nil
	}
	cp := *ev
	s.events[ev.ID] = &cp
	key := incident.KeyFor(ev)
	s.byKey[key] = append(s.byKey[key], ev.ID)
	return true, nil
}

// GetEvent retrieves an event by ID. Returns a copy.
func (s *Store) GetEvent(_ context.Context, id string) (*event.Event, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ev, ok := s.events[id]
	if !ok {
		return nil, false, nil
	}
	cp := *ev
	return &cp, true, nil
}

// ListEventsByKey returns copies of all events for a key in insert order.
func (s *Store) ListEventsByKey(_ context.Context, key incident.Key) ([]*event.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.byKey[key]
	events := make([]*event.Event, 0, len(ids))
	for _, id := range ids {
		cp := *s.events[id]
		events = append(events, &cp)
	}
	return events, nil
}

// GetIncident retrieves the incident for a key. Returns a copy.
func (s *Store) GetIncident(_ context.Context, key incident.Key) (*incident.Incident, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	inc, ok := s.incidents[key]
	if !ok {
		return nil, false, nil
	}
	cp := *inc
	return &cp, true, nil
}

// UpsertIncident stores a copy of the incident, overwriting any
// previous state for its key.
func (s *Store) UpsertIncident(_ context.Context, inc *incident.Incident) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *inc
	s.incidents[inc.Key] = &cp
	return nil
}

// ListIncidents returns copies of incidents matching the filter,
// most recently observed first.
func (s *Store) ListIncidents(_ context.Context, f incident.Filter) ([]*incident.Incident, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*incident.Incident
	for _, inc := range s.incidents {
		if !f.Matches(inc) {
			continue
		}
		cp := *inc
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].LastObservedAt.After(out[j].LastObservedAt)
	})
	return out, nil
}
