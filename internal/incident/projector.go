package incident

import (
	"context"
	"fmt"

	"github.com/linnemanlabs/beacon/internal/event"
)

// Projector folds a newly stored event into the incident it correlates
// to. It performs a read-modify-write over shared incident state: the
// caller must hold the per-key lock for the duration of Project.
type Projector struct {
	store Store
}

// NewProjector creates a projector backed by the given store.
func NewProjector(store Store) *Projector {
	return &Projector{store: store}
}

// Project updates (or creates) the incident for the event's key and
// upserts the result. The event must already be inserted in the store
// so that quality flags see the full event set including it.
func (p *Projector) Project(ctx context.Context, ev *event.Event) (*Incident, error) {
	key := KeyFor(ev)

	inc, found, err := p.store.GetIncident(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("get incident: %w", err)
	}
	if !found {
		inc = &Incident{
			Key:             key,
			FirstObservedAt: ev.ObservedAt,
		}
	}

	events, err := p.store.ListEventsByKey(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("list events for key: %w", err)
	}

	inc.Status = statusFor(ev.Alert.State)
	inc.Severity = ev.Alert.Severity
	inc.Priority = ev.Decision.Priority
	inc.Action = ev.Decision.Action
	inc.Auto = ev.Decision.Auto
	inc.RiskScore = ev.Decision.RiskScore
	inc.ReasonCodes = append([]string(nil), ev.Decision.ReasonCodes...)
	inc.LastObservedAt = ev.ObservedAt
	inc.LatestEventID = ev.ID
	inc.EventCount++
	inc.Flags = ComputeFlags(events)

	if err := p.store.UpsertIncident(ctx, inc); err != nil {
		return nil, fmt.Errorf("upsert incident: %w", err)
	}
	return inc, nil
}

func statusFor(s event.State) Status {
	if s == event.StateResolved {
		return StatusResolved
	}
	return StatusOpen
}
