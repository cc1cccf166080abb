package incident

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/go-core/xerrors"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/linnemanlabs/beacon/internal/event"
)

// ErrInvalidEvent marks an event rejected before any storage write.
// The wrapped message names the missing field.
var ErrInvalidEvent = errors.New("invalid event")

// pagerTimeout bounds the detached side-channel call.
const pagerTimeout = 10 * time.Second

// IngestResult is the outcome of a successful ingest.
type IngestResult struct {
	EventID   string `json:"event_id"`
	Duplicate bool   `json:"duplicate"`
}

// Service is the business boundary for ingestion and the read-only
// query surface. It owns validation, dedup, per-key projection
// serialization and notification dispatch.
type Service struct {
	store     Store
	projector *Projector
	locks     *keyLock
	logger    log.Logger
	metrics   *Metrics
	sink      Sink
	pager     Pager
}

// NewService creates the ingest service. sink and pager may be nil.
func NewService(store Store, projector *Projector, logger log.Logger, metrics *Metrics, sink Sink, pager Pager) *Service {
	if store == nil {
		panic(xerrors.New("incident store is required"))
	}
	if projector == nil {
		panic(xerrors.New("incident projector is required"))
	}
	if logger == nil {
		logger = log.Nop()
	}
	if metrics == nil {
		metrics = NewMetrics(prometheus.NewRegistry())
	}
	return &Service{
		store:     store,
		projector: projector,
		locks:     newKeyLock(),
		logger:    logger,
		metrics:   metrics,
		sink:      sink,
		pager:     pager,
	}
}

// Ingest validates, stores and projects one event.
//
// Duplicate event IDs are an idempotent success: the result carries
// Duplicate=true and nothing else happens. Validation failures return
// an error matching ErrInvalidEvent; storage failures are wrapped and
// mean the event was not ingested.
func (s *Service) Ingest(ctx context.Context, ev *event.Event) (*IngestResult, error) {
	if err := ev.Validate(); err != nil {
		s.metrics.IngestsTotal.WithLabelValues("invalid").Inc()
		return nil, fmt.Errorf("%w: %s", ErrInvalidEvent, err)
	}

	// Idempotent on event ID, so this runs outside the key lock.
	inserted, err := s.store.InsertEvent(ctx, ev)
	if err != nil {
		s.metrics.IngestsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("insert event: %w", err)
	}
	if !inserted {
		s.metrics.IngestsTotal.WithLabelValues("duplicate").Inc()
		return &IngestResult{EventID: ev.ID, Duplicate: true}, nil
	}

	inc, err := s.project(ctx, ev)
	if err != nil {
		s.metrics.IngestsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("project incident: %w", err)
	}

	s.metrics.IngestsTotal.WithLabelValues("accepted").Inc()
	s.metrics.EventsPerIncident.Observe(float64(inc.EventCount))

	if s.sink != nil {
		s.sink.Publish(Message{Type: MsgEventReceived, Data: EventReceivedData{
			EventID:   ev.ID,
			DedupeKey: ev.DedupeKey,
		}})
		s.sink.Publish(Message{Type: MsgIncidentUpdated, Data: IncidentUpdatedData{
			DedupeKey: inc.Key.DedupeKey,
			Namespace: inc.Key.Namespace,
			Service:   inc.Key.Service,
			State:     ev.Alert.State,
		}})
	}

	// Best-effort side channel: detached, own timeout, failures logged
	// and counted but never surfaced to the ingest caller.
	if s.pager != nil {
		go s.page(context.WithoutCancel(ctx), inc, ev)
	}

	return &IngestResult{EventID: ev.ID}, nil
}

// project runs the read-modify-write under the per-key critical
// section so concurrent ingests for one key cannot lose updates.
func (s *Service) project(ctx context.Context, ev *event.Event) (*Incident, error) {
	key := KeyFor(ev)

	waitStart := time.Now()
	s.locks.lock(key)
	s.metrics.LockWaitDuration.Observe(time.Since(waitStart).Seconds())
	defer s.locks.unlock(key)

	projStart := time.Now()
	inc, err := s.projector.Project(ctx, ev)
	s.metrics.ProjectionDuration.Observe(time.Since(projStart).Seconds())
	return inc, err
}

func (s *Service) page(ctx context.Context, inc *Incident, ev *event.Event) {
	ctx, cancel := context.WithTimeout(ctx, pagerTimeout)
	defer cancel()

	if err := s.pager.Page(ctx, inc, ev); err != nil {
		s.metrics.PagerDispatches.WithLabelValues("error").Inc()
		s.logger.Error(ctx, err, "pager dispatch failed",
			"event_id", ev.ID,
			"dedupe_key", ev.DedupeKey,
		)
		return
	}
	s.metrics.PagerDispatches.WithLabelValues("ok").Inc()
}

// GetEvent retrieves a single event by ID.
func (s *Service) GetEvent(ctx context.Context, id string) (*event.Event, bool, error) {
	return s.store.GetEvent(ctx, id)
}

// ListIncidents lists incidents matching the filter.
func (s *Service) ListIncidents(ctx context.Context, f Filter) ([]*Incident, error) {
	return s.store.ListIncidents(ctx, f)
}

// IncidentDetail returns an incident together with its event history.
func (s *Service) IncidentDetail(ctx context.Context, key Key) (*Detail, bool, error) {
	inc, found, err := s.store.GetIncident(ctx, key)
	if err != nil || !found {
		return nil, false, err
	}
	events, err := s.store.ListEventsByKey(ctx, key)
	if err != nil {
		return nil, false, err
	}
	return &Detail{Incident: inc, Events: events}, true, nil
}

// Overview aggregates counts across all incidents.
func (s *Service) Overview(ctx context.Context) (*Overview, error) {
	incidents, err := s.store.ListIncidents(ctx, Filter{})
	if err != nil {
		return nil, err
	}

	ov := &Overview{
		Incidents:  len(incidents),
		ByStatus:   make(map[Status]int),
		BySeverity: make(map[event.Severity]int),
	}
	services := make(map[[2]string]struct{})
	for _, inc := range incidents {
		ov.ByStatus[inc.Status]++
		ov.BySeverity[inc.Severity]++
		if inc.Auto {
			ov.AutoActions++
		} else {
			ov.ManualActions++
		}
		ov.TotalEvents += inc.EventCount
		services[[2]string{inc.Key.Namespace, inc.Key.Service}] = struct{}{}
	}
	ov.ServicesAffected = len(services)
	return ov, nil
}

// ServiceRollups aggregates incidents per producing service, ordered
// by namespace then service name.
func (s *Service) ServiceRollups(ctx context.Context) ([]*ServiceRollup, error) {
	incidents, err := s.store.ListIncidents(ctx, Filter{})
	if err != nil {
		return nil, err
	}

	byService := make(map[[2]string]*ServiceRollup)
	for _, inc := range incidents {
		k := [2]string{inc.Key.Namespace, inc.Key.Service}
		r, ok := byService[k]
		if !ok {
			r = &ServiceRollup{Namespace: inc.Key.Namespace, Service: inc.Key.Service}
			byService[k] = r
		}
		if inc.Status == StatusOpen {
			r.Open++
		} else {
			r.Resolved++
		}
		if inc.Severity.Rank() > r.HighestSeverity.Rank() {
			r.HighestSeverity = inc.Severity
		}
		r.EventCount += inc.EventCount
		if inc.LastObservedAt.After(r.LastObservedAt) {
			r.LastObservedAt = inc.LastObservedAt
		}
	}

	rollups := make([]*ServiceRollup, 0, len(byService))
	for _, r := range byService {
		rollups = append(rollups, r)
	}
	sort.Slice(rollups, func(i, j int) bool {
		if rollups[i].Namespace != rollups[j].Namespace {
			return rollups[i].Namespace < rollups[j].Namespace
		}
		return rollups[i].Service < rollups[j].Service
	})
	return rollups, nil
}
