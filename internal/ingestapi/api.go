// Package ingestapi exposes the HTTP surface of the ingestion engine:
// the event intake endpoint and the read-only query endpoints.
package ingestapi

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/go-core/xerrors"

	"github.com/linnemanlabs/beacon/internal/event"
	"github.com/linnemanlabs/beacon/internal/incident"
)

// IncidentService defines the business operations ingestapi needs.
type IncidentService interface {
	Ingest(ctx context.Context, ev *event.Event) (*incident.IngestResult, error)
	GetEvent(ctx context.Context, id string) (*event.Event, bool, error)
	ListIncidents(ctx context.Context, f incident.Filter) ([]*incident.Incident, error)
	IncidentDetail(ctx context.Context, key incident.Key) (*incident.Detail, bool, error)
	Overview(ctx context.Context) (*incident.Overview, error)
	ServiceRollups(ctx context.Context) ([]*incident.ServiceRollup, error)
}

// API holds dependencies for HTTP handlers.
type API struct {
	logger log.Logger
	svc    IncidentService
}

// New creates a new API handler.
func New(logger log.Logger, svc IncidentService) *API {
	if logger == nil {
		logger = log.Nop()
	}
	if svc == nil {
		panic(xerrors.New("incident service is required"))
	}
	return &API{
		logger: logger,
		svc:    svc,
	}
}

// RegisterRoutes attaches API endpoints to the router.
func (a *API) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/events", a.handleIngestEvent)
		r.Get("/events/{id}", a.handleGetEvent)
		r.Get("/overview", a.handleOverview)
		r.Get("/incidents", a.handleListIncidents)
		r.Get("/incidents/{namespace}/{service}/{key}", a.handleIncidentDetail)
		r.Get("/services", a.handleServiceRollups)
	})
}

func (a *API) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
