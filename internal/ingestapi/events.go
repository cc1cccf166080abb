package ingestapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/go-chi/chi/v5"

	"github.com/linnemanlabs/beacon/internal/event"
	"github.com/linnemanlabs/beacon/internal/incident"
)

func (a *API) handleIngestEvent(w http.ResponseWriter, r *http.Request) {
	var ev event.Event
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		http.Error(w, `{"error":"invalid payload"}`, http.StatusBadRequest)
		return
	}

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(
		attribute.String("beacon.event.id", ev.ID),
		attribute.String("beacon.event.dedupe_key", ev.DedupeKey),
	)

	res, err := a.svc.Ingest(r.Context(), &ev)
	if err != nil {
		if errors.Is(err, incident.ErrInvalidEvent) {
			http.Error(w, fmt.Sprintf(`{"error":%q}`, err.Error()), http.StatusBadRequest)
			return
		}
		a.logger.Error(r.Context(), err, "ingest failed", "event_id", ev.ID, "dedupe_key", ev.DedupeKey)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}

	span.SetAttributes(attribute.Bool("beacon.event.duplicate", res.Duplicate))
	a.writeJSON(w, http.StatusAccepted, res)
}

func (a *API) handleGetEvent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(attribute.String("beacon.event.id", id))

	ev, ok, err := a.svc.GetEvent(r.Context(), id)
	if err != nil {
		a.logger.Error(r.Context(), err, "failed to get event", "event_id", id)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	if !ok {
		http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
		return
	}

	a.writeJSON(w, http.StatusOK, ev)
}
