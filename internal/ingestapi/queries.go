package ingestapi

import (
	"net/http"
	"strconv"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/go-chi/chi/v5"

	"github.com/linnemanlabs/beacon/internal/event"
	"github.com/linnemanlabs/beacon/internal/incident"
)

func (a *API) handleOverview(w http.ResponseWriter, r *http.Request) {
	ov, err := a.svc.Overview(r.Context())
	if err != nil {
		a.logger.Error(r.Context(), err, "failed to build overview")
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	a.writeJSON(w, http.StatusOK, ov)
}

func (a *API) handleListIncidents(w http.ResponseWriter, r *http.Request) {
	f, err := filterFromQuery(r)
	if err != nil {
		http.Error(w, `{"error":"invalid filter"}`, http.StatusBadRequest)
		return
	}

	incidents, err := a.svc.ListIncidents(r.Context(), f)
	if err != nil {
		a.logger.Error(r.Context(), err, "failed to list incidents")
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}

	a.writeJSON(w, http.StatusOK, map[string]any{
		"incidents": incidents,
		"count":     len(incidents),
	})
}

func (a *API) handleIncidentDetail(w http.ResponseWriter, r *http.Request) {
	key := incident.Key{
		Namespace: chi.URLParam(r, "namespace"),
		Service:   chi.URLParam(r, "service"),
		DedupeKey: chi.URLParam(r, "key"),
	}

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(attribute.String("beacon.incident.dedupe_key", key.DedupeKey))

	detail, ok, err := a.svc.IncidentDetail(r.Context(), key)
	if err != nil {
		a.logger.Error(r.Context(), err, "failed to get incident detail", "dedupe_key", key.DedupeKey)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	if !ok {
		http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
		return
	}

	a.writeJSON(w, http.StatusOK, detail)
}

func (a *API) handleServiceRollups(w http.ResponseWriter, r *http.Request) {
	rollups, err := a.svc.ServiceRollups(r.Context())
	if err != nil {
		a.logger.Error(r.Context(), err, "failed to build service rollups")
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	a.writeJSON(w, http.StatusOK, map[string]any{
		"services": rollups,
		"count":    len(rollups),
	})
}

func filterFromQuery(r *http.Request) (incident.Filter, error) {
	q := r.URL.Query()
	f := incident.Filter{
		Status:    q.Get("status"),
		Severity:  event.Severity(q.Get("severity")),
		Namespace: q.Get("namespace"),
		Service:   q.Get("service"),
		Priority:  q.Get("priority"),
	}
	if raw := q.Get("auto"); raw != "" {
		auto, err := strconv.ParseBool(raw)
		if err != nil {
			return incident.Filter{}, err
		}
		f.Auto = &auto
	}
	return f, nil
}
