// Package pgstore provides a PostgreSQL implementation of incident.Store.
package pgstore

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/linnemanlabs/beacon/internal/event"
	"github.com/linnemanlabs/beacon/internal/incident"
)

var tracer = otel.Tracer("github.com/linnemanlabs/beacon/internal/incident/pgstore")

//go:embed schema.sql
var schema string

// Store persists events and incidents in PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// New applies the schema and returns a ready Store. The pool is owned
// by the caller.
func New(ctx context.Context, pool *pgxpool.Pool) (*Store, error) {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{pool: pool}, nil
}

// InsertEvent inserts the event, reporting inserted=false when the
// event ID already exists.
func (s *Store) InsertEvent(ctx context.Context, ev *event.Event) (bool, error) {
	ctx, span := tracer.Start(ctx, "pgstore.InsertEvent", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "INSERT"),
	))
	defer span.End()

	reasonCodes, evidence, evContext, links, meta, err := marshalEventJSON(ev)
	if err != nil {
		return false, recordErr(span, err)
	}

	query := `INSERT INTO events (
		id, dedupe_key, namespace, service, observed_at, sent_at,
		alert_type, alert_state, severity, action, auto, priority,
		risk_score, reason_codes, evidence, context, links, meta, impact
	) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)
	ON CONFLICT (id) DO NOTHING`

	tag, err := s.pool.Exec(ctx, query,
		ev.ID, ev.DedupeKey, ev.Service.Namespace, ev.Service.Name,
		ev.ObservedAt, nullTime(ev.SentAt),
		ev.Alert.Type, string(ev.Alert.State), string(ev.Alert.Severity),
		ev.Decision.Action, ev.Decision.Auto, ev.Decision.Priority,
		ev.Decision.RiskScore, reasonCodes, evidence, evContext, links, meta, ev.Impact,
	)
	if err != nil {
		return false, recordErr(span, fmt.Errorf("insert event: %w", err))
	}
	return tag.RowsAffected() == 1, nil
}

const eventColumns = `id, dedupe_key, namespace, service, observed_at, sent_at,
	alert_type, alert_state, severity, action, auto, priority,
	risk_score, reason_codes, evidence, context, links, meta, impact`

// GetEvent retrieves an event by ID.
func (s *Store) GetEvent(ctx context.Context, id string) (*event.Event, bool, error) {
	ctx, span := tracer.Start(ctx, "pgstore.GetEvent", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "SELECT"),
	))
	defer span.End()

	query := `SELECT ` + eventColumns + ` FROM events WHERE id = $1`
	ev, err := scanEventRow(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, false, recordErr(span, err)
	}
	if ev == nil {
		return nil, false, nil
	}
	return ev, true, nil
}

// ListEventsByKey returns all events for an incident key in
// observation order.
func (s *Store) ListEventsByKey(ctx context.Context, key incident.Key) ([]*event.Event, error) {
	ctx, span := tracer.Start(ctx, "pgstore.ListEventsByKey", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "SELECT"),
	))
	defer span.End()

	query := `SELECT ` + eventColumns + ` FROM events
		WHERE dedupe_key = $1 AND namespace = $2 AND service = $3
		ORDER BY observed_at, id`
	rows, err := s.pool.Query(ctx, query, key.DedupeKey, key.Namespace, key.Service)
	if err != nil {
		return nil, recordErr(span, fmt.Errorf("list events: %w", err))
	}
	defer rows.Close()

	var events []*event.Event
	for rows.Next() {
		ev, err := scanEventRow(rows)
		if err != nil {
			return nil, recordErr(span, err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, recordErr(span, fmt.Errorf("list events rows: %w", err))
	}
	return events, nil
}

const incidentColumns = `dedupe_key, namespace, service, status, severity, priority,
	action, auto, risk_score, reason_codes, first_observed_at, last_observed_at,
	latest_event_id, event_count, quality_flags`

// GetIncident retrieves the incident for a key.
func (s *Store) GetIncident(ctx context.Context, key incident.Key) (*incident.Incident, bool, error) {
	ctx, span := tracer.Start(ctx, "pgstore.GetIncident", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "SELECT"),
	))
	defer span.End()

	query := `SELECT ` + incidentColumns + ` FROM incidents
		WHERE dedupe_key = $1 AND namespace = $2 AND service = $3`
	inc, err := scanIncidentRow(s.pool.QueryRow(ctx, query, key.DedupeKey, key.Namespace, key.Service))
	if err != nil {
		return nil, false, recordErr(span, err)
	}
	if inc == nil {
		return nil, false, nil
	}
	return inc, true, nil
}

// UpsertIncident overwrites the incident row for its key.
func (s *Store) UpsertIncident(ctx context.Context, inc *incident.Incident) error {
	ctx, span := tracer.Start(ctx, "pgstore.UpsertIncident", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "UPSERT"),
	))
	defer span.End()

	reasonCodes, err := json.Marshal(inc.ReasonCodes)
	if err != nil {
		return recordErr(span, fmt.Errorf("marshal reason codes: %w", err))
	}
	flags, err := json.Marshal(inc.Flags)
	if err != nil {
		return recordErr(span, fmt.Errorf("marshal quality flags: %w", err))
	}

	query := `INSERT INTO incidents (
		dedupe_key, namespace, service, status, severity, priority,
		action, auto, risk_score, reason_codes, first_observed_at,
		last_observed_at, latest_event_id, event_count, quality_flags
	) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
	ON CONFLICT (dedupe_key, namespace, service) DO UPDATE SET
		status            = EXCLUDED.status,
		severity          = EXCLUDED.severity,
		priority          = EXCLUDED.priority,
		action            = EXCLUDED.action,
		auto              = EXCLUDED.auto,
		risk_score        = EXCLUDED.risk_score,
		reason_codes      = EXCLUDED.reason_codes,
		last_observed_at  = EXCLUDED.last_observed_at,
		latest_event_id   = EXCLUDED.latest_event_id,
		event_count       = EXCLUDED.event_count,
		quality_flags     = EXCLUDED.quality_flags`

	_, err = s.pool.Exec(ctx, query,
		inc.Key.DedupeKey, inc.Key.Namespace, inc.Key.Service,
		string(inc.Status), string(inc.Severity), inc.Priority,
		inc.Action, inc.Auto, inc.RiskScore, reasonCodes,
		inc.FirstObservedAt, inc.LastObservedAt, inc.LatestEventID,
		inc.EventCount, flags,
	)
	if err != nil {
		return recordErr(span, fmt.Errorf("upsert incident: %w", err))
	}
	return nil
}

// ListIncidents returns incidents matching the filter, most recently
// observed first. Filters are pushed into the query.
func (s *Store) ListIncidents(ctx context.Context, f incident.Filter) ([]*incident.Incident, error) {
	ctx, span := tracer.Start(ctx, "pgstore.ListIncidents", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "SELECT"),
	))
	defer span.End()

	var (
		conds []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}
	switch f.Status {
	case "", "all":
	default:
		conds = append(conds, "status = "+arg(f.Status))
	}
	if f.Severity != "" {
		conds = append(conds, "severity = "+arg(string(f.Severity)))
	}
	if f.Namespace != "" {
		conds = append(conds, "namespace = "+arg(f.Namespace))
	}
	if f.Service != "" {
		conds = append(conds, "service = "+arg(f.Service))
	}
	if f.Priority != "" {
		conds = append(conds, "priority = "+arg(f.Priority))
	}
	if f.Auto != nil {
		conds = append(conds, "auto = "+arg(*f.Auto))
	}

	query := `SELECT ` + incidentColumns + ` FROM incidents`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY last_observed_at DESC"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, recordErr(span, fmt.Errorf("list incidents: %w", err))
	}
	defer rows.Close()

	var incidents []*incident.Incident
	for rows.Next() {
		inc, err := scanIncidentRow(rows)
		if err != nil {
			return nil, recordErr(span, err)
		}
		incidents = append(incidents, inc)
	}
	if err := rows.Err(); err != nil {
		return nil, recordErr(span, fmt.Errorf("list incidents rows: %w", err))
	}
	return incidents, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEventRow(row rowScanner) (*event.Event, error) {
	var (
		ev          event.Event
		sentAt      *time.Time
		state       string
		severity    string
		reasonCodes []byte
		evidence    []byte
		evContext   []byte
		links       []byte
		meta        []byte
	)
	err := row.Scan(
		&ev.ID, &ev.DedupeKey, &ev.Service.Namespace, &ev.Service.Name,
		&ev.ObservedAt, &sentAt,
		&ev.Alert.Type, &state, &severity,
		&ev.Decision.Action, &ev.Decision.Auto, &ev.Decision.Priority,
		&ev.Decision.RiskScore, &reasonCodes, &evidence, &evContext, &links, &meta, &ev.Impact,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan event: %w", err)
	}

	if sentAt != nil {
		ev.SentAt = *sentAt
	}
	ev.Alert.State = event.State(state)
	ev.Alert.Severity = event.Severity(severity)
	if err := unmarshalInto(reasonCodes, &ev.Decision.ReasonCodes); err != nil {
		return nil, fmt.Errorf("unmarshal reason codes: %w", err)
	}
	if err := unmarshalInto(evidence, &ev.Evidence); err != nil {
		return nil, fmt.Errorf("unmarshal evidence: %w", err)
	}
	if err := unmarshalInto(evContext, &ev.Context); err != nil {
		return nil, fmt.Errorf("unmarshal context: %w", err)
	}
	if err := unmarshalInto(links, &ev.Links); err != nil {
		return nil, fmt.Errorf("unmarshal links: %w", err)
	}
	if err := unmarshalInto(meta, &ev.Meta); err != nil {
		return nil, fmt.Errorf("unmarshal meta: %w", err)
	}
	return &ev, nil
}

func scanIncidentRow(row rowScanner) (*incident.Incident, error) {
	var (
		inc         incident.Incident
		status      string
		severity    string
		reasonCodes []byte
		flags       []byte
	)
	err := row.Scan(
		&inc.Key.DedupeKey, &inc.Key.Namespace, &inc.Key.Service,
		&status, &severity, &inc.Priority,
		&inc.Action, &inc.Auto, &inc.RiskScore, &reasonCodes,
		&inc.FirstObservedAt, &inc.LastObservedAt,
		&inc.LatestEventID, &inc.EventCount, &flags,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan incident: %w", err)
	}

	inc.Status = incident.Status(status)
	inc.Severity = event.Severity(severity)
	if err := unmarshalInto(reasonCodes, &inc.ReasonCodes); err != nil {
		return nil, fmt.Errorf("unmarshal reason codes: %w", err)
	}
	if err := unmarshalInto(flags, &inc.Flags); err != nil {
		return nil, fmt.Errorf("unmarshal quality flags: %w", err)
	}
	return &inc, nil
}

func marshalEventJSON(ev *event.Event) (reasonCodes, evidence, evContext, links, meta []byte, err error) {
	if reasonCodes, err = json.Marshal(ev.Decision.ReasonCodes); err != nil {
		return nil, nil, nil, nil, nil, fmt.Errorf("marshal reason codes: %w", err)
	}
	if evidence, err = marshalOptional(ev.Evidence != nil, ev.Evidence); err != nil {
		return nil, nil, nil, nil, nil, fmt.Errorf("marshal evidence: %w", err)
	}
	if evContext, err = marshalOptional(ev.Context != nil, ev.Context); err != nil {
		return nil, nil, nil, nil, nil, fmt.Errorf("marshal context: %w", err)
	}
	if links, err = marshalOptional(ev.Links != nil, ev.Links); err != nil {
		return nil, nil, nil, nil, nil, fmt.Errorf("marshal links: %w", err)
	}
	if meta, err = marshalOptional(ev.Meta != nil, ev.Meta); err != nil {
		return nil, nil, nil, nil, nil, fmt.Errorf("marshal meta: %w", err)
	}
	return reasonCodes, evidence, evContext, links, meta, nil
}

// marshalOptional keeps absent optional blocks as SQL NULL rather than
// the JSON literal null.
func marshalOptional(present bool, v any) ([]byte, error) {
	if !present {
		return nil, nil
	}
	return json.Marshal(v)
}

func unmarshalInto(data []byte, dst any) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, dst)
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func recordErr(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
