// Package postgres wires the pgx pool used by the persistent store:
// otel spans via otelpgx, a structured log line per query, and a
// per-query observer hook for Prometheus labelling.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/exaring/otelpgx"
	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/linnemanlabs/go-core/log"
)

// QueryObserver receives per-query metrics (wired by main for Prometheus).
type QueryObserver interface {
	ObserveQuery(ctx context.Context, method, route, outcome string, dur time.Duration)
}

// QueryObserverFunc adapts a plain function to QueryObserver.
type QueryObserverFunc func(ctx context.Context, method, route, outcome string, dur time.Duration)

// ObserveQuery implements QueryObserver.
func (f QueryObserverFunc) ObserveQuery(ctx context.Context, method, route, outcome string, dur time.Duration) {
	f(ctx, method, route, outcome, dur)
}

var queryObserver atomic.Pointer[queryObserverHolder]

type queryObserverHolder struct{ QueryObserver }

// SetQueryObserver installs the process-wide query observer.
func SetQueryObserver(o QueryObserver) {
	queryObserver.Store(&queryObserverHolder{o})
}

func getQueryObserver() QueryObserver {
	if h := queryObserver.Load(); h != nil {
		return h.QueryObserver
	}
	return nil
}

type ctxKey string

const (
	ctxKeySQL        ctxKey = "pgx.sql"
	ctxKeyStart      ctxKey = "pgx.start"
	ctxKeyHTTPMethod ctxKey = "http.method"
)

// WithHTTPMethod stashes the HTTP method for query metrics labelling.
func WithHTTPMethod(ctx context.Context, method string) context.Context {
	return context.WithValue(ctx, ctxKeyHTTPMethod, method)
}

// NewPool connects to PostgreSQL with the tracing/logging query tracer
// installed and verifies the connection.
func NewPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	cfg.ConnConfig.Tracer = loggingTracer{inner: otelpgx.NewTracer()}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("pgxpool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return pool, nil
}

// loggingTracer wraps another pgx.QueryTracer (otelpgx) and adds a
// structured log line plus the observer hook for every query.
type loggingTracer struct {
	inner pgx.QueryTracer
}

func (t loggingTracer) TraceQueryStart(ctx context.Context, conn *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	// Let the inner tracer (otelpgx) create its span first.
	ctx = t.inner.TraceQueryStart(ctx, conn, data)
	ctx = context.WithValue(ctx, ctxKeySQL, data.SQL)
	ctx = context.WithValue(ctx, ctxKeyStart, time.Now())
	return ctx
}

func (t loggingTracer) TraceQueryEnd(ctx context.Context, conn *pgx.Conn, data pgx.TraceQueryEndData) {
	t.inner.TraceQueryEnd(ctx, conn, data)

	var dur time.Duration
	if start, ok := ctx.Value(ctxKeyStart).(time.Time); ok {
		dur = time.Since(start)
	}

	if obs := getQueryObserver(); obs != nil && dur > 0 {
		method, _ := ctx.Value(ctxKeyHTTPMethod).(string)
		if method == "" {
			method = "UNKNOWN"
		}
		route := routePatternFromContext(ctx)
		outcome := "ok"
		if data.Err != nil {
			outcome = "error"
		}
		obs.ObserveQuery(ctx, method, route, outcome, dur)
	}

	sql, _ := ctx.Value(ctxKeySQL).(string)
	fields := []any{
		"db.statement", compactSQL(sql),
		"db.duration", dur.Seconds(),
	}
	if tag := strings.TrimSpace(data.CommandTag.String()); tag != "" {
		if parts := strings.Fields(tag); len(parts) > 0 {
			fields = append(fields, "db.operation.name", strings.ToUpper(parts[0]))
		}
		fields = append(fields, "db.rows", data.CommandTag.RowsAffected())
	}

	L := log.FromContext(ctx)
	if data.Err != nil {
		var pgErr *pgconn.PgError
		if errors.As(data.Err, &pgErr) {
			fields = append(fields,
				"db.error_code", pgErr.Code,
				"db.error_constraint", pgErr.ConstraintName,
			)
		}
		L.Error(ctx, data.Err, "db query failed", fields...)
		return
	}
	L.Info(ctx, "db query", fields...)
}

func routePatternFromContext(ctx context.Context) string {
	if rctx := chi.RouteContext(ctx); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "unknown"
}

// compactSQL collapses whitespace so multi-line statements log as one line.
func compactSQL(sql string) string {
	return strings.Join(strings.Fields(sql), " ")
}
