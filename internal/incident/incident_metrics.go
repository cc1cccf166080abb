package incident

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds Prometheus metrics for the ingestion subsystem.
type Metrics struct {
	IngestsTotal       *prometheus.CounterVec
	ProjectionDuration prometheus.Histogram
	EventsPerIncident  prometheus.Histogram
	LockWaitDuration   prometheus.Histogram
	PagerDispatches    *prometheus.CounterVec
	SinkDropsTotal     prometheus.Counter
}

// NewMetrics registers and returns ingestion metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		IngestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "beacon_ingests_total",
			Help: "Total ingest attempts by result.",
		}, []string{"result"}),
		ProjectionDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "beacon_projection_duration_seconds",
			Help:    "Duration of incident projection (read, compute, upsert) in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms .. ~4s
		}),
		EventsPerIncident: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "beacon_events_per_incident",
			Help:    "Event count of incidents at projection time.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10), // 1 .. 512
		}),
		LockWaitDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "beacon_keylock_wait_seconds",
			Help:    "Time spent waiting on the per-key projection lock.",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8), // 0.1ms .. ~1.6s
		}),
		PagerDispatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "beacon_pager_dispatches_total",
			Help: "Side-channel pager dispatches by outcome.",
		}, []string{"outcome"}),
		SinkDropsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "beacon_sink_drops_total",
			Help: "Notification messages dropped because the sink was saturated.",
		}),
	}

	reg.MustRegister(
		m.IngestsTotal,
		m.ProjectionDuration,
		m.EventsPerIncident,
		m.LockWaitDuration,
		m.PagerDispatches,
		m.SinkDropsTotal,
	)

	return m
}
