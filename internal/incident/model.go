package incident

import (
	"time"

	"github.com/linnemanlabs/beacon/internal/event"
)

// Status tracks whether an incident is currently firing.
type Status string

const (
	StatusOpen     Status = "open"
	StatusResolved Status = "resolved"
)

// Key identifies an incident: every event sharing this triple belongs
// to the same incident.
type Key struct {
	DedupeKey string `json:"dedupe_key"`
	Namespace string `json:"namespace"`
	Service   string `json:"service"`
}

// KeyFor derives the incident key from an event.
func KeyFor(ev *event.Event) Key {
	return Key{
		DedupeKey: ev.DedupeKey,
		Namespace: ev.Service.Namespace,
		Service:   ev.Service.Name,
	}
}

// Incident is the derived projection over all events sharing one key.
// Current fields mirror the most recently ingested event; quality flags
// are computed over the full event set.
type Incident struct {
	Key             Key            `json:"key"`
	Status          Status         `json:"status"`
	Severity        event.Severity `json:"severity"`
	Priority        string         `json:"priority"`
	Action          string         `json:"action"`
	Auto            bool           `json:"auto"`
	RiskScore       float64        `json:"risk_score"`
	ReasonCodes     []string       `json:"reason_codes"`
	FirstObservedAt time.Time      `json:"first_observed_at"`
	LastObservedAt  time.Time      `json:"last_observed_at"`
	LatestEventID   string         `json:"latest_event_id"`
	EventCount      int            `json:"event_count"`
	Flags           []Flag         `json:"quality_flags"`
}

// HasFlag reports whether the incident carries the given quality flag.
func (i *Incident) HasFlag(f Flag) bool {
	for _, have := range i.Flags {
		if have == f {
			return true
		}
	}
	return false
}

// Filter narrows an incident listing. Zero values match everything;
// Status accepts "open", "resolved" or "all" (empty means all).
type Filter struct {
	Status    string
	Severity  event.Severity
	Namespace string
	Service   string
	Priority  string
	Auto      *bool
}

// Matches reports whether the incident passes the filter.
func (f Filter) Matches(inc *Incident) bool {
	switch f.Status {
	case "", "all":
	default:
		if string(inc.Status) != f.Status {
			return false
		}
	}
	if f.Severity != "" && inc.Severity != f.Severity {
		return false
	}
	if f.Namespace != "" && inc.Key.Namespace != f.Namespace {
		return false
	}
	if f.Service != "" && inc.Key.Service != f.Service {
		return false
	}
	if f.Priority != "" && inc.Priority != f.Priority {
		return false
	}
	if f.Auto != nil && inc.Auto != *f.Auto {
		return false
	}
	return true
}

// Overview is the aggregate snapshot served at the top of the query
// surface and broadcast periodically over the live-update channel.
type Overview struct {
	Incidents        int                    `json:"incidents"`
	ByStatus         map[Status]int         `json:"by_status"`
	BySeverity       map[event.Severity]int `json:"by_severity"`
	AutoActions      int                    `json:"auto_actions"`
	ManualActions    int                    `json:"manual_actions"`
	ServicesAffected int                    `json:"services_affected"`
	TotalEvents      int                    `json:"total_events"`
}

// ServiceRollup summarizes incidents per producing service.
type ServiceRollup struct {
	Namespace       string         `json:"namespace"`
	Service         string         `json:"service"`
	Open            int            `json:"open"`
	Resolved        int            `json:"resolved"`
	HighestSeverity event.Severity `json:"highest_severity"`
	EventCount      int            `json:"event_count"`
	LastObservedAt  time.Time      `json:"last_observed_at"`
}

// Detail is an incident together with its full event history.
type Detail struct {
	Incident *Incident      `json:"incident"`
	Events   []*event.Event `json:"events"`
}
