// Package event defines the alert event model produced by the upstream
// detection pipeline. Events are immutable once ingested.
package event

import (
	"errors"
	"time"
)

// State is the alert lifecycle state carried by an event.
type State string

const (
	StateFiring   State = "firing"
	StateResolved State = "resolved"
)

// Severity is the ordered alert severity level.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Rank maps a severity to its position in the ordering (low < medium <
// high < critical). Unknown severities rank below low.
func (s Severity) Rank() int {
	switch s {
	case SeverityLow:
		return 1
	case SeverityMedium:
		return 2
	case SeverityHigh:
		return 3
	case SeverityCritical:
		return 4
	default:
		return 0
	}
}

// Service identifies the producing service.
type Service struct {
	Name      string `json:"name"`
	Namespace string `json:"namespace"`
}

// Alert is the classification block of an event.
type Alert struct {
	Type     string   `json:"type,omitempty"`
	State    State    `json:"state"`
	Severity Severity `json:"severity"`
}

// Decision is the detection pipeline's verdict for the event.
type Decision struct {
	Action      string   `json:"action"`
	Auto        bool     `json:"auto"`
	Priority    string   `json:"priority"`
	RiskScore   float64  `json:"risk_score,omitempty"`
	ReasonCodes []string `json:"reason_codes"`
}

// Links are optional cross-references attached to an event.
type Links struct {
	Details   string `json:"details,omitempty"`
	Runbook   string `json:"runbook,omitempty"`
	Dashboard string `json:"dashboard,omitempty"`
}

// Empty reports whether the links block carries no usable reference.
func (l *Links) Empty() bool {
	return l == nil || (l.Details == "" && l.Runbook == "" && l.Dashboard == "")
}

// Event is one detection record. Created once by the ingest path and
// never mutated afterwards.
type Event struct {
	ID         string            `json:"event_id"`
	DedupeKey  string            `json:"dedupe_key"`
	Service    Service           `json:"service"`
	ObservedAt time.Time         `json:"observed_at"`
	SentAt     time.Time         `json:"sent_at,omitempty"`
	Alert      Alert             `json:"alert"`
	Decision   Decision          `json:"decision"`
	Evidence   map[string]any    `json:"evidence,omitempty"`
	Context    map[string]any    `json:"context,omitempty"`
	Links      *Links            `json:"links,omitempty"`
	Meta       map[string]string `json:"meta,omitempty"`
	Impact     string            `json:"impact,omitempty"`
}

// Validation errors for Event identity fields.
var (
	ErrNoID               = errors.New("event_id is required")
	ErrNoDedupeKey        = errors.New("dedupe_key is required")
	ErrNoServiceName      = errors.New("service.name is required")
	ErrNoServiceNamespace = errors.New("service.namespace is required")
)

// Validate checks the identity fields the ingest path requires before
// any storage write. Returns the first failure, or nil.
func (e *Event) Validate() error {
	if e.ID == "" {
		return ErrNoID
	}
	if e.DedupeKey == "" {
		return ErrNoDedupeKey
	}
	if e.Service.Name == "" {
		return ErrNoServiceName
	}
	if e.Service.Namespace == "" {
		return ErrNoServiceNamespace
	}
	return nil
}

// HasEvidence reports whether the event carries any evidence payload.
func (e *Event) HasEvidence() bool {
	return len(e.Evidence) > 0
}

// HasContext reports whether the event carries contextual metadata.
func (e *Event) HasContext() bool {
	return len(e.Context) > 0
}

// HasLinks reports whether the event carries at least one usable link.
func (e *Event) HasLinks() bool {
	return !e.Links.Empty()
}
