package incident

import (
	"testing"

	"github.com/linnemanlabs/beacon/internal/event"
)

func bareEvent(id string) *event.Event {
	return &event.Event{
		ID:        id,
		DedupeKey: "k",
		Service:   event.Service{Name: "web", Namespace: "prod"},
		Alert:     event.Alert{State: event.StateFiring, Severity: event.SeverityHigh},
	}
}

func withEvidence(ev *event.Event) *event.Event {
	ev.Evidence = map[string]any{"samples": 3}
	return ev
}

func withContext(ev *event.Event) *event.Event {
	ev.Context = map[string]any{"region": "us-east-1"}
	return ev
}

func withLinks(ev *event.Event) *event.Event {
	ev.Links = &event.Links{Runbook: "https://runbooks.internal/x"}
	return ev
}

func TestComputeFlags_EmptySet(t *testing.T) {
	t.Parallel()

	if got := ComputeFlags(nil); got != nil {
		t.Errorf("ComputeFlags(nil) = %v, want nil", got)
	}
}

func TestComputeFlags_AllMissing(t *testing.T) {
	t.Parallel()

	got := ComputeFlags([]*event.Event{bareEvent("e1"), bareEvent("e2")})
	want := []Flag{FlagMissingEvidence, FlagMissingContext, FlagMissingLinks}
	if len(got) != len(want) {
		t.Fatalf("flags = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("flags[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}

// A single event carrying a signal satisfies it for the whole set.
func TestComputeFlags_PartialPresenceClearsFlag(t *testing.T) {
	t.Parallel()

	events := []*event.Event{
		bareEvent("e1"),
		withEvidence(bareEvent("e2")),
	}
	got := ComputeFlags(events)

	for _, f := range got {
		if f == FlagMissingEvidence {
			t.Error("missing_evidence raised despite one event carrying evidence")
		}
	}
	if !containsFlag(got, FlagMissingContext) || !containsFlag(got, FlagMissingLinks) {
		t.Errorf("flags = %v, want missing_context and missing_links", got)
	}
}

func TestComputeFlags_AllPresent(t *testing.T) {
	t.Parallel()

	events := []*event.Event{
		withEvidence(bareEvent("e1")),
		withContext(bareEvent("e2")),
		withLinks(bareEvent("e3")),
	}
	if got := ComputeFlags(events); got != nil {
		t.Errorf("flags = %v, want nil when every signal is present somewhere", got)
	}
}

func TestComputeFlags_SingletonSet(t *testing.T) {
	t.Parallel()

	got := ComputeFlags([]*event.Event{withLinks(bareEvent("e1"))})
	if containsFlag(got, FlagMissingLinks) {
		t.Error("missing_links raised for event with a runbook link")
	}
	if !containsFlag(got, FlagMissingEvidence) || !containsFlag(got, FlagMissingContext) {
		t.Errorf("flags = %v, want missing_evidence and missing_context", got)
	}
}

func containsFlag(flags []Flag, f Flag) bool {
	for _, have := range flags {
		if have == f {
			return true
		}
	}
	return false
}
