package incident

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/linnemanlabs/beacon/internal/event"
)

func mustInsert(t *testing.T, store Store, ev *event.Event) {
	t.Helper()
	inserted, err := store.InsertEvent(context.Background(), ev)
	if err != nil {
		t.Fatalf("InsertEvent: %v", err)
	}
	if !inserted {
		t.Fatalf("InsertEvent(%s) reported duplicate", ev.ID)
	}
}

func TestProject_CreatesIncident(t *testing.T) {
	t.Parallel()

	store := newMockStore()
	p := NewProjector(store)
	ctx := context.Background()

	ev := firingEvent("e1", "k1")
	mustInsert(t, store, ev)

	inc, err := p.Project(ctx, ev)
	if err != nil {
		t.Fatalf("Project: %v", err)
	}

	if inc.Status != StatusOpen {
		t.Errorf("Status = %s, want open", inc.Status)
	}
	if inc.EventCount != 1 {
		t.Errorf("EventCount = %d, want 1", inc.EventCount)
	}
	if !inc.FirstObservedAt.Equal(ev.ObservedAt) || !inc.LastObservedAt.Equal(ev.ObservedAt) {
		t.Errorf("observed range = %v..%v, want both %v", inc.FirstObservedAt, inc.LastObservedAt, ev.ObservedAt)
	}
	if inc.LatestEventID != "e1" {
		t.Errorf("LatestEventID = %q, want e1", inc.LatestEventID)
	}
	if inc.Severity != event.SeverityHigh || inc.Priority != "p2" || inc.Action != "notify" {
		t.Errorf("current fields = %s/%s/%s", inc.Severity, inc.Priority, inc.Action)
	}
	if !inc.HasFlag(FlagMissingEvidence) || !inc.HasFlag(FlagMissingLinks) {
		t.Errorf("Flags = %v, want missing_evidence and missing_links", inc.Flags)
	}
}

func TestProject_UpdateCopiesCurrentFields(t *testing.T) {
	t.Parallel()

	store := newMockStore()
	p := NewProjector(store)
	ctx := context.Background()

	e1 := firingEvent("e1", "k1")
	mustInsert(t, store, e1)
	if _, err := p.Project(ctx, e1); err != nil {
		t.Fatalf("Project e1: %v", err)
	}

	e2 := firingEvent("e2", "k1")
	e2.ObservedAt = e1.ObservedAt.Add(5 * time.Minute)
	e2.Alert.Severity = event.SeverityCritical
	e2.Decision = event.Decision{Action: "isolate", Auto: true, Priority: "p1", RiskScore: 0.93, ReasonCodes: []string{"lateral_movement"}}
	mustInsert(t, store, e2)

	inc, err := p.Project(ctx, e2)
	if err != nil {
		t.Fatalf("Project e2: %v", err)
	}

	if inc.EventCount != 2 {
		t.Errorf("EventCount = %d, want 2", inc.EventCount)
	}
	if inc.Severity != event.SeverityCritical || inc.Action != "isolate" || !inc.Auto || inc.Priority != "p1" {
		t.Errorf("current fields not copied from latest event: %+v", inc)
	}
	if inc.RiskScore != 0.93 {
		t.Errorf("RiskScore = %v, want 0.93", inc.RiskScore)
	}
	if len(inc.ReasonCodes) != 1 || inc.ReasonCodes[0] != "lateral_movement" {
		t.Errorf("ReasonCodes = %v", inc.ReasonCodes)
	}
	if !inc.FirstObservedAt.Equal(e1.ObservedAt) {
		t.Errorf("FirstObservedAt = %v, want %v (unchanged)", inc.FirstObservedAt, e1.ObservedAt)
	}
	if !inc.LastObservedAt.Equal(e2.ObservedAt) {
		t.Errorf("LastObservedAt = %v, want %v", inc.LastObservedAt, e2.ObservedAt)
	}
	if inc.LatestEventID != "e2" {
		t.Errorf("LatestEventID = %q, want e2", inc.LatestEventID)
	}
}

func TestProject_StatusTransitions(t *testing.T) {
	t.Parallel()

	store := newMockStore()
	p := NewProjector(store)
	ctx := context.Background()

	steps := []struct {
		id    string
		state event.State
		want  Status
	}{
		{"e1", event.StateFiring, StatusOpen},
		{"e2", event.StateResolved, StatusResolved},
		{"e3", event.StateFiring, StatusOpen},
	}

	for _, step := range steps {
		ev := firingEvent(step.id, "k1")
		ev.Alert.State = step.state
		mustInsert(t, store, ev)
		inc, err := p.Project(ctx, ev)
		if err != nil {
			t.Fatalf("Project %s: %v", step.id, err)
		}
		if inc.Status != step.want {
			t.Errorf("after %s(%s): Status = %s, want %s", step.id, step.state, inc.Status, step.want)
		}
	}
}

func TestProject_CountInvariant(t *testing.T) {
	t.Parallel()

	store := newMockStore()
	p := NewProjector(store)
	ctx := context.Background()

	const n = 7
	for i := 0; i < n; i++ {
		ev := firingEvent(fmt.Sprintf("e%d", i), "k1")
		mustInsert(t, store, ev)
		if _, err := p.Project(ctx, ev); err != nil {
			t.Fatalf("Project e%d: %v", i, err)
		}
	}

	inc, ok, err := store.GetIncident(ctx, Key{DedupeKey: "k1", Namespace: "prod", Service: "web"})
	if err != nil || !ok {
		t.Fatalf("GetIncident: ok=%v err=%v", ok, err)
	}
	if inc.EventCount != n {
		t.Errorf("EventCount = %d, want %d", inc.EventCount, n)
	}
}

// Scenario from the incident review: firing event without evidence or
// links, then a resolved event with evidence.
func TestProject_QualityFlagScenario(t *testing.T) {
	t.Parallel()

	store := newMockStore()
	p := NewProjector(store)
	ctx := context.Background()

	e1 := firingEvent("e1", "k")
	e1.Context = map[string]any{"host": "web-3"}
	mustInsert(t, store, e1)
	inc, err := p.Project(ctx, e1)
	if err != nil {
		t.Fatalf("Project e1: %v", err)
	}
	if inc.Status != StatusOpen || inc.EventCount != 1 {
		t.Fatalf("after e1: status=%s count=%d", inc.Status, inc.EventCount)
	}
	if !inc.HasFlag(FlagMissingEvidence) || !inc.HasFlag(FlagMissingLinks) {
		t.Errorf("after e1: Flags = %v, want missing_evidence+missing_links", inc.Flags)
	}

	e2 := firingEvent("e2", "k")
	e2.Alert.State = event.StateResolved
	e2.Evidence = map[string]any{"pcap": "s3://captures/xyz"}
	e2.Context = map[string]any{"host": "web-3"}
	mustInsert(t, store, e2)
	inc, err = p.Project(ctx, e2)
	if err != nil {
		t.Fatalf("Project e2: %v", err)
	}
	if inc.Status != StatusResolved || inc.EventCount != 2 {
		t.Fatalf("after e2: status=%s count=%d", inc.Status, inc.EventCount)
	}
	if inc.HasFlag(FlagMissingEvidence) {
		t.Error("missing_evidence still raised after e2 brought evidence")
	}
	if !inc.HasFlag(FlagMissingLinks) {
		t.Error("missing_links should remain raised")
	}
}
