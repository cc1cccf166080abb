package incident

import "github.com/linnemanlabs/beacon/internal/event"

// Flag marks a data-completeness gap across an incident's event set.
type Flag string

const (
	FlagMissingEvidence Flag = "missing_evidence"
	FlagMissingContext  Flag = "missing_context"
	FlagMissingLinks    Flag = "missing_links"
)

// ComputeFlags evaluates quality flags over the full event set of one
// incident. A flag is raised only when every event lacks the signal:
// a single event carrying evidence satisfies the whole incident.
//
// Pure function. The returned slice is in declaration order and free
// of duplicates; it is nil when no flag is raised.
func ComputeFlags(events []*event.Event) []Flag {
	if len(events) == 0 {
		return nil
	}

	anyEvidence, anyContext, anyLinks := false, false, false
	for _, ev := range events {
		anyEvidence = anyEvidence || ev.HasEvidence()
		anyContext = anyContext || ev.HasContext()
		anyLinks = anyLinks || ev.HasLinks()
		if anyEvidence && anyContext && anyLinks {
			return nil
		}
	}

	var flags []Flag
	if !anyEvidence {
		flags = append(flags, FlagMissingEvidence)
	}
	if !anyContext {
		flags = append(flags, FlagMissingContext)
	}
	if !anyLinks {
		flags = append(flags, FlagMissingLinks)
	}
	return flags
}
