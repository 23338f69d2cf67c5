package obs

import (
	"sort"
	"strings"

	"github.com/choir-run/choir/internal/errs"
	"github.com/choir-run/choir/pkg/models"
)

// Category buckets a Run Timeline event for the "GET /runs/{run_id}/timeline"
// surface (spec §6.1).
type Category string

const (
	CategoryConductorDecisions Category = "conductor_decisions"
	CategoryAgentObjectives    Category = "agent_objectives"
	CategoryAgentPlanning      Category = "agent_planning"
	CategoryAgentResults       Category = "agent_results"
	CategorySystem             Category = "system"
)

// classifyRules maps an event_type prefix to its timeline category. Checked
// in order, first match wins, so more specific prefixes must come first.
var classifyRules = []struct {
	prefix   string
	category Category
}{
	{"conductor.task.", CategoryConductorDecisions},
	{"conductor.plan.", CategoryConductorDecisions},
	{"conductor.worker.", CategoryConductorDecisions},
	{"researcher.objective.", CategoryAgentObjectives},
	{"terminal.objective.", CategoryAgentObjectives},
	{"harness.objective.", CategoryAgentObjectives},
	{"harness.program.", CategoryAgentPlanning},
	{"harness.dag.", CategoryAgentPlanning},
	{"harness.step.", CategoryAgentPlanning},
	{"researcher.result.", CategoryAgentResults},
	{"terminal.result.", CategoryAgentResults},
	{"worker.tool.", CategoryAgentResults},
	{"llm.call.", CategoryAgentResults},
}

// Classify reports which category an event_type falls into, defaulting to
// CategorySystem (writer.*, eventstore internals, everything not explicitly
// claimed by a Conductor/agent prefix).
func Classify(eventType string) Category {
	for _, rule := range classifyRules {
		if strings.HasPrefix(eventType, rule.prefix) {
			return rule.category
		}
	}
	return CategorySystem
}

// TimelineEvent is the JSON-facing shape returned by the timeline view: a
// stored Event plus its derived category.
type TimelineEvent struct {
	Seq           int64          `json:"seq"`
	EventID       string         `json:"event_id"`
	Timestamp     string         `json:"timestamp"`
	EventType     string         `json:"event_type"`
	Category      Category       `json:"category"`
	ActorID       string         `json:"actor_id,omitempty"`
	CorrelationID string         `json:"correlation_id,omitempty"`
	Payload       map[string]any `json:"payload,omitempty"`
}

// TimelineSummary aggregates event counts per category, for a quick glance
// without scanning the full event list.
type TimelineSummary struct {
	TotalEvents int              `json:"total_events"`
	ByCategory  map[Category]int `json:"by_category"`
	FirstSeq    int64            `json:"first_seq"`
	LastSeq     int64            `json:"last_seq"`
}

// Timeline is the full response body for GET /runs/{run_id}/timeline.
type Timeline struct {
	RunID   string          `json:"run_id"`
	Events  []TimelineEvent `json:"events"`
	Summary TimelineSummary `json:"summary"`
}

// BuildTimeline classifies and orders events (already filtered to a single
// run_id by the caller) by seq. If category is non-empty, only events in
// that category are included in Events (the summary still counts all of
// them). Returns errs.ErrNoEvents if events is empty, matching the 404
// semantics of the HTTP surface.
func BuildTimeline(runID string, events []*models.Event, category Category) (*Timeline, error) {
	if len(events) == 0 {
		return nil, errs.ErrNoEvents
	}

	sorted := make([]*models.Event, len(events))
	copy(sorted, events)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Seq < sorted[j].Seq })

	summary := TimelineSummary{
		ByCategory: make(map[Category]int),
		FirstSeq:   sorted[0].Seq,
		LastSeq:    sorted[len(sorted)-1].Seq,
	}

	tl := &Timeline{RunID: runID}
	for _, ev := range sorted {
		cat := Classify(ev.EventType)
		summary.ByCategory[cat]++
		summary.TotalEvents++
		if category != "" && cat != category {
			continue
		}
		tl.Events = append(tl.Events, TimelineEvent{
			Seq:           ev.Seq,
			EventID:       ev.EventID,
			Timestamp:     ev.Timestamp.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
			EventType:     ev.EventType,
			Category:      cat,
			ActorID:       ev.ActorID,
			CorrelationID: ev.CorrelationID,
			Payload:       ev.Payload,
		})
	}
	tl.Summary = summary

	return tl, nil
}

// CheckMilestones verifies that at least one event of each required event
// type exists among events, returning a *errs.MissingMilestonesError
// (422-equivalent) naming the ones that never occurred. The timeline is
// still built and returned alongside the error so callers can render the
// partial view the spec requires.
func CheckMilestones(runID string, events []*models.Event, category Category, required []string) (*Timeline, error) {
	tl, err := BuildTimeline(runID, events, category)
	if err != nil {
		return nil, err
	}
	if len(required) == 0 {
		return tl, nil
	}

	seen := make(map[string]bool, len(events))
	for _, ev := range events {
		seen[ev.EventType] = true
	}

	var missing []string
	for _, want := range required {
		want = strings.TrimSpace(want)
		if want == "" {
			continue
		}
		if !seen[want] {
			missing = append(missing, want)
		}
	}

	if len(missing) > 0 {
		return tl, &errs.MissingMilestonesError{Missing: missing}
	}
	return tl, nil
}
