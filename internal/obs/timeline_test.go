package obs

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/choir-run/choir/internal/errs"
	"github.com/choir-run/choir/pkg/models"
)

func sampleEvents() []*models.Event {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	mk := func(seq int64, eventType string) *models.Event {
		return &models.Event{
			Seq:       seq,
			EventID:   "ev-" + eventType,
			Timestamp: base.Add(time.Duration(seq) * time.Second),
			EventType: eventType,
		}
	}
	return []*models.Event{
		mk(3, "harness.step.transform"),
		mk(1, "conductor.task.started"),
		mk(2, "conductor.plan.created"),
		mk(4, "researcher.result.completed"),
		mk(5, "writer.patch.applied"),
	}
}

func TestClassify_KnownPrefixes(t *testing.T) {
	assert.Equal(t, CategoryConductorDecisions, Classify("conductor.task.started"))
	assert.Equal(t, CategoryAgentPlanning, Classify("harness.step.transform"))
	assert.Equal(t, CategoryAgentResults, Classify("researcher.result.completed"))
	assert.Equal(t, CategoryAgentResults, Classify("llm.call.completed"))
	assert.Equal(t, CategorySystem, Classify("writer.patch.applied"))
	assert.Equal(t, CategorySystem, Classify("some.unknown.type"))
}

func TestBuildTimeline_OrdersBySeqAndFilters(t *testing.T) {
	tl, err := BuildTimeline("run-1", sampleEvents(), "")
	require.NoError(t, err)
	require.Len(t, tl.Events, 5)
	assert.Equal(t, int64(1), tl.Events[0].Seq)
	assert.Equal(t, int64(5), tl.Events[4].Seq)
	assert.Equal(t, 5, tl.Summary.TotalEvents)
	assert.Equal(t, 2, tl.Summary.ByCategory[CategoryConductorDecisions])

	filtered, err := BuildTimeline("run-1", sampleEvents(), CategoryAgentResults)
	require.NoError(t, err)
	require.Len(t, filtered.Events, 1)
	assert.Equal(t, "researcher.result.completed", filtered.Events[0].EventType)
	// Summary still reflects the whole run, not just the filtered slice.
	assert.Equal(t, 5, filtered.Summary.TotalEvents)
}

func TestBuildTimeline_EmptyReturnsErrNoEvents(t *testing.T) {
	_, err := BuildTimeline("run-1", nil, "")
	assert.ErrorIs(t, err, errs.ErrNoEvents)
}

func TestCheckMilestones_AllPresent(t *testing.T) {
	tl, err := CheckMilestones("run-1", sampleEvents(), "", []string{"conductor.task.started", "writer.patch.applied"})
	require.NoError(t, err)
	assert.NotNil(t, tl)
}

func TestCheckMilestones_ReportsMissing(t *testing.T) {
	tl, err := CheckMilestones("run-1", sampleEvents(), "", []string{"conductor.task.started", "conductor.task.completed"})
	require.Error(t, err)
	require.NotNil(t, tl, "partial timeline must still be returned alongside the 422")

	var missErr *errs.MissingMilestonesError
	require.ErrorAs(t, err, &missErr)
	assert.Equal(t, []string{"conductor.task.completed"}, missErr.Missing)
	assert.ErrorIs(t, err, errs.ErrMissingMilestones)
}
