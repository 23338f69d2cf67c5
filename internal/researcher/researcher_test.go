package researcher

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/choir-run/choir/pkg/models"
)

type fakeProvider struct {
	name      string
	citations []models.Citation
	err       error
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Search(ctx context.Context, params SearchParams) ([]models.Citation, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.citations, nil
}

func TestSelectProviders(t *testing.T) {
	a := &fakeProvider{name: "tavily"}
	b := &fakeProvider{name: "brave"}
	available := []Provider{a, b}

	sel := SelectProviders("", available)
	assert.Equal(t, ModeAutoSequential, sel.Mode)
	assert.Len(t, sel.Providers, 2)

	sel = SelectProviders("auto", available)
	assert.Equal(t, ModeAutoSequential, sel.Mode)

	sel = SelectProviders("brave", available)
	assert.Equal(t, ModeSingle, sel.Mode)
	require.Len(t, sel.Providers, 1)
	assert.Equal(t, "brave", sel.Providers[0].Name())

	sel = SelectProviders("tavily,brave", available)
	assert.Equal(t, ModeParallel, sel.Mode)
	assert.Len(t, sel.Providers, 2)

	sel = SelectProviders("all", available)
	assert.Equal(t, ModeParallel, sel.Mode)
	assert.Len(t, sel.Providers, 2)

	sel = SelectProviders("*", available)
	assert.Equal(t, ModeParallel, sel.Mode)
}

func TestWorker_SequentialStopsOnFirstSuccess(t *testing.T) {
	first := &fakeProvider{name: "tavily", err: errors.New("boom")}
	second := &fakeProvider{name: "brave", citations: []models.Citation{
		{URL: "https://a.example", Title: "choir runner", Score: 0.9},
	}}

	w := NewWorker(first, second)
	result, err := w.Run(context.Background(), models.ResearchRequest{Query: "choir runner"})
	require.NoError(t, err)
	require.Len(t, result.Citations, 1)
	assert.Len(t, result.Failures, 1)
	assert.Equal(t, models.ObjectiveComplete, result.Status)
}

func TestWorker_AllProvidersFailedIsBlocked(t *testing.T) {
	a := &fakeProvider{name: "tavily", err: errors.New("down")}
	b := &fakeProvider{name: "brave", err: errors.New("down")}

	w := NewWorker(a, b)
	result, err := w.Run(context.Background(), models.ResearchRequest{Query: "choir", Provider: "all"})
	require.NoError(t, err)
	assert.Equal(t, models.ObjectiveBlocked, result.Status)
	assert.Equal(t, "conductor", result.RecommendedNext)
}

func TestWorker_ZeroCitationsIsIncomplete(t *testing.T) {
	a := &fakeProvider{name: "tavily"}
	w := NewWorker(a)
	result, err := w.Run(context.Background(), models.ResearchRequest{Query: "choir"})
	require.NoError(t, err)
	assert.Equal(t, models.ObjectiveIncomplete, result.Status)
	assert.Equal(t, "terminal", result.RecommendedNext)
}

func TestWorker_DedupesByURLPreservingFirstOccurrence(t *testing.T) {
	a := &fakeProvider{name: "tavily", citations: []models.Citation{
		{URL: "https://a.example", Title: "first", Score: 0.5},
	}}
	b := &fakeProvider{name: "brave", citations: []models.Citation{
		{URL: "https://a.example", Title: "duplicate", Score: 0.9},
		{URL: "https://b.example", Title: "unique", Score: 0.8},
	}}

	w := NewWorker(a, b)
	result, err := w.Run(context.Background(), models.ResearchRequest{Query: "choir example", Provider: "all"})
	require.NoError(t, err)
	require.Len(t, result.Citations, 2)
	assert.Equal(t, "first", result.Citations[0].Title)
}

func TestAssessObjective_LowCoverageIsIncomplete(t *testing.T) {
	citations := []models.Citation{
		{Title: "unrelated", URL: "https://x.example", Score: 0.9},
	}
	status, next, coverage, _ := AssessObjective("choir orchestrator runtime", citations, false)
	assert.Equal(t, models.ObjectiveIncomplete, status)
	assert.Equal(t, "terminal", next)
	assert.Less(t, coverage, 0.35)
}

func TestTokenizeQuery_StripsStopWordsAndShortTokens(t *testing.T) {
	tokens := tokenizeQuery("What is the choir runtime and how does it work")
	assert.Contains(t, tokens, "choir")
	assert.Contains(t, tokens, "runtime")
	assert.NotContains(t, tokens, "the")
	assert.NotContains(t, tokens, "is")
}

func TestAverageTopScore_ExcludesUnscoredCitations(t *testing.T) {
	citations := []models.Citation{
		{Title: "scored", URL: "https://a.example", Score: 0.9},
		{Title: "unscored", URL: "https://b.example", Score: 0},
		{Title: "unscored-2", URL: "https://c.example", Score: 0},
	}
	assert.Equal(t, 0.9, averageTopScore(citations))
}

func TestAverageTopScore_AveragesOnlyTopSixScored(t *testing.T) {
	citations := []models.Citation{
		{URL: "https://a.example", Score: 0.9},
		{URL: "https://b.example", Score: 0.8},
		{URL: "https://c.example", Score: 0.7},
		{URL: "https://d.example", Score: 0.6},
		{URL: "https://e.example", Score: 0.5},
		{URL: "https://f.example", Score: 0.4},
		{URL: "https://g.example", Score: 0.1},
	}
	assert.InDelta(t, 0.65, averageTopScore(citations), 0.0001)
}

func TestAverageTopScore_AllUnscoredIsZero(t *testing.T) {
	citations := []models.Citation{
		{URL: "https://a.example", Score: 0},
		{URL: "https://b.example", Score: 0},
	}
	assert.Equal(t, 0.0, averageTopScore(citations))
}
