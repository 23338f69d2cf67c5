package researcher

import (
	"context"
	"sync"

	"github.com/choir-run/choir/pkg/models"
)

// Worker runs a ResearchRequest against a configured set of providers.
type Worker struct {
	providers []Provider
}

// NewWorker builds a Worker over providers in priority order (used as the
// sequential fallback chain).
func NewWorker(providers ...Provider) *Worker {
	return &Worker{providers: providers}
}

// Run executes req per spec §4.4: resolve the provider selection, fan out
// sequentially or in parallel, dedup citations by URL preserving first
// occurrence, then assess objective completion.
func (w *Worker) Run(ctx context.Context, req models.ResearchRequest) (*models.ResearchResult, error) {
	sel := SelectProviders(req.Provider, w.providers)

	params := SearchParams{
		Query:          req.Query,
		MaxResults:     req.MaxResults,
		TimeRange:      req.TimeRange,
		IncludeDomains: req.IncludeDomains,
		ExcludeDomains: req.ExcludeDomains,
	}

	var citations []models.Citation
	var failures []models.ProviderFailure

	switch sel.Mode {
	case ModeAutoSequential, ModeSingle:
		citations, failures = runSequential(ctx, sel.Providers, params)
	default:
		citations, failures = runParallel(ctx, sel.Providers, params)
	}

	deduped := dedupByURL(citations)
	allFailed := len(sel.Providers) > 0 && len(failures) == len(sel.Providers)

	status, recommend, coverage, avgScore := AssessObjective(req.Query, deduped, allFailed)

	return &models.ResearchResult{
		Citations:       deduped,
		Failures:        failures,
		Status:          status,
		RecommendedNext: recommend,
		CoverageRatio:   coverage,
		AverageTopScore: avgScore,
	}, nil
}

// runSequential tries providers in order, stopping at the first success.
func runSequential(ctx context.Context, providers []Provider, params SearchParams) ([]models.Citation, []models.ProviderFailure) {
	var failures []models.ProviderFailure
	for _, p := range providers {
		citations, err := p.Search(ctx, params)
		if err != nil {
			failures = append(failures, models.ProviderFailure{Provider: p.Name(), Error: err.Error()})
			continue
		}
		return citations, failures
	}
	return nil, failures
}

// runParallel calls every provider concurrently, merging successes and
// recording failures without treating any single failure as fatal.
func runParallel(ctx context.Context, providers []Provider, params SearchParams) ([]models.Citation, []models.ProviderFailure) {
	type outcome struct {
		citations []models.Citation
		failure   *models.ProviderFailure
	}

	outcomes := make([]outcome, len(providers))
	var wg sync.WaitGroup
	for i, p := range providers {
		wg.Add(1)
		go func(i int, p Provider) {
			defer wg.Done()
			citations, err := p.Search(ctx, params)
			if err != nil {
				outcomes[i] = outcome{failure: &models.ProviderFailure{Provider: p.Name(), Error: err.Error()}}
				return
			}
			outcomes[i] = outcome{citations: citations}
		}(i, p)
	}
	wg.Wait()

	var citations []models.Citation
	var failures []models.ProviderFailure
	for _, o := range outcomes {
		if o.failure != nil {
			failures = append(failures, *o.failure)
			continue
		}
		citations = append(citations, o.citations...)
	}
	return citations, failures
}

// dedupByURL merges results by URL, preserving first occurrence.
func dedupByURL(citations []models.Citation) []models.Citation {
	seen := make(map[string]bool, len(citations))
	out := make([]models.Citation, 0, len(citations))
	for _, c := range citations {
		if c.URL != "" && seen[c.URL] {
			continue
		}
		if c.URL != "" {
			seen[c.URL] = true
		}
		out = append(out, c)
	}
	return out
}
