package researcher

import (
	"sort"
	"strings"

	"github.com/choir-run/choir/pkg/models"
)

var stopWords = map[string]bool{
	"the": true, "and": true, "for": true, "are": true, "with": true,
	"that": true, "this": true, "from": true, "what": true, "how": true,
	"does": true, "has": true, "have": true, "was": true, "were": true,
	"can": true, "will": true, "not": true, "but": true, "you": true,
	"your": true, "about": true, "into": true, "their": true,
}

// tokenizeQuery strips stop-words and short tokens, matching spec §4.4's
// "tokenize the query (strip stop-words, length ≥ 3)" rule.
func tokenizeQuery(query string) []string {
	fields := strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !('a' <= r && r <= 'z') && !('0' <= r && r <= '9')
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if len(f) < 3 || stopWords[f] {
			continue
		}
		out = append(out, f)
	}
	return out
}

func citationHaystack(c models.Citation) string {
	return strings.ToLower(c.Title + " " + c.Snippet + " " + c.URL)
}

// coverageRatio computes the fraction of query keywords present across any
// citation's title/snippet/URL.
func coverageRatio(keywords []string, citations []models.Citation) float64 {
	if len(keywords) == 0 {
		return 1
	}
	haystacks := make([]string, len(citations))
	for i, c := range citations {
		haystacks[i] = citationHaystack(c)
	}

	present := 0
	for _, kw := range keywords {
		for _, h := range haystacks {
			if strings.Contains(h, kw) {
				present++
				break
			}
		}
	}
	return float64(present) / float64(len(keywords))
}

// averageTopScore computes the average Score over the top 6 scored
// citations, descending. Citations with no score (Score == 0) are
// excluded before ranking so they can't dilute the average.
func averageTopScore(citations []models.Citation) float64 {
	scored := make([]models.Citation, 0, len(citations))
	for _, c := range citations {
		if c.Score > 0 {
			scored = append(scored, c)
		}
	}
	if len(scored) == 0 {
		return 0
	}
	sort.Slice(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })

	n := 6
	if len(scored) < n {
		n = len(scored)
	}

	var sum float64
	for _, c := range scored[:n] {
		sum += c.Score
	}
	return sum / float64(n)
}

// AssessObjective implements spec §4.4's objective-completion heuristic.
func AssessObjective(query string, citations []models.Citation, allProvidersFailed bool) (models.ObjectiveStatus, string, float64, float64) {
	if allProvidersFailed {
		return models.ObjectiveBlocked, "conductor", 0, 0
	}
	if len(citations) == 0 {
		return models.ObjectiveIncomplete, "terminal", 0, 0
	}

	coverage := coverageRatio(tokenizeQuery(query), citations)
	avgScore := averageTopScore(citations)

	if coverage < 0.35 || avgScore < 0.35 {
		return models.ObjectiveIncomplete, "terminal", coverage, avgScore
	}
	return models.ObjectiveComplete, "", coverage, avgScore
}
