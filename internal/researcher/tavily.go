package researcher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/choir-run/choir/internal/errs"
	"github.com/choir-run/choir/pkg/models"
)

const tavilyEndpoint = "https://api.tavily.com/search"

// TavilyProvider queries the Tavily search API, selected via TAVILY_API_KEY.
type TavilyProvider struct {
	apiKey string
	client *Client
}

// NewTavilyProvider builds a TavilyProvider. Returns errs.ErrMissingAPIKey
// if apiKey is empty.
func NewTavilyProvider(apiKey string, client *Client) (*TavilyProvider, error) {
	if apiKey == "" {
		return nil, errs.ErrMissingAPIKey
	}
	return &TavilyProvider{apiKey: apiKey, client: client}, nil
}

func (p *TavilyProvider) Name() string { return "tavily" }

type tavilyRequest struct {
	APIKey         string   `json:"api_key"`
	Query          string   `json:"query"`
	MaxResults     int      `json:"max_results,omitempty"`
	TimeRange      string   `json:"time_range,omitempty"`
	IncludeDomains []string `json:"include_domains,omitempty"`
	ExcludeDomains []string `json:"exclude_domains,omitempty"`
}

type tavilyResponse struct {
	Results []struct {
		Title         string  `json:"title"`
		URL           string  `json:"url"`
		Content       string  `json:"content"`
		Score         float64 `json:"score"`
		PublishedDate string  `json:"published_date"`
	} `json:"results"`
}

func (p *TavilyProvider) Search(ctx context.Context, params SearchParams) ([]models.Citation, error) {
	body, err := json.Marshal(tavilyRequest{
		APIKey:         p.apiKey,
		Query:          params.Query,
		MaxResults:     params.MaxResults,
		TimeRange:      params.TimeRange,
		IncludeDomains: params.IncludeDomains,
		ExcludeDomains: params.ExcludeDomains,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tavilyEndpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("tavily: %w", err)
	}
	defer resp.Body.Close()

	var parsed tavilyResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("tavily: decode response: %w", err)
	}

	citations := make([]models.Citation, 0, len(parsed.Results))
	for i, r := range parsed.Results {
		citations = append(citations, models.Citation{
			ID:          fmt.Sprintf("tavily-%d", i),
			Provider:    "tavily",
			Title:       r.Title,
			URL:         r.URL,
			Snippet:     r.Content,
			PublishedAt: r.PublishedDate,
			Score:       r.Score,
		})
	}
	return citations, nil
}
