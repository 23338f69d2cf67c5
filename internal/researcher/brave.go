package researcher

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/choir-run/choir/internal/errs"
	"github.com/choir-run/choir/pkg/models"
)

const braveEndpoint = "https://api.search.brave.com/res/v1/web/search"

// BraveProvider queries the Brave Search API, selected via BRAVE_API_KEY.
type BraveProvider struct {
	apiKey string
	client *Client
}

// NewBraveProvider builds a BraveProvider. Returns errs.ErrMissingAPIKey if
// apiKey is empty.
func NewBraveProvider(apiKey string, client *Client) (*BraveProvider, error) {
	if apiKey == "" {
		return nil, errs.ErrMissingAPIKey
	}
	return &BraveProvider{apiKey: apiKey, client: client}, nil
}

func (p *BraveProvider) Name() string { return "brave" }

type braveResponse struct {
	Web struct {
		Results []struct {
			Title       string `json:"title"`
			URL         string `json:"url"`
			Description string `json:"description"`
			Age         string `json:"age"`
		} `json:"results"`
	} `json:"web"`
}

func (p *BraveProvider) Search(ctx context.Context, params SearchParams) ([]models.Citation, error) {
	searchURL, err := url.Parse(braveEndpoint)
	if err != nil {
		return nil, err
	}

	maxResults := params.MaxResults
	if maxResults <= 0 {
		maxResults = 10
	}

	query := url.Values{}
	query.Set("q", params.Query)
	query.Set("count", strconv.Itoa(maxResults))
	searchURL.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Subscription-Token", p.apiKey)

	resp, err := p.client.Do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("brave: %w", err)
	}
	defer resp.Body.Close()

	var parsed braveResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("brave: decode response: %w", err)
	}

	citations := make([]models.Citation, 0, len(parsed.Web.Results))
	for i, r := range parsed.Web.Results {
		citations = append(citations, models.Citation{
			ID:          fmt.Sprintf("brave-%d", i),
			Provider:    "brave",
			Title:       r.Title,
			URL:         r.URL,
			Snippet:     r.Description,
			PublishedAt: r.Age,
		})
	}
	return citations, nil
}
