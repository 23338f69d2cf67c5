// Package researcher implements the Researcher Worker: given an objective
// or explicit query, it calls one or more web-search providers and returns
// ranked citations plus an objective-completion assessment.
package researcher

import (
	"context"

	"github.com/choir-run/choir/pkg/models"
)

// SearchParams is the abstract request shape every provider maps to its own
// wire format.
type SearchParams struct {
	Query          string
	MaxResults     int
	TimeRange      string
	IncludeDomains []string
	ExcludeDomains []string
}

// Provider is one web-search backend.
type Provider interface {
	Name() string
	Search(ctx context.Context, params SearchParams) ([]models.Citation, error)
}
