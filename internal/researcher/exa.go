package researcher

import (
	"context"

	"github.com/choir-run/choir/internal/errs"
	"github.com/choir-run/choir/pkg/models"
)

// ExaProvider is the third provider in the set; wired as a stub since no
// reference Exa client exists in the corpus this module was built from.
// Search always returns errs.ErrMissingAPIKey when apiKey is empty, matching
// the other providers' behavior rather than silently no-opping.
type ExaProvider struct {
	apiKey string
}

// NewExaProvider builds an ExaProvider.
func NewExaProvider(apiKey string) *ExaProvider {
	return &ExaProvider{apiKey: apiKey}
}

func (p *ExaProvider) Name() string { return "exa" }

func (p *ExaProvider) Search(ctx context.Context, params SearchParams) ([]models.Citation, error) {
	if p.apiKey == "" {
		return nil, errs.ErrMissingAPIKey
	}
	return nil, errs.ErrProviderRequest
}
