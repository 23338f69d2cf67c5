package llm

import (
	"context"
	"fmt"

	"github.com/choir-run/choir/internal/errs"
	"github.com/choir-run/choir/pkg/models"
)

// modelRoute pairs a Provider with the concrete model string to request
// from it for one ModelHint.
type modelRoute struct {
	provider Provider
	model    string
}

// Registry resolves a ModelHint (fast/cheap/strong/opus) to a concrete
// Provider+model pair, per spec §4.3.2's model_hint contract. Anthropic
// serves fast/strong by default; OpenAI, when configured, serves the cheap
// hint if no cheap model is set (there is no failover between providers);
// Bedrock, when configured, serves the opus hint so a single heavyweight
// model runs off-path from the primary provider's rate limits.
type Registry struct {
	routes  map[models.ModelHint]modelRoute
	primary Provider
}

// RegistryConfig names the concrete model string each hint resolves to on
// its backing provider. Empty values fall back to the provider's own
// default model.
type RegistryConfig struct {
	FastModel   string
	CheapModel  string
	StrongModel string
	OpusModel   string
}

// NewRegistry builds a Registry. anthropicP is required (the primary
// provider and the hard fallback for any hint with no dedicated route);
// openaiP and bedrockP may be nil when those providers are unconfigured.
func NewRegistry(anthropicP *AnthropicProvider, openaiP *OpenAIProvider, bedrockP *BedrockProvider, cfg RegistryConfig) (*Registry, error) {
	if anthropicP == nil {
		return nil, errs.ErrMissingAPIKey
	}

	routes := map[models.ModelHint]modelRoute{
		models.ModelFast:   {provider: anthropicP, model: cfg.FastModel},
		models.ModelCheap:  {provider: anthropicP, model: cfg.CheapModel},
		models.ModelStrong: {provider: anthropicP, model: cfg.StrongModel},
	}

	if openaiP != nil {
		if cfg.CheapModel == "" {
			routes[models.ModelCheap] = modelRoute{provider: openaiP, model: cfg.CheapModel}
		}
	}

	if bedrockP != nil {
		routes[models.ModelOpus] = modelRoute{provider: bedrockP, model: cfg.OpusModel}
	} else {
		routes[models.ModelOpus] = modelRoute{provider: anthropicP, model: cfg.OpusModel}
	}

	return &Registry{routes: routes, primary: anthropicP}, nil
}

// Resolve returns the Provider and concrete model string for hint. An
// empty hint resolves to the primary provider's default model.
func (r *Registry) Resolve(hint models.ModelHint) (Provider, string, error) {
	if hint == "" {
		return r.primary, "", nil
	}

	route, ok := r.routes[hint]
	if !ok {
		return nil, "", fmt.Errorf("%w: unknown model_hint %q", errs.ErrValidation, hint)
	}
	return route.provider, route.model, nil
}

// Decide resolves hint and delegates to the chosen provider's Decide.
func (r *Registry) Decide(ctx context.Context, req models.DecideRequest, hint models.ModelHint) (*models.DecideResult, error) {
	provider, model, err := r.Resolve(hint)
	if err != nil {
		return nil, err
	}
	return provider.Decide(ctx, req, model)
}

// Call resolves hint and delegates to the chosen provider's Call.
func (r *Registry) Call(ctx context.Context, prompt, systemPrompt string, hint models.ModelHint) (*models.LlmCallResult, error) {
	provider, model, err := r.Resolve(hint)
	if err != nil {
		return nil, err
	}
	return provider.Call(ctx, prompt, systemPrompt, model)
}
