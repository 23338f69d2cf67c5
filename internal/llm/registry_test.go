package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/choir-run/choir/internal/errs"
	"github.com/choir-run/choir/pkg/models"
)

func TestNewRegistry_RequiresAnthropicProvider(t *testing.T) {
	_, err := NewRegistry(nil, nil, nil, RegistryConfig{})
	require.ErrorIs(t, err, errs.ErrMissingAPIKey)
}

func TestRegistry_ResolveEmptyHintUsesPrimary(t *testing.T) {
	anthropic, err := NewAnthropicProvider(AnthropicConfig{APIKey: "test-key"})
	require.NoError(t, err)

	reg, err := NewRegistry(anthropic, nil, nil, RegistryConfig{})
	require.NoError(t, err)

	provider, model, err := reg.Resolve("")
	require.NoError(t, err)
	assert.Equal(t, "anthropic", provider.Name())
	assert.Empty(t, model)
}

func TestRegistry_ResolveOpusFallsBackToAnthropicWithoutBedrock(t *testing.T) {
	anthropic, err := NewAnthropicProvider(AnthropicConfig{APIKey: "test-key"})
	require.NoError(t, err)

	reg, err := NewRegistry(anthropic, nil, nil, RegistryConfig{OpusModel: "claude-opus"})
	require.NoError(t, err)

	provider, model, err := reg.Resolve(models.ModelOpus)
	require.NoError(t, err)
	assert.Equal(t, "anthropic", provider.Name())
	assert.Equal(t, "claude-opus", model)
}

func TestRegistry_ResolveUnknownHint(t *testing.T) {
	anthropic, err := NewAnthropicProvider(AnthropicConfig{APIKey: "test-key"})
	require.NoError(t, err)

	reg, err := NewRegistry(anthropic, nil, nil, RegistryConfig{})
	require.NoError(t, err)

	_, _, err = reg.Resolve(models.ModelHint("bogus"))
	require.ErrorIs(t, err, errs.ErrValidation)
}

func TestNewAnthropicProvider_RequiresAPIKey(t *testing.T) {
	_, err := NewAnthropicProvider(AnthropicConfig{})
	require.ErrorIs(t, err, errs.ErrMissingAPIKey)
}

func TestNewOpenAIProvider_RequiresAPIKey(t *testing.T) {
	_, err := NewOpenAIProvider(OpenAIConfig{})
	require.ErrorIs(t, err, errs.ErrMissingAPIKey)
}
