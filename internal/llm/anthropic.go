package llm

import (
	"context"
	"encoding/json"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/choir-run/choir/internal/errs"
	"github.com/choir-run/choir/pkg/models"
)

// AnthropicProvider is the primary Provider implementation, backed by
// Anthropic's Claude API.
type AnthropicProvider struct {
	client       anthropic.Client
	defaultModel string
}

// AnthropicConfig configures an AnthropicProvider.
type AnthropicConfig struct {
	APIKey       string
	BaseURL      string
	DefaultModel string
}

// NewAnthropicProvider builds an AnthropicProvider. Returns
// errs.ErrMissingAPIKey if cfg.APIKey is empty.
func NewAnthropicProvider(cfg AnthropicConfig) (*AnthropicProvider, error) {
	if cfg.APIKey == "" {
		return nil, errs.ErrMissingAPIKey
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	model := cfg.DefaultModel
	if model == "" {
		model = "claude-sonnet-4-20250514"
	}

	return &AnthropicProvider{
		client:       anthropic.NewClient(opts...),
		defaultModel: model,
	}, nil
}

func (p *AnthropicProvider) Name() string { return "anthropic" }

func (p *AnthropicProvider) resolveModel(model string) string {
	if model == "" {
		return p.defaultModel
	}
	return model
}

func toAnthropicMessages(messages []models.Message) []anthropic.MessageParam {
	out := make([]anthropic.MessageParam, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case models.RoleAssistant:
			out = append(out, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		case models.RoleTool:
			out = append(out, anthropic.NewUserMessage(anthropic.NewToolResultBlock(m.ToolCallID, m.Content, false)))
		default:
			out = append(out, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		}
	}
	return out
}

// toAnthropicTools mirrors the conversion the SDK itself expects: marshal
// the JSON-schema map back to bytes and unmarshal into the SDK's own
// ToolInputSchemaParam rather than hand-mapping individual fields.
func toAnthropicTools(tools []models.ToolSpec) ([]anthropic.ToolUnionParam, error) {
	out := make([]anthropic.ToolUnionParam, 0, len(tools))
	for _, t := range tools {
		raw, err := json.Marshal(t.InputSchema)
		if err != nil {
			return nil, err
		}
		var schema anthropic.ToolInputSchemaParam
		if err := json.Unmarshal(raw, &schema); err != nil {
			return nil, err
		}

		toolParam := anthropic.ToolUnionParamOfTool(schema, t.Name)
		if toolParam.OfTool == nil {
			return nil, errs.ErrProviderRequest
		}
		toolParam.OfTool.Description = anthropic.String(t.Description)
		out = append(out, toolParam)
	}
	return out, nil
}

func (p *AnthropicProvider) Decide(ctx context.Context, req models.DecideRequest, model string) (*models.DecideResult, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(p.resolveModel(model)),
		MaxTokens: 4096,
		Messages:  toAnthropicMessages(req.Messages),
	}
	if req.SystemContext != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.SystemContext}}
	}
	if len(req.Tools) > 0 {
		tools, err := toAnthropicTools(req.Tools)
		if err != nil {
			return nil, errs.ErrProviderRequest
		}
		params.Tools = tools
	}

	msg, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return nil, errs.ErrProviderRequest
	}

	result := &models.DecideResult{}
	for _, block := range msg.Content {
		switch variant := block.AsAny().(type) {
		case anthropic.TextBlock:
			result.Message += variant.Text
		case anthropic.ToolUseBlock:
			args, _ := variant.Input.(map[string]any)
			result.ToolCalls = append(result.ToolCalls, models.ToolCall{
				ID:   variant.ID,
				Name: variant.Name,
				Args: args,
			})
		}
	}

	if msg.Usage.InputTokens != 0 || msg.Usage.OutputTokens != 0 {
		result.Usage = &models.TokenUsage{
			InputTokens:  int(msg.Usage.InputTokens),
			OutputTokens: int(msg.Usage.OutputTokens),
			TotalTokens:  int(msg.Usage.InputTokens + msg.Usage.OutputTokens),
		}
	}

	return result, nil
}

func (p *AnthropicProvider) Call(ctx context.Context, prompt, systemPrompt, model string) (*models.LlmCallResult, error) {
	result, err := p.Decide(ctx, models.DecideRequest{
		Messages:      []models.Message{{Role: models.RoleUser, Content: prompt}},
		SystemContext: systemPrompt,
	}, model)
	if err != nil {
		return nil, err
	}
	return &models.LlmCallResult{Output: result.Message, Usage: result.Usage}, nil
}
