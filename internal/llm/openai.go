package llm

import (
	"context"
	"encoding/json"

	openai "github.com/sashabaranov/go-openai"

	"github.com/choir-run/choir/internal/errs"
	"github.com/choir-run/choir/pkg/models"
)

// OpenAIProvider is the secondary Provider implementation. The Registry
// routes only the cheap model hint to it (when no cheap model is
// configured); there is no automatic failover from Anthropic to OpenAI.
type OpenAIProvider struct {
	client       *openai.Client
	defaultModel string
}

// OpenAIConfig configures an OpenAIProvider.
type OpenAIConfig struct {
	APIKey       string
	BaseURL      string
	DefaultModel string
}

// NewOpenAIProvider builds an OpenAIProvider. Returns errs.ErrMissingAPIKey
// if cfg.APIKey is empty.
func NewOpenAIProvider(cfg OpenAIConfig) (*OpenAIProvider, error) {
	if cfg.APIKey == "" {
		return nil, errs.ErrMissingAPIKey
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	model := cfg.DefaultModel
	if model == "" {
		model = openai.GPT4o
	}

	return &OpenAIProvider{
		client:       openai.NewClientWithConfig(clientCfg),
		defaultModel: model,
	}, nil
}

func (p *OpenAIProvider) Name() string { return "openai" }

func (p *OpenAIProvider) resolveModel(model string) string {
	if model == "" {
		return p.defaultModel
	}
	return model
}

func toOpenAIMessages(messages []models.Message, systemContext string) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages)+1)
	if systemContext != "" {
		out = append(out, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: systemContext,
		})
	}

	for _, m := range messages {
		switch m.Role {
		case models.RoleTool:
			out = append(out, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    m.Content,
				ToolCallID: m.ToolCallID,
			})
		case models.RoleAssistant:
			out = append(out, openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleAssistant,
				Content: m.Content,
			})
		default:
			out = append(out, openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleUser,
				Content: m.Content,
			})
		}
	}
	return out
}

// toOpenAITools mirrors the teacher's fallback-to-empty-schema behavior: a
// missing (nil) tool schema degrades to an empty object rather than failing
// the whole request.
func toOpenAITools(tools []models.ToolSpec) []openai.Tool {
	out := make([]openai.Tool, len(tools))
	for i, t := range tools {
		var schema any = t.InputSchema
		if t.InputSchema == nil {
			schema = map[string]any{"type": "object", "properties": map[string]any{}}
		}
		out[i] = openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  schema,
			},
		}
	}
	return out
}

func (p *OpenAIProvider) Decide(ctx context.Context, req models.DecideRequest, model string) (*models.DecideResult, error) {
	chatReq := openai.ChatCompletionRequest{
		Model:    p.resolveModel(model),
		Messages: toOpenAIMessages(req.Messages, req.SystemContext),
	}
	if len(req.Tools) > 0 {
		chatReq.Tools = toOpenAITools(req.Tools)
	}

	resp, err := p.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return nil, errs.ErrProviderRequest
	}
	if len(resp.Choices) == 0 {
		return nil, errs.ErrProviderParse
	}

	choice := resp.Choices[0]
	result := &models.DecideResult{Message: choice.Message.Content}
	for _, tc := range choice.Message.ToolCalls {
		var args map[string]any
		if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
			return nil, errs.ErrProviderParse
		}
		result.ToolCalls = append(result.ToolCalls, models.ToolCall{
			ID:   tc.ID,
			Name: tc.Function.Name,
			Args: args,
		})
	}

	if resp.Usage.TotalTokens != 0 {
		result.Usage = &models.TokenUsage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
			TotalTokens:  resp.Usage.TotalTokens,
		}
	}

	return result, nil
}

func (p *OpenAIProvider) Call(ctx context.Context, prompt, systemPrompt, model string) (*models.LlmCallResult, error) {
	result, err := p.Decide(ctx, models.DecideRequest{
		Messages:      []models.Message{{Role: models.RoleUser, Content: prompt}},
		SystemContext: systemPrompt,
	}, model)
	if err != nil {
		return nil, err
	}
	return &models.LlmCallResult{Output: result.Message, Usage: result.Usage}, nil
}
