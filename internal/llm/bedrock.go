package llm

import (
	"context"
	"encoding/json"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/document"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	"github.com/choir-run/choir/internal/errs"
	"github.com/choir-run/choir/pkg/models"
)

// BedrockProvider is a third LLM option, reached via the Converse API so the
// same provider surface covers any Bedrock-hosted model regardless of
// vendor. Selected by explicit ModelHint or configuration, never a default.
type BedrockProvider struct {
	client       *bedrockruntime.Client
	defaultModel string
}

// BedrockConfig configures a BedrockProvider.
type BedrockConfig struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	DefaultModel    string
}

// NewBedrockProvider builds a BedrockProvider, resolving AWS credentials
// from explicit config or the default credential chain (env, IAM role).
func NewBedrockProvider(ctx context.Context, cfg BedrockConfig) (*BedrockProvider, error) {
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	model := cfg.DefaultModel
	if model == "" {
		model = "anthropic.claude-3-sonnet-20240229-v1:0"
	}

	var awsCfg awssdk.Config
	var err error
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		awsCfg, err = awsconfig.LoadDefaultConfig(ctx,
			awsconfig.WithRegion(region),
			awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
				cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken,
			)),
		)
	} else {
		awsCfg, err = awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	}
	if err != nil {
		return nil, err
	}

	return &BedrockProvider{
		client:       bedrockruntime.NewFromConfig(awsCfg),
		defaultModel: model,
	}, nil
}

func (p *BedrockProvider) Name() string { return "bedrock" }

func (p *BedrockProvider) resolveModel(model string) string {
	if model == "" {
		return p.defaultModel
	}
	return model
}

func toBedrockMessages(messages []models.Message) []types.Message {
	out := make([]types.Message, 0, len(messages))
	for _, m := range messages {
		var content []types.ContentBlock

		switch m.Role {
		case models.RoleTool:
			content = append(content, &types.ContentBlockMemberToolResult{
				Value: types.ToolResultBlock{
					ToolUseId: awssdk.String(m.ToolCallID),
					Content: []types.ToolResultContentBlock{
						&types.ToolResultContentBlockMemberText{Value: m.Content},
					},
				},
			})
		default:
			if m.Content != "" {
				content = append(content, &types.ContentBlockMemberText{Value: m.Content})
			}
		}

		if len(content) == 0 {
			continue
		}

		role := types.ConversationRoleUser
		if m.Role == models.RoleAssistant {
			role = types.ConversationRoleAssistant
		}
		out = append(out, types.Message{Role: role, Content: content})
	}
	return out
}

func toBedrockToolConfig(tools []models.ToolSpec) *types.ToolConfiguration {
	bedrockTools := make([]types.Tool, len(tools))
	for i, t := range tools {
		schema := any(t.InputSchema)
		if schema == nil {
			schema = map[string]any{"type": "object", "properties": map[string]any{}}
		}
		bedrockTools[i] = &types.ToolMemberToolSpec{
			Value: types.ToolSpecification{
				Name:        awssdk.String(t.Name),
				Description: awssdk.String(t.Description),
				InputSchema: &types.ToolInputSchemaMemberJson{Value: document.NewLazyDocument(schema)},
			},
		}
	}
	return &types.ToolConfiguration{Tools: bedrockTools}
}

func (p *BedrockProvider) Decide(ctx context.Context, req models.DecideRequest, model string) (*models.DecideResult, error) {
	in := &bedrockruntime.ConverseInput{
		ModelId:  awssdk.String(p.resolveModel(model)),
		Messages: toBedrockMessages(req.Messages),
	}
	if req.SystemContext != "" {
		in.System = []types.SystemContentBlock{&types.SystemContentBlockMemberText{Value: req.SystemContext}}
	}
	if len(req.Tools) > 0 {
		in.ToolConfig = toBedrockToolConfig(req.Tools)
	}

	out, err := p.client.Converse(ctx, in)
	if err != nil {
		return nil, errs.ErrProviderRequest
	}

	msg, ok := out.Output.(*types.ConverseOutputMemberMessage)
	if !ok {
		return nil, errs.ErrProviderParse
	}

	result := &models.DecideResult{}
	for _, block := range msg.Value.Content {
		switch variant := block.(type) {
		case *types.ContentBlockMemberText:
			result.Message += variant.Value
		case *types.ContentBlockMemberToolUse:
			var args map[string]any
			raw, err := variant.Value.Input.MarshalSmithyDocument()
			if err == nil {
				_ = json.Unmarshal(raw, &args)
			}
			result.ToolCalls = append(result.ToolCalls, models.ToolCall{
				ID:   awssdk.ToString(variant.Value.ToolUseId),
				Name: awssdk.ToString(variant.Value.Name),
				Args: args,
			})
		}
	}

	if out.Usage != nil {
		inTok := int(awssdk.ToInt32(out.Usage.InputTokens))
		outTok := int(awssdk.ToInt32(out.Usage.OutputTokens))
		result.Usage = &models.TokenUsage{
			InputTokens:  inTok,
			OutputTokens: outTok,
			TotalTokens:  inTok + outTok,
		}
	}

	return result, nil
}

func (p *BedrockProvider) Call(ctx context.Context, prompt, systemPrompt, model string) (*models.LlmCallResult, error) {
	result, err := p.Decide(ctx, models.DecideRequest{
		Messages:      []models.Message{{Role: models.RoleUser, Content: prompt}},
		SystemContext: systemPrompt,
	}, model)
	if err != nil {
		return nil, err
	}
	return &models.LlmCallResult{Output: result.Message, Usage: result.Usage}, nil
}
