package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	openai "github.com/sashabaranov/go-openai"

	"github.com/choir-run/choir/pkg/models"
)

func TestToOpenAIMessages_PrependsSystemContext(t *testing.T) {
	msgs := toOpenAIMessages([]models.Message{
		{Role: models.RoleUser, Content: "hello"},
		{Role: models.RoleAssistant, Content: "hi"},
		{Role: models.RoleTool, Content: "42", ToolCallID: "call_1"},
	}, "be concise")

	assert.Len(t, msgs, 4)
	assert.Equal(t, openai.ChatMessageRoleSystem, msgs[0].Role)
	assert.Equal(t, "be concise", msgs[0].Content)
	assert.Equal(t, openai.ChatMessageRoleUser, msgs[1].Role)
	assert.Equal(t, openai.ChatMessageRoleAssistant, msgs[2].Role)
	assert.Equal(t, openai.ChatMessageRoleTool, msgs[3].Role)
	assert.Equal(t, "call_1", msgs[3].ToolCallID)
}

func TestToOpenAIMessages_NoSystemContext(t *testing.T) {
	msgs := toOpenAIMessages([]models.Message{{Role: models.RoleUser, Content: "hi"}}, "")
	assert.Len(t, msgs, 1)
	assert.Equal(t, openai.ChatMessageRoleUser, msgs[0].Role)
}

func TestToOpenAITools_CarriesSchemaThrough(t *testing.T) {
	tools := toOpenAITools([]models.ToolSpec{
		{
			Name:        "search",
			Description: "search the web",
			InputSchema: map[string]any{"type": "object", "properties": map[string]any{"q": map[string]any{"type": "string"}}},
		},
	})

	assert.Len(t, tools, 1)
	assert.Equal(t, openai.ToolTypeFunction, tools[0].Type)
	assert.Equal(t, "search", tools[0].Function.Name)
	assert.Equal(t, "search the web", tools[0].Function.Description)
}
