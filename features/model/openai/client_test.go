package openai_test

import (
	"context"
	"testing"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
	"github.com/stretchr/testify/require"

	openaimodel "github.com/fctr-id/okta-ai-agent/features/model/openai"
	"github.com/fctr-id/okta-ai-agent/runtime/agent/model"
	"github.com/fctr-id/okta-ai-agent/runtime/agent/tools"
)

type mockChatClient struct {
	response *openai.ChatCompletion
	captured openai.ChatCompletionNewParams
}

func (m *mockChatClient) New(_ context.Context, body openai.ChatCompletionNewParams, _ ...option.RequestOption) (*openai.ChatCompletion, error) {
	m.captured = body
	return m.response, nil
}

func TestClientComplete(t *testing.T) {
	mock := &mockChatClient{
		response: &openai.ChatCompletion{
			Choices: []openai.ChatCompletionChoice{{
				FinishReason: "stop",
				Message: openai.ChatCompletionMessage{
					Content: "hi there",
					ToolCalls: []openai.ChatCompletionMessageToolCall{{
						ID: "call-1",
						Function: openai.ChatCompletionMessageToolCallFunction{
							Name:      "lookup",
							Arguments: `{"query":"docs"}`,
						},
					}},
				},
			}},
			Usage: openai.CompletionUsage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
		},
	}
	client, err := openaimodel.New(openaimodel.Options{Client: mock, DefaultModel: "gpt-4o"})
	require.NoError(t, err)

	resp, err := client.Complete(context.Background(), &model.Request{
		Messages: []*model.Message{{Role: model.ConversationRoleUser, Parts: []model.Part{model.TextPart{Text: "ping"}}}},
		Tools: []*model.ToolDefinition{{
			Name:        "lookup",
			Description: "Search",
			InputSchema: map[string]any{"type": "object"},
		}},
	})
	require.NoError(t, err)
	require.Len(t, resp.Content, 1)

	found := false
	for _, p := range resp.Content[0].Parts {
		if tp, ok := p.(model.TextPart); ok && tp.Text == "hi there" {
			found = true
		}
	}
	require.True(t, found, "expected hi there text part")
	require.Equal(t, tools.Ident("lookup"), resp.ToolCalls[0].Name)
	require.JSONEq(t, `{"query":"docs"}`, string(resp.ToolCalls[0].Payload))
	require.Equal(t, "stop", resp.StopReason)
	require.Equal(t, 15, resp.Usage.TotalTokens)

	require.Equal(t, shared.ChatModel("gpt-4o"), mock.captured.Model)
	require.Len(t, mock.captured.Messages, 1)
	require.Len(t, mock.captured.Tools, 1)
	require.Equal(t, "lookup", mock.captured.Tools[0].Function.Name)
}

func TestClientRequiresDefaultModel(t *testing.T) {
	_, err := openaimodel.New(openaimodel.Options{Client: &mockChatClient{}})
	require.Error(t, err)
}

func TestClientRequiresMessages(t *testing.T) {
	client, err := openaimodel.New(openaimodel.Options{Client: &mockChatClient{}, DefaultModel: "gpt-4o"})
	require.NoError(t, err)
	_, err = client.Complete(context.Background(), &model.Request{})
	require.Error(t, err)
}
