package agent

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/fctr-id/okta-ai-agent/internal/okta"
	"github.com/fctr-id/okta-ai-agent/internal/sse"
	"github.com/fctr-id/okta-ai-agent/runtime/agent/model"
	"github.com/fctr-id/okta-ai-agent/runtime/agent/tools"
	"github.com/stretchr/testify/require"
)

// scriptedClient returns one canned *model.Response per call, in order.
type scriptedClient struct {
	responses []*model.Response
	calls     int
}

func (c *scriptedClient) Complete(ctx context.Context, req *model.Request) (*model.Response, error) {
	r := c.responses[c.calls]
	c.calls++
	return r, nil
}

func (c *scriptedClient) Stream(ctx context.Context, req *model.Request) (model.Streamer, error) {
	return nil, nil
}

func finalResponse(text string) *model.Response {
	return &model.Response{Content: []model.Message{{
		Role:  model.ConversationRoleAssistant,
		Parts: []model.Part{model.TextPart{Text: text}},
	}}}
}

// validFinal is a terminal turn in the display_hint/columns/rows shape that
// deliverFinalAnswer requires before it emits COMPLETE.
const validFinal = `{"display_hint":"table","columns":[{"name":"id"}],"rows":[]}`

func toolCallResponse(name tools.Ident, args map[string]any) *model.Response {
	payload, _ := json.Marshal(args)
	return &model.Response{
		ToolCalls: []model.ToolCall{{Name: name, Payload: payload, ID: "call-1"}},
	}
}

func collectEvents(t *testing.T, sink *sse.ChannelSink) []sse.Event {
	t.Helper()
	var out []sse.Event
	for e := range sink.Events() {
		out = append(out, e)
	}
	return out
}

func TestRunEndsWithoutToolCalls(t *testing.T) {
	client := &scriptedClient{responses: []*model.Response{finalResponse(validFinal)}}
	sess := NewSession("s1")
	sink := sse.NewChannelSink(16)

	done := make(chan struct{})
	go func() {
		Run(context.Background(), RunOptions{Model: client}, sess, sink)
		_ = sink.Close(context.Background())
		close(done)
	}()
	<-done

	events := collectEvents(t, sink)
	var sawComplete bool
	for _, e := range events {
		if e.Type() == sse.EventComplete {
			sawComplete = true
		}
	}
	require.True(t, sawComplete)
}

func TestRunDispatchesLoadReferenceThenEnds(t *testing.T) {
	client := &scriptedClient{responses: []*model.Response{
		toolCallResponse(ToolLoadReference, nil),
		finalResponse(validFinal),
	}}
	sess := NewSession("s1")
	sink := sse.NewChannelSink(16)
	deps := Deps{Catalog: okta.NewStaticCatalog()}

	done := make(chan struct{})
	go func() {
		Run(context.Background(), RunOptions{Model: client, Deps: deps}, sess, sink)
		_ = sink.Close(context.Background())
		close(done)
	}()
	<-done

	events := collectEvents(t, sink)
	var sawToolCall, sawComplete bool
	for _, e := range events {
		switch e.Type() {
		case sse.EventToolCall:
			sawToolCall = true
		case sse.EventComplete:
			sawComplete = true
		}
	}
	require.True(t, sawToolCall)
	require.True(t, sawComplete)
	require.Equal(t, 1, sess.toolCallCount())
}

func TestRunUsageLimitExceededEndsSession(t *testing.T) {
	resp := toolCallResponse(ToolLoadReference, nil)
	client := &scriptedClient{responses: []*model.Response{resp, resp, resp}}
	sess := NewSession("s1")
	sink := sse.NewChannelSink(16)
	deps := Deps{Catalog: okta.NewStaticCatalog()}

	done := make(chan struct{})
	go func() {
		Run(context.Background(), RunOptions{Model: client, Deps: deps, UsageLimit: 1}, sess, sink)
		close(done)
	}()
	<-done

	events := collectEvents(t, sink)
	var sawError bool
	for _, e := range events {
		if e.Type() == sse.EventError {
			sawError = true
		}
	}
	require.True(t, sawError)
}

func TestRunCircuitBreakerTripsAfterRepeatedFailures(t *testing.T) {
	bad := toolCallResponse(ToolDescribeOperations, map[string]any{"names": []string{"no_such_op"}})
	client := &scriptedClient{responses: []*model.Response{bad, bad, bad}}
	sess := NewSession("s1")
	sink := sse.NewChannelSink(16)
	deps := Deps{Catalog: okta.NewStaticCatalog()}

	done := make(chan struct{})
	go func() {
		Run(context.Background(), RunOptions{Model: client, Deps: deps, UsageLimit: 100}, sess, sink)
		close(done)
	}()
	<-done

	events := collectEvents(t, sink)
	var sawError bool
	for _, e := range events {
		if e.Type() == sse.EventError {
			sawError = true
		}
	}
	require.True(t, sawError)
	require.True(t, sess.breakerTripped(ToolDescribeOperations))
}

func TestRunRejectsToolCallViolatingSchema(t *testing.T) {
	bad := toolCallResponse(ToolDescribeOperations, map[string]any{"names": "not-an-array"})
	client := &scriptedClient{responses: []*model.Response{bad, finalResponse(validFinal)}}
	sess := NewSession("s1")
	sink := sse.NewChannelSink(16)
	deps := Deps{Catalog: okta.NewStaticCatalog()}
	toolDefs := []*model.ToolDefinition{{
		Name: string(ToolDescribeOperations),
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"names": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
			},
			"required": []string{"names"},
		},
	}}

	done := make(chan struct{})
	go func() {
		Run(context.Background(), RunOptions{Model: client, Deps: deps, Tools: toolDefs, UsageLimit: 100}, sess, sink)
		_ = sink.Close(context.Background())
		close(done)
	}()
	<-done

	events := collectEvents(t, sink)
	var sawComplete bool
	for _, e := range events {
		if e.Type() == sse.EventComplete {
			sawComplete = true
		}
	}
	require.True(t, sawComplete, "a recoverable schema violation should let the loop continue to a final answer")
	require.Equal(t, 0, sess.toolCallCount(), "a schema-rejected call never reaches dispatch")
}
