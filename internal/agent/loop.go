package agent

import (
	"context"
	"encoding/json"
	"time"

	"github.com/fctr-id/okta-ai-agent/internal/sse"
	"github.com/fctr-id/okta-ai-agent/internal/telemetry"
	"github.com/fctr-id/okta-ai-agent/internal/toolerrors"
	"github.com/fctr-id/okta-ai-agent/runtime/agent/model"
)

// DefaultUsageLimit is the default ceiling on total tool invocations per
// session before the loop ends the turn with a usage_limit_exceeded
// error, absent an explicit override.
const DefaultUsageLimit = 25

// RunOptions configures one invocation of Run.
type RunOptions struct {
	Deps       Deps
	Model      model.Client
	System     string
	Tools      []*model.ToolDefinition
	UsageLimit int
	// BatchThreshold is the row count above which the terminal result is
	// delivered as METADATA+BATCH...+COMPLETE rather than a single
	// COMPLETE. Zero uses sse.DefaultBatchThreshold.
	BatchThreshold int
	// Tracer spans one ReAct step per Start call. Nil uses telemetry.NewNoopTracer.
	Tracer telemetry.Tracer
	// Metrics counts tool dispatches. Nil uses telemetry.NewNoopMetrics.
	Metrics telemetry.Metrics
}

func (o RunOptions) tracer() telemetry.Tracer {
	if o.Tracer != nil {
		return o.Tracer
	}
	return telemetry.NewNoopTracer()
}

func (o RunOptions) metrics() telemetry.Metrics {
	if o.Metrics != nil {
		return o.Metrics
	}
	return telemetry.NewNoopMetrics()
}

// Run drives the ReAct tool-calling loop for one user question: it
// alternates model invocations with tool dispatch until the model stops
// requesting tools, emitting one sse.Event per step transition. The loop
// owns the transcript; callers seed sess.Transcript with the user's
// question before calling Run.
func Run(ctx context.Context, opts RunOptions, sess *Session, sink sse.Sink) {
	limit := opts.UsageLimit
	if limit <= 0 {
		limit = DefaultUsageLimit
	}
	tracer := opts.tracer()
	metrics := opts.metrics()

	for step := 0; ; step++ {
		if sess.Cancelled() {
			emitError(ctx, sink, "session cancelled")
			return
		}

		stepCtx, span := tracer.Start(ctx, "agent.step")
		span.AddEvent("step.start", "step", step)

		_ = sink.Send(stepCtx, sse.NewStepStart(step, "reasoning", ""))

		req := &model.Request{
			Messages: sess.Transcript,
			Tools:    opts.Tools,
		}
		if opts.System != "" {
			req.Messages = append([]*model.Message{{
				Role:  model.ConversationRoleSystem,
				Parts: []model.Part{model.TextPart{Text: opts.System}},
			}}, req.Messages...)
		}

		resp, err := opts.Model.Complete(stepCtx, req)
		if err != nil {
			span.RecordError(err)
			span.End()
			emitError(ctx, sink, err.Error())
			return
		}

		_ = sink.Send(stepCtx, sse.NewStepTokens(resp.Usage.InputTokens, resp.Usage.OutputTokens, 1))

		for i := range resp.Content {
			sess.Transcript = append(sess.Transcript, &resp.Content[i])
		}

		if len(resp.ToolCalls) == 0 {
			finalText := lastText(resp.Content)
			_ = sink.Send(stepCtx, sse.NewStepEnd(step, finalText, ""))
			span.End()
			deliverFinalAnswer(ctx, opts, sess, sink, finalText)
			return
		}

		resultParts := make([]model.Part, 0, len(resp.ToolCalls))
		fatal := false
		for _, call := range resp.ToolCalls {
			_ = sink.Send(stepCtx, sse.NewToolCall(string(call.Name), ""))
			metrics.IncCounter("agent.tool_call", 1, "tool", string(call.Name))

			var result any
			var terr *toolerrors.ToolError
			if terr = validateToolPayload(opts.Tools, call.Name, call.Payload); terr == nil {
				var input any
				_ = json.Unmarshal(call.Payload, &input)
				result, terr = dispatch(stepCtx, opts.Deps, sess, call.Name, input, limit)
			}
			part := toolResultPart(call.ID, result, terr)
			resultParts = append(resultParts, part)

			if terr != nil {
				metrics.IncCounter("agent.tool_error", 1, "tool", string(call.Name), "kind", string(terr.Kind))
				emitRecoverableOrFatal(stepCtx, sink, step, terr)
				if !terr.Recoverable() {
					fatal = true
					break
				}
			}
		}

		sess.Transcript = append(sess.Transcript, &model.Message{
			Role:  model.ConversationRoleUser,
			Parts: resultParts,
		})

		_ = sink.Send(stepCtx, sse.NewStepEnd(step, "", "tool results appended"))
		span.End()
		if fatal {
			return
		}
	}
}

// deliverFinalAnswer parses the model's last turn as the required
// display_hint/columns/rows document and delivers it through a Batcher,
// splitting into METADATA+BATCH...+COMPLETE once the row count crosses
// the configured threshold. A model that failed to emit the required
// shape ends the session with a validation_failed ERROR event, per the
// output contract in §4.1: free text alone is not a valid terminal
// response.
func deliverFinalAnswer(ctx context.Context, opts RunOptions, sess *Session, sink sse.Sink, finalText string) {
	fa, terr := parseFinalAnswer(finalText)
	if terr != nil {
		emitError(ctx, sink, terr.Error())
		return
	}

	promotedAt := time.Time{}
	if opts.Deps.Snapshot != nil {
		promotedAt = opts.Deps.Snapshot.CurrentPromotedAt()
	}

	batcher := sse.NewBatcher(opts.BatchThreshold, 0)
	complete := sse.Complete{
		DisplayHint: fa.DisplayHint,
		Columns:     fa.Columns,
		DataSource:  sess.DataSource(),
		SnapshotAt:  promotedAt,
	}
	_ = batcher.Deliver(ctx, sink, fa.Rows, complete)
	_ = sink.Close(ctx)
}

func toolResultPart(toolUseID string, result any, terr *toolerrors.ToolError) model.Part {
	if terr != nil {
		return model.ToolResultPart{
			ToolUseID: toolUseID,
			Content:   map[string]any{"error": terr.Message, "kind": string(terr.Kind), "retry_hint": terr.RetryHint},
			IsError:   true,
		}
	}
	return model.ToolResultPart{ToolUseID: toolUseID, Content: result}
}

// emitRecoverableOrFatal surfaces a tool error on the stream. Recoverable
// kinds never terminate the session; the model sees the guidance in its
// next turn via the tool result. Fatal kinds additionally emit ERROR and
// the caller ends the loop.
func emitRecoverableOrFatal(ctx context.Context, sink sse.Sink, step int, terr *toolerrors.ToolError) {
	if terr.Kind == toolerrors.KindTransientUpstream {
		_ = sink.Send(ctx, sse.NewRateLimit(terr.WaitSeconds, terr.Message))
		return
	}
	if !terr.Recoverable() {
		emitError(ctx, sink, terr.Error())
	}
}

func emitError(ctx context.Context, sink sse.Sink, message string) {
	_ = sink.Send(ctx, sse.NewError(message))
	_ = sink.Close(ctx)
}

func lastText(msgs []model.Message) string {
	for i := len(msgs) - 1; i >= 0; i-- {
		for _, p := range msgs[i].Parts {
			if tp, ok := p.(model.TextPart); ok {
				return tp.Text
			}
		}
	}
	return ""
}
