package agent

import (
	"context"
	"encoding/json"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/fctr-id/okta-ai-agent/internal/graphquery"
	"github.com/fctr-id/okta-ai-agent/internal/graphsnapshot"
	"github.com/fctr-id/okta-ai-agent/internal/okta"
	"github.com/fctr-id/okta-ai-agent/internal/sandbox"
	"github.com/fctr-id/okta-ai-agent/internal/toolerrors"
	"github.com/fctr-id/okta-ai-agent/runtime/agent/model"
	"github.com/fctr-id/okta-ai-agent/runtime/agent/tools"
)

// Tool identifiers the agent prompt is fixed against. These are the
// only names the loop ever dispatches.
const (
	ToolLoadReference      tools.Ident = "load_reference"
	ToolDescribeOperations tools.Ident = "describe_operations"
	ToolRunGraphQuery      tools.Ident = "run_graph_query"
	ToolProbeREST          tools.Ident = "probe_rest"
	ToolStoreReadResult    tools.Ident = "store_read_result"
	ToolGetDetailedEvents  tools.Ident = "get_detailed_event_types"
)

// Deps bundles the supporting components tool dispatch calls into. The
// loop constructs one per server, not per session.
type Deps struct {
	Snapshot     *graphsnapshot.Engine
	Catalog      okta.Catalog
	Sandbox      *sandbox.Executor
	TenantPolicy graphquery.TenantPolicy
	// EventCatalog answers get_detailed_event_types; kept separate from
	// Catalog since system log event types are not REST operations.
	EventCatalog EventTypeCatalog
}

// EventTypeCatalog answers the detailed-event-type lookup tool. A real
// deployment backs this with the same reference data the graph sync
// reads from; it is intentionally a narrow interface so a static or
// upstream-backed implementation can satisfy it interchangeably.
type EventTypeCatalog interface {
	DetailedEventTypes(ctx context.Context, category string) ([]string, error)
}

// dispatch runs one tool call declared by the model, enforcing the
// session's usage ceiling and per-tool circuit breaker before ever
// reaching the underlying package. It always returns a *toolerrors.ToolError
// rather than a bare error so the loop can apply the recoverable/fatal
// split uniformly.
func dispatch(ctx context.Context, deps Deps, sess *Session, name tools.Ident, input any, usageLimit int) (any, *toolerrors.ToolError) {
	if sess.Cancelled() {
		return nil, toolerrors.New(toolerrors.KindCancelled, "session cancelled")
	}
	if n := sess.recordToolCall(); usageLimit > 0 && n > usageLimit {
		return nil, toolerrors.Errorf(toolerrors.KindUsageLimitExceeded,
			"tool call budget of %d exhausted", usageLimit)
	}
	if sess.breakerTripped(name) {
		return nil, toolerrors.Errorf(toolerrors.KindCircuitOpen,
			"tool %q is disabled for the rest of this session after repeated failures", name)
	}

	result, terr := run(ctx, deps, sess, name, input)
	if terr != nil {
		if !terr.Recoverable() {
			// Fatal kinds (timeout, cancellation, usage limit, already-open
			// breaker) never count toward tripping the breaker again; they
			// end the session outright.
			return nil, terr
		}
		if justTripped := sess.recordToolFailure(name); justTripped {
			return nil, toolerrors.Errorf(toolerrors.KindCircuitOpen,
				"tool %q disabled after %d consecutive failures; last error: %s", name, breakerThreshold, terr.Message)
		}
		return nil, terr
	}
	sess.recordToolSuccess(name)
	return result, nil
}

func run(ctx context.Context, deps Deps, sess *Session, name tools.Ident, input any) (any, *toolerrors.ToolError) {
	switch name {
	case ToolLoadReference:
		names, err := deps.Catalog.Index(ctx)
		if err != nil {
			return nil, toolerrors.FromError(err)
		}
		return map[string]any{"operations": names}, nil

	case ToolDescribeOperations:
		args, terr := decodeArgs[describeOperationsArgs](input)
		if terr != nil {
			return nil, terr
		}
		ops, err := deps.Catalog.Describe(ctx, args.Names)
		if err != nil {
			return nil, toolerrors.FromError(err)
		}
		if len(ops) == 0 {
			return nil, toolerrors.Errorf(toolerrors.KindInvalidEndpoint,
				"none of the requested operation names are known: %v", args.Names)
		}
		return map[string]any{"operations": ops}, nil

	case ToolRunGraphQuery:
		args, terr := decodeArgs[runGraphQueryArgs](input)
		if terr != nil {
			return nil, terr
		}
		reader, err := deps.Snapshot.CurrentReader()
		if err != nil {
			return nil, toolerrors.Errorf(toolerrors.KindUnrecoverable, "open graph snapshot: %v", err)
		}
		result, qerr := graphquery.Run(reader, args.Query, deps.TenantPolicy)
		if qerr != nil {
			return nil, qerr
		}
		sess.markDataSource(true, false)
		entityIDs := extractEntityIDs(result)
		if args.StepID != "" {
			sess.Library.AppendRead(args.StepID, args.Query, entityIDs, result.Rows)
		}
		return map[string]any{"columns": result.Columns, "rows": result.Rows}, nil

	case ToolProbeREST:
		args, terr := decodeArgs[probeRESTArgs](input)
		if terr != nil {
			return nil, terr
		}
		res, serr := deps.Sandbox.Run(ctx, sess.ID, args.Source)
		if serr != nil {
			return nil, serr
		}
		sess.markDataSource(false, true)
		var decoded any
		if len(res.JSON) > 0 {
			if err := json.Unmarshal(res.JSON, &decoded); err != nil {
				return nil, toolerrors.Errorf(toolerrors.KindValidationFailed, "probe output was not valid JSON: %v", err)
			}
		}
		if args.StepID != "" {
			sess.Library.AppendRead(args.StepID, args.Source, extractEntityIDsFromAny(decoded), nil)
		}
		return map[string]any{"result": decoded, "stderr": res.Stderr}, nil

	case ToolStoreReadResult:
		args, terr := decodeArgs[storeReadResultArgs](input)
		if terr != nil {
			return nil, terr
		}
		existing, ok := sess.Library.GetRead(args.StepID)
		if !ok {
			return nil, toolerrors.Errorf(toolerrors.KindInvalidAttribute, "no prior read result for step %q to store", args.StepID)
		}
		return map[string]any{"stored": existing.StepID, "entity_count": len(existing.EntityIDs)}, nil

	case ToolGetDetailedEvents:
		args, terr := decodeArgs[detailedEventsArgs](input)
		if terr != nil {
			return nil, terr
		}
		if deps.EventCatalog == nil {
			return nil, toolerrors.New(toolerrors.KindUnrecoverable, "event type catalog not configured")
		}
		types, err := deps.EventCatalog.DetailedEventTypes(ctx, args.Category)
		if err != nil {
			return nil, toolerrors.FromError(err)
		}
		return map[string]any{"event_types": types}, nil

	default:
		return nil, toolerrors.Errorf(toolerrors.KindUnrecoverable, "unknown tool %q", name)
	}
}

type describeOperationsArgs struct {
	Names []string `json:"names"`
}

type runGraphQueryArgs struct {
	Query  string `json:"query"`
	StepID string `json:"step_id"`
}

type probeRESTArgs struct {
	Source string `json:"source"`
	StepID string `json:"step_id"`
}

type storeReadResultArgs struct {
	StepID string `json:"step_id"`
}

type detailedEventsArgs struct {
	Category string `json:"category"`
}

// decodeArgs re-marshals the model's freeform input into a typed struct.
// Tool arguments arrive as any (already-decoded JSON) rather than raw
// bytes, so a marshal/unmarshal round trip is the simplest correct way
// to apply the field tags.
func decodeArgs[T any](input any) (T, *toolerrors.ToolError) {
	var out T
	raw, err := json.Marshal(input)
	if err != nil {
		return out, toolerrors.Errorf(toolerrors.KindValidationFailed, "tool arguments could not be marshaled: %v", err)
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, toolerrors.Errorf(toolerrors.KindValidationFailed, "tool arguments did not match expected shape: %v", err)
	}
	return out, nil
}

func extractEntityIDs(r graphquery.Result) []string {
	ids := make([]string, 0, len(r.Rows))
	for _, row := range r.Rows {
		for _, col := range r.Columns {
			if col == "external_id" || col == "id" {
				if v, ok := row[col].(string); ok {
					ids = append(ids, v)
				}
			}
		}
	}
	return ids
}

// validateToolPayload checks a tool call's raw JSON arguments against the
// declared InputSchema for name before dispatch ever decodes them. A model
// that emits a call missing a required field or using the wrong type is
// rejected as a recoverable validation failure rather than reaching the
// underlying tool with garbage input.
func validateToolPayload(defs []*model.ToolDefinition, name tools.Ident, raw json.RawMessage) *toolerrors.ToolError {
	var schemaDoc any
	found := false
	for _, def := range defs {
		if def != nil && def.Name == string(name) {
			schemaDoc = def.InputSchema
			found = true
			break
		}
	}
	if !found || schemaDoc == nil || len(raw) == 0 {
		return nil
	}

	c := jsonschema.NewCompiler()
	if err := c.AddResource(string(name)+".json", schemaDoc); err != nil {
		return toolerrors.Errorf(toolerrors.KindValidationFailed, "tool %q: invalid schema: %v", name, err)
	}
	schema, err := c.Compile(string(name) + ".json")
	if err != nil {
		return toolerrors.Errorf(toolerrors.KindValidationFailed, "tool %q: invalid schema: %v", name, err)
	}

	var payload any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return toolerrors.Errorf(toolerrors.KindValidationFailed, "tool %q: arguments are not valid JSON: %v", name, err)
	}
	if err := schema.Validate(payload); err != nil {
		return toolerrors.Errorf(toolerrors.KindValidationFailed, "tool %q: arguments do not match schema: %v", name, err)
	}
	return nil
}

func extractEntityIDsFromAny(v any) []string {
	arr, ok := v.([]any)
	if !ok {
		return nil
	}
	ids := make([]string, 0, len(arr))
	for _, item := range arr {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		for _, key := range []string{"id", "external_id"} {
			if s, ok := m[key].(string); ok {
				ids = append(ids, s)
				break
			}
		}
	}
	return ids
}
