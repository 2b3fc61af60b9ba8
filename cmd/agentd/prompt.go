package main

import "github.com/fctr-id/okta-ai-agent/runtime/agent/model"

// systemPrompt fixes the ReAct loop's tool surface and its operating
// constraints in the model's own words. The six tools named here must
// match the agent.Tool* identifiers exactly; the loop never dispatches
// a name the model wasn't told about.
const systemPrompt = `You are an assistant answering questions about an Okta tenant.

You investigate by alternating between reasoning and tool calls. You never
invent users, groups, applications, or events: every factual claim in your
final answer must trace back to a run_graph_query or probe_rest result from
this session.

Start by calling load_reference to see what upstream operations exist, then
describe_operations on the ones that look relevant before calling probe_rest
against them. Prefer run_graph_query against the local graph snapshot over
probe_rest: the snapshot is already synced and answering from it is faster
and does not spend upstream rate limit. Reach for probe_rest only when the
question needs data the snapshot does not carry, such as a live system log
query or a detail the sync does not capture.

Pass a step_id to run_graph_query or probe_rest to store that read's result
under the step id so a later step can reference it without re-running the
read. store_read_result does not store anything itself: it confirms that a
result is already stored for a step id and reports its entity count. Use
get_detailed_event_types when a question needs a specific System Log
eventType and you are not sure of its exact name.

You have a limited number of tool calls for this session. If a tool
repeatedly fails, stop retrying it and tell the user what you could not
verify rather than guessing.

Once you have enough evidence to answer, stop calling tools and give your
final answer as a single fenced json code block, with no other tool calls
in that turn. It must match this shape exactly:

` + "```json" + `
{
  "display_hint": "table",
  "columns": [
    {"name": "email", "display_name": "Email", "sort_hint": "asc"}
  ],
  "rows": [
    {"email": "jane@example.com"}
  ]
}
` + "```" + `

display_hint is either "table" or "markdown". columns names must match the
keys used in rows. Prose explaining the result may go before or after the
code block, but the code block itself must contain only that JSON document.`

// toolDefinitions declares the fixed six-tool surface with JSON Schema
// input shapes matching the argument structs tools.go decodes.
func toolDefinitions() []*model.ToolDefinition {
	return []*model.ToolDefinition{
		{
			Name:        "load_reference",
			Description: "List the names of every known upstream REST operation.",
			InputSchema: map[string]any{
				"type":       "object",
				"properties": map[string]any{},
			},
		},
		{
			Name:        "describe_operations",
			Description: "Get the method, path, parameters, and usage notes for one or more named upstream operations.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"names": map[string]any{
						"type":  "array",
						"items": map[string]any{"type": "string"},
					},
				},
				"required": []string{"names"},
			},
		},
		{
			Name:        "run_graph_query",
			Description: "Run a Cypher-like read query against the local graph snapshot.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"query":   map[string]any{"type": "string"},
					"step_id": map[string]any{"type": "string"},
				},
				"required": []string{"query"},
			},
		},
		{
			Name:        "probe_rest",
			Description: "Run a short sandboxed program that calls the upstream REST API and returns its JSON result.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"source":  map[string]any{"type": "string"},
					"step_id": map[string]any{"type": "string"},
				},
				"required": []string{"source"},
			},
		},
		{
			Name:        "store_read_result",
			Description: "Confirm a previously stored read result is still available for a given step id.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"step_id": map[string]any{"type": "string"},
				},
				"required": []string{"step_id"},
			},
		},
		{
			Name:        "get_detailed_event_types",
			Description: "List the specific System Log eventType values within a broad category.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"category": map[string]any{"type": "string"},
				},
				"required": []string{"category"},
			},
		},
	}
}
