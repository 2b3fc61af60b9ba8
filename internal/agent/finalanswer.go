package agent

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/fctr-id/okta-ai-agent/internal/sse"
	"github.com/fctr-id/okta-ai-agent/internal/toolerrors"
)

// finalAnswerSchema constrains the terminal response the model emits once
// it stops requesting tools: a display hint, column headers with display
// labels and sort hints, and the row content itself. A model that emits
// free text instead of this shape fails schema validation, which §7
// treats as a terminal (non-recoverable) error rather than something the
// agent can retry on its own.
var finalAnswerSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"display_hint": map[string]any{"type": "string", "enum": []string{"table", "markdown"}},
		"columns": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"name":         map[string]any{"type": "string"},
					"display_name": map[string]any{"type": "string"},
					"sort_hint":    map[string]any{"type": "string"},
				},
				"required": []string{"name"},
			},
		},
		"rows": map[string]any{"type": "array"},
	},
	"required": []string{"display_hint", "columns", "rows"},
}

var fencedJSONBlock = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")

// finalAnswer is the parsed terminal payload, ready to hand to a
// sse.Batcher for delivery.
type finalAnswer struct {
	DisplayHint string           `json:"display_hint"`
	Columns     []sse.Column     `json:"columns"`
	Rows        []map[string]any `json:"rows"`
}

// parseFinalAnswer extracts and validates the structured final-answer
// JSON document from the model's last turn. It accepts either a bare
// JSON document or one embedded in a fenced ```json code block, since
// models commonly wrap structured output in prose explaining it.
func parseFinalAnswer(text string) (finalAnswer, *toolerrors.ToolError) {
	raw := extractJSONDocument(text)
	if raw == "" {
		return finalAnswer{}, toolerrors.New(toolerrors.KindValidationFailed,
			"final response did not contain a JSON document matching the required display_hint/columns/rows shape")
	}

	var payload any
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return finalAnswer{}, toolerrors.Errorf(toolerrors.KindValidationFailed, "final response JSON is malformed: %v", err)
	}

	c := jsonschema.NewCompiler()
	if err := c.AddResource("final_answer.json", finalAnswerSchema); err != nil {
		return finalAnswer{}, toolerrors.Errorf(toolerrors.KindUnrecoverable, "final answer schema is invalid: %v", err)
	}
	schema, err := c.Compile("final_answer.json")
	if err != nil {
		return finalAnswer{}, toolerrors.Errorf(toolerrors.KindUnrecoverable, "final answer schema is invalid: %v", err)
	}
	if err := schema.Validate(payload); err != nil {
		return finalAnswer{}, toolerrors.Errorf(toolerrors.KindValidationFailed, "final response does not match the required shape: %v", err)
	}

	var fa finalAnswer
	if err := json.Unmarshal([]byte(raw), &fa); err != nil {
		return finalAnswer{}, toolerrors.Errorf(toolerrors.KindUnrecoverable, "final answer decode: %v", err)
	}
	return fa, nil
}

// extractJSONDocument returns the best-guess JSON document embedded in
// text: the contents of a fenced code block if present, otherwise the
// whole trimmed text if it looks like a JSON object.
func extractJSONDocument(text string) string {
	if m := fencedJSONBlock.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	trimmed := strings.TrimSpace(text)
	if strings.HasPrefix(trimmed, "{") && strings.HasSuffix(trimmed, "}") {
		return trimmed
	}
	return ""
}
