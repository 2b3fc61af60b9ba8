// Package sse implements the Server-Sent-Events streaming fabric that
// reports structured agent progress to a single browser client per
// session. Event types and the Sink abstraction are generalized from the
// agent runtime's stream package, narrowed to this system's fixed set of
// ten event kinds.
package sse

import "time"

// EventType discriminates the JSON payload carried by an Event.
type EventType string

const (
	// EventStepStart marks the agent entering a new reasoning/tool phase.
	EventStepStart EventType = "STEP-START"
	// EventStepEnd marks a phase completing, successfully or not.
	EventStepEnd EventType = "STEP-END"
	// EventToolCall marks the agent invoking a tool.
	EventToolCall EventType = "TOOL-CALL"
	// EventStepProgress reports a long-running subprocess's progress.
	EventStepProgress EventType = "STEP-PROGRESS"
	// EventStepTokens reports per-step LLM token accounting.
	EventStepTokens EventType = "STEP-TOKENS"
	// EventRateLimit reports a tool backing off.
	EventRateLimit EventType = "RATE-LIMIT"
	// EventMetadata precedes a batched result set.
	EventMetadata EventType = "METADATA"
	// EventBatch carries one chunk of a large result.
	EventBatch EventType = "BATCH"
	// EventComplete is the terminal success event.
	EventComplete EventType = "COMPLETE"
	// EventError is the terminal failure event.
	EventError EventType = "ERROR"
)

// Event is the common interface every streamed event implements. Sinks
// marshal Payload() directly; consumers needing typed field access type-
// assert to the concrete struct.
type Event interface {
	Type() EventType
	Payload() any
}

type base struct {
	t EventType
	p any
}

func (b base) Type() EventType { return b.t }
func (b base) Payload() any    { return b.p }

// StepStart reports the agent entering a new step.
type StepStart struct {
	base
	StepIndex int       `json:"step_index"`
	Title     string    `json:"title"`
	Reasoning string    `json:"reasoning,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewStepStart builds a STEP-START event.
func NewStepStart(stepIndex int, title, reasoning string) StepStart {
	e := StepStart{StepIndex: stepIndex, Title: title, Reasoning: reasoning, Timestamp: time.Now()}
	e.base = base{t: EventStepStart, p: e}
	return e
}

// StepEnd reports a step completing.
type StepEnd struct {
	base
	StepIndex     int    `json:"step_index"`
	FinalText     string `json:"final_text"`
	ResultSummary string `json:"result_summary,omitempty"`
}

// NewStepEnd builds a STEP-END event.
func NewStepEnd(stepIndex int, finalText, resultSummary string) StepEnd {
	e := StepEnd{StepIndex: stepIndex, FinalText: finalText, ResultSummary: resultSummary}
	e.base = base{t: EventStepEnd, p: e}
	return e
}

// ToolCall reports the agent invoking a tool.
type ToolCall struct {
	base
	ToolName    string `json:"tool_name"`
	Description string `json:"description"`
}

// NewToolCall builds a TOOL-CALL event.
func NewToolCall(toolName, description string) ToolCall {
	e := ToolCall{ToolName: toolName, Description: description}
	e.base = base{t: EventToolCall, p: e}
	return e
}

// StepProgress reports progress on a long-running subprocess.
type StepProgress struct {
	base
	EntityLabel  string `json:"entity_label"`
	CurrentCount int    `json:"current_count"`
	TotalCount   int    `json:"total_count"`
	Status       string `json:"status"`
}

// NewStepProgress builds a STEP-PROGRESS event.
func NewStepProgress(entityLabel string, current, total int, status string) StepProgress {
	e := StepProgress{EntityLabel: entityLabel, CurrentCount: current, TotalCount: total, Status: status}
	e.base = base{t: EventStepProgress, p: e}
	return e
}

// StepTokens reports per-step LLM token accounting.
type StepTokens struct {
	base
	Input        int `json:"input"`
	Output       int `json:"output"`
	Total        int `json:"total"`
	RequestCount int `json:"request_count"`
}

// NewStepTokens builds a STEP-TOKENS event.
func NewStepTokens(input, output, requestCount int) StepTokens {
	e := StepTokens{Input: input, Output: output, Total: input + output, RequestCount: requestCount}
	e.base = base{t: EventStepTokens, p: e}
	return e
}

// RateLimit reports a tool backing off.
type RateLimit struct {
	base
	WaitSeconds int    `json:"wait_seconds"`
	Message     string `json:"message"`
}

// NewRateLimit builds a RATE-LIMIT event.
func NewRateLimit(waitSeconds int, message string) RateLimit {
	e := RateLimit{WaitSeconds: waitSeconds, Message: message}
	e.base = base{t: EventRateLimit, p: e}
	return e
}

// Metadata precedes a batched result set.
type Metadata struct {
	base
	TotalBatches int            `json:"total_batches"`
	TotalRecords int            `json:"total_records"`
	DisplayHints map[string]any `json:"display_hints,omitempty"`
	Base         map[string]any `json:"base,omitempty"`
}

// NewMetadata builds a METADATA event.
func NewMetadata(totalBatches, totalRecords int, displayHints, base2 map[string]any) Metadata {
	e := Metadata{TotalBatches: totalBatches, TotalRecords: totalRecords, DisplayHints: displayHints, Base: base2}
	e.base = base{t: EventMetadata, p: e}
	return e
}

// Batch carries one chunk of a large result set.
type Batch struct {
	base
	BatchNumber int              `json:"batch_number"`
	Rows        []map[string]any `json:"rows"`
}

// NewBatch builds a BATCH event.
func NewBatch(batchNumber int, rows []map[string]any) Batch {
	e := Batch{BatchNumber: batchNumber, Rows: rows}
	e.base = base{t: EventBatch, p: e}
	return e
}

// Complete is the terminal success event. Rows is nil when the result was
// delivered via preceding Metadata/Batch events.
type Complete struct {
	base
	DisplayHint string           `json:"display_hint,omitempty"`
	Rows        []map[string]any `json:"rows,omitempty"`
	Columns     []Column         `json:"columns,omitempty"`
	TotalRows   int              `json:"total_rows"`
	DataSource  string           `json:"data_source"`
	SnapshotAt  time.Time        `json:"snapshot_at,omitempty"`
	Batched     bool             `json:"batched"`
}

// Column describes a result column's display metadata.
type Column struct {
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	SortHint    string `json:"sort_hint,omitempty"`
}

// NewComplete builds a COMPLETE event.
func NewComplete(c Complete) Complete {
	c.base = base{t: EventComplete, p: c}
	return c
}

// Error is the terminal failure event.
type Error struct {
	base
	Message string `json:"error"`
}

// NewError builds an ERROR event.
func NewError(message string) Error {
	e := Error{Message: message}
	e.base = base{t: EventError, p: e}
	return e
}
