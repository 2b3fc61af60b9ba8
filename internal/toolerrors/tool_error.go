// Package toolerrors defines the structured error taxonomy that tools
// return to the agent loop. A ToolError always carries a Kind the loop
// uses to decide whether the condition is recoverable (the agent sees
// guidance and picks its next action) or session-fatal (the loop emits
// an ERROR event and stops).
package toolerrors

import "fmt"

// Kind enumerates the error taxonomy a tool may report.
type Kind string

const (
	// KindUnsafeQuery marks a graph query rejected by the safety filter.
	KindUnsafeQuery Kind = "unsafe_query"
	// KindUnsafeProgram marks a probe program rejected by static validation.
	KindUnsafeProgram Kind = "unsafe_program"
	// KindValidationFailed marks a structured-output schema violation.
	KindValidationFailed Kind = "validation_failed"
	// KindTransientUpstream marks a rate-limited or 5xx upstream response.
	KindTransientUpstream Kind = "transient_upstream"
	// KindInvalidAttribute marks a query referencing an unknown column.
	KindInvalidAttribute Kind = "invalid_attribute"
	// KindInvalidEndpoint marks a probe program naming an unknown REST operation.
	KindInvalidEndpoint Kind = "invalid_endpoint"
	// KindTimeout marks a tool invocation that exceeded its deadline.
	KindTimeout Kind = "timeout"
	// KindUsageLimitExceeded marks exhaustion of the per-session tool-call budget.
	KindUsageLimitExceeded Kind = "usage_limit_exceeded"
	// KindCircuitOpen marks a tripped per-tool circuit breaker.
	KindCircuitOpen Kind = "circuit_open"
	// KindCancelled marks a session cancelled by the client.
	KindCancelled Kind = "cancelled"
	// KindUnrecoverable marks an internal bug or parser failure.
	KindUnrecoverable Kind = "unrecoverable"
)

// recoverable reports whether the loop should surface this kind to the
// model as guidance (true) or treat the session as fatally ended (false).
var recoverable = map[Kind]bool{
	KindUnsafeQuery:        true,
	KindUnsafeProgram:      true,
	KindValidationFailed:   true,
	KindTransientUpstream:  true,
	KindInvalidAttribute:   true,
	KindInvalidEndpoint:    true,
	KindTimeout:            false,
	KindUsageLimitExceeded: false,
	KindCircuitOpen:        false,
	KindCancelled:          false,
	KindUnrecoverable:      false,
}

// ToolError is the structured error type every tool returns instead of a
// bare error. It chains like a standard error via Unwrap so callers can
// use errors.Is/errors.As across tool boundaries.
type ToolError struct {
	Kind    Kind
	Message string
	// RetryHint carries guidance text the agent sees on its next step when
	// Kind is recoverable. Empty for session-fatal kinds.
	RetryHint string
	// WaitSeconds is set for KindTransientUpstream to surface a backoff hint.
	WaitSeconds int
	Cause       *ToolError
}

// New builds a ToolError of the given kind with no wrapped cause.
func New(kind Kind, message string) *ToolError {
	return &ToolError{Kind: kind, Message: message}
}

// Errorf builds a ToolError of the given kind with a formatted message.
func Errorf(kind Kind, format string, args ...any) *ToolError {
	return &ToolError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// NewWithCause builds a ToolError wrapping an existing ToolError as cause.
func NewWithCause(kind Kind, message string, cause *ToolError) *ToolError {
	return &ToolError{Kind: kind, Message: message, Cause: cause}
}

// FromError wraps a plain error as an unrecoverable ToolError, unless it
// already is one (in which case it is returned unchanged).
func FromError(err error) *ToolError {
	if err == nil {
		return nil
	}
	if te, ok := err.(*ToolError); ok {
		return te
	}
	return &ToolError{Kind: KindUnrecoverable, Message: err.Error()}
}

// Error implements the error interface.
func (e *ToolError) Error() string {
	if e == nil {
		return ""
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Message, e.Cause.Error())
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap supports errors.Is/errors.As against the wrapped cause.
func (e *ToolError) Unwrap() error {
	if e == nil || e.Cause == nil {
		return nil
	}
	return e.Cause
}

// Recoverable reports whether the agent loop should surface this error to
// the model as guidance rather than ending the session.
func (e *ToolError) Recoverable() bool {
	if e == nil {
		return false
	}
	if r, ok := recoverable[e.Kind]; ok {
		return r
	}
	return false
}
