// Package agent runs the ReAct tool-calling loop against a configurable
// LLM, exposing the fixed tool surface the agent prompt is built around:
// load_reference, describe_operations, run_graph_query, probe_rest,
// store_read_result, and get_detailed_event_types. Scheduling is
// single-threaded cooperative within a session; the server runs many
// sessions concurrently, one goroutine per session, adapted from the
// teacher's single-async-task-per-run runtime without its workflow
// engine dependency.
package agent

import (
	"sync"
	"sync/atomic"

	"github.com/fctr-id/okta-ai-agent/internal/codelibrary"
	"github.com/fctr-id/okta-ai-agent/runtime/agent/model"
	"github.com/fctr-id/okta-ai-agent/runtime/agent/tools"
)

// breakerThreshold is the number of consecutive tool failures that trips
// a per-tool circuit breaker for the remainder of a session.
const breakerThreshold = 3

// Session holds the mutable state of one running agent turn: the
// conversation transcript, the code library, usage accounting, and
// per-tool circuit breaker counters. Breakers reset only when the
// session itself ends; there is no cross-session sharing.
type Session struct {
	ID        string
	Library   *codelibrary.Library
	Transcript []*model.Message

	mu          sync.Mutex
	toolCalls   int
	breakers    map[tools.Ident]int
	tripped     map[tools.Ident]bool
	cancelled   atomic.Bool
	usedSnapshot bool
	usedLive     bool
}

// NewSession builds a fresh session with an empty transcript and library.
func NewSession(id string) *Session {
	return &Session{
		ID:        id,
		Library:   codelibrary.New(id),
		breakers:  make(map[tools.Ident]int),
		tripped:   make(map[tools.Ident]bool),
	}
}

// Cancel sets the session's cancellation flag. The loop polls this at
// every suspension point; a dropped connection alone never calls this.
func (s *Session) Cancel() { s.cancelled.Store(true) }

// Cancelled reports whether the client has explicitly requested
// cancellation.
func (s *Session) Cancelled() bool { return s.cancelled.Load() }

// recordToolCall increments the session's total tool-invocation counter
// and returns the new total, used against the usage limit.
func (s *Session) recordToolCall() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.toolCalls++
	return s.toolCalls
}

// toolCallCount reports the number of tool invocations so far.
func (s *Session) toolCallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.toolCalls
}

// breakerTripped reports whether tool has already tripped its breaker.
func (s *Session) breakerTripped(tool tools.Ident) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tripped[tool]
}

// recordToolFailure increments tool's failure counter and trips its
// breaker once the threshold is reached, returning whether it just
// tripped on this call.
func (s *Session) recordToolFailure(tool tools.Ident) (justTripped bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.breakers[tool]++
	if s.breakers[tool] >= breakerThreshold && !s.tripped[tool] {
		s.tripped[tool] = true
		return true
	}
	return false
}

// recordToolSuccess clears tool's failure counter; a success partway
// through a run forgives prior transient failures for that tool.
func (s *Session) recordToolSuccess(tool tools.Ident) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.breakers[tool] = 0
}

// markDataSource records that this session read from the snapshot or the
// live upstream API, used to compute the terminal result's data-source
// mix (snapshot, live, or hybrid).
func (s *Session) markDataSource(snapshot, live bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.usedSnapshot = s.usedSnapshot || snapshot
	s.usedLive = s.usedLive || live
}

// DataSource reports the terminal result's data-source mix: "snapshot"
// when only run_graph_query succeeded, "live" when only probe_rest
// succeeded, "hybrid" when both contributed, and "snapshot" as the
// conservative default when neither tool ran yet.
func (s *Session) DataSource() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.usedSnapshot && s.usedLive:
		return "hybrid"
	case s.usedLive:
		return "live"
	default:
		return "snapshot"
	}
}
