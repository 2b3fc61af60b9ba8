package httpapi

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/fctr-id/okta-ai-agent/internal/agent"
	"github.com/fctr-id/okta-ai-agent/internal/sse"
)

// entry pairs a running agent session with the SSE sink its loop writes
// to, plus the CancelFunc for the context its goroutine runs under. The
// HTTP stream handler drains the sink; the start handler owns launching
// the loop goroutine and attaching its cancel func via SetCancel.
type entry struct {
	session *agent.Session
	sink    *sse.ChannelSink
	cancel  context.CancelFunc
}

// Registry maps a process id (the unit of work named in /react/start's
// response and every subsequent stream/cancel call) to its running
// session. One process per session in this system; the legacy realtime
// endpoints address the same map by path parameter instead of query.
type Registry struct {
	mu      sync.Mutex
	entries map[string]*entry
}

// NewRegistry builds an empty process registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*entry)}
}

// Start creates a fresh process id, registers sess and sink under it, and
// returns the id for the caller to hand back to the client.
func (r *Registry) Start(sess *agent.Session, sink *sse.ChannelSink) string {
	id := uuid.NewString()
	r.mu.Lock()
	r.entries[id] = &entry{session: sess, sink: sink}
	r.mu.Unlock()
	return id
}

// SetCancel attaches the CancelFunc for processID's run context. Called
// by the start handler once it has derived a cancellable context for the
// loop goroutine, after Start has already registered the entry.
func (r *Registry) SetCancel(processID string, cancel context.CancelFunc) {
	r.mu.Lock()
	if e, ok := r.entries[processID]; ok {
		e.cancel = cancel
	}
	r.mu.Unlock()
}

// Lookup returns the session and sink registered under processID.
func (r *Registry) Lookup(processID string) (*agent.Session, *sse.ChannelSink, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[processID]
	if !ok {
		return nil, nil, false
	}
	return e.session, e.sink, true
}

// Cancel signals the named session's cancellation flag and, if the start
// handler has attached one, cancels its run context directly. The
// context cancellation reaches both the in-flight model.Client call and
// any subprocess the sandbox executor spawned via exec.CommandContext,
// killing it rather than waiting for the next suspension point.
func (r *Registry) Cancel(processID string) bool {
	r.mu.Lock()
	e, ok := r.entries[processID]
	r.mu.Unlock()
	if !ok {
		return false
	}
	e.session.Cancel()
	if e.cancel != nil {
		e.cancel()
	}
	return true
}

// Forget removes a completed process from the registry. The start
// handler's run goroutine calls it once the agent loop has returned.
func (r *Registry) Forget(processID string) {
	r.mu.Lock()
	delete(r.entries, processID)
	r.mu.Unlock()
}
