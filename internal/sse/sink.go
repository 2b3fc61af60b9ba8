package sse

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// Sink delivers streamed events to a transport. Implementations must be
// thread-safe: the agent loop and any background subprocess-progress
// reporter may call Send concurrently.
type Sink interface {
	Send(ctx context.Context, event Event) error
	Close(ctx context.Context) error
}

// ChannelSink is a per-session in-process Sink backed by a buffered
// channel. One is created per session; the SSE HTTP handler drains it.
// Sessions never share channels, matching the per-session queue design
// called out for the event bus in this system's design notes.
type ChannelSink struct {
	mu     sync.Mutex
	ch     chan Event
	closed bool
}

// NewChannelSink creates a ChannelSink with the given buffer capacity.
func NewChannelSink(buffer int) *ChannelSink {
	return &ChannelSink{ch: make(chan Event, buffer)}
}

// Send enqueues event for delivery. Returns an error if the sink is
// closed or ctx is done before the channel accepts the event.
func (s *ChannelSink) Send(ctx context.Context, event Event) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return fmt.Errorf("sse: sink closed")
	}
	s.mu.Unlock()
	select {
	case s.ch <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Events returns the receive side of the channel for the SSE handler to
// drain. The channel is closed when Close is called.
func (s *ChannelSink) Events() <-chan Event {
	return s.ch
}

// Close marks the sink closed and closes the underlying channel. Safe to
// call multiple times.
func (s *ChannelSink) Close(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	close(s.ch)
	return nil
}

// EncodeSSE renders an Event as a single "data: ...\n\n" SSE frame with the
// event type discriminator folded into the JSON payload under "type".
func EncodeSSE(event Event) ([]byte, error) {
	payload, err := json.Marshal(event.Payload())
	if err != nil {
		return nil, fmt.Errorf("marshal event payload: %w", err)
	}
	envelope := struct {
		Type EventType       `json:"type"`
		Data json.RawMessage `json:"data"`
	}{Type: event.Type(), Data: payload}
	body, err := json.Marshal(envelope)
	if err != nil {
		return nil, fmt.Errorf("marshal event envelope: %w", err)
	}
	frame := append([]byte("data: "), body...)
	frame = append(frame, '\n', '\n')
	return frame, nil
}
