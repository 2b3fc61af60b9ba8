package sse

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	events []Event
}

func (s *recordingSink) Send(_ context.Context, event Event) error {
	s.events = append(s.events, event)
	return nil
}

func (s *recordingSink) Close(context.Context) error { return nil }

func rows(n int) []map[string]any {
	out := make([]map[string]any, n)
	for i := range out {
		out[i] = map[string]any{"id": i}
	}
	return out
}

func TestBatcherSingleCompleteUnderThreshold(t *testing.T) {
	sink := &recordingSink{}
	b := NewBatcher(1000, 0)
	require.NoError(t, b.Deliver(context.Background(), sink, rows(10), Complete{DataSource: "snapshot"}))

	require.Len(t, sink.events, 1)
	require.Equal(t, EventComplete, sink.events[0].Type())
	complete := sink.events[0].(Complete)
	require.Len(t, complete.Rows, 10)
	require.False(t, complete.Batched)
}

func TestBatcherSplitsAboveThreshold(t *testing.T) {
	sink := &recordingSink{}
	b := NewBatcher(1000, 1000)
	require.NoError(t, b.Deliver(context.Background(), sink, rows(2500), Complete{DataSource: "snapshot"}))

	require.Len(t, sink.events, 5) // metadata + 3 batches + complete
	require.Equal(t, EventMetadata, sink.events[0].Type())
	meta := sink.events[0].(Metadata)
	require.Equal(t, 3, meta.TotalBatches)
	require.Equal(t, 2500, meta.TotalRecords)

	var concatenated []map[string]any
	for _, e := range sink.events[1:4] {
		require.Equal(t, EventBatch, e.Type())
		concatenated = append(concatenated, e.(Batch).Rows...)
	}
	require.Len(t, concatenated, 2500)

	last := sink.events[4].(Complete)
	require.Equal(t, EventComplete, sink.events[4].Type())
	require.Nil(t, last.Rows)
	require.True(t, last.Batched)
	require.Equal(t, 2500, last.TotalRows)
}
