package sse

import "context"

// DefaultBatchThreshold is the row count above which a result is streamed
// as METADATA + BATCH... + COMPLETE instead of a single COMPLETE.
const DefaultBatchThreshold = 1000

// Batcher decides how to deliver a final result: a single COMPLETE event
// when the row count is at or below the threshold, or METADATA followed
// by one BATCH per chunk followed by a COMPLETE carrying no rows.
type Batcher struct {
	Threshold int
	ChunkSize int
}

// NewBatcher builds a Batcher with the given threshold and chunk size. A
// zero or negative ChunkSize defaults to Threshold.
func NewBatcher(threshold, chunkSize int) *Batcher {
	if threshold <= 0 {
		threshold = DefaultBatchThreshold
	}
	if chunkSize <= 0 {
		chunkSize = threshold
	}
	return &Batcher{Threshold: threshold, ChunkSize: chunkSize}
}

// Deliver sends the given rows through sink, applying the batching rule.
// complete carries the terminal metadata (columns, data source, etc.);
// its Rows/TotalRows/Batched fields are overwritten by Deliver.
func (b *Batcher) Deliver(ctx context.Context, sink Sink, rows []map[string]any, complete Complete) error {
	complete.TotalRows = len(rows)
	if len(rows) <= b.Threshold {
		complete.Rows = rows
		complete.Batched = false
		return sink.Send(ctx, NewComplete(complete))
	}

	totalBatches := (len(rows) + b.ChunkSize - 1) / b.ChunkSize
	if err := sink.Send(ctx, NewMetadata(totalBatches, len(rows), nil, nil)); err != nil {
		return err
	}
	for i := 0; i < totalBatches; i++ {
		start := i * b.ChunkSize
		end := start + b.ChunkSize
		if end > len(rows) {
			end = len(rows)
		}
		if err := sink.Send(ctx, NewBatch(i+1, rows[start:end])); err != nil {
			return err
		}
	}
	complete.Rows = nil
	complete.Batched = true
	return sink.Send(ctx, NewComplete(complete))
}
