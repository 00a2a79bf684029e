// Package batch groups records into bounded batches for the columnar writer.
package batch

import (
	"context"
	"errors"
	"fmt"

	"github.com/JakeFAU/page-ingest/internal/ingest"
)

// DefaultSize is the row bound of a batch when none is configured.
const DefaultSize = 1000

// Sink receives each completed batch. The batch is not touched afterwards.
type Sink[T any] func(ctx context.Context, b ingest.Batch[T]) error

// Accumulator buffers records and hands them to its sink size rows at a
// time. Flush hands over the final partial batch; no tail is ever dropped.
type Accumulator[T any] struct {
	schema  ingest.Schema
	size    int
	sink    Sink[T]
	pending []T
	emitted int
	closed  bool
}

// NewAccumulator builds an accumulator. A size <= 0 uses DefaultSize.
func NewAccumulator[T any](schema ingest.Schema, size int, sink Sink[T]) (*Accumulator[T], error) {
	if sink == nil {
		return nil, errors.New("batch: sink is required")
	}
	if schema.IsZero() {
		return nil, errors.New("batch: schema has no fields")
	}
	if size <= 0 {
		size = DefaultSize
	}
	return &Accumulator[T]{
		schema:  schema,
		size:    size,
		sink:    sink,
		pending: make([]T, 0, size),
	}, nil
}

// Add appends records, emitting a batch each time size rows are buffered.
func (a *Accumulator[T]) Add(ctx context.Context, records ...T) error {
	if a.closed {
		return errors.New("batch: accumulator is closed")
	}
	for _, r := range records {
		a.pending = append(a.pending, r)
		if len(a.pending) >= a.size {
			if err := a.emit(ctx); err != nil {
				return err
			}
		}
	}
	return nil
}

// Flush emits buffered records as a partial batch. It is a no-op when
// nothing is buffered.
func (a *Accumulator[T]) Flush(ctx context.Context) error {
	if len(a.pending) == 0 {
		return nil
	}
	return a.emit(ctx)
}

// Close flushes and rejects further Adds.
func (a *Accumulator[T]) Close(ctx context.Context) error {
	if a.closed {
		return nil
	}
	a.closed = true
	return a.Flush(ctx)
}

// Buffered returns the number of records waiting for the next batch.
func (a *Accumulator[T]) Buffered() int {
	return len(a.pending)
}

// Emitted returns the number of batches handed to the sink.
func (a *Accumulator[T]) Emitted() int {
	return a.emitted
}

func (a *Accumulator[T]) emit(ctx context.Context) error {
	b := ingest.Batch[T]{Schema: a.schema, Rows: a.pending}
	a.pending = make([]T, 0, a.size)
	if err := a.sink(ctx, b); err != nil {
		return fmt.Errorf("emit batch %d: %w", a.emitted, err)
	}
	a.emitted++
	return nil
}
