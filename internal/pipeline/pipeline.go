// Package pipeline drives one fetch run: identifier batches go through the
// dispatcher, each result becomes a record, and records are written as row
// groups in identifier order.
package pipeline

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/page-ingest/internal/batch"
	"github.com/JakeFAU/page-ingest/internal/extract"
	"github.com/JakeFAU/page-ingest/internal/ingest"
)

// Dispatcher fetches one batch of identifiers and returns results in input order.
type Dispatcher interface {
	Dispatch(ctx context.Context, ids []string) ([]ingest.FetchResult, error)
}

// Writer is the sequential sink for finished batches; *columnar.Writer satisfies it.
type Writer[T any] interface {
	Schema() ingest.Schema
	Write(ctx context.Context, b ingest.Batch[T]) error
}

// Reporter receives run-level progress signals. Per-item signals are sent by
// the workers themselves.
type Reporter interface {
	Start(total int)
	BatchWritten(rows int)
	Finish(err error)
}

// Config tunes a run.
type Config struct {
	BatchSize int
	Logger    *zap.Logger
}

type nopReporter struct{}

func (nopReporter) Start(int)        {}
func (nopReporter) BatchWritten(int) {}
func (nopReporter) Finish(error)     {}

// Run fetches ids in batches of cfg.BatchSize, builds one record per result
// and writes each batch before the next one is dispatched. Failed fetches
// still produce a record carrying the identifier. The writer is not closed.
func Run[T any](
	ctx context.Context,
	ids []string,
	d Dispatcher,
	build extract.Builder[T],
	w Writer[T],
	cfg Config,
	rep Reporter,
) (summary ingest.RunSummary, err error) {
	if d == nil || build == nil || w == nil {
		return summary, errors.New("pipeline: dispatcher, builder and writer are required")
	}
	if rep == nil {
		rep = nopReporter{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	size := cfg.BatchSize
	if size <= 0 {
		size = batch.DefaultSize
	}

	rep.Start(len(ids))
	defer func() { rep.Finish(err) }()

	sink := func(ctx context.Context, b ingest.Batch[T]) error {
		if err := w.Write(ctx, b); err != nil {
			return err
		}
		summary.Rows += int64(b.Len())
		summary.RowGroups++
		rep.BatchWritten(b.Len())
		return nil
	}
	acc, err := batch.NewAccumulator[T](w.Schema(), size, sink)
	if err != nil {
		return summary, err
	}

	for start := 0; start < len(ids); start += size {
		end := min(start+size, len(ids))
		chunk := ids[start:end]

		results, err := d.Dispatch(ctx, chunk)
		if err != nil {
			return summary, fmt.Errorf("dispatch batch at %d: %w", start, err)
		}
		records := make([]T, 0, len(results))
		for _, res := range results {
			if res.Failed() {
				summary.Failed++
			}
			records = append(records, build(res))
		}
		summary.Identifiers += len(chunk)
		if err := acc.Add(ctx, records...); err != nil {
			return summary, fmt.Errorf("write batch at %d: %w", start, err)
		}
		logger.Debug("batch complete",
			zap.Int("start", start),
			zap.Int("size", len(chunk)),
			zap.Int64("rows", summary.Rows),
		)
	}
	if err := acc.Close(ctx); err != nil {
		return summary, fmt.Errorf("write final batch: %w", err)
	}
	return summary, nil
}
