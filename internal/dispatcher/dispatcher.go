// Package dispatcher manages worker fan-out over the task queue.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/page-ingest/internal/ingest"
	"github.com/JakeFAU/page-ingest/internal/worker"
)

// ErrNotStarted is returned by Dispatch before Start.
var ErrNotStarted = errors.New("dispatcher not started")

type closer interface {
	Close()
}

// Dispatcher fans batches of identifiers out to a fixed pool of workers and
// gathers their results back into identifier order.
type Dispatcher struct {
	queue   ingest.Queue
	workers []*worker.Worker

	mu      sync.Mutex
	group   *errgroup.Group
	stopped bool
}

// New creates a Dispatcher.
func New(queue ingest.Queue, workers []*worker.Worker) *Dispatcher {
	return &Dispatcher{
		queue:   queue,
		workers: workers,
	}
}

// Start launches the workers. They run until ctx ends or Stop is called.
func (d *Dispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.group != nil {
		return
	}
	g, gctx := errgroup.WithContext(ctx)
	for _, w := range d.workers {
		g.Go(func() error {
			return w.Run(gctx)
		})
	}
	d.group = g
}

// Dispatch enqueues one task per identifier and blocks until every task has
// replied. results[i] always belongs to ids[i], regardless of completion
// order. A canceled context returns the context error.
func (d *Dispatcher) Dispatch(ctx context.Context, ids []string) ([]ingest.FetchResult, error) {
	d.mu.Lock()
	started := d.group != nil && !d.stopped
	d.mu.Unlock()
	if !started {
		return nil, ErrNotStarted
	}
	if len(ids) == 0 {
		return nil, nil
	}

	reply := make(chan ingest.TaskResult, len(ids))
	results := make([]ingest.FetchResult, len(ids))
	pending := len(ids)

	enqueueErr := make(chan error, 1)
	go func() {
		for i, id := range ids {
			task := ingest.Task{Index: i, Identifier: id, Reply: reply}
			if err := d.queue.Enqueue(ctx, task); err != nil {
				enqueueErr <- fmt.Errorf("enqueue %s: %w", id, err)
				return
			}
		}
	}()

	for pending > 0 {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("dispatch canceled: %w", ctx.Err())
		case err := <-enqueueErr:
			return nil, err
		case r := <-reply:
			results[r.Index] = r.Result
			pending--
		}
	}
	return results, nil
}

// Stop closes the queue and waits for the workers to exit.
func (d *Dispatcher) Stop() error {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return nil
	}
	d.stopped = true
	g := d.group
	d.mu.Unlock()

	if c, ok := d.queue.(closer); ok {
		c.Close()
	}
	if g == nil {
		return nil
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("workers: %w", err)
	}
	return nil
}

// Size returns the number of workers.
func (d *Dispatcher) Size() int {
	return len(d.workers)
}
