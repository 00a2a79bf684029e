package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/page-ingest/internal/ingest"
)

func TestQueueEnqueueDequeue(t *testing.T) {
	t.Parallel()

	q := NewQueue(1)
	result := make(chan ingest.Task, 1)
	errCh := make(chan error, 1)

	go func() {
		task, err := q.Dequeue(context.Background())
		if err != nil {
			errCh <- err
			return
		}
		result <- task
	}()

	require.NoError(t, q.Enqueue(context.Background(), ingest.Task{Index: 3, Identifier: "AAPL"}))
	select {
	case err := <-errCh:
		t.Fatalf("Dequeue() error = %v", err)
	case got := <-result:
		assert.Equal(t, "AAPL", got.Identifier)
		assert.Equal(t, 3, got.Index)
	case <-time.After(time.Second):
		t.Fatal("dequeue did not return task")
	}
}

func TestQueueCancelationErrors(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewQueue(1).Dequeue(ctx)
	require.EqualError(t, err, "dequeue canceled: context canceled")

	full := NewQueue(1)
	require.NoError(t, full.Enqueue(context.Background(), ingest.Task{Identifier: "primed"}))
	assert.Equal(t, 1, full.Len())
	err = full.Enqueue(ctx, ingest.Task{})
	require.ErrorIs(t, err, context.Canceled)
}

func TestQueueClose(t *testing.T) {
	t.Parallel()

	q := NewQueue(0)
	blocked := make(chan error, 1)
	go func() {
		_, err := q.Dequeue(context.Background())
		blocked <- err
	}()

	q.Close()
	q.Close()

	select {
	case err := <-blocked:
		require.ErrorIs(t, err, ErrClosed)
	case <-time.After(time.Second):
		t.Fatal("close did not release dequeue")
	}
	require.ErrorIs(t, q.Enqueue(context.Background(), ingest.Task{}), ErrClosed)
}
