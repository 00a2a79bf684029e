package headless

import (
	"context"
	"errors"

	"github.com/JakeFAU/page-ingest/internal/ingest"
)

// ErrDisabled is returned by Noop.
var ErrDisabled = errors.New("headless fetcher not configured")

// Noop stands in for the headless fetcher when headless.enabled is false.
type Noop struct{}

// NewNoop creates a new Noop fetcher.
func NewNoop() *Noop {
	return &Noop{}
}

// Fetch always fails with ErrDisabled.
func (Noop) Fetch(_ context.Context, _ ingest.FetchRequest) (ingest.FetchResponse, error) {
	return ingest.FetchResponse{}, ErrDisabled
}

// Close is a no-op.
func (Noop) Close() error { return nil }
