// Package worker implements the per-identifier fetch loop.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/page-ingest/internal/ingest"
	"github.com/JakeFAU/page-ingest/internal/metrics"
	"github.com/JakeFAU/page-ingest/internal/queue/memory"
)

// Observer receives one call per completed identifier, success or failure.
// Implementations must be safe for concurrent use.
type Observer interface {
	ItemDone(result ingest.FetchResult)
}

// Config controls Worker behavior.
type Config struct {
	// URLTemplate is expanded with each identifier, see ingest.ExpandURL.
	URLTemplate string
	// ReportFailures logs item failures at WARN instead of DEBUG.
	ReportFailures bool
}

// Worker consumes tasks and fetches one page per identifier.
type Worker struct {
	id              int
	queue           ingest.Queue
	probeFetcher    ingest.Fetcher
	headlessFetcher ingest.Fetcher
	detector        ingest.HeadlessDetector
	observer        Observer
	cfg             Config
	logger          *zap.Logger
}

// New constructs a Worker. headless, detector and observer may be nil.
func New(
	id int,
	queue ingest.Queue,
	probe ingest.Fetcher,
	headless ingest.Fetcher,
	detector ingest.HeadlessDetector,
	observer Observer,
	cfg Config,
	logger *zap.Logger,
) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{
		id:              id,
		queue:           queue,
		probeFetcher:    probe,
		headlessFetcher: headless,
		detector:        detector,
		observer:        observer,
		cfg:             cfg,
		logger:          logger.With(zap.Int("worker", id)),
	}
}

// Run blocks, consuming tasks until the context finishes or the queue closes.
func (w *Worker) Run(ctx context.Context) error {
	for {
		task, err := w.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, memory.ErrClosed) {
				return nil
			}
			w.logger.Error("queue dequeue failed", zap.Error(err))
			return fmt.Errorf("worker %d dequeue: %w", w.id, err)
		}
		result := w.Process(ctx, task.Identifier)
		w.reply(ctx, task, result)
	}
}

// Process fetches one identifier. Failures are carried in the result.
func (w *Worker) Process(ctx context.Context, identifier string) ingest.FetchResult {
	metrics.IncActiveWorkers()
	defer metrics.DecActiveWorkers()

	url := ingest.ExpandURL(w.cfg.URLTemplate, identifier)
	start := time.Now()
	result := ingest.FetchResult{Identifier: identifier, URL: url}

	resp, err := w.fetchProbe(ctx, identifier, url)
	if err != nil {
		result.Err = err
		result.StatusCode = resp.StatusCode
		result.Duration = time.Since(start)
		w.logFailure(result)
		w.observe(result, metrics.OutcomeFailed)
		return result
	}

	if promoted, ok := w.maybePromote(ctx, identifier, url, resp); ok {
		resp = promoted
	}

	result.URL = resp.URL
	result.StatusCode = resp.StatusCode
	result.Headers = resp.Headers
	result.Body = resp.Body
	result.UsedHeadless = resp.UsedHeadless
	result.Duration = time.Since(start)

	outcome := metrics.OutcomeOK
	if resp.UsedHeadless {
		outcome = metrics.OutcomeHeadless
	}
	w.logger.Debug("identifier fetched",
		zap.String("identifier", identifier),
		zap.Int("status", resp.StatusCode),
		zap.Int("bytes", len(resp.Body)),
		zap.Bool("headless", resp.UsedHeadless),
	)
	w.observe(result, outcome)
	return result
}

func (w *Worker) fetchProbe(ctx context.Context, identifier, url string) (ingest.FetchResponse, error) {
	if w.probeFetcher == nil {
		return ingest.FetchResponse{}, errors.New("no probe fetcher configured")
	}
	resp, err := w.probeFetcher.Fetch(ctx, ingest.FetchRequest{Identifier: identifier, URL: url})
	if err != nil {
		return resp, fmt.Errorf("probe fetch: %w", err)
	}
	return resp, nil
}

func (w *Worker) maybePromote(
	ctx context.Context,
	identifier string,
	url string,
	resp ingest.FetchResponse,
) (ingest.FetchResponse, bool) {
	if w.detector == nil || w.headlessFetcher == nil || !w.detector.ShouldPromote(resp) {
		return resp, false
	}
	rendered, err := w.headlessFetcher.Fetch(ctx, ingest.FetchRequest{Identifier: identifier, URL: url})
	if err != nil {
		w.logger.Warn("headless promotion failed",
			zap.String("identifier", identifier),
			zap.String("url", url),
			zap.Error(err),
		)
		return resp, false
	}
	rendered.UsedHeadless = true
	w.logger.Debug("headless promotion applied", zap.String("identifier", identifier))
	return rendered, true
}

func (w *Worker) logFailure(result ingest.FetchResult) {
	fields := []zap.Field{
		zap.String("identifier", result.Identifier),
		zap.String("url", result.URL),
		zap.Int("status", result.StatusCode),
		zap.Error(result.Err),
	}
	if w.cfg.ReportFailures {
		w.logger.Warn("identifier fetch failed", fields...)
		return
	}
	w.logger.Debug("identifier fetch failed", fields...)
}

func (w *Worker) observe(result ingest.FetchResult, outcome string) {
	metrics.ObserveFetch(result.URL, outcome, len(result.Body), result.Duration)
	if w.observer != nil {
		w.observer.ItemDone(result)
	}
}

func (w *Worker) reply(ctx context.Context, task ingest.Task, result ingest.FetchResult) {
	if task.Reply == nil {
		return
	}
	select {
	case task.Reply <- ingest.TaskResult{Index: task.Index, Result: result}:
	case <-ctx.Done():
	}
}
