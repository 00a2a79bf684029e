package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/page-ingest/internal/api"
	"github.com/JakeFAU/page-ingest/internal/ingest"
	"github.com/JakeFAU/page-ingest/internal/metrics"
	"github.com/JakeFAU/page-ingest/internal/progress"
	"github.com/JakeFAU/page-ingest/internal/progress/sinks"
)

const finalizeTimeout = 30 * time.Second

// Run is one command invocation: its id, progress wiring and optional
// status server.
type Run struct {
	ID        string
	Command   string
	Output    string
	StartedAt time.Time
	Reporter  *progress.Reporter

	hub          *progress.Hub
	server       *api.Server
	stopServer   context.CancelFunc
	serverDone   chan error
	logger       *zap.Logger
	completedRun bool
}

// StartRun allocates a run id, starts the progress hub and, when enabled,
// the status server. output is the file the command produces.
func (a *App) StartRun(ctx context.Context, command, output string) (*Run, error) {
	id, rawID, err := a.svc.IDs.NewRunID()
	if err != nil {
		return nil, fmt.Errorf("new run id: %w", err)
	}
	logger := a.logger.With(zap.String("run_id", id), zap.String("command", command))

	hub := progress.NewHub(progress.Config{
		BufferSize:     a.cfg.Progress.BufferSize,
		MaxBatchEvents: a.cfg.Progress.MaxBatchEvents,
		MaxBatchWait:   time.Duration(a.cfg.Progress.FlushIntervalMs) * time.Millisecond,
		Logger:         logger,
	}, sinks.NewLogSink(logger.Named("progress")), a.progress)

	counter := &progress.Counter{}
	run := &Run{
		ID:        id,
		Command:   command,
		Output:    output,
		StartedAt: a.svc.Clock.Now(),
		hub:       hub,
		logger:    logger,
		Reporter: progress.NewReporter(progress.ReporterConfig{
			RunID:    rawID,
			Command:  command,
			Counter:  counter,
			Emitter:  hub,
			Clock:    a.svc.Clock,
			Logger:   logger,
			LogEvery: a.cfg.Progress.LogEvery,
		}),
	}

	if a.cfg.Server.Enabled {
		run.server = api.NewServer(counter, a.svc.Clock, api.RunInfo{ID: id, Command: command}, logger.Named("api"))
		serverCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		run.stopServer = cancel
		run.serverDone = make(chan error, 1)
		go func() {
			run.serverDone <- run.server.ListenAndServe(serverCtx, a.cfg.Server.Addr)
		}()
	}
	return run, nil
}

// Complete finalizes a run: it classifies the outcome, copies the output to
// the blob store, records the ledger row and publishes a notification. Post
// run steps run even when ctx is already canceled. The first post-run error
// is returned after every step has been attempted.
func (a *App) Complete(ctx context.Context, run *Run, summary ingest.RunSummary, runErr error) (ingest.RunRecord, error) {
	if run == nil {
		return ingest.RunRecord{}, errors.New("run is required")
	}
	if run.completedRun {
		return ingest.RunRecord{}, errors.New("run already completed")
	}
	run.completedRun = true

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalizeTimeout)
	defer cancel()

	finished := a.svc.Clock.Now()
	record := ingest.RunRecord{
		ID:         run.ID,
		Command:    run.Command,
		Output:     run.Output,
		Status:     classify(runErr),
		Summary:    summary,
		StartedAt:  run.StartedAt,
		FinishedAt: finished,
		Duration:   finished.Sub(run.StartedAt),
	}
	if runErr != nil {
		record.ErrorText = runErr.Error()
	}
	metrics.ObserveRun(run.Command, string(record.Status))

	var errs []error
	if record.Status == ingest.RunStatusSucceeded && run.Output != "" {
		if err := a.publishArtifact(ctx, run, &record); err != nil {
			errs = append(errs, err)
		}
	}
	if a.svc.Runs != nil {
		if err := a.svc.Runs.RecordRun(ctx, record); err != nil {
			errs = append(errs, fmt.Errorf("record run: %w", err))
		}
	}
	if a.svc.Publisher != nil {
		if _, err := a.svc.Publisher.Publish(ctx, a.cfg.PubSub.TopicName, Notice{RunRecord: record}); err != nil {
			errs = append(errs, fmt.Errorf("publish run: %w", err))
		}
	}
	if run.server != nil {
		run.server.SetLastRun(record)
	}
	if err := run.hub.Close(ctx); err != nil {
		run.logger.Warn("progress hub close failed", zap.Error(err))
	}

	fields := []zap.Field{
		zap.String("status", string(record.Status)),
		zap.Int("identifiers", summary.Identifiers),
		zap.Int64("rows", summary.Rows),
		zap.Int("row_groups", summary.RowGroups),
		zap.Int("failed", summary.Failed),
		zap.Int("skipped", summary.Skipped),
		zap.Duration("duration", record.Duration),
	}
	if record.BlobURI != "" {
		fields = append(fields, zap.String("blob_uri", record.BlobURI))
	}
	if runErr != nil {
		run.logger.Error("run finished", append(fields, zap.Error(runErr))...)
	} else {
		run.logger.Info("run finished", fields...)
	}
	return record, errors.Join(errs...)
}

// Stop shuts the status server down. It is safe to call more than once.
func (r *Run) Stop() error {
	if r.stopServer == nil {
		return nil
	}
	r.stopServer()
	r.stopServer = nil
	return <-r.serverDone
}

func (a *App) publishArtifact(ctx context.Context, run *Run, record *ingest.RunRecord) error {
	f, err := os.Open(run.Output) // #nosec G304 -- output path is chosen by the operator.
	if err != nil {
		return fmt.Errorf("open output: %w", err)
	}
	digest, err := a.svc.Hasher.HashReader(f)
	_ = f.Close()
	if err != nil {
		return fmt.Errorf("hash output: %w", err)
	}
	record.SHA256 = digest

	if a.svc.Blobs == nil {
		return nil
	}
	f, err = os.Open(run.Output) // #nosec G304 -- same file, reopened for upload.
	if err != nil {
		return fmt.Errorf("open output: %w", err)
	}
	defer func() { _ = f.Close() }()
	name := filepath.Base(run.Output)
	uri, err := a.svc.Blobs.PutObject(ctx, path.Join(run.ID, name), contentType(name), f)
	if err != nil {
		return fmt.Errorf("upload output: %w", err)
	}
	record.BlobURI = uri
	return nil
}

func classify(err error) ingest.RunStatus {
	switch {
	case err == nil:
		return ingest.RunStatusSucceeded
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return ingest.RunStatusCanceled
	default:
		return ingest.RunStatusFailed
	}
}

func contentType(name string) string {
	lower := strings.ToLower(name)
	switch {
	case strings.HasSuffix(lower, ".parquet"):
		return "application/vnd.apache.parquet"
	case strings.HasSuffix(lower, ".bz2"), strings.HasSuffix(lower, ".tbz2"):
		return "application/x-bzip2"
	case strings.HasSuffix(lower, ".gz"), strings.HasSuffix(lower, ".tgz"):
		return "application/gzip"
	case strings.HasSuffix(lower, ".tar"):
		return "application/x-tar"
	case strings.HasSuffix(lower, ".csv"):
		return "text/csv; charset=utf-8"
	default:
		return "application/octet-stream"
	}
}

// Notice is the run-completed message body.
type Notice struct {
	ingest.RunRecord
}

// Attributes exposes routing attributes for Pub/Sub subscribers.
func (n Notice) Attributes() map[string]string {
	return map[string]string{
		"run_id":  n.ID,
		"command": n.Command,
		"status":  string(n.Status),
	}
}
