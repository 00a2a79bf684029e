package progress

import (
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/page-ingest/internal/ingest"
	"github.com/JakeFAU/page-ingest/internal/metrics"
)

// Reporter turns per-item and per-batch signals into counter updates, hub
// events and periodic progress log lines. It is safe for concurrent use.
type Reporter struct {
	runID    [16]byte
	command  string
	counter  *Counter
	emitter  Emitter
	clock    ingest.Clock
	logger   *zap.Logger
	logEvery int64
}

// ReporterConfig configures a Reporter. Emitter and Logger may be nil.
type ReporterConfig struct {
	RunID   [16]byte
	Command string
	Counter *Counter
	Emitter Emitter
	Clock   ingest.Clock
	Logger  *zap.Logger
	// LogEvery logs a progress line each time this many items complete.
	LogEvery int
}

type wallClock struct{}

func (wallClock) Now() time.Time { return time.Now().UTC() }

// NewReporter builds a Reporter.
func NewReporter(cfg ReporterConfig) *Reporter {
	if cfg.Counter == nil {
		cfg.Counter = &Counter{}
	}
	if cfg.Clock == nil {
		cfg.Clock = wallClock{}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.LogEvery <= 0 {
		cfg.LogEvery = 100
	}
	return &Reporter{
		runID:    cfg.RunID,
		command:  cfg.Command,
		counter:  cfg.Counter,
		emitter:  cfg.Emitter,
		clock:    cfg.Clock,
		logger:   cfg.Logger,
		logEvery: int64(cfg.LogEvery),
	}
}

// Counter exposes the underlying counter.
func (r *Reporter) Counter() *Counter {
	return r.counter
}

// Start resets the counter for total items and emits RUN_START.
func (r *Reporter) Start(total int) {
	now := r.clock.Now()
	r.counter.Reset(int64(total), now)
	r.emit(Event{Stage: StageRunStart, TS: now, Rows: int64(total)})
	r.logger.Info("run started", zap.String("command", r.command), zap.Int("total", total))
}

// ItemDone records one completed identifier.
func (r *Reporter) ItemDone(result ingest.FetchResult) {
	r.counter.Inc(result.Failed())
	evt := Event{
		Stage:       StageItemDone,
		TS:          r.clock.Now(),
		Identifier:  result.Identifier,
		Site:        metrics.SanitizeSite(result.URL),
		StatusClass: ClassifyStatus(result.StatusCode),
		Failed:      result.Failed(),
		Headless:    result.UsedHeadless,
		Bytes:       int64(len(result.Body)),
		Dur:         result.Duration,
	}
	if result.Err != nil {
		evt.Note = result.Err.Error()
	}
	r.emit(evt)
	r.maybeLog()
}

// BatchWritten records a row group appended to the output.
func (r *Reporter) BatchWritten(rows int) {
	r.counter.AddRows(int64(rows))
	metrics.ObserveRowGroup(r.command, rows)
	r.emit(Event{Stage: StageBatchWritten, TS: r.clock.Now(), Rows: int64(rows)})
}

// Finish emits RUN_DONE, or RUN_ERROR when err is non-nil.
func (r *Reporter) Finish(err error) {
	now := r.clock.Now()
	snap := r.counter.Snapshot(now)
	evt := Event{Stage: StageRunDone, TS: now, Rows: snap.Rows, Dur: now.Sub(snap.StartedAt)}
	if snap.StartedAt.IsZero() {
		evt.Dur = 0
	}
	if err != nil {
		evt.Stage = StageRunError
		evt.Note = err.Error()
	}
	r.emit(evt)
}

func (r *Reporter) emit(evt Event) {
	if r.emitter == nil {
		return
	}
	evt.RunID = r.runID
	evt.Command = r.command
	r.emitter.Emit(evt)
}

func (r *Reporter) maybeLog() {
	snap := r.counter.Snapshot(r.clock.Now())
	if snap.Done%r.logEvery != 0 && snap.Done != snap.Total {
		return
	}
	r.logger.Info("progress",
		zap.String("command", r.command),
		zap.Int64("done", snap.Done),
		zap.Int64("total", snap.Total),
		zap.Int64("failed", snap.Failed),
		zap.String("elapsed", snap.Elapsed),
	)
}
