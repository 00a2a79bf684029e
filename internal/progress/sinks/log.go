package sinks

import (
	"context"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/JakeFAU/page-ingest/internal/progress"
)

// LogSink writes run milestones at INFO and per-item events at DEBUG.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink wires a Zap logger to the sink interface.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

// Consume logs each event in the batch using structured fields.
func (s *LogSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		level := zapcore.InfoLevel
		if evt.Stage == progress.StageItemDone || evt.Stage == progress.StageBatchWritten {
			level = zapcore.DebugLevel
		}
		if evt.Stage == progress.StageRunError {
			level = zapcore.ErrorLevel
		}
		ce := s.logger.Check(level, "progress event")
		if ce == nil {
			continue
		}
		ce.Write(
			zap.Stringer("run_id", evt.RunUUID()),
			zap.String("stage", string(evt.Stage)),
			zap.String("command", evt.Command),
			zap.String("identifier", evt.Identifier),
			zap.String("status_class", string(evt.StatusClass)),
			zap.Bool("failed", evt.Failed),
			zap.Int64("bytes", evt.Bytes),
			zap.Int64("rows", evt.Rows),
			zap.Duration("dur", evt.Dur),
			zap.String("note", evt.Note),
		)
	}
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *LogSink) Close(context.Context) error {
	return nil
}
