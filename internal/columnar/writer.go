package columnar

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress"
	"go.uber.org/zap"

	"github.com/JakeFAU/page-ingest/internal/ingest"
)

// State is the lifecycle position of a Writer.
type State int

// Writer states.
const (
	StateUnopened State = iota
	StateOpened
	StateWriting
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUnopened:
		return "unopened"
	case StateOpened:
		return "opened"
	case StateWriting:
		return "writing"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Options configures a Writer.
type Options struct {
	// Compression is a codec name accepted by ParseCodec.
	Compression string
	Logger      *zap.Logger
}

// Stats summarizes what a Writer has appended so far.
type Stats struct {
	Rows      int64
	RowGroups int
	State     State
}

// Writer appends batches of T to one Parquet file. It is meant to be owned
// by a single goroutine; the mutex only keeps misuse from corrupting state.
type Writer[T any] struct {
	path   string
	codec  compress.Codec
	schema ingest.Schema
	logger *zap.Logger

	mu     sync.Mutex
	state  State
	file   *os.File
	pw     *parquet.GenericWriter[T]
	rows   int64
	groups int
}

// Create prepares a writer for path. Nothing touches the disk until the first
// Write or Close.
func Create[T any](path string, opts Options) (*Writer[T], error) {
	if path == "" {
		return nil, errors.New("columnar: output path is required")
	}
	codec, err := ParseCodec(opts.Compression)
	if err != nil {
		return nil, fmt.Errorf("columnar: %w", err)
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Writer[T]{
		path:   path,
		codec:  codec,
		schema: SchemaFor[T](),
		logger: logger,
	}, nil
}

// Schema returns the fixed schema of the file.
func (w *Writer[T]) Schema() ingest.Schema {
	return w.schema
}

// Path returns the output path.
func (w *Writer[T]) Path() string {
	return w.path
}

// Write appends batch as one row group. Empty batches are ignored.
func (w *Writer[T]) Write(ctx context.Context, batch ingest.Batch[T]) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state == StateClosed {
		return ingest.ErrWriterClosed
	}
	if !batch.Schema.Equal(w.schema) {
		return fmt.Errorf("%w: batch fields %v, file fields %v", ingest.ErrSchemaViolation, batch.Schema.Fields, w.schema.Fields)
	}
	if batch.Len() == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("columnar write canceled: %w", err)
	}
	if w.state == StateUnopened {
		if err := w.open(); err != nil {
			return err
		}
	}

	if _, err := w.pw.Write(batch.Rows); err != nil {
		return fmt.Errorf("%w: append rows: %w", ingest.ErrWriterIO, err)
	}
	if err := w.pw.Flush(); err != nil {
		return fmt.Errorf("%w: flush row group: %w", ingest.ErrWriterIO, err)
	}
	w.state = StateWriting
	w.rows += int64(batch.Len())
	w.groups++
	w.logger.Debug("row group written",
		zap.String("path", w.path),
		zap.Int("row_group", w.groups-1),
		zap.Int("rows", batch.Len()),
	)
	return nil
}

// Close finalizes the footer and releases the file. Calls after the first
// return nil, so Close is safe to defer next to an explicit call.
func (w *Writer[T]) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	switch w.state {
	case StateClosed:
		return nil
	case StateUnopened:
		if err := w.open(); err != nil {
			w.state = StateClosed
			return err
		}
	}
	w.state = StateClosed

	var errs []error
	if err := w.pw.Close(); err != nil {
		errs = append(errs, fmt.Errorf("%w: finalize footer: %w", ingest.ErrWriterIO, err))
	}
	if err := w.file.Sync(); err != nil {
		errs = append(errs, fmt.Errorf("%w: sync: %w", ingest.ErrWriterIO, err))
	}
	if err := w.file.Close(); err != nil {
		errs = append(errs, fmt.Errorf("%w: close file: %w", ingest.ErrWriterIO, err))
	}
	w.logger.Info("columnar file closed",
		zap.String("path", w.path),
		zap.Int64("rows", w.rows),
		zap.Int("row_groups", w.groups),
	)
	return errors.Join(errs...)
}

// Stats reports rows and row groups appended so far.
func (w *Writer[T]) Stats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return Stats{Rows: w.rows, RowGroups: w.groups, State: w.state}
}

func (w *Writer[T]) open() error {
	if dir := filepath.Dir(w.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("%w: create directory: %w", ingest.ErrWriterIO, err)
		}
	}
	f, err := os.Create(w.path)
	if err != nil {
		return fmt.Errorf("%w: create file: %w", ingest.ErrWriterIO, err)
	}
	w.file = f
	w.pw = parquet.NewGenericWriter[T](f, parquet.Compression(w.codec))
	w.state = StateOpened
	w.logger.Debug("columnar file opened", zap.String("path", w.path), zap.Strings("fields", w.schema.Fields))
	return nil
}
