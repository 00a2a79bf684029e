package ingest

import "errors"

// Fatal error classes. Item-level fetch and extraction failures are never
// returned as errors; they degrade to empty fields.
var (
	// ErrSchemaViolation reports a batch or file whose fields disagree with the
	// writer's fixed schema.
	ErrSchemaViolation = errors.New("schema violation")
	// ErrWriterIO reports a failure on the columnar write path.
	ErrWriterIO = errors.New("columnar write failed")
	// ErrWriterClosed reports a write attempted after the writer was closed.
	ErrWriterClosed = errors.New("columnar writer is closed")
)
