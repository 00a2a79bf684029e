package ingest

import (
	"net/http"
	"slices"
	"time"
)

// FetchResult is the outcome of fetching one identifier's page. Exactly one of
// Body or Err is meaningful; a failed fetch still carries its Identifier.
type FetchResult struct {
	Identifier   string
	URL          string
	StatusCode   int
	Headers      http.Header
	Body         []byte
	Duration     time.Duration
	UsedHeadless bool
	Err          error
}

// Failed reports whether the fetch degraded to a failure.
func (r FetchResult) Failed() bool {
	return r.Err != nil
}

// RawPage is the raw-capture record: the identifier and the page markup.
type RawPage struct {
	Symbol string `parquet:"symbol" json:"symbol"`
	HTML   string `parquet:"html" json:"html"`
}

// Key returns the identifier.
func (p RawPage) Key() string { return p.Symbol }

// Profile is the extracted-capture record for a company profile page.
type Profile struct {
	Symbol      string `parquet:"symbol" json:"symbol"`
	Sector      string `parquet:"sector" json:"sector"`
	Industry    string `parquet:"industry" json:"industry"`
	Employees   string `parquet:"employees" json:"employees"`
	Description string `parquet:"description" json:"description"`
}

// Key returns the identifier.
func (p Profile) Key() string { return p.Symbol }

// Comment is one forum post extracted from a raw topic page.
type Comment struct {
	Symbol      string `parquet:"symbol" json:"symbol"`
	PageNumber  string `parquet:"page_number" json:"page_number"`
	CommentID   string `parquet:"comment_id" json:"comment_id"`
	CommentDate string `parquet:"comment_date" json:"comment_date"`
	CommentText string `parquet:"comment_text" json:"comment_text"`
}

// Key returns the identifier of the topic the comment belongs to.
func (c Comment) Key() string { return c.Symbol }

// CommentColumns is the CSV header written for comment exports.
var CommentColumns = []string{"symbol", "page_number", "comment_id", "comment_date", "comment_text"}

// Values returns the comment fields in CommentColumns order.
func (c Comment) Values() []string {
	return []string{c.Symbol, c.PageNumber, c.CommentID, c.CommentDate, c.CommentText}
}

// Record is implemented by every row type written to a columnar file.
type Record interface {
	Key() string
}

// Schema is the ordered set of string column names of a columnar file.
type Schema struct {
	Fields []string
}

// NewSchema builds a Schema from field names.
func NewSchema(fields ...string) Schema {
	return Schema{Fields: append([]string(nil), fields...)}
}

// Equal reports whether both schemas declare the same fields in the same order.
func (s Schema) Equal(other Schema) bool {
	return slices.Equal(s.Fields, other.Fields)
}

// IsZero reports whether the schema declares no fields.
func (s Schema) IsZero() bool {
	return len(s.Fields) == 0
}

// Batch is an ordered group of records sharing one schema. It is the unit of
// interaction with the columnar writer and maps to one row group.
type Batch[T any] struct {
	Schema Schema
	Rows   []T
}

// Len returns the number of rows in the batch.
func (b Batch[T]) Len() int {
	return len(b.Rows)
}

// RunStatus is the terminal state of a pipeline run.
type RunStatus string

// Run status values recorded in the ledger.
const (
	RunStatusSucceeded RunStatus = "succeeded"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCanceled  RunStatus = "canceled"
)

// RunSummary describes what a run produced.
type RunSummary struct {
	Identifiers int   `json:"identifiers"`
	Rows        int64 `json:"rows"`
	RowGroups   int   `json:"row_groups"`
	Failed      int   `json:"failed"`
	Skipped     int   `json:"skipped"`
}

// RunRecord is persisted to the run ledger once a run finishes.
type RunRecord struct {
	ID         string        `json:"id"`
	Command    string        `json:"command"`
	Output     string        `json:"output"`
	BlobURI    string        `json:"blob_uri,omitempty"`
	SHA256     string        `json:"sha256,omitempty"`
	Status     RunStatus     `json:"status"`
	ErrorText  string        `json:"error_text,omitempty"`
	Summary    RunSummary    `json:"summary"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Duration   time.Duration `json:"-"`
}
