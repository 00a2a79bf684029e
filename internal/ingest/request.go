package ingest

import (
	"net/http"
	"net/url"
	"strings"
	"time"
)

// IdentifierPlaceholder is replaced by the escaped identifier in URL templates.
const IdentifierPlaceholder = "{id}"

// FetchRequest captures everything needed to fetch a URL.
type FetchRequest struct {
	Identifier string
	URL        string
	Headers    http.Header
}

// FetchResponse is the result returned by a Fetcher implementation.
type FetchResponse struct {
	URL          string
	StatusCode   int
	Headers      http.Header
	Body         []byte
	Duration     time.Duration
	UsedHeadless bool
}

// Task is one identifier queued for fetching. Results are delivered on Reply,
// which is owned by the batch that issued the task.
type Task struct {
	Index      int
	Identifier string
	Reply      chan<- TaskResult
}

// TaskResult pairs a FetchResult with the position of its task in the batch.
type TaskResult struct {
	Index  int
	Result FetchResult
}

// ExpandURL substitutes every placeholder in template with the path-escaped
// identifier.
func ExpandURL(template, identifier string) string {
	return strings.ReplaceAll(template, IdentifierPlaceholder, url.PathEscape(identifier))
}
