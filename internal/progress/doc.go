// Package progress reports run progress. A Counter tracks completed
// identifiers against a known total; a Hub batches Events on a background
// goroutine and fans them out to pluggable sinks such as structured logs or
// Prometheus. Neither ever blocks the fetch path.
package progress
