// Package ingest defines the core types and contracts shared by the fetch,
// extraction, batching, and columnar storage subsystems.
package ingest
