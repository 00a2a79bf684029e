// Package columnar appends batches of flat string records to a compressed
// Parquet file and streams them back one row group at a time.
//
// A Writer moves through Unopened, Opened, Writing and Closed. The file is
// created by the first non-empty batch, each Write appends exactly one row
// group, and Close finalizes the footer. Close on a writer that never saw a
// batch still produces a valid zero-row file carrying the record schema.
package columnar
