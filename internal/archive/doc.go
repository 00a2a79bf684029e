// Package archive converts between tar archives of one markup file per
// identifier and raw-capture columnar files, in both directions, one batch
// or row group at a time.
package archive
