package columnar

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/parquet-go/parquet-go"

	"github.com/JakeFAU/page-ingest/internal/ingest"
)

// Reader streams records of type T from a Parquet file, one row group at a
// time.
type Reader[T any] struct {
	file   *os.File
	pf     *parquet.File
	schema ingest.Schema
}

// Open opens path and checks that its columns match T exactly.
func Open[T any](path string) (*Reader[T], error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open columnar file: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("stat columnar file: %w", err)
	}
	pf, err := parquet.OpenFile(f, info.Size())
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("read columnar footer: %w", err)
	}

	want := SchemaFor[T]()
	got := schemaOf(pf.Schema())
	if !got.Equal(want) {
		_ = f.Close()
		return nil, fmt.Errorf("%w: file fields %v, expected %v", ingest.ErrSchemaViolation, got.Fields, want.Fields)
	}
	return &Reader[T]{file: f, pf: pf, schema: got}, nil
}

// Schema returns the file schema.
func (r *Reader[T]) Schema() ingest.Schema {
	return r.schema
}

// NumRowGroups returns the number of row groups in the file.
func (r *Reader[T]) NumRowGroups() int {
	return len(r.pf.RowGroups())
}

// NumRows returns the total row count recorded in the footer.
func (r *Reader[T]) NumRows() int64 {
	return r.pf.NumRows()
}

// ReadRowGroup decodes row group i in full.
func (r *Reader[T]) ReadRowGroup(i int) ([]T, error) {
	groups := r.pf.RowGroups()
	if i < 0 || i >= len(groups) {
		return nil, fmt.Errorf("row group %d out of range [0,%d)", i, len(groups))
	}
	rg := groups[i]
	rows := make([]T, rg.NumRows())

	gr := parquet.NewGenericRowGroupReader[T](rg)
	defer gr.Close()

	read := 0
	for read < len(rows) {
		n, err := gr.Read(rows[read:])
		read += n
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row group %d: %w", i, err)
		}
		if n == 0 {
			break
		}
	}
	return rows[:read], nil
}

// Each calls fn for every row group in file order, stopping at the first
// error or when ctx ends.
func (r *Reader[T]) Each(ctx context.Context, fn func(group int, rows []T) error) error {
	for i := range r.NumRowGroups() {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("columnar read canceled: %w", err)
		}
		rows, err := r.ReadRowGroup(i)
		if err != nil {
			return err
		}
		if err := fn(i, rows); err != nil {
			return err
		}
	}
	return nil
}

// Close releases the file.
func (r *Reader[T]) Close() error {
	if err := r.file.Close(); err != nil {
		return fmt.Errorf("close columnar file: %w", err)
	}
	return nil
}
