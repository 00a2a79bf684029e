package columnar

import (
	"github.com/parquet-go/parquet-go"

	"github.com/JakeFAU/page-ingest/internal/ingest"
)

// SchemaFor returns the column names of record type T in declaration order.
func SchemaFor[T any]() ingest.Schema {
	return schemaOf(parquet.SchemaOf(new(T)))
}

func schemaOf(s *parquet.Schema) ingest.Schema {
	fields := s.Fields()
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.Name()
	}
	return ingest.Schema{Fields: names}
}

// NewBatch wraps rows in a Batch carrying T's schema.
func NewBatch[T any](rows []T) ingest.Batch[T] {
	return ingest.Batch[T]{Schema: SchemaFor[T](), Rows: rows}
}
