package gcs

import (
	"testing"

	"cloud.google.com/go/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewValidation(t *testing.T) {
	t.Parallel()

	_, err := New(nil, Config{Bucket: "b"})
	require.Error(t, err)

	_, err = New(&storage.Client{}, Config{Bucket: "  "})
	require.Error(t, err)
}

func TestObjectName(t *testing.T) {
	t.Parallel()

	store, err := New(&storage.Client{}, Config{Bucket: "b", Prefix: "/ingest/"})
	require.NoError(t, err)
	assert.Equal(t, "ingest/runs/r1/raw.parquet", store.ObjectName("/runs/r1/raw.parquet"))

	bare, err := New(&storage.Client{}, Config{Bucket: "b"})
	require.NoError(t, err)
	assert.Equal(t, "runs/r1/raw.parquet", bare.ObjectName("runs/r1/raw.parquet"))
}
