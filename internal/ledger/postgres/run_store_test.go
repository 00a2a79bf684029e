package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/page-ingest/internal/ingest"
)

func sampleRun() ingest.RunRecord {
	start := time.Unix(1700000000, 0).UTC()
	return ingest.RunRecord{
		ID:         "01890a5d-ac96-774b-bcce-b302099a8057",
		Command:    "scrape",
		Output:     "raw.parquet",
		BlobURI:    "gs://bucket/runs/raw.parquet",
		SHA256:     "abc123",
		Status:     ingest.RunStatusSucceeded,
		Summary:    ingest.RunSummary{Identifiers: 3, Rows: 3, RowGroups: 1, Failed: 1},
		StartedAt:  start,
		FinishedAt: start.Add(2 * time.Second),
		Duration:   2 * time.Second,
	}
}

func TestRecordRunInsertsRow(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewRunStoreWithPool(mock, "")
	require.NoError(t, err)

	run := sampleRun()
	mock.ExpectExec("INSERT INTO ingest_runs").
		WithArgs(
			run.ID,
			run.Command,
			run.Output,
			run.BlobURI,
			run.SHA256,
			"succeeded",
			"",
			3,
			int64(3),
			1,
			1,
			0,
			[]byte(`{"identifiers":3,"rows":3,"row_groups":1,"failed":1,"skipped":0}`),
			run.StartedAt,
			run.FinishedAt,
			int64(2000),
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, store.RecordRun(context.Background(), run))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordRunPropagatesErrors(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewRunStoreWithPool(mock, "custom_runs")
	require.NoError(t, err)

	mock.ExpectExec("INSERT INTO custom_runs").WillReturnError(errors.New("connection reset"))
	err = store.RecordRun(context.Background(), sampleRun())
	require.ErrorContains(t, err, "insert run")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordRunRequiresID(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewRunStoreWithPool(mock, "")
	require.NoError(t, err)
	run := sampleRun()
	run.ID = ""
	require.Error(t, store.RecordRun(context.Background(), run))
}

func TestEnsureSchema(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewRunStoreWithPool(mock, "")
	require.NoError(t, err)
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS ingest_runs")).
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	require.NoError(t, store.EnsureSchema(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNewRunStoreValidation(t *testing.T) {
	t.Parallel()

	_, err := NewRunStoreWithPool(nil, "")
	require.Error(t, err)

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	_, err = NewRunStoreWithPool(mock, "runs; DROP TABLE x")
	require.Error(t, err)

	_, err = NewRunStore(context.Background(), Config{})
	require.Error(t, err)
}
