package pipeline

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/page-ingest/internal/columnar"
	"github.com/JakeFAU/page-ingest/internal/extract"
	"github.com/JakeFAU/page-ingest/internal/ingest"
)

type fakeDispatcher struct {
	mu      sync.Mutex
	batches [][]string
	pages   map[string]string
	err     error
}

func (f *fakeDispatcher) Dispatch(_ context.Context, ids []string) ([]ingest.FetchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.batches = append(f.batches, append([]string(nil), ids...))
	out := make([]ingest.FetchResult, len(ids))
	for i, id := range ids {
		body, ok := f.pages[id]
		if !ok {
			out[i] = ingest.FetchResult{Identifier: id, StatusCode: 404, Err: errors.New("status 404")}
			continue
		}
		out[i] = ingest.FetchResult{Identifier: id, StatusCode: 200, Body: []byte(body)}
	}
	return out, nil
}

type recordingReporter struct {
	started  int
	batches  []int
	finished bool
	err      error
}

func (r *recordingReporter) Start(total int)       { r.started = total }
func (r *recordingReporter) BatchWritten(rows int) { r.batches = append(r.batches, rows) }
func (r *recordingReporter) Finish(err error)      { r.finished, r.err = true, err }

func readAll[T any](t *testing.T, path string) [][]T {
	t.Helper()
	r, err := columnar.Open[T](path)
	require.NoError(t, err)
	defer func() { require.NoError(t, r.Close()) }()
	var groups [][]T
	require.NoError(t, r.Each(context.Background(), func(_ int, rows []T) error {
		groups = append(groups, rows)
		return nil
	}))
	return groups
}

func TestRunRawCaptureSingleBatch(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "raw.parquet")
	w, err := columnar.Create[ingest.RawPage](path, columnar.Options{})
	require.NoError(t, err)

	d := &fakeDispatcher{pages: map[string]string{"AAPL": "<p>a</p>", "MSFT": "<p>m</p>"}}
	rep := &recordingReporter{}
	summary, err := Run(context.Background(), []string{"AAPL", "BAD1", "MSFT"}, d,
		extract.Builder[ingest.RawPage](extract.RawPageBuilder), w, Config{BatchSize: 1000}, rep)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	assert.Equal(t, ingest.RunSummary{Identifiers: 3, Rows: 3, RowGroups: 1, Failed: 1}, summary)
	assert.Equal(t, 3, rep.started)
	assert.Equal(t, []int{3}, rep.batches)
	assert.True(t, rep.finished)
	assert.NoError(t, rep.err)

	groups := readAll[ingest.RawPage](t, path)
	require.Len(t, groups, 1)
	assert.Equal(t, []ingest.RawPage{
		{Symbol: "AAPL", HTML: "<p>a</p>"},
		{Symbol: "BAD1"},
		{Symbol: "MSFT", HTML: "<p>m</p>"},
	}, groups[0])
}

func TestRunProfilesAcrossBatches(t *testing.T) {
	t.Parallel()

	page := func(sector string) string {
		return `<div class="asset-profile-container"><p><span>Sector</span>: <span>` + sector + `</span></p></div>`
	}
	ids := []string{"A", "B", "C", "D", "E"}
	pages := map[string]string{}
	for _, id := range ids {
		pages[id] = page("S" + id)
	}
	path := filepath.Join(t.TempDir(), "profiles.parquet")
	w, err := columnar.Create[ingest.Profile](path, columnar.Options{})
	require.NoError(t, err)

	d := &fakeDispatcher{pages: pages}
	summary, err := Run(context.Background(), ids, d,
		extract.Builder[ingest.Profile](extract.ProfileBuilder), w, Config{BatchSize: 2}, nil)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	assert.Equal(t, [][]string{{"A", "B"}, {"C", "D"}, {"E"}}, d.batches)
	assert.Equal(t, 3, summary.RowGroups)
	assert.EqualValues(t, 5, summary.Rows)

	groups := readAll[ingest.Profile](t, path)
	require.Len(t, groups, 3)
	var got []string
	for _, g := range groups {
		for _, p := range g {
			got = append(got, p.Symbol+"="+p.Sector)
		}
	}
	assert.Equal(t, "A=SA,B=SB,C=SC,D=SD,E=SE", strings.Join(got, ","))
}

func TestRunEmptyInputLeavesZeroRowFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "empty.parquet")
	w, err := columnar.Create[ingest.RawPage](path, columnar.Options{})
	require.NoError(t, err)

	summary, err := Run(context.Background(), nil, &fakeDispatcher{},
		extract.Builder[ingest.RawPage](extract.RawPageBuilder), w, Config{}, nil)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	assert.Equal(t, ingest.RunSummary{}, summary)

	r, err := columnar.Open[ingest.RawPage](path)
	require.NoError(t, err)
	defer func() { require.NoError(t, r.Close()) }()
	assert.Zero(t, r.NumRows())
	assert.Zero(t, r.NumRowGroups())
}

func TestRunDispatchErrorIsReported(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "raw.parquet")
	w, err := columnar.Create[ingest.RawPage](path, columnar.Options{})
	require.NoError(t, err)
	defer func() { _ = w.Close() }()

	boom := errors.New("boom")
	rep := &recordingReporter{}
	_, err = Run(context.Background(), []string{"A"}, &fakeDispatcher{err: boom},
		extract.Builder[ingest.RawPage](extract.RawPageBuilder), w, Config{}, rep)
	require.ErrorIs(t, err, boom)
	assert.ErrorIs(t, rep.err, boom)
}

func TestRunRequiresCollaborators(t *testing.T) {
	t.Parallel()

	_, err := Run[ingest.RawPage](context.Background(), nil, nil, nil, nil, Config{}, nil)
	require.Error(t, err)
}

// cancelingDispatcher serves pages until call number stopAt, where it cancels
// the run and reports the cancellation.
type cancelingDispatcher struct {
	fakeDispatcher
	calls  int
	stopAt int
	cancel context.CancelFunc
}

func (c *cancelingDispatcher) Dispatch(ctx context.Context, ids []string) ([]ingest.FetchResult, error) {
	c.calls++
	if c.calls == c.stopAt {
		c.cancel()
		return nil, ctx.Err()
	}
	return c.fakeDispatcher.Dispatch(ctx, ids)
}

func TestRunCanceledMidwayLeavesReadableFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "raw.parquet")
	w, err := columnar.Create[ingest.RawPage](path, columnar.Options{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d := &cancelingDispatcher{
		fakeDispatcher: fakeDispatcher{pages: map[string]string{"A": "a", "B": "b", "C": "c", "D": "d"}},
		stopAt:         2,
		cancel:         cancel,
	}
	rep := &recordingReporter{}
	summary, err := Run(ctx, []string{"A", "B", "C", "D"}, d,
		extract.Builder[ingest.RawPage](extract.RawPageBuilder), w, Config{BatchSize: 2}, rep)
	require.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, rep.err, context.Canceled)
	assert.Equal(t, ingest.RunSummary{Identifiers: 2, Rows: 2, RowGroups: 1}, summary)

	require.NoError(t, w.Close())
	groups := readAll[ingest.RawPage](t, path)
	require.Len(t, groups, 1)
	assert.Equal(t, []ingest.RawPage{{Symbol: "A", HTML: "a"}, {Symbol: "B", HTML: "b"}}, groups[0])
}
