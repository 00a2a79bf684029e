package collyfetcher

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/page-ingest/internal/ingest"
)

func TestFetcherBuildCollector(t *testing.T) {
	t.Parallel()

	f := New(Config{UserAgent: "coverage-agent", Timeout: time.Second, MaxBodyBytes: 1024})
	collector := f.buildCollector(ingest.FetchRequest{URL: "https://example.com"}, time.Unix(0, 0), &ingest.FetchResponse{}, new(error))
	assert.Equal(t, "coverage-agent", collector.UserAgent)
	assert.True(t, collector.IgnoreRobotsTxt)
	assert.Equal(t, 1024, collector.MaxBodySize)
}

func TestNewDefaultsUserAgent(t *testing.T) {
	t.Parallel()

	f := New(Config{})
	assert.Equal(t, DefaultUserAgent, f.cfg.UserAgent)
	assert.Equal(t, 30*time.Second, f.cfg.Timeout)
}

func TestConfigureCollectorHooks(t *testing.T) {
	t.Parallel()

	f := New(Config{})
	req := ingest.FetchRequest{
		URL:     "https://example.com",
		Headers: http.Header{"X-Trace": {"yes"}},
	}
	var result ingest.FetchResponse
	var fetchErr error

	hooks := &stubHooks{}
	f.configureCollectorHooks(hooks, req, time.Unix(0, 0), &result, &fetchErr)
	require.NotNil(t, hooks.onRequest)
	require.NotNil(t, hooks.onResponse)
	require.NotNil(t, hooks.onError)

	collyReq := &colly.Request{Headers: &http.Header{}}
	hooks.onRequest(collyReq)
	assert.Equal(t, "yes", collyReq.Headers.Get("X-Trace"))

	hooks.onResponse(&colly.Response{
		StatusCode: http.StatusOK,
		Body:       []byte("body"),
		Headers:    &http.Header{"X-Resp": {"ok"}},
		Request:    &colly.Request{URL: mustParseURL(t, "https://example.com")},
	})
	assert.Equal(t, http.StatusOK, result.StatusCode)
	assert.Equal(t, "body", string(result.Body))
	assert.Equal(t, "ok", result.Headers.Get("X-Resp"))

	hooks.onError(&colly.Response{StatusCode: http.StatusNotFound}, errors.New("boom"))
	require.EqualError(t, fetchErr, "boom")
	assert.Equal(t, http.StatusNotFound, result.StatusCode)
}

func TestCopyHeadersHandlesNil(t *testing.T) {
	t.Parallel()

	f := New(Config{})
	collyReq := &colly.Request{Headers: &http.Header{}}
	f.copyHeaders(ingest.FetchRequest{}, collyReq)
	assert.Empty(t, *collyReq.Headers)
}

func TestFetchAgainstServer(t *testing.T) {
	t.Parallel()

	var gotAgent string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		gotAgent = r.UserAgent()
		_, _ = w.Write([]byte("<html><body>AAPL</body></html>"))
	}))
	t.Cleanup(srv.Close)

	f := New(Config{UserAgent: "ingest-test", Timeout: 5 * time.Second})

	resp, err := f.Fetch(context.Background(), ingest.FetchRequest{Identifier: "AAPL", URL: srv.URL + "/ok"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(resp.Body), "AAPL")
	assert.Equal(t, "ingest-test", gotAgent)

	// Same URL twice must not trip colly's visited check.
	_, err = f.Fetch(context.Background(), ingest.FetchRequest{Identifier: "AAPL", URL: srv.URL + "/ok"})
	require.NoError(t, err)

	resp, err = f.Fetch(context.Background(), ingest.FetchRequest{Identifier: "BAD1", URL: srv.URL + "/missing"})
	require.Error(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestFetchCanceledContext(t *testing.T) {
	t.Parallel()

	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-block:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(func() {
		close(block)
		srv.Close()
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(Config{}).Fetch(ctx, ingest.FetchRequest{URL: srv.URL})
	require.Error(t, err)
}

func TestConcurrentFetchesShareOneClient(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("page " + r.URL.Path))
	}))
	t.Cleanup(srv.Close)

	f := New(Config{Timeout: 5 * time.Second, MaxIdleConnsPerHost: 8})
	const fetches = 8
	bodies := make([]string, fetches)
	errs := make([]error, fetches)
	var wg sync.WaitGroup
	for i := range fetches {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := f.Fetch(context.Background(), ingest.FetchRequest{
				Identifier: strconv.Itoa(i),
				URL:        srv.URL + "/" + strconv.Itoa(i),
			})
			bodies[i], errs[i] = string(resp.Body), err
		}()
	}
	wg.Wait()

	for i := range fetches {
		require.NoError(t, errs[i])
		assert.Equal(t, "page /"+strconv.Itoa(i), bodies[i])
	}
}

func TestFetchCanceledInFlight(t *testing.T) {
	t.Parallel()

	arrived := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(arrived)
		<-r.Context().Done()
	}))
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-arrived
		cancel()
	}()

	resp, err := New(Config{Timeout: 5 * time.Second}).Fetch(ctx, ingest.FetchRequest{URL: srv.URL})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, resp.StatusCode)
	assert.Empty(t, resp.Body)
}

func mustParseURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

type stubHooks struct {
	onRequest  colly.RequestCallback
	onResponse colly.ResponseCallback
	onError    colly.ErrorCallback
}

func (s *stubHooks) OnRequest(cb colly.RequestCallback) {
	s.onRequest = cb
}

func (s *stubHooks) OnResponse(cb colly.ResponseCallback) {
	s.onResponse = cb
}

func (s *stubHooks) OnError(cb colly.ErrorCallback) {
	s.onError = cb
}
