package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeSite(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{"standard http", "http://example.com/path", "example.com"},
		{"standard https", "https://Finance.Yahoo.com/quote/AAPL/profile", "finance.yahoo.com"},
		{"no scheme", "example.com/path", "example.com"},
		{"host with port", "example.com:8080", "example.com"},
		{"ip address", "192.168.1.1", "192.168.1.1"},
		{"invalid url", "http://%", "unknown"},
		{"empty string", "", "unknown"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, SanitizeSite(tc.input))
		})
	}
}

func TestInitIdempotent(t *testing.T) {
	Init()
	Init()

	require.NotNil(t, fetchesTotal)
	require.NotNil(t, rowsWrittenTotal)
	require.NotNil(t, httpRequestsTotal)
}

func TestObserveFetch(t *testing.T) {
	ObserveFetch("https://forum.example.org/topic/1/", OutcomeOK, 512, 20*time.Millisecond)
	ObserveFetch("https://forum.example.org/topic/2/", OutcomeFailed, 0, time.Second)

	assert.InDelta(t, 1, testutil.ToFloat64(fetchesTotal.WithLabelValues("forum.example.org", OutcomeOK)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(fetchesTotal.WithLabelValues("forum.example.org", OutcomeFailed)), 0)
	assert.InDelta(t, 512, testutil.ToFloat64(fetchBytesTotal.WithLabelValues("forum.example.org")), 0)
}

func TestObserveRowGroupAndRun(t *testing.T) {
	ObserveRowGroup("compress-test", 1000)
	ObserveRowGroup("compress-test", 17)
	ObserveRun("compress-test", "succeeded")

	assert.InDelta(t, 2, testutil.ToFloat64(rowGroupsWrittenTotal.WithLabelValues("compress-test")), 0)
	assert.InDelta(t, 1017, testutil.ToFloat64(rowsWrittenTotal.WithLabelValues("compress-test")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(runsTotal.WithLabelValues("compress-test", "succeeded")), 0)
}

func TestActiveWorkersGauge(t *testing.T) {
	before := func() float64 { Init(); return testutil.ToFloat64(activeWorkers) }()
	IncActiveWorkers()
	IncActiveWorkers()
	DecActiveWorkers()
	assert.InDelta(t, before+1, testutil.ToFloat64(activeWorkers), 0)
	DecActiveWorkers()
}

// Fuzz test for SanitizeSite.
func FuzzSanitizeSite(f *testing.F) {
	for _, tc := range []string{"http://example.com", "https://finance.yahoo.com", "ftp://example.com"} {
		f.Add(tc)
	}
	f.Fuzz(func(t *testing.T, orig string) {
		if SanitizeSite(orig) == "" {
			t.Errorf("SanitizeSite(%q) returned an empty string", orig)
		}
	})
}
