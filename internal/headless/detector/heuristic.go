// Package detector decides when a probe response should be re-fetched with
// the headless renderer.
package detector

import (
	"bytes"
	"net/http"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/JakeFAU/page-ingest/internal/ingest"
)

const (
	defaultThreshold   = 2048
	scriptSharePercent = 25
)

var spaMarkers = [][]byte{
	[]byte("__next"),
	[]byte(`id="root"`),
	[]byte(`id="app"`),
	[]byte("data-reactroot"),
}

// Heuristic promotes pages that look like client-rendered shells.
type Heuristic struct {
	BodyLengthThreshold int
	// Expect lists markers a fully rendered page always contains. A successful
	// probe missing every one of them is promoted.
	Expect [][]byte
}

// NewHeuristic creates a detector. A zero threshold uses 2048 bytes.
func NewHeuristic(threshold int, expect ...string) *Heuristic {
	if threshold <= 0 {
		threshold = defaultThreshold
	}
	h := &Heuristic{BodyLengthThreshold: threshold}
	for _, marker := range expect {
		if marker != "" {
			h.Expect = append(h.Expect, []byte(marker))
		}
	}
	return h
}

// ShouldPromote reports whether the probe body needs rendering. Error
// responses are never promoted.
func (h *Heuristic) ShouldPromote(probe ingest.FetchResponse) bool {
	if probe.StatusCode != http.StatusOK {
		return false
	}
	body := probe.Body
	if len(body) == 0 {
		return true
	}
	if len(h.Expect) > 0 && !containsAny(body, h.Expect) {
		return true
	}
	if len(body) < h.BodyLengthThreshold && scriptShare(body) >= scriptSharePercent {
		return true
	}
	return containsAny(body, spaMarkers)
}

func containsAny(body []byte, markers [][]byte) bool {
	for _, marker := range markers {
		if bytes.Contains(body, marker) {
			return true
		}
	}
	return false
}

// scriptShare returns the percentage of body bytes that sit inside script
// elements, tags included. An unterminated script runs to the end of input.
func scriptShare(body []byte) int {
	z := html.NewTokenizer(bytes.NewReader(body))
	covered, depth := 0, 0
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			break
		}
		raw := len(z.Raw())
		switch tt {
		case html.StartTagToken:
			if name, _ := z.TagName(); atom.Lookup(name) == atom.Script {
				depth++
			}
		case html.EndTagToken:
			if name, _ := z.TagName(); atom.Lookup(name) == atom.Script && depth > 0 {
				covered += raw
				depth--
				continue
			}
		}
		if depth > 0 {
			covered += raw
		}
	}
	return covered * 100 / len(body)
}
