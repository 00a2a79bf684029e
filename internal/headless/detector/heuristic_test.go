package detector

import (
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/page-ingest/internal/ingest"
)

func okResponse(body string) ingest.FetchResponse {
	return ingest.FetchResponse{StatusCode: http.StatusOK, Body: []byte(body)}
}

func TestShouldPromoteEmptyBody(t *testing.T) {
	t.Parallel()

	require.True(t, NewHeuristic(100).ShouldPromote(okResponse("")))
}

func TestShouldPromoteSPAMarkers(t *testing.T) {
	t.Parallel()

	require.True(t, NewHeuristic(100).ShouldPromote(okResponse(`<div id="__next"></div>`)))
}

func TestShouldPromoteScriptDensity(t *testing.T) {
	t.Parallel()

	h := NewHeuristic(1000)
	require.True(t, h.ShouldPromote(okResponse(`<html><script>var a=1; var b=2;</script><p>t</p></html>`)))
}

func TestShouldNotPromoteStaticPage(t *testing.T) {
	t.Parallel()

	body := "<html><body><p>" + strings.Repeat("text ", 100) + "</p></body></html>"
	require.False(t, NewHeuristic(100).ShouldPromote(okResponse(body)))
}

func TestShouldNotPromoteErrors(t *testing.T) {
	t.Parallel()

	resp := ingest.FetchResponse{StatusCode: http.StatusNotFound}
	require.False(t, NewHeuristic(0).ShouldPromote(resp))
}

func TestShouldPromoteMissingExpectedMarker(t *testing.T) {
	t.Parallel()

	body := "<html><body><p>" + strings.Repeat("loading ", 400) + "</p></body></html>"
	h := NewHeuristic(0, "asset-profile-container", "")
	require.Len(t, h.Expect, 1)
	require.True(t, h.ShouldPromote(okResponse(body)))

	rendered := `<html><body><div class="asset-profile-container">` + strings.Repeat("x", 3000) + `</div></body></html>`
	require.False(t, h.ShouldPromote(okResponse(rendered)))
}

func TestScriptShare(t *testing.T) {
	t.Parallel()

	assert.Zero(t, scriptShare([]byte("<p>plain</p>")))
	assert.Equal(t, 100, scriptShare([]byte("<script>x()</script>")))
	assert.Greater(t, scriptShare([]byte("<p>a</p><script>var unterminated = 1;")), 50)
}
