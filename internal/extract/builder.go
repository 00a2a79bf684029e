package extract

import (
	"github.com/JakeFAU/page-ingest/internal/ingest"
)

// Builder converts one fetch result into a record. A failed result must still
// produce a record carrying its identifier with every other field empty.
type Builder[T any] func(result ingest.FetchResult) T

// RawPageBuilder keeps the fetched markup verbatim.
func RawPageBuilder(result ingest.FetchResult) ingest.RawPage {
	if result.Failed() {
		return ingest.RawPage{Symbol: result.Identifier}
	}
	return ingest.RawPage{Symbol: result.Identifier, HTML: string(result.Body)}
}

// ProfileBuilder runs the profile rules over the fetched markup.
func ProfileBuilder(result ingest.FetchResult) ingest.Profile {
	if result.Failed() {
		return ingest.Profile{Symbol: result.Identifier}
	}
	return Profile(result.Identifier, result.Body)
}
