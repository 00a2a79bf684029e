package columnar

import (
	"fmt"
	"strings"

	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress"
)

// DefaultCodec is used when no compression is configured.
const DefaultCodec = "brotli"

// Codecs lists the accepted compression names.
var Codecs = []string{"brotli", "snappy", "gzip", "zstd", "lz4", "none"}

// ParseCodec maps a compression name to its Parquet codec. Names are case
// insensitive; "" selects DefaultCodec.
func ParseCodec(name string) (compress.Codec, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "brotli":
		return &parquet.Brotli, nil
	case "snappy":
		return &parquet.Snappy, nil
	case "gzip":
		return &parquet.Gzip, nil
	case "zstd":
		return &parquet.Zstd, nil
	case "lz4", "lz4_raw":
		return &parquet.Lz4Raw, nil
	case "none", "uncompressed":
		return &parquet.Uncompressed, nil
	default:
		return nil, fmt.Errorf("unknown compression %q (want one of %s)", name, strings.Join(Codecs, ", "))
	}
}
