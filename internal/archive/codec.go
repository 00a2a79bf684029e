package archive

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/dsnet/compress/bzip2"
	"github.com/klauspost/compress/gzip"
)

// Archive compression names.
const (
	CompressionBzip2 = "bz2"
	CompressionGzip  = "gzip"
	CompressionNone  = "none"
)

var (
	bzip2Magic = []byte("BZh")
	gzipMagic  = []byte{0x1f, 0x8b}
)

// NormalizeCompression maps accepted aliases onto the canonical names.
func NormalizeCompression(name string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "bz2", "bzip2", "tbz2":
		return CompressionBzip2, nil
	case "gz", "gzip", "tgz":
		return CompressionGzip, nil
	case "none", "tar", "plain":
		return CompressionNone, nil
	default:
		return "", fmt.Errorf("unknown archive compression %q", name)
	}
}

// Detect sniffs the stream's magic bytes. Streams that are neither bzip2 nor
// gzip are treated as plain tar.
func Detect(r *bufio.Reader) string {
	head, _ := r.Peek(len(bzip2Magic))
	switch {
	case bytes.HasPrefix(head, bzip2Magic):
		return CompressionBzip2
	case bytes.HasPrefix(head, gzipMagic):
		return CompressionGzip
	default:
		return CompressionNone
	}
}

// openDecompressor wraps r according to its detected compression.
func openDecompressor(r io.Reader) (io.ReadCloser, string, error) {
	br := bufio.NewReader(r)
	kind := Detect(br)
	switch kind {
	case CompressionBzip2:
		zr, err := bzip2.NewReader(br, nil)
		if err != nil {
			return nil, kind, fmt.Errorf("open bzip2 stream: %w", err)
		}
		return zr, kind, nil
	case CompressionGzip:
		zr, err := gzip.NewReader(br)
		if err != nil {
			return nil, kind, fmt.Errorf("open gzip stream: %w", err)
		}
		return zr, kind, nil
	default:
		return io.NopCloser(br), kind, nil
	}
}

// openCompressor wraps w with the named compression.
func openCompressor(w io.Writer, name string) (io.WriteCloser, error) {
	kind, err := NormalizeCompression(name)
	if err != nil {
		return nil, err
	}
	switch kind {
	case CompressionBzip2:
		zw, err := bzip2.NewWriter(w, &bzip2.WriterConfig{Level: bzip2.DefaultCompression})
		if err != nil {
			return nil, fmt.Errorf("open bzip2 writer: %w", err)
		}
		return zw, nil
	case CompressionGzip:
		return gzip.NewWriter(w), nil
	default:
		return nopWriteCloser{w}, nil
	}
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }
