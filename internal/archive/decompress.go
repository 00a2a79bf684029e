package archive

import (
	"archive/tar"
	"context"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/page-ingest/internal/ingest"
)

// RowGroupSource yields raw-capture rows one row group at a time;
// *columnar.Reader satisfies it.
type RowGroupSource interface {
	Each(ctx context.Context, fn func(group int, rows []ingest.RawPage) error) error
}

var epoch = time.Unix(0, 0)

// Decompress writes one tar entry per row of src to dst, compressed with
// opts.Compression. Entry metadata is fixed so equal input gives equal bytes.
func Decompress(ctx context.Context, src RowGroupSource, dst io.Writer, opts Options) (stats Stats, err error) {
	opts = opts.withDefaults()

	tc, err := newTranscoder(opts.Encoding)
	if err != nil {
		return stats, err
	}
	kind, err := NormalizeCompression(opts.Compression)
	if err != nil {
		return stats, err
	}
	stats.Format = kind
	zw, err := openCompressor(dst, kind)
	if err != nil {
		return stats, err
	}
	tw := tar.NewWriter(zw)
	defer func() {
		if cerr := tw.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("finalize tar: %w", cerr)
		}
		if cerr := zw.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("finalize %s stream: %w", kind, cerr)
		}
	}()

	err = src.Each(ctx, func(_ int, rows []ingest.RawPage) error {
		for _, row := range rows {
			payload, err := tc.encode(row.HTML)
			if err != nil {
				return fmt.Errorf("identifier %s: %w", row.Symbol, err)
			}
			hdr := &tar.Header{
				Typeflag: tar.TypeReg,
				Name:     opts.EntryName(row.Symbol),
				Size:     int64(len(payload)),
				Mode:     0o644,
				ModTime:  epoch,
			}
			if err := tw.WriteHeader(hdr); err != nil {
				return fmt.Errorf("write header %s: %w", hdr.Name, err)
			}
			if _, err := tw.Write(payload); err != nil {
				return fmt.Errorf("write entry %s: %w", hdr.Name, err)
			}
			stats.Entries++
		}
		stats.Batches++
		return nil
	})
	if err != nil {
		return stats, err
	}
	opts.Logger.Info("archive written",
		zap.String("format", kind),
		zap.Int("entries", stats.Entries),
		zap.Int("row_groups", stats.Batches),
	)
	return stats, nil
}
