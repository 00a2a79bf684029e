package archive

import (
	"archive/tar"
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/JakeFAU/page-ingest/internal/batch"
	"github.com/JakeFAU/page-ingest/internal/ingest"
)

// BatchWriter accepts raw-capture batches; *columnar.Writer satisfies it.
type BatchWriter interface {
	Schema() ingest.Schema
	Write(ctx context.Context, b ingest.Batch[ingest.RawPage]) error
}

// Stats reports what a conversion did.
type Stats struct {
	Entries int
	Skipped int
	Batches int
	Format  string
}

// Compress reads a tar archive from src and writes every matching entry to
// w as a RawPage, BatchSize rows per batch. Entries that are not regular
// files or lack the extension are skipped. The caller owns w and closes it.
func Compress(ctx context.Context, src io.Reader, w BatchWriter, opts Options) (Stats, error) {
	opts = opts.withDefaults()
	var stats Stats

	tc, err := newTranscoder(opts.Encoding)
	if err != nil {
		return stats, err
	}
	rc, kind, err := openDecompressor(src)
	if err != nil {
		return stats, err
	}
	defer func() { _ = rc.Close() }()
	stats.Format = kind

	acc, err := batch.NewAccumulator[ingest.RawPage](w.Schema(), opts.BatchSize, w.Write)
	if err != nil {
		return stats, err
	}

	tr := tar.NewReader(rc)
	for {
		if err := ctx.Err(); err != nil {
			return stats, fmt.Errorf("compress canceled: %w", err)
		}
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return stats, fmt.Errorf("read tar header: %w", err)
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		id, ok := opts.identifierOf(hdr.Name)
		if !ok {
			stats.Skipped++
			opts.Logger.Debug("archive entry skipped", zap.String("entry", hdr.Name))
			continue
		}
		payload, err := io.ReadAll(tr)
		if err != nil {
			return stats, fmt.Errorf("read entry %s: %w", hdr.Name, err)
		}
		text, err := tc.decode(payload)
		if err != nil {
			return stats, fmt.Errorf("entry %s: %w", hdr.Name, err)
		}
		if err := acc.Add(ctx, ingest.RawPage{Symbol: id, HTML: text}); err != nil {
			return stats, err
		}
		stats.Entries++
	}
	if err := acc.Close(ctx); err != nil {
		return stats, err
	}
	stats.Batches = acc.Emitted()
	opts.Logger.Info("archive compressed",
		zap.String("format", kind),
		zap.Int("entries", stats.Entries),
		zap.Int("skipped", stats.Skipped),
		zap.Int("batches", stats.Batches),
	)
	return stats, nil
}
