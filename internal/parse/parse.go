// Package parse exports forum comments from a raw-capture Parquet file.
package parse

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/JakeFAU/page-ingest/internal/extract"
	"github.com/JakeFAU/page-ingest/internal/ingest"
)

// Source yields raw pages one row group at a time; *columnar.Reader satisfies it.
type Source interface {
	Each(ctx context.Context, fn func(group int, rows []ingest.RawPage) error) error
}

// Stats reports what an export did.
type Stats struct {
	Pages    int
	Empty    int
	Comments int
}

// Comments writes a CSV with a header row and one line per comment found in
// src. Pages without articles contribute nothing and are counted as Empty.
func Comments(ctx context.Context, src Source, dst io.Writer, logger *zap.Logger) (Stats, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var stats Stats
	cw := csv.NewWriter(dst)
	if err := cw.Write(ingest.CommentColumns); err != nil {
		return stats, fmt.Errorf("write csv header: %w", err)
	}

	err := src.Each(ctx, func(group int, rows []ingest.RawPage) error {
		for _, page := range rows {
			stats.Pages++
			comments := extract.Comments(page.Symbol, []byte(page.HTML))
			if len(comments) == 0 {
				stats.Empty++
				continue
			}
			for _, c := range comments {
				if err := cw.Write(c.Values()); err != nil {
					return fmt.Errorf("write comment %s/%s: %w", c.Symbol, c.CommentID, err)
				}
			}
			stats.Comments += len(comments)
		}
		cw.Flush()
		if err := cw.Error(); err != nil {
			return fmt.Errorf("flush row group %d: %w", group, err)
		}
		logger.Debug("row group parsed", zap.Int("group", group), zap.Int("comments", stats.Comments))
		return nil
	})
	if err != nil {
		return stats, err
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return stats, fmt.Errorf("flush csv: %w", err)
	}
	return stats, nil
}
