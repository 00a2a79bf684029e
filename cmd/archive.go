package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/page-ingest/internal/app"
	"github.com/JakeFAU/page-ingest/internal/archive"
	"github.com/JakeFAU/page-ingest/internal/columnar"
	"github.com/JakeFAU/page-ingest/internal/ingest"
	"github.com/JakeFAU/page-ingest/internal/progress"
)

const (
	compressName   = "compress"
	decompressName = "decompress"
)

func newCompressCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   compressName + " <archive>",
		Short: "Convert a tar archive of HTML pages into a Parquet file",
		Long: `Reads a bzip2, gzip or plain tar archive and writes one {symbol, html} row
per matching entry, run.batch_size rows per row group. Entries outside the
configured extension are skipped.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompress(cmd.Context(), args[0])
		},
	}
	addArchiveFlags(cmd)
	return cmd
}

func newDecompressCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   decompressName + " <parquet>",
		Short: "Convert a raw-capture Parquet file back into a tar archive",
		Long: `Reads the file row group by row group and writes one entry per row named
{prefix}/{symbol}{extension}. Output is bzip2 compressed unless --compression
says otherwise; equal input always yields identical bytes.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDecompress(cmd.Context(), args[0])
		},
	}
	addArchiveFlags(cmd)
	return cmd
}

func addArchiveFlags(cmd *cobra.Command) {
	cmd.Flags().String("prefix", "", "directory segment of archive entries (default topic)")
	cmd.Flags().String("encoding", "", "charset of archive payloads (default utf-8)")
	bindFlag(cmd, "prefix", "archive.prefix")
	bindFlag(cmd, "encoding", "archive.encoding")
}

func archiveOptions(a *app.App) archive.Options {
	cfg := a.Config()
	return archive.Options{
		Prefix:      cfg.Archive.Prefix,
		Extension:   cfg.Archive.Extension,
		BatchSize:   cfg.Run.BatchSize,
		Encoding:    cfg.Archive.Encoding,
		Compression: cfg.Archive.Compression,
		Logger:      a.Logger().Named("archive"),
	}
}

// reportingWriter forwards batches to the columnar writer and reports each
// appended row group.
type reportingWriter struct {
	*columnar.Writer[ingest.RawPage]
	reporter *progress.Reporter
}

func (w reportingWriter) Write(ctx context.Context, b ingest.Batch[ingest.RawPage]) error {
	if err := w.Writer.Write(ctx, b); err != nil {
		return err
	}
	w.reporter.BatchWritten(b.Len())
	return nil
}

func runCompress(ctx context.Context, src string) error {
	a, err := resolveApp(ctx)
	if err != nil {
		return err
	}
	dst := outputPath(a.Config().Output.Dst, "raw.parquet")

	run, err := a.StartRun(ctx, compressName, dst)
	if err != nil {
		return err
	}
	defer stopRun(run, a.Logger())

	run.Reporter.Start(0)
	stats, runErr := compressFile(ctx, a, run, src, dst)
	run.Reporter.Finish(runErr)

	summary := ingest.RunSummary{
		Identifiers: stats.Entries,
		Rows:        int64(stats.Entries),
		RowGroups:   stats.Batches,
		Skipped:     stats.Skipped,
	}
	_, completeErr := a.Complete(ctx, run, summary, runErr)
	if runErr != nil {
		return fmt.Errorf("%s: %w", compressName, runErr)
	}
	return completeErr
}

func compressFile(ctx context.Context, a *app.App, run *app.Run, src, dst string) (stats archive.Stats, err error) {
	in, err := os.Open(src) // #nosec G304 -- archive path is an operator argument.
	if err != nil {
		return stats, fmt.Errorf("open archive: %w", err)
	}
	defer func() { _ = in.Close() }()

	w, err := columnar.Create[ingest.RawPage](dst, columnar.Options{
		Compression: a.Config().Output.Compression,
		Logger:      a.Logger(),
	})
	if err != nil {
		return stats, err
	}
	defer func() {
		err = errors.Join(err, w.Close())
	}()

	return archive.Compress(ctx, in, reportingWriter{Writer: w, reporter: run.Reporter}, archiveOptions(a))
}

func runDecompress(ctx context.Context, src string) error {
	a, err := resolveApp(ctx)
	if err != nil {
		return err
	}
	dst := outputPath(a.Config().Output.Dst, "project.tar.bz2")

	run, err := a.StartRun(ctx, decompressName, dst)
	if err != nil {
		return err
	}
	defer stopRun(run, a.Logger())

	run.Reporter.Start(0)
	stats, groups, runErr := decompressFile(ctx, a, src, dst)
	run.Reporter.Finish(runErr)

	summary := ingest.RunSummary{
		Identifiers: stats.Entries,
		Rows:        int64(stats.Entries),
		RowGroups:   groups,
	}
	_, completeErr := a.Complete(ctx, run, summary, runErr)
	if runErr != nil {
		return fmt.Errorf("%s: %w", decompressName, runErr)
	}
	return completeErr
}

func decompressFile(ctx context.Context, a *app.App, src, dst string) (archive.Stats, int, error) {
	r, err := columnar.Open[ingest.RawPage](src)
	if err != nil {
		return archive.Stats{}, 0, err
	}
	defer func() { _ = r.Close() }()

	stats, err := writeFileAtomically(dst, func(f *os.File) (archive.Stats, error) {
		return archive.Decompress(ctx, r, f, archiveOptions(a))
	})
	return stats, r.NumRowGroups(), err
}

// writeFileAtomically writes dst through a temporary sibling that is renamed
// into place only when fill succeeds.
func writeFileAtomically[S any](dst string, fill func(f *os.File) (S, error)) (S, error) {
	var zero S
	tmp, err := os.CreateTemp(dirOf(dst), ".ingest-*")
	if err != nil {
		return zero, fmt.Errorf("create output: %w", err)
	}
	out, err := fill(tmp)
	if closeErr := tmp.Close(); err == nil && closeErr != nil {
		err = fmt.Errorf("close output: %w", closeErr)
	}
	if err != nil {
		_ = os.Remove(tmp.Name())
		return out, err
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		_ = os.Remove(tmp.Name())
		return out, fmt.Errorf("rename output: %w", err)
	}
	return out, nil
}
