package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/page-ingest/internal/columnar"
	"github.com/JakeFAU/page-ingest/internal/ingest"
	"github.com/JakeFAU/page-ingest/internal/parse"
)

const parseName = "parse"

func newParseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   parseName + " <parquet>",
		Short: "Extract forum comments from a raw-capture Parquet file into CSV",
		Long: `Reads {symbol, html} rows and writes one CSV line per forum comment with
the columns symbol, page_number, comment_id, comment_date, comment_text.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runParse(cmd.Context(), args[0])
		},
	}
}

func runParse(ctx context.Context, src string) error {
	a, err := resolveApp(ctx)
	if err != nil {
		return err
	}
	dst := outputPath(a.Config().Output.Dst, "comments.csv")

	run, err := a.StartRun(ctx, parseName, dst)
	if err != nil {
		return err
	}
	defer stopRun(run, a.Logger())

	run.Reporter.Start(0)
	stats, groups, runErr := parseFile(ctx, a.Logger(), src, dst)
	run.Reporter.Finish(runErr)

	summary := ingest.RunSummary{
		Identifiers: stats.Pages,
		Rows:        int64(stats.Comments),
		RowGroups:   groups,
		Skipped:     stats.Empty,
	}
	_, completeErr := a.Complete(ctx, run, summary, runErr)
	if runErr != nil {
		return fmt.Errorf("%s: %w", parseName, runErr)
	}
	return completeErr
}

func parseFile(ctx context.Context, logger *zap.Logger, src, dst string) (parse.Stats, int, error) {
	r, err := columnar.Open[ingest.RawPage](src)
	if err != nil {
		return parse.Stats{}, 0, err
	}
	defer func() { _ = r.Close() }()

	stats, err := writeFileAtomically(dst, func(f *os.File) (parse.Stats, error) {
		return parse.Comments(ctx, r, f, logger)
	})
	return stats, r.NumRowGroups(), err
}

func dirOf(path string) string {
	return filepath.Dir(path)
}
