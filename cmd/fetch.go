package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/page-ingest/internal/app"
	"github.com/JakeFAU/page-ingest/internal/columnar"
	"github.com/JakeFAU/page-ingest/internal/extract"
	"github.com/JakeFAU/page-ingest/internal/ident"
	"github.com/JakeFAU/page-ingest/internal/ingest"
	"github.com/JakeFAU/page-ingest/internal/pipeline"
)

const (
	scrapeName  = "scrape"
	profileName = "profile"
)

func newScrapeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scrape [identifier-csv...]",
		Short: "Fetch one page per identifier and store the raw HTML",
		Long: `Reads identifiers from the given CSV files (or input.files), fetches each
page from fetch.url_template and writes {symbol, html} rows to Parquet.
Failed fetches keep the identifier with an empty html column.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFetch(cmd.Context(), scrapeName, args, "raw.parquet",
				extract.Builder[ingest.RawPage](extract.RawPageBuilder))
		},
	}
	addInputFlags(cmd)
	return cmd
}

func newProfileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile [identifier-csv...]",
		Short: "Fetch company profile pages and store the extracted fields",
		Long: `Like scrape, but each page is reduced to {symbol, sector, industry,
employees, description}. Fields the page does not carry stay empty.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFetch(cmd.Context(), profileName, args, "profiles.parquet",
				extract.Builder[ingest.Profile](extract.ProfileBuilder))
		},
	}
	addInputFlags(cmd)
	return cmd
}

func addInputFlags(cmd *cobra.Command) {
	cmd.Flags().String("column", "", "CSV column holding the identifiers (default Symbol)")
	cmd.Flags().Bool("report-failures", false, "log every failed fetch at WARN")
	bindFlag(cmd, "column", "input.column")
	bindFlag(cmd, "report-failures", "fetch.report_failures")
}

func runFetch[T any](ctx context.Context, command string, args []string, defaultDst string, build extract.Builder[T]) error {
	a, err := resolveApp(ctx)
	if err != nil {
		return err
	}
	cfg := a.Config()
	logger := a.Logger()

	files := args
	if len(files) == 0 {
		files = cfg.Input.Files
	}
	if len(files) == 0 {
		return errors.New("no identifier files given (pass them as arguments or set input.files)")
	}
	ids, err := ident.Load(files, cfg.Input.Column)
	if err != nil {
		return err
	}
	dst := outputPath(cfg.Output.Dst, defaultDst)

	run, err := a.StartRun(ctx, command, dst)
	if err != nil {
		return err
	}
	defer stopRun(run, logger)

	summary, runErr := fetchInto(ctx, a, run, ids, dst, build)
	_, completeErr := a.Complete(ctx, run, summary, runErr)
	if runErr != nil {
		return fmt.Errorf("%s: %w", command, runErr)
	}
	return completeErr
}

func fetchInto[T any](
	ctx context.Context,
	a *app.App,
	run *app.Run,
	ids []string,
	dst string,
	build extract.Builder[T],
) (summary ingest.RunSummary, err error) {
	w, err := columnar.Create[T](dst, columnar.Options{Compression: a.Config().Output.Compression, Logger: a.Logger()})
	if err != nil {
		return summary, err
	}
	defer func() {
		err = errors.Join(err, w.Close())
	}()

	pool, err := a.StartFetchPool(ctx, run.Command, run.Reporter)
	if err != nil {
		return summary, err
	}
	defer func() {
		if stopErr := pool.Stop(); stopErr != nil {
			a.Logger().Warn("fetch pool stop failed", zap.Error(stopErr))
		}
	}()

	return pipeline.Run(ctx, ids, pool, build, w, pipeline.Config{
		BatchSize: a.Config().Run.BatchSize,
		Logger:    a.Logger(),
	}, run.Reporter)
}

func outputPath(configured, fallback string) string {
	if configured != "" {
		return configured
	}
	return fallback
}

func stopRun(run *app.Run, logger *zap.Logger) {
	if err := run.Stop(); err != nil {
		logger.Warn("status server stop failed", zap.Error(err))
	}
}
