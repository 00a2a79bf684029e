// Package cmd defines and implements the CLI commands for the ingest executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/JakeFAU/page-ingest/internal/app"
	"github.com/JakeFAU/page-ingest/internal/config"
	"github.com/JakeFAU/page-ingest/internal/logging"
)

// appKeyType is the key for storing the App in the context.
type appKeyType string

const appKey appKeyType = "app"

// newApp is the application factory. It's a variable so tests can swap in
// services without touching the network.
var newApp = func(ctx context.Context, cfg config.Config, logger *zap.Logger) (*app.App, error) {
	return app.New(ctx, cfg, logger)
}

// newRootCmd creates the root command over a fresh Viper instance so each
// execution sees only its own flags.
func newRootCmd() *cobra.Command {
	v := viper.New()
	var cfgFile string

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Fetch pages per identifier into Parquet, and convert between Parquet and tar archives.",
		Long: `ingest reads identifiers (stock symbols, forum topic ids) from CSV files,
fetches one page per identifier with a bounded worker pool, and writes the
raw or extracted content to a Brotli-compressed Parquet file one row group
per batch. It also converts between that file and a tar archive of one
HTML entry per identifier.`,
		SilenceUsage: true,

		// Runs before the subcommand: load config, build the logger and the
		// application services, and stash them in the context.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := bindCommandFlags(cmd, v); err != nil {
				return err
			}
			if err := bindCompression(cmd, v); err != nil {
				return err
			}
			cfg, err := config.LoadWith(v, cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger, err := logging.New(cfg.Logging.Development, cfg.Logging.Level)
			if err != nil {
				return err
			}
			zap.ReplaceGlobals(logger)

			appInstance, err := newApp(cmd.Context(), cfg, logger)
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, appInstance))
			return nil
		},

		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			appInstance, ok := cmd.Context().Value(appKey).(*app.App)
			if !ok || appInstance == nil {
				return
			}
			if err := appInstance.Close(); err != nil {
				appInstance.Logger().Warn("close services failed", zap.Error(err))
			}
			_ = appInstance.Logger().Sync()
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (YAML); INGEST_* env vars override it")
	flags.String("dst", "", "output file (default depends on the command)")
	flags.String("compression", "", "Parquet codec, or the archive codec for decompress")
	_ = v.BindPFlag("output.dst", flags.Lookup("dst"))

	cmd.AddCommand(
		newScrapeCmd(),
		newProfileCmd(),
		newCompressCmd(),
		newDecompressCmd(),
		newParseCmd(),
	)
	return cmd
}

// configKeyAnnotation marks a local flag with the config key it overrides.
const configKeyAnnotation = "ingest/config-key"

// bindFlag ties a local flag to a config key. Sibling commands share keys, so
// the binding is applied only for the command that actually runs.
func bindFlag(cmd *cobra.Command, name, key string) {
	_ = cmd.Flags().SetAnnotation(name, configKeyAnnotation, []string{key})
}

func bindCommandFlags(cmd *cobra.Command, v *viper.Viper) error {
	var errs []error
	cmd.LocalFlags().VisitAll(func(f *pflag.Flag) {
		keys := f.Annotations[configKeyAnnotation]
		if len(keys) == 0 {
			return
		}
		if err := v.BindPFlag(keys[0], f); err != nil {
			errs = append(errs, fmt.Errorf("bind --%s: %w", f.Name, err))
		}
	})
	return errors.Join(errs...)
}

// bindCompression routes --compression to the codec the command writes.
func bindCompression(cmd *cobra.Command, v *viper.Viper) error {
	flag := cmd.Flags().Lookup("compression")
	if flag == nil || !flag.Changed {
		return nil
	}
	key := "output.compression"
	if cmd.Name() == decompressName {
		key = "archive.compression"
	}
	if err := v.BindPFlag(key, flag); err != nil {
		return fmt.Errorf("bind compression flag: %w", err)
	}
	return nil
}

func resolveApp(ctx context.Context) (*app.App, error) {
	appInstance, ok := ctx.Value(appKey).(*app.App)
	if !ok || appInstance == nil {
		return nil, errors.New("application services not initialized")
	}
	return appInstance, nil
}

// Execute is the main entry point. SIGINT and SIGTERM cancel the command's
// context; the running command still finalizes its output file.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		zap.L().Error("command execution failed", zap.Error(err))
		_ = zap.L().Sync()
		os.Exit(1)
	}
}
