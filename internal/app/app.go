// Package app initializes and holds long-lived application services, acting
// as a dependency injection container for the CLI commands.
package app

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/storage"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/JakeFAU/page-ingest/internal/clock/system"
	"github.com/JakeFAU/page-ingest/internal/config"
	"github.com/JakeFAU/page-ingest/internal/hash/sha256"
	"github.com/JakeFAU/page-ingest/internal/id/uuid"
	"github.com/JakeFAU/page-ingest/internal/ingest"
	ledgermemory "github.com/JakeFAU/page-ingest/internal/ledger/memory"
	ledgerpostgres "github.com/JakeFAU/page-ingest/internal/ledger/postgres"
	"github.com/JakeFAU/page-ingest/internal/metrics"
	"github.com/JakeFAU/page-ingest/internal/progress/sinks"
	publishermemory "github.com/JakeFAU/page-ingest/internal/publisher/memory"
	pubsubpublisher "github.com/JakeFAU/page-ingest/internal/publisher/pubsub"
	"github.com/JakeFAU/page-ingest/internal/storage/gcs"
	"github.com/JakeFAU/page-ingest/internal/storage/local"
	storagememory "github.com/JakeFAU/page-ingest/internal/storage/memory"
)

// RunIDGenerator produces run ids in string and 16-byte form.
type RunIDGenerator interface {
	NewRunID() (string, [16]byte, error)
}

// Services are the collaborators an App is built from. Nil Blobs, Runs or
// Publisher disable that post-run step.
type Services struct {
	Blobs     ingest.BlobStore
	Runs      ingest.RunStore
	Publisher ingest.Publisher
	Hasher    ingest.Hasher
	Clock     ingest.Clock
	IDs       RunIDGenerator
	// Registerer receives the progress collectors. Defaults to the global registry.
	Registerer prometheus.Registerer
}

// App holds the shared, long-lived services. It is initialized once at
// startup and closed when the command returns.
type App struct {
	cfg      config.Config
	logger   *zap.Logger
	svc      Services
	progress *sinks.PrometheusSink
	closers  []func() error
}

// New builds the services named by cfg.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := Services{}
	var closers []func() error
	fail := func(err error) (*App, error) {
		for i := len(closers) - 1; i >= 0; i-- {
			_ = closers[i]()
		}
		return nil, err
	}

	switch cfg.Storage.Backend {
	case config.BackendLocal:
		store, err := local.New(local.Config{BaseDir: cfg.Storage.BaseDir})
		if err != nil {
			return fail(fmt.Errorf("init local storage: %w", err))
		}
		svc.Blobs = store
	case config.BackendGCS:
		client, err := storage.NewClient(ctx)
		if err != nil {
			return fail(fmt.Errorf("init gcs client: %w", err))
		}
		closers = append(closers, client.Close)
		store, err := gcs.New(client, gcs.Config{Bucket: cfg.Storage.GCSBucket, Prefix: cfg.Storage.Prefix})
		if err != nil {
			return fail(fmt.Errorf("init gcs storage: %w", err))
		}
		svc.Blobs = store
	case config.BackendMemory:
		svc.Blobs = storagememory.NewBlobStore()
	}

	switch cfg.Ledger.Backend {
	case config.BackendPostgres:
		store, err := ledgerpostgres.NewRunStore(ctx, ledgerpostgres.Config{
			DSN:      cfg.Ledger.DSN,
			Table:    cfg.Ledger.Table,
			MaxConns: cfg.Ledger.MaxConns,
		})
		if err != nil {
			return fail(fmt.Errorf("init ledger: %w", err))
		}
		closers = append(closers, func() error { store.Close(); return nil })
		if cfg.Ledger.EnsureSchema {
			if err := store.EnsureSchema(ctx); err != nil {
				return fail(err)
			}
		}
		svc.Runs = store
	case config.BackendMemory:
		svc.Runs = ledgermemory.NewRunStore()
	}

	if cfg.PubSub.Enabled {
		switch cfg.PubSub.Backend {
		case config.BackendPubSub:
			client, err := pubsub.NewClient(ctx, cfg.PubSub.ProjectID)
			if err != nil {
				return fail(fmt.Errorf("init pubsub client: %w", err))
			}
			pub := pubsubpublisher.New(client, cfg.PubSub.TopicName)
			closers = append(closers, func() error {
				pub.Close()
				return client.Close()
			})
			svc.Publisher = pub
		case config.BackendMemory:
			svc.Publisher = publishermemory.New()
		}
	}

	a, err := NewWithServices(cfg, logger, svc)
	if err != nil {
		return fail(err)
	}
	a.closers = closers
	logger.Info("application services initialized",
		zap.String("storage", cfg.Storage.Backend),
		zap.String("ledger", cfg.Ledger.Backend),
		zap.Bool("pubsub", cfg.PubSub.Enabled),
		zap.String("pubsub_backend", cfg.PubSub.Backend),
	)
	return a, nil
}

// NewWithServices builds an App over explicit services; missing support
// services get their production defaults.
func NewWithServices(cfg config.Config, logger *zap.Logger, svc Services) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if svc.Hasher == nil {
		svc.Hasher = sha256.New()
	}
	if svc.Clock == nil {
		svc.Clock = system.New()
	}
	if svc.IDs == nil {
		svc.IDs = uuid.New()
	}
	if svc.Registerer == nil {
		svc.Registerer = prometheus.DefaultRegisterer
	}
	metrics.Init()
	promSink, err := sinks.NewPrometheusSink(svc.Registerer)
	if err != nil {
		return nil, fmt.Errorf("init progress metrics: %w", err)
	}
	return &App{
		cfg:      cfg,
		logger:   logger,
		svc:      svc,
		progress: promSink,
	}, nil
}

// Config returns the loaded configuration.
func (a *App) Config() config.Config {
	return a.cfg
}

// Logger returns the shared zap logger.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// Close releases clients in reverse creation order.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("close services: %w", err)
	}
	return nil
}
