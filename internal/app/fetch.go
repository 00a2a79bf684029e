package app

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/page-ingest/internal/dispatcher"
	collyfetcher "github.com/JakeFAU/page-ingest/internal/fetcher/colly"
	headlessfetcher "github.com/JakeFAU/page-ingest/internal/fetcher/headless"
	"github.com/JakeFAU/page-ingest/internal/headless/detector"
	"github.com/JakeFAU/page-ingest/internal/ingest"
	queueMemory "github.com/JakeFAU/page-ingest/internal/queue/memory"
	"github.com/JakeFAU/page-ingest/internal/worker"
)

// FetchPool is a started dispatcher plus the fetchers it owns.
type FetchPool struct {
	*dispatcher.Dispatcher
	headless *headlessfetcher.Fetcher
}

// StartFetchPool builds the shared probe fetcher, the optional headless
// fetcher and one worker per configured slot, then starts them. observer
// receives every completed item.
func (a *App) StartFetchPool(ctx context.Context, command string, observer worker.Observer) (*FetchPool, error) {
	cfg := a.cfg
	workers := cfg.Workers()
	queueDepth := cfg.Fetch.QueueDepth
	if queueDepth <= 0 {
		queueDepth = cfg.Run.BatchSize
	}
	queue := queueMemory.NewQueue(queueDepth)

	probe := collyfetcher.New(collyfetcher.Config{
		UserAgent:           cfg.Fetch.UserAgent,
		Timeout:             cfg.FetchTimeout(),
		MaxBodyBytes:        cfg.Fetch.MaxBodyBytes,
		MaxIdleConnsPerHost: workers,
	})

	pool := &FetchPool{}
	var headless ingest.Fetcher
	var detect ingest.HeadlessDetector
	if cfg.Headless.Enabled {
		hf, err := headlessfetcher.NewChromedp(headlessfetcher.Config{
			MaxParallel:       cfg.Headless.MaxParallel,
			UserAgent:         cfg.Fetch.UserAgent,
			NavigationTimeout: time.Duration(cfg.Headless.NavTimeoutSec) * time.Second,
			SettleDelay:       time.Duration(cfg.Headless.SettleDelayMs) * time.Millisecond,
			WaitSelector:      cfg.Headless.WaitSelector,
		})
		if err != nil {
			a.logger.Warn("headless fetcher init failed; continuing with probe only", zap.Error(err))
		} else {
			pool.headless = hf
			headless = hf
			detect = detector.NewHeuristic(cfg.Headless.PromotionThresh, cfg.Headless.Expect...)
		}
	}

	workerCfg := worker.Config{
		URLTemplate:    cfg.URLTemplateFor(command),
		ReportFailures: cfg.Fetch.ReportFailures,
	}
	workerSet := make([]*worker.Worker, 0, workers)
	for i := range workers {
		workerSet = append(workerSet, worker.New(i, queue, probe, headless, detect, observer, workerCfg, a.logger.Named("worker")))
	}
	pool.Dispatcher = dispatcher.New(queue, workerSet)
	pool.Start(ctx)
	a.logger.Debug("fetch pool started",
		zap.Int("workers", workers),
		zap.String("url_template", workerCfg.URLTemplate),
		zap.Bool("headless", headless != nil),
	)
	return pool, nil
}

// Stop drains the workers and shuts the browser down.
func (p *FetchPool) Stop() error {
	err := p.Dispatcher.Stop()
	if p.headless != nil {
		err = errors.Join(err, p.headless.Close())
	}
	return err
}
