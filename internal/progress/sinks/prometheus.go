package sinks

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/JakeFAU/page-ingest/internal/progress"
)

// PrometheusSink exports run progress via Prometheus collectors registered
// on a caller-supplied registry.
type PrometheusSink struct {
	runsStarted   *prometheus.CounterVec
	runsCompleted *prometheus.CounterVec
	runRuntime    *prometheus.HistogramVec
	itemsTotal    *prometheus.CounterVec
	rowsTotal     *prometheus.CounterVec
	lastRunRows   *prometheus.GaugeVec
}

// NewPrometheusSink registers the collectors against reg.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		runsStarted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ingest_progress_runs_started_total",
			Help: "Runs that have started, by command.",
		}, []string{"command"}),
		runsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ingest_progress_runs_completed_total",
			Help: "Runs completed, by command and result.",
		}, []string{"command", "result"}),
		runRuntime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ingest_progress_run_seconds",
			Help:    "Wall time per completed run.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800, 3600},
		}, []string{"command", "result"}),
		itemsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ingest_progress_items_total",
			Help: "Completed identifiers, by command and status class.",
		}, []string{"command", "status_class"}),
		rowsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ingest_progress_rows_total",
			Help: "Rows written, by command.",
		}, []string{"command"}),
		lastRunRows: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "ingest_progress_last_run_rows",
			Help: "Rows written by the most recent finished run, by command.",
		}, []string{"command"}),
	}
	var err error
	if s.runsStarted, err = register(reg, s.runsStarted); err != nil {
		return nil, err
	}
	if s.runsCompleted, err = register(reg, s.runsCompleted); err != nil {
		return nil, err
	}
	if s.runRuntime, err = register(reg, s.runRuntime); err != nil {
		return nil, err
	}
	if s.itemsTotal, err = register(reg, s.itemsTotal); err != nil {
		return nil, err
	}
	if s.rowsTotal, err = register(reg, s.rowsTotal); err != nil {
		return nil, err
	}
	if s.lastRunRows, err = register(reg, s.lastRunRows); err != nil {
		return nil, err
	}
	return s, nil
}

// register adds c to reg, reusing an identical collector that is already
// registered so several sinks in one process share series.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, fmt.Errorf("register progress collector: %w", err)
	}
	return c, nil
}

// Consume updates the collectors from the batch.
func (s *PrometheusSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		command := evt.Command
		if command == "" {
			command = "unknown"
		}
		switch evt.Stage {
		case progress.StageRunStart:
			s.runsStarted.WithLabelValues(command).Inc()
		case progress.StageItemDone:
			class := string(evt.StatusClass)
			if evt.Failed && evt.StatusClass == progress.StatusOther {
				class = "error"
			}
			s.itemsTotal.WithLabelValues(command, class).Inc()
		case progress.StageBatchWritten:
			s.rowsTotal.WithLabelValues(command).Add(float64(evt.Rows))
		case progress.StageRunDone:
			s.finish(command, "success", evt)
			s.lastRunRows.WithLabelValues(command).Set(float64(evt.Rows))
		case progress.StageRunError:
			s.finish(command, "error", evt)
		}
	}
	return nil
}

func (s *PrometheusSink) finish(command, result string, evt progress.Event) {
	s.runsCompleted.WithLabelValues(command, result).Inc()
	if evt.Dur > 0 {
		s.runRuntime.WithLabelValues(command, result).Observe(evt.Dur.Seconds())
	}
}

// Close implements the Sink interface; it performs no action.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}
