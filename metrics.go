package main

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricPendingUpdates = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bridge_pending_updates",
		Help: "Cell updates currently queued across all sheets.",
	})
	metricAppliedCells = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bridge_applied_cells_total",
		Help: "Cell updates applied to the live document.",
	})
	metricApplyFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bridge_apply_failures_total",
		Help: "Cell updates rejected by the live document.",
	})
	metricSheetsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bridge_sheets_created_total",
		Help: "Sheets created from queued creation requests.",
	})
	metricReconcileCycles = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bridge_reconcile_cycles_total",
		Help: "Completed reconciliation cycles.",
	})
	metricReconcileDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "bridge_reconcile_duration_seconds",
		Help:    "Wall time of one reconciliation cycle.",
		Buckets: prometheus.DefBuckets,
	})
)
