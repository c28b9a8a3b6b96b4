// Package metrics provides Prometheus metrics for the Briar service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AsksCreatedTotal tracks asks created
	AsksCreatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "briar",
			Subsystem: "auction",
			Name:      "asks_created_total",
			Help:      "Total number of asks created",
		},
	)

	// AsksResolvedTotal tracks asks leaving the active state by outcome
	AsksResolvedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "briar",
			Subsystem: "auction",
			Name:      "asks_resolved_total",
			Help:      "Total number of asks resolved by outcome",
		},
		[]string{"outcome"},
	)

	// BidsPlacedTotal tracks bids placed
	BidsPlacedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "briar",
			Subsystem: "auction",
			Name:      "bids_placed_total",
			Help:      "Total number of bids placed",
		},
	)

	// BidsRejectedTotal tracks bids rejected by cause
	BidsRejectedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "briar",
			Subsystem: "auction",
			Name:      "bids_rejected_total",
			Help:      "Total number of bids rejected by cause",
		},
		[]string{"cause"},
	)

	// ExtensionsTotal tracks anti-snipe extensions granted
	ExtensionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "briar",
			Subsystem: "auction",
			Name:      "extensions_total",
			Help:      "Total number of bidding window extensions granted",
		},
	)

	// AcceptDuration tracks end-to-end acceptance transaction duration
	AcceptDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "briar",
			Subsystem: "auction",
			Name:      "accept_duration_seconds",
			Help:      "Duration of bid acceptance transactions in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
	)

	// RelationshipsFormedTotal tracks relationships formed on acceptance
	RelationshipsFormedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "briar",
			Subsystem: "relationship",
			Name:      "formed_total",
			Help:      "Total number of relationships formed",
		},
	)

	// SweepRowsTotal tracks rows transitioned by the background sweeper
	SweepRowsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "briar",
			Subsystem: "sweeper",
			Name:      "rows_total",
			Help:      "Total number of rows transitioned by the sweeper",
		},
		[]string{"kind"},
	)

	// SweepDuration tracks sweeper pass duration
	SweepDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "briar",
			Subsystem: "sweeper",
			Name:      "pass_duration_seconds",
			Help:      "Duration of sweeper passes in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60},
		},
	)

	// WatchSubscriptions tracks active watch subscriptions
	WatchSubscriptions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "briar",
			Subsystem: "watch",
			Name:      "subscriptions",
			Help:      "Number of active ask watch subscriptions",
		},
	)
)
