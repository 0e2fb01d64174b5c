// Package metrics provides Prometheus metrics for the donor identity service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ResolutionsTotal tracks matcher outcomes by tier and result
	ResolutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "donorid",
			Subsystem: "matching",
			Name:      "resolutions_total",
			Help:      "Total number of donation resolutions by tier and result",
		},
		[]string{"tier", "result"},
	)

	// ResolutionDuration tracks how long a single resolution takes
	ResolutionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "donorid",
			Subsystem: "matching",
			Name:      "resolution_duration_seconds",
			Help:      "Duration of single donation resolutions in seconds",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
	)

	// CandidatesStaged tracks resolution candidates staged for review
	CandidatesStaged = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "donorid",
			Subsystem: "matching",
			Name:      "candidates_staged_total",
			Help:      "Total number of resolution candidates staged by reason",
		},
		[]string{"reason"},
	)

	// BatchResolutionsTotal tracks batch resolver runs by result
	BatchResolutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "donorid",
			Subsystem: "matching",
			Name:      "batch_resolutions_total",
			Help:      "Total number of donations processed by the batch resolver",
		},
		[]string{"result"},
	)

	// MergesTotal tracks donor merges by status
	MergesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "donorid",
			Subsystem: "dedup",
			Name:      "merges_total",
			Help:      "Total number of donor merge operations by status",
		},
		[]string{"status"},
	)

	// DonorsMerged tracks secondary donors folded into a primary
	DonorsMerged = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "donorid",
			Subsystem: "dedup",
			Name:      "donors_merged_total",
			Help:      "Total number of secondary donors merged into a primary",
		},
	)

	// DuplicateScansTotal tracks dedup scanner runs
	DuplicateScansTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "donorid",
			Subsystem: "dedup",
			Name:      "scans_total",
			Help:      "Total number of duplicate scans",
		},
	)
)
