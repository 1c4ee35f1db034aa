// Package metrics provides Prometheus metrics for the loader.
package metrics

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"
)

var (
	// RowsTotal tracks rows read by source
	RowsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "yeastmine",
			Subsystem: "pipeline",
			Name:      "rows_total",
			Help:      "Total number of input rows read by source",
		},
		[]string{"source"},
	)

	// RowsSkippedTotal tracks rows whose effect was skipped, by error kind
	RowsSkippedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "yeastmine",
			Subsystem: "pipeline",
			Name:      "rows_skipped_total",
			Help:      "Total number of rows skipped by recovered errors",
		},
		[]string{"source", "kind"},
	)

	// ConflictsTotal tracks rejected writes to already-set attributes
	ConflictsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "yeastmine",
			Subsystem: "pipeline",
			Name:      "attribute_conflicts_total",
			Help:      "Total number of attribute writes discarded by first-write-wins",
		},
		[]string{"source", "class"},
	)

	// PipelineDuration tracks pipeline run duration in seconds
	PipelineDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "yeastmine",
			Subsystem: "pipeline",
			Name:      "run_duration_seconds",
			Help:      "Duration of pipeline runs in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 900},
		},
		[]string{"source", "state"},
	)

	// ItemsStoredTotal tracks items written to the store by class
	ItemsStoredTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "yeastmine",
			Subsystem: "store",
			Name:      "items_total",
			Help:      "Total number of items stored by class",
		},
		[]string{"backend", "class"},
	)

	// CollectionsStoredTotal tracks bulk collection writes
	CollectionsStoredTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "yeastmine",
			Subsystem: "store",
			Name:      "collections_total",
			Help:      "Total number of bulk collection writes",
		},
		[]string{"backend", "name"},
	)
)

// Push sends the default registry to a Prometheus push gateway.
func Push(ctx context.Context, url, job string) error {
	if url == "" {
		return nil
	}
	err := push.New(url, job).
		Gatherer(prometheus.DefaultGatherer).
		PushContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to push metrics to %s: %w", url, err)
	}
	return nil
}
