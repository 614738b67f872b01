// Package observe provides application-wide observability primitives for
// Lumapix: OpenTelemetry metrics, distributed tracing, and structured
// logging glue.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all Lumapix metrics.
const meterName = "github.com/lumapix/lumapix"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// SearchDuration tracks end-to-end search latency. Use with attribute:
	//   attribute.String("mode", ...)
	SearchDuration metric.Float64Histogram

	// SearchResults tracks how many photos each search matched.
	SearchResults metric.Int64Histogram

	// QueryParses counts natural-language query parses. Use with attributes:
	//   attribute.String("intent", ...), attribute.Bool("clarification", ...)
	QueryParses metric.Int64Counter

	// CommandParses counts bulk-command parses. Use with attributes:
	//   attribute.String("operation", ...), attribute.Bool("executable", ...)
	CommandParses metric.Int64Counter

	// BulkOperations counts bulk runs by operation and terminal status.
	BulkOperations metric.Int64Counter

	// BulkPhotos counts photos processed by bulk runs. Use with attributes:
	//   attribute.String("operation", ...), attribute.String("result", ...)
	BulkPhotos metric.Int64Counter

	// SelectedPhotos tracks the size of the active bulk selection.
	SelectedPhotos metric.Int64UpDownCounter

	// FilterCommits counts debounced filter-state propagations.
	FilterCommits metric.Int64Counter
}

// latencyBuckets defines histogram bucket boundaries (in seconds) sized for
// in-process query latencies.
var latencyBuckets = []float64{
	0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 3,
}

// resultBuckets defines histogram bucket boundaries for result counts.
var resultBuckets = []float64{
	0, 1, 5, 10, 25, 50, 100, 250, 500, 1000,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.SearchDuration, err = m.Float64Histogram("lumapix.search.duration",
		metric.WithDescription("End-to-end photo search latency."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.SearchResults, err = m.Int64Histogram("lumapix.search.results",
		metric.WithDescription("Number of photos matched per search."),
		metric.WithExplicitBucketBoundaries(resultBuckets...),
	); err != nil {
		return nil, err
	}
	if met.QueryParses, err = m.Int64Counter("lumapix.query.parses",
		metric.WithDescription("Total query parses by intent and clarification outcome."),
	); err != nil {
		return nil, err
	}
	if met.CommandParses, err = m.Int64Counter("lumapix.command.parses",
		metric.WithDescription("Total command parses by operation and executability."),
	); err != nil {
		return nil, err
	}
	if met.BulkOperations, err = m.Int64Counter("lumapix.bulk.operations",
		metric.WithDescription("Total bulk runs by operation and terminal status."),
	); err != nil {
		return nil, err
	}
	if met.BulkPhotos, err = m.Int64Counter("lumapix.bulk.photos",
		metric.WithDescription("Total photos processed by bulk runs, by operation and result."),
	); err != nil {
		return nil, err
	}
	if met.SelectedPhotos, err = m.Int64UpDownCounter("lumapix.selection.size",
		metric.WithDescription("Size of the active bulk selection."),
	); err != nil {
		return nil, err
	}
	if met.FilterCommits, err = m.Int64Counter("lumapix.filter.commits",
		metric.WithDescription("Total debounced filter-state propagations."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it
// on first call using [otel.GetMeterProvider]. Subsequent calls return the
// same pointer. Panics if instrument creation fails (should not happen with
// the global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordSearch records one search call's latency and match count.
func (m *Metrics) RecordSearch(ctx context.Context, mode string, d time.Duration, results int) {
	attrs := metric.WithAttributes(attribute.String("mode", mode))
	m.SearchDuration.Record(ctx, d.Seconds(), attrs)
	m.SearchResults.Record(ctx, int64(results), attrs)
}

// RecordQueryParse records one query parse by classified intent.
func (m *Metrics) RecordQueryParse(ctx context.Context, intent string, clarification bool) {
	m.QueryParses.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("intent", intent),
			attribute.Bool("clarification", clarification),
		),
	)
}

// RecordCommandParse records one command parse by operation type.
func (m *Metrics) RecordCommandParse(ctx context.Context, operation string, executable bool) {
	m.CommandParses.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("operation", operation),
			attribute.Bool("executable", executable),
		),
	)
}

// RecordBulkRun records one finished bulk run and its per-photo outcomes.
func (m *Metrics) RecordBulkRun(ctx context.Context, operation, status string, completed, failed int) {
	op := attribute.String("operation", operation)
	m.BulkOperations.Add(ctx, 1,
		metric.WithAttributes(op, attribute.String("status", status)))
	if completed > 0 {
		m.BulkPhotos.Add(ctx, int64(completed),
			metric.WithAttributes(op, attribute.String("result", "success")))
	}
	if failed > 0 {
		m.BulkPhotos.Add(ctx, int64(failed),
			metric.WithAttributes(op, attribute.String("result", "failure")))
	}
}

// RecordSelectionSize moves the selection-size gauge from prev to curr.
func (m *Metrics) RecordSelectionSize(ctx context.Context, prev, curr int) {
	if delta := int64(curr - prev); delta != 0 {
		m.SelectedPhotos.Add(ctx, delta)
	}
}

// RecordFilterCommit records one debounced filter propagation.
func (m *Metrics) RecordFilterCommit(ctx context.Context, mode string) {
	m.FilterCommits.Add(ctx, 1,
		metric.WithAttributes(attribute.String("mode", mode)))
}
