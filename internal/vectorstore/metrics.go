// Package vectorstore provides vector storage implementations.
package vectorstore

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

const vectorstoreInstrumentationName = "github.com/memforge/memengine/internal/vectorstore"

// Metrics holds OpenTelemetry instruments for Store operations.
type Metrics struct {
	meter         metric.Meter
	logger        *zap.Logger
	duration      metric.Float64Histogram
	errors        metric.Int64Counter
	documents     metric.Int64Counter
	searchResults metric.Int64Histogram
}

// NewMetrics creates a new Metrics instance for the vector store.
func NewMetrics(logger *zap.Logger) *Metrics {
	m := &Metrics{
		meter:  otel.Meter(vectorstoreInstrumentationName),
		logger: logger,
	}
	m.init()
	return m
}

func (m *Metrics) init() {
	var err error

	m.duration, err = m.meter.Float64Histogram(
		"memengine.vectorstore.operation_duration_seconds",
		metric.WithDescription("Duration of vector store operations in seconds, labeled by operation and collection"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0),
	)
	if err != nil {
		m.logger.Warn("failed to create duration histogram", zap.Error(err))
	}

	m.errors, err = m.meter.Int64Counter(
		"memengine.vectorstore.errors_total",
		metric.WithDescription("Total vector store operation errors by operation and collection"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		m.logger.Warn("failed to create errors counter", zap.Error(err))
	}

	m.documents, err = m.meter.Int64Counter(
		"memengine.vectorstore.documents_total",
		metric.WithDescription("Total records added or deleted, labeled by direction (add, delete) and collection"),
		metric.WithUnit("{record}"),
	)
	if err != nil {
		m.logger.Warn("failed to create documents counter", zap.Error(err))
	}

	m.searchResults, err = m.meter.Int64Histogram(
		"memengine.vectorstore.search_results",
		metric.WithDescription("Number of results returned per search, labeled by collection"),
		metric.WithUnit("{result}"),
		metric.WithExplicitBucketBoundaries(0, 1, 2, 5, 10, 25, 50, 100),
	)
	if err != nil {
		m.logger.Warn("failed to create search results histogram", zap.Error(err))
	}
}

// RecordOperation records the duration and outcome of a store operation.
func (m *Metrics) RecordOperation(ctx context.Context, operation, collection string, duration time.Duration, err error) {
	attrs := []attribute.KeyValue{
		attribute.String("operation", operation),
		attribute.String("collection", collection),
	}
	if m.duration != nil {
		m.duration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
	}
	if err != nil && m.errors != nil {
		m.errors.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}

// RecordDocuments records records added or removed, direction is "add" or "delete".
func (m *Metrics) RecordDocuments(ctx context.Context, direction, collection string, count int) {
	if m.documents == nil || count == 0 {
		return
	}
	m.documents.Add(ctx, int64(count), metric.WithAttributes(
		attribute.String("direction", direction),
		attribute.String("collection", collection),
	))
}

// RecordSearchResults records how many results a search returned.
func (m *Metrics) RecordSearchResults(ctx context.Context, collection string, count int) {
	if m.searchResults == nil {
		return
	}
	m.searchResults.Record(ctx, int64(count), metric.WithAttributes(attribute.String("collection", collection)))
}
