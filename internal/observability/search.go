package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// SearchMetrics records search endpoint metrics.
type SearchMetrics interface {
	RecordSearch(ctx context.Context, status string, duration time.Duration)
	RecordResultsReturned(ctx context.Context, count int)
	RecordParseFallback(ctx context.Context)
}

// searchMetrics implements SearchMetrics.
type searchMetrics struct {
	requests       metric.Int64Counter
	duration       metric.Float64Histogram
	results        metric.Int64Histogram
	parseFallbacks metric.Int64Counter
}

// NewSearchMetrics creates SearchMetrics. Returns (nil, nil) when meter is nil (metrics disabled).
func NewSearchMetrics(meter metric.Meter) (SearchMetrics, error) {
	if meter == nil {
		//nolint:nilnil // intentional: callers use "if metrics != nil" when metrics disabled
		return nil, nil
	}

	requests, err := meter.Int64Counter(
		MetricNameSearchRequests,
		metric.WithDescription("Total search requests by status (ok, invalid, error)"),
	)
	if err != nil {
		return nil, fmt.Errorf("create search requests counter: %w", err)
	}

	duration, err := meter.Float64Histogram(
		MetricNameSearchDuration,
		metric.WithDescription("Search request duration (seconds)"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("create search duration histogram: %w", err)
	}

	results, err := meter.Int64Histogram(
		MetricNameSearchResults,
		metric.WithDescription("Results returned per successful search"),
	)
	if err != nil {
		return nil, fmt.Errorf("create search results histogram: %w", err)
	}

	parseFallbacks, err := meter.Int64Counter(
		MetricNameParseFallbacks,
		metric.WithDescription("Query parses served by the rule-based fallback instead of the model"),
	)
	if err != nil {
		return nil, fmt.Errorf("create parse fallbacks counter: %w", err)
	}

	return &searchMetrics{
		requests:       requests,
		duration:       duration,
		results:        results,
		parseFallbacks: parseFallbacks,
	}, nil
}

func (s *searchMetrics) RecordSearch(ctx context.Context, status string, duration time.Duration) {
	attr := attribute.String(AttrStatus, NormalizeSearchStatus(status))
	s.requests.Add(ctx, 1, metric.WithAttributes(attr))
	s.duration.Record(ctx, duration.Seconds(), metric.WithAttributes(attr))
}

func (s *searchMetrics) RecordResultsReturned(ctx context.Context, count int) {
	s.results.Record(ctx, int64(count))
}

func (s *searchMetrics) RecordParseFallback(ctx context.Context) {
	s.parseFallbacks.Add(ctx, 1)
}
