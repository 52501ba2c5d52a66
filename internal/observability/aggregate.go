package observability

import (
	"fmt"

	"go.opentelemetry.io/otel/metric"
)

// Metrics holds all platewise metric collectors. When metrics are disabled,
// all fields are nil. Components that accept an interface (SearchMetrics,
// PipelineMetrics, CacheMetrics, APIMetrics) can receive the corresponding
// field; they already handle nil.
type Metrics struct {
	HTTP     HTTPMetrics
	Search   SearchMetrics
	Pipeline PipelineMetrics
	Cache    CacheMetrics
	API      APIMetrics
}

// NewMetrics creates all metric collectors from the given meter.
// Returns (nil, nil) when meter is nil (metrics disabled).
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	if meter == nil {
		//nolint:nilnil // intentional: callers use "if metrics != nil" when metrics disabled
		return nil, nil
	}

	httpMetrics, err := NewHTTPMetrics(meter)
	if err != nil {
		return nil, fmt.Errorf("http metrics: %w", err)
	}

	search, err := NewSearchMetrics(meter)
	if err != nil {
		return nil, fmt.Errorf("search metrics: %w", err)
	}

	pipeline, err := NewPipelineMetrics(meter)
	if err != nil {
		return nil, fmt.Errorf("pipeline metrics: %w", err)
	}

	cache, err := NewCacheMetrics(meter)
	if err != nil {
		return nil, fmt.Errorf("cache metrics: %w", err)
	}

	api, err := NewAPIMetrics(meter)
	if err != nil {
		return nil, fmt.Errorf("api metrics: %w", err)
	}

	return &Metrics{
		HTTP:     httpMetrics,
		Search:   search,
		Pipeline: pipeline,
		Cache:    cache,
		API:      api,
	}, nil
}
