package observability

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// PipelineMetrics records review pipeline metrics (scrape, extraction,
// aggregation workers). Methods accept ctx for future exemplar support.
type PipelineMetrics interface {
	RecordJobsEnqueued(ctx context.Context, stage string, count int64)
	RecordStageOutcome(ctx context.Context, stage, status string)
	RecordWorkerError(ctx context.Context, stage, reason string)
	RecordStageDuration(ctx context.Context, duration time.Duration, stage, status string)
	RecordExtractionUsage(ctx context.Context, tokens int64, costUSD float64)
	SetQueueDepth(depth int)
}

// pipelineMetrics implements PipelineMetrics.
type pipelineMetrics struct {
	jobsEnqueued     metric.Int64Counter
	outcomes         metric.Int64Counter
	workerErrors     metric.Int64Counter
	duration         metric.Float64Histogram
	extractionTokens metric.Int64Counter
	extractionCost   metric.Float64Counter
	queueDepth       atomic.Int64
	queueDepthGauge  metric.Float64ObservableGauge
}

// NewPipelineMetrics creates PipelineMetrics. Returns (nil, nil) when meter is nil (metrics disabled).
func NewPipelineMetrics(meter metric.Meter) (PipelineMetrics, error) {
	if meter == nil {
		//nolint:nilnil // intentional: callers use "if metrics != nil" when metrics disabled
		return nil, nil
	}

	jobsEnqueued, err := meter.Int64Counter(
		MetricNamePipelineJobsEnqueued,
		metric.WithDescription("Total pipeline jobs enqueued by stage"),
	)
	if err != nil {
		return nil, fmt.Errorf("create pipeline jobs enqueued counter: %w", err)
	}

	outcomes, err := meter.Int64Counter(
		MetricNamePipelineOutcomes,
		metric.WithDescription("Total pipeline stage outcomes by stage and status"),
	)
	if err != nil {
		return nil, fmt.Errorf("create pipeline outcomes counter: %w", err)
	}

	workerErrors, err := meter.Int64Counter(
		MetricNamePipelineWorkerErrors,
		metric.WithDescription("Total pipeline worker errors by stage and reason"),
	)
	if err != nil {
		return nil, fmt.Errorf("create pipeline worker errors counter: %w", err)
	}

	duration, err := meter.Float64Histogram(
		MetricNamePipelineDuration,
		metric.WithDescription("Pipeline stage duration (seconds)"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("create pipeline duration histogram: %w", err)
	}

	extractionTokens, err := meter.Int64Counter(
		MetricNameExtractionTokens,
		metric.WithDescription("Total LLM tokens spent on feature extraction"),
	)
	if err != nil {
		return nil, fmt.Errorf("create extraction tokens counter: %w", err)
	}

	extractionCost, err := meter.Float64Counter(
		MetricNameExtractionCost,
		metric.WithDescription("Total LLM spend on feature extraction (USD)"),
	)
	if err != nil {
		return nil, fmt.Errorf("create extraction cost counter: %w", err)
	}

	pipeMetrics := &pipelineMetrics{
		jobsEnqueued:     jobsEnqueued,
		outcomes:         outcomes,
		workerErrors:     workerErrors,
		duration:         duration,
		extractionTokens: extractionTokens,
		extractionCost:   extractionCost,
	}

	queueDepthGauge, err := meter.Float64ObservableGauge(
		MetricNamePipelineQueueDepth,
		metric.WithDescription("Current pipeline job queue depth (available/retryable/scheduled)"),
		metric.WithFloat64Callback(func(_ context.Context, o metric.Float64Observer) error {
			o.Observe(float64(pipeMetrics.queueDepth.Load()))

			return nil
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("create pipeline queue depth gauge: %w", err)
	}

	pipeMetrics.queueDepthGauge = queueDepthGauge

	return pipeMetrics, nil
}

func attrStage(stage string) attribute.KeyValue {
	return attribute.String(AttrStage, NormalizeStage(stage))
}

func (p *pipelineMetrics) RecordJobsEnqueued(ctx context.Context, stage string, count int64) {
	p.jobsEnqueued.Add(ctx, count, metric.WithAttributes(attrStage(stage)))
}

func (p *pipelineMetrics) RecordStageOutcome(ctx context.Context, stage, status string) {
	p.outcomes.Add(ctx, 1, metric.WithAttributes(
		attrStage(stage),
		attribute.String(AttrStatus, NormalizeStageStatus(status)),
	))
}

func (p *pipelineMetrics) RecordWorkerError(ctx context.Context, stage, reason string) {
	p.workerErrors.Add(ctx, 1, metric.WithAttributes(
		attrStage(stage),
		attribute.String(AttrReason, NormalizeReason(reason, AllowedWorkerReasons)),
	))
}

func (p *pipelineMetrics) RecordStageDuration(ctx context.Context, duration time.Duration, stage, status string) {
	p.duration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attrStage(stage),
		attribute.String(AttrStatus, NormalizeStageStatus(status)),
	))
}

func (p *pipelineMetrics) RecordExtractionUsage(ctx context.Context, tokens int64, costUSD float64) {
	p.extractionTokens.Add(ctx, tokens)
	p.extractionCost.Add(ctx, costUSD)
}

func (p *pipelineMetrics) SetQueueDepth(depth int) {
	p.queueDepth.Store(int64(depth))
}
