package workers

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/riverqueue/river"

	"github.com/platewise/backend/internal/models"
	"github.com/platewise/backend/internal/observability"
	"github.com/platewise/backend/internal/repository"
	"github.com/platewise/backend/internal/service"
)

// FeatureAggregationWorker recomputes a restaurant's aggregated feature
// vector from its stored extractions. Terminal stage of the pipeline.
type FeatureAggregationWorker struct {
	river.WorkerDefaults[service.FeatureAggregationArgs]

	extractions aggregationExtractionsRepo
	features    aggregatedFeaturesStore
	aggregation *service.AggregationService
	metrics     observability.PipelineMetrics
}

// aggregationExtractionsRepo is the minimal extractions access needed by the worker.
type aggregationExtractionsRepo interface {
	GetByRestaurant(ctx context.Context, restaurantID uuid.UUID) ([]models.FeatureExtraction, error)
	GetCostSummary(ctx context.Context, restaurantID uuid.UUID) (repository.CostSummary, error)
}

// aggregatedFeaturesStore persists the aggregated vector.
type aggregatedFeaturesStore interface {
	UpsertFeatures(ctx context.Context, restaurantID uuid.UUID, agg models.AggregatedFeatures) error
}

// NewFeatureAggregationWorker creates the aggregation worker. metrics may be
// nil when metrics are disabled.
func NewFeatureAggregationWorker(
	extractions aggregationExtractionsRepo,
	featuresStore aggregatedFeaturesStore,
	aggregation *service.AggregationService,
	metrics observability.PipelineMetrics,
) *FeatureAggregationWorker {
	return &FeatureAggregationWorker{
		extractions: extractions,
		features:    featuresStore,
		aggregation: aggregation,
		metrics:     metrics,
	}
}

const featureAggregationTimeout = 30 * time.Second

// Timeout limits how long a single aggregation job can run.
func (w *FeatureAggregationWorker) Timeout(*river.Job[service.FeatureAggregationArgs]) time.Duration {
	return featureAggregationTimeout
}

// Work loads the extractions, aggregates them, and stores the resulting
// vector. A restaurant with no extractions yet is a skip, not an error.
func (w *FeatureAggregationWorker) Work(ctx context.Context, job *river.Job[service.FeatureAggregationArgs]) error {
	args := job.Args
	start := time.Now()

	extractions, err := w.extractions.GetByRestaurant(ctx, args.RestaurantID)
	if err != nil {
		return w.fail(ctx, job, start, "load_extractions_failed",
			fmt.Errorf("load extractions: %w", err))
	}

	if len(extractions) == 0 {
		w.finish(ctx, "skipped", start)

		slog.Info("aggregation: no extractions yet",
			"restaurant_id", args.RestaurantID,
		)

		return nil
	}

	aggregated := w.aggregation.Aggregate(extractions)

	if err := w.features.UpsertFeatures(ctx, args.RestaurantID, aggregated); err != nil {
		return w.fail(ctx, job, start, "store_features_failed",
			fmt.Errorf("store aggregated features: %w", err))
	}

	w.finish(ctx, "success", start)

	logAttrs := []any{
		"restaurant_id", args.RestaurantID,
		"reviews_analyzed", aggregated.ReviewCountAnalyzed,
		"features_assessed", len(aggregated.Values),
	}

	if summary, err := w.extractions.GetCostSummary(ctx, args.RestaurantID); err == nil {
		logAttrs = append(logAttrs,
			"total_tokens", summary.Tokens,
			"total_cost_usd", summary.CostUSD,
		)
	}

	slog.Info("aggregation: stored", logAttrs...)

	return nil
}

func (w *FeatureAggregationWorker) fail(
	ctx context.Context,
	job *river.Job[service.FeatureAggregationArgs],
	start time.Time,
	reason string,
	err error,
) error {
	return failStage(ctx, w.metrics, observability.StageAggregate, failStageParams{
		restaurantID:  job.Args.RestaurantID,
		isLastAttempt: job.Attempt >= job.MaxAttempts,
		start:         start,
		reason:        reason,
		err:           err,
	})
}

func (w *FeatureAggregationWorker) finish(ctx context.Context, status string, start time.Time) {
	if w.metrics != nil {
		w.metrics.RecordStageOutcome(ctx, observability.StageAggregate, status)
		w.metrics.RecordStageDuration(ctx, time.Since(start), observability.StageAggregate, status)
	}
}
