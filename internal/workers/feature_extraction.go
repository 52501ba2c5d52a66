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

// FeatureExtractionWorker runs the LLM extraction over a restaurant's
// unprocessed reviews, persists the results, and chains an aggregation job.
// Reviews beyond one batch are picked up by snoozing the same job.
type FeatureExtractionWorker struct {
	river.WorkerDefaults[service.FeatureExtractionArgs]

	reviews     extractionReviewsRepo
	extractions extractionStore
	extractor   reviewExtractor
	inserter    service.PipelineJobInserter
	metrics     observability.PipelineMetrics
}

// extractionReviewsRepo is the minimal reviews access needed by the worker.
type extractionReviewsRepo interface {
	FindUnprocessedByRestaurant(ctx context.Context, restaurantID uuid.UUID, limit int) ([]models.Review, error)
	MarkProcessed(ctx context.Context, reviewIDs []uuid.UUID) error
	CountUnprocessed(ctx context.Context, restaurantID uuid.UUID) (int, error)
}

// extractionStore persists per-review extraction results.
type extractionStore interface {
	Upsert(ctx context.Context, p repository.UpsertExtractionParams) error
}

// reviewExtractor runs the extraction provider over a review batch.
type reviewExtractor interface {
	ExtractBatch(ctx context.Context, reviews []models.Review) []service.BatchExtraction
}

// NewFeatureExtractionWorker creates the extraction worker. metrics may be
// nil when metrics are disabled.
func NewFeatureExtractionWorker(
	reviews extractionReviewsRepo,
	extractions extractionStore,
	extractor reviewExtractor,
	inserter service.PipelineJobInserter,
	metrics observability.PipelineMetrics,
) *FeatureExtractionWorker {
	return &FeatureExtractionWorker{
		reviews:     reviews,
		extractions: extractions,
		extractor:   extractor,
		inserter:    inserter,
		metrics:     metrics,
	}
}

const (
	featureExtractionTimeout = 5 * time.Minute

	// extractionBatchSize bounds one job's LLM spend; leftovers are handled
	// by snoozing the job.
	extractionBatchSize = 100

	extractionSnoozeDelay = 5 * time.Second
)

// Timeout limits how long a single extraction job can run.
func (w *FeatureExtractionWorker) Timeout(*river.Job[service.FeatureExtractionArgs]) time.Duration {
	return featureExtractionTimeout
}

// Work extracts one batch of unprocessed reviews. Individual review failures
// are tolerated; the job errors only when nothing in the batch succeeded.
func (w *FeatureExtractionWorker) Work(ctx context.Context, job *river.Job[service.FeatureExtractionArgs]) error {
	args := job.Args
	start := time.Now()

	reviews, err := w.reviews.FindUnprocessedByRestaurant(ctx, args.RestaurantID, extractionBatchSize)
	if err != nil {
		return w.fail(ctx, job, start, "load_reviews_failed",
			fmt.Errorf("load unprocessed reviews: %w", err))
	}

	if len(reviews) == 0 {
		w.finish(ctx, "skipped", start)

		slog.Info("extraction: nothing to do",
			"restaurant_id", args.RestaurantID,
		)

		return nil
	}

	results := w.extractor.ExtractBatch(ctx, reviews)

	var (
		processedIDs []uuid.UUID
		totalTokens  int64
		totalCost    float64
		failed       int
	)

	for _, outcome := range results {
		if outcome.Err != nil {
			failed++

			if w.metrics != nil {
				w.metrics.RecordWorkerError(ctx, observability.StageExtract, "extraction_failed")
			}

			continue
		}

		result := outcome.Result
		confidence := result.Confidence

		err := w.extractions.Upsert(ctx, repository.UpsertExtractionParams{
			ReviewID:             outcome.Review.ID,
			RestaurantID:         args.RestaurantID,
			Features:             result.Features,
			ExtractionConfidence: &confidence,
			ModelUsed:            result.ModelUsed,
			PromptVersion:        result.PromptVersion,
			TokensUsed:           result.TotalTokens(),
			CostUSD:              result.CostUSD,
		})
		if err != nil {
			failed++

			if w.metrics != nil {
				w.metrics.RecordWorkerError(ctx, observability.StageExtract, "store_extraction_failed")
			}

			slog.Error("extraction: store failed",
				"restaurant_id", args.RestaurantID,
				"review_id", outcome.Review.ID,
				"error", err,
			)

			continue
		}

		processedIDs = append(processedIDs, outcome.Review.ID)
		totalTokens += int64(result.TotalTokens())
		totalCost += result.CostUSD
	}

	if w.metrics != nil && totalTokens > 0 {
		w.metrics.RecordExtractionUsage(ctx, totalTokens, totalCost)
	}

	if len(processedIDs) == 0 {
		return w.fail(ctx, job, start, "extraction_failed",
			fmt.Errorf("all %d extractions failed", len(reviews)))
	}

	if err := w.reviews.MarkProcessed(ctx, processedIDs); err != nil {
		return w.fail(ctx, job, start, "mark_processed_failed",
			fmt.Errorf("mark reviews processed: %w", err))
	}

	_, err = w.inserter.Insert(ctx,
		service.FeatureAggregationArgs{RestaurantID: args.RestaurantID},
		&river.InsertOpts{
			Queue:      service.PipelineQueueName,
			UniqueOpts: river.UniqueOpts{ByArgs: true},
		},
	)
	if err != nil {
		return w.fail(ctx, job, start, "enqueue_failed",
			fmt.Errorf("enqueue feature aggregation: %w", err))
	}

	if w.metrics != nil {
		w.metrics.RecordJobsEnqueued(ctx, observability.StageAggregate, 1)
	}

	w.finish(ctx, "success", start)

	slog.Info("extraction: batch done",
		"restaurant_id", args.RestaurantID,
		"reviews_processed", len(processedIDs),
		"reviews_failed", failed,
		"tokens_used", totalTokens,
	)

	remaining, err := w.reviews.CountUnprocessed(ctx, args.RestaurantID)
	if err != nil {
		slog.Warn("extraction: count unprocessed failed",
			"restaurant_id", args.RestaurantID,
			"error", err,
		)

		return nil
	}

	if remaining > 0 {
		// Same job, next batch. Snoozing keeps the unique-by-args slot.
		return river.JobSnooze(extractionSnoozeDelay)
	}

	return nil
}

func (w *FeatureExtractionWorker) fail(
	ctx context.Context,
	job *river.Job[service.FeatureExtractionArgs],
	start time.Time,
	reason string,
	err error,
) error {
	return failStage(ctx, w.metrics, observability.StageExtract, failStageParams{
		restaurantID:  job.Args.RestaurantID,
		isLastAttempt: job.Attempt >= job.MaxAttempts,
		start:         start,
		reason:        reason,
		err:           err,
	})
}

func (w *FeatureExtractionWorker) finish(ctx context.Context, status string, start time.Time) {
	if w.metrics != nil {
		w.metrics.RecordStageOutcome(ctx, observability.StageExtract, status)
		w.metrics.RecordStageDuration(ctx, time.Since(start), observability.StageExtract, status)
	}
}
