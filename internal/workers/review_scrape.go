// Package workers provides the River workers for the review pipeline
// (scrape, feature extraction, feature aggregation).
package workers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/riverqueue/river"

	"github.com/platewise/backend/internal/apperrors"
	"github.com/platewise/backend/internal/models"
	"github.com/platewise/backend/internal/observability"
	"github.com/platewise/backend/internal/places"
	"github.com/platewise/backend/internal/repository"
	"github.com/platewise/backend/internal/service"
)

// ReviewScrapeWorker fetches a restaurant's place details and reviews from
// the places API, refreshes the stored metadata, and chains a feature
// extraction job when unprocessed reviews remain.
type ReviewScrapeWorker struct {
	river.WorkerDefaults[service.ReviewScrapeArgs]

	restaurants scrapeRestaurantsRepo
	reviews     scrapeReviewsRepo
	places      placeDetailsClient
	inserter    service.PipelineJobInserter
	metrics     observability.PipelineMetrics
}

// scrapeRestaurantsRepo is the minimal restaurants access needed by the worker.
type scrapeRestaurantsRepo interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Candidate, error)
	Upsert(ctx context.Context, p repository.UpsertRestaurantParams) (*models.Restaurant, error)
	MarkScraped(ctx context.Context, id uuid.UUID) error
}

// scrapeReviewsRepo is the minimal reviews access needed by the worker.
type scrapeReviewsRepo interface {
	CreateBatch(ctx context.Context, reviews []repository.CreateReviewParams) (int, error)
	CountUnprocessed(ctx context.Context, restaurantID uuid.UUID) (int, error)
}

// placeDetailsClient is the places API surface the worker uses.
type placeDetailsClient interface {
	GetPlaceDetails(ctx context.Context, placeID string) (*places.PlaceDetails, error)
	PhotoURL(photoReference string, maxWidth int) string
}

// NewReviewScrapeWorker creates the scrape worker. metrics may be nil when
// metrics are disabled.
func NewReviewScrapeWorker(
	restaurants scrapeRestaurantsRepo,
	reviews scrapeReviewsRepo,
	placesClient placeDetailsClient,
	inserter service.PipelineJobInserter,
	metrics observability.PipelineMetrics,
) *ReviewScrapeWorker {
	return &ReviewScrapeWorker{
		restaurants: restaurants,
		reviews:     reviews,
		places:      placesClient,
		inserter:    inserter,
		metrics:     metrics,
	}
}

const (
	reviewScrapeTimeout = 60 * time.Second
	maxStoredPhotos     = 5
)

// Timeout limits how long a single scrape job can run.
func (w *ReviewScrapeWorker) Timeout(*river.Job[service.ReviewScrapeArgs]) time.Duration {
	return reviewScrapeTimeout
}

// Work loads the restaurant, scrapes its place details, stores new reviews,
// and enqueues extraction when there is work left to do.
func (w *ReviewScrapeWorker) Work(ctx context.Context, job *river.Job[service.ReviewScrapeArgs]) error {
	args := job.Args
	start := time.Now()

	candidate, err := w.restaurants.GetByID(ctx, args.RestaurantID)
	if err != nil {
		var notFound *apperrors.NotFoundError
		if errors.As(err, &notFound) {
			w.finish(ctx, observability.StageScrape, "skipped", start)

			slog.Warn("scrape: restaurant gone, skipping",
				"restaurant_id", args.RestaurantID,
			)

			return nil
		}

		return w.fail(ctx, job, start, "get_restaurant_failed",
			fmt.Errorf("get restaurant: %w", err))
	}

	details, err := w.places.GetPlaceDetails(ctx, candidate.Restaurant.GooglePlaceID)
	if err != nil {
		if errors.Is(err, places.ErrPlaceNotFound) {
			w.finish(ctx, observability.StageScrape, "skipped", start)

			slog.Warn("scrape: place no longer exists",
				"restaurant_id", args.RestaurantID,
				"google_place_id", candidate.Restaurant.GooglePlaceID,
			)

			return nil
		}

		return w.fail(ctx, job, start, "places_failed",
			fmt.Errorf("get place details: %w", err))
	}

	if _, err := w.restaurants.Upsert(ctx, w.upsertParams(details)); err != nil {
		return w.fail(ctx, job, start, "store_reviews_failed",
			fmt.Errorf("refresh restaurant metadata: %w", err))
	}

	inserted, err := w.reviews.CreateBatch(ctx, reviewParams(args.RestaurantID, details))
	if err != nil {
		return w.fail(ctx, job, start, "store_reviews_failed",
			fmt.Errorf("store reviews: %w", err))
	}

	if err := w.restaurants.MarkScraped(ctx, args.RestaurantID); err != nil {
		return w.fail(ctx, job, start, "store_reviews_failed",
			fmt.Errorf("mark restaurant scraped: %w", err))
	}

	unprocessed, err := w.reviews.CountUnprocessed(ctx, args.RestaurantID)
	if err != nil {
		return w.fail(ctx, job, start, "load_reviews_failed",
			fmt.Errorf("count unprocessed reviews: %w", err))
	}

	if unprocessed > 0 {
		_, err := w.inserter.Insert(ctx,
			service.FeatureExtractionArgs{RestaurantID: args.RestaurantID},
			&river.InsertOpts{
				Queue:      service.PipelineQueueName,
				UniqueOpts: river.UniqueOpts{ByArgs: true},
			},
		)
		if err != nil {
			return w.fail(ctx, job, start, "enqueue_failed",
				fmt.Errorf("enqueue feature extraction: %w", err))
		}

		if w.metrics != nil {
			w.metrics.RecordJobsEnqueued(ctx, observability.StageExtract, 1)
		}
	}

	w.finish(ctx, observability.StageScrape, "success", start)

	slog.Info("scrape: done",
		"restaurant_id", args.RestaurantID,
		"reviews_fetched", len(details.Reviews),
		"reviews_new", inserted,
		"reviews_unprocessed", unprocessed,
	)

	return nil
}

// upsertParams maps place details onto the restaurant metadata columns.
func (w *ReviewScrapeWorker) upsertParams(details *places.PlaceDetails) repository.UpsertRestaurantParams {
	parts := places.ExtractAddressParts(details.AddressComponents)

	photoURLs := make([]string, 0, maxStoredPhotos)

	for _, photo := range details.Photos {
		if len(photoURLs) == maxStoredPhotos {
			break
		}

		photoURLs = append(photoURLs, w.places.PhotoURL(photo.PhotoReference, 0))
	}

	return repository.UpsertRestaurantParams{
		GooglePlaceID:     details.PlaceID,
		Name:              details.Name,
		Latitude:          details.Geometry.Location.Lat,
		Longitude:         details.Geometry.Location.Lng,
		Address:           optional(details.FormattedAddress),
		City:              optional(parts.City),
		State:             optional(parts.State),
		ZipCode:           optional(parts.ZipCode),
		PriceLevel:        details.PriceLevel,
		GoogleRating:      details.Rating,
		GoogleReviewCount: details.UserRatingsTotal,
		CuisineTags:       places.MapCuisineTags(details.Types),
		Phone:             optional(details.FormattedPhoneNumber),
		Website:           optional(details.Website),
		PhotoURLs:         photoURLs,
	}
}

// reviewParams converts the scraped reviews, skipping ones without text. The
// source review id combines the place id with the review's unix timestamp,
// which is the stablest identity the places API exposes.
func reviewParams(restaurantID uuid.UUID, details *places.PlaceDetails) []repository.CreateReviewParams {
	params := make([]repository.CreateReviewParams, 0, len(details.Reviews))

	for _, review := range details.Reviews {
		if strings.TrimSpace(review.Text) == "" {
			continue
		}

		publishedAt := time.Unix(review.Time, 0).UTC()
		rating := review.Rating

		params = append(params, repository.CreateReviewParams{
			RestaurantID:   restaurantID,
			SourceReviewID: fmt.Sprintf("%s_%d", details.PlaceID, review.Time),
			AuthorName:     optional(review.AuthorName),
			Rating:         &rating,
			Text:           review.Text,
			PublishedAt:    &publishedAt,
		})
	}

	return params
}

func (w *ReviewScrapeWorker) fail(
	ctx context.Context,
	job *river.Job[service.ReviewScrapeArgs],
	start time.Time,
	reason string,
	err error,
) error {
	return failStage(ctx, w.metrics, observability.StageScrape, failStageParams{
		restaurantID:  job.Args.RestaurantID,
		isLastAttempt: job.Attempt >= job.MaxAttempts,
		start:         start,
		reason:        reason,
		err:           err,
	})
}

func (w *ReviewScrapeWorker) finish(ctx context.Context, stage, status string, start time.Time) {
	if w.metrics != nil {
		w.metrics.RecordStageOutcome(ctx, stage, status)
		w.metrics.RecordStageDuration(ctx, time.Since(start), stage, status)
	}
}

// failStageParams carries the shared bookkeeping of a failed stage attempt.
type failStageParams struct {
	restaurantID  uuid.UUID
	isLastAttempt bool
	start         time.Time
	reason        string
	err           error
}

// failStage records metrics for a failed attempt and decides between retry
// (returning the error to River) and giving up (final attempt returns nil so
// the job does not linger in the retry queue).
func failStage(ctx context.Context, metrics observability.PipelineMetrics, stage string, p failStageParams) error {
	status := "retry"
	if p.isLastAttempt {
		status = "failed_final"
	}

	if metrics != nil {
		metrics.RecordWorkerError(ctx, stage, p.reason)
		metrics.RecordStageOutcome(ctx, stage, status)
		metrics.RecordStageDuration(ctx, time.Since(p.start), stage, status)
	}

	if p.isLastAttempt {
		slog.Error("pipeline stage failed (final attempt)",
			"stage", stage,
			"restaurant_id", p.restaurantID,
			"reason", p.reason,
			"error", p.err,
		)

		return nil
	}

	return p.err
}

func optional(s string) *string {
	if s == "" {
		return nil
	}

	return &s
}
