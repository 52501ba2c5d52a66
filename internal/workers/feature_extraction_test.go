package workers

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platewise/backend/internal/features"
	"github.com/platewise/backend/internal/models"
	"github.com/platewise/backend/internal/repository"
	"github.com/platewise/backend/internal/service"
)

type mockExtractionReviewsRepo struct {
	findUnprocessedFunc  func(ctx context.Context, restaurantID uuid.UUID, limit int) ([]models.Review, error)
	markProcessedFunc    func(ctx context.Context, reviewIDs []uuid.UUID) error
	countUnprocessedFunc func(ctx context.Context, restaurantID uuid.UUID) (int, error)
}

func (m *mockExtractionReviewsRepo) FindUnprocessedByRestaurant(ctx context.Context, restaurantID uuid.UUID, limit int) ([]models.Review, error) {
	return m.findUnprocessedFunc(ctx, restaurantID, limit)
}

func (m *mockExtractionReviewsRepo) MarkProcessed(ctx context.Context, reviewIDs []uuid.UUID) error {
	return m.markProcessedFunc(ctx, reviewIDs)
}

func (m *mockExtractionReviewsRepo) CountUnprocessed(ctx context.Context, restaurantID uuid.UUID) (int, error) {
	return m.countUnprocessedFunc(ctx, restaurantID)
}

type mockExtractionStore struct {
	upsertFunc func(ctx context.Context, p repository.UpsertExtractionParams) error
}

func (m *mockExtractionStore) Upsert(ctx context.Context, p repository.UpsertExtractionParams) error {
	return m.upsertFunc(ctx, p)
}

type mockReviewExtractor struct {
	extractBatchFunc func(ctx context.Context, reviews []models.Review) []service.BatchExtraction
}

func (m *mockReviewExtractor) ExtractBatch(ctx context.Context, reviews []models.Review) []service.BatchExtraction {
	return m.extractBatchFunc(ctx, reviews)
}

func extractionJob(restaurantID uuid.UUID) *river.Job[service.FeatureExtractionArgs] {
	return &river.Job[service.FeatureExtractionArgs]{
		JobRow: &rivertype.JobRow{Attempt: 1, MaxAttempts: 3},
		Args:   service.FeatureExtractionArgs{RestaurantID: restaurantID},
	}
}

func TestFeatureExtractionWorker_Work(t *testing.T) {
	restaurantID := uuid.New()
	goodReview := models.Review{ID: uuid.New(), RestaurantID: restaurantID, Text: "Romantic spot"}
	badReview := models.Review{ID: uuid.New(), RestaurantID: restaurantID, Text: "Fine"}

	var (
		upserts   []repository.UpsertExtractionParams
		markedIDs []uuid.UUID
	)

	reviews := &mockExtractionReviewsRepo{
		findUnprocessedFunc: func(_ context.Context, _ uuid.UUID, limit int) ([]models.Review, error) {
			assert.Equal(t, 100, limit)

			return []models.Review{goodReview, badReview}, nil
		},
		markProcessedFunc: func(_ context.Context, reviewIDs []uuid.UUID) error {
			markedIDs = reviewIDs

			return nil
		},
		countUnprocessedFunc: func(_ context.Context, _ uuid.UUID) (int, error) {
			return 0, nil
		},
	}

	store := &mockExtractionStore{
		upsertFunc: func(_ context.Context, p repository.UpsertExtractionParams) error {
			upserts = append(upserts, p)

			return nil
		},
	}

	extractor := &mockReviewExtractor{
		extractBatchFunc: func(_ context.Context, batch []models.Review) []service.BatchExtraction {
			require.Len(t, batch, 2)

			return []service.BatchExtraction{
				{
					Review: goodReview,
					Result: &service.ExtractionResult{
						Features:         map[features.Name]float64{features.Romantic: 0.9},
						Confidence:       0.8,
						ModelUsed:        "gpt-4o-mini",
						PromptVersion:    features.PromptVersion,
						PromptTokens:     500,
						CompletionTokens: 100,
						CostUSD:          0.00014,
					},
				},
				{Review: badReview, Err: errors.New("model unavailable")},
			}
		},
	}

	inserter := &mockJobInserter{}
	worker := NewFeatureExtractionWorker(reviews, store, extractor, inserter, nil)

	err := worker.Work(context.Background(), extractionJob(restaurantID))
	require.NoError(t, err)

	// Only the successful review is persisted and marked.
	require.Len(t, upserts, 1)
	assert.Equal(t, goodReview.ID, upserts[0].ReviewID)
	assert.Equal(t, restaurantID, upserts[0].RestaurantID)
	assert.Equal(t, 600, upserts[0].TokensUsed)
	require.NotNil(t, upserts[0].ExtractionConfidence)
	assert.InDelta(t, 0.8, *upserts[0].ExtractionConfidence, 1e-9)

	assert.Equal(t, []uuid.UUID{goodReview.ID}, markedIDs)

	require.Len(t, inserter.inserted, 1)
	aggregation, ok := inserter.inserted[0].(service.FeatureAggregationArgs)
	require.True(t, ok)
	assert.Equal(t, restaurantID, aggregation.RestaurantID)

	// Unique by args: batch reruns dedupe against a pending aggregation job.
	require.Len(t, inserter.opts, 1)
	assert.True(t, inserter.opts[0].UniqueOpts.ByArgs)
}

func TestFeatureExtractionWorker_Work_NothingToDo(t *testing.T) {
	reviews := &mockExtractionReviewsRepo{
		findUnprocessedFunc: func(_ context.Context, _ uuid.UUID, _ int) ([]models.Review, error) {
			return nil, nil
		},
	}

	inserter := &mockJobInserter{}
	worker := NewFeatureExtractionWorker(reviews, nil, nil, inserter, nil)

	err := worker.Work(context.Background(), extractionJob(uuid.New()))
	require.NoError(t, err)
	assert.Empty(t, inserter.inserted)
}

func TestFeatureExtractionWorker_Work_SnoozesWhenReviewsRemain(t *testing.T) {
	restaurantID := uuid.New()
	review := models.Review{ID: uuid.New(), RestaurantID: restaurantID, Text: "Cozy"}

	reviews := &mockExtractionReviewsRepo{
		findUnprocessedFunc: func(_ context.Context, _ uuid.UUID, _ int) ([]models.Review, error) {
			return []models.Review{review}, nil
		},
		markProcessedFunc: func(_ context.Context, _ []uuid.UUID) error {
			return nil
		},
		countUnprocessedFunc: func(_ context.Context, _ uuid.UUID) (int, error) {
			return 42, nil
		},
	}

	store := &mockExtractionStore{
		upsertFunc: func(_ context.Context, _ repository.UpsertExtractionParams) error {
			return nil
		},
	}

	extractor := &mockReviewExtractor{
		extractBatchFunc: func(_ context.Context, batch []models.Review) []service.BatchExtraction {
			return []service.BatchExtraction{
				{Review: review, Result: &service.ExtractionResult{Confidence: 0.7}},
			}
		},
	}

	inserter := &mockJobInserter{}
	worker := NewFeatureExtractionWorker(reviews, store, extractor, inserter, nil)

	// Aggregation is still chained; the snooze error reschedules this job.
	err := worker.Work(context.Background(), extractionJob(restaurantID))
	require.Error(t, err)
	require.Len(t, inserter.inserted, 1)
}

func TestFeatureExtractionWorker_Work_AllFailedRetries(t *testing.T) {
	restaurantID := uuid.New()
	review := models.Review{ID: uuid.New(), RestaurantID: restaurantID, Text: "Loud"}

	reviews := &mockExtractionReviewsRepo{
		findUnprocessedFunc: func(_ context.Context, _ uuid.UUID, _ int) ([]models.Review, error) {
			return []models.Review{review}, nil
		},
	}

	extractor := &mockReviewExtractor{
		extractBatchFunc: func(_ context.Context, _ []models.Review) []service.BatchExtraction {
			return []service.BatchExtraction{
				{Review: review, Err: errors.New("model unavailable")},
			}
		},
	}

	worker := NewFeatureExtractionWorker(reviews, nil, extractor, nil, nil)

	job := extractionJob(restaurantID)
	err := worker.Work(context.Background(), job)
	require.Error(t, err)

	job.Attempt = job.MaxAttempts
	err = worker.Work(context.Background(), job)
	require.NoError(t, err)
}
