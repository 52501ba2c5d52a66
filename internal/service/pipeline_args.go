package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"
)

const (
	reviewScrapeKind       = "review_scrape"
	featureExtractionKind  = "feature_extraction"
	featureAggregationKind = "feature_aggregation"

	// PipelineQueueName is the River queue used for the review processing
	// pipeline (scrape, extraction, aggregation).
	PipelineQueueName = "pipeline"
)

// PipelineJobInserter inserts pipeline jobs (e.g. River client). Workers and
// the ingestion flow use it to chain stages.
type PipelineJobInserter interface {
	Insert(ctx context.Context, args river.JobArgs, opts *river.InsertOpts) (*rivertype.JobInsertResult, error)
}

// ReviewScrapeArgs is the job payload for fetching a restaurant's reviews
// from the places API. Uniqueness is by RestaurantID so repeated ingestion
// requests for the same place do not stack scrapes.
type ReviewScrapeArgs struct {
	RestaurantID uuid.UUID `json:"restaurant_id" river:"unique"`
}

// Kind returns the River job kind.
func (ReviewScrapeArgs) Kind() string { return reviewScrapeKind }

// FeatureExtractionArgs is the job payload for extracting features from a
// restaurant's unprocessed reviews. One job covers the whole restaurant; the
// worker batches its pending reviews.
type FeatureExtractionArgs struct {
	RestaurantID uuid.UUID `json:"restaurant_id" river:"unique"`
}

// Kind returns the River job kind.
func (FeatureExtractionArgs) Kind() string { return featureExtractionKind }

// FeatureAggregationArgs is the job payload for recomputing a restaurant's
// aggregated feature vector from its stored extractions.
type FeatureAggregationArgs struct {
	RestaurantID uuid.UUID `json:"restaurant_id" river:"unique"`
}

// Kind returns the River job kind.
func (FeatureAggregationArgs) Kind() string { return featureAggregationKind }

var (
	_ river.JobArgs = ReviewScrapeArgs{}
	_ river.JobArgs = FeatureExtractionArgs{}
	_ river.JobArgs = FeatureAggregationArgs{}
)
