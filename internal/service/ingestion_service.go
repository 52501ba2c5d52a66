package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/riverqueue/river"

	"github.com/platewise/backend/internal/models"
	"github.com/platewise/backend/internal/places"
	"github.com/platewise/backend/internal/repository"
)

// ErrMissingLocation is returned when an ingestion request has no coordinates.
var ErrMissingLocation = errors.New("latitude and longitude are required")

// PlacesSearchClient is the places API surface ingestion needs.
type PlacesSearchClient interface {
	SearchRestaurants(ctx context.Context, params places.SearchParams) ([]places.SearchResult, error)
}

// RestaurantsRepositoryForIngestion persists discovered restaurants.
type RestaurantsRepositoryForIngestion interface {
	Upsert(ctx context.Context, p repository.UpsertRestaurantParams) (*models.Restaurant, error)
}

// IngestParams configures one discovery run.
type IngestParams struct {
	Location     models.Location
	RadiusMeters int
	Keyword      string
	MaxResults   int
}

// IngestResult summarizes one discovery run.
type IngestResult struct {
	Found    int
	Upserted int
	Enqueued int
}

// IngestionService discovers restaurants around a point, stores their
// metadata, and enqueues a review scrape for each one. A single restaurant
// failing to persist does not abort the run.
type IngestionService struct {
	places      PlacesSearchClient
	restaurants RestaurantsRepositoryForIngestion
	inserter    PipelineJobInserter
	logger      *slog.Logger
}

// IngestionServiceParams configures IngestionService. Logger may be nil.
type IngestionServiceParams struct {
	Places      PlacesSearchClient
	Restaurants RestaurantsRepositoryForIngestion
	Inserter    PipelineJobInserter
	Logger      *slog.Logger
}

// NewIngestionService creates an IngestionService.
func NewIngestionService(p IngestionServiceParams) *IngestionService {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &IngestionService{
		places:      p.Places,
		restaurants: p.Restaurants,
		inserter:    p.Inserter,
		logger:      logger,
	}
}

// Ingest runs one discovery pass.
func (s *IngestionService) Ingest(ctx context.Context, params IngestParams) (IngestResult, error) {
	if params.Location.Lat == 0 && params.Location.Lng == 0 {
		return IngestResult{}, ErrMissingLocation
	}

	results, err := s.places.SearchRestaurants(ctx, places.SearchParams{
		Latitude:     params.Location.Lat,
		Longitude:    params.Location.Lng,
		RadiusMeters: params.RadiusMeters,
		Keyword:      params.Keyword,
		MaxResults:   params.MaxResults,
	})
	if err != nil {
		return IngestResult{}, fmt.Errorf("search places: %w", err)
	}

	out := IngestResult{Found: len(results)}

	for _, result := range results {
		restaurant, err := s.restaurants.Upsert(ctx, upsertParamsFromSearchResult(result))
		if err != nil {
			s.logger.Error("ingest: upsert failed",
				"google_place_id", result.PlaceID, "error", err)

			continue
		}

		out.Upserted++

		_, err = s.inserter.Insert(ctx,
			ReviewScrapeArgs{RestaurantID: restaurant.ID},
			&river.InsertOpts{
				Queue:      PipelineQueueName,
				UniqueOpts: river.UniqueOpts{ByArgs: true},
			},
		)
		if err != nil {
			s.logger.Error("ingest: enqueue scrape failed",
				"restaurant_id", restaurant.ID.String(), "error", err)

			continue
		}

		out.Enqueued++
	}

	s.logger.Info("ingest: done",
		"found", out.Found, "upserted", out.Upserted, "enqueued", out.Enqueued)

	return out, nil
}

// upsertParamsFromSearchResult maps a nearby-search hit onto the restaurant
// columns. Search hits carry less detail than place details; the scrape job
// backfills the rest.
func upsertParamsFromSearchResult(result places.SearchResult) repository.UpsertRestaurantParams {
	address := result.FormattedAddress
	if address == "" {
		address = result.Vicinity
	}

	params := repository.UpsertRestaurantParams{
		GooglePlaceID:     result.PlaceID,
		Name:              result.Name,
		Latitude:          result.Geometry.Location.Lat,
		Longitude:         result.Geometry.Location.Lng,
		PriceLevel:        result.PriceLevel,
		GoogleRating:      result.Rating,
		GoogleReviewCount: result.UserRatingsTotal,
		CuisineTags:       places.MapCuisineTags(result.Types),
	}

	if address != "" {
		params.Address = &address
	}

	return params
}
