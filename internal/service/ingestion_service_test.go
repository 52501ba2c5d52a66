package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platewise/backend/internal/models"
	"github.com/platewise/backend/internal/places"
	"github.com/platewise/backend/internal/repository"
)

type mockPlacesSearchClient struct {
	searchFunc func(ctx context.Context, params places.SearchParams) ([]places.SearchResult, error)
}

func (m *mockPlacesSearchClient) SearchRestaurants(ctx context.Context, params places.SearchParams) ([]places.SearchResult, error) {
	return m.searchFunc(ctx, params)
}

type mockIngestionRestaurantsRepo struct {
	upsertFunc func(ctx context.Context, p repository.UpsertRestaurantParams) (*models.Restaurant, error)
	upserts    []repository.UpsertRestaurantParams
}

func (m *mockIngestionRestaurantsRepo) Upsert(ctx context.Context, p repository.UpsertRestaurantParams) (*models.Restaurant, error) {
	m.upserts = append(m.upserts, p)

	return m.upsertFunc(ctx, p)
}

type mockPipelineInserter struct {
	insertFunc func(ctx context.Context, args river.JobArgs, opts *river.InsertOpts) (*rivertype.JobInsertResult, error)
	inserted   []river.JobArgs
	opts       []*river.InsertOpts
}

func (m *mockPipelineInserter) Insert(ctx context.Context, args river.JobArgs, opts *river.InsertOpts) (*rivertype.JobInsertResult, error) {
	m.inserted = append(m.inserted, args)
	m.opts = append(m.opts, opts)

	if m.insertFunc != nil {
		return m.insertFunc(ctx, args, opts)
	}

	return &rivertype.JobInsertResult{}, nil
}

func searchHit(placeID, name string) places.SearchResult {
	rating := 4.4
	total := 210
	price := 2

	return places.SearchResult{
		PlaceID:          placeID,
		Name:             name,
		Vicinity:         "123 Mott St, New York",
		Geometry:         places.Geometry{Location: places.LatLng{Lat: 40.72, Lng: -73.99}},
		Rating:           &rating,
		UserRatingsTotal: &total,
		PriceLevel:       &price,
		Types:            []string{"italian_restaurant", "restaurant"},
	}
}

func TestIngestionService_Ingest(t *testing.T) {
	t.Run("missing location", func(t *testing.T) {
		svc := NewIngestionService(IngestionServiceParams{})

		_, err := svc.Ingest(context.Background(), IngestParams{Keyword: "pizza"})
		require.ErrorIs(t, err, ErrMissingLocation)
	})

	t.Run("search failure aborts the run", func(t *testing.T) {
		placesClient := &mockPlacesSearchClient{
			searchFunc: func(_ context.Context, _ places.SearchParams) ([]places.SearchResult, error) {
				return nil, assert.AnError
			},
		}
		svc := NewIngestionService(IngestionServiceParams{Places: placesClient})

		_, err := svc.Ingest(context.Background(), IngestParams{
			Location: models.Location{Lat: 40.75, Lng: -73.98},
		})
		require.ErrorIs(t, err, assert.AnError)
	})

	t.Run("discovered restaurants are stored and scrapes enqueued", func(t *testing.T) {
		restaurantID := uuid.MustParse("018e1234-5678-9abc-def0-444444444444")

		placesClient := &mockPlacesSearchClient{
			searchFunc: func(_ context.Context, params places.SearchParams) ([]places.SearchResult, error) {
				assert.InDelta(t, 40.75, params.Latitude, 1e-9)
				assert.Equal(t, "italian", params.Keyword)

				return []places.SearchResult{searchHit("place-1", "Hearth")}, nil
			},
		}
		repo := &mockIngestionRestaurantsRepo{
			upsertFunc: func(_ context.Context, _ repository.UpsertRestaurantParams) (*models.Restaurant, error) {
				return &models.Restaurant{ID: restaurantID}, nil
			},
		}
		inserter := &mockPipelineInserter{}

		svc := NewIngestionService(IngestionServiceParams{
			Places:      placesClient,
			Restaurants: repo,
			Inserter:    inserter,
		})

		result, err := svc.Ingest(context.Background(), IngestParams{
			Location: models.Location{Lat: 40.75, Lng: -73.98},
			Keyword:  "italian",
		})
		require.NoError(t, err)

		assert.Equal(t, IngestResult{Found: 1, Upserted: 1, Enqueued: 1}, result)

		require.Len(t, repo.upserts, 1)
		stored := repo.upserts[0]
		assert.Equal(t, "place-1", stored.GooglePlaceID)
		assert.Equal(t, "Hearth", stored.Name)
		require.NotNil(t, stored.Address)
		assert.Equal(t, "123 Mott St, New York", *stored.Address)
		require.NotNil(t, stored.PriceLevel)
		assert.Equal(t, 2, *stored.PriceLevel)
		assert.Equal(t, []string{"Italian"}, stored.CuisineTags)

		require.Len(t, inserter.inserted, 1)
		args, ok := inserter.inserted[0].(ReviewScrapeArgs)
		require.True(t, ok)
		assert.Equal(t, restaurantID, args.RestaurantID)

		// Re-ingesting the same area must not stack duplicate scrape jobs.
		require.Len(t, inserter.opts, 1)
		assert.Equal(t, PipelineQueueName, inserter.opts[0].Queue)
		assert.True(t, inserter.opts[0].UniqueOpts.ByArgs)
	})

	t.Run("one failed upsert does not abort the run", func(t *testing.T) {
		placesClient := &mockPlacesSearchClient{
			searchFunc: func(_ context.Context, _ places.SearchParams) ([]places.SearchResult, error) {
				return []places.SearchResult{
					searchHit("place-1", "Hearth"),
					searchHit("place-2", "Lilia"),
				}, nil
			},
		}
		repo := &mockIngestionRestaurantsRepo{
			upsertFunc: func(_ context.Context, p repository.UpsertRestaurantParams) (*models.Restaurant, error) {
				if p.GooglePlaceID == "place-1" {
					return nil, assert.AnError
				}

				return &models.Restaurant{ID: uuid.New()}, nil
			},
		}
		inserter := &mockPipelineInserter{}

		svc := NewIngestionService(IngestionServiceParams{
			Places:      placesClient,
			Restaurants: repo,
			Inserter:    inserter,
		})

		result, err := svc.Ingest(context.Background(), IngestParams{
			Location: models.Location{Lat: 40.75, Lng: -73.98},
		})
		require.NoError(t, err)
		assert.Equal(t, IngestResult{Found: 2, Upserted: 1, Enqueued: 1}, result)
	})

	t.Run("failed enqueue counted as upserted only", func(t *testing.T) {
		placesClient := &mockPlacesSearchClient{
			searchFunc: func(_ context.Context, _ places.SearchParams) ([]places.SearchResult, error) {
				return []places.SearchResult{searchHit("place-1", "Hearth")}, nil
			},
		}
		repo := &mockIngestionRestaurantsRepo{
			upsertFunc: func(_ context.Context, _ repository.UpsertRestaurantParams) (*models.Restaurant, error) {
				return &models.Restaurant{ID: uuid.New()}, nil
			},
		}
		inserter := &mockPipelineInserter{
			insertFunc: func(_ context.Context, _ river.JobArgs, _ *river.InsertOpts) (*rivertype.JobInsertResult, error) {
				return nil, assert.AnError
			},
		}

		svc := NewIngestionService(IngestionServiceParams{
			Places:      placesClient,
			Restaurants: repo,
			Inserter:    inserter,
		})

		result, err := svc.Ingest(context.Background(), IngestParams{
			Location: models.Location{Lat: 40.75, Lng: -73.98},
		})
		require.NoError(t, err)
		assert.Equal(t, IngestResult{Found: 1, Upserted: 1, Enqueued: 0}, result)
	})
}
