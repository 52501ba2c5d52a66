package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platewise/backend/internal/apperrors"
	"github.com/platewise/backend/internal/models"
	"github.com/platewise/backend/internal/service"
)

type mockRestaurantsReader struct {
	getByIDFunc    func(ctx context.Context, id uuid.UUID) (*models.Candidate, error)
	findActiveFunc func(ctx context.Context, maxPrice *int) ([]models.Candidate, error)
}

func (m *mockRestaurantsReader) GetByID(ctx context.Context, id uuid.UUID) (*models.Candidate, error) {
	return m.getByIDFunc(ctx, id)
}

func (m *mockRestaurantsReader) FindActiveWithFeatures(ctx context.Context, maxPrice *int) ([]models.Candidate, error) {
	return m.findActiveFunc(ctx, maxPrice)
}

type mockIngester struct {
	ingestFunc func(ctx context.Context, params service.IngestParams) (service.IngestResult, error)
}

func (m *mockIngester) Ingest(ctx context.Context, params service.IngestParams) (service.IngestResult, error) {
	return m.ingestFunc(ctx, params)
}

func TestRestaurantsHandler_Get(t *testing.T) {
	restaurantID := uuid.MustParse("018e1234-5678-9abc-def0-333333333333")

	t.Run("invalid id returns 400", func(t *testing.T) {
		handler := NewRestaurantsHandler(&mockRestaurantsReader{}, nil)

		req := httptest.NewRequest(http.MethodGet, "http://test/v1/restaurants/not-a-uuid", nil)
		req.SetPathValue("id", "not-a-uuid")

		rec := httptest.NewRecorder()
		handler.Get(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown id returns 404", func(t *testing.T) {
		reader := &mockRestaurantsReader{
			getByIDFunc: func(_ context.Context, _ uuid.UUID) (*models.Candidate, error) {
				return nil, apperrors.NewNotFoundError("restaurant", "restaurant not found")
			},
		}
		handler := NewRestaurantsHandler(reader, nil)

		req := httptest.NewRequest(http.MethodGet, "http://test/v1/restaurants/"+restaurantID.String(), nil)
		req.SetPathValue("id", restaurantID.String())

		rec := httptest.NewRecorder()
		handler.Get(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("success returns restaurant with features", func(t *testing.T) {
		confidence := 0.8

		reader := &mockRestaurantsReader{
			getByIDFunc: func(_ context.Context, id uuid.UUID) (*models.Candidate, error) {
				assert.Equal(t, restaurantID, id)

				return &models.Candidate{
					Restaurant: models.Restaurant{ID: restaurantID, Name: "Hearth"},
					Features: &models.RestaurantFeatures{
						RestaurantID:        restaurantID,
						ConfidenceScore:     &confidence,
						ReviewCountAnalyzed: 12,
					},
				}, nil
			},
		}
		handler := NewRestaurantsHandler(reader, nil)

		req := httptest.NewRequest(http.MethodGet, "http://test/v1/restaurants/"+restaurantID.String(), nil)
		req.SetPathValue("id", restaurantID.String())

		rec := httptest.NewRecorder()
		handler.Get(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)

		var resp RestaurantResponse

		err := json.Unmarshal(rec.Body.Bytes(), &resp)
		require.NoError(t, err)
		assert.Equal(t, "Hearth", resp.Restaurant.Name)
		require.NotNil(t, resp.Features)
		assert.Equal(t, 12, resp.Features.ReviewCountAnalyzed)
	})
}

func TestRestaurantsHandler_List(t *testing.T) {
	t.Run("invalid maxPrice returns 400", func(t *testing.T) {
		handler := NewRestaurantsHandler(&mockRestaurantsReader{}, nil)

		req := httptest.NewRequest(http.MethodGet, "http://test/v1/restaurants?maxPrice=9", nil)
		rec := httptest.NewRecorder()
		handler.List(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("maxPrice forwarded to the repository", func(t *testing.T) {
		reader := &mockRestaurantsReader{
			findActiveFunc: func(_ context.Context, maxPrice *int) ([]models.Candidate, error) {
				require.NotNil(t, maxPrice)
				assert.Equal(t, 2, *maxPrice)

				return []models.Candidate{
					{Restaurant: models.Restaurant{Name: "Hearth"}},
				}, nil
			},
		}
		handler := NewRestaurantsHandler(reader, nil)

		req := httptest.NewRequest(http.MethodGet, "http://test/v1/restaurants?maxPrice=2", nil)
		rec := httptest.NewRecorder()
		handler.List(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)

		var resp ListRestaurantsResponse

		err := json.Unmarshal(rec.Body.Bytes(), &resp)
		require.NoError(t, err)
		assert.Equal(t, 1, resp.TotalCount)
	})
}

func TestRestaurantsHandler_Ingest(t *testing.T) {
	t.Run("missing coordinates returns 400", func(t *testing.T) {
		ingester := &mockIngester{
			ingestFunc: func(_ context.Context, _ service.IngestParams) (service.IngestResult, error) {
				return service.IngestResult{}, service.ErrMissingLocation
			},
		}
		handler := NewRestaurantsHandler(&mockRestaurantsReader{}, ingester)

		req := httptest.NewRequest(http.MethodPost, "http://test/v1/restaurants/ingest",
			bytes.NewReader([]byte(`{"keyword":"pizza"}`)))
		rec := httptest.NewRecorder()
		handler.Ingest(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("success returns 202 with counts", func(t *testing.T) {
		ingester := &mockIngester{
			ingestFunc: func(_ context.Context, params service.IngestParams) (service.IngestResult, error) {
				assert.InDelta(t, 40.75, params.Location.Lat, 1e-9)
				assert.Equal(t, "ramen", params.Keyword)

				return service.IngestResult{Found: 12, Upserted: 12, Enqueued: 11}, nil
			},
		}
		handler := NewRestaurantsHandler(&mockRestaurantsReader{}, ingester)

		req := httptest.NewRequest(http.MethodPost, "http://test/v1/restaurants/ingest",
			bytes.NewReader([]byte(`{"latitude":40.75,"longitude":-73.98,"keyword":"ramen"}`)))
		rec := httptest.NewRecorder()
		handler.Ingest(rec, req)

		assert.Equal(t, http.StatusAccepted, rec.Code)

		var resp IngestResponse

		err := json.Unmarshal(rec.Body.Bytes(), &resp)
		require.NoError(t, err)
		assert.Equal(t, 12, resp.Found)
		assert.Equal(t, 11, resp.Enqueued)
	})
}
