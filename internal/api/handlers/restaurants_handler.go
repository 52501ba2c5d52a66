package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/platewise/backend/internal/api/response"
	"github.com/platewise/backend/internal/api/validation"
	"github.com/platewise/backend/internal/apperrors"
	"github.com/platewise/backend/internal/models"
	"github.com/platewise/backend/internal/service"
)

// RestaurantsReader defines the restaurant reads the handler needs.
type RestaurantsReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Candidate, error)
	FindActiveWithFeatures(ctx context.Context, maxPrice *int) ([]models.Candidate, error)
}

// Ingester runs a places discovery pass.
type Ingester interface {
	Ingest(ctx context.Context, params service.IngestParams) (service.IngestResult, error)
}

// RestaurantsHandler handles HTTP requests for restaurants.
type RestaurantsHandler struct {
	restaurants RestaurantsReader
	ingestion   Ingester
}

// NewRestaurantsHandler creates a new restaurants handler.
func NewRestaurantsHandler(restaurants RestaurantsReader, ingestion Ingester) *RestaurantsHandler {
	return &RestaurantsHandler{restaurants: restaurants, ingestion: ingestion}
}

// RestaurantResponse is one restaurant with its aggregated feature data, if any.
type RestaurantResponse struct {
	Restaurant models.Restaurant          `json:"restaurant"`
	Features   *models.RestaurantFeatures `json:"features,omitempty"`
}

// ListRestaurantsResponse is the response for GET /v1/restaurants.
type ListRestaurantsResponse struct {
	Restaurants []RestaurantResponse `json:"restaurants"`
	TotalCount  int                  `json:"totalCount"` //nolint:tagliatelle // API contract
}

// Get handles GET /v1/restaurants/{id}.
func (h *RestaurantsHandler) Get(w http.ResponseWriter, r *http.Request) {
	idStr := r.PathValue("id")

	id, err := uuid.Parse(idStr)
	if err != nil {
		response.RespondBadRequest(w, "Invalid restaurant ID")

		return
	}

	candidate, err := h.restaurants.GetByID(r.Context(), id)
	if err != nil {
		var notFound *apperrors.NotFoundError
		if errors.As(err, &notFound) {
			response.RespondNotFound(w, "Restaurant not found")

			return
		}

		response.RespondInternalServerError(w, "Failed to load restaurant")

		return
	}

	response.RespondJSON(w, http.StatusOK, RestaurantResponse{
		Restaurant: candidate.Restaurant,
		Features:   candidate.Features,
	})
}

// ListRestaurantsQuery holds the query parameters for GET /v1/restaurants.
type ListRestaurantsQuery struct {
	MaxPrice *int `form:"maxPrice" validate:"omitempty,gte=1,lte=4"`
}

// List handles GET /v1/restaurants. maxPrice is an optional query filter.
func (h *RestaurantsHandler) List(w http.ResponseWriter, r *http.Request) {
	var query ListRestaurantsQuery

	if err := validation.ValidateAndDecodeQueryParams(r, &query); err != nil {
		validation.RespondValidationError(w, err)

		return
	}

	candidates, err := h.restaurants.FindActiveWithFeatures(r.Context(), query.MaxPrice)
	if err != nil {
		response.RespondInternalServerError(w, "Failed to list restaurants")

		return
	}

	items := make([]RestaurantResponse, len(candidates))
	for i := range candidates {
		items[i] = RestaurantResponse{
			Restaurant: candidates[i].Restaurant,
			Features:   candidates[i].Features,
		}
	}

	response.RespondJSON(w, http.StatusOK, ListRestaurantsResponse{
		Restaurants: items,
		TotalCount:  len(items),
	})
}

// IngestRequest is the body for POST /v1/restaurants/ingest.
type IngestRequest struct {
	Latitude     float64 `json:"latitude" validate:"gte=-90,lte=90"`
	Longitude    float64 `json:"longitude" validate:"gte=-180,lte=180"`
	RadiusMeters int     `json:"radiusMeters" validate:"gte=0,lte=50000"` //nolint:tagliatelle // API contract
	Keyword      string  `json:"keyword" validate:"omitempty,no_null_bytes"`
	MaxResults   int     `json:"maxResults" validate:"gte=0,lte=60"` //nolint:tagliatelle // API contract
}

// IngestResponse is the response for POST /v1/restaurants/ingest.
type IngestResponse struct {
	Found    int `json:"found"`
	Upserted int `json:"upserted"`
	Enqueued int `json:"enqueued"`
}

// Ingest handles POST /v1/restaurants/ingest: discover restaurants around a
// point and kick off the review pipeline for each.
func (h *RestaurantsHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	var req IngestRequest

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(&req); err != nil {
		response.RespondBadRequest(w, "Invalid request body")

		return
	}

	if err := validation.ValidateStruct(req); err != nil {
		validation.RespondValidationError(w, err)

		return
	}

	result, err := h.ingestion.Ingest(r.Context(), service.IngestParams{
		Location:     models.Location{Lat: req.Latitude, Lng: req.Longitude},
		RadiusMeters: req.RadiusMeters,
		Keyword:      req.Keyword,
		MaxResults:   req.MaxResults,
	})
	if err != nil {
		if errors.Is(err, service.ErrMissingLocation) {
			response.RespondBadRequest(w, "latitude and longitude are required")

			return
		}

		response.RespondInternalServerError(w, "Ingestion failed")

		return
	}

	response.RespondJSON(w, http.StatusAccepted, IngestResponse{
		Found:    result.Found,
		Upserted: result.Upserted,
		Enqueued: result.Enqueued,
	})
}
