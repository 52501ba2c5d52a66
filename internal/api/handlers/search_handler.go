// Package handlers contains the HTTP handlers for the platewise API.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/platewise/backend/internal/api/response"
	"github.com/platewise/backend/internal/api/validation"
	"github.com/platewise/backend/internal/models"
	"github.com/platewise/backend/internal/observability"
	"github.com/platewise/backend/internal/service"
)

// Searcher defines the search surface the handler needs.
type Searcher interface {
	Search(ctx context.Context, params service.SearchParams) (service.SearchResult, error)
}

// SearchHandler handles HTTP requests for restaurant search.
type SearchHandler struct {
	service Searcher
	metrics observability.SearchMetrics
}

// NewSearchHandler creates a new search handler. metrics may be nil.
func NewSearchHandler(searcher Searcher, metrics observability.SearchMetrics) *SearchHandler {
	return &SearchHandler{service: searcher, metrics: metrics}
}

// SearchRequest is the body for POST /v1/search.
// API contract uses camelCase.
type SearchRequest struct {
	Query       string     `json:"query" validate:"required,no_null_bytes"`
	Latitude    float64    `json:"latitude" validate:"gte=-90,lte=90"`
	Longitude   float64    `json:"longitude" validate:"gte=-180,lte=180"`
	RadiusMiles float64    `json:"radiusMiles" validate:"gte=0"` //nolint:tagliatelle // API contract
	MaxPrice    *int       `json:"maxPrice" validate:"omitempty,gte=1,lte=4"` //nolint:tagliatelle // API contract
	Cuisines    []string   `json:"cuisines" validate:"dive,no_null_bytes"`
	Limit       int        `json:"limit" validate:"gte=0"`
	UserID      *uuid.UUID `json:"userId"` //nolint:tagliatelle // API contract
}

// SearchResponse is the response for POST /v1/search.
type SearchResponse struct {
	QueryID     uuid.UUID                 `json:"queryId"` //nolint:tagliatelle // API contract
	Restaurants []models.ScoredRestaurant `json:"restaurants"`
	ParsedQuery models.ParsedQuery        `json:"parsedQuery"` //nolint:tagliatelle // API contract
	TotalCount  int                       `json:"totalCount"`  //nolint:tagliatelle // API contract
}

const (
	defaultSearchRadiusMiles = 5.0
	defaultSearchLimit       = 20
	maxSearchLimit           = 100
)

// Search handles POST /v1/search.
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req SearchRequest

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(&req); err != nil {
		h.record(r.Context(), "invalid", start)
		response.RespondBadRequest(w, "Invalid request body")

		return
	}

	if err := validation.ValidateStruct(req); err != nil {
		h.record(r.Context(), "invalid", start)
		validation.RespondValidationError(w, err)

		return
	}

	radius := req.RadiusMiles
	if radius == 0 {
		radius = defaultSearchRadiusMiles
	}

	limit := req.Limit
	if limit == 0 {
		limit = defaultSearchLimit
	}

	if limit > maxSearchLimit {
		limit = maxSearchLimit
	}

	result, err := h.service.Search(r.Context(), service.SearchParams{
		Query:       req.Query,
		Location:    models.Location{Lat: req.Latitude, Lng: req.Longitude},
		RadiusMiles: radius,
		MaxPrice:    req.MaxPrice,
		Cuisines:    req.Cuisines,
		Limit:       limit,
		UserID:      req.UserID,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrEmptyQuery):
			h.record(r.Context(), "invalid", start)
			response.RespondBadRequest(w, "query is required and must be non-empty")
		case errors.Is(err, service.ErrInvalidRadius):
			h.record(r.Context(), "invalid", start)
			response.RespondBadRequest(w, "radiusMiles must be positive")
		case errors.Is(err, service.ErrInvalidLimit):
			h.record(r.Context(), "invalid", start)
			response.RespondBadRequest(w, "limit must be positive")
		default:
			h.record(r.Context(), "error", start)
			response.RespondInternalServerError(w, "Search failed")
		}

		return
	}

	h.record(r.Context(), "ok", start)

	if h.metrics != nil {
		h.metrics.RecordResultsReturned(r.Context(), len(result.Restaurants))
	}

	response.RespondJSON(w, http.StatusOK, SearchResponse{
		QueryID:     result.QueryID,
		Restaurants: result.Restaurants,
		ParsedQuery: result.ParsedQuery,
		TotalCount:  result.TotalCount,
	})
}

func (h *SearchHandler) record(ctx context.Context, status string, start time.Time) {
	if h.metrics != nil {
		h.metrics.RecordSearch(ctx, status, time.Since(start))
	}
}
