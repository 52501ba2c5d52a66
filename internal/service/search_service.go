package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/platewise/backend/internal/models"
	"github.com/platewise/backend/internal/observability"
	"github.com/platewise/backend/pkg/cache"
)

const (
	parsedQueryCacheName = "parsed_query"

	// queryLogTimeout bounds the fire-and-forget search log write.
	queryLogTimeout = 5 * time.Second
)

// Sentinel errors for search (used by handlers for status mapping).
var (
	ErrEmptyQuery    = errors.New("query is required and must be non-empty")
	ErrInvalidRadius = errors.New("radius_miles must be positive")
	ErrInvalidLimit  = errors.New("limit must be positive")
)

// RestaurantsRepositoryForSearch provides the candidate read needed by search.
type RestaurantsRepositoryForSearch interface {
	FindActiveWithFeatures(ctx context.Context, maxPrice *int) ([]models.Candidate, error)
}

// UserQueriesRepositoryForSearch records executed searches.
type UserQueriesRepositoryForSearch interface {
	Create(ctx context.Context, query *models.UserQuery) error
}

// SearchParams is one search request after transport-level decoding.
type SearchParams struct {
	Query       string
	Location    models.Location
	RadiusMiles float64
	MaxPrice    *int
	Cuisines    []string
	Limit       int
	UserID      *uuid.UUID
}

// SearchResult is the outcome of one search.
type SearchResult struct {
	QueryID     uuid.UUID
	Restaurants []models.ScoredRestaurant
	ParsedQuery models.ParsedQuery
	TotalCount  int
}

// SearchService orchestrates a search: parse the query, load candidates,
// filter, score, truncate, and log the request.
type SearchService struct {
	parser       QueryParser
	restaurants  RestaurantsRepositoryForSearch
	userQueries  UserQueriesRepositoryForSearch
	scoring      *ScoringService
	queryCache   *cache.LoaderCache[string, models.ParsedQuery]
	cacheMetrics observability.CacheMetrics
	logger       *slog.Logger
}

// SearchServiceParams configures SearchService. QueryCache and CacheMetrics
// may be nil (no caching); UserQueries may be nil (no search log).
type SearchServiceParams struct {
	Parser       QueryParser
	Restaurants  RestaurantsRepositoryForSearch
	UserQueries  UserQueriesRepositoryForSearch
	Scoring      *ScoringService
	QueryCache   *cache.LoaderCache[string, models.ParsedQuery]
	CacheMetrics observability.CacheMetrics
	Logger       *slog.Logger
}

// NewSearchService creates a SearchService.
func NewSearchService(p SearchServiceParams) *SearchService {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	scoring := p.Scoring
	if scoring == nil {
		scoring = NewScoringService()
	}

	return &SearchService{
		parser:       p.Parser,
		restaurants:  p.Restaurants,
		userQueries:  p.UserQueries,
		scoring:      scoring,
		queryCache:   p.QueryCache,
		cacheMetrics: p.CacheMetrics,
		logger:       logger,
	}
}

// Search runs the full pipeline for one request. The search log write happens
// asynchronously; its failure never fails the search.
func (s *SearchService) Search(ctx context.Context, params SearchParams) (SearchResult, error) {
	out := SearchResult{}

	params.Query = strings.TrimSpace(params.Query)
	if params.Query == "" {
		return out, ErrEmptyQuery
	}

	if params.RadiusMiles <= 0 {
		return out, ErrInvalidRadius
	}

	if params.Limit <= 0 {
		return out, ErrInvalidLimit
	}

	parsed, err := s.parseQueryCached(ctx, params.Query)
	if err != nil {
		s.logger.Error("search: query parse failed", "error", err)

		return out, fmt.Errorf("parse query: %w", err)
	}

	maxPrice := params.MaxPrice
	if maxPrice == nil {
		maxPrice = parsed.MaxPrice
	}

	candidates, err := s.restaurants.FindActiveWithFeatures(ctx, maxPrice)
	if err != nil {
		s.logger.Error("search: load candidates failed", "error", err)

		return out, fmt.Errorf("load candidates: %w", err)
	}

	cuisines := params.Cuisines
	if len(cuisines) == 0 {
		cuisines = parsed.Cuisines
	}

	candidates = filterByCuisines(candidates, cuisines)

	scored := s.scoring.ScoreRestaurants(candidates, parsed, params.Location, params.RadiusMiles)

	top := scored
	if len(top) > params.Limit {
		top = top[:params.Limit]
	}

	out.QueryID = uuid.New()
	out.Restaurants = top
	out.ParsedQuery = parsed
	out.TotalCount = len(scored)

	s.logQueryAsync(ctx, out.QueryID, params, parsed, top)

	return out, nil
}

func (s *SearchService) parseQueryCached(ctx context.Context, query string) (models.ParsedQuery, error) {
	if s.queryCache == nil {
		return s.parser.Parse(ctx, query)
	}

	parsed, hit, err := s.queryCache.GetWithStats(ctx, query, func(ctx context.Context, q string) (models.ParsedQuery, error) {
		return s.parser.Parse(ctx, q)
	})
	if err != nil {
		return models.ParsedQuery{}, err
	}

	if s.cacheMetrics != nil {
		if hit {
			s.cacheMetrics.RecordHit(ctx, parsedQueryCacheName)
		} else {
			s.cacheMetrics.RecordMiss(ctx, parsedQueryCacheName)
		}
	}

	return parsed, nil
}

// filterByCuisines keeps candidates sharing at least one cuisine tag with the
// requested list, case-insensitively. An empty request keeps everything; a
// candidate without tags never matches a non-empty request.
func filterByCuisines(candidates []models.Candidate, cuisines []string) []models.Candidate {
	if len(cuisines) == 0 {
		return candidates
	}

	desired := make(map[string]struct{}, len(cuisines))
	for _, c := range cuisines {
		desired[strings.ToLower(c)] = struct{}{}
	}

	filtered := make([]models.Candidate, 0, len(candidates))

	for _, candidate := range candidates {
		for _, tag := range candidate.Restaurant.CuisineTags {
			if _, ok := desired[strings.ToLower(tag)]; ok {
				filtered = append(filtered, candidate)

				break
			}
		}
	}

	return filtered
}

// logQueryAsync writes the search log in the background, detached from the
// request's cancellation. No-op when the log repository is absent or the
// request is anonymous.
func (s *SearchService) logQueryAsync(
	ctx context.Context,
	queryID uuid.UUID,
	params SearchParams,
	parsed models.ParsedQuery,
	results []models.ScoredRestaurant,
) {
	if s.userQueries == nil || params.UserID == nil {
		return
	}

	logged := make([]models.LoggedResult, len(results))
	for i, r := range results {
		logged[i] = models.LoggedResult{
			RestaurantID:  r.ID,
			Name:          r.Name,
			Score:         r.MatchScore,
			Position:      i + 1,
			DistanceMiles: r.DistanceMiles,
		}
	}

	entry := &models.UserQuery{
		ID:              queryID,
		UserID:          params.UserID,
		QueryText:       params.Query,
		ParsedQuery:     &parsed,
		Latitude:        params.Location.Lat,
		Longitude:       params.Location.Lng,
		RadiusMiles:     params.RadiusMiles,
		ResultsReturned: logged,
	}

	go func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, queryLogTimeout)
		defer cancel()

		if err := s.userQueries.Create(ctx, entry); err != nil {
			s.logger.Warn("search: failed to log query",
				"queryId", queryID.String(), "error", err)
		}
	}(context.WithoutCancel(ctx))
}
