package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platewise/backend/internal/features"
	"github.com/platewise/backend/internal/models"
	"github.com/platewise/backend/pkg/cache"
)

type mockRestaurantsRepo struct {
	findActiveFunc func(ctx context.Context, maxPrice *int) ([]models.Candidate, error)
}

func (m *mockRestaurantsRepo) FindActiveWithFeatures(ctx context.Context, maxPrice *int) ([]models.Candidate, error) {
	return m.findActiveFunc(ctx, maxPrice)
}

type mockUserQueriesRepo struct {
	mu      sync.Mutex
	created []*models.UserQuery
	done    chan struct{}
}

func newMockUserQueriesRepo() *mockUserQueriesRepo {
	return &mockUserQueriesRepo{done: make(chan struct{}, 1)}
}

func (m *mockUserQueriesRepo) Create(_ context.Context, query *models.UserQuery) error {
	m.mu.Lock()
	m.created = append(m.created, query)
	m.mu.Unlock()

	m.done <- struct{}{}

	return nil
}

func (m *mockUserQueriesRepo) waitForCreate(t *testing.T) *models.UserQuery {
	t.Helper()

	select {
	case <-m.done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for query log write")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	require.Len(t, m.created, 1)

	return m.created[0]
}

type countingParser struct {
	mu    sync.Mutex
	calls int
	inner QueryParser
}

func (p *countingParser) Parse(ctx context.Context, queryText string) (models.ParsedQuery, error) {
	p.mu.Lock()
	p.calls++
	p.mu.Unlock()

	return p.inner.Parse(ctx, queryText)
}

func searchCandidates(now time.Time) []models.Candidate {
	cozyPlace := nearbyRestaurant("Hearth")
	cozyPlace.CuisineTags = []string{"Italian"}

	loudPlace := nearbyRestaurant("Stadium Grill")
	loudPlace.CuisineTags = []string{"BBQ"}
	loudPlace.PriceLevel = intPtr(3)

	return []models.Candidate{
		{
			Restaurant: cozyPlace,
			Features: freshFeatures(now, map[features.Name]float64{
				features.Romantic:     0.9,
				features.GoodForDates: 0.85,
			}),
		},
		{
			Restaurant: loudPlace,
			Features: freshFeatures(now, map[features.Name]float64{
				features.Romantic:     0.2,
				features.GoodForDates: 0.3,
			}),
		},
	}
}

func newTestSearchService(repo RestaurantsRepositoryForSearch, queries UserQueriesRepositoryForSearch) *SearchService {
	return NewSearchService(SearchServiceParams{
		Parser:      NewRuleQueryParser(),
		Restaurants: repo,
		UserQueries: queries,
		Scoring:     fixedScoringService(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)),
	})
}

func TestSearchService_Search(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	repo := &mockRestaurantsRepo{
		findActiveFunc: func(_ context.Context, maxPrice *int) ([]models.Candidate, error) {
			assert.Nil(t, maxPrice)

			return searchCandidates(now), nil
		},
	}

	svc := newTestSearchService(repo, nil)

	result, err := svc.Search(context.Background(), SearchParams{
		Query:       "romantic dinner",
		Location:    testUserLocation,
		RadiusMiles: 5,
		Limit:       10,
	})
	require.NoError(t, err)

	require.Len(t, result.Restaurants, 2)
	assert.Equal(t, "Hearth", result.Restaurants[0].Name)
	assert.Equal(t, 2, result.TotalCount)
	assert.NotEqual(t, uuid.Nil, result.QueryID)
	assert.Contains(t, result.ParsedQuery.Features, features.Romantic)
}

func TestSearchService_Search_Validation(t *testing.T) {
	svc := newTestSearchService(&mockRestaurantsRepo{
		findActiveFunc: func(_ context.Context, _ *int) ([]models.Candidate, error) {
			return nil, nil
		},
	}, nil)

	tests := []struct {
		name     string
		params   SearchParams
		expected error
	}{
		{
			name:     "blank query",
			params:   SearchParams{Query: "   ", RadiusMiles: 5, Limit: 10},
			expected: ErrEmptyQuery,
		},
		{
			name:     "zero radius",
			params:   SearchParams{Query: "pizza", RadiusMiles: 0, Limit: 10},
			expected: ErrInvalidRadius,
		},
		{
			name:     "zero limit",
			params:   SearchParams{Query: "pizza", RadiusMiles: 5, Limit: 0},
			expected: ErrInvalidLimit,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Search(context.Background(), tt.params)
			assert.ErrorIs(t, err, tt.expected)
		})
	}
}

func TestSearchService_Search_CuisineFilterFromQuery(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	repo := &mockRestaurantsRepo{
		findActiveFunc: func(_ context.Context, _ *int) ([]models.Candidate, error) {
			return searchCandidates(now), nil
		},
	}

	svc := newTestSearchService(repo, nil)

	// "italian" in the query narrows candidates via the parsed cuisines.
	result, err := svc.Search(context.Background(), SearchParams{
		Query:       "romantic italian dinner",
		Location:    testUserLocation,
		RadiusMiles: 5,
		Limit:       10,
	})
	require.NoError(t, err)

	require.Len(t, result.Restaurants, 1)
	assert.Equal(t, "Hearth", result.Restaurants[0].Name)
}

func TestSearchService_Search_ExplicitCuisinesOverrideParsed(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	repo := &mockRestaurantsRepo{
		findActiveFunc: func(_ context.Context, _ *int) ([]models.Candidate, error) {
			return searchCandidates(now), nil
		},
	}

	svc := newTestSearchService(repo, nil)

	result, err := svc.Search(context.Background(), SearchParams{
		Query:       "romantic italian dinner",
		Location:    testUserLocation,
		RadiusMiles: 5,
		Cuisines:    []string{"bbq"},
		Limit:       10,
	})
	require.NoError(t, err)

	require.Len(t, result.Restaurants, 1)
	assert.Equal(t, "Stadium Grill", result.Restaurants[0].Name)
}

func TestSearchService_Search_ParsedMaxPricePassedToRepository(t *testing.T) {
	var capturedMaxPrice *int

	repo := &mockRestaurantsRepo{
		findActiveFunc: func(_ context.Context, maxPrice *int) ([]models.Candidate, error) {
			capturedMaxPrice = maxPrice

			return nil, nil
		},
	}

	svc := newTestSearchService(repo, nil)

	_, err := svc.Search(context.Background(), SearchParams{
		Query:       "cheap pizza",
		Location:    testUserLocation,
		RadiusMiles: 5,
		Limit:       10,
	})
	require.NoError(t, err)

	require.NotNil(t, capturedMaxPrice)
	assert.Equal(t, 1, *capturedMaxPrice)
}

func TestSearchService_Search_LimitTruncatesButCountsAll(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	repo := &mockRestaurantsRepo{
		findActiveFunc: func(_ context.Context, _ *int) ([]models.Candidate, error) {
			return searchCandidates(now), nil
		},
	}

	svc := newTestSearchService(repo, nil)

	result, err := svc.Search(context.Background(), SearchParams{
		Query:       "romantic dinner",
		Location:    testUserLocation,
		RadiusMiles: 5,
		Limit:       1,
	})
	require.NoError(t, err)

	assert.Len(t, result.Restaurants, 1)
	assert.Equal(t, 2, result.TotalCount)
}

func TestSearchService_Search_RepositoryErrorPropagates(t *testing.T) {
	repo := &mockRestaurantsRepo{
		findActiveFunc: func(_ context.Context, _ *int) ([]models.Candidate, error) {
			return nil, errors.New("connection refused")
		},
	}

	svc := newTestSearchService(repo, nil)

	_, err := svc.Search(context.Background(), SearchParams{
		Query:       "pizza",
		Location:    testUserLocation,
		RadiusMiles: 5,
		Limit:       10,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load candidates")
}

func TestSearchService_Search_LogsQueryForKnownUser(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	repo := &mockRestaurantsRepo{
		findActiveFunc: func(_ context.Context, _ *int) ([]models.Candidate, error) {
			return searchCandidates(now), nil
		},
	}

	queries := newMockUserQueriesRepo()
	svc := newTestSearchService(repo, queries)

	userID := uuid.New()

	result, err := svc.Search(context.Background(), SearchParams{
		Query:       "romantic dinner",
		Location:    testUserLocation,
		RadiusMiles: 5,
		Limit:       10,
		UserID:      &userID,
	})
	require.NoError(t, err)

	logged := queries.waitForCreate(t)

	assert.Equal(t, result.QueryID, logged.ID)
	assert.Equal(t, "romantic dinner", logged.QueryText)
	require.Len(t, logged.ResultsReturned, 2)
	assert.Equal(t, 1, logged.ResultsReturned[0].Position)
	assert.Equal(t, "Hearth", logged.ResultsReturned[0].Name)
}

func TestSearchService_Search_CachesParsedQueries(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	repo := &mockRestaurantsRepo{
		findActiveFunc: func(_ context.Context, _ *int) ([]models.Candidate, error) {
			return searchCandidates(now), nil
		},
	}

	parser := &countingParser{inner: NewRuleQueryParser()}

	queryCache, err := cache.NewLoaderCache[string, models.ParsedQuery](16, func(k string) string { return k })
	require.NoError(t, err)

	svc := NewSearchService(SearchServiceParams{
		Parser:      parser,
		Restaurants: repo,
		Scoring:     fixedScoringService(now),
		QueryCache:  queryCache,
	})

	params := SearchParams{
		Query:       "romantic dinner",
		Location:    testUserLocation,
		RadiusMiles: 5,
		Limit:       10,
	}

	_, err = svc.Search(context.Background(), params)
	require.NoError(t, err)
	_, err = svc.Search(context.Background(), params)
	require.NoError(t, err)

	assert.Equal(t, 1, parser.calls)
}
