package places

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := NewClient(ClientOptions{
		APIKey:  "test-key",
		BaseURL: server.URL,
	})
	client.pageDelay = time.Millisecond

	return client
}

func TestClient_SearchRestaurants_Paginates(t *testing.T) {
	pages := map[string]searchResponse{
		"": {
			Status:        "OK",
			Results:       []SearchResult{{PlaceID: "p1", Name: "First"}},
			NextPageToken: "token-2",
		},
		"token-2": {
			Status:  "OK",
			Results: []SearchResult{{PlaceID: "p2", Name: "Second"}},
		},
	}

	var requests int

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		requests++

		assert.Equal(t, "/nearbysearch/json", r.URL.Path)
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))
		assert.Equal(t, "restaurant", r.URL.Query().Get("type"))

		page := pages[r.URL.Query().Get("pagetoken")]
		require.NoError(t, json.NewEncoder(w).Encode(page))
	})

	results, err := client.SearchRestaurants(context.Background(), SearchParams{
		Latitude:  40.7549,
		Longitude: -73.984,
	})
	require.NoError(t, err)

	assert.Equal(t, 2, requests)
	require.Len(t, results, 2)
	assert.Equal(t, "p1", results[0].PlaceID)
	assert.Equal(t, "p2", results[1].PlaceID)
}

func TestClient_SearchRestaurants_RetriesStalePageToken(t *testing.T) {
	var tokenRequests int

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var resp searchResponse

		if r.URL.Query().Get("pagetoken") == "" {
			resp = searchResponse{
				Status:        "OK",
				Results:       []SearchResult{{PlaceID: "p1"}},
				NextPageToken: "fresh-token",
			}
		} else {
			tokenRequests++
			if tokenRequests == 1 {
				// First use of a fresh token: not active yet.
				resp = searchResponse{Status: "INVALID_REQUEST"}
			} else {
				resp = searchResponse{Status: "OK", Results: []SearchResult{{PlaceID: "p2"}}}
			}
		}

		require.NoError(t, json.NewEncoder(w).Encode(resp))
	})

	results, err := client.SearchRestaurants(context.Background(), SearchParams{})
	require.NoError(t, err)

	assert.Equal(t, 2, tokenRequests)
	assert.Len(t, results, 2)
}

func TestClient_SearchRestaurants_ZeroResults(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		require.NoError(t, json.NewEncoder(w).Encode(searchResponse{Status: "ZERO_RESULTS"}))
	})

	results, err := client.SearchRestaurants(context.Background(), SearchParams{})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestClient_SearchRestaurants_APIError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		require.NoError(t, json.NewEncoder(w).Encode(searchResponse{
			Status:       "REQUEST_DENIED",
			ErrorMessage: "The provided API key is invalid.",
		}))
	})

	_, err := client.SearchRestaurants(context.Background(), SearchParams{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "REQUEST_DENIED")
}

func TestClient_GetPlaceDetails(t *testing.T) {
	rating := 4.6

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/details/json", r.URL.Path)
		assert.Equal(t, "place-123", r.URL.Query().Get("place_id"))
		assert.Contains(t, r.URL.Query().Get("fields"), "reviews")

		require.NoError(t, json.NewEncoder(w).Encode(detailsResponse{
			Status: "OK",
			Result: PlaceDetails{
				PlaceID: "place-123",
				Name:    "Trattoria Ponte",
				Rating:  &rating,
				Reviews: []Review{{AuthorName: "Ana", Rating: 5, Text: "Lovely", Time: 1700000000}},
			},
		}))
	})

	details, err := client.GetPlaceDetails(context.Background(), "place-123")
	require.NoError(t, err)

	assert.Equal(t, "Trattoria Ponte", details.Name)
	require.Len(t, details.Reviews, 1)
	assert.Equal(t, "Ana", details.Reviews[0].AuthorName)
}

func TestClient_GetPlaceDetails_NotFound(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		require.NoError(t, json.NewEncoder(w).Encode(detailsResponse{Status: "NOT_FOUND"}))
	})

	_, err := client.GetPlaceDetails(context.Background(), "gone")
	assert.ErrorIs(t, err, ErrPlaceNotFound)
}

func TestClient_GetPlaceDetails_RateLimited(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := client.GetPlaceDetails(context.Background(), "busy")
	assert.ErrorIs(t, err, ErrRateLimited)
}

func TestExtractAddressParts(t *testing.T) {
	parts := ExtractAddressParts([]AddressComponent{
		{LongName: "350", Types: []string{"street_number"}},
		{LongName: "New York", Types: []string{"locality", "political"}},
		{LongName: "New York", ShortName: "NY", Types: []string{"administrative_area_level_1"}},
		{LongName: "10018", Types: []string{"postal_code"}},
	})

	assert.Equal(t, "New York", parts.City)
	assert.Equal(t, "NY", parts.State)
	assert.Equal(t, "10018", parts.ZipCode)
}

func TestMapCuisineTags(t *testing.T) {
	tests := []struct {
		name     string
		types    []string
		expected []string
	}{
		{
			name:     "specific cuisines",
			types:    []string{"italian_restaurant", "bar", "restaurant", "point_of_interest"},
			expected: []string{"Italian", "Bar"},
		},
		{
			name:     "generic fallback",
			types:    []string{"restaurant", "meal_takeaway", "point_of_interest"},
			expected: []string{"Restaurant", "Takeout"},
		},
		{
			name:     "nothing recognized",
			types:    []string{"point_of_interest"},
			expected: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, MapCuisineTags(tt.types))
		})
	}
}
