// Package places provides a Google Places API client for restaurant
// discovery and review scraping.
package places

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/time/rate"
)

const (
	defaultBaseURL       = "https://maps.googleapis.com/maps/api/place"
	defaultTimeout       = 10 * time.Second
	defaultRetryMax      = 3
	defaultSearchRadiusM = 2500
	defaultMaxResults    = 60
	defaultPhotoMaxWidth = 400
	maxSearchPages       = 3
	pageTokenWarmupDelay = 2 * time.Second
	statusOK             = "OK"
	statusZeroResults    = "ZERO_RESULTS"
	statusInvalidRequest = "INVALID_REQUEST"
	statusNotFound       = "NOT_FOUND"
)

var (
	// ErrPlaceNotFound is returned when the API reports an unknown place id.
	ErrPlaceNotFound = errors.New("places: place not found")
	// ErrRateLimited is returned on HTTP 429 after retries are exhausted.
	ErrRateLimited = errors.New("places: rate limit exceeded")
)

// Client calls the Google Places web service. All requests pass through the
// shared rate limiter; transient failures are retried by the HTTP client.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *retryablehttp.Client
	limiter    *rate.Limiter
	logger     *slog.Logger

	// pageDelay is how long to wait before using a fresh next_page_token,
	// which the API activates asynchronously.
	pageDelay time.Duration
}

// ClientOptions configures the places Client.
type ClientOptions struct {
	// APIKey is the Google Places API key (required).
	APIKey string
	// BaseURL overrides the API endpoint (default: the public endpoint).
	BaseURL string
	// RetryMax is the maximum number of retries (default: 3).
	RetryMax int
	// Timeout is the HTTP client timeout (default: 10 seconds).
	Timeout time.Duration
	// Limiter throttles outbound requests. Nil means no throttling.
	Limiter *rate.Limiter
	// Logger may be nil.
	Logger *slog.Logger
}

// NewClient creates a places Client.
func NewClient(opts ClientOptions) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = defaultBaseURL
	}

	if opts.Timeout == 0 {
		opts.Timeout = defaultTimeout
	}

	if opts.RetryMax == 0 {
		opts.RetryMax = defaultRetryMax
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = opts.RetryMax
	retryClient.HTTPClient.Timeout = opts.Timeout
	retryClient.Logger = nil // disable retryablehttp's default logger

	// The default policy retries 429s internally, which would hide them from
	// callers; surface them instead so getJSON can map them to ErrRateLimited.
	retryClient.CheckRetry = func(ctx context.Context, resp *http.Response, err error) (bool, error) {
		if err == nil && resp != nil && resp.StatusCode == http.StatusTooManyRequests {
			return false, nil
		}

		return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
	}

	return &Client{
		baseURL:    opts.BaseURL,
		apiKey:     opts.APIKey,
		httpClient: retryClient,
		limiter:    opts.Limiter,
		logger:     logger,
		pageDelay:  pageTokenWarmupDelay,
	}
}

type searchResponse struct {
	Status        string         `json:"status"`
	ErrorMessage  string         `json:"error_message"`
	Results       []SearchResult `json:"results"`
	NextPageToken string         `json:"next_page_token"`
}

type detailsResponse struct {
	Status       string       `json:"status"`
	ErrorMessage string       `json:"error_message"`
	Result       PlaceDetails `json:"result"`
}

// SearchParams configures a nearby restaurant search.
type SearchParams struct {
	Latitude     float64
	Longitude    float64
	RadiusMeters int
	Keyword      string
	MaxResults   int
}

// SearchRestaurants pages through nearby search for restaurants around the
// given point, up to three pages. A fresh page token needs a short warm-up
// before the API accepts it; an INVALID_REQUEST on a token request is
// retried once after the same delay.
func (c *Client) SearchRestaurants(ctx context.Context, params SearchParams) ([]SearchResult, error) {
	if params.RadiusMeters <= 0 {
		params.RadiusMeters = defaultSearchRadiusM
	}

	if params.MaxResults <= 0 {
		params.MaxResults = defaultMaxResults
	}

	var (
		collected []SearchResult
		pageToken string
	)

	for page := 0; page < maxSearchPages && len(collected) < params.MaxResults; page++ {
		if pageToken != "" {
			if err := sleepCtx(ctx, c.pageDelay); err != nil {
				return nil, err
			}
		}

		query := url.Values{"type": []string{"restaurant"}}
		if params.Keyword != "" {
			query.Set("keyword", params.Keyword)
		}

		if pageToken != "" {
			query.Set("pagetoken", pageToken)
		} else {
			query.Set("location", fmt.Sprintf("%f,%f", params.Latitude, params.Longitude))
			query.Set("radius", strconv.Itoa(params.RadiusMeters))
		}

		var resp searchResponse
		if err := c.getJSON(ctx, "/nearbysearch/json", query, &resp); err != nil {
			return nil, err
		}

		if resp.Status == statusZeroResults {
			break
		}

		if resp.Status == statusInvalidRequest && pageToken != "" {
			// Token not active yet; wait it out and retry the same page.
			c.logger.Debug("places: next page token not ready, retrying")

			if err := sleepCtx(ctx, c.pageDelay); err != nil {
				return nil, err
			}

			page--

			continue
		}

		if resp.Status != statusOK {
			return nil, apiStatusError(resp.Status, resp.ErrorMessage)
		}

		collected = append(collected, resp.Results...)

		if resp.NextPageToken == "" {
			break
		}

		pageToken = resp.NextPageToken
	}

	if len(collected) > params.MaxResults {
		collected = collected[:params.MaxResults]
	}

	return collected, nil
}

var detailsFields = "place_id,name,formatted_address,formatted_phone_number,website," +
	"geometry,rating,user_ratings_total,price_level,types,address_components,photos,reviews"

// GetPlaceDetails fetches a place's full details including up to five
// reviews. Returns ErrPlaceNotFound for unknown ids.
func (c *Client) GetPlaceDetails(ctx context.Context, placeID string) (*PlaceDetails, error) {
	query := url.Values{
		"place_id": []string{placeID},
		"fields":   []string{detailsFields},
	}

	var resp detailsResponse
	if err := c.getJSON(ctx, "/details/json", query, &resp); err != nil {
		return nil, err
	}

	if resp.Status == statusNotFound {
		return nil, fmt.Errorf("%w: %s", ErrPlaceNotFound, placeID)
	}

	if resp.Status != statusOK {
		return nil, apiStatusError(resp.Status, resp.ErrorMessage)
	}

	return &resp.Result, nil
}

// PhotoURL builds the public photo URL for a photo reference.
func (c *Client) PhotoURL(photoReference string, maxWidth int) string {
	if maxWidth <= 0 {
		maxWidth = defaultPhotoMaxWidth
	}

	query := url.Values{
		"maxwidth":        []string{strconv.Itoa(maxWidth)},
		"photo_reference": []string{photoReference},
		"key":             []string{c.apiKey},
	}

	return c.baseURL + "/photo?" + query.Encode()
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("places rate limiter: %w", err)
		}
	}

	query.Set("key", c.apiKey)
	reqURL := c.baseURL + path + "?" + query.Encode()

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("places request failed: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			c.logger.Warn("places: failed to close response body", "error", closeErr)
		}
	}()

	if resp.StatusCode == http.StatusTooManyRequests {
		return ErrRateLimited
	}

	if resp.StatusCode != http.StatusOK {
		body, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			c.logger.Warn("places: failed to read error response body", "error", readErr)
		}

		return fmt.Errorf("places request failed with status %d: %s", resp.StatusCode, string(body))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to unmarshal places response: %w", err)
	}

	return nil
}

func apiStatusError(status, message string) error {
	if message == "" {
		message = "unknown error"
	}

	return fmt.Errorf("places API error: %s - %s", status, message)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
