// Package models defines the domain types shared by repositories, services,
// workers, and the API layer.
package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/platewise/backend/internal/features"
)

// Restaurant is one place record, seeded from the places API.
type Restaurant struct {
	ID                uuid.UUID  `json:"id"`
	GooglePlaceID     string     `json:"google_place_id"`
	Name              string     `json:"name"`
	Latitude          float64    `json:"latitude"`
	Longitude         float64    `json:"longitude"`
	Address           *string    `json:"address,omitempty"`
	City              *string    `json:"city,omitempty"`
	State             *string    `json:"state,omitempty"`
	ZipCode           *string    `json:"zip_code,omitempty"`
	PriceLevel        *int       `json:"price_level,omitempty"`
	GoogleRating      *float64   `json:"google_rating,omitempty"`
	GoogleReviewCount *int       `json:"google_review_count,omitempty"`
	CuisineTags       []string   `json:"cuisine_tags,omitempty"`
	Phone             *string    `json:"phone,omitempty"`
	Website           *string    `json:"website,omitempty"`
	PhotoURLs         []string   `json:"photo_urls,omitempty"`
	IsActive          bool       `json:"is_active"`
	LastScrapedAt     *time.Time `json:"last_scraped_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// RestaurantFeatures is the persisted aggregated feature vector for one
// restaurant: exactly one row per restaurant, fully replaced on each
// aggregation run. A feature absent from Values was never assessed.
type RestaurantFeatures struct {
	RestaurantID        uuid.UUID                    `json:"restaurant_id"`
	Values              map[features.Name]float64    `json:"values"`
	ConfidenceScore     *float64                     `json:"confidence_score,omitempty"`
	ReviewCountAnalyzed int                          `json:"review_count_analyzed"`
	ModelVersion        *string                      `json:"model_version,omitempty"`
	UpdatedAt           *time.Time                   `json:"updated_at,omitempty"`
}

// Candidate pairs a restaurant with its aggregated features for scoring.
// Features is nil for restaurants that have not completed the pipeline yet;
// that is a normal state, not an error.
type Candidate struct {
	Restaurant Restaurant
	Features   *RestaurantFeatures
}

// AggregatedFeatures is the output of one aggregation run, before it is
// persisted as RestaurantFeatures. ConfidenceScore is nil only when the
// input had no extractions at all; with extractions but no usable confidence
// signal the aggregation engine returns its low-confidence fallback instead.
type AggregatedFeatures struct {
	Values              map[features.Name]float64
	ConfidenceScore     *float64
	ReviewCountAnalyzed int
	ModelVersion        *string
}
