package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/platewise/backend/internal/features"
)

// Warning flags a data-quality condition on a scored restaurant. The set is
// closed so the scoring engine's penalty table stays exhaustive.
type Warning string

const (
	// WarningMissingFeatures means the restaurant has no aggregated feature
	// vector yet; the scoring engine floors its score to 0.
	WarningMissingFeatures Warning = "missing_features"
	// WarningLowConfidence means the vector's confidence is below 0.5.
	WarningLowConfidence Warning = "low_confidence"
	// WarningInsufficientReviews means fewer than 5 reviews were analyzed.
	WarningInsufficientReviews Warning = "insufficient_reviews"
	// WarningStaleFeatures means the vector is over 30 days old or undated.
	WarningStaleFeatures Warning = "stale_features"
	// WarningInvalidFeatureValue means a stored feature value fell outside
	// [0,1] and was excluded from scoring.
	WarningInvalidFeatureValue Warning = "invalid_feature_value"
)

// WarningSet is an ordered, deduplicated set of warnings. Order of first
// insertion is preserved so API output is deterministic.
type WarningSet struct {
	items []Warning
	seen  map[Warning]struct{}
}

// Add inserts w if not already present.
func (s *WarningSet) Add(w Warning) {
	if s.seen == nil {
		s.seen = make(map[Warning]struct{}, 4)
	}

	if _, ok := s.seen[w]; ok {
		return
	}

	s.seen[w] = struct{}{}
	s.items = append(s.items, w)
}

// Contains reports whether w is in the set.
func (s *WarningSet) Contains(w Warning) bool {
	_, ok := s.seen[w]

	return ok
}

// Slice returns the warnings in insertion order; never nil.
func (s *WarningSet) Slice() []Warning {
	out := make([]Warning, len(s.items))
	copy(out, s.items)

	return out
}

// FeatureMatch explains one query feature's contribution to a score.
type FeatureMatch struct {
	Target float64 `json:"target"`
	Actual float64 `json:"actual"`
	Match  float64 `json:"match"`
}

// DataQuality annotates how trustworthy a restaurant's feature data is.
type DataQuality struct {
	Confidence    *float64   `json:"confidence"`
	ReviewCount   int        `json:"reviewCount"`             //nolint:tagliatelle // API contract camelCase
	LastUpdatedAt *time.Time `json:"lastUpdatedAt,omitempty"` //nolint:tagliatelle // API contract camelCase
	Warnings      []Warning  `json:"warnings"`
}

// ScoredRestaurant is one ranked search result. It has no persistent
// identity; it is recomputed per request.
type ScoredRestaurant struct {
	ID             uuid.UUID                        `json:"id"`
	Name           string                           `json:"name"`
	Latitude       float64                          `json:"latitude"`
	Longitude      float64                          `json:"longitude"`
	PriceLevel     *int                             `json:"priceLevel,omitempty"`   //nolint:tagliatelle // API contract
	GoogleRating   *float64                         `json:"googleRating,omitempty"` //nolint:tagliatelle // API contract
	CuisineTags    []string                         `json:"cuisineTags"`            //nolint:tagliatelle // API contract
	PhotoURLs      []string                         `json:"photoUrls"`              //nolint:tagliatelle // API contract
	DistanceMiles  float64                          `json:"distanceMiles"`          //nolint:tagliatelle // API contract
	FeatureScore   float64                          `json:"featureScore"`           //nolint:tagliatelle // API contract
	MatchScore     float64                          `json:"matchScore"`             //nolint:tagliatelle // API contract
	FeatureMatches map[features.Name]FeatureMatch   `json:"featureMatches"`         //nolint:tagliatelle // API contract
	DataQuality    DataQuality                      `json:"dataQuality"`            //nolint:tagliatelle // API contract
	Explanation    string                           `json:"explanation"`
}
