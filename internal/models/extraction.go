package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/platewise/backend/internal/features"
)

// FeatureExtraction is one review's LLM-derived feature scores. Owned by the
// (restaurant, review) pair; a re-extraction overwrites by review id.
type FeatureExtraction struct {
	ID           uuid.UUID `json:"id"`
	RestaurantID uuid.UUID `json:"restaurant_id"`
	ReviewID     uuid.UUID `json:"review_id"`

	// Features holds scores in [0,1]; a feature absent from the map was not
	// assessed by the model for this review.
	Features map[features.Name]float64 `json:"features"`

	// ExtractionConfidence is the model's self-reported confidence in [0,1].
	// Nil means the model returned none; consumers default it to 0.6.
	ExtractionConfidence *float64 `json:"extraction_confidence,omitempty"`

	// ReviewRating is the source review's star rating (1-5) when known.
	ReviewRating *int `json:"review_rating,omitempty"`

	ModelUsed     string  `json:"model_used"`
	PromptVersion string  `json:"prompt_version"`
	TokensUsed    int     `json:"tokens_used"`
	CostUSD       float64 `json:"cost_usd"`

	// ExtractedAt is the recency anchor for aggregation weighting, falling
	// back to UpdatedAt and then ReviewPublishedAt when unset.
	ExtractedAt       *time.Time `json:"extracted_at,omitempty"`
	UpdatedAt         *time.Time `json:"updated_at,omitempty"`
	ReviewPublishedAt *time.Time `json:"review_published_at,omitempty"`
}

// EffectiveTimestamp returns the timestamp used for recency weighting:
// ExtractedAt, then UpdatedAt, then the review's published time. ok is false
// when none is set.
func (e *FeatureExtraction) EffectiveTimestamp() (time.Time, bool) {
	switch {
	case e.ExtractedAt != nil:
		return *e.ExtractedAt, true
	case e.UpdatedAt != nil:
		return *e.UpdatedAt, true
	case e.ReviewPublishedAt != nil:
		return *e.ReviewPublishedAt, true
	default:
		return time.Time{}, false
	}
}
