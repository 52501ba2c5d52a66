package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/platewise/backend/internal/features"
)

// ParsedFeature is one desired feature from a parsed natural-language query.
type ParsedFeature struct {
	// Weight is the importance of this feature in [0,1].
	Weight float64 `json:"weight"`
	// Target is the desired feature value in [0,1].
	Target float64 `json:"target"`
	// Required marks a must-have; candidates matching below the required
	// threshold are penalized by the scoring engine.
	Required bool `json:"required,omitempty"`
}

// ParsedQuery is the structured form of a natural-language search.
type ParsedQuery struct {
	Features     map[features.Name]ParsedFeature `json:"features"`
	Intent       string                          `json:"intent,omitempty"`
	Confidence   float64                         `json:"confidence"`
	Cuisines     []string                        `json:"cuisines,omitempty"`
	MaxPrice     *int                            `json:"maxPrice,omitempty"`     //nolint:tagliatelle // parser contract
	OccasionType string                          `json:"occasionType,omitempty"` //nolint:tagliatelle // parser contract
}

// UserQuery is one logged search request with the results it returned.
type UserQuery struct {
	ID              uuid.UUID       `json:"id"`
	UserID          *uuid.UUID      `json:"user_id,omitempty"`
	QueryText       string          `json:"query_text"`
	ParsedQuery     *ParsedQuery    `json:"parsed_query,omitempty"`
	Latitude        float64         `json:"latitude"`
	Longitude       float64         `json:"longitude"`
	RadiusMiles     float64         `json:"radius_miles"`
	ResultsReturned []LoggedResult  `json:"results_returned,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}

// LoggedResult records one returned restaurant's placement for a logged query.
type LoggedResult struct {
	RestaurantID  uuid.UUID `json:"restaurant_id"`
	Name          string    `json:"name"`
	Score         float64   `json:"score"`
	Position      int       `json:"position"`
	DistanceMiles float64   `json:"distance_miles"`
}
