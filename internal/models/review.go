package models

import (
	"time"

	"github.com/google/uuid"
)

// Review is one scraped review for a restaurant. SourceReviewID is the places
// API's identifier; re-scrapes upsert by it so a review is stored once.
type Review struct {
	ID             uuid.UUID  `json:"id"`
	RestaurantID   uuid.UUID  `json:"restaurant_id"`
	SourceReviewID *string    `json:"source_review_id,omitempty"`
	AuthorName     *string    `json:"author_name,omitempty"`
	Rating         *int       `json:"rating,omitempty"`
	Text           string     `json:"text"`
	PublishedAt    *time.Time `json:"published_at,omitempty"`
	Processed      bool       `json:"processed"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}
