package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/platewise/backend/internal/models"
)

const reviewColumns = `
	id, restaurant_id, source_review_id, author_name, rating, text,
	published_at, is_processed, created_at, updated_at`

// ReviewsRepository handles data access for scraped reviews.
type ReviewsRepository struct {
	db *pgxpool.Pool
}

// NewReviewsRepository creates a new reviews repository.
func NewReviewsRepository(db *pgxpool.Pool) *ReviewsRepository {
	return &ReviewsRepository{db: db}
}

// CreateReviewParams is one scraped review to persist.
type CreateReviewParams struct {
	RestaurantID   uuid.UUID
	SourceReviewID string
	AuthorName     *string
	Rating         *int
	Text           string
	PublishedAt    *time.Time
}

// CreateBatch inserts reviews, skipping any whose source review id is
// already stored. Returns the number actually inserted.
func (r *ReviewsRepository) CreateBatch(ctx context.Context, reviews []CreateReviewParams) (int, error) {
	if len(reviews) == 0 {
		return 0, nil
	}

	query := `
		INSERT INTO reviews (
			restaurant_id, source_review_id, author_name, rating, text, published_at
		)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (source_review_id) DO NOTHING
	`

	inserted := 0

	for _, review := range reviews {
		result, err := r.db.Exec(ctx, query,
			review.RestaurantID, review.SourceReviewID, review.AuthorName,
			review.Rating, review.Text, review.PublishedAt,
		)
		if err != nil {
			return inserted, fmt.Errorf("failed to create review: %w", err)
		}

		inserted += int(result.RowsAffected())
	}

	return inserted, nil
}

// FindUnprocessedByRestaurant returns up to limit reviews still awaiting
// feature extraction, newest first.
func (r *ReviewsRepository) FindUnprocessedByRestaurant(ctx context.Context, restaurantID uuid.UUID, limit int) ([]models.Review, error) {
	query := `
		SELECT ` + reviewColumns + `
		FROM reviews
		WHERE restaurant_id = $1 AND is_processed = FALSE
		ORDER BY published_at DESC NULLS LAST
		LIMIT $2
	`

	rows, err := r.db.Query(ctx, query, restaurantID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list unprocessed reviews: %w", err)
	}
	defer rows.Close()

	reviews := []models.Review{}

	for rows.Next() {
		var review models.Review

		err := rows.Scan(
			&review.ID, &review.RestaurantID, &review.SourceReviewID,
			&review.AuthorName, &review.Rating, &review.Text,
			&review.PublishedAt, &review.Processed,
			&review.CreatedAt, &review.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan review: %w", err)
		}

		reviews = append(reviews, review)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating reviews: %w", err)
	}

	return reviews, nil
}

// MarkProcessed flags the given reviews as extracted.
func (r *ReviewsRepository) MarkProcessed(ctx context.Context, reviewIDs []uuid.UUID) error {
	if len(reviewIDs) == 0 {
		return nil
	}

	query := `
		UPDATE reviews
		SET is_processed = TRUE, processed_at = NOW(), updated_at = NOW()
		WHERE id = ANY($1)
	`

	if _, err := r.db.Exec(ctx, query, reviewIDs); err != nil {
		return fmt.Errorf("failed to mark reviews processed: %w", err)
	}

	return nil
}

// CountUnprocessed returns how many of a restaurant's reviews still await
// extraction.
func (r *ReviewsRepository) CountUnprocessed(ctx context.Context, restaurantID uuid.UUID) (int, error) {
	var count int

	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM reviews WHERE restaurant_id = $1 AND is_processed = FALSE`,
		restaurantID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count unprocessed reviews: %w", err)
	}

	return count, nil
}
