package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/platewise/backend/internal/features"
	"github.com/platewise/backend/internal/models"
)

// ExtractionsRepository handles data access for per-review feature
// extractions. One row per review: a re-extraction overwrites in place.
type ExtractionsRepository struct {
	db *pgxpool.Pool
}

// NewExtractionsRepository creates a new extractions repository.
func NewExtractionsRepository(db *pgxpool.Pool) *ExtractionsRepository {
	return &ExtractionsRepository{db: db}
}

// UpsertExtractionParams is one extraction result to persist.
type UpsertExtractionParams struct {
	ReviewID             uuid.UUID
	RestaurantID         uuid.UUID
	Features             map[features.Name]float64
	ExtractionConfidence *float64
	ModelUsed            string
	PromptVersion        string
	TokensUsed           int
	CostUSD              float64
}

// Upsert writes an extraction, replacing any earlier extraction of the same
// review. extracted_at is stamped on every write so re-extractions refresh
// the recency anchor.
func (r *ExtractionsRepository) Upsert(ctx context.Context, p UpsertExtractionParams) error {
	query := `
		INSERT INTO feature_extractions (
			review_id, restaurant_id, features, extraction_confidence,
			model_used, prompt_version, tokens_used, cost_usd, extracted_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
		ON CONFLICT (review_id) DO UPDATE SET
			features = EXCLUDED.features,
			extraction_confidence = EXCLUDED.extraction_confidence,
			model_used = EXCLUDED.model_used,
			prompt_version = EXCLUDED.prompt_version,
			tokens_used = EXCLUDED.tokens_used,
			cost_usd = EXCLUDED.cost_usd,
			extracted_at = NOW(),
			updated_at = NOW()
	`

	_, err := r.db.Exec(ctx, query,
		p.ReviewID, p.RestaurantID, p.Features, p.ExtractionConfidence,
		p.ModelUsed, p.PromptVersion, p.TokensUsed, p.CostUSD,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert feature extraction: %w", err)
	}

	return nil
}

// GetByRestaurant returns all of a restaurant's extractions joined with each
// source review's rating and publish time, the aggregation engine's input.
func (r *ExtractionsRepository) GetByRestaurant(ctx context.Context, restaurantID uuid.UUID) ([]models.FeatureExtraction, error) {
	query := `
		SELECT
			fe.id, fe.restaurant_id, fe.review_id, fe.features,
			fe.extraction_confidence, fe.model_used, fe.prompt_version,
			fe.tokens_used, fe.cost_usd, fe.extracted_at, fe.updated_at,
			rv.rating, rv.published_at
		FROM feature_extractions fe
		INNER JOIN reviews rv ON rv.id = fe.review_id
		WHERE fe.restaurant_id = $1
	`

	rows, err := r.db.Query(ctx, query, restaurantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list feature extractions: %w", err)
	}
	defer rows.Close()

	extractions := []models.FeatureExtraction{}

	for rows.Next() {
		var (
			extraction models.FeatureExtraction
			tokensUsed *int
			costUSD    *float64
		)

		err := rows.Scan(
			&extraction.ID, &extraction.RestaurantID, &extraction.ReviewID,
			&extraction.Features, &extraction.ExtractionConfidence,
			&extraction.ModelUsed, &extraction.PromptVersion,
			&tokensUsed, &costUSD,
			&extraction.ExtractedAt, &extraction.UpdatedAt,
			&extraction.ReviewRating, &extraction.ReviewPublishedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan feature extraction: %w", err)
		}

		if tokensUsed != nil {
			extraction.TokensUsed = *tokensUsed
		}

		if costUSD != nil {
			extraction.CostUSD = *costUSD
		}

		extractions = append(extractions, extraction)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating feature extractions: %w", err)
	}

	return extractions, nil
}

// CostSummary is the accumulated LLM spend for one restaurant's extractions.
type CostSummary struct {
	Tokens  int
	CostUSD float64
}

// GetCostSummary sums tokens and cost over a restaurant's extractions.
func (r *ExtractionsRepository) GetCostSummary(ctx context.Context, restaurantID uuid.UUID) (CostSummary, error) {
	var summary CostSummary

	err := r.db.QueryRow(ctx, `
		SELECT COALESCE(SUM(tokens_used), 0), COALESCE(SUM(cost_usd), 0)
		FROM feature_extractions
		WHERE restaurant_id = $1
	`, restaurantID).Scan(&summary.Tokens, &summary.CostUSD)
	if err != nil {
		return CostSummary{}, fmt.Errorf("failed to sum extraction costs: %w", err)
	}

	return summary, nil
}
