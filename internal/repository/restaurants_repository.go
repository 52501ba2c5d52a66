// Package repository contains the pgx-backed data access layer.
package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/platewise/backend/internal/apperrors"
	"github.com/platewise/backend/internal/features"
	"github.com/platewise/backend/internal/models"
)

const restaurantColumns = `
	r.id, r.google_place_id, r.name, r.latitude, r.longitude,
	r.address, r.city, r.state, r.zip_code, r.price_level,
	r.google_rating, r.google_review_count, r.cuisine_tags,
	r.phone, r.website, r.photo_urls, r.is_active,
	r.last_scraped_at, r.created_at, r.updated_at`

// featureColumnList is the restaurant_features feature columns in catalog
// order, used by every select and the full-replace upsert.
var featureColumnList = func() string {
	cols := make([]string, len(features.All))
	for i, name := range features.All {
		cols[i] = features.Column(name)
	}

	return strings.Join(cols, ", ")
}()

// RestaurantsRepository handles data access for restaurants and their
// aggregated feature vectors.
type RestaurantsRepository struct {
	db *pgxpool.Pool
}

// NewRestaurantsRepository creates a new restaurants repository.
func NewRestaurantsRepository(db *pgxpool.Pool) *RestaurantsRepository {
	return &RestaurantsRepository{db: db}
}

// UpsertRestaurantParams is the metadata written on ingestion. Keyed by
// GooglePlaceID: a re-ingest refreshes the metadata in place.
type UpsertRestaurantParams struct {
	GooglePlaceID     string
	Name              string
	Latitude          float64
	Longitude         float64
	Address           *string
	City              *string
	State             *string
	ZipCode           *string
	PriceLevel        *int
	GoogleRating      *float64
	GoogleReviewCount *int
	CuisineTags       []string
	Phone             *string
	Website           *string
	PhotoURLs         []string
}

// Upsert inserts or refreshes a restaurant by its Google place id.
func (r *RestaurantsRepository) Upsert(ctx context.Context, p UpsertRestaurantParams) (*models.Restaurant, error) {
	query := `
		INSERT INTO restaurants (
			google_place_id, name, latitude, longitude, address, city, state,
			zip_code, price_level, google_rating, google_review_count,
			cuisine_tags, phone, website, photo_urls
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (google_place_id) DO UPDATE SET
			name = EXCLUDED.name,
			latitude = EXCLUDED.latitude,
			longitude = EXCLUDED.longitude,
			address = EXCLUDED.address,
			city = EXCLUDED.city,
			state = EXCLUDED.state,
			zip_code = EXCLUDED.zip_code,
			price_level = EXCLUDED.price_level,
			google_rating = EXCLUDED.google_rating,
			google_review_count = EXCLUDED.google_review_count,
			cuisine_tags = EXCLUDED.cuisine_tags,
			phone = EXCLUDED.phone,
			website = EXCLUDED.website,
			photo_urls = EXCLUDED.photo_urls,
			updated_at = NOW()
		RETURNING ` + strings.ReplaceAll(restaurantColumns, "r.", "") + `
	`

	var restaurant models.Restaurant

	err := r.db.QueryRow(ctx, query,
		p.GooglePlaceID, p.Name, p.Latitude, p.Longitude, p.Address, p.City,
		p.State, p.ZipCode, p.PriceLevel, p.GoogleRating, p.GoogleReviewCount,
		p.CuisineTags, p.Phone, p.Website, p.PhotoURLs,
	).Scan(restaurantScanDests(&restaurant)...)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert restaurant: %w", err)
	}

	return &restaurant, nil
}

// GetByID retrieves a restaurant with its aggregated features, if any.
func (r *RestaurantsRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Candidate, error) {
	query := candidateSelect() + ` WHERE r.id = $1`

	row := r.db.QueryRow(ctx, query, id)

	candidate, err := scanCandidate(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFoundError("restaurant", "restaurant not found")
		}

		return nil, fmt.Errorf("failed to get restaurant: %w", err)
	}

	return candidate, nil
}

// FindActiveWithFeatures returns every active restaurant joined with its
// aggregated features. maxPrice, when set, keeps only restaurants at or below
// that price level (unpriced restaurants are kept).
func (r *RestaurantsRepository) FindActiveWithFeatures(ctx context.Context, maxPrice *int) ([]models.Candidate, error) {
	query := candidateSelect() + ` WHERE r.is_active = TRUE`

	var args []any

	if maxPrice != nil {
		query += ` AND (r.price_level IS NULL OR r.price_level <= $1)`
		args = append(args, *maxPrice)
	}

	query += ` ORDER BY r.created_at, r.id`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list active restaurants: %w", err)
	}
	defer rows.Close()

	candidates := []models.Candidate{}

	for rows.Next() {
		candidate, err := scanCandidate(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan restaurant: %w", err)
		}

		candidates = append(candidates, *candidate)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating restaurants: %w", err)
	}

	return candidates, nil
}

// ListActiveIDs returns the ids of all active restaurants, for pipeline
// backfills.
func (r *RestaurantsRepository) ListActiveIDs(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := r.db.Query(ctx, `SELECT id FROM restaurants WHERE is_active = TRUE ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to list active restaurant ids: %w", err)
	}
	defer rows.Close()

	ids := []uuid.UUID{}

	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan restaurant id: %w", err)
		}

		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating restaurant ids: %w", err)
	}

	return ids, nil
}

// UpsertFeatures fully replaces a restaurant's aggregated feature vector.
// Features the aggregation did not assess are written as NULL, so a value
// from an earlier run never survives a re-aggregation.
func (r *RestaurantsRepository) UpsertFeatures(ctx context.Context, restaurantID uuid.UUID, agg models.AggregatedFeatures) error {
	cols := strings.Split(featureColumnList, ", ")

	placeholders := make([]string, 0, len(cols)+4)
	updates := make([]string, 0, len(cols)+4)
	args := make([]any, 0, len(cols)+5)

	args = append(args, restaurantID)
	argCount := 2

	appendCol := func(col string, value any) {
		placeholders = append(placeholders, fmt.Sprintf("$%d", argCount))
		updates = append(updates, fmt.Sprintf("%s = EXCLUDED.%s", col, col))
		args = append(args, value)
		argCount++
	}

	for _, name := range features.All {
		var value *float64
		if v, ok := agg.Values[name]; ok {
			value = &v
		}

		appendCol(features.Column(name), value)
	}

	appendCol("confidence_score", agg.ConfidenceScore)
	appendCol("review_count_analyzed", agg.ReviewCountAnalyzed)
	appendCol("model_version", agg.ModelVersion)

	query := fmt.Sprintf(`
		INSERT INTO restaurant_features (restaurant_id, %s, confidence_score, review_count_analyzed, model_version, last_updated_at)
		VALUES ($1, %s, NOW())
		ON CONFLICT (restaurant_id) DO UPDATE SET
			%s,
			last_updated_at = NOW()
	`, featureColumnList, strings.Join(placeholders, ", "), strings.Join(updates, ",\n\t\t\t"))

	if _, err := r.db.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to upsert restaurant features: %w", err)
	}

	return nil
}

// MarkScraped stamps last_scraped_at after a successful review scrape.
func (r *RestaurantsRepository) MarkScraped(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.Exec(ctx, `UPDATE restaurants SET last_scraped_at = NOW(), updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to mark restaurant scraped: %w", err)
	}

	if result.RowsAffected() == 0 {
		return apperrors.NewNotFoundError("restaurant", "restaurant not found")
	}

	return nil
}

func candidateSelect() string {
	return fmt.Sprintf(`
		SELECT %s,
			rf.restaurant_id, %s,
			rf.confidence_score, rf.review_count_analyzed, rf.model_version, rf.last_updated_at
		FROM restaurants r
		LEFT JOIN restaurant_features rf ON rf.restaurant_id = r.id`,
		restaurantColumns, prefixFeatureColumns("rf."))
}

func prefixFeatureColumns(prefix string) string {
	cols := strings.Split(featureColumnList, ", ")
	for i, col := range cols {
		cols[i] = prefix + col
	}

	return strings.Join(cols, ", ")
}

func restaurantScanDests(restaurant *models.Restaurant) []any {
	return []any{
		&restaurant.ID, &restaurant.GooglePlaceID, &restaurant.Name,
		&restaurant.Latitude, &restaurant.Longitude, &restaurant.Address,
		&restaurant.City, &restaurant.State, &restaurant.ZipCode,
		&restaurant.PriceLevel, &restaurant.GoogleRating,
		&restaurant.GoogleReviewCount, &restaurant.CuisineTags,
		&restaurant.Phone, &restaurant.Website, &restaurant.PhotoURLs,
		&restaurant.IsActive, &restaurant.LastScrapedAt,
		&restaurant.CreatedAt, &restaurant.UpdatedAt,
	}
}

// scanCandidate scans one restaurant row with its left-joined feature
// columns. A NULL rf.restaurant_id means the restaurant has no feature row
// yet; the candidate's Features stays nil.
func scanCandidate(row pgx.Row) (*models.Candidate, error) {
	var (
		candidate       models.Candidate
		featuresOwnerID *uuid.UUID
		featureValues   = make([]*float64, len(features.All))
		reviewCount     *int
		fv              models.RestaurantFeatures
	)

	dests := restaurantScanDests(&candidate.Restaurant)
	dests = append(dests, &featuresOwnerID)

	for i := range featureValues {
		dests = append(dests, &featureValues[i])
	}

	dests = append(dests, &fv.ConfidenceScore, &reviewCount, &fv.ModelVersion, &fv.UpdatedAt)

	if err := row.Scan(dests...); err != nil {
		return nil, err
	}

	if featuresOwnerID == nil {
		return &candidate, nil
	}

	fv.RestaurantID = *featuresOwnerID

	if reviewCount != nil {
		fv.ReviewCountAnalyzed = *reviewCount
	}
	fv.Values = make(map[features.Name]float64, len(features.All))

	for i, name := range features.All {
		if featureValues[i] != nil {
			fv.Values[name] = *featureValues[i]
		}
	}

	candidate.Features = &fv

	return &candidate, nil
}
