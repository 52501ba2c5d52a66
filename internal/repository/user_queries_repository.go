package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/platewise/backend/internal/models"
)

// UserQueriesRepository persists the search log.
type UserQueriesRepository struct {
	db *pgxpool.Pool
}

// NewUserQueriesRepository creates a new user queries repository.
func NewUserQueriesRepository(db *pgxpool.Pool) *UserQueriesRepository {
	return &UserQueriesRepository{db: db}
}

// Create records one executed search with its returned results.
func (r *UserQueriesRepository) Create(ctx context.Context, query *models.UserQuery) error {
	sql := `
		INSERT INTO user_queries (
			id, user_id, query_text, parsed_query,
			search_latitude, search_longitude, search_radius_miles,
			results_returned
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.db.Exec(ctx, sql,
		query.ID, query.UserID, query.QueryText, query.ParsedQuery,
		query.Latitude, query.Longitude, query.RadiusMiles,
		query.ResultsReturned,
	)
	if err != nil {
		return fmt.Errorf("failed to log user query: %w", err)
	}

	return nil
}
