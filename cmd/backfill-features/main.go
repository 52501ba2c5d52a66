// Package main provides a CLI tool to re-run feature aggregation for all
// active restaurants. Useful after a scoring or aggregation change: it
// enqueues one aggregation job per restaurant, recomputing stored features
// from the extractions already in the database.
//
// Usage:
//
//	go run ./cmd/backfill-features
//
// Environment variables:
//   - DATABASE_URL: PostgreSQL connection string (required)
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"

	"github.com/platewise/backend/internal/config"
	"github.com/platewise/backend/internal/repository"
	"github.com/platewise/backend/internal/service"
	"github.com/platewise/backend/pkg/database"
)

func main() {
	ctx := context.Background()

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	slog.Info("Starting feature aggregation backfill...")

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	db, err := database.NewPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Insert-only client: jobs are picked up by the API process.
	riverClient, err := river.NewClient(riverpgxv5.New(db), &river.Config{})
	if err != nil {
		slog.Error("Failed to create River client", "error", err)
		os.Exit(1)
	}

	restaurantsRepo := repository.NewRestaurantsRepository(db)

	ids, err := restaurantsRepo.ListActiveIDs(ctx)
	if err != nil {
		slog.Error("Failed to list active restaurants", "error", err)
		os.Exit(1)
	}

	enqueued := 0

	for _, id := range ids {
		_, err := riverClient.Insert(ctx,
			service.FeatureAggregationArgs{RestaurantID: id},
			&river.InsertOpts{
				Queue:      service.PipelineQueueName,
				UniqueOpts: river.UniqueOpts{ByArgs: true},
			},
		)
		if err != nil {
			slog.Error("Failed to enqueue aggregation job", "restaurant_id", id, "error", err)

			continue
		}

		enqueued++
	}

	slog.Info("Feature aggregation backfill complete", "restaurants", len(ids), "enqueued", enqueued)
}
