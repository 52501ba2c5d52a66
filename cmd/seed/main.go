// Package main provides a CLI tool to seed the database with restaurants
// discovered via the Google Places API. Each discovered restaurant gets a
// review scrape job enqueued, which kicks off the rest of the pipeline.
//
// Usage:
//
//	go run ./cmd/seed -lat 40.7484 -lng -73.9857 -radius 3000 -keyword ramen
//
// Environment variables:
//   - DATABASE_URL: PostgreSQL connection string (required)
//   - GOOGLE_PLACES_API_KEY: Google Places API key (required)
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivertype"
	"golang.org/x/time/rate"

	"github.com/platewise/backend/internal/config"
	"github.com/platewise/backend/internal/models"
	"github.com/platewise/backend/internal/places"
	"github.com/platewise/backend/internal/repository"
	"github.com/platewise/backend/internal/service"
	"github.com/platewise/backend/pkg/database"
)

const (
	placesRequestsPerSecond = 10
	placesBurst             = 5
)

// insertOnlyClient wraps a workerless River client as a service.PipelineJobInserter.
type insertOnlyClient struct {
	client *river.Client[pgx.Tx]
}

func (c *insertOnlyClient) Insert(ctx context.Context, args river.JobArgs, opts *river.InsertOpts) (*rivertype.JobInsertResult, error) {
	result, err := c.client.Insert(ctx, args, opts)
	if err != nil {
		return nil, fmt.Errorf("insert job: %w", err)
	}

	return result, nil
}

func main() {
	lat := flag.Float64("lat", 0, "latitude of the search center (required)")
	lng := flag.Float64("lng", 0, "longitude of the search center (required)")
	radius := flag.Int("radius", 0, "search radius in meters (default 5000)")
	keyword := flag.String("keyword", "", "optional keyword, e.g. a cuisine")
	maxResults := flag.Int("max-results", 0, "cap on discovered restaurants (default 60)")
	flag.Parse()

	ctx := context.Background()

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	if cfg.GooglePlacesAPIKey == "" {
		slog.Error("GOOGLE_PLACES_API_KEY is required for restaurant discovery")
		os.Exit(1)
	}

	db, err := database.NewPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Insert-only client: no queues or workers, jobs are picked up by the API process.
	riverClient, err := river.NewClient(riverpgxv5.New(db), &river.Config{})
	if err != nil {
		slog.Error("Failed to create River client", "error", err)
		os.Exit(1)
	}

	placesClient := places.NewClient(places.ClientOptions{
		APIKey:  cfg.GooglePlacesAPIKey,
		Limiter: rate.NewLimiter(rate.Limit(placesRequestsPerSecond), placesBurst),
		Logger:  slog.Default(),
	})

	ingestion := service.NewIngestionService(service.IngestionServiceParams{
		Places:      placesClient,
		Restaurants: repository.NewRestaurantsRepository(db),
		Inserter:    &insertOnlyClient{client: riverClient},
		Logger:      slog.Default(),
	})

	result, err := ingestion.Ingest(ctx, service.IngestParams{
		Location:     models.Location{Lat: *lat, Lng: *lng},
		RadiusMeters: *radius,
		Keyword:      *keyword,
		MaxResults:   *maxResults,
	})
	if err != nil {
		slog.Error("Seed run failed", "error", err)
		os.Exit(1)
	}

	slog.Info("Seed run complete",
		"found", result.Found,
		"upserted", result.Upserted,
		"enqueued", result.Enqueued,
	)
}
