package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivertype"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"golang.org/x/time/rate"

	"github.com/platewise/backend/internal/api/handlers"
	"github.com/platewise/backend/internal/api/middleware"
	"github.com/platewise/backend/internal/config"
	"github.com/platewise/backend/internal/models"
	"github.com/platewise/backend/internal/observability"
	"github.com/platewise/backend/internal/openai"
	"github.com/platewise/backend/internal/places"
	"github.com/platewise/backend/internal/repository"
	"github.com/platewise/backend/internal/service"
	"github.com/platewise/backend/internal/workers"
	"github.com/platewise/backend/pkg/cache"
)

// App holds all server dependencies and coordinates startup and shutdown.
type App struct {
	cfg            *config.Config
	db             *pgxpool.Pool
	server         *http.Server
	river          *river.Client[pgx.Tx]
	meterProvider  observability.MeterProviderShutdown
	tracerProvider *sdktrace.TracerProvider
	metrics        *observability.Metrics
}

var errMissingPlacesKey = errors.New("GOOGLE_PLACES_API_KEY environment variable is required but not set")

const (
	pipelineMaxWorkers      = 10
	placesRequestsPerSecond = 10
	placesBurst             = 5

	queueDepthInterval = 15 * time.Second
)

// riverInserter adapts the River client to service.PipelineJobInserter. The
// client is set after river.NewClient since workers need the inserter first.
type riverInserter struct {
	client *river.Client[pgx.Tx]
}

func (r *riverInserter) Insert(ctx context.Context, args river.JobArgs, opts *river.InsertOpts) (*rivertype.JobInsertResult, error) {
	result, err := r.client.Insert(ctx, args, opts)
	if err != nil {
		return nil, fmt.Errorf("insert job: %w", err)
	}

	return result, nil
}

// newQueryParser builds the configured query parser. The LLM parser degrades
// to rules internally, so "rule" is only needed to run without an OpenAI key.
func newQueryParser(cfg *config.Config, client *openai.Client, metrics *observability.Metrics) service.QueryParser {
	if cfg.QueryParserProvider == config.ProviderRule {
		return service.NewRuleQueryParser()
	}

	return service.NewLLMQueryParser(service.LLMQueryParserParams{
		Client:  client,
		Metrics: metrics.Search,
		Logger:  slog.Default(),
	})
}

func newExtractionProvider(cfg *config.Config, client *openai.Client) service.ExtractionProvider {
	if cfg.ExtractionProvider == config.ProviderStub {
		return service.NewStubExtractionProvider()
	}

	return service.NewLLMExtractionProvider(service.LLMExtractionProviderParams{
		Client: client,
		Model:  cfg.OpenAIModel,
	})
}

// NewApp builds and wires all components. It does not start the HTTP server or River;
// call Run to start and block until shutdown or failure.
func NewApp(cfg *config.Config, db *pgxpool.Pool) (*App, error) {
	if cfg.GooglePlacesAPIKey == "" {
		return nil, errMissingPlacesKey
	}

	meterProvider, metricsHandler, metrics, err := observability.NewMeterProvider(context.Background(), observability.MeterProviderConfig{})
	if err != nil {
		return nil, fmt.Errorf("create meter provider: %w", err)
	}

	tracerProvider, err := observability.NewTracerProvider(cfg.OtelTracesExporter)
	if err != nil {
		if err2 := meterProvider.Shutdown(context.Background()); err2 != nil {
			slog.Error("shutdown meter provider after tracer provider error", "error", err2)
		}

		return nil, fmt.Errorf("create tracer provider: %w", err)
	}

	// Install TraceContextHandler unconditionally so request_id (and trace_id/span_id when tracing is on) appear in logs.
	defaultHandler := slog.Default().Handler()
	slog.SetDefault(slog.New(observability.NewTraceContextHandler(defaultHandler)))

	if tracerProvider != nil {
		otel.SetTracerProvider(tracerProvider)
	}

	placesClient := places.NewClient(places.ClientOptions{
		APIKey:  cfg.GooglePlacesAPIKey,
		Limiter: rate.NewLimiter(rate.Limit(placesRequestsPerSecond), placesBurst),
		Logger:  slog.Default(),
	})

	var openAIClient *openai.Client
	if cfg.OpenAIAPIKey != "" {
		openAIClient = openai.NewClient(cfg.OpenAIAPIKey, openai.WithModel(cfg.OpenAIModel))
	}

	restaurantsRepo := repository.NewRestaurantsRepository(db)
	reviewsRepo := repository.NewReviewsRepository(db)
	extractionsRepo := repository.NewExtractionsRepository(db)
	userQueriesRepo := repository.NewUserQueriesRepository(db)

	inserter := &riverInserter{}

	extractionService := service.NewExtractionService(service.ExtractionServiceParams{
		Provider: newExtractionProvider(cfg, openAIClient),
		Logger:   slog.Default(),
	})
	aggregationService := service.NewAggregationService()

	scrapeWorker := workers.NewReviewScrapeWorker(restaurantsRepo, reviewsRepo, placesClient, inserter, metrics.Pipeline)
	extractionWorker := workers.NewFeatureExtractionWorker(reviewsRepo, extractionsRepo, extractionService, inserter, metrics.Pipeline)
	aggregationWorker := workers.NewFeatureAggregationWorker(extractionsRepo, restaurantsRepo, aggregationService, metrics.Pipeline)

	riverWorkers := river.NewWorkers()
	river.AddWorker(riverWorkers, scrapeWorker)
	river.AddWorker(riverWorkers, extractionWorker)
	river.AddWorker(riverWorkers, aggregationWorker)

	riverClient, err := river.NewClient(riverpgxv5.New(db), &river.Config{
		Queues: map[string]river.QueueConfig{
			service.PipelineQueueName: {MaxWorkers: pipelineMaxWorkers},
		},
		Workers:     riverWorkers,
		MaxAttempts: cfg.PipelineMaxAttempts,
	})
	if err != nil {
		if err2 := shutdownObservability(context.Background(), tracerProvider, meterProvider); err2 != nil {
			slog.Error("shutdown observability after River client error", "error", err2)
		}

		return nil, fmt.Errorf("create River client: %w", err)
	}

	inserter.client = riverClient

	queryCache, err := cache.NewLoaderCache[string, models.ParsedQuery](
		cfg.ParsedQueryCacheSize,
		func(k string) string { return k },
	)
	if err != nil {
		return nil, fmt.Errorf("create parsed query cache: %w", err)
	}

	searchService := service.NewSearchService(service.SearchServiceParams{
		Parser:       newQueryParser(cfg, openAIClient, metrics),
		Restaurants:  restaurantsRepo,
		UserQueries:  userQueriesRepo,
		Scoring:      service.NewScoringService(),
		QueryCache:   queryCache,
		CacheMetrics: metrics.Cache,
		Logger:       slog.Default(),
	})

	ingestionService := service.NewIngestionService(service.IngestionServiceParams{
		Places:      placesClient,
		Restaurants: restaurantsRepo,
		Inserter:    inserter,
		Logger:      slog.Default(),
	})

	searchHandler := handlers.NewSearchHandler(searchService, metrics.Search)
	restaurantsHandler := handlers.NewRestaurantsHandler(restaurantsRepo, ingestionService)
	healthHandler := handlers.NewHealthHandler()

	server := newHTTPServer(cfg, metrics, metricsHandler, healthHandler, searchHandler, restaurantsHandler)

	return &App{
		cfg:            cfg,
		db:             db,
		server:         server,
		river:          riverClient,
		meterProvider:  meterProvider,
		tracerProvider: tracerProvider,
		metrics:        metrics,
	}, nil
}

// newHTTPServer builds the HTTP server and muxes (no auth on /health and /metrics, API key on /v1/).
// Handler chain: RequestID -> Metrics -> MaxBody -> mux so durations cover the full request.
func newHTTPServer(
	cfg *config.Config,
	metrics *observability.Metrics,
	metricsHandler http.Handler,
	health *handlers.HealthHandler,
	search *handlers.SearchHandler,
	restaurants *handlers.RestaurantsHandler,
) *http.Server {
	public := http.NewServeMux()
	public.HandleFunc("GET /health", health.Check)
	public.Handle("GET /metrics", metricsHandler)

	protected := http.NewServeMux()
	protected.HandleFunc("POST /v1/search", search.Search)
	protected.HandleFunc("GET /v1/restaurants", restaurants.List)
	protected.HandleFunc("GET /v1/restaurants/{id}", restaurants.Get)
	protected.HandleFunc("POST /v1/restaurants/ingest", restaurants.Ingest)

	protectedWithAuth := middleware.Auth(cfg.APIKeys)(protected)
	mux := http.NewServeMux()
	mux.Handle("/v1/", protectedWithAuth)
	mux.Handle("/", public)

	handler := middleware.MaxBody(cfg.MaxRequestBodyBytes, metrics.API)(mux)
	handler = middleware.Metrics(metrics.HTTP)(handler)
	handler = middleware.RequestID(handler)

	const (
		readTimeout  = 15 * time.Second
		writeTimeout = 15 * time.Second
		idleTimeout  = 60 * time.Second
	)

	return &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
	}
}

// Run starts the HTTP server and River, then blocks until ctx is cancelled (e.g. signal)
// or a component fails. When ctx is cancelled or a component fails, it cancels the internal
// River context so River and the queue depth poller stop before Run returns. Caller should then call Shutdown.
func (a *App) Run(ctx context.Context) error {
	runErr := make(chan error, 1)

	riverCtx, cancelRiver := context.WithCancel(ctx)
	defer cancelRiver()

	if a.metrics != nil && a.metrics.Pipeline != nil {
		go runQueueDepthPoller(riverCtx, a.db, a.metrics.Pipeline)
	}

	go func() {
		if err := a.river.Start(riverCtx); err != nil && !errors.Is(err, context.Canceled) {
			select {
			case runErr <- fmt.Errorf("river: %w", err):
			default:
			}
		}
	}()

	go func() {
		slog.Info("Starting server", "port", a.cfg.Port)

		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			select {
			case runErr <- fmt.Errorf("server: %w", err):
			default:
			}
		}
	}()

	select {
	case err := <-runErr:
		cancelRiver()

		return err
	case <-ctx.Done():
		cancelRiver()

		return nil
	}
}

// runQueueDepthPoller periodically updates the pipeline queue depth gauge.
func runQueueDepthPoller(ctx context.Context, db *pgxpool.Pool, pipelineMetrics observability.PipelineMetrics) {
	ticker := time.NewTicker(queueDepthInterval)
	defer ticker.Stop()

	update := func() {
		var count int

		err := db.QueryRow(ctx,
			`SELECT COUNT(*) FROM river_job WHERE queue = $1 AND state IN ($2, $3, $4)`,
			service.PipelineQueueName,
			rivertype.JobStateAvailable, rivertype.JobStateRetryable, rivertype.JobStateScheduled,
		).Scan(&count)
		if err != nil {
			slog.WarnContext(ctx, "pipeline queue depth poll failed", "error", err)

			return
		}

		pipelineMetrics.SetQueueDepth(count)
	}

	update()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			update()
		}
	}
}

// shutdownObservability shuts down tracer and meter providers. Logs secondary errors, returns the first.
func shutdownObservability(ctx context.Context, tracer *sdktrace.TracerProvider, meter observability.MeterProviderShutdown) error {
	var first error

	if tracer != nil {
		if err := observability.ShutdownTracerProvider(ctx, tracer); err != nil {
			first = err
		}
	}

	if meter != nil {
		if err := meter.Shutdown(ctx); err != nil {
			if first == nil {
				first = fmt.Errorf("meter provider shutdown: %w", err)
			} else {
				slog.Error("shutdown meter provider", "error", err)
			}
		}
	}

	return first
}

// Shutdown stops the server and River in order. Call after Run returns.
// Observability is shut down once via defer; its error is returned only when server and River shut down successfully.
func (a *App) Shutdown(ctx context.Context) (err error) {
	defer func() {
		obsErr := shutdownObservability(ctx, a.tracerProvider, a.meterProvider)
		if err == nil {
			err = obsErr
		} else if obsErr != nil {
			slog.Error("shutdown observability", "error", obsErr)
		}
	}()

	if err = a.server.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		if stopErr := a.river.Stop(ctx); stopErr != nil {
			slog.Error("river stop during server shutdown", "error", stopErr)
		}

		return fmt.Errorf("server shutdown: %w", err)
	}

	if err = a.river.Stop(ctx); err != nil {
		return fmt.Errorf("river stop: %w", err)
	}

	return nil
}
