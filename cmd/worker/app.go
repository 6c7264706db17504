package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/eventscape/relevance/internal/api/handlers"
	"github.com/eventscape/relevance/internal/config"
	"github.com/eventscape/relevance/internal/embeddings"
	"github.com/eventscape/relevance/internal/observability"
	"github.com/eventscape/relevance/internal/repository"
	"github.com/eventscape/relevance/internal/service"
	"github.com/eventscape/relevance/internal/workers"
)

const serviceName = "relevance-worker"

// App holds all worker dependencies and coordinates startup and shutdown.
type App struct {
	cfg            *config.Config
	db             *pgxpool.Pool
	server         *http.Server
	river          *river.Client[pgx.Tx]
	engine         *engine
	embedder       io.Closer
	meterProvider  observability.MeterProviderShutdown
	tracerProvider *sdktrace.TracerProvider
}

// observabilitySetup is what setupObservability produces; every field may be nil when disabled.
type observabilitySetup struct {
	meterProvider  observability.MeterProviderShutdown
	metricsHandler http.Handler
	metrics        *observability.Metrics
	tracerProvider *sdktrace.TracerProvider
}

func setupObservability(ctx context.Context, cfg *config.Config) (*observabilitySetup, error) {
	obs := &observabilitySetup{}

	if cfg.MetricsExporter == "" {
		slog.Warn("metrics not enabled (OTEL_METRICS_EXPORTER empty or unset)")
	} else {
		mp, handler, meter, err := observability.NewMeterProvider(ctx, observability.MeterProviderConfig{
			ServiceName: serviceName,
			Exporter:    cfg.MetricsExporter,
		})
		if err != nil {
			return nil, fmt.Errorf("create meter provider: %w", err)
		}

		metrics, err := observability.NewMetrics(meter)
		if err != nil {
			if err2 := observability.ShutdownMeterProvider(context.Background(), mp); err2 != nil {
				slog.Error("shutdown meter provider after metrics error", "error", err2)
			}

			return nil, fmt.Errorf("create metrics: %w", err)
		}

		obs.meterProvider, obs.metricsHandler, obs.metrics = mp, handler, metrics
	}

	if cfg.TracesExporter == "" {
		slog.Warn("tracing not enabled (OTEL_TRACES_EXPORTER empty or unset)")

		return obs, nil
	}

	tp, err := observability.NewTracerProvider(ctx, cfg.TracesExporter, serviceName)
	if err != nil {
		obs.shutdown(context.Background())

		return nil, fmt.Errorf("create tracer provider: %w", err)
	}

	if tp != nil {
		otel.SetTracerProvider(tp)
	}

	obs.tracerProvider = tp

	return obs, nil
}

// shutdown releases providers after a failed startup, logging errors.
func (o *observabilitySetup) shutdown(ctx context.Context) {
	if err := shutdownObservability(ctx, o.tracerProvider, o.meterProvider); err != nil {
		slog.Error("shutdown observability after startup error", "error", err)
	}
}

// NewApp builds and wires all components. It does not start the ops server or River;
// call Run to start and block until shutdown or failure.
func NewApp(ctx context.Context, cfg *config.Config, db *pgxpool.Pool) (*App, error) {
	obs, err := setupObservability(ctx, cfg)
	if err != nil {
		return nil, err
	}

	var (
		interestMetrics  observability.InterestMetrics
		embeddingMetrics observability.EmbeddingMetrics
	)

	if obs.metrics != nil {
		interestMetrics = obs.metrics.Interest
		embeddingMetrics = obs.metrics.Embedding
	}

	inner, providerName, err := embeddings.NewClient(ctx, cfg)
	if err != nil {
		obs.shutdown(context.Background())

		return nil, fmt.Errorf("create embedding client: %w", err)
	}

	embedder := embeddings.NewGuardedClient(inner, embeddings.GuardConfig{
		Provider:        providerName,
		Timeout:         cfg.EmbeddingTimeout,
		RateLimit:       cfg.EmbeddingRateLimit,
		BreakerFailures: cfg.EmbeddingBreakerFailures,
		BreakerTimeout:  cfg.EmbeddingBreakerTimeout,
	}, embeddingMetrics)

	slog.Info("embeddings enabled",
		"provider", providerName,
		"model", cfg.EmbeddingModel,
		"dimensions", cfg.EmbeddingDimensions,
	)

	interestsRepo := repository.NewInterestsRepository(db)
	eventsRepo := repository.NewEventsRepository(db)
	externalEventsRepo := repository.NewExternalEventsRepository(db)

	interestService := service.NewInterestService(interestsRepo, embedder, cfg.InterestWriteRetries, interestMetrics)
	candidateService := service.NewCandidateEmbeddingService(service.CandidateEmbeddingServiceParams{
		Events:      eventsRepo,
		External:    externalEventsRepo,
		Embedder:    embedder,
		MaxAttempts: cfg.CandidateEmbeddingMaxAttempts,
		Metrics:     embeddingMetrics,
	})
	matchService := service.NewInterestMatchService(interestsRepo, eventsRepo, cfg.InterestMatchThreshold, 0)

	riverWorkers := river.NewWorkers()
	river.AddWorker(riverWorkers, workers.NewInterestUpdateWorker(interestService))
	river.AddWorker(riverWorkers, workers.NewCandidateEmbeddingWorker(candidateService, matchService, embeddingMetrics))

	riverClient, err := river.NewClient(riverpgxv5.New(db), &river.Config{
		Queues: map[string]river.QueueConfig{
			service.InterestsQueueName:  {MaxWorkers: cfg.InterestMaxConcurrent},
			service.EmbeddingsQueueName: {MaxWorkers: cfg.CandidateEmbeddingMaxConcurrent},
		},
		Workers:      riverWorkers,
		ErrorHandler: &workers.ErrorHandler{},
	})
	if err != nil {
		_ = embedder.Close()

		obs.shutdown(context.Background())

		return nil, fmt.Errorf("create River client: %w", err)
	}

	eng, err := newEngine(cfg, engineDeps{
		inserter:       riverClient,
		recorder:       interestService,
		embedder:       embedder,
		interests:      interestsRepo,
		events:         eventsRepo,
		externalEvents: externalEventsRepo,
		clicks:         externalEventsRepo,
		metrics:        obs.metrics,
	})
	if err != nil {
		_ = embedder.Close()

		obs.shutdown(context.Background())

		return nil, err
	}

	return &App{
		cfg:            cfg,
		db:             db,
		server:         newOpsServer(cfg, db, obs),
		river:          riverClient,
		engine:         eng,
		embedder:       embedder,
		meterProvider:  obs.meterProvider,
		tracerProvider: obs.tracerProvider,
	}, nil
}

// newOpsServer serves GET /health (database ping) and, with the prometheus exporter, GET /metrics.
func newOpsServer(cfg *config.Config, db *pgxpool.Pool, obs *observabilitySetup) *http.Server {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", handlers.NewHealthHandler(db).Check)

	if obs.metricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", obs.metricsHandler)
	}

	otelOpts := []otelhttp.Option{
		otelhttp.WithFilter(func(r *http.Request) bool {
			return r.URL.Path != "/health" && r.URL.Path != "/metrics"
		}),
	}
	if obs.tracerProvider != nil {
		otelOpts = append(otelOpts, otelhttp.WithTracerProvider(obs.tracerProvider))
	}

	const (
		readTimeout  = 5 * time.Second
		writeTimeout = 15 * time.Second
		idleTimeout  = 60 * time.Second
	)

	return &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      otelhttp.NewHandler(r, serviceName, otelOpts...),
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
	}
}

// Run starts the ops server and River, then blocks until ctx is cancelled (e.g. signal)
// or a component fails. Caller should then call Shutdown.
func (a *App) Run(ctx context.Context) error {
	runErr := make(chan error, 1)

	riverCtx, cancelRiver := context.WithCancel(ctx)
	defer cancelRiver()

	go func() {
		if err := a.river.Start(riverCtx); err != nil && !errors.Is(err, context.Canceled) {
			select {
			case runErr <- fmt.Errorf("river: %w", err):
			default:
			}
		}
	}()

	go func() {
		slog.Info("Starting ops server", "port", a.cfg.Port)

		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			select {
			case runErr <- fmt.Errorf("ops server: %w", err):
			default:
			}
		}
	}()

	select {
	case err := <-runErr:
		return err
	case <-ctx.Done():
		return nil
	}
}

// shutdownObservability shuts down tracer and meter providers. Logs secondary errors, returns the first.
func shutdownObservability(
	ctx context.Context, tracer *sdktrace.TracerProvider, meter observability.MeterProviderShutdown,
) error {
	var first error

	if err := observability.ShutdownTracerProvider(ctx, tracer); err != nil {
		first = err
	}

	if err := observability.ShutdownMeterProvider(ctx, meter); err != nil {
		if first == nil {
			first = err
		} else {
			slog.Error("shutdown meter provider", "error", err)
		}
	}

	return first
}

// Shutdown stops the ops server, then River (waiting for in-flight jobs) and pending tracker
// work, then the embedding client and observability. Call after Run returns.
func (a *App) Shutdown(ctx context.Context) (err error) {
	defer func() {
		if closeErr := a.embedder.Close(); closeErr != nil {
			slog.Error("close embedding client", "error", closeErr)
		}

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

		return fmt.Errorf("ops server shutdown: %w", err)
	}

	if err = a.river.Stop(ctx); err != nil {
		return fmt.Errorf("river stop: %w", err)
	}

	a.engine.tracker.Wait()

	return nil
}
