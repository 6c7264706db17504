// backfill-embeddings enqueues River candidate_embedding jobs for every platform and external
// event whose embedding is NULL. The worker process picks the jobs up from the embeddings queue.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"

	"github.com/eventscape/relevance/internal/config"
	"github.com/eventscape/relevance/internal/repository"
	"github.com/eventscape/relevance/internal/service"
	"github.com/eventscape/relevance/pkg/database"
)

const (
	exitSuccess    = 0
	exitFailure    = 1
	enqueueRetries = 3
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)

		return exitFailure
	}

	ctx := context.Background()

	db, err := database.NewPostgresPool(ctx, cfg.DatabaseURL, database.WithVectorTypes())
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)

		return exitFailure
	}
	defer db.Close()

	// Insert-only client: no workers, jobs are processed by cmd/worker.
	riverClient, err := river.NewClient(riverpgxv5.New(db), &river.Config{})
	if err != nil {
		slog.Error("Failed to create River client", "error", err)

		return exitFailure
	}

	candidateService := service.NewCandidateEmbeddingService(service.CandidateEmbeddingServiceParams{
		Inserter:    service.NewRetryingJobInserter(riverClient, service.RetryingJobInserterConfig{MaxRetries: enqueueRetries}),
		Events:      repository.NewEventsRepository(db),
		External:    repository.NewExternalEventsRepository(db),
		MaxAttempts: cfg.CandidateEmbeddingMaxAttempts,
	})

	stats, err := candidateService.BackfillEmbeddings(ctx)
	if err != nil {
		slog.Error("Backfill failed", "error", err)

		return exitFailure
	}

	slog.Info("Backfill complete",
		"platform_enqueued", stats.PlatformEnqueued,
		"external_enqueued", stats.ExternalEnqueued,
		"errors", stats.Errors,
	)

	fmt.Printf("Enqueued %d embedding job(s).\n", stats.PlatformEnqueued+stats.ExternalEnqueued)

	if stats.Errors > 0 {
		return exitFailure
	}

	return exitSuccess
}
