package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/eventscape/relevance/internal/apperrors"
	"github.com/eventscape/relevance/internal/models"
	"github.com/eventscape/relevance/internal/observability"
	"github.com/eventscape/relevance/internal/ranking"
	"github.com/eventscape/relevance/pkg/cache"
	"github.com/eventscape/relevance/pkg/geo"
)

// Page size bounds for RankUpcoming.
const (
	DefaultRankLimit = 20
	MaxRankLimit     = 100
)

const (
	degradedReasonQueryEmbedding = "query_embedding"
	degradedReasonInterestLoad   = "interest_load"
)

// InterestReader loads a user's stored interest vector.
type InterestReader interface {
	GetInterest(ctx context.Context, userID uuid.UUID) (*models.UserInterest, error)
}

// UpcomingEventsLister lists platform events that have not ended.
type UpcomingEventsLister interface {
	ListUpcoming(ctx context.Context, filters *models.UpcomingFilters) ([]*models.Event, error)
}

// UpcomingExternalEventsLister lists external events that have not started yet or start today.
type UpcomingExternalEventsLister interface {
	ListUpcoming(ctx context.Context, filters *models.UpcomingFilters) ([]*models.ExternalEvent, error)
}

// RankOptions describes one ranking request.
type RankOptions struct {
	// QueryText, when not blank, ranks by similarity to the query and overrides UserID.
	QueryText string
	// UserID ranks by the user's interest vector when there is no query.
	UserID   *uuid.UUID
	Location *geo.Point
	RadiusKm *float64
	// Category restricts RankUpcoming to candidates tagged with it.
	Category *string
	// Now is the reference time for expiry; zero means time.Now().
	Now time.Time
}

// RankResult is an ordered list of candidates and how it was ordered.
type RankResult struct {
	Items []ranking.Result
	// Mode is query, interest, proximity or recency.
	Mode string
	// Degraded is set when a semantic reference was requested but could not be obtained.
	Degraded bool
	// Total is the number of ranked candidates before pagination.
	Total int
}

// RankingService resolves the similarity reference for a request and orders candidates.
type RankingService struct {
	scorer         *ranking.Scorer
	embedder       EmbeddingClient
	interests      InterestReader
	events         UpcomingEventsLister
	externalEvents UpcomingExternalEventsLister
	queryCache     *cache.LoaderCache[string, []float32]
	metrics        observability.RankingMetrics
	cacheMetrics   observability.CacheMetrics
	logger         *slog.Logger
}

// RankingServiceParams configures RankingService. QueryCache, Metrics and CacheMetrics may be nil.
// Events and ExternalEvents are only needed by RankUpcoming.
type RankingServiceParams struct {
	Weights        ranking.Weights
	Embedder       EmbeddingClient
	Interests      InterestReader
	Events         UpcomingEventsLister
	ExternalEvents UpcomingExternalEventsLister
	QueryCache     *cache.LoaderCache[string, []float32]
	Metrics        observability.RankingMetrics
	CacheMetrics   observability.CacheMetrics
	Logger         *slog.Logger
}

// NewRankingService creates a RankingService.
func NewRankingService(p RankingServiceParams) *RankingService {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &RankingService{
		scorer:         ranking.NewScorer(p.Weights),
		embedder:       p.Embedder,
		interests:      p.Interests,
		events:         p.Events,
		externalEvents: p.ExternalEvents,
		queryCache:     p.QueryCache,
		metrics:        p.Metrics,
		cacheMetrics:   p.CacheMetrics,
		logger:         logger,
	}
}

// RankCandidates orders candidates for opts. The reference is the query embedding when
// QueryText is set, otherwise the user's interest vector, otherwise none. A failing provider
// or interest store degrades the result to distance/recency ordering instead of failing.
// Only invalid coordinates or radius return an error.
func (s *RankingService) RankCandidates(
	ctx context.Context, candidates []ranking.Rankable, opts RankOptions,
) (RankResult, error) {
	ctx, span := observability.Tracer().Start(ctx, "ranking.RankCandidates",
		trace.WithAttributes(attribute.Int("ranking.candidates", len(candidates))))
	defer span.End()

	start := time.Now()

	req := ranking.Request{
		Location: opts.Location,
		RadiusKm: opts.RadiusKm,
		Now:      opts.Now,
	}
	if req.Now.IsZero() {
		req.Now = start
	}

	if err := req.Validate(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid request")

		return RankResult{}, err
	}

	degraded := s.resolveReference(ctx, opts, &req)
	items := s.scorer.Order(candidates, req)
	mode := req.Mode()

	if s.metrics != nil {
		s.metrics.RecordRequest(ctx, mode, len(candidates), time.Since(start))
	}

	span.SetAttributes(
		attribute.String("ranking.mode", mode),
		attribute.Bool("ranking.degraded", degraded),
		attribute.Int("ranking.results", len(items)),
	)

	return RankResult{Items: items, Mode: mode, Degraded: degraded, Total: len(items)}, nil
}

// RankUpcoming loads upcoming platform and external events, ranks them together and returns
// one page. limit <= 0 uses DefaultRankLimit.
func (s *RankingService) RankUpcoming(ctx context.Context, opts RankOptions, limit, offset int) (RankResult, error) {
	if limit <= 0 {
		limit = DefaultRankLimit
	}

	if limit > MaxRankLimit {
		return RankResult{}, apperrors.NewValidationError("limit", "limit must be at most 100")
	}

	if offset < 0 {
		return RankResult{}, apperrors.NewValidationError("offset", "offset must be non-negative")
	}

	if opts.Now.IsZero() {
		opts.Now = time.Now()
	}

	candidates, err := s.loadUpcoming(ctx, opts)
	if err != nil {
		return RankResult{}, err
	}

	result, err := s.RankCandidates(ctx, candidates, opts)
	if err != nil {
		return RankResult{}, err
	}

	result.Items = ranking.Page(result.Items, limit, offset)

	return result, nil
}

func (s *RankingService) loadUpcoming(ctx context.Context, opts RankOptions) ([]ranking.Rankable, error) {
	filters := &models.UpcomingFilters{From: opts.Now, Category: opts.Category}

	var (
		events   []*models.Event
		external []*models.ExternalEvent
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var err error

		events, err = s.events.ListUpcoming(gctx, filters)

		return err
	})

	g.Go(func() error {
		var err error

		external, err = s.externalEvents.ListUpcoming(gctx, filters)

		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return append(ranking.PlatformEvents(events), ranking.ExternalEvents(external)...), nil
}

// resolveReference fills req.Reference and reports whether the request was degraded.
func (s *RankingService) resolveReference(ctx context.Context, opts RankOptions, req *ranking.Request) bool {
	query := strings.TrimSpace(opts.QueryText)
	if query != "" {
		vec, err := s.queryEmbedding(ctx, query)
		if err != nil {
			s.degrade(ctx, degradedReasonQueryEmbedding, "ranking: query embedding unavailable, ordering without it", err)

			return true
		}

		req.Reference = vec
		req.ReferenceKind = ranking.ReferenceQuery

		return false
	}

	if opts.UserID == nil || s.interests == nil {
		return false
	}

	interest, err := s.interests.GetInterest(ctx, *opts.UserID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			s.logger.DebugContext(ctx, "ranking: unknown user, ordering without interests", "user_id", *opts.UserID)

			return false
		}

		s.degrade(ctx, degradedReasonInterestLoad, "ranking: interest vector unavailable, ordering without it", err)

		return true
	}

	if interest.HasVector() {
		req.Reference = interest.Vector
		req.ReferenceKind = ranking.ReferenceInterest
	}

	return false
}

func (s *RankingService) degrade(ctx context.Context, reason, msg string, err error) {
	s.logger.WarnContext(ctx, msg, "error", err)

	if s.metrics != nil {
		s.metrics.RecordDegraded(ctx, reason)
	}

	trace.SpanFromContext(ctx).AddEvent("degraded", trace.WithAttributes(attribute.String("reason", reason)))
}

// queryEmbedding returns the embedding for query, from the cache when configured.
func (s *RankingService) queryEmbedding(ctx context.Context, query string) ([]float32, error) {
	if s.queryCache == nil {
		return s.embedder.CreateEmbedding(ctx, query)
	}

	vec, hit, err := s.queryCache.GetWithStats(ctx, query, s.embedQuery)
	if err != nil {
		return nil, err
	}

	if s.cacheMetrics != nil {
		if hit {
			s.cacheMetrics.RecordHit(ctx, observability.CacheNameQueryEmbedding)
		} else {
			s.cacheMetrics.RecordMiss(ctx, observability.CacheNameQueryEmbedding)
		}
	}

	return vec, nil
}

func (s *RankingService) embedQuery(ctx context.Context, query string) ([]float32, error) {
	return s.embedder.CreateEmbedding(ctx, query)
}

// NewQueryEmbeddingCache creates the cache RankingService uses for query embeddings.
// Returns (nil, nil) when size is not positive, which disables caching.
func NewQueryEmbeddingCache(size int, ttl time.Duration) (*cache.LoaderCache[string, []float32], error) {
	if size <= 0 {
		return nil, nil //nolint:nilnil // caching disabled
	}

	return cache.NewLoaderCache[string, []float32](size, ttl, func(q string) string { return q })
}
