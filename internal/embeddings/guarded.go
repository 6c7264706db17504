package embeddings

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/eventscape/relevance/internal/apperrors"
	"github.com/eventscape/relevance/internal/observability"
	vectors "github.com/eventscape/relevance/pkg/embeddings"
)

// Provider error operations, also used as the provider call outcome label.
const (
	OpEmbed         = "embed"
	OpTimeout       = "timeout"
	OpCircuitOpen   = "circuit_open"
	OpRateLimit     = "rate_limit"
	OpInvalidInput  = "invalid_input"
	OpInvalidOutput = "invalid_output"
)

// GuardConfig configures a GuardedClient.
type GuardConfig struct {
	// Provider labels errors and metrics.
	Provider string
	// Timeout bounds each provider call. Zero disables it.
	Timeout time.Duration
	// RateLimit is the sustained calls per second. Zero disables limiting.
	RateLimit float64
	// BreakerFailures is the number of consecutive failures that opens the breaker.
	BreakerFailures int
	// BreakerTimeout is how long the breaker stays open before a trial call.
	BreakerTimeout time.Duration
}

// GuardedClient wraps a provider client with input checks, a rate limiter, a per-call timeout
// and a circuit breaker. Every failure it returns is an *apperrors.ProviderError.
type GuardedClient struct {
	inner    Client
	provider string
	timeout  time.Duration
	limiter  *rate.Limiter
	breaker  *gobreaker.CircuitBreaker[[]float32]
	metrics  observability.EmbeddingMetrics
	logger   *slog.Logger
}

// NewGuardedClient wraps inner. metrics may be nil when metrics are disabled.
func NewGuardedClient(inner Client, cfg GuardConfig, metrics observability.EmbeddingMetrics) *GuardedClient {
	c := &GuardedClient{
		inner:    inner,
		provider: cfg.Provider,
		timeout:  cfg.Timeout,
		metrics:  metrics,
		logger:   slog.Default(),
	}

	if cfg.RateLimit > 0 {
		burst := max(1, int(cfg.RateLimit))
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	failures := uint32(max(1, cfg.BreakerFailures))

	c.breaker = gobreaker.NewCircuitBreaker[[]float32](gobreaker.Settings{
		Name:        "embedding-" + cfg.Provider,
		MaxRequests: 1,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		// Cancellation by the caller says nothing about provider health.
		IsExcluded: func(err error) bool {
			return errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.Warn("embeddings: circuit breaker state changed",
				"breaker", name, "from", from.String(), "to", to.String())
		},
	})

	return c
}

// CreateEmbedding embeds text through the guarded provider.
func (c *GuardedClient) CreateEmbedding(ctx context.Context, text string) ([]float32, error) {
	ctx, span := observability.Tracer().Start(ctx, "embeddings.CreateEmbedding",
		trace.WithAttributes(attribute.String("embedding.provider", c.provider)))
	defer span.End()

	start := time.Now()

	vec, op, err := c.call(ctx, text)
	if c.metrics != nil {
		outcome := "success"
		if err != nil {
			outcome = op
		}

		c.metrics.RecordProviderCall(ctx, c.provider, outcome, time.Since(start))
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, op)

		return nil, apperrors.NewProviderError(c.provider, op, err)
	}

	return vec, nil
}

func (c *GuardedClient) call(ctx context.Context, text string) ([]float32, string, error) {
	if strings.TrimSpace(text) == "" {
		return nil, OpInvalidInput, ErrEmptyInput
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, OpRateLimit, fmt.Errorf("wait for rate limiter: %w", err)
		}
	}

	timedOut := false

	vec, err := c.breaker.Execute(func() ([]float32, error) {
		callCtx := ctx

		if c.timeout > 0 {
			var cancel context.CancelFunc

			callCtx, cancel = context.WithTimeout(ctx, c.timeout)
			defer cancel()
		}

		vec, err := c.inner.CreateEmbedding(callCtx, text)
		if err != nil {
			timedOut = errors.Is(callCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil

			return nil, err
		}

		if len(vec) == 0 || !vectors.Finite(vec) {
			return nil, ErrInvalidOutput
		}

		return vec, nil
	})

	switch {
	case err == nil:
		return vec, "", nil
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return nil, OpCircuitOpen, err
	case timedOut:
		return nil, OpTimeout, fmt.Errorf("no response within %s: %w", c.timeout, err)
	case errors.Is(err, ErrInvalidOutput):
		return nil, OpInvalidOutput, err
	default:
		return nil, OpEmbed, err
	}
}

// Close releases the wrapped client when it holds native resources.
func (c *GuardedClient) Close() error {
	if closer, ok := c.inner.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			return fmt.Errorf("close %s client: %w", c.provider, err)
		}
	}

	return nil
}

var _ Client = (*GuardedClient)(nil)
