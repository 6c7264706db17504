package observability

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	prometheusexporter "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

const (
	meterScope       = "github.com/eventscape/relevance/internal/observability"
	cardinalityLimit = 2000

	// ExporterPrometheus serves metrics on the ops server's /metrics route.
	ExporterPrometheus = "prometheus"
	// ExporterOTLP pushes metrics to OTEL_EXPORTER_OTLP_ENDPOINT.
	ExporterOTLP = "otlp"
)

// durationHistogramBounds are second-based buckets. Embedding calls dominate latency, so
// the tail extends to the provider timeout.
var durationHistogramBounds = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}

// MeterProviderShutdown is the subset of the SDK MeterProvider needed for shutdown.
type MeterProviderShutdown interface {
	Shutdown(ctx context.Context) error
}

// MeterProviderConfig holds configuration for creating the MeterProvider.
type MeterProviderConfig struct {
	// ServiceName is used in the resource (default: relevance-worker).
	ServiceName string
	// Exporter is "prometheus", "otlp" or empty (disabled).
	Exporter string
	// ExportInterval applies to the otlp exporter (default 60s).
	ExportInterval time.Duration
}

// NewMeterProvider creates a MeterProvider for the configured exporter and returns the provider,
// an HTTP handler for /metrics (prometheus only) and the Meter to build instruments from.
// When the exporter is empty or unknown every return value is nil and metrics stay disabled.
func NewMeterProvider(ctx context.Context, cfg MeterProviderConfig) (
	provider MeterProviderShutdown, metricsHandler http.Handler, meter metric.Meter, err error,
) {
	var reader sdkmetric.Reader

	switch cfg.Exporter {
	case ExporterPrometheus:
		reg := prometheus.NewRegistry()

		exporter, err := prometheusexporter.New(prometheusexporter.WithRegisterer(reg))
		if err != nil {
			return nil, nil, nil, fmt.Errorf("create prometheus exporter: %w", err)
		}

		reader = exporter
		metricsHandler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	case ExporterOTLP:
		// SDK reads OTEL_EXPORTER_OTLP_ENDPOINT (and scheme/insecure) from env.
		exp, err := otlpmetrichttp.New(ctx)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("create OTLP metric exporter: %w", err)
		}

		interval := cfg.ExportInterval
		if interval <= 0 {
			interval = 60 * time.Second
		}

		reader = sdkmetric.NewPeriodicReader(exp, sdkmetric.WithInterval(interval))
	default:
		return nil, nil, nil, nil
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(newResource(cfg.ServiceName)),
		sdkmetric.WithReader(reader),
		sdkmetric.WithCardinalityLimit(cardinalityLimit),
		sdkmetric.WithView(
			sdkmetric.NewView(
				sdkmetric.Instrument{Name: "relevance_*_duration_seconds"},
				sdkmetric.Stream{Aggregation: sdkmetric.AggregationExplicitBucketHistogram{Boundaries: durationHistogramBounds}},
			),
		),
	)

	return mp, metricsHandler, mp.Meter(meterScope), nil
}

// ShutdownMeterProvider flushes and shuts down the MeterProvider. Safe to call with nil.
func ShutdownMeterProvider(ctx context.Context, provider MeterProviderShutdown) error {
	if provider == nil {
		return nil
	}

	if err := provider.Shutdown(ctx); err != nil {
		return fmt.Errorf("meter provider shutdown: %w", err)
	}

	return nil
}
