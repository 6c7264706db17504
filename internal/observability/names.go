// Package observability provides OpenTelemetry metrics and tracing for the relevance worker.
package observability

import "github.com/eventscape/relevance/internal/datatypes"

// Metric names (Prometheus / OpenTelemetry).
const (
	MetricNameInterestOutcomes      = "relevance_interest_updates_total"
	MetricNameInterestDuration      = "relevance_interest_update_duration_seconds"
	MetricNameInterestConflicts     = "relevance_interest_conflict_retries_total"
	MetricNameInterestTracked       = "relevance_interest_signals_tracked_total"
	MetricNameInterestTrackErrors   = "relevance_interest_track_errors_total"
	MetricNameRankingRequests       = "relevance_ranking_requests_total"
	MetricNameRankingDegraded       = "relevance_ranking_degraded_total"
	MetricNameRankingCandidates     = "relevance_ranking_candidates"
	MetricNameRankingDuration       = "relevance_ranking_duration_seconds"
	MetricNameProviderCalls         = "relevance_embedding_provider_calls_total"
	MetricNameProviderDuration      = "relevance_embedding_provider_duration_seconds"
	MetricNameEmbeddingJobsEnqueued = "relevance_embedding_jobs_enqueued_total"
	MetricNameEmbeddingOutcomes     = "relevance_embedding_jobs_total"
	MetricNameEmbeddingDuration     = "relevance_embedding_job_duration_seconds"
	MetricNameEmbeddingWorkerErrors = "relevance_embedding_worker_errors_total"
	MetricNameCacheHits             = "relevance_cache_hits_total"
	MetricNameCacheMisses           = "relevance_cache_misses_total"
)

// Attribute keys.
const (
	AttrKind     = "kind"
	AttrMode     = "mode"
	AttrOutcome  = "outcome"
	AttrProvider = "provider"
	AttrReason   = "reason"
	AttrSource   = "source"
	AttrStatus   = "status"
)

// AllowedInterestStatuses for relevance_interest_updates_total.
var AllowedInterestStatuses = map[string]bool{
	"created":    true,
	"updated":    true,
	"skipped":    true,
	"degenerate": true,
	"not_found":  true,
	"invalid":    true,
	"conflict":   true,
	"failed":     true,
}

// AllowedTrackReasons for relevance_interest_track_errors_total.
var AllowedTrackReasons = map[string]bool{
	"invalid_signal": true,
	"enqueue_failed": true,
	"record_failed":  true,
}

// AllowedRankingModes for relevance_ranking_requests_total.
var AllowedRankingModes = map[string]bool{
	"query":     true,
	"interest":  true,
	"proximity": true,
	"recency":   true,
}

// AllowedDegradedReasons for relevance_ranking_degraded_total.
var AllowedDegradedReasons = map[string]bool{
	"query_embedding": true,
	"interest_load":   true,
}

// AllowedProviderOutcomes for relevance_embedding_provider_calls_total.
var AllowedProviderOutcomes = map[string]bool{
	"success":        true,
	"timeout":        true,
	"circuit_open":   true,
	"rate_limit":     true,
	"embed":          true,
	"invalid_input":  true,
	"invalid_output": true,
}

// AllowedProviders for the provider attribute.
var AllowedProviders = map[string]bool{
	"openai":    true,
	"google":    true,
	"fastembed": true,
	"hash":      true,
}

// AllowedEmbeddingJobStatuses for relevance_embedding_jobs_total and the job duration histogram.
var AllowedEmbeddingJobStatuses = map[string]bool{
	"success":      true,
	"retry":        true,
	"failed_final": true,
	"skipped":      true,
}

// AllowedEmbeddingWorkerReasons for relevance_embedding_worker_errors_total.
var AllowedEmbeddingWorkerReasons = map[string]bool{
	"get_candidate":  true,
	"embed":          true,
	"update":         true,
	"interest_match": true,
	"unknown_source": true,
}

// AllowedEmbeddingEnqueueReasons for relevance_embedding_jobs_enqueued_total.
var AllowedEmbeddingEnqueueReasons = map[string]bool{
	"created":  true,
	"updated":  true,
	"backfill": true,
}

// AllowedCacheNames for the cache attribute.
var AllowedCacheNames = map[string]bool{
	"query_embedding": true,
}

// NormalizeReason returns reason if in allowed, otherwise "other".
func NormalizeReason(reason string, allowed map[string]bool) string {
	if allowed[reason] {
		return reason
	}

	return "other"
}

// NormalizeKind returns the interaction kind label, "unknown" when the kind is not valid.
func NormalizeKind(kind datatypes.InteractionKind) string {
	if kind.Valid() {
		return kind.String()
	}

	return "unknown"
}

// NormalizeSource returns the candidate source label, "unknown" when the source is not valid.
func NormalizeSource(source datatypes.CandidateSource) string {
	if _, err := datatypes.ParseCandidateSource(string(source)); err != nil {
		return "unknown"
	}

	return string(source)
}

// NormalizeCacheName returns name if it is a known cache, otherwise "other".
func NormalizeCacheName(name string) string {
	return NormalizeReason(name, AllowedCacheNames)
}
