// Package observability provides OpenTelemetry metrics and tracing for the
// platewise API and pipeline workers.
package observability

// Metric names (Prometheus / OpenTelemetry).
const (
	MetricNameSearchRequests       = "platewise_search_requests_total"
	MetricNameSearchDuration       = "platewise_search_duration_seconds"
	MetricNameSearchResults        = "platewise_search_results_returned"
	MetricNameParseFallbacks       = "platewise_query_parse_fallbacks_total"
	MetricNameCacheHits            = "platewise_cache_hits_total"
	MetricNameCacheMisses          = "platewise_cache_misses_total"
	MetricNamePipelineJobsEnqueued = "platewise_pipeline_jobs_enqueued_total"
	MetricNamePipelineOutcomes     = "platewise_pipeline_stage_outcomes_total"
	MetricNamePipelineWorkerErrors = "platewise_pipeline_worker_errors_total"
	MetricNamePipelineDuration     = "platewise_pipeline_stage_duration_seconds"
	MetricNamePipelineQueueDepth   = "platewise_pipeline_queue_depth"
	MetricNameExtractionTokens     = "platewise_extraction_tokens_total"
	MetricNameExtractionCost       = "platewise_extraction_cost_usd_total"
	MetricNameRequestBodyTooLarge  = "platewise_request_body_too_large_total"
	MetricNameHTTPRequests         = "platewise_http_requests_total"
	MetricNameHTTPDuration         = "platewise_http_request_duration_seconds"
)

// Attribute keys.
const (
	AttrStage  = "stage"
	AttrStatus = "status"
	AttrReason = "reason"
	AttrCache  = "cache"
)

// Pipeline stages, one per worker.
const (
	StageScrape    = "scrape"
	StageExtract   = "extract"
	StageAggregate = "aggregate"
)

// AllowedPipelineStages for pipeline stage attributes.
var AllowedPipelineStages = map[string]bool{
	StageScrape:    true,
	StageExtract:   true,
	StageAggregate: true,
}

// AllowedStageStatuses for platewise_pipeline_stage_outcomes_total and the
// stage duration histogram.
var AllowedStageStatuses = map[string]bool{
	"success":      true,
	"retry":        true,
	"failed_final": true,
	"skipped":      true,
}

// AllowedWorkerReasons for platewise_pipeline_worker_errors_total.
var AllowedWorkerReasons = map[string]bool{
	"get_restaurant_failed":   true,
	"places_failed":           true,
	"store_reviews_failed":    true,
	"load_reviews_failed":     true,
	"extraction_failed":       true,
	"store_extraction_failed": true,
	"mark_processed_failed":   true,
	"load_extractions_failed": true,
	"store_features_failed":   true,
	"enqueue_failed":          true,
}

// AllowedSearchStatuses for platewise_search_requests_total.
var AllowedSearchStatuses = map[string]bool{
	"ok":      true,
	"invalid": true,
	"error":   true,
}

// AllowedCacheNames for the cache hit/miss counters.
var AllowedCacheNames = map[string]bool{
	"parsed_query": true,
}

// NormalizeStage returns stage if allowed, otherwise "other".
func NormalizeStage(stage string) string {
	if AllowedPipelineStages[stage] {
		return stage
	}

	return "other"
}

// NormalizeStageStatus returns status if in AllowedStageStatuses, otherwise "other".
func NormalizeStageStatus(status string) string {
	if AllowedStageStatuses[status] {
		return status
	}

	return "other"
}

// NormalizeSearchStatus returns status if in AllowedSearchStatuses, otherwise "other".
func NormalizeSearchStatus(status string) string {
	if AllowedSearchStatuses[status] {
		return status
	}

	return "other"
}

// NormalizeReason returns reason if in allowed, otherwise "other".
func NormalizeReason(reason string, allowed map[string]bool) string {
	if allowed[reason] {
		return reason
	}

	return "other"
}

// NormalizeCacheName returns name if in AllowedCacheNames, otherwise "other".
func NormalizeCacheName(name string) string {
	if AllowedCacheNames[name] {
		return name
	}

	return "other"
}
