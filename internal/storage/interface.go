// Package storage persists enrichment outcomes for auditing and the
// history/stats API. Recording is best-effort: a storage failure is logged
// and never fails the request that produced the record.
package storage

import (
	"context"
	"time"
)

// EnrichmentRecord is one enrichment outcome.
type EnrichmentRecord struct {
	ID             string        `json:"id"`
	RequestID      string        `json:"request_id"`
	TenantID       string        `json:"tenant_id"`
	EnrichmentType string        `json:"enrichment_type"`
	MergePolicy    string        `json:"merge_policy"`
	ProviderName   string        `json:"provider_name"`
	Success        bool          `json:"success"`
	CacheHit       bool          `json:"cache_hit"`
	FieldsEnriched int           `json:"fields_enriched"`
	Error          string        `json:"error,omitempty"`
	Duration       time.Duration `json:"duration"`
	CreatedAt      time.Time     `json:"created_at"`
}

// Stats aggregates recorded outcomes.
type Stats struct {
	TotalRequests  int64   `json:"total_requests"`
	Successes      int64   `json:"successes"`
	Failures       int64   `json:"failures"`
	CacheHits      int64   `json:"cache_hits"`
	FieldsEnriched int64   `json:"fields_enriched"`
	AvgDurationMs  float64 `json:"avg_duration_ms"`
}

// Recorder is the pipeline-facing write interface.
type Recorder interface {
	Record(ctx context.Context, record EnrichmentRecord) error
}

// Store is the full history contract consumed by the API handlers.
type Store interface {
	Recorder
	Recent(ctx context.Context, limit int) ([]EnrichmentRecord, error)
	Stats(ctx context.Context) (Stats, error)
	Health() error
	Close() error
}
