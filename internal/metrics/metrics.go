// Package metrics provides fire-and-forget counters for the enrichment
// pipeline. Sinks are purely observational; no component changes behavior
// based on them.
package metrics

import (
	"sync"
	"sync/atomic"
)

// Sink receives pipeline observations.
type Sink interface {
	CacheHit()
	CacheMiss()
	ProviderCall()
	ProviderError()
	FieldsEnriched(count int)
	BatchSize(size int)
}

// Registry is the in-memory Sink used by the stats endpoint and the
// periodic reporter. All counters are atomic; Snapshot is safe to call
// concurrently with updates.
type Registry struct {
	cacheHits      atomic.Int64
	cacheMisses    atomic.Int64
	providerCalls  atomic.Int64
	providerErrors atomic.Int64
	fieldsEnriched atomic.Int64

	mu           sync.Mutex
	batchCount   int64
	batchMaxSize int
	batchTotal   int64
}

// NewRegistry creates an empty metrics registry.
func NewRegistry() *Registry {
	return &Registry{}
}

func (r *Registry) CacheHit()      { r.cacheHits.Add(1) }
func (r *Registry) CacheMiss()     { r.cacheMisses.Add(1) }
func (r *Registry) ProviderCall()  { r.providerCalls.Add(1) }
func (r *Registry) ProviderError() { r.providerErrors.Add(1) }

func (r *Registry) FieldsEnriched(count int) {
	r.fieldsEnriched.Add(int64(count))
}

func (r *Registry) BatchSize(size int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batchCount++
	r.batchTotal += int64(size)
	if size > r.batchMaxSize {
		r.batchMaxSize = size
	}
}

// Snapshot is a point-in-time view of the counters.
type Snapshot struct {
	CacheHits      int64   `json:"cache_hits"`
	CacheMisses    int64   `json:"cache_misses"`
	CacheHitRate   float64 `json:"cache_hit_rate"`
	ProviderCalls  int64   `json:"provider_calls"`
	ProviderErrors int64   `json:"provider_errors"`
	FieldsEnriched int64   `json:"fields_enriched"`
	Batches        int64   `json:"batches"`
	BatchMaxSize   int     `json:"batch_max_size"`
	BatchAvgSize   float64 `json:"batch_avg_size"`
}

// Snapshot returns the current counter values.
func (r *Registry) Snapshot() Snapshot {
	hits := r.cacheHits.Load()
	misses := r.cacheMisses.Load()

	s := Snapshot{
		CacheHits:      hits,
		CacheMisses:    misses,
		ProviderCalls:  r.providerCalls.Load(),
		ProviderErrors: r.providerErrors.Load(),
		FieldsEnriched: r.fieldsEnriched.Load(),
	}

	if total := hits + misses; total > 0 {
		s.CacheHitRate = float64(hits) / float64(total)
	}

	r.mu.Lock()
	s.Batches = r.batchCount
	s.BatchMaxSize = r.batchMaxSize
	if r.batchCount > 0 {
		s.BatchAvgSize = float64(r.batchTotal) / float64(r.batchCount)
	}
	r.mu.Unlock()

	return s
}

var _ Sink = (*Registry)(nil)

// Noop discards all observations.
type Noop struct{}

func (Noop) CacheHit()          {}
func (Noop) CacheMiss()         {}
func (Noop) ProviderCall()      {}
func (Noop) ProviderError()     {}
func (Noop) FieldsEnriched(int) {}
func (Noop) BatchSize(int)      {}

var _ Sink = Noop{}
