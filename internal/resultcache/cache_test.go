package resultcache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"enrichment-service/internal/cache"
	"enrichment-service/internal/enrichment"
)

// flakyStore fails every operation, simulating a backing-store outage.
type flakyStore struct{}

func (f *flakyStore) Get(ctx context.Context, key string) (string, error) {
	return "", fmt.Errorf("connection refused")
}

func (f *flakyStore) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	return fmt.Errorf("connection refused")
}

func (f *flakyStore) Delete(ctx context.Context, key string) error {
	return fmt.Errorf("connection refused")
}

func (f *flakyStore) Health() error { return fmt.Errorf("connection refused") }

func successResponse(id string) *enrichment.Response {
	return &enrichment.Response{
		Success:        true,
		Data:           map[string]interface{}{"name": "Acme"},
		FieldsEnriched: 1,
		EnrichmentType: "company_profile",
		PolicyUsed:     enrichment.PolicyEnhance,
		Timestamp:      time.Now().UTC().Truncate(time.Second),
		RequestID:      id,
	}
}

func TestCache_RoundTrip(t *testing.T) {
	c := New(cache.NewLocalStore(time.Minute, time.Minute), time.Minute, true)
	ctx := context.Background()

	want := successResponse("req-1")
	c.Put(ctx, "k1", want)

	got, hit := c.Get(ctx, "k1")
	require.True(t, hit)
	assert.Equal(t, want.RequestID, got.RequestID)
	assert.Equal(t, want.FieldsEnriched, got.FieldsEnriched)
	assert.True(t, got.Success)
}

func TestCache_MissOnUnknownKey(t *testing.T) {
	c := New(cache.NewLocalStore(time.Minute, time.Minute), time.Minute, true)

	_, hit := c.Get(context.Background(), "unknown")
	assert.False(t, hit)
}

func TestCache_FailureResponsesNeverCached(t *testing.T) {
	c := New(cache.NewLocalStore(time.Minute, time.Minute), time.Minute, true)
	ctx := context.Background()

	failure := &enrichment.Response{
		Success:   false,
		Error:     "provider unavailable",
		RequestID: "req-1",
	}
	c.Put(ctx, "k1", failure)

	_, hit := c.Get(ctx, "k1")
	assert.False(t, hit, "a transient provider failure must not be frozen into the cache")
}

func TestCache_DisabledAlwaysMisses(t *testing.T) {
	c := New(cache.NewLocalStore(time.Minute, time.Minute), time.Minute, false)
	ctx := context.Background()

	c.Put(ctx, "k1", successResponse("req-1"))

	_, hit := c.Get(ctx, "k1")
	assert.False(t, hit)
}

func TestCache_ExpiredEntryIsMiss(t *testing.T) {
	c := New(cache.NewLocalStore(time.Minute, time.Minute), 10*time.Millisecond, true)
	ctx := context.Background()

	c.Put(ctx, "k1", successResponse("req-1"))
	time.Sleep(20 * time.Millisecond)

	_, hit := c.Get(ctx, "k1")
	assert.False(t, hit)
}

func TestCache_OutageDegradesToMiss(t *testing.T) {
	c := New(&flakyStore{}, time.Minute, true)
	ctx := context.Background()

	// Neither read nor write may surface an error.
	c.Put(ctx, "k1", successResponse("req-1"))

	_, hit := c.Get(ctx, "k1")
	assert.False(t, hit)
}

func TestCache_CorruptEntryIsMiss(t *testing.T) {
	store := cache.NewLocalStore(time.Minute, time.Minute)
	ctx := context.Background()
	require.NoError(t, store.Set(ctx, "k1", "{not json", time.Minute))

	c := New(store, time.Minute, true)

	_, hit := c.Get(ctx, "k1")
	assert.False(t, hit)
}

func TestCache_LaterWriteSupersedes(t *testing.T) {
	c := New(cache.NewLocalStore(time.Minute, time.Minute), time.Minute, true)
	ctx := context.Background()

	c.Put(ctx, "k1", successResponse("req-1"))
	c.Put(ctx, "k1", successResponse("req-2"))

	got, hit := c.Get(ctx, "k1")
	require.True(t, hit)
	assert.Equal(t, "req-2", got.RequestID)
}
