package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"enrichment-service/internal/cache"
	"enrichment-service/internal/enrichment"
	"enrichment-service/internal/metrics"
	"enrichment-service/internal/pipeline"
	"enrichment-service/internal/resultcache"
	"enrichment-service/internal/storage"
)

// staticClient is a fixed-payload provider for handler tests.
type staticClient struct {
	payload map[string]interface{}
	err     error
}

func (c *staticClient) Name() string { return "test-provider" }

func (c *staticClient) Fetch(ctx context.Context, req enrichment.Request) (map[string]interface{}, error) {
	if c.err != nil {
		return nil, c.err
	}
	return c.payload, nil
}

func newTestHandlers(t *testing.T, client *staticClient) *Handlers {
	t.Helper()

	store := cache.NewLocalStore(time.Minute, time.Minute)
	registry := metrics.NewRegistry()

	history, err := storage.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { history.Close() })

	service, err := pipeline.NewService(pipeline.Options{
		Provider: client,
		Cache:    resultcache.New(store, time.Minute, true),
		Metrics:  registry,
		History:  history,
	})
	require.NoError(t, err)

	return New(service, registry, history, map[string]func() error{
		"cache":   store.Health,
		"history": history.Health,
	})
}

func postJSON(t *testing.T, router http.Handler, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)
	return recorder
}

func TestHandlers_Enrich(t *testing.T) {
	client := &staticClient{payload: map[string]interface{}{
		"name":    "Acme Corp",
		"address": "123 Main St",
	}}
	router := newTestHandlers(t, client).Router()

	t.Run("enriches a valid request", func(t *testing.T) {
		recorder := postJSON(t, router, "/api/enrich", map[string]interface{}{
			"enrichment_type": "company_profile",
			"merge_policy":    "enhance",
			"source":          map[string]interface{}{"name": "Acme"},
			"parameters":      map[string]interface{}{"domain": "acme.com"},
		})
		require.Equal(t, http.StatusOK, recorder.Code)

		var response enrichment.Response
		require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &response))
		assert.True(t, response.Success)
		assert.Equal(t, 1, response.FieldsEnriched)
		assert.Equal(t, "test-provider", response.ProviderName)

		data := response.Data.(map[string]interface{})
		assert.Equal(t, "Acme", data["name"])
		assert.Equal(t, "123 Main St", data["address"])
	})

	t.Run("rejects malformed JSON", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/enrich", bytes.NewBufferString("{"))
		recorder := httptest.NewRecorder()
		router.ServeHTTP(recorder, req)
		assert.Equal(t, http.StatusBadRequest, recorder.Code)
	})

	t.Run("rejects missing enrichment type", func(t *testing.T) {
		recorder := postJSON(t, router, "/api/enrich", map[string]interface{}{
			"merge_policy": "enhance",
		})
		assert.Equal(t, http.StatusBadRequest, recorder.Code)
	})

	t.Run("rejects unknown merge policy", func(t *testing.T) {
		recorder := postJSON(t, router, "/api/enrich", map[string]interface{}{
			"enrichment_type": "company_profile",
			"merge_policy":    "upsert",
		})
		assert.Equal(t, http.StatusBadRequest, recorder.Code)
	})

	t.Run("provider failure is a 200 with success false", func(t *testing.T) {
		failing := &staticClient{err: fmt.Errorf("provider down")}
		failingRouter := newTestHandlers(t, failing).Router()

		recorder := postJSON(t, failingRouter, "/api/enrich", map[string]interface{}{
			"enrichment_type": "company_profile",
			"merge_policy":    "enhance",
			"parameters":      map[string]interface{}{"domain": "acme.com"},
		})
		require.Equal(t, http.StatusOK, recorder.Code)

		var response enrichment.Response
		require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &response))
		assert.False(t, response.Success)
		assert.NotEmpty(t, response.Error)
	})
}

func TestHandlers_EnrichBatch(t *testing.T) {
	client := &staticClient{payload: map[string]interface{}{"name": "Acme Corp"}}
	router := newTestHandlers(t, client).Router()

	t.Run("returns one response per item in order", func(t *testing.T) {
		recorder := postJSON(t, router, "/api/enrich/batch", map[string]interface{}{
			"requests": []map[string]interface{}{
				{
					"enrichment_type": "company_profile",
					"merge_policy":    "enhance",
					"parameters":      map[string]interface{}{"domain": "acme.com"},
				},
				{
					"merge_policy": "enhance", // missing type
				},
			},
		})
		require.Equal(t, http.StatusOK, recorder.Code)

		var body struct {
			Responses []enrichment.Response `json:"responses"`
			Count     int                   `json:"count"`
		}
		require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
		require.Equal(t, 2, body.Count)

		assert.True(t, body.Responses[0].Success)
		assert.False(t, body.Responses[1].Success)
	})

	t.Run("requires the requests field", func(t *testing.T) {
		recorder := postJSON(t, router, "/api/enrich/batch", map[string]interface{}{})
		assert.Equal(t, http.StatusBadRequest, recorder.Code)
	})
}

func TestHandlers_Stats(t *testing.T) {
	client := &staticClient{payload: map[string]interface{}{"name": "Acme Corp"}}
	handlers := newTestHandlers(t, client)
	router := handlers.Router()

	postJSON(t, router, "/api/enrich", map[string]interface{}{
		"enrichment_type": "company_profile",
		"merge_policy":    "enhance",
		"parameters":      map[string]interface{}{"domain": "acme.com"},
	})

	req := httptest.NewRequest(http.MethodGet, "/api/stats", nil)
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)
	require.Equal(t, http.StatusOK, recorder.Code)

	var body struct {
		Pipeline metrics.Snapshot `json:"pipeline"`
		History  storage.Stats    `json:"history"`
	}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
	assert.Equal(t, int64(1), body.Pipeline.ProviderCalls)
	assert.Equal(t, int64(1), body.History.TotalRequests)
}

func TestHandlers_History(t *testing.T) {
	client := &staticClient{payload: map[string]interface{}{"name": "Acme Corp"}}
	router := newTestHandlers(t, client).Router()

	postJSON(t, router, "/api/enrich", map[string]interface{}{
		"enrichment_type": "company_profile",
		"merge_policy":    "enhance",
		"parameters":      map[string]interface{}{"domain": "acme.com"},
	})

	req := httptest.NewRequest(http.MethodGet, "/api/history?limit=10", nil)
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)
	require.Equal(t, http.StatusOK, recorder.Code)

	var body struct {
		Enabled bool                       `json:"enabled"`
		Records []storage.EnrichmentRecord `json:"records"`
	}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
	assert.True(t, body.Enabled)
	require.Len(t, body.Records, 1)
	assert.Equal(t, "company_profile", body.Records[0].EnrichmentType)
}

func TestHandlers_Health(t *testing.T) {
	client := &staticClient{payload: map[string]interface{}{}}

	t.Run("healthy components", func(t *testing.T) {
		router := newTestHandlers(t, client).Router()

		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		recorder := httptest.NewRecorder()
		router.ServeHTTP(recorder, req)
		assert.Equal(t, http.StatusOK, recorder.Code)
	})

	t.Run("failing component degrades", func(t *testing.T) {
		handlers := newTestHandlers(t, client)
		handlers.healthChecks["cache"] = func() error { return fmt.Errorf("connection refused") }

		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		recorder := httptest.NewRecorder()
		handlers.Router().ServeHTTP(recorder, req)
		assert.Equal(t, http.StatusServiceUnavailable, recorder.Code)

		var body struct {
			Status string `json:"status"`
		}
		require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
		assert.Equal(t, "degraded", body.Status)
	})
}
