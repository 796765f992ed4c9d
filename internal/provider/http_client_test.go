package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"enrichment-service/internal/enrichment"
)

func testRequest() enrichment.Request {
	return enrichment.Request{
		EnrichmentType: "company_profile",
		Policy:         enrichment.PolicyEnhance,
		Parameters:     map[string]interface{}{"domain": "acme.com"},
		TenantID:       "t1",
	}
}

func TestNewHTTPClient(t *testing.T) {
	t.Run("requires config", func(t *testing.T) {
		_, err := NewHTTPClient(nil)
		assert.Error(t, err)
	})

	t.Run("requires URL", func(t *testing.T) {
		_, err := NewHTTPClient(&HTTPConfig{})
		assert.Error(t, err)
	})

	t.Run("applies defaults", func(t *testing.T) {
		config := &HTTPConfig{URL: "http://provider.local/enrich"}
		client, err := NewHTTPClient(config)
		require.NoError(t, err)

		assert.Equal(t, "default", client.Name())
		assert.Equal(t, http.MethodPost, config.Method)
		assert.Equal(t, 30*time.Second, config.Timeout)
		assert.Equal(t, 3, config.MaxRetries)
	})
}

func TestHTTPClient_Fetch(t *testing.T) {
	t.Run("decodes payload and posts identity", func(t *testing.T) {
		var received map[string]interface{}
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
			json.NewEncoder(w).Encode(map[string]interface{}{"name": "Acme Corp"})
		}))
		defer server.Close()

		client, err := NewHTTPClient(&HTTPConfig{Name: "test", URL: server.URL})
		require.NoError(t, err)

		payload, err := client.Fetch(context.Background(), testRequest())
		require.NoError(t, err)

		assert.Equal(t, "Acme Corp", payload["name"])
		assert.Equal(t, "company_profile", received["enrichment_type"])
		assert.Equal(t, "t1", received["tenant_id"])
	})

	t.Run("retries server errors", func(t *testing.T) {
		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) < 3 {
				w.WriteHeader(http.StatusBadGateway)
				return
			}
			json.NewEncoder(w).Encode(map[string]interface{}{"name": "Acme Corp"})
		}))
		defer server.Close()

		client, err := NewHTTPClient(&HTTPConfig{URL: server.URL, MaxRetries: 3})
		require.NoError(t, err)

		payload, err := client.Fetch(context.Background(), testRequest())
		require.NoError(t, err)
		assert.Equal(t, "Acme Corp", payload["name"])
		assert.Equal(t, int32(3), calls.Load())
	})

	t.Run("does not retry client rejections", func(t *testing.T) {
		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusUnprocessableEntity)
		}))
		defer server.Close()

		client, err := NewHTTPClient(&HTTPConfig{URL: server.URL, MaxRetries: 3})
		require.NoError(t, err)

		_, err = client.Fetch(context.Background(), testRequest())
		require.Error(t, err)
		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("applies bearer auth", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
			json.NewEncoder(w).Encode(map[string]interface{}{})
		}))
		defer server.Close()

		client, err := NewHTTPClient(&HTTPConfig{
			URL:  server.URL,
			Auth: &AuthConfig{Type: "bearer", Token: "secret"},
		})
		require.NoError(t, err)

		_, err = client.Fetch(context.Background(), testRequest())
		require.NoError(t, err)
	})

	t.Run("applies api key auth with default header", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "k-123", r.Header.Get("X-API-Key"))
			json.NewEncoder(w).Encode(map[string]interface{}{})
		}))
		defer server.Close()

		client, err := NewHTTPClient(&HTTPConfig{
			URL:  server.URL,
			Auth: &AuthConfig{Type: "api_key", APIKey: "k-123"},
		})
		require.NoError(t, err)

		_, err = client.Fetch(context.Background(), testRequest())
		require.NoError(t, err)
	})

	t.Run("honors context cancellation", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(200 * time.Millisecond)
			json.NewEncoder(w).Encode(map[string]interface{}{})
		}))
		defer server.Close()

		client, err := NewHTTPClient(&HTTPConfig{URL: server.URL, MaxRetries: 1})
		require.NoError(t, err)

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()

		_, err = client.Fetch(ctx, testRequest())
		assert.Error(t, err)
	})
}

func TestIdentityMapper(t *testing.T) {
	payload := map[string]interface{}{"name": "Acme"}
	got, err := IdentityMapper.Map(payload)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}
