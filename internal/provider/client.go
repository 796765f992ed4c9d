// Package provider defines the client contract for external enrichment
// providers and ships an HTTP implementation with retry, rate limiting and
// circuit breaking.
package provider

import (
	"context"

	"enrichment-service/internal/enrichment"
)

// Client fetches raw provider payloads for enrichment requests. The payload
// is the provider's unmapped document; mapping into the target shape happens
// in the pipeline via the integration's Mapper.
type Client interface {
	// Name is the logical provider name embedded in cache keys and responses.
	Name() string
	// Fetch retrieves the raw payload for the request. Implementations
	// should honor ctx cancellation and return an error on any failure;
	// the pipeline converts errors into failure responses.
	Fetch(ctx context.Context, req enrichment.Request) (map[string]interface{}, error)
}

// Mapper transforms a raw provider payload into the target document the
// merge engine consumes. Supplied per integration by the embedding
// application.
type Mapper interface {
	Map(payload map[string]interface{}) (map[string]interface{}, error)
}

// MapperFunc adapts a function to the Mapper interface.
type MapperFunc func(payload map[string]interface{}) (map[string]interface{}, error)

func (f MapperFunc) Map(payload map[string]interface{}) (map[string]interface{}, error) {
	return f(payload)
}

// IdentityMapper passes the provider payload through unchanged. Used by
// integrations whose provider already returns the target document.
var IdentityMapper = MapperFunc(func(payload map[string]interface{}) (map[string]interface{}, error) {
	return payload, nil
})
