// Package cachekey builds deterministic, tenant-qualified cache keys for
// enrichment requests. Two requests with the same tenant, provider,
// enrichment type and parameter content always produce the same key;
// requests under different tenants never share a key.
package cachekey

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
)

const (
	keyPrefix  = "enrich"
	keyVersion = "v1"

	// sentinelTenant stands in for an absent tenant. It is a distinct,
	// fixed namespace, not a wildcard.
	sentinelTenant = "_default"
)

// Builder computes canonical cache keys. It is stateless and safe for
// concurrent use.
type Builder struct{}

// NewBuilder creates a key builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// Build returns the canonical key for (tenant, provider, enrichmentType,
// parameters). The tenant is embedded as a literal key segment so
// cross-tenant collisions are structurally impossible even if the parameter
// hash were to collide. Pure: no I/O, no clock, no randomness.
func (b *Builder) Build(tenant, provider, enrichmentType string, parameters map[string]interface{}) string {
	if tenant == "" {
		tenant = sentinelTenant
	}

	return fmt.Sprintf("%s:%s:%s:%s:%s:%s",
		keyPrefix,
		keyVersion,
		segment(tenant),
		segment(provider),
		segment(enrichmentType),
		hashParameters(parameters),
	)
}

// segment escapes a key segment so embedded separators cannot shift segment
// boundaries between keys.
func segment(s string) string {
	return url.QueryEscape(s)
}

// hashParameters hashes the canonical form of the parameter map. The
// canonical form sorts entries by key at every nesting level, so insertion
// order never influences the key.
func hashParameters(parameters map[string]interface{}) string {
	if len(parameters) == 0 {
		return "none"
	}

	canonical, err := json.Marshal(canonicalize(parameters))
	if err != nil {
		// Parameters that cannot be marshalled still need a stable key;
		// fall back to hashing their formatted form.
		canonical = []byte(fmt.Sprintf("%v", parameters))
	}

	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:])
}

// canonicalize rewrites nested maps into key-sorted slices of pairs so the
// JSON encoding is deterministic regardless of map iteration order.
func canonicalize(value interface{}) interface{} {
	switch v := value.(type) {
	case map[string]interface{}:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		pairs := make([][2]interface{}, 0, len(keys))
		for _, k := range keys {
			pairs = append(pairs, [2]interface{}{k, canonicalize(v[k])})
		}
		return pairs
	case []interface{}:
		items := make([]interface{}, len(v))
		for i, item := range v {
			items[i] = canonicalize(item)
		}
		return items
	default:
		return v
	}
}
