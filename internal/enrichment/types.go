// Package enrichment defines the request/response model shared by the
// enrichment pipeline, the merge engine and the REST surface.
package enrichment

import (
	"fmt"
	"strings"
	"time"

	"enrichment-service/internal/common/errors"
	"enrichment-service/internal/common/validation"
)

// MergePolicy governs how provider data and caller-supplied source data combine.
type MergePolicy string

const (
	// PolicyEnhance keeps populated source fields and only fills gaps from
	// the provider.
	PolicyEnhance MergePolicy = "enhance"
	// PolicyMerge lets the provider win wherever it supplies a value.
	PolicyMerge MergePolicy = "merge"
	// PolicyReplace discards the source and takes the mapped provider object.
	PolicyReplace MergePolicy = "replace"
	// PolicyRaw returns the provider's unmapped payload verbatim.
	PolicyRaw MergePolicy = "raw"
)

// ParseMergePolicy converts a string into a MergePolicy.
func ParseMergePolicy(s string) (MergePolicy, error) {
	policy := MergePolicy(strings.ToLower(strings.TrimSpace(s)))
	if !policy.Valid() {
		return "", errors.ValidationError(fmt.Sprintf("unknown merge policy: %q", s))
	}
	return policy, nil
}

// Valid reports whether the policy is one of the four known policies.
func (p MergePolicy) Valid() bool {
	switch p {
	case PolicyEnhance, PolicyMerge, PolicyReplace, PolicyRaw:
		return true
	}
	return false
}

func (p MergePolicy) String() string {
	return string(p)
}

// MergePolicies lists the accepted policy names.
var MergePolicies = []string{
	string(PolicyEnhance),
	string(PolicyMerge),
	string(PolicyReplace),
	string(PolicyRaw),
}

// Request describes one enrichment to perform. Requests are treated as
// immutable once constructed; WithDefaults returns a copy rather than
// mutating in place.
type Request struct {
	// EnrichmentType names the integration to invoke (e.g. "company_profile").
	EnrichmentType string `json:"enrichment_type"`

	// Policy selects how provider data combines with Source.
	Policy MergePolicy `json:"merge_policy"`

	// Source is the caller-supplied object to enrich. May be nil.
	Source map[string]interface{} `json:"source,omitempty"`

	// Parameters identify the entity at the provider. Key order is irrelevant.
	Parameters map[string]interface{} `json:"parameters,omitempty"`

	// TenantID isolates cached results between callers. Empty means no
	// isolation; the cache key builder substitutes a fixed sentinel.
	TenantID string `json:"tenant_id,omitempty"`

	// RequestID correlates the response with this request. Generated when absent.
	RequestID string `json:"request_id,omitempty"`

	// Timeout bounds this request's pipeline execution. Zero means no
	// per-request timeout.
	Timeout time.Duration `json:"timeout,omitempty"`

	// BypassCache skips both the cache lookup and the cache write.
	BypassCache bool `json:"bypass_cache,omitempty"`

	// Condition optionally gates the enrichment with a boolean expression
	// over Source. When it evaluates false the provider is not called.
	Condition string `json:"condition,omitempty"`

	// IncludeRaw requests the unmapped provider payload on the response.
	IncludeRaw bool `json:"include_raw,omitempty"`
}

// WithDefaults returns a copy of the request with a generated request ID if
// none was supplied.
func (r Request) WithDefaults(generateID func() string) Request {
	if r.RequestID == "" {
		r.RequestID = generateID()
	}
	return r
}

// Validate checks the request before any I/O happens.
func (r *Request) Validate() error {
	v := validation.NewValidator().
		RequireString(r.EnrichmentType, "enrichment_type").
		RequireOneOf(string(r.Policy), MergePolicies, "merge_policy").
		RequireNonNegative(int(r.Timeout), "timeout")

	if err := v.Error(); err != nil {
		return errors.ValidationError(err.Error())
	}
	return nil
}

// Response is the outcome of one enrichment. Produced once, never mutated
// after construction.
type Response struct {
	Success        bool                   `json:"success"`
	Data           interface{}            `json:"data,omitempty"`
	FieldsEnriched int                    `json:"fields_enriched"`
	ProviderName   string                 `json:"provider_name,omitempty"`
	EnrichmentType string                 `json:"enrichment_type"`
	PolicyUsed     MergePolicy            `json:"merge_policy"`
	Message        string                 `json:"message,omitempty"`
	Error          string                 `json:"error,omitempty"`
	Confidence     *float64               `json:"confidence,omitempty"`
	Cost           *float64               `json:"cost,omitempty"`
	Currency       string                 `json:"currency,omitempty"`
	Metadata       map[string]string      `json:"metadata,omitempty"`
	Timestamp      time.Time              `json:"timestamp"`
	RequestID      string                 `json:"request_id"`
	RawPayload     map[string]interface{} `json:"raw_payload,omitempty"`
}

// NewFailureResponse builds the failure-shaped response the pipeline returns
// instead of propagating provider or mapping errors.
func NewFailureResponse(req Request, providerName string, err error) *Response {
	return &Response{
		Success:        false,
		EnrichmentType: req.EnrichmentType,
		PolicyUsed:     req.Policy,
		ProviderName:   providerName,
		Message:        "enrichment failed",
		Error:          err.Error(),
		Timestamp:      time.Now().UTC(),
		RequestID:      req.RequestID,
	}
}

// WithMetadata returns a copy of the response carrying an extra metadata
// entry. The receiver is left untouched so cached responses stay immutable.
func (r Response) WithMetadata(key, value string) *Response {
	metadata := make(map[string]string, len(r.Metadata)+1)
	for k, v := range r.Metadata {
		metadata[k] = v
	}
	metadata[key] = value
	r.Metadata = metadata
	return &r
}
