package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"enrichment-service/internal/common/errors"
	"enrichment-service/internal/enrichment"
)

// enrichPayload is the wire form of one enrichment request.
type enrichPayload struct {
	EnrichmentType string                 `json:"enrichment_type" validate:"required"`
	MergePolicy    string                 `json:"merge_policy" validate:"required,oneof=enhance merge replace raw"`
	Source         map[string]interface{} `json:"source"`
	Parameters     map[string]interface{} `json:"parameters"`
	TenantID       string                 `json:"tenant_id"`
	RequestID      string                 `json:"request_id"`
	TimeoutMs      int                    `json:"timeout_ms" validate:"gte=0"`
	BypassCache    bool                   `json:"bypass_cache"`
	Condition      string                 `json:"condition"`
	IncludeRaw     bool                   `json:"include_raw"`
}

func (p *enrichPayload) toRequest() enrichment.Request {
	return enrichment.Request{
		EnrichmentType: p.EnrichmentType,
		Policy:         enrichment.MergePolicy(p.MergePolicy),
		Source:         p.Source,
		Parameters:     p.Parameters,
		TenantID:       p.TenantID,
		RequestID:      p.RequestID,
		Timeout:        time.Duration(p.TimeoutMs) * time.Millisecond,
		BypassCache:    p.BypassCache,
		Condition:      p.Condition,
		IncludeRaw:     p.IncludeRaw,
	}
}

type batchPayload struct {
	Requests []enrichPayload `json:"requests"`
}

// Enrich handles POST /api/enrich.
func (h *Handlers) Enrich(w http.ResponseWriter, r *http.Request) {
	var payload enrichPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		h.writeError(w, errors.ValidationError(fmt.Sprintf("invalid JSON body: %v", err)))
		return
	}

	if err := h.validate.Struct(&payload); err != nil {
		h.writeError(w, errors.ValidationError(err.Error()))
		return
	}

	response, err := h.pipeline.EnrichOne(r.Context(), payload.toRequest())
	if err != nil {
		h.writeError(w, err)
		return
	}

	// Failure-shaped responses are still HTTP 200; the outcome lives in the
	// body's success flag.
	h.writeJSON(w, http.StatusOK, response)
}

// EnrichBatch handles POST /api/enrich/batch.
func (h *Handlers) EnrichBatch(w http.ResponseWriter, r *http.Request) {
	var payload batchPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		h.writeError(w, errors.ValidationError(fmt.Sprintf("invalid JSON body: %v", err)))
		return
	}

	if payload.Requests == nil {
		h.writeError(w, errors.ValidationError("requests is required"))
		return
	}

	// Per-item validation happens inside the batch so one malformed item
	// settles at its position instead of rejecting the whole call.
	requests := make([]enrichment.Request, len(payload.Requests))
	for i, item := range payload.Requests {
		requests[i] = item.toRequest()
	}

	responses, err := h.pipeline.EnrichBatch(r.Context(), requests)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"responses": responses,
		"count":     len(responses),
	})
}
