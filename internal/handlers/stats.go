package handlers

import (
	"net/http"
	"strconv"
)

// Stats handles GET /api/stats: in-process pipeline counters plus, when
// history is enabled, aggregates over the recorded outcomes.
func (h *Handlers) Stats(w http.ResponseWriter, r *http.Request) {
	body := map[string]interface{}{
		"pipeline": h.registry.Snapshot(),
	}

	if h.history != nil {
		stats, err := h.history.Stats(r.Context())
		if err != nil {
			h.writeError(w, err)
			return
		}
		body["history"] = stats
	}

	h.writeJSON(w, http.StatusOK, body)
}

// History handles GET /api/history?limit=N, newest first.
func (h *Handlers) History(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		h.writeJSON(w, http.StatusOK, map[string]interface{}{
			"enabled": false,
			"records": []interface{}{},
		})
		return
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err == nil && parsed > 0 && parsed <= 1000 {
			limit = parsed
		}
	}

	records, err := h.history.Recent(r.Context(), limit)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"enabled": true,
		"records": records,
		"count":   len(records),
	})
}

// Health handles GET /health. Any failing component turns the response 503.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	components := make(map[string]string, len(h.healthChecks))

	for name, check := range h.healthChecks {
		if err := check(); err != nil {
			components[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		components[name] = "ok"
	}

	body := map[string]interface{}{
		"status":     "ok",
		"components": components,
	}
	if status != http.StatusOK {
		body["status"] = "degraded"
	}

	h.writeJSON(w, status, body)
}
