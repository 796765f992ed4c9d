// Package handlers implements the REST API over the enrichment pipeline.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-playground/validator/v10"

	"enrichment-service/internal/common/errors"
	"enrichment-service/internal/common/logging"
	"enrichment-service/internal/metrics"
	"enrichment-service/internal/pipeline"
	"enrichment-service/internal/storage"
)

// Handlers carries the dependencies of the API endpoints.
type Handlers struct {
	pipeline *pipeline.Service
	registry *metrics.Registry

	// history is nil when outcome recording is disabled.
	history storage.Store

	// healthChecks maps component names to their liveness probes.
	healthChecks map[string]func() error

	validate *validator.Validate
	logger   logging.Logger
}

// New creates the API handlers.
func New(pipelineService *pipeline.Service, registry *metrics.Registry, history storage.Store, healthChecks map[string]func() error) *Handlers {
	return &Handlers{
		pipeline:     pipelineService,
		registry:     registry,
		history:      history,
		healthChecks: healthChecks,
		validate:     validator.New(),
		logger:       logging.GetGlobalLogger().WithFields(logging.String("component", "api")),
	}
}

func (h *Handlers) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("failed to encode response", err)
	}
}

// writeError maps application error types onto HTTP status codes.
func (h *Handlers) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch errors.GetType(err) {
	case errors.ErrTypeValidation:
		status = http.StatusBadRequest
	case errors.ErrTypeNotFound:
		status = http.StatusNotFound
	case errors.ErrTypeTimeout:
		status = http.StatusGatewayTimeout
	case errors.ErrTypeProvider:
		status = http.StatusBadGateway
	}

	h.writeJSON(w, status, map[string]interface{}{
		"error": err.Error(),
		"type":  string(errors.GetType(err)),
	})
}
