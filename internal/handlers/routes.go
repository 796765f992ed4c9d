package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"enrichment-service/internal/middleware"
)

// Router builds the API router with request logging applied to every route.
func (h *Handlers) Router() *mux.Router {
	router := mux.NewRouter()
	router.Use(middleware.Logging)

	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/enrich", h.Enrich).Methods(http.MethodPost)
	api.HandleFunc("/enrich/batch", h.EnrichBatch).Methods(http.MethodPost)
	api.HandleFunc("/stats", h.Stats).Methods(http.MethodGet)
	api.HandleFunc("/history", h.History).Methods(http.MethodGet)

	router.HandleFunc("/health", h.Health).Methods(http.MethodGet)

	return router
}
