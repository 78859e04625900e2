package handlers

import (
	"errors"
	"net/http"

	"github.com/leaftrace/anomalyd/internal/api"
	"github.com/leaftrace/anomalyd/internal/logging"
	"github.com/leaftrace/anomalyd/internal/services"
)

// APIHandler handles the anomaly API used by operator consoles
type APIHandler struct {
	detector   *services.DetectorService
	resolution *services.ResolutionService
	anomalies  *services.AnomalyService
	enrichment *services.EnrichmentQueue
}

// NewAPIHandler creates a new API handler. enrichment may be nil.
func NewAPIHandler(detector *services.DetectorService, resolution *services.ResolutionService, anomalies *services.AnomalyService, enrichment *services.EnrichmentQueue) *APIHandler {
	return &APIHandler{
		detector:   detector,
		resolution: resolution,
		anomalies:  anomalies,
		enrichment: enrichment,
	}
}

// SetupRoutes sets up all API routes
func (h *APIHandler) SetupRoutes(mux *http.ServeMux) {
	// Detection
	mux.HandleFunc("POST /api/anomalies/scan", h.handleScan)

	// Queries
	mux.HandleFunc("GET /api/anomalies", h.handleListAnomalies)
	mux.HandleFunc("GET /api/anomalies/stats", h.handleStats)
	mux.HandleFunc("GET /api/anomalies/{id}", h.handleGetAnomaly)
	mux.HandleFunc("GET /api/anomalies/{id}/history", h.handleHistory)

	// Resolution workflow
	mux.HandleFunc("POST /api/anomalies/{id}/investigate", h.handleInvestigate)
	mux.HandleFunc("POST /api/anomalies/{id}/resolve", h.handleResolve)
	mux.HandleFunc("POST /api/anomalies/{id}/escalate", h.handleEscalate)
	mux.HandleFunc("POST /api/anomalies/{id}/auto-resolve", h.handleAutoResolve)

	// Detection settings
	mux.HandleFunc("GET /api/settings/detection", h.handleGetDetectionSettings)
	mux.HandleFunc("PUT /api/settings/detection", h.handleUpdateDetectionSettings)
}

// anomalyID reads the {id} path value, answering 404 when it cannot name an anomaly
func anomalyID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, ok := api.PathID(r)
	if !ok {
		api.RespondErrorWithCode(w, http.StatusNotFound, services.CodeNotFound, "anomaly not found")
	}
	return id, ok
}

// respondServiceError maps workflow rejections to HTTP statuses
func respondServiceError(w http.ResponseWriter, err error, fallback string) {
	var te *services.TransitionError
	if errors.As(err, &te) {
		switch te.Code {
		case services.CodeNotFound:
			api.RespondErrorWithCode(w, http.StatusNotFound, te.Code, te.Message)
		case services.CodeValidation:
			api.RespondErrorWithCode(w, http.StatusUnprocessableEntity, te.Code, te.Message)
		default:
			api.RespondErrorWithCode(w, http.StatusConflict, te.Code, te.Message)
		}
		return
	}

	logging.Errorf("%s: %v", fallback, err)
	api.RespondError(w, http.StatusInternalServerError, fallback)
}
