package handlers

import (
	"net/http"

	"github.com/leaftrace/anomalyd/internal/api"
	"github.com/leaftrace/anomalyd/internal/logging"
	"github.com/leaftrace/anomalyd/internal/middleware"
)

// handleGetDetectionSettings handles GET /api/settings/detection
func (h *APIHandler) handleGetDetectionSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.anomalies.GetSettings()
	if err != nil {
		logging.Errorf("Failed to get detection settings: %v", err)
		api.RespondError(w, http.StatusInternalServerError, "Failed to get detection settings")
		return
	}
	api.RespondJSON(w, http.StatusOK, settings)
}

// handleUpdateDetectionSettings handles PUT /api/settings/detection
func (h *APIHandler) handleUpdateDetectionSettings(w http.ResponseWriter, r *http.Request) {
	var req api.UpdateDetectionSettingsRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		api.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if errs := api.Validate(req); errs != nil {
		api.RespondValidationError(w, errs)
		return
	}

	settings, err := h.anomalies.GetSettings()
	if err != nil {
		logging.Errorf("Failed to get detection settings: %v", err)
		api.RespondError(w, http.StatusInternalServerError, "Failed to get detection settings")
		return
	}

	api.ApplySettingsUpdate(settings, req)

	if err := h.anomalies.UpdateSettings(settings); err != nil {
		logging.Errorf("Failed to update detection settings: %v", err)
		api.RespondError(w, http.StatusInternalServerError, "Failed to update detection settings")
		return
	}

	logging.Infof("Detection settings updated by %s", middleware.Actor(r.Context()))
	api.RespondJSON(w, http.StatusOK, settings)
}
