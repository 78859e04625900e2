package handlers

import (
	"net/http"

	"github.com/leaftrace/anomalyd/internal/api"
	"github.com/leaftrace/anomalyd/internal/database"
	"github.com/leaftrace/anomalyd/internal/logging"
	"github.com/leaftrace/anomalyd/internal/middleware"
	"github.com/leaftrace/anomalyd/internal/services"
)

// scanFailedMessage is the only detail exposed when a scan fails outright
const scanFailedMessage = "Anomaly detection failed"

// handleScan handles POST /api/anomalies/scan
func (h *APIHandler) handleScan(w http.ResponseWriter, r *http.Request) {
	var req api.ScanRequest
	if err := api.DecodeOptionalJSON(r, &req); err != nil {
		api.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if errs := api.Validate(req); errs != nil {
		api.RespondValidationError(w, errs)
		return
	}

	scanType, err := services.ParseScanType(req.ScanType)
	if err != nil {
		api.RespondValidationError(w, map[string]string{"scanType": err.Error()})
		return
	}

	result, err := h.detector.Scan(r.Context(), scanType, middleware.Actor(r.Context()))
	if err != nil {
		logging.Errorf("Scan %s failed: %v", scanType, err)
		api.RespondError(w, http.StatusInternalServerError, scanFailedMessage)
		return
	}

	anomalies := result.Anomalies
	if anomalies == nil {
		anomalies = []services.DetectedAnomaly{}
	}
	api.RespondJSON(w, http.StatusOK, api.ScanResponse{
		Success:       true,
		Detected:      result.Detected,
		Anomalies:     anomalies,
		FailedDomains: result.FailedDomains,
	})
}

// handleListAnomalies handles GET /api/anomalies
func (h *APIHandler) handleListAnomalies(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := services.AnomalyFilter{
		Status:      database.AnomalyStatus(q.Get("status")),
		Severity:    database.Severity(q.Get("severity")),
		AnomalyType: database.AnomalyType(q.Get("type")),
	}

	errs := map[string]string{}
	if filter.Status != "" && !database.IsValidAnomalyStatus(string(filter.Status)) {
		errs["status"] = "must be one of: open investigating resolved escalated"
	}
	if filter.Severity != "" && !database.IsValidSeverity(string(filter.Severity)) {
		errs["severity"] = "must be one of: LOW MEDIUM HIGH CRITICAL"
	}
	if filter.AnomalyType != "" && !isKnownAnomalyType(filter.AnomalyType) {
		errs["type"] = "unknown anomaly type"
	}
	page, pageErrs := api.ParsePagination(r)
	for field, msg := range pageErrs {
		errs[field] = msg
	}
	if len(errs) > 0 {
		api.RespondValidationError(w, errs)
		return
	}

	filter.Offset = page.Offset()
	filter.Limit = page.PerPage
	logging.Debugf("Listing anomalies %s (status=%q severity=%q type=%q)", page, filter.Status, filter.Severity, filter.AnomalyType)

	anomalies, total, err := h.anomalies.List(r.Context(), filter)
	if err != nil {
		respondServiceError(w, err, "Failed to list anomalies")
		return
	}

	api.RespondPaginated(w, api.AnomaliesToListItems(anomalies), page, total)
}

func isKnownAnomalyType(t database.AnomalyType) bool {
	for _, known := range database.KnownAnomalyTypes() {
		if t == known {
			return true
		}
	}
	return false
}

// handleGetAnomaly handles GET /api/anomalies/{id}
func (h *APIHandler) handleGetAnomaly(w http.ResponseWriter, r *http.Request) {
	id, ok := anomalyID(w, r)
	if !ok {
		return
	}
	anomaly, err := h.anomalies.Get(r.Context(), id)
	if err != nil {
		respondServiceError(w, err, "Failed to get anomaly")
		return
	}
	api.RespondJSON(w, http.StatusOK, anomaly)
}

// handleHistory handles GET /api/anomalies/{id}/history
func (h *APIHandler) handleHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := anomalyID(w, r)
	if !ok {
		return
	}
	entries, err := h.anomalies.History(r.Context(), id)
	if err != nil {
		respondServiceError(w, err, "Failed to get anomaly history")
		return
	}
	if entries == nil {
		entries = []database.ResolutionHistoryEntry{}
	}
	api.RespondJSON(w, http.StatusOK, entries)
}

// StatsResponse is the response body for GET /api/anomalies/stats
type StatsResponse struct {
	*services.AnomalyStats
	Enrichment *services.EnrichmentStats `json:"enrichment,omitempty"`
}

// handleStats handles GET /api/anomalies/stats
func (h *APIHandler) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.anomalies.Stats(r.Context())
	if err != nil {
		respondServiceError(w, err, "Failed to compute anomaly stats")
		return
	}

	resp := StatsResponse{AnomalyStats: stats}
	if h.enrichment != nil {
		es := h.enrichment.Stats()
		resp.Enrichment = &es
	}
	api.RespondJSON(w, http.StatusOK, resp)
}

// handleInvestigate handles POST /api/anomalies/{id}/investigate
func (h *APIHandler) handleInvestigate(w http.ResponseWriter, r *http.Request) {
	id, ok := anomalyID(w, r)
	if !ok {
		return
	}
	anomaly, err := h.resolution.Investigate(r.Context(), id, middleware.Actor(r.Context()))
	if err != nil {
		respondServiceError(w, err, "Failed to start investigation")
		return
	}
	api.RespondJSON(w, http.StatusOK, anomaly)
}

// handleResolve handles POST /api/anomalies/{id}/resolve
func (h *APIHandler) handleResolve(w http.ResponseWriter, r *http.Request) {
	id, ok := anomalyID(w, r)
	if !ok {
		return
	}
	var req api.ResolveRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		api.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if errs := api.Validate(req); errs != nil {
		api.RespondValidationError(w, errs)
		return
	}

	anomaly, err := h.resolution.Resolve(r.Context(), id, req.ResolutionNotes, middleware.Actor(r.Context()))
	if err != nil {
		respondServiceError(w, err, "Failed to resolve anomaly")
		return
	}
	api.RespondJSON(w, http.StatusOK, anomaly)
}

// handleEscalate handles POST /api/anomalies/{id}/escalate
func (h *APIHandler) handleEscalate(w http.ResponseWriter, r *http.Request) {
	id, ok := anomalyID(w, r)
	if !ok {
		return
	}
	var req api.EscalateRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		api.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if errs := api.Validate(req); errs != nil {
		api.RespondValidationError(w, errs)
		return
	}

	anomaly, err := h.resolution.Escalate(r.Context(), id, req.EscalationReason, req.EscalatedTo, middleware.Actor(r.Context()))
	if err != nil {
		respondServiceError(w, err, "Failed to escalate anomaly")
		return
	}
	api.RespondJSON(w, http.StatusOK, anomaly)
}

// handleAutoResolve handles POST /api/anomalies/{id}/auto-resolve
func (h *APIHandler) handleAutoResolve(w http.ResponseWriter, r *http.Request) {
	id, ok := anomalyID(w, r)
	if !ok {
		return
	}
	anomaly, err := h.resolution.AutoResolve(r.Context(), id, middleware.Actor(r.Context()))
	if err != nil {
		respondServiceError(w, err, "Failed to auto-resolve anomaly")
		return
	}
	api.RespondJSON(w, http.StatusOK, anomaly)
}
