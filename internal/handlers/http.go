package handlers

import (
	"context"
	"net/http"
	"time"

	"gorm.io/gorm"

	"github.com/leaftrace/anomalyd/internal/api"
	"github.com/leaftrace/anomalyd/internal/database"
)

// Version is reported by the health endpoint
var Version = "dev"

// LiveFeed serves the websocket event stream
type LiveFeed interface {
	http.Handler
	ClientCount() int
}

// HTTPHandler handles health and live-feed endpoints
type HTTPHandler struct {
	db   *gorm.DB
	feed LiveFeed
}

// NewHTTPHandler creates a new HTTP handler. feed may be nil.
func NewHTTPHandler(db *gorm.DB, feed LiveFeed) *HTTPHandler {
	return &HTTPHandler{
		db:   db,
		feed: feed,
	}
}

// SetupRoutes configures all HTTP routes
func (h *HTTPHandler) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.handleHealth)
	if h.feed != nil {
		mux.Handle("GET /ws/anomalies", h.feed)
	}
}

// handleHealth reports liveness and database reachability
func (h *HTTPHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	response := map[string]interface{}{
		"status":   "ok",
		"version":  Version,
		"database": "ok",
	}
	if h.feed != nil {
		response["live_clients"] = h.feed.ClientCount()
	}
	status := http.StatusOK

	if h.db == nil {
		response["status"] = "degraded"
		response["database"] = "not configured"
		status = http.StatusServiceUnavailable
	} else if err := database.Ping(ctx, h.db); err != nil {
		response["status"] = "degraded"
		response["database"] = "unreachable"
		status = http.StatusServiceUnavailable
	}

	api.RespondJSON(w, status, response)
}
