package api

import (
	"time"

	"github.com/leaftrace/anomalyd/internal/database"
	"github.com/leaftrace/anomalyd/internal/services"
)

// ========== Detection Types ==========

// ScanRequest is the request body for POST /api/anomalies/scan.
// An empty scan type scans every domain.
type ScanRequest struct {
	ScanType string `json:"scanType" validate:"omitempty,oneof=all serialization logistics erp compliance maintenance"`
}

// ScanResponse is the response body for a successful scan.
type ScanResponse struct {
	Success       bool                       `json:"success"`
	Detected      int                        `json:"detected"`
	Anomalies     []services.DetectedAnomaly `json:"anomalies"`
	FailedDomains []services.ScanType        `json:"failed_domains,omitempty"`
}

// ========== Workflow Types ==========

// ResolveRequest is the request body for POST /api/anomalies/{id}/resolve.
type ResolveRequest struct {
	ResolutionNotes string `json:"resolution_notes" validate:"max=4000"`
}

// EscalateRequest is the request body for POST /api/anomalies/{id}/escalate.
type EscalateRequest struct {
	EscalationReason string `json:"escalation_reason" validate:"max=4000"`
	EscalatedTo      string `json:"escalated_to" validate:"omitempty,max=255"`
}

// ========== Settings Types ==========

// UpdateDetectionSettingsRequest is the request body for PUT /api/settings/detection.
type UpdateDetectionSettingsRequest struct {
	EnrichmentEnabled        *bool `json:"enrichment_enabled"`
	EnrichmentTimeoutSeconds *int  `json:"enrichment_timeout_seconds" validate:"omitempty,min=1,max=300"`
	ScheduledScanEnabled     *bool `json:"scheduled_scan_enabled"`
	ScanIntervalMinutes      *int  `json:"scan_interval_minutes" validate:"omitempty,min=1,max=1440"`
	NotifyCritical           *bool `json:"notify_critical"`
}

// ========== Pagination Types ==========

// PaginationMeta contains pagination metadata for list responses.
type PaginationMeta struct {
	Page       int   `json:"page"`
	PerPage    int   `json:"per_page"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
}

// PaginatedResponse wraps a list response with pagination metadata.
type PaginatedResponse struct {
	Data       interface{}    `json:"data"`
	Pagination PaginationMeta `json:"pagination"`
}

// ========== Mapper Output Types ==========

// AnomalyListItem is a compact representation of an anomaly for list views.
// It omits the description, metadata and narrative fields.
type AnomalyListItem struct {
	ID                   string                 `json:"id"`
	AnomalyType          database.AnomalyType   `json:"anomaly_type"`
	Severity             database.Severity      `json:"severity"`
	Title                string                 `json:"title"`
	Status               database.AnomalyStatus `json:"status"`
	AffectedResourceType string                 `json:"affected_resource_type"`
	AffectedResourceID   string                 `json:"affected_resource_id"`
	CanAutoResolve       bool                   `json:"can_auto_resolve"`
	HasRootCause         bool                   `json:"has_root_cause"`
	DetectedAt           time.Time              `json:"detected_at"`
	ResolvedAt           *time.Time             `json:"resolved_at,omitempty"`
	EscalatedAt          *time.Time             `json:"escalated_at,omitempty"`
}
