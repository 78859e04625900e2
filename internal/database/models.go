package database

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AnomalyType identifies the detection rule that produced an anomaly
type AnomalyType string

const (
	AnomalyTypeMissingSerial         AnomalyType = "missing_serial"
	AnomalyTypeDelayedShipment       AnomalyType = "delayed_shipment"
	AnomalyTypeERPSyncFailure        AnomalyType = "erp_sync_failure"
	AnomalyTypeComplianceSyncFailure AnomalyType = "compliance_sync_failure"
	AnomalyTypeOverdueMaintenance    AnomalyType = "overdue_maintenance"
)

// KnownAnomalyTypes returns the anomaly types produced by the built-in rules
func KnownAnomalyTypes() []AnomalyType {
	return []AnomalyType{
		AnomalyTypeMissingSerial,
		AnomalyTypeDelayedShipment,
		AnomalyTypeERPSyncFailure,
		AnomalyTypeComplianceSyncFailure,
		AnomalyTypeOverdueMaintenance,
	}
}

// Severity is the coarse urgency classification fixed at detection time
type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// IsValidSeverity reports whether s is one of the four severity levels
func IsValidSeverity(s string) bool {
	switch Severity(s) {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

// AnomalyStatus represents the lifecycle state of an anomaly
type AnomalyStatus string

const (
	AnomalyStatusOpen          AnomalyStatus = "open"
	AnomalyStatusInvestigating AnomalyStatus = "investigating"
	AnomalyStatusResolved      AnomalyStatus = "resolved"
	AnomalyStatusEscalated     AnomalyStatus = "escalated"
)

// IsTerminal returns true for states that accept no further transitions
func (s AnomalyStatus) IsTerminal() bool {
	return s == AnomalyStatusResolved || s == AnomalyStatusEscalated
}

// IsValidAnomalyStatus reports whether s is a known lifecycle state
func IsValidAnomalyStatus(s string) bool {
	switch AnomalyStatus(s) {
	case AnomalyStatusOpen, AnomalyStatusInvestigating, AnomalyStatusResolved, AnomalyStatusEscalated:
		return true
	}
	return false
}

// Anomaly is one detected rule violation. Severity and type are fixed at
// creation; re-scanning inserts new rows instead of updating existing ones.
type Anomaly struct {
	ID                   string        `gorm:"primaryKey;type:varchar(36)" json:"id"`
	AnomalyType          AnomalyType   `gorm:"type:varchar(64);not null;index" json:"anomaly_type"`
	Severity             Severity      `gorm:"type:varchar(16);not null;index" json:"severity"`
	Title                string        `gorm:"type:varchar(255);not null" json:"title"`
	Description          string        `gorm:"type:text" json:"description"`
	SuggestedResolution  string        `gorm:"type:text" json:"suggested_resolution"`
	AffectedResourceType string        `gorm:"type:varchar(64);index:idx_anomaly_resource" json:"affected_resource_type"`
	AffectedResourceID   string        `gorm:"type:varchar(64);index:idx_anomaly_resource" json:"affected_resource_id"` // Lookup only, no ownership
	Status               AnomalyStatus `gorm:"type:varchar(20);not null;default:'open';index" json:"status"`
	Metadata             Metadata      `gorm:"type:jsonb" json:"metadata"`
	AIRootCause          *string       `gorm:"type:text" json:"ai_root_cause,omitempty"`
	RootCause            *string       `gorm:"type:text" json:"root_cause,omitempty"`
	ResolutionApplied    string        `gorm:"type:text" json:"resolution_applied,omitempty"`
	EscalationReason     string        `gorm:"type:text" json:"escalation_reason,omitempty"`
	EscalatedTo          string        `gorm:"type:varchar(255)" json:"escalated_to,omitempty"`
	DetectedAt           time.Time     `gorm:"not null;index" json:"detected_at"`
	ResolvedAt           *time.Time    `json:"resolved_at,omitempty"`
	EscalatedAt          *time.Time    `json:"escalated_at,omitempty"`
	CreatedAt            time.Time     `json:"created_at"`
	UpdatedAt            time.Time     `json:"updated_at"`
}

// BeforeCreate assigns the identifier and detection time when missing
func (a *Anomaly) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.DetectedAt.IsZero() {
		a.DetectedAt = time.Now()
	}
	if a.Status == "" {
		a.Status = AnomalyStatusOpen
	}
	return nil
}

// CanAutoResolve reports the auto-resolvability captured at detection
func (a *Anomaly) CanAutoResolve() bool {
	return a.Metadata.CanAutoResolve
}

func (Anomaly) TableName() string {
	return "anomaly_logs"
}

// GetSeverityEmoji returns a Slack emoji for the anomaly severity
func GetSeverityEmoji(severity Severity) string {
	switch severity {
	case SeverityCritical:
		return ":red_circle:"
	case SeverityHigh:
		return ":large_orange_circle:"
	case SeverityMedium:
		return ":large_yellow_circle:"
	case SeverityLow:
		return ":large_blue_circle:"
	default:
		return ":white_circle:"
	}
}
