package database

import "time"

// ResolutionAction is the kind of lifecycle event recorded in the audit trail
type ResolutionAction string

const (
	ResolutionActionDetected     ResolutionAction = "detected"
	ResolutionActionInvestigated ResolutionAction = "investigated"
	ResolutionActionResolved     ResolutionAction = "resolved"
	ResolutionActionEscalated    ResolutionAction = "escalated"
)

// ResultingStatus returns the anomaly status implied by this action
func (a ResolutionAction) ResultingStatus() AnomalyStatus {
	switch a {
	case ResolutionActionInvestigated:
		return AnomalyStatusInvestigating
	case ResolutionActionResolved:
		return AnomalyStatusResolved
	case ResolutionActionEscalated:
		return AnomalyStatusEscalated
	default:
		return AnomalyStatusOpen
	}
}

// ResolutionHistoryEntry is an append-only audit record owned by one anomaly.
// Entries are never updated or deleted; the latest entry's action always
// implies the anomaly's current status.
type ResolutionHistoryEntry struct {
	ID          uint             `gorm:"primaryKey" json:"id"`
	AnomalyID   string           `gorm:"type:varchar(36);not null;index" json:"anomaly_id"`
	Action      ResolutionAction `gorm:"type:varchar(20);not null" json:"action"`
	Notes       string           `gorm:"type:text" json:"notes,omitempty"`
	PerformedAt time.Time        `gorm:"not null" json:"performed_at"`
	PerformedBy string           `gorm:"type:varchar(128);not null" json:"performed_by"` // 'system' for detector runs, otherwise the operator username

	// Belongs to Anomaly
	Anomaly Anomaly `gorm:"foreignKey:AnomalyID" json:"-"`
}

func (ResolutionHistoryEntry) TableName() string {
	return "anomaly_resolution_history"
}
