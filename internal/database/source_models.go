package database

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Source-domain rows scanned by the detector. These tables are owned by the
// wider platform; the service only reads them. They are migrated here only
// when MIGRATE_SOURCE_TABLES is set (standalone or test deployments).

const (
	BatchStatusApproved     = "approved"
	ShipmentStatusInTransit = "in-transit"
	SyncStatusFailed        = "failed"
	SyncStatusSuccess       = "success"
	VehicleStatusActive     = "active"
)

// ProcurementBatch is a farmer procurement batch awaiting serialization
type ProcurementBatch struct {
	ID                    string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	BatchNumber           string    `gorm:"type:varchar(64);not null" json:"batch_number"`
	Status                string    `gorm:"type:varchar(32);index" json:"status"`
	SerializationComplete bool      `gorm:"default:false" json:"serialization_complete"`
	CreatedAt             time.Time `json:"created_at"`
	UpdatedAt             time.Time `json:"updated_at"`
}

func (ProcurementBatch) TableName() string {
	return "procurement_batches"
}

func (b *ProcurementBatch) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	return nil
}

// Shipment is a vehicle movement between two sites
type Shipment struct {
	ID              string     `gorm:"primaryKey;type:varchar(36)" json:"id"`
	ShipmentNumber  string     `gorm:"type:varchar(64);not null" json:"shipment_number"`
	Status          string     `gorm:"type:varchar(32);index" json:"status"`
	VehicleID       string     `gorm:"type:varchar(36)" json:"vehicle_id,omitempty"`
	Origin          string     `gorm:"type:varchar(255)" json:"origin"`
	Destination     string     `gorm:"type:varchar(255)" json:"destination"`
	ExpectedArrival *time.Time `json:"expected_arrival,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

func (Shipment) TableName() string {
	return "shipments"
}

func (s *Shipment) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}

// SyncLog is one outbound synchronization attempt to an external system
type SyncLog struct {
	ID           string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	System       string    `gorm:"type:varchar(64)" json:"system"`
	Operation    string    `gorm:"type:varchar(128)" json:"operation"`
	Status       string    `gorm:"type:varchar(32);index" json:"status"`
	ErrorMessage string    `gorm:"type:text" json:"error_message,omitempty"`
	CreatedAt    time.Time `gorm:"index" json:"created_at"`
}

func (l *SyncLog) BeforeCreate(tx *gorm.DB) error {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	return nil
}

// ERPSyncLog records ERP synchronization attempts
type ERPSyncLog struct {
	SyncLog
}

func (ERPSyncLog) TableName() string {
	return "erp_sync_logs"
}

// ComplianceSyncLog records compliance-authority synchronization attempts
type ComplianceSyncLog struct {
	SyncLog
}

func (ComplianceSyncLog) TableName() string {
	return "compliance_sync_logs"
}

// Vehicle is a fleet vehicle with a maintenance schedule
type Vehicle struct {
	ID                  string     `gorm:"primaryKey;type:varchar(36)" json:"id"`
	RegistrationNumber  string     `gorm:"type:varchar(32);not null" json:"registration_number"`
	Status              string     `gorm:"type:varchar(32);index" json:"status"`
	NextMaintenanceDate *time.Time `json:"next_maintenance_date,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

func (Vehicle) TableName() string {
	return "vehicles"
}

func (v *Vehicle) BeforeCreate(tx *gorm.DB) error {
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	return nil
}

// SourceModels returns the source-domain tables for migration
func SourceModels() []interface{} {
	return []interface{}{
		&ProcurementBatch{},
		&Shipment{},
		&ERPSyncLog{},
		&ComplianceSyncLog{},
		&Vehicle{},
	}
}
