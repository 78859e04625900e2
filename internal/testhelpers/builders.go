package testhelpers

import (
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/leaftrace/anomalyd/internal/database"
)

// ========================================
// Anomaly Builder
// ========================================

// AnomalyBuilder builds Anomaly instances for testing
type AnomalyBuilder struct {
	anomaly database.Anomaly
}

// NewAnomalyBuilder creates a new anomaly builder with defaults: an open,
// auto-resolvable HIGH missing_serial anomaly
func NewAnomalyBuilder() *AnomalyBuilder {
	return &AnomalyBuilder{
		anomaly: database.Anomaly{
			AnomalyType:          database.AnomalyTypeMissingSerial,
			Severity:             database.SeverityHigh,
			Title:                "Batch B-TEST awaiting serialization",
			Description:          "Test anomaly",
			SuggestedResolution:  "Generate missing serial numbers for batch and update aggregation relationships",
			AffectedResourceType: "procurement_batch",
			AffectedResourceID:   "batch-test",
			Status:               database.AnomalyStatusOpen,
			Metadata: database.NewMetadata(database.AnomalyTypeMissingSerial, true,
				database.SerialBacklogDetails{BatchNumber: "B-TEST", DaysWaiting: 5}),
			DetectedAt: time.Now().UTC(),
		},
	}
}

// WithID sets the anomaly ID
func (b *AnomalyBuilder) WithID(id string) *AnomalyBuilder {
	b.anomaly.ID = id
	return b
}

// WithType sets the type and keeps the metadata kind in step
func (b *AnomalyBuilder) WithType(t database.AnomalyType) *AnomalyBuilder {
	b.anomaly.AnomalyType = t
	b.anomaly.Metadata.Kind = t
	return b
}

// WithSeverity sets the severity
func (b *AnomalyBuilder) WithSeverity(s database.Severity) *AnomalyBuilder {
	b.anomaly.Severity = s
	return b
}

// WithStatus sets the status
func (b *AnomalyBuilder) WithStatus(s database.AnomalyStatus) *AnomalyBuilder {
	b.anomaly.Status = s
	return b
}

// WithSuggestedResolution sets the suggested resolution
func (b *AnomalyBuilder) WithSuggestedResolution(r string) *AnomalyBuilder {
	b.anomaly.SuggestedResolution = r
	return b
}

// AutoResolvable sets metadata.can_auto_resolve
func (b *AnomalyBuilder) AutoResolvable(v bool) *AnomalyBuilder {
	b.anomaly.Metadata.CanAutoResolve = v
	return b
}

// DetectedAt sets the detection time
func (b *AnomalyBuilder) DetectedAt(t time.Time) *AnomalyBuilder {
	b.anomaly.DetectedAt = t
	return b
}

// Build returns the constructed anomaly
func (b *AnomalyBuilder) Build() database.Anomaly {
	return b.anomaly
}

// Create inserts the anomaly with its "detected" history entry
func (b *AnomalyBuilder) Create(t *testing.T, db *gorm.DB) *database.Anomaly {
	t.Helper()
	a := b.anomaly
	MustCreate(t, db, &a)
	MustCreate(t, db, &database.ResolutionHistoryEntry{
		AnomalyID:   a.ID,
		Action:      database.ResolutionActionDetected,
		PerformedAt: a.DetectedAt,
		PerformedBy: "system",
	})
	return &a
}

// ========================================
// Source Row Builders
// ========================================

// SeedBatch inserts an approved procurement batch
func SeedBatch(t *testing.T, db *gorm.DB, number string, serialized bool, createdAt time.Time) *database.ProcurementBatch {
	t.Helper()
	b := &database.ProcurementBatch{
		BatchNumber:           number,
		Status:                database.BatchStatusApproved,
		SerializationComplete: serialized,
		CreatedAt:             createdAt.UTC(),
		UpdatedAt:             createdAt.UTC(),
	}
	MustCreate(t, db, b)
	return b
}

// SeedShipment inserts a shipment with the given status and expected arrival
func SeedShipment(t *testing.T, db *gorm.DB, number, status string, expectedArrival time.Time) *database.Shipment {
	t.Helper()
	arrival := expectedArrival.UTC()
	s := &database.Shipment{
		ShipmentNumber:  number,
		Status:          status,
		VehicleID:       "veh-" + number,
		Origin:          "Harare",
		Destination:     "Beira",
		ExpectedArrival: &arrival,
	}
	MustCreate(t, db, s)
	return s
}

// SeedVehicle inserts a vehicle with the given status and maintenance date
func SeedVehicle(t *testing.T, db *gorm.DB, registration, status string, nextMaintenance time.Time) *database.Vehicle {
	t.Helper()
	due := nextMaintenance.UTC()
	v := &database.Vehicle{
		RegistrationNumber:  registration,
		Status:              status,
		NextMaintenanceDate: &due,
	}
	MustCreate(t, db, v)
	return v
}

// SeedERPSyncLog inserts an ERP sync log entry
func SeedERPSyncLog(t *testing.T, db *gorm.DB, system, status string, createdAt time.Time) *database.ERPSyncLog {
	t.Helper()
	l := &database.ERPSyncLog{SyncLog: database.SyncLog{
		System:       system,
		Operation:    "push_invoice",
		Status:       status,
		ErrorMessage: "connection reset by peer",
		CreatedAt:    createdAt.UTC(),
	}}
	MustCreate(t, db, l)
	return l
}

// SeedComplianceSyncLog inserts a compliance sync log entry
func SeedComplianceSyncLog(t *testing.T, db *gorm.DB, system, status string, createdAt time.Time) *database.ComplianceSyncLog {
	t.Helper()
	l := &database.ComplianceSyncLog{SyncLog: database.SyncLog{
		System:       system,
		Operation:    "submit_manifest",
		Status:       status,
		ErrorMessage: "401 unauthorized",
		CreatedAt:    createdAt.UTC(),
	}}
	MustCreate(t, db, l)
	return l
}
