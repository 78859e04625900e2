package database

import (
	"encoding/json"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to connect to test database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := Migrate(db, true); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return db
}

func TestMetadata_RoundTrip(t *testing.T) {
	failedAt := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		meta Metadata
	}{
		{
			name: "serial backlog",
			meta: NewMetadata(AnomalyTypeMissingSerial, true, SerialBacklogDetails{BatchNumber: "B-1", DaysWaiting: 10}),
		},
		{
			name: "shipment delay",
			meta: NewMetadata(AnomalyTypeDelayedShipment, false, ShipmentDelayDetails{
				ShipmentNumber:  "S-1",
				VehicleID:       "veh-1",
				ExpectedArrival: failedAt,
				DelayHours:      50,
			}),
		},
		{
			name: "erp sync failure",
			meta: NewMetadata(AnomalyTypeERPSyncFailure, true, SyncFailureDetails{
				System:           "sap",
				Operation:        "push_invoice",
				ErrorMessage:     "timeout",
				FailedAt:         failedAt,
				FailuresInWindow: 3,
			}),
		},
		{
			name: "compliance sync failure",
			meta: NewMetadata(AnomalyTypeComplianceSyncFailure, true, SyncFailureDetails{System: "tts", FailedAt: failedAt, FailuresInWindow: 1}),
		},
		{
			name: "overdue maintenance",
			meta: NewMetadata(AnomalyTypeOverdueMaintenance, false, MaintenanceDetails{
				RegistrationNumber:  "KA-01",
				NextMaintenanceDate: failedAt,
				DaysOverdue:         5,
			}),
		},
		{
			name: "unknown type keeps raw fields",
			meta: NewMetadata("cold_chain_breach", false, GenericDetails{"temperature": 12.5}),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := tt.meta.Value()
			if err != nil {
				t.Fatalf("Value() error = %v", err)
			}

			var got Metadata
			if err := got.Scan(v); err != nil {
				t.Fatalf("Scan() error = %v", err)
			}

			want, _ := json.Marshal(tt.meta)
			have, _ := json.Marshal(got)
			if string(want) != string(have) {
				t.Errorf("round trip mismatch:\nwant %s\ngot  %s", want, have)
			}
			if got.Kind != tt.meta.Kind {
				t.Errorf("Kind = %q, want %q", got.Kind, tt.meta.Kind)
			}
			if got.CanAutoResolve != tt.meta.CanAutoResolve {
				t.Errorf("CanAutoResolve = %v, want %v", got.CanAutoResolve, tt.meta.CanAutoResolve)
			}
		})
	}
}

func TestMetadata_MarshalIsFlat(t *testing.T) {
	meta := NewMetadata(AnomalyTypeMissingSerial, true, SerialBacklogDetails{BatchNumber: "B-7", DaysWaiting: 4})

	b, err := json.Marshal(meta)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	var flat map[string]interface{}
	if err := json.Unmarshal(b, &flat); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}

	if flat["kind"] != "missing_serial" {
		t.Errorf("kind = %v, want missing_serial", flat["kind"])
	}
	if flat["can_auto_resolve"] != true {
		t.Errorf("can_auto_resolve = %v, want true", flat["can_auto_resolve"])
	}
	if flat["batch_number"] != "B-7" {
		t.Errorf("batch_number = %v, want B-7", flat["batch_number"])
	}
	if flat["days_waiting"] != float64(4) {
		t.Errorf("days_waiting = %v, want 4", flat["days_waiting"])
	}
}

func TestMetadata_Scan(t *testing.T) {
	tests := []struct {
		name    string
		input   interface{}
		wantErr bool
	}{
		{name: "nil value", input: nil},
		{name: "bytes", input: []byte(`{"kind":"missing_serial","can_auto_resolve":true,"days_waiting":2}`)},
		{name: "string", input: `{"kind":"overdue_maintenance","days_overdue":9}`},
		{name: "invalid JSON", input: []byte(`not json`), wantErr: true},
		{name: "wrong type", input: 42, wantErr: true},
		{name: "mistyped detail", input: `{"kind":"missing_serial","days_waiting":"ten"}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var m Metadata
			err := m.Scan(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("Scan() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestAnomalyStatus_IsTerminal(t *testing.T) {
	tests := []struct {
		status AnomalyStatus
		want   bool
	}{
		{AnomalyStatusOpen, false},
		{AnomalyStatusInvestigating, false},
		{AnomalyStatusResolved, true},
		{AnomalyStatusEscalated, true},
	}

	for _, tt := range tests {
		if got := tt.status.IsTerminal(); got != tt.want {
			t.Errorf("%s.IsTerminal() = %v, want %v", tt.status, got, tt.want)
		}
	}
}

func TestResolutionAction_ResultingStatus(t *testing.T) {
	tests := []struct {
		action ResolutionAction
		want   AnomalyStatus
	}{
		{ResolutionActionDetected, AnomalyStatusOpen},
		{ResolutionActionInvestigated, AnomalyStatusInvestigating},
		{ResolutionActionResolved, AnomalyStatusResolved},
		{ResolutionActionEscalated, AnomalyStatusEscalated},
	}

	for _, tt := range tests {
		if got := tt.action.ResultingStatus(); got != tt.want {
			t.Errorf("%s.ResultingStatus() = %q, want %q", tt.action, got, tt.want)
		}
	}
}

func TestAnomaly_PersistsTypedMetadata(t *testing.T) {
	db := setupTestDB(t)

	a := &Anomaly{
		AnomalyType:          AnomalyTypeDelayedShipment,
		Severity:             SeverityCritical,
		Title:                "Shipment S-9 delayed",
		AffectedResourceType: "shipment",
		AffectedResourceID:   "ship-9",
		Metadata:             NewMetadata(AnomalyTypeDelayedShipment, false, ShipmentDelayDetails{ShipmentNumber: "S-9", DelayHours: 50}),
	}
	if err := db.Create(a).Error; err != nil {
		t.Fatalf("failed to create anomaly: %v", err)
	}

	if a.ID == "" {
		t.Fatal("expected ID to be generated")
	}
	if a.Status != AnomalyStatusOpen {
		t.Errorf("expected status open, got %s", a.Status)
	}
	if a.DetectedAt.IsZero() {
		t.Error("expected DetectedAt to be set")
	}

	var loaded Anomaly
	if err := db.First(&loaded, "id = ?", a.ID).Error; err != nil {
		t.Fatalf("failed to load anomaly: %v", err)
	}
	details, ok := loaded.Metadata.Details.(ShipmentDelayDetails)
	if !ok {
		t.Fatalf("expected ShipmentDelayDetails, got %T", loaded.Metadata.Details)
	}
	if details.DelayHours != 50 {
		t.Errorf("expected delay 50h, got %d", details.DelayHours)
	}
	if loaded.CanAutoResolve() {
		t.Error("expected delayed shipment not to be auto-resolvable")
	}
}

func TestGetSeverityEmoji(t *testing.T) {
	if GetSeverityEmoji(SeverityCritical) != ":red_circle:" {
		t.Errorf("unexpected emoji for CRITICAL: %s", GetSeverityEmoji(SeverityCritical))
	}
	if GetSeverityEmoji("bogus") != ":white_circle:" {
		t.Errorf("unexpected emoji for unknown severity: %s", GetSeverityEmoji("bogus"))
	}
}
