package database

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// MetadataDetails is the typed measurement recorded for one anomaly type.
// Implementations are SerialBacklogDetails, ShipmentDelayDetails,
// SyncFailureDetails, MaintenanceDetails and GenericDetails.
type MetadataDetails interface {
	isMetadataDetails()
}

// SerialBacklogDetails is recorded for missing_serial anomalies
type SerialBacklogDetails struct {
	BatchNumber string `json:"batch_number"`
	DaysWaiting int    `json:"days_waiting"`
}

// ShipmentDelayDetails is recorded for delayed_shipment anomalies
type ShipmentDelayDetails struct {
	ShipmentNumber  string    `json:"shipment_number"`
	VehicleID       string    `json:"vehicle_id,omitempty"`
	ExpectedArrival time.Time `json:"expected_arrival"`
	DelayHours      int       `json:"delay_hours"`
}

// SyncFailureDetails is recorded for erp_sync_failure and compliance_sync_failure anomalies
type SyncFailureDetails struct {
	System           string    `json:"system"`
	Operation        string    `json:"operation,omitempty"`
	ErrorMessage     string    `json:"error_message,omitempty"`
	FailedAt         time.Time `json:"failed_at"`
	FailuresInWindow int       `json:"failures_in_window"`
}

// MaintenanceDetails is recorded for overdue_maintenance anomalies
type MaintenanceDetails struct {
	RegistrationNumber  string    `json:"registration_number"`
	NextMaintenanceDate time.Time `json:"next_maintenance_date"`
	DaysOverdue         int       `json:"days_overdue"`
}

// GenericDetails holds the raw measurement of anomaly types without a dedicated shape
type GenericDetails map[string]interface{}

func (SerialBacklogDetails) isMetadataDetails() {}
func (ShipmentDelayDetails) isMetadataDetails() {}
func (SyncFailureDetails) isMetadataDetails()   {}
func (MaintenanceDetails) isMetadataDetails()   {}
func (GenericDetails) isMetadataDetails()       {}

// Metadata is the per-anomaly measurement, tagged by anomaly type. It is
// stored as a flat JSON object: the detail fields plus "kind" and
// "can_auto_resolve".
type Metadata struct {
	Kind           AnomalyType
	CanAutoResolve bool
	Details        MetadataDetails
}

const (
	metadataKindKey     = "kind"
	metadataAutoResolve = "can_auto_resolve"
)

// NewMetadata builds metadata for the given anomaly type
func NewMetadata(kind AnomalyType, canAutoResolve bool, details MetadataDetails) Metadata {
	return Metadata{Kind: kind, CanAutoResolve: canAutoResolve, Details: details}
}

// MarshalJSON flattens the details alongside the kind and auto-resolve flag
func (m Metadata) MarshalJSON() ([]byte, error) {
	flat := map[string]interface{}{}
	if m.Details != nil {
		raw, err := json.Marshal(m.Details)
		if err != nil {
			return nil, fmt.Errorf("marshal metadata details: %w", err)
		}
		if err := json.Unmarshal(raw, &flat); err != nil {
			return nil, fmt.Errorf("flatten metadata details: %w", err)
		}
	}
	if m.Kind != "" {
		flat[metadataKindKey] = m.Kind
	}
	flat[metadataAutoResolve] = m.CanAutoResolve
	return json.Marshal(flat)
}

// UnmarshalJSON restores the typed details variant selected by "kind"
func (m *Metadata) UnmarshalJSON(data []byte) error {
	var header struct {
		Kind           AnomalyType `json:"kind"`
		CanAutoResolve bool        `json:"can_auto_resolve"`
	}
	if err := json.Unmarshal(data, &header); err != nil {
		return fmt.Errorf("decode metadata: %w", err)
	}

	var details MetadataDetails
	var err error
	switch header.Kind {
	case AnomalyTypeMissingSerial:
		var d SerialBacklogDetails
		err = json.Unmarshal(data, &d)
		details = d
	case AnomalyTypeDelayedShipment:
		var d ShipmentDelayDetails
		err = json.Unmarshal(data, &d)
		details = d
	case AnomalyTypeERPSyncFailure, AnomalyTypeComplianceSyncFailure:
		var d SyncFailureDetails
		err = json.Unmarshal(data, &d)
		details = d
	case AnomalyTypeOverdueMaintenance:
		var d MaintenanceDetails
		err = json.Unmarshal(data, &d)
		details = d
	default:
		var d GenericDetails
		err = json.Unmarshal(data, &d)
		delete(d, metadataKindKey)
		delete(d, metadataAutoResolve)
		if len(d) > 0 {
			details = d
		}
	}
	if err != nil {
		return fmt.Errorf("decode %s metadata: %w", header.Kind, err)
	}

	m.Kind = header.Kind
	m.CanAutoResolve = header.CanAutoResolve
	m.Details = details
	return nil
}

// Scan implements the sql.Scanner interface
func (m *Metadata) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*m = Metadata{}
		return nil
	case []byte:
		return m.UnmarshalJSON(v)
	case string:
		return m.UnmarshalJSON([]byte(v))
	default:
		return fmt.Errorf("unsupported metadata column type %T", value)
	}
}

// Value implements the driver.Valuer interface
func (m Metadata) Value() (driver.Value, error) {
	b, err := m.MarshalJSON()
	if err != nil {
		return nil, err
	}
	return string(b), nil
}
