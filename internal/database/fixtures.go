package database

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
)

// Fixtures describes source-domain rows for demo and standalone deployments.
// Times are expressed relative to load time so a fixture file keeps
// producing the same anomalies whenever it is loaded.
type Fixtures struct {
	Batches            []BatchFixture    `yaml:"batches"`
	Shipments          []ShipmentFixture `yaml:"shipments"`
	ERPSyncLogs        []SyncLogFixture  `yaml:"erp_sync_logs"`
	ComplianceSyncLogs []SyncLogFixture  `yaml:"compliance_sync_logs"`
	Vehicles           []VehicleFixture  `yaml:"vehicles"`
}

type BatchFixture struct {
	BatchNumber           string `yaml:"batch_number"`
	Status                string `yaml:"status"`
	SerializationComplete bool   `yaml:"serialization_complete"`
	Age                   string `yaml:"age"`
}

type ShipmentFixture struct {
	ShipmentNumber string `yaml:"shipment_number"`
	Status         string `yaml:"status"`
	VehicleID      string `yaml:"vehicle_id"`
	Origin         string `yaml:"origin"`
	Destination    string `yaml:"destination"`
	ArrivalIn      string `yaml:"arrival_in"` // negative = already overdue
}

type SyncLogFixture struct {
	System       string `yaml:"system"`
	Operation    string `yaml:"operation"`
	Status       string `yaml:"status"`
	ErrorMessage string `yaml:"error_message"`
	Age          string `yaml:"age"`
}

type VehicleFixture struct {
	RegistrationNumber string `yaml:"registration_number"`
	Status             string `yaml:"status"`
	MaintenanceDueIn   string `yaml:"maintenance_due_in"`
}

// ParseFixtures decodes a fixture document
func ParseFixtures(data []byte) (*Fixtures, error) {
	var f Fixtures
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse fixtures: %w", err)
	}
	return &f, nil
}

// LoadFixturesFile reads path and inserts its rows relative to now
func LoadFixturesFile(db *gorm.DB, path string, now time.Time) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read fixtures file: %w", err)
	}
	f, err := ParseFixtures(data)
	if err != nil {
		return err
	}
	return f.Apply(db, now)
}

// Apply inserts all fixture rows in one transaction
func (f *Fixtures) Apply(db *gorm.DB, now time.Time) error {
	return db.Transaction(func(tx *gorm.DB) error {
		for _, b := range f.Batches {
			age, err := parseOffset(b.Age)
			if err != nil {
				return fmt.Errorf("batch %s: %w", b.BatchNumber, err)
			}
			row := ProcurementBatch{
				BatchNumber:           b.BatchNumber,
				Status:                b.Status,
				SerializationComplete: b.SerializationComplete,
				CreatedAt:             now.Add(-age),
				UpdatedAt:             now,
			}
			if err := tx.Create(&row).Error; err != nil {
				return fmt.Errorf("failed to insert batch %s: %w", b.BatchNumber, err)
			}
		}

		for _, s := range f.Shipments {
			row := Shipment{
				ShipmentNumber: s.ShipmentNumber,
				Status:         s.Status,
				VehicleID:      s.VehicleID,
				Origin:         s.Origin,
				Destination:    s.Destination,
			}
			if s.ArrivalIn != "" {
				in, err := parseOffset(s.ArrivalIn)
				if err != nil {
					return fmt.Errorf("shipment %s: %w", s.ShipmentNumber, err)
				}
				arrival := now.Add(in)
				row.ExpectedArrival = &arrival
			}
			if err := tx.Create(&row).Error; err != nil {
				return fmt.Errorf("failed to insert shipment %s: %w", s.ShipmentNumber, err)
			}
		}

		for _, l := range f.ERPSyncLogs {
			row, err := l.toSyncLog(now)
			if err != nil {
				return fmt.Errorf("erp sync log: %w", err)
			}
			if err := tx.Create(&ERPSyncLog{SyncLog: row}).Error; err != nil {
				return fmt.Errorf("failed to insert erp sync log: %w", err)
			}
		}

		for _, l := range f.ComplianceSyncLogs {
			row, err := l.toSyncLog(now)
			if err != nil {
				return fmt.Errorf("compliance sync log: %w", err)
			}
			if err := tx.Create(&ComplianceSyncLog{SyncLog: row}).Error; err != nil {
				return fmt.Errorf("failed to insert compliance sync log: %w", err)
			}
		}

		for _, v := range f.Vehicles {
			row := Vehicle{
				RegistrationNumber: v.RegistrationNumber,
				Status:             v.Status,
			}
			if v.MaintenanceDueIn != "" {
				in, err := parseOffset(v.MaintenanceDueIn)
				if err != nil {
					return fmt.Errorf("vehicle %s: %w", v.RegistrationNumber, err)
				}
				due := now.Add(in)
				row.NextMaintenanceDate = &due
			}
			if err := tx.Create(&row).Error; err != nil {
				return fmt.Errorf("failed to insert vehicle %s: %w", v.RegistrationNumber, err)
			}
		}
		return nil
	})
}

func (l SyncLogFixture) toSyncLog(now time.Time) (SyncLog, error) {
	age, err := parseOffset(l.Age)
	if err != nil {
		return SyncLog{}, err
	}
	return SyncLog{
		System:       l.System,
		Operation:    l.Operation,
		Status:       l.Status,
		ErrorMessage: l.ErrorMessage,
		CreatedAt:    now.Add(-age),
	}, nil
}

// parseOffset accepts Go durations plus a "d" day suffix, e.g. "10d" or "-50h"
func parseOffset(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	if n := len(s); s[n-1] == 'd' {
		days, err := strconv.ParseFloat(s[:n-1], 64)
		if err != nil {
			return 0, fmt.Errorf("invalid day offset %q", s)
		}
		return time.Duration(days * float64(24*time.Hour)), nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid offset %q: %w", s, err)
	}
	return d, nil
}
