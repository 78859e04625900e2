package services

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/leaftrace/anomalyd/internal/database"
	"github.com/leaftrace/anomalyd/internal/utils"
)

const syncFailureWindow = 7 * day

func detectSerialBacklog(_ context.Context, db *gorm.DB, now time.Time) ([]database.Anomaly, error) {
	var batches []database.ProcurementBatch
	err := db.Where("status = ? AND serialization_complete = ?", database.BatchStatusApproved, false).
		Order("created_at ASC").Find(&batches).Error
	if err != nil {
		return nil, fmt.Errorf("query procurement batches: %w", err)
	}

	out := make([]database.Anomaly, 0, len(batches))
	for _, b := range batches {
		waited := now.Sub(b.CreatedAt)
		days := wholeDays(waited)
		out = append(out, newAnomaly(
			database.AnomalyTypeMissingSerial,
			ClassifySeverity(database.AnomalyTypeMissingSerial, waited),
			"procurement_batch", b.ID,
			fmt.Sprintf("Batch %s awaiting serialization", b.BatchNumber),
			fmt.Sprintf("Procurement batch %s was approved %s ago but serial numbers have not been generated.", b.BatchNumber, utils.FormatDuration(waited)),
			database.SerialBacklogDetails{BatchNumber: b.BatchNumber, DaysWaiting: days},
		))
	}
	return out, nil
}

func detectDelayedShipments(_ context.Context, db *gorm.DB, now time.Time) ([]database.Anomaly, error) {
	var shipments []database.Shipment
	err := db.Where("status = ? AND expected_arrival IS NOT NULL AND expected_arrival < ?", database.ShipmentStatusInTransit, now).
		Order("expected_arrival ASC").Find(&shipments).Error
	if err != nil {
		return nil, fmt.Errorf("query shipments: %w", err)
	}

	out := make([]database.Anomaly, 0, len(shipments))
	for _, s := range shipments {
		late := now.Sub(*s.ExpectedArrival)
		hours := wholeHours(late)
		out = append(out, newAnomaly(
			database.AnomalyTypeDelayedShipment,
			ClassifySeverity(database.AnomalyTypeDelayedShipment, late),
			"shipment", s.ID,
			fmt.Sprintf("Shipment %s delayed", s.ShipmentNumber),
			fmt.Sprintf("Shipment %s from %s to %s is %s past its expected arrival.", s.ShipmentNumber, s.Origin, s.Destination, utils.FormatDuration(late)),
			database.ShipmentDelayDetails{
				ShipmentNumber:  s.ShipmentNumber,
				VehicleID:       s.VehicleID,
				ExpectedArrival: s.ExpectedArrival.UTC(),
				DelayHours:      hours,
			},
		))
	}
	return out, nil
}

func detectERPSyncFailures(_ context.Context, db *gorm.DB, now time.Time) ([]database.Anomaly, error) {
	var logs []database.ERPSyncLog
	if err := db.Where("status = ? AND created_at >= ?", database.SyncStatusFailed, now.Add(-syncFailureWindow)).
		Order("created_at ASC").Find(&logs).Error; err != nil {
		return nil, fmt.Errorf("query erp sync logs: %w", err)
	}

	rows := make([]database.SyncLog, len(logs))
	for i := range logs {
		rows[i] = logs[i].SyncLog
	}
	return syncFailureAnomalies(database.AnomalyTypeERPSyncFailure, "erp_sync_log", "ERP", rows), nil
}

func detectComplianceSyncFailures(_ context.Context, db *gorm.DB, now time.Time) ([]database.Anomaly, error) {
	var logs []database.ComplianceSyncLog
	if err := db.Where("status = ? AND created_at >= ?", database.SyncStatusFailed, now.Add(-syncFailureWindow)).
		Order("created_at ASC").Find(&logs).Error; err != nil {
		return nil, fmt.Errorf("query compliance sync logs: %w", err)
	}

	rows := make([]database.SyncLog, len(logs))
	for i := range logs {
		rows[i] = logs[i].SyncLog
	}
	return syncFailureAnomalies(database.AnomalyTypeComplianceSyncFailure, "compliance_sync_log", "Compliance", rows), nil
}

// syncFailureAnomalies emits one anomaly per failed log, annotated with the
// number of failures the same system had inside the window
func syncFailureAnomalies(t database.AnomalyType, resourceType, label string, logs []database.SyncLog) []database.Anomaly {
	perSystem := make(map[string]int, len(logs))
	for _, l := range logs {
		perSystem[l.System]++
	}

	out := make([]database.Anomaly, 0, len(logs))
	for _, l := range logs {
		system := l.System
		if system == "" {
			system = "unknown"
		}
		desc := fmt.Sprintf("%s sync to %s failed", label, system)
		if l.Operation != "" {
			desc += fmt.Sprintf(" during %s", l.Operation)
		}
		if l.ErrorMessage != "" {
			desc += ": " + l.ErrorMessage
		}
		desc += fmt.Sprintf(" (%d failures in the last 7 days).", perSystem[l.System])

		out = append(out, newAnomaly(
			t,
			ClassifySeverity(t, 0),
			resourceType, l.ID,
			fmt.Sprintf("%s sync failure: %s", label, system),
			desc,
			database.SyncFailureDetails{
				System:           l.System,
				Operation:        l.Operation,
				ErrorMessage:     l.ErrorMessage,
				FailedAt:         l.CreatedAt.UTC(),
				FailuresInWindow: perSystem[l.System],
			},
		))
	}
	return out
}

func detectOverdueMaintenance(_ context.Context, db *gorm.DB, now time.Time) ([]database.Anomaly, error) {
	var vehicles []database.Vehicle
	err := db.Where("status = ? AND next_maintenance_date IS NOT NULL AND next_maintenance_date < ?", database.VehicleStatusActive, now).
		Order("next_maintenance_date ASC").Find(&vehicles).Error
	if err != nil {
		return nil, fmt.Errorf("query vehicles: %w", err)
	}

	out := make([]database.Anomaly, 0, len(vehicles))
	for _, v := range vehicles {
		overdue := now.Sub(*v.NextMaintenanceDate)
		days := wholeDays(overdue)
		out = append(out, newAnomaly(
			database.AnomalyTypeOverdueMaintenance,
			ClassifySeverity(database.AnomalyTypeOverdueMaintenance, overdue),
			"vehicle", v.ID,
			fmt.Sprintf("Vehicle %s maintenance overdue", v.RegistrationNumber),
			fmt.Sprintf("Vehicle %s is %s past its scheduled maintenance date.", v.RegistrationNumber, utils.FormatDuration(overdue)),
			database.MaintenanceDetails{
				RegistrationNumber:  v.RegistrationNumber,
				NextMaintenanceDate: v.NextMaintenanceDate.UTC(),
				DaysOverdue:         days,
			},
		))
	}
	return out, nil
}
