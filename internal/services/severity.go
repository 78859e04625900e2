package services

import (
	"time"

	"github.com/leaftrace/anomalyd/internal/database"
)

const day = 24 * time.Hour

// severityThresholds holds the strict lower bounds above which an anomaly is
// classified HIGH and CRITICAL. A duration equal to a bound stays in the
// lower level.
type severityThresholds struct {
	high     time.Duration
	critical time.Duration
}

var durationThresholds = map[database.AnomalyType]severityThresholds{
	database.AnomalyTypeMissingSerial:      {high: 3 * day, critical: 7 * day},
	database.AnomalyTypeDelayedShipment:    {high: 24 * time.Hour, critical: 48 * time.Hour},
	database.AnomalyTypeOverdueMaintenance: {high: 7 * day, critical: 14 * day},
}

// ClassifySeverity maps an anomaly type and its duration metric to a
// severity. Sync failures are count-based and always HIGH; types without a
// rule are LOW.
func ClassifySeverity(anomalyType database.AnomalyType, d time.Duration) database.Severity {
	switch anomalyType {
	case database.AnomalyTypeERPSyncFailure, database.AnomalyTypeComplianceSyncFailure:
		return database.SeverityHigh
	}

	th, ok := durationThresholds[anomalyType]
	if !ok {
		return database.SeverityLow
	}

	switch {
	case d > th.critical:
		return database.SeverityCritical
	case d > th.high:
		return database.SeverityHigh
	default:
		return database.SeverityMedium
	}
}

// wholeDays returns the number of complete days in d, never negative
func wholeDays(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(d / day)
}

// wholeHours returns the number of complete hours in d, never negative
func wholeHours(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(d / time.Hour)
}
