package services

import (
	"testing"
	"time"

	"github.com/leaftrace/anomalyd/internal/database"
)

func TestClassifySeverity_Boundaries(t *testing.T) {
	const eps = time.Nanosecond

	tests := []struct {
		name string
		typ  database.AnomalyType
		d    time.Duration
		want database.Severity
	}{
		// serialization: >7d CRITICAL, >3d HIGH
		{"serial fresh", database.AnomalyTypeMissingSerial, 0, database.SeverityMedium},
		{"serial exactly 3d", database.AnomalyTypeMissingSerial, 3 * day, database.SeverityMedium},
		{"serial 3d+eps", database.AnomalyTypeMissingSerial, 3*day + eps, database.SeverityHigh},
		{"serial exactly 7d", database.AnomalyTypeMissingSerial, 7 * day, database.SeverityHigh},
		{"serial 7d+eps", database.AnomalyTypeMissingSerial, 7*day + eps, database.SeverityCritical},
		{"serial 10d", database.AnomalyTypeMissingSerial, 10 * day, database.SeverityCritical},

		// logistics: >48h CRITICAL, >24h HIGH
		{"shipment 1h", database.AnomalyTypeDelayedShipment, time.Hour, database.SeverityMedium},
		{"shipment exactly 24h", database.AnomalyTypeDelayedShipment, 24 * time.Hour, database.SeverityMedium},
		{"shipment 24h+eps", database.AnomalyTypeDelayedShipment, 24*time.Hour + eps, database.SeverityHigh},
		{"shipment exactly 48h", database.AnomalyTypeDelayedShipment, 48 * time.Hour, database.SeverityHigh},
		{"shipment 48h+eps", database.AnomalyTypeDelayedShipment, 48*time.Hour + eps, database.SeverityCritical},
		{"shipment 50h", database.AnomalyTypeDelayedShipment, 50 * time.Hour, database.SeverityCritical},

		// maintenance: >14d CRITICAL, >7d HIGH
		{"maintenance 5d", database.AnomalyTypeOverdueMaintenance, 5 * day, database.SeverityMedium},
		{"maintenance exactly 7d", database.AnomalyTypeOverdueMaintenance, 7 * day, database.SeverityMedium},
		{"maintenance 7d+eps", database.AnomalyTypeOverdueMaintenance, 7*day + eps, database.SeverityHigh},
		{"maintenance exactly 14d", database.AnomalyTypeOverdueMaintenance, 14 * day, database.SeverityHigh},
		{"maintenance 14d+eps", database.AnomalyTypeOverdueMaintenance, 14*day + eps, database.SeverityCritical},

		// count-based and unknown
		{"erp any", database.AnomalyTypeERPSyncFailure, 30 * day, database.SeverityHigh},
		{"compliance any", database.AnomalyTypeComplianceSyncFailure, 0, database.SeverityHigh},
		{"unknown type", "cold_chain_breach", 100 * day, database.SeverityLow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifySeverity(tt.typ, tt.d); got != tt.want {
				t.Errorf("ClassifySeverity(%s, %v) = %s, want %s", tt.typ, tt.d, got, tt.want)
			}
		})
	}
}

func TestClassifySeverity_Deterministic(t *testing.T) {
	for _, typ := range database.KnownAnomalyTypes() {
		for d := time.Duration(0); d <= 20*day; d += 7 * time.Hour {
			first := ClassifySeverity(typ, d)
			for i := 0; i < 3; i++ {
				if got := ClassifySeverity(typ, d); got != first {
					t.Fatalf("ClassifySeverity(%s, %v) not deterministic: %s then %s", typ, d, first, got)
				}
			}
		}
	}
}

func TestWholeUnits(t *testing.T) {
	if got := wholeDays(10*day - time.Second); got != 9 {
		t.Errorf("wholeDays = %d, want 9", got)
	}
	if got := wholeDays(-time.Hour); got != 0 {
		t.Errorf("wholeDays(negative) = %d, want 0", got)
	}
	if got := wholeHours(50*time.Hour + 59*time.Minute); got != 50 {
		t.Errorf("wholeHours = %d, want 50", got)
	}
}

func TestLookupResolution(t *testing.T) {
	tests := []struct {
		typ        database.AnomalyType
		resolution string
		auto       bool
	}{
		{database.AnomalyTypeMissingSerial, "Generate missing serial numbers for batch and update aggregation relationships", true},
		{database.AnomalyTypeDelayedShipment, "Alert logistics manager, reassign vehicle if available, update ETA notifications", false},
		{database.AnomalyTypeERPSyncFailure, "Retry ERP synchronization with exponential backoff, escalate if 3 failures", true},
		{database.AnomalyTypeComplianceSyncFailure, "Retry compliance sync, verify endpoint connectivity, check credentials", true},
		{database.AnomalyTypeOverdueMaintenance, "Schedule immediate maintenance, reassign active shipments to other vehicles", false},
		{"something_new", "Manual investigation required", false},
	}

	for _, tt := range tests {
		p := LookupResolution(tt.typ)
		if p.SuggestedResolution != tt.resolution {
			t.Errorf("%s: resolution = %q, want %q", tt.typ, p.SuggestedResolution, tt.resolution)
		}
		if p.CanAutoResolve != tt.auto {
			t.Errorf("%s: can_auto_resolve = %v, want %v", tt.typ, p.CanAutoResolve, tt.auto)
		}
	}
}
