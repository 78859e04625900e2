package services

import "github.com/leaftrace/anomalyd/internal/database"

// ResolutionPolicy is the remediation advice attached to every anomaly of a type
type ResolutionPolicy struct {
	SuggestedResolution string
	CanAutoResolve      bool
}

// These strings are consumed verbatim by operator tooling; keep them stable.
var resolutionCatalog = map[database.AnomalyType]ResolutionPolicy{
	database.AnomalyTypeMissingSerial: {
		SuggestedResolution: "Generate missing serial numbers for batch and update aggregation relationships",
		CanAutoResolve:      true,
	},
	database.AnomalyTypeDelayedShipment: {
		SuggestedResolution: "Alert logistics manager, reassign vehicle if available, update ETA notifications",
		CanAutoResolve:      false,
	},
	database.AnomalyTypeERPSyncFailure: {
		SuggestedResolution: "Retry ERP synchronization with exponential backoff, escalate if 3 failures",
		CanAutoResolve:      true,
	},
	database.AnomalyTypeComplianceSyncFailure: {
		SuggestedResolution: "Retry compliance sync, verify endpoint connectivity, check credentials",
		CanAutoResolve:      true,
	},
	database.AnomalyTypeOverdueMaintenance: {
		SuggestedResolution: "Schedule immediate maintenance, reassign active shipments to other vehicles",
		CanAutoResolve:      false,
	},
}

var unknownResolution = ResolutionPolicy{
	SuggestedResolution: "Manual investigation required",
	CanAutoResolve:      false,
}

// LookupResolution returns the policy for an anomaly type
func LookupResolution(anomalyType database.AnomalyType) ResolutionPolicy {
	if p, ok := resolutionCatalog[anomalyType]; ok {
		return p
	}
	return unknownResolution
}
