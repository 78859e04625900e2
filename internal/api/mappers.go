package api

import "github.com/leaftrace/anomalyd/internal/database"

// AnomalyToListItem converts a database Anomaly to a compact list representation.
func AnomalyToListItem(a database.Anomaly) AnomalyListItem {
	return AnomalyListItem{
		ID:                   a.ID,
		AnomalyType:          a.AnomalyType,
		Severity:             a.Severity,
		Title:                a.Title,
		Status:               a.Status,
		AffectedResourceType: a.AffectedResourceType,
		AffectedResourceID:   a.AffectedResourceID,
		CanAutoResolve:       a.CanAutoResolve(),
		HasRootCause:         a.RootCause != nil && *a.RootCause != "",
		DetectedAt:           a.DetectedAt,
		ResolvedAt:           a.ResolvedAt,
		EscalatedAt:          a.EscalatedAt,
	}
}

// AnomaliesToListItems converts a slice of database Anomalies to list items.
func AnomaliesToListItems(anomalies []database.Anomaly) []AnomalyListItem {
	items := make([]AnomalyListItem, len(anomalies))
	for i, a := range anomalies {
		items[i] = AnomalyToListItem(a)
	}
	return items
}

// ApplySettingsUpdate copies the fields present in req onto settings.
func ApplySettingsUpdate(settings *database.DetectionSettings, req UpdateDetectionSettingsRequest) {
	if req.EnrichmentEnabled != nil {
		settings.EnrichmentEnabled = *req.EnrichmentEnabled
	}
	if req.EnrichmentTimeoutSeconds != nil {
		settings.EnrichmentTimeoutSeconds = *req.EnrichmentTimeoutSeconds
	}
	if req.ScheduledScanEnabled != nil {
		settings.ScheduledScanEnabled = *req.ScheduledScanEnabled
	}
	if req.ScanIntervalMinutes != nil {
		settings.ScanIntervalMinutes = *req.ScanIntervalMinutes
	}
	if req.NotifyCritical != nil {
		settings.NotifyCritical = *req.NotifyCritical
	}
}
