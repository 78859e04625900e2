package database

import "time"

// DetectionSettings controls runtime behavior of the detector and its
// background work. It is a singleton row.
type DetectionSettings struct {
	ID                       uint      `gorm:"primaryKey" json:"id"`
	EnrichmentEnabled        bool      `gorm:"default:true" json:"enrichment_enabled"`
	EnrichmentTimeoutSeconds int       `gorm:"default:8" json:"enrichment_timeout_seconds"`
	ScheduledScanEnabled     bool      `gorm:"default:false" json:"scheduled_scan_enabled"`
	ScanIntervalMinutes      int       `gorm:"default:15" json:"scan_interval_minutes"`
	NotifyCritical           bool      `gorm:"default:true" json:"notify_critical"`
	CreatedAt                time.Time `json:"created_at"`
	UpdatedAt                time.Time `json:"updated_at"`
}

func (DetectionSettings) TableName() string {
	return "detection_settings"
}

// NewDefaultDetectionSettings returns settings with default values
func NewDefaultDetectionSettings() *DetectionSettings {
	return &DetectionSettings{
		EnrichmentEnabled:        true,
		EnrichmentTimeoutSeconds: 8,
		ScheduledScanEnabled:     false,
		ScanIntervalMinutes:      15,
		NotifyCritical:           true,
	}
}

// EnrichmentTimeout returns the per-call bound for root-cause generation
func (s *DetectionSettings) EnrichmentTimeout() time.Duration {
	if s.EnrichmentTimeoutSeconds <= 0 {
		return 8 * time.Second
	}
	return time.Duration(s.EnrichmentTimeoutSeconds) * time.Second
}

// ScanInterval returns the period between scheduled scans
func (s *DetectionSettings) ScanInterval() time.Duration {
	if s.ScanIntervalMinutes <= 0 {
		return 15 * time.Minute
	}
	return time.Duration(s.ScanIntervalMinutes) * time.Minute
}
