package services

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/leaftrace/anomalyd/internal/database"
)

// AnomalyFilter narrows anomaly listings. Empty fields match everything.
type AnomalyFilter struct {
	Status      database.AnomalyStatus
	Severity    database.Severity
	AnomalyType database.AnomalyType
	Offset      int
	Limit       int
}

// AnomalyStats are dashboard counters
type AnomalyStats struct {
	Total        int64                            `json:"total"`
	ByStatus     map[database.AnomalyStatus]int64 `json:"by_status"`
	BySeverity   map[database.Severity]int64      `json:"by_severity"`
	OpenCritical int64                            `json:"open_critical"`
}

// AnomalyService provides read access to anomalies and their audit trail
type AnomalyService struct {
	db *gorm.DB
}

// NewAnomalyService creates a new anomaly service
func NewAnomalyService(db *gorm.DB) *AnomalyService {
	return &AnomalyService{db: db}
}

// List returns anomalies newest first plus the total matching count
func (s *AnomalyService) List(ctx context.Context, f AnomalyFilter) ([]database.Anomaly, int64, error) {
	filtered := func(q *gorm.DB) *gorm.DB {
		if f.Status != "" {
			q = q.Where("status = ?", f.Status)
		}
		if f.Severity != "" {
			q = q.Where("severity = ?", f.Severity)
		}
		if f.AnomalyType != "" {
			q = q.Where("anomaly_type = ?", f.AnomalyType)
		}
		return q
	}

	var total int64
	if err := s.db.WithContext(ctx).Model(&database.Anomaly{}).Scopes(filtered).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count anomalies: %w", err)
	}

	query := s.db.WithContext(ctx).Scopes(filtered).Order("detected_at DESC").Order("id ASC")
	if f.Limit > 0 {
		query = query.Offset(f.Offset).Limit(f.Limit)
	}

	var anomalies []database.Anomaly
	if err := query.Find(&anomalies).Error; err != nil {
		return nil, 0, fmt.Errorf("list anomalies: %w", err)
	}
	return anomalies, total, nil
}

// Get returns one anomaly
func (s *AnomalyService) Get(ctx context.Context, id string) (*database.Anomaly, error) {
	var a database.Anomaly
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&a).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, rejection(CodeNotFound, "get", id, "anomaly not found")
		}
		return nil, err
	}
	return &a, nil
}

// History returns the anomaly's audit trail, oldest first
func (s *AnomalyService) History(ctx context.Context, id string) ([]database.ResolutionHistoryEntry, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}

	var entries []database.ResolutionHistoryEntry
	err := s.db.WithContext(ctx).Where("anomaly_id = ?", id).
		Order("performed_at ASC").Order("id ASC").Find(&entries).Error
	return entries, err
}

// Stats returns counts by status and severity
func (s *AnomalyService) Stats(ctx context.Context) (*AnomalyStats, error) {
	stats := &AnomalyStats{
		ByStatus:   map[database.AnomalyStatus]int64{},
		BySeverity: map[database.Severity]int64{},
	}
	db := s.db.WithContext(ctx)

	var byStatus []struct {
		Status database.AnomalyStatus
		Count  int64
	}
	if err := db.Model(&database.Anomaly{}).Select("status, COUNT(*) AS count").
		Group("status").Scan(&byStatus).Error; err != nil {
		return nil, fmt.Errorf("count by status: %w", err)
	}
	for _, row := range byStatus {
		stats.ByStatus[row.Status] = row.Count
		stats.Total += row.Count
	}

	var bySeverity []struct {
		Severity database.Severity
		Count    int64
	}
	if err := db.Model(&database.Anomaly{}).Select("severity, COUNT(*) AS count").
		Group("severity").Scan(&bySeverity).Error; err != nil {
		return nil, fmt.Errorf("count by severity: %w", err)
	}
	for _, row := range bySeverity {
		stats.BySeverity[row.Severity] = row.Count
	}

	if err := db.Model(&database.Anomaly{}).
		Where("severity = ? AND status IN ?", database.SeverityCritical,
			[]database.AnomalyStatus{database.AnomalyStatusOpen, database.AnomalyStatusInvestigating}).
		Count(&stats.OpenCritical).Error; err != nil {
		return nil, fmt.Errorf("count open critical: %w", err)
	}

	return stats, nil
}

// GetSettings returns detection settings (creates defaults if not exists)
func (s *AnomalyService) GetSettings() (*database.DetectionSettings, error) {
	return database.GetOrCreateDetectionSettings(s.db)
}

// UpdateSettings updates detection settings
func (s *AnomalyService) UpdateSettings(settings *database.DetectionSettings) error {
	return database.UpdateDetectionSettings(s.db, settings)
}
