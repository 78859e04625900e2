package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/panics"
	"gorm.io/gorm"

	"github.com/leaftrace/anomalyd/internal/database"
	"github.com/leaftrace/anomalyd/internal/events"
	"github.com/leaftrace/anomalyd/internal/logging"
)

// ScanType selects which data domains a detection pass covers
type ScanType string

const (
	ScanAll           ScanType = "all"
	ScanSerialization ScanType = "serialization"
	ScanLogistics     ScanType = "logistics"
	ScanERP           ScanType = "erp"
	ScanCompliance    ScanType = "compliance"
	ScanMaintenance   ScanType = "maintenance"
)

var allDomains = []ScanType{ScanSerialization, ScanLogistics, ScanERP, ScanCompliance, ScanMaintenance}

// ErrUnknownScanType is returned by ParseScanType for unrecognized domains
var ErrUnknownScanType = errors.New("unknown scan type")

// ParseScanType accepts a domain name, "all" or an empty string (all domains).
// Names are matched exactly.
func ParseScanType(s string) (ScanType, error) {
	if s == "" {
		return ScanAll, nil
	}
	st := ScanType(s)
	if st == ScanAll {
		return st, nil
	}
	for _, d := range allDomains {
		if d == st {
			return st, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownScanType, s)
}

// Domains expands the scan type to the concrete domains to scan
func (s ScanType) Domains() []ScanType {
	if s == ScanAll || s == "" {
		out := make([]ScanType, len(allDomains))
		copy(out, allDomains)
		return out
	}
	return []ScanType{s}
}

// DetectedAnomaly is the per-anomaly summary returned to the caller
type DetectedAnomaly struct {
	ID             string               `json:"id"`
	Type           database.AnomalyType `json:"type"`
	Severity       database.Severity    `json:"severity"`
	CanAutoResolve bool                 `json:"can_auto_resolve"`
}

// DetectionResult summarizes a detection pass
type DetectionResult struct {
	Detected      int               `json:"detected"`
	Anomalies     []DetectedAnomaly `json:"anomalies"`
	FailedDomains []ScanType        `json:"failed_domains,omitempty"`
}

// Enqueuer accepts anomalies for background root-cause enrichment
type Enqueuer interface {
	Enqueue(anomalyID string) bool
}

// rule finds the currently violated thresholds of one domain
type rule func(ctx context.Context, db *gorm.DB, now time.Time) ([]database.Anomaly, error)

// DetectorService runs the anomaly rule engine over the source tables
type DetectorService struct {
	db        *gorm.DB
	enricher  Enqueuer
	publisher events.Publisher
	rules     map[ScanType]rule
	now       func() time.Time
}

// NewDetectorService creates a detector. enricher and publisher may be nil.
func NewDetectorService(db *gorm.DB, enricher Enqueuer, publisher events.Publisher) *DetectorService {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &DetectorService{
		db:        db,
		enricher:  enricher,
		publisher: publisher,
		rules: map[ScanType]rule{
			ScanSerialization: detectSerialBacklog,
			ScanLogistics:     detectDelayedShipments,
			ScanERP:           detectERPSyncFailures,
			ScanCompliance:    detectComplianceSyncFailures,
			ScanMaintenance:   detectOverdueMaintenance,
		},
		now: time.Now,
	}
}

// SetClock overrides the time source
func (s *DetectorService) SetClock(now func() time.Time) {
	s.now = now
}

type domainOutcome struct {
	domain    ScanType
	anomalies []database.Anomaly
	err       error
}

// Scan runs the selected domains concurrently, inserts every finding with its
// "detected" history entry in one transaction and queues CRITICAL findings
// for enrichment. A failing domain is skipped; the scan fails only when the
// store is unreachable, every domain failed or the insert failed, and then
// nothing is returned or persisted.
func (s *DetectorService) Scan(ctx context.Context, scanType ScanType, performedBy string) (*DetectionResult, error) {
	if performedBy == "" {
		performedBy = "system"
	}

	if err := database.Ping(ctx, s.db); err != nil {
		logging.Errorf("Anomaly detection aborted, store unreachable: %v", err)
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	now := s.now().UTC()
	domains := scanType.Domains()
	outcomes := make([]domainOutcome, len(domains))

	var wg conc.WaitGroup
	for i, domain := range domains {
		wg.Go(func() {
			outcomes[i] = s.scanDomain(ctx, domain, now)
		})
	}
	wg.Wait()

	result := &DetectionResult{Anomalies: []DetectedAnomaly{}}
	var found []database.Anomaly
	for _, o := range outcomes {
		if o.err != nil {
			logging.Warnf("Anomaly scan of %s domain failed: %v", o.domain, o.err)
			result.FailedDomains = append(result.FailedDomains, o.domain)
			continue
		}
		found = append(found, o.anomalies...)
	}

	if len(result.FailedDomains) == len(domains) {
		return nil, fmt.Errorf("%w: all %d domains failed", ErrStoreUnavailable, len(domains))
	}

	if len(found) > 0 {
		if err := s.persist(ctx, found, performedBy, now); err != nil {
			logging.Errorf("Failed to store detected anomalies: %v", err)
			return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
	}

	for i := range found {
		a := &found[i]
		result.Anomalies = append(result.Anomalies, DetectedAnomaly{
			ID:             a.ID,
			Type:           a.AnomalyType,
			Severity:       a.Severity,
			CanAutoResolve: a.CanAutoResolve(),
		})

		evt := events.FromAnomaly(events.TypeAnomalyDetected, a)
		evt.PerformedBy = performedBy
		s.publisher.Publish(ctx, evt)

		if a.Severity == database.SeverityCritical && s.enricher != nil {
			if !s.enricher.Enqueue(a.ID) {
				logging.Warnf("Enrichment queue full, skipping root cause for anomaly %s", a.ID)
			}
		}
	}
	result.Detected = len(result.Anomalies)

	logging.Infof("Anomaly scan (%s) detected %d anomalies, %d domains failed",
		scanType, result.Detected, len(result.FailedDomains))
	return result, nil
}

// scanDomain runs one rule, converting a panic into a domain failure
func (s *DetectorService) scanDomain(ctx context.Context, domain ScanType, now time.Time) domainOutcome {
	out := domainOutcome{domain: domain}

	r, ok := s.rules[domain]
	if !ok {
		out.err = fmt.Errorf("%w: %q", ErrUnknownScanType, domain)
		return out
	}

	var pc panics.Catcher
	pc.Try(func() {
		out.anomalies, out.err = r(ctx, s.db.WithContext(ctx), now)
	})
	if rec := pc.Recovered(); rec != nil {
		out.anomalies = nil
		out.err = rec.AsError()
	}
	return out
}

func (s *DetectorService) persist(ctx context.Context, found []database.Anomaly, performedBy string, now time.Time) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range found {
			found[i].DetectedAt = now
			found[i].Status = database.AnomalyStatusOpen
		}
		if err := tx.Create(&found).Error; err != nil {
			return fmt.Errorf("insert anomalies: %w", err)
		}

		history := make([]database.ResolutionHistoryEntry, 0, len(found))
		for _, a := range found {
			history = append(history, database.ResolutionHistoryEntry{
				AnomalyID:   a.ID,
				Action:      database.ResolutionActionDetected,
				Notes:       fmt.Sprintf("Detected with severity %s", a.Severity),
				PerformedAt: now,
				PerformedBy: performedBy,
			})
		}
		if err := tx.Create(&history).Error; err != nil {
			return fmt.Errorf("insert detection history: %w", err)
		}
		return nil
	})
}

// newAnomaly fills the fields shared by every rule
func newAnomaly(t database.AnomalyType, severity database.Severity, resourceType, resourceID, title, description string, details database.MetadataDetails) database.Anomaly {
	policy := LookupResolution(t)
	return database.Anomaly{
		AnomalyType:          t,
		Severity:             severity,
		Title:                title,
		Description:          description,
		SuggestedResolution:  policy.SuggestedResolution,
		AffectedResourceType: resourceType,
		AffectedResourceID:   resourceID,
		Status:               database.AnomalyStatusOpen,
		Metadata:             database.NewMetadata(t, policy.CanAutoResolve, details),
	}
}
