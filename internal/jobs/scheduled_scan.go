package jobs

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/leaftrace/anomalyd/internal/database"
	"github.com/leaftrace/anomalyd/internal/logging"
	"github.com/leaftrace/anomalyd/internal/services"
	"github.com/leaftrace/anomalyd/internal/utils"
)

// ScheduledBy is recorded as the actor of scans started by the scheduler
const ScheduledBy = "system"

// Scanner runs a detection pass
type Scanner interface {
	Scan(ctx context.Context, scanType services.ScanType, performedBy string) (*services.DetectionResult, error)
}

// ScheduledScanner periodically runs a full detection scan while
// scheduled scanning is enabled in the detection settings
type ScheduledScanner struct {
	db      *gorm.DB
	scanner Scanner
	timeout time.Duration
}

// NewScheduledScanner creates a new scheduled scanner
func NewScheduledScanner(db *gorm.DB, scanner Scanner) *ScheduledScanner {
	return &ScheduledScanner{db: db, scanner: scanner, timeout: 2 * time.Minute}
}

// RunOnce scans every domain if scheduling is enabled. It reports whether
// a scan was attempted.
func (s *ScheduledScanner) RunOnce(ctx context.Context) (bool, *services.DetectionResult, error) {
	settings, err := database.GetOrCreateDetectionSettings(s.db)
	if err != nil {
		return false, nil, err
	}
	if !settings.ScheduledScanEnabled {
		return false, nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	result, err := s.scanner.Scan(ctx, services.ScanAll, ScheduledBy)
	return true, result, err
}

// nextInterval reads the configured interval, keeping the previous one
// when settings cannot be loaded
func (s *ScheduledScanner) nextInterval(current time.Duration) time.Duration {
	settings, err := database.GetOrCreateDetectionSettings(s.db)
	if err != nil {
		logging.Warnf("Scheduled scan: could not read settings, keeping %s interval: %v", current, err)
		return current
	}
	return settings.ScanInterval()
}

// Start runs scans until stop is closed. The interval is re-read after
// every tick so changes apply without a restart.
func (s *ScheduledScanner) Start(stop <-chan struct{}) {
	interval := s.nextInterval(database.NewDefaultDetectionSettings().ScanInterval())
	timer := time.NewTimer(interval)
	defer timer.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-stop
		cancel()
	}()

	for {
		select {
		case <-timer.C:
			interval = s.tick(ctx, interval)
			timer.Reset(interval)
		case <-stop:
			logging.Infof("Scheduled scanner stopped")
			return
		}
	}
}

// tick runs one scheduled round and returns the interval until the next,
// which stays at current when settings are unreadable
func (s *ScheduledScanner) tick(ctx context.Context, current time.Duration) time.Duration {
	started := time.Now()
	ran, result, err := s.RunOnce(ctx)
	switch {
	case err != nil:
		logging.Errorf("Scheduled scan error: %v", err)
	case ran:
		logging.Infof("Scheduled scan: detected %d anomalies in %s", result.Detected, utils.FormatDuration(time.Since(started)))
	}
	return s.nextInterval(current)
}
