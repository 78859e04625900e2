package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/leaftrace/anomalyd/internal/database"
	"github.com/leaftrace/anomalyd/internal/events"
	"github.com/leaftrace/anomalyd/internal/logging"
)

// ResolutionService drives anomalies through their lifecycle:
// open -> investigating -> resolved, and open|investigating -> escalated.
// resolved and escalated are terminal.
type ResolutionService struct {
	db        *gorm.DB
	publisher events.Publisher
	now       func() time.Time
}

// NewResolutionService creates a resolution workflow. publisher may be nil.
func NewResolutionService(db *gorm.DB, publisher events.Publisher) *ResolutionService {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &ResolutionService{db: db, publisher: publisher, now: time.Now}
}

// SetClock overrides the time source
func (s *ResolutionService) SetClock(now func() time.Time) {
	s.now = now
}

// transition describes one guarded status change
type transition struct {
	name    string
	from    []database.AnomalyStatus
	action  database.ResolutionAction
	notes   string
	notesOf func(a *database.Anomaly) string
	updates func(a *database.Anomaly, now time.Time) map[string]interface{}
	guard   func(a *database.Anomaly) *TransitionError
}

// Investigate moves an open anomaly to investigating
func (s *ResolutionService) Investigate(ctx context.Context, id, performedBy string) (*database.Anomaly, error) {
	return s.apply(ctx, id, performedBy, transition{
		name:   "investigate",
		from:   []database.AnomalyStatus{database.AnomalyStatusOpen},
		action: database.ResolutionActionInvestigated,
		notes:  "Investigation started",
	})
}

// Resolve closes an open or investigating anomaly with the operator's notes
func (s *ResolutionService) Resolve(ctx context.Context, id, notes, performedBy string) (*database.Anomaly, error) {
	notes = strings.TrimSpace(notes)
	if notes == "" {
		return nil, rejection(CodeValidation, "resolve", id, "resolution notes are required")
	}

	return s.apply(ctx, id, performedBy, transition{
		name:   "resolve",
		from:   []database.AnomalyStatus{database.AnomalyStatusOpen, database.AnomalyStatusInvestigating},
		action: database.ResolutionActionResolved,
		notes:  notes,
		updates: func(_ *database.Anomaly, now time.Time) map[string]interface{} {
			return map[string]interface{}{
				"resolved_at":        now,
				"resolution_applied": notes,
			}
		},
	})
}

// Escalate hands an open or investigating anomaly off. escalatedTo is an
// optional free-text target.
func (s *ResolutionService) Escalate(ctx context.Context, id, reason, escalatedTo, performedBy string) (*database.Anomaly, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, rejection(CodeValidation, "escalate", id, "escalation reason is required")
	}
	escalatedTo = strings.TrimSpace(escalatedTo)

	notes := reason
	if escalatedTo != "" {
		notes = fmt.Sprintf("%s (escalated to %s)", reason, escalatedTo)
	}

	return s.apply(ctx, id, performedBy, transition{
		name:   "escalate",
		from:   []database.AnomalyStatus{database.AnomalyStatusOpen, database.AnomalyStatusInvestigating},
		action: database.ResolutionActionEscalated,
		notes:  notes,
		updates: func(_ *database.Anomaly, now time.Time) map[string]interface{} {
			u := map[string]interface{}{
				"escalated_at":      now,
				"escalation_reason": reason,
			}
			if escalatedTo != "" {
				u["escalated_to"] = escalatedTo
			}
			return u
		},
	})
}

// AutoResolve applies the type's suggested resolution without operator notes.
// It is only permitted when the anomaly was detected as auto-resolvable and
// is never invoked by detection itself.
func (s *ResolutionService) AutoResolve(ctx context.Context, id, performedBy string) (*database.Anomaly, error) {
	return s.apply(ctx, id, performedBy, transition{
		name:   "auto-resolve",
		from:   []database.AnomalyStatus{database.AnomalyStatusOpen, database.AnomalyStatusInvestigating},
		action: database.ResolutionActionResolved,
		guard: func(a *database.Anomaly) *TransitionError {
			if !a.CanAutoResolve() {
				return rejection(CodeNotAutoResolvable, "auto-resolve", a.ID,
					fmt.Sprintf("%s anomalies require operator resolution", a.AnomalyType))
			}
			return nil
		},
		notesOf: func(a *database.Anomaly) string {
			return "Auto-resolved: " + a.SuggestedResolution
		},
		updates: func(a *database.Anomaly, now time.Time) map[string]interface{} {
			return map[string]interface{}{
				"resolved_at":        now,
				"resolution_applied": a.SuggestedResolution,
			}
		},
	})
}

// apply runs a transition atomically. The status change is a conditional
// update on the status read inside the transaction, so a concurrent
// transition on the same anomaly makes this one fail with invalid_state.
func (s *ResolutionService) apply(ctx context.Context, id, performedBy string, t transition) (*database.Anomaly, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, rejection(CodeNotFound, t.name, id, "anomaly id is required")
	}
	if performedBy == "" {
		performedBy = "system"
	}

	now := s.now().UTC()
	var previous database.AnomalyStatus
	var updated database.Anomaly
	notes := t.notes

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current database.Anomaly
		if err := tx.Where("id = ?", id).First(&current).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return rejection(CodeNotFound, t.name, id, "anomaly not found")
			}
			return fmt.Errorf("load anomaly %s: %w", id, err)
		}

		if current.Status.IsTerminal() {
			return rejection(CodeInvalidState, t.name, id,
				fmt.Sprintf("anomaly is already %s", current.Status))
		}
		if !statusIn(current.Status, t.from) {
			return rejection(CodeInvalidState, t.name, id,
				fmt.Sprintf("cannot %s anomaly in status %s", t.name, current.Status))
		}
		if t.guard != nil {
			if rej := t.guard(&current); rej != nil {
				return rej
			}
		}

		target := t.action.ResultingStatus()
		updates := map[string]interface{}{}
		if t.updates != nil {
			updates = t.updates(&current, now)
		}
		updates["status"] = target

		if t.notesOf != nil {
			notes = t.notesOf(&current)
		}

		res := tx.Model(&database.Anomaly{}).
			Where("id = ? AND status = ?", id, current.Status).
			Updates(updates)
		if res.Error != nil {
			return fmt.Errorf("update anomaly %s: %w", id, res.Error)
		}
		if res.RowsAffected == 0 {
			return rejection(CodeInvalidState, t.name, id, "anomaly status changed concurrently")
		}

		entry := database.ResolutionHistoryEntry{
			AnomalyID:   id,
			Action:      t.action,
			Notes:       notes,
			PerformedAt: now,
			PerformedBy: performedBy,
		}
		if err := tx.Create(&entry).Error; err != nil {
			return fmt.Errorf("append history for %s: %w", id, err)
		}

		previous = current.Status
		return tx.Where("id = ?", id).First(&updated).Error
	})
	if err != nil {
		var te *TransitionError
		if errors.As(err, &te) {
			logging.Debugf("Rejected %s of anomaly %s: %s", t.name, id, te.Message)
		} else {
			logging.Errorf("Failed to %s anomaly %s: %v", t.name, id, err)
		}
		return nil, err
	}

	logging.Infof("Anomaly %s: %s -> %s by %s", id, previous, updated.Status, performedBy)

	evt := events.FromAnomaly(events.TypeStatusChanged, &updated)
	evt.PreviousStatus = previous
	evt.PerformedBy = performedBy
	evt.Notes = notes
	s.publisher.Publish(ctx, evt)

	return &updated, nil
}

func statusIn(s database.AnomalyStatus, set []database.AnomalyStatus) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}
