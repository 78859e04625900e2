package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/leaftrace/anomalyd/internal/database"
	"github.com/leaftrace/anomalyd/internal/testhelpers"
)

func TestAnomalyService_ListFilters(t *testing.T) {
	db := testhelpers.NewTestDB(t)
	s := NewAnomalyService(db)

	testhelpers.NewAnomalyBuilder().WithSeverity(database.SeverityCritical).DetectedAt(testNow.Add(-3 * day)).Create(t, db)
	testhelpers.NewAnomalyBuilder().WithSeverity(database.SeverityHigh).DetectedAt(testNow.Add(-2 * day)).Create(t, db)
	testhelpers.NewAnomalyBuilder().WithType(database.AnomalyTypeOverdueMaintenance).
		WithStatus(database.AnomalyStatusResolved).DetectedAt(testNow.Add(-day)).Create(t, db)

	tests := []struct {
		name   string
		filter AnomalyFilter
		want   int64
	}{
		{"all", AnomalyFilter{}, 3},
		{"by status", AnomalyFilter{Status: database.AnomalyStatusOpen}, 2},
		{"by severity", AnomalyFilter{Severity: database.SeverityCritical}, 1},
		{"by type", AnomalyFilter{AnomalyType: database.AnomalyTypeOverdueMaintenance}, 1},
		{"combined", AnomalyFilter{Status: database.AnomalyStatusResolved, Severity: database.SeverityCritical}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			list, total, err := s.List(context.Background(), tt.filter)
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			if total != tt.want || int64(len(list)) != tt.want {
				t.Errorf("got %d rows (total %d), want %d", len(list), total, tt.want)
			}
		})
	}
}

func TestAnomalyService_ListPaginatesNewestFirst(t *testing.T) {
	db := testhelpers.NewTestDB(t)
	s := NewAnomalyService(db)

	for i := 5; i >= 1; i-- {
		testhelpers.NewAnomalyBuilder().DetectedAt(testNow.Add(-time.Duration(i) * day)).Create(t, db)
	}

	page, total, err := s.List(context.Background(), AnomalyFilter{Offset: 2, Limit: 2})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if total != 5 || len(page) != 2 {
		t.Fatalf("expected 2 of 5, got %d of %d", len(page), total)
	}
	if !page[0].DetectedAt.After(page[1].DetectedAt) {
		t.Errorf("expected newest first, got %v then %v", page[0].DetectedAt, page[1].DetectedAt)
	}
}

func TestAnomalyService_GetAndHistory(t *testing.T) {
	db := testhelpers.NewTestDB(t)
	s := NewAnomalyService(db)
	wf := NewResolutionService(db, nil)

	a := testhelpers.NewAnomalyBuilder().Create(t, db)
	wf.Investigate(context.Background(), a.ID, "alice")
	wf.Resolve(context.Background(), a.ID, "done", "alice")

	got, err := s.Get(context.Background(), a.ID)
	if err != nil || got.Status != database.AnomalyStatusResolved {
		t.Fatalf("Get() = %+v, %v", got, err)
	}

	history, err := s.History(context.Background(), a.ID)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	want := []database.ResolutionAction{
		database.ResolutionActionDetected,
		database.ResolutionActionInvestigated,
		database.ResolutionActionResolved,
	}
	if len(history) != len(want) {
		t.Fatalf("expected %d entries, got %d", len(want), len(history))
	}
	for i, action := range want {
		if history[i].Action != action {
			t.Errorf("entry %d: got %s, want %s", i, history[i].Action, action)
		}
	}

	if _, err := s.Get(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := s.History(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestAnomalyService_Stats(t *testing.T) {
	db := testhelpers.NewTestDB(t)
	s := NewAnomalyService(db)

	testhelpers.NewAnomalyBuilder().WithSeverity(database.SeverityCritical).Create(t, db)
	testhelpers.NewAnomalyBuilder().WithSeverity(database.SeverityCritical).WithStatus(database.AnomalyStatusInvestigating).Create(t, db)
	testhelpers.NewAnomalyBuilder().WithSeverity(database.SeverityCritical).WithStatus(database.AnomalyStatusResolved).Create(t, db)
	testhelpers.NewAnomalyBuilder().WithSeverity(database.SeverityMedium).Create(t, db)

	stats, err := s.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if stats.Total != 4 {
		t.Errorf("expected total 4, got %d", stats.Total)
	}
	if stats.ByStatus[database.AnomalyStatusOpen] != 2 || stats.ByStatus[database.AnomalyStatusResolved] != 1 {
		t.Errorf("unexpected by_status %v", stats.ByStatus)
	}
	if stats.BySeverity[database.SeverityCritical] != 3 || stats.BySeverity[database.SeverityMedium] != 1 {
		t.Errorf("unexpected by_severity %v", stats.BySeverity)
	}
	if stats.OpenCritical != 2 {
		t.Errorf("expected 2 open critical, got %d", stats.OpenCritical)
	}
}
