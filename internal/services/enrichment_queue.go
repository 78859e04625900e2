package services

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/atomic"
	"gorm.io/gorm"

	"github.com/leaftrace/anomalyd/internal/database"
	"github.com/leaftrace/anomalyd/internal/events"
	"github.com/leaftrace/anomalyd/internal/logging"
)

// EnrichmentStats reports queue activity since start
type EnrichmentStats struct {
	Enqueued  int64 `json:"enqueued"`
	Dropped   int64 `json:"dropped"`
	Succeeded int64 `json:"succeeded"`
	Failed    int64 `json:"failed"`
	Skipped   int64 `json:"skipped"`
	Pending   int   `json:"pending"`
}

type enrichmentTask struct {
	anomalyID string
}

// EnrichmentQueue generates root-cause narratives for CRITICAL anomalies in
// the background. Detection only enqueues; each task is bounded by the
// configured timeout and a failure affects only its own anomaly.
type EnrichmentQueue struct {
	db        *gorm.DB
	generator RootCauseGenerator
	publisher events.Publisher
	workers   int
	tasks     chan enrichmentTask

	mu      sync.RWMutex
	started bool
	closed  bool
	wg      sync.WaitGroup

	enqueued  atomic.Int64
	dropped   atomic.Int64
	succeeded atomic.Int64
	failed    atomic.Int64
	skipped   atomic.Int64
}

// NewEnrichmentQueue creates a queue with the given worker count and capacity
func NewEnrichmentQueue(db *gorm.DB, generator RootCauseGenerator, publisher events.Publisher, workers, size int) *EnrichmentQueue {
	if workers < 1 {
		workers = 1
	}
	if size < 1 {
		size = 1
	}
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &EnrichmentQueue{
		db:        db,
		generator: generator,
		publisher: publisher,
		workers:   workers,
		tasks:     make(chan enrichmentTask, size),
	}
}

// Start launches the workers. Calling Start twice has no effect.
func (q *EnrichmentQueue) Start() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started || q.closed {
		return
	}
	q.started = true

	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(i)
	}
	logging.Infof("Enrichment queue started with %d workers (capacity %d)", q.workers, cap(q.tasks))
}

// Enqueue schedules an anomaly for enrichment without blocking. It returns
// false when the queue is full or stopped.
func (q *EnrichmentQueue) Enqueue(anomalyID string) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		q.dropped.Inc()
		return false
	}

	select {
	case q.tasks <- enrichmentTask{anomalyID: anomalyID}:
		q.enqueued.Inc()
		return true
	default:
		q.dropped.Inc()
		return false
	}
}

// Stop stops accepting tasks and waits for queued ones to drain or ctx to end
func (q *EnrichmentQueue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.tasks)
	}
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logging.Infof("Enrichment queue stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("enrichment queue drain: %w", ctx.Err())
	}
}

// Stats returns current counters
func (q *EnrichmentQueue) Stats() EnrichmentStats {
	return EnrichmentStats{
		Enqueued:  q.enqueued.Load(),
		Dropped:   q.dropped.Load(),
		Succeeded: q.succeeded.Load(),
		Failed:    q.failed.Load(),
		Skipped:   q.skipped.Load(),
		Pending:   len(q.tasks),
	}
}

func (q *EnrichmentQueue) worker(n int) {
	defer q.wg.Done()
	for task := range q.tasks {
		q.process(task)
	}
	logging.Debugf("Enrichment worker %d exited", n)
}

func (q *EnrichmentQueue) process(task enrichmentTask) {
	defer func() {
		if r := recover(); r != nil {
			q.failed.Inc()
			logging.Errorf("Root cause enrichment for anomaly %s panicked: %v", task.anomalyID, r)
		}
	}()

	settings, err := database.GetOrCreateDetectionSettings(q.db)
	if err != nil {
		q.failed.Inc()
		logging.Warnf("Skipping root cause for anomaly %s, settings unavailable: %v", task.anomalyID, err)
		return
	}
	if !settings.EnrichmentEnabled || q.generator == nil {
		q.skipped.Inc()
		return
	}

	var a database.Anomaly
	if err := q.db.Where("id = ?", task.anomalyID).First(&a).Error; err != nil {
		q.failed.Inc()
		logging.Warnf("Skipping root cause for anomaly %s: %v", task.anomalyID, err)
		return
	}
	if a.Severity != database.SeverityCritical {
		q.skipped.Inc()
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), settings.EnrichmentTimeout())
	defer cancel()

	text, err := q.generator.GenerateRootCause(ctx, &a)
	if err != nil {
		q.failed.Inc()
		if errors.Is(err, context.DeadlineExceeded) {
			logging.Warnf("Root cause for anomaly %s timed out after %s", a.ID, settings.EnrichmentTimeout())
		} else {
			logging.Warnf("Root cause for anomaly %s failed: %v", a.ID, err)
		}
		return
	}

	// Only the narrative columns are patched; status belongs to the workflow.
	res := q.db.Model(&database.Anomaly{}).Where("id = ?", a.ID).Updates(map[string]interface{}{
		"ai_root_cause": text,
		"root_cause":    text,
	})
	if res.Error != nil {
		q.failed.Inc()
		logging.Warnf("Failed to store root cause for anomaly %s: %v", a.ID, res.Error)
		return
	}

	q.succeeded.Inc()
	a.AIRootCause = &text
	a.RootCause = &text
	evt := events.FromAnomaly(events.TypeAnomalyEnriched, &a)
	evt.PerformedBy = "system"
	q.publisher.Publish(context.Background(), evt)
	logging.Infof("Stored root cause for anomaly %s", a.ID)
}
