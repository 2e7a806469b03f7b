package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"catalogsync/internal/logger"
	"catalogsync/internal/models"
	"catalogsync/internal/syncer"

	"gorm.io/gorm"
)

var ErrNotFound = errors.New("not found")

// RunStore persists runs and their per-record outcomes.
type RunStore struct {
	db     *gorm.DB
	logger *logger.Logger
}

func NewRunStore(db *gorm.DB, logger *logger.Logger) *RunStore {
	return &RunStore{db: db, logger: logger}
}

func (s *RunStore) CreateRun(ctx context.Context, run *models.SyncRun) error {
	if run.Status == "" {
		run.Status = models.RunStatusRunning
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}
	if err := s.db.WithContext(ctx).Create(run).Error; err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}
	return nil
}

// UpdateSource stores where the run's input came from once it is known.
func (s *RunStore) UpdateSource(ctx context.Context, runID, source, origin, schema string) error {
	err := s.db.WithContext(ctx).Model(&models.SyncRun{}).Where("id = ?", runID).Updates(map[string]interface{}{
		"source": source,
		"origin": origin,
		"schema": schema,
	}).Error
	if err != nil {
		return fmt.Errorf("failed to update run source: %w", err)
	}
	return nil
}

func (s *RunStore) RecordOutcome(ctx context.Context, runID string, p *models.Product, o syncer.Outcome) error {
	rec := models.SyncRecord{
		RunID:     runID,
		SourceRow: p.SourceRow,
		Handle:    p.Handle,
		SKU:       p.Variant.SKU,
		Title:     p.Title,
		State:     string(o.State),
		ErrorKind: string(o.Kind),
		RemoteID:  o.Ref.ID,
		Steps:     formatSteps(o.Steps),
	}
	if o.Err != nil {
		rec.Error = o.Err.Error()
	}
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return fmt.Errorf("failed to record outcome: %w", err)
	}
	return nil
}

// FinishRun copies the final counters onto the run.
func (s *RunStore) FinishRun(ctx context.Context, runID string, status models.RunStatus, stats *models.Statistics, message string) error {
	now := time.Now()
	updates := map[string]interface{}{
		"status":      status,
		"message":     message,
		"finished_at": &now,
	}
	if stats != nil {
		updates["processed"] = stats.Processed
		updates["created"] = stats.Created
		updates["duplicates"] = stats.Duplicates
		updates["errors"] = stats.ErrorCount()
		updates["sellable"] = stats.Sellable
		updates["out_of_stock"] = stats.OutOfStock
		updates["success_rate"] = stats.SuccessRate()
	}
	err := s.db.WithContext(ctx).Model(&models.SyncRun{}).Where("id = ?", runID).Updates(updates).Error
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	return nil
}

// ListRuns returns a page of runs, newest first, and the total count.
func (s *RunStore) ListRuns(ctx context.Context, page, limit int) ([]models.SyncRun, int64, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}

	var total int64
	if err := s.db.WithContext(ctx).Model(&models.SyncRun{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count runs: %w", err)
	}

	var runs []models.SyncRun
	err := s.db.WithContext(ctx).
		Order("started_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&runs).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list runs: %w", err)
	}
	return runs, total, nil
}

func (s *RunStore) GetRun(ctx context.Context, id string) (*models.SyncRun, error) {
	var run models.SyncRun
	if err := s.db.WithContext(ctx).First(&run, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("run %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to fetch run: %w", err)
	}
	return &run, nil
}

// ListRecords returns the outcomes of a run in processing order, optionally
// filtered by state.
func (s *RunStore) ListRecords(ctx context.Context, runID, state string) ([]models.SyncRecord, error) {
	query := s.db.WithContext(ctx).Where("run_id = ?", runID)
	if state != "" {
		query = query.Where("state = ?", state)
	}
	var records []models.SyncRecord
	if err := query.Order("created_at ASC, source_row ASC").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	return records, nil
}

// Recorder returns an observer that writes every outcome of runID. Write
// failures are logged and never reach the engine.
func (s *RunStore) Recorder(runID string) syncer.Observer {
	return syncer.ObserverFunc(func(ctx context.Context, p *models.Product, o syncer.Outcome) {
		if err := s.RecordOutcome(context.WithoutCancel(ctx), runID, p, o); err != nil {
			s.logger.Error("Ledger write failed for %s: %v", p.Handle, err)
		}
	})
}

func formatSteps(steps []syncer.StepResult) string {
	parts := make([]string, 0, len(steps))
	for _, st := range steps {
		parts = append(parts, st.Name+":"+string(st.Status))
	}
	return strings.Join(parts, ",")
}
