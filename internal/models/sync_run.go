package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type RunKind string

const (
	RunKindSync  RunKind = "sync"
	RunKindSplit RunKind = "split"
)

type RunStatus string

const (
	RunStatusRunning   RunStatus = "RUNNING"
	RunStatusCompleted RunStatus = "COMPLETED"
	RunStatusFailed    RunStatus = "FAILED"
	RunStatusCancelled RunStatus = "CANCELLED"
)

// SyncRun is one execution of the pipeline.
type SyncRun struct {
	ID          string     `json:"id" gorm:"type:varchar(36);primaryKey"`
	Kind        RunKind    `json:"kind" gorm:"not null"`
	Status      RunStatus  `json:"status" gorm:"not null;default:RUNNING"`
	Source      string     `json:"source"`
	Origin      string     `json:"origin"`
	Schema      string     `json:"schema"`
	Processed   int        `json:"processed"`
	Created     int        `json:"created"`
	Duplicates  int        `json:"duplicates"`
	Errors      int        `json:"errors"`
	Sellable    int        `json:"sellable"`
	OutOfStock  int        `json:"out_of_stock"`
	SuccessRate float64    `json:"success_rate"`
	Message     string     `json:"message"`
	StartedAt   time.Time  `json:"started_at"`
	FinishedAt  *time.Time `json:"finished_at"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// SyncRecord is the outcome of one product inside a run.
type SyncRecord struct {
	ID        string    `json:"id" gorm:"type:varchar(36);primaryKey"`
	RunID     string    `json:"run_id" gorm:"index;not null"`
	SourceRow int       `json:"source_row"`
	Handle    string    `json:"handle" gorm:"index"`
	SKU       string    `json:"sku"`
	Title     string    `json:"title"`
	State     string    `json:"state" gorm:"index"`
	ErrorKind string    `json:"error_kind"`
	Error     string    `json:"error"`
	RemoteID  int64     `json:"remote_id"`
	Steps     string    `json:"steps"`
	CreatedAt time.Time `json:"created_at"`
}

func (r *SyncRun) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	return nil
}

func (r *SyncRecord) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	return nil
}
