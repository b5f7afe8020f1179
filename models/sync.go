package models

import (
	"time"

	"gorm.io/gorm"
)

// Sync run outcomes recorded in SyncStatus.Status.
const (
	SyncStatusSuccess    = "success"
	SyncStatusPartial    = "partial"
	SyncStatusFailed     = "failed"
	SyncStatusInProgress = "in_progress"
)

// Data types handled by sync jobs and the manual trigger surface.
const (
	DataTypeStocks     = "stocks"
	DataTypePrices     = "prices"
	DataTypeIndicators = "indicators"
	DataTypeFinancials = "financials"
	DataTypeDividends  = "dividends"
)

// SyncStatus records the aggregate outcome of one sync run. Rows are
// insert-only; the logical "latest" row per (data_type, source) is the most
// recent by last_sync_at.
type SyncStatus struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	DataType     string    `gorm:"index:idx_sync_type_source;not null" json:"data_type"`
	Source       string    `gorm:"index:idx_sync_type_source;not null" json:"source"`
	LastSyncAt   time.Time `json:"last_sync_at"`
	Status       string    `json:"status"`
	RecordCount  int       `json:"record_count"`
	ErrorMessage string    `json:"error_message"`
	CreatedAt    time.Time `json:"created_at"`
}

// SyncError records one permanent per-entity failure for operator triage.
// Append-only; Resolved is toggled by an operator, not by the engine.
type SyncError struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	DataType     string    `gorm:"index" json:"data_type"`
	Symbol       string    `json:"symbol"`
	ErrorType    string    `json:"error_type"`
	ErrorMessage string    `json:"error_message"`
	ErrorStack   string    `json:"error_stack"`
	RetryCount   int       `json:"retry_count"`
	Resolved     bool      `json:"resolved"`
	SyncedAt     time.Time `json:"synced_at"`
	CreatedAt    time.Time `json:"created_at"`
}

// MigrateSyncModels runs database migrations for sync bookkeeping models
func MigrateSyncModels(db *gorm.DB) error {
	return db.AutoMigrate(
		&SyncStatus{},
		&SyncError{},
	)
}
