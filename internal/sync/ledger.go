package sync

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/beizuri/posedge/internal/database"
	"github.com/beizuri/posedge/internal/models"
	"gorm.io/gorm"
)

// Default watermark windows for a terminal with no prior successful sync.
// Catalog pulls rescan a generous year; transactional history is capped at
// a month because it grows without bound and older records are assumed
// already materialized.
const (
	CatalogFallbackWindow     = 365 * 24 * time.Hour
	TransactionFallbackWindow = 30 * 24 * time.Hour
)

// Ledger is the append-only log of sync attempts. The most recent success
// entry per sync type defines the watermark for the next incremental pull
// of that type; failed entries are kept for observability but never move
// the watermark.
type Ledger struct {
	db *database.DB
}

// NewLedger creates a ledger over the local store
func NewLedger(db *database.DB) *Ledger {
	return &Ledger{db: db}
}

// RecordSuccess appends a success entry. Pass the reconciliation
// transaction as tx so the entry commits or rolls back together with the
// data it describes; pass nil to write against the base connection.
func (l *Ledger) RecordSuccess(tx *gorm.DB, syncType string, count int, startedAt time.Time, detail interface{}) error {
	if tx == nil {
		tx = l.db.DB
	}

	now := time.Now().UTC()
	entry := models.SyncLog{
		SyncType:     syncType,
		Status:       models.SyncStatusSuccess,
		RecordsCount: count,
		StartedAt:    startedAt,
		CompletedAt:  &now,
	}
	if detail != nil {
		if raw, err := json.Marshal(detail); err == nil {
			entry.Detail = raw
		}
	}

	return tx.Create(&entry).Error
}

// RecordFailure appends a failed entry. Failures are written outside any
// data transaction: the attempt's entry must survive the rollback of the
// work it reports on.
func (l *Ledger) RecordFailure(syncType, errorMessage string, startedAt time.Time) error {
	now := time.Now().UTC()
	entry := models.SyncLog{
		SyncType:     syncType,
		Status:       models.SyncStatusFailed,
		ErrorMessage: errorMessage,
		StartedAt:    startedAt,
		CompletedAt:  &now,
	}
	return l.db.Create(&entry).Error
}

// LastSuccess returns the newest success entry for a sync type, or nil if
// that type has never succeeded
func (l *Ledger) LastSuccess(syncType string) (*models.SyncLog, error) {
	var entry models.SyncLog
	err := l.db.
		Where("sync_type = ? AND status = ?", syncType, models.SyncStatusSuccess).
		Order("completed_at DESC").
		First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// Watermark computes the "since" timestamp for the next incremental pull
// of a sync type: the completion time of the last success, else now minus
// the fallback window.
func (l *Ledger) Watermark(syncType string, fallback time.Duration) (time.Time, error) {
	last, err := l.LastSuccess(syncType)
	if err != nil {
		return time.Time{}, err
	}
	if last == nil || last.CompletedAt == nil {
		return time.Now().UTC().Add(-fallback), nil
	}
	return *last.CompletedAt, nil
}

// HasBootstrapped reports whether the initial catalog sync ever succeeded
func (l *Ledger) HasBootstrapped() (bool, error) {
	var count int64
	err := l.db.Model(&models.SyncLog{}).
		Where("sync_type = ? AND status = ?", models.SyncTypeInitial, models.SyncStatusSuccess).
		Count(&count).Error
	return count > 0, err
}

// Recent returns the newest entries across all sync types
func (l *Ledger) Recent(limit int) ([]models.SyncLog, error) {
	if limit <= 0 {
		limit = 50
	}
	var entries []models.SyncLog
	err := l.db.Order("started_at DESC").Limit(limit).Find(&entries).Error
	return entries, err
}
