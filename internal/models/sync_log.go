package models

import (
	"time"

	"gorm.io/datatypes"
)

// Sync types, one per direction and payload kind
const (
	SyncTypeInitial     = "initial"
	SyncTypePull        = "pull"
	SyncTypePushSales   = "push_sales"
	SyncTypePushReturns = "push_returns"
	SyncTypePullSales   = "pull_sales"
	SyncTypePullReturns = "pull_returns"
)

// Sync statuses
const (
	SyncStatusSuccess = "success"
	SyncStatusFailed  = "failed"
)

// SyncLog records one synchronization attempt. Entries are append-only:
// the newest success entry per sync type is the watermark for the next
// incremental pull of that type, failed entries never move it.
type SyncLog struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	SyncType     string         `gorm:"type:varchar(20);not null;index" json:"syncType"`
	Status       string         `gorm:"type:varchar(20);not null;index" json:"status"`
	RecordsCount int            `gorm:"default:0" json:"recordsCount"`
	ErrorMessage string         `gorm:"type:text" json:"errorMessage,omitempty"`
	Detail       datatypes.JSON `json:"detail,omitempty"` // skipped record identifiers, per-step notes
	StartedAt    time.Time      `gorm:"not null;index" json:"startedAt"`
	CompletedAt  *time.Time     `gorm:"index" json:"completedAt,omitempty"`
}

// TableName specifies the table name
func (SyncLog) TableName() string {
	return "sync_logs"
}

// Succeeded reports whether this attempt finished cleanly
func (l SyncLog) Succeeded() bool {
	return l.Status == SyncStatusSuccess
}
