package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	SyncRunStatusQueued  = "queued"
	SyncRunStatusRunning = "running"
	SyncRunStatusSuccess = "success"
	SyncRunStatusFailed  = "failed"
	SyncRunStatusPartial = "partial"
)

const (
	SyncTriggeredManual   = "manual"
	SyncTriggeredSchedule = "schedule"
	SyncTriggeredRetry    = "retry"
)

const (
	MissingStatusMissing = "missing"
	MissingStatusCreated = "created"
	MissingStatusIgnored = "ignored"
)

// SyncRun is the per-run summary row. A run is queued by a trigger, picked up
// by the worker, and finalized exactly once; terminal statuses make redelivery
// a no-op.
type SyncRun struct {
	ID               uint       `gorm:"primary_key" json:"id"`
	Status           string     `gorm:"size:20;not null" json:"status"`
	TriggeredBy      string     `gorm:"size:20" json:"triggered_by"`
	RecordsProcessed int        `json:"records_processed"`
	RecordsFailed    int        `json:"records_failed"`
	MissingCreated   int        `json:"missing_created"`
	MissingIgnored   int        `json:"missing_ignored"`
	SkippedByFilter  int        `json:"skipped_by_filter"`
	ErrorCount       int        `json:"error_count"`
	Message          string     `gorm:"type:text" json:"message"`
	StatsJSON        []byte     `gorm:"type:json" json:"stats"`
	StartedAt        *time.Time `json:"started_at"`
	FinishedAt       *time.Time `json:"finished_at"`
	DurationMs       int64      `json:"duration_ms"`
	CreatedAt        time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// SyncLogEntry is one immutable audit record per processed inventory item.
// The whole set is cleared at the start of the next run; there is no
// historical retention beyond one run.
type SyncLogEntry struct {
	ID         uint            `gorm:"primary_key" json:"id"`
	SyncRunId  uint            `gorm:"index" json:"sync_run_id"`
	Sku        string          `gorm:"index;size:100" json:"sku"`
	Barcode    string          `gorm:"size:100" json:"barcode"`
	ExternalId string          `gorm:"size:100" json:"external_id"`
	Brand      string          `gorm:"size:100" json:"brand"`
	Quantity   decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"quantity"`
	Alert      bool            `gorm:"default:false" json:"alert"`
	Note       string          `gorm:"type:text" json:"note"`
	CreatedAt  time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

// UnpublishedProduct records every item whose computed publish decision came
// out false, with the identifier fields that caused it. Cleared each run.
type UnpublishedProduct struct {
	ID            uint            `gorm:"primary_key" json:"id"`
	SyncRunId     uint            `gorm:"index" json:"sync_run_id"`
	Sku           string          `gorm:"size:100;not null" json:"sku"`
	Barcode       string          `gorm:"size:100" json:"barcode"`
	ExternalId    string          `gorm:"size:100" json:"external_id"`
	Brand         string          `gorm:"size:100" json:"brand"`
	Quantity      decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"quantity"`
	MissingFields string          `gorm:"size:50" json:"missing_fields"`
	Note          string          `gorm:"type:text" json:"note"`
	SyncDate      time.Time       `json:"sync_date"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

// MissingProduct is a feed record with no corresponding inventory item.
// CreatedAt doubles as first-seen; LastSyncAt is refreshed while the record
// stays in missing status. created/ignored are terminal for the resolver.
type MissingProduct struct {
	ID         uint            `gorm:"primary_key" json:"id"`
	Sku        string          `gorm:"index;size:100;not null" json:"sku"`
	ExternalId string          `gorm:"size:100" json:"external_id"`
	Barcode    string          `gorm:"size:100" json:"barcode"`
	Brand      string          `gorm:"size:100" json:"brand"`
	Quantity   decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"quantity"`
	Status     string          `gorm:"index;size:20;not null;default:missing" json:"status"`
	Note       string          `gorm:"type:text" json:"note"`
	LastSyncAt *time.Time      `json:"last_sync_at"`
	CreatedAt  time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}
