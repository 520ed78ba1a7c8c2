package warehousesync

import "encoding/json"

type SyncRunResponse struct {
	ID               uint            `json:"id"`
	Status           string          `json:"status"`
	TriggeredBy      string          `json:"triggered_by"`
	RecordsProcessed int             `json:"records_processed"`
	RecordsFailed    int             `json:"records_failed"`
	MissingCreated   int             `json:"missing_created"`
	MissingIgnored   int             `json:"missing_ignored"`
	SkippedByFilter  int             `json:"skipped_by_filter"`
	ErrorCount       int             `json:"error_count"`
	Message          string          `json:"message"`
	Stats            json.RawMessage `json:"stats,omitempty"`
	StartedAt        *string         `json:"started_at"`
	FinishedAt       *string         `json:"finished_at"`
	DurationMs       int64           `json:"duration_ms"`
}

type SyncHistoryResponse struct {
	Items []SyncRunResponse `json:"items"`
}

type SyncLogEntryResponse struct {
	ID         uint   `json:"id"`
	Sku        string `json:"sku"`
	Barcode    string `json:"barcode"`
	ExternalId string `json:"external_id"`
	Brand      string `json:"brand"`
	Quantity   string `json:"quantity"`
	Alert      bool   `json:"alert"`
	Note       string `json:"note"`
}

type SyncRunDetailResponse struct {
	SyncRunResponse
	Entries []SyncLogEntryResponse `json:"entries"`
}

type StatusResponse struct {
	LastRun          *SyncRunResponse `json:"last_run"`
	MissingOpen      int64            `json:"missing_open"`
	UnpublishedCount int64            `json:"unpublished_count"`
	AlertCount       int64            `json:"alert_count"`
	HighStockCount   int64            `json:"high_stock_count"`
}

type UpdateSettingsRequest struct {
	FilterMissingProducts *bool   `json:"filter_missing_products"`
	AllowedPrefixes       *string `json:"allowed_prefixes"`
	NotifyEnabled         *bool   `json:"notify_enabled"`
	RecipientEmail        *string `json:"recipient_email"`
	ChunkSize             *int    `json:"chunk_size"`
	MissingRetentionHours *int    `json:"missing_retention_hours"`
}

type MissingProductResponse struct {
	ID         uint    `json:"id"`
	Sku        string  `json:"sku"`
	ExternalId string  `json:"external_id"`
	Barcode    string  `json:"barcode"`
	Brand      string  `json:"brand"`
	Quantity   string  `json:"quantity"`
	Status     string  `json:"status"`
	Note       string  `json:"note"`
	FirstSeen  string  `json:"first_seen"`
	LastSeen   *string `json:"last_seen"`
}

type MissingProductListResponse struct {
	Items []MissingProductResponse `json:"items"`
}

type CreateMissingProductRequest struct {
	Name string `json:"name"`
}

type IgnoreMissingProductRequest struct {
	Note string `json:"note"`
}
