package warehousesync

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"bitbucket.org/mmdatafocus/warehouse_backend/config"
	"bitbucket.org/mmdatafocus/warehouse_backend/models"
)

// Config is the per-run snapshot of the settings row. The worker loads it
// once at run start; settings edits land on the next run.
type Config struct {
	FilterMissingProducts bool
	AllowedPrefixes       string
	NotifyEnabled         bool
	RecipientEmail        string
	ChunkSize             int
	MissingRetentionHours int
}

func LoadConfig(ctx context.Context, db *gorm.DB) (Config, error) {
	setting, err := models.GetSyncSetting(ctx, db)
	if err != nil {
		return Config{}, err
	}
	return Config{
		FilterMissingProducts: setting.FilterMissingProducts,
		AllowedPrefixes:       setting.AllowedPrefixes,
		NotifyEnabled:         setting.NotifyEnabled,
		RecipientEmail:        setting.RecipientEmail,
		ChunkSize:             setting.ChunkSize,
		MissingRetentionHours: setting.MissingRetentionHours,
	}, nil
}

// RunPayload is the message published on the trigger topic and consumed by
// the push endpoint.
type RunPayload struct {
	RunId       uint   `json:"run_id"`
	TriggeredBy string `json:"triggered_by"`
}

type runStats struct {
	FeedReceived    int `json:"feed_received"`
	FeedSkipped     int `json:"feed_skipped"`
	Batches         int `json:"batches"`
	Processed       int `json:"processed"`
	Failed          int `json:"failed"`
	MissingCreated  int `json:"missing_created"`
	MissingIgnored  int `json:"missing_ignored"`
	MissingSeen     int `json:"missing_refreshed"`
	SkippedByFilter int `json:"skipped_by_filter"`
	PurgedMissing   int `json:"purged_missing"`
}

type feedFetch func(ctx context.Context) (*FeedIndex, error)

// processSyncRun executes one queued sync run end to end.
func processSyncRun(ctx context.Context, db *gorm.DB, payload RunPayload) error {
	fetch := func(ctx context.Context) (*FeedIndex, error) {
		client, err := newFeedClient()
		if err != nil {
			return nil, err
		}
		return client.fetchSnapshot(ctx)
	}
	notify := func(ctx context.Context, runId uint) error {
		return publishRunReport(ctx, db, runId)
	}
	return runSync(ctx, NewStore(db), fetch, notify, payload)
}

// runSync is the orchestration sequence behind processSyncRun, separated from
// the concrete feed client and report transport. Redelivered messages for a
// run already in a terminal status are a no-op.
func runSync(ctx context.Context, store Store, fetch feedFetch, notify func(context.Context, uint) error, payload RunPayload) error {
	logger := config.GetLogger()

	run, err := store.LoadRun(ctx, payload.RunId)
	if err != nil {
		return fmt.Errorf("load sync run %d: %w", payload.RunId, err)
	}
	if run == nil {
		logger.WithField("run_id", payload.RunId).Warn("sync run not found, dropping message")
		return nil
	}
	switch run.Status {
	case models.SyncRunStatusSuccess, models.SyncRunStatusFailed, models.SyncRunStatusPartial:
		logger.WithField("run_id", run.ID).Info("sync run already finalized, dropping message")
		return nil
	}

	started := time.Now()
	if err := store.MarkRunRunning(ctx, run.ID, started); err != nil {
		return fmt.Errorf("mark run %d running: %w", run.ID, err)
	}

	stats := runStats{}
	cfg, err := store.LoadSettings(ctx)
	if err != nil {
		return store.FinalizeRun(ctx, run.ID, models.SyncRunStatusFailed, stats,
			fmt.Sprintf("load settings: %v", err), started)
	}

	// Housekeeping failures are logged but never block a run.
	if err := store.ClearRunArtifacts(ctx); err != nil {
		config.LogError(logger, "warehousesync", "runSync", "clear run artifacts", nil, err)
	}
	cutoff := time.Now().Add(-time.Duration(cfg.MissingRetentionHours) * time.Hour)
	if purged, err := store.PurgeStaleMissing(ctx, cutoff); err != nil {
		config.LogError(logger, "warehousesync", "runSync", "purge stale missing", nil, err)
	} else {
		stats.PurgedMissing = int(purged)
	}

	index, err := fetch(ctx)
	if err != nil {
		config.LogError(logger, "warehousesync", "runSync", "fetch feed", map[string]interface{}{
			"run_id": run.ID,
		}, err)
		return store.FinalizeRun(ctx, run.ID, models.SyncRunStatusFailed, stats,
			fmt.Sprintf("feed fetch: %v", err), started)
	}
	stats.FeedReceived = index.Received
	stats.FeedSkipped = index.Skipped

	result, err := newDriver(store).run(ctx, run.ID, index, cfg.ChunkSize)
	if result != nil {
		stats.Batches = result.Batches
		stats.Processed = result.Processed
		stats.Failed = result.Failed
	}
	if err != nil {
		return store.FinalizeRun(ctx, run.ID, models.SyncRunStatusFailed, stats,
			fmt.Sprintf("inventory walk aborted: %v", err), started)
	}

	outcome, err := resolveMissingProducts(ctx, store, index, result.MatchedSkus, cfg)
	stats.MissingCreated = outcome.Created
	stats.MissingIgnored = outcome.Ignored
	stats.MissingSeen = outcome.Refreshed
	stats.SkippedByFilter = outcome.SkippedByFilter
	if err != nil {
		config.LogError(logger, "warehousesync", "runSync", "missing product pass", map[string]interface{}{
			"run_id": run.ID,
		}, err)
		stats.Failed++
	}

	status := models.SyncRunStatusSuccess
	message := "sync completed"
	if stats.Failed > 0 {
		status = models.SyncRunStatusPartial
		message = fmt.Sprintf("sync completed with %d failures", stats.Failed)
	}
	if err := store.FinalizeRun(ctx, run.ID, status, stats, message, started); err != nil {
		return err
	}

	if cfg.NotifyEnabled && notify != nil {
		if err := notify(ctx, run.ID); err != nil {
			config.LogError(logger, "warehousesync", "runSync", "publish report", map[string]interface{}{
				"run_id": run.ID,
			}, err)
		}
	}
	return nil
}
