package warehousesync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"bitbucket.org/mmdatafocus/warehouse_backend/config"
	"bitbucket.org/mmdatafocus/warehouse_backend/models"
)

// ItemMutation is everything the engine decided about one inventory item,
// handed to the store to persist in a single batch transaction.
type ItemMutation struct {
	Item        InventoryItem
	Record      *FeedRecord
	Tier        int64
	Alert       bool
	WriteStock  bool
	Publish     PublishDecision
	LogNote     string
	FeedQty     decimal.Decimal
	FeedSku     string
	FeedBarcode string
	FeedExtId   string
	FeedBrand   string
}

// MissingRecord is one unmatched feed record headed for the missing-product
// table.
type MissingRecord struct {
	Sku        string
	ExternalId string
	Barcode    string
	Brand      string
	Quantity   decimal.Decimal
	Status     string
	Note       string
}

// Store is the persistence boundary of the sync engine. The driver, the
// missing-product resolver and the worker only speak to this interface, so
// tests run against an in-memory fake.
type Store interface {
	// LoadRun returns nil without error when the run row does not exist.
	LoadRun(ctx context.Context, id uint) (*models.SyncRun, error)
	MarkRunRunning(ctx context.Context, id uint, startedAt time.Time) error
	// FinalizeRun records the terminal status, the aggregate counters and
	// a run-level summary log entry. Called exactly once per run.
	FinalizeRun(ctx context.Context, id uint, status string, stats runStats, message string, startedAt time.Time) error
	LoadSettings(ctx context.Context) (Config, error)
	CountItems(ctx context.Context) (int64, error)
	ListItems(ctx context.Context, offset int, limit int) ([]InventoryItem, error)
	// ApplyBatch commits every mutation of one batch in a single
	// transaction. Either the whole batch lands or none of it does.
	ApplyBatch(ctx context.Context, runId uint, mutations []ItemMutation) error
	FindOpenMissing(ctx context.Context, sku string) (uint, bool, error)
	RefreshMissing(ctx context.Context, id uint, quantity decimal.Decimal, note string) error
	CreateMissing(ctx context.Context, rec MissingRecord) error
	// RelaxedSkuMatch reports whether an existing product's SKU collapses
	// to the same normalized key as the given one.
	RelaxedSkuMatch(ctx context.Context, normalizedSku string) (int, bool, error)
	ClearRunArtifacts(ctx context.Context) error
	PurgeStaleMissing(ctx context.Context, cutoff time.Time) (int64, error)
}

type gormStore struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) LoadRun(ctx context.Context, id uint) (*models.SyncRun, error) {
	var run models.SyncRun
	err := s.db.WithContext(ctx).Take(&run, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}

func (s *gormStore) MarkRunRunning(ctx context.Context, id uint, startedAt time.Time) error {
	return s.db.WithContext(ctx).Model(&models.SyncRun{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":     models.SyncRunStatusRunning,
			"started_at": &startedAt,
		}).Error
}

func (s *gormStore) FinalizeRun(ctx context.Context, id uint, status string, stats runStats, message string, startedAt time.Time) error {
	finished := time.Now()
	statsJSON, _ := json.Marshal(stats)

	err := s.db.WithContext(ctx).Model(&models.SyncRun{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":            status,
			"records_processed": stats.Processed,
			"records_failed":    stats.Failed,
			"missing_created":   stats.MissingCreated,
			"missing_ignored":   stats.MissingIgnored,
			"skipped_by_filter": stats.SkippedByFilter,
			"error_count":       stats.Failed,
			"message":           message,
			"stats_json":        statsJSON,
			"finished_at":       &finished,
			"duration_ms":       finished.Sub(startedAt).Milliseconds(),
		}).Error
	if err != nil {
		return fmt.Errorf("finalize run %d: %w", id, err)
	}

	summary := models.SyncLogEntry{
		SyncRunId: id,
		Sku:       "SYSTEM",
		Note:      fmt.Sprintf("%s: %s", status, message),
	}
	if err := s.db.WithContext(ctx).Create(&summary).Error; err != nil {
		config.LogError(config.GetLogger(), "warehousesync", "FinalizeRun", "summary log entry", map[string]interface{}{
			"run_id": id,
		}, err)
	}
	return nil
}

func (s *gormStore) LoadSettings(ctx context.Context) (Config, error) {
	return LoadConfig(ctx, s.db)
}

func (s *gormStore) CountItems(ctx context.Context) (int64, error) {
	return models.CountProducts(ctx, s.db)
}

func (s *gormStore) ListItems(ctx context.Context, offset int, limit int) ([]InventoryItem, error) {
	products, err := models.ListProductsPage(ctx, s.db, offset, limit)
	if err != nil {
		return nil, err
	}
	items := make([]InventoryItem, 0, len(products))
	for _, p := range products {
		items = append(items, InventoryItem{
			ID:             p.ID,
			Sku:            p.Sku,
			Barcode:        p.Barcode,
			Brand:          p.Brand,
			QuantityOnHand: p.QuantityOnHand,
			IsStockable:    p.IsStockable,
			IsPublished:    p.IsPublished,
		})
	}
	return items, nil
}

func (s *gormStore) ApplyBatch(ctx context.Context, runId uint, mutations []ItemMutation) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, m := range mutations {
			entry := models.SyncLogEntry{
				SyncRunId:  runId,
				Sku:        m.FeedSku,
				Barcode:    m.FeedBarcode,
				ExternalId: m.FeedExtId,
				Brand:      m.FeedBrand,
				Quantity:   m.FeedQty,
				Alert:      m.Alert,
				Note:       m.LogNote,
			}
			if err := tx.Create(&entry).Error; err != nil {
				return err
			}

			if m.WriteStock {
				err := models.ApplyInventoryAdjustment(
					tx, m.Item.ID, m.Item.QuantityOnHand,
					decimal.NewFromInt(m.Tier), runId, "warehouse sync")
				if err != nil {
					return err
				}
			}

			if !m.Publish.Publish {
				unpublished := models.UnpublishedProduct{
					SyncRunId:     runId,
					Sku:           m.Item.Sku,
					Barcode:       m.Item.Barcode,
					ExternalId:    m.FeedExtId,
					Brand:         m.Item.Brand,
					Quantity:      m.FeedQty,
					MissingFields: m.Publish.MissingFields,
					Note:          m.Publish.Note,
					SyncDate:      time.Now(),
				}
				if err := tx.Create(&unpublished).Error; err != nil {
					return err
				}
			}
			if m.Item.IsPublished != m.Publish.Publish {
				err := tx.Model(&models.Product{}).
					Where("id = ?", m.Item.ID).
					Update("is_published", m.Publish.Publish).Error
				if err != nil {
					return err
				}
			}
		}
		return nil
	})
}

func (s *gormStore) FindOpenMissing(ctx context.Context, sku string) (uint, bool, error) {
	var missing models.MissingProduct
	err := s.db.WithContext(ctx).
		Where("sku = ? AND status = ?", sku, models.MissingStatusMissing).
		Order("id").
		Take(&missing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return missing.ID, true, nil
}

func (s *gormStore) RefreshMissing(ctx context.Context, id uint, quantity decimal.Decimal, note string) error {
	now := time.Now()
	return s.db.WithContext(ctx).Model(&models.MissingProduct{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"quantity":     quantity,
			"note":         note,
			"last_sync_at": &now,
		}).Error
}

func (s *gormStore) CreateMissing(ctx context.Context, rec MissingRecord) error {
	now := time.Now()
	missing := models.MissingProduct{
		Sku:        rec.Sku,
		ExternalId: rec.ExternalId,
		Barcode:    rec.Barcode,
		Brand:      rec.Brand,
		Quantity:   rec.Quantity,
		Status:     rec.Status,
		Note:       rec.Note,
		LastSyncAt: &now,
	}
	return s.db.WithContext(ctx).Create(&missing).Error
}

const relaxedMatchCandidateLimit = 200

func (s *gormStore) RelaxedSkuMatch(ctx context.Context, normalizedSku string) (int, bool, error) {
	if len(normalizedSku) < 4 {
		product, err := models.FindProductBySkuExact(ctx, s.db, normalizedSku)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, false, nil
		}
		if err != nil {
			return 0, false, err
		}
		return product.ID, true, nil
	}

	head := normalizedSku[:4]
	tail := normalizedSku[len(normalizedSku)-4:]
	candidates, err := models.SearchProductsBySkuFragments(ctx, s.db, head, tail, relaxedMatchCandidateLimit)
	if err != nil {
		return 0, false, err
	}
	for _, candidate := range candidates {
		if Normalize(candidate.Sku) == normalizedSku {
			return candidate.ID, true, nil
		}
	}
	return 0, false, nil
}

func (s *gormStore) ClearRunArtifacts(ctx context.Context) error {
	db := s.db.WithContext(ctx)
	if err := db.Where("1 = 1").Delete(&models.SyncLogEntry{}).Error; err != nil {
		return err
	}
	return db.Where("1 = 1").Delete(&models.UnpublishedProduct{}).Error
}

func (s *gormStore) PurgeStaleMissing(ctx context.Context, cutoff time.Time) (int64, error) {
	result := s.db.WithContext(ctx).
		Where("status = ? AND created_at < ?", models.MissingStatusMissing, cutoff).
		Delete(&models.MissingProduct{})
	return result.RowsAffected, result.Error
}
