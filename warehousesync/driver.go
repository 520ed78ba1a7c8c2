package warehousesync

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"bitbucket.org/mmdatafocus/warehouse_backend/config"
)

const (
	largeCatalogThreshold = 8000
	midCatalogThreshold   = 5000
	largeCatalogChunkCap  = 80
	midCatalogChunkCap    = 100
)

// chunkSizeFor caps the configured batch size for big catalogs so each
// transaction stays small enough to commit quickly.
func chunkSizeFor(total int64, configured int) int {
	if configured <= 0 {
		configured = 100
	}
	switch {
	case total > largeCatalogThreshold:
		if configured > largeCatalogChunkCap {
			return largeCatalogChunkCap
		}
	case total > midCatalogThreshold:
		if configured > midCatalogChunkCap {
			return midCatalogChunkCap
		}
	}
	return configured
}

func interBatchDelay(total int64) time.Duration {
	if total > largeCatalogThreshold {
		return 2 * time.Second
	}
	return time.Second
}

// BatchResult is the outcome of one committed (or rolled back) batch.
type BatchResult struct {
	Processed   int
	Failed      int
	MatchedSkus []string
}

// DriverResult aggregates every batch of a run.
type DriverResult struct {
	Processed   int
	Failed      int
	Batches     int
	MatchedSkus map[string]struct{}
}

type driver struct {
	store  Store
	logger *logrus.Logger
	// sleep is swapped out in tests
	sleep func(time.Duration)
}

func newDriver(store Store) *driver {
	return &driver{
		store:  store,
		logger: config.GetLogger(),
		sleep:  time.Sleep,
	}
}

// run walks the inventory in id order, one batch transaction at a time. A
// batch that fails to commit marks all its items failed and the run moves on
// to the next batch; only context cancellation stops the walk early.
func (d *driver) run(ctx context.Context, runId uint, index *FeedIndex, chunkSize int) (*DriverResult, error) {
	total, err := d.store.CountItems(ctx)
	if err != nil {
		return nil, fmt.Errorf("count inventory: %w", err)
	}

	size := chunkSizeFor(total, chunkSize)
	delay := interBatchDelay(total)
	result := &DriverResult{MatchedSkus: make(map[string]struct{})}

	for offset := 0; int64(offset) < total; offset += size {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if offset > 0 && delay > 0 {
			d.sleep(delay)
		}

		batchSize := size
		if int64(offset+size) > total {
			batchSize = int(total) - offset
		}
		batch, err := d.processBatch(ctx, runId, index, offset, batchSize)
		result.Batches++
		result.Processed += batch.Processed
		result.Failed += batch.Failed
		for _, sku := range batch.MatchedSkus {
			result.MatchedSkus[sku] = struct{}{}
		}
		if err != nil {
			config.LogError(d.logger, "warehousesync", "run", "batch failed", map[string]interface{}{
				"run_id": runId,
				"offset": offset,
			}, err)
		}
	}
	return result, nil
}

// processBatch evaluates one page of items against the feed index and hands
// the decisions to the store as a single transaction. A commit failure fails
// every item in the batch.
func (d *driver) processBatch(ctx context.Context, runId uint, index *FeedIndex, offset int, limit int) (BatchResult, error) {
	items, err := d.store.ListItems(ctx, offset, limit)
	if err != nil {
		return BatchResult{Failed: limit}, fmt.Errorf("list inventory page: %w", err)
	}
	if len(items) == 0 {
		return BatchResult{}, nil
	}

	mutations := make([]ItemMutation, 0, len(items))
	matched := make([]string, 0, len(items))
	for _, item := range items {
		mutations = append(mutations, buildMutation(item, index, &matched))
	}

	if err := d.store.ApplyBatch(ctx, runId, mutations); err != nil {
		return BatchResult{Failed: len(items)}, fmt.Errorf("apply batch: %w", err)
	}
	return BatchResult{Processed: len(items), MatchedSkus: matched}, nil
}

func buildMutation(item InventoryItem, index *FeedIndex, matched *[]string) ItemMutation {
	match := ResolveMatch(item, index)
	publish := ComputePublishDecision(item)

	m := ItemMutation{
		Item:    item,
		Publish: publish,
	}

	if match.Via == MatchViaNone {
		// An item absent from the feed is treated as zero stock and
		// still runs through the tier rule.
		m.Tier = 0
		m.Alert = TierAlert(0)
		m.WriteStock = ShouldMutateStock(item, 0)
		m.FeedQty = decimal.Zero
		m.FeedSku = item.Sku
		m.FeedBarcode = item.Barcode
		m.FeedBrand = item.Brand
		m.LogNote = "no feed record"
		return m
	}

	if match.ConsumedSku != "" {
		*matched = append(*matched, match.ConsumedSku)
	}

	record := match.Record
	tier := QuantityTier(record.Quantity)
	m.Record = record
	m.Tier = tier
	m.Alert = TierAlert(tier)
	m.WriteStock = ShouldMutateStock(item, tier)
	m.FeedQty = record.Quantity
	m.FeedSku = record.Sku
	m.FeedBarcode = record.Barcode
	m.FeedExtId = record.ExternalId
	m.FeedBrand = record.Brand
	switch {
	case record.Quantity.IsZero():
		m.LogNote = "zero stock in feed"
	case match.Via == MatchViaBarcode:
		m.LogNote = "matched via barcode"
	}
	return m
}
