package warehousesync

import (
	"context"
	"fmt"
	"strings"

	"bitbucket.org/mmdatafocus/warehouse_backend/models"
)

// MissingOutcome summarizes the missing-product pass of one run.
type MissingOutcome struct {
	Created         int
	Ignored         int
	Refreshed       int
	SkippedByFilter int
}

// resolveMissingProducts walks every feed record that no inventory item
// consumed and files it as a missing product. Records whose SKU collapses to
// an existing product's normalized key are filed as ignored instead, so a
// punctuation variant never spawns a duplicate product request.
func resolveMissingProducts(ctx context.Context, store Store, index *FeedIndex, matched map[string]struct{}, cfg Config) (MissingOutcome, error) {
	var outcome MissingOutcome
	prefixes := allowedPrefixList(cfg)
	// An empty prefix list disables the filter even when the flag is on.
	filterActive := cfg.FilterMissingProducts && len(prefixes) > 0

	for key, record := range index.BySku {
		if err := ctx.Err(); err != nil {
			return outcome, err
		}
		if _, ok := matched[key]; ok {
			continue
		}
		if filterActive && !hasAllowedPrefix(record.Sku, prefixes) {
			outcome.SkippedByFilter++
			continue
		}

		sku := record.Sku
		if sku == "" {
			sku = "UNKNOWN_SKU_" + key
		}

		id, found, err := store.FindOpenMissing(ctx, sku)
		if err != nil {
			return outcome, fmt.Errorf("lookup missing product %q: %w", sku, err)
		}
		if found {
			if err := store.RefreshMissing(ctx, id, record.Quantity, "seen again in feed"); err != nil {
				return outcome, fmt.Errorf("refresh missing product %q: %w", sku, err)
			}
			outcome.Refreshed++
			continue
		}

		productId, relaxed, err := store.RelaxedSkuMatch(ctx, key)
		if err != nil {
			return outcome, fmt.Errorf("relaxed match %q: %w", sku, err)
		}

		rec := MissingRecord{
			Sku:        sku,
			ExternalId: record.ExternalId,
			Barcode:    record.Barcode,
			Brand:      record.Brand,
			Quantity:   record.Quantity,
			Status:     models.MissingStatusMissing,
		}
		if relaxed {
			rec.Status = models.MissingStatusIgnored
			rec.Note = fmt.Sprintf("sku variant of existing product %d", productId)
		}
		if err := store.CreateMissing(ctx, rec); err != nil {
			return outcome, fmt.Errorf("create missing product %q: %w", sku, err)
		}
		if relaxed {
			outcome.Ignored++
		} else {
			outcome.Created++
		}
	}
	return outcome, nil
}

func allowedPrefixList(cfg Config) []string {
	var prefixes []string
	for _, p := range strings.Split(cfg.AllowedPrefixes, ",") {
		if p = strings.TrimSpace(p); p != "" {
			prefixes = append(prefixes, strings.ToUpper(p))
		}
	}
	return prefixes
}

func hasAllowedPrefix(sku string, prefixes []string) bool {
	upper := strings.ToUpper(strings.TrimSpace(sku))
	for _, prefix := range prefixes {
		if strings.HasPrefix(upper, prefix) {
			return true
		}
	}
	return false
}
