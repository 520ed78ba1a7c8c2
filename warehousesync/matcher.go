package warehousesync

import (
	"github.com/shopspring/decimal"
)

// MatchVia records which index resolved an inventory item to a feed record.
type MatchVia int

const (
	MatchViaNone MatchVia = iota
	MatchViaSku
	MatchViaBarcode
)

// InventoryItem is the engine-facing view of a product row. The store maps
// models.Product into this so the matcher stays free of persistence concerns.
type InventoryItem struct {
	ID             int
	Sku            string
	Barcode        string
	Brand          string
	QuantityOnHand decimal.Decimal
	IsStockable    bool
	IsPublished    bool
}

// MatchResult carries the resolved feed record plus the normalized SKU that
// this match consumes from the missing-product pass, if any.
type MatchResult struct {
	Record      *FeedRecord
	Via         MatchVia
	ConsumedSku string
}

// ResolveMatch looks the item up by SKU first and falls back to barcode. A
// barcode match consumes the matched record's own SKU key, not the item's,
// so the record does not resurface as a missing product.
func ResolveMatch(item InventoryItem, index *FeedIndex) MatchResult {
	if key := Normalize(item.Sku); key != "" {
		if record, ok := index.BySku[key]; ok {
			return MatchResult{Record: record, Via: MatchViaSku, ConsumedSku: key}
		}
	}
	if key := Normalize(item.Barcode); key != "" {
		if record, ok := index.ByBarcode[key]; ok {
			return MatchResult{Record: record, Via: MatchViaBarcode, ConsumedSku: record.NormalizedSku}
		}
	}
	return MatchResult{Via: MatchViaNone}
}

var (
	tierLowerBand  = decimal.NewFromInt(30)
	tierUpperBand  = decimal.NewFromInt(50)
	tierHighBand   = decimal.NewFromInt(200)
	alertThreshold = int64(5)
)

// QuantityTier maps a raw feed quantity onto the displayed stock tier. The
// bands are checked in order; 30 to 50 inclusive lands on 2 before the
// below-30 rule can claim it.
func QuantityTier(quantity decimal.Decimal) int64 {
	switch {
	case quantity.IsZero():
		return 0
	case quantity.GreaterThanOrEqual(tierLowerBand) && quantity.LessThanOrEqual(tierUpperBand):
		return 2
	case quantity.LessThan(tierLowerBand):
		return 0
	case quantity.LessThan(tierHighBand):
		return 5
	default:
		return 10
	}
}

// TierAlert reports whether a tier is low enough to flag on the run log.
func TierAlert(tier int64) bool {
	return tier < alertThreshold
}

// PublishDecision is the computed storefront visibility for one item.
type PublishDecision struct {
	Publish       bool
	MissingFields string
	Note          string
}

// ComputePublishDecision requires both a usable SKU and a usable barcode.
// Placeholder values count as absent.
func ComputePublishDecision(item InventoryItem) PublishDecision {
	validSku := IsValidIdentifier(item.Sku)
	validBarcode := IsValidIdentifier(item.Barcode)

	switch {
	case validSku && validBarcode:
		return PublishDecision{Publish: true}
	case !validSku && !validBarcode:
		return PublishDecision{
			MissingFields: "sku,barcode",
			Note:          "missing sku and barcode",
		}
	case !validSku:
		return PublishDecision{
			MissingFields: "sku",
			Note:          "missing sku",
		}
	default:
		return PublishDecision{
			MissingFields: "barcode",
			Note:          "missing barcode",
		}
	}
}

// ShouldMutateStock reports whether the item's on-hand quantity gets written.
// Non-stockable items and items with no usable identifier are logged but left
// untouched, as is an item already at the target tier.
func ShouldMutateStock(item InventoryItem, tier int64) bool {
	if !item.IsStockable {
		return false
	}
	if !IsValidIdentifier(item.Sku) && !IsValidIdentifier(item.Barcode) {
		return false
	}
	return !item.QuantityOnHand.Equal(decimal.NewFromInt(tier))
}
