package warehousesync

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// FeedRecord is one warehouse feed item, held in memory for the duration of
// a single run and never persisted directly.
type FeedRecord struct {
	ExternalId        string
	Sku               string
	Barcode           string
	Brand             string
	Quantity          decimal.Decimal
	NormalizedSku     string
	NormalizedBarcode string
}

// FeedIndex holds the per-run lookup tables. Keys are normalized identifiers;
// duplicate keys within one feed are last-writer-wins.
type FeedIndex struct {
	BySku     map[string]*FeedRecord
	ByBarcode map[string]*FeedRecord
	Received  int
	Skipped   int
}

type feedEnvelope struct {
	Success bool              `json:"success"`
	Data    []json.RawMessage `json:"data"`
}

type feedItem struct {
	Sku           string       `json:"sku"`
	Barcode       string       `json:"barcode"`
	Brand         string       `json:"brand"`
	ItemNumber    string       `json:"itemNumber"`
	SouthbayStock feedQuantity `json:"southbayStock"`
}

// feedQuantity accepts both bare and quoted numbers; the upstream feed is
// not consistent about which it sends.
type feedQuantity struct {
	raw string
}

func (q *feedQuantity) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		q.raw = s
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	q.raw = n.String()
	return nil
}

// buildFeedIndex decodes each raw item independently so one malformed row is
// skipped and counted instead of failing the fetch.
func buildFeedIndex(raw []json.RawMessage) *FeedIndex {
	index := &FeedIndex{
		BySku:     make(map[string]*FeedRecord, len(raw)),
		ByBarcode: make(map[string]*FeedRecord),
	}

	for _, rawItem := range raw {
		var item feedItem
		if err := json.Unmarshal(rawItem, &item); err != nil {
			index.Skipped++
			continue
		}
		index.Received++

		record := &FeedRecord{
			ExternalId:        Sanitize(item.ItemNumber),
			Sku:               Sanitize(item.Sku),
			Barcode:           Sanitize(item.Barcode),
			Brand:             Sanitize(item.Brand),
			Quantity:          decimalFromQuantity(item.SouthbayStock),
			NormalizedSku:     Normalize(item.Sku),
			NormalizedBarcode: Normalize(item.Barcode),
		}

		if record.NormalizedSku != "" {
			index.BySku[record.NormalizedSku] = record
		}
		if record.NormalizedBarcode != "" {
			index.ByBarcode[record.NormalizedBarcode] = record
		}
	}
	return index
}

func decimalFromQuantity(q feedQuantity) decimal.Decimal {
	if q.raw == "" {
		return decimal.Zero
	}
	if d, err := decimal.NewFromString(q.raw); err == nil {
		return d
	}
	return decimal.Zero
}
