package warehousesync

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
)

func feedIndexFor(records ...*FeedRecord) *FeedIndex {
	index := &FeedIndex{
		BySku:     make(map[string]*FeedRecord),
		ByBarcode: make(map[string]*FeedRecord),
	}
	for _, rec := range records {
		rec.NormalizedSku = Normalize(rec.Sku)
		rec.NormalizedBarcode = Normalize(rec.Barcode)
		if rec.NormalizedSku != "" {
			index.BySku[rec.NormalizedSku] = rec
		}
		if rec.NormalizedBarcode != "" {
			index.ByBarcode[rec.NormalizedBarcode] = rec
		}
	}
	return index
}

func TestResolveMissingCreatesRecord(t *testing.T) {
	store := newFakeStore(nil)
	index := feedIndexFor(&FeedRecord{Sku: "GN-500", Quantity: decimal.NewFromInt(12)})

	outcome, err := resolveMissingProducts(context.Background(), store, index, nil, Config{})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if outcome.Created != 1 {
		t.Fatalf("created = %d, want 1", outcome.Created)
	}
	if len(store.created) != 1 || store.created[0].Sku != "GN-500" {
		t.Fatalf("unexpected created records: %+v", store.created)
	}
	if store.created[0].Status != "missing" {
		t.Fatalf("status = %q, want missing", store.created[0].Status)
	}
}

func TestResolveMissingSkipsMatched(t *testing.T) {
	store := newFakeStore(nil)
	index := feedIndexFor(&FeedRecord{Sku: "GN-500"})
	matched := map[string]struct{}{"GN500": {}}

	outcome, err := resolveMissingProducts(context.Background(), store, index, matched, Config{})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if outcome.Created != 0 || len(store.created) != 0 {
		t.Fatalf("matched record must not be filed: %+v", outcome)
	}
}

func TestResolveMissingRefreshesOpenRecord(t *testing.T) {
	store := newFakeStore(nil)
	store.missing["GN-500"] = 42
	index := feedIndexFor(&FeedRecord{Sku: "GN-500", Quantity: decimal.NewFromInt(7)})

	outcome, err := resolveMissingProducts(context.Background(), store, index, nil, Config{})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if outcome.Refreshed != 1 || outcome.Created != 0 {
		t.Fatalf("outcome = %+v, want one refresh", outcome)
	}
	if len(store.refreshed) != 1 || store.refreshed[0] != 42 {
		t.Fatalf("refreshed = %v, want [42]", store.refreshed)
	}
}

func TestResolveMissingPrefixFilter(t *testing.T) {
	store := newFakeStore(nil)
	index := feedIndexFor(
		&FeedRecord{Sku: "GN-500"},
		&FeedRecord{Sku: "pd-100"},
		&FeedRecord{Sku: "ZZ-999"},
	)
	cfg := Config{FilterMissingProducts: true, AllowedPrefixes: "GN,PD"}

	outcome, err := resolveMissingProducts(context.Background(), store, index, nil, cfg)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if outcome.Created != 2 {
		t.Fatalf("created = %d, want 2", outcome.Created)
	}
	if outcome.SkippedByFilter != 1 {
		t.Fatalf("skipped = %d, want 1", outcome.SkippedByFilter)
	}
	for _, rec := range store.created {
		if rec.Sku == "ZZ-999" {
			t.Fatal("filtered sku was filed anyway")
		}
	}
}

func TestResolveMissingFilterDisabledKeepsAll(t *testing.T) {
	store := newFakeStore(nil)
	index := feedIndexFor(&FeedRecord{Sku: "ZZ-999"})

	outcome, err := resolveMissingProducts(context.Background(), store, index, nil, Config{AllowedPrefixes: "GN"})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if outcome.Created != 1 || outcome.SkippedByFilter != 0 {
		t.Fatalf("outcome = %+v, want one created", outcome)
	}
}

func TestResolveMissingRelaxedVariantIgnored(t *testing.T) {
	store := newFakeStore(nil)
	// Feed says AB100 but the catalog already has AB-100 under product 17.
	store.relaxedMatch["AB100"] = 17
	index := feedIndexFor(&FeedRecord{Sku: "AB100"})

	outcome, err := resolveMissingProducts(context.Background(), store, index, nil, Config{})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if outcome.Ignored != 1 || outcome.Created != 0 {
		t.Fatalf("outcome = %+v, want one ignored", outcome)
	}
	if len(store.created) != 1 {
		t.Fatalf("records filed = %d, want 1", len(store.created))
	}
	rec := store.created[0]
	if rec.Status != "ignored" {
		t.Fatalf("status = %q, want ignored", rec.Status)
	}
	if rec.Note == "" {
		t.Fatal("ignored record should reference the existing product")
	}
}

func TestResolveMissingEmptyPrefixListDisablesFilter(t *testing.T) {
	store := newFakeStore(nil)
	index := feedIndexFor(&FeedRecord{Sku: "ZZ-999"})

	// Flag on but no prefixes configured: nothing would ever pass, so the
	// filter is treated as off.
	cfg := Config{FilterMissingProducts: true, AllowedPrefixes: "  , ,"}
	outcome, err := resolveMissingProducts(context.Background(), store, index, nil, cfg)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if outcome.Created != 1 || outcome.SkippedByFilter != 0 {
		t.Fatalf("outcome = %+v, want one created and no skips", outcome)
	}
}

func TestAllowedPrefixList(t *testing.T) {
	prefixes := allowedPrefixList(Config{AllowedPrefixes: " gn , PD ,,lvl"})
	if len(prefixes) != 3 {
		t.Fatalf("prefixes = %v, want 3 entries", prefixes)
	}
	if prefixes[0] != "GN" || prefixes[2] != "LVL" {
		t.Fatalf("unexpected prefixes: %v", prefixes)
	}
	if got := allowedPrefixList(Config{}); len(got) != 0 {
		t.Fatalf("empty config produced prefixes: %v", got)
	}
}

func TestHasAllowedPrefixCaseInsensitive(t *testing.T) {
	prefixes := []string{"GN", "PD"}
	if !hasAllowedPrefix("gn-100", prefixes) {
		t.Fatal("lowercase sku should match")
	}
	if hasAllowedPrefix("XGN-100", prefixes) {
		t.Fatal("prefix must anchor at the start")
	}
}
