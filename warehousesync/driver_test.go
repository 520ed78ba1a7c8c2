package warehousesync

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"bitbucket.org/mmdatafocus/warehouse_backend/models"
)

type fakeStore struct {
	items        []InventoryItem
	failBatchAt  int
	applied      [][]ItemMutation
	missing      map[string]uint
	refreshed    []uint
	created      []MissingRecord
	relaxedMatch map[string]int
	nextId       uint
	listErr      error
	missingErr   error

	run           *models.SyncRun
	cfg           Config
	markedRunning bool
	finalStatus   string
	finalStats    runStats
	finalMessage  string
	cleared       bool
}

func newFakeStore(items []InventoryItem) *fakeStore {
	return &fakeStore{
		items:        items,
		failBatchAt:  -1,
		missing:      make(map[string]uint),
		relaxedMatch: make(map[string]int),
	}
}

func (f *fakeStore) LoadRun(ctx context.Context, id uint) (*models.SyncRun, error) {
	return f.run, nil
}

func (f *fakeStore) MarkRunRunning(ctx context.Context, id uint, startedAt time.Time) error {
	f.markedRunning = true
	return nil
}

func (f *fakeStore) FinalizeRun(ctx context.Context, id uint, status string, stats runStats, message string, startedAt time.Time) error {
	f.finalStatus = status
	f.finalStats = stats
	f.finalMessage = message
	return nil
}

func (f *fakeStore) LoadSettings(ctx context.Context) (Config, error) {
	return f.cfg, nil
}

func (f *fakeStore) CountItems(ctx context.Context) (int64, error) {
	return int64(len(f.items)), nil
}

func (f *fakeStore) ListItems(ctx context.Context, offset int, limit int) ([]InventoryItem, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	if offset >= len(f.items) {
		return nil, nil
	}
	end := offset + limit
	if end > len(f.items) {
		end = len(f.items)
	}
	return f.items[offset:end], nil
}

func (f *fakeStore) ApplyBatch(ctx context.Context, runId uint, mutations []ItemMutation) error {
	if f.failBatchAt == len(f.applied) {
		f.applied = append(f.applied, nil)
		return errors.New("simulated commit failure")
	}
	f.applied = append(f.applied, mutations)
	return nil
}

func (f *fakeStore) FindOpenMissing(ctx context.Context, sku string) (uint, bool, error) {
	if f.missingErr != nil {
		return 0, false, f.missingErr
	}
	id, ok := f.missing[sku]
	return id, ok, nil
}

func (f *fakeStore) RefreshMissing(ctx context.Context, id uint, quantity decimal.Decimal, note string) error {
	f.refreshed = append(f.refreshed, id)
	return nil
}

func (f *fakeStore) CreateMissing(ctx context.Context, rec MissingRecord) error {
	f.created = append(f.created, rec)
	f.nextId++
	f.missing[rec.Sku] = f.nextId
	return nil
}

func (f *fakeStore) RelaxedSkuMatch(ctx context.Context, normalizedSku string) (int, bool, error) {
	id, ok := f.relaxedMatch[normalizedSku]
	return id, ok, nil
}

func (f *fakeStore) ClearRunArtifacts(ctx context.Context) error {
	f.cleared = true
	return nil
}

func (f *fakeStore) PurgeStaleMissing(ctx context.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}

func testDriver(store Store) *driver {
	d := newDriver(store)
	d.sleep = func(time.Duration) {}
	return d
}

func TestChunkSizeFor(t *testing.T) {
	cases := []struct {
		total      int64
		configured int
		want       int
	}{
		{100, 100, 100},
		{100, 0, 100},
		{5000, 150, 150},
		{5001, 150, 100},
		{5001, 50, 50},
		{8001, 150, 80},
		{8001, 60, 60},
	}
	for _, tc := range cases {
		if got := chunkSizeFor(tc.total, tc.configured); got != tc.want {
			t.Fatalf("chunkSizeFor(%d, %d) = %d, want %d", tc.total, tc.configured, got, tc.want)
		}
	}
}

func TestInterBatchDelay(t *testing.T) {
	if got := interBatchDelay(100); got != time.Second {
		t.Fatalf("small catalog delay = %s, want 1s", got)
	}
	if got := interBatchDelay(5001); got != time.Second {
		t.Fatalf("mid catalog delay = %s, want 1s", got)
	}
	if got := interBatchDelay(8001); got != 2*time.Second {
		t.Fatalf("large catalog delay = %s, want 2s", got)
	}
}

func TestDriverPartialBatchFailureCount(t *testing.T) {
	var items []InventoryItem
	for i := 0; i < 25; i++ {
		items = append(items, InventoryItem{ID: i + 1, Sku: fmt.Sprintf("GN-%03d", i+1)})
	}
	store := newFakeStore(items)
	store.listErr = errors.New("store offline")

	result, err := testDriver(store).run(context.Background(), 1, testIndex(), 10)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	// 10 + 10 + 5, never the full chunk size for the short final batch.
	if result.Failed != 25 {
		t.Fatalf("failed = %d, want 25", result.Failed)
	}
	if result.Processed != 0 {
		t.Fatalf("processed = %d, want 0", result.Processed)
	}
}

func TestDriverWalksAllBatches(t *testing.T) {
	var items []InventoryItem
	for i := 0; i < 25; i++ {
		items = append(items, InventoryItem{
			ID:          i + 1,
			Sku:         fmt.Sprintf("GN-%03d", i+1),
			IsStockable: true,
		})
	}
	store := newFakeStore(items)

	result, err := testDriver(store).run(context.Background(), 1, testIndex(), 10)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.Batches != 3 {
		t.Fatalf("batches = %d, want 3", result.Batches)
	}
	if result.Processed != 25 {
		t.Fatalf("processed = %d, want 25", result.Processed)
	}
	if result.Failed != 0 {
		t.Fatalf("failed = %d, want 0", result.Failed)
	}
}

func TestDriverBatchFailureIsolated(t *testing.T) {
	var items []InventoryItem
	for i := 0; i < 30; i++ {
		items = append(items, InventoryItem{ID: i + 1, Sku: fmt.Sprintf("GN-%03d", i+1)})
	}
	store := newFakeStore(items)
	store.failBatchAt = 1

	result, err := testDriver(store).run(context.Background(), 1, testIndex(), 10)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.Batches != 3 {
		t.Fatalf("batches = %d, want 3", result.Batches)
	}
	if result.Processed != 20 {
		t.Fatalf("processed = %d, want 20", result.Processed)
	}
	if result.Failed != 10 {
		t.Fatalf("failed = %d, want 10", result.Failed)
	}
}

func TestDriverAccumulatesMatchedSkus(t *testing.T) {
	items := []InventoryItem{
		{ID: 1, Sku: "ABC-123", IsStockable: true},
		// Matches via barcode only; must still consume the feed
		// record's SKU key.
		{ID: 2, Sku: "LOCAL-1", Barcode: "111222333", IsStockable: true},
		{ID: 3, Sku: "ZZ-999", IsStockable: true},
	}
	store := newFakeStore(items)

	result, err := testDriver(store).run(context.Background(), 1, testIndex(), 100)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if _, ok := result.MatchedSkus["ABC123"]; !ok {
		t.Fatal("ABC123 not in matched set")
	}
	if _, ok := result.MatchedSkus["XY9"]; !ok {
		t.Fatal("XY9 not in matched set after barcode match")
	}
	if len(result.MatchedSkus) != 2 {
		t.Fatalf("matched set size = %d, want 2", len(result.MatchedSkus))
	}
}

func TestDriverStopsOnCanceledContext(t *testing.T) {
	var items []InventoryItem
	for i := 0; i < 30; i++ {
		items = append(items, InventoryItem{ID: i + 1, Sku: fmt.Sprintf("GN-%03d", i+1)})
	}
	store := newFakeStore(items)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := testDriver(store).run(ctx, 1, testIndex(), 10)
	if err == nil {
		t.Fatal("expected context error")
	}
	if result.Batches != 0 {
		t.Fatalf("batches = %d, want 0", result.Batches)
	}
}

func TestBuildMutationUnmatchedItem(t *testing.T) {
	var matched []string
	item := InventoryItem{ID: 1, Sku: "ZZ-999", Barcode: "000", IsStockable: true}
	m := buildMutation(item, testIndex(), &matched)
	if m.Record != nil {
		t.Fatal("expected no feed record")
	}
	if m.WriteStock {
		t.Fatal("already at zero, no stock write")
	}
	if !m.Alert {
		t.Fatal("unmatched item counts as zero stock and alerts")
	}
	if len(matched) != 0 {
		t.Fatalf("matched = %v, want empty", matched)
	}
	if !m.Publish.Publish {
		t.Fatal("item with both identifiers stays publishable")
	}
}

func TestBuildMutationUnmatchedItemZeroesStock(t *testing.T) {
	var matched []string
	item := InventoryItem{
		ID:             1,
		Sku:            "ZZ-999",
		Barcode:        "000",
		IsStockable:    true,
		QuantityOnHand: decimal.NewFromInt(7),
	}
	m := buildMutation(item, testIndex(), &matched)
	if !m.WriteStock {
		t.Fatal("unmatched item with stock on hand gets written down to zero")
	}
	if m.Tier != 0 {
		t.Fatalf("tier = %d, want 0", m.Tier)
	}
}

func TestBuildMutationZeroFeedQuantityNote(t *testing.T) {
	index := feedIndexFor(&FeedRecord{Sku: "GN-7", Quantity: decimal.Zero})
	var matched []string
	item := InventoryItem{ID: 2, Sku: "GN-7", Barcode: "123", IsStockable: true}
	m := buildMutation(item, index, &matched)
	if m.LogNote != "zero stock in feed" {
		t.Fatalf("note = %q, want zero stock note", m.LogNote)
	}
	if m.Tier != 0 || !m.Alert {
		t.Fatalf("tier=%d alert=%v, want 0/true", m.Tier, m.Alert)
	}
}
