package warehousesync

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"bitbucket.org/mmdatafocus/warehouse_backend/models"
)

func queuedRun(id uint) *models.SyncRun {
	return &models.SyncRun{ID: id, Status: models.SyncRunStatusQueued}
}

func fetchReturning(index *FeedIndex, err error) feedFetch {
	return func(ctx context.Context) (*FeedIndex, error) {
		return index, err
	}
}

func TestRunSyncTerminalStatusIsNoOp(t *testing.T) {
	for _, status := range []string{
		models.SyncRunStatusSuccess,
		models.SyncRunStatusFailed,
		models.SyncRunStatusPartial,
	} {
		store := newFakeStore(nil)
		store.run = &models.SyncRun{ID: 5, Status: status}

		fetched := false
		fetch := func(ctx context.Context) (*FeedIndex, error) {
			fetched = true
			return testIndex(), nil
		}

		if err := runSync(context.Background(), store, fetch, nil, RunPayload{RunId: 5}); err != nil {
			t.Fatalf("%s: runSync: %v", status, err)
		}
		if fetched {
			t.Fatalf("%s: redelivery for a finalized run must not refetch the feed", status)
		}
		if store.markedRunning {
			t.Fatalf("%s: finalized run was marked running again", status)
		}
		if store.finalStatus != "" {
			t.Fatalf("%s: finalized run was finalized again as %q", status, store.finalStatus)
		}
	}
}

func TestRunSyncUnknownRunDropped(t *testing.T) {
	store := newFakeStore(nil)

	err := runSync(context.Background(), store, fetchReturning(testIndex(), nil), nil, RunPayload{RunId: 99})
	if err != nil {
		t.Fatalf("runSync: %v", err)
	}
	if store.markedRunning || store.finalStatus != "" {
		t.Fatal("unknown run must be dropped without side effects")
	}
}

func TestRunSyncFeedFailureFinalizesFailed(t *testing.T) {
	store := newFakeStore([]InventoryItem{{ID: 1, Sku: "ABC-123", IsStockable: true}})
	store.run = queuedRun(1)

	fetchErr := fmt.Errorf("%w: connection reset", ErrFeedUnavailable)
	err := runSync(context.Background(), store, fetchReturning(nil, fetchErr), nil, RunPayload{RunId: 1})
	if err != nil {
		t.Fatalf("runSync: %v", err)
	}
	if store.finalStatus != models.SyncRunStatusFailed {
		t.Fatalf("status = %q, want failed", store.finalStatus)
	}
	if len(store.applied) != 0 {
		t.Fatal("no inventory mutation may happen when the fetch fails")
	}
	if store.finalStats.Processed != 0 {
		t.Fatalf("processed = %d, want 0", store.finalStats.Processed)
	}
}

func TestRunSyncSuccess(t *testing.T) {
	store := newFakeStore([]InventoryItem{
		{ID: 1, Sku: "ABC-123", Barcode: "4006381333931", IsStockable: true},
		{ID: 2, Sku: "XY-9", Barcode: "111222333", IsStockable: true},
	})
	store.run = queuedRun(7)
	store.cfg = Config{NotifyEnabled: true, MissingRetentionHours: 24}

	var notifiedRun uint
	notify := func(ctx context.Context, runId uint) error {
		notifiedRun = runId
		return nil
	}

	if err := runSync(context.Background(), store, fetchReturning(testIndex(), nil), notify, RunPayload{RunId: 7}); err != nil {
		t.Fatalf("runSync: %v", err)
	}
	if !store.markedRunning {
		t.Fatal("run was never marked running")
	}
	if !store.cleared {
		t.Fatal("previous run artifacts were not cleared")
	}
	if store.finalStatus != models.SyncRunStatusSuccess {
		t.Fatalf("status = %q, want success", store.finalStatus)
	}
	if store.finalStats.Processed != 2 || store.finalStats.Failed != 0 {
		t.Fatalf("stats = %+v, want 2 processed, 0 failed", store.finalStats)
	}
	if notifiedRun != 7 {
		t.Fatalf("notified run = %d, want 7", notifiedRun)
	}
}

func TestRunSyncNotifyDisabled(t *testing.T) {
	store := newFakeStore(nil)
	store.run = queuedRun(3)
	store.cfg = Config{NotifyEnabled: false, MissingRetentionHours: 24}

	notified := false
	notify := func(ctx context.Context, runId uint) error {
		notified = true
		return nil
	}

	if err := runSync(context.Background(), store, fetchReturning(&FeedIndex{
		BySku:     map[string]*FeedRecord{},
		ByBarcode: map[string]*FeedRecord{},
	}, nil), notify, RunPayload{RunId: 3}); err != nil {
		t.Fatalf("runSync: %v", err)
	}
	if notified {
		t.Fatal("report dispatched with notifications disabled")
	}
}

func TestRunSyncBatchFailureYieldsPartial(t *testing.T) {
	store := newFakeStore([]InventoryItem{
		{ID: 1, Sku: "ABC-123", IsStockable: true},
		{ID: 2, Sku: "XY-9", IsStockable: true},
	})
	store.run = queuedRun(2)
	store.failBatchAt = 0

	if err := runSync(context.Background(), store, fetchReturning(testIndex(), nil), nil, RunPayload{RunId: 2}); err != nil {
		t.Fatalf("runSync: %v", err)
	}
	if store.finalStatus != models.SyncRunStatusPartial {
		t.Fatalf("status = %q, want partial", store.finalStatus)
	}
	if store.finalStats.Failed != 2 {
		t.Fatalf("failed = %d, want 2", store.finalStats.Failed)
	}
}

func TestRunSyncMissingPassErrorYieldsPartial(t *testing.T) {
	store := newFakeStore(nil)
	store.run = queuedRun(4)
	store.missingErr = errors.New("exception store offline")

	// No inventory, one unmatched feed record: the run reaches the
	// missing pass, which fails, and the run still completes.
	index := feedIndexFor(&FeedRecord{Sku: "GN-500"})
	if err := runSync(context.Background(), store, fetchReturning(index, nil), nil, RunPayload{RunId: 4}); err != nil {
		t.Fatalf("runSync: %v", err)
	}
	if store.finalStatus != models.SyncRunStatusPartial {
		t.Fatalf("status = %q, want partial", store.finalStatus)
	}
	if store.finalStats.Failed != 1 {
		t.Fatalf("failed = %d, want 1", store.finalStats.Failed)
	}
}
