package application

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/wyfcoding/ecommerce/internal/inventory/domain"
	"github.com/wyfcoding/ecommerce/pkg/errs"
	"github.com/wyfcoding/ecommerce/pkg/eventsourcing"
)

// seqGenerator 单调递增的测试 ID 生成器
type seqGenerator struct {
	n int64
}

func (g *seqGenerator) Generate() int64 {
	return atomic.AddInt64(&g.n, 1)
}

// memRepo 内存事件存储之上的仓储实现，语义与 MySQL 仓储一致：
// 以加载版本为条件追加，冲突返回 ErrVersionConflict
type memRepo struct {
	store *eventsourcing.MemoryStore

	mu   sync.Mutex
	skus map[string]string
}

func newMemRepo() *memRepo {
	return &memRepo{
		store: eventsourcing.NewMemoryStore(),
		skus:  make(map[string]string),
	}
}

func (r *memRepo) Load(ctx context.Context, itemID string) (*domain.InventoryItem, error) {
	events, err := r.store.Load(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, errs.Validationf("item_not_found", "inventory item %s does not exist", itemID)
	}
	return domain.LoadInventoryItem(events), nil
}

func (r *memRepo) Save(ctx context.Context, item *domain.InventoryItem) error {
	events := item.GetUncommittedEvents()
	if len(events) == 0 {
		return nil
	}
	if err := r.store.Save(ctx, item.AggregateID(), events, item.BaseVersion()); err != nil {
		return err
	}
	r.mu.Lock()
	for _, event := range events {
		if created, ok := event.(*domain.ItemCreatedEvent); ok {
			r.skus[created.SKU] = created.ItemID
		}
	}
	r.mu.Unlock()
	item.MarkCommitted()
	return nil
}

func (r *memRepo) ListItemIDs(ctx context.Context) ([]string, error) {
	return r.store.ListAggregateIDs(ctx)
}

func (r *memRepo) FindItemIDBySKU(ctx context.Context, sku string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.skus[sku], nil
}

// conflictRepo 在前 failures 次 Save 上注入版本冲突
type conflictRepo struct {
	*memRepo
	failures  int32
	saveCalls int32
}

func (r *conflictRepo) Save(ctx context.Context, item *domain.InventoryItem) error {
	atomic.AddInt32(&r.saveCalls, 1)
	if atomic.AddInt32(&r.failures, -1) >= 0 {
		return eventsourcing.ErrVersionConflict
	}
	return r.memRepo.Save(ctx, item)
}

func newTestService(repo domain.Repository) *InventoryCommandService {
	return NewInventoryCommandService(repo, &seqGenerator{}, nil, 5, 15*time.Minute)
}

func createItem(t *testing.T, svc *InventoryCommandService, onHand, reorderPoint int64) string {
	t.Helper()
	itemID, err := svc.CreateItem(context.Background(), CreateItemCommand{
		ProductID:       "P-1",
		VariantID:       "V-1",
		WarehouseID:     "WH-1",
		SKU:             "SKU-1",
		InitialOnHand:   onHand,
		ReorderPoint:    reorderPoint,
		ReorderQuantity: 20,
	})
	if err != nil {
		t.Fatalf("CreateItem: %v", err)
	}
	return itemID
}

func TestCreateItem_GeneratesPrefixedID(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo)

	itemID := createItem(t, svc, 10, 5)
	if !strings.HasPrefix(itemID, "INV") {
		t.Errorf("expected INV prefix, got %s", itemID)
	}

	item, err := repo.Load(context.Background(), itemID)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if item.OnHand != 10 || item.Available != 10 || item.Reserved != 0 {
		t.Errorf("unexpected stock levels: on_hand=%d available=%d reserved=%d",
			item.OnHand, item.Available, item.Reserved)
	}

	if id, _ := repo.FindItemIDBySKU(context.Background(), "SKU-1"); id != itemID {
		t.Errorf("sku index not written, got %q", id)
	}
}

func TestReserveStock_MissingItem(t *testing.T) {
	svc := newTestService(newMemRepo())
	err := svc.ReserveStock(context.Background(), ReserveStockCommand{
		ItemID: "INV-missing", OrderID: "ORD-1", Quantity: 1,
	})
	if errs.CodeOf(err) != "item_not_found" {
		t.Errorf("expected item_not_found, got %v", err)
	}
}

// TestReserveStock_ConcurrentCommands 三个并发预占各 4 件，
// 现货 10 件下恰好两单成功，第三单资源耗尽，守恒不破
func TestReserveStock_ConcurrentCommands(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo)
	itemID := createItem(t, svc, 10, 5)

	var wg sync.WaitGroup
	results := make([]error, 3)
	for i := range 3 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = svc.ReserveStock(context.Background(), ReserveStockCommand{
				ItemID:   itemID,
				OrderID:  "ORD-" + string(rune('A'+i)),
				Quantity: 4,
			})
		}()
	}
	wg.Wait()

	succeeded, exhausted := 0, 0
	for _, err := range results {
		switch {
		case err == nil:
			succeeded++
		case errs.IsKind(err, errs.KindExhausted):
			exhausted++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if succeeded != 2 || exhausted != 1 {
		t.Fatalf("expected 2 succeeded / 1 exhausted, got %d/%d", succeeded, exhausted)
	}

	item, err := repo.Load(context.Background(), itemID)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if item.OnHand != 10 || item.Reserved != 8 || item.Available != 2 {
		t.Errorf("conservation broken: on_hand=%d reserved=%d available=%d",
			item.OnHand, item.Reserved, item.Available)
	}

	// 可用量跌破补货点，必有低库存信号
	events, _ := repo.store.Load(context.Background(), itemID)
	lowStock := false
	for _, event := range events {
		if _, ok := event.(*domain.LowStockDetectedEvent); ok {
			lowStock = true
		}
	}
	if !lowStock {
		t.Error("expected a low stock event once available fell below reorder point")
	}
}

func TestExecute_RetriesOnVersionConflict(t *testing.T) {
	inner := newMemRepo()
	repo := &conflictRepo{memRepo: inner}
	svc := newTestService(repo)

	itemID, err := svc.CreateItem(context.Background(), CreateItemCommand{
		ProductID: "P-1", WarehouseID: "WH-1", SKU: "SKU-1", InitialOnHand: 10, ReorderPoint: 2, ReorderQuantity: 5,
	})
	if err != nil {
		t.Fatalf("CreateItem: %v", err)
	}

	atomic.StoreInt32(&repo.failures, 1)
	atomic.StoreInt32(&repo.saveCalls, 0)

	if err := svc.ReceiveStock(context.Background(), ReceiveStockCommand{
		ItemID: itemID, Quantity: 5, Reference: "PO-1",
	}); err != nil {
		t.Fatalf("ReceiveStock should succeed after retry: %v", err)
	}
	if calls := atomic.LoadInt32(&repo.saveCalls); calls != 2 {
		t.Errorf("expected 2 save calls (conflict then success), got %d", calls)
	}

	item, err := inner.Load(context.Background(), itemID)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if item.OnHand != 15 {
		t.Errorf("expected on_hand 15, got %d", item.OnHand)
	}
}

func TestExecute_GivesUpAfterRetryLimit(t *testing.T) {
	inner := newMemRepo()
	svcSetup := newTestService(inner)
	itemID := createItem(t, svcSetup, 10, 2)

	repo := &conflictRepo{memRepo: inner, failures: 1 << 20}
	svc := NewInventoryCommandService(repo, &seqGenerator{}, nil, 3, 15*time.Minute)

	err := svc.ReceiveStock(context.Background(), ReceiveStockCommand{
		ItemID: itemID, Quantity: 5, Reference: "PO-1",
	})
	if !errors.Is(err, eventsourcing.ErrVersionConflict) {
		t.Fatalf("expected version conflict after exhausting retries, got %v", err)
	}
	if calls := atomic.LoadInt32(&repo.saveCalls); calls != 3 {
		t.Errorf("expected 3 save attempts, got %d", calls)
	}
}

func TestReleaseExpiredReservations(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo)
	itemID := createItem(t, svc, 10, 2)

	if err := svc.ReserveStock(context.Background(), ReserveStockCommand{
		ItemID: itemID, OrderID: "ORD-1", Quantity: 3, TTLMinutes: 1,
	}); err != nil {
		t.Fatalf("ReserveStock: %v", err)
	}
	if err := svc.ReserveStock(context.Background(), ReserveStockCommand{
		ItemID: itemID, OrderID: "ORD-2", Quantity: 2, TTLMinutes: 60,
	}); err != nil {
		t.Fatalf("ReserveStock: %v", err)
	}

	released, err := svc.ReleaseExpiredReservations(context.Background(), itemID, time.Now().UTC().Add(5*time.Minute))
	if err != nil {
		t.Fatalf("ReleaseExpiredReservations: %v", err)
	}
	if released != 1 {
		t.Fatalf("expected 1 released, got %d", released)
	}

	item, err := repo.Load(context.Background(), itemID)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if item.Reserved != 2 || item.Available != 8 {
		t.Errorf("expected reserved=2 available=8, got %d/%d", item.Reserved, item.Available)
	}

	// 无到期预占时为空操作，不产生事件
	versionBefore := item.Version()
	released, err = svc.ReleaseExpiredReservations(context.Background(), itemID, time.Now().UTC().Add(5*time.Minute))
	if err != nil || released != 0 {
		t.Fatalf("second sweep: released=%d err=%v", released, err)
	}
	item, _ = repo.Load(context.Background(), itemID)
	if item.Version() != versionBefore {
		t.Errorf("no-op sweep must not append events: %d -> %d", versionBefore, item.Version())
	}
}
