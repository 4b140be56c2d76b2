package domain

import (
	"testing"
	"time"

	"github.com/wyfcoding/ecommerce/pkg/errs"
	"github.com/wyfcoding/ecommerce/pkg/eventsourcing"
)

func newTestItem(t *testing.T, onHand, reorderPoint int64) *InventoryItem {
	t.Helper()
	item, err := NewInventoryItem("INV-1", "prod-1", "var-1", "wh-1", "SKU-1", onHand, reorderPoint, 20)
	if err != nil {
		t.Fatalf("failed to create item: %v", err)
	}
	item.MarkCommitted()
	return item
}

func assertConservation(t *testing.T, item *InventoryItem) {
	t.Helper()
	if item.Available != item.OnHand-item.Reserved {
		t.Errorf("conservation violated: available=%d on_hand=%d reserved=%d",
			item.Available, item.OnHand, item.Reserved)
	}
	var held int64
	for _, res := range item.Reservations {
		held += res.Quantity
	}
	if held != item.Reserved {
		t.Errorf("reservation quantities %d do not sum to reserved %d", held, item.Reserved)
	}
}

func TestNewInventoryItem_Validation(t *testing.T) {
	if _, err := NewInventoryItem("", "p", "", "w", "s", 1, 0, 0); !errs.IsKind(err, errs.KindValidation) {
		t.Errorf("missing id must fail validation, got %v", err)
	}
	if _, err := NewInventoryItem("i", "p", "", "w", "s", -1, 0, 0); !errs.IsKind(err, errs.KindValidation) {
		t.Errorf("negative on-hand must fail validation, got %v", err)
	}
}

func TestReserve_DecrementsAvailable(t *testing.T) {
	item := newTestItem(t, 100, 5)

	if err := item.Reserve("ord-1", 30, time.Time{}); err != nil {
		t.Fatalf("reserve failed: %v", err)
	}

	if item.Available != 70 || item.Reserved != 30 || item.OnHand != 100 {
		t.Errorf("unexpected levels: available=%d reserved=%d on_hand=%d",
			item.Available, item.Reserved, item.OnHand)
	}
	res := item.Reservations["ord-1"]
	if res == nil || res.Status != ReservationActive {
		t.Fatalf("expected active reservation for ord-1, got %+v", res)
	}
	if res.ExpiresAt.Before(res.ReservedAt) {
		t.Error("default expiry must be after reservation time")
	}
	assertConservation(t, item)
}

func TestReserve_InsufficientStock(t *testing.T) {
	item := newTestItem(t, 10, 0)
	baseVersion := item.Version()

	err := item.Reserve("ord-1", 11, time.Time{})
	if !errs.IsKind(err, errs.KindExhausted) {
		t.Fatalf("expected resource exhausted, got %v", err)
	}
	if errs.CodeOf(err) != "insufficient_stock" {
		t.Errorf("expected insufficient_stock code, got %s", errs.CodeOf(err))
	}

	if item.Version() != baseVersion || len(item.GetUncommittedEvents()) != 0 {
		t.Error("rejected command must not emit events or change version")
	}
	assertConservation(t, item)
}

func TestReserve_InvalidQuantityAndDuplicate(t *testing.T) {
	item := newTestItem(t, 10, 0)

	if err := item.Reserve("ord-1", 0, time.Time{}); !errs.IsKind(err, errs.KindValidation) {
		t.Errorf("zero quantity must fail validation, got %v", err)
	}
	if err := item.Reserve("ord-1", 4, time.Time{}); err != nil {
		t.Fatalf("reserve failed: %v", err)
	}
	if err := item.Reserve("ord-1", 2, time.Time{}); errs.CodeOf(err) != "duplicate_reservation" {
		t.Errorf("expected duplicate_reservation, got %v", err)
	}
}

func TestLowStockSignal(t *testing.T) {
	// on_hand=10, reorder_point=5：预占 4 后可用 6 无预警，再预占 4 后可用 2 触发预警
	item := newTestItem(t, 10, 5)

	if err := item.Reserve("ord-1", 4, time.Time{}); err != nil {
		t.Fatalf("reserve failed: %v", err)
	}
	for _, ev := range item.GetUncommittedEvents() {
		if ev.EventType() == EventLowStockDetected {
			t.Fatal("low stock must not fire while available is above reorder point")
		}
	}
	item.MarkCommitted()

	if err := item.Reserve("ord-2", 4, time.Time{}); err != nil {
		t.Fatalf("reserve failed: %v", err)
	}
	found := false
	for _, ev := range item.GetUncommittedEvents() {
		if low, ok := ev.(*LowStockDetectedEvent); ok {
			found = true
			if low.Available != 2 || low.ReorderPoint != 5 {
				t.Errorf("unexpected low stock payload: %+v", low)
			}
		}
	}
	if !found {
		t.Error("expected low stock signal once available dropped to 2 <= 5")
	}
	assertConservation(t, item)
}

func TestReleaseReservation_RestoresAvailable(t *testing.T) {
	item := newTestItem(t, 10, 0)
	if err := item.Reserve("ord-1", 6, time.Time{}); err != nil {
		t.Fatalf("reserve failed: %v", err)
	}

	if err := item.ReleaseReservation("ord-1", "customer cancelled"); err != nil {
		t.Fatalf("release failed: %v", err)
	}
	if item.Available != 10 || item.Reserved != 0 {
		t.Errorf("release must restore availability, got available=%d reserved=%d", item.Available, item.Reserved)
	}
	if _, ok := item.Reservations["ord-1"]; ok {
		t.Error("released reservation must be removed")
	}

	// 释放后允许同一订单重新预占
	if err := item.Reserve("ord-1", 3, time.Time{}); err != nil {
		t.Errorf("re-reservation after release must succeed, got %v", err)
	}
	assertConservation(t, item)
}

func TestConfirmAndCommit_ConsumesPhysicalStock(t *testing.T) {
	item := newTestItem(t, 10, 0)
	if err := item.Reserve("ord-1", 4, time.Time{}); err != nil {
		t.Fatalf("reserve failed: %v", err)
	}

	// 未确认不能落实
	if err := item.CommitStock("ord-1"); !errs.IsKind(err, errs.KindStateTransition) {
		t.Errorf("commit before confirm must fail, got %v", err)
	}

	if err := item.ConfirmReservation("ord-1"); err != nil {
		t.Fatalf("confirm failed: %v", err)
	}
	if item.Reservations["ord-1"].Status != ReservationConfirmed {
		t.Error("confirm must flag the reservation")
	}
	if item.Available != 6 || item.OnHand != 10 {
		t.Error("confirm must not move quantities")
	}

	// 已确认不能释放
	if err := item.ReleaseReservation("ord-1", "x"); !errs.IsKind(err, errs.KindStateTransition) {
		t.Errorf("release of confirmed reservation must fail, got %v", err)
	}

	if err := item.CommitStock("ord-1"); err != nil {
		t.Fatalf("commit failed: %v", err)
	}
	if item.OnHand != 6 || item.Reserved != 0 || item.Available != 6 {
		t.Errorf("commit must consume stock: on_hand=%d reserved=%d available=%d",
			item.OnHand, item.Reserved, item.Available)
	}
	if _, ok := item.Reservations["ord-1"]; ok {
		t.Error("committed reservation must be removed")
	}
	assertConservation(t, item)
}

func TestReleaseExpired(t *testing.T) {
	item := newTestItem(t, 20, 0)
	now := time.Now().UTC()

	if err := item.Reserve("ord-1", 3, now.Add(-time.Minute)); err != nil {
		t.Fatal(err)
	}
	if err := item.Reserve("ord-2", 4, now.Add(time.Hour)); err != nil {
		t.Fatal(err)
	}
	if err := item.Reserve("ord-3", 5, now.Add(-time.Second)); err != nil {
		t.Fatal(err)
	}
	if err := item.ConfirmReservation("ord-3"); err != nil {
		t.Fatal(err)
	}

	// ord-1 过期未确认；ord-2 未过期；ord-3 过期但已确认，不受清扫影响
	released := item.ReleaseExpired(now)
	if released != 1 {
		t.Fatalf("expected 1 expired reservation, got %d", released)
	}
	if _, ok := item.Reservations["ord-1"]; ok {
		t.Error("expired reservation must be removed")
	}
	if _, ok := item.Reservations["ord-2"]; !ok {
		t.Error("unexpired reservation must survive the sweep")
	}
	if item.Reservations["ord-3"].Status != ReservationConfirmed {
		t.Error("confirmed reservation must survive the sweep")
	}
	if item.Available != 20-4-5 {
		t.Errorf("expected available %d, got %d", 20-4-5, item.Available)
	}
	assertConservation(t, item)
}

func TestAdjustStock_Bounds(t *testing.T) {
	item := newTestItem(t, 10, 0)
	if err := item.Reserve("ord-1", 8, time.Time{}); err != nil {
		t.Fatal(err)
	}

	if err := item.AdjustStock(0, "noop"); !errs.IsKind(err, errs.KindValidation) {
		t.Errorf("zero delta must fail, got %v", err)
	}
	if err := item.AdjustStock(-11, "shrinkage"); !errs.IsKind(err, errs.KindValidation) {
		t.Errorf("negative on-hand must fail, got %v", err)
	}
	if err := item.AdjustStock(-3, "shrinkage"); !errs.IsKind(err, errs.KindValidation) {
		t.Errorf("adjustment below reserved must fail, got %v", err)
	}
	if err := item.AdjustStock(-2, "shrinkage"); err != nil {
		t.Fatalf("legal adjustment failed: %v", err)
	}
	if item.OnHand != 8 || item.Available != 0 {
		t.Errorf("unexpected levels after adjustment: on_hand=%d available=%d", item.OnHand, item.Available)
	}
	assertConservation(t, item)
}

func TestDamageLifecycle(t *testing.T) {
	item := newTestItem(t, 10, 0)

	if err := item.MarkDamaged(3, "dropped pallet"); err != nil {
		t.Fatalf("mark damaged failed: %v", err)
	}
	if item.OnHand != 7 || item.Damaged != 3 {
		t.Errorf("unexpected levels after damage: on_hand=%d damaged=%d", item.OnHand, item.Damaged)
	}

	if err := item.WriteOffDamaged(4); !errs.IsKind(err, errs.KindValidation) {
		t.Errorf("write-off beyond damaged must fail, got %v", err)
	}
	if err := item.WriteOffDamaged(1); err != nil {
		t.Fatalf("write-off failed: %v", err)
	}
	if err := item.ReturnToStock(2); err != nil {
		t.Fatalf("return to stock failed: %v", err)
	}
	if item.OnHand != 9 || item.Damaged != 0 {
		t.Errorf("unexpected levels after return: on_hand=%d damaged=%d", item.OnHand, item.Damaged)
	}
	assertConservation(t, item)
}

func TestRecordStockCheck(t *testing.T) {
	item := newTestItem(t, 10, 0)
	if err := item.Reserve("ord-1", 6, time.Time{}); err != nil {
		t.Fatal(err)
	}

	if err := item.RecordStockCheck(5); !errs.IsKind(err, errs.KindValidation) {
		t.Errorf("count below reserved must fail, got %v", err)
	}
	if err := item.RecordStockCheck(8); err != nil {
		t.Fatalf("stock check failed: %v", err)
	}
	if item.OnHand != 8 || item.Available != 2 {
		t.Errorf("unexpected levels after count: on_hand=%d available=%d", item.OnHand, item.Available)
	}
	assertConservation(t, item)
}

func TestReplay_RebuildsExactState(t *testing.T) {
	item := newTestItem(t, 50, 10)
	if err := item.Reserve("ord-1", 20, time.Time{}); err != nil {
		t.Fatal(err)
	}
	if err := item.ConfirmReservation("ord-1"); err != nil {
		t.Fatal(err)
	}
	if err := item.MarkDamaged(5, "water damage"); err != nil {
		t.Fatal(err)
	}

	var history []eventsourcing.DomainEvent
	history = append(history, &ItemCreatedEvent{
		BaseEvent:       eventsourcing.BaseEvent{Ver: 1, Timestamp: item.CreatedAt},
		ItemID:          "INV-1",
		ProductID:       "prod-1",
		VariantID:       "var-1",
		WarehouseID:     "wh-1",
		SKU:             "SKU-1",
		InitialOnHand:   50,
		ReorderPoint:    10,
		ReorderQuantity: 20,
	})
	history = append(history, item.GetUncommittedEvents()...)

	replayed := LoadInventoryItem(history)
	twice := LoadInventoryItem(history)

	if replayed.OnHand != item.OnHand || replayed.Reserved != item.Reserved ||
		replayed.Available != item.Available || replayed.Damaged != item.Damaged {
		t.Errorf("replayed state mismatch: %+v vs %+v", replayed, item)
	}
	if replayed.OnHand != twice.OnHand || replayed.Available != twice.Available {
		t.Error("double replay must be identical")
	}
	if replayed.Reservations["ord-1"] == nil || replayed.Reservations["ord-1"].Status != ReservationConfirmed {
		t.Error("replay must restore reservation state")
	}
	assertConservation(t, replayed)
}
