package application

import (
	"context"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/wyfcoding/ecommerce/internal/fulfillment/domain"
	"github.com/wyfcoding/ecommerce/pkg/errs"
)

type memStore struct {
	mu      sync.Mutex
	records map[string]*domain.SagaRecord
}

func newMemStore() *memStore {
	return &memStore{records: make(map[string]*domain.SagaRecord)}
}

func (s *memStore) Get(ctx context.Context, orderID string) (*domain.SagaRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[orderID]
	if !ok {
		return nil, nil
	}
	clone := *record
	return &clone, nil
}

func (s *memStore) Save(ctx context.Context, record *domain.SagaRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *record
	s.records[record.OrderID] = &clone
	return nil
}

// fakeInventory 记录每次调用，failSKU 上的预占会失败
type fakeInventory struct {
	mu        sync.Mutex
	failSKU   string
	reserved  []string
	released  []string
	committed []string
}

func (f *fakeInventory) Reserve(ctx context.Context, orderID string, line domain.ReservationLine) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if line.SKU == f.failSKU {
		return errs.Exhausted("insufficient_stock", 0, line.Quantity, "cannot reserve %d of %s", line.Quantity, line.SKU)
	}
	f.reserved = append(f.reserved, line.SKU)
	return nil
}

func (f *fakeInventory) Release(ctx context.Context, orderID string, line domain.ReservationLine, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.released = append(f.released, line.SKU)
	return nil
}

func (f *fakeInventory) ConfirmAndCommit(ctx context.Context, orderID string, line domain.ReservationLine) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.committed = append(f.committed, line.SKU)
	return nil
}

type fakeOrders struct {
	mu              sync.Mutex
	snapshot        *domain.OrderSnapshot
	confirmErr      error
	confirmed       []string
	paymentPending  []string
	paymentSuccess  []string
	paymentFailures []string
	cancelled       []string
}

func (f *fakeOrders) Snapshot(ctx context.Context, orderID string) (*domain.OrderSnapshot, error) {
	if f.snapshot == nil {
		return nil, errs.Validationf("order_not_found", "order %s does not exist", orderID)
	}
	return f.snapshot, nil
}

func (f *fakeOrders) Confirm(ctx context.Context, orderID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.confirmErr != nil {
		return f.confirmErr
	}
	f.confirmed = append(f.confirmed, orderID)
	return nil
}

func (f *fakeOrders) RecordPaymentPending(ctx context.Context, orderID, paymentID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.paymentPending = append(f.paymentPending, paymentID)
	return nil
}

func (f *fakeOrders) RecordPaymentSuccess(ctx context.Context, orderID, paymentID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.paymentSuccess = append(f.paymentSuccess, paymentID)
	return nil
}

func (f *fakeOrders) RecordPaymentFailure(ctx context.Context, orderID, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.paymentFailures = append(f.paymentFailures, reason)
	return nil
}

func (f *fakeOrders) Cancel(ctx context.Context, orderID, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled = append(f.cancelled, orderID)
	return nil
}

type fakePayments struct {
	mu        sync.Mutex
	initiated []string // 收到的幂等键
	fail      bool
}

func (f *fakePayments) Initiate(ctx context.Context, orderID, customerID string, amount decimal.Decimal, currency, idempotencyKey string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return "", errs.Validationf("channel_unavailable", "payment channel unavailable")
	}
	f.initiated = append(f.initiated, idempotencyKey)
	return "PAY-1", nil
}

type fixture struct {
	store     *memStore
	inventory *fakeInventory
	orders    *fakeOrders
	payments  *fakePayments
	coord     *Coordinator
}

func newFixture() *fixture {
	f := &fixture{
		store:     newMemStore(),
		inventory: &fakeInventory{},
		payments:  &fakePayments{},
		orders: &fakeOrders{
			snapshot: &domain.OrderSnapshot{
				OrderID:    "ORD-1",
				CustomerID: "CUST-1",
				Currency:   "CNY",
				GrandTotal: decimal.NewFromInt(59),
				Lines: []domain.ReservationLine{
					{SKU: "SKU-A", Quantity: 2},
					{SKU: "SKU-B", Quantity: 1},
				},
			},
		},
	}
	f.coord = NewCoordinator(f.store, f.inventory, f.orders, f.payments, nil)
	return f
}

func (f *fixture) record(t *testing.T) *domain.SagaRecord {
	t.Helper()
	record, err := f.store.Get(context.Background(), "ORD-1")
	if err != nil {
		t.Fatalf("store.Get: %v", err)
	}
	if record == nil {
		t.Fatal("saga record missing")
	}
	return record
}

func TestOnOrderCreated_HappyPath(t *testing.T) {
	f := newFixture()

	if err := f.coord.OnOrderCreated(context.Background(), "ORD-1"); err != nil {
		t.Fatalf("OnOrderCreated: %v", err)
	}

	if got := f.inventory.reserved; len(got) != 2 {
		t.Errorf("expected both lines reserved, got %v", got)
	}
	if len(f.orders.confirmed) != 1 {
		t.Errorf("order not confirmed: %v", f.orders.confirmed)
	}
	if len(f.payments.initiated) != 1 || f.payments.initiated[0] != "order-ORD-1" {
		t.Errorf("payment idempotency key wrong: %v", f.payments.initiated)
	}
	if len(f.orders.paymentPending) != 1 || f.orders.paymentPending[0] != "PAY-1" {
		t.Errorf("payment pending not recorded: %v", f.orders.paymentPending)
	}

	record := f.record(t)
	if record.Status != domain.StatusAwaitingPayment || record.NextStep != domain.StepRecordPaymentSuccess {
		t.Errorf("expected AWAITING_PAYMENT/record_payment_success, got %s/%s", record.Status, record.NextStep)
	}
	if record.PaymentID != "PAY-1" {
		t.Errorf("payment id not persisted, got %q", record.PaymentID)
	}
}

func TestOnOrderCreated_DuplicateEventSkipped(t *testing.T) {
	f := newFixture()

	if err := f.coord.OnOrderCreated(context.Background(), "ORD-1"); err != nil {
		t.Fatalf("OnOrderCreated: %v", err)
	}
	if err := f.coord.OnOrderCreated(context.Background(), "ORD-1"); err != nil {
		t.Fatalf("duplicate OnOrderCreated: %v", err)
	}

	if len(f.payments.initiated) != 1 {
		t.Errorf("duplicate delivery must not initiate payment twice: %v", f.payments.initiated)
	}
	if len(f.inventory.reserved) != 2 {
		t.Errorf("duplicate delivery must not reserve twice: %v", f.inventory.reserved)
	}
}

// TestOnOrderCreated_ReservationFailure 第二行预占失败：
// 已预占的第一行被释放，订单取消，支付从未被触达
func TestOnOrderCreated_ReservationFailure(t *testing.T) {
	f := newFixture()
	f.inventory.failSKU = "SKU-B"

	if err := f.coord.OnOrderCreated(context.Background(), "ORD-1"); err != nil {
		t.Fatalf("OnOrderCreated: %v", err)
	}

	if got := f.inventory.reserved; len(got) != 1 || got[0] != "SKU-A" {
		t.Errorf("expected only SKU-A reserved, got %v", got)
	}
	if got := f.inventory.released; len(got) != 1 || got[0] != "SKU-A" {
		t.Errorf("expected SKU-A released in compensation, got %v", got)
	}
	if len(f.payments.initiated) != 0 {
		t.Error("payment must never be initiated when reservation fails")
	}
	if len(f.orders.cancelled) != 1 {
		t.Errorf("order should be cancelled, got %v", f.orders.cancelled)
	}

	record := f.record(t)
	if record.Status != domain.StatusCompensated || record.NextStep != domain.StepDone {
		t.Errorf("expected COMPENSATED/done, got %s/%s", record.Status, record.NextStep)
	}
}

// TestOnOrderCreated_PaymentInitiationFailure 支付发起失败时，
// 已预占的两行全部按相反顺序补偿并取消订单
func TestOnOrderCreated_PaymentInitiationFailure(t *testing.T) {
	f := newFixture()
	f.payments.fail = true

	if err := f.coord.OnOrderCreated(context.Background(), "ORD-1"); err != nil {
		t.Fatalf("OnOrderCreated: %v", err)
	}

	if len(f.inventory.released) != 2 {
		t.Errorf("expected both reservations released, got %v", f.inventory.released)
	}
	if len(f.orders.cancelled) != 1 {
		t.Errorf("order should be cancelled, got %v", f.orders.cancelled)
	}
	if f.record(t).Status != domain.StatusCompensated {
		t.Errorf("expected COMPENSATED, got %s", f.record(t).Status)
	}
}

func TestOnPaymentSucceeded_CommitsStock(t *testing.T) {
	f := newFixture()
	if err := f.coord.OnOrderCreated(context.Background(), "ORD-1"); err != nil {
		t.Fatalf("OnOrderCreated: %v", err)
	}

	if err := f.coord.OnPaymentSucceeded(context.Background(), "ORD-1", "PAY-1"); err != nil {
		t.Fatalf("OnPaymentSucceeded: %v", err)
	}

	if len(f.orders.paymentSuccess) != 1 {
		t.Errorf("payment success not recorded on order: %v", f.orders.paymentSuccess)
	}
	if len(f.inventory.committed) != 2 {
		t.Errorf("expected both lines committed, got %v", f.inventory.committed)
	}
	if f.record(t).Status != domain.StatusCompleted {
		t.Errorf("expected COMPLETED, got %s", f.record(t).Status)
	}

	// 重复的成功事件不再落实第二次
	if err := f.coord.OnPaymentSucceeded(context.Background(), "ORD-1", "PAY-1"); err != nil {
		t.Fatalf("duplicate OnPaymentSucceeded: %v", err)
	}
	if len(f.inventory.committed) != 2 {
		t.Errorf("duplicate success must not commit twice: %v", f.inventory.committed)
	}
}

func TestOnPaymentSucceeded_UnknownSaga(t *testing.T) {
	f := newFixture()
	if err := f.coord.OnPaymentSucceeded(context.Background(), "ORD-404", "PAY-1"); err != nil {
		t.Fatalf("unknown saga must be tolerated: %v", err)
	}
	if len(f.inventory.committed) != 0 {
		t.Error("unknown saga must not commit stock")
	}
}

func TestOnPaymentFailed_RetryableKeepsSagaOpen(t *testing.T) {
	f := newFixture()
	if err := f.coord.OnOrderCreated(context.Background(), "ORD-1"); err != nil {
		t.Fatalf("OnOrderCreated: %v", err)
	}

	if err := f.coord.OnPaymentFailed(context.Background(), "ORD-1", "card declined", true); err != nil {
		t.Fatalf("OnPaymentFailed: %v", err)
	}

	if len(f.inventory.released) != 0 || len(f.orders.cancelled) != 0 {
		t.Error("retryable failure must not compensate")
	}
	if f.record(t).Status != domain.StatusAwaitingPayment {
		t.Errorf("saga must stay open, got %s", f.record(t).Status)
	}
}

func TestOnPaymentFailed_TerminalCompensates(t *testing.T) {
	f := newFixture()
	if err := f.coord.OnOrderCreated(context.Background(), "ORD-1"); err != nil {
		t.Fatalf("OnOrderCreated: %v", err)
	}

	if err := f.coord.OnPaymentFailed(context.Background(), "ORD-1", "attempts exhausted", false); err != nil {
		t.Fatalf("OnPaymentFailed: %v", err)
	}

	if len(f.orders.paymentFailures) != 1 {
		t.Errorf("payment failure not recorded on order: %v", f.orders.paymentFailures)
	}
	if len(f.inventory.released) != 2 {
		t.Errorf("expected both reservations released, got %v", f.inventory.released)
	}
	if len(f.orders.cancelled) != 1 {
		t.Errorf("order should be cancelled, got %v", f.orders.cancelled)
	}

	record := f.record(t)
	if record.Status != domain.StatusCompensated || record.Reason != "attempts exhausted" {
		t.Errorf("expected COMPENSATED/attempts exhausted, got %s/%q", record.Status, record.Reason)
	}
}

func TestOnOrderCancelled_ReleasesWhileInFlight(t *testing.T) {
	f := newFixture()
	if err := f.coord.OnOrderCreated(context.Background(), "ORD-1"); err != nil {
		t.Fatalf("OnOrderCreated: %v", err)
	}

	if err := f.coord.OnOrderCancelled(context.Background(), "ORD-1", "customer changed mind"); err != nil {
		t.Fatalf("OnOrderCancelled: %v", err)
	}

	if len(f.inventory.released) != 2 {
		t.Errorf("expected reservations released on cancel, got %v", f.inventory.released)
	}
	if f.record(t).Status != domain.StatusCompensated {
		t.Errorf("expected COMPENSATED, got %s", f.record(t).Status)
	}

	// 终态后的取消事件不再触发释放
	if err := f.coord.OnOrderCancelled(context.Background(), "ORD-1", "again"); err != nil {
		t.Fatalf("OnOrderCancelled after terminal: %v", err)
	}
	if len(f.inventory.released) != 2 {
		t.Errorf("terminal saga must not release again: %v", f.inventory.released)
	}
}

// TestOnOrderCreated_ConfirmRejectedStillCompensates 确认命令被拒时
// 预占回滚且订单被取消
func TestOnOrderCreated_ConfirmRejectedStillCompensates(t *testing.T) {
	f := newFixture()
	f.orders.confirmErr = errs.Transition("order", "CANCELLED", "CONFIRMED")

	if err := f.coord.OnOrderCreated(context.Background(), "ORD-1"); err != nil {
		t.Fatalf("OnOrderCreated: %v", err)
	}

	if len(f.inventory.released) != 2 {
		t.Errorf("expected reservations released, got %v", f.inventory.released)
	}
	if len(f.payments.initiated) != 0 {
		t.Error("payment must not be initiated after confirm rejection")
	}
	if f.record(t).Status != domain.StatusCompensated {
		t.Errorf("expected COMPENSATED, got %s", f.record(t).Status)
	}
}
