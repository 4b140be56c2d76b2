package domain

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/wyfcoding/ecommerce/pkg/errs"
	"github.com/wyfcoding/ecommerce/pkg/eventsourcing"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func testItems() []OrderItem {
	return []OrderItem{
		{ProductID: "P-1", SKU: "SKU-A", Name: "widget", UnitPrice: dec("20.00"), Quantity: 2, Discount: decimal.Zero},
		{ProductID: "P-2", SKU: "SKU-B", Name: "gadget", UnitPrice: dec("10.00"), Quantity: 1, Discount: decimal.Zero},
	}
}

// newTestOrder 小计 50 + 运费 4 + 税费 5 = 59.00
func newTestOrder(t *testing.T) *Order {
	t.Helper()
	o, err := NewOrder("ORD-1", "CUST-1", "CNY", testItems(), dec("4.00"), dec("5.00"))
	if err != nil {
		t.Fatalf("NewOrder: %v", err)
	}
	o.MarkCommitted()
	return o
}

// orderInState 沿合法路径把订单驱动到目标状态
func orderInState(t *testing.T, target Status) *Order {
	t.Helper()
	o := newTestOrder(t)
	steps := map[Status][]func() error{
		StatusCreated:   {},
		StatusConfirmed: {o.Confirm},
		StatusPaymentPending: {
			o.Confirm,
			func() error { return o.RecordPaymentPending("PAY-1") },
		},
		StatusPaid: {
			o.Confirm,
			func() error { return o.RecordPaymentPending("PAY-1") },
			func() error { return o.RecordPaymentSuccess("PAY-1") },
		},
	}
	if seq, ok := steps[target]; ok {
		for _, step := range seq {
			if err := step(); err != nil {
				t.Fatalf("drive to %s: %v", target, err)
			}
		}
		o.MarkCommitted()
		return o
	}

	for _, step := range steps[StatusPaid] {
		if err := step(); err != nil {
			t.Fatalf("drive to %s: %v", target, err)
		}
	}
	drive := func(err error) {
		t.Helper()
		if err != nil {
			t.Fatalf("drive to %s: %v", target, err)
		}
	}
	switch target {
	case StatusProcessing:
		drive(o.MarkProcessing())
	case StatusPartiallyShipped:
		drive(o.MarkProcessing())
		drive(o.Ship("SHP-1", "sf-express", "TN-1", []string{"SKU-A"}))
	case StatusShipped:
		drive(o.MarkProcessing())
		drive(o.Ship("SHP-1", "sf-express", "TN-1", nil))
	case StatusDelivered:
		drive(o.MarkProcessing())
		drive(o.Ship("SHP-1", "sf-express", "TN-1", nil))
		drive(o.Deliver())
	case StatusCompleted:
		drive(o.MarkProcessing())
		drive(o.Ship("SHP-1", "sf-express", "TN-1", nil))
		drive(o.Deliver())
		drive(o.Complete())
	case StatusReturnRequested:
		drive(o.MarkProcessing())
		drive(o.Ship("SHP-1", "sf-express", "TN-1", nil))
		drive(o.Deliver())
		drive(o.RequestReturn("damaged in transit"))
	case StatusReturnApproved:
		drive(o.MarkProcessing())
		drive(o.Ship("SHP-1", "sf-express", "TN-1", nil))
		drive(o.Deliver())
		drive(o.RequestReturn("damaged in transit"))
		drive(o.ApproveReturn())
	case StatusReturned:
		drive(o.MarkProcessing())
		drive(o.Ship("SHP-1", "sf-express", "TN-1", nil))
		drive(o.Deliver())
		drive(o.RequestReturn("damaged in transit"))
		drive(o.ApproveReturn())
		drive(o.MarkReturned())
	case StatusCancelled:
		drive(o.Cancel("customer changed mind"))
	case StatusRefunded:
		drive(o.Cancel("customer changed mind"))
		drive(o.MarkRefunded())
	default:
		t.Fatalf("no path to state %s", target)
	}
	o.MarkCommitted()
	return o
}

func TestNewOrder_Validation(t *testing.T) {
	if _, err := NewOrder("ORD-1", "CUST-1", "CNY", nil, decimal.Zero, decimal.Zero); errs.CodeOf(err) != "empty_order" {
		t.Errorf("empty items: expected empty_order, got %v", err)
	}

	dup := []OrderItem{
		{ProductID: "P-1", SKU: "SKU-A", UnitPrice: dec("1.00"), Quantity: 1},
		{ProductID: "P-2", SKU: "SKU-A", UnitPrice: dec("2.00"), Quantity: 1},
	}
	if _, err := NewOrder("ORD-1", "CUST-1", "CNY", dup, decimal.Zero, decimal.Zero); errs.CodeOf(err) != "duplicate_item" {
		t.Errorf("duplicate sku: expected duplicate_item, got %v", err)
	}

	if _, err := NewOrder("ORD-1", "CUST-1", "CNY", testItems(), dec("-1.00"), decimal.Zero); errs.CodeOf(err) != "negative_amount" {
		t.Errorf("negative shipping: expected negative_amount, got %v", err)
	}

	bad := []OrderItem{{ProductID: "P-1", SKU: "SKU-A", UnitPrice: dec("1.00"), Quantity: 0}}
	if _, err := NewOrder("ORD-1", "CUST-1", "CNY", bad, decimal.Zero, decimal.Zero); errs.CodeOf(err) != "invalid_quantity" {
		t.Errorf("zero quantity: expected invalid_quantity, got %v", err)
	}
}

func TestOrder_HappyPathToPaid(t *testing.T) {
	o := newTestOrder(t)

	if !o.Pricing.GrandTotal.Equal(dec("59.00")) {
		t.Fatalf("expected grand total 59.00, got %s", o.Pricing.GrandTotal)
	}
	if o.Status != StatusCreated {
		t.Fatalf("expected CREATED, got %s", o.Status)
	}

	if err := o.Confirm(); err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	if o.Status != StatusConfirmed {
		t.Errorf("expected CONFIRMED, got %s", o.Status)
	}

	if err := o.RecordPaymentPending("PAY-1"); err != nil {
		t.Fatalf("RecordPaymentPending: %v", err)
	}
	if o.Status != StatusPaymentPending || o.PaymentID != "PAY-1" {
		t.Errorf("expected PAYMENT_PENDING/PAY-1, got %s/%s", o.Status, o.PaymentID)
	}

	if err := o.RecordPaymentSuccess("PAY-1"); err != nil {
		t.Fatalf("RecordPaymentSuccess: %v", err)
	}
	if o.Status != StatusPaid || o.PaymentStatus != "SUCCEEDED" {
		t.Errorf("expected PAID/SUCCEEDED, got %s/%s", o.Status, o.PaymentStatus)
	}

	// 未进入拣货不允许发货
	err := o.Ship("SHP-1", "sf-express", "TN-1", nil)
	if !errs.IsKind(err, errs.KindStateTransition) {
		t.Errorf("ship from PAID: expected state transition error, got %v", err)
	}
	if o.Status != StatusPaid {
		t.Errorf("failed ship must not change status, got %s", o.Status)
	}
}

// TestOrder_TransitionClosure 穷举所有状态下的非法触发，
// 断言被拒绝且状态与版本均不变
func TestOrder_TransitionClosure(t *testing.T) {
	type command struct {
		name string
		run  func(*Order) error
	}
	commands := []command{
		{"CONFIRM", func(o *Order) error { return o.Confirm() }},
		{"REQUEST_PAYMENT", func(o *Order) error { return o.RecordPaymentPending("PAY-X") }},
		{"PAYMENT_SUCCESS", func(o *Order) error { return o.RecordPaymentSuccess("PAY-X") }},
		{"PAYMENT_FAILURE", func(o *Order) error { return o.RecordPaymentFailure("card declined") }},
		{"PROCESS", func(o *Order) error { return o.MarkProcessing() }},
		{"SHIP_ALL", func(o *Order) error { return o.Ship("SHP-X", "sf-express", "TN-X", nil) }},
		{"DELIVER", func(o *Order) error { return o.Deliver() }},
		{"COMPLETE", func(o *Order) error { return o.Complete() }},
		{"REQUEST_RETURN", func(o *Order) error { return o.RequestReturn("wrong size") }},
		{"APPROVE_RETURN", func(o *Order) error { return o.ApproveReturn() }},
		{"RETURN", func(o *Order) error { return o.MarkReturned() }},
		{"CANCEL", func(o *Order) error { return o.Cancel("test") }},
		{"REFUND", func(o *Order) error { return o.MarkRefunded() }},
	}

	allowed := map[Status]map[string]bool{
		StatusCreated:          {"CONFIRM": true, "CANCEL": true},
		StatusConfirmed:        {"REQUEST_PAYMENT": true, "CANCEL": true},
		StatusPaymentPending:   {"PAYMENT_SUCCESS": true, "PAYMENT_FAILURE": true, "CANCEL": true},
		StatusPaid:             {"PROCESS": true, "CANCEL": true},
		StatusProcessing:       {"SHIP_ALL": true},
		StatusPartiallyShipped: {"SHIP_ALL": true},
		StatusShipped:          {"DELIVER": true},
		StatusDelivered:        {"COMPLETE": true, "REQUEST_RETURN": true},
		StatusReturnRequested:  {"APPROVE_RETURN": true},
		StatusReturnApproved:   {"RETURN": true},
		StatusReturned:         {"REFUND": true},
		StatusCancelled:        {"REFUND": true},
		StatusCompleted:        {},
		StatusRefunded:         {},
	}

	for status, legal := range allowed {
		for _, cmd := range commands {
			if legal[cmd.name] {
				continue
			}
			o := orderInState(t, status)
			before := o.Version()
			err := cmd.run(o)
			if !errs.IsKind(err, errs.KindStateTransition) {
				t.Errorf("%s in %s: expected state transition error, got %v", cmd.name, status, err)
			}
			if o.Status != status {
				t.Errorf("%s in %s: status changed to %s", cmd.name, status, o.Status)
			}
			if o.Version() != before {
				t.Errorf("%s in %s: version changed %d -> %d", cmd.name, status, before, o.Version())
			}
			if len(o.GetUncommittedEvents()) != 0 {
				t.Errorf("%s in %s: rejected command emitted events", cmd.name, status)
			}
		}
	}
}

func TestOrder_ItemMutationOnlyWhenCreated(t *testing.T) {
	o := newTestOrder(t)

	extra := OrderItem{ProductID: "P-3", SKU: "SKU-C", Name: "doohickey", UnitPrice: dec("3.00"), Quantity: 2}
	if err := o.AddItem(extra); err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	// 50 + 6 = 56 小计，总额 65.00
	if !o.Pricing.GrandTotal.Equal(dec("65.00")) {
		t.Errorf("expected grand total 65.00 after add, got %s", o.Pricing.GrandTotal)
	}

	if err := o.ChangeItemQuantity("SKU-B", 3); err != nil {
		t.Fatalf("ChangeItemQuantity: %v", err)
	}
	// 小计 40 + 30 + 6 = 76，总额 85.00
	if !o.Pricing.GrandTotal.Equal(dec("85.00")) {
		t.Errorf("expected grand total 85.00 after quantity change, got %s", o.Pricing.GrandTotal)
	}

	if err := o.RemoveItem("SKU-C"); err != nil {
		t.Fatalf("RemoveItem: %v", err)
	}
	if !o.Pricing.GrandTotal.Equal(dec("79.00")) {
		t.Errorf("expected grand total 79.00 after remove, got %s", o.Pricing.GrandTotal)
	}

	if err := o.ApplyCoupon("WELCOME10", dec("10.00")); err != nil {
		t.Fatalf("ApplyCoupon: %v", err)
	}
	if !o.Pricing.GrandTotal.Equal(dec("69.00")) {
		t.Errorf("expected grand total 69.00 after coupon, got %s", o.Pricing.GrandTotal)
	}

	if err := o.Confirm(); err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	if err := o.AddItem(extra); !errs.IsKind(err, errs.KindStateTransition) {
		t.Errorf("AddItem after confirm: expected state transition error, got %v", err)
	}
	if err := o.RemoveItem("SKU-A"); !errs.IsKind(err, errs.KindStateTransition) {
		t.Errorf("RemoveItem after confirm: expected state transition error, got %v", err)
	}
	if err := o.ApplyCoupon("LATE", dec("1.00")); !errs.IsKind(err, errs.KindStateTransition) {
		t.Errorf("ApplyCoupon after confirm: expected state transition error, got %v", err)
	}
}

func TestOrder_RemoveLastItemRejected(t *testing.T) {
	items := []OrderItem{{ProductID: "P-1", SKU: "SKU-A", UnitPrice: dec("1.00"), Quantity: 1}}
	o, err := NewOrder("ORD-1", "CUST-1", "CNY", items, decimal.Zero, decimal.Zero)
	if err != nil {
		t.Fatalf("NewOrder: %v", err)
	}
	if err := o.RemoveItem("SKU-A"); errs.CodeOf(err) != "empty_order" {
		t.Errorf("expected empty_order, got %v", err)
	}
}

func TestOrder_AddressSetOnce(t *testing.T) {
	o := newTestOrder(t)
	addr := Address{Name: "张三", Phone: "13800000000", Line1: "1 Main St", City: "Shenzhen", Province: "GD", PostalCode: "518000", Country: "CN"}

	if err := o.SetShippingAddress(addr); err != nil {
		t.Fatalf("SetShippingAddress: %v", err)
	}
	if err := o.SetShippingAddress(addr); errs.CodeOf(err) != "address_immutable" {
		t.Errorf("second shipping address: expected address_immutable, got %v", err)
	}

	if err := o.SetBillingAddress(addr); err != nil {
		t.Fatalf("SetBillingAddress: %v", err)
	}
	if err := o.SetBillingAddress(addr); errs.CodeOf(err) != "address_immutable" {
		t.Errorf("second billing address: expected address_immutable, got %v", err)
	}

	if err := o.SetShippingAddress(Address{}); errs.CodeOf(err) != "address_immutable" {
		t.Errorf("empty address on set order: expected address_immutable, got %v", err)
	}
}

func TestOrder_UpdateContactPartial(t *testing.T) {
	o := newTestOrder(t)

	if err := o.UpdateContact(None[string](), None[string]()); errs.CodeOf(err) != "empty_update" {
		t.Errorf("no fields: expected empty_update, got %v", err)
	}

	if err := o.UpdateContact(Some("a@example.com"), Some("13800000000")); err != nil {
		t.Fatalf("UpdateContact: %v", err)
	}
	if o.Email != "a@example.com" || o.Phone != "13800000000" {
		t.Fatalf("contact not applied: %s / %s", o.Email, o.Phone)
	}

	// 未设定的字段保持原值
	if err := o.UpdateContact(Some("b@example.com"), None[string]()); err != nil {
		t.Fatalf("UpdateContact: %v", err)
	}
	if o.Email != "b@example.com" || o.Phone != "13800000000" {
		t.Errorf("partial update wrong: %s / %s", o.Email, o.Phone)
	}

	// 显式空串清空
	if err := o.UpdateContact(None[string](), Some("")); err != nil {
		t.Fatalf("UpdateContact: %v", err)
	}
	if o.Phone != "" {
		t.Errorf("explicit empty should clear phone, got %q", o.Phone)
	}
}

func TestOrder_PaymentFailureReturnsToConfirmed(t *testing.T) {
	o := orderInState(t, StatusPaymentPending)

	if err := o.RecordPaymentFailure("card declined"); err != nil {
		t.Fatalf("RecordPaymentFailure: %v", err)
	}
	if o.Status != StatusConfirmed || o.PaymentStatus != "FAILED" {
		t.Fatalf("expected CONFIRMED/FAILED, got %s/%s", o.Status, o.PaymentStatus)
	}

	// 支付失败后可重新发起支付
	if err := o.RecordPaymentPending("PAY-2"); err != nil {
		t.Fatalf("re-request payment: %v", err)
	}
	if o.PaymentID != "PAY-2" {
		t.Errorf("expected PAY-2, got %s", o.PaymentID)
	}
}

func TestOrder_PartialThenFullShipment(t *testing.T) {
	o := orderInState(t, StatusProcessing)

	if err := o.Ship("SHP-1", "sf-express", "TN-1", []string{"SKU-A"}); err != nil {
		t.Fatalf("partial ship: %v", err)
	}
	if o.Status != StatusPartiallyShipped {
		t.Fatalf("expected PARTIALLY_SHIPPED, got %s", o.Status)
	}
	if item := o.findItem("SKU-A"); item == nil || !item.Shipped {
		t.Error("SKU-A should be marked shipped")
	}
	if item := o.findItem("SKU-B"); item == nil || item.Shipped {
		t.Error("SKU-B should still be unshipped")
	}

	// 重复发货同一商品
	if err := o.Ship("SHP-2", "sf-express", "TN-2", []string{"SKU-A"}); errs.CodeOf(err) != "already_shipped" {
		t.Errorf("reship SKU-A: expected already_shipped, got %v", err)
	}

	// 发出剩余商品即整单发货
	if err := o.Ship("SHP-2", "sf-express", "TN-2", nil); err != nil {
		t.Fatalf("final ship: %v", err)
	}
	if o.Status != StatusShipped {
		t.Fatalf("expected SHIPPED, got %s", o.Status)
	}
	if err := o.Deliver(); err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	if err := o.Complete(); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if o.Status != StatusCompleted {
		t.Errorf("expected COMPLETED, got %s", o.Status)
	}
}

func TestOrder_ReplayRebuildsState(t *testing.T) {
	o := newTestOrder(t)
	history := []eventsourcing.DomainEvent{
		&OrderCreatedEvent{
			BaseEvent:   eventsourcing.BaseEvent{Ver: 1, Timestamp: o.CreatedAt},
			OrderID:     "ORD-1",
			CustomerID:  "CUST-1",
			Currency:    "CNY",
			Items:       testItems(),
			ShippingFee: dec("4.00"),
			Tax:         dec("5.00"),
		},
	}
	if err := o.ApplyCoupon("WELCOME10", dec("10.00")); err != nil {
		t.Fatalf("ApplyCoupon: %v", err)
	}
	if err := o.Confirm(); err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	history = append(history, o.GetUncommittedEvents()...)

	replayed := LoadOrder(history)
	if replayed.Status != o.Status {
		t.Errorf("status mismatch: %s vs %s", replayed.Status, o.Status)
	}
	if !replayed.Pricing.GrandTotal.Equal(o.Pricing.GrandTotal) {
		t.Errorf("grand total mismatch: %s vs %s", replayed.Pricing.GrandTotal, o.Pricing.GrandTotal)
	}
	if replayed.Version() != o.Version() {
		t.Errorf("version mismatch: %d vs %d", replayed.Version(), o.Version())
	}
	if len(replayed.GetUncommittedEvents()) != 0 {
		t.Error("replay must not queue pending events")
	}
}
