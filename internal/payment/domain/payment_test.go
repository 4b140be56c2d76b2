package domain

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/wyfcoding/ecommerce/pkg/errs"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func newTestPayment(t *testing.T) *Payment {
	t.Helper()
	p, err := NewPayment("PAY-1", "ORD-1", "CUST-1", dec("50.00"), "CNY", "order-ORD-1")
	if err != nil {
		t.Fatalf("NewPayment: %v", err)
	}
	p.MarkCommitted()
	return p
}

func succeededPayment(t *testing.T) *Payment {
	t.Helper()
	p := newTestPayment(t)
	if err := p.StartProcessing(); err != nil {
		t.Fatalf("StartProcessing: %v", err)
	}
	if err := p.RecordSuccess("txn-1"); err != nil {
		t.Fatalf("RecordSuccess: %v", err)
	}
	p.MarkCommitted()
	return p
}

func TestNewPayment_Validation(t *testing.T) {
	cases := []struct {
		name     string
		id       string
		orderID  string
		amount   decimal.Decimal
		currency string
		idemKey  string
		code     string
	}{
		{"missing order id", "PAY-1", "", dec("10.00"), "CNY", "k1", "missing_field"},
		{"missing currency", "PAY-1", "ORD-1", dec("10.00"), "", "k1", "missing_field"},
		{"missing idempotency key", "PAY-1", "ORD-1", dec("10.00"), "CNY", "", "missing_field"},
		{"zero amount", "PAY-1", "ORD-1", decimal.Zero, "CNY", "k1", "invalid_amount"},
		{"negative amount", "PAY-1", "ORD-1", dec("-5.00"), "CNY", "k1", "invalid_amount"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewPayment(tc.id, tc.orderID, "CUST-1", tc.amount, tc.currency, tc.idemKey)
			if errs.CodeOf(err) != tc.code {
				t.Errorf("expected %s, got %v", tc.code, err)
			}
		})
	}
}

func TestPayment_InitiationOpensFirstAttempt(t *testing.T) {
	p := newTestPayment(t)
	if p.Status != StatusPending {
		t.Errorf("expected PENDING, got %s", p.Status)
	}
	if p.AttemptCount != 1 || len(p.Attempts) != 1 {
		t.Errorf("initiation must open attempt 1, count=%d attempts=%d", p.AttemptCount, len(p.Attempts))
	}
	if p.Attempts[0].Status != AttemptStarted {
		t.Errorf("expected first attempt STARTED, got %s", p.Attempts[0].Status)
	}
}

func TestPayment_SuccessLifecycle(t *testing.T) {
	p := newTestPayment(t)

	if err := p.StartProcessing(); err != nil {
		t.Fatalf("StartProcessing: %v", err)
	}
	if p.Status != StatusProcessing {
		t.Fatalf("expected PROCESSING, got %s", p.Status)
	}

	if err := p.RecordSuccess("txn-42"); err != nil {
		t.Fatalf("RecordSuccess: %v", err)
	}
	if p.Status != StatusSucceeded || p.TransactionID != "txn-42" {
		t.Errorf("expected SUCCEEDED/txn-42, got %s/%s", p.Status, p.TransactionID)
	}
	if p.Attempts[0].Status != AttemptSucceeded {
		t.Errorf("attempt should close SUCCEEDED, got %s", p.Attempts[0].Status)
	}

	// 成功后不可再次扣款
	if err := p.StartProcessing(); !errs.IsKind(err, errs.KindStateTransition) {
		t.Errorf("process after success: expected state transition error, got %v", err)
	}
	if err := p.RecordFailure("late decline"); !errs.IsKind(err, errs.KindStateTransition) {
		t.Errorf("fail after success: expected state transition error, got %v", err)
	}
}

func TestPayment_MaxAttempts(t *testing.T) {
	p := newTestPayment(t)

	// 第 1、2 次失败均可重试
	for attempt := 1; attempt <= 2; attempt++ {
		if err := p.StartProcessing(); err != nil {
			t.Fatalf("attempt %d StartProcessing: %v", attempt, err)
		}
		if err := p.RecordFailure("card declined"); err != nil {
			t.Fatalf("attempt %d RecordFailure: %v", attempt, err)
		}
		if !p.Retryable() {
			t.Fatalf("attempt %d should be retryable", attempt)
		}
		if err := p.Retry(); err != nil {
			t.Fatalf("attempt %d Retry: %v", attempt, err)
		}
		if p.Status != StatusPending || p.AttemptCount != attempt+1 {
			t.Fatalf("after retry %d: status=%s count=%d", attempt, p.Status, p.AttemptCount)
		}
	}

	// 第 3 次失败为终态
	if err := p.StartProcessing(); err != nil {
		t.Fatalf("attempt 3 StartProcessing: %v", err)
	}
	if err := p.RecordFailure("card declined"); err != nil {
		t.Fatalf("attempt 3 RecordFailure: %v", err)
	}
	if p.Retryable() {
		t.Error("third failure must not be retryable")
	}

	err := p.Retry()
	if !errs.IsKind(err, errs.KindExhausted) || errs.CodeOf(err) != "max_attempts_exceeded" {
		t.Errorf("expected max_attempts_exceeded, got %v", err)
	}
	if p.Status != StatusFailed || p.AttemptCount != MaxAttempts {
		t.Errorf("terminal state wrong: %s / %d", p.Status, p.AttemptCount)
	}
	if len(p.Attempts) != MaxAttempts {
		t.Errorf("expected %d attempts recorded, got %d", MaxAttempts, len(p.Attempts))
	}
}

func TestPayment_FailedEventCarriesRetryable(t *testing.T) {
	p := newTestPayment(t)

	if err := p.RecordFailure("timeout"); err != nil {
		t.Fatalf("RecordFailure: %v", err)
	}
	events := p.GetUncommittedEvents()
	failed, ok := events[len(events)-1].(*PaymentFailedEvent)
	if !ok {
		t.Fatalf("expected PaymentFailedEvent, got %T", events[len(events)-1])
	}
	if !failed.Retryable || failed.AttemptNo != 1 {
		t.Errorf("first failure should be retryable attempt 1, got retryable=%v attempt=%d", failed.Retryable, failed.AttemptNo)
	}

	p.MarkCommitted()
	if err := p.Retry(); err != nil {
		t.Fatalf("Retry: %v", err)
	}
	if err := p.RecordFailure("timeout"); err != nil {
		t.Fatalf("RecordFailure: %v", err)
	}
	if err := p.Retry(); err != nil {
		t.Fatalf("Retry: %v", err)
	}
	if err := p.RecordFailure("timeout"); err != nil {
		t.Fatalf("RecordFailure: %v", err)
	}
	events = p.GetUncommittedEvents()
	failed, ok = events[len(events)-1].(*PaymentFailedEvent)
	if !ok {
		t.Fatalf("expected PaymentFailedEvent, got %T", events[len(events)-1])
	}
	if failed.Retryable || failed.AttemptNo != MaxAttempts {
		t.Errorf("final failure must be terminal, got retryable=%v attempt=%d", failed.Retryable, failed.AttemptNo)
	}
}

func TestPayment_PartialThenExcessiveRefund(t *testing.T) {
	p := succeededPayment(t)

	if err := p.RequestRefund("RFD-1", dec("30.00"), "partial return"); err != nil {
		t.Fatalf("RequestRefund: %v", err)
	}
	if err := p.CompleteRefund("RFD-1"); err != nil {
		t.Fatalf("CompleteRefund: %v", err)
	}
	if p.Status != StatusPartiallyRefunded {
		t.Fatalf("expected PARTIALLY_REFUNDED, got %s", p.Status)
	}
	if !p.TotalRefunded.Equal(dec("30.00")) {
		t.Fatalf("expected total refunded 30.00, got %s", p.TotalRefunded)
	}

	// 30 + 25 > 50，超额退款被拒绝
	err := p.RequestRefund("RFD-2", dec("25.00"), "second return")
	if !errs.IsKind(err, errs.KindExhausted) || errs.CodeOf(err) != "refund_exceeded" {
		t.Fatalf("expected refund_exceeded, got %v", err)
	}

	// 余额以内的退款仍然允许，完成后进入全额退款终态
	if err := p.RequestRefund("RFD-2", dec("20.00"), "second return"); err != nil {
		t.Fatalf("RequestRefund within balance: %v", err)
	}
	if err := p.CompleteRefund("RFD-2"); err != nil {
		t.Fatalf("CompleteRefund: %v", err)
	}
	if p.Status != StatusRefunded {
		t.Errorf("expected REFUNDED, got %s", p.Status)
	}
	if !p.TotalRefunded.Equal(dec("50.00")) {
		t.Errorf("expected total refunded 50.00, got %s", p.TotalRefunded)
	}

	// 终态后不再允许退款
	if err := p.RequestRefund("RFD-3", dec("1.00"), "late"); !errs.IsKind(err, errs.KindStateTransition) {
		t.Errorf("refund after full refund: expected state transition error, got %v", err)
	}
}

func TestPayment_OutstandingRefundsCountAgainstBalance(t *testing.T) {
	p := succeededPayment(t)

	if err := p.RequestRefund("RFD-1", dec("30.00"), "first"); err != nil {
		t.Fatalf("RequestRefund: %v", err)
	}
	// RFD-1 尚未完成，在途金额同样占用可退余额
	err := p.RequestRefund("RFD-2", dec("25.00"), "second")
	if errs.CodeOf(err) != "refund_exceeded" {
		t.Errorf("expected refund_exceeded while RFD-1 outstanding, got %v", err)
	}

	if err := p.RequestRefund("RFD-1", dec("5.00"), "dup"); errs.CodeOf(err) != "duplicate_refund" {
		t.Errorf("expected duplicate_refund, got %v", err)
	}
	if err := p.CompleteRefund("RFD-9"); errs.CodeOf(err) != "refund_not_found" {
		t.Errorf("expected refund_not_found, got %v", err)
	}

	if err := p.CompleteRefund("RFD-1"); err != nil {
		t.Fatalf("CompleteRefund: %v", err)
	}
	if err := p.CompleteRefund("RFD-1"); !errs.IsKind(err, errs.KindStateTransition) {
		t.Errorf("double complete: expected state transition error, got %v", err)
	}
}

func TestPayment_RefundRequiresSuccess(t *testing.T) {
	p := newTestPayment(t)
	if err := p.RequestRefund("RFD-1", dec("10.00"), "too early"); !errs.IsKind(err, errs.KindStateTransition) {
		t.Errorf("refund on pending payment: expected state transition error, got %v", err)
	}

	if err := p.RecordFailure("declined"); err != nil {
		t.Fatalf("RecordFailure: %v", err)
	}
	if err := p.RequestRefund("RFD-1", dec("10.00"), "too early"); !errs.IsKind(err, errs.KindStateTransition) {
		t.Errorf("refund on failed payment: expected state transition error, got %v", err)
	}
}

func TestPayment_ReplayRebuildsState(t *testing.T) {
	p2, err := NewPayment("PAY-1", "ORD-1", "CUST-1", dec("50.00"), "CNY", "order-ORD-1")
	if err != nil {
		t.Fatalf("NewPayment: %v", err)
	}
	if err := p2.StartProcessing(); err != nil {
		t.Fatalf("StartProcessing: %v", err)
	}
	if err := p2.RecordSuccess("txn-1"); err != nil {
		t.Fatalf("RecordSuccess: %v", err)
	}
	if err := p2.RequestRefund("RFD-1", dec("30.00"), "return"); err != nil {
		t.Fatalf("RequestRefund: %v", err)
	}
	if err := p2.CompleteRefund("RFD-1"); err != nil {
		t.Fatalf("CompleteRefund: %v", err)
	}

	replayed := LoadPayment(p2.GetUncommittedEvents())
	if replayed.Status != p2.Status {
		t.Errorf("status mismatch: %s vs %s", replayed.Status, p2.Status)
	}
	if !replayed.TotalRefunded.Equal(p2.TotalRefunded) {
		t.Errorf("total refunded mismatch: %s vs %s", replayed.TotalRefunded, p2.TotalRefunded)
	}
	if replayed.Version() != p2.Version() {
		t.Errorf("version mismatch: %d vs %d", replayed.Version(), p2.Version())
	}
	if got := replayed.RefundList(); len(got) != 1 || got[0].Status != RefundCompleted {
		t.Errorf("refund list mismatch: %+v", got)
	}
}
