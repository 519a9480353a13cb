package entity

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// OrderStatus is the order lifecycle. Completed, Cancelled and Refunded are
// terminal; ProcessingEnrollment only exists inside a finalize transaction.
type OrderStatus string

const (
	OrderPendingPayment       OrderStatus = "pending_payment"
	OrderAwaitingRedirect     OrderStatus = "awaiting_gateway_redirect"
	OrderPaymentFailed        OrderStatus = "payment_failed"
	OrderProcessingEnrollment OrderStatus = "processing_enrollment"
	OrderCompleted            OrderStatus = "completed"
	OrderCancelled            OrderStatus = "cancelled"
	OrderRefundPending        OrderStatus = "refund_pending"
	OrderRefunded             OrderStatus = "refunded"
)

// Order is one payable unit. OrderID is the external-facing identity;
// ID is the internal key the rest of the schema references.
type Order struct {
	ID      int64
	OrderID uuid.UUID
	UserID  int64

	Subtotal       int64
	DiscountCodeID *int64
	DiscountAmount int64
	Total          int64

	Status           OrderStatus
	GatewayAuthority string
	GatewayTxnID     string

	CreatedAt time.Time
	PaidAt    *time.Time
}

// OrderItem snapshots one purchased item. Description and Price are frozen
// at order-creation time; item prices may change later.
type OrderItem struct {
	ID          int64
	OrderID     int64
	Ref         ItemRef
	Description string
	Price       int64
}

// NewOrder builds a pending order with a fresh external ID.
func NewOrder(userID, subtotal int64, codeID *int64, discount int64) *Order {
	return &Order{
		OrderID:        uuid.New(),
		UserID:         userID,
		Subtotal:       subtotal,
		DiscountCodeID: codeID,
		DiscountAmount: discount,
		Total:          subtotal - discount,
		Status:         OrderPendingPayment,
	}
}

// Terminal reports whether the order can never change state again.
func (o *Order) Terminal() bool {
	switch o.Status {
	case OrderCompleted, OrderCancelled, OrderRefunded:
		return true
	}
	return false
}

// Payable reports whether payment may be (re-)initiated.
func (o *Order) Payable() bool {
	return o.Status == OrderPendingPayment || o.Status == OrderPaymentFailed
}

// AwaitRedirect records the gateway authority after a successful
// create-payment call. Only pending or previously failed orders can move to
// the gateway.
func (o *Order) AwaitRedirect(authority string) error {
	if !o.Payable() {
		return fmt.Errorf("order %s: cannot initiate payment in status %q", o.OrderID, o.Status)
	}
	o.GatewayAuthority = authority
	o.Status = OrderAwaitingRedirect
	return nil
}

// EnterBatch moves a payable order to the gateway as a batch member. The
// authority lives on the batch, never on the member, so that callback
// resolution has a single owner per authority.
func (o *Order) EnterBatch() error {
	if !o.Payable() {
		return fmt.Errorf("order %s: cannot join a batch in status %q", o.OrderID, o.Status)
	}
	o.Status = OrderAwaitingRedirect
	return nil
}

// FailPayment marks the payment attempt failed. Distinct from Cancel:
// reservations stay in place so the user can retry.
func (o *Order) FailPayment() error {
	switch o.Status {
	case OrderPendingPayment, OrderAwaitingRedirect, OrderPaymentFailed:
		o.Status = OrderPaymentFailed
		return nil
	}
	return fmt.Errorf("order %s: cannot fail payment in status %q", o.OrderID, o.Status)
}

// Cancel is only possible before the gateway has confirmed anything.
func (o *Order) Cancel() error {
	if !o.Payable() {
		return fmt.Errorf("order %s: cannot cancel in status %q", o.OrderID, o.Status)
	}
	o.Status = OrderCancelled
	return nil
}

// Complete transitions a paid order to its terminal success state, stamping
// the gateway reference and payment time. Callers guard idempotency by
// short-circuiting on an already-completed order before invoking this.
func (o *Order) Complete(txnID string, paidAt time.Time) error {
	switch o.Status {
	case OrderPendingPayment, OrderAwaitingRedirect, OrderPaymentFailed, OrderProcessingEnrollment:
	default:
		return fmt.Errorf("order %s: cannot complete in status %q", o.OrderID, o.Status)
	}
	o.Status = OrderCompleted
	o.GatewayTxnID = txnID
	o.PaidAt = &paidAt
	return nil
}
