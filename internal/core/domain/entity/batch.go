package entity

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// BatchStatus mirrors the order lifecycle for a group of orders paid through
// one gateway transaction. Verified is the intermediate state between a
// successful gateway verify and the last member order finalizing, so an
// interrupted fan-out can be resumed.
type BatchStatus string

const (
	BatchPending          BatchStatus = "pending"
	BatchAwaitingRedirect BatchStatus = "awaiting_gateway_redirect"
	BatchPaymentFailed    BatchStatus = "payment_failed"
	BatchVerified         BatchStatus = "verified"
	BatchCompleted        BatchStatus = "completed"
)

// PaymentBatch groups member orders under a single authority. Total is the
// sum of the member totals at creation time.
type PaymentBatch struct {
	ID      int64
	BatchID uuid.UUID
	UserID  int64
	Total   int64

	Status           BatchStatus
	GatewayAuthority string
	GatewayTxnID     string

	CreatedAt time.Time
	PaidAt    *time.Time
}

// NewPaymentBatch builds a pending batch for one user.
func NewPaymentBatch(userID, total int64) *PaymentBatch {
	return &PaymentBatch{
		BatchID: uuid.New(),
		UserID:  userID,
		Total:   total,
		Status:  BatchPending,
	}
}

// AwaitRedirect records the gateway authority after create-payment succeeds.
func (b *PaymentBatch) AwaitRedirect(authority string) error {
	if b.Status != BatchPending {
		return fmt.Errorf("batch %s: cannot initiate payment in status %q", b.BatchID, b.Status)
	}
	b.GatewayAuthority = authority
	b.Status = BatchAwaitingRedirect
	return nil
}

// FailPayment marks the batch attempt failed.
func (b *PaymentBatch) FailPayment() error {
	switch b.Status {
	case BatchPending, BatchAwaitingRedirect, BatchPaymentFailed:
		b.Status = BatchPaymentFailed
		return nil
	}
	return fmt.Errorf("batch %s: cannot fail payment in status %q", b.BatchID, b.Status)
}

// MarkVerified records a successful gateway verification before the member
// orders fan out. Re-verifying an already-verified batch is a no-op so an
// interrupted fan-out can resume.
func (b *PaymentBatch) MarkVerified(txnID string, paidAt time.Time) error {
	switch b.Status {
	case BatchAwaitingRedirect, BatchPaymentFailed:
		b.GatewayTxnID = txnID
		b.PaidAt = &paidAt
		b.Status = BatchVerified
		return nil
	case BatchVerified:
		return nil
	}
	return fmt.Errorf("batch %s: cannot verify in status %q", b.BatchID, b.Status)
}

// Complete closes the batch after every member order has finalized.
func (b *PaymentBatch) Complete() error {
	if b.Status != BatchVerified {
		return fmt.Errorf("batch %s: cannot complete in status %q", b.BatchID, b.Status)
	}
	b.Status = BatchCompleted
	return nil
}
