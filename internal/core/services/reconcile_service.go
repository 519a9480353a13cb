package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/sharifevents/shop-service/internal/core/domain/entity"
	"github.com/sharifevents/shop-service/internal/core/ports"
)

// RedirectConfig is where the gateway callback sends the user's browser
// after reconciliation. Reasons are appended as query parameters.
type RedirectConfig struct {
	BaseURL     string
	SuccessPath string
	FailurePath string
}

// ReconcileService settles payments after the gateway round-trip: the
// browser callback and the unverified sweep both land here. An authority is
// resolved batch-first, because batch members never carry their own
// authority.
type ReconcileService struct {
	store   ports.Store
	gateway ports.Gateway
	mailer  ports.Mailer        // nil-safe
	users   ports.UserDirectory // nil-safe
	urls    RedirectConfig
	now     func() time.Time
}

func NewReconcileService(store ports.Store, gateway ports.Gateway, mailer ports.Mailer, users ports.UserDirectory, urls RedirectConfig) *ReconcileService {
	return &ReconcileService{store: store, gateway: gateway, mailer: mailer, users: users, urls: urls, now: time.Now}
}

// HandleCallback processes the gateway's browser return and yields the URL
// to redirect the user to. It never returns an error: every outcome,
// including internal failures, maps to a redirect so the browser is not left
// hanging on a 500.
func (s *ReconcileService) HandleCallback(ctx context.Context, authority string, ok bool) string {
	if authority == "" {
		return s.failureURL("invalid_callback_params")
	}

	batch, err := s.store.Batches().FindByAuthority(ctx, authority)
	if err != nil {
		slog.ErrorContext(ctx, "callback batch lookup failed", "authority", authority, "error", err)
		return s.failureURL("internal_error")
	}
	if batch != nil {
		return s.reconcileBatchCallback(ctx, batch, ok)
	}

	order, err := s.store.Orders().FindByAuthority(ctx, authority)
	if err != nil {
		slog.ErrorContext(ctx, "callback order lookup failed", "authority", authority, "error", err)
		return s.failureURL("internal_error")
	}
	if order == nil {
		return s.failureURL("order_not_found")
	}
	return s.reconcileOrderCallback(ctx, order, ok)
}

func (s *ReconcileService) reconcileOrderCallback(ctx context.Context, order *entity.Order, ok bool) string {
	// A duplicate callback for an already-settled order is a success, not an
	// error. The first callback already did the work.
	if order.Status == entity.OrderCompleted {
		return s.successURL(order.OrderID.String())
	}
	if order.Status != entity.OrderAwaitingRedirect && order.Status != entity.OrderPaymentFailed {
		return s.failureURL("invalid_order_state")
	}

	if !ok {
		if err := s.failOrder(ctx, order.ID); err != nil {
			slog.ErrorContext(ctx, "mark order failed", "order_id", order.OrderID, "error", err)
			return s.failureURL("internal_error")
		}
		return s.failureURL("user_cancelled_or_gateway_nok")
	}

	txnID, err := s.gateway.VerifyPayment(ctx, order.GatewayAuthority, order.Total)
	if err != nil {
		return s.failureURL(s.classifyVerifyFailure(ctx, err, func() error {
			return s.failOrder(ctx, order.ID)
		}, "order", order.OrderID.String()))
	}

	paidAt := s.now()
	err = s.store.InTx(ctx, func(tx ports.Repos) error {
		return finalizeOrder(ctx, tx, order.ID, txnID, paidAt)
	})
	if err != nil {
		slog.ErrorContext(ctx, "order finalize failed", "order_id", order.OrderID, "error", err)
		return s.failureURL("internal_error")
	}
	s.notifyPaid(ctx, order.UserID, order.OrderID.String(), order.Total)
	slog.InfoContext(ctx, "order payment verified", "order_id", order.OrderID, "txn_id", txnID)
	return s.successURL(order.OrderID.String())
}

func (s *ReconcileService) reconcileBatchCallback(ctx context.Context, batch *entity.PaymentBatch, ok bool) string {
	if batch.Status == entity.BatchCompleted {
		return s.successURL(batch.BatchID.String())
	}
	switch batch.Status {
	case entity.BatchAwaitingRedirect, entity.BatchPaymentFailed, entity.BatchVerified:
	default:
		return s.failureURL("invalid_batch_state")
	}

	// A verified batch means a previous fan-out was interrupted after the
	// gateway confirmed payment; skip re-verification and resume.
	if batch.Status == entity.BatchVerified {
		if err := s.finalizeBatch(ctx, batch.ID, batch.GatewayTxnID, s.now()); err != nil {
			slog.ErrorContext(ctx, "batch finalize resume failed", "batch_id", batch.BatchID, "error", err)
			return s.failureURL("internal_error")
		}
		return s.successURL(batch.BatchID.String())
	}

	if !ok {
		if err := s.failBatch(ctx, batch.ID); err != nil {
			slog.ErrorContext(ctx, "mark batch failed", "batch_id", batch.BatchID, "error", err)
			return s.failureURL("internal_error")
		}
		return s.failureURL("user_cancelled_or_gateway_nok")
	}

	txnID, err := s.gateway.VerifyPayment(ctx, batch.GatewayAuthority, batch.Total)
	if err != nil {
		return s.failureURL(s.classifyVerifyFailure(ctx, err, func() error {
			return s.failBatch(ctx, batch.ID)
		}, "batch", batch.BatchID.String()))
	}

	if err := s.finalizeBatch(ctx, batch.ID, txnID, s.now()); err != nil {
		slog.ErrorContext(ctx, "batch finalize failed", "batch_id", batch.BatchID, "error", err)
		return s.failureURL("internal_error")
	}
	s.notifyPaid(ctx, batch.UserID, batch.BatchID.String(), batch.Total)
	slog.InfoContext(ctx, "batch payment verified", "batch_id", batch.BatchID, "txn_id", txnID)
	return s.successURL(batch.BatchID.String())
}

// classifyVerifyFailure maps a verify error to a redirect reason. A provider
// rejection is final, so the row is marked failed; an unreachable provider
// leaves the row untouched for the sweep to settle.
func (s *ReconcileService) classifyVerifyFailure(ctx context.Context, err error, markFailed func() error, kind, id string) string {
	var unreachable *ports.GatewayUnreachableError
	if errors.As(err, &unreachable) {
		slog.WarnContext(ctx, "verify unreachable, leaving for sweep", "kind", kind, "id", id, "error", err)
		return "verify_unavailable"
	}
	slog.WarnContext(ctx, "gateway rejected verification", "kind", kind, "id", id, "error", err)
	if ferr := markFailed(); ferr != nil {
		slog.ErrorContext(ctx, "mark payment failed after verify rejection", "kind", kind, "id", id, "error", ferr)
		return "internal_error"
	}
	return "verify_failed"
}

func (s *ReconcileService) failOrder(ctx context.Context, id int64) error {
	return s.store.InTx(ctx, func(tx ports.Repos) error {
		o, err := tx.Orders().GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if o.Status == entity.OrderCompleted {
			return nil
		}
		if err := o.FailPayment(); err != nil {
			return err
		}
		return tx.Orders().Update(ctx, o)
	})
}

func (s *ReconcileService) failBatch(ctx context.Context, id int64) error {
	return s.store.InTx(ctx, func(tx ports.Repos) error {
		b, err := tx.Batches().GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if b.Status == entity.BatchCompleted || b.Status == entity.BatchVerified {
			return nil
		}
		if err := b.FailPayment(); err != nil {
			return err
		}
		if err := tx.Batches().Update(ctx, b); err != nil {
			return err
		}
		memberIDs, err := tx.Batches().MemberOrderIDs(ctx, b.ID)
		if err != nil {
			return err
		}
		return failBatchMembers(ctx, tx, memberIDs)
	})
}

// finalizeBatch marks the batch verified and fans out to every member order.
// Each step is idempotent, so an interrupted fan-out re-runs cleanly from
// the top on the next callback or sweep pass.
func (s *ReconcileService) finalizeBatch(ctx context.Context, id int64, txnID string, paidAt time.Time) error {
	return s.store.InTx(ctx, func(tx ports.Repos) error {
		b, err := tx.Batches().GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if b.Status == entity.BatchCompleted {
			return nil
		}
		if err := b.MarkVerified(txnID, paidAt); err != nil {
			return err
		}
		if err := tx.Batches().Update(ctx, b); err != nil {
			return err
		}

		memberIDs, err := tx.Batches().MemberOrderIDs(ctx, b.ID)
		if err != nil {
			return err
		}
		for _, orderID := range memberIDs {
			if err := finalizeOrder(ctx, tx, orderID, txnID, paidAt); err != nil {
				return fmt.Errorf("finalize member order %d: %w", orderID, err)
			}
		}

		if err := b.Complete(); err != nil {
			return err
		}
		return tx.Batches().Update(ctx, b)
	})
}

// SweepOnce settles payments the provider reports as paid but unverified:
// callbacks that never arrived, or finalizations that crashed mid-way.
func (s *ReconcileService) SweepOnce(ctx context.Context) error {
	authorities, err := s.gateway.ListUnverified(ctx)
	if err != nil {
		return fmt.Errorf("list unverified: %w", err)
	}
	if len(authorities) == 0 {
		return nil
	}
	slog.InfoContext(ctx, "sweeping unverified payments", "count", len(authorities))

	for _, authority := range authorities {
		if err := s.sweepAuthority(ctx, authority); err != nil {
			var unreachable *ports.GatewayUnreachableError
			if errors.As(err, &unreachable) {
				return err // provider down, the rest would fail too
			}
			slog.ErrorContext(ctx, "sweep authority failed", "authority", authority, "error", err)
		}
	}
	return nil
}

func (s *ReconcileService) sweepAuthority(ctx context.Context, authority string) error {
	batch, err := s.store.Batches().FindByAuthority(ctx, authority)
	if err != nil {
		return err
	}
	if batch != nil {
		if batch.Status == entity.BatchCompleted {
			return nil
		}
		txnID := batch.GatewayTxnID
		if batch.Status != entity.BatchVerified {
			if txnID, err = s.gateway.VerifyPayment(ctx, authority, batch.Total); err != nil {
				return err
			}
		}
		if err := s.finalizeBatch(ctx, batch.ID, txnID, s.now()); err != nil {
			return err
		}
		s.notifyPaid(ctx, batch.UserID, batch.BatchID.String(), batch.Total)
		slog.InfoContext(ctx, "swept batch", "batch_id", batch.BatchID)
		return nil
	}

	order, err := s.store.Orders().FindByAuthority(ctx, authority)
	if err != nil {
		return err
	}
	if order == nil {
		// Not ours: another deployment against the same merchant, or a row
		// purged since. Nothing to settle.
		slog.WarnContext(ctx, "unverified authority matches no order", "authority", authority)
		return nil
	}
	if order.Terminal() {
		return nil
	}

	txnID, err := s.gateway.VerifyPayment(ctx, authority, order.Total)
	if err != nil {
		return err
	}
	paidAt := s.now()
	err = s.store.InTx(ctx, func(tx ports.Repos) error {
		return finalizeOrder(ctx, tx, order.ID, txnID, paidAt)
	})
	if err != nil {
		return err
	}
	s.notifyPaid(ctx, order.UserID, order.OrderID.String(), order.Total)
	slog.InfoContext(ctx, "swept order", "order_id", order.OrderID)
	return nil
}

func (s *ReconcileService) notifyPaid(ctx context.Context, userID int64, ref string, total int64) {
	if s.mailer == nil || s.users == nil {
		return
	}
	user, err := s.users.Lookup(ctx, userID)
	if err != nil || user == nil || user.Email == "" {
		return
	}
	subject := fmt.Sprintf("Payment confirmed for %s", ref)
	body := fmt.Sprintf("Your payment of %d Toman for %s was confirmed.", total, ref)
	go func() {
		sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 15*time.Second)
		defer cancel()
		if err := s.mailer.Send(sendCtx, subject, []string{user.Email}, body, ""); err != nil {
			slog.ErrorContext(sendCtx, "payment mail failed", "ref", ref, "error", err)
		}
	}()
}

func (s *ReconcileService) successURL(ref string) string {
	return s.urls.BaseURL + s.urls.SuccessPath + "?ref=" + url.QueryEscape(ref)
}

func (s *ReconcileService) failureURL(reason string) string {
	return s.urls.BaseURL + s.urls.FailurePath + "?reason=" + url.QueryEscape(reason)
}
