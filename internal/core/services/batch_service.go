package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/sharifevents/shop-service/internal/core/domain/entity"
	"github.com/sharifevents/shop-service/internal/core/ports"
)

// BatchService pays several pending orders through one gateway session. The
// batch owns the gateway authority; member orders only track their own
// status.
type BatchService struct {
	store   ports.Store
	gateway ports.Gateway
	now     func() time.Time
}

func NewBatchService(store ports.Store, gateway ports.Gateway) *BatchService {
	return &BatchService{store: store, gateway: gateway, now: time.Now}
}

// Initiate builds a batch over the given orders and opens a gateway session
// for the summed total. Every order must belong to the caller and be payable;
// a batch is all-or-nothing at creation.
func (s *BatchService) Initiate(ctx context.Context, user ports.User, orderIDs []uuid.UUID) (*entity.PaymentBatch, *ports.PaymentSession, error) {
	if len(orderIDs) == 0 {
		return nil, nil, ErrNoPayableItems
	}

	var (
		members []*entity.Order
		total   int64
	)
	seen := make(map[uuid.UUID]bool, len(orderIDs))
	for _, id := range orderIDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		o, err := s.store.Orders().ByOrderID(ctx, user.ID, id)
		if err != nil {
			return nil, nil, err
		}
		if !o.Payable() {
			return nil, nil, ErrNotEligible
		}
		active, err := s.store.Batches().FindActiveForOrder(ctx, o.ID)
		if err != nil {
			return nil, nil, err
		}
		if active != nil {
			return nil, nil, ErrOrderInBatch
		}
		members = append(members, o)
		total += o.Total
	}
	if total <= 0 {
		return nil, nil, ErrNoPayableItems
	}

	// Same double-pay guard as single-order initiation, across every member.
	for _, o := range members {
		items, err := s.store.Orders().Items(ctx, o.ID)
		if err != nil {
			return nil, nil, err
		}
		for _, oi := range items {
			owned, err := s.store.Catalog().Owned(ctx, user.ID, oi.Ref)
			if err != nil {
				return nil, nil, err
			}
			if owned {
				return nil, nil, ErrAlreadyOwned
			}
		}
	}

	batch := entity.NewPaymentBatch(user.ID, total)
	memberIDs := make([]int64, 0, len(members))
	for _, o := range members {
		memberIDs = append(memberIDs, o.ID)
	}
	// Members are claimed before the gateway call: once an authority is
	// issued, no member can be cancelled or re-ordered out from under it,
	// so the session stays matchable by callback and sweep.
	err := s.store.InTx(ctx, func(tx ports.Repos) error {
		if err := tx.Batches().Create(ctx, batch, memberIDs); err != nil {
			return err
		}
		for _, id := range memberIDs {
			o, err := tx.Orders().GetForUpdate(ctx, id)
			if err != nil {
				return err
			}
			if err := o.EnterBatch(); err != nil {
				return ErrNotEligible
			}
			if err := tx.Orders().Update(ctx, o); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	// Gateway call runs with no locks held. The batch row records the
	// outcome afterwards either way.
	session, gwErr := s.gateway.CreatePayment(ctx, ports.PaymentRequest{
		Amount:      total,
		Email:       user.Email,
		Mobile:      user.Phone,
		ReferenceID: batch.BatchID.String(),
	})

	err = s.store.InTx(ctx, func(tx ports.Repos) error {
		b, err := tx.Batches().GetForUpdate(ctx, batch.ID)
		if err != nil {
			return err
		}
		if gwErr != nil {
			if err := b.FailPayment(); err != nil {
				return err
			}
			if err := tx.Batches().Update(ctx, b); err != nil {
				return err
			}
			return failBatchMembers(ctx, tx, memberIDs)
		}
		if err := b.AwaitRedirect(session.Authority); err != nil {
			return err
		}
		if err := tx.Batches().Update(ctx, b); err != nil {
			return err
		}
		batch = b
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	if gwErr != nil {
		slog.ErrorContext(ctx, "batch payment initiation failed",
			"batch_id", batch.BatchID, "orders", len(memberIDs), "error", gwErr)
		return nil, nil, gwErr
	}

	slog.InfoContext(ctx, "batch payment initiated", "batch_id", batch.BatchID,
		"orders", len(memberIDs), "total", total, "authority", session.Authority)
	return batch, session, nil
}

// failBatchMembers pushes every member back to payment_failed so the user can
// retry individually or in a new batch. Reservations are untouched.
func failBatchMembers(ctx context.Context, tx ports.Repos, memberIDs []int64) error {
	for _, id := range memberIDs {
		o, err := tx.Orders().GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := o.FailPayment(); err != nil {
			return err
		}
		if err := tx.Orders().Update(ctx, o); err != nil {
			return err
		}
	}
	return nil
}
