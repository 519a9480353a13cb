package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/sharifevents/shop-service/internal/core/domain/entity"
	"github.com/sharifevents/shop-service/internal/core/ports"
)

// CheckoutService converts carts into orders, drives single-order payment
// initiation, and owns the shared finalize/release primitives used by the
// batch coordinator and the reconciliation handler.
type CheckoutService struct {
	store   ports.Store
	gateway ports.Gateway
	mailer  ports.Mailer // nil-safe: completion mail skipped if nil
	now     func() time.Time
}

func NewCheckoutService(store ports.Store, gateway ports.Gateway, mailer ports.Mailer) *CheckoutService {
	return &CheckoutService{store: store, gateway: gateway, mailer: mailer, now: time.Now}
}

// Checkout converts the cart into one order. Items already reserved by an
// earlier unpaid order stay on that order and are skipped here, so a user
// can check out, add more items and check out again, then pay the resulting
// orders in one batch. A zero-total cart is fulfilled immediately inside
// the same transaction with no gateway involvement; a nonzero cart leaves a
// pending order with the included items reserved against it.
func (s *CheckoutService) Checkout(ctx context.Context, user ports.User) (*entity.Order, error) {
	var order *entity.Order
	err := s.store.InTx(ctx, func(tx ports.Repos) error {
		cart, err := tx.Carts().GetOrCreate(ctx, user.ID)
		if err != nil {
			return err
		}

		// Row locks on the cart items prevent a concurrent checkout or
		// removal from double-reserving.
		allItems, err := tx.Carts().ItemsForUpdate(ctx, cart.ID, nil)
		if err != nil {
			return err
		}
		if len(allItems) == 0 {
			return ErrCartEmpty
		}

		cartItems := make([]entity.CartItem, 0, len(allItems))
		for _, ci := range allItems {
			if ci.Status != entity.CartItemReserved {
				cartItems = append(cartItems, ci)
			}
		}
		if len(cartItems) == 0 {
			return ErrAlreadyReserved
		}

		resolved := make([]entity.Item, 0, len(cartItems))
		for _, ci := range cartItems {
			it, err := tx.Catalog().Resolve(ctx, ci.Ref)
			if err != nil {
				return err
			}
			if !it.Available {
				return ErrItemUnavailable
			}
			resolved = append(resolved, *it)
		}

		var code *entity.DiscountCode
		if cart.DiscountCodeID != nil {
			if code, err = tx.Discounts().Get(ctx, *cart.DiscountCodeID); err != nil {
				return err
			}
		}
		subtotal, discount, total := entity.CartTotals(resolved, code, s.now())

		var codeID *int64
		if code != nil && discount > 0 {
			codeID = &code.ID
		}
		order = entity.NewOrder(user.ID, subtotal, codeID, discount)
		if err := tx.Orders().Create(ctx, order); err != nil {
			return err
		}

		for i, ci := range cartItems {
			oi := &entity.OrderItem{
				OrderID:     order.ID,
				Ref:         ci.Ref,
				Description: resolved[i].Description,
				Price:       resolved[i].Price(),
			}
			if err := tx.Orders().CreateItem(ctx, oi); err != nil {
				return err
			}

			if err := ci.Reserve(order.OrderID, oi.ID); err != nil {
				return err
			}
			if err := tx.Carts().UpdateItem(ctx, &ci); err != nil {
				return err
			}
			if ci.Ref.Kind == entity.KindCompetitionTeam {
				if err := tx.Catalog().SetTeamStatus(ctx, ci.Ref.ID, entity.TeamAwaitingPaymentConfirm); err != nil {
					return err
				}
			}
		}

		cart.DiscountCodeID = nil
		if err := tx.Carts().SetDiscount(ctx, cart.ID, nil); err != nil {
			return err
		}

		if total == 0 {
			return finalizeOrder(ctx, tx, order.ID, "", s.now())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Re-read: the zero-total path mutated the order inside the transaction.
	order, err = s.store.Orders().ByOrderID(ctx, user.ID, order.OrderID)
	if err != nil {
		return nil, err
	}
	if order.Status == entity.OrderCompleted {
		s.notifyCompleted(ctx, user, order)
	}
	slog.InfoContext(ctx, "checkout complete", "user_id", user.ID,
		"order_id", order.OrderID, "total", order.Total, "status", order.Status)
	return order, nil
}

// PartialCheckout creates one order per selected payable cart item. Reserved
// and free items are skipped; an empty remainder is an error.
func (s *CheckoutService) PartialCheckout(ctx context.Context, user ports.User, cartItemIDs []int64) ([]*entity.Order, error) {
	if len(cartItemIDs) == 0 {
		return nil, ErrNoPayableItems
	}

	var orders []*entity.Order
	err := s.store.InTx(ctx, func(tx ports.Repos) error {
		cart, err := tx.Carts().GetOrCreate(ctx, user.ID)
		if err != nil {
			return err
		}
		cartItems, err := tx.Carts().ItemsForUpdate(ctx, cart.ID, cartItemIDs)
		if err != nil {
			return err
		}
		if len(cartItems) == 0 {
			return ports.ErrNotFound
		}

		var code *entity.DiscountCode
		if cart.DiscountCodeID != nil {
			if code, err = tx.Discounts().Get(ctx, *cart.DiscountCodeID); err != nil {
				return err
			}
		}

		for _, ci := range cartItems {
			if ci.Status == entity.CartItemReserved {
				continue
			}
			it, err := tx.Catalog().Resolve(ctx, ci.Ref)
			if err != nil {
				return err
			}
			if !it.Available {
				return ErrItemUnavailable
			}
			price := it.Price()
			if price == 0 {
				continue
			}

			var discount int64
			var codeID *int64
			if code != nil && code.Valid(s.now(), price) {
				if code.Target == nil || *code.Target == ci.Ref {
					discount = code.Discount(price)
					if discount > 0 {
						codeID = &code.ID
					}
				}
			}

			order := entity.NewOrder(user.ID, price, codeID, discount)
			if err := tx.Orders().Create(ctx, order); err != nil {
				return err
			}
			oi := &entity.OrderItem{
				OrderID:     order.ID,
				Ref:         ci.Ref,
				Description: it.Description,
				Price:       price,
			}
			if err := tx.Orders().CreateItem(ctx, oi); err != nil {
				return err
			}
			if err := ci.Reserve(order.OrderID, oi.ID); err != nil {
				return err
			}
			if err := tx.Carts().UpdateItem(ctx, &ci); err != nil {
				return err
			}
			if ci.Ref.Kind == entity.KindCompetitionTeam {
				if err := tx.Catalog().SetTeamStatus(ctx, ci.Ref.ID, entity.TeamAwaitingPaymentConfirm); err != nil {
					return err
				}
			}
			orders = append(orders, order)
		}

		if len(orders) == 0 {
			return ErrNoPayableItems
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	slog.InfoContext(ctx, "partial checkout complete", "user_id", user.ID, "orders", len(orders))
	return orders, nil
}

// Cancel aborts a pending or failed order, releasing its reservations. An
// order attached to an in-flight or paid batch must go through the batch
// flow instead.
func (s *CheckoutService) Cancel(ctx context.Context, user ports.User, orderID uuid.UUID) (*entity.Order, error) {
	var order *entity.Order
	err := s.store.InTx(ctx, func(tx ports.Repos) error {
		o, err := tx.Orders().ByOrderID(ctx, user.ID, orderID)
		if err != nil {
			return err
		}
		o, err = tx.Orders().GetForUpdate(ctx, o.ID)
		if err != nil {
			return err
		}
		batch, err := tx.Batches().FindActiveForOrder(ctx, o.ID)
		if err != nil {
			return err
		}
		if batch != nil {
			return ErrOrderInBatch
		}
		if !o.Payable() {
			return ErrNotCancellable
		}

		if err := o.Cancel(); err != nil {
			return ErrNotCancellable
		}
		if err := tx.Orders().Update(ctx, o); err != nil {
			return err
		}
		order = o
		return releaseReservations(ctx, tx, o.ID)
	})
	if err != nil {
		return nil, err
	}
	slog.InfoContext(ctx, "order cancelled", "user_id", user.ID, "order_id", order.OrderID)
	return order, nil
}

// InitiatePayment opens a gateway session for one order. The gateway call
// runs outside any transaction; the resulting transition is applied in a
// separate transaction afterwards.
func (s *CheckoutService) InitiatePayment(ctx context.Context, user ports.User, orderID uuid.UUID) (*ports.PaymentSession, error) {
	order, err := s.store.Orders().ByOrderID(ctx, user.ID, orderID)
	if err != nil {
		return nil, err
	}
	if !order.Payable() || order.Total <= 0 {
		return nil, ErrNotPayable
	}

	if err := s.guardOrderItems(ctx, s.store, order); err != nil {
		if errors.Is(err, ErrItemUnavailable) {
			// Stale line items: the order can never be paid, so retire it.
			if cancelErr := s.cancelStaleOrder(ctx, order.ID); cancelErr != nil {
				return nil, cancelErr
			}
		}
		return nil, err
	}

	session, gwErr := s.gateway.CreatePayment(ctx, ports.PaymentRequest{
		Amount:      order.Total,
		Email:       user.Email,
		Mobile:      user.Phone,
		ReferenceID: order.OrderID.String(),
	})

	err = s.store.InTx(ctx, func(tx ports.Repos) error {
		o, err := tx.Orders().GetForUpdate(ctx, order.ID)
		if err != nil {
			return err
		}
		if gwErr != nil {
			if err := o.FailPayment(); err != nil {
				return err
			}
			return tx.Orders().Update(ctx, o)
		}
		if err := o.AwaitRedirect(session.Authority); err != nil {
			return ErrNotPayable
		}
		return tx.Orders().Update(ctx, o)
	})
	if err != nil {
		return nil, err
	}
	if gwErr != nil {
		slog.ErrorContext(ctx, "payment initiation failed", "order_id", order.OrderID, "error", gwErr)
		return nil, gwErr
	}
	slog.InfoContext(ctx, "payment initiated", "order_id", order.OrderID, "authority", session.Authority)
	return session, nil
}

// Orders returns the user's order history, newest first.
func (s *CheckoutService) Orders(ctx context.Context, user ports.User) ([]entity.Order, error) {
	return s.store.Orders().ListByUser(ctx, user.ID)
}

// Order returns one order with its line items.
func (s *CheckoutService) Order(ctx context.Context, user ports.User, orderID uuid.UUID) (*entity.Order, []entity.OrderItem, error) {
	o, err := s.store.Orders().ByOrderID(ctx, user.ID, orderID)
	if err != nil {
		return nil, nil, err
	}
	items, err := s.store.Orders().Items(ctx, o.ID)
	if err != nil {
		return nil, nil, err
	}
	return o, items, nil
}

// guardOrderItems rejects payment when any line item is already fulfilled
// through another path, or is no longer available.
func (s *CheckoutService) guardOrderItems(ctx context.Context, repos ports.Repos, order *entity.Order) error {
	items, err := repos.Orders().Items(ctx, order.ID)
	if err != nil {
		return err
	}
	for _, oi := range items {
		it, err := repos.Catalog().Resolve(ctx, oi.Ref)
		if err != nil {
			return err
		}
		if !it.Available {
			return ErrItemUnavailable
		}
		owned, err := repos.Catalog().Owned(ctx, order.UserID, oi.Ref)
		if err != nil {
			return err
		}
		if owned {
			return ErrAlreadyOwned
		}
	}
	return nil
}

func (s *CheckoutService) cancelStaleOrder(ctx context.Context, id int64) error {
	return s.store.InTx(ctx, func(tx ports.Repos) error {
		o, err := tx.Orders().GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := o.Cancel(); err != nil {
			return nil // already moved on; leave it alone
		}
		if err := tx.Orders().Update(ctx, o); err != nil {
			return err
		}
		return releaseReservations(ctx, tx, o.ID)
	})
}

// finalizeOrder is the idempotent success transition: fulfill every line
// item, complete the order, count the discount redemption once, and turn
// the reserved cart items into purchases. Must run inside a transaction
// with the order row locked by the caller or re-locked here.
func finalizeOrder(ctx context.Context, tx ports.Repos, id int64, txnID string, paidAt time.Time) error {
	o, err := tx.Orders().GetForUpdate(ctx, id)
	if err != nil {
		return err
	}
	if o.Status == entity.OrderCompleted {
		return nil // duplicate callback or resumed batch fan-out
	}

	items, err := tx.Orders().Items(ctx, o.ID)
	if err != nil {
		return err
	}
	for _, oi := range items {
		if err := dispatchFulfillment(ctx, tx, o.UserID, oi.Ref); err != nil {
			return fmt.Errorf("fulfill %s: %w", oi.Ref, err)
		}
	}

	if err := o.Complete(txnID, paidAt); err != nil {
		return err
	}
	if err := tx.Orders().Update(ctx, o); err != nil {
		return err
	}

	if o.DiscountCodeID != nil {
		fresh, err := tx.Discounts().Redeem(ctx, *o.DiscountCodeID, o.UserID, o.ID)
		if err != nil {
			return err
		}
		if fresh {
			if err := tx.Discounts().IncrementUsage(ctx, *o.DiscountCodeID); err != nil {
				return err
			}
		}
	}

	return tx.Carts().DeleteItemsReservedBy(ctx, o.ID)
}

func (s *CheckoutService) notifyCompleted(ctx context.Context, user ports.User, order *entity.Order) {
	if s.mailer == nil || user.Email == "" {
		return
	}
	subject := fmt.Sprintf("Order %s confirmed", order.OrderID)
	body := fmt.Sprintf("Your order %s for %d Toman is confirmed.", order.OrderID, order.Total)
	go func() {
		// Detached from the request; mail failures never affect the order.
		sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 15*time.Second)
		defer cancel()
		if err := s.mailer.Send(sendCtx, subject, []string{user.Email}, body, ""); err != nil {
			slog.ErrorContext(sendCtx, "completion mail failed", "order_id", order.OrderID, "error", err)
		}
	}()
}

// dispatchFulfillment applies the per-kind side effect of a paid line item.
func dispatchFulfillment(ctx context.Context, tx ports.Repos, userID int64, ref entity.ItemRef) error {
	switch ref.Kind {
	case entity.KindPresentation:
		return tx.Fulfillment().Enroll(ctx, userID, ref.ID)
	case entity.KindSoloCompetition:
		return tx.Fulfillment().Register(ctx, userID, ref.ID)
	case entity.KindCompetitionTeam:
		return tx.Fulfillment().ActivateTeam(ctx, ref.ID)
	}
	return fmt.Errorf("no fulfillment for kind %q", ref.Kind)
}

// releaseReservations reverts every cart item reserved by the order to
// owned, and moves any team still awaiting payment back out of the flow.
func releaseReservations(ctx context.Context, tx ports.Repos, orderID int64) error {
	reserved, err := tx.Carts().ItemsReservedBy(ctx, orderID)
	if err != nil {
		return err
	}
	for _, ci := range reserved {
		if ci.Ref.Kind == entity.KindCompetitionTeam {
			it, err := tx.Catalog().Resolve(ctx, ci.Ref)
			if err != nil {
				return err
			}
			if it.TeamStatus == entity.TeamAwaitingPaymentConfirm {
				next := entity.ReleasedTeamStatus(it.RequiresApproval)
				if err := tx.Catalog().SetTeamStatus(ctx, ci.Ref.ID, next); err != nil {
					return err
				}
			}
		}
		if err := ci.Release(); err != nil {
			return err
		}
		if err := tx.Carts().UpdateItem(ctx, &ci); err != nil {
			return err
		}
	}
	return nil
}
