package services_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sharifevents/shop-service/internal/core/domain/entity"
	"github.com/sharifevents/shop-service/internal/core/ports"
	"github.com/sharifevents/shop-service/internal/core/services"
)

func TestCheckoutReservesCartItems(t *testing.T) {
	f := newFixture()
	u := f.user(1)
	ctx := context.Background()
	refA := f.seedPresentation(10, 200)
	refB := f.seedCompetition(20, 300)

	_, err := f.cart.AddItem(ctx, u, refA)
	require.NoError(t, err)
	_, err = f.cart.AddItem(ctx, u, refB)
	require.NoError(t, err)

	order, err := f.checkout.Checkout(ctx, u)
	require.NoError(t, err)
	assert.Equal(t, entity.OrderPendingPayment, order.Status)
	assert.Equal(t, int64(500), order.Total)

	view, err := f.cart.Get(ctx, u)
	require.NoError(t, err)
	for _, iv := range view.Items {
		assert.Equal(t, entity.CartItemReserved, iv.CartItem.Status)
		require.NotNil(t, iv.CartItem.ReservedOrderID)
		assert.Equal(t, order.OrderID, *iv.CartItem.ReservedOrderID)
	}

	// Checkout order totals match what the cart displayed before.
	items, err := f.store.Orders().Items(ctx, order.ID)
	require.NoError(t, err)
	assert.Len(t, items, 2)
}

func TestCheckoutEmptyCart(t *testing.T) {
	f := newFixture()
	u := f.user(1)

	_, err := f.checkout.Checkout(context.Background(), u)
	assert.ErrorIs(t, err, services.ErrCartEmpty)
}

func TestCheckoutTwiceIsRefused(t *testing.T) {
	f := newFixture()
	u := f.user(1)
	ref := f.seedPresentation(10, 200)

	f.addAndCheckout(t, u, ref)

	_, err := f.checkout.Checkout(context.Background(), u)
	assert.ErrorIs(t, err, services.ErrAlreadyReserved)
}

func TestCheckoutSkipsReservedItems(t *testing.T) {
	f := newFixture()
	u := f.user(1)
	ctx := context.Background()
	refA := f.seedPresentation(10, 200)
	refB := f.seedCompetition(20, 300)

	first := f.addAndCheckout(t, u, refA)

	// The second checkout must leave the earlier reservation alone and
	// order only the newly added item.
	second := f.addAndCheckout(t, u, refB)
	assert.NotEqual(t, first.OrderID, second.OrderID)
	assert.Equal(t, int64(300), second.Total)

	items, err := f.store.Orders().Items(ctx, second.ID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, refB, items[0].Ref)

	view, err := f.cart.Get(ctx, u)
	require.NoError(t, err)
	require.Len(t, view.Items, 2)
	for _, iv := range view.Items {
		require.NotNil(t, iv.CartItem.ReservedOrderID)
		switch iv.CartItem.Ref {
		case refA:
			assert.Equal(t, first.OrderID, *iv.CartItem.ReservedOrderID)
		case refB:
			assert.Equal(t, second.OrderID, *iv.CartItem.ReservedOrderID)
		}
	}
}

func TestCheckoutZeroTotalFinalizesImmediately(t *testing.T) {
	f := newFixture()
	u := f.user(1)
	ctx := context.Background()
	ref := f.seedPresentation(10, 200)
	f.store.SeedDiscount(entity.DiscountCode{Code: "FREE", Active: true, Percent: 100})

	_, err := f.cart.AddItem(ctx, u, ref)
	require.NoError(t, err)
	_, err = f.cart.ApplyDiscount(ctx, u, "FREE")
	require.NoError(t, err)

	order, err := f.checkout.Checkout(ctx, u)
	require.NoError(t, err)
	assert.Equal(t, entity.OrderCompleted, order.Status)
	assert.Equal(t, int64(0), order.Total)
	assert.NotNil(t, order.PaidAt)
	assert.True(t, f.store.Enrolled(u.ID, ref))
	assert.Empty(t, f.gateway.Requests)

	view, err := f.cart.Get(ctx, u)
	require.NoError(t, err)
	assert.Empty(t, view.Items)
}

func TestPartialCheckoutCreatesOneOrderPerItem(t *testing.T) {
	f := newFixture()
	u := f.user(1)
	ctx := context.Background()
	refA := f.seedPresentation(10, 200)
	refB := f.seedCompetition(20, 300)

	_, err := f.cart.AddItem(ctx, u, refA)
	require.NoError(t, err)
	view, err := f.cart.AddItem(ctx, u, refB)
	require.NoError(t, err)

	ids := []int64{view.Items[0].CartItem.ID, view.Items[1].CartItem.ID}
	orders, err := f.checkout.PartialCheckout(ctx, u, ids)
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, int64(200), orders[0].Total)
	assert.Equal(t, int64(300), orders[1].Total)
	for _, o := range orders {
		assert.Equal(t, entity.OrderPendingPayment, o.Status)
	}
}

func TestPartialCheckoutAppliesTargetedDiscountPerItem(t *testing.T) {
	f := newFixture()
	u := f.user(1)
	ctx := context.Background()
	refA := f.seedPresentation(10, 200)
	refB := f.seedCompetition(20, 300)
	f.store.SeedDiscount(entity.DiscountCode{
		Code: "WS10", Active: true, Percent: 10,
		Target: &entity.ItemRef{Kind: entity.KindPresentation, ID: 10},
	})

	_, err := f.cart.AddItem(ctx, u, refA)
	require.NoError(t, err)
	view, err := f.cart.AddItem(ctx, u, refB)
	require.NoError(t, err)
	_, err = f.cart.ApplyDiscount(ctx, u, "WS10")
	require.NoError(t, err)

	ids := []int64{view.Items[0].CartItem.ID, view.Items[1].CartItem.ID}
	orders, err := f.checkout.PartialCheckout(ctx, u, ids)
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, int64(180), orders[0].Total)
	assert.Equal(t, int64(300), orders[1].Total)
}

func TestPartialCheckoutUnknownIDs(t *testing.T) {
	f := newFixture()
	u := f.user(1)

	_, err := f.checkout.PartialCheckout(context.Background(), u, []int64{999})
	assert.ErrorIs(t, err, ports.ErrNotFound)
}

func TestCancelReleasesReservations(t *testing.T) {
	f := newFixture()
	u := f.user(1)
	ctx := context.Background()
	ref := f.seedPresentation(10, 200)

	order := f.addAndCheckout(t, u, ref)

	cancelled, err := f.checkout.Cancel(ctx, u, order.OrderID)
	require.NoError(t, err)
	assert.Equal(t, entity.OrderCancelled, cancelled.Status)

	view, err := f.cart.Get(ctx, u)
	require.NoError(t, err)
	require.Len(t, view.Items, 1)
	assert.Equal(t, entity.CartItemOwned, view.Items[0].CartItem.Status)
}

func TestCancelReleasesTeamStatus(t *testing.T) {
	f := newFixture()
	leader := f.user(1)
	ctx := context.Background()
	ref := f.seedTeam(30, 400, leader.ID, true, entity.TeamApprovedAwaitingPayment)

	order := f.addAndCheckout(t, leader, ref)

	it, err := f.store.Catalog().Resolve(ctx, ref)
	require.NoError(t, err)
	require.Equal(t, entity.TeamAwaitingPaymentConfirm, it.TeamStatus)

	_, err = f.checkout.Cancel(ctx, leader, order.OrderID)
	require.NoError(t, err)

	it, err = f.store.Catalog().Resolve(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, entity.TeamApprovedAwaitingPayment, it.TeamStatus)
}

func TestCancelRefusedAfterRedirect(t *testing.T) {
	f := newFixture()
	u := f.user(1)
	ref := f.seedPresentation(10, 200)

	order, _ := f.initiatedOrder(t, u, ref)

	_, err := f.checkout.Cancel(context.Background(), u, order.OrderID)
	assert.ErrorIs(t, err, services.ErrNotCancellable)
}

func TestCancelRefusedWhileInBatch(t *testing.T) {
	f := newFixture()
	u := f.user(1)
	ctx := context.Background()
	ref := f.seedPresentation(10, 200)

	order := f.addAndCheckout(t, u, ref)

	_, _, err := f.batch.Initiate(ctx, u, []uuid.UUID{order.OrderID})
	require.NoError(t, err)

	_, err = f.checkout.Cancel(ctx, u, order.OrderID)
	assert.ErrorIs(t, err, services.ErrOrderInBatch)
}

func TestInitiatePaymentMovesOrderToGateway(t *testing.T) {
	f := newFixture()
	u := f.user(1)
	ctx := context.Background()
	ref := f.seedPresentation(10, 200)

	order := f.addAndCheckout(t, u, ref)
	session, err := f.checkout.InitiatePayment(ctx, u, order.OrderID)
	require.NoError(t, err)
	assert.NotEmpty(t, session.Authority)
	assert.Contains(t, session.RedirectURL, session.Authority)

	o := f.reloadOrder(t, u, order)
	assert.Equal(t, entity.OrderAwaitingRedirect, o.Status)
	assert.Equal(t, session.Authority, o.GatewayAuthority)

	require.Len(t, f.gateway.Requests, 1)
	assert.Equal(t, int64(200), f.gateway.Requests[0].Amount)
}

func TestInitiatePaymentGatewayFailure(t *testing.T) {
	f := newFixture()
	u := f.user(1)
	ctx := context.Background()
	ref := f.seedPresentation(10, 200)
	order := f.addAndCheckout(t, u, ref)

	f.gateway.CreateErr = &ports.GatewayError{Message: "merchant invalid"}
	_, err := f.checkout.InitiatePayment(ctx, u, order.OrderID)
	var gwErr *ports.GatewayError
	require.ErrorAs(t, err, &gwErr)

	o := f.reloadOrder(t, u, order)
	assert.Equal(t, entity.OrderPaymentFailed, o.Status)

	// Failed payment keeps the reservation so the user can retry.
	view, err := f.cart.Get(ctx, u)
	require.NoError(t, err)
	require.Len(t, view.Items, 1)
	assert.Equal(t, entity.CartItemReserved, view.Items[0].CartItem.Status)

	// Retry succeeds once the gateway recovers.
	f.gateway.CreateErr = nil
	_, err = f.checkout.InitiatePayment(ctx, u, order.OrderID)
	require.NoError(t, err)
	assert.Equal(t, entity.OrderAwaitingRedirect, f.reloadOrder(t, u, order).Status)
}

func TestInitiatePaymentRejectsOwnedItem(t *testing.T) {
	f := newFixture()
	u := f.user(1)
	ctx := context.Background()
	ref := f.seedPresentation(10, 200)
	order := f.addAndCheckout(t, u, ref)

	require.NoError(t, f.store.Fulfillment().Enroll(ctx, u.ID, ref.ID))

	_, err := f.checkout.InitiatePayment(ctx, u, order.OrderID)
	assert.ErrorIs(t, err, services.ErrAlreadyOwned)
	assert.Empty(t, f.gateway.Requests)
}

func TestInitiatePaymentCancelsWhenItemGone(t *testing.T) {
	f := newFixture()
	u := f.user(1)
	ctx := context.Background()
	ref := f.seedPresentation(10, 200)
	order := f.addAndCheckout(t, u, ref)

	f.store.SeedItem(entity.Item{Ref: ref, Description: "Workshop", IsPaid: true, BasePrice: 200, Available: false})

	_, err := f.checkout.InitiatePayment(ctx, u, order.OrderID)
	assert.ErrorIs(t, err, services.ErrItemUnavailable)
	assert.Equal(t, entity.OrderCancelled, f.reloadOrder(t, u, order).Status)

	view, err := f.cart.Get(ctx, u)
	require.NoError(t, err)
	require.Len(t, view.Items, 1)
	assert.Equal(t, entity.CartItemOwned, view.Items[0].CartItem.Status)
}

func TestOrderHistory(t *testing.T) {
	f := newFixture()
	u := f.user(1)
	ctx := context.Background()
	refA := f.seedPresentation(10, 200)
	refB := f.seedCompetition(20, 300)

	first := f.addAndCheckout(t, u, refA)
	second := f.addAndCheckout(t, u, refB)

	orders, err := f.checkout.Orders(ctx, u)
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, second.OrderID, orders[0].OrderID)
	assert.Equal(t, first.OrderID, orders[1].OrderID)

	o, items, err := f.checkout.Order(ctx, u, first.OrderID)
	require.NoError(t, err)
	assert.Equal(t, first.OrderID, o.OrderID)
	require.Len(t, items, 1)
	assert.Equal(t, refA, items[0].Ref)
}
