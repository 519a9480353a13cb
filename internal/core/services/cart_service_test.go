package services_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sharifevents/shop-service/internal/core/domain/entity"
	"github.com/sharifevents/shop-service/internal/core/services"
)

func TestAddItemAndTotals(t *testing.T) {
	f := newFixture()
	u := f.user(1)
	ctx := context.Background()

	refA := f.seedPresentation(10, 200)
	refB := f.seedCompetition(20, 300)

	_, err := f.cart.AddItem(ctx, u, refA)
	require.NoError(t, err)
	view, err := f.cart.AddItem(ctx, u, refB)
	require.NoError(t, err)

	assert.Len(t, view.Items, 2)
	assert.Equal(t, int64(500), view.Subtotal)
	assert.Equal(t, int64(500), view.Total)
}

func TestAddItemIsIdempotent(t *testing.T) {
	f := newFixture()
	u := f.user(1)
	ctx := context.Background()
	ref := f.seedPresentation(10, 200)

	_, err := f.cart.AddItem(ctx, u, ref)
	require.NoError(t, err)
	view, err := f.cart.AddItem(ctx, u, ref)
	require.NoError(t, err)
	assert.Len(t, view.Items, 1)
}

func TestAddItemRejectsFreeItem(t *testing.T) {
	f := newFixture()
	u := f.user(1)
	ref := f.seedPresentation(10, 0)

	_, err := f.cart.AddItem(context.Background(), u, ref)
	assert.ErrorIs(t, err, services.ErrItemNotFree)
}

func TestAddItemRejectsUnknownKind(t *testing.T) {
	f := newFixture()
	u := f.user(1)

	_, err := f.cart.AddItem(context.Background(), u, entity.ItemRef{Kind: "sponsorship", ID: 1})
	assert.ErrorIs(t, err, services.ErrInvalidItemKind)
}

func TestAddTeamRequiresLeadership(t *testing.T) {
	f := newFixture()
	leader := f.user(1)
	member := f.user(2)
	ctx := context.Background()
	ref := f.seedTeam(30, 400, leader.ID, false, entity.TeamApprovedAwaitingPayment)

	_, err := f.cart.AddItem(ctx, member, ref)
	assert.ErrorIs(t, err, services.ErrNotTeamLeader)

	_, err = f.cart.AddItem(ctx, leader, ref)
	require.NoError(t, err)

	it, err := f.store.Catalog().Resolve(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, entity.TeamInCart, it.TeamStatus)
}

func TestAddTeamRequiresApproval(t *testing.T) {
	f := newFixture()
	leader := f.user(1)
	ref := f.seedTeam(30, 400, leader.ID, true, entity.TeamPendingAdminVerification)

	_, err := f.cart.AddItem(context.Background(), leader, ref)
	assert.ErrorIs(t, err, services.ErrTeamNotApproved)
}

func TestRemoveItemReleasesTeamStatus(t *testing.T) {
	f := newFixture()
	leader := f.user(1)
	ctx := context.Background()
	ref := f.seedTeam(30, 400, leader.ID, true, entity.TeamApprovedAwaitingPayment)

	view, err := f.cart.AddItem(ctx, leader, ref)
	require.NoError(t, err)

	_, err = f.cart.RemoveItem(ctx, leader, view.Items[0].CartItem.ID)
	require.NoError(t, err)

	it, err := f.store.Catalog().Resolve(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, entity.TeamApprovedAwaitingPayment, it.TeamStatus)
}

func TestRemoveReservedItemIsRefused(t *testing.T) {
	f := newFixture()
	u := f.user(1)
	ctx := context.Background()
	ref := f.seedPresentation(10, 200)

	f.addAndCheckout(t, u, ref)

	view, err := f.cart.Get(ctx, u)
	require.NoError(t, err)
	require.Len(t, view.Items, 1)
	require.Equal(t, entity.CartItemReserved, view.Items[0].CartItem.Status)

	_, err = f.cart.RemoveItem(ctx, u, view.Items[0].CartItem.ID)
	assert.ErrorIs(t, err, services.ErrAlreadyReserved)
}

func TestApplyDiscount(t *testing.T) {
	f := newFixture()
	u := f.user(1)
	ctx := context.Background()
	ref := f.seedPresentation(10, 200)
	f.store.SeedDiscount(entity.DiscountCode{Code: "SAVE10", Active: true, Percent: 10})

	_, err := f.cart.AddItem(ctx, u, ref)
	require.NoError(t, err)

	view, err := f.cart.ApplyDiscount(ctx, u, "save10")
	require.NoError(t, err)
	assert.Equal(t, int64(200), view.Subtotal)
	assert.Equal(t, int64(20), view.Discount)
	assert.Equal(t, int64(180), view.Total)

	view, err = f.cart.RemoveDiscount(ctx, u)
	require.NoError(t, err)
	assert.Equal(t, int64(200), view.Total)
}

func TestApplyDiscountRejectsUnknownOrBelowMinimum(t *testing.T) {
	f := newFixture()
	u := f.user(1)
	ctx := context.Background()
	ref := f.seedPresentation(10, 50)
	f.store.SeedDiscount(entity.DiscountCode{Code: "BIG", Active: true, Percent: 10, MinOrderAmount: 100})

	_, err := f.cart.AddItem(ctx, u, ref)
	require.NoError(t, err)

	_, err = f.cart.ApplyDiscount(ctx, u, "NOPE")
	assert.ErrorIs(t, err, services.ErrInvalidDiscount)

	_, err = f.cart.ApplyDiscount(ctx, u, "BIG")
	assert.ErrorIs(t, err, services.ErrInvalidDiscount)
}

func TestApplyDiscountEnforcesPerUserQuota(t *testing.T) {
	f := newFixture()
	u := f.user(1)
	ctx := context.Background()
	refA := f.seedPresentation(10, 200)
	refB := f.seedPresentation(11, 200)
	f.store.SeedDiscount(entity.DiscountCode{Code: "ONCE", Active: true, Percent: 100, MaxUsesPerUser: 1})

	_, err := f.cart.AddItem(ctx, u, refA)
	require.NoError(t, err)
	_, err = f.cart.ApplyDiscount(ctx, u, "ONCE")
	require.NoError(t, err)

	// A 100% code finalizes immediately with no gateway round-trip.
	order, err := f.checkout.Checkout(ctx, u)
	require.NoError(t, err)
	assert.Equal(t, entity.OrderCompleted, order.Status)

	_, err = f.cart.AddItem(ctx, u, refB)
	require.NoError(t, err)
	_, err = f.cart.ApplyDiscount(ctx, u, "ONCE")
	assert.ErrorIs(t, err, services.ErrInvalidDiscount)
}

func TestRemovingTargetDropsTargetedDiscount(t *testing.T) {
	f := newFixture()
	u := f.user(1)
	ctx := context.Background()
	refA := f.seedPresentation(10, 200)
	refB := f.seedPresentation(11, 300)
	f.store.SeedDiscount(entity.DiscountCode{
		Code: "WS10", Active: true, Percent: 10,
		Target: &entity.ItemRef{Kind: entity.KindPresentation, ID: 10},
	})

	viewA, err := f.cart.AddItem(ctx, u, refA)
	require.NoError(t, err)
	_, err = f.cart.AddItem(ctx, u, refB)
	require.NoError(t, err)

	view, err := f.cart.ApplyDiscount(ctx, u, "WS10")
	require.NoError(t, err)
	assert.Equal(t, int64(20), view.Discount)

	view, err = f.cart.RemoveItem(ctx, u, viewA.Items[0].CartItem.ID)
	require.NoError(t, err)
	assert.Nil(t, view.Cart.DiscountCodeID)
	assert.Equal(t, int64(300), view.Total)
}
