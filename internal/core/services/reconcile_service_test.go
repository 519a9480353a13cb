package services_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sharifevents/shop-service/internal/core/domain/entity"
	"github.com/sharifevents/shop-service/internal/core/ports"
	"github.com/sharifevents/shop-service/internal/core/services"
	"github.com/sharifevents/shop-service/internal/infra/adapters/memory"
)

func TestCallbackSuccessCompletesOrder(t *testing.T) {
	f := newFixture()
	u := f.user(1)
	ctx := context.Background()
	ref := f.seedPresentation(10, 200)
	order, authority := f.initiatedOrder(t, u, ref)

	redirect := f.reconcile.HandleCallback(ctx, authority, true)
	assert.Contains(t, redirect, testRedirects.SuccessPath)
	assert.Contains(t, redirect, order.OrderID.String())

	o := f.reloadOrder(t, u, order)
	assert.Equal(t, entity.OrderCompleted, o.Status)
	assert.Equal(t, "TXN-"+authority, o.GatewayTxnID)
	assert.NotNil(t, o.PaidAt)
	assert.True(t, f.store.Enrolled(u.ID, ref))

	// The purchase left the cart entirely.
	view, err := f.cart.Get(ctx, u)
	require.NoError(t, err)
	assert.Empty(t, view.Items)
}

func TestCallbackIsIdempotent(t *testing.T) {
	f := newFixture()
	u := f.user(1)
	ctx := context.Background()
	ref := f.seedPresentation(10, 200)
	f.store.SeedDiscount(entity.DiscountCode{Code: "SAVE10", Active: true, Percent: 10})

	_, err := f.cart.AddItem(ctx, u, ref)
	require.NoError(t, err)
	_, err = f.cart.ApplyDiscount(ctx, u, "SAVE10")
	require.NoError(t, err)
	order, err := f.checkout.Checkout(ctx, u)
	require.NoError(t, err)
	session, err := f.checkout.InitiatePayment(ctx, u, order.OrderID)
	require.NoError(t, err)

	first := f.reconcile.HandleCallback(ctx, session.Authority, true)
	second := f.reconcile.HandleCallback(ctx, session.Authority, true)
	assert.Equal(t, first, second)

	// Verification happened once; the duplicate short-circuited.
	assert.Equal(t, 1, f.gateway.VerifyCalls[session.Authority])

	code, err := f.store.Discounts().FindByCode(ctx, "SAVE10")
	require.NoError(t, err)
	assert.Equal(t, int64(1), code.TimesUsed)
}

func TestCallbackNOKMarksFailedAndKeepsReservation(t *testing.T) {
	f := newFixture()
	u := f.user(1)
	ctx := context.Background()
	ref := f.seedPresentation(10, 200)
	order, authority := f.initiatedOrder(t, u, ref)

	redirect := f.reconcile.HandleCallback(ctx, authority, false)
	assert.Contains(t, redirect, "user_cancelled_or_gateway_nok")
	assert.Equal(t, 0, f.gateway.VerifyCalls[authority])

	o := f.reloadOrder(t, u, order)
	assert.Equal(t, entity.OrderPaymentFailed, o.Status)

	view, err := f.cart.Get(ctx, u)
	require.NoError(t, err)
	require.Len(t, view.Items, 1)
	assert.Equal(t, entity.CartItemReserved, view.Items[0].CartItem.Status)
}

func TestCallbackVerifyRejected(t *testing.T) {
	f := newFixture()
	u := f.user(1)
	ctx := context.Background()
	ref := f.seedPresentation(10, 200)
	order, authority := f.initiatedOrder(t, u, ref)

	f.gateway.VerifyErr = &ports.GatewayError{Message: "amount mismatch"}
	redirect := f.reconcile.HandleCallback(ctx, authority, true)
	assert.Contains(t, redirect, "verify_failed")
	assert.Equal(t, entity.OrderPaymentFailed, f.reloadOrder(t, u, order).Status)
}

func TestCallbackVerifyUnreachableLeavesOrderForSweep(t *testing.T) {
	f := newFixture()
	u := f.user(1)
	ctx := context.Background()
	ref := f.seedPresentation(10, 200)
	order, authority := f.initiatedOrder(t, u, ref)

	f.gateway.VerifyErr = &ports.GatewayUnreachableError{Err: errors.New("timeout")}
	redirect := f.reconcile.HandleCallback(ctx, authority, true)
	assert.Contains(t, redirect, "verify_unavailable")
	assert.Equal(t, entity.OrderAwaitingRedirect, f.reloadOrder(t, u, order).Status)

	// The sweep settles it once the provider is reachable again.
	f.gateway.VerifyErr = nil
	f.gateway.Pending = []string{authority}
	require.NoError(t, f.reconcile.SweepOnce(ctx))
	assert.Equal(t, entity.OrderCompleted, f.reloadOrder(t, u, order).Status)
	assert.True(t, f.store.Enrolled(u.ID, ref))
}

func TestCallbackBadInput(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	assert.Contains(t, f.reconcile.HandleCallback(ctx, "", true), "invalid_callback_params")
	assert.Contains(t, f.reconcile.HandleCallback(ctx, "A999999", true), "order_not_found")
}

func TestBatchPaymentEndToEnd(t *testing.T) {
	f := newFixture()
	u := f.user(1)
	ctx := context.Background()
	refA := f.seedPresentation(10, 200)
	refB := f.seedCompetition(20, 300)

	first := f.addAndCheckout(t, u, refA)
	second := f.addAndCheckout(t, u, refB)

	batch, session, err := f.batch.Initiate(ctx, u, []uuid.UUID{first.OrderID, second.OrderID})
	require.NoError(t, err)
	assert.Equal(t, entity.BatchAwaitingRedirect, batch.Status)
	assert.Equal(t, int64(500), batch.Total)

	// Members moved to the gateway but carry no authority of their own.
	o := f.reloadOrder(t, u, first)
	assert.Equal(t, entity.OrderAwaitingRedirect, o.Status)
	assert.Empty(t, o.GatewayAuthority)

	redirect := f.reconcile.HandleCallback(ctx, session.Authority, true)
	assert.Contains(t, redirect, testRedirects.SuccessPath)

	assert.Equal(t, entity.OrderCompleted, f.reloadOrder(t, u, first).Status)
	assert.Equal(t, entity.OrderCompleted, f.reloadOrder(t, u, second).Status)
	assert.True(t, f.store.Enrolled(u.ID, refA))
	assert.True(t, f.store.Enrolled(u.ID, refB))

	b, err := f.store.Batches().FindByAuthority(ctx, session.Authority)
	require.NoError(t, err)
	assert.Equal(t, entity.BatchCompleted, b.Status)

	// One gateway session and one verification for the whole batch.
	require.Len(t, f.gateway.Requests, 1)
	assert.Equal(t, int64(500), f.gateway.Requests[0].Amount)
	assert.Equal(t, 1, f.gateway.VerifyCalls[session.Authority])
}

func TestBatchInitiateRejectsNonPayableOrders(t *testing.T) {
	f := newFixture()
	u := f.user(1)
	ctx := context.Background()
	ref := f.seedPresentation(10, 200)
	order, authority := f.initiatedOrder(t, u, ref)

	f.reconcile.HandleCallback(ctx, authority, true)

	_, _, err := f.batch.Initiate(ctx, u, []uuid.UUID{order.OrderID})
	assert.ErrorIs(t, err, services.ErrNotEligible)
}

func TestBatchInitiateGatewayFailure(t *testing.T) {
	f := newFixture()
	u := f.user(1)
	ctx := context.Background()
	ref := f.seedPresentation(10, 200)
	order := f.addAndCheckout(t, u, ref)

	f.gateway.CreateErr = &ports.GatewayUnreachableError{Err: errors.New("timeout")}
	_, _, err := f.batch.Initiate(ctx, u, []uuid.UUID{order.OrderID})
	require.Error(t, err)

	// The member can retry individually afterwards.
	o := f.reloadOrder(t, u, order)
	assert.Equal(t, entity.OrderPaymentFailed, o.Status)

	f.gateway.CreateErr = nil
	_, err = f.checkout.InitiatePayment(ctx, u, order.OrderID)
	require.NoError(t, err)
}

// hookedGateway runs a callback right before the payment session is opened,
// standing in for anything racing the gateway round trip.
type hookedGateway struct {
	*memory.Gateway
	beforeCreate func()
}

func (g *hookedGateway) CreatePayment(ctx context.Context, req ports.PaymentRequest) (*ports.PaymentSession, error) {
	if g.beforeCreate != nil {
		g.beforeCreate()
	}
	return g.Gateway.CreatePayment(ctx, req)
}

func TestBatchClaimsMembersBeforeGatewayCall(t *testing.T) {
	f := newFixture()
	u := f.user(1)
	ctx := context.Background()
	refA := f.seedPresentation(10, 200)
	refB := f.seedCompetition(20, 300)
	first := f.addAndCheckout(t, u, refA)
	second := f.addAndCheckout(t, u, refB)

	// A cancel racing the gateway round trip must lose; otherwise the
	// authority comes back bound to an order that no longer exists.
	var cancelErr error
	gw := &hookedGateway{Gateway: f.gateway, beforeCreate: func() {
		_, cancelErr = f.checkout.Cancel(ctx, u, first.OrderID)
	}}
	batch := services.NewBatchService(f.store, gw)

	_, session, err := batch.Initiate(ctx, u, []uuid.UUID{first.OrderID, second.OrderID})
	require.NoError(t, err)
	require.NotEmpty(t, session.Authority)
	assert.ErrorIs(t, cancelErr, services.ErrNotCancellable)

	for _, o := range []*entity.Order{first, second} {
		assert.Equal(t, entity.OrderAwaitingRedirect, f.reloadOrder(t, u, o).Status)
	}

	redirect := f.reconcile.HandleCallback(ctx, session.Authority, true)
	assert.Contains(t, redirect, testRedirects.SuccessPath)
}

func TestBatchCallbackNOK(t *testing.T) {
	f := newFixture()
	u := f.user(1)
	ctx := context.Background()
	refA := f.seedPresentation(10, 200)
	refB := f.seedCompetition(20, 300)
	first := f.addAndCheckout(t, u, refA)
	second := f.addAndCheckout(t, u, refB)

	_, session, err := f.batch.Initiate(ctx, u, []uuid.UUID{first.OrderID, second.OrderID})
	require.NoError(t, err)

	redirect := f.reconcile.HandleCallback(ctx, session.Authority, false)
	assert.Contains(t, redirect, "user_cancelled_or_gateway_nok")

	assert.Equal(t, entity.OrderPaymentFailed, f.reloadOrder(t, u, first).Status)
	assert.Equal(t, entity.OrderPaymentFailed, f.reloadOrder(t, u, second).Status)

	b, err := f.store.Batches().FindByAuthority(ctx, session.Authority)
	require.NoError(t, err)
	assert.Equal(t, entity.BatchPaymentFailed, b.Status)
}

func TestSweepSettlesBatch(t *testing.T) {
	f := newFixture()
	u := f.user(1)
	ctx := context.Background()
	refA := f.seedPresentation(10, 200)
	refB := f.seedCompetition(20, 300)
	first := f.addAndCheckout(t, u, refA)
	second := f.addAndCheckout(t, u, refB)

	_, session, err := f.batch.Initiate(ctx, u, []uuid.UUID{first.OrderID, second.OrderID})
	require.NoError(t, err)

	// The browser never came back; the provider still reports it paid.
	f.gateway.Pending = []string{session.Authority}
	require.NoError(t, f.reconcile.SweepOnce(ctx))

	assert.Equal(t, entity.OrderCompleted, f.reloadOrder(t, u, first).Status)
	assert.Equal(t, entity.OrderCompleted, f.reloadOrder(t, u, second).Status)

	// A second sweep pass is a no-op.
	require.NoError(t, f.reconcile.SweepOnce(ctx))
	assert.Equal(t, 1, f.gateway.VerifyCalls[session.Authority])
}

func TestSweepSkipsUnknownAuthorities(t *testing.T) {
	f := newFixture()
	f.gateway.Pending = []string{"A424242"}
	require.NoError(t, f.reconcile.SweepOnce(context.Background()))
}

func TestCompletionMailIsSent(t *testing.T) {
	f := newFixture()
	u := f.user(1)
	ctx := context.Background()
	ref := f.seedPresentation(10, 200)
	_, authority := f.initiatedOrder(t, u, ref)

	f.reconcile.HandleCallback(ctx, authority, true)

	assert.Eventually(t, func() bool {
		sent := f.mailer.Snapshot()
		return len(sent) == 1 && sent[0].To[0] == u.Email
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSweeperRunsUnderLease(t *testing.T) {
	f := newFixture()
	u := f.user(1)
	ctx := context.Background()
	ref := f.seedPresentation(10, 200)
	_, authority := f.initiatedOrder(t, u, ref)
	f.gateway.Pending = []string{authority}

	sweeper := services.NewSweeper(f.reconcile, memory.NewLease())

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		sweeper.Run(runCtx)
		close(done)
	}()

	// The startup sweep settles the pending authority.
	assert.Eventually(t, func() bool {
		o, err := f.store.Orders().FindByAuthority(ctx, authority)
		return err == nil && o != nil && o.Status == entity.OrderCompleted
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	<-done
}
