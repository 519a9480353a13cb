package services_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sharifevents/shop-service/internal/core/domain/entity"
	"github.com/sharifevents/shop-service/internal/core/ports"
	"github.com/sharifevents/shop-service/internal/core/services"
	"github.com/sharifevents/shop-service/internal/infra/adapters/memory"
)

var testRedirects = services.RedirectConfig{
	BaseURL:     "https://events.test",
	SuccessPath: "/payment/success",
	FailurePath: "/payment/failure",
}

type fixture struct {
	store     *memory.Store
	gateway   *memory.Gateway
	mailer    *memory.Mailer
	users     *memory.Users
	cart      *services.CartService
	checkout  *services.CheckoutService
	batch     *services.BatchService
	reconcile *services.ReconcileService
}

func newFixture() *fixture {
	f := &fixture{
		store:   memory.NewStore(),
		gateway: memory.NewGateway(),
		mailer:  memory.NewMailer(),
		users:   memory.NewUsers(),
	}
	f.cart = services.NewCartService(f.store)
	f.checkout = services.NewCheckoutService(f.store, f.gateway, f.mailer)
	f.batch = services.NewBatchService(f.store, f.gateway)
	f.reconcile = services.NewReconcileService(f.store, f.gateway, f.mailer, f.users, testRedirects)
	return f
}

func (f *fixture) user(id int64) ports.User {
	u := ports.User{ID: id, Email: "user@example.com", Phone: "09120000000"}
	f.users.Add(u)
	return u
}

func (f *fixture) seedPresentation(id, price int64) entity.ItemRef {
	ref := entity.ItemRef{Kind: entity.KindPresentation, ID: id}
	f.store.SeedItem(entity.Item{
		Ref:         ref,
		Description: "Workshop",
		IsPaid:      price > 0,
		BasePrice:   price,
		Available:   true,
	})
	return ref
}

func (f *fixture) seedCompetition(id, price int64) entity.ItemRef {
	ref := entity.ItemRef{Kind: entity.KindSoloCompetition, ID: id}
	f.store.SeedItem(entity.Item{
		Ref:         ref,
		Description: "Solo competition",
		IsPaid:      price > 0,
		BasePrice:   price,
		Available:   true,
	})
	return ref
}

func (f *fixture) seedTeam(id, price, leaderID int64, requiresApproval bool, status entity.TeamStatus) entity.ItemRef {
	ref := entity.ItemRef{Kind: entity.KindCompetitionTeam, ID: id}
	f.store.SeedItem(entity.Item{
		Ref:              ref,
		Description:      "Team competition",
		IsPaid:           price > 0,
		BasePrice:        price,
		Available:        true,
		LeaderID:         leaderID,
		RequiresApproval: requiresApproval,
		TeamStatus:       status,
	})
	return ref
}

// addAndCheckout puts the item in the cart and checks the cart out, returning
// the pending order.
func (f *fixture) addAndCheckout(t *testing.T, u ports.User, ref entity.ItemRef) *entity.Order {
	t.Helper()
	ctx := context.Background()
	_, err := f.cart.AddItem(ctx, u, ref)
	require.NoError(t, err)
	order, err := f.checkout.Checkout(ctx, u)
	require.NoError(t, err)
	return order
}

// initiatedOrder runs the full path up to a gateway session and returns the
// order plus the authority the gateway issued.
func (f *fixture) initiatedOrder(t *testing.T, u ports.User, ref entity.ItemRef) (*entity.Order, string) {
	t.Helper()
	ctx := context.Background()
	order := f.addAndCheckout(t, u, ref)
	session, err := f.checkout.InitiatePayment(ctx, u, order.OrderID)
	require.NoError(t, err)
	return order, session.Authority
}

func (f *fixture) reloadOrder(t *testing.T, u ports.User, order *entity.Order) *entity.Order {
	t.Helper()
	o, err := f.store.Orders().ByOrderID(context.Background(), u.ID, order.OrderID)
	require.NoError(t, err)
	return o
}
