// Package ports declares the interfaces the checkout engine depends on.
// Services orchestrate against these abstractions; infra/adapters provides
// the Postgres, Zarinpal, Redis and in-memory implementations.
package ports

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/sharifevents/shop-service/internal/core/domain/entity"
)

// ErrNotFound is returned by Get-style lookups when the entity is absent or
// not owned by the caller. Find-style lookups return (nil, nil) instead.
var ErrNotFound = errors.New("not found")

// Repos bundles the repositories that share one transaction. Catalog and
// Fulfillment are part of the bundle because team status flips and
// enrollment writes must commit atomically with the order transition that
// caused them.
type Repos interface {
	Carts() CartRepository
	Orders() OrderRepository
	Batches() BatchRepository
	Discounts() DiscountRepository
	Catalog() CatalogRepository
	Fulfillment() FulfillmentRepository
}

// Store is the persistence boundary. InTx runs fn inside a single database
// transaction; fn's repositories see uncommitted writes and any *ForUpdate
// read takes row locks held until commit. Callers must not perform gateway
// calls inside fn.
type Store interface {
	Repos
	InTx(ctx context.Context, fn func(tx Repos) error) error
}

type CartRepository interface {
	// GetOrCreate returns the user's cart, creating an empty one on first
	// access.
	GetOrCreate(ctx context.Context, userID int64) (*entity.Cart, error)
	SetDiscount(ctx context.Context, cartID int64, codeID *int64) error

	Items(ctx context.Context, cartID int64) ([]entity.CartItem, error)
	// ItemsForUpdate locks and returns cart items. A nil ids slice locks the
	// whole cart; otherwise only the listed item ids (silently skipping ids
	// that do not belong to the cart).
	ItemsForUpdate(ctx context.Context, cartID int64, ids []int64) ([]entity.CartItem, error)
	GetItem(ctx context.Context, cartID, itemID int64) (*entity.CartItem, error)
	FindItem(ctx context.Context, cartID int64, ref entity.ItemRef) (*entity.CartItem, error)

	AddItem(ctx context.Context, item *entity.CartItem) error
	UpdateItem(ctx context.Context, item *entity.CartItem) error
	DeleteItem(ctx context.Context, itemID int64) error

	ItemsReservedBy(ctx context.Context, orderID int64) ([]entity.CartItem, error)
	DeleteItemsReservedBy(ctx context.Context, orderID int64) error
	ClearItems(ctx context.Context, cartID int64) error
}

type OrderRepository interface {
	Create(ctx context.Context, o *entity.Order) error
	CreateItem(ctx context.Context, item *entity.OrderItem) error
	Items(ctx context.Context, orderID int64) ([]entity.OrderItem, error)

	// ByOrderID resolves the external UUID, scoped to the owning user.
	ByOrderID(ctx context.Context, userID int64, orderID uuid.UUID) (*entity.Order, error)
	GetForUpdate(ctx context.Context, id int64) (*entity.Order, error)
	Update(ctx context.Context, o *entity.Order) error
	ListByUser(ctx context.Context, userID int64) ([]entity.Order, error)

	FindByAuthority(ctx context.Context, authority string) (*entity.Order, error)
	// HasUnpaidForItem reports whether the user already has a
	// pending/awaiting/failed order referencing the item.
	HasUnpaidForItem(ctx context.Context, userID int64, ref entity.ItemRef) (bool, error)
}

type BatchRepository interface {
	// Create persists the batch and its order memberships.
	Create(ctx context.Context, b *entity.PaymentBatch, memberOrderIDs []int64) error
	GetForUpdate(ctx context.Context, id int64) (*entity.PaymentBatch, error)
	Update(ctx context.Context, b *entity.PaymentBatch) error
	FindByAuthority(ctx context.Context, authority string) (*entity.PaymentBatch, error)
	MemberOrderIDs(ctx context.Context, batchID int64) ([]int64, error)
	// FindActiveForOrder returns a batch containing the order that is at the
	// gateway, verified or completed; nil if none.
	FindActiveForOrder(ctx context.Context, orderID int64) (*entity.PaymentBatch, error)
}

type DiscountRepository interface {
	// FindByCode is case-insensitive; (nil, nil) when absent.
	FindByCode(ctx context.Context, code string) (*entity.DiscountCode, error)
	Get(ctx context.Context, id int64) (*entity.DiscountCode, error)
	// IncrementUsage bumps times_used by one.
	IncrementUsage(ctx context.Context, codeID int64) error
	RedemptionCount(ctx context.Context, codeID, userID int64) (int64, error)
	// Redeem records one redemption keyed by (code, user, order); returns
	// false without error when the row already exists.
	Redeem(ctx context.Context, codeID, userID, orderID int64) (bool, error)
}

// CatalogRepository resolves polymorphic item references against the events
// domain. It is the single registry of purchasable kinds.
type CatalogRepository interface {
	Resolve(ctx context.Context, ref entity.ItemRef) (*entity.Item, error)
	SetTeamStatus(ctx context.Context, teamID int64, status entity.TeamStatus) error
	// Owned reports whether the user already holds a completed enrollment,
	// registration or active led team for the item.
	Owned(ctx context.Context, userID int64, ref entity.ItemRef) (bool, error)
}

// FulfillmentRepository applies the domain side effect of a completed
// purchase. Every operation is idempotent, keyed by (user, item).
type FulfillmentRepository interface {
	Enroll(ctx context.Context, userID, presentationID int64) error
	Register(ctx context.Context, userID, competitionID int64) error
	ActivateTeam(ctx context.Context, teamID int64) error
}
