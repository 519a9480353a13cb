package entity

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Cart is the single active cart of one user, created lazily on first
// access. DiscountCodeID is the applied code, if any.
type Cart struct {
	ID             int64
	UserID         int64
	DiscountCodeID *int64
	CreatedAt      time.Time
}

// CartItemStatus tracks whether a cart item is free to check out or already
// bound to a pending order.
type CartItemStatus string

const (
	CartItemOwned    CartItemStatus = "owned"
	CartItemReserved CartItemStatus = "reserved"
)

// CartItem references one purchasable item; unique per (cart, kind, id).
// While reserved it carries back-references to the order that holds it.
type CartItem struct {
	ID     int64
	CartID int64
	Ref    ItemRef
	Status CartItemStatus

	ReservedOrderID     *uuid.UUID
	ReservedOrderItemID *int64

	AddedAt time.Time
}

// Reserve binds the item to a pending order so it cannot be purchased twice
// or removed while payment is in flight.
func (ci *CartItem) Reserve(orderID uuid.UUID, orderItemID int64) error {
	if ci.Status != CartItemOwned {
		return fmt.Errorf("cart item %s: cannot reserve in status %q", ci.Ref, ci.Status)
	}
	ci.Status = CartItemReserved
	ci.ReservedOrderID = &orderID
	ci.ReservedOrderItemID = &orderItemID
	return nil
}

// Release reverts a reserved item to owned after its order is cancelled.
func (ci *CartItem) Release() error {
	if ci.Status != CartItemReserved {
		return fmt.Errorf("cart item %s: cannot release in status %q", ci.Ref, ci.Status)
	}
	ci.Status = CartItemOwned
	ci.ReservedOrderID = nil
	ci.ReservedOrderItemID = nil
	return nil
}
