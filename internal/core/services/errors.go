// Package services implements the checkout engine: cart management,
// checkout, single and batch payment initiation, and callback/sweep
// reconciliation. Every state transition happens inside one Store
// transaction per triggering event; gateway calls never run inside a
// transaction.
package services

import "errors"

// Domain errors surfaced to callers. The HTTP layer maps these onto status
// codes; anything else is an internal error.
var (
	// Validation-class: the request itself is unusable.
	ErrInvalidItemKind = errors.New("unknown item kind")
	ErrItemNotFree     = errors.New("item is free or has no price; use direct enrollment instead")
	ErrCartEmpty       = errors.New("cart is empty")
	ErrInvalidDiscount = errors.New("discount code is not valid or applicable")
	ErrNoPayableItems  = errors.New("no payable items")

	// Conflict-class: the operation is invalid for the current state.
	ErrAlreadyReserved = errors.New("item is already reserved by an unpaid order")
	ErrItemUnavailable = errors.New("item is no longer available")
	ErrTeamNotApproved = errors.New("team must be admin-approved and awaiting payment")
	ErrNotCancellable  = errors.New("order cannot be cancelled in its current state")
	ErrNotPayable      = errors.New("order is not eligible for payment")
	ErrNotEligible     = errors.New("orders are not eligible for batch payment")
	ErrOrderInBatch    = errors.New("order is attached to a batch that is in progress or paid")

	// Permission-class.
	ErrNotTeamLeader = errors.New("caller is not the leader of this team")

	// Payment guard: an order line is already fulfilled through another
	// path, so paying again would double-charge.
	ErrAlreadyOwned = errors.New("order contains items already owned")
)
