// Package entity defines the shop domain: purchasable item references,
// pricing, discount codes, carts, orders and payment batches.
//
// Everything in this package is pure: no I/O, no database handles. State
// transitions are methods that validate the current state and either mutate
// the receiver or return an error, so the whole lifecycle is testable
// without infrastructure.
package entity

import "fmt"

// ItemKind tags the concrete type behind an ItemRef. New purchasable kinds
// are registered here and resolved by the Catalog port, nowhere else.
type ItemKind string

const (
	KindPresentation    ItemKind = "presentation"
	KindSoloCompetition ItemKind = "solo_competition"
	KindCompetitionTeam ItemKind = "competition_team"
)

// Valid reports whether k is one of the known purchasable kinds.
func (k ItemKind) Valid() bool {
	switch k {
	case KindPresentation, KindSoloCompetition, KindCompetitionTeam:
		return true
	}
	return false
}

// ItemRef is a tagged reference to one purchasable item.
type ItemRef struct {
	Kind ItemKind `json:"kind"`
	ID   int64    `json:"id"`
}

func (r ItemRef) String() string {
	return fmt.Sprintf("%s#%d", r.Kind, r.ID)
}

// Item is the resolved snapshot of a purchasable item as the catalog sees it
// right now. Checkout freezes Description and the computed price into
// OrderItems; nothing re-reads the live item after that point.
type Item struct {
	Ref         ItemRef
	Description string
	IsPaid      bool
	// BasePrice is the raw price field in Toman. For competition teams this
	// is the parent group competition's per-group price, not a field of the
	// team itself.
	BasePrice int64
	Available bool

	// Team-only fields; zero values for other kinds.
	LeaderID         int64
	TeamStatus       TeamStatus
	RequiresApproval bool
}

// Price returns the effective price of an item: zero when the item is not
// flagged as paid or its price field is not positive.
func (it Item) Price() int64 {
	if !it.IsPaid || it.BasePrice <= 0 {
		return 0
	}
	return it.BasePrice
}

// Subtotal sums the effective prices of items.
func Subtotal(items []Item) int64 {
	var sum int64
	for _, it := range items {
		sum += it.Price()
	}
	return sum
}
