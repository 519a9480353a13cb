package entity

import "time"

// DiscountCode is either a percentage or a fixed-amount code; exactly one of
// Percent / Amount is positive. Zero on the optional limits means "no limit".
type DiscountCode struct {
	ID     int64
	Code   string
	Active bool

	Percent int64 // 1..100
	Amount  int64 // Toman

	ValidFrom *time.Time
	ValidTo   *time.Time

	MinOrderAmount int64
	MaxUses        int64
	TimesUsed      int64
	MaxUsesPerUser int64

	// Target restricts the code to a single purchasable item. Nil applies
	// the code to the whole cart.
	Target *ItemRef

	CreatedAt time.Time
}

func (c *DiscountCode) IsPercentage() bool  { return c.Percent > 0 }
func (c *DiscountCode) IsFixedAmount() bool { return c.Amount > 0 }

// Valid reports whether the code can be applied to an order of the given
// subtotal at the given time. Per-user quota is checked separately since it
// needs redemption history.
func (c *DiscountCode) Valid(now time.Time, subtotal int64) bool {
	if !c.Active {
		return false
	}
	if c.ValidFrom != nil && now.Before(*c.ValidFrom) {
		return false
	}
	if c.ValidTo != nil && now.After(*c.ValidTo) {
		return false
	}
	if c.MinOrderAmount > 0 && subtotal < c.MinOrderAmount {
		return false
	}
	if c.MaxUses > 0 && c.TimesUsed >= c.MaxUses {
		return false
	}
	return true
}

// Discount computes the discount for a base amount. Never exceeds base.
func (c *DiscountCode) Discount(base int64) int64 {
	if base <= 0 {
		return 0
	}
	if c.IsPercentage() {
		d := base * c.Percent / 100
		if d > base {
			return base
		}
		return d
	}
	if c.IsFixedAmount() {
		if c.Amount > base {
			return base
		}
		return c.Amount
	}
	return 0
}

// EligibleItems filters items to those the code may discount. An untargeted
// code covers everything; a targeted code covers only its referenced item.
func (c *DiscountCode) EligibleItems(items []Item) []Item {
	if c.Target == nil {
		return items
	}
	var out []Item
	for _, it := range items {
		if it.Ref == *c.Target {
			out = append(out, it)
		}
	}
	return out
}

// CartTotals derives subtotal, discount and total for a set of resolved cart
// items with an optionally applied code. The same function runs during cart
// display and during checkout so the two can never disagree.
func CartTotals(items []Item, code *DiscountCode, now time.Time) (subtotal, discount, total int64) {
	subtotal = Subtotal(items)
	if code != nil && code.Valid(now, subtotal) {
		base := Subtotal(code.EligibleItems(items))
		discount = code.Discount(base)
		if discount > subtotal {
			discount = subtotal
		}
	}
	return subtotal, discount, subtotal - discount
}
