package entity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func paidItem(kind ItemKind, id, price int64) Item {
	return Item{
		Ref:         ItemRef{Kind: kind, ID: id},
		Description: "item",
		IsPaid:      true,
		BasePrice:   price,
		Available:   true,
	}
}

func TestItemPrice(t *testing.T) {
	assert.Equal(t, int64(500), paidItem(KindPresentation, 1, 500).Price())

	free := paidItem(KindPresentation, 2, 500)
	free.IsPaid = false
	assert.Equal(t, int64(0), free.Price(), "unpaid flag wins over price field")

	zero := paidItem(KindSoloCompetition, 3, 0)
	assert.Equal(t, int64(0), zero.Price())

	negative := paidItem(KindSoloCompetition, 4, -10)
	assert.Equal(t, int64(0), negative.Price())
}

func TestSubtotal(t *testing.T) {
	items := []Item{
		paidItem(KindPresentation, 1, 300),
		paidItem(KindSoloCompetition, 2, 200),
	}
	assert.Equal(t, int64(500), Subtotal(items))
	assert.Equal(t, int64(0), Subtotal(nil))
}

func TestDiscountCodeValidity(t *testing.T) {
	now := time.Now()
	yesterday := now.Add(-24 * time.Hour)
	tomorrow := now.Add(24 * time.Hour)

	code := DiscountCode{Code: "SAVE10", Active: true, Percent: 10, MinOrderAmount: 100, MaxUses: 1}
	assert.True(t, code.Valid(now, 200))
	assert.False(t, code.Valid(now, 50), "below min order value")

	code.TimesUsed = 1
	assert.False(t, code.Valid(now, 200), "max uses reached")
	code.TimesUsed = 0

	code.Active = false
	assert.False(t, code.Valid(now, 200))
	code.Active = true

	code.ValidFrom = &tomorrow
	assert.False(t, code.Valid(now, 200), "before window")
	code.ValidFrom = &yesterday
	code.ValidTo = &yesterday
	assert.False(t, code.Valid(now, 200), "after window")
	code.ValidTo = &tomorrow
	assert.True(t, code.Valid(now, 200))
}

func TestDiscountCalculation(t *testing.T) {
	pct := DiscountCode{Active: true, Percent: 10}
	assert.Equal(t, int64(20), pct.Discount(200))
	assert.Equal(t, int64(0), pct.Discount(0))

	fixed := DiscountCode{Active: true, Amount: 300}
	assert.Equal(t, int64(300), fixed.Discount(1000))
	assert.Equal(t, int64(150), fixed.Discount(150), "fixed discount capped at base")
}

func TestCartTotals(t *testing.T) {
	now := time.Now()
	items := []Item{
		paidItem(KindPresentation, 1, 150),
		paidItem(KindSoloCompetition, 2, 50),
	}

	sub, disc, total := CartTotals(items, nil, now)
	assert.Equal(t, int64(200), sub)
	assert.Equal(t, int64(0), disc)
	assert.Equal(t, int64(200), total)

	code := &DiscountCode{Active: true, Percent: 10, MinOrderAmount: 100}
	sub, disc, total = CartTotals(items, code, now)
	assert.Equal(t, int64(200), sub)
	assert.Equal(t, int64(20), disc)
	assert.Equal(t, int64(180), total)
}

func TestCartTotalsTargetedCode(t *testing.T) {
	now := time.Now()
	items := []Item{
		paidItem(KindPresentation, 1, 150),
		paidItem(KindSoloCompetition, 2, 50),
	}

	target := ItemRef{Kind: KindSoloCompetition, ID: 2}
	code := &DiscountCode{Active: true, Percent: 50, Target: &target}

	sub, disc, total := CartTotals(items, code, now)
	assert.Equal(t, int64(200), sub)
	assert.Equal(t, int64(25), disc, "discount base is the eligible item only")
	assert.Equal(t, int64(175), total)

	missing := ItemRef{Kind: KindPresentation, ID: 99}
	code.Target = &missing
	_, disc, _ = CartTotals(items, code, now)
	assert.Equal(t, int64(0), disc, "no eligible items, no discount")
}

func TestCartTotalsDiscountNeverExceedsSubtotal(t *testing.T) {
	now := time.Now()
	items := []Item{paidItem(KindPresentation, 1, 100)}
	code := &DiscountCode{Active: true, Amount: 100000}

	_, disc, total := CartTotals(items, code, now)
	assert.Equal(t, int64(100), disc)
	assert.Equal(t, int64(0), total)
}
