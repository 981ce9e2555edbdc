package promotion

import (
	"github.com/xenking/promo-engine/internal/money"
)

// Discount holds the computed discount and the resulting final price.
type Discount struct {
	Amount money.Money
	Final  money.Money
}

// ComputeDiscount calculates the discount rec grants on amount.
//
// It rejects non-positive amounts with ErrNonPositiveAmount and purchases
// below the promotion's minimum with a BelowMinimumError. Otherwise the raw
// discount is the promotion percentage of the amount (rounded half-up at
// the cent), clamped to MaxDiscount when a cap is set.
//
// For every accepted input: 0 <= Amount <= amount and Final >= 0.
func ComputeDiscount(rec *Record, amount money.Money) (Discount, error) {
	if !amount.IsPositive() {
		return Discount{}, ErrNonPositiveAmount
	}
	if rec.MinPurchase != nil && amount.LessThan(*rec.MinPurchase) {
		return Discount{}, &BelowMinimumError{Minimum: *rec.MinPurchase}
	}

	raw := amount.MulPercent(rec.DiscountPercent)
	if rec.MaxDiscount != nil {
		raw = raw.Min(*rec.MaxDiscount)
	}
	// DiscountPercent <= 100 bounds raw by amount, but a malformed record
	// must not produce a negative final price.
	raw = raw.Min(amount)
	if raw < 0 {
		raw = money.Zero
	}

	return Discount{
		Amount: raw,
		Final:  amount.Sub(raw),
	}, nil
}
