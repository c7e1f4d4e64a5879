// Package booking holds pricing arithmetic shared by the API server and the
// checkout flow client.  Keeping the point caps in one place guarantees the
// client-side courtesy clamp and the server-side hard check agree.
package booking

import "math"

// MaxDiscountPercent caps the loyalty discount at half the subtotal; a
// booking can never be more than 50% paid in points.
const MaxDiscountPercent = 50

// MaxComboQuantity bounds a single combo line.  Larger quantities are
// rejected as invalid rather than clamped.
const MaxComboQuantity = 20

// MaxRedeemablePoints returns the largest number of points that may be
// redeemed against a subtotal: the customer's balance, the number of points
// the subtotal is worth, and the 50%-of-subtotal cap, whichever is tightest.
func MaxRedeemablePoints(subtotalCents, balance, pointValueCents uint32) uint32 {
    if pointValueCents == 0 {
        return 0
    }
    byValue := subtotalCents / pointValueCents
    // 64-bit intermediate: subtotal*50 wraps uint32 above ~85M cents.
    byCap := uint32(uint64(subtotalCents) * MaxDiscountPercent / 100 / uint64(pointValueCents))
    max := balance
    if byValue < max {
        max = byValue
    }
    if byCap < max {
        max = byCap
    }
    return max
}

// ClampPoints bounds a requested redemption to what MaxRedeemablePoints
// allows.  The client applies this before sending as a courtesy; the server
// rejects rather than clamps, so the two never disagree silently.
func ClampPoints(requested, subtotalCents, balance, pointValueCents uint32) uint32 {
    max := MaxRedeemablePoints(subtotalCents, balance, pointValueCents)
    if requested > max {
        return max
    }
    return requested
}

// LineTotalCents returns quantity times unit price for one combo line.
// It reports false when the quantity is outside 1..MaxComboQuantity or
// the product does not fit in uint32 cents; callers reject such lines.
func LineTotalCents(unitPriceCents, quantity uint32) (uint32, bool) {
    if quantity == 0 || quantity > MaxComboQuantity {
        return 0, false
    }
    total := uint64(unitPriceCents) * uint64(quantity)
    if total > math.MaxUint32 {
        return 0, false
    }
    return uint32(total), true
}

// AddCents sums two cent amounts, reporting false on uint32 overflow.
func AddCents(a, b uint32) (uint32, bool) {
    sum := uint64(a) + uint64(b)
    if sum > math.MaxUint32 {
        return 0, false
    }
    return uint32(sum), true
}

// Discount converts a point count into its monetary value in cents.
func Discount(points, pointValueCents uint32) uint32 {
    return points * pointValueCents
}

// Total applies a discount to a subtotal, never going below zero.
func Total(subtotalCents, discountCents uint32) uint32 {
    if discountCents >= subtotalCents {
        return 0
    }
    return subtotalCents - discountCents
}
