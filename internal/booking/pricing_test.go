package booking

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMaxRedeemablePoints(t *testing.T) {
	cases := []struct {
		name       string
		subtotal   uint32
		balance    uint32
		pointValue uint32
		want       uint32
	}{
		{"balance is the binding cap", 300000, 80, 1000, 80},
		{"half-subtotal cap binds a rich balance", 300000, 500, 1000, 150},
		{"zero subtotal redeems nothing", 0, 100, 1000, 0},
		{"zero balance redeems nothing", 300000, 0, 1000, 0},
		{"zero point value redeems nothing", 300000, 100, 0, 0},
		{"exact half", 200000, 1000, 1000, 100},
		{"small subtotal floors to zero", 1500, 50, 1000, 0},
		{"large subtotal does not wrap the cap", 4000000000, 4000000, 1000, 2000000},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, MaxRedeemablePoints(tc.subtotal, tc.balance, tc.pointValue))
		})
	}
}

func TestDiscountNeverExceedsHalfSubtotal(t *testing.T) {
	const pointValue = 1000
	for subtotal := uint32(0); subtotal <= 500000; subtotal += 7321 {
		for _, balance := range []uint32{0, 1, 50, 80, 150, 10000} {
			max := MaxRedeemablePoints(subtotal, balance, pointValue)
			discount := Discount(max, pointValue)
			assert.LessOrEqual(t, discount, subtotal/2,
				"subtotal=%d balance=%d", subtotal, balance)
			assert.LessOrEqual(t, max, balance)
		}
	}
}

func TestClampPoints(t *testing.T) {
	// 80 points of balance against a 300,000 subtotal: a request for 100
	// comes back as 80, a request under the cap passes through untouched.
	assert.Equal(t, uint32(80), ClampPoints(100, 300000, 80, 1000))
	assert.Equal(t, uint32(30), ClampPoints(30, 300000, 80, 1000))
	assert.Equal(t, uint32(0), ClampPoints(0, 300000, 80, 1000))
}

func TestLineTotalCents(t *testing.T) {
	total, ok := LineTotalCents(50000, 2)
	require.True(t, ok)
	assert.Equal(t, uint32(100000), total)

	total, ok = LineTotalCents(1, MaxComboQuantity)
	require.True(t, ok)
	assert.Equal(t, uint32(MaxComboQuantity), total)

	_, ok = LineTotalCents(50000, 0)
	assert.False(t, ok)

	// 50,000 cents at a wrap-sized quantity would produce a near-zero
	// uint32 product; the bound rejects it outright
	_, ok = LineTotalCents(50000, 85900)
	assert.False(t, ok)

	_, ok = LineTotalCents(math.MaxUint32, 2)
	assert.False(t, ok)
}

func TestAddCents(t *testing.T) {
	sum, ok := AddCents(200000, 100000)
	require.True(t, ok)
	assert.Equal(t, uint32(300000), sum)

	_, ok = AddCents(math.MaxUint32, 1)
	assert.False(t, ok)
}

func TestTotal(t *testing.T) {
	assert.Equal(t, uint32(220000), Total(300000, 80000))
	assert.Equal(t, uint32(0), Total(100, 100))
	assert.Equal(t, uint32(0), Total(100, 200))
}
