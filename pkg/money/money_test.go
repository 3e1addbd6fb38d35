package money

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromFloat(t *testing.T) {
	assert.Equal(t, Amount(14997), FromFloat(149.97))
	assert.Equal(t, Amount(100000), FromFloat(1000.00))
	assert.Equal(t, Amount(1), FromFloat(0.005))
	assert.Equal(t, Amount(0), FromFloat(0.004))
}

func TestApplyRate(t *testing.T) {
	// flat 10% commission on a 1000.00 booking
	assert.Equal(t, Amount(10000), FromCents(100000).ApplyRate(0.10))
	// half-up at the cent boundary
	assert.Equal(t, Amount(126), FromCents(2510).ApplyRate(0.05))
}

func TestApplyPercent(t *testing.T) {
	// the invoice scenario: 149.97 at 10% discount rounds 14.997 up to 15.00
	subtotal := FromCents(14997)
	discount := subtotal.ApplyPercent(10)
	assert.Equal(t, Amount(1500), discount)

	after := subtotal.Sub(discount)
	assert.Equal(t, Amount(13497), after)

	// 134.97 at 21% tax rounds 28.3437 down to 28.34
	tax := after.ApplyPercent(21)
	assert.Equal(t, Amount(2834), tax)
	assert.Equal(t, Amount(16331), after.Add(tax))
}

func TestMulQuantity(t *testing.T) {
	assert.Equal(t, Amount(14997), FromCents(4999).MulQuantity(3))
	assert.Equal(t, Amount(2500), FromCents(1000).MulQuantity(2.5))
}

func TestString(t *testing.T) {
	assert.Equal(t, "163.31", Amount(16331).String())
}
