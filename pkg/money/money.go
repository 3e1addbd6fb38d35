// Package money holds monetary amounts as int64 minor units (cents).
// All rounding happens here, half-up to the nearest cent, so callers never
// accumulate binary floating point across computation boundaries.
package money

import (
	"fmt"
	"math"
)

// Amount is a monetary value in minor units of its currency.
type Amount int64

// FromFloat converts a major-unit value (e.g. 149.97) to cents, half-up.
func FromFloat(value float64) Amount {
	return roundHalfUp(value * 100)
}

// FromCents wraps a raw minor-unit value.
func FromCents(cents int64) Amount {
	return Amount(cents)
}

// Cents returns the raw minor-unit value.
func (a Amount) Cents() int64 { return int64(a) }

// Float returns the major-unit value. Only for serialization at the edge.
func (a Amount) Float() float64 { return float64(a) / 100 }

// ApplyRate multiplies by a fractional rate (0.10 for 10%) and rounds half-up.
func (a Amount) ApplyRate(rate float64) Amount {
	return roundHalfUp(float64(a) * rate)
}

// ApplyPercent multiplies by a percentage (10 for 10%) and rounds half-up.
func (a Amount) ApplyPercent(pct float64) Amount {
	return roundHalfUp(float64(a) * pct / 100)
}

// MulQuantity scales by a quantity and rounds half-up.
func (a Amount) MulQuantity(qty float64) Amount {
	return roundHalfUp(float64(a) * qty)
}

// Add returns a + b.
func (a Amount) Add(b Amount) Amount { return a + b }

// Sub returns a - b.
func (a Amount) Sub(b Amount) Amount { return a - b }

// IsNegative reports whether the amount is below zero.
func (a Amount) IsNegative() bool { return a < 0 }

// IsZero reports whether the amount is exactly zero.
func (a Amount) IsZero() bool { return a == 0 }

func (a Amount) String() string {
	return fmt.Sprintf("%.2f", a.Float())
}

// roundHalfUp rounds ties away from the lower cent: 0.5 -> 1, -0.5 -> 0.
// math.Floor(x+0.5) gives half-up for the positive amounts this engine
// deals in and stays consistent for negative adjustments (credit notes).
func roundHalfUp(raw float64) Amount {
	return Amount(int64(math.Floor(raw + 0.5)))
}
