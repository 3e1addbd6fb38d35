package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLineItemArithmetic(t *testing.T) {
	// 3 x 49.99 at 21% tax with a 10% discount.
	li := InvoiceLineItem{
		Quantity:    3,
		UnitPrice:   4_999,
		TaxRate:     21,
		DiscountPct: 10,
	}

	assert.Equal(t, int64(14_997), li.Subtotal().Cents())
	assert.Equal(t, int64(1_500), li.DiscountAmount().Cents())
	assert.Equal(t, int64(13_497), li.SubtotalAfterDiscount().Cents())
	assert.Equal(t, int64(2_834), li.TaxAmount().Cents())
	assert.Equal(t, int64(16_331), li.Total().Cents())

	// total == subtotal_after_discount + tax, after independent rounding
	assert.Equal(t, li.Total(), li.SubtotalAfterDiscount().Add(li.TaxAmount()))
	assert.Equal(t, li.SubtotalAfterDiscount(), li.Subtotal().Sub(li.DiscountAmount()))
}

func TestInvoiceDerivedTotals(t *testing.T) {
	inv := &Invoice{
		Status: InvoiceStatusPending,
		LineItems: []InvoiceLineItem{
			{Quantity: 3, UnitPrice: 4_999, TaxRate: 21, DiscountPct: 10},
			{Quantity: 2, UnitPrice: 10_000, TaxRate: 9},
		},
		Payments: []InvoicePayment{
			{Amount: 10_000},
		},
	}

	// line 2: subtotal 20000, tax 1800, total 21800
	assert.Equal(t, int64(33_497), inv.Subtotal().Cents())
	assert.Equal(t, int64(4_634), inv.TotalTax().Cents())
	assert.Equal(t, int64(38_131), inv.Total().Cents())
	assert.Equal(t, int64(10_000), inv.AmountPaid().Cents())
	assert.Equal(t, int64(28_131), inv.BalanceDue().Cents())
	assert.False(t, inv.IsPaid())

	assert.Equal(t, inv.Total(), inv.Subtotal().Add(inv.TotalTax()))
	assert.Equal(t, inv.BalanceDue(), inv.Total().Sub(inv.AmountPaid()))
}

func TestTaxBreakdownGroupsByRate(t *testing.T) {
	inv := &Invoice{
		LineItems: []InvoiceLineItem{
			{Quantity: 1, UnitPrice: 10_000, TaxRate: 21},
			{Quantity: 1, UnitPrice: 5_000, TaxRate: 9},
			{Quantity: 2, UnitPrice: 2_500, TaxRate: 21},
		},
	}

	groups := inv.TaxBreakdown()
	require := assert.New(t)
	require.Len(groups, 2)

	require.Equal(9.0, groups[0].Rate)
	require.Equal(int64(5_000), groups[0].TaxableAmount)
	require.Equal(int64(450), groups[0].TaxAmount)

	require.Equal(21.0, groups[1].Rate)
	require.Equal(int64(15_000), groups[1].TaxableAmount)
	require.Equal(int64(3_150), groups[1].TaxAmount)
}

func TestIsOverdue(t *testing.T) {
	now := time.Date(2026, time.June, 1, 0, 0, 0, 0, time.UTC)
	inv := &Invoice{
		Status:  InvoiceStatusPending,
		DueDate: now.Add(-24 * time.Hour),
		LineItems: []InvoiceLineItem{
			{Quantity: 1, UnitPrice: 10_000},
		},
	}
	assert.True(t, inv.IsOverdue(now))

	inv.Status = InvoiceStatusCancelled
	assert.False(t, inv.IsOverdue(now))

	inv.Status = InvoiceStatusPending
	inv.Payments = []InvoicePayment{{Amount: 10_000}}
	assert.False(t, inv.IsOverdue(now))

	inv.Payments = nil
	inv.DueDate = now.Add(24 * time.Hour)
	assert.False(t, inv.IsOverdue(now))
}
