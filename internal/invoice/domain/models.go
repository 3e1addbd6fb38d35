// Package domain contains the invoice aggregate and its derived monetary
// arithmetic. Line-item and invoice totals are never stored; every read
// recomputes them from the line inputs so no redundant figure can drift.
package domain

import (
	"sort"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/voyara/voyara/pkg/money"
)

// InvoiceType distinguishes the fiscal document kinds.
type InvoiceType string

const (
	InvoiceTypeStandard   InvoiceType = "STANDARD"
	InvoiceTypeProforma   InvoiceType = "PROFORMA"
	InvoiceTypeCreditNote InvoiceType = "CREDIT_NOTE"
	InvoiceTypeDebitNote  InvoiceType = "DEBIT_NOTE"
	InvoiceTypeReceipt    InvoiceType = "RECEIPT"
)

// InvoiceStatus is the stored lifecycle state. Overdue is derived from the
// due date at read time, never written.
type InvoiceStatus string

const (
	InvoiceStatusDraft         InvoiceStatus = "DRAFT"
	InvoiceStatusPending       InvoiceStatus = "PENDING"
	InvoiceStatusPaid          InvoiceStatus = "PAID"
	InvoiceStatusPartiallyPaid InvoiceStatus = "PARTIALLY_PAID"
	InvoiceStatusCancelled     InvoiceStatus = "CANCELLED"
	InvoiceStatusRefunded      InvoiceStatus = "REFUNDED"
)

// Invoice is the aggregate root owning ordered line items and payments.
type Invoice struct {
	ID       snowflake.ID `json:"id" gorm:"primaryKey"`
	Number   string       `json:"number" gorm:"type:text;not null;uniqueIndex"`
	Sequence int64        `json:"-" gorm:"not null"`
	Year     int          `json:"-" gorm:"not null;index"`
	Type     InvoiceType  `json:"type" gorm:"type:text;not null"`

	PartnerID       *snowflake.ID `json:"partner_id,omitempty" gorm:"index"`
	CustomerName    string        `json:"customer_name" gorm:"type:text;not null"`
	CustomerAddress string        `json:"customer_address,omitempty" gorm:"type:text"`
	CustomerTaxID   string        `json:"customer_tax_id,omitempty" gorm:"type:text"`

	Currency        string  `json:"currency" gorm:"type:text;not null"`
	ExchangeRate    float64 `json:"exchange_rate" gorm:"not null;default:1"`
	PaymentTermDays int     `json:"payment_term_days" gorm:"not null"`

	IssueDate time.Time     `json:"issue_date" gorm:"not null"`
	DueDate   time.Time     `json:"due_date" gorm:"not null;index"`
	Status    InvoiceStatus `json:"status" gorm:"type:text;not null;index"`
	Notes     string        `json:"notes,omitempty" gorm:"type:text"`

	// Credit and debit notes reference the invoice they offset.
	ReferenceInvoiceID *snowflake.ID `json:"reference_invoice_id,omitempty"`

	LineItems []InvoiceLineItem `json:"line_items" gorm:"foreignKey:InvoiceID"`
	Payments  []InvoicePayment  `json:"payments" gorm:"foreignKey:InvoiceID"`

	CreatedAt time.Time `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Invoice) TableName() string { return "invoices" }

// InvoiceLineItem stores only the inputs of the line arithmetic. UnitPrice
// is cents; Quantity may be fractional (nights, person-days).
type InvoiceLineItem struct {
	ID        snowflake.ID `json:"id" gorm:"primaryKey"`
	InvoiceID snowflake.ID `json:"invoice_id" gorm:"not null;index"`
	Position  int          `json:"position" gorm:"not null"`

	ItemCode    string  `json:"item_code,omitempty" gorm:"type:text"`
	Description string  `json:"description" gorm:"type:text;not null"`
	Quantity    float64 `json:"quantity" gorm:"not null"`
	UnitPrice   int64   `json:"unit_price" gorm:"not null"`
	TaxRate     float64 `json:"tax_rate" gorm:"not null"`
	DiscountPct float64 `json:"discount_percentage" gorm:"not null;default:0"`

	CreatedAt time.Time `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (InvoiceLineItem) TableName() string { return "invoice_line_items" }

// InvoicePayment is one received payment against an invoice.
type InvoicePayment struct {
	ID        snowflake.ID `json:"id" gorm:"primaryKey"`
	InvoiceID snowflake.ID `json:"invoice_id" gorm:"not null;index"`

	Amount     int64     `json:"amount" gorm:"not null"`
	Method     string    `json:"method" gorm:"type:text;not null"`
	Reference  string    `json:"reference,omitempty" gorm:"type:text"`
	ReceivedAt time.Time `json:"received_at" gorm:"not null"`

	CreatedAt time.Time `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (InvoicePayment) TableName() string { return "invoice_payments" }

// Subtotal is quantity times unit price, rounded independently.
func (li InvoiceLineItem) Subtotal() money.Amount {
	return money.FromCents(li.UnitPrice).MulQuantity(li.Quantity)
}

// DiscountAmount is the discount over the subtotal, rounded independently.
func (li InvoiceLineItem) DiscountAmount() money.Amount {
	return li.Subtotal().ApplyPercent(li.DiscountPct)
}

// SubtotalAfterDiscount is the taxable base of the line.
func (li InvoiceLineItem) SubtotalAfterDiscount() money.Amount {
	return li.Subtotal().Sub(li.DiscountAmount())
}

// TaxAmount is the tax over the post-discount subtotal, rounded independently.
func (li InvoiceLineItem) TaxAmount() money.Amount {
	return li.SubtotalAfterDiscount().ApplyPercent(li.TaxRate)
}

// Total is the post-discount subtotal plus tax.
func (li InvoiceLineItem) Total() money.Amount {
	return li.SubtotalAfterDiscount().Add(li.TaxAmount())
}

// Subtotal sums each line's post-discount subtotal.
func (inv *Invoice) Subtotal() money.Amount {
	var sum money.Amount
	for _, li := range inv.LineItems {
		sum = sum.Add(li.SubtotalAfterDiscount())
	}
	return sum
}

// TotalTax sums each line's tax amount.
func (inv *Invoice) TotalTax() money.Amount {
	var sum money.Amount
	for _, li := range inv.LineItems {
		sum = sum.Add(li.TaxAmount())
	}
	return sum
}

// Total is subtotal plus total tax.
func (inv *Invoice) Total() money.Amount {
	return inv.Subtotal().Add(inv.TotalTax())
}

// AmountPaid sums the received payments.
func (inv *Invoice) AmountPaid() money.Amount {
	var sum money.Amount
	for _, p := range inv.Payments {
		sum = sum.Add(money.FromCents(p.Amount))
	}
	return sum
}

// BalanceDue is the total minus payments received to date.
func (inv *Invoice) BalanceDue() money.Amount {
	return inv.Total().Sub(inv.AmountPaid())
}

// IsPaid reports whether nothing remains due.
func (inv *Invoice) IsPaid() bool {
	return inv.BalanceDue().Cents() <= 0
}

// IsOverdue reports whether the due date has passed on an unpaid, live
// invoice.
func (inv *Invoice) IsOverdue(now time.Time) bool {
	if inv.IsPaid() {
		return false
	}
	switch inv.Status {
	case InvoiceStatusCancelled, InvoiceStatusRefunded, InvoiceStatusDraft:
		return false
	}
	return now.After(inv.DueDate)
}

// TaxGroup is one distinct tax rate's share of an invoice.
type TaxGroup struct {
	Rate          float64 `json:"rate"`
	TaxableAmount int64   `json:"taxable_amount"`
	TaxAmount     int64   `json:"tax_amount"`
}

// TaxBreakdown groups line items by distinct tax rate, ascending.
func (inv *Invoice) TaxBreakdown() []TaxGroup {
	byRate := map[float64]*TaxGroup{}
	for _, li := range inv.LineItems {
		group, ok := byRate[li.TaxRate]
		if !ok {
			group = &TaxGroup{Rate: li.TaxRate}
			byRate[li.TaxRate] = group
		}
		group.TaxableAmount += li.SubtotalAfterDiscount().Cents()
		group.TaxAmount += li.TaxAmount().Cents()
	}

	groups := make([]TaxGroup, 0, len(byRate))
	for _, group := range byRate {
		groups = append(groups, *group)
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].Rate < groups[j].Rate })
	return groups
}
