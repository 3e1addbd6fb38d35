package domain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
)

// Service is the invoice engine contract.
type Service interface {
	CreateInvoice(ctx context.Context, req CreateInvoiceRequest) (*View, error)
	GetInvoice(ctx context.Context, number string) (*View, error)
	AddPayment(ctx context.Context, req AddPaymentRequest) (*View, error)
	CancelInvoice(ctx context.Context, number string) error
	CreateCreditNote(ctx context.Context, req CreditNoteRequest) (*View, error)
}

// LineItemInput is one line of a new invoice.
type LineItemInput struct {
	ItemCode    string  `json:"item_code,omitempty"`
	Description string  `json:"description"`
	Quantity    float64 `json:"quantity"`
	UnitPrice   int64   `json:"unit_price"`
	TaxRate     float64 `json:"tax_rate"`
	DiscountPct float64 `json:"discount_percentage"`
}

// CreateInvoiceRequest defines a new invoice. The number is generated, never
// supplied.
type CreateInvoiceRequest struct {
	Type            InvoiceType     `json:"type,omitempty"`
	PartnerID       string          `json:"partner_id,omitempty"`
	CustomerName    string          `json:"customer_name"`
	CustomerAddress string          `json:"customer_address,omitempty"`
	CustomerTaxID   string          `json:"customer_tax_id,omitempty"`
	Currency        string          `json:"currency"`
	ExchangeRate    float64         `json:"exchange_rate,omitempty"`
	PaymentTermDays int             `json:"payment_term_days,omitempty"`
	Notes           string          `json:"notes,omitempty"`
	LineItems       []LineItemInput `json:"line_items"`
}

// AddPaymentRequest records a received payment against an invoice.
type AddPaymentRequest struct {
	InvoiceNumber string    `json:"invoice_number"`
	Amount        int64     `json:"amount"`
	Method        string    `json:"method"`
	Reference     string    `json:"reference,omitempty"`
	ReceivedAt    time.Time `json:"received_at,omitempty"`
}

// CreditNoteRequest issues an offsetting credit note against an existing
// invoice. The caller supplies the reduced or offsetting lines.
type CreditNoteRequest struct {
	InvoiceNumber string          `json:"invoice_number"`
	Reason        string          `json:"reason,omitempty"`
	LineItems     []LineItemInput `json:"line_items"`
}

// LineView is one line item with its derived figures materialized for the
// caller. The stored row keeps only the inputs.
type LineView struct {
	ItemCode              string  `json:"item_code,omitempty"`
	Description           string  `json:"description"`
	Quantity              float64 `json:"quantity"`
	UnitPrice             int64   `json:"unit_price"`
	TaxRate               float64 `json:"tax_rate"`
	DiscountPct           float64 `json:"discount_percentage"`
	Subtotal              int64   `json:"subtotal"`
	DiscountAmount        int64   `json:"discount_amount"`
	SubtotalAfterDiscount int64   `json:"subtotal_after_discount"`
	TaxAmount             int64   `json:"tax_amount"`
	Total                 int64   `json:"total"`
}

// View is the serializable invoice shape handed to callers and renderers.
type View struct {
	ID                 snowflake.ID     `json:"id"`
	Number             string           `json:"number"`
	Type               InvoiceType      `json:"type"`
	Status             InvoiceStatus    `json:"status"`
	CustomerName       string           `json:"customer_name"`
	CustomerAddress    string           `json:"customer_address,omitempty"`
	CustomerTaxID      string           `json:"customer_tax_id,omitempty"`
	Currency           string           `json:"currency"`
	IssueDate          time.Time        `json:"issue_date"`
	DueDate            time.Time        `json:"due_date"`
	Notes              string           `json:"notes,omitempty"`
	ReferenceInvoiceID string           `json:"reference_invoice_id,omitempty"`
	LineItems          []LineView       `json:"line_items"`
	Payments           []InvoicePayment `json:"payments"`
	TaxBreakdown       []TaxGroup       `json:"tax_breakdown"`

	Subtotal   int64 `json:"subtotal"`
	TotalTax   int64 `json:"total_tax"`
	Total      int64 `json:"total"`
	AmountPaid int64 `json:"amount_paid"`
	BalanceDue int64 `json:"balance_due"`
	IsPaid     bool  `json:"is_paid"`
	IsOverdue  bool  `json:"is_overdue"`
}

var (
	ErrInvoiceNotFound = errors.New("invoice_not_found")
	ErrInvalidType     = errors.New("invalid_invoice_type")
	ErrInvalidCustomer = errors.New("invalid_customer")
	ErrInvalidCurrency = errors.New("invalid_currency")
	ErrInvalidLineItem = errors.New("invalid_line_item")
	ErrInvalidPayment  = errors.New("invalid_payment")
	ErrStateConflict   = errors.New("state_conflict")
)

// StateError reports an operation attempted against an invoice in an
// incompatible lifecycle state, with enough detail for the caller to pick a
// compensating action (credit note, refund).
type StateError struct {
	InvoiceNumber string
	Status        InvoiceStatus
	Attempted     string
	Detail        string
}

func (e *StateError) Error() string {
	msg := fmt.Sprintf("state_conflict: invoice %s is %s, cannot %s", e.InvoiceNumber, e.Status, e.Attempted)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

func (e *StateError) Is(target error) bool { return target == ErrStateConflict }
