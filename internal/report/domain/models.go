// Package domain defines the report value objects. Reports are fully
// serializable and self-contained: the external renderer gets primitives,
// never live domain objects.
package domain

import (
	"context"
	"time"
)

// Service builds the financial reports.
type Service interface {
	AgingReport(ctx context.Context, asOf time.Time) (*AgingReport, error)
	RevenueReport(ctx context.Context, periodStart, periodEnd time.Time) (*RevenueReport, error)
}

// AgingEntry is one open invoice inside an aging bucket.
type AgingEntry struct {
	InvoiceNumber string    `json:"invoice_number"`
	CustomerName  string    `json:"customer_name"`
	DueDate       time.Time `json:"due_date"`
	DaysOverdue   int       `json:"days_overdue"`
	BalanceDue    int64     `json:"balance_due"`
}

// AgingBucketTotal is one configured bucket with its matching invoices.
type AgingBucketTotal struct {
	Label        string       `json:"label"`
	InvoiceCount int          `json:"invoice_count"`
	Outstanding  int64        `json:"outstanding"`
	Entries      []AgingEntry `json:"entries"`
}

// AgingReport buckets every open invoice by days overdue.
type AgingReport struct {
	AsOf             time.Time          `json:"as_of"`
	Buckets          []AgingBucketTotal `json:"buckets"`
	TotalOutstanding int64              `json:"total_outstanding"`
	OpenInvoices     int                `json:"open_invoices"`
}

// RevenueReport summarizes one period's billing and payout activity.
type RevenueReport struct {
	PeriodStart time.Time `json:"period_start"`
	PeriodEnd   time.Time `json:"period_end"`

	InvoicedTotal    int64 `json:"invoiced_total"`
	InvoiceCount     int   `json:"invoice_count"`
	CollectedTotal   int64 `json:"collected_total"`
	OutstandingTotal int64 `json:"outstanding_total"`

	CommissionPaidTotal int64 `json:"commission_paid_total"`
	PaymentBatchCount   int   `json:"payment_batch_count"`
}
