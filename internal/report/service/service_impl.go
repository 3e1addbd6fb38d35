// Package service builds the aging and revenue reports. Invoice totals are
// derived, so the reports load the aggregates and compute in memory rather
// than trusting any stored figure.
package service

import (
	"context"
	"time"

	"github.com/voyara/voyara/internal/clock"
	"github.com/voyara/voyara/internal/config"
	invoicedomain "github.com/voyara/voyara/internal/invoice/domain"
	payoutdomain "github.com/voyara/voyara/internal/payout/domain"
	reportdomain "github.com/voyara/voyara/internal/report/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	Clock   clock.Clock
	Billing *config.BillingConfigHolder
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	clock   clock.Clock
	billing *config.BillingConfigHolder
}

func NewService(p Params) reportdomain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("report.service"),
		clock:   p.Clock,
		billing: p.Billing,
	}
}

// openStatuses are the invoice states that carry receivables.
var openStatuses = []invoicedomain.InvoiceStatus{
	invoicedomain.InvoiceStatusPending,
	invoicedomain.InvoiceStatusPartiallyPaid,
}

func (s *Service) AgingReport(ctx context.Context, asOf time.Time) (*reportdomain.AgingReport, error) {
	if asOf.IsZero() {
		asOf = s.clock.Now()
	}

	var invoices []invoicedomain.Invoice
	err := s.db.WithContext(ctx).
		Preload("LineItems").
		Preload("Payments").
		Where("status IN ?", openStatuses).
		Order("due_date ASC").
		Find(&invoices).Error
	if err != nil {
		return nil, err
	}

	buckets := s.bucketDefs()
	report := &reportdomain.AgingReport{
		AsOf:    asOf,
		Buckets: make([]reportdomain.AgingBucketTotal, len(buckets)),
	}
	for i, b := range buckets {
		report.Buckets[i] = reportdomain.AgingBucketTotal{Label: b.Label}
	}

	for _, inv := range invoices {
		balance := inv.BalanceDue().Cents()
		if balance <= 0 {
			continue
		}
		days := daysOverdue(inv.DueDate, asOf)
		idx := bucketIndex(buckets, days)
		if idx < 0 {
			s.log.Warn("no aging bucket covers invoice",
				zap.String("number", inv.Number),
				zap.Int("days_overdue", days),
			)
			continue
		}

		bucket := &report.Buckets[idx]
		bucket.InvoiceCount++
		bucket.Outstanding += balance
		bucket.Entries = append(bucket.Entries, reportdomain.AgingEntry{
			InvoiceNumber: inv.Number,
			CustomerName:  inv.CustomerName,
			DueDate:       inv.DueDate,
			DaysOverdue:   days,
			BalanceDue:    balance,
		})
		report.TotalOutstanding += balance
		report.OpenInvoices++
	}
	return report, nil
}

func (s *Service) RevenueReport(ctx context.Context, periodStart, periodEnd time.Time) (*reportdomain.RevenueReport, error) {
	report := &reportdomain.RevenueReport{
		PeriodStart: periodStart,
		PeriodEnd:   periodEnd,
	}

	var invoices []invoicedomain.Invoice
	err := s.db.WithContext(ctx).
		Preload("LineItems").
		Preload("Payments").
		Where("issue_date >= ? AND issue_date <= ?", periodStart, periodEnd).
		Where("type <> ?", invoicedomain.InvoiceTypeCreditNote).
		Where("status <> ?", invoicedomain.InvoiceStatusCancelled).
		Find(&invoices).Error
	if err != nil {
		return nil, err
	}
	for _, inv := range invoices {
		report.InvoicedTotal += inv.Total().Cents()
		report.OutstandingTotal += inv.BalanceDue().Cents()
		report.InvoiceCount++
	}

	// Collected counts every payment received in the period regardless of
	// when its invoice was issued.
	err = s.db.WithContext(ctx).
		Model(&invoicedomain.InvoicePayment{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("received_at >= ? AND received_at <= ?", periodStart, periodEnd).
		Scan(&report.CollectedTotal).Error
	if err != nil {
		return nil, err
	}

	var payments []payoutdomain.CommissionPayment
	err = s.db.WithContext(ctx).
		Where("processed_at >= ? AND processed_at <= ?", periodStart, periodEnd).
		Find(&payments).Error
	if err != nil {
		return nil, err
	}
	batches := map[string]struct{}{}
	for _, p := range payments {
		report.CommissionPaidTotal += p.TotalAmount
		batches[p.BatchID] = struct{}{}
	}
	report.PaymentBatchCount = len(batches)

	return report, nil
}

func (s *Service) bucketDefs() []config.AgingBucket {
	if s.billing == nil {
		return config.DefaultBillingConfig().AgingBuckets
	}
	return s.billing.Current().AgingBuckets
}

// daysOverdue is whole days past the due date, floored at zero for invoices
// not yet due.
func daysOverdue(due, asOf time.Time) int {
	if !asOf.After(due) {
		return 0
	}
	return int(asOf.Sub(due).Hours() / 24)
}

func bucketIndex(buckets []config.AgingBucket, days int) int {
	for i, b := range buckets {
		if days < b.MinDays {
			continue
		}
		if b.MaxDays == nil || days <= *b.MaxDays {
			return i
		}
	}
	return -1
}
