package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/voyara/voyara/internal/clock"
	invoicedomain "github.com/voyara/voyara/internal/invoice/domain"
	invoiceservice "github.com/voyara/voyara/internal/invoice/service"
	"github.com/voyara/voyara/internal/notification"
	payoutdomain "github.com/voyara/voyara/internal/payout/domain"
	reportdomain "github.com/voyara/voyara/internal/report/domain"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type nopDispatcher struct{}

func (nopDispatcher) Dispatch(ctx context.Context, event notification.Event) {}

type fixture struct {
	reports  reportdomain.Service
	invoices invoicedomain.Service
	db       *gorm.DB
	node     *snowflake.Node
	clock    *clock.FakeClock
}

func setupReport(t *testing.T) *fixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	err = db.AutoMigrate(
		&invoicedomain.Invoice{},
		&invoicedomain.InvoiceLineItem{},
		&invoicedomain.InvoicePayment{},
		&payoutdomain.CommissionPayment{},
	)
	require.NoError(t, err)

	node, err := snowflake.NewNode(4)
	require.NoError(t, err)
	fc := clock.NewFakeClock(time.Date(2026, time.February, 1, 8, 0, 0, 0, time.UTC))

	invoiceSvc := invoiceservice.NewService(invoiceservice.Params{
		DB:         db,
		Log:        zap.NewNop(),
		GenID:      node,
		Clock:      fc,
		Dispatcher: nopDispatcher{},
	})
	reportSvc := NewService(Params{
		DB:    db,
		Log:   zap.NewNop(),
		Clock: fc,
	})

	return &fixture{reports: reportSvc, invoices: invoiceSvc, db: db, node: node, clock: fc}
}

// createInvoice issues a single-line invoice for 100.00 plus 21% tax
// (total 121.00) due 30 days out.
func (f *fixture) createInvoice(t *testing.T, customer string) *invoicedomain.View {
	t.Helper()
	view, err := f.invoices.CreateInvoice(context.Background(), invoicedomain.CreateInvoiceRequest{
		CustomerName: customer,
		Currency:     "EUR",
		LineItems: []invoicedomain.LineItemInput{
			{Description: "Guided excursion", Quantity: 1, UnitPrice: 10_000, TaxRate: 21},
		},
	})
	require.NoError(t, err)
	return view
}

func TestAgingReport_BucketsOpenInvoices(t *testing.T) {
	f := setupReport(t)
	ctx := context.Background()
	start := f.clock.Now()

	overdue := f.createInvoice(t, "Atlas Reizen NV")
	settled := f.createInvoice(t, "Coastal Voyages BV")
	_, err := f.invoices.AddPayment(ctx, invoicedomain.AddPaymentRequest{
		InvoiceNumber: settled.Number,
		Amount:        settled.Total,
		Method:        "bank_transfer",
	})
	require.NoError(t, err)

	// A later invoice that is not yet due at the report date.
	f.clock.Set(start.AddDate(0, 0, 40))
	current := f.createInvoice(t, "Alpine Tours GmbH")

	// 65 days after issue: the first invoice is 35 days overdue, the later
	// one is still current.
	asOf := start.AddDate(0, 0, 65)
	report, err := f.reports.AgingReport(ctx, asOf)
	require.NoError(t, err)

	assert.Equal(t, 2, report.OpenInvoices)
	assert.Equal(t, int64(24_200), report.TotalOutstanding)

	byLabel := map[string]bucketSummary{}
	for _, b := range report.Buckets {
		byLabel[b.Label] = bucketSummary{count: b.InvoiceCount, outstanding: b.Outstanding, entries: b.Entries}
	}

	require.Contains(t, byLabel, "current")
	assert.Equal(t, 1, byLabel["current"].count)
	require.Len(t, byLabel["current"].entries, 1)
	assert.Equal(t, current.Number, byLabel["current"].entries[0].InvoiceNumber)
	assert.Zero(t, byLabel["current"].entries[0].DaysOverdue)

	require.Contains(t, byLabel, "31-60")
	assert.Equal(t, 1, byLabel["31-60"].count)
	require.Len(t, byLabel["31-60"].entries, 1)
	assert.Equal(t, overdue.Number, byLabel["31-60"].entries[0].InvoiceNumber)
	assert.Equal(t, 35, byLabel["31-60"].entries[0].DaysOverdue)
	assert.Equal(t, int64(12_100), byLabel["31-60"].entries[0].BalanceDue)

	assert.Zero(t, byLabel["1-30"].count)
	assert.Zero(t, byLabel["61-90"].count)
	assert.Zero(t, byLabel["90+"].count)
}

type bucketSummary struct {
	count       int
	outstanding int64
	entries     []reportdomain.AgingEntry
}

func TestRevenueReport(t *testing.T) {
	f := setupReport(t)
	ctx := context.Background()
	start := f.clock.Now()

	f.createInvoice(t, "Atlas Reizen NV")
	collected := f.createInvoice(t, "Coastal Voyages BV")
	_, err := f.invoices.AddPayment(ctx, invoicedomain.AddPaymentRequest{
		InvoiceNumber: collected.Number,
		Amount:        collected.Total,
		Method:        "bank_transfer",
	})
	require.NoError(t, err)

	// Outside the reporting period.
	f.clock.Set(start.AddDate(0, 0, 40))
	f.createInvoice(t, "Alpine Tours GmbH")

	payment := &payoutdomain.CommissionPayment{
		ID:          f.node.Generate(),
		BatchID:     "01JB0TEST0000000000000000",
		PartnerID:   f.node.Generate(),
		TotalAmount: 50_000,
		Currency:    "EUR",
		Method:      payoutdomain.PaymentMethodBankTransfer,
		PeriodStart: start.AddDate(0, 0, -30),
		PeriodEnd:   start,
		Status:      payoutdomain.PaymentStatusProcessed,
		ProcessedAt: start,
		ProcessedBy: "finance@voyara.example",
		GatewayRef:  "ref-1",
	}
	require.NoError(t, f.db.Create(payment).Error)

	report, err := f.reports.RevenueReport(ctx, start.Add(-time.Hour), start.Add(time.Hour))
	require.NoError(t, err)

	assert.Equal(t, 2, report.InvoiceCount)
	assert.Equal(t, int64(24_200), report.InvoicedTotal)
	assert.Equal(t, int64(12_100), report.CollectedTotal)
	assert.Equal(t, int64(12_100), report.OutstandingTotal)
	assert.Equal(t, int64(50_000), report.CommissionPaidTotal)
	assert.Equal(t, 1, report.PaymentBatchCount)
}
