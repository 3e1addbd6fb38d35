package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/voyara/voyara/internal/clock"
	invoicedomain "github.com/voyara/voyara/internal/invoice/domain"
	"github.com/voyara/voyara/internal/notification"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type recordingDispatcher struct {
	events []notification.Event
}

func (d *recordingDispatcher) Dispatch(ctx context.Context, event notification.Event) {
	d.events = append(d.events, event)
}

type fixture struct {
	svc        invoicedomain.Service
	db         *gorm.DB
	clock      *clock.FakeClock
	dispatcher *recordingDispatcher
}

func setupInvoice(t *testing.T) *fixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	err = db.AutoMigrate(
		&invoicedomain.Invoice{},
		&invoicedomain.InvoiceLineItem{},
		&invoicedomain.InvoicePayment{},
	)
	require.NoError(t, err)

	node, err := snowflake.NewNode(3)
	require.NoError(t, err)

	fc := clock.NewFakeClock(time.Date(2026, time.May, 10, 12, 0, 0, 0, time.UTC))
	dispatcher := &recordingDispatcher{}

	svc := NewService(Params{
		DB:         db,
		Log:        zap.NewNop(),
		GenID:      node,
		Clock:      fc,
		Dispatcher: dispatcher,
	})
	return &fixture{svc: svc, db: db, clock: fc, dispatcher: dispatcher}
}

func standardRequest() invoicedomain.CreateInvoiceRequest {
	return invoicedomain.CreateInvoiceRequest{
		CustomerName: "Atlas Reizen NV",
		Currency:     "EUR",
		LineItems: []invoicedomain.LineItemInput{
			{Description: "City tour package", Quantity: 3, UnitPrice: 4_999, TaxRate: 21, DiscountPct: 10},
		},
	}
}

func TestCreateInvoice_DerivedTotalsAndNumbering(t *testing.T) {
	f := setupInvoice(t)
	ctx := context.Background()

	first, err := f.svc.CreateInvoice(ctx, standardRequest())
	require.NoError(t, err)

	assert.Equal(t, "INV-2026-00001", first.Number)
	assert.Equal(t, invoicedomain.InvoiceTypeStandard, first.Type)
	assert.Equal(t, invoicedomain.InvoiceStatusPending, first.Status)
	assert.Equal(t, int64(13_497), first.Subtotal)
	assert.Equal(t, int64(2_834), first.TotalTax)
	assert.Equal(t, int64(16_331), first.Total)
	assert.Equal(t, int64(16_331), first.BalanceDue)
	assert.False(t, first.IsPaid)
	// default payment term of 30 days
	assert.Equal(t, f.clock.Now().AddDate(0, 0, 30), first.DueDate)

	require.Len(t, first.LineItems, 1)
	line := first.LineItems[0]
	assert.Equal(t, int64(14_997), line.Subtotal)
	assert.Equal(t, int64(1_500), line.DiscountAmount)
	assert.Equal(t, int64(13_497), line.SubtotalAfterDiscount)
	assert.Equal(t, int64(2_834), line.TaxAmount)
	assert.Equal(t, int64(16_331), line.Total)

	second, err := f.svc.CreateInvoice(ctx, standardRequest())
	require.NoError(t, err)
	assert.Equal(t, "INV-2026-00002", second.Number)

	fetched, err := f.svc.GetInvoice(ctx, first.Number)
	require.NoError(t, err)
	assert.Equal(t, first.Total, fetched.Total)
}

func TestCreateInvoice_Validation(t *testing.T) {
	f := setupInvoice(t)
	ctx := context.Background()

	req := standardRequest()
	req.CustomerName = " "
	_, err := f.svc.CreateInvoice(ctx, req)
	assert.ErrorIs(t, err, invoicedomain.ErrInvalidCustomer)

	req = standardRequest()
	req.Currency = "EURO"
	_, err = f.svc.CreateInvoice(ctx, req)
	assert.ErrorIs(t, err, invoicedomain.ErrInvalidCurrency)

	req = standardRequest()
	req.LineItems = nil
	_, err = f.svc.CreateInvoice(ctx, req)
	assert.ErrorIs(t, err, invoicedomain.ErrInvalidLineItem)

	req = standardRequest()
	req.LineItems[0].Quantity = 0
	_, err = f.svc.CreateInvoice(ctx, req)
	assert.ErrorIs(t, err, invoicedomain.ErrInvalidLineItem)

	req = standardRequest()
	req.LineItems[0].DiscountPct = 120
	_, err = f.svc.CreateInvoice(ctx, req)
	assert.ErrorIs(t, err, invoicedomain.ErrInvalidLineItem)

	req = standardRequest()
	req.Type = "GIFT_CARD"
	_, err = f.svc.CreateInvoice(ctx, req)
	assert.ErrorIs(t, err, invoicedomain.ErrInvalidType)

	req = standardRequest()
	req.Type = invoicedomain.InvoiceTypeProforma
	created, err := f.svc.CreateInvoice(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, invoicedomain.InvoiceTypeProforma, created.Type)
}

func TestAddPayment_StatusProgression(t *testing.T) {
	f := setupInvoice(t)
	ctx := context.Background()

	created, err := f.svc.CreateInvoice(ctx, standardRequest())
	require.NoError(t, err)

	partial, err := f.svc.AddPayment(ctx, invoicedomain.AddPaymentRequest{
		InvoiceNumber: created.Number,
		Amount:        10_000,
		Method:        "bank_transfer",
	})
	require.NoError(t, err)
	assert.Equal(t, invoicedomain.InvoiceStatusPartiallyPaid, partial.Status)
	assert.Equal(t, int64(6_331), partial.BalanceDue)
	assert.False(t, partial.IsPaid)

	paid, err := f.svc.AddPayment(ctx, invoicedomain.AddPaymentRequest{
		InvoiceNumber: created.Number,
		Amount:        6_331,
		Method:        "bank_transfer",
	})
	require.NoError(t, err)
	assert.Equal(t, invoicedomain.InvoiceStatusPaid, paid.Status)
	assert.Zero(t, paid.BalanceDue)
	assert.True(t, paid.IsPaid)

	events := paymentEvents(f.dispatcher)
	require.Len(t, events, 2)
	assert.Equal(t, created.Number, events[0].Payload["invoice_number"])
	assert.Equal(t, int64(6_331), events[0].Payload["new_balance"])
	assert.Equal(t, int64(0), events[1].Payload["new_balance"])
}

func TestAddPayment_RejectsOverpayment(t *testing.T) {
	f := setupInvoice(t)
	ctx := context.Background()

	created, err := f.svc.CreateInvoice(ctx, standardRequest())
	require.NoError(t, err)

	_, err = f.svc.AddPayment(ctx, invoicedomain.AddPaymentRequest{
		InvoiceNumber: created.Number,
		Amount:        20_000,
		Method:        "bank_transfer",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, invoicedomain.ErrStateConflict)

	// The rejected payment leaves nothing behind.
	fetched, err := f.svc.GetInvoice(ctx, created.Number)
	require.NoError(t, err)
	assert.Equal(t, invoicedomain.InvoiceStatusPending, fetched.Status)
	assert.Empty(t, fetched.Payments)
	assert.Empty(t, paymentEvents(f.dispatcher))
}

func TestAddPayment_Errors(t *testing.T) {
	f := setupInvoice(t)
	ctx := context.Background()

	_, err := f.svc.AddPayment(ctx, invoicedomain.AddPaymentRequest{
		InvoiceNumber: "INV-2026-99999",
		Amount:        1_000,
		Method:        "bank_transfer",
	})
	assert.ErrorIs(t, err, invoicedomain.ErrInvoiceNotFound)

	created, err := f.svc.CreateInvoice(ctx, standardRequest())
	require.NoError(t, err)

	_, err = f.svc.AddPayment(ctx, invoicedomain.AddPaymentRequest{
		InvoiceNumber: created.Number,
		Amount:        0,
		Method:        "bank_transfer",
	})
	assert.ErrorIs(t, err, invoicedomain.ErrInvalidPayment)

	require.NoError(t, f.svc.CancelInvoice(ctx, created.Number))
	_, err = f.svc.AddPayment(ctx, invoicedomain.AddPaymentRequest{
		InvoiceNumber: created.Number,
		Amount:        1_000,
		Method:        "bank_transfer",
	})
	assert.ErrorIs(t, err, invoicedomain.ErrStateConflict)
}

func TestCancelInvoice(t *testing.T) {
	f := setupInvoice(t)
	ctx := context.Background()

	pending, err := f.svc.CreateInvoice(ctx, standardRequest())
	require.NoError(t, err)
	require.NoError(t, f.svc.CancelInvoice(ctx, pending.Number))

	fetched, err := f.svc.GetInvoice(ctx, pending.Number)
	require.NoError(t, err)
	assert.Equal(t, invoicedomain.InvoiceStatusCancelled, fetched.Status)

	// A paid invoice cannot be cancelled, only credited.
	paid, err := f.svc.CreateInvoice(ctx, standardRequest())
	require.NoError(t, err)
	_, err = f.svc.AddPayment(ctx, invoicedomain.AddPaymentRequest{
		InvoiceNumber: paid.Number,
		Amount:        paid.Total,
		Method:        "bank_transfer",
	})
	require.NoError(t, err)

	err = f.svc.CancelInvoice(ctx, paid.Number)
	require.Error(t, err)
	assert.ErrorIs(t, err, invoicedomain.ErrStateConflict)

	var stateErr *invoicedomain.StateError
	require.ErrorAs(t, err, &stateErr)
	assert.Equal(t, paid.Number, stateErr.InvoiceNumber)
	assert.Equal(t, invoicedomain.InvoiceStatusPaid, stateErr.Status)

	assert.ErrorIs(t, f.svc.CancelInvoice(ctx, "INV-2026-99999"), invoicedomain.ErrInvoiceNotFound)
}

func TestCreateCreditNote(t *testing.T) {
	f := setupInvoice(t)
	ctx := context.Background()

	original, err := f.svc.CreateInvoice(ctx, standardRequest())
	require.NoError(t, err)
	_, err = f.svc.AddPayment(ctx, invoicedomain.AddPaymentRequest{
		InvoiceNumber: original.Number,
		Amount:        original.Total,
		Method:        "bank_transfer",
	})
	require.NoError(t, err)

	note, err := f.svc.CreateCreditNote(ctx, invoicedomain.CreditNoteRequest{
		InvoiceNumber: original.Number,
		Reason:        "service not delivered",
		LineItems: []invoicedomain.LineItemInput{
			{Description: "City tour package refund", Quantity: 1, UnitPrice: 4_999, TaxRate: 21},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, invoicedomain.InvoiceTypeCreditNote, note.Type)
	assert.Equal(t, invoicedomain.InvoiceStatusPaid, note.Status)
	assert.Equal(t, original.ID.String(), note.ReferenceInvoiceID)
	assert.Equal(t, original.CustomerName, note.CustomerName)
	assert.Equal(t, fmt.Sprintf("INV-%d-00002", f.clock.Now().Year()), note.Number)
	// 4999 + 21% tax
	assert.Equal(t, int64(6_049), note.Total)

	_, err = f.svc.CreateCreditNote(ctx, invoicedomain.CreditNoteRequest{
		InvoiceNumber: "INV-2026-99999",
		LineItems: []invoicedomain.LineItemInput{
			{Description: "refund", Quantity: 1, UnitPrice: 1_000},
		},
	})
	assert.ErrorIs(t, err, invoicedomain.ErrInvoiceNotFound)
}

func paymentEvents(d *recordingDispatcher) []notification.Event {
	var out []notification.Event
	for _, e := range d.events {
		if e.Name == notification.EventInvoicePaymentReceived {
			out = append(out, e)
		}
	}
	return out
}
