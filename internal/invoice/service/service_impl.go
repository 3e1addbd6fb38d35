// Package service implements the invoice line-item engine.
package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/voyara/voyara/internal/audit/domain"
	"github.com/voyara/voyara/internal/clock"
	"github.com/voyara/voyara/internal/config"
	invoicedomain "github.com/voyara/voyara/internal/invoice/domain"
	"github.com/voyara/voyara/internal/notification"
	"github.com/voyara/voyara/pkg/db"
	"github.com/voyara/voyara/pkg/telemetry"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Metrics    *telemetry.Metrics
	Billing    *config.BillingConfigHolder
	AuditSvc   auditdomain.Service
	Dispatcher notification.Dispatcher
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	clock   clock.Clock
	metrics *telemetry.Metrics
	billing *config.BillingConfigHolder

	auditSvc   auditdomain.Service
	dispatcher notification.Dispatcher
}

func NewService(p Params) invoicedomain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("invoice.service"),
		genID:   p.GenID,
		clock:   p.Clock,
		metrics: p.Metrics,
		billing: p.Billing,

		auditSvc:   p.AuditSvc,
		dispatcher: p.Dispatcher,
	}
}

func (s *Service) CreateInvoice(ctx context.Context, req invoicedomain.CreateInvoiceRequest) (*invoicedomain.View, error) {
	invoiceType := req.Type
	if invoiceType == "" {
		invoiceType = invoicedomain.InvoiceTypeStandard
	}
	if !validInvoiceType(invoiceType) {
		return nil, invoicedomain.ErrInvalidType
	}
	if err := validateCreateRequest(req); err != nil {
		return nil, err
	}

	var partnerID *snowflake.ID
	if req.PartnerID != "" {
		id, err := snowflake.ParseString(req.PartnerID)
		if err != nil {
			return nil, invoicedomain.ErrInvalidCustomer
		}
		partnerID = &id
	}

	now := s.clock.Now()
	termDays := req.PaymentTermDays
	if termDays <= 0 {
		termDays = s.defaultPaymentTerm()
	}
	exchangeRate := req.ExchangeRate
	if exchangeRate == 0 {
		exchangeRate = 1
	}

	invoice := &invoicedomain.Invoice{
		ID:              s.genID.Generate(),
		Type:            invoiceType,
		PartnerID:       partnerID,
		CustomerName:    req.CustomerName,
		CustomerAddress: req.CustomerAddress,
		CustomerTaxID:   req.CustomerTaxID,
		Currency:        strings.ToUpper(req.Currency),
		ExchangeRate:    exchangeRate,
		PaymentTermDays: termDays,
		IssueDate:       now,
		DueDate:         now.AddDate(0, 0, termDays),
		Status:          invoicedomain.InvoiceStatusPending,
		Notes:           req.Notes,
		Year:            now.Year(),
		LineItems:       s.buildLineItems(req.LineItems, now),
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		number, sequence, err := s.nextNumber(ctx, tx, now.Year())
		if err != nil {
			return err
		}
		invoice.Number = number
		invoice.Sequence = sequence
		for i := range invoice.LineItems {
			invoice.LineItems[i].InvoiceID = invoice.ID
		}
		return tx.WithContext(ctx).Create(invoice).Error
	})
	if err != nil {
		return nil, err
	}

	s.metrics.ObserveInvoiceEvent("created", float64(invoice.Total().Cents())/100)
	s.emitAudit(ctx, "invoice.created", invoice.Number, map[string]any{
		"type":  string(invoice.Type),
		"total": invoice.Total().Cents(),
	})
	s.log.Info("invoice created",
		zap.String("number", invoice.Number),
		zap.String("type", string(invoice.Type)),
		zap.Int64("total", invoice.Total().Cents()),
	)
	return s.view(invoice), nil
}

func (s *Service) GetInvoice(ctx context.Context, number string) (*invoicedomain.View, error) {
	invoice, err := s.load(ctx, s.db, number, false)
	if err != nil {
		return nil, err
	}
	return s.view(invoice), nil
}

func (s *Service) AddPayment(ctx context.Context, req invoicedomain.AddPaymentRequest) (*invoicedomain.View, error) {
	if req.Amount <= 0 || req.Method == "" {
		return nil, invoicedomain.ErrInvalidPayment
	}
	receivedAt := req.ReceivedAt
	if receivedAt.IsZero() {
		receivedAt = s.clock.Now()
	}

	var invoice *invoicedomain.Invoice
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		loaded, err := s.load(ctx, tx, req.InvoiceNumber, true)
		if err != nil {
			return err
		}

		switch loaded.Status {
		case invoicedomain.InvoiceStatusCancelled, invoicedomain.InvoiceStatusRefunded:
			return &invoicedomain.StateError{
				InvoiceNumber: loaded.Number,
				Status:        loaded.Status,
				Attempted:     "add_payment",
			}
		}

		// A payment that would drive the balance negative is rejected; the
		// caller issues a credit note for the excess instead.
		balance := loaded.BalanceDue().Cents()
		if req.Amount > balance {
			return &invoicedomain.StateError{
				InvoiceNumber: loaded.Number,
				Status:        loaded.Status,
				Attempted:     "add_payment",
				Detail:        fmt.Sprintf("payment %d exceeds balance due %d", req.Amount, balance),
			}
		}

		now := s.clock.Now()
		payment := invoicedomain.InvoicePayment{
			ID:         s.genID.Generate(),
			InvoiceID:  loaded.ID,
			Amount:     req.Amount,
			Method:     req.Method,
			Reference:  req.Reference,
			ReceivedAt: receivedAt,
			CreatedAt:  now,
		}
		if err := tx.WithContext(ctx).Create(&payment).Error; err != nil {
			return err
		}
		loaded.Payments = append(loaded.Payments, payment)

		status := recomputeStatus(loaded)
		if err := tx.WithContext(ctx).Exec(
			`UPDATE invoices SET status = ?, updated_at = ? WHERE id = ?`,
			status,
			now,
			loaded.ID,
		).Error; err != nil {
			return err
		}
		loaded.Status = status
		invoice = loaded
		return nil
	})
	if err != nil {
		return nil, err
	}

	newBalance := invoice.BalanceDue().Cents()
	s.dispatcher.Dispatch(ctx, notification.Event{
		Name:       notification.EventInvoicePaymentReceived,
		OccurredAt: s.clock.Now(),
		Payload: map[string]any{
			"invoice_number": invoice.Number,
			"amount":         req.Amount,
			"new_balance":    newBalance,
		},
	})
	s.metrics.ObserveInvoiceEvent("payment_received", float64(req.Amount)/100)
	s.emitAudit(ctx, "invoice.payment_received", invoice.Number, map[string]any{
		"amount":      req.Amount,
		"new_balance": newBalance,
	})
	return s.view(invoice), nil
}

func (s *Service) CancelInvoice(ctx context.Context, number string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		invoice, err := s.load(ctx, tx, number, true)
		if err != nil {
			return err
		}

		switch invoice.Status {
		case invoicedomain.InvoiceStatusPaid,
			invoicedomain.InvoiceStatusCancelled,
			invoicedomain.InvoiceStatusRefunded:
			return &invoicedomain.StateError{
				InvoiceNumber: invoice.Number,
				Status:        invoice.Status,
				Attempted:     "cancel",
			}
		}

		return tx.WithContext(ctx).Exec(
			`UPDATE invoices SET status = ?, updated_at = ? WHERE id = ?`,
			invoicedomain.InvoiceStatusCancelled,
			s.clock.Now(),
			invoice.ID,
		).Error
	})
	if err != nil {
		return err
	}

	s.metrics.ObserveInvoiceEvent("cancelled", 0)
	s.emitAudit(ctx, "invoice.cancelled", number, nil)
	return nil
}

// CreateCreditNote issues a self-settling offsetting invoice against an
// existing one. Credit notes are born PAID; they change no balance on the
// original row, they document the compensation.
func (s *Service) CreateCreditNote(ctx context.Context, req invoicedomain.CreditNoteRequest) (*invoicedomain.View, error) {
	if err := validateLineItems(req.LineItems); err != nil {
		return nil, err
	}

	var note *invoicedomain.Invoice
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		original, err := s.load(ctx, tx, req.InvoiceNumber, true)
		if err != nil {
			return err
		}
		if original.Status == invoicedomain.InvoiceStatusCancelled {
			return &invoicedomain.StateError{
				InvoiceNumber: original.Number,
				Status:        original.Status,
				Attempted:     "create_credit_note",
			}
		}

		now := s.clock.Now()
		number, sequence, err := s.nextNumber(ctx, tx, now.Year())
		if err != nil {
			return err
		}

		originalID := original.ID
		note = &invoicedomain.Invoice{
			ID:                 s.genID.Generate(),
			Number:             number,
			Sequence:           sequence,
			Year:               now.Year(),
			Type:               invoicedomain.InvoiceTypeCreditNote,
			PartnerID:          original.PartnerID,
			CustomerName:       original.CustomerName,
			CustomerAddress:    original.CustomerAddress,
			CustomerTaxID:      original.CustomerTaxID,
			Currency:           original.Currency,
			ExchangeRate:       original.ExchangeRate,
			PaymentTermDays:    original.PaymentTermDays,
			IssueDate:          now,
			DueDate:            now,
			Status:             invoicedomain.InvoiceStatusPaid,
			Notes:              req.Reason,
			ReferenceInvoiceID: &originalID,
			LineItems:          s.buildLineItems(req.LineItems, now),
			CreatedAt:          now,
			UpdatedAt:          now,
		}
		for i := range note.LineItems {
			note.LineItems[i].InvoiceID = note.ID
		}
		return tx.WithContext(ctx).Create(note).Error
	})
	if err != nil {
		return nil, err
	}

	s.metrics.ObserveInvoiceEvent("credit_note_created", float64(note.Total().Cents())/100)
	s.emitAudit(ctx, "invoice.credit_note_created", note.Number, map[string]any{
		"original": req.InvoiceNumber,
		"total":    note.Total().Cents(),
	})
	s.log.Info("credit note created",
		zap.String("number", note.Number),
		zap.String("original", req.InvoiceNumber),
	)
	return s.view(note), nil
}

// load fetches the full aggregate. With forUpdate the invoice row is locked
// first so concurrent payments serialize on it.
func (s *Service) load(ctx context.Context, tx *gorm.DB, number string, forUpdate bool) (*invoicedomain.Invoice, error) {
	if forUpdate {
		var id snowflake.ID
		err := tx.WithContext(ctx).Raw(
			`SELECT id FROM invoices WHERE number = ?`+db.ForUpdate(tx),
			number,
		).Scan(&id).Error
		if err != nil {
			return nil, err
		}
		if id == 0 {
			return nil, invoicedomain.ErrInvoiceNotFound
		}
	}

	var invoice invoicedomain.Invoice
	err := tx.WithContext(ctx).
		Preload("LineItems", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Preload("Payments", func(db *gorm.DB) *gorm.DB { return db.Order("received_at ASC") }).
		Where("number = ?", number).
		First(&invoice).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, invoicedomain.ErrInvoiceNotFound
		}
		return nil, err
	}
	return &invoice, nil
}

// nextNumber allocates the next monotonic invoice number for the year. The
// MAX read runs inside the caller's transaction; the unique index on number
// backstops any dialect that lets two transactions read the same maximum.
func (s *Service) nextNumber(ctx context.Context, tx *gorm.DB, year int) (string, int64, error) {
	var max int64
	err := tx.WithContext(ctx).Raw(
		`SELECT COALESCE(MAX(sequence), 0) FROM invoices WHERE year = ?`+db.ForUpdate(tx),
		year,
	).Scan(&max).Error
	if err != nil {
		return "", 0, err
	}
	sequence := max + 1
	return fmt.Sprintf("%s-%d-%05d", s.numberPrefix(), year, sequence), sequence, nil
}

func (s *Service) buildLineItems(inputs []invoicedomain.LineItemInput, now time.Time) []invoicedomain.InvoiceLineItem {
	items := make([]invoicedomain.InvoiceLineItem, 0, len(inputs))
	for i, in := range inputs {
		items = append(items, invoicedomain.InvoiceLineItem{
			ID:          s.genID.Generate(),
			Position:    i + 1,
			ItemCode:    in.ItemCode,
			Description: in.Description,
			Quantity:    in.Quantity,
			UnitPrice:   in.UnitPrice,
			TaxRate:     in.TaxRate,
			DiscountPct: in.DiscountPct,
			CreatedAt:   now,
		})
	}
	return items
}

func (s *Service) view(invoice *invoicedomain.Invoice) *invoicedomain.View {
	lines := make([]invoicedomain.LineView, 0, len(invoice.LineItems))
	for _, li := range invoice.LineItems {
		lines = append(lines, invoicedomain.LineView{
			ItemCode:              li.ItemCode,
			Description:           li.Description,
			Quantity:              li.Quantity,
			UnitPrice:             li.UnitPrice,
			TaxRate:               li.TaxRate,
			DiscountPct:           li.DiscountPct,
			Subtotal:              li.Subtotal().Cents(),
			DiscountAmount:        li.DiscountAmount().Cents(),
			SubtotalAfterDiscount: li.SubtotalAfterDiscount().Cents(),
			TaxAmount:             li.TaxAmount().Cents(),
			Total:                 li.Total().Cents(),
		})
	}

	reference := ""
	if invoice.ReferenceInvoiceID != nil {
		reference = invoice.ReferenceInvoiceID.String()
	}

	return &invoicedomain.View{
		ID:                 invoice.ID,
		Number:             invoice.Number,
		Type:               invoice.Type,
		Status:             invoice.Status,
		CustomerName:       invoice.CustomerName,
		CustomerAddress:    invoice.CustomerAddress,
		CustomerTaxID:      invoice.CustomerTaxID,
		Currency:           invoice.Currency,
		IssueDate:          invoice.IssueDate,
		DueDate:            invoice.DueDate,
		Notes:              invoice.Notes,
		ReferenceInvoiceID: reference,
		LineItems:          lines,
		Payments:           invoice.Payments,
		TaxBreakdown:       invoice.TaxBreakdown(),
		Subtotal:           invoice.Subtotal().Cents(),
		TotalTax:           invoice.TotalTax().Cents(),
		Total:              invoice.Total().Cents(),
		AmountPaid:         invoice.AmountPaid().Cents(),
		BalanceDue:         invoice.BalanceDue().Cents(),
		IsPaid:             invoice.IsPaid(),
		IsOverdue:          invoice.IsOverdue(s.clock.Now()),
	}
}

func recomputeStatus(invoice *invoicedomain.Invoice) invoicedomain.InvoiceStatus {
	switch {
	case invoice.BalanceDue().Cents() <= 0:
		return invoicedomain.InvoiceStatusPaid
	case len(invoice.Payments) > 0:
		return invoicedomain.InvoiceStatusPartiallyPaid
	default:
		return invoicedomain.InvoiceStatusPending
	}
}

func (s *Service) emitAudit(ctx context.Context, action, number string, metadata map[string]any) {
	if s.auditSvc == nil {
		return
	}
	if err := s.auditSvc.AuditLog(ctx, "system", "invoice-engine", action, "invoice", number, metadata); err != nil {
		s.log.Warn("audit write failed", zap.String("action", action), zap.Error(err))
	}
}

func (s *Service) numberPrefix() string {
	if s.billing == nil {
		return config.DefaultBillingConfig().InvoiceNumPrefix
	}
	return s.billing.Current().InvoiceNumPrefix
}

func (s *Service) defaultPaymentTerm() int {
	if s.billing == nil {
		return config.DefaultBillingConfig().DefaultPaymentTerm
	}
	return s.billing.Current().DefaultPaymentTerm
}

func validInvoiceType(t invoicedomain.InvoiceType) bool {
	switch t {
	case invoicedomain.InvoiceTypeStandard,
		invoicedomain.InvoiceTypeProforma,
		invoicedomain.InvoiceTypeCreditNote,
		invoicedomain.InvoiceTypeDebitNote,
		invoicedomain.InvoiceTypeReceipt:
		return true
	default:
		return false
	}
}

func validateCreateRequest(req invoicedomain.CreateInvoiceRequest) error {
	if strings.TrimSpace(req.CustomerName) == "" {
		return invoicedomain.ErrInvalidCustomer
	}
	if len(req.Currency) != 3 {
		return invoicedomain.ErrInvalidCurrency
	}
	return validateLineItems(req.LineItems)
}

func validateLineItems(items []invoicedomain.LineItemInput) error {
	if len(items) == 0 {
		return invoicedomain.ErrInvalidLineItem
	}
	for _, li := range items {
		if li.Quantity <= 0 || li.UnitPrice <= 0 {
			return invoicedomain.ErrInvalidLineItem
		}
		if li.DiscountPct < 0 || li.DiscountPct > 100 {
			return invoicedomain.ErrInvalidLineItem
		}
		if li.TaxRate < 0 {
			return invoicedomain.ErrInvalidLineItem
		}
		if strings.TrimSpace(li.Description) == "" {
			return invoicedomain.ErrInvalidLineItem
		}
	}
	return nil
}
