// Package service implements the payout batch processor.
package service

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	auditdomain "github.com/voyara/voyara/internal/audit/domain"
	"github.com/voyara/voyara/internal/clock"
	commissiondomain "github.com/voyara/voyara/internal/commission/domain"
	"github.com/voyara/voyara/internal/config"
	"github.com/voyara/voyara/internal/notification"
	payoutdomain "github.com/voyara/voyara/internal/payout/domain"
	"github.com/voyara/voyara/pkg/db"
	"github.com/voyara/voyara/pkg/money"
	"github.com/voyara/voyara/pkg/repository"
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

	payments   repository.Repository[payoutdomain.CommissionPayment]
	auditSvc   auditdomain.Service
	dispatcher notification.Dispatcher
}

func NewService(p Params) payoutdomain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("payout.service"),
		genID:   p.GenID,
		clock:   p.Clock,
		metrics: p.Metrics,
		billing: p.Billing,

		payments:   repository.ProvideStore[payoutdomain.CommissionPayment](p.DB),
		auditSvc:   p.AuditSvc,
		dispatcher: p.Dispatcher,
	}
}

// ProcessBatch pays every requested partner its approved, unbatched
// commission for the period. Each partner is one transaction; a failure for
// one partner never aborts the rest of the run.
func (s *Service) ProcessBatch(ctx context.Context, req payoutdomain.BatchRequest) (*payoutdomain.BatchResult, error) {
	if len(req.PartnerIDs) == 0 {
		return nil, payoutdomain.ErrNoPartners
	}
	if req.PeriodStart.IsZero() || req.PeriodEnd.IsZero() || req.PeriodEnd.Before(req.PeriodStart) {
		return nil, payoutdomain.ErrInvalidPeriod
	}
	method := req.Method
	if method == "" {
		method = payoutdomain.PaymentMethodBankTransfer
	}

	batchID := ulid.Make().String()
	result := &payoutdomain.BatchResult{
		BatchID:     batchID,
		ProcessedAt: s.clock.Now(),
		Actor:       req.Actor,
	}

	retryBudget := s.retryBudget()
	for _, raw := range req.PartnerIDs {
		partnerID, err := snowflake.ParseString(raw)
		if err != nil {
			result.Partners = append(result.Partners, payoutdomain.PartnerResult{
				PartnerID: raw,
				Outcome:   payoutdomain.OutcomeFailed,
				Error:     payoutdomain.ErrInvalidPartner.Error(),
			})
			s.metrics.ObservePayoutPartner(string(payoutdomain.OutcomeFailed))
			continue
		}

		partnerResult := s.processPartnerWithRetry(ctx, batchID, partnerID, req, method, retryBudget)
		partnerResult.PartnerID = raw
		result.Partners = append(result.Partners, partnerResult)
		s.metrics.ObservePayoutPartner(string(partnerResult.Outcome))

		if partnerResult.Outcome == payoutdomain.OutcomePaid {
			result.TotalPaid += partnerResult.Amount
			s.dispatcher.Dispatch(ctx, notification.Event{
				Name:       notification.EventPayoutBatchProcessed,
				OccurredAt: s.clock.Now(),
				Payload: map[string]any{
					"batch_id":   batchID,
					"partner_id": raw,
					"amount":     partnerResult.Amount,
				},
			})
		}
	}

	s.metrics.ObservePayoutBatch("ok")
	if s.auditSvc != nil {
		if err := s.auditSvc.AuditLog(ctx, "user", req.Actor, "payout.batch_processed", "payout_batch", batchID, map[string]any{
			"partners":   len(req.PartnerIDs),
			"total_paid": result.TotalPaid,
		}); err != nil {
			s.log.Warn("audit write failed", zap.Error(err))
		}
	}
	s.log.Info("payout batch processed",
		zap.String("batch_id", batchID),
		zap.Int("partners", len(req.PartnerIDs)),
		zap.Int64("total_paid", result.TotalPaid),
	)
	return result, nil
}

func (s *Service) processPartnerWithRetry(
	ctx context.Context,
	batchID string,
	partnerID snowflake.ID,
	req payoutdomain.BatchRequest,
	method string,
	retryBudget int,
) payoutdomain.PartnerResult {
	var result payoutdomain.PartnerResult
	var err error
	for attempt := 0; attempt <= retryBudget; attempt++ {
		if attempt > 0 {
			time.Sleep(time.Duration(attempt) * 100 * time.Millisecond)
		}
		result, err = s.processPartner(ctx, batchID, partnerID, req, method)
		if err == nil || !db.IsTransient(err) {
			break
		}
		s.log.Warn("transient store error, retrying partner",
			zap.String("partner_id", partnerID.String()),
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)
	}
	if err != nil {
		s.log.Error("partner payout failed",
			zap.String("batch_id", batchID),
			zap.String("partner_id", partnerID.String()),
			zap.Error(err),
		)
		return payoutdomain.PartnerResult{
			Outcome: payoutdomain.OutcomeFailed,
			Error:   err.Error(),
		}
	}
	return result
}

// processPartner runs the select-aggregate-insert-update sequence as one
// transaction so calculations are never flipped to PAID without a matching
// payment row.
func (s *Service) processPartner(
	ctx context.Context,
	batchID string,
	partnerID snowflake.ID,
	req payoutdomain.BatchRequest,
	method string,
) (payoutdomain.PartnerResult, error) {
	var result payoutdomain.PartnerResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.lockPartner(ctx, tx, partnerID); err != nil {
			return err
		}

		var calcs []commissiondomain.CommissionCalculation
		if err := tx.WithContext(ctx).Raw(
			`SELECT * FROM commission_calculations
			 WHERE partner_id = ? AND status = ? AND payment_batch_id IS NULL
			   AND booking_date >= ? AND booking_date <= ?`+db.ForUpdate(tx),
			partnerID,
			commissiondomain.CalculationStatusApproved,
			req.PeriodStart,
			req.PeriodEnd,
		).Scan(&calcs).Error; err != nil {
			return err
		}
		if len(calcs) == 0 {
			result = payoutdomain.PartnerResult{
				Outcome: payoutdomain.OutcomeSkipped,
				Reason:  payoutdomain.SkipNoApprovedCalculations,
			}
			return nil
		}

		total := money.FromCents(0)
		var bookingAmount, base, tier, volume, performance int64
		currency := calcs[0].Currency
		ids := make([]snowflake.ID, 0, len(calcs))
		for _, calc := range calcs {
			total = total.Add(money.FromCents(calc.TotalCommission))
			bookingAmount += calc.BookingAmount
			base += calc.BaseAmount
			tier += calc.TierBonus
			volume += calc.VolumeBonus
			performance += calc.PerformanceBonus
			ids = append(ids, calc.ID)
		}

		minimum, err := s.minimumPayout(ctx, tx, partnerID)
		if err != nil {
			return err
		}
		if total.Cents() < minimum {
			// Accrual below threshold stays APPROVED and carries forward.
			result = payoutdomain.PartnerResult{
				Outcome: payoutdomain.OutcomeSkipped,
				Reason:  payoutdomain.SkipBelowMinimumPayout,
				Amount:  total.Cents(),
			}
			s.log.Info("partner below minimum payout",
				zap.String("partner_id", partnerID.String()),
				zap.Int64("accrued", total.Cents()),
				zap.Int64("minimum", minimum),
			)
			return nil
		}

		now := s.clock.Now()
		payment := &payoutdomain.CommissionPayment{
			ID:                 s.genID.Generate(),
			BatchID:            batchID,
			PartnerID:          partnerID,
			TotalAmount:        total.Cents(),
			Currency:           currency,
			Method:             method,
			PeriodStart:        req.PeriodStart,
			PeriodEnd:          req.PeriodEnd,
			BookingCount:       int64(len(calcs)),
			TotalBookingAmount: bookingAmount,
			BaseAmount:         base,
			TierBonus:          tier,
			VolumeBonus:        volume,
			PerformanceBonus:   performance,
			Status:             payoutdomain.PaymentStatusProcessed,
			ProcessedAt:        now,
			ProcessedBy:        req.Actor,
			GatewayRef:         uuid.NewString(),
			CreatedAt:          now,
			UpdatedAt:          now,
		}
		if err := tx.WithContext(ctx).Create(payment).Error; err != nil {
			return err
		}

		update := tx.WithContext(ctx).Exec(
			`UPDATE commission_calculations
			 SET status = ?, paid_at = ?, payment_batch_id = ?, updated_at = ?
			 WHERE id IN ? AND status = ? AND payment_batch_id IS NULL`,
			commissiondomain.CalculationStatusPaid,
			now,
			batchID,
			now,
			ids,
			commissiondomain.CalculationStatusApproved,
		)
		if update.Error != nil {
			return update.Error
		}
		if update.RowsAffected != int64(len(ids)) {
			// A concurrent run grabbed some of the rows despite the lock;
			// roll the whole partner back rather than double-pay.
			return gorm.ErrInvalidTransaction
		}

		result = payoutdomain.PartnerResult{
			Outcome:      payoutdomain.OutcomePaid,
			PaymentID:    payment.ID.String(),
			Amount:       payment.TotalAmount,
			BookingCount: payment.BookingCount,
		}
		return nil
	})
	return result, err
}

// ListPayments returns all payments created under one batch id.
func (s *Service) ListPayments(ctx context.Context, batchID string) ([]payoutdomain.CommissionPayment, error) {
	rows, err := s.payments.Find(ctx, &payoutdomain.CommissionPayment{BatchID: batchID})
	if err != nil {
		return nil, err
	}
	out := make([]payoutdomain.CommissionPayment, 0, len(rows))
	for _, row := range rows {
		out = append(out, *row)
	}
	return out, nil
}

func (s *Service) lockPartner(ctx context.Context, tx *gorm.DB, partnerID snowflake.ID) error {
	var id snowflake.ID
	err := tx.WithContext(ctx).Raw(
		`SELECT id FROM partners WHERE id = ?`+db.ForUpdate(tx),
		partnerID,
	).Scan(&id).Error
	if err != nil {
		return err
	}
	if id == 0 {
		return payoutdomain.ErrInvalidPartner
	}
	return nil
}

// minimumPayout reads the threshold from the partner's currently active
// structure. A partner without one pays out unconditionally.
func (s *Service) minimumPayout(ctx context.Context, tx *gorm.DB, partnerID snowflake.ID) (int64, error) {
	var structure commissiondomain.CommissionStructure
	err := tx.WithContext(ctx).
		Where("partner_id = ? AND is_active = ?", partnerID, true).
		Order("effective_from DESC").
		First(&structure).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return 0, nil
		}
		return 0, err
	}
	return structure.MinimumPayout, nil
}

func (s *Service) retryBudget() int {
	if s.billing == nil {
		return 0
	}
	attempts := s.billing.Current().RetryAttempts
	if attempts < 1 {
		return 0
	}
	return attempts - 1
}
