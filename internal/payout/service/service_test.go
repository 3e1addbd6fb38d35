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
	commissiondomain "github.com/voyara/voyara/internal/commission/domain"
	commissionservice "github.com/voyara/voyara/internal/commission/service"
	"github.com/voyara/voyara/internal/notification"
	partnerdomain "github.com/voyara/voyara/internal/partner/domain"
	payoutdomain "github.com/voyara/voyara/internal/payout/domain"
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
	payout     payoutdomain.Service
	commission commissiondomain.Service
	db         *gorm.DB
	node       *snowflake.Node
	clock      *clock.FakeClock
	dispatcher *recordingDispatcher
}

func setupPayout(t *testing.T) *fixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	err = db.AutoMigrate(
		&partnerdomain.Partner{},
		&commissiondomain.CommissionStructure{},
		&commissiondomain.CommissionCalculation{},
		&payoutdomain.CommissionPayment{},
	)
	require.NoError(t, err)

	node, err := snowflake.NewNode(2)
	require.NoError(t, err)

	fc := clock.NewFakeClock(time.Date(2026, time.April, 1, 9, 0, 0, 0, time.UTC))
	dispatcher := &recordingDispatcher{}

	commissionSvc := commissionservice.NewService(commissionservice.Params{
		DB:         db,
		Log:        zap.NewNop(),
		GenID:      node,
		Clock:      fc,
		Dispatcher: dispatcher,
	})
	payoutSvc := NewService(Params{
		DB:         db,
		Log:        zap.NewNop(),
		GenID:      node,
		Clock:      fc,
		Dispatcher: dispatcher,
	})

	return &fixture{
		payout:     payoutSvc,
		commission: commissionSvc,
		db:         db,
		node:       node,
		clock:      fc,
		dispatcher: dispatcher,
	}
}

// seedApproved creates a partner with an active structure and a set of
// approved calculations, one per amount.
func (f *fixture) seedApproved(t *testing.T, minimumPayout int64, amounts ...int64) snowflake.ID {
	t.Helper()
	ctx := context.Background()

	partner := &partnerdomain.Partner{
		ID:     f.node.Generate(),
		Name:   "Coastal Voyages BV",
		Status: partnerdomain.PartnerStatusActive,
	}
	require.NoError(t, f.db.Create(partner).Error)

	_, err := f.commission.CreateStructure(ctx, commissiondomain.CreateStructureRequest{
		PartnerID:     partner.ID.String(),
		Type:          commissiondomain.CommissionTypeFlat,
		BaseRate:      0.10,
		Currency:      "EUR",
		MinimumPayout: minimumPayout,
	})
	require.NoError(t, err)

	for i, amount := range amounts {
		calc, err := f.commission.Calculate(ctx, commissiondomain.Booking{
			BookingID:   f.node.Generate().String(),
			PartnerID:   partner.ID.String(),
			Amount:      amount,
			Currency:    "EUR",
			BookingDate: f.clock.Now().Add(time.Duration(i+1) * time.Hour),
		})
		require.NoError(t, err)
		_, err = f.commission.Approve(ctx, calc.ID.String(), "ops@voyara.example")
		require.NoError(t, err)
	}
	return partner.ID
}

func period(f *fixture) (time.Time, time.Time) {
	return f.clock.Now().Add(-24 * time.Hour), f.clock.Now().Add(24 * time.Hour)
}

func TestProcessBatch_PaysApprovedCalculations(t *testing.T) {
	f := setupPayout(t)
	ctx := context.Background()
	partnerID := f.seedApproved(t, 0, 100_000, 50_000) // commissions 10000 + 5000

	start, end := period(f)
	result, err := f.payout.ProcessBatch(ctx, payoutdomain.BatchRequest{
		PartnerIDs:  []string{partnerID.String()},
		PeriodStart: start,
		PeriodEnd:   end,
		Actor:       "finance@voyara.example",
	})
	require.NoError(t, err)
	require.Len(t, result.Partners, 1)

	pr := result.Partners[0]
	assert.Equal(t, payoutdomain.OutcomePaid, pr.Outcome)
	assert.Equal(t, int64(15_000), pr.Amount)
	assert.Equal(t, int64(2), pr.BookingCount)
	assert.Equal(t, int64(15_000), result.TotalPaid)
	assert.NotEmpty(t, result.BatchID)

	// Conservation: the payment total equals the sum over the batched rows.
	var payment payoutdomain.CommissionPayment
	require.NoError(t, f.db.First(&payment, "batch_id = ?", result.BatchID).Error)
	assert.Equal(t, int64(15_000), payment.TotalAmount)
	assert.Equal(t, payoutdomain.PaymentStatusProcessed, payment.Status)
	assert.Equal(t, "finance@voyara.example", payment.ProcessedBy)
	assert.NotEmpty(t, payment.GatewayRef)
	assert.Equal(t, payoutdomain.PaymentMethodBankTransfer, payment.Method)

	var sum int64
	require.NoError(t, f.db.Model(&commissiondomain.CommissionCalculation{}).
		Select("COALESCE(SUM(total_commission), 0)").
		Where("payment_batch_id = ?", result.BatchID).
		Scan(&sum).Error)
	assert.Equal(t, payment.TotalAmount, sum)

	var unpaid int64
	require.NoError(t, f.db.Model(&commissiondomain.CommissionCalculation{}).
		Where("partner_id = ? AND status <> ?", partnerID, commissiondomain.CalculationStatusPaid).
		Count(&unpaid).Error)
	assert.Zero(t, unpaid)
}

func TestProcessBatch_MinimumPayoutCarriesForward(t *testing.T) {
	f := setupPayout(t)
	ctx := context.Background()
	// 40.00 accrued against a 50.00 minimum.
	partnerID := f.seedApproved(t, 5_000, 40_000)

	start, end := period(f)
	result, err := f.payout.ProcessBatch(ctx, payoutdomain.BatchRequest{
		PartnerIDs:  []string{partnerID.String()},
		PeriodStart: start,
		PeriodEnd:   end,
		Actor:       "finance@voyara.example",
	})
	require.NoError(t, err)
	require.Len(t, result.Partners, 1)
	assert.Equal(t, payoutdomain.OutcomeSkipped, result.Partners[0].Outcome)
	assert.Equal(t, payoutdomain.SkipBelowMinimumPayout, result.Partners[0].Reason)
	assert.Equal(t, int64(4_000), result.Partners[0].Amount)
	assert.Zero(t, result.TotalPaid)

	var count int64
	require.NoError(t, f.db.Model(&payoutdomain.CommissionPayment{}).Count(&count).Error)
	assert.Zero(t, count)

	// The calculations stay APPROVED and unbatched for the next run.
	var rows []commissiondomain.CommissionCalculation
	require.NoError(t, f.db.Where("partner_id = ?", partnerID).Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.Equal(t, commissiondomain.CalculationStatusApproved, rows[0].Status)
	assert.Nil(t, rows[0].PaymentBatchID)
}

func TestProcessBatch_NeverDoublePays(t *testing.T) {
	f := setupPayout(t)
	ctx := context.Background()
	partnerID := f.seedApproved(t, 0, 100_000)

	start, end := period(f)
	req := payoutdomain.BatchRequest{
		PartnerIDs:  []string{partnerID.String()},
		PeriodStart: start,
		PeriodEnd:   end,
		Actor:       "finance@voyara.example",
	}

	first, err := f.payout.ProcessBatch(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, payoutdomain.OutcomePaid, first.Partners[0].Outcome)

	second, err := f.payout.ProcessBatch(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, payoutdomain.OutcomeSkipped, second.Partners[0].Outcome)
	assert.Equal(t, payoutdomain.SkipNoApprovedCalculations, second.Partners[0].Reason)

	var count int64
	require.NoError(t, f.db.Model(&payoutdomain.CommissionPayment{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestProcessBatch_BestEffortAcrossPartners(t *testing.T) {
	f := setupPayout(t)
	ctx := context.Background()
	partnerID := f.seedApproved(t, 0, 100_000)

	start, end := period(f)
	result, err := f.payout.ProcessBatch(ctx, payoutdomain.BatchRequest{
		PartnerIDs:  []string{"not-a-partner-id", partnerID.String()},
		PeriodStart: start,
		PeriodEnd:   end,
		Actor:       "finance@voyara.example",
	})
	require.NoError(t, err)
	require.Len(t, result.Partners, 2)
	assert.Equal(t, payoutdomain.OutcomeFailed, result.Partners[0].Outcome)
	assert.Equal(t, payoutdomain.OutcomePaid, result.Partners[1].Outcome)
	assert.Equal(t, int64(10_000), result.TotalPaid)
}

func TestProcessBatch_EmitsEventAndListsPayments(t *testing.T) {
	f := setupPayout(t)
	ctx := context.Background()
	partnerID := f.seedApproved(t, 0, 100_000)

	start, end := period(f)
	result, err := f.payout.ProcessBatch(ctx, payoutdomain.BatchRequest{
		PartnerIDs:  []string{partnerID.String()},
		PeriodStart: start,
		PeriodEnd:   end,
		Actor:       "finance@voyara.example",
	})
	require.NoError(t, err)

	var batchEvents []notification.Event
	for _, e := range f.dispatcher.events {
		if e.Name == notification.EventPayoutBatchProcessed {
			batchEvents = append(batchEvents, e)
		}
	}
	require.Len(t, batchEvents, 1)
	assert.Equal(t, result.BatchID, batchEvents[0].Payload["batch_id"])
	assert.Equal(t, int64(10_000), batchEvents[0].Payload["amount"])

	payments, err := f.payout.ListPayments(ctx, result.BatchID)
	require.NoError(t, err)
	require.Len(t, payments, 1)
	assert.Equal(t, partnerID, payments[0].PartnerID)
}

func TestProcessBatch_RequestValidation(t *testing.T) {
	f := setupPayout(t)
	ctx := context.Background()

	_, err := f.payout.ProcessBatch(ctx, payoutdomain.BatchRequest{})
	assert.ErrorIs(t, err, payoutdomain.ErrNoPartners)

	_, err = f.payout.ProcessBatch(ctx, payoutdomain.BatchRequest{
		PartnerIDs:  []string{f.node.Generate().String()},
		PeriodStart: f.clock.Now(),
		PeriodEnd:   f.clock.Now().Add(-time.Hour),
	})
	assert.ErrorIs(t, err, payoutdomain.ErrInvalidPeriod)
}
