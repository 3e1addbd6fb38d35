package service

import (
	"context"
	"time"

	commissiondomain "github.com/voyara/voyara/internal/commission/domain"
	"github.com/voyara/voyara/pkg/db/option"
)

// Summarize aggregates a partner's calculations whose booking dates fall in
// [periodStart, periodEnd]. Only money-bearing states count; disputed and
// cancelled rows never feed period totals.
func (s *Service) Summarize(ctx context.Context, partnerID string, periodStart, periodEnd time.Time) (*commissiondomain.Summary, error) {
	pid, err := parseID(partnerID)
	if err != nil {
		return nil, commissiondomain.ErrInvalidPartner
	}

	calcs, err := s.calcrepo.Find(ctx,
		&commissiondomain.CommissionCalculation{PartnerID: pid},
		option.ApplyOperator(option.Condition{Field: "booking_date", Operator: option.GTE, Value: periodStart}),
		option.ApplyOperator(option.Condition{Field: "booking_date", Operator: option.LTE, Value: periodEnd}),
		option.WithIn("status", aggregationStatuses),
		option.WithSortBy("booking_date ASC"),
	)
	if err != nil {
		return nil, err
	}

	summary := &commissiondomain.Summary{
		PartnerID:    partnerID,
		PeriodStart:  periodStart,
		PeriodEnd:    periodEnd,
		Calculations: make([]commissiondomain.CommissionCalculation, 0, len(calcs)),
	}
	for _, calc := range calcs {
		summary.BookingCount++
		summary.TotalBookingAmount += calc.BookingAmount
		summary.TotalCommission += calc.TotalCommission
		summary.Calculations = append(summary.Calculations, *calc)
	}
	if summary.TotalBookingAmount > 0 {
		summary.AverageRate = float64(summary.TotalCommission) / float64(summary.TotalBookingAmount)
	}
	return summary, nil
}
