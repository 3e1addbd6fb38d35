package service

import (
	"context"

	commissiondomain "github.com/voyara/voyara/internal/commission/domain"
	"github.com/voyara/voyara/internal/notification"
	"github.com/voyara/voyara/pkg/money"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func (s *Service) Calculate(ctx context.Context, booking commissiondomain.Booking) (*commissiondomain.CommissionCalculation, error) {
	bookingID, err := parseID(booking.BookingID)
	if err != nil {
		return nil, commissiondomain.ErrInvalidBooking
	}
	partnerID, err := parseID(booking.PartnerID)
	if err != nil {
		return nil, commissiondomain.ErrInvalidPartner
	}
	if booking.Amount <= 0 || booking.BookingDate.IsZero() {
		return nil, commissiondomain.ErrInvalidBooking
	}
	if len(booking.Currency) != 3 {
		return nil, commissiondomain.ErrInvalidCurrency
	}

	var result *commissiondomain.CommissionCalculation
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.lockPartner(ctx, tx, partnerID); err != nil {
			return err
		}

		existing, err := s.loadCalculationByBookingForUpdate(ctx, tx, bookingID, partnerID)
		if err != nil {
			return err
		}
		if existing != nil &&
			existing.Status != commissiondomain.CalculationStatusPending &&
			existing.Status != commissiondomain.CalculationStatusCalculated {
			return &commissiondomain.StateError{
				CalculationID: existing.ID.String(),
				Status:        existing.Status,
				Attempted:     "recalculate",
			}
		}

		// The structure valid on the booking date, read fresh inside the
		// transaction; the resolver cache is only for read paths.
		structure, err := s.findActiveStructure(ctx, tx, partnerID, booking.BookingDate)
		if err != nil {
			return err
		}
		if structure == nil {
			return commissiondomain.ErrNoActiveStructure
		}

		totals, err := s.loadVolumeTotals(ctx, tx, partnerID, booking.BookingDate)
		if err != nil {
			return err
		}

		now := s.clock.Now()
		calc := s.compute(structure, booking, totals)
		calc.BookingID = bookingID
		calc.PartnerID = partnerID
		calc.Status = commissiondomain.CalculationStatusCalculated
		calc.CalculatedAt = &now
		calc.UpdatedAt = now

		if existing != nil {
			// Recalculation before approval overwrites in place so the
			// (booking, partner) pair stays unique.
			calc.ID = existing.ID
			calc.CreatedAt = existing.CreatedAt
			if err := tx.WithContext(ctx).
				Model(&commissiondomain.CommissionCalculation{}).
				Where("id = ?", existing.ID).
				Updates(map[string]any{
					"structure_id":      calc.StructureID,
					"booking_amount":    calc.BookingAmount,
					"currency":          calc.Currency,
					"product_type":      calc.ProductType,
					"booking_date":      calc.BookingDate,
					"applied_rate":      calc.AppliedRate,
					"base_amount":       calc.BaseAmount,
					"tier_bonus":        calc.TierBonus,
					"volume_bonus":      calc.VolumeBonus,
					"performance_bonus": calc.PerformanceBonus,
					"total_commission":  calc.TotalCommission,
					"tier_name":         calc.TierName,
					"rate_overridden":   calc.RateOverridden,
					"status":            calc.Status,
					"calculated_at":     calc.CalculatedAt,
					"updated_at":        calc.UpdatedAt,
				}).Error; err != nil {
				return err
			}
		} else {
			calc.ID = s.genID.Generate()
			calc.CreatedAt = now
			if err := tx.WithContext(ctx).Create(calc).Error; err != nil {
				return err
			}
		}

		result = calc
		return nil
	})
	if err != nil {
		s.metrics.ObserveCalculation("none", "error", 0)
		return nil, err
	}

	s.metrics.ObserveCalculation(commissionTypeLabel(result), "ok", money.FromCents(result.TotalCommission).Float())
	s.log.Debug("commission calculated",
		zap.String("booking_id", booking.BookingID),
		zap.String("partner_id", booking.PartnerID),
		zap.Int64("total_commission", result.TotalCommission),
	)
	return result, nil
}

// compute derives the commission breakdown for one booking against a
// structure and the partner's historical volume.
func (s *Service) compute(
	structure *commissiondomain.CommissionStructure,
	booking commissiondomain.Booking,
	totals volumeTotals,
) *commissiondomain.CommissionCalculation {
	amount := money.FromCents(booking.Amount)
	postVolume := totals.YTD + booking.Amount

	rate := structure.BaseRate
	tierBonus := money.FromCents(0)
	tierName := ""

	switch structure.Type {
	case commissiondomain.CommissionTypeTiered, commissiondomain.CommissionTypeHybrid:
		matched := false
		for _, tier := range structure.Tiers {
			if tier.Contains(postVolume) {
				rate = tier.Rate
				tierBonus = money.FromCents(tier.FlatBonus)
				tierName = tier.Name
				matched = true
				break
			}
		}
		if !matched {
			if structure.Type == commissiondomain.CommissionTypeTiered {
				// Structure creation validates contiguity, so this only fires
				// for legacy rows. Zero rate, never a silent fallback to base.
				rate = 0
				s.log.Warn("no tier covers post-booking volume",
					zap.String("structure_id", structure.ID.String()),
					zap.Int64("post_volume", postVolume),
				)
			}
			// hybrid without a matching tier keeps the base rate
		}
	case commissiondomain.CommissionTypeFlat,
		commissiondomain.CommissionTypeVolume,
		commissiondomain.CommissionTypePerformance:
		rate = structure.BaseRate
	}

	overridden := false
	if structure.ProductRates != nil && booking.ProductType != "" {
		if override, ok := structure.ProductRates[booking.ProductType]; ok {
			rate = override
			overridden = true
		}
	}

	baseAmount := amount.ApplyRate(rate)

	volumeBonus := money.FromCents(0)
	for _, rule := range structure.VolumeRules {
		if totals.YTD < rule.MinVolume {
			continue
		}
		if rule.BonusRate != nil {
			volumeBonus = volumeBonus.Add(amount.ApplyRate(*rule.BonusRate))
		} else if rule.BonusAmount != nil {
			volumeBonus = volumeBonus.Add(money.FromCents(*rule.BonusAmount))
		}
	}

	performanceBonus := money.FromCents(0)
	for _, rule := range structure.PerformanceRules {
		value, ok := metricValue(rule.Metric, totals, booking.Metrics)
		if !ok || value < rule.Threshold {
			continue
		}
		if rule.BonusRate != nil {
			performanceBonus = performanceBonus.Add(amount.ApplyRate(*rule.BonusRate))
		} else if rule.BonusAmount != nil {
			performanceBonus = performanceBonus.Add(money.FromCents(*rule.BonusAmount))
		}
	}

	total := baseAmount.Add(tierBonus).Add(volumeBonus).Add(performanceBonus)

	return &commissiondomain.CommissionCalculation{
		StructureID:      structure.ID,
		BookingAmount:    booking.Amount,
		Currency:         booking.Currency,
		ProductType:      booking.ProductType,
		BookingDate:      booking.BookingDate.UTC(),
		AppliedRate:      rate,
		BaseAmount:       baseAmount.Cents(),
		TierBonus:        tierBonus.Cents(),
		VolumeBonus:      volumeBonus.Cents(),
		PerformanceBonus: performanceBonus.Cents(),
		TotalCommission:  total.Cents(),
		TierName:         tierName,
		RateOverridden:   overridden,
	}
}

func metricValue(metric string, totals volumeTotals, external map[string]float64) (float64, bool) {
	switch metric {
	case commissiondomain.MetricBookingVolume:
		return float64(totals.YTD), true
	case commissiondomain.MetricBookingCount:
		return float64(totals.Count), true
	default:
		if external == nil {
			return 0, false
		}
		value, ok := external[metric]
		return value, ok
	}
}

func (s *Service) Approve(ctx context.Context, calculationID, approver string) (*commissiondomain.CommissionCalculation, error) {
	id, err := parseID(calculationID)
	if err != nil {
		return nil, commissiondomain.ErrInvalidCalculation
	}

	var approved *commissiondomain.CommissionCalculation
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		calc, err := s.loadCalculationForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		if calc == nil {
			return commissiondomain.ErrCalculationNotFound
		}
		if calc.Status != commissiondomain.CalculationStatusCalculated {
			return &commissiondomain.StateError{
				CalculationID: calc.ID.String(),
				Status:        calc.Status,
				Attempted:     "approve",
			}
		}

		now := s.clock.Now()
		if err := tx.WithContext(ctx).Exec(
			`UPDATE commission_calculations
			 SET status = ?, approved_at = ?, approved_by = ?, updated_at = ?
			 WHERE id = ?`,
			commissiondomain.CalculationStatusApproved,
			now,
			approver,
			now,
			id,
		).Error; err != nil {
			return err
		}

		calc.Status = commissiondomain.CalculationStatusApproved
		calc.ApprovedAt = &now
		calc.ApprovedBy = &approver
		approved = calc
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.dispatcher.Dispatch(ctx, notification.Event{
		Name:       notification.EventCommissionApproved,
		OccurredAt: s.clock.Now(),
		Payload: map[string]any{
			"calculation_id": approved.ID.String(),
			"partner_id":     approved.PartnerID.String(),
			"amount":         approved.TotalCommission,
		},
	})
	s.emitAudit(ctx, "commission.approved", "commission_calculation", approved.ID.String(), map[string]any{
		"approver": approver,
		"amount":   approved.TotalCommission,
	})
	return approved, nil
}

func (s *Service) Dispute(ctx context.Context, calculationID, reason string) error {
	return s.transitionTerminal(ctx, calculationID, commissiondomain.CalculationStatusDisputed, "dispute", reason)
}

func (s *Service) Cancel(ctx context.Context, calculationID string) error {
	return s.transitionTerminal(ctx, calculationID, commissiondomain.CalculationStatusCancelled, "cancel", "")
}

// transitionTerminal moves a calculation into an absorbing alternate state.
// Paid calculations are settled money and can no longer be disputed or
// cancelled through this path.
func (s *Service) transitionTerminal(ctx context.Context, calculationID string, target commissiondomain.CalculationStatus, attempted, reason string) error {
	id, err := parseID(calculationID)
	if err != nil {
		return commissiondomain.ErrInvalidCalculation
	}

	var targetID string
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		calc, err := s.loadCalculationForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		if calc == nil {
			return commissiondomain.ErrCalculationNotFound
		}
		switch calc.Status {
		case commissiondomain.CalculationStatusPaid,
			commissiondomain.CalculationStatusDisputed,
			commissiondomain.CalculationStatusCancelled:
			return &commissiondomain.StateError{
				CalculationID: calc.ID.String(),
				Status:        calc.Status,
				Attempted:     attempted,
			}
		}

		targetID = calc.ID.String()
		now := s.clock.Now()
		return tx.WithContext(ctx).Exec(
			`UPDATE commission_calculations SET status = ?, updated_at = ? WHERE id = ?`,
			target,
			now,
			id,
		).Error
	})
	if err != nil {
		return err
	}

	metadata := map[string]any{}
	if reason != "" {
		metadata["reason"] = reason
	}
	s.emitAudit(ctx, "commission."+attempted+"d", "commission_calculation", targetID, metadata)
	return nil
}

func commissionTypeLabel(calc *commissiondomain.CommissionCalculation) string {
	if calc.RateOverridden {
		return "product_override"
	}
	if calc.TierName != "" {
		return "tiered"
	}
	return "base"
}
