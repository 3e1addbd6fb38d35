package service

import (
	"context"
	"sort"
	"time"

	commissiondomain "github.com/voyara/voyara/internal/commission/domain"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func (s *Service) CreateStructure(ctx context.Context, req commissiondomain.CreateStructureRequest) (*commissiondomain.CommissionStructure, error) {
	partnerID, err := parseID(req.PartnerID)
	if err != nil {
		return nil, commissiondomain.ErrInvalidPartner
	}

	if err := validateStructureRequest(req); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	effectiveFrom := now
	if req.EffectiveFrom != nil {
		effectiveFrom = req.EffectiveFrom.UTC()
	}

	frequency := req.PaymentFrequency
	if frequency == "" {
		frequency = commissiondomain.PaymentFrequencyMonthly
	}

	structure := &commissiondomain.CommissionStructure{
		ID:               s.genID.Generate(),
		PartnerID:        partnerID,
		Type:             req.Type,
		BaseRate:         req.BaseRate,
		Tiers:            sortedTiers(req.Tiers),
		VolumeRules:      req.VolumeRules,
		PerformanceRules: req.PerformanceRules,
		ProductRates:     req.ProductRates,
		PaymentFrequency: frequency,
		MinimumPayout:    req.MinimumPayout,
		Currency:         req.Currency,
		IsActive:         true,
		EffectiveFrom:    effectiveFrom,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	// Deactivate-then-insert is one transaction under a partner row lock so
	// concurrent creates cannot leave two active structures.
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.lockPartner(ctx, tx, partnerID); err != nil {
			return err
		}

		if err := tx.WithContext(ctx).Exec(
			`UPDATE commission_structures
			 SET is_active = ?, effective_until = ?, updated_at = ?
			 WHERE partner_id = ? AND is_active = ?`,
			false,
			now,
			now,
			partnerID,
			true,
		).Error; err != nil {
			return err
		}

		return tx.WithContext(ctx).Create(structure).Error
	})
	if err != nil {
		return nil, err
	}

	s.structures.Delete(partnerID)
	s.emitAudit(ctx, "commission.structure_created", "commission_structure", structure.ID.String(), map[string]any{
		"partner_id": partnerID.String(),
		"type":       string(structure.Type),
		"base_rate":  structure.BaseRate,
	})
	s.log.Info("commission structure created",
		zap.String("partner_id", partnerID.String()),
		zap.String("type", string(structure.Type)),
	)

	return structure, nil
}

func (s *Service) ResolveStructure(ctx context.Context, partnerID string, asOf time.Time) (*commissiondomain.CommissionStructure, error) {
	id, err := parseID(partnerID)
	if err != nil {
		return nil, commissiondomain.ErrInvalidPartner
	}
	if asOf.IsZero() {
		asOf = s.clock.Now()
	}

	if cached, ok := s.structures.Get(id); ok && coversDate(cached, asOf) {
		return cached, nil
	}

	structure, err := s.findActiveStructure(ctx, s.db, id, asOf)
	if err != nil {
		return nil, err
	}
	if structure == nil {
		return nil, commissiondomain.ErrNoActiveStructure
	}

	// Only the current resolution is cacheable; historical lookups would
	// poison the per-partner entry.
	if coversDate(structure, s.clock.Now()) {
		s.structures.Set(id, structure, structureCacheTTL)
	}
	return structure, nil
}

func coversDate(structure *commissiondomain.CommissionStructure, at time.Time) bool {
	if !structure.IsActive || structure.EffectiveFrom.After(at) {
		return false
	}
	return structure.EffectiveUntil == nil || !structure.EffectiveUntil.Before(at)
}

func sortedTiers(tiers []commissiondomain.Tier) []commissiondomain.Tier {
	if len(tiers) == 0 {
		return nil
	}
	out := make([]commissiondomain.Tier, len(tiers))
	copy(out, tiers)
	sort.Slice(out, func(i, j int) bool { return out[i].MinVolume < out[j].MinVolume })
	return out
}

func validateStructureRequest(req commissiondomain.CreateStructureRequest) error {
	switch req.Type {
	case commissiondomain.CommissionTypeFlat,
		commissiondomain.CommissionTypeTiered,
		commissiondomain.CommissionTypeVolume,
		commissiondomain.CommissionTypePerformance,
		commissiondomain.CommissionTypeHybrid:
	default:
		return commissiondomain.ErrInvalidType
	}

	if req.BaseRate < 0 || req.BaseRate > 1 {
		return commissiondomain.ErrInvalidBaseRate
	}
	if len(req.Currency) != 3 {
		return commissiondomain.ErrInvalidCurrency
	}

	if req.Type == commissiondomain.CommissionTypeTiered && len(req.Tiers) == 0 {
		return commissiondomain.ErrInvalidTierRange
	}
	if err := validateTiers(sortedTiers(req.Tiers), req.Type == commissiondomain.CommissionTypeTiered); err != nil {
		return err
	}

	for _, rule := range req.VolumeRules {
		if rule.MinVolume < 0 {
			return commissiondomain.ErrInvalidBonusRule
		}
		if err := validateBonus(rule.BonusRate, rule.BonusAmount); err != nil {
			return err
		}
	}
	for _, rule := range req.PerformanceRules {
		if rule.Metric == "" {
			return commissiondomain.ErrInvalidBonusRule
		}
		if err := validateBonus(rule.BonusRate, rule.BonusAmount); err != nil {
			return err
		}
	}
	for _, rate := range req.ProductRates {
		if rate < 0 || rate > 1 {
			return commissiondomain.ErrInvalidBaseRate
		}
	}
	return nil
}

// validateTiers enforces ordered, non-overlapping brackets. For pure tiered
// structures the brackets must also be gapless from zero; a booking that
// falls into a hole would otherwise earn a silent zero rate at runtime.
func validateTiers(tiers []commissiondomain.Tier, requireContiguous bool) error {
	for i, tier := range tiers {
		if tier.Rate < 0 || tier.Rate > 1 {
			return commissiondomain.ErrInvalidBaseRate
		}
		if tier.MinVolume < 0 {
			return commissiondomain.ErrInvalidTierRange
		}
		if tier.MaxVolume != nil && *tier.MaxVolume <= tier.MinVolume {
			return commissiondomain.ErrInvalidTierRange
		}

		if i == len(tiers)-1 {
			continue
		}
		next := tiers[i+1]
		if tier.MaxVolume == nil {
			// unbounded tier before another tier always overlaps
			return commissiondomain.ErrOverlappingTiers
		}
		if *tier.MaxVolume > next.MinVolume {
			return commissiondomain.ErrOverlappingTiers
		}
		if requireContiguous && *tier.MaxVolume < next.MinVolume {
			return commissiondomain.ErrTierGap
		}
	}

	if requireContiguous && len(tiers) > 0 && tiers[0].MinVolume != 0 {
		return commissiondomain.ErrTierGap
	}
	return nil
}

func validateBonus(rate *float64, amount *int64) error {
	if (rate == nil) == (amount == nil) {
		return commissiondomain.ErrInvalidBonusRule
	}
	if rate != nil && (*rate < 0 || *rate > 1) {
		return commissiondomain.ErrInvalidBonusRule
	}
	if amount != nil && *amount < 0 {
		return commissiondomain.ErrInvalidBonusRule
	}
	return nil
}
