package domain

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Service is the commission engine contract: structure management, per
// booking calculation, status transitions, and period aggregation.
type Service interface {
	CreateStructure(ctx context.Context, req CreateStructureRequest) (*CommissionStructure, error)
	ResolveStructure(ctx context.Context, partnerID string, asOf time.Time) (*CommissionStructure, error)
	Calculate(ctx context.Context, booking Booking) (*CommissionCalculation, error)
	Approve(ctx context.Context, calculationID, approver string) (*CommissionCalculation, error)
	Dispute(ctx context.Context, calculationID, reason string) error
	Cancel(ctx context.Context, calculationID string) error
	Summarize(ctx context.Context, partnerID string, periodStart, periodEnd time.Time) (*Summary, error)
}

// CreateStructureRequest defines a new commission structure. Monetary
// fields are cents; rates are fractions in [0,1].
type CreateStructureRequest struct {
	PartnerID        string             `json:"partner_id"`
	Type             CommissionType     `json:"type"`
	BaseRate         float64            `json:"base_rate"`
	Tiers            []Tier             `json:"tiers,omitempty"`
	VolumeRules      []VolumeRule       `json:"volume_rules,omitempty"`
	PerformanceRules []PerformanceRule  `json:"performance_rules,omitempty"`
	ProductRates     map[string]float64 `json:"product_rates,omitempty"`
	PaymentFrequency PaymentFrequency   `json:"payment_frequency,omitempty"`
	MinimumPayout    int64              `json:"minimum_payout"`
	Currency         string             `json:"currency"`
	EffectiveFrom    *time.Time         `json:"effective_from,omitempty"`
}

// Booking is the revenue event commission is calculated against.
type Booking struct {
	BookingID   string             `json:"booking_id"`
	PartnerID   string             `json:"partner_id"`
	Amount      int64              `json:"amount"`
	Currency    string             `json:"currency"`
	ProductType string             `json:"product_type,omitempty"`
	BookingDate time.Time          `json:"booking_date"`
	Metrics     map[string]float64 `json:"metrics,omitempty"`
}

// Summary aggregates a partner's calculations over a period. Read-only.
type Summary struct {
	PartnerID          string                  `json:"partner_id"`
	PeriodStart        time.Time               `json:"period_start"`
	PeriodEnd          time.Time               `json:"period_end"`
	BookingCount       int64                   `json:"booking_count"`
	TotalBookingAmount int64                   `json:"total_booking_amount"`
	TotalCommission    int64                   `json:"total_commission"`
	AverageRate        float64                 `json:"average_rate"`
	Calculations       []CommissionCalculation `json:"calculations"`
}

var (
	ErrInvalidPartner      = errors.New("invalid_partner")
	ErrPartnerNotFound     = errors.New("partner_not_found")
	ErrNoActiveStructure   = errors.New("no_active_structure")
	ErrInvalidBaseRate     = errors.New("invalid_base_rate")
	ErrInvalidCurrency     = errors.New("invalid_currency")
	ErrInvalidType         = errors.New("invalid_commission_type")
	ErrInvalidTierRange    = errors.New("invalid_tier_range")
	ErrOverlappingTiers    = errors.New("overlapping_tiers")
	ErrTierGap             = errors.New("tier_gap")
	ErrInvalidBonusRule    = errors.New("invalid_bonus_rule")
	ErrInvalidBooking      = errors.New("invalid_booking")
	ErrInvalidCalculation  = errors.New("invalid_calculation_id")
	ErrCalculationNotFound = errors.New("calculation_not_found")
	ErrStateConflict       = errors.New("state_conflict")
)

// StateError reports an operation attempted against a calculation in an
// incompatible lifecycle state. It matches ErrStateConflict under errors.Is
// and carries enough detail for the caller to act.
type StateError struct {
	CalculationID string
	Status        CalculationStatus
	Attempted     string
}

func (e *StateError) Error() string {
	return fmt.Sprintf("state_conflict: calculation %s is %s, cannot %s", e.CalculationID, e.Status, e.Attempted)
}

func (e *StateError) Is(target error) bool { return target == ErrStateConflict }
