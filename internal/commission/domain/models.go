// Package domain contains the commission structure and calculation models.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// CommissionType selects the rate scheme of a structure.
type CommissionType string

const (
	CommissionTypeFlat        CommissionType = "FLAT"
	CommissionTypeTiered      CommissionType = "TIERED"
	CommissionTypeVolume      CommissionType = "VOLUME"
	CommissionTypePerformance CommissionType = "PERFORMANCE"
	CommissionTypeHybrid      CommissionType = "HYBRID"
)

// PaymentFrequency is how often a partner is paid out.
type PaymentFrequency string

const (
	PaymentFrequencyWeekly    PaymentFrequency = "WEEKLY"
	PaymentFrequencyMonthly   PaymentFrequency = "MONTHLY"
	PaymentFrequencyQuarterly PaymentFrequency = "QUARTERLY"
)

// CalculationStatus is the lifecycle state of one commission calculation.
// PENDING -> CALCULATED -> APPROVED -> PAID, with DISPUTED and CANCELLED
// as absorbing alternates.
type CalculationStatus string

const (
	CalculationStatusPending    CalculationStatus = "PENDING"
	CalculationStatusCalculated CalculationStatus = "CALCULATED"
	CalculationStatusApproved   CalculationStatus = "APPROVED"
	CalculationStatusPaid       CalculationStatus = "PAID"
	CalculationStatusDisputed   CalculationStatus = "DISPUTED"
	CalculationStatusCancelled  CalculationStatus = "CANCELLED"
)

// Metric names understood by performance-bonus rules. Any other name is
// looked up in the externally supplied booking metrics.
const (
	MetricBookingVolume = "booking_volume"
	MetricBookingCount  = "booking_count"
)

// Tier is a volume bracket [MinVolume, MaxVolume) in cents of YTD booking
// volume. MaxVolume nil means unbounded.
type Tier struct {
	Name      string  `json:"name"`
	MinVolume int64   `json:"min_volume"`
	MaxVolume *int64  `json:"max_volume,omitempty"`
	Rate      float64 `json:"rate"`
	FlatBonus int64   `json:"flat_bonus,omitempty"`
}

// Contains reports whether the volume falls inside the tier bracket.
func (t Tier) Contains(volume int64) bool {
	if volume < t.MinVolume {
		return false
	}
	return t.MaxVolume == nil || volume < *t.MaxVolume
}

// VolumeRule grants a bonus once YTD volume reaches MinVolume. Exactly one
// of BonusRate (fraction of the booking amount) or BonusAmount (flat cents)
// is set.
type VolumeRule struct {
	MinVolume   int64    `json:"min_volume"`
	BonusRate   *float64 `json:"bonus_rate,omitempty"`
	BonusAmount *int64   `json:"bonus_amount,omitempty"`
}

// PerformanceRule grants a bonus when a named metric meets its threshold.
type PerformanceRule struct {
	Metric      string   `json:"metric"`
	Threshold   float64  `json:"threshold"`
	BonusRate   *float64 `json:"bonus_rate,omitempty"`
	BonusAmount *int64   `json:"bonus_amount,omitempty"`
}

// CommissionStructure is the versioned rule set for one partner. At most
// one structure is active per partner at any instant; superseded structures
// keep their rows with effective_until set.
type CommissionStructure struct {
	ID               snowflake.ID       `json:"id" gorm:"primaryKey"`
	PartnerID        snowflake.ID       `json:"partner_id" gorm:"not null;index"`
	Type             CommissionType     `json:"type" gorm:"type:text;not null"`
	BaseRate         float64            `json:"base_rate" gorm:"not null"`
	Tiers            []Tier             `json:"tiers,omitempty" gorm:"serializer:json"`
	VolumeRules      []VolumeRule       `json:"volume_rules,omitempty" gorm:"serializer:json"`
	PerformanceRules []PerformanceRule  `json:"performance_rules,omitempty" gorm:"serializer:json"`
	ProductRates     map[string]float64 `json:"product_rates,omitempty" gorm:"serializer:json"`
	PaymentFrequency PaymentFrequency   `json:"payment_frequency" gorm:"type:text;not null;default:'MONTHLY'"`
	MinimumPayout    int64              `json:"minimum_payout" gorm:"not null;default:0"`
	Currency         string             `json:"currency" gorm:"type:text;not null"`
	IsActive         bool               `json:"is_active" gorm:"not null;index"`
	EffectiveFrom    time.Time          `json:"effective_from" gorm:"not null"`
	EffectiveUntil   *time.Time         `json:"effective_until,omitempty"`
	CreatedAt        time.Time          `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt        time.Time          `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (CommissionStructure) TableName() string { return "commission_structures" }

// CommissionCalculation is the commission owed for one booking. Monetary
// columns are cents; immutable once created except for status transitions
// and recalculation before approval.
type CommissionCalculation struct {
	ID          snowflake.ID `json:"id" gorm:"primaryKey"`
	BookingID   snowflake.ID `json:"booking_id" gorm:"not null;uniqueIndex:ux_calculation_booking_partner"`
	PartnerID   snowflake.ID `json:"partner_id" gorm:"not null;uniqueIndex:ux_calculation_booking_partner;index"`
	StructureID snowflake.ID `json:"structure_id" gorm:"not null"`

	BookingAmount int64     `json:"booking_amount" gorm:"not null"`
	Currency      string    `json:"currency" gorm:"type:text;not null"`
	ProductType   string    `json:"product_type" gorm:"type:text"`
	BookingDate   time.Time `json:"booking_date" gorm:"not null;index"`

	AppliedRate      float64 `json:"applied_rate" gorm:"not null"`
	BaseAmount       int64   `json:"base_amount" gorm:"not null"`
	TierBonus        int64   `json:"tier_bonus" gorm:"not null;default:0"`
	VolumeBonus      int64   `json:"volume_bonus" gorm:"not null;default:0"`
	PerformanceBonus int64   `json:"performance_bonus" gorm:"not null;default:0"`
	TotalCommission  int64   `json:"total_commission" gorm:"not null"`
	TierName         string  `json:"tier_name,omitempty" gorm:"type:text"`
	RateOverridden   bool    `json:"rate_overridden" gorm:"not null;default:false"`

	Status         CalculationStatus `json:"status" gorm:"type:text;not null;index"`
	CalculatedAt   *time.Time        `json:"calculated_at,omitempty"`
	ApprovedAt     *time.Time        `json:"approved_at,omitempty"`
	ApprovedBy     *string           `json:"approved_by,omitempty" gorm:"type:text"`
	PaidAt         *time.Time        `json:"paid_at,omitempty"`
	PaymentBatchID *string           `json:"payment_batch_id,omitempty" gorm:"type:text;index"`

	CreatedAt time.Time `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (CommissionCalculation) TableName() string { return "commission_calculations" }
