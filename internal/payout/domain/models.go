// Package domain contains the payout batch models.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// PaymentStatus is the state of one partner payment within a batch.
type PaymentStatus string

const (
	PaymentStatusProcessed PaymentStatus = "PROCESSED"
)

// PaymentMethod values accepted for payout runs.
const (
	PaymentMethodBankTransfer = "bank_transfer"
)

// CommissionPayment is one partner's payment inside a batch run. The total
// equals the sum of total_commission over every calculation row carrying this
// payment's batch id for the partner.
type CommissionPayment struct {
	ID        snowflake.ID `json:"id" gorm:"primaryKey"`
	BatchID   string       `json:"batch_id" gorm:"type:text;not null;uniqueIndex:ux_payment_batch_partner"`
	PartnerID snowflake.ID `json:"partner_id" gorm:"not null;uniqueIndex:ux_payment_batch_partner;index"`

	TotalAmount int64  `json:"total_amount" gorm:"not null"`
	Currency    string `json:"currency" gorm:"type:text;not null"`
	Method      string `json:"method" gorm:"type:text;not null"`

	PeriodStart time.Time `json:"period_start" gorm:"not null"`
	PeriodEnd   time.Time `json:"period_end" gorm:"not null"`

	BookingCount       int64 `json:"booking_count" gorm:"not null"`
	TotalBookingAmount int64 `json:"total_booking_amount" gorm:"not null"`
	BaseAmount         int64 `json:"base_amount" gorm:"not null"`
	TierBonus          int64 `json:"tier_bonus" gorm:"not null;default:0"`
	VolumeBonus        int64 `json:"volume_bonus" gorm:"not null;default:0"`
	PerformanceBonus   int64 `json:"performance_bonus" gorm:"not null;default:0"`

	Status      PaymentStatus `json:"status" gorm:"type:text;not null"`
	ProcessedAt time.Time     `json:"processed_at" gorm:"not null"`
	ProcessedBy string        `json:"processed_by" gorm:"type:text;not null"`
	GatewayRef  string        `json:"gateway_ref" gorm:"type:text;not null"`

	CreatedAt time.Time `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (CommissionPayment) TableName() string { return "commission_payments" }
