package domain

import (
	"context"
	"errors"
	"time"
)

// Service runs payout batches over approved commission calculations.
type Service interface {
	ProcessBatch(ctx context.Context, req BatchRequest) (*BatchResult, error)
	ListPayments(ctx context.Context, batchID string) ([]CommissionPayment, error)
}

// BatchRequest selects the partners and period for one payout run.
type BatchRequest struct {
	PartnerIDs  []string  `json:"partner_ids"`
	PeriodStart time.Time `json:"period_start"`
	PeriodEnd   time.Time `json:"period_end"`
	Actor       string    `json:"actor"`
	Method      string    `json:"method,omitempty"`
}

// PartnerOutcome is the per-partner result of a batch run. A skip is not a
// failure: below-threshold accrual carries forward to the next run.
type PartnerOutcome string

const (
	OutcomePaid    PartnerOutcome = "paid"
	OutcomeSkipped PartnerOutcome = "skipped"
	OutcomeFailed  PartnerOutcome = "failed"
)

// Skip reasons reported in PartnerResult.Reason.
const (
	SkipNoApprovedCalculations = "no_approved_calculations"
	SkipBelowMinimumPayout     = "below_minimum_payout"
)

// PartnerResult reports what happened to one partner in a batch run.
type PartnerResult struct {
	PartnerID    string         `json:"partner_id"`
	Outcome      PartnerOutcome `json:"outcome"`
	Reason       string         `json:"reason,omitempty"`
	PaymentID    string         `json:"payment_id,omitempty"`
	Amount       int64          `json:"amount,omitempty"`
	BookingCount int64          `json:"booking_count,omitempty"`
	Error        string         `json:"error,omitempty"`
}

// BatchResult summarizes one payout run across all requested partners.
type BatchResult struct {
	BatchID     string          `json:"batch_id"`
	ProcessedAt time.Time       `json:"processed_at"`
	Actor       string          `json:"actor"`
	TotalPaid   int64           `json:"total_paid"`
	Partners    []PartnerResult `json:"partners"`
}

var (
	ErrNoPartners     = errors.New("no_partners")
	ErrInvalidPeriod  = errors.New("invalid_period")
	ErrInvalidPartner = errors.New("invalid_partner")
)
