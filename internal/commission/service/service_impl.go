package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/voyara/voyara/internal/audit/domain"
	"github.com/voyara/voyara/internal/cache"
	"github.com/voyara/voyara/internal/clock"
	commissiondomain "github.com/voyara/voyara/internal/commission/domain"
	"github.com/voyara/voyara/internal/notification"
	"github.com/voyara/voyara/pkg/db"
	"github.com/voyara/voyara/pkg/repository"
	"github.com/voyara/voyara/pkg/telemetry"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Active structures are read-mostly; a short TTL keeps resolution cheap
// without risking a stale structure surviving a create for long.
const structureCacheTTL = 45 * time.Second

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Metrics    *telemetry.Metrics
	AuditSvc   auditdomain.Service
	Dispatcher notification.Dispatcher
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	clock   clock.Clock
	metrics *telemetry.Metrics

	calcrepo   repository.Repository[commissiondomain.CommissionCalculation]
	structures cache.Cache[snowflake.ID, *commissiondomain.CommissionStructure]
	auditSvc   auditdomain.Service
	dispatcher notification.Dispatcher
}

func NewService(p Params) commissiondomain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("commission.service"),
		genID:   p.GenID,
		clock:   p.Clock,
		metrics: p.Metrics,

		calcrepo:   repository.ProvideStore[commissiondomain.CommissionCalculation](p.DB),
		structures: cache.NewTTLCache[snowflake.ID, *commissiondomain.CommissionStructure](),
		auditSvc:   p.AuditSvc,
		dispatcher: p.Dispatcher,
	}
}

// lockPartner takes a row lock on the partner so structure creation,
// recalculation, and payout batching serialize per partner.
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
		return commissiondomain.ErrPartnerNotFound
	}
	return nil
}

func (s *Service) findActiveStructure(ctx context.Context, tx *gorm.DB, partnerID snowflake.ID, asOf time.Time) (*commissiondomain.CommissionStructure, error) {
	var structure commissiondomain.CommissionStructure
	err := tx.WithContext(ctx).
		Where("partner_id = ? AND is_active = ? AND effective_from <= ?", partnerID, true, asOf).
		Where("effective_until IS NULL OR effective_until >= ?", asOf).
		Order("effective_from DESC").
		First(&structure).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &structure, nil
}

// volumeTotals holds the partner's historical aggregation factors strictly
// before a booking date.
type volumeTotals struct {
	YTD   int64
	MTD   int64
	QTD   int64
	Count int64
}

// aggregationStatuses are the calculation states that count toward
// historical volume. Disputed and cancelled bookings never do.
var aggregationStatuses = []commissiondomain.CalculationStatus{
	commissiondomain.CalculationStatusCalculated,
	commissiondomain.CalculationStatusApproved,
	commissiondomain.CalculationStatusPaid,
}

func (s *Service) loadVolumeTotals(ctx context.Context, tx *gorm.DB, partnerID snowflake.ID, before time.Time) (volumeTotals, error) {
	yearStart := time.Date(before.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
	monthStart := time.Date(before.Year(), before.Month(), 1, 0, 0, 0, 0, time.UTC)
	quarterMonth := time.Month((int(before.Month())-1)/3*3 + 1)
	quarterStart := time.Date(before.Year(), quarterMonth, 1, 0, 0, 0, 0, time.UTC)

	var totals volumeTotals
	err := tx.WithContext(ctx).Raw(
		`SELECT
			COALESCE(SUM(CASE WHEN booking_date >= ? THEN booking_amount ELSE 0 END), 0) AS ytd,
			COALESCE(SUM(CASE WHEN booking_date >= ? THEN booking_amount ELSE 0 END), 0) AS mtd,
			COALESCE(SUM(CASE WHEN booking_date >= ? THEN booking_amount ELSE 0 END), 0) AS qtd,
			COUNT(*) AS count
		 FROM commission_calculations
		 WHERE partner_id = ? AND booking_date < ? AND status IN ?`,
		yearStart,
		monthStart,
		quarterStart,
		partnerID,
		before,
		aggregationStatuses,
	).Scan(&totals).Error
	return totals, err
}

func (s *Service) loadCalculationForUpdate(ctx context.Context, tx *gorm.DB, id snowflake.ID) (*commissiondomain.CommissionCalculation, error) {
	var calc commissiondomain.CommissionCalculation
	err := tx.WithContext(ctx).Raw(
		`SELECT * FROM commission_calculations WHERE id = ?`+db.ForUpdate(tx),
		id,
	).Scan(&calc).Error
	if err != nil {
		return nil, err
	}
	if calc.ID == 0 {
		return nil, nil
	}
	return &calc, nil
}

func (s *Service) loadCalculationByBookingForUpdate(ctx context.Context, tx *gorm.DB, bookingID, partnerID snowflake.ID) (*commissiondomain.CommissionCalculation, error) {
	var calc commissiondomain.CommissionCalculation
	err := tx.WithContext(ctx).Raw(
		`SELECT * FROM commission_calculations WHERE booking_id = ? AND partner_id = ?`+db.ForUpdate(tx),
		bookingID,
		partnerID,
	).Scan(&calc).Error
	if err != nil {
		return nil, err
	}
	if calc.ID == 0 {
		return nil, nil
	}
	return &calc, nil
}

func (s *Service) emitAudit(ctx context.Context, action, targetType, targetID string, metadata map[string]any) {
	if s.auditSvc == nil {
		return
	}
	_ = s.auditSvc.AuditLog(ctx, "system", "", action, targetType, targetID, metadata)
}

func parseID(value string) (snowflake.ID, error) {
	return snowflake.ParseString(strings.TrimSpace(value))
}
