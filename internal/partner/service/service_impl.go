package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/voyara/voyara/internal/audit/domain"
	"github.com/voyara/voyara/internal/clock"
	partnerdomain "github.com/voyara/voyara/internal/partner/domain"
	"github.com/voyara/voyara/pkg/db/option"
	"github.com/voyara/voyara/pkg/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	AuditSvc auditdomain.Service
}

type Service struct {
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	repo     repository.Repository[partnerdomain.Partner]
	auditSvc auditdomain.Service
}

func NewService(p Params) partnerdomain.Service {
	return &Service{
		log:      p.Log.Named("partner.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		repo:     repository.ProvideStore[partnerdomain.Partner](p.DB),
		auditSvc: p.AuditSvc,
	}
}

func (s *Service) Create(ctx context.Context, req partnerdomain.CreateRequest) (*partnerdomain.Partner, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, partnerdomain.ErrInvalidName
	}

	now := s.clock.Now()
	partner := &partnerdomain.Partner{
		ID:        s.genID.Generate(),
		Name:      name,
		Email:     strings.TrimSpace(req.Email),
		Status:    partnerdomain.PartnerStatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Create(ctx, partner); err != nil {
		return nil, err
	}

	if s.auditSvc != nil {
		_ = s.auditSvc.AuditLog(ctx, "system", "partner-registry", "partner.created", "partner", partner.ID.String(), map[string]any{
			"name": partner.Name,
		})
	}
	s.log.Info("partner created", zap.String("partner_id", partner.ID.String()), zap.String("name", partner.Name))
	return partner, nil
}

func (s *Service) Get(ctx context.Context, id string) (*partnerdomain.Partner, error) {
	partnerID, err := snowflake.ParseString(id)
	if err != nil {
		return nil, partnerdomain.ErrInvalidPartner
	}

	// FindOne reports a missing row as a nil partner, not an error.
	partner, err := s.repo.FindOne(ctx, &partnerdomain.Partner{ID: partnerID})
	if err != nil {
		return nil, err
	}
	if partner == nil {
		return nil, partnerdomain.ErrNotFound
	}
	return partner, nil
}

func (s *Service) List(ctx context.Context, req partnerdomain.ListRequest) ([]partnerdomain.Partner, error) {
	limit := req.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	filter := &partnerdomain.Partner{}
	if req.Status != "" {
		if !validStatus(req.Status) {
			return nil, partnerdomain.ErrInvalidStatus
		}
		filter.Status = req.Status
	}

	items, err := s.repo.Find(ctx, filter,
		option.WithSortBy("created_at DESC"),
		option.WithLimit(limit),
	)
	if err != nil {
		return nil, err
	}

	partners := make([]partnerdomain.Partner, 0, len(items))
	for _, item := range items {
		if item != nil {
			partners = append(partners, *item)
		}
	}
	return partners, nil
}

func (s *Service) SetStatus(ctx context.Context, id string, status partnerdomain.PartnerStatus) (*partnerdomain.Partner, error) {
	if !validStatus(status) {
		return nil, partnerdomain.ErrInvalidStatus
	}

	partner, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if partner.Status == status {
		return partner, nil
	}

	if err := s.repo.Update(ctx, partner.ID.String(), map[string]any{
		"status":     status,
		"updated_at": s.clock.Now(),
	}); err != nil {
		return nil, err
	}
	partner.Status = status

	if s.auditSvc != nil {
		_ = s.auditSvc.AuditLog(ctx, "system", "partner-registry", "partner.status_changed", "partner", partner.ID.String(), map[string]any{
			"status": string(status),
		})
	}
	return partner, nil
}

func validStatus(status partnerdomain.PartnerStatus) bool {
	switch status {
	case partnerdomain.PartnerStatusActive, partnerdomain.PartnerStatusSuspended:
		return true
	default:
		return false
	}
}
