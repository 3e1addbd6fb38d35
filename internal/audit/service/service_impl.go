package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/voyara/voyara/internal/audit/domain"
	"github.com/voyara/voyara/internal/clock"
	"github.com/voyara/voyara/pkg/db/option"
	"github.com/voyara/voyara/pkg/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
}

type Service struct {
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  repository.Repository[auditdomain.AuditLog]
}

func NewService(p Params) auditdomain.Service {
	return &Service{
		log:   p.Log.Named("audit.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  repository.ProvideStore[auditdomain.AuditLog](p.DB),
	}
}

func (s *Service) AuditLog(ctx context.Context, actorType, actorID, action, targetType, targetID string, metadata map[string]any) error {
	record := &auditdomain.AuditLog{
		ID:         s.genID.Generate(),
		ActorType:  actorType,
		ActorID:    actorID,
		Action:     action,
		TargetType: targetType,
		TargetID:   targetID,
		Metadata:   datatypes.JSONMap(metadata),
		CreatedAt:  s.clock.Now(),
	}
	if err := s.repo.Create(ctx, record); err != nil {
		s.log.Warn("audit write failed", zap.String("action", action), zap.Error(err))
		return err
	}
	return nil
}

func (s *Service) List(ctx context.Context, action string, limit int) ([]auditdomain.AuditLog, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	filter := &auditdomain.AuditLog{}
	if action != "" {
		filter.Action = action
	}
	items, err := s.repo.Find(ctx, filter,
		option.WithSortBy("created_at DESC"),
		option.WithLimit(limit),
	)
	if err != nil {
		return nil, err
	}
	logs := make([]auditdomain.AuditLog, 0, len(items))
	for _, item := range items {
		if item != nil {
			logs = append(logs, *item)
		}
	}
	return logs, nil
}
